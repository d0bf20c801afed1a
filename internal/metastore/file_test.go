package metastore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"repoatlas/internal/model"
)

func sampleRepo(name string) *model.Repository {
	repo := &model.Repository{
		Name: name,
		Path: "/data/repos/" + name,
		Files: []model.File{{
			Path:     "pkg/a.py",
			FullPath: "/data/repos/" + name + "/pkg/a.py",
			Lines:    12,
			Functions: []model.Function{
				{Name: "run", Line: 3, Args: []string{"x"}, Docstring: model.StringPtr("")},
				{Name: "helper", Line: 9, Args: []string{}},
			},
			Classes: []model.Class{{Name: "Thing", Line: 1, Methods: []string{}}},
			Imports: []string{"os"},
		}},
		Commits: []model.Commit{{SHA: "abc", Author: "dev", Date: "2024-01-02T03:04:05+00:00", Message: "init"}},
	}
	repo.Recount()
	return repo
}

func TestFileStoreRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, err := NewFileStore(filepath.Join(t.TempDir(), "metadata"))
	if err != nil {
		t.Fatal(err)
	}

	want := sampleRepo("alpha")
	if err := s.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load(ctx, "alpha")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}

	// Docstring nil and "" must stay distinct on disk.
	if got.Files[0].Functions[0].Docstring == nil || got.Files[0].Functions[1].Docstring != nil {
		t.Error("docstring presence not preserved")
	}
}

func TestFileStoreOverwriteAndList(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	s := &FileStore{Dir: dir}

	for _, name := range []string{"zeta", "alpha"} {
		if err := s.Save(ctx, sampleRepo(name)); err != nil {
			t.Fatal(err)
		}
	}
	updated := sampleRepo("alpha")
	updated.Files = nil
	updated.Recount()
	if err := s.Save(ctx, updated); err != nil {
		t.Fatal(err)
	}

	got, err := s.Load(ctx, "alpha")
	if err != nil {
		t.Fatal(err)
	}
	if got.TotalFiles != 0 {
		t.Errorf("TotalFiles = %d, want 0 after overwrite", got.TotalFiles)
	}

	names, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"alpha", "zeta"}; !reflect.DeepEqual(names, want) {
		t.Errorf("List = %v, want %v", names, want)
	}

	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestFileStoreJSONShape(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	s := &FileStore{Dir: dir}
	if err := s.Save(ctx, sampleRepo("shape")); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "shape.json"))
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{`"total_files": 1`, `"full_path"`, `"docstring": null`, `"sha": "abc"`} {
		if !strings.Contains(string(data), key) {
			t.Errorf("document missing %s", key)
		}
	}
}

func TestFileStoreNotFound(t *testing.T) {
	t.Parallel()
	s := &FileStore{Dir: t.TempDir()}
	_, err := s.Load(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Load error = %v, want ErrNotFound", err)
	}
}

func TestFileStoreRejectsBadNames(t *testing.T) {
	t.Parallel()
	s := &FileStore{Dir: t.TempDir()}
	for _, name := range []string{"", "..", "a/b", `a\b`} {
		repo := sampleRepo("x")
		repo.Name = name
		if err := s.Save(context.Background(), repo); err == nil {
			t.Errorf("Save(%q) should fail", name)
		}
	}
}
