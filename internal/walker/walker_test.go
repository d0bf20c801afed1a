package walker

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func relPaths(files []FileInfo) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.RelPath
	}
	return out
}

func TestCollectFiltersAndOrders(t *testing.T) {
	t.Parallel()
	root := t.TempDir()

	writeFile(t, root, "main.py", "print('hi')\n")
	writeFile(t, root, "pkg/__init__.py", "")
	writeFile(t, root, "pkg/a.py", "x = 1\n")
	writeFile(t, root, "pkg/readme.md", "# doc\n")
	writeFile(t, root, ".git/hooks/pre.py", "x = 1\n")
	writeFile(t, root, "venv/lib/site.py", "x = 1\n")
	writeFile(t, root, "sub/.venv/x.py", "x = 1\n")
	writeFile(t, root, "virtualenv/y.py", "x = 1\n")
	writeFile(t, root, "stubs/types.pyi", "x: int\n")

	files, err := Collect(context.Background(), root, Options{Extensions: []string{".py", ".pyi"}})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"main.py", "pkg/__init__.py", "pkg/a.py", "stubs/types.pyi"}
	if got := relPaths(files); !reflect.DeepEqual(got, want) {
		t.Errorf("files = %v, want %v", got, want)
	}
	for _, f := range files {
		if !filepath.IsAbs(f.Path) {
			t.Errorf("Path %q should be absolute", f.Path)
		}
	}
}

func TestCollectGitignore(t *testing.T) {
	t.Parallel()
	root := t.TempDir()

	writeFile(t, root, ".gitignore", "build/\ngenerated_*.py\n")
	writeFile(t, root, "app.py", "x = 1\n")
	writeFile(t, root, "build/out.py", "x = 1\n")
	writeFile(t, root, "generated_models.py", "x = 1\n")

	opts := Options{Extensions: []string{".py"}}
	all, err := Collect(context.Background(), root, opts)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("without gitignore got %v", relPaths(all))
	}

	opts.RespectGitignore = true
	kept, err := Collect(context.Background(), root, opts)
	if err != nil {
		t.Fatal(err)
	}
	if got := relPaths(kept); !reflect.DeepEqual(got, []string{"app.py"}) {
		t.Errorf("with gitignore got %v", got)
	}
}

func TestCollectMaxFileSize(t *testing.T) {
	t.Parallel()
	root := t.TempDir()

	writeFile(t, root, "small.py", "x = 1\n")
	writeFile(t, root, "big.py", strings.Repeat("x = 1\n", 100))

	files, err := Collect(context.Background(), root, Options{Extensions: []string{".py"}, MaxFileSize: 64})
	if err != nil {
		t.Fatal(err)
	}
	if got := relPaths(files); !reflect.DeepEqual(got, []string{"small.py"}) {
		t.Errorf("files = %v", got)
	}
}

func TestCollectSkipsSymlinks(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	outside := t.TempDir()

	writeFile(t, outside, "secret.py", "x = 1\n")
	writeFile(t, root, "real.py", "x = 1\n")
	if err := os.Symlink(filepath.Join(outside, "secret.py"), filepath.Join(root, "link.py")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	files, err := Collect(context.Background(), root, Options{Extensions: []string{".py"}})
	if err != nil {
		t.Fatal(err)
	}
	if got := relPaths(files); !reflect.DeepEqual(got, []string{"real.py"}) {
		t.Errorf("files = %v", got)
	}
}

func TestWalkCancelled(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "a.py", "x = 1\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Collect(ctx, root, Options{Extensions: []string{".py"}}); err == nil {
		t.Error("expected context error")
	}
}
