package index

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"repoatlas/internal/chunker"
	"repoatlas/internal/model"
	"repoatlas/internal/vectorstore"
)

// letterEmbedder maps text to letter frequencies, so identical texts share
// a vector and unrelated texts diverge.
type letterEmbedder struct {
	mu     sync.Mutex
	model  string
	calls  [][]string
	failOn int // 1-based call number that fails; 0 never
}

func (e *letterEmbedder) Model() string { return e.model }

func (e *letterEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, append([]string(nil), texts...))
	if e.failOn == len(e.calls) {
		return nil, errors.New("provider unavailable")
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, 27)
		v[26] = 0.01
		for _, r := range strings.ToLower(t) {
			if r >= 'a' && r <= 'z' {
				v[r-'a']++
			}
		}
		out[i] = v
	}
	return out, nil
}

func (e *letterEmbedder) embedded() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, c := range e.calls {
		n += len(c)
	}
	return n
}

func newTestIndexer(t *testing.T, emb *letterEmbedder, opts Options) (*Indexer, *vectorstore.Collection) {
	t.Helper()
	store, err := vectorstore.Open(filepath.Join(t.TempDir(), "vectors.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	coll, err := store.Collection(context.Background(), "code_chunks")
	if err != nil {
		t.Fatal(err)
	}
	ix, err := New(coll, emb, opts)
	if err != nil {
		t.Fatal(err)
	}
	return ix, coll
}

func writeRepo(t *testing.T, files map[string]string) *model.Repository {
	t.Helper()
	root := t.TempDir()
	repo := &model.Repository{Name: "demo", Path: root}
	for _, rel := range sortedKeys(files) {
		full := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(files[rel]), 0o644); err != nil {
			t.Fatal(err)
		}
		repo.Files = append(repo.Files, model.File{
			Path:      rel,
			FullPath:  full,
			Functions: []model.Function{{Name: "alpha", Line: 1}, {Name: "beta", Line: 5}},
			Classes:   []model.Class{{Name: "Gamma", Line: 9}},
		})
	}
	repo.Recount()
	return repo
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func TestAddDocumentsBatches(t *testing.T) {
	t.Parallel()
	emb := &letterEmbedder{model: "m"}
	ix, coll := newTestIndexer(t, emb, Options{BatchSize: 2})

	docs := []Document{
		{ID: "1", Text: "  padded text  "},
		{ID: "2", Text: "   "},
		{ID: "3", Text: "third"},
	}
	if err := ix.AddDocuments(context.Background(), docs); err != nil {
		t.Fatalf("AddDocuments: %v", err)
	}

	if len(emb.calls) != 2 || len(emb.calls[0]) != 2 || len(emb.calls[1]) != 1 {
		t.Fatalf("batches = %v", emb.calls)
	}
	if emb.calls[0][0] != "padded text" || emb.calls[0][1] != " " {
		t.Errorf("embedded texts = %q", emb.calls[0])
	}
	got, err := coll.Get(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if got.Len() != 3 || got.Documents[0] != "  padded text  " {
		t.Errorf("stored = %+v", got)
	}
}

func TestAddDocumentsFailureKeepsEarlierBatches(t *testing.T) {
	t.Parallel()
	emb := &letterEmbedder{model: "m", failOn: 2}
	ix, coll := newTestIndexer(t, emb, Options{BatchSize: 1})

	err := ix.AddDocuments(context.Background(), []Document{{ID: "1", Text: "a"}, {ID: "2", Text: "b"}})
	if err == nil || !strings.Contains(err.Error(), "batch 2/2") || !strings.Contains(err.Error(), "provider unavailable") {
		t.Fatalf("err = %v", err)
	}
	got, _ := coll.Get(context.Background(), nil)
	if got.Len() != 1 || got.IDs[0] != "1" {
		t.Errorf("stored after failure = %v", got.IDs)
	}
}

func TestIndexRepositoryAndQuery(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	emb := &letterEmbedder{model: "m"}
	ix, coll := newTestIndexer(t, emb, Options{Chunk: chunker.Options{Size: 40, Overlap: 10}, Workers: 2})

	repo := writeRepo(t, map[string]string{
		"pkg/util.py": "def alpha():\n    return 1\n\ndef beta():\n    return 2\n",
		"main.py":     "import os\nprint(os.getcwd())\n",
		"zzz.py":      "quantum zebra xylophone",
	})

	stats, err := ix.IndexRepository(ctx, repo)
	if err != nil {
		t.Fatalf("IndexRepository: %v", err)
	}
	if stats.Files != 3 || stats.FilesIndexed != 3 || stats.Chunks == 0 {
		t.Errorf("stats = %+v", stats)
	}

	hits, err := ix.Query(ctx, "quantum zebra xylophone", 3, nil)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(hits) == 0 || hits[0].ID != "demo::zzz.py::chunk0" {
		t.Fatalf("top hit = %+v", hits)
	}
	md := hits[0].Metadata
	if md["repo"] != "demo" || md["file"] != "zzz.py" || md["functions"] != "alpha,beta" || md["classes"] != "Gamma" {
		t.Errorf("metadata = %v", md)
	}
	if hits[0].Distance > 1e-4 {
		t.Errorf("distance for identical text = %f", hits[0].Distance)
	}
	for i := 1; i < len(hits); i++ {
		if hits[i].Distance < hits[i-1].Distance {
			t.Errorf("hits not ordered: %v", hits)
		}
	}

	if m, _ := coll.Model(ctx); m != "m" {
		t.Errorf("collection model = %q", m)
	}

	filtered, err := ix.Query(ctx, "alpha", 10, map[string]string{"file": "main.py"})
	if err != nil {
		t.Fatal(err)
	}
	for _, h := range filtered {
		if h.Metadata["file"] != "main.py" {
			t.Errorf("filtered hit from %v", h.Metadata["file"])
		}
	}
}

func TestIndexRepositorySkipsUnchangedAndPrunes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	emb := &letterEmbedder{model: "m"}
	ix, coll := newTestIndexer(t, emb, Options{})

	repo := writeRepo(t, map[string]string{"a.py": "x = 1\n", "b.py": "y = 2\n"})
	if _, err := ix.IndexRepository(ctx, repo); err != nil {
		t.Fatal(err)
	}
	first := emb.embedded()

	stats, err := ix.IndexRepository(ctx, repo)
	if err != nil {
		t.Fatal(err)
	}
	if stats.FilesUnchanged != 2 || emb.embedded() != first {
		t.Errorf("re-run stats = %+v, embedded %d -> %d", stats, first, emb.embedded())
	}

	if err := os.WriteFile(repo.Files[0].FullPath, []byte("x = 42\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	repo.Files = repo.Files[:1]
	stats, err = ix.IndexRepository(ctx, repo)
	if err != nil {
		t.Fatal(err)
	}
	if stats.FilesIndexed != 1 || stats.StaleRemoved != 1 {
		t.Errorf("changed stats = %+v", stats)
	}
	ids, _ := coll.Get(ctx, map[string]string{"repo": "demo"})
	if ids.Len() != 1 || ids.IDs[0] != "demo::a.py::chunk0" || ids.Documents[0] != "x = 42\n" {
		t.Errorf("remaining = %+v", ids)
	}
}

func TestIndexRepositoryUnreadableFile(t *testing.T) {
	t.Parallel()
	emb := &letterEmbedder{model: "m"}
	ix, _ := newTestIndexer(t, emb, Options{})

	repo := writeRepo(t, map[string]string{"a.py": "x = 1\n"})
	repo.Files = append(repo.Files, model.File{Path: "gone.py", FullPath: filepath.Join(repo.Path, "gone.py")})

	stats, err := ix.IndexRepository(context.Background(), repo)
	if err != nil {
		t.Fatal(err)
	}
	if stats.FilesSkipped != 1 || stats.FilesIndexed != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestCheckModelMismatch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ix, coll := newTestIndexer(t, &letterEmbedder{model: "new"}, Options{})
	if err := coll.SetModel(ctx, "old"); err != nil {
		t.Fatal(err)
	}

	ok, err := ix.CheckModel(ctx)
	if err != nil || ok {
		t.Errorf("CheckModel = %v, %v; want false", ok, err)
	}
}

func TestIndexRepositoryModelChangeSettles(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	oldIx, coll := newTestIndexer(t, &letterEmbedder{model: "old"}, Options{})

	demo := writeRepo(t, map[string]string{"a.py": "x = 1\n", "b.py": "y = 2\n"})
	other := writeRepo(t, map[string]string{"c.py": "z = 3\n"})
	other.Name = "other"
	for _, repo := range []*model.Repository{demo, other} {
		if _, err := oldIx.IndexRepository(ctx, repo); err != nil {
			t.Fatal(err)
		}
	}

	emb := &letterEmbedder{model: "new"}
	ix, err := New(coll, emb, Options{})
	if err != nil {
		t.Fatal(err)
	}

	stats, err := ix.IndexRepository(ctx, demo)
	if err != nil {
		t.Fatal(err)
	}
	if stats.FilesIndexed != 2 || stats.FilesUnchanged != 0 {
		t.Errorf("first run with new model = %+v", stats)
	}
	if m, _ := coll.Model(ctx); m != "old" {
		t.Errorf("model = %q while other still holds old vectors", m)
	}

	stats, err = ix.IndexRepository(ctx, demo)
	if err != nil {
		t.Fatal(err)
	}
	if stats.FilesUnchanged != 2 || stats.FilesIndexed != 0 {
		t.Errorf("second run with new model = %+v", stats)
	}

	if _, err := ix.IndexRepository(ctx, other); err != nil {
		t.Fatal(err)
	}
	if m, _ := coll.Model(ctx); m != "new" {
		t.Errorf("model = %q after every chunk was re-embedded, want new", m)
	}
	if ok, err := ix.CheckModel(ctx); err != nil || !ok {
		t.Errorf("CheckModel after settling = %v, %v", ok, err)
	}

	before := emb.embedded()
	stats, err = ix.IndexRepository(ctx, other)
	if err != nil {
		t.Fatal(err)
	}
	if stats.FilesUnchanged != 1 || emb.embedded() != before {
		t.Errorf("settled re-run = %+v, embedded %d -> %d", stats, before, emb.embedded())
	}
}

func TestNewRejectsBadChunkOptions(t *testing.T) {
	t.Parallel()
	if _, err := New(nil, &letterEmbedder{}, Options{Chunk: chunker.Options{Size: 10, Overlap: 20}}); err == nil {
		t.Error("expected error")
	}
}
