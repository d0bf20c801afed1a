package model

import "testing"

func TestFunctionIDUnique(t *testing.T) {
	t.Parallel()

	repo := Repository{
		Files: []File{
			{FullPath: "/r/a.py", Functions: []Function{{Name: "run", Line: 1}, {Name: "run", Line: 10}}},
			{FullPath: "/r/b.py", Functions: []Function{{Name: "run", Line: 1}}},
		},
	}

	seen := make(map[string]bool)
	for _, f := range repo.Files {
		for _, fn := range f.Functions {
			id := FunctionID(f.FullPath, fn.Name, fn.Line)
			if seen[id] {
				t.Fatalf("duplicate function id %q", id)
			}
			seen[id] = true
		}
	}
	if len(seen) != 3 {
		t.Errorf("expected 3 ids, got %d", len(seen))
	}
}

func TestIDFormats(t *testing.T) {
	t.Parallel()

	if got := FunctionID("/r/a.py", "run", 3); got != "/r/a.py::run::3" {
		t.Errorf("FunctionID = %q", got)
	}
	if got := ClassID("/r/a.py", "Runner", 7); got != "/r/a.py::Runner::7" {
		t.Errorf("ClassID = %q", got)
	}
	if got := ChunkID("demo", "pkg/a.py", 2); got != "demo::pkg/a.py::chunk2" {
		t.Errorf("ChunkID = %q", got)
	}
}

func TestRecount(t *testing.T) {
	t.Parallel()

	r := Repository{
		Files: []File{
			{Functions: []Function{{Name: "a"}, {Name: "b"}}, Classes: []Class{{Name: "C"}}},
			{Functions: []Function{{Name: "c"}}},
		},
		TotalFunctions: 99,
	}
	r.Recount()
	if r.TotalFiles != 2 || r.TotalFunctions != 3 || r.TotalClasses != 1 {
		t.Errorf("totals = %d/%d/%d, want 2/3/1", r.TotalFiles, r.TotalFunctions, r.TotalClasses)
	}
}
