// Package model defines the repository metadata document shared by the
// scanner, the graph loader and the indexer.
package model

import "fmt"

// MaxCommits is the number of most recent commits kept per repository.
const MaxCommits = 10

// Repository is the metadata document produced by one scan of a repository.
// It is keyed by Name; a re-scan replaces it wholesale.
type Repository struct {
	Name           string   `json:"name" bson:"name"`
	Path           string   `json:"path" bson:"path"`
	Files          []File   `json:"files" bson:"files"`
	Commits        []Commit `json:"commits" bson:"commits"`
	TotalFiles     int      `json:"total_files" bson:"total_files"`
	TotalFunctions int      `json:"total_functions" bson:"total_functions"`
	TotalClasses   int      `json:"total_classes" bson:"total_classes"`
}

// File is one parsed source file. FullPath is unique across the corpus and
// is the join key used by the graph.
type File struct {
	Path      string     `json:"path" bson:"path"`
	FullPath  string     `json:"full_path" bson:"full_path"`
	Lines     int        `json:"lines" bson:"lines"`
	Functions []Function `json:"functions" bson:"functions"`
	Classes   []Class    `json:"classes" bson:"classes"`
	Imports   []string   `json:"imports" bson:"imports"`
}

// Function is a function or method definition. A nil Docstring means the
// function has none; a pointer to "" means an empty docstring.
type Function struct {
	Name      string   `json:"name" bson:"name"`
	Line      int      `json:"line" bson:"line"`
	Args      []string `json:"args" bson:"args"`
	Docstring *string  `json:"docstring" bson:"docstring"`
	Calls     []string `json:"calls,omitempty" bson:"calls,omitempty"`
}

// Class is a class definition with the names of the methods defined
// directly in its body.
type Class struct {
	Name      string   `json:"name" bson:"name"`
	Line      int      `json:"line" bson:"line"`
	Methods   []string `json:"methods" bson:"methods"`
	Docstring *string  `json:"docstring" bson:"docstring"`
}

// Commit is a single entry of the repository history.
type Commit struct {
	SHA     string `json:"sha" bson:"sha"`
	Author  string `json:"author" bson:"author"`
	Date    string `json:"date" bson:"date"`
	Message string `json:"message" bson:"message"`
}

// Recount recomputes the precomputed totals from Files.
func (r *Repository) Recount() {
	r.TotalFiles = len(r.Files)
	r.TotalFunctions = 0
	r.TotalClasses = 0
	for i := range r.Files {
		r.TotalFunctions += len(r.Files[i].Functions)
		r.TotalClasses += len(r.Files[i].Classes)
	}
}

// FunctionNames returns the names of the functions defined in the file, in order.
func (f *File) FunctionNames() []string {
	names := make([]string, len(f.Functions))
	for i, fn := range f.Functions {
		names[i] = fn.Name
	}
	return names
}

// ClassNames returns the names of the classes defined in the file, in order.
func (f *File) ClassNames() []string {
	names := make([]string, len(f.Classes))
	for i, c := range f.Classes {
		names[i] = c.Name
	}
	return names
}

// FunctionID is the graph key of a function: two functions with the same
// name in the same file at different lines are distinct.
func FunctionID(fullPath, name string, line int) string {
	return fmt.Sprintf("%s::%s::%d", fullPath, name, line)
}

// ClassID is the graph key of a class.
func ClassID(fullPath, name string, line int) string {
	return fmt.Sprintf("%s::%s::%d", fullPath, name, line)
}

// ChunkID is the vector index id of the n-th chunk of a file. It is
// deterministic so a re-index overwrites the previous entry.
func ChunkID(repo, filePath string, n int) string {
	return fmt.Sprintf("%s::%s::chunk%d", repo, filePath, n)
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string { return &s }
