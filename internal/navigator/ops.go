package navigator

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"repoatlas/internal/toolerr"
)

// ListRepos lists the repository directories under the base, hidden ones
// excluded.
type ListRepos struct{}

// Repos is the result of ListRepos.
type Repos struct {
	Base  string
	Names []string
}

func (r *Repos) String() string {
	if len(r.Names) == 0 {
		return "No repositories found in " + r.Base
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Available repositories in %s:\n", r.Base)
	for _, name := range r.Names {
		fmt.Fprintf(&sb, "  - %s\n", name)
	}
	return sb.String()
}

func (ListRepos) exec(n *Navigator) (Result, error) {
	entries, err := os.ReadDir(n.base)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, toolerr.New(toolerr.NotFound, "Base path does not exist: "+n.base)
		}
		return nil, toolerr.Wrap(toolerr.Internal, "Error listing repositories", err)
	}
	res := &Repos{Base: n.base, Names: []string{}}
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			res.Names = append(res.Names, e.Name())
		}
	}
	return res, nil
}

// Tree renders the directory tree of a repository down to MaxDepth levels
// (DefaultTreeDepth when zero or negative). Symlinked directories are
// listed but not entered.
type Tree struct {
	Repo     string
	MaxDepth int
}

// TreeView is the result of Tree.
type TreeView struct {
	Repo  string
	Lines []string
}

func (t *TreeView) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Tree structure of %s:\n", t.Repo)
	for _, l := range t.Lines {
		sb.WriteString(l)
		sb.WriteByte('\n')
	}
	return sb.String()
}

func (op Tree) exec(n *Navigator) (Result, error) {
	dir, err := n.openRepo(op.Repo)
	if err != nil {
		return nil, err
	}
	depth := op.MaxDepth
	if depth <= 0 {
		depth = DefaultTreeDepth
	}

	view := &TreeView{Repo: op.Repo}
	buildTree(dir, "", 0, depth, &view.Lines)
	return view, nil
}

func buildTree(dir, prefix string, depth, maxDepth int, lines *[]string) {
	if depth >= maxDepth {
		return
	}
	entries, err := sortedEntries(dir)
	if err != nil {
		return
	}
	kept := entries[:0]
	for _, e := range entries {
		if !skipped(e.Name()) {
			kept = append(kept, e)
		}
	}
	for i, e := range kept {
		last := i == len(kept)-1
		branch, indent := "├── ", "│   "
		if last {
			branch, indent = "└── ", "    "
		}
		*lines = append(*lines, prefix+branch+e.Name())
		if e.IsDir() {
			buildTree(filepath.Join(dir, e.Name()), prefix+indent, depth+1, maxDepth, lines)
		}
	}
}

// sortedEntries reads dir with directories first, each group by name.
func sortedEntries(dir string) ([]fs.DirEntry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].IsDir() != entries[j].IsDir() {
			return entries[i].IsDir()
		}
		return entries[i].Name() < entries[j].Name()
	})
	return entries, nil
}

// ReadFile returns the text of a file, capped at MaxReadChars characters.
// Invalid UTF-8 is dropped.
type ReadFile struct {
	Repo string
	Path string
}

// FileContent is the result of ReadFile. TotalChars counts the whole file.
type FileContent struct {
	Path       string
	Content    string
	TotalChars int
	Truncated  bool
}

func (f *FileContent) String() string {
	if !f.Truncated {
		return "File: " + f.Path + "\n---\n" + f.Content
	}
	return fmt.Sprintf("File: %s\n(Showing first %d characters of %d total)\n---\n%s\n... (truncated)",
		f.Path, MaxReadChars, f.TotalChars, f.Content)
}

func (op ReadFile) exec(n *Navigator) (Result, error) {
	dir, err := n.openRepo(op.Repo)
	if err != nil {
		return nil, err
	}
	target, err := resolve(dir, op.Path)
	if err != nil {
		return nil, err
	}
	fi, err := os.Stat(target)
	if err != nil {
		return nil, toolerr.New(toolerr.NotFound, "File not found: "+op.Path)
	}
	if !fi.Mode().IsRegular() {
		return nil, toolerr.New(toolerr.InvalidInput, "Path is not a file: "+op.Path)
	}

	data, err := os.ReadFile(target)
	if err != nil {
		return nil, toolerr.Wrap(toolerr.Internal, "Error reading file", err)
	}
	text := strings.ToValidUTF8(string(data), "")
	res := &FileContent{Path: op.Path, Content: text, TotalChars: utf8.RuneCountInString(text)}
	if res.TotalChars > MaxReadChars {
		res.Content = string([]rune(text)[:MaxReadChars])
		res.Truncated = true
	}
	return res, nil
}

// SearchFiles finds files whose name contains Query (case-insensitive) and
// matches the glob Pattern (DefaultFilePattern when empty).
type SearchFiles struct {
	Repo    string
	Query   string
	Pattern string
}

// SearchMatches is the result of SearchFiles. Paths are slash-separated and
// relative to the repository.
type SearchMatches struct {
	Repo    string
	Query   string
	Matches []string
}

func (s *SearchMatches) String() string {
	switch {
	case len(s.Matches) == 0:
		return fmt.Sprintf("No files found matching '%s' in %s", s.Query, s.Repo)
	case len(s.Matches) > MaxSearchResults:
		return fmt.Sprintf("Found %d files matching '%s' in %s.\nShowing first %d results:\n%s\n... and %d more",
			len(s.Matches), s.Query, s.Repo, MaxSearchResults,
			strings.Join(s.Matches[:MaxSearchResults], "\n"), len(s.Matches)-MaxSearchResults)
	default:
		return fmt.Sprintf("Found %d files matching '%s' in %s:\n%s",
			len(s.Matches), s.Query, s.Repo, strings.Join(s.Matches, "\n"))
	}
}

func (op SearchFiles) exec(n *Navigator) (Result, error) {
	dir, err := n.existingRepo(op.Repo, "Repository '"+op.Repo+"' not found")
	if err != nil {
		return nil, err
	}
	pattern := op.Pattern
	if pattern == "" {
		pattern = DefaultFilePattern
	}
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, toolerr.Wrap(toolerr.InvalidInput, "Invalid file pattern", err)
	}
	query := strings.ToLower(op.Query)

	res := &SearchMatches{Repo: op.Repo, Query: op.Query}
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != dir && skipped(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		name := d.Name()
		if ok, _ := filepath.Match(pattern, name); !ok {
			return nil
		}
		if !strings.Contains(strings.ToLower(name), query) {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return nil
		}
		res.Matches = append(res.Matches, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, toolerr.Wrap(toolerr.Internal, "Error searching files", err)
	}
	return res, nil
}

// ListDir lists the immediate entries of a directory, "." when Dir is empty.
type ListDir struct {
	Repo string
	Dir  string
}

// DirEntry is one entry of a Listing. Size is zero for directories.
type DirEntry struct {
	Name  string
	IsDir bool
	Size  int64
}

// Listing is the result of ListDir.
type Listing struct {
	Dir     string
	Entries []DirEntry
}

func (l *Listing) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Contents of %s:\n", l.Dir)
	for _, e := range l.Entries {
		if e.IsDir {
			fmt.Fprintf(&sb, "  [DIR]  %s/\n", e.Name)
		} else {
			fmt.Fprintf(&sb, "  [FILE] %s (%d bytes)\n", e.Name, e.Size)
		}
	}
	return sb.String()
}

func (op ListDir) exec(n *Navigator) (Result, error) {
	rel := op.Dir
	if rel == "" {
		rel = "."
	}
	dir, err := n.openRepo(op.Repo)
	if err != nil {
		return nil, err
	}
	target, err := resolve(dir, rel)
	if err != nil {
		return nil, err
	}
	fi, err := os.Stat(target)
	if err != nil {
		return nil, toolerr.New(toolerr.NotFound, "Directory not found: "+rel)
	}
	if !fi.IsDir() {
		return nil, toolerr.New(toolerr.InvalidInput, "Path is not a directory: "+rel)
	}

	entries, err := sortedEntries(target)
	if err != nil {
		return nil, toolerr.Wrap(toolerr.Internal, "Error listing directory", err)
	}
	res := &Listing{Dir: rel, Entries: make([]DirEntry, 0, len(entries))}
	for _, e := range entries {
		de := DirEntry{Name: e.Name(), IsDir: e.IsDir()}
		if !de.IsDir {
			if info, err := e.Info(); err == nil {
				de.Size = info.Size()
			}
		}
		res.Entries = append(res.Entries, de)
	}
	return res, nil
}

// FileExists reports whether Path exists in the repository and whether it
// is a file or a directory.
type FileExists struct {
	Repo string
	Path string
}

// FileStatus is the result of FileExists.
type FileStatus struct {
	Path   string
	Exists bool
	IsDir  bool
	Size   int64
}

func (f *FileStatus) String() string {
	switch {
	case !f.Exists:
		return "File does not exist: " + f.Path
	case f.IsDir:
		return "Path exists but is a directory: " + f.Path
	default:
		return fmt.Sprintf("File exists: %s (%d bytes)", f.Path, f.Size)
	}
}

func (op FileExists) exec(n *Navigator) (Result, error) {
	dir, err := n.openRepo(op.Repo)
	if err != nil {
		return nil, err
	}
	target, err := resolve(dir, op.Path)
	if err != nil {
		return nil, err
	}
	res := &FileStatus{Path: op.Path}
	fi, err := os.Stat(target)
	if err != nil {
		return res, nil
	}
	res.Exists = true
	res.IsDir = fi.IsDir()
	if !res.IsDir {
		res.Size = fi.Size()
	}
	return res, nil
}
