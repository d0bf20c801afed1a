package graph

import (
	"context"
	"fmt"
	"strings"

	"repoatlas/internal/graphdb"
)

type edge struct {
	typ, from, to string
}

// memGraph interprets the loader's statements against an in-memory graph so
// upsert semantics can be checked without a server. Node keys are
// "Label:key".
type memGraph struct {
	nodes      map[string]map[string]any
	edges      map[edge]bool
	statements int
	// dropFiles makes mergeFile a no-op to simulate a missing File node.
	dropFiles bool
	failOn    string
}

var _ graphdb.Client = (*memGraph)(nil)

func newMemGraph() *memGraph {
	return &memGraph{nodes: map[string]map[string]any{}, edges: map[edge]bool{}}
}

func (g *memGraph) Read(ctx context.Context, q string, p map[string]any) ([]graphdb.Record, error) {
	return g.Run(ctx, q, p)
}

func count(col string, n int) []graphdb.Record {
	return []graphdb.Record{{Keys: []string{col}, Values: []any{int64(n)}}}
}

func (g *memGraph) merge(key string, props map[string]any) {
	n, ok := g.nodes[key]
	if !ok {
		n = map[string]any{}
		g.nodes[key] = n
	}
	for k, v := range props {
		n[k] = v
	}
}

func (g *memGraph) detach(key string) {
	delete(g.nodes, key)
	for e := range g.edges {
		if e.from == key || e.to == key {
			delete(g.edges, e)
		}
	}
}

func (g *memGraph) targets(from, typ string) []string {
	var out []string
	for e := range g.edges {
		if e.from == from && e.typ == typ {
			out = append(out, e.to)
		}
	}
	return out
}

func (g *memGraph) repoFunctions(repo string) []string {
	var out []string
	for _, f := range g.targets("Repository:"+repo, "CONTAINS") {
		for _, d := range g.targets(f, "DEFINES") {
			if strings.HasPrefix(d, "Function:") {
				out = append(out, d)
			}
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (g *memGraph) Run(_ context.Context, q string, p map[string]any) ([]graphdb.Record, error) {
	g.statements++
	if g.failOn != "" && strings.Contains(q, g.failOn) {
		return nil, fmt.Errorf("injected failure")
	}
	for _, c := range constraints {
		if q == c {
			return nil, nil
		}
	}

	switch q {
	case mergeRepository:
		g.merge("Repository:"+p["name"].(string), map[string]any{"path": p["path"], "total_files": p["total_files"]})

	case mergeFile:
		repo := "Repository:" + p["repo"].(string)
		if _, ok := g.nodes[repo]; !ok || g.dropFiles {
			return nil, nil
		}
		file := "File:" + p["full_path"].(string)
		g.merge(file, map[string]any{"path": p["path"], "lines": p["lines"]})
		g.edges[edge{"CONTAINS", repo, file}] = true

	case mergeFunctions, mergeClasses:
		file := "File:" + p["full_path"].(string)
		if _, ok := g.nodes[file]; !ok {
			return count("loaded", 0), nil
		}
		label, param := "Function:", "functions"
		if q == mergeClasses {
			label, param = "Class:", "classes"
		}
		defs := p[param].([]map[string]any)
		for _, d := range defs {
			key := label + d["id"].(string)
			g.merge(key, d)
			g.edges[edge{"DEFINES", file, key}] = true
		}
		return count("loaded", len(defs)), nil

	case pruneImports:
		file := "File:" + p["full_path"].(string)
		keep := p["modules"].([]string)
		for _, m := range g.targets(file, "IMPORTS") {
			if !contains(keep, strings.TrimPrefix(m, "Module:")) {
				delete(g.edges, edge{"IMPORTS", file, m})
			}
		}

	case mergeImports:
		file := "File:" + p["full_path"].(string)
		if _, ok := g.nodes[file]; !ok {
			return nil, nil
		}
		for _, m := range p["modules"].([]string) {
			g.merge("Module:"+m, map[string]any{"name": m})
			g.edges[edge{"IMPORTS", file, "Module:" + m}] = true
		}

	case mergeCommits:
		repo := "Repository:" + p["repo"].(string)
		for _, c := range p["commits"].([]map[string]any) {
			key := "Commit:" + c["sha"].(string)
			g.merge(key, c)
			g.edges[edge{"HAS_COMMIT", repo, key}] = true
		}

	case clearCalls:
		for _, fn := range g.repoFunctions(p["repo"].(string)) {
			for _, to := range g.targets(fn, "CALLS") {
				delete(g.edges, edge{"CALLS", fn, to})
			}
		}

	case mergeCalls:
		fns := g.repoFunctions(p["repo"].(string))
		n := 0
		for _, call := range p["calls"].([]map[string]any) {
			caller := "Function:" + call["caller"].(string)
			if _, ok := g.nodes[caller]; !ok {
				continue
			}
			for _, callee := range fns {
				if g.nodes[callee]["name"] == call["callee"] {
					g.edges[edge{"CALLS", caller, callee}] = true
					n++
				}
			}
		}
		return count("edges", n), nil

	case pruneDefinitions:
		keep := p["ids"].([]string)
		removed := 0
		for _, f := range g.targets("Repository:"+p["repo"].(string), "CONTAINS") {
			for _, d := range g.targets(f, "DEFINES") {
				id := d[strings.Index(d, ":")+1:]
				if !contains(keep, id) {
					g.detach(d)
					removed++
				}
			}
		}
		return count("removed", removed), nil

	case pruneFiles:
		keep := p["paths"].([]string)
		removed := 0
		for _, f := range g.targets("Repository:"+p["repo"].(string), "CONTAINS") {
			if contains(keep, strings.TrimPrefix(f, "File:")) {
				continue
			}
			for _, d := range g.targets(f, "DEFINES") {
				g.detach(d)
			}
			g.detach(f)
			removed++
		}
		return count("removed", removed), nil

	case pruneCommits:
		repo := "Repository:" + p["repo"].(string)
		keep := p["shas"].([]string)
		removed := 0
		for _, c := range g.targets(repo, "HAS_COMMIT") {
			if contains(keep, strings.TrimPrefix(c, "Commit:")) {
				continue
			}
			delete(g.edges, edge{"HAS_COMMIT", repo, c})
			shared := false
			for e := range g.edges {
				if e.typ == "HAS_COMMIT" && e.to == c {
					shared = true
				}
			}
			if !shared {
				g.detach(c)
				removed++
			}
		}
		return count("removed", removed), nil

	default:
		return nil, fmt.Errorf("unexpected statement: %s", q)
	}
	return nil, nil
}

func (g *memGraph) countLabel(label string) int {
	n := 0
	for k := range g.nodes {
		if strings.HasPrefix(k, label+":") {
			n++
		}
	}
	return n
}

func (g *memGraph) countEdges(typ string) int {
	n := 0
	for e := range g.edges {
		if e.typ == typ {
			n++
		}
	}
	return n
}
