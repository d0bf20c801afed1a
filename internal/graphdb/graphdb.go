// Package graphdb is the narrow query interface to the property graph store.
package graphdb

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Client executes Cypher statements with named parameters.
type Client interface {
	// Run executes a statement in write access mode.
	Run(ctx context.Context, query string, params map[string]any) ([]Record, error)
	// Read executes a statement in read access mode. The server rejects
	// writes issued through it.
	Read(ctx context.Context, query string, params map[string]any) ([]Record, error)
}

// Record is one result row. Keys and Values are parallel and keep the column
// order of the RETURN clause.
type Record struct {
	Keys   []string
	Values []any
}

// Get returns the value of column key.
func (r Record) Get(key string) (any, bool) {
	for i, k := range r.Keys {
		if k == key {
			return r.Values[i], true
		}
	}
	return nil, false
}

// AsMap returns the record as a column → value map.
func (r Record) AsMap() map[string]any {
	m := make(map[string]any, len(r.Keys))
	for i, k := range r.Keys {
		m[k] = r.Values[i]
	}
	return m
}

// QueryError is a failure reported by the graph server.
type QueryError struct {
	Code    string
	Message string
}

func (e *QueryError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

// IsSyntaxError reports whether err is a Cypher syntax error from the server.
func IsSyntaxError(err error) bool {
	var qe *QueryError
	if !errors.As(err, &qe) {
		return false
	}
	return strings.HasSuffix(qe.Code, ".Statement.SyntaxError")
}

// IsClientError reports whether the server rejected the statement itself
// (syntax, semantics, access mode) rather than failing to run it.
func IsClientError(err error) bool {
	var qe *QueryError
	if !errors.As(err, &qe) {
		return false
	}
	return strings.HasPrefix(qe.Code, "Neo.ClientError.")
}
