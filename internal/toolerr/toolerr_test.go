package toolerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{"plain", New(AccessDenied, "Access denied: Path traversal attempt detected"), "Access denied: Path traversal attempt detected"},
		{"formatted", Newf(NotFound, "File not found: %s", "a.py"), "File not found: a.py"},
		{"wrapped", Wrap(ExecutionFailed, "Error executing query", errors.New("boom")), "Error executing query: boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUnwrapAndCode(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused")
	err := fmt.Errorf("outer: %w", Wrap(Unavailable, "graph store", cause))

	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
	if CodeOf(err) != Unavailable {
		t.Errorf("CodeOf = %s, want %s", CodeOf(err), Unavailable)
	}
	if !Is(err, Unavailable) || Is(err, NotFound) {
		t.Error("Is reported the wrong code")
	}
	if CodeOf(errors.New("plain")) != Internal {
		t.Error("plain errors should map to Internal")
	}
	if Is(nil, Internal) {
		t.Error("nil should not match any code")
	}
}
