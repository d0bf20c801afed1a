package scanner

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"repoatlas/internal/model"
)

const (
	fieldSep  = "\x1f"
	recordSep = "\x1e"
)

// RecentCommits returns up to limit commits reachable from HEAD, newest
// first. Dates are the committer dates in strict ISO-8601. Only a
// repository rooted at root counts; enclosing repositories are not searched.
func RecentCommits(ctx context.Context, root string, limit int, timeout time.Duration) ([]model.Commit, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd, err := gitAt(ctx, root, "log",
		"-n", strconv.Itoa(limit),
		"--format=%H"+fieldSep+"%an"+fieldSep+"%cI"+fieldSep+"%B"+recordSep,
	)
	if err != nil {
		return nil, err
	}
	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("git log timed out after %s", timeout)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("git log: %s", strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("git log: %w", err)
	}
	return parseLog(string(out)), nil
}

// gitAt builds a git command that runs in root and stops repository
// discovery at root's parent.
func gitAt(ctx context.Context, root string, args ...string) (*exec.Cmd, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = abs
	cmd.Env = append(os.Environ(), "GIT_CEILING_DIRECTORIES="+filepath.Dir(abs))
	return cmd, nil
}

func parseLog(out string) []model.Commit {
	commits := []model.Commit{}
	for _, rec := range strings.Split(out, recordSep) {
		rec = strings.TrimLeft(rec, "\r\n")
		if strings.TrimSpace(rec) == "" {
			continue
		}
		parts := strings.SplitN(rec, fieldSep, 4)
		if len(parts) != 4 {
			continue
		}
		commits = append(commits, model.Commit{
			SHA:     parts[0],
			Author:  parts[1],
			Date:    parts[2],
			Message: strings.TrimSpace(parts[3]),
		})
	}
	return commits
}

// RepoNameFromURL derives the repository name from a clone URL: the last path
// element without a trailing ".git".
func RepoNameFromURL(rawURL string) (string, error) {
	p := strings.TrimSpace(rawURL)
	if u, err := url.Parse(p); err == nil && u.Scheme != "" && u.Host != "" {
		p = u.Path
	} else if i := strings.Index(p, ":"); i > 0 && !strings.Contains(p[:i], "/") {
		// scp-like syntax: git@host:owner/name.git
		p = p[i+1:]
	}
	p = strings.TrimRight(p, "/")
	name := strings.TrimSuffix(path.Base(p), ".git")
	if name == "" || name == "." || name == "/" || name == ".." {
		return "", fmt.Errorf("cannot derive repository name from %q", rawURL)
	}
	return name, nil
}

// Clone clones url into reposDir/<name> unless that directory already exists,
// and returns the checkout path and name.
func Clone(ctx context.Context, rawURL, reposDir string, timeout time.Duration) (string, string, error) {
	name, err := RepoNameFromURL(rawURL)
	if err != nil {
		return "", "", err
	}
	dest := filepath.Join(reposDir, name)
	if _, err := os.Stat(dest); err == nil {
		return dest, name, nil
	}
	if err := os.MkdirAll(reposDir, 0o755); err != nil {
		return "", "", fmt.Errorf("create repos dir: %w", err)
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, "git", "clone", "--", rawURL, dest)
	if out, err := cmd.CombinedOutput(); err != nil {
		_ = os.RemoveAll(dest)
		return "", "", fmt.Errorf("git clone %s: %w: %s", rawURL, err, strings.TrimSpace(string(out)))
	}
	return dest, name, nil
}
