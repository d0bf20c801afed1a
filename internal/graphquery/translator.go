// Package graphquery turns natural-language questions into Cypher, runs
// them against the code graph and renders the rows as text.
package graphquery

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"repoatlas/internal/graphdb"
	"repoatlas/internal/llm"
	"repoatlas/internal/logging"
	"repoatlas/internal/toolerr"
)

// DefaultMaxResults caps the records rendered by Format.
const DefaultMaxResults = 100

var (
	leadingFence  = regexp.MustCompile("^```(?:cypher)?\\s*")
	trailingFence = regexp.MustCompile("\\s*```$")
)

// Options configures a Translator.
type Options struct {
	MaxResults int
	Logger     *slog.Logger
}

// Translator answers structural questions about ingested repositories. It
// holds no per-request state and is safe for concurrent use.
type Translator struct {
	client graphdb.Client
	gen    llm.Generator
	max    int
	log    *slog.Logger
}

// New creates a Translator. gen may be nil, in which case only direct
// queries are available.
func New(client graphdb.Client, gen llm.Generator, opts Options) *Translator {
	if opts.MaxResults <= 0 {
		opts.MaxResults = DefaultMaxResults
	}
	return &Translator{client: client, gen: gen, max: opts.MaxResults, log: logging.OrDiscard(opts.Logger)}
}

// Schema returns the graph schema description used to ground generation.
func Schema() string { return schemaText }

// Prompt builds the generation prompt for question.
func Prompt(question string) string {
	return fmt.Sprintf(promptTemplate, schemaText, question)
}

// Clean removes surrounding whitespace and a markdown code fence.
func Clean(q string) string {
	q = strings.TrimSpace(q)
	q = leadingFence.ReplaceAllString(q, "")
	q = trailingFence.ReplaceAllString(q, "")
	return strings.TrimSpace(q)
}

// Result is the outcome of one executed query.
type Result struct {
	Query   string
	Records []graphdb.Record
}

// Generate asks the model for a Cypher query answering question.
func (t *Translator) Generate(ctx context.Context, question string) (string, error) {
	if t.gen == nil {
		return "", toolerr.New(toolerr.Unavailable, "no text-generation model configured")
	}
	if strings.TrimSpace(question) == "" {
		return "", toolerr.New(toolerr.InvalidInput, "question must be a non-empty string")
	}

	t.log.Debug("generating query", "question", truncate(question, 100))
	out, err := t.gen.Generate(ctx, Prompt(question))
	if err != nil {
		return "", toolerr.Wrap(toolerr.GenerationFailed, "generate query", err)
	}
	q := Clean(out)
	if q == "" {
		return "", toolerr.New(toolerr.GenerationFailed, "model returned an empty query")
	}
	t.log.Debug("generated query", "query", truncate(q, 200))
	return q, nil
}

// Run cleans and executes query in read access mode.
func (t *Translator) Run(ctx context.Context, query string) (*Result, error) {
	q := Clean(query)
	if q == "" {
		return nil, toolerr.New(toolerr.InvalidInput, "Invalid query. Query must be a non-empty string.")
	}

	t.log.Debug("executing query", "query", truncate(q, 300))
	records, err := t.client.Read(ctx, q, nil)
	if err != nil {
		return nil, toolerr.Wrap(toolerr.ExecutionFailed, "execute query", err)
	}
	t.log.Debug("query complete", "records", len(records))
	return &Result{Query: q, Records: records}, nil
}

// Ask generates a query for question, runs it and formats the rows. Errors
// are rendered as text.
func (t *Translator) Ask(ctx context.Context, question string) string {
	q, err := t.Generate(ctx, question)
	if err != nil {
		t.log.Warn("query generation failed", "err", err)
		return "Error generating and executing query: " + err.Error()
	}
	res, err := t.Run(ctx, q)
	if err != nil {
		t.log.Warn("generated query failed", "query", q, "err", err)
		return "Error generating and executing query: " + err.Error()
	}
	return Format(res, t.max)
}

// Execute runs a caller-supplied query and formats the rows. Errors are
// rendered as text.
func (t *Translator) Execute(ctx context.Context, query string) string {
	res, err := t.Run(ctx, query)
	if err != nil {
		if toolerr.Is(err, toolerr.InvalidInput) {
			return "Error: " + err.Error()
		}
		t.log.Warn("query failed", "err", err)
		return "Error executing query: " + err.Error()
	}
	return Format(res, t.max)
}

var clauseKeywords = []string{"MATCH", "CREATE", "MERGE", "DELETE"}

// Validate checks query syntax with EXPLAIN. When the server rejects the
// EXPLAIN form for a reason other than syntax, the query is executed
// directly in read mode instead. The check is advisory.
func (t *Translator) Validate(ctx context.Context, query string) string {
	q := Clean(query)
	if q == "" {
		return "Error: Empty query"
	}
	upper := strings.ToUpper(q)
	found := false
	for _, kw := range clauseKeywords {
		if strings.Contains(upper, kw) {
			found = true
			break
		}
	}
	if !found {
		return "Error: Query must start with a Cypher operation keyword (MATCH, CREATE, MERGE, DELETE)"
	}

	_, err := t.client.Read(ctx, "EXPLAIN "+q, nil)
	if err == nil {
		return "Query syntax is valid."
	}
	if graphdb.IsSyntaxError(err) {
		return "Query validation error: " + err.Error()
	}
	t.log.Debug("explain failed, executing directly", "err", err)
	if _, err := t.client.Read(ctx, q, nil); err != nil {
		return "Query validation error: " + err.Error()
	}
	return "Query syntax is valid."
}

// ListRepositories summarises every Repository node.
func (t *Translator) ListRepositories(ctx context.Context) string {
	records, err := t.client.Read(ctx, listRepositoriesQuery, nil)
	if err != nil {
		t.log.Warn("list repositories failed", "err", err)
		return "Error listing repositories: " + err.Error()
	}
	if len(records) == 0 {
		return "No repositories found in the database."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d repository(ies):\n", len(records))
	for _, r := range records {
		m := r.AsMap()
		fmt.Fprintf(&sb, "  - %s: %s files, %s functions, %s classes\n",
			FormatValue(m["name"]), FormatValue(m["files"]), FormatValue(m["functions"]), FormatValue(m["classes"]))
	}
	return sb.String()
}

// RepositoryInfo describes one repository, with its commit count.
func (t *Translator) RepositoryInfo(ctx context.Context, name string) string {
	if strings.TrimSpace(name) == "" {
		return "Error: repository name is required."
	}
	records, err := t.client.Read(ctx, repositoryInfoQuery, map[string]any{"name": name})
	if err != nil {
		t.log.Warn("repository info failed", "repo", name, "err", err)
		return "Error getting repository info: " + err.Error()
	}
	if len(records) == 0 {
		return fmt.Sprintf("Repository '%s' not found.", name)
	}

	m := records[0].AsMap()
	var sb strings.Builder
	fmt.Fprintf(&sb, "Repository: %s\n", FormatValue(m["name"]))
	fmt.Fprintf(&sb, "  Path: %s\n", FormatValue(m["path"]))
	fmt.Fprintf(&sb, "  Total Files: %s\n", FormatValue(m["total_files"]))
	fmt.Fprintf(&sb, "  Total Functions: %s\n", FormatValue(m["total_functions"]))
	fmt.Fprintf(&sb, "  Total Classes: %s\n", FormatValue(m["total_classes"]))
	fmt.Fprintf(&sb, "  Commits: %s\n", FormatValue(m["commits"]))
	return sb.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
