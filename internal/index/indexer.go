// Package index chunks repository files, embeds the chunks and serves
// similarity search over them.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"repoatlas/internal/chunker"
	"repoatlas/internal/embedder"
	"repoatlas/internal/logging"
	"repoatlas/internal/vectorstore"
)

// DefaultBatchSize is the number of documents embedded per provider call.
const DefaultBatchSize = 50

// Collection is the subset of vectorstore.Collection the indexer needs.
type Collection interface {
	Add(ctx context.Context, req vectorstore.AddRequest) error
	Query(ctx context.Context, vector []float32, k int, where map[string]string) (*vectorstore.QueryResult, error)
	Get(ctx context.Context, where map[string]string) (*vectorstore.QueryResult, error)
	Delete(ctx context.Context, ids []string) error
	Model(ctx context.Context) (string, error)
	SetModel(ctx context.Context, model string) error
}

// Document is one text to embed and store.
type Document struct {
	ID       string
	Text     string
	Metadata vectorstore.Metadata
}

// Hit is a search result.
type Hit struct {
	ID       string
	Text     string
	Metadata vectorstore.Metadata
	Distance float64
}

// Options configures an Indexer. Zero values take the defaults.
type Options struct {
	Chunk     chunker.Options
	BatchSize int
	// Workers bounds the goroutines reading and chunking files.
	Workers int
	// Force re-embeds files whose content is unchanged since the last run.
	Force  bool
	Logger *slog.Logger
}

// Indexer is the public API for indexing and searching chunk embeddings.
type Indexer struct {
	coll Collection
	emb  embedder.Embedder
	opts Options
	log  *slog.Logger
}

// New creates an Indexer writing to coll with embeddings from emb.
func New(coll Collection, emb embedder.Embedder, opts Options) (*Indexer, error) {
	if opts.Chunk == (chunker.Options{}) {
		opts.Chunk = chunker.DefaultOptions()
	}
	if err := opts.Chunk.Validate(); err != nil {
		return nil, err
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	return &Indexer{coll: coll, emb: emb, opts: opts, log: logging.OrDiscard(opts.Logger)}, nil
}

// AddDocuments embeds and stores docs in batches. Batches written before a
// failure stay written.
func (ix *Indexer) AddDocuments(ctx context.Context, docs []Document) error {
	total := (len(docs) + ix.opts.BatchSize - 1) / ix.opts.BatchSize
	for b := 0; b < total; b++ {
		start := b * ix.opts.BatchSize
		end := min(start+ix.opts.BatchSize, len(docs))
		batch := docs[start:end]

		texts := make([]string, len(batch))
		req := vectorstore.AddRequest{
			IDs:       make([]string, len(batch)),
			Documents: make([]string, len(batch)),
			Metadatas: make([]vectorstore.Metadata, len(batch)),
		}
		for i, d := range batch {
			texts[i] = embeddable(d.Text)
			req.IDs[i] = d.ID
			req.Documents[i] = d.Text
			req.Metadatas[i] = d.Metadata
		}

		vecs, err := ix.emb.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed batch %d/%d: %w", b+1, total, err)
		}
		req.Embeddings = vecs
		if err := ix.coll.Add(ctx, req); err != nil {
			return fmt.Errorf("store batch %d/%d: %w", b+1, total, err)
		}
		ix.log.Info("added batch", "batch", b+1, "of", total, "documents", len(batch))
	}
	return nil
}

// Query embeds text and returns up to k hits by ascending distance,
// optionally restricted by metadata equality.
func (ix *Indexer) Query(ctx context.Context, text string, k int, where map[string]string) ([]Hit, error) {
	vecs, err := ix.emb.Embed(ctx, []string{embeddable(text)})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embed query: expected 1 embedding, got %d", len(vecs))
	}

	res, err := ix.coll.Query(ctx, vecs[0], k, where)
	if err != nil {
		return nil, err
	}
	hits := make([]Hit, res.Len())
	for i := range hits {
		hits[i] = Hit{
			ID:       res.IDs[i],
			Text:     res.Documents[i],
			Metadata: res.Metadatas[i],
			Distance: res.Distances[i],
		}
	}
	return hits, nil
}

// CheckModel compares the embedding model against the one the collection
// was built with. A mismatch is logged and reported as false. An unset
// model is recorded. IndexRepository records the new model once every
// stored chunk has been re-embedded with it.
func (ix *Indexer) CheckModel(ctx context.Context) (bool, error) {
	stored, err := ix.coll.Model(ctx)
	if err != nil {
		return false, fmt.Errorf("read collection model: %w", err)
	}
	current := ix.emb.Model()
	if stored == "" {
		return true, ix.coll.SetModel(ctx, current)
	}
	if stored != current {
		ix.log.Warn("embedding model differs from the one the collection was built with; distances may be meaningless",
			"collection_model", stored, "model", current)
		return false, nil
	}
	return true, nil
}

// embeddable trims text; providers reject empty input, so blanks become a
// single space.
func embeddable(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return " "
	}
	return s
}
