package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"repoatlas/internal/chunker"
	"repoatlas/internal/embedder"
	"repoatlas/internal/extract"
	"repoatlas/internal/graph"
	"repoatlas/internal/graphdb"
	"repoatlas/internal/graphquery"
	"repoatlas/internal/index"
	"repoatlas/internal/ingest"
	"repoatlas/internal/llm"
	"repoatlas/internal/metastore"
	"repoatlas/internal/scanner"
	"repoatlas/internal/vectorstore"
)

// Constructors for the components a command needs. Each returns a cleanup
// func the caller defers.

func openMetaStore(ctx context.Context) (metastore.Store, func(), error) {
	if cfg.Metadata.Backend == "mongo" {
		s, err := metastore.ConnectMongo(ctx, cfg.Metadata.MongoURI, cfg.Metadata.MongoDB)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close(context.Background()) }, nil
	}
	s, err := metastore.NewFileStore(cfg.Metadata.Dir)
	if err != nil {
		return nil, nil, err
	}
	return s, func() {}, nil
}

func connectGraph(ctx context.Context) (*graphdb.Neo4jClient, func(), error) {
	c, err := graphdb.Connect(ctx, graphdb.Config{
		URI:            cfg.Neo4j.URI,
		User:           cfg.Neo4j.User,
		Password:       cfg.Neo4j.Password,
		Database:       cfg.Neo4j.Database,
		MaxAttempts:    cfg.Neo4j.MaxAttempts,
		InitialBackoff: cfg.Neo4j.InitialBackoff,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	return c, func() { _ = c.Close(context.Background()) }, nil
}

func newEmbedder(ctx context.Context) (embedder.Embedder, error) {
	return embedder.New(ctx, cfg.Embedding.Provider, embedder.Options{
		Model:     cfg.Embedding.Model,
		OllamaURL: cfg.Embedding.OllamaURL,
		Project:   cfg.Vertex.Project,
		Location:  cfg.Vertex.Location,
	})
}

func newGenerator(ctx context.Context) (llm.Generator, error) {
	return llm.New(ctx, cfg.LLM.Provider, llm.Options{
		Model:     cfg.LLM.Model,
		OllamaURL: cfg.LLM.OllamaURL,
		Project:   cfg.Vertex.Project,
		Location:  cfg.Vertex.Location,
	})
}

func openIndexer(ctx context.Context, force bool) (*index.Indexer, func(), error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Vector.Path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create vector directory: %w", err)
	}
	store, err := vectorstore.Open(cfg.Vector.Path)
	if err != nil {
		return nil, nil, err
	}
	coll, err := store.Collection(ctx, cfg.Vector.Collection)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	emb, err := newEmbedder(ctx)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	ix, err := index.New(coll, emb, index.Options{
		Chunk:     chunker.Options{Size: cfg.Chunk.Size, Overlap: cfg.Chunk.Overlap},
		BatchSize: cfg.Embedding.BatchSize,
		Force:     force,
		Logger:    logger,
	})
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return ix, func() { store.Close() }, nil
}

func newScanner(store metastore.Store) *scanner.Scanner {
	return scanner.New(extract.New(extract.DefaultRegistry(), logger), store, scanner.Options{
		RespectGitignore: cfg.Scan.RespectGitignore,
		MaxFileSize:      cfg.Scan.MaxFileSize,
		GitTimeout:       cfg.Scan.GitTimeout,
		Logger:           logger,
	})
}

func newTranslator(ctx context.Context, client graphdb.Client, withGenerator bool) (*graphquery.Translator, error) {
	var gen llm.Generator
	if withGenerator {
		g, err := newGenerator(ctx)
		if err != nil {
			return nil, err
		}
		gen = g
	}
	return graphquery.New(client, gen, graphquery.Options{MaxResults: cfg.Query.MaxResults, Logger: logger}), nil
}

// stages selects the optional ingestion stages to wire into a pipeline.
type stages struct {
	graph bool
	index bool
	force bool
}

// newPipeline wires the ingestion pipeline. The returned cleanup closes
// every opened resource.
func newPipeline(ctx context.Context, st stages) (*ingest.Pipeline, func(), error) {
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	store, closeStore, err := openMetaStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	cleanups = append(cleanups, closeStore)

	p := &ingest.Pipeline{
		Scanner:      newScanner(store),
		Store:        store,
		ReposDir:     cfg.ReposDir,
		CloneTimeout: cfg.Scan.CloneTimeout,
		Logger:       logger,
	}

	if st.index {
		ix, closeIx, err := openIndexer(ctx, st.force)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		cleanups = append(cleanups, closeIx)
		p.Indexer = ix
	}
	if st.graph {
		client, closeGraph, err := connectGraph(ctx)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		cleanups = append(cleanups, closeGraph)
		p.Loader = graph.NewLoader(ctx, client, logger)
	}
	return p, cleanup, nil
}
