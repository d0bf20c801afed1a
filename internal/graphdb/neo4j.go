package graphdb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"repoatlas/internal/logging"
)

// Config holds connection settings for Connect.
type Config struct {
	URI      string
	User     string
	Password string
	Database string // empty selects the server default
	// MaxAttempts bounds connection attempts; zero means 5.
	MaxAttempts int
	// InitialBackoff is the delay after the first failed attempt; it doubles
	// after each further failure. Zero means 1s.
	InitialBackoff time.Duration
}

// Neo4jClient is a Client backed by the Neo4j Go driver. It owns the driver
// and must be closed.
type Neo4jClient struct {
	driver   neo4j.DriverWithContext
	database string
	logger   *slog.Logger
}

var _ Client = (*Neo4jClient)(nil)

// Connect creates a driver and verifies connectivity, retrying with
// exponential backoff. It fails after MaxAttempts unsuccessful attempts.
func Connect(ctx context.Context, cfg Config, logger *slog.Logger) (*Neo4jClient, error) {
	logger = logging.OrDiscard(logger)
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.User, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}

	err = retry(ctx, cfg.MaxAttempts, cfg.InitialBackoff, logger, func(ctx context.Context) error {
		return driver.VerifyConnectivity(ctx)
	})
	if err != nil {
		_ = driver.Close(context.Background())
		return nil, fmt.Errorf("connect to %s: %w", cfg.URI, err)
	}

	logger.Info("connected to graph store", "uri", cfg.URI)
	return &Neo4jClient{driver: driver, database: cfg.Database, logger: logger}, nil
}

// retry calls fn until it succeeds or attempts are exhausted, sleeping
// backoff, 2*backoff, 4*backoff... between attempts.
func retry(ctx context.Context, attempts int, backoff time.Duration, logger *slog.Logger, fn func(context.Context) error) error {
	var err error
	delay := backoff
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		logger.Warn("graph store connection failed, retrying",
			"attempt", attempt, "max_attempts", attempts, "delay", delay, "error", err)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay *= 2
	}
	return fmt.Errorf("after %d attempts: %w", attempts, err)
}

// Run executes query as an auto-commit transaction in write mode.
func (c *Neo4jClient) Run(ctx context.Context, query string, params map[string]any) ([]Record, error) {
	return c.run(ctx, neo4j.AccessModeWrite, query, params)
}

// Read executes query as an auto-commit transaction in read mode.
func (c *Neo4jClient) Read(ctx context.Context, query string, params map[string]any) ([]Record, error) {
	return c.run(ctx, neo4j.AccessModeRead, query, params)
}

func (c *Neo4jClient) run(ctx context.Context, mode neo4j.AccessMode, query string, params map[string]any) ([]Record, error) {
	session := c.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   mode,
		DatabaseName: c.database,
	})
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, params)
	if err != nil {
		return nil, mapError(err)
	}
	raw, err := result.Collect(ctx)
	if err != nil {
		return nil, mapError(err)
	}

	records := make([]Record, len(raw))
	for i, r := range raw {
		values := make([]any, len(r.Values))
		for j, v := range r.Values {
			values[j] = convertValue(v)
		}
		records[i] = Record{Keys: r.Keys, Values: values}
	}
	return records, nil
}

// Close releases the driver.
func (c *Neo4jClient) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}

func mapError(err error) error {
	var neoErr *neo4j.Neo4jError
	if errors.As(err, &neoErr) {
		return &QueryError{Code: neoErr.Code, Message: neoErr.Msg}
	}
	return err
}

// convertValue turns driver graph types into plain property maps so callers
// never depend on driver types.
func convertValue(v any) any {
	switch t := v.(type) {
	case neo4j.Node:
		return convertValue(t.Props)
	case neo4j.Relationship:
		return convertValue(t.Props)
	case neo4j.Path:
		nodes := make([]any, len(t.Nodes))
		for i, n := range t.Nodes {
			nodes[i] = convertValue(n.Props)
		}
		return nodes
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = convertValue(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = convertValue(e)
		}
		return out
	default:
		return v
	}
}
