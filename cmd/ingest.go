package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"repoatlas/internal/ingest"

	"github.com/spf13/cobra"
)

var (
	flagSkipGraph bool
	flagSkipIndex bool
	flagScanName  string
	flagForce     bool
)

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap <repo-url>...",
	Short: "Clone, scan, index and graph-load one or more repositories",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		p, cleanup, err := newPipeline(ctx, stages{graph: !flagSkipGraph, index: !flagSkipIndex})
		if err != nil {
			return err
		}
		defer cleanup()

		start := time.Now()
		reports := p.Run(ctx, args)
		fmt.Printf("\nDone in %s\n", time.Since(start).Round(time.Millisecond))
		return printReports(os.Stdout, reports)
	},
}

var scanCmd = &cobra.Command{
	Use:   "scan <path>",
	Short: "Extract structural metadata from a local checkout",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		name := flagScanName
		if name == "" {
			name = filepath.Base(root)
		}

		store, closeStore, err := openMetaStore(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore()

		repo, err := newScanner(store).Scan(cmd.Context(), root, name)
		if err != nil {
			return err
		}
		fmt.Printf("Scanned %s: %d files, %d commits\n", repo.Name, len(repo.Files), len(repo.Commits))
		return nil
	},
}

var loadGraphCmd = &cobra.Command{
	Use:   "load-graph [name]...",
	Short: "Load stored metadata into the graph database (all repositories by default)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return fromStore(cmd.Context(), stages{graph: true}, func(p *ingest.Pipeline) ([]ingest.Report, error) {
			return p.Reload(cmd.Context(), args)
		})
	},
}

var indexCmd = &cobra.Command{
	Use:   "index [name]...",
	Short: "Build the semantic index from stored metadata (all repositories by default)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return fromStore(cmd.Context(), stages{index: true, force: flagForce}, func(p *ingest.Pipeline) ([]ingest.Report, error) {
			return p.Reindex(cmd.Context(), args)
		})
	},
}

func fromStore(ctx context.Context, st stages, run func(*ingest.Pipeline) ([]ingest.Report, error)) error {
	p, cleanup, err := newPipeline(ctx, st)
	if err != nil {
		return err
	}
	defer cleanup()

	reports, err := run(p)
	if err != nil {
		return err
	}
	return printReports(os.Stdout, reports)
}

// printReports writes one summary block per repository and returns an
// error when any of them failed.
func printReports(w io.Writer, reports []ingest.Report) error {
	failed := 0
	for _, r := range reports {
		label := r.Name
		if label == "" {
			label = r.Source
		}
		fmt.Fprintf(w, "%s\n", label)
		if r.Repo != nil {
			fmt.Fprintf(w, "  Files:   %d scanned, %d commits\n", len(r.Repo.Files), len(r.Repo.Commits))
		}
		if s := r.Index; s != nil {
			fmt.Fprintf(w, "  Index:   %d indexed, %d unchanged, %d skipped, %d chunks, %d stale removed\n",
				s.FilesIndexed, s.FilesUnchanged, s.FilesSkipped, s.Chunks, s.StaleRemoved)
		}
		if s := r.Graph; s != nil {
			fmt.Fprintf(w, "  Graph:   %d files, %d functions, %d classes, %d imports, %d commits, %d calls\n",
				s.Files, s.Functions, s.Classes, s.Imports, s.Commits, s.Calls)
		}
		if r.Err != nil {
			failed++
			fmt.Fprintf(w, "  Error:   %v\n", r.Err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d repositories failed", failed, len(reports))
	}
	return nil
}

func init() {
	bootstrapCmd.Flags().BoolVar(&flagSkipGraph, "skip-graph", false, "do not load the graph database")
	bootstrapCmd.Flags().BoolVar(&flagSkipIndex, "skip-index", false, "do not build the semantic index")
	scanCmd.Flags().StringVar(&flagScanName, "name", "", "repository name (default: directory name)")
	indexCmd.Flags().BoolVar(&flagForce, "force", false, "re-embed files even when unchanged")
	rootCmd.AddCommand(bootstrapCmd, scanCmd, loadGraphCmd, indexCmd)
}
