package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"repoatlas/internal/graphquery"
	"repoatlas/internal/index"

	"github.com/spf13/cobra"
)

var (
	flagK    int
	flagRepo string
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Semantic search over indexed code",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ix, cleanup, err := openIndexer(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer cleanup()

		var where map[string]string
		if flagRepo != "" {
			where = map[string]string{"repo": flagRepo}
		}
		hits, err := ix.Query(cmd.Context(), strings.Join(args, " "), flagK, where)
		if err != nil {
			return err
		}
		fmt.Print(formatHits(hits))
		return nil
	},
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a structural question by translating it to Cypher",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTranslator(cmd.Context(), true, func(t *graphquery.Translator) string {
			return t.Ask(cmd.Context(), strings.Join(args, " "))
		})
	},
}

var cypherCmd = &cobra.Command{
	Use:   "cypher <query>",
	Short: "Run a read-only Cypher query against the graph",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTranslator(cmd.Context(), false, func(t *graphquery.Translator) string {
			return t.Execute(cmd.Context(), strings.Join(args, " "))
		})
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate <query>",
	Short: "Check whether a Cypher query is valid",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTranslator(cmd.Context(), false, func(t *graphquery.Translator) string {
			return t.Validate(cmd.Context(), strings.Join(args, " "))
		})
	},
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the graph schema",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(graphquery.Schema())
	},
}

var reposCmd = &cobra.Command{
	Use:   "repos",
	Short: "List repositories in the graph",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTranslator(cmd.Context(), false, func(t *graphquery.Translator) string {
			return t.ListRepositories(cmd.Context())
		})
	},
}

var repoInfoCmd = &cobra.Command{
	Use:   "repo-info <name>",
	Short: "Show graph statistics for one repository",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTranslator(cmd.Context(), false, func(t *graphquery.Translator) string {
			return t.RepositoryInfo(cmd.Context(), args[0])
		})
	},
}

func withTranslator(ctx context.Context, withGenerator bool, fn func(*graphquery.Translator) string) error {
	client, cleanup, err := connectGraph(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	t, err := newTranslator(ctx, client, withGenerator)
	if err != nil {
		return err
	}
	writeText(os.Stdout, fn(t))
	return nil
}

func writeText(w io.Writer, s string) {
	fmt.Fprint(w, s)
	if !strings.HasSuffix(s, "\n") {
		fmt.Fprintln(w)
	}
}

// formatHits renders search results with the source location of each chunk.
func formatHits(hits []index.Hit) string {
	if len(hits) == 0 {
		return "No matching code found.\n"
	}
	var sb strings.Builder
	for i, h := range hits {
		fmt.Fprintf(&sb, "[%d] %v/%v (lines %v-%v, distance %.4f)\n",
			i+1, h.Metadata["repo"], h.Metadata["file"], h.Metadata["start_line"], h.Metadata["end_line"], h.Distance)
		if fns, _ := h.Metadata["functions"].(string); fns != "" {
			fmt.Fprintf(&sb, "    functions: %s\n", fns)
		}
		if cls, _ := h.Metadata["classes"].(string); cls != "" {
			fmt.Fprintf(&sb, "    classes: %s\n", cls)
		}
		sb.WriteString("```\n")
		sb.WriteString(strings.TrimRight(h.Text, "\n"))
		sb.WriteString("\n```\n\n")
	}
	return sb.String()
}

func init() {
	searchCmd.Flags().IntVarP(&flagK, "k", "k", 10, "maximum number of results")
	searchCmd.Flags().StringVar(&flagRepo, "repo", "", "restrict results to one repository")
	rootCmd.AddCommand(searchCmd, askCmd, cypherCmd, validateCmd, schemaCmd, reposCmd, repoInfoCmd)
}
