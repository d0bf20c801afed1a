package cmd

import (
	"os"

	"repoatlas/internal/navigator"

	"github.com/spf13/cobra"
)

var (
	flagTreeDepth   int
	flagFilePattern string
)

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "Browse the cloned repositories",
}

func navigate(op navigator.Op) {
	writeText(os.Stdout, navigator.New(cfg.ReposDir, logger).Do(op))
}

func init() {
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List cloned repositories",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			navigate(navigator.ListRepos{})
		},
	}
	treeCmd := &cobra.Command{
		Use:   "tree <repo>",
		Short: "Show the directory tree of a repository",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			navigate(navigator.Tree{Repo: args[0], MaxDepth: flagTreeDepth})
		},
	}
	readCmd := &cobra.Command{
		Use:   "read <repo> <path>",
		Short: "Print a file from a repository",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			navigate(navigator.ReadFile{Repo: args[0], Path: args[1]})
		},
	}
	findCmd := &cobra.Command{
		Use:   "search <repo> <text>",
		Short: "Find files whose name contains text",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			navigate(navigator.SearchFiles{Repo: args[0], Query: args[1], Pattern: flagFilePattern})
		},
	}
	lsCmd := &cobra.Command{
		Use:   "ls <repo> [dir]",
		Short: "List one directory of a repository",
		Args:  cobra.RangeArgs(1, 2),
		Run: func(cmd *cobra.Command, args []string) {
			op := navigator.ListDir{Repo: args[0]}
			if len(args) == 2 {
				op.Dir = args[1]
			}
			navigate(op)
		},
	}
	existsCmd := &cobra.Command{
		Use:   "exists <repo> <path>",
		Short: "Report whether a path exists in a repository",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			navigate(navigator.FileExists{Repo: args[0], Path: args[1]})
		},
	}

	treeCmd.Flags().IntVar(&flagTreeDepth, "depth", navigator.DefaultTreeDepth, "maximum depth")
	findCmd.Flags().StringVar(&flagFilePattern, "pattern", navigator.DefaultFilePattern, "glob the file name must match")
	filesCmd.AddCommand(listCmd, treeCmd, readCmd, findCmd, lsCmd, existsCmd)
	rootCmd.AddCommand(filesCmd)
}
