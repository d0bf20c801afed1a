package cmd

import (
	"context"
	"fmt"

	"repoatlas/internal/graphquery"
	"repoatlas/internal/index"
	"repoatlas/internal/navigator"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start an MCP server exposing graph, search and file tools",
	Args:  cobra.NoArgs,
	RunE:  runMCP,
}

// toolBackends holds what the tool handlers need. A nil translator or
// indexer means that backend could not be opened; its tools then report
// the startup error instead of failing the whole server.
type toolBackends struct {
	translator *graphquery.Translator
	graphErr   error
	indexer    *index.Indexer
	indexErr   error
	nav        *navigator.Navigator
}

func runMCP(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	b := &toolBackends{nav: navigator.New(cfg.ReposDir, logger)}

	if client, closeGraph, err := connectGraph(ctx); err != nil {
		logger.Warn("graph tools unavailable", "err", err)
		b.graphErr = err
	} else {
		defer closeGraph()
		if b.translator, err = newTranslator(ctx, client, true); err != nil {
			logger.Warn("query generation unavailable", "err", err)
			b.translator, _ = newTranslator(ctx, client, false)
		}
	}

	if ix, closeIx, err := openIndexer(ctx, false); err != nil {
		logger.Warn("semantic search unavailable", "err", err)
		b.indexErr = err
	} else {
		defer closeIx()
		b.indexer = ix
	}

	s := mcpserver.NewMCPServer("repoatlas", version, mcpserver.WithToolCapabilities(false))
	registerTools(s, b)
	logger.Info("serving MCP on stdio", "repos_dir", cfg.ReposDir)
	return mcpserver.ServeStdio(s)
}

func registerTools(s *mcpserver.MCPServer, b *toolBackends) {
	s.AddTool(queryGraphTool(), b.graphHandler(func(ctx context.Context, t *graphquery.Translator, req mcp.CallToolRequest) string {
		return t.Ask(ctx, req.GetString("question", ""))
	}))
	s.AddTool(executeCypherTool(), b.graphHandler(func(ctx context.Context, t *graphquery.Translator, req mcp.CallToolRequest) string {
		return t.Execute(ctx, req.GetString("query", ""))
	}))
	s.AddTool(validateCypherTool(), b.graphHandler(func(ctx context.Context, t *graphquery.Translator, req mcp.CallToolRequest) string {
		return t.Validate(ctx, req.GetString("query", ""))
	}))
	s.AddTool(listRepositoriesTool(), b.graphHandler(func(ctx context.Context, t *graphquery.Translator, req mcp.CallToolRequest) string {
		return t.ListRepositories(ctx)
	}))
	s.AddTool(repositoryInfoTool(), b.graphHandler(func(ctx context.Context, t *graphquery.Translator, req mcp.CallToolRequest) string {
		return t.RepositoryInfo(ctx, req.GetString("repo_name", ""))
	}))
	s.AddTool(graphSchemaTool(), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultText(graphquery.Schema()), nil
	})

	s.AddTool(searchCodeTool(), b.searchHandler())

	s.AddTool(listReposTool(), b.navHandler(func(req mcp.CallToolRequest) navigator.Op {
		return navigator.ListRepos{}
	}))
	s.AddTool(treeStructureTool(), b.navHandler(func(req mcp.CallToolRequest) navigator.Op {
		return navigator.Tree{Repo: req.GetString("repo_name", ""), MaxDepth: req.GetInt("max_depth", navigator.DefaultTreeDepth)}
	}))
	s.AddTool(readFileTool(), b.navHandler(func(req mcp.CallToolRequest) navigator.Op {
		return navigator.ReadFile{Repo: req.GetString("repo_name", ""), Path: req.GetString("file_path", "")}
	}))
	s.AddTool(searchFilesTool(), b.navHandler(func(req mcp.CallToolRequest) navigator.Op {
		return navigator.SearchFiles{
			Repo:    req.GetString("repo_name", ""),
			Query:   req.GetString("search_term", ""),
			Pattern: req.GetString("file_pattern", navigator.DefaultFilePattern),
		}
	}))
	s.AddTool(listDirectoryTool(), b.navHandler(func(req mcp.CallToolRequest) navigator.Op {
		return navigator.ListDir{Repo: req.GetString("repo_name", ""), Dir: req.GetString("directory_path", "")}
	}))
	s.AddTool(fileExistsTool(), b.navHandler(func(req mcp.CallToolRequest) navigator.Op {
		return navigator.FileExists{Repo: req.GetString("repo_name", ""), Path: req.GetString("file_path", "")}
	}))
}

// --- Tool schema builders ---

var readOnlyAnnotation = mcp.ToolAnnotation{
	ReadOnlyHint:    mcp.ToBoolPtr(true),
	DestructiveHint: mcp.ToBoolPtr(false),
	IdempotentHint:  mcp.ToBoolPtr(true),
	OpenWorldHint:   mcp.ToBoolPtr(false),
}

func queryGraphTool() mcp.Tool {
	return mcp.NewTool("query_graph",
		mcp.WithDescription("Answer a natural-language question about repository structure (files, functions, classes, imports, commits, calls) by generating and running a Cypher query against the code graph."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("Question about the code structure, e.g. 'Which functions are defined in utils.py?'"),
		),
	)
}

func executeCypherTool() mcp.Tool {
	return mcp.NewTool("execute_cypher",
		mcp.WithDescription("Run a read-only Cypher query directly against the code graph. Call get_graph_schema first for node labels and relationships."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Cypher query to execute"),
		),
	)
}

func validateCypherTool() mcp.Tool {
	return mcp.NewTool("validate_cypher",
		mcp.WithDescription("Check whether a Cypher query is syntactically valid without returning its results."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Cypher query to validate"),
		),
	)
}

func graphSchemaTool() mcp.Tool {
	return mcp.NewTool("get_graph_schema",
		mcp.WithDescription("Get the node labels, properties, relationships and example queries of the code graph."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
	)
}

func listRepositoriesTool() mcp.Tool {
	return mcp.NewTool("list_repositories",
		mcp.WithDescription("List the repositories loaded into the code graph."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
	)
}

func repositoryInfoTool() mcp.Tool {
	return mcp.NewTool("get_repository_info",
		mcp.WithDescription("Get file, function, class and commit counts for one repository in the code graph."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("repo_name",
			mcp.Required(),
			mcp.Description("Repository name as listed by list_repositories"),
		),
	)
}

func searchCodeTool() mcp.Tool {
	return mcp.NewTool("search_code",
		mcp.WithDescription("Semantically search indexed code. Returns matching chunks with repository, file path and line numbers."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Natural language or keyword query"),
		),
		mcp.WithNumber("k",
			mcp.Description("Maximum number of chunks to return (default 10)"),
		),
		mcp.WithString("repo_name",
			mcp.Description("Optional repository to restrict the search to"),
		),
	)
}

func listReposTool() mcp.Tool {
	return mcp.NewTool("list_repos",
		mcp.WithDescription("List the cloned repositories available for browsing."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
	)
}

func treeStructureTool() mcp.Tool {
	return mcp.NewTool("tree_structure",
		mcp.WithDescription("Show the directory tree of a cloned repository."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("repo_name", mcp.Required(), mcp.Description("Repository directory name")),
		mcp.WithNumber("max_depth", mcp.Description("Maximum depth to show (default 3)")),
	)
}

func readFileTool() mcp.Tool {
	return mcp.NewTool("read_file",
		mcp.WithDescription("Read a file from a cloned repository. Long files are truncated."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("repo_name", mcp.Required(), mcp.Description("Repository directory name")),
		mcp.WithString("file_path", mcp.Required(), mcp.Description("Path relative to the repository root")),
	)
}

func searchFilesTool() mcp.Tool {
	return mcp.NewTool("search_files",
		mcp.WithDescription("Find files whose name contains a search term, optionally filtered by a glob."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("repo_name", mcp.Required(), mcp.Description("Repository directory name")),
		mcp.WithString("search_term", mcp.Required(), mcp.Description("Case-insensitive substring of the file name")),
		mcp.WithString("file_pattern", mcp.Description("Glob the file name must match (default '*')")),
	)
}

func listDirectoryTool() mcp.Tool {
	return mcp.NewTool("list_directory",
		mcp.WithDescription("List the entries of one directory in a cloned repository."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("repo_name", mcp.Required(), mcp.Description("Repository directory name")),
		mcp.WithString("directory_path", mcp.Description("Directory relative to the repository root (default: root)")),
	)
}

func fileExistsTool() mcp.Tool {
	return mcp.NewTool("file_exists",
		mcp.WithDescription("Check whether a path exists in a cloned repository and report its type and size."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("repo_name", mcp.Required(), mcp.Description("Repository directory name")),
		mcp.WithString("file_path", mcp.Required(), mcp.Description("Path relative to the repository root")),
	)
}

// --- Handler factories ---

func (b *toolBackends) graphHandler(fn func(context.Context, *graphquery.Translator, mcp.CallToolRequest) string) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if b.translator == nil {
			return mcp.NewToolResultError(fmt.Sprintf("graph database unavailable: %v", b.graphErr)), nil
		}
		return mcp.NewToolResultText(fn(ctx, b.translator, req)), nil
	}
}

func (b *toolBackends) searchHandler() mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if b.indexer == nil {
			return mcp.NewToolResultError(fmt.Sprintf("semantic index unavailable: %v", b.indexErr)), nil
		}
		query := req.GetString("query", "")
		if query == "" {
			return mcp.NewToolResultError("query is required"), nil
		}
		k := req.GetInt("k", 10)
		if k <= 0 {
			k = 10
		}
		var where map[string]string
		if repo := req.GetString("repo_name", ""); repo != "" {
			where = map[string]string{"repo": repo}
		}

		hits, err := b.indexer.Query(ctx, query, k, where)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
		}
		return mcp.NewToolResultText(formatHits(hits)), nil
	}
}

// Navigator failures are returned as text, like the graph tools.
func (b *toolBackends) navHandler(build func(mcp.CallToolRequest) navigator.Op) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultText(b.nav.Do(build(req))), nil
	}
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
