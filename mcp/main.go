// MCP server for cgdemo: call graph analysis tools for LLM clients
package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"cgdemo/cache"
	"cgdemo/config"
	"cgdemo/graph"
	"cgdemo/render"
	"cgdemo/scanner"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const version = "1.0.0"

// Input types for tools
type PathInput struct {
	Path string `json:"path" jsonschema:"Path to the project directory to analyze"`
}

type AnalyzeInput struct {
	Path      string   `json:"path" jsonschema:"Path to the project directory to analyze"`
	Roots     []string `json:"roots,omitempty" jsonschema:"Entry point name patterns (glob). Default: main, init, Test*, Benchmark*, Example*, Fuzz*"`
	Threshold float64  `json:"threshold,omitempty" jsonschema:"Minimum importance (0-100) for the reduced graph"`
}

type HotPathsInput struct {
	Path  string `json:"path" jsonschema:"Path to the project directory to analyze"`
	Depth int    `json:"depth,omitempty" jsonschema:"Maximum functions per path (default: 5)"`
	Top   int    `json:"top,omitempty" jsonschema:"Number of paths to return (default: 10)"`
}

type SymbolInput struct {
	Path   string `json:"path" jsonschema:"Path to the project directory"`
	Name   string `json:"name" jsonschema:"Function name to search (substring match, case-insensitive)"`
	File   string `json:"file,omitempty" jsonschema:"Filter to specific file path (substring match)"`
	Source bool   `json:"source,omitempty" jsonschema:"Include each function's source code"`
}

type TracePathInput struct {
	Path  string `json:"path" jsonschema:"Path to the project directory"`
	From  string `json:"from" jsonschema:"Function name to trace from"`
	To    string `json:"to" jsonschema:"Function name to trace to"`
	Depth int    `json:"depth,omitempty" jsonschema:"Maximum traversal depth (default: 5)"`
	All   bool   `json:"all,omitempty" jsonschema:"List every simple path instead of the shortest one"`
}

type CallersInput struct {
	Path   string `json:"path" jsonschema:"Path to the project directory"`
	Symbol string `json:"symbol" jsonschema:"Function name to find callers for"`
	Depth  int    `json:"depth,omitempty" jsonschema:"Depth of caller chain (default: 1, max: 5)"`
}

type CalleesInput struct {
	Path   string `json:"path" jsonschema:"Path to the project directory"`
	Symbol string `json:"symbol" jsonschema:"Function name to find callees for"`
	Depth  int    `json:"depth,omitempty" jsonschema:"Depth of callee chain (default: 1, max: 5)"`
}

// EmptyInput for tools that don't need parameters
type EmptyInput struct{}

func main() {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "cgdemo",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "status",
		Description: "Check cgdemo MCP server status. Returns version and confirms local filesystem access is available.",
	}, handleStatus)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "analyze_calls",
		Description: "Analyze the call graph of a project (Go natively; C and Python when tree-sitter grammars are installed). Returns function and call counts, entry points, dead code, cycles, hot paths, the most central functions and clusters.",
	}, handleAnalyzeCalls)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "dead_code",
		Description: "List functions that cannot be reached from any entry point. Entry points are functions matching the roots patterns; when none match, every function nobody calls.",
	}, handleDeadCode)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "find_cycles",
		Description: "List groups of mutually recursive functions and directly recursive functions.",
	}, handleFindCycles)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "hot_paths",
		Description: "Rank call chains starting at entry points by how central their calls are (summed edge betweenness).",
	}, handleHotPaths)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_api",
		Description: "List the exported functions of a project grouped by directory, with methods under their receiver type.",
	}, handleGetAPI)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_symbol",
		Description: "Search for functions by name. Returns matching functions with file location (path:line), signature and how many call sites name them. Set source=true to include the function bodies.",
	}, handleGetSymbol)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "trace_path",
		Description: "Find the shortest call chain between two functions. Uses the index from 'cganalyze --index' when it is fresh, otherwise scans the project.",
	}, handleTracePath)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_callers",
		Description: "Find all functions that call a specific function, optionally several levels up.",
	}, handleGetCallers)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_callees",
		Description: "Find all functions called by a specific function, optionally several levels down.",
	}, handleGetCallees)

	if err := server.Run(context.Background(), &mcp.StdioTransport{}); err != nil {
		log.Printf("Server error: %v", err)
	}
}

// validatePath validates and returns the absolute path
func validatePath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path is required")
	}

	if strings.HasPrefix(path, "~/") {
		home := os.Getenv("HOME")
		path = filepath.Join(home, path[2:])
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("invalid path: %w", err)
	}

	if _, err := os.Stat(absPath); os.IsNotExist(err) {
		return "", fmt.Errorf("path does not exist: %s", absPath)
	}

	return absPath, nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

func errorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
		IsError: true,
	}
}

// loadGraph returns the project's call graph: the saved index when it is
// fresh, otherwise a new scan.
func loadGraph(projectPath string, cfg *config.Config) (*graph.CodeGraph, error) {
	g, stale, err := graph.LoadIndex(graph.GraphPath(projectPath), projectPath, cfg.BuildSettings())
	if err == nil && !stale {
		return g, nil
	}
	if err != nil && !errors.Is(err, graph.ErrNoIndex) && cfg.Debug {
		log.Printf("[debug] ignoring index of %s: %v", projectPath, err)
	}
	return graph.BuildProject(projectPath, cfg.Analysis.SkipTests, graph.WithExternal(cfg.Analysis.IncludeExternal))
}

// analyzeProject runs the analysis for a project, served from the report
// cache when the sources and options are unchanged.
func analyzeProject(absRoot string, adjust func(*graph.AnalysisOptions)) (*graph.Report, error) {
	cfg, err := config.Load(absRoot)
	if err != nil {
		return nil, err
	}
	opts := cfg.AnalysisOptions()
	if adjust != nil {
		adjust(&opts)
	}

	c := openCache(absRoot, cfg)
	var hash, fingerprint string
	if c.Enabled() {
		files, err := scanner.SourceFiles(absRoot, scanner.LoadGitignore(absRoot), cfg.Analysis.SkipTests)
		if err == nil {
			hash, _ = cache.HashFiles(files)
		}
		fingerprint = cache.Fingerprint(struct {
			Options  graph.AnalysisOptions
			External bool
		}{opts, cfg.Analysis.IncludeExternal})
	}

	var report graph.Report
	if hash != "" && c.Load(hash, "analyze", fingerprint, &report) {
		return &report, nil
	}

	g, err := loadGraph(absRoot, cfg)
	if err != nil {
		return nil, err
	}
	r, err := graph.Analyze(g, opts)
	if err != nil {
		return nil, err
	}

	if hash != "" {
		if err := c.Store(hash, "analyze", fingerprint, r); err != nil && cfg.Debug {
			log.Printf("[debug] cache write failed: %v", err)
		}
		if err := c.Cleanup(); err != nil && cfg.Debug {
			log.Printf("[debug] cache cleanup failed: %v", err)
		}
	}
	return r, nil
}

func openCache(absRoot string, cfg *config.Config) *cache.Cache {
	c, err := cache.New(cfg.CacheOptions(absRoot))
	if err != nil {
		log.Printf("cache disabled: %v", err)
		c, _ = cache.New(cache.Options{Enabled: false})
	}
	return c
}

func handleStatus(ctx context.Context, req *mcp.CallToolRequest, input EmptyInput) (*mcp.CallToolResult, any, error) {
	cwd, _ := os.Getwd()
	home := os.Getenv("HOME")

	loader := scanner.NewGrammarLoader()
	grammars := "not found (Go only)"
	if loader.HasGrammars() {
		grammars = loader.GrammarDir()
	}

	return textResult(fmt.Sprintf(`cgdemo MCP server v%s
Status: connected
Local filesystem access: enabled
Working directory: %s
Home directory: %s
Grammars: %s

Available tools:
  analyze_calls  - Full call graph analysis summary
  dead_code      - Functions unreachable from entry points
  find_cycles    - Recursive function groups
  hot_paths      - Most central call chains
  get_api        - Exported functions by directory
  get_symbol     - Search for functions by name
  trace_path     - Find call path between functions
  get_callers    - Find what calls a function
  get_callees    - Find what a function calls`, version, cwd, home, grammars)), nil, nil
}

func withRoots(input AnalyzeInput) func(*graph.AnalysisOptions) {
	return func(o *graph.AnalysisOptions) {
		if len(input.Roots) > 0 {
			o.Roots = input.Roots
		}
		if input.Threshold > 0 {
			o.Threshold = input.Threshold
		}
	}
}

func handleAnalyzeCalls(ctx context.Context, req *mcp.CallToolRequest, input AnalyzeInput) (*mcp.CallToolResult, any, error) {
	absRoot, err := validatePath(input.Path)
	if err != nil {
		return errorResult(err.Error()), nil, nil
	}

	report, err := analyzeProject(absRoot, withRoots(input))
	if err != nil {
		return errorResult("Analysis error: " + err.Error()), nil, nil
	}

	var buf bytes.Buffer
	render.Report(&buf, report, 120)
	return textResult(buf.String()), nil, nil
}

func handleDeadCode(ctx context.Context, req *mcp.CallToolRequest, input AnalyzeInput) (*mcp.CallToolResult, any, error) {
	absRoot, err := validatePath(input.Path)
	if err != nil {
		return errorResult(err.Error()), nil, nil
	}

	report, err := analyzeProject(absRoot, withRoots(input))
	if err != nil {
		return errorResult("Analysis error: " + err.Error()), nil, nil
	}

	if len(report.DeadCode) == 0 {
		return textResult(fmt.Sprintf("No dead code: every function is reachable from %s", strings.Join(report.EntryPoints, ", "))), nil, nil
	}

	var sb strings.Builder
	sb.WriteString("=== Dead Code ===\n")
	sb.WriteString(fmt.Sprintf("Entry points: %s\n\n", strings.Join(report.EntryPoints, ", ")))
	for _, name := range report.DeadCode {
		if fs := report.Function(name); fs != nil && fs.Path != "" {
			sb.WriteString(fmt.Sprintf("  %s (%s:%d)\n", name, fs.Path, fs.Line))
		} else {
			sb.WriteString(fmt.Sprintf("  %s\n", name))
		}
	}
	sb.WriteString(fmt.Sprintf("───────────────────────────────────\nUnreachable: %d of %d functions\n", len(report.DeadCode), report.Nodes))
	return textResult(sb.String()), nil, nil
}

func handleFindCycles(ctx context.Context, req *mcp.CallToolRequest, input PathInput) (*mcp.CallToolResult, any, error) {
	absRoot, err := validatePath(input.Path)
	if err != nil {
		return errorResult(err.Error()), nil, nil
	}

	report, err := analyzeProject(absRoot, nil)
	if err != nil {
		return errorResult("Analysis error: " + err.Error()), nil, nil
	}

	if len(report.Cycles) == 0 {
		return textResult("No recursive calls found"), nil, nil
	}

	var sb strings.Builder
	sb.WriteString("=== Call Cycles ===\n\n")
	for i, c := range report.Cycles {
		chain := append(append([]string(nil), c...), c[0])
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, strings.Join(chain, " → ")))
	}
	return textResult(sb.String()), nil, nil
}

func handleHotPaths(ctx context.Context, req *mcp.CallToolRequest, input HotPathsInput) (*mcp.CallToolResult, any, error) {
	absRoot, err := validatePath(input.Path)
	if err != nil {
		return errorResult(err.Error()), nil, nil
	}

	report, err := analyzeProject(absRoot, func(o *graph.AnalysisOptions) {
		o.HotPaths = true
		if input.Depth > 0 {
			o.MaxDepth = input.Depth
		}
		if input.Top > 0 {
			o.TopN = input.Top
		}
	})
	if err != nil {
		return errorResult("Analysis error: " + err.Error()), nil, nil
	}

	if len(report.HotPaths) == 0 {
		return textResult("No hot paths detected."), nil, nil
	}

	var buf bytes.Buffer
	if err := graph.WriteHotPaths(&buf, report); err != nil {
		return errorResult(err.Error()), nil, nil
	}
	return textResult(buf.String()), nil, nil
}

func handleGetAPI(ctx context.Context, req *mcp.CallToolRequest, input PathInput) (*mcp.CallToolResult, any, error) {
	absRoot, err := validatePath(input.Path)
	if err != nil {
		return errorResult(err.Error()), nil, nil
	}

	analyses, err := scanner.ScanForCalls(absRoot, scanner.LoadGitignore(absRoot), scanner.NewGrammarLoader(), true)
	if err != nil {
		return errorResult("Scan error: " + err.Error()), nil, nil
	}

	var buf bytes.Buffer
	render.APIView(&buf, absRoot, analyses)
	return textResult(buf.String()), nil, nil
}

func handleGetSymbol(ctx context.Context, req *mcp.CallToolRequest, input SymbolInput) (*mcp.CallToolResult, any, error) {
	absRoot, err := validatePath(input.Path)
	if err != nil {
		return errorResult(err.Error()), nil, nil
	}

	analyses, err := scanner.ScanForCalls(absRoot, scanner.LoadGitignore(absRoot), scanner.NewGrammarLoader(), false)
	if err != nil {
		return errorResult("Scan error: " + err.Error()), nil, nil
	}

	matches := scanner.SearchSymbols(analyses, scanner.SymbolQuery{Name: input.Name, File: input.File})
	if len(matches) == 0 {
		msg := fmt.Sprintf("No functions found matching '%s'", input.Name)
		if input.File != "" {
			msg += fmt.Sprintf(" in file '%s'", input.File)
		}
		return textResult(msg), nil, nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("=== Symbol Search: \"%s\" ===\n", input.Name))
	sb.WriteString(fmt.Sprintf("Path: %s\n\n", absRoot))
	sb.WriteString(fmt.Sprintf("Found %d matches:\n\n", len(matches)))

	for _, m := range matches {
		sb.WriteString(fmt.Sprintf("  %s:%d\n", m.File, m.Line))
		if m.Signature != "" {
			sb.WriteString(fmt.Sprintf("  ├─ %s\n", m.Signature))
		} else {
			sb.WriteString(fmt.Sprintf("  ├─ func %s\n", m.Name))
		}
		sb.WriteString(fmt.Sprintf("  ├─ %d call sites\n", m.Callers))
		if m.Exported {
			sb.WriteString("  └─ exported\n")
		} else {
			sb.WriteString("  └─ private\n")
		}
		if input.Source {
			src, err := scanner.ReadSource(absRoot, m.File, m.Line, m.EndLine)
			if err != nil {
				sb.WriteString(fmt.Sprintf("  (source unavailable: %v)\n", err))
			} else {
				sb.WriteString("\n" + src + "\n")
			}
		}
		sb.WriteString("\n")
	}

	funcWord := "functions"
	if len(matches) == 1 {
		funcWord = "function"
	}
	sb.WriteString("───────────────────────────────────\n")
	sb.WriteString(fmt.Sprintf("Matches: %d %s\n", len(matches), funcWord))

	return textResult(sb.String()), nil, nil
}

// findFunctions resolves a name to callable nodes: exact matches when there
// are any, substring matches otherwise.
func findFunctions(g *graph.CodeGraph, name string) []*graph.Node {
	if n, err := g.ResolveFunction(name); err == nil {
		return []*graph.Node{n}
	}
	var exact []*graph.Node
	for _, n := range g.GetNodesByName(name) {
		if n.Kind.IsCallable() {
			exact = append(exact, n)
		}
	}
	if len(exact) > 0 {
		return exact
	}
	return g.FindNodesByPattern(name, []graph.NodeKind{graph.KindFunction, graph.KindMethod})
}

func handleTracePath(ctx context.Context, req *mcp.CallToolRequest, input TracePathInput) (*mcp.CallToolResult, any, error) {
	absRoot, err := validatePath(input.Path)
	if err != nil {
		return errorResult(err.Error()), nil, nil
	}

	cfg, err := config.Load(absRoot)
	if err != nil {
		return errorResult(err.Error()), nil, nil
	}
	g, err := loadGraph(absRoot, cfg)
	if err != nil {
		return errorResult(err.Error()), nil, nil
	}

	fromNodes := findFunctions(g, input.From)
	if len(fromNodes) == 0 {
		return errorResult(fmt.Sprintf("No function/method found matching '%s'", input.From)), nil, nil
	}
	toNodes := findFunctions(g, input.To)
	if len(toNodes) == 0 {
		return errorResult(fmt.Sprintf("No function/method found matching '%s'", input.To)), nil, nil
	}

	depth := input.Depth
	if depth <= 0 {
		depth = 5
	}

	if input.All {
		return textResult(formatAllPaths(g, fromNodes, toNodes, input.From, input.To, depth)), nil, nil
	}

	var result *graph.PathResult
	for _, from := range fromNodes {
		for _, to := range toNodes {
			if from.ID == to.ID {
				continue
			}
			if path := g.FindPath(from.ID, to.ID, depth); path != nil {
				if result == nil || path.Length < result.Length {
					result = path
				}
			}
		}
	}

	if result == nil {
		return textResult(fmt.Sprintf("No path found between '%s' and '%s' within depth %d", input.From, input.To, depth)), nil, nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("=== Path: %s → %s ===\n", input.From, input.To))
	sb.WriteString(fmt.Sprintf("Length: %d hops\n\n", result.Length))

	for i, node := range result.Path {
		prefix := "├─"
		if i == len(result.Path)-1 {
			prefix = "└─"
		}
		sb.WriteString(fmt.Sprintf("%s %s (%s:%d)\n", prefix, node.Name, node.Path, node.Line))
		if i < len(result.Edges) {
			edge := result.Edges[i]
			sb.WriteString(fmt.Sprintf("   │ %s at line %d\n", edge.Kind, edge.Line))
		}
	}

	return textResult(sb.String()), nil, nil
}

func formatAllPaths(g *graph.CodeGraph, fromNodes, toNodes []*graph.Node, from, to string, depth int) string {
	var paths []*graph.PathResult
	for _, f := range fromNodes {
		for _, t := range toNodes {
			if f.ID != t.ID {
				paths = append(paths, g.FindAllPaths(f.ID, t.ID, depth)...)
			}
		}
	}
	if len(paths) == 0 {
		return fmt.Sprintf("No path found between '%s' and '%s' within depth %d", from, to, depth)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("=== All paths: %s → %s ===\n", from, to))
	sb.WriteString(fmt.Sprintf("Found: %d\n\n", len(paths)))
	for i, p := range paths {
		sb.WriteString(fmt.Sprintf("%d. %s (%d hops)\n", i+1, strings.Join(p.Names(), " → "), p.Length))
	}
	return sb.String()
}

func clampDepth(depth int) int {
	if depth <= 0 {
		return 1
	}
	if depth > 5 {
		return 5
	}
	return depth
}

func handleGetCallers(ctx context.Context, req *mcp.CallToolRequest, input CallersInput) (*mcp.CallToolResult, any, error) {
	return treeResult(input.Path, input.Symbol, clampDepth(input.Depth), "Callers", "Target", (*graph.CodeGraph).GetReverseTree)
}

func handleGetCallees(ctx context.Context, req *mcp.CallToolRequest, input CalleesInput) (*mcp.CallToolResult, any, error) {
	return treeResult(input.Path, input.Symbol, clampDepth(input.Depth), "Callees", "Source", (*graph.CodeGraph).GetDependencyTree)
}

// treeResult renders the caller or callee levels of every function matching
// symbol.
func treeResult(path, symbol string, depth int, title, role string, tree func(*graph.CodeGraph, graph.NodeID, int) map[int][]*graph.Node) (*mcp.CallToolResult, any, error) {
	absRoot, err := validatePath(path)
	if err != nil {
		return errorResult(err.Error()), nil, nil
	}

	cfg, err := config.Load(absRoot)
	if err != nil {
		return errorResult(err.Error()), nil, nil
	}
	g, err := loadGraph(absRoot, cfg)
	if err != nil {
		return errorResult(err.Error()), nil, nil
	}

	nodes := findFunctions(g, symbol)
	if len(nodes) == 0 {
		return errorResult(fmt.Sprintf("No function/method found matching '%s'", symbol)), nil, nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("=== %s of '%s' ===\n\n", title, symbol))

	total := 0
	for _, node := range nodes {
		levels := tree(g, node.ID, depth)
		if len(levels) <= 1 {
			continue
		}

		sb.WriteString(fmt.Sprintf("%s: %s (%s:%d)\n", role, node.Name, node.Path, node.Line))
		for level := 1; level <= depth; level++ {
			for _, n := range levels[level] {
				indent := strings.Repeat("  ", level-1)
				sb.WriteString(fmt.Sprintf("%s├─ %s (%s:%d)\n", indent, n.Name, n.Path, n.Line))
				total++
			}
		}
		sb.WriteString("\n")
	}

	if total == 0 {
		return textResult(fmt.Sprintf("No %s found for '%s'", strings.ToLower(title), symbol)), nil, nil
	}

	sb.WriteString(fmt.Sprintf("───────────────────────────────────\nTotal %s: %d\n", strings.ToLower(title), total))
	return textResult(sb.String()), nil, nil
}
