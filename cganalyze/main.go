package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"cgdemo/cache"
	"cgdemo/config"
	"cgdemo/graph"
	"cgdemo/render"
	"cgdemo/scanner"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	input     string
	outStats  string
	outReduce string
	outJSON   string
	threshold float64
	noDead    bool
	noHot     bool
	noCluster bool
	noJSON    bool
	roots     string

	src       string
	index     bool
	force     bool
	output    string
	emitDOT   string
	query     bool
	from      string
	to        string
	depth     int
	api       bool
	all       bool

	configPath string
	initConfig bool
	clearCache bool
	jsonMode   bool
	browse     bool
	noCache    bool
	debug      bool
	help       bool
	explicit   map[string]bool
	srcArg     bool
	stdout     io.Writer
	stderr     io.Writer
	startedAt  time.Time
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("cganalyze", flag.ContinueOnError)
	fs.SetOutput(stderr)

	o := &options{stdout: stdout, stderr: stderr, startedAt: time.Now()}

	// Analysis of a DOT call graph
	fs.StringVar(&o.input, "input", "output.dot", "Input DOT call graph")
	fs.StringVar(&o.outStats, "output-stats", graph.DefaultStatsFile, "Per-function statistics CSV")
	fs.StringVar(&o.outReduce, "output-reduced", graph.DefaultReducedFile, "Reduced DOT graph")
	fs.StringVar(&o.outJSON, "output-json", graph.DefaultJSONFile, "JSON summary")
	fs.Float64Var(&o.threshold, "threshold", 0, "Minimum importance (0-100) kept in the reduced graph")
	fs.BoolVar(&o.noDead, "no-dead-code", false, "Skip dead code detection")
	fs.BoolVar(&o.noHot, "no-hot-paths", false, "Skip hot path detection")
	fs.BoolVar(&o.noCluster, "no-clustering", false, "Skip function clustering")
	fs.BoolVar(&o.noJSON, "no-json", false, "Skip the JSON summary")
	fs.StringVar(&o.roots, "roots", "", "Comma-separated entry point patterns (empty: every uncalled function)")

	// Source scanning and the index
	fs.StringVar(&o.src, "src", "", "Scan this source tree instead of reading --input")
	fs.BoolVar(&o.index, "index", false, "Build call graph index (.cgdemo/graph.gob)")
	fs.BoolVar(&o.force, "force", false, "Force rebuild index even if up-to-date")
	fs.StringVar(&o.output, "output", "", "Output path for graph file (default: .cgdemo/graph.gob)")
	fs.StringVar(&o.emitDOT, "emit-dot", "", "Also write the scanned call graph as DOT (use with --index)")
	fs.BoolVar(&o.query, "query", false, "Query the call graph index")
	fs.StringVar(&o.from, "from", "", "Query: function to trace from")
	fs.StringVar(&o.to, "to", "", "Query: function to trace to")
	fs.IntVar(&o.depth, "depth", 5, "Query: max traversal depth")
	fs.BoolVar(&o.all, "all", false, "Query: list every path up to --depth, not just the shortest")
	fs.BoolVar(&o.api, "api", false, "Show exported functions only")

	fs.StringVar(&o.configPath, "config", "", "Read configuration from this file only")
	fs.BoolVar(&o.initConfig, "init-config", false, "Write a default .cgdemo/config.yaml")
	fs.BoolVar(&o.clearCache, "clear-cache", false, "Remove every cached analysis result")

	fs.BoolVar(&o.jsonMode, "json", false, "Output JSON (for programmatic use)")
	fs.BoolVar(&o.browse, "browse", false, "Browse the results interactively")
	fs.BoolVar(&o.noCache, "no-cache", false, "Bypass the analysis cache")
	fs.BoolVar(&o.debug, "debug", false, "Show debug info (config, cache, paths)")
	fs.BoolVar(&o.help, "help", false, "Show help")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if o.help {
		usage(stdout)
		return 0
	}

	o.explicit = make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { o.explicit[f.Name] = true })

	root := fs.Arg(0)
	o.srcArg = root != ""
	if root == "" {
		root = o.src
	}
	if root == "" {
		root = "."
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		fmt.Fprintf(stderr, "Error getting absolute path: %v\n", err)
		return 1
	}

	if o.initConfig {
		if err := initConfig(o, absRoot); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}

	var cfg *config.Config
	if o.configPath != "" {
		cfg, err = config.LoadFromPath(o.configPath)
	} else {
		cfg, err = config.Load(absRoot)
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error loading config: %v\n", err)
		return 1
	}
	if o.debug {
		cfg.Debug = true
	}
	if o.noCache {
		cfg.Cache.Enabled = false
	}

	if cfg.Debug {
		fmt.Fprintf(stderr, "[debug] Root path: %s\n", root)
		fmt.Fprintf(stderr, "[debug] Absolute path: %s\n", absRoot)
		if o.configPath != "" {
			fmt.Fprintf(stderr, "[debug] Loaded config from: %s\n", o.configPath)
		} else if _, err := os.Stat(config.ProjectConfigPath(absRoot)); err == nil {
			fmt.Fprintf(stderr, "[debug] Loaded project config from: %s\n", config.ProjectConfigPath(absRoot))
		}
		fmt.Fprintf(stderr, "[debug] Cache enabled: %v\n", cfg.Cache.Enabled)
	}

	switch {
	case o.clearCache:
		err = runClearCache(o, absRoot, cfg)
	case o.index:
		err = runIndexMode(o, absRoot, cfg)
	case o.query:
		err = runQueryMode(o, absRoot, cfg)
	case o.api:
		err = runAPIMode(o, absRoot, cfg)
	default:
		err = runAnalyzeMode(o, absRoot, cfg)
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "cganalyze - call graph analysis: dead code, cycles, hot paths, clusters")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: cganalyze [options] [path]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Modes:")
	fmt.Fprintln(w, "  (default)          Analyze --input (DOT) or --src (source tree)")
	fmt.Fprintln(w, "  --index            Build call graph index (.cgdemo/graph.gob)")
	fmt.Fprintln(w, "  --query            Query the call graph index")
	fmt.Fprintln(w, "  --api              Show exported functions only")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Analysis:")
	fmt.Fprintln(w, "  --input <file>           DOT call graph (default: output.dot)")
	fmt.Fprintln(w, "  --src <dir>              Scan Go/C/Python sources instead")
	fmt.Fprintln(w, "  --output-stats <file>    Statistics CSV (default: function_stats.csv)")
	fmt.Fprintln(w, "  --output-reduced <file>  Reduced graph (default: reduced_graph.dot)")
	fmt.Fprintln(w, "  --output-json <file>     JSON summary (default: analysis_results.json)")
	fmt.Fprintln(w, "  --threshold <n>          Minimum importance kept in the reduced graph")
	fmt.Fprintln(w, "  --roots <patterns>       Entry point name globs, comma-separated")
	fmt.Fprintln(w, "                           (default: main,init,Test*,Benchmark*,Example*,Fuzz*)")
	fmt.Fprintln(w, "  --no-dead-code, --no-hot-paths, --no-clustering, --no-json")
	fmt.Fprintln(w, "  --browse                 Browse results interactively")
	fmt.Fprintln(w, "  --no-cache               Bypass the analysis cache")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Index mode (--index):")
	fmt.Fprintln(w, "  --force            Force rebuild even if index is up-to-date")
	fmt.Fprintln(w, "  --output <path>    Output path for graph file (default: .cgdemo/graph.gob)")
	fmt.Fprintln(w, "  --emit-dot <path>  Also write the call graph as DOT")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Query mode (--query):")
	fmt.Fprintln(w, "  --from <name>      Find what a function calls")
	fmt.Fprintln(w, "  --to <name>        Find what calls a function")
	fmt.Fprintln(w, "  --depth <n>        Max traversal depth (default: 5)")
	fmt.Fprintln(w, "  --all              With --from and --to, list every path")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Entry points and dead code:")
	fmt.Fprintln(w, "  Entry points are the functions whose names match --roots (or analysis.roots")
	fmt.Fprintln(w, "  in the config). Dead code is whatever they cannot reach. When no function")
	fmt.Fprintln(w, "  matches, every function without callers is an entry point instead, so")
	fmt.Fprintln(w, "  --roots '' treats uncalled functions as entry points rather than dead code.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Configuration:")
	fmt.Fprintln(w, "  --config <file>    Use this file instead of the user and project configs")
	fmt.Fprintln(w, "  --init-config      Write a default .cgdemo/config.yaml (--force overwrites)")
	fmt.Fprintln(w, "  --clear-cache      Remove every cached analysis result")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Options:")
	fmt.Fprintln(w, "  --json             Output JSON (for programmatic use)")
	fmt.Fprintln(w, "  --debug            Show debug info")
	fmt.Fprintln(w, "  --help             Show this help message")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Examples:")
	fmt.Fprintln(w, "  cganalyze --input output.dot                 # Analyze a DOT graph")
	fmt.Fprintln(w, "  cganalyze --src . --threshold 20             # Analyze sources")
	fmt.Fprintln(w, "  cganalyze --index --emit-dot output.dot .    # Build index and DOT")
	fmt.Fprintln(w, "  cganalyze --query --from main --to digit .   # Find path from A to B")
}

func (o *options) progress(msg string) {
	if !o.jsonMode {
		fmt.Fprintln(o.stderr, msg)
	}
}

func (o *options) debugf(cfg *config.Config, format string, args ...any) {
	if cfg.Debug {
		fmt.Fprintf(o.stderr, "[debug] "+format+"\n", args...)
	}
}

// analysisOptions layers explicit flags over the loaded config.
func (o *options) analysisOptions(cfg *config.Config) graph.AnalysisOptions {
	opts := cfg.AnalysisOptions()
	if o.explicit["threshold"] {
		opts.Threshold = o.threshold
	}
	if o.explicit["roots"] {
		opts.Roots = splitList(o.roots)
	}
	if o.noDead {
		opts.DeadCode = false
	}
	if o.noHot {
		opts.HotPaths = false
	}
	if o.noCluster {
		opts.Clustering = false
	}
	opts.Progress = o.progress
	return opts
}

func (o *options) outputs(cfg *config.Config) graph.Outputs {
	out := cfg.Outputs()
	if o.explicit["output-stats"] {
		out.Stats = o.outStats
	}
	if o.explicit["output-reduced"] {
		out.Reduced = o.outReduce
	}
	if o.explicit["output-json"] {
		out.JSON = o.outJSON
	}
	if o.noJSON {
		out.JSON = ""
	}
	return out
}

// loadInput returns the graph to analyze and a hash of what it was built
// from, for the report cache.
func loadInput(o *options, absRoot string, cfg *config.Config) (*graph.CodeGraph, string, error) {
	if o.src != "" || (o.srcArg && !o.explicit["input"]) {
		gitignore := scanner.LoadGitignore(absRoot)
		hash := ""
		if cfg.Cache.Enabled {
			if files, err := scanner.SourceFiles(absRoot, gitignore, cfg.Analysis.SkipTests); err == nil {
				hash, _ = cache.HashFiles(files)
			}
		}
		o.progress(fmt.Sprintf("Scanning %s...", absRoot))
		g, err := graph.BuildProject(absRoot, cfg.Analysis.SkipTests,
			graph.WithExternal(cfg.Analysis.IncludeExternal),
			graph.WithProgress(func(msg string) { o.debugf(cfg, "%s", msg) }))
		return g, hash, err
	}

	o.progress(fmt.Sprintf("Loading graph from %s...", o.input))
	data, err := os.ReadFile(o.input)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", fmt.Errorf("input file %q not found", o.input)
		}
		return nil, "", err
	}
	g, err := graph.ParseDOT(o.input, data)
	if err != nil {
		return nil, "", err
	}
	return g, cache.ContentHash(data), nil
}

func runAnalyzeMode(o *options, absRoot string, cfg *config.Config) error {
	g, hash, err := loadInput(o, absRoot, cfg)
	if err != nil {
		return err
	}
	o.progress(fmt.Sprintf("Loaded %d functions, %d calls", len(g.Functions()), len(g.Edges)))

	opts := o.analysisOptions(cfg)

	c, err := cache.New(cfg.CacheOptions(absRoot))
	if err != nil {
		o.debugf(cfg, "cache disabled: %v", err)
		c, _ = cache.New(cache.Options{Enabled: false})
	}
	fingerprint := cache.Fingerprint(struct {
		Options  graph.AnalysisOptions
		External bool
	}{opts, cfg.Analysis.IncludeExternal})

	var report *graph.Report
	var cached graph.Report
	if hash != "" && c.Load(hash, "analyze", fingerprint, &cached) {
		o.debugf(cfg, "report served from cache (%s)", hash[:12])
		report = &cached
	} else {
		report, err = graph.Analyze(g, opts)
		if err != nil {
			return err
		}
		if hash != "" {
			if err := c.Store(hash, "analyze", fingerprint, report); err != nil {
				o.debugf(cfg, "cache write failed: %v", err)
			} else if err := c.Cleanup(); err != nil {
				o.debugf(cfg, "cache cleanup failed: %v", err)
			}
		}
	}
	if c.Enabled() {
		st := c.Stats()
		o.debugf(cfg, "cache: %d entries, %d hits, %d misses, %d evicted (hit rate %.0f%%)",
			c.Size(), st.Hits, st.Misses, st.Evictions, c.HitRate()*100)
	}

	reduced := graph.ReducedGraph(g, report, opts.Threshold)
	written, err := graph.ExportAll(report, reduced, o.outputs(cfg))
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}

	switch {
	case o.jsonMode:
		enc := json.NewEncoder(o.stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	case o.browse:
		if err := render.Browse(report); err != nil {
			return err
		}
	default:
		render.Report(o.stdout, report, render.TerminalWidth())
	}

	if !o.jsonMode {
		fmt.Fprintln(o.stdout, "Analysis completed successfully!")
		fmt.Fprintln(o.stdout, "Generated files:")
		for _, p := range written {
			fmt.Fprintf(o.stdout, "  - %s\n", p)
		}
	}
	o.debugf(cfg, "finished in %s", time.Since(o.startedAt).Round(time.Millisecond))
	return nil
}

// initConfig writes the default project config, refusing to overwrite an
// existing one without --force.
func initConfig(o *options, absRoot string) error {
	path := config.ProjectConfigPath(absRoot)
	if o.configPath != "" {
		path = o.configPath
	}
	if _, err := os.Stat(path); err == nil && !o.force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := config.WriteDefault(path); err != nil {
		return err
	}
	fmt.Fprintf(o.stdout, "✓ Wrote default config to %s\n", path)
	return nil
}

func runClearCache(o *options, absRoot string, cfg *config.Config) error {
	opts := cfg.CacheOptions(absRoot)
	opts.Enabled = true
	c, err := cache.New(opts)
	if err != nil {
		return err
	}
	n := c.Size()
	if err := c.Clear(); err != nil {
		return fmt.Errorf("clearing cache: %w", err)
	}
	if o.jsonMode {
		return json.NewEncoder(o.stdout).Encode(map[string]interface{}{
			"status":  "cleared",
			"path":    opts.Dir,
			"removed": n,
		})
	}
	fmt.Fprintf(o.stdout, "✓ Cleared %d cached results from %s\n", n, opts.Dir)
	return nil
}

func runIndexMode(o *options, absRoot string, cfg *config.Config) error {
	graphPath := o.output
	if graphPath == "" {
		graphPath = graph.GraphPath(absRoot)
	}

	if !o.force {
		existing, stale, err := graph.LoadIndex(graphPath, absRoot, cfg.BuildSettings())
		switch {
		case err == nil && !stale:
			stats := existing.GetStats()
			if o.jsonMode {
				return json.NewEncoder(o.stdout).Encode(map[string]interface{}{
					"status":     "up-to-date",
					"path":       graphPath,
					"nodes":      stats.TotalNodes,
					"edges":      stats.TotalEdges,
					"indexed_at": time.Unix(existing.LastIndexed, 0).Format(time.RFC3339),
				})
			}
			fmt.Fprintf(o.stdout, "✓ Index is up-to-date (%d nodes, %d edges)\n", stats.TotalNodes, stats.TotalEdges)
			fmt.Fprintf(o.stdout, "  Path: %s\n", graphPath)
			fmt.Fprintf(o.stdout, "  Last indexed: %s\n", time.Unix(existing.LastIndexed, 0).Format(time.RFC3339))
			return o.writeDOT(existing)
		case err == nil:
			o.debugf(cfg, "index is stale, rebuilding")
		case !errors.Is(err, graph.ErrNoIndex):
			o.debugf(cfg, "rebuilding unreadable index: %v", err)
		}
	}

	start := time.Now()
	g, err := graph.BuildProject(absRoot, cfg.Analysis.SkipTests,
		graph.WithExternal(cfg.Analysis.IncludeExternal),
		graph.WithProgress(func(msg string) { o.debugf(cfg, "%s", msg) }))
	if err != nil {
		return fmt.Errorf("scanning: %w", err)
	}

	if err := g.SaveBinary(graphPath); err != nil {
		return fmt.Errorf("saving index: %w", err)
	}
	if err := o.writeDOT(g); err != nil {
		return err
	}

	stats := g.GetStats()
	if o.jsonMode {
		return json.NewEncoder(o.stdout).Encode(map[string]interface{}{
			"status":   "indexed",
			"path":     graphPath,
			"nodes":    stats.TotalNodes,
			"edges":    stats.TotalEdges,
			"files":    stats.FileCount,
			"duration": time.Since(start).String(),
		})
	}
	fmt.Fprintf(o.stdout, "✓ Indexed %d files: %d functions, %d calls (%s)\n",
		stats.FileCount, stats.FunctionCount, stats.EdgesByKind[graph.EdgeCalls.String()], time.Since(start).Round(time.Millisecond))
	fmt.Fprintf(o.stdout, "  Path: %s\n", graphPath)
	if o.emitDOT != "" {
		fmt.Fprintf(o.stdout, "  DOT: %s\n", o.emitDOT)
	}
	return nil
}

func (o *options) writeDOT(g *graph.CodeGraph) error {
	if o.emitDOT == "" {
		return nil
	}
	f, err := os.Create(o.emitDOT)
	if err != nil {
		return err
	}
	if err := graph.WriteDOT(f, g, "callgraph"); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func runQueryMode(o *options, absRoot string, cfg *config.Config) error {
	g, stale, err := graph.LoadIndex(graph.GraphPath(absRoot), absRoot, cfg.BuildSettings())
	if errors.Is(err, graph.ErrNoIndex) {
		return fmt.Errorf("%w, run 'cganalyze --index' first", err)
	}
	if err != nil {
		return fmt.Errorf("loading index: %w", err)
	}
	if stale && !o.jsonMode {
		fmt.Fprintln(o.stderr, "⚠️  Index is out of date, run 'cganalyze --index' to refresh it")
	}

	// No functions named: show stats
	if o.from == "" && o.to == "" {
		stats := g.GetStats()
		if o.jsonMode {
			return json.NewEncoder(o.stdout).Encode(stats)
		}
		fmt.Fprintf(o.stdout, "Graph Statistics:\n")
		fmt.Fprintf(o.stdout, "  Total nodes: %d\n", stats.TotalNodes)
		fmt.Fprintf(o.stdout, "  Total edges: %d\n", stats.TotalEdges)
		fmt.Fprintf(o.stdout, "  Files: %d\n", stats.FileCount)
		fmt.Fprintf(o.stdout, "  Functions: %d\n", stats.FunctionCount)
		fmt.Fprintf(o.stdout, "  External callees: %d\n", stats.ExternalCount)
		fmt.Fprintf(o.stdout, "  Calls per function: %.2f\n", stats.AvgCallsPerFunc)
		fmt.Fprintf(o.stdout, "\nNode types:\n")
		for _, kind := range sortedKeys(stats.NodesByKind) {
			fmt.Fprintf(o.stdout, "  %s: %d\n", kind, stats.NodesByKind[kind])
		}
		return nil
	}

	// Path query: from A to B
	if o.from != "" && o.to != "" {
		from, err := g.ResolveFunction(o.from)
		if err != nil {
			return err
		}
		to, err := g.ResolveFunction(o.to)
		if err != nil {
			return err
		}

		if o.all {
			return printAllPaths(o, g.FindAllPaths(from.ID, to.ID, o.depth))
		}

		path := g.FindPath(from.ID, to.ID, o.depth)
		if path == nil {
			fmt.Fprintf(o.stdout, "No path found from '%s' to '%s' (depth=%d)\n", o.from, o.to, o.depth)
			return nil
		}

		if o.jsonMode {
			return json.NewEncoder(o.stdout).Encode(path)
		}
		fmt.Fprintf(o.stdout, "Path from %s to %s (length: %d):\n\n", o.from, o.to, path.Length)
		for i, node := range path.Path {
			fmt.Fprintf(o.stdout, "  %d. %s [%s] %s:%d\n", i+1, node.Name, node.Kind, node.Path, node.Line)
			if i < len(path.Edges) {
				fmt.Fprintf(o.stdout, "     └─ %s ──>\n", path.Edges[i].Kind)
			}
		}
		return nil
	}

	// One-sided query: what X calls, or what calls X
	name, tree, title := o.from, (*graph.CodeGraph).GetDependencyTree, "Called by"
	if o.to != "" {
		name, tree, title = o.to, (*graph.CodeGraph).GetReverseTree, "Callers of"
	}
	nodes := g.FindNodesByPattern(name, nil)
	if len(nodes) == 0 {
		return fmt.Errorf("no functions found matching '%s'", name)
	}

	type treeResult struct {
		Root   *graph.Node           `json:"root"`
		Levels map[int][]*graph.Node `json:"levels"`
	}
	var results []treeResult
	for _, n := range nodes {
		levels := tree(g, n.ID, o.depth)
		delete(levels, 0)
		if len(levels) > 0 {
			results = append(results, treeResult{Root: n, Levels: levels})
		}
	}

	if o.jsonMode {
		return json.NewEncoder(o.stdout).Encode(results)
	}
	if len(results) == 0 {
		fmt.Fprintf(o.stdout, "No calls found for '%s'\n", name)
		return nil
	}
	for _, r := range results {
		fmt.Fprintf(o.stdout, "%s %s [%s] %s:%d\n", title, r.Root.Name, r.Root.Kind, r.Root.Path, r.Root.Line)
		for depth := 1; depth <= o.depth; depth++ {
			for _, n := range r.Levels[depth] {
				fmt.Fprintf(o.stdout, "  %d └─ %s [%s] %s:%d\n", depth, n.Name, n.Kind, n.Path, n.Line)
			}
		}
		fmt.Fprintln(o.stdout)
	}
	return nil
}

func runAPIMode(o *options, absRoot string, cfg *config.Config) error {
	analyses, err := scanner.ScanForCalls(absRoot, scanner.LoadGitignore(absRoot), scanner.NewGrammarLoader(), true)
	if err != nil {
		return fmt.Errorf("scanning: %w", err)
	}
	o.debugf(cfg, "scanned %d files", len(analyses))

	if o.jsonMode {
		var exported []scanner.SymbolMatch
		for _, m := range scanner.SearchSymbols(analyses, scanner.SymbolQuery{}) {
			if m.Exported {
				exported = append(exported, m)
			}
		}
		return json.NewEncoder(o.stdout).Encode(exported)
	}
	render.APIView(o.stdout, absRoot, analyses)
	return nil
}

func printAllPaths(o *options, paths []*graph.PathResult) error {
	if o.jsonMode {
		return json.NewEncoder(o.stdout).Encode(paths)
	}
	if len(paths) == 0 {
		fmt.Fprintf(o.stdout, "No path found from '%s' to '%s' (depth=%d)\n", o.from, o.to, o.depth)
		return nil
	}
	fmt.Fprintf(o.stdout, "Paths from %s to %s: %d\n\n", o.from, o.to, len(paths))
	for i, p := range paths {
		fmt.Fprintf(o.stdout, "  %d. %s (length: %d)\n", i+1, strings.Join(p.Names(), " -> "), p.Length)
	}
	return nil
}

// splitList splits a comma-separated flag value, dropping empty items.
func splitList(v string) []string {
	var items []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
