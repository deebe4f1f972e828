package graph

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cgdemo/scanner"
)

const goCorpus = "../scanner/testdata/corpus/go"

func buildCorpus(t *testing.T, opts ...BuilderOption) *CodeGraph {
	t.Helper()
	analyses, err := scanner.ScanForCalls(goCorpus, nil, scanner.NewGrammarLoader(), true)
	if err != nil {
		t.Fatalf("scan corpus: %v", err)
	}
	return BuildFromAnalyses(goCorpus, analyses, opts...)
}

func mustResolve(t *testing.T, g *CodeGraph, name string) *Node {
	t.Helper()
	n, err := g.ResolveFunction(name)
	if err != nil {
		t.Fatalf("resolve %s: %v", name, err)
	}
	return n
}

func calleeNames(g *CodeGraph, n *Node) []string {
	var names []string
	for _, c := range g.GetCallees(n.ID) {
		names = append(names, c.Name)
	}
	return names
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

func TestBuildCorpus(t *testing.T) {
	g := buildCorpus(t)

	stats := g.GetStats()
	if stats.FileCount != 2 {
		t.Errorf("files = %d, want 2", stats.FileCount)
	}
	if stats.FunctionCount != 13 {
		t.Errorf("functions = %d, want 13", stats.FunctionCount)
	}
	if stats.ExternalCount != 0 {
		t.Errorf("externals = %d, want 0 without WithExternal", stats.ExternalCount)
	}

	tests := []struct {
		caller  string
		callees []string
	}{
		{"main", []string{"tokenize", "evaluate", "newStack"}},
		{"apply", []string{"pop", "push", "combine", "parseInt", "evaluate"}},
		{"parseInt", []string{"each", "digit"}},
		{"countdown", []string{"countdown"}},
	}
	for _, tt := range tests {
		t.Run(tt.caller, func(t *testing.T) {
			got := calleeNames(g, mustResolve(t, g, tt.caller))
			for _, want := range tt.callees {
				if !contains(got, want) {
					t.Errorf("%s callees = %v, missing %s", tt.caller, got, want)
				}
			}
		})
	}

	push := mustResolve(t, g, "push")
	if push.Kind != KindMethod || push.Receiver != "*stack" || push.Path != "stack.go" {
		t.Errorf("push = %+v, want method on *stack in stack.go", push)
	}
}

func TestBuildWithExternal(t *testing.T) {
	g := buildCorpus(t, WithExternal(true))

	var externals []string
	for _, n := range g.Nodes {
		if n.Kind == KindExternal {
			externals = append(externals, n.Name)
		}
	}
	for _, want := range []string{"strings.Fields", "fmt.Println", "fmt.Sprintf"} {
		if !contains(externals, want) {
			t.Errorf("externals = %v, missing %s", externals, want)
		}
	}
}

func TestBuildProgress(t *testing.T) {
	var msgs []string
	buildCorpus(t, WithProgress(func(msg string) { msgs = append(msgs, msg) }))
	if len(msgs) == 0 || !strings.HasPrefix(msgs[len(msgs)-1], "Built graph:") {
		t.Errorf("progress = %v", msgs)
	}
}

func TestAnalyzeCorpus(t *testing.T) {
	g := buildCorpus(t)
	report, err := Analyze(g, DefaultAnalysisOptions())
	if err != nil {
		t.Fatal(err)
	}

	if report.Nodes != 13 || report.Edges != 12 {
		t.Errorf("nodes/edges = %d/%d, want 13/12", report.Nodes, report.Edges)
	}
	if got := strings.Join(report.EntryPoints, ","); got != "main" {
		t.Errorf("entry points = %s, want main", got)
	}
	if got := strings.Join(report.DeadCode, ","); got != "countdown,legacyFormat" {
		t.Errorf("dead code = %s", got)
	}
	if len(report.Cycles) != 2 ||
		strings.Join(report.Cycles[0], ",") != "apply,evaluate" ||
		strings.Join(report.Cycles[1], ",") != "countdown" {
		t.Errorf("cycles = %v", report.Cycles)
	}
}

func TestAnalyzeDemoProgram(t *testing.T) {
	fa, err := scanner.AnalyzeGoFile("../main.go")
	if err != nil {
		t.Fatal(err)
	}
	g := BuildFromAnalyses("..", []scanner.FileAnalysis{*fa})

	report, err := Analyze(g, DefaultAnalysisOptions())
	if err != nil {
		t.Fatal(err)
	}

	if report.Nodes != 13 || report.Edges != 15 {
		t.Errorf("nodes/edges = %d/%d, want 13/15", report.Nodes, report.Edges)
	}
	if got := strings.Join(report.DeadCode, ","); got != "unusedFunction" {
		t.Errorf("dead code = %s, want unusedFunction", got)
	}
	if len(report.Cycles) != 1 || strings.Join(report.Cycles[0], ",") != "cycle1,cycle2" {
		t.Errorf("cycles = %v", report.Cycles)
	}

	if fs := report.Function("process"); fs == nil || fs.Importance != 100 {
		t.Errorf("process stats = %+v, want importance 100", fs)
	}
	if fs := report.Function("main"); fs == nil || fs.Importance != 0 || !fs.IsEntry || fs.InDegree != 0 {
		t.Errorf("main stats = %+v", fs)
	}
	if fs := report.Function("unusedFunction"); fs == nil || !fs.IsDead {
		t.Errorf("unusedFunction stats = %+v", fs)
	}

	sum := 0.0
	for _, fs := range report.Functions {
		sum += fs.PageRank
	}
	if sum < 0.999 || sum > 1.001 {
		t.Errorf("pagerank sum = %f, want 1", sum)
	}

	if len(report.HotPaths) == 0 || len(report.HotPaths) > 10 {
		t.Fatalf("hot paths = %d", len(report.HotPaths))
	}
	for i, hp := range report.HotPaths {
		if hp.Path[0] != "main" {
			t.Errorf("hot path %d starts at %s", i, hp.Path[0])
		}
		if len(hp.Path) > 5 {
			t.Errorf("hot path %d has %d nodes", i, len(hp.Path))
		}
		if i > 0 && hp.Score > report.HotPaths[i-1].Score {
			t.Errorf("hot paths not sorted at %d", i)
		}
	}

	seen := make(map[string]int)
	for _, c := range report.Clusters {
		for _, name := range c {
			seen[name]++
		}
	}
	if len(seen) != 13 {
		t.Errorf("clusters cover %d functions, want 13", len(seen))
	}
	for name, n := range seen {
		if n != 1 {
			t.Errorf("%s appears in %d clusters", name, n)
		}
	}
}

func TestAnalyzeToggles(t *testing.T) {
	g := buildCorpus(t)
	opts := DefaultAnalysisOptions()
	opts.DeadCode = false
	opts.HotPaths = false
	opts.Clustering = false

	report, err := Analyze(g, opts)
	if err != nil {
		t.Fatal(err)
	}
	if len(report.DeadCode) != 0 || len(report.HotPaths) != 0 || len(report.Clusters) != 0 {
		t.Errorf("disabled analyses ran: %+v", report)
	}
	if len(report.EntryPoints) != 1 {
		t.Errorf("entry points still computed, got %v", report.EntryPoints)
	}
}

func TestAnalyzeInDegreeFallback(t *testing.T) {
	g, err := ParseDOT("inline", []byte(`digraph G { a -> b; b -> c; x -> y; y -> x; }`))
	if err != nil {
		t.Fatal(err)
	}
	report, err := Analyze(g, DefaultAnalysisOptions())
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(report.EntryPoints, ","); got != "a" {
		t.Errorf("entry points = %s, want a", got)
	}
	if got := strings.Join(report.DeadCode, ","); got != "x,y" {
		t.Errorf("dead code = %s, want x,y", got)
	}
	if report.Components != 2 {
		t.Errorf("components = %d, want 2", report.Components)
	}
}

func TestAnalyzeEmpty(t *testing.T) {
	if _, err := Analyze(NewCodeGraph("empty"), DefaultAnalysisOptions()); !errors.Is(err, ErrEmptyGraph) {
		t.Errorf("err = %v, want ErrEmptyGraph", err)
	}
}

func TestReducedGraph(t *testing.T) {
	fa, err := scanner.AnalyzeGoFile("../main.go")
	if err != nil {
		t.Fatal(err)
	}
	g := BuildFromAnalyses("..", []scanner.FileAnalysis{*fa})
	report, err := Analyze(g, DefaultAnalysisOptions())
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		threshold float64
		want      []string
		edges     int
	}{
		{50, []string{"process", "run"}, 1},
		{101, []string{"process"}, 0},
	}
	for _, tt := range tests {
		reduced := ReducedGraph(g, report, tt.threshold)
		var names []string
		for _, n := range reduced.Functions() {
			names = append(names, n.Name)
		}
		if strings.Join(names, ",") != strings.Join(tt.want, ",") {
			t.Errorf("threshold %v: nodes = %v, want %v", tt.threshold, names, tt.want)
		}
		if len(reduced.Edges) != tt.edges {
			t.Errorf("threshold %v: edges = %d, want %d", tt.threshold, len(reduced.Edges), tt.edges)
		}
	}
}

func TestParseDOT(t *testing.T) {
	src := `digraph calls {
	a -> b -> c;
	a -> a;
	a -> b;
	"d" [label="D node"];
	subgraph s { e; } -> a;
}`
	g, err := ParseDOT("inline", []byte(src))
	if err != nil {
		t.Fatal(err)
	}
	if len(g.Nodes) != 5 {
		t.Errorf("nodes = %d, want 5", len(g.Nodes))
	}
	if len(g.Edges) != 3 {
		t.Errorf("edges = %d, want 3 (a->b, b->c, e->a)", len(g.Edges))
	}
	d := mustResolve(t, g, "d")
	if d.Label != "D node" {
		t.Errorf("d label = %q", d.Label)
	}
}

func TestParseDOTErrors(t *testing.T) {
	if _, err := ParseDOT("empty", []byte("digraph G {}")); !errors.Is(err, ErrEmptyGraph) {
		t.Errorf("empty graph err = %v", err)
	}
	if _, err := ParseDOT("bad", []byte("digraph {")); err == nil {
		t.Error("expected parse error")
	}
	if _, err := LoadDOT(filepath.Join(t.TempDir(), "missing.dot")); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("missing file err = %v", err)
	}
}

func TestDOTRoundTrip(t *testing.T) {
	g := buildCorpus(t)

	var buf bytes.Buffer
	if err := WriteDOT(&buf, g, "corpus"); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "corpus.dot")
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
	back, err := LoadDOT(path)
	if err != nil {
		t.Fatalf("reload: %v\n%s", err, buf.String())
	}

	if len(back.Nodes) != 13 {
		t.Errorf("nodes = %d, want 13", len(back.Nodes))
	}
	// the countdown self loop is not written
	if len(back.Edges) != 12 {
		t.Errorf("edges = %d, want 12", len(back.Edges))
	}
	if got := calleeNames(back, mustResolve(t, back, "parseInt")); len(got) != 2 {
		t.Errorf("parseInt callees = %v", got)
	}
}

func TestStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	g := buildCorpus(t)
	path := GraphPath(dir)

	if Exists(path) {
		t.Fatal("graph exists before save")
	}
	if err := g.SaveBinary(path); err != nil {
		t.Fatal(err)
	}
	if !Exists(path) {
		t.Fatal("graph missing after save")
	}

	loaded, err := LoadBinary(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded.Nodes) != len(g.Nodes) || len(loaded.Edges) != len(g.Edges) {
		t.Errorf("loaded %d/%d, want %d/%d", len(loaded.Nodes), len(loaded.Edges), len(g.Nodes), len(g.Edges))
	}
	if got := loaded.GetCallers(mustResolve(t, loaded, "digit").ID); len(got) != 1 || got[0].Name != "parseInt" {
		t.Errorf("digit callers after load = %v", got)
	}
}

func TestIsStale(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.go")
	if err := os.WriteFile(src, []byte("package a\n\nfunc A() {}\n"), 0644); err != nil {
		t.Fatal(err)
	}
	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(src, past, past); err != nil {
		t.Fatal(err)
	}

	analyses, err := scanner.ScanForCalls(dir, nil, scanner.NewGrammarLoader(), true)
	if err != nil {
		t.Fatal(err)
	}
	g := BuildFromAnalyses(dir, analyses)

	if stale, _ := IsStale(g, dir); stale {
		t.Error("fresh graph reported stale")
	}
	if stale, _ := IsStale(nil, dir); !stale {
		t.Error("nil graph should be stale")
	}

	if err := os.Remove(src); err != nil {
		t.Fatal(err)
	}
	if stale, _ := IsStale(g, dir); !stale {
		t.Error("graph with deleted file should be stale")
	}
}

func TestQueries(t *testing.T) {
	g := buildCorpus(t)
	main := mustResolve(t, g, "main")
	digit := mustResolve(t, g, "digit")
	pop := mustResolve(t, g, "pop")

	p := g.FindPath(main.ID, digit.ID, 0)
	if p == nil {
		t.Fatal("no path main -> digit")
	}
	if got := strings.Join(p.Names(), " -> "); got != "main -> evaluate -> apply -> parseInt -> digit" {
		t.Errorf("path = %s", got)
	}
	if g.FindPath(digit.ID, main.ID, 0) != nil {
		t.Error("unexpected path digit -> main")
	}

	all := g.FindAllPaths(main.ID, pop.ID, 5)
	if len(all) != 2 || all[0].Length != 2 || all[1].Length != 3 {
		for _, r := range all {
			t.Log(r.Names())
		}
		t.Errorf("main -> pop paths = %d", len(all))
	}

	rev := g.GetReverseTree(pop.ID, 3)
	if len(rev[1]) != 2 || rev[1][0].Name != "apply" || rev[1][1].Name != "evaluate" {
		t.Errorf("pop callers level 1 = %v", rev[1])
	}
	if len(rev[2]) != 1 || rev[2][0].Name != "main" {
		t.Errorf("pop callers level 2 = %v", rev[2])
	}

	deps := g.GetDependencyTree(main.ID, 1)
	if len(deps[1]) != 3 {
		t.Errorf("main direct deps = %v", deps[1])
	}

	// countdown matches on its path, stack.go
	if got := g.FindNodesByPattern("STACK", nil); len(got) != 4 {
		t.Errorf("pattern stack matched %d nodes, want 4", len(got))
	}
	if _, err := g.ResolveFunction("nope"); err == nil {
		t.Error("expected error for unknown function")
	}
	if n, err := g.ResolveFunction("stack.go:push"); err != nil || n.Name != "push" {
		t.Errorf("qualified resolve = %v, %v", n, err)
	}
}

func TestExports(t *testing.T) {
	fa, err := scanner.AnalyzeGoFile("../main.go")
	if err != nil {
		t.Fatal(err)
	}
	g := BuildFromAnalyses("..", []scanner.FileAnalysis{*fa})
	report, err := Analyze(g, DefaultAnalysisOptions())
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	written, err := ExportAll(report, ReducedGraph(g, report, 0), DefaultOutputs(dir))
	if err != nil {
		t.Fatal(err)
	}
	if len(written) != 6 {
		t.Errorf("written = %v, want 6 files", written)
	}

	stats, err := os.ReadFile(filepath.Join(dir, DefaultStatsFile))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(stats)), "\n")
	if lines[0] != "Function,In_Degree,Out_Degree,Betweenness,PageRank,Is_Entry,Is_Dead" {
		t.Errorf("csv header = %s", lines[0])
	}
	if len(lines) != 14 {
		t.Errorf("csv rows = %d, want 14", len(lines))
	}
	if !strings.Contains(string(stats), "\nunusedFunction,0,0,0,") || !strings.Contains(string(stats), ",False,True\n") {
		t.Errorf("unusedFunction row missing:\n%s", stats)
	}

	hot, err := os.ReadFile(filepath.Join(dir, DefaultHotPathsFile))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(hot), "Hot Path #1\nScore: ") || !strings.Contains(string(hot), "main -> run") {
		t.Errorf("hot paths:\n%s", hot)
	}

	dead, err := os.ReadFile(filepath.Join(dir, DefaultDeadCodeFile))
	if err != nil {
		t.Fatal(err)
	}
	if string(dead) != "unusedFunction\n" {
		t.Errorf("dead code file = %q", dead)
	}

	js, err := os.ReadFile(filepath.Join(dir, DefaultJSONFile))
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{`"nodes": 13`, `"edges": 15`, `"dead_code"`, `"hot_paths"`, `"entry_points"`, `"cycles"`} {
		if !bytes.Contains(js, []byte(key)) {
			t.Errorf("json missing %s", key)
		}
	}
}

func TestExportAllSkipsEmpty(t *testing.T) {
	g, err := ParseDOT("inline", []byte(`digraph G { main -> a; }`))
	if err != nil {
		t.Fatal(err)
	}
	opts := DefaultAnalysisOptions()
	opts.HotPaths = false
	opts.Clustering = false
	report, err := Analyze(g, opts)
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	out := DefaultOutputs(dir)
	out.JSON = ""
	written, err := ExportAll(report, ReducedGraph(g, report, 0), out)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{out.Stats, out.Reduced}
	if strings.Join(written, ",") != strings.Join(want, ",") {
		t.Errorf("written = %v, want %v", written, want)
	}
}

func TestLoadIndex(t *testing.T) {
	dir := t.TempDir()
	write := func(name, src string) {
		t.Helper()
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(src), 0644); err != nil {
			t.Fatal(err)
		}
		past := time.Now().Add(-time.Hour)
		if err := os.Chtimes(p, past, past); err != nil {
			t.Fatal(err)
		}
	}
	write("a.go", "package a\n\nfunc A() { b() }\n")
	write("b.go", "package a\n\nfunc b() {}\n")
	write("broken.go", "package a\nfunc {")

	path := GraphPath(dir)
	settings := BuildSettings{SkipTests: true}
	if _, _, err := LoadIndex(path, dir, settings); !errors.Is(err, ErrNoIndex) {
		t.Fatalf("err = %v, want ErrNoIndex", err)
	}

	g, err := BuildProject(dir, true)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(g.Files, ",") != "a.go,b.go,broken.go" {
		t.Errorf("files = %v", g.Files)
	}
	if err := g.SaveBinary(path); err != nil {
		t.Fatal(err)
	}

	loaded, stale, err := LoadIndex(path, dir, settings)
	if err != nil || stale {
		t.Fatalf("fresh index: stale=%v err=%v", stale, err)
	}
	if len(loaded.Functions()) != 2 || !loaded.SkipTests {
		t.Errorf("loaded %d functions, skipTests=%v", len(loaded.Functions()), loaded.SkipTests)
	}

	// test files are outside a skipTests index
	write("a_test.go", "package a\n\nfunc TestA() { A() }\n")
	if _, stale, _ := LoadIndex(path, dir, settings); stale {
		t.Error("test file made a skipTests index stale")
	}

	for _, other := range []BuildSettings{{}, {SkipTests: true, IncludeExternal: true}} {
		if _, stale, err := LoadIndex(path, dir, other); err != nil || !stale {
			t.Errorf("index built with %+v is fresh for %+v", settings, other)
		}
	}

	write("c.go", "package a\n\nfunc C() {}\n")
	if _, stale, _ := LoadIndex(path, dir, settings); !stale {
		t.Error("new source file not detected")
	}
}

func TestLoadBinaryRejectsForeignFiles(t *testing.T) {
	dir := t.TempDir()

	plain := filepath.Join(dir, "plain.gob")
	if err := os.WriteFile(plain, []byte("not an index"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadBinary(plain); err == nil || !strings.Contains(err.Error(), "not a cgdemo index") {
		t.Errorf("err = %v", err)
	}

	old := filepath.Join(dir, "old.gob")
	g := NewCodeGraph(dir)
	var buf bytes.Buffer
	g.Version = 1
	if err := encodeIndex(&buf, g); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(old, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadBinary(old); !errors.Is(err, ErrIndexVersion) {
		t.Errorf("err = %v, want ErrIndexVersion", err)
	}
}
