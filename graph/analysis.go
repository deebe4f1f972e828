package graph

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"gonum.org/v1/gonum/graph/community"
	"gonum.org/v1/gonum/graph/network"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// DefaultRoots name the functions the runtime or the test driver calls.
var DefaultRoots = []string{"main", "init", "Test*", "Benchmark*", "Example*", "Fuzz*"}

// AnalysisOptions controls which analyses run and how.
type AnalysisOptions struct {
	// Threshold is the minimum importance (0-100) kept in the reduced graph.
	Threshold float64
	// MaxDepth bounds hot paths, counted in nodes.
	MaxDepth int
	// TopN is the number of hot paths kept.
	TopN int
	// Roots are glob patterns for entry point names. When none match,
	// every function nobody calls is an entry point.
	Roots []string

	DeadCode   bool
	HotPaths   bool
	Clustering bool

	Progress func(msg string) `json:"-"`
}

// DefaultAnalysisOptions enables every analysis.
func DefaultAnalysisOptions() AnalysisOptions {
	return AnalysisOptions{
		MaxDepth:   5,
		TopN:       10,
		Roots:      append([]string(nil), DefaultRoots...),
		DeadCode:   true,
		HotPaths:   true,
		Clustering: true,
	}
}

// FunctionStats is one row of the per-function statistics.
type FunctionStats struct {
	ID         NodeID  `json:"id"`
	Name       string  `json:"name"`
	Path       string  `json:"path,omitempty"`
	Line       int     `json:"line,omitempty"`
	InDegree   int     `json:"in_degree"`
	OutDegree  int     `json:"out_degree"`
	Importance float64 `json:"betweenness"` // betweenness scaled to 0-100
	PageRank   float64 `json:"pagerank"`
	IsEntry    bool    `json:"is_entry"`
	IsDead     bool    `json:"is_dead"`
}

// HotPath is a call chain from an entry point, scored by the summed edge
// betweenness of its calls.
type HotPath struct {
	Path  []string `json:"path"`
	Score float64  `json:"score"`
}

// Report is the result of Analyze.
type Report struct {
	Nodes       int             `json:"nodes"`
	Edges       int             `json:"edges"`
	Components  int             `json:"components"` // weakly connected
	EntryPoints []string        `json:"entry_points"`
	DeadCode    []string        `json:"dead_code"`
	Cycles      [][]string      `json:"cycles"`
	HotPaths    []HotPath       `json:"hot_paths"`
	Clusters    [][]string      `json:"clusters,omitempty"`
	Functions   []FunctionStats `json:"functions"`
}

// Function returns the stats row for name, or nil.
func (r *Report) Function(name string) *FunctionStats {
	for i := range r.Functions {
		if r.Functions[i].Name == name {
			return &r.Functions[i]
		}
	}
	return nil
}

// callView is the function-level directed graph: callable nodes, one edge
// per distinct caller/callee pair, self loops kept aside.
type callView struct {
	nodes     []*Node
	names     []string
	index     map[NodeID]int64
	directed  *simple.DirectedGraph
	selfLoops map[int64]bool
	edges     int
}

func newCallView(g *CodeGraph) *callView {
	fns := g.Functions()
	counts := nameCounts(fns)
	v := &callView{
		nodes:     fns,
		names:     make([]string, len(fns)),
		index:     make(map[NodeID]int64, len(fns)),
		directed:  simple.NewDirectedGraph(),
		selfLoops: make(map[int64]bool),
	}
	for i, n := range fns {
		v.index[n.ID] = int64(i)
		v.names[i] = displayName(n, counts)
		v.directed.AddNode(simple.Node(i))
	}

	for _, e := range g.Edges {
		if e.Kind != EdgeCalls {
			continue
		}
		f, okF := v.index[e.From]
		t, okT := v.index[e.To]
		if !okF || !okT {
			continue
		}
		if f == t {
			v.selfLoops[f] = true
			continue
		}
		if v.directed.HasEdgeFromTo(f, t) {
			continue
		}
		v.directed.SetEdge(simple.Edge{F: simple.Node(f), T: simple.Node(t)})
		v.edges++
	}
	return v
}

func (v *callView) successors(id int64) []int64 {
	var out []int64
	it := v.directed.From(id)
	for it.Next() {
		out = append(out, it.Node().ID())
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (v *callView) undirected() *simple.UndirectedGraph {
	ug := simple.NewUndirectedGraph()
	for i := range v.nodes {
		ug.AddNode(simple.Node(i))
	}
	edges := v.directed.Edges()
	for edges.Next() {
		e := edges.Edge()
		ug.SetEdge(simple.Edge{F: simple.Node(e.From().ID()), T: simple.Node(e.To().ID())})
	}
	return ug
}

// Analyze runs the call graph analyses selected in opts.
func Analyze(g *CodeGraph, opts AnalysisOptions) (*Report, error) {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = 5
	}
	if opts.TopN <= 0 {
		opts.TopN = 10
	}
	progress := opts.Progress
	if progress == nil {
		progress = func(string) {}
	}

	v := newCallView(g)
	n := len(v.nodes)
	if n == 0 {
		return nil, ErrEmptyGraph
	}

	report := &Report{
		Nodes:       n,
		Edges:       v.edges,
		Components:  len(topo.ConnectedComponents(v.undirected())),
		EntryPoints: []string{},
		DeadCode:    []string{},
		Cycles:      [][]string{},
		HotPaths:    []HotPath{},
	}

	progress("Computing centrality metrics...")
	importance := v.importance()
	pagerank := v.pageRank()

	entries := v.entryPoints(opts.Roots)
	isEntry := make(map[int64]bool, len(entries))
	for _, id := range entries {
		isEntry[id] = true
		report.EntryPoints = append(report.EntryPoints, v.names[id])
	}
	sort.Strings(report.EntryPoints)

	isDead := make(map[int64]bool)
	if opts.DeadCode {
		progress("Identifying dead code...")
		reachable := v.reachable(entries)
		for i := range v.nodes {
			if !reachable[int64(i)] {
				isDead[int64(i)] = true
				report.DeadCode = append(report.DeadCode, v.names[i])
			}
		}
		sort.Strings(report.DeadCode)
		progress(fmt.Sprintf("Entry points: %d", len(entries)))
		progress(fmt.Sprintf("Dead code functions: %d", len(report.DeadCode)))
	}

	report.Cycles = v.cycles()

	if opts.Clustering {
		progress("Identifying clusters...")
		report.Clusters = v.clusters()
	}

	if opts.HotPaths {
		progress("Detecting hot paths...")
		report.HotPaths = v.hotPaths(entries, opts.MaxDepth, opts.TopN)
	}

	for i, node := range v.nodes {
		id := int64(i)
		report.Functions = append(report.Functions, FunctionStats{
			ID:         node.ID,
			Name:       v.names[i],
			Path:       node.Path,
			Line:       node.Line,
			InDegree:   v.directed.To(id).Len(),
			OutDegree:  v.directed.From(id).Len(),
			Importance: importance[id],
			PageRank:   pagerank[id],
			IsEntry:    isEntry[id],
			IsDead:     isDead[id],
		})
	}

	return report, nil
}

// importance is node betweenness scaled so the most central node scores 100.
func (v *callView) importance() map[int64]float64 {
	raw := network.Betweenness(v.directed)
	maxScore := 0.0
	for _, s := range raw {
		if s > maxScore {
			maxScore = s
		}
	}
	scaled := make(map[int64]float64, len(v.nodes))
	for i := range v.nodes {
		if maxScore > 0 {
			scaled[int64(i)] = raw[int64(i)] / maxScore * 100
		} else {
			scaled[int64(i)] = 0
		}
	}
	return scaled
}

func (v *callView) pageRank() map[int64]float64 {
	ranks := network.PageRank(v.directed, 0.85, 1e-8)
	if len(ranks) == len(v.nodes) {
		return ranks
	}
	uniform := make(map[int64]float64, len(v.nodes))
	for i := range v.nodes {
		uniform[int64(i)] = 1 / float64(len(v.nodes))
	}
	return uniform
}

// entryPoints returns the nodes matching a root pattern, or when none
// match, every node without callers. Sorted by name.
func (v *callView) entryPoints(roots []string) []int64 {
	var entries []int64
	for i, node := range v.nodes {
		for _, pattern := range roots {
			if ok, _ := path.Match(pattern, node.Name); ok {
				entries = append(entries, int64(i))
				break
			}
		}
	}
	if len(entries) == 0 {
		for i := range v.nodes {
			if v.directed.To(int64(i)).Len() == 0 {
				entries = append(entries, int64(i))
			}
		}
	}
	sort.Slice(entries, func(a, b int) bool { return v.names[entries[a]] < v.names[entries[b]] })
	return entries
}

func (v *callView) reachable(entries []int64) map[int64]bool {
	seen := make(map[int64]bool)
	queue := append([]int64(nil), entries...)
	for _, id := range entries {
		seen[id] = true
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, next := range v.successors(id) {
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	return seen
}

// cycles returns every strongly connected component with more than one
// function plus every directly recursive function. Members and the list are
// sorted.
func (v *callView) cycles() [][]string {
	var out [][]string
	for _, scc := range topo.TarjanSCC(v.directed) {
		if len(scc) < 2 {
			if len(scc) == 1 && v.selfLoops[scc[0].ID()] {
				out = append(out, []string{v.names[scc[0].ID()]})
			}
			continue
		}
		names := make([]string, len(scc))
		for i, n := range scc {
			names[i] = v.names[n.ID()]
		}
		sort.Strings(names)
		out = append(out, names)
	}
	sort.Slice(out, func(i, j int) bool { return strings.Join(out[i], ",") < strings.Join(out[j], ",") })
	if out == nil {
		out = [][]string{}
	}
	return out
}

// clusters groups functions into modularity communities of the undirected
// call graph. Largest first, ties by first member.
func (v *callView) clusters() [][]string {
	var groups [][]string
	if v.edges == 0 {
		for i := range v.nodes {
			groups = append(groups, []string{v.names[i]})
		}
	} else {
		reduced := community.Modularize(v.undirected(), 1, nil)
		for _, members := range reduced.Communities() {
			if len(members) == 0 {
				continue
			}
			names := make([]string, len(members))
			for i, n := range members {
				names[i] = v.names[n.ID()]
			}
			sort.Strings(names)
			groups = append(groups, names)
		}
	}
	sort.Slice(groups, func(i, j int) bool {
		if len(groups[i]) != len(groups[j]) {
			return len(groups[i]) > len(groups[j])
		}
		return groups[i][0] < groups[j][0]
	})
	return groups
}

// hotPaths enumerates simple call chains from up to ten entry points and
// keeps the topN best by summed, normalized edge betweenness. Every prefix
// of a chain is itself a candidate.
func (v *callView) hotPaths(entries []int64, maxDepth, topN int) []HotPath {
	edgeScore := network.EdgeBetweenness(v.directed)
	norm := 1.0
	if n := float64(len(v.nodes)); n > 1 {
		norm = n * (n - 1)
	}

	if len(entries) > 10 {
		entries = entries[:10]
	}

	type frame struct {
		node  int64
		path  []int64
		score float64
	}

	var results []HotPath
	for _, entry := range entries {
		stack := []frame{{node: entry, path: []int64{entry}}}
		for len(stack) > 0 {
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			names := make([]string, len(top.path))
			for i, id := range top.path {
				names[i] = v.names[id]
			}
			results = append(results, HotPath{Path: names, Score: top.score})

			if len(top.path) >= maxDepth {
				continue
			}
			for _, next := range v.successors(top.node) {
				if containsID(top.path, next) {
					continue
				}
				p := make([]int64, len(top.path)+1)
				copy(p, top.path)
				p[len(top.path)] = next
				stack = append(stack, frame{
					node:  next,
					path:  p,
					score: top.score + edgeScore[[2]int64{top.node, next}]/norm,
				})
			}
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return strings.Join(results[i].Path, " -> ") < strings.Join(results[j].Path, " -> ")
	})
	if len(results) > topN {
		results = results[:topN]
	}
	return results
}

// ReducedGraph keeps the functions whose importance reaches threshold, and
// the calls among them. When nothing qualifies it keeps the top tenth
// (at least one) by importance.
func ReducedGraph(g *CodeGraph, report *Report, threshold float64) *CodeGraph {
	var keep []FunctionStats
	for _, fs := range report.Functions {
		if fs.Importance >= threshold {
			keep = append(keep, fs)
		}
	}
	if len(keep) == 0 && len(report.Functions) > 0 {
		ranked := append([]FunctionStats(nil), report.Functions...)
		sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Importance > ranked[j].Importance })
		limit := len(ranked) / 10
		if limit < 1 {
			limit = 1
		}
		keep = ranked[:limit]
	}

	sub := NewCodeGraph(g.RootPath)
	kept := make(map[NodeID]bool, len(keep))
	for _, fs := range keep {
		if n := g.GetNode(fs.ID); n != nil {
			sub.AddNode(n)
			kept[n.ID] = true
		}
	}
	seen := make(map[[2]NodeID]bool)
	for _, e := range g.Edges {
		key := [2]NodeID{e.From, e.To}
		if e.Kind != EdgeCalls || !kept[e.From] || !kept[e.To] || seen[key] {
			continue
		}
		seen[key] = true
		sub.AddEdge(e)
	}
	return sub
}

func containsID(ids []int64, id int64) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}
