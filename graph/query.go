package graph

import (
	"fmt"
	"sort"
	"strings"
)

// PathResult is a call chain between two functions.
type PathResult struct {
	From   *Node   `json:"from"`
	To     *Node   `json:"to"`
	Path   []*Node `json:"path"`
	Edges  []*Edge `json:"edges"`
	Length int     `json:"length"`
}

// Names returns the function names along the path.
func (p *PathResult) Names() []string {
	names := make([]string, len(p.Path))
	for i, n := range p.Path {
		names[i] = n.Name
	}
	return names
}

// FindNodesByPattern returns nodes whose name or path contains pattern,
// case-insensitively, sorted by name then path. An empty kinds list means
// callable nodes only.
func (g *CodeGraph) FindNodesByPattern(pattern string, kinds []NodeKind) []*Node {
	pattern = strings.ToLower(pattern)

	kindSet := make(map[NodeKind]bool)
	for _, k := range kinds {
		kindSet[k] = true
	}

	var results []*Node
	for _, node := range g.Nodes {
		if len(kinds) > 0 {
			if !kindSet[node.Kind] {
				continue
			}
		} else if !node.Kind.IsCallable() {
			continue
		}

		if strings.Contains(strings.ToLower(node.Name), pattern) ||
			strings.Contains(strings.ToLower(node.Path), pattern) {
			results = append(results, node)
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Name != results[j].Name {
			return results[i].Name < results[j].Name
		}
		return results[i].Path < results[j].Path
	})
	return results
}

// ResolveFunction finds the single callable node called name. A
// "path:name" form picks among functions that share a name.
func (g *CodeGraph) ResolveFunction(name string) (*Node, error) {
	file := ""
	if i := strings.LastIndex(name, ":"); i > 0 && len(g.nodesByName[name]) == 0 {
		file, name = name[:i], name[i+1:]
	}

	var matches []*Node
	for _, n := range g.nodesByName[name] {
		if n.Kind.IsCallable() && (file == "" || n.Path == file) {
			matches = append(matches, n)
		}
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("function %q not found", name)
	case 1:
		return matches[0], nil
	}

	paths := make([]string, len(matches))
	for i, m := range matches {
		paths[i] = m.Path
	}
	sort.Strings(paths)
	return nil, fmt.Errorf("function %q is ambiguous, defined in: %s", name, strings.Join(paths, ", "))
}

func (g *CodeGraph) callEdgesFrom(id NodeID) []*Edge {
	var out []*Edge
	for _, e := range g.edgesByFrom[id] {
		if e.Kind == EdgeCalls {
			out = append(out, e)
		}
	}
	return out
}

func (g *CodeGraph) callEdgesTo(id NodeID) []*Edge {
	var out []*Edge
	for _, e := range g.edgesByTo[id] {
		if e.Kind == EdgeCalls {
			out = append(out, e)
		}
	}
	return out
}

// FindPath finds the shortest call chain between two nodes using BFS.
// Returns nil if no path exists within maxDepth calls.
func (g *CodeGraph) FindPath(fromID, toID NodeID, maxDepth int) *PathResult {
	if maxDepth <= 0 {
		maxDepth = 10
	}

	from := g.GetNode(fromID)
	to := g.GetNode(toID)
	if from == nil || to == nil {
		return nil
	}

	type queueItem struct {
		nodeID NodeID
		path   []NodeID
		edges  []*Edge
	}

	visited := map[NodeID]bool{fromID: true}
	queue := []queueItem{{nodeID: fromID, path: []NodeID{fromID}}}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if current.nodeID == toID {
			return g.pathResult(from, to, current.path, current.edges)
		}
		if len(current.path) > maxDepth {
			continue
		}

		for _, edge := range g.callEdgesFrom(current.nodeID) {
			if visited[edge.To] {
				continue
			}
			visited[edge.To] = true

			newPath := make([]NodeID, len(current.path)+1)
			copy(newPath, current.path)
			newPath[len(current.path)] = edge.To

			newEdges := make([]*Edge, len(current.edges)+1)
			copy(newEdges, current.edges)
			newEdges[len(current.edges)] = edge

			queue = append(queue, queueItem{nodeID: edge.To, path: newPath, edges: newEdges})
		}
	}

	return nil
}

// FindAllPaths finds every simple call chain between two nodes of at most
// maxDepth calls, shortest first.
func (g *CodeGraph) FindAllPaths(fromID, toID NodeID, maxDepth int) []*PathResult {
	if maxDepth <= 0 {
		maxDepth = 5
	}

	from := g.GetNode(fromID)
	to := g.GetNode(toID)
	if from == nil || to == nil {
		return nil
	}

	var results []*PathResult
	seenRoute := make(map[string]bool)
	onPath := make(map[NodeID]bool)

	var dfs func(current NodeID, path []NodeID, edges []*Edge)
	dfs = func(current NodeID, path []NodeID, edges []*Edge) {
		if current == toID && len(path) > 1 {
			key := fmt.Sprint(path)
			if !seenRoute[key] {
				seenRoute[key] = true
				results = append(results, g.pathResult(from, to, path, edges))
			}
			return
		}
		if len(path) > maxDepth {
			return
		}

		onPath[current] = true
		defer func() { onPath[current] = false }()

		for _, edge := range g.callEdgesFrom(current) {
			if onPath[edge.To] && edge.To != toID {
				continue
			}
			dfs(edge.To, append(path[:len(path):len(path)], edge.To), append(edges[:len(edges):len(edges)], edge))
		}
	}

	dfs(fromID, []NodeID{fromID}, nil)

	sort.SliceStable(results, func(i, j int) bool { return results[i].Length < results[j].Length })
	return results
}

func (g *CodeGraph) pathResult(from, to *Node, ids []NodeID, edges []*Edge) *PathResult {
	nodes := make([]*Node, len(ids))
	for i, id := range ids {
		nodes[i] = g.GetNode(id)
	}
	return &PathResult{
		From:   from,
		To:     to,
		Path:   nodes,
		Edges:  edges,
		Length: len(nodes) - 1,
	}
}

// GetDependencyTree returns the functions reachable from startID, grouped
// by call distance.
func (g *CodeGraph) GetDependencyTree(startID NodeID, maxDepth int) map[int][]*Node {
	return g.levels(startID, maxDepth, func(id NodeID) []NodeID {
		var next []NodeID
		for _, e := range g.callEdgesFrom(id) {
			next = append(next, e.To)
		}
		return next
	})
}

// GetReverseTree returns the functions that transitively call startID,
// grouped by call distance.
func (g *CodeGraph) GetReverseTree(startID NodeID, maxDepth int) map[int][]*Node {
	return g.levels(startID, maxDepth, func(id NodeID) []NodeID {
		var next []NodeID
		for _, e := range g.callEdgesTo(id) {
			next = append(next, e.From)
		}
		return next
	})
}

func (g *CodeGraph) levels(startID NodeID, maxDepth int, step func(NodeID) []NodeID) map[int][]*Node {
	if maxDepth <= 0 {
		maxDepth = 5
	}

	levels := make(map[int][]*Node)
	visited := map[NodeID]bool{startID: true}
	frontier := []NodeID{startID}

	for depth := 0; depth <= maxDepth && len(frontier) > 0; depth++ {
		var next []NodeID
		for _, id := range frontier {
			if node := g.GetNode(id); node != nil {
				levels[depth] = append(levels[depth], node)
			}
			for _, n := range step(id) {
				if !visited[n] {
					visited[n] = true
					next = append(next, n)
				}
			}
		}
		sort.Slice(levels[depth], func(i, j int) bool { return levels[depth][i].Name < levels[depth][j].Name })
		frontier = next
	}

	return levels
}

// Stats summarizes the graph's contents.
type Stats struct {
	TotalNodes      int            `json:"total_nodes"`
	TotalEdges      int            `json:"total_edges"`
	NodesByKind     map[string]int `json:"nodes_by_kind"`
	EdgesByKind     map[string]int `json:"edges_by_kind"`
	FileCount       int            `json:"file_count"`
	FunctionCount   int            `json:"function_count"`
	ExternalCount   int            `json:"external_count"`
	AvgCallsPerFunc float64        `json:"avg_calls_per_function"`
}

// GetStats computes statistics about the graph.
func (g *CodeGraph) GetStats() *Stats {
	stats := &Stats{
		TotalNodes:  len(g.Nodes),
		TotalEdges:  len(g.Edges),
		NodesByKind: make(map[string]int),
		EdgesByKind: make(map[string]int),
	}

	for _, node := range g.Nodes {
		stats.NodesByKind[node.Kind.String()]++
		switch node.Kind {
		case KindFile:
			stats.FileCount++
		case KindFunction, KindMethod:
			stats.FunctionCount++
		case KindExternal:
			stats.ExternalCount++
		}
	}

	for _, edge := range g.Edges {
		stats.EdgesByKind[edge.Kind.String()]++
	}

	if stats.FunctionCount > 0 {
		stats.AvgCallsPerFunc = float64(stats.EdgesByKind[EdgeCalls.String()]) / float64(stats.FunctionCount)
	}

	return stats
}
