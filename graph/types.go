// Package graph provides the call graph model for cgdemo.
// It represents functions and the files that hold them, the calls between
// functions, and the analyses (reachability, cycles, centrality, hot paths,
// clusters) run over that structure.
package graph

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
)

// NodeKind represents the type of an entity in the graph.
type NodeKind int

const (
	KindFile NodeKind = iota
	KindFunction
	KindMethod
	KindExternal // callee seen at a call site but defined nowhere in the project
)

func (k NodeKind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindFunction:
		return "function"
	case KindMethod:
		return "method"
	case KindExternal:
		return "external"
	default:
		return "unknown"
	}
}

// IsCallable reports whether nodes of this kind take part in call analysis.
func (k NodeKind) IsCallable() bool {
	return k == KindFunction || k == KindMethod || k == KindExternal
}

// EdgeKind represents the type of relationship between nodes.
type EdgeKind int

const (
	EdgeCalls EdgeKind = iota
	EdgeContains
)

func (e EdgeKind) String() string {
	switch e {
	case EdgeCalls:
		return "calls"
	case EdgeContains:
		return "contains"
	default:
		return "unknown"
	}
}

// NodeID is a unique identifier for a node in the graph.
// Generated deterministically from path + symbol name.
type NodeID string

// GenerateNodeID creates a deterministic NodeID from path and symbol.
func GenerateNodeID(path, symbol string) NodeID {
	data := fmt.Sprintf("%s:%s", path, symbol)
	hash := sha256.Sum256([]byte(data))
	return NodeID(hex.EncodeToString(hash[:16]))
}

// Node is a function, method, file or external callee.
type Node struct {
	ID         NodeID   `json:"id"`
	Kind       NodeKind `json:"kind"`
	Name       string   `json:"name"`
	Label      string   `json:"label,omitempty"` // DOT label, when loaded from DOT
	Path       string   `json:"path"`            // File path relative to project root
	Line       int      `json:"line,omitempty"`
	EndLine    int      `json:"end_line,omitempty"`
	Signature  string   `json:"signature,omitempty"`
	Receiver   string   `json:"receiver,omitempty"`
	Exported   bool     `json:"exported,omitempty"`
	ParamCount int      `json:"params,omitempty"` // -1 when variadic
}

// Edge represents a relationship between two nodes.
type Edge struct {
	From     NodeID   `json:"from"`
	To       NodeID   `json:"to"`
	Kind     EdgeKind `json:"kind"`
	Line     int      `json:"line,omitempty"`
	CallSite string   `json:"callsite,omitempty"` // callee name as written
	ArgCount int      `json:"args,omitempty"`
}

// CodeGraph is the main graph structure with indexed lookups.
type CodeGraph struct {
	Nodes map[NodeID]*Node `json:"nodes"`
	Edges []*Edge          `json:"edges"`

	// Indexes for fast lookup (rebuilt on load)
	nodesByPath map[string][]*Node
	nodesByName map[string][]*Node
	edgesByFrom map[NodeID][]*Edge
	edgesByTo   map[NodeID][]*Edge

	RootPath    string `json:"root"`
	Version     int    `json:"version"`
	NodeCount   int    `json:"node_count"`
	EdgeCount   int    `json:"edge_count"`
	LastIndexed int64  `json:"last_indexed"` // Unix timestamp

	// Files lists the source files scanned by BuildProject, relative to
	// RootPath and sorted; nil for graphs built any other way.
	Files           []string `json:"files,omitempty"`
	SkipTests       bool     `json:"skip_tests,omitempty"`
	IncludeExternal bool     `json:"include_external,omitempty"`
}

// BuildSettings are the scan options an index depends on besides the
// sources themselves.
type BuildSettings struct {
	SkipTests       bool
	IncludeExternal bool
}

// Settings returns the options the graph was built with.
func (g *CodeGraph) Settings() BuildSettings {
	return BuildSettings{SkipTests: g.SkipTests, IncludeExternal: g.IncludeExternal}
}

// NewCodeGraph creates an empty CodeGraph with initialized maps.
func NewCodeGraph(rootPath string) *CodeGraph {
	return &CodeGraph{
		Nodes:       make(map[NodeID]*Node),
		Edges:       make([]*Edge, 0),
		nodesByPath: make(map[string][]*Node),
		nodesByName: make(map[string][]*Node),
		edgesByFrom: make(map[NodeID][]*Edge),
		edgesByTo:   make(map[NodeID][]*Edge),
		RootPath:    rootPath,
		Version:     indexVersion,
	}
}

// AddNode adds a node to the graph and updates indexes.
// A node whose ID is already present is ignored.
func (g *CodeGraph) AddNode(n *Node) {
	if _, exists := g.Nodes[n.ID]; exists {
		return
	}
	g.Nodes[n.ID] = n
	g.NodeCount++

	g.nodesByPath[n.Path] = append(g.nodesByPath[n.Path], n)
	g.nodesByName[n.Name] = append(g.nodesByName[n.Name], n)
}

// AddEdge adds an edge to the graph and updates indexes.
func (g *CodeGraph) AddEdge(e *Edge) {
	g.Edges = append(g.Edges, e)
	g.EdgeCount++

	g.edgesByFrom[e.From] = append(g.edgesByFrom[e.From], e)
	g.edgesByTo[e.To] = append(g.edgesByTo[e.To], e)
}

// GetNode retrieves a node by ID.
func (g *CodeGraph) GetNode(id NodeID) *Node {
	return g.Nodes[id]
}

// GetNodesByName returns all nodes with a given name.
func (g *CodeGraph) GetNodesByName(name string) []*Node {
	return g.nodesByName[name]
}

// GetOutgoingEdges returns all edges originating from a node.
func (g *CodeGraph) GetOutgoingEdges(id NodeID) []*Edge {
	return g.edgesByFrom[id]
}

// GetIncomingEdges returns all edges pointing to a node.
func (g *CodeGraph) GetIncomingEdges(id NodeID) []*Edge {
	return g.edgesByTo[id]
}

// GetCallers returns the distinct nodes that call the given node.
func (g *CodeGraph) GetCallers(id NodeID) []*Node {
	var callers []*Node
	seen := make(map[NodeID]bool)
	for _, edge := range g.edgesByTo[id] {
		if edge.Kind != EdgeCalls || seen[edge.From] {
			continue
		}
		if caller := g.Nodes[edge.From]; caller != nil {
			seen[edge.From] = true
			callers = append(callers, caller)
		}
	}
	return callers
}

// GetCallees returns the distinct nodes that the given node calls.
func (g *CodeGraph) GetCallees(id NodeID) []*Node {
	var callees []*Node
	seen := make(map[NodeID]bool)
	for _, edge := range g.edgesByFrom[id] {
		if edge.Kind != EdgeCalls || seen[edge.To] {
			continue
		}
		if callee := g.Nodes[edge.To]; callee != nil {
			seen[edge.To] = true
			callees = append(callees, callee)
		}
	}
	return callees
}

// Functions returns every callable node sorted by name, then path.
func (g *CodeGraph) Functions() []*Node {
	var fns []*Node
	for _, n := range g.Nodes {
		if n.Kind.IsCallable() {
			fns = append(fns, n)
		}
	}
	sort.Slice(fns, func(i, j int) bool {
		if fns[i].Name != fns[j].Name {
			return fns[i].Name < fns[j].Name
		}
		return fns[i].Path < fns[j].Path
	})
	return fns
}

// RebuildIndexes rebuilds the in-memory indexes from Nodes and Edges.
// Call this after loading from disk.
func (g *CodeGraph) RebuildIndexes() {
	g.nodesByPath = make(map[string][]*Node)
	g.nodesByName = make(map[string][]*Node)
	g.edgesByFrom = make(map[NodeID][]*Edge)
	g.edgesByTo = make(map[NodeID][]*Edge)

	for _, n := range g.Nodes {
		g.nodesByPath[n.Path] = append(g.nodesByPath[n.Path], n)
		g.nodesByName[n.Name] = append(g.nodesByName[n.Name], n)
	}

	for _, e := range g.Edges {
		g.edgesByFrom[e.From] = append(g.edgesByFrom[e.From], e)
		g.edgesByTo[e.To] = append(g.edgesByTo[e.To], e)
	}
}
