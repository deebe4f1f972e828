package graph

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	dotenc "gonum.org/v1/gonum/graph/encoding/dot"
	"gonum.org/v1/gonum/graph/formats/dot"
	"gonum.org/v1/gonum/graph/formats/dot/ast"
	"gonum.org/v1/gonum/graph/simple"

	"cgdemo/scanner"
)

// ErrEmptyGraph is returned when a DOT file parses but holds no nodes.
var ErrEmptyGraph = errors.New("input graph contains no nodes")

// LoadDOT reads a call graph from a Graphviz DOT file. Every DOT node becomes
// a KindFunction node named by its raw id; the "label" attribute, when
// present, is kept in Label. Self loops and repeated edges are dropped.
// Only the first graph in the file is read.
func LoadDOT(path string) (*CodeGraph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("input file %q not found: %w", path, err)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return ParseDOT(path, data)
}

// ParseDOT is LoadDOT over an in-memory document; root becomes RootPath.
func ParseDOT(root string, data []byte) (*CodeGraph, error) {
	file, err := dot.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DOT file: %w", err)
	}
	if len(file.Graphs) == 0 {
		return nil, ErrEmptyGraph
	}

	l := &dotLoader{g: NewCodeGraph(root), seen: make(map[[2]NodeID]bool)}
	l.stmts(file.Graphs[0].Stmts)

	if len(l.g.Nodes) == 0 {
		return nil, ErrEmptyGraph
	}
	l.g.NodeCount = len(l.g.Nodes)
	l.g.EdgeCount = len(l.g.Edges)
	return l.g, nil
}

type dotLoader struct {
	g    *CodeGraph
	seen map[[2]NodeID]bool
}

func (l *dotLoader) stmts(stmts []ast.Stmt) {
	for _, stmt := range stmts {
		switch s := stmt.(type) {
		case *ast.NodeStmt:
			n := l.node(s.Node.ID)
			for _, attr := range s.Attrs {
				if attr.Key == "label" {
					n.Label = unquoteID(attr.Val)
				}
			}
		case *ast.EdgeStmt:
			from := l.vertex(s.From)
			for e := s.To; e != nil; e = e.To {
				to := l.vertex(e.Vertex)
				for _, f := range from {
					for _, t := range to {
						l.edge(f, t)
					}
				}
				from = to
			}
		case *ast.Subgraph:
			l.stmts(s.Stmts)
		}
	}
}

// vertex returns the node IDs an edge endpoint stands for.
func (l *dotLoader) vertex(v ast.Vertex) []NodeID {
	switch v := v.(type) {
	case *ast.Node:
		return []NodeID{l.node(v.ID).ID}
	case *ast.Subgraph:
		l.stmts(v.Stmts)
		var ids []NodeID
		for _, stmt := range v.Stmts {
			if ns, ok := stmt.(*ast.NodeStmt); ok {
				ids = append(ids, l.node(ns.Node.ID).ID)
			}
		}
		return ids
	}
	return nil
}

func (l *dotLoader) node(rawID string) *Node {
	name := unquoteID(rawID)
	id := GenerateNodeID("", name)
	if n := l.g.GetNode(id); n != nil {
		return n
	}
	n := &Node{ID: id, Kind: KindFunction, Name: name, Label: name, ParamCount: -1}
	l.g.AddNode(n)
	return n
}

func (l *dotLoader) edge(from, to NodeID) {
	key := [2]NodeID{from, to}
	if from == to || l.seen[key] {
		return
	}
	l.seen[key] = true
	l.g.AddEdge(&Edge{From: from, To: to, Kind: EdgeCalls, CallSite: l.g.GetNode(to).Name})
}

// unquoteID strips DOT string quoting. DOT only defines the \" escape, so
// anything strconv rejects is returned with just the outer quotes removed.
func unquoteID(id string) string {
	if len(id) >= 2 && id[0] == '"' && id[len(id)-1] == '"' {
		if s, err := strconv.Unquote(id); err == nil {
			return s
		}
		return id[1 : len(id)-1]
	}
	return id
}

// dotNode carries a function name through the gonum DOT encoder.
type dotNode struct {
	id   int64
	name string
}

func (n dotNode) ID() int64      { return n.id }
func (n dotNode) DOTID() string  { return n.name }
func (n dotNode) String() string { return n.name }

// WriteDOT writes the call edges between callable nodes as a DOT digraph.
func WriteDOT(w io.Writer, g *CodeGraph, name string) error {
	fns := g.Functions()
	counts := nameCounts(fns)
	dg := simple.NewDirectedGraph()
	index := make(map[NodeID]int64, len(fns))
	for i, n := range fns {
		index[n.ID] = int64(i)
		dg.AddNode(dotNode{id: int64(i), name: displayName(n, counts)})
	}

	for _, e := range g.Edges {
		if e.Kind != EdgeCalls || e.From == e.To {
			continue
		}
		f, okF := index[e.From]
		t, okT := index[e.To]
		if !okF || !okT {
			continue
		}
		dg.SetEdge(dg.NewEdge(dg.Node(f), dg.Node(t)))
	}

	b, err := dotenc.Marshal(dg, name, "", "\t")
	if err != nil {
		return fmt.Errorf("encode DOT: %w", err)
	}
	if _, err := w.Write(append(b, '\n')); err != nil {
		return err
	}
	return nil
}

// displayName is the node name. When another callable shares the name a
// method is qualified with its receiver type, and anything still ambiguous
// with its file.
func displayName(n *Node, counts map[string]int) string {
	if counts[n.Name] <= 1 {
		return n.Name
	}
	name := qualifiedName(n)
	if name != n.Name && counts[name] <= 1 {
		return name
	}
	if n.Path != "" {
		return n.Path + ":" + name
	}
	return name
}

// qualifiedName is Type.Name for methods and the bare name otherwise.
func qualifiedName(n *Node) string {
	if n.Kind != KindMethod || n.Receiver == "" {
		return n.Name
	}
	return scanner.ReceiverTypeName(n.Receiver) + "." + n.Name
}

func nameCounts(nodes []*Node) map[string]int {
	counts := make(map[string]int, len(nodes))
	for _, n := range nodes {
		counts[n.Name]++
		if q := qualifiedName(n); q != n.Name {
			counts[q]++
		}
	}
	return counts
}
