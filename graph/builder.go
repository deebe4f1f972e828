package graph

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"cgdemo/scanner"
)

// Builder constructs a CodeGraph from scanner output.
type Builder struct {
	graph     *CodeGraph
	rootPath  string
	progress  func(msg string)
	external  bool
	fileCount int

	// call sites whose callee is left for ResolveCallEdges
	pending map[*Edge]scanner.CallInfo
}

// BuilderOption configures the graph builder.
type BuilderOption func(*Builder)

// WithProgress sets a progress callback.
func WithProgress(fn func(msg string)) BuilderOption {
	return func(b *Builder) {
		b.progress = fn
	}
}

// WithExternal keeps calls to functions defined outside the project as
// KindExternal nodes instead of dropping them.
func WithExternal(keep bool) BuilderOption {
	return func(b *Builder) {
		b.external = keep
	}
}

// NewBuilder creates a new graph builder.
func NewBuilder(rootPath string, opts ...BuilderOption) *Builder {
	b := &Builder{
		graph:    NewCodeGraph(rootPath),
		rootPath: rootPath,
		progress: func(msg string) {},
		pending:  make(map[*Edge]scanner.CallInfo),
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// BuildFromAnalyses is the one-shot form: add every file, then Build.
func BuildFromAnalyses(rootPath string, analyses []scanner.FileAnalysis, opts ...BuilderOption) *CodeGraph {
	b := NewBuilder(rootPath, opts...)
	for i := range analyses {
		b.AddFile(&analyses[i])
	}
	return b.Build()
}

// BuildProject scans the supported sources under root and builds their
// call graph. Node paths are relative to root.
func BuildProject(root string, skipTests bool, opts ...BuilderOption) (*CodeGraph, error) {
	files, err := projectFiles(root, skipTests)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	analyses, err := scanner.ScanForCalls(root, scanner.LoadGitignore(root), scanner.NewGrammarLoader(), skipTests)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	g := BuildFromAnalyses(root, analyses, opts...)
	g.Files = files
	g.SkipTests = skipTests
	return g, nil
}

// AddFile adds a file's functions and call sites to the graph. Calls are
// resolved against the same file first; the rest wait for Build.
func (b *Builder) AddFile(analysis *scanner.FileAnalysis) {
	if analysis == nil {
		return
	}

	b.fileCount++
	b.progress(fmt.Sprintf("Processing %s", analysis.Path))

	fileID := GenerateNodeID(analysis.Path, "")
	b.graph.AddNode(&Node{
		ID:   fileID,
		Kind: KindFile,
		Name: filepath.Base(analysis.Path),
		Path: analysis.Path,
	})

	funcNodes := make(map[string]NodeID) // symbolKey -> nodeID for call resolution
	for _, fn := range analysis.Functions {
		symbol := fn.Name
		kind := KindFunction
		if fn.Receiver != "" {
			symbol = fn.Receiver + "." + fn.Name
			kind = KindMethod
		}

		funcID := GenerateNodeID(analysis.Path, symbol)
		b.graph.AddNode(&Node{
			ID:         funcID,
			Kind:       kind,
			Name:       fn.Name,
			Path:       analysis.Path,
			Line:       fn.Line,
			EndLine:    fn.EndLine,
			Signature:  fn.Signature,
			Receiver:   fn.Receiver,
			Exported:   fn.IsExported,
			ParamCount: fn.ParamCount,
		})
		funcNodes[symbolKey(fn.Receiver, fn.Name)] = funcID

		b.graph.AddEdge(&Edge{
			From: fileID,
			To:   funcID,
			Kind: EdgeContains,
		})
	}

	for _, call := range analysis.Calls {
		callerID, ok := funcNodes[symbolKey(call.CallerReceiver, call.CallerFunc)]
		if !ok {
			continue
		}

		edge := &Edge{
			From:     callerID,
			Kind:     EdgeCalls,
			Line:     call.CallLine,
			CallSite: callSite(call),
			ArgCount: call.Args,
		}
		if id, ok := sameFileCallee(funcNodes, call); ok && arityMatches(b.graph.GetNode(id), call.Args) {
			edge.To = id
		} else {
			// Placeholder, resolved in Build.
			edge.To = GenerateNodeID("", edge.CallSite)
			b.pending[edge] = call
		}
		b.graph.AddEdge(edge)
	}
}

// symbolKey names a function within its file: Type.Name for methods, the
// bare name otherwise.
func symbolKey(receiver, name string) string {
	if t := scanner.ReceiverTypeName(receiver); t != "" {
		return t + "." + name
	}
	return name
}

// callSite is the callee as written, qualified for package-qualified calls.
func callSite(call scanner.CallInfo) string {
	if call.Package != "" && call.Receiver != "" {
		return call.Receiver + "." + call.CalleeName
	}
	return call.CalleeName
}

// sameFileCallee resolves calls the caller's own file can decide: plain
// calls to its functions and calls on a receiver of known type.
func sameFileCallee(funcs map[string]NodeID, call scanner.CallInfo) (NodeID, bool) {
	var id NodeID
	var ok bool
	switch {
	case call.Package != "":
	case call.ReceiverType != "":
		id, ok = funcs[call.ReceiverType+"."+call.CalleeName]
	case call.Receiver == "":
		id, ok = funcs[call.CalleeName]
	}
	return id, ok
}

// Build resolves pending call edges and finalizes the graph.
func (b *Builder) Build() *CodeGraph {
	b.ResolveCallEdges()

	b.graph.IncludeExternal = b.external
	b.graph.LastIndexed = time.Now().Unix()
	b.graph.NodeCount = len(b.graph.Nodes)
	b.graph.EdgeCount = len(b.graph.Edges)

	b.progress(fmt.Sprintf("Built graph: %d nodes, %d edges from %d files",
		b.graph.NodeCount, b.graph.EdgeCount, b.fileCount))

	return b.graph
}

// ResolveCallEdges points placeholder callees at real functions.
//
//   - pkg.F() reaches F only in a project directory the import path ends
//     with; standard library and third-party calls stay unresolved.
//   - x.M() on a receiver of known type reaches that type's M in the
//     caller's package. When the type is unknown or has no such method (an
//     interface, say), every M in the caller's package is a target.
//   - F() reaches a single arity-compatible candidate, or the one sharing
//     the caller's file or package when there are several. Go restricts the
//     candidates to the caller's package.
//
// What stays unresolved is dropped, or becomes an external node when
// WithExternal is set.
func (b *Builder) ResolveCallEdges() {
	funcs := make(map[string][]*Node)
	methods := make(map[string][]*Node)
	for _, node := range b.graph.Nodes {
		switch node.Kind {
		case KindFunction:
			funcs[node.Name] = append(funcs[node.Name], node)
		case KindMethod:
			methods[node.Name] = append(methods[node.Name], node)
		}
	}
	for _, byName := range []map[string][]*Node{funcs, methods} {
		for _, nodes := range byName {
			sort.Slice(nodes, func(i, j int) bool {
				if nodes[i].Path != nodes[j].Path {
					return nodes[i].Path < nodes[j].Path
				}
				return nodes[i].Receiver < nodes[j].Receiver
			})
		}
	}

	kept := make([]*Edge, 0, len(b.graph.Edges))
	for _, edge := range b.graph.Edges {
		if edge.Kind != EdgeCalls || b.graph.GetNode(edge.To) != nil {
			kept = append(kept, edge)
			continue
		}

		call, ok := b.pending[edge]
		if !ok {
			call = scanner.CallInfo{CalleeName: edge.CallSite, Args: edge.ArgCount}
		}
		targets := callTargets(call, b.graph.GetNode(edge.From), funcs, methods)

		if len(targets) == 0 {
			if !b.external {
				continue
			}
			b.graph.AddNode(&Node{
				ID:         edge.To,
				Kind:       KindExternal,
				Name:       edge.CallSite,
				ParamCount: -1,
			})
			kept = append(kept, edge)
			continue
		}

		for i, target := range targets {
			e := edge
			if i > 0 {
				dup := *edge
				e = &dup
			}
			e.To = target.ID
			kept = append(kept, e)
		}
	}

	b.graph.Edges = kept
	b.pending = make(map[*Edge]scanner.CallInfo)
	b.graph.RebuildIndexes()
}

func callTargets(call scanner.CallInfo, caller *Node, funcs, methods map[string][]*Node) []*Node {
	name := call.CalleeName
	goCaller := caller != nil && filepath.Ext(caller.Path) == ".go"

	switch {
	case call.Package != "":
		return filterNodes(funcs[name], call.Args, func(n *Node) bool {
			return importsDir(call.Package, n.Path)
		})

	case call.ReceiverType != "" || (call.Receiver != "" && goCaller):
		inPackage := func(n *Node) bool { return sameDir(n, caller) }
		if call.ReceiverType != "" {
			typed := filterNodes(methods[name], call.Args, func(n *Node) bool {
				return scanner.ReceiverTypeName(n.Receiver) == call.ReceiverType && inPackage(n)
			})
			if len(typed) > 0 {
				return typed
			}
		}
		return filterNodes(methods[name], call.Args, inPackage)
	}

	candidates := filterNodes(funcs[name], call.Args, func(n *Node) bool {
		return !goCaller || sameDir(n, caller)
	})
	if len(candidates) <= 1 || caller == nil {
		if len(candidates) == 1 {
			return candidates
		}
		return nil
	}
	for _, c := range candidates {
		if c.Path == caller.Path {
			return []*Node{c}
		}
	}
	for _, c := range candidates {
		if packageOf(c.Path) == packageOf(caller.Path) {
			return []*Node{c}
		}
	}
	return nil
}

// filterNodes keeps the arity-compatible nodes that satisfy keep.
func filterNodes(nodes []*Node, args int, keep func(*Node) bool) []*Node {
	var out []*Node
	for _, n := range nodes {
		if arityMatches(n, args) && keep(n) {
			out = append(out, n)
		}
	}
	return out
}

func sameDir(n, caller *Node) bool {
	return caller == nil || filepath.Dir(n.Path) == filepath.Dir(caller.Path)
}

// importsDir reports whether importPath names the project directory that
// holds nodePath. Only paths with a module prefix can match, so "strings"
// never reaches a project directory named strings.
func importsDir(importPath, nodePath string) bool {
	dir := filepath.ToSlash(filepath.Dir(nodePath))
	if dir == "." || dir == "" {
		return false
	}
	return strings.HasSuffix(importPath, "/"+dir)
}

// arityMatches reports whether a call with args arguments can target n.
// ParamCount -1 means variadic (always matches).
func arityMatches(n *Node, args int) bool {
	if n == nil {
		return false
	}
	return n.ParamCount < 0 || n.ParamCount == args
}

// packageOf extracts a package name from a file path.
func packageOf(path string) string {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return ""
	}
	return filepath.Base(dir)
}
