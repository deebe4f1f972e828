package graph

import (
	"bytes"
	"compress/gzip"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"cgdemo/scanner"
)

const (
	// DefaultGraphDir is the directory name for cgdemo data
	DefaultGraphDir = ".cgdemo"
	// DefaultGraphFile is the default graph file name
	DefaultGraphFile = "graph.gob"

	indexVersion = 3
)

// An index file is indexMagic followed by the gzipped gob of a CodeGraph.
var indexMagic = []byte("cgdemo-index\n")

var (
	ErrNoIndex      = errors.New("no index found")
	ErrIndexVersion = errors.New("index written by an incompatible version")
)

// GraphPath returns the default graph file path for a project root.
func GraphPath(rootPath string) string {
	return filepath.Join(rootPath, DefaultGraphDir, DefaultGraphFile)
}

// SaveBinary writes the graph to path. The file is replaced atomically, so
// a reader never sees a partial index.
func (g *CodeGraph) SaveBinary(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	if g.LastIndexed == 0 {
		g.LastIndexed = time.Now().Unix()
	}
	g.Version = indexVersion
	g.NodeCount = len(g.Nodes)
	g.EdgeCount = len(g.Edges)

	tmp, err := os.CreateTemp(dir, ".graph-*.tmp")
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := encodeIndex(tmp, g); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close index: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace index: %w", err)
	}
	return nil
}

func encodeIndex(w io.Writer, g *CodeGraph) error {
	if _, err := w.Write(indexMagic); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	gz := gzip.NewWriter(w)
	if err := gob.NewEncoder(gz).Encode(g); err != nil {
		gz.Close()
		return fmt.Errorf("encode graph: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("flush graph: %w", err)
	}
	return nil
}

// LoadBinary reads an index written by SaveBinary and rebuilds the lookup
// indexes.
func LoadBinary(path string) (*CodeGraph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	header := make([]byte, len(indexMagic))
	if _, err := io.ReadFull(f, header); err != nil || !bytes.Equal(header, indexMagic) {
		return nil, fmt.Errorf("%s: not a cgdemo index", path)
	}

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("gzip reader: %w", err)
	}
	defer gz.Close()

	var g CodeGraph
	if err := gob.NewDecoder(gz).Decode(&g); err != nil {
		return nil, fmt.Errorf("decode graph: %w", err)
	}
	if g.Version != indexVersion {
		return nil, fmt.Errorf("%s: version %d: %w", path, g.Version, ErrIndexVersion)
	}

	if g.Nodes == nil {
		g.Nodes = make(map[NodeID]*Node)
	}
	g.RebuildIndexes()

	return &g, nil
}

// Exists checks if a graph file exists at the given path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// LoadIndex reads the index at path for the project at root. It fails with
// ErrNoIndex when there is none, and reports whether the index is stale:
// its sources changed, or it was built with settings other than want.
func LoadIndex(path, root string, want BuildSettings) (g *CodeGraph, stale bool, err error) {
	if !Exists(path) {
		return nil, true, ErrNoIndex
	}
	g, err = LoadBinary(path)
	if err != nil {
		return nil, true, err
	}
	if g.Settings() != want {
		return g, true, nil
	}
	stale, err = IsStale(g, root)
	return g, stale, err
}

// IsStale reports whether the graph needs to be rebuilt: a file it covers
// was modified after indexing or no longer exists. Graphs built by
// BuildProject also go stale when a new source file appears.
func IsStale(g *CodeGraph, rootPath string) (bool, error) {
	if g == nil || g.LastIndexed == 0 {
		return true, nil
	}

	indexTime := time.Unix(g.LastIndexed, 0)
	changed := func(rel string) bool {
		info, err := os.Stat(filepath.Join(rootPath, rel))
		return err != nil || info.ModTime().After(indexTime)
	}

	if g.Files == nil {
		for path, nodes := range g.nodesByPath {
			if filepath.Ext(path) != "" && hasFileNode(nodes) && changed(path) {
				return true, nil
			}
		}
		return false, nil
	}

	current, err := projectFiles(rootPath, g.SkipTests)
	if err != nil {
		return true, err
	}
	if len(current) != len(g.Files) {
		return true, nil
	}
	for i, rel := range g.Files {
		if current[i] != rel || changed(rel) {
			return true, nil
		}
	}
	return false, nil
}

// projectFiles lists the scannable source files under root, relative to it
// and sorted.
func projectFiles(root string, skipTests bool) ([]string, error) {
	abs, err := scanner.SourceFiles(root, scanner.LoadGitignore(root), skipTests)
	if err != nil {
		return nil, err
	}
	rels := make([]string, 0, len(abs))
	for _, p := range abs {
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return nil, err
		}
		rels = append(rels, filepath.ToSlash(rel))
	}
	return rels, nil
}

func hasFileNode(nodes []*Node) bool {
	for _, n := range nodes {
		if n.Kind == KindFile {
			return true
		}
	}
	return false
}

func init() {
	gob.Register(&CodeGraph{})
	gob.Register(&Node{})
	gob.Register(&Edge{})
}
