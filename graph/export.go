package graph

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Default export file names.
const (
	DefaultStatsFile    = "function_stats.csv"
	DefaultReducedFile  = "reduced_graph.dot"
	DefaultJSONFile     = "analysis_results.json"
	DefaultDeadCodeFile = "dead_code.txt"
	DefaultHotPathsFile = "hot_paths.txt"
	DefaultClustersFile = "clusters.json"
)

// Outputs names the files ExportAll writes. An empty path skips that file.
type Outputs struct {
	Stats    string
	Reduced  string
	JSON     string
	DeadCode string
	HotPaths string
	Clusters string
}

// DefaultOutputs writes every export into dir.
func DefaultOutputs(dir string) Outputs {
	return Outputs{
		Stats:    filepath.Join(dir, DefaultStatsFile),
		Reduced:  filepath.Join(dir, DefaultReducedFile),
		JSON:     filepath.Join(dir, DefaultJSONFile),
		DeadCode: filepath.Join(dir, DefaultDeadCodeFile),
		HotPaths: filepath.Join(dir, DefaultHotPathsFile),
		Clusters: filepath.Join(dir, DefaultClustersFile),
	}
}

// ExportAll writes the report files named in out and returns the paths
// written, in a stable order. Hot paths, dead code and clusters are only
// written when the report has them.
func ExportAll(report *Report, reduced *CodeGraph, out Outputs) ([]string, error) {
	var written []string
	write := func(path string, fn func(io.Writer) error) error {
		if path == "" {
			return nil
		}
		if err := writeFile(path, fn); err != nil {
			return err
		}
		written = append(written, path)
		return nil
	}

	if err := write(out.Stats, func(w io.Writer) error { return WriteStatsCSV(w, report) }); err != nil {
		return written, err
	}
	if reduced != nil {
		if err := write(out.Reduced, func(w io.Writer) error { return WriteDOT(w, reduced, "reduced") }); err != nil {
			return written, err
		}
	}
	if len(report.HotPaths) > 0 {
		if err := write(out.HotPaths, func(w io.Writer) error { return WriteHotPaths(w, report) }); err != nil {
			return written, err
		}
	}
	if err := write(out.JSON, func(w io.Writer) error { return WriteJSON(w, report) }); err != nil {
		return written, err
	}
	if len(report.DeadCode) > 0 {
		if err := write(out.DeadCode, func(w io.Writer) error { return WriteDeadCode(w, report) }); err != nil {
			return written, err
		}
	}
	if len(report.Clusters) > 0 {
		if err := write(out.Clusters, func(w io.Writer) error { return WriteClusters(w, report) }); err != nil {
			return written, err
		}
	}
	return written, nil
}

func writeFile(path string, fn func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	bw := bufio.NewWriter(f)
	if err := fn(bw); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// WriteStatsCSV writes one row per function.
func WriteStatsCSV(w io.Writer, report *Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Function", "In_Degree", "Out_Degree", "Betweenness", "PageRank", "Is_Entry", "Is_Dead"}); err != nil {
		return err
	}
	for _, fs := range report.Functions {
		row := []string{
			fs.Name,
			strconv.Itoa(fs.InDegree),
			strconv.Itoa(fs.OutDegree),
			strconv.FormatFloat(fs.Importance, 'f', -1, 64),
			strconv.FormatFloat(fs.PageRank, 'f', -1, 64),
			pyBool(fs.IsEntry),
			pyBool(fs.IsDead),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func pyBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

// WriteHotPaths writes the ranked hot paths as numbered blocks.
func WriteHotPaths(w io.Writer, report *Report) error {
	for i, hp := range report.HotPaths {
		if _, err := fmt.Fprintf(w, "Hot Path #%d\nScore: %.6f\n%s\n\n", i+1, hp.Score, strings.Join(hp.Path, " -> ")); err != nil {
			return err
		}
	}
	return nil
}

// summary is the JSON export layout.
type summary struct {
	Nodes       int        `json:"nodes"`
	Edges       int        `json:"edges"`
	DeadCode    []string   `json:"dead_code"`
	HotPaths    []HotPath  `json:"hot_paths"`
	EntryPoints []string   `json:"entry_points"`
	Cycles      [][]string `json:"cycles"`
}

// WriteJSON writes the analysis summary.
func WriteJSON(w io.Writer, report *Report) error {
	s := summary{
		Nodes:       report.Nodes,
		Edges:       report.Edges,
		DeadCode:    nonNil(report.DeadCode),
		HotPaths:    report.HotPaths,
		EntryPoints: nonNil(report.EntryPoints),
		Cycles:      report.Cycles,
	}
	if s.HotPaths == nil {
		s.HotPaths = []HotPath{}
	}
	if s.Cycles == nil {
		s.Cycles = [][]string{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

// WriteDeadCode writes one unreachable function per line.
func WriteDeadCode(w io.Writer, report *Report) error {
	for _, name := range report.DeadCode {
		if _, err := fmt.Fprintln(w, name); err != nil {
			return err
		}
	}
	return nil
}

// WriteClusters writes clusters as a JSON object keyed by cluster index.
func WriteClusters(w io.Writer, report *Report) error {
	out := make(map[string][]string, len(report.Clusters))
	for i, c := range report.Clusters {
		out[strconv.Itoa(i)] = c
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
