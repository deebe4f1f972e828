package scanner

import (
	"strings"
)

// SymbolQuery represents the filters for symbol search
type SymbolQuery struct {
	Name string // Substring match (case-insensitive)
	File string // Filter by specific file (optional)
}

// SymbolMatch represents a found function
type SymbolMatch struct {
	Name      string `json:"name"`
	Receiver  string `json:"receiver,omitempty"`
	Signature string `json:"signature"`
	File      string `json:"file"`
	Line      int    `json:"line"`
	EndLine   int    `json:"end_line,omitempty"`
	Exported  bool   `json:"exported"`
	Callers   int    `json:"callers"` // call sites naming this function, across all files
}

// SearchSymbols searches for functions in the analyzed files
func SearchSymbols(analyses []FileAnalysis, query SymbolQuery) []SymbolMatch {
	var matches []SymbolMatch
	searchName := strings.ToLower(query.Name)

	callSites := make(map[string]int)
	for _, analysis := range analyses {
		for _, c := range analysis.Calls {
			callSites[c.CalleeName]++
		}
	}

	for _, analysis := range analyses {
		if query.File != "" && !strings.Contains(analysis.Path, query.File) {
			continue
		}

		for _, fn := range analysis.Functions {
			if searchName != "" && !strings.Contains(strings.ToLower(fn.Name), searchName) {
				continue
			}
			matches = append(matches, SymbolMatch{
				Name:      fn.Name,
				Receiver:  fn.Receiver,
				Signature: fn.Signature,
				File:      analysis.Path,
				Line:      fn.Line,
				EndLine:   fn.EndLine,
				Exported:  fn.IsExported,
				Callers:   callSites[fn.Name],
			})
		}
	}

	return matches
}
