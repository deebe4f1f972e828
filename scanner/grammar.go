package scanner

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

//go:embed queries/*.scm
var queryFiles embed.FS

// LanguageConfig holds a dynamically loaded parser and its queries.
type LanguageConfig struct {
	Language *tree_sitter.Language
	Query    *tree_sitter.Query // function definitions
	Calls    *tree_sitter.Query // call sites
}

// GrammarLoader handles dynamic loading of tree-sitter grammars.
// Go sources never go through it; see AnalyzeGoFile.
type GrammarLoader struct {
	configs    map[string]*LanguageConfig
	grammarDir string
}

// Extension to language mapping
var extToLang = map[string]string{
	".go": "go",
	".c":  "c",
	".h":  "c",
	".py": "python",
}

// NewGrammarLoader creates a loader that searches for grammars
func NewGrammarLoader() *GrammarLoader {
	loader := &GrammarLoader{
		configs: make(map[string]*LanguageConfig),
	}

	possibleDirs := []string{}
	if envDir := os.Getenv("CGDEMO_GRAMMAR_DIR"); envDir != "" {
		possibleDirs = append(possibleDirs, envDir)
	}
	possibleDirs = append(possibleDirs,
		filepath.Join(getExecutableDir(), "grammars"),
		filepath.Join(getExecutableDir(), "..", "lib", "grammars"),
		"/usr/local/lib/cgdemo/grammars",
		filepath.Join(os.Getenv("HOME"), ".cgdemo", "grammars"),
		"./grammars",
		"./scanner/grammars",
	)

	for _, dir := range possibleDirs {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			loader.grammarDir = dir
			break
		}
	}

	return loader
}

// HasGrammars returns true if grammar directory was found
func (l *GrammarLoader) HasGrammars() bool {
	return l.grammarDir != ""
}

// GrammarDir returns the grammar directory path (for diagnostics)
func (l *GrammarLoader) GrammarDir() string {
	return l.grammarDir
}

// LoadLanguage dynamically loads a grammar from .so/.dylib/.dll and compiles
// its definition and call queries.
func (l *GrammarLoader) LoadLanguage(lang string) error {
	if _, exists := l.configs[lang]; exists {
		return nil
	}

	if l.grammarDir == "" {
		return fmt.Errorf("no grammar directory found")
	}

	var libExt string
	switch runtime.GOOS {
	case "darwin":
		libExt = ".dylib"
	case "windows":
		libExt = ".dll"
	default:
		libExt = ".so"
	}

	libPath := filepath.Join(l.grammarDir, fmt.Sprintf("libtree-sitter-%s%s", lang, libExt))
	langFunc, err := openGrammar(libPath, lang)
	if err != nil {
		return fmt.Errorf("load %s: %w", libPath, err)
	}
	language := tree_sitter.NewLanguage(langFunc())

	queryBytes, err := queryFiles.ReadFile(fmt.Sprintf("queries/%s.scm", lang))
	if err != nil {
		return fmt.Errorf("no query for %s", lang)
	}
	query, qerr := tree_sitter.NewQuery(language, string(queryBytes))
	if qerr != nil {
		return fmt.Errorf("bad query for %s: %v", lang, qerr)
	}

	pattern, ok := callQueryPatterns[lang]
	if !ok {
		return fmt.Errorf("no call query for %s", lang)
	}
	calls, qerr := tree_sitter.NewQuery(language, pattern)
	if qerr != nil {
		return fmt.Errorf("bad call query for %s: %v", lang, qerr)
	}

	l.configs[lang] = &LanguageConfig{Language: language, Query: query, Calls: calls}
	return nil
}

// DetectLanguage returns the language name for a file path
func DetectLanguage(filePath string) string {
	ext := strings.ToLower(filepath.Ext(filePath))
	return extToLang[ext]
}

// AnalyzeFile extracts function definitions and call sites. Go files are
// parsed natively; other languages need their grammar, and a file whose
// grammar is unavailable yields (nil, nil).
func (l *GrammarLoader) AnalyzeFile(filePath string) (*FileAnalysis, error) {
	lang := DetectLanguage(filePath)
	switch lang {
	case "":
		return nil, nil
	case "go":
		return AnalyzeGoFile(filePath)
	}

	if err := l.LoadLanguage(lang); err != nil {
		return nil, nil
	}
	config := l.configs[lang]

	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	parser := tree_sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(config.Language)

	tree := parser.Parse(content, nil)
	defer tree.Close()

	analysis := &FileAnalysis{Path: filePath, Language: lang}
	analysis.Functions = extractFunctions(tree.RootNode(), content, config.Query, lang)
	analysis.Calls = extractCalls(tree.RootNode(), content, config.Calls, analysis.Functions)
	return analysis, nil
}

// extractFunctions runs the definition query. Each match carries
// @func.def (the whole definition), @func.name and optionally @func.params.
func extractFunctions(root *tree_sitter.Node, content []byte, query *tree_sitter.Query, lang string) []FuncInfo {
	cursor := tree_sitter.NewQueryCursor()
	defer cursor.Close()

	var funcs []FuncInfo
	matches := cursor.Matches(query, root, content)
	for match := matches.Next(); match != nil; match = matches.Next() {
		var fn FuncInfo
		for _, capture := range match.Captures {
			switch query.CaptureNames()[capture.Index] {
			case "func.name":
				fn.Name = capture.Node.Utf8Text(content)
			case "func.params":
				params := capture.Node.Utf8Text(content)
				fn.ParamCount = countParams(params)
				fn.Signature = params
			case "func.def":
				fn.Line = int(capture.Node.StartPosition().Row) + 1
				fn.EndLine = int(capture.Node.EndPosition().Row) + 1
			}
		}
		if fn.Name == "" {
			continue
		}
		fn.Signature = fn.Name + fn.Signature
		if lang == "python" {
			// defaults, *args and bound self make call arity unreliable
			fn.ParamCount = -1
		}
		fn.IsExported = IsExportedName(fn.Name, lang)
		funcs = append(funcs, fn)
	}

	return dedupeFuncs(funcs)
}

// countParams counts parameters in a "(...)" list. C's "(void)" is zero and a
// trailing "..." marks the function variadic.
func countParams(params string) int {
	inner := strings.TrimSpace(params)
	inner = strings.TrimPrefix(inner, "(")
	inner = strings.TrimSuffix(inner, ")")
	inner = strings.TrimSpace(inner)
	if inner == "" || inner == "void" {
		return 0
	}
	if strings.Contains(inner, "...") || strings.Contains(inner, "*args") {
		return -1
	}
	return countArgs(params)
}

func dedupeFuncs(funcs []FuncInfo) []FuncInfo {
	seen := make(map[string]bool)
	var result []FuncInfo
	for _, f := range funcs {
		key := fmt.Sprintf("%s:%d", f.Name, f.Line)
		if !seen[key] {
			seen[key] = true
			result = append(result, f)
		}
	}
	return result
}

func getExecutableDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}
