package scanner

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// IgnoredDirs are directories to skip during scanning
var IgnoredDirs = map[string]bool{
	".git":          true,
	".cgdemo":       true,
	"node_modules":  true,
	"vendor":        true,
	"build":         true,
	".idea":         true,
	".vscode":       true,
	"__pycache__":   true,
	"venv":          true,
	".venv":         true,
	".pytest_cache": true,
	"dist":          true,
	"target":        true,
	"grammars":      true,
	"_examples":     true,
}

// WalkOptions configures the file walking behavior.
type WalkOptions struct {
	// Gitignore patterns to apply (can be nil)
	Gitignore *ignore.GitIgnore

	// LanguageFilter if true, only visits files with supported languages
	LanguageFilter bool

	// SkipTests drops Go _test.go files
	SkipTests bool
}

// WalkFunc is the callback function type for WalkFiles.
// It receives the absolute path, relative path, and file info for each file.
type WalkFunc func(absPath, relPath string, info os.FileInfo) error

// WalkFiles walks the directory tree and calls fn for each file.
// A root that names a single file visits just that file.
func WalkFiles(root string, opts WalkOptions, fn WalkFunc) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if relPath == "." && !info.IsDir() {
			relPath = info.Name()
		}

		if info.IsDir() {
			if path != root && IgnoredDirs[info.Name()] {
				return filepath.SkipDir
			}
		}

		if opts.Gitignore != nil && relPath != "." && opts.Gitignore.MatchesPath(relPath) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if info.IsDir() {
			return nil
		}

		if opts.LanguageFilter && DetectLanguage(path) == "" {
			return nil
		}
		if opts.SkipTests && strings.HasSuffix(path, "_test.go") {
			return nil
		}

		return fn(path, relPath, info)
	})
}

// LoadGitignore loads .gitignore from root if it exists
func LoadGitignore(root string) *ignore.GitIgnore {
	gitignorePath := filepath.Join(root, ".gitignore")

	if _, err := os.Stat(gitignorePath); err == nil {
		if gitignore, err := ignore.CompileIgnoreFile(gitignorePath); err == nil {
			return gitignore
		}
	}

	return nil
}

// ScanForCalls walks the tree and analyzes every supported file. Files that
// fail to parse, or whose grammar is missing, are skipped. Results are
// sorted by path and carry paths relative to root.
func ScanForCalls(root string, gitignore *ignore.GitIgnore, loader *GrammarLoader, skipTests bool) ([]FileAnalysis, error) {
	var analyses []FileAnalysis

	opts := WalkOptions{
		Gitignore:      gitignore,
		LanguageFilter: true,
		SkipTests:      skipTests,
	}

	err := WalkFiles(root, opts, func(absPath, relPath string, info os.FileInfo) error {
		analysis, err := loader.AnalyzeFile(absPath)
		if err != nil || analysis == nil {
			return nil
		}

		analysis.Path = filepath.ToSlash(relPath)
		analyses = append(analyses, *analysis)
		return nil
	})

	sort.Slice(analyses, func(i, j int) bool { return analyses[i].Path < analyses[j].Path })
	return analyses, err
}

// SourceFiles lists the supported source files under root, sorted. Used to
// fingerprint a scan for caching.
func SourceFiles(root string, gitignore *ignore.GitIgnore, skipTests bool) ([]string, error) {
	var files []string
	opts := WalkOptions{Gitignore: gitignore, LanguageFilter: true, SkipTests: skipTests}
	err := WalkFiles(root, opts, func(absPath, relPath string, info os.FileInfo) error {
		files = append(files, absPath)
		return nil
	})
	sort.Strings(files)
	return files, err
}
