package render

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"

	"cgdemo/scanner"
)

// APIView renders the exported functions of a scanned tree, grouped by
// directory, with methods listed under their receiver type.
func APIView(w io.Writer, root string, files []scanner.FileAnalysis) {
	projectName := filepath.Base(root)

	if len(files) == 0 {
		fmt.Fprintln(w, "  No source files found.")
		return
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "=== API Surface: %s ===\n", projectName)
	fmt.Fprintln(w)

	packages := make(map[string][]scanner.FileAnalysis)
	for _, f := range files {
		dir := filepath.Dir(f.Path)
		if dir == "." {
			dir = projectName
		}
		packages[dir] = append(packages[dir], f)
	}

	var pkgNames []string
	for name := range packages {
		pkgNames = append(pkgNames, name)
	}
	sort.Strings(pkgNames)

	total := 0
	for _, pkg := range pkgNames {
		methodsByType := make(map[string][]scanner.FuncInfo)
		var standalone []scanner.FuncInfo
		for _, f := range packages[pkg] {
			for _, fn := range f.Functions {
				if !fn.IsExported {
					continue
				}
				total++
				if fn.Receiver != "" {
					t := scanner.ReceiverTypeName(fn.Receiver)
					methodsByType[t] = append(methodsByType[t], fn)
				} else {
					standalone = append(standalone, fn)
				}
			}
		}

		if len(standalone) == 0 && len(methodsByType) == 0 {
			continue
		}

		fmt.Fprintf(w, "%s/\n", pkg)

		var typeNames []string
		for name := range methodsByType {
			typeNames = append(typeNames, name)
		}
		sort.Strings(typeNames)

		for _, t := range typeNames {
			fmt.Fprintf(w, "  [T] %s\n", t)
			for _, m := range methodsByType[t] {
				fmt.Fprintf(w, "    + %s\n", signatureOf(m))
			}
		}
		for _, fn := range standalone {
			fmt.Fprintf(w, "  + %s\n", signatureOf(fn))
		}

		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "─────────────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "Exported: %d functions\n", total)
	fmt.Fprintln(w)
}

func signatureOf(fn scanner.FuncInfo) string {
	if fn.Signature != "" {
		return fn.Signature
	}
	if fn.Receiver != "" {
		return fmt.Sprintf("(%s) %s()", fn.Receiver, fn.Name)
	}
	return fn.Name + "()"
}
