package scanner

import (
	"fmt"
	"go/parser"
	"go/token"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/dave/dst"
	"github.com/dave/dst/decorator"
)

// goBuiltins are call targets that never resolve to a user function:
// builtins and conversions to predeclared types.
var goBuiltins = map[string]bool{
	"append": true, "cap": true, "clear": true, "close": true, "complex": true,
	"copy": true, "delete": true, "imag": true, "len": true, "make": true,
	"max": true, "min": true, "new": true, "panic": true, "print": true,
	"println": true, "real": true, "recover": true,
	"bool": true, "byte": true, "rune": true, "string": true, "error": true,
	"int": true, "int8": true, "int16": true, "int32": true, "int64": true,
	"uint": true, "uint8": true, "uint16": true, "uint32": true, "uint64": true,
	"uintptr": true, "float32": true, "float64": true,
	"complex64": true, "complex128": true, "any": true,
}

// AnalyzeGoFile extracts function definitions and call sites from a Go
// source file. It needs no tree-sitter grammar.
func AnalyzeGoFile(filePath string) (*FileAnalysis, error) {
	src, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return analyzeGoSource(filePath, src)
}

func analyzeGoSource(filePath string, src []byte) (*FileAnalysis, error) {
	fset := token.NewFileSet()
	dec := decorator.NewDecorator(fset)
	file, err := dec.ParseFile(filePath, src, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filePath, err)
	}

	lines := func(n dst.Node) (int, int) {
		a, ok := dec.Ast.Nodes[n]
		if !ok || a == nil {
			return 0, 0
		}
		return fset.Position(a.Pos()).Line, fset.Position(a.End()).Line
	}

	analysis := &FileAnalysis{
		Path:     filePath,
		Language: "go",
		Package:  file.Name.Name,
	}

	imports := importNames(file)
	results := resultTypes(file)

	for _, decl := range file.Decls {
		fd, ok := decl.(*dst.FuncDecl)
		if !ok {
			continue
		}

		start, end := lines(fd)
		info := FuncInfo{
			Name:       fd.Name.Name,
			IsExported: IsExportedName(fd.Name.Name, "go"),
			Line:       start,
			EndLine:    end,
			ParamCount: goParamCount(fd.Type),
			Signature:  goSignature(fd),
		}
		if fd.Recv != nil && len(fd.Recv.List) > 0 {
			info.Receiver = exprText(fd.Recv.List[0].Type)
		}
		analysis.Functions = append(analysis.Functions, info)

		if fd.Body == nil {
			continue
		}

		locals := declaredTypes(fd, results)

		// Calls inside closures belong to the enclosing declaration.
		dst.Inspect(fd.Body, func(n dst.Node) bool {
			call, ok := n.(*dst.CallExpr)
			if !ok {
				return true
			}

			ci := CallInfo{
				CallerFunc:     info.Name,
				CallerReceiver: ReceiverTypeName(info.Receiver),
				Args:           len(call.Args),
			}
			ci.CallLine, _ = lines(call)

			switch fn := call.Fun.(type) {
			case *dst.Ident:
				if goBuiltins[fn.Name] {
					return true
				}
				ci.CalleeName = fn.Name
			case *dst.SelectorExpr:
				ci.CalleeName = fn.Sel.Name
				ci.Receiver = exprText(fn.X)
				if id, ok := fn.X.(*dst.Ident); ok {
					typ, local := locals[id.Name]
					if !local {
						ci.Package = imports[id.Name]
					}
					ci.ReceiverType = typ
				} else {
					ci.ReceiverType = valueType(fn.X, results)
				}
			default:
				return true
			}

			analysis.Calls = append(analysis.Calls, ci)
			return true
		})
	}

	return analysis, nil
}

// importNames maps the names a file refers to its imports by onto their
// paths. Blank and dot imports are left out.
func importNames(file *dst.File) map[string]string {
	names := make(map[string]string, len(file.Imports))
	for _, imp := range file.Imports {
		p, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			continue
		}
		name := defaultImportName(p)
		if imp.Name != nil {
			name = imp.Name.Name
		}
		if name == "_" || name == "." {
			continue
		}
		names[name] = p
	}
	return names
}

// defaultImportName guesses the package name of an unaliased import from
// its path: "gopkg.in/yaml.v3" is yaml, "example.com/mod/v2" is mod.
func defaultImportName(importPath string) string {
	base := path.Base(importPath)
	if len(base) > 1 && base[0] == 'v' && isDigits(base[1:]) && strings.Contains(importPath, "/") {
		base = path.Base(path.Dir(importPath))
	}
	if i := strings.Index(base, ".v"); i > 0 && isDigits(base[i+2:]) {
		base = base[:i]
	}
	base = strings.TrimPrefix(base, "go-")
	return strings.ReplaceAll(base, "-", "_")
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// resultTypes records the named type each single-result function of the
// file returns, so that x := newThing() gives x a type.
func resultTypes(file *dst.File) map[string]string {
	results := make(map[string]string)
	for _, decl := range file.Decls {
		fd, ok := decl.(*dst.FuncDecl)
		if !ok || fd.Recv != nil || fd.Type.Results == nil {
			continue
		}
		list := fd.Type.Results.List
		if len(list) != 1 || len(list[0].Names) > 1 {
			continue
		}
		if t := typeName(list[0].Type); t != "" {
			results[fd.Name.Name] = t
		}
	}
	return results
}

// declaredTypes maps every name declared in a function (receiver,
// parameters, results, locals) to its type name. The type is "" when the
// declaration does not spell out a type declared in this package. Scopes
// are flattened.
func declaredTypes(fd *dst.FuncDecl, results map[string]string) map[string]string {
	types := make(map[string]string)
	addFields := func(fields *dst.FieldList) {
		if fields == nil {
			return
		}
		for _, f := range fields.List {
			t := typeName(f.Type)
			for _, n := range f.Names {
				types[n.Name] = t
			}
		}
	}
	addFields(fd.Recv)
	addFields(fd.Type.Params)
	addFields(fd.Type.Results)

	dst.Inspect(fd.Body, func(n dst.Node) bool {
		switch n := n.(type) {
		case *dst.FuncLit:
			addFields(n.Type.Params)
		case *dst.AssignStmt:
			if n.Tok != token.DEFINE {
				return true
			}
			for i, lhs := range n.Lhs {
				id, ok := lhs.(*dst.Ident)
				if !ok || id.Name == "_" {
					continue
				}
				t := ""
				if len(n.Lhs) == len(n.Rhs) {
					t = valueType(n.Rhs[i], results)
				}
				types[id.Name] = t
			}
		case *dst.RangeStmt:
			for _, e := range []dst.Expr{n.Key, n.Value} {
				if id, ok := e.(*dst.Ident); ok && n.Tok == token.DEFINE {
					types[id.Name] = ""
				}
			}
		case *dst.ValueSpec:
			for i, id := range n.Names {
				t := typeName(n.Type)
				if t == "" && i < len(n.Values) {
					t = valueType(n.Values[i], results)
				}
				types[id.Name] = t
			}
		}
		return true
	})
	return types
}

// typeName is the package-local type a type expression names, or "".
func typeName(e dst.Expr) string {
	switch e := e.(type) {
	case *dst.Ident:
		if goBuiltins[e.Name] {
			return ""
		}
		return e.Name
	case *dst.StarExpr:
		return typeName(e.X)
	case *dst.ParenExpr:
		return typeName(e.X)
	case *dst.IndexExpr:
		return typeName(e.X)
	case *dst.IndexListExpr:
		return typeName(e.X)
	}
	return ""
}

// valueType is the type of a value expression when it is evident from the
// expression alone: T{}, &T{}, new(T) or a call to a function of this file.
func valueType(e dst.Expr, results map[string]string) string {
	switch e := e.(type) {
	case *dst.CompositeLit:
		return typeName(e.Type)
	case *dst.UnaryExpr:
		if e.Op == token.AND {
			return valueType(e.X, results)
		}
	case *dst.ParenExpr:
		return valueType(e.X, results)
	case *dst.CallExpr:
		if id, ok := e.Fun.(*dst.Ident); ok {
			if id.Name == "new" && len(e.Args) == 1 {
				return typeName(e.Args[0])
			}
			return results[id.Name]
		}
	}
	return ""
}

// goParamCount returns the number of declared parameters, or -1 when the
// function is variadic.
func goParamCount(ft *dst.FuncType) int {
	if ft.Params == nil {
		return 0
	}
	count := 0
	for _, field := range ft.Params.List {
		if _, ok := field.Type.(*dst.Ellipsis); ok {
			return -1
		}
		if len(field.Names) == 0 {
			count++
		} else {
			count += len(field.Names)
		}
	}
	return count
}

func goSignature(fd *dst.FuncDecl) string {
	var sb strings.Builder
	sb.WriteString("func ")
	if fd.Recv != nil && len(fd.Recv.List) > 0 {
		sb.WriteString("(" + fieldListText(fd.Recv.List) + ") ")
	}
	sb.WriteString(fd.Name.Name)
	sb.WriteString("(")
	if fd.Type.Params != nil {
		sb.WriteString(fieldListText(fd.Type.Params.List))
	}
	sb.WriteString(")")

	if fd.Type.Results != nil && len(fd.Type.Results.List) > 0 {
		results := fieldListText(fd.Type.Results.List)
		if len(fd.Type.Results.List) == 1 && len(fd.Type.Results.List[0].Names) == 0 {
			sb.WriteString(" " + results)
		} else {
			sb.WriteString(" (" + results + ")")
		}
	}
	return sb.String()
}

func fieldListText(fields []*dst.Field) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		typ := exprText(f.Type)
		if len(f.Names) == 0 {
			parts = append(parts, typ)
			continue
		}
		names := make([]string, len(f.Names))
		for i, n := range f.Names {
			names[i] = n.Name
		}
		parts = append(parts, strings.Join(names, ", ")+" "+typ)
	}
	return strings.Join(parts, ", ")
}

// exprText renders the type and receiver expressions that appear in
// signatures. Anything more exotic collapses to a placeholder.
func exprText(e dst.Expr) string {
	switch e := e.(type) {
	case *dst.Ident:
		return e.Name
	case *dst.StarExpr:
		return "*" + exprText(e.X)
	case *dst.SelectorExpr:
		return exprText(e.X) + "." + e.Sel.Name
	case *dst.ArrayType:
		if e.Len == nil {
			return "[]" + exprText(e.Elt)
		}
		return "[" + exprText(e.Len) + "]" + exprText(e.Elt)
	case *dst.BasicLit:
		return e.Value
	case *dst.Ellipsis:
		return "..." + exprText(e.Elt)
	case *dst.MapType:
		return "map[" + exprText(e.Key) + "]" + exprText(e.Value)
	case *dst.ChanType:
		return "chan " + exprText(e.Value)
	case *dst.FuncType:
		return "func(...)"
	case *dst.InterfaceType:
		return "interface{...}"
	case *dst.StructType:
		return "struct{...}"
	case *dst.IndexExpr:
		return exprText(e.X) + "[" + exprText(e.Index) + "]"
	case *dst.IndexListExpr:
		indices := make([]string, len(e.Indices))
		for i, x := range e.Indices {
			indices[i] = exprText(x)
		}
		return exprText(e.X) + "[" + strings.Join(indices, ", ") + "]"
	case *dst.CallExpr:
		return exprText(e.Fun) + "(...)"
	case *dst.ParenExpr:
		return "(" + exprText(e.X) + ")"
	default:
		return "_"
	}
}
