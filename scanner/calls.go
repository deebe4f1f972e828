package scanner

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// callQueryPatterns maps languages to their call expression query patterns.
var callQueryPatterns = map[string]string{
	"c": `
; Function calls
(call_expression
  function: (identifier) @call.name
  arguments: (argument_list) @call.args)

; Calls through a struct member
(call_expression
  function: (field_expression
    argument: (_) @call.receiver
    field: (field_identifier) @call.name)
  arguments: (argument_list) @call.args)
`,
	"python": `
; Function calls
(call
  function: (identifier) @call.name
  arguments: (argument_list) @call.args)

; Method calls
(call
  function: (attribute
    object: (_) @call.receiver
    attribute: (identifier) @call.name)
  arguments: (argument_list) @call.args)
`,
}

// funcRange represents a function's line range for caller detection.
type funcRange struct {
	name      string
	startLine int
	endLine   int
}

// extractCalls runs the call query and attributes every call to the
// innermost function whose line range contains it. Calls at file scope are
// dropped.
func extractCalls(root *tree_sitter.Node, content []byte, query *tree_sitter.Query, funcs []FuncInfo) []CallInfo {
	ranges := make([]funcRange, 0, len(funcs))
	for _, fn := range funcs {
		ranges = append(ranges, funcRange{name: fn.Name, startLine: fn.Line, endLine: fn.EndLine})
	}

	cursor := tree_sitter.NewQueryCursor()
	defer cursor.Close()

	var calls []CallInfo
	matches := cursor.Matches(query, root, content)
	for match := matches.Next(); match != nil; match = matches.Next() {
		var call CallInfo
		for _, capture := range match.Captures {
			text := capture.Node.Utf8Text(content)

			switch query.CaptureNames()[capture.Index] {
			case "call.name":
				call.CalleeName = text
				call.CallLine = int(capture.Node.StartPosition().Row) + 1
			case "call.receiver":
				call.Receiver = text
			case "call.args":
				call.Args = countArgs(text)
			}
		}
		if call.CalleeName == "" {
			continue
		}
		call.CallerFunc = findContainingFunction(call.CallLine, ranges)
		if call.CallerFunc == "" {
			continue
		}
		calls = append(calls, call)
	}

	return calls
}

// findContainingFunction finds which function contains a given line.
// The latest-starting match wins, so nested definitions shadow their parents.
func findContainingFunction(line int, ranges []funcRange) string {
	best := ""
	bestStart := -1
	for _, r := range ranges {
		if line >= r.startLine && line <= r.endLine && r.startLine > bestStart {
			best = r.name
			bestStart = r.startLine
		}
	}
	return best
}

// countArgs counts the number of arguments in an argument list.
// Commas nested inside brackets or string literals are not separators.
func countArgs(argsText string) int {
	argsText = strings.TrimSpace(argsText)
	if len(argsText) < 2 {
		return 0
	}
	inner := strings.TrimSpace(argsText[1 : len(argsText)-1])
	if inner == "" {
		return 0
	}

	depth := 0
	var quote rune
	count := 1
	prev := rune(0)
	for _, r := range inner {
		switch {
		case quote != 0:
			if r == quote && prev != '\\' {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == '(' || r == '[' || r == '{':
			depth++
		case r == ')' || r == ']' || r == '}':
			depth--
		case r == ',' && depth == 0:
			count++
		}
		prev = r
	}
	return count
}
