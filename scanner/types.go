package scanner

import (
	"strings"
	"unicode"
)

// FuncInfo represents a function or method definition.
type FuncInfo struct {
	Name       string `json:"name"`
	Signature  string `json:"signature,omitempty"`
	Receiver   string `json:"receiver,omitempty"` // For methods (Go)
	IsExported bool   `json:"exported,omitempty"`
	Line       int    `json:"line,omitempty"`     // Line number of definition (1-indexed)
	EndLine    int    `json:"end_line,omitempty"` // Last line of the body
	ParamCount int    `json:"params"`             // -1 if variadic or unknown
}

// CallInfo represents a function call site.
type CallInfo struct {
	CallerFunc     string `json:"caller"`                    // Name of the function containing the call
	CallerReceiver string `json:"caller_receiver,omitempty"` // Receiver type when the caller is a method
	CalleeName     string `json:"callee"`                    // Name of the called function
	CallLine       int    `json:"call_line"`                 // Line where the call occurs
	Args           int    `json:"args"`                      // Number of arguments
	Receiver       string `json:"receiver,omitempty"`        // Object/receiver for method calls
	ReceiverType   string `json:"receiver_type,omitempty"`   // Receiver's type, when its declaration names one
	Package        string `json:"package,omitempty"`         // Import path of a package-qualified call (Go)
}

// FileAnalysis holds the definitions and call sites found in one file.
type FileAnalysis struct {
	Path      string     `json:"path"`
	Language  string     `json:"language"`
	Package   string     `json:"package,omitempty"`
	Functions []FuncInfo `json:"functions"`
	Calls     []CallInfo `json:"calls,omitempty"`
}

// IsExportedName checks if a symbol name is exported based on language conventions
func IsExportedName(name, lang string) bool {
	if name == "" {
		return false
	}

	switch lang {
	case "go":
		r := []rune(name)
		return unicode.IsUpper(r[0])

	case "python":
		return !strings.HasPrefix(name, "_")

	case "c":
		// static linkage is not tracked; treat everything as visible
		return true

	default:
		return true
	}
}

// ReceiverTypeName reduces a receiver as written ("*stack", "(s *stack)",
// "List[T]") to the bare type name.
func ReceiverTypeName(receiver string) string {
	r := receiver
	if i := strings.IndexByte(r, '['); i >= 0 {
		r = r[:i]
	}
	parts := strings.Fields(strings.Trim(r, "()"))
	if len(parts) == 0 {
		return ""
	}
	return strings.TrimPrefix(parts[len(parts)-1], "*")
}
