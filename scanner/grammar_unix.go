//go:build !windows

package scanner

import (
	"fmt"
	"unsafe"

	"github.com/ebitengine/purego"
)

// openGrammar dlopens a grammar library and binds its tree_sitter_<lang>
// entry point.
func openGrammar(path, lang string) (func() unsafe.Pointer, error) {
	lib, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, err
	}

	sym := fmt.Sprintf("tree_sitter_%s", lang)
	if _, err := purego.Dlsym(lib, sym); err != nil {
		return nil, fmt.Errorf("lookup %s: %w", sym, err)
	}

	var langFunc func() unsafe.Pointer
	purego.RegisterLibFunc(&langFunc, lib, sym)
	return langFunc, nil
}
