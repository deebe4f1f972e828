//go:build windows

package scanner

import (
	"fmt"
	"syscall"
	"unsafe"
)

// openGrammar loads a grammar DLL and wraps its tree_sitter_<lang> export.
func openGrammar(path, lang string) (func() unsafe.Pointer, error) {
	handle, err := syscall.LoadLibrary(path)
	if err != nil {
		return nil, err
	}

	sym := fmt.Sprintf("tree_sitter_%s", lang)
	proc, err := syscall.GetProcAddress(handle, sym)
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", sym, err)
	}

	return func() unsafe.Pointer {
		ret, _, _ := syscall.SyscallN(proc)
		return unsafe.Pointer(ret)
	}, nil
}
