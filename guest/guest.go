// Package guest describes the WebAssembly programs run by the executor.
package guest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Module is a guest program. Name identifies the module in the executor's
// compilation cache, so different programs need different names.
type Module interface {
	Name() string
	Wasm() []byte
}

type module struct {
	name string
	wasm []byte
}

// New returns a guest backed by an in-memory wasm binary.
func New(name string, wasm []byte) Module {
	return &module{name: name, wasm: wasm}
}

// Load reads a .wasm file. The module is named after its absolute path.
func Load(path string) (Module, error) {
	if !strings.EqualFold(filepath.Ext(path), ".wasm") {
		return nil, fmt.Errorf("unsupported guest %q: expected a .wasm file", path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("read guest: %w", err)
	}
	return New(abs, data), nil
}

func (m *module) Name() string { return m.name }

func (m *module) Wasm() []byte { return m.wasm }
