// Package wasmtest encodes the small WebAssembly guests used by tests.
//
// Every guest exports its memory plus:
//
//	grow(pages i32) i32   memory.grow
//	size() i32            memory.size
//	store(addr, val i32)  i32.store8
//	load(addr i32) i32    i32.load8_u
//	spin()                loops forever
//
// With ImportSetLimit the guest imports memlimit.setlimit and re-exports it
// as setlimit(i64). ImportI32 names another memlimit function of type
// () -> i32 that is imported and re-exported under the same name. With Start
// it exports _start, which grows memory by one page.
package wasmtest

// Options selects what a guest module contains.
type Options struct {
	ImportSetLimit bool
	ImportI32      string
	Start          bool
	MinPages       uint32
}

// Budgeted returns a one page guest that can set its own memory limit.
func Budgeted() []byte {
	return Module(Options{ImportSetLimit: true, MinPages: 1})
}

// Plain returns a one page guest without access to setlimit.
func Plain() []byte {
	return Module(Options{MinPages: 1})
}

const (
	typeI64ToNone  = 0
	typeI32ToI32   = 1
	typeNoneToI32  = 2
	typeI32I32None = 3
	typeNoneToNone = 4
)

// Module encodes a guest with the given options.
func Module(opts Options) []byte {
	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

	out = append(out, section(1, vec(
		[]byte{0x60, 0x01, 0x7e, 0x00},
		[]byte{0x60, 0x01, 0x7f, 0x01, 0x7f},
		[]byte{0x60, 0x00, 0x01, 0x7f},
		[]byte{0x60, 0x02, 0x7f, 0x7f, 0x00},
		[]byte{0x60, 0x00, 0x00},
	))...)

	var imports [][]byte
	if opts.ImportSetLimit {
		imp := append(name("memlimit"), name("setlimit")...)
		imports = append(imports, append(imp, 0x00, typeI64ToNone))
	}
	if opts.ImportI32 != "" {
		imp := append(name("memlimit"), name(opts.ImportI32)...)
		imports = append(imports, append(imp, 0x00, typeNoneToI32))
	}
	if len(imports) > 0 {
		out = append(out, section(2, vec(imports...))...)
	}
	base := uint32(len(imports))

	type fn struct {
		export string
		typ    byte
		body   []byte
	}
	var funcs []fn
	if opts.ImportSetLimit {
		// local.get 0; call 0
		funcs = append(funcs, fn{"setlimit", typeI64ToNone, []byte{0x20, 0x00, 0x10, 0x00}})
	}
	if opts.ImportI32 != "" {
		// call <import>
		idx := uint32(0)
		if opts.ImportSetLimit {
			idx = 1
		}
		funcs = append(funcs, fn{opts.ImportI32, typeNoneToI32, append([]byte{0x10}, uleb(idx)...)})
	}
	funcs = append(funcs,
		fn{"grow", typeI32ToI32, []byte{0x20, 0x00, 0x40, 0x00}},
		fn{"size", typeNoneToI32, []byte{0x3f, 0x00}},
		fn{"store", typeI32I32None, []byte{0x20, 0x00, 0x20, 0x01, 0x3a, 0x00, 0x00}},
		fn{"load", typeI32ToI32, []byte{0x20, 0x00, 0x2d, 0x00, 0x00}},
		// loop; br 0; end
		fn{"spin", typeNoneToNone, []byte{0x03, 0x40, 0x0c, 0x00, 0x0b}},
	)
	if opts.Start {
		// i32.const 1; memory.grow; drop
		funcs = append(funcs, fn{"_start", typeNoneToNone, []byte{0x41, 0x01, 0x40, 0x00, 0x1a}})
	}

	// Imported functions come first in the function index space; each
	// wrapper is only present when its import is.
	var types, exports, bodies [][]byte
	exports = append(exports, append(name("memory"), 0x02, 0x00))
	for i, f := range funcs {
		types = append(types, []byte{f.typ})
		exports = append(exports, append(name(f.export), append([]byte{0x00}, uleb(base+uint32(i))...)...))
		body := append([]byte{0x00}, f.body...)
		body = append(body, 0x0b)
		bodies = append(bodies, append(uleb(uint32(len(body))), body...))
	}

	out = append(out, section(3, vec(types...))...)
	out = append(out, section(5, vec(append([]byte{0x00}, uleb(opts.MinPages)...)))...)
	out = append(out, section(7, vec(exports...))...)
	out = append(out, section(10, vec(bodies...))...)
	return out
}

func section(id byte, content []byte) []byte {
	out := append([]byte{id}, uleb(uint32(len(content)))...)
	return append(out, content...)
}

func vec(items ...[]byte) []byte {
	out := uleb(uint32(len(items)))
	for _, item := range items {
		out = append(out, item...)
	}
	return out
}

func name(s string) []byte {
	return append(uleb(uint32(len(s))), s...)
}

func uleb(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			out = append(out, b|0x80)
			continue
		}
		return append(out, b)
	}
}
