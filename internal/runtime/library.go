// Package runtime builds the runtime function library (§4.3): the fixed
// and generic helpers every translated module links against for integer
// overflow checks, byte swapping, vector operations, ASCII conversion,
// and the keccak-based storage slot derivation. Grounded on wazero's
// compilation-cache pattern (internal/wasm/store.go's one-time function
// instantiation) generalized from "cache a compiled module" to "cache a
// named helper, possibly parameterized by type arguments".
package runtime

import (
	"fmt"

	"github.com/rather-labs/move-bytecode-to-wasm/internal/cerr"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/clog"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/types"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/wasmbin"
	"go.uber.org/zap"
)

// helperKey identifies a linked helper: its base name plus the type
// arguments it was instantiated with, if any (e.g. "vector_push" over
// u64 vs. over a struct pointer are distinct helpers).
type helperKey struct {
	name    string
	typeKey string
}

// linked records a helper already installed into the module: its
// assigned function index plus signature, so callers can emit Call
// without re-deriving either.
type linked struct {
	funcID uint32
	sig    *wasmbin.FunctionType
}

// Library is the lazy-linking cache described by §4.3: "Each helper is
// linked lazily: the first request by name installs the definition;
// subsequent requests return the existing id." It owns no Module
// directly; the assembler feeds it a function-index allocator and
// collects the emitted Func/FunctionType pairs back out via Emitted.
type Library struct {
	allocFuncID uint32
	nextFuncID  func() uint32

	cache   map[helperKey]linked
	funcs   []*wasmbin.Func
	types   []*wasmbin.FunctionType
	names   []string // parallel to funcs, for diagnostics/debug exports

	overflowTrapBody func() *wasmbin.Func
}

// NewLibrary builds a Library. allocFuncID is the already-linked bump
// allocator function (§4.2); nextFuncID hands out the next free function
// index each time a new helper body is installed.
func NewLibrary(allocFuncID uint32, nextFuncID func() uint32) *Library {
	return &Library{
		allocFuncID: allocFuncID,
		nextFuncID:  nextFuncID,
		cache:       make(map[helperKey]linked),
	}
}

// request is the shared lazy-link path: look up (name, typeKey), and if
// absent, build it, assign it a function index, and remember it.
func (lib *Library) request(name, typeKey string, build func() (*wasmbin.Func, *wasmbin.FunctionType)) uint32 {
	key := helperKey{name: name, typeKey: typeKey}
	if l, ok := lib.cache[key]; ok {
		return l.funcID
	}
	body, sig := build()
	id := lib.nextFuncID()
	lib.cache[key] = linked{funcID: id, sig: sig}
	lib.funcs = append(lib.funcs, body)
	lib.types = append(lib.types, sig)
	lib.names = append(lib.names, name)
	clog.L().Debug("linked runtime helper",
		zap.String("name", name), zap.String("typeArgs", typeKey), zap.Uint32("funcID", id))
	return id
}

// AllocFuncID returns the bump allocator's function index, for packages
// downstream of runtime (abi, storage, entrypoint) that need to emit
// their own alloc() calls outside any helper the Library links.
func (lib *Library) AllocFuncID() uint32 { return lib.allocFuncID }

// Emitted returns every helper body installed so far, in link order,
// alongside their signatures, for the assembler to append to the
// module's function/code sections.
func (lib *Library) Emitted() ([]*wasmbin.Func, []*wasmbin.FunctionType, []string) {
	return lib.funcs, lib.types, lib.names
}

// Keccak256Of64 returns the function id of the fixed-width keccak256
// helper, linking it on first use.
func (lib *Library) Keccak256Of64() uint32 {
	return lib.request(Keccak256Of64Name, "", func() (*wasmbin.Func, *wasmbin.FunctionType) {
		return buildKeccak256Of64(lib)
	})
}

// typeKeyOf renders a Type to a stable string for generic-helper
// interning, mirroring internal/types.Context's instanceKey approach
// (§4.1's "every generic helper is interned by (name, type-arguments)").
func typeKeyOf(t types.Type) string {
	return fmt.Sprintf("%v", t)
}

// unsupported returns a cerr.Error when a helper is requested for a
// type shape the runtime library does not (yet) support, instead of
// panicking the compiler.
func unsupported(phase cerr.Phase, helper string, t types.Type) error {
	return cerr.New(phase, cerr.KindUnsupportedType).
		Detailf("helper %s has no implementation for type %s", helper, t.Kind).
		Build()
}
