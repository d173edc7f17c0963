package types

import "github.com/rather-labs/move-bytecode-to-wasm/internal/bytecode"

// FunctionEntry is one resolved, possibly-monomorphized function: its
// signature in intermediate types, and the WASM function id assigned to
// it during lowering (§3.5). WasmFuncID is relative to the set of
// translated Move functions (the module assembler, §4.9, offsets these
// ids by the count of imports, the allocator and the runtime helpers
// placed before them).
type FunctionEntry struct {
	ModuleID   bytecode.ModuleID
	Index      int // handle index in the defining module
	TypeArgs   []Type
	Name       string
	Params     []Type
	Returns    []Type
	Locals     []Type
	Visibility Visibility
	WasmFuncID uint32
	Compiled   bool // set once the translator has emitted this instance's body
}

// Visibility mirrors the handful of distinctions the entrypoint router
// (§4.8) and ABI codec (§4.4) care about.
type Visibility int

const (
	VisibilityPrivate Visibility = iota
	VisibilityPublic
	VisibilityEntry
)

// FunctionTable maps each Move function (by handle index, monomorphized
// by type arguments) to its FunctionEntry, interning duplicates so that
// two call sites instantiating the same generic function with the same
// type arguments collapse onto one compiled body (§3.5, §4.7, §9).
type FunctionTable struct {
	entries map[string]*FunctionEntry
	order   []*FunctionEntry
	nextID  uint32
}

// NewFunctionTable returns an empty function table.
func NewFunctionTable() *FunctionTable {
	return &FunctionTable{entries: make(map[string]*FunctionEntry)}
}

// Intern returns the FunctionEntry for (moduleID, index, typeArgs),
// creating and assigning it a fresh WasmFuncID if this is the first
// request for that instantiation.
func (ft *FunctionTable) Intern(moduleID bytecode.ModuleID, index int, typeArgs []Type, build func() (*FunctionEntry, error)) (*FunctionEntry, bool, error) {
	key := instanceKey(moduleID, index, typeArgs)
	if e, ok := ft.entries[key]; ok {
		return e, false, nil
	}
	e, err := build()
	if err != nil {
		return nil, false, err
	}
	e.ModuleID = moduleID
	e.Index = index
	e.TypeArgs = typeArgs
	e.WasmFuncID = ft.nextID
	ft.nextID++
	ft.entries[key] = e
	ft.order = append(ft.order, e)
	return e, true, nil
}

// Ordered returns every interned function entry in assignment order,
// which is also WASM function-index order among compiler-defined
// functions.
func (ft *FunctionTable) Ordered() []*FunctionEntry { return ft.order }

// Count returns how many distinct (possibly monomorphized) functions
// have been interned.
func (ft *FunctionTable) Count() int { return len(ft.order) }
