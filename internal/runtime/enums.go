package runtime

import (
	"github.com/rather-labs/move-bytecode-to-wasm/internal/memory"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/wasmbin"
)

// EnumStorageSize links enum_storage_size(i32 enumTableIndex, i32
// variantTag) -> i32: looks up the storage byte-width of enum
// `enumTableIndex`'s variant `variantTag` from the flat table the
// storage codec (§4.5) installs at the reserved prefix's
// OffsetEnumSizeTable region. Each enum gets a fixed 16-byte row (up to
// 16 variants, 1 byte each, matching §3.7's observation that Move enums
// rarely exceed a handful of variants); the module assembler validates
// at compile time that no enum in the program exceeds that count rather
// than this helper bounds-checking it at runtime.
func (lib *Library) EnumStorageSize() uint32 {
	return lib.request("enum_storage_size", "", func() (*wasmbin.Func, *wasmbin.FunctionType) {
		const enumIndex, variantTag = 0, 1
		const rowBytes = 16
		e := wasmbin.NewEmitter()

		e.I32Const(memory.OffsetEnumSizeTable)
		e.LocalGet(enumIndex).I32Const(rowBytes).I32Mul().I32Add()
		e.LocalGet(variantTag).I32Add()
		e.Load(wasmbin.OpcodeI32Load8U, 0)
		e.Return().End()

		return &wasmbin.Func{Body: e.Bytes()}, &wasmbin.FunctionType{
			Params:  []wasmbin.ValueType{wasmbin.ValueTypeI32, wasmbin.ValueTypeI32},
			Results: []wasmbin.ValueType{wasmbin.ValueTypeI32},
		}
	})
}
