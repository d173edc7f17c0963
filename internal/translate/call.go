package translate

import (
	"github.com/rather-labs/move-bytecode-to-wasm/internal/bytecode"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/types"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/wasmbin"
)

// emitCall and emitCallGeneric both translate (and, on first reference,
// compile) the target function through Translator.TranslateFunction,
// then emit a WASM Call against its assigned WasmFuncID. WasmFuncID is
// relative to the compiler-defined function set; ImportCount shifts it
// into the module's actual function index space once the assembler
// (§4.9) has finalized the import section.
func (fs *funcState) emitCall(instr bytecode.Instruction, rawTypeArgs []bytecode.SignatureToken) error {
	typeArgs, err := fs.resolveTypeArgs(rawTypeArgs)
	if err != nil {
		return err
	}
	entry, err := fs.tr.TranslateFunction(fs.mod, instr.FunctionIndex, typeArgs)
	if err != nil {
		return err
	}
	return fs.emitCallEntry(entry)
}

func (fs *funcState) emitCallGeneric(instr bytecode.Instruction) error {
	return fs.emitCall(instr, instr.TypeArgs)
}

func (fs *funcState) emitCallEntry(entry *types.FunctionEntry) error {
	for range entry.Params {
		if _, err := fs.stack.Pop(); err != nil {
			return err
		}
	}
	fs.e.Call(entry.WasmFuncID + fs.tr.ImportCount)

	switch len(entry.Returns) {
	case 0:
		return nil
	case 1:
		fs.stack.Push(entry.Returns[0])
		return nil
	default:
		return fs.emitUnboxReturnTuple(entry.Returns)
	}
}

// emitUnboxReturnTuple is emitRet's N>1-return boxing in reverse: the
// call just left a single i32 tuple pointer on the stack, one 4-byte
// cell per return value (a boxed 8-byte cell for u64), and this reads
// each cell back so the translator's compile-time stack ends up exactly
// as if the callee's values had been pushed directly.
func (fs *funcState) emitUnboxReturnTuple(returns []types.Type) error {
	tuple := fs.NextI32()
	fs.e.LocalSet(tuple)
	for i, t := range returns {
		fs.e.LocalGet(tuple).Load(wasmbin.OpcodeI32Load, uint32(4*i))
		if t.Kind == types.KindU64 {
			fs.e.Load(wasmbin.OpcodeI64Load, 0)
		}
		fs.stack.Push(t)
	}
	return nil
}
