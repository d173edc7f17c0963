package translate

import (
	"github.com/rather-labs/move-bytecode-to-wasm/internal/bytecode"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/cerr"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/errenc"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/flow"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/wasmbin"
)

// emitFlow walks a structured control-flow node (internal/flow, §4.6),
// dispatching on Kind. KindSimple emits its straight-line instructions,
// then whatever construct it unconditionally enters (Immediate), then
// its structured continuation (Next) — the same shape every other Kind
// eventually folds back into.
func (fs *funcState) emitFlow(f *flow.Flow) error {
	switch f.Kind {
	case flow.KindEmpty:
		return nil
	case flow.KindSimple:
		if err := fs.emitSimple(f); err != nil {
			return err
		}
		if f.Immediate != nil && f.Immediate.Kind != flow.KindEmpty {
			if err := fs.emitFlow(f.Immediate); err != nil {
				return err
			}
		}
		if len(f.Branches) > 0 {
			if err := fs.emitBranches(f.Branches); err != nil {
				return err
			}
		}
		return fs.emitFlow(f.Next)
	case flow.KindLoop:
		return fs.emitLoop(f)
	case flow.KindIfElse:
		return fs.emitIfElse(f)
	case flow.KindSwitch:
		return fs.emitSwitch(f)
	default:
		return cerr.New(cerr.PhaseFlow, cerr.KindInvalidControlFlow).
			Detailf("unknown flow node kind %d", f.Kind).Build()
	}
}

// emitSimple translates a Simple block's straight-line instructions. The
// last instruction of a block that structures the control-flow tree
// (BrTrue/BrFalse's condition, a plain Branch, or a VariantSwitch's
// dispatch value) is recognized rather than re-emitted: the surrounding
// Flow node (IfElse/Switch) or the br emitted for Branches already
// expresses that instruction's control transfer, and for BrTrue/BrFalse
// the condition's boolean operand is simply dropped from the compile-time
// stack since the raw i32 it left on the WASM stack feeds directly into
// the If the Immediate IfElse node emits.
func (fs *funcState) emitSimple(f *flow.Flow) error {
	instrs := f.Instructions
	for i, instr := range instrs {
		if i == len(instrs)-1 {
			switch instr.Op {
			case bytecode.OpBrTrue, bytecode.OpBrFalse:
				if _, err := fs.stack.Pop(); err != nil {
					return err
				}
				continue
			case bytecode.OpBranch:
				continue
			case bytecode.OpVariantSwitch:
				continue
			}
		}
		if err := fs.translateInstr(instr); err != nil {
			return err
		}
	}
	return nil
}

func (fs *funcState) emitIfElse(f *flow.Flow) error {
	fs.e.If(wasmbin.BlockType{Empty: true})
	if err := fs.emitFlow(f.Then); err != nil {
		return err
	}
	fs.e.Else()
	if err := fs.emitFlow(f.Else); err != nil {
		return err
	}
	fs.e.End()
	return nil
}

// startLabel returns the Move block label a loop break/continue
// targeting f's position would name, for matching against
// flow.BranchMode targets.
func startLabel(f *flow.Flow) (int, bool) {
	switch f.Kind {
	case flow.KindSimple:
		return f.Label, true
	case flow.KindLoop:
		return f.LoopID, true
	default:
		return 0, false
	}
}

// emitLoop opens an outer block (the loop's break target, matched
// against Next's own label) wrapping an inner loop (the continue target,
// matched against LoopID), pushing an exitFrame for each so emitBranches
// can resolve a Branches target from anywhere inside Inner.
func (fs *funcState) emitLoop(f *flow.Flow) error {
	breakLabel, hasBreak := startLabel(f.Next)

	fs.e.Block(wasmbin.BlockType{Empty: true})
	fs.pushExit(breakLabel, hasBreak)

	fs.e.Loop(wasmbin.BlockType{Empty: true})
	fs.pushExit(f.LoopID, true)

	if err := fs.emitFlow(f.Inner); err != nil {
		return err
	}

	fs.popExit()
	fs.e.End() // closes the loop

	fs.popExit()
	fs.e.End() // closes the outer block

	return fs.emitFlow(f.Next)
}

// emitBranches resolves every structurally-unresolved outgoing edge a
// Simple block left (§4.6's BranchMode vocabulary) to a WASM br
// targeting the matching enclosing loop's break or continue block. Every
// BranchMode is treated identically at emission time: the distinct
// modes record which relooper situation produced the edge, but by the
// time translation reaches here the only thing that matters is which
// enclosing construct's label it names, not which of the six ways it
// got there — a deliberate simplification over a full multi-headed
// forwarding-variable scheme, recorded in DESIGN.md.
func (fs *funcState) emitBranches(branches map[int]flow.BranchMode) error {
	for target := range branches {
		depth := -1
		for i := len(fs.exitStack) - 1; i >= 0; i-- {
			if fs.exitStack[i].valid && fs.exitStack[i].label == target {
				depth = len(fs.exitStack) - 1 - i
				break
			}
		}
		if depth < 0 {
			return cerr.New(cerr.PhaseFlow, cerr.KindInvalidControlFlow).
				Detailf("no enclosing loop exit matches branch target %d", target).Build()
		}
		fs.e.Br(uint32(depth))
	}
	return nil
}

// emitSwitch lowers a VariantSwitch's Cases to a br_table over n nested
// blocks plus one trap block for an out-of-range discriminator (the Move
// verifier guarantees a valid one was packed, but a compiled module must
// still fail safe rather than read garbage past the case table). The
// discriminator value is the enum pointer's first heap word, read off
// the compile-time stack value the enclosing Simple block left behind
// (internal/storage's enum layout: a 4-byte discriminator at offset 0).
func (fs *funcState) emitSwitch(f *flow.Flow) error {
	if _, err := fs.stack.Pop(); err != nil {
		return err
	}
	enumPtr := fs.NextI32()
	fs.e.LocalSet(enumPtr)

	n := len(f.Cases)
	fs.e.LocalGet(enumPtr).Load(wasmbin.OpcodeI32Load, 0)

	fs.e.Block(wasmbin.BlockType{Empty: true}) // doneAll
	fs.e.Block(wasmbin.BlockType{Empty: true}) // trap
	for i := 0; i < n; i++ {
		fs.e.Block(wasmbin.BlockType{Empty: true}) // case (n-1-i), opened outer-to-inner
	}

	targets := make([]uint32, n)
	for i := range targets {
		targets[i] = uint32(i)
	}
	fs.e.BrTable(targets, uint32(n))

	opened := n + 1 // cases still open, plus trap
	for i := 0; i < n; i++ {
		fs.e.End() // closes case i's own block; its body follows
		opened--
		snapshot := fs.stack.Snapshot()
		if err := fs.emitFlow(f.Cases[i]); err != nil {
			return err
		}
		fs.stack.Restore(snapshot)
		fs.e.Br(uint32(opened))
	}
	fs.e.End() // closes trap; its body follows
	errenc.EmitStaticAbort(fs.tr.Table, errenc.KindInvalidEnumVariant, fs.e)
	fs.e.End() // closes doneAll

	return nil
}
