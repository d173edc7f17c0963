package flow

import (
	"testing"

	"github.com/rather-labs/move-bytecode-to-wasm/internal/bytecode"
	"github.com/stretchr/testify/require"
)

func instr(op bytecode.Op) bytecode.Instruction { return bytecode.Instruction{Op: op} }

func TestBuildStraightLineIsOneSimpleBlock(t *testing.T) {
	fn := &bytecode.FunctionDef{Code: []bytecode.Instruction{
		instr(bytecode.OpLdTrue),
		instr(bytecode.OpPop),
		instr(bytecode.OpRet),
	}}
	f, err := Build(fn)
	require.NoError(t, err)
	require.Equal(t, KindSimple, f.Kind)
	require.Equal(t, 0, f.Label)
	require.Len(t, f.Instructions, 3)
	require.Equal(t, KindEmpty, f.Immediate.Kind)
	require.Equal(t, KindEmpty, f.Next.Kind)
}

func TestBuildIfElseMergesAfterBothArms(t *testing.T) {
	// 0: LdTrue; BrFalse -> 4
	// 2: (then) LdU32; Branch -> 5
	// 4: (else) LdU32
	// 5: (merge) Ret
	code := []bytecode.Instruction{
		instr(bytecode.OpLdTrue),
		{Op: bytecode.OpBrFalse, Offset: 4},
		instr(bytecode.OpLdU32),
		{Op: bytecode.OpBranch, Offset: 5},
		instr(bytecode.OpLdU32),
		instr(bytecode.OpRet),
	}
	fn := &bytecode.FunctionDef{Code: code}
	f, err := Build(fn)
	require.NoError(t, err)

	require.Equal(t, KindSimple, f.Kind)
	require.Equal(t, 0, f.Label)
	require.Equal(t, KindIfElse, f.Immediate.Kind)

	then := f.Immediate.Then
	require.Equal(t, KindSimple, then.Kind)
	require.Equal(t, 2, then.Label)

	els := f.Immediate.Else
	require.Equal(t, KindSimple, els.Kind)
	require.Equal(t, 4, els.Label)

	require.Equal(t, KindSimple, f.Next.Kind)
	require.Equal(t, 5, f.Next.Label)
}

func TestBuildIfWithoutElseCollapsesEmptyArm(t *testing.T) {
	// 0: LdTrue; BrFalse -> 3 (skip straight to merge when false)
	// 2: (then body, fallthrough when true) LdU32
	// 3: (merge) Ret
	code := []bytecode.Instruction{
		instr(bytecode.OpLdTrue),
		{Op: bytecode.OpBrFalse, Offset: 3},
		instr(bytecode.OpLdU32),
		instr(bytecode.OpRet),
	}
	fn := &bytecode.FunctionDef{Code: code}
	f, err := Build(fn)
	require.NoError(t, err)

	require.Equal(t, KindIfElse, f.Immediate.Kind)
	require.Equal(t, KindSimple, f.Immediate.Then.Kind)
	require.Equal(t, 2, f.Immediate.Then.Label)
	require.Equal(t, KindEmpty, f.Immediate.Else.Kind)
	require.Equal(t, KindSimple, f.Next.Kind)
	require.Equal(t, 3, f.Next.Label)
}

func TestBuildLoopWrapsHeaderAndDetectsBreakContinue(t *testing.T) {
	// 0: (header) LdTrue; BrFalse -> 4   (loop condition)
	// 2: LdU32; Branch -> 0   (continue, back to header)
	// 4: (after loop) Ret
	code := []bytecode.Instruction{
		instr(bytecode.OpLdTrue),
		{Op: bytecode.OpBrFalse, Offset: 4},
		instr(bytecode.OpLdU32),
		{Op: bytecode.OpBranch, Offset: 0},
		instr(bytecode.OpRet),
	}
	fn := &bytecode.FunctionDef{Code: code}
	f, err := Build(fn)
	require.NoError(t, err)

	require.Equal(t, KindLoop, f.Kind)
	require.Equal(t, 0, f.LoopID)
	require.Equal(t, KindSimple, f.Next.Kind)
	require.Equal(t, 4, f.Next.Label)

	inner := f.Inner
	require.Equal(t, KindSimple, inner.Kind)
	require.Equal(t, 0, inner.Label)
	require.Equal(t, KindIfElse, inner.Immediate.Kind)

	body := inner.Immediate.Then
	require.Equal(t, KindSimple, body.Kind)
	require.Equal(t, 2, body.Label)
	require.Equal(t, LoopContinue, body.Branches[0])

	exit := inner.Immediate.Else
	require.Equal(t, KindEmpty, exit.Kind)
}

func TestBuildSwitchProducesOneSimpleCasePerTarget(t *testing.T) {
	// 0: (header) VariantSwitch -> {1, 3, 5}
	// 1: LdU32; Branch -> 6
	// 3: LdU64; Branch -> 6
	// 5: LdTrue (falls through)
	// 6: (merge) Ret
	code := []bytecode.Instruction{
		{Op: bytecode.OpVariantSwitch, Targets: []int{1, 3, 5}},
		instr(bytecode.OpLdU32),
		{Op: bytecode.OpBranch, Offset: 6},
		instr(bytecode.OpLdU64),
		{Op: bytecode.OpBranch, Offset: 6},
		instr(bytecode.OpLdTrue),
		instr(bytecode.OpRet),
	}
	fn := &bytecode.FunctionDef{Code: code}
	f, err := Build(fn)
	require.NoError(t, err)

	require.Equal(t, KindSwitch, f.Immediate.Kind)
	require.Len(t, f.Immediate.Cases, 3)
	for _, c := range f.Immediate.Cases {
		require.Equal(t, KindSimple, c.Kind)
	}
	require.Equal(t, 1, f.Immediate.Cases[0].Label)
	require.Equal(t, 3, f.Immediate.Cases[1].Label)
	require.Equal(t, 5, f.Immediate.Cases[2].Label)

	require.Equal(t, KindSimple, f.Next.Kind)
	require.Equal(t, 6, f.Next.Label)
}

func TestDominatesReturnTrueWhenEveryPathReturns(t *testing.T) {
	code := []bytecode.Instruction{
		instr(bytecode.OpLdTrue),
		{Op: bytecode.OpBrFalse, Offset: 3},
		instr(bytecode.OpRet),
		instr(bytecode.OpRet),
	}
	fn := &bytecode.FunctionDef{Code: code}
	f, err := Build(fn)
	require.NoError(t, err)
	require.True(t, DominatesReturn(f))
}

func TestDominatesReturnFalseWhenNoPathReturns(t *testing.T) {
	code := []bytecode.Instruction{
		instr(bytecode.OpLdTrue),
		instr(bytecode.OpPop),
	}
	fn := &bytecode.FunctionDef{Code: code}
	f, err := Build(fn)
	require.NoError(t, err)
	require.False(t, DominatesReturn(f))
}

func TestBuildEmptyFunctionReturnsEmptyFlow(t *testing.T) {
	fn := &bytecode.FunctionDef{Code: nil}
	f, err := Build(fn)
	require.NoError(t, err)
	require.Equal(t, KindEmpty, f.Kind)
}
