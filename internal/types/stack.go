package types

import "github.com/rather-labs/move-bytecode-to-wasm/internal/cerr"

// Stack is the compile-time mirror of the Move operand stack (§3.4): it
// holds intermediate types, never runtime values, and is mutated by every
// translated bytecode instruction. Every operation's expected
// top-of-stack must match via Type.Equal (which treats Unknown as
// compatible with any type) or a translation error is raised.
type Stack struct {
	frames []Type
}

// NewStack returns an empty compile-time type stack.
func NewStack() *Stack { return &Stack{} }

// Push pushes t onto the stack.
func (s *Stack) Push(t Type) { s.frames = append(s.frames, t) }

// Pop pops and returns the top of the stack, erroring if empty.
func (s *Stack) Pop() (Type, error) {
	if len(s.frames) == 0 {
		return Type{}, cerr.New(cerr.PhaseTranslate, cerr.KindTypeMismatch).
			Detailf("pop from empty compile-time type stack").Build()
	}
	t := s.frames[len(s.frames)-1]
	s.frames = s.frames[:len(s.frames)-1]
	return t, nil
}

// PopExpect pops the top of the stack and verifies it is compatible with
// want (§3.4's equality rule, where Unknown matches anything).
func (s *Stack) PopExpect(want Type) (Type, error) {
	got, err := s.Pop()
	if err != nil {
		return Type{}, err
	}
	if !got.Equal(want) {
		return Type{}, cerr.New(cerr.PhaseTranslate, cerr.KindTypeMismatch).
			Detailf("expected %s on stack, found %s", want.Kind, got.Kind).Build()
	}
	return got, nil
}

// Peek returns the top of the stack without popping it.
func (s *Stack) Peek() (Type, error) {
	if len(s.frames) == 0 {
		return Type{}, cerr.New(cerr.PhaseTranslate, cerr.KindTypeMismatch).
			Detailf("peek on empty compile-time type stack").Build()
	}
	return s.frames[len(s.frames)-1], nil
}

// Len reports the current stack depth.
func (s *Stack) Len() int { return len(s.frames) }

// Snapshot returns a copy of the current stack contents, used by the
// control-flow reshaper to verify that every path through a merge point
// leaves the stack in the same predicted shape (§8: "the compile-time
// type stack depth after translating a block equals the stack-effect
// predicted by Move's bytecode for that block").
func (s *Stack) Snapshot() []Type {
	out := make([]Type, len(s.frames))
	copy(out, s.frames)
	return out
}

// Restore replaces the stack's contents with a prior Snapshot, used when
// the translator must re-enter a block (e.g. a loop header visited from
// multiple predecessors) with a known-good stack shape.
func (s *Stack) Restore(snapshot []Type) {
	s.frames = append(s.frames[:0], snapshot...)
}

// PushUnknown pushes the Unknown placeholder, used for code made
// unreachable by a preceding Abort or Ret (§4.7) so that downstream
// opcodes (which still expect operands per Move's type checker, since
// this compiler trusts that the Move verifier already proved these paths
// dead) have something to pop.
func (s *Stack) PushUnknown() { s.Push(Unknown()) }
