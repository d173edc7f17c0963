// Package cerr provides the compile-time structured error type used across
// the compiler (§7): a Phase/Kind tagged error carrying a source span (the
// module id and bytecode offset where the failure was detected), built with
// a fluent Builder. The shape follows wippyai-wasm-runtime's errors package
// (Phase/Kind/Builder, Error/Unwrap/Is), adapted from a WIT-marshalling
// vocabulary to a Move-bytecode-compilation one.
package cerr

import (
	"fmt"
	"strings"
)

// Phase identifies the pipeline stage (§2) in which an error was raised.
type Phase string

const (
	PhaseTypeModel   Phase = "type_model"   // §4.1 intermediate type construction
	PhaseContext     Phase = "context"      // §3.3 module table resolution
	PhaseFlow        Phase = "flow"         // §4.6 control-flow reshaping
	PhaseTranslate   Phase = "translate"    // §4.7 bytecode translation
	PhaseABI         Phase = "abi"          // §4.4 ABI codec
	PhaseStorage     Phase = "storage"      // §4.5 storage codec
	PhaseConstructor Phase = "constructor"  // §4.8 constructor gating
	PhaseLinking     Phase = "linking"      // §4.3 runtime function linking
	PhaseNative      Phase = "native"       // native function lowering
	PhaseAssemble    Phase = "assemble"     // §4.9 module assembly/validation
	PhaseLoad        Phase = "load"         // bytecode package JSON loading
)

// Kind categorizes the error within its phase.
type Kind string

const (
	KindMalformedIndex    Kind = "malformed_index"
	KindUnsupportedType   Kind = "unsupported_type"
	KindTypeMismatch      Kind = "type_stack_mismatch"
	KindUnknownHandle     Kind = "unknown_handle"
	KindUnresolvedGeneric Kind = "unresolved_generic"
	KindInvalidControlFlow Kind = "invalid_control_flow"
	KindDynamicTypeInStorage Kind = "dynamic_type_in_fixed_slot"
	KindMissingAttribute  Kind = "missing_attribute"
	KindDuplicateHelper   Kind = "duplicate_helper"
	KindValidation        Kind = "wasm_validation"
	KindIO                Kind = "io"
)

// Span locates an error in the input bytecode: the module that was being
// compiled and, where known, the function and instruction offset.
type Span struct {
	ModuleID   [32]byte
	Function   string
	Offset     uint32
	HasOffset  bool
}

func (s Span) String() string {
	if s.Function == "" {
		return fmt.Sprintf("module %x", s.ModuleID)
	}
	if s.HasOffset {
		return fmt.Sprintf("module %x, function %s@%d", s.ModuleID, s.Function, s.Offset)
	}
	return fmt.Sprintf("module %x, function %s", s.ModuleID, s.Function)
}

// Error is the structured compile-time error type returned by every
// fallible compiler operation.
type Error struct {
	Phase  Phase
	Kind   Kind
	Span   Span
	Detail string
	Cause  error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))
	b.WriteString(" at ")
	b.WriteString(e.Span.String())
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Cause }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Phase == t.Phase && e.Kind == t.Kind
}

// Builder constructs an Error fluently.
type Builder struct {
	err Error
}

// New starts a Builder for the given phase/kind.
func New(phase Phase, kind Kind) *Builder {
	return &Builder{err: Error{Phase: phase, Kind: kind}}
}

func (b *Builder) At(span Span) *Builder {
	b.err.Span = span
	return b
}

func (b *Builder) Detailf(format string, args ...any) *Builder {
	b.err.Detail = fmt.Sprintf(format, args...)
	return b
}

func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

func (b *Builder) Build() *Error {
	return &b.err
}
