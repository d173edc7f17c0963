package bytecode

// Op is a Move bytecode opcode mnemonic. This is not an exhaustive
// reproduction of every Move instruction — only the ones spec.md §4.7
// names as requiring translation.
type Op string

const (
	OpNop  Op = "Nop"
	OpPop  Op = "Pop"
	OpRet  Op = "Ret"
	OpAbort Op = "Abort"

	OpLdConst Op = "LdConst"
	OpLdTrue  Op = "LdTrue"
	OpLdFalse Op = "LdFalse"
	OpLdU8    Op = "LdU8"
	OpLdU16   Op = "LdU16"
	OpLdU32   Op = "LdU32"
	OpLdU64   Op = "LdU64"
	OpLdU128  Op = "LdU128"
	OpLdU256  Op = "LdU256"

	OpMoveLoc Op = "MoveLoc"
	OpCopyLoc Op = "CopyLoc"
	OpStLoc   Op = "StLoc"

	OpCall        Op = "Call"
	OpCallGeneric Op = "CallGeneric"

	OpPack          Op = "Pack"
	OpUnpack        Op = "Unpack"
	OpPackGeneric   Op = "PackGeneric"
	OpUnpackGeneric Op = "UnpackGeneric"
	OpPackVariant   Op = "PackVariant"
	OpUnpackVariant Op = "UnpackVariant"
	OpVariantSwitch Op = "VariantSwitch"

	OpBrTrue  Op = "BrTrue"
	OpBrFalse Op = "BrFalse"
	OpBranch  Op = "Branch"

	OpBorrowLoc    Op = "BorrowLoc"
	OpBorrowField  Op = "BorrowField"
	OpBorrowGlobal Op = "BorrowGlobal"
	OpReadRef      Op = "ReadRef"
	OpWriteRef     Op = "WriteRef"
	OpFreezeRef    Op = "FreezeRef"

	OpAdd    Op = "Add"
	OpSub    Op = "Sub"
	OpMul    Op = "Mul"
	OpDiv    Op = "Div"
	OpMod    Op = "Mod"
	OpBitOr  Op = "BitOr"
	OpBitAnd Op = "BitAnd"
	OpXor    Op = "Xor"
	OpShl    Op = "Shl"
	OpShr    Op = "Shr"
	OpLt     Op = "Lt"
	OpGt     Op = "Gt"
	OpLe     Op = "Le"
	OpGe     Op = "Ge"
	OpEq     Op = "Eq"
	OpNeq    Op = "Neq"
	OpNot    Op = "Not"
	OpOr     Op = "Or"
	OpAnd    Op = "And"

	OpCastU8   Op = "CastU8"
	OpCastU16  Op = "CastU16"
	OpCastU32  Op = "CastU32"
	OpCastU64  Op = "CastU64"
	OpCastU128 Op = "CastU128"
	OpCastU256 Op = "CastU256"

	OpVecPack      Op = "VecPack"
	OpVecUnpack    Op = "VecUnpack"
	OpVecLen       Op = "VecLen"
	OpVecImmBorrow Op = "VecImmBorrow"
	OpVecMutBorrow Op = "VecMutBorrow"
	OpVecPushBack  Op = "VecPushBack"
	OpVecPopBack   Op = "VecPopBack"
	OpVecSwap      Op = "VecSwap"
)

// Instruction is one Move bytecode instruction plus its operands. Not
// every field is meaningful for every Op; the translator (internal/translate)
// reads only the fields its Op cares about.
type Instruction struct {
	Op Op

	LocalIndex   int // MoveLoc, CopyLoc, StLoc, BorrowLoc
	ConstIndex   int // LdConst
	ImmU64       uint64 // LdU8..LdU64 (narrowed by the translator)
	ImmBytes     []byte // LdU128, LdU256 (little-endian, 16/32 bytes)

	FunctionIndex int              // Call, CallGeneric
	TypeArgs      []SignatureToken // CallGeneric, PackGeneric, UnpackGeneric

	StructIndex  int // Pack, Unpack, PackGeneric, UnpackGeneric, BorrowGlobal
	EnumIndex    int // PackVariant, UnpackVariant, VariantSwitch
	VariantIndex int // PackVariant, UnpackVariant
	FieldIndex   int // BorrowField

	Offset int // BrTrue, BrFalse, Branch, VariantSwitch target base
	Targets []int // VariantSwitch: one target per variant
}
