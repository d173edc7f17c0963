package types

import (
	"fmt"

	"github.com/rather-labs/move-bytecode-to-wasm/internal/bytecode"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/cerr"
)

// Context carries the module-level tables the rest of the compiler
// depends on (§2): the set of modules being compiled, resolved
// struct/enum caches, and the generic-instance interning tables shared
// by both the type model and the function table (§3.5, §4.7).
type Context struct {
	Modules map[bytecode.ModuleID]*bytecode.Module

	structs map[structKey]*Struct
	enums   map[enumKey]*Enum

	genericStructs map[string]*Struct
	genericEnums   map[string]*Enum
}

type structKey struct {
	module bytecode.ModuleID
	index  int
}

type enumKey struct {
	module bytecode.ModuleID
	index  int
}

// NewContext builds a Context over the given set of compiled modules.
func NewContext(modules []*bytecode.Module) *Context {
	c := &Context{
		Modules:        make(map[bytecode.ModuleID]*bytecode.Module, len(modules)),
		structs:        make(map[structKey]*Struct),
		enums:          make(map[enumKey]*Enum),
		genericStructs: make(map[string]*Struct),
		genericEnums:   make(map[string]*Enum),
	}
	for _, m := range modules {
		c.Modules[m.ID] = m
	}
	return c
}

// ResolveStruct resolves a non-generic struct reference to its
// intermediate representation, caching the result.
func (c *Context) ResolveStruct(moduleID bytecode.ModuleID, index int) (*Struct, error) {
	key := structKey{moduleID, index}
	if s, ok := c.structs[key]; ok {
		return s, nil
	}
	mod, ok := c.Modules[moduleID]
	if !ok {
		return nil, cerr.New(cerr.PhaseContext, cerr.KindUnknownHandle).
			Detailf("unknown module %x", moduleID).Build()
	}
	if index < 0 || index >= len(mod.Structs) {
		return nil, cerr.New(cerr.PhaseContext, cerr.KindMalformedIndex).
			Detailf("struct index %d out of range in module %x", index, moduleID).Build()
	}
	def := &mod.Structs[index]
	fields := make([]Field, len(def.Fields))
	for i, fd := range def.Fields {
		t, err := c.Resolve(fd.Type)
		if err != nil {
			return nil, err
		}
		if t.IsReference() {
			return nil, cerr.New(cerr.PhaseTypeModel, cerr.KindUnsupportedType).
				Detailf("struct %s field %s: references never appear inside struct fields", def.Name, fd.Name).Build()
		}
		fields[i] = Field{Name: fd.Name, Type: t}
	}
	s := &Struct{
		ModuleID:       moduleID,
		DefIndex:       index,
		Name:           def.Name,
		Fields:         fields,
		IsObject:       def.IsObject(),
		Tag:            def.Tag,
		VMTag:          def.VMTag,
		TypeParameters: def.TypeParameters,
		HeapSize:       len(fields) * 4,
	}
	c.structs[key] = s
	return s, nil
}

// ResolveEnum resolves a non-generic enum reference.
func (c *Context) ResolveEnum(moduleID bytecode.ModuleID, index int) (*Enum, error) {
	key := enumKey{moduleID, index}
	if e, ok := c.enums[key]; ok {
		return e, nil
	}
	mod, ok := c.Modules[moduleID]
	if !ok {
		return nil, cerr.New(cerr.PhaseContext, cerr.KindUnknownHandle).
			Detailf("unknown module %x", moduleID).Build()
	}
	if index < 0 || index >= len(mod.Enums) {
		return nil, cerr.New(cerr.PhaseContext, cerr.KindMalformedIndex).
			Detailf("enum index %d out of range in module %x", index, moduleID).Build()
	}
	def := &mod.Enums[index]
	variants := make([]Variant, len(def.Variants))
	for i, vd := range def.Variants {
		fields := make([]Type, len(vd.Fields))
		for j, ft := range vd.Fields {
			t, err := c.Resolve(ft)
			if err != nil {
				return nil, err
			}
			fields[j] = t
		}
		variants[i] = Variant{Name: vd.Name, Fields: fields}
	}
	e := &Enum{ModuleID: moduleID, DefIndex: index, Name: def.Name, Variants: variants}
	c.enums[key] = e
	return e, nil
}

// InternGenericStruct resolves and caches a monomorphized struct
// instantiation by (module, index, typeArgs) (§3.5): duplicate
// instantiation requests collapse onto the same *Struct.
func (c *Context) InternGenericStruct(moduleID bytecode.ModuleID, index int, typeArgs []Type) (*Struct, error) {
	key := instanceKey(moduleID, index, typeArgs)
	if s, ok := c.genericStructs[key]; ok {
		return s, nil
	}
	base, err := c.ResolveStruct(moduleID, index)
	if err != nil {
		return nil, err
	}
	inst := base.Instantiate(typeArgs)
	c.genericStructs[key] = inst
	return inst, nil
}

// InternGenericEnum is InternGenericStruct for enums.
func (c *Context) InternGenericEnum(moduleID bytecode.ModuleID, index int, typeArgs []Type) (*Enum, error) {
	key := instanceKey(moduleID, index, typeArgs)
	if e, ok := c.genericEnums[key]; ok {
		return e, nil
	}
	base, err := c.ResolveEnum(moduleID, index)
	if err != nil {
		return nil, err
	}
	inst := base.Instantiate(typeArgs)
	c.genericEnums[key] = inst
	return inst, nil
}

func instanceKey(moduleID bytecode.ModuleID, index int, typeArgs []Type) string {
	s := fmt.Sprintf("%x:%d", moduleID, index)
	for _, a := range typeArgs {
		s += ":" + typeKey(a)
	}
	return s
}

func typeKey(t Type) string {
	switch t.Kind {
	case KindVector:
		return "vec<" + typeKey(*t.Elem) + ">"
	case KindRef:
		return "ref<" + typeKey(*t.Elem) + ">"
	case KindMutRef:
		return "mutref<" + typeKey(*t.Elem) + ">"
	case KindStruct, KindEnum:
		return fmt.Sprintf("%s(%x,%d)", t.Kind, t.ModuleID, t.DefIndex)
	case KindGenericStructInstance, KindGenericEnumInstance:
		s := fmt.Sprintf("%s(%x,%d)", t.Kind, t.ModuleID, t.DefIndex)
		for _, a := range t.TypeArgs {
			s += "," + typeKey(a)
		}
		return s
	case KindTypeParameter:
		return fmt.Sprintf("tp%d", t.ParamIndex)
	default:
		return t.Kind.String()
	}
}

// Resolve converts a raw bytecode.SignatureToken into an intermediate
// Type, recursively resolving struct/enum definition indices and
// descending into type-argument lists.
func (c *Context) Resolve(tok bytecode.SignatureToken) (Type, error) {
	switch tok.Kind {
	case bytecode.SigBool:
		return Bool(), nil
	case bytecode.SigU8:
		return U8(), nil
	case bytecode.SigU16:
		return U16(), nil
	case bytecode.SigU32:
		return U32(), nil
	case bytecode.SigU64:
		return U64(), nil
	case bytecode.SigU128:
		return U128(), nil
	case bytecode.SigU256:
		return U256(), nil
	case bytecode.SigAddress:
		return Address(), nil
	case bytecode.SigSigner:
		return Signer(), nil
	case bytecode.SigTypeParameter:
		return TypeParameter(tok.ParamIndex), nil
	case bytecode.SigVector:
		inner, err := c.Resolve(*tok.Inner)
		if err != nil {
			return Type{}, err
		}
		return Vector(inner), nil
	case bytecode.SigReference:
		inner, err := c.Resolve(*tok.Inner)
		if err != nil {
			return Type{}, err
		}
		return Ref(inner), nil
	case bytecode.SigMutableReference:
		inner, err := c.Resolve(*tok.Inner)
		if err != nil {
			return Type{}, err
		}
		return MutRef(inner), nil
	case bytecode.SigStruct:
		s, err := c.ResolveStruct(tok.DefModule, tok.DefIndex)
		if err != nil {
			return Type{}, err
		}
		return Type{Kind: KindStruct, ModuleID: tok.DefModule, DefIndex: tok.DefIndex, VMTag: s.VMTag}, nil
	case bytecode.SigStructInstantiation:
		args := make([]Type, len(tok.TypeArgs))
		for i, a := range tok.TypeArgs {
			t, err := c.Resolve(a)
			if err != nil {
				return Type{}, err
			}
			args[i] = t
		}
		s, err := c.ResolveStruct(tok.DefModule, tok.DefIndex)
		if err != nil {
			return Type{}, err
		}
		return Type{Kind: KindGenericStructInstance, ModuleID: tok.DefModule, DefIndex: tok.DefIndex, VMTag: s.VMTag, TypeArgs: args}, nil
	case bytecode.SigEnum:
		return Type{Kind: KindEnum, ModuleID: tok.DefModule, DefIndex: tok.DefIndex}, nil
	case bytecode.SigEnumInstantiation:
		args := make([]Type, len(tok.TypeArgs))
		for i, a := range tok.TypeArgs {
			t, err := c.Resolve(a)
			if err != nil {
				return Type{}, err
			}
			args[i] = t
		}
		return Type{Kind: KindGenericEnumInstance, ModuleID: tok.DefModule, DefIndex: tok.DefIndex, TypeArgs: args}, nil
	default:
		return Type{}, cerr.New(cerr.PhaseTypeModel, cerr.KindUnsupportedType).
			Detailf("unknown signature token kind %q", tok.Kind).Build()
	}
}
