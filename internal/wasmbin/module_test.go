package wasmbin

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestModuleEncodeEmpty(t *testing.T) {
	m := &Module{}
	require.Equal(t, append(append([]byte{}, magic...), version...), m.Encode())
}

func TestModuleEncodeTypeSection(t *testing.T) {
	i32 := ValueTypeI32
	m := &Module{
		TypeSection: []*FunctionType{
			{},
			{Params: []ValueType{i32, i32}, Results: []ValueType{i32}},
		},
	}
	got := m.Encode()
	want := append(append([]byte{}, magic...), version...)
	want = append(want,
		SectionIDType, 0x0a, // section length
		0x02,             // 2 types
		0x60, 0x00, 0x00, // () -> ()
		0x60, 0x02, i32, i32, 0x01, i32, // (i32,i32) -> i32
	)
	require.Equal(t, want, got)
}

func TestModuleAddTypeDedupes(t *testing.T) {
	m := &Module{}
	a := m.AddType(&FunctionType{Params: []ValueType{ValueTypeI32}})
	b := m.AddType(&FunctionType{Params: []ValueType{ValueTypeI32}})
	require.Equal(t, a, b)
	require.Len(t, m.TypeSection, 1)
}

func TestModuleEncodeImportAndExport(t *testing.T) {
	m := &Module{
		TypeSection:   []*FunctionType{{Params: []ValueType{ValueTypeI32}}},
		ImportSection: []*Import{{Module: "vm_hooks", Name: "read_args", Kind: ExternTypeFunc, DescFunc: 0}},
		ExportSection: []*Export{{Name: "memory", Kind: ExternTypeMemory, Index: 0}},
	}
	got := m.Encode()
	require.True(t, len(got) > len(magic)+len(version))
}

func TestEmitterSimpleFunction(t *testing.T) {
	e := NewEmitter()
	e.LocalGet(0).LocalGet(1).I32Add().End()
	require.Equal(t, []byte{OpcodeLocalGet, 0, OpcodeLocalGet, 1, OpcodeI32Add, OpcodeEnd}, e.Bytes())
}

func TestEmitterBlockTypeByte(t *testing.T) {
	require.Equal(t, byte(0x40), BlockType{Empty: true}.Byte())
	require.Equal(t, ValueTypeI32, BlockType{Result: ValueTypeI32}.Byte())
}

func TestEncodeDataSection(t *testing.T) {
	m := &Module{DataSection: []*Data{{Offset: 0, Bytes: []byte{1, 2, 3}}}}
	got := m.Encode()
	require.Contains(t, string(got), string([]byte{1, 2, 3}))
}
