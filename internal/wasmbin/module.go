package wasmbin

import (
	"bytes"

	"github.com/rather-labs/move-bytecode-to-wasm/internal/leb128"
)

// SectionID identifies a WASM module section, in the fixed order the
// binary format requires them to appear (when present).
type SectionID = byte

const (
	SectionIDCustom   SectionID = 0
	SectionIDType     SectionID = 1
	SectionIDImport   SectionID = 2
	SectionIDFunction SectionID = 3
	SectionIDTable    SectionID = 4
	SectionIDMemory   SectionID = 5
	SectionIDGlobal   SectionID = 6
	SectionIDExport   SectionID = 7
	SectionIDStart    SectionID = 8
	SectionIDElement  SectionID = 9
	SectionIDCode     SectionID = 10
	SectionIDData     SectionID = 11
)

var magic = []byte{0x00, 0x61, 0x73, 0x6d}
var version = []byte{0x01, 0x00, 0x00, 0x00}

// Module is the in-memory representation of a WASM module assembled by
// the module assembler (§4.9): one parallel slice per section, mirroring
// wazero's internal/wasm.Module shape.
type Module struct {
	TypeSection     []*FunctionType
	ImportSection   []*Import
	FunctionSection []uint32 // indices into TypeSection, one per CodeSection entry
	MemorySection   *Memory
	GlobalSection   []*Global
	ExportSection   []*Export
	CodeSection     []*Func
	DataSection     []*Data
}

// AddType interns t into the type section, returning its index. Reused
// across functions with identical signatures, since the type section
// dedupes by structural equality the same way wazero's binary encoder
// does for compactness.
func (m *Module) AddType(t *FunctionType) uint32 {
	for i, existing := range m.TypeSection {
		if existing.Equal(t) {
			return uint32(i)
		}
	}
	m.TypeSection = append(m.TypeSection, t)
	return uint32(len(m.TypeSection) - 1)
}

// Encode serializes the module to the WASM binary format: magic, version,
// then each non-empty section in spec order.
func (m *Module) Encode() []byte {
	buf := bytes.Buffer{}
	buf.Write(magic)
	buf.Write(version)

	if len(m.TypeSection) > 0 {
		encodeSection(&buf, SectionIDType, encodeTypeSection(m.TypeSection))
	}
	if len(m.ImportSection) > 0 {
		encodeSection(&buf, SectionIDImport, encodeImportSection(m.ImportSection))
	}
	if len(m.FunctionSection) > 0 {
		encodeSection(&buf, SectionIDFunction, encodeFunctionSection(m.FunctionSection))
	}
	if m.MemorySection != nil {
		encodeSection(&buf, SectionIDMemory, encodeMemorySection(m.MemorySection))
	}
	if len(m.GlobalSection) > 0 {
		encodeSection(&buf, SectionIDGlobal, encodeGlobalSection(m.GlobalSection))
	}
	if len(m.ExportSection) > 0 {
		encodeSection(&buf, SectionIDExport, encodeExportSection(m.ExportSection))
	}
	if len(m.CodeSection) > 0 {
		encodeSection(&buf, SectionIDCode, encodeCodeSection(m.CodeSection))
	}
	if len(m.DataSection) > 0 {
		encodeSection(&buf, SectionIDData, encodeDataSection(m.DataSection))
	}
	return buf.Bytes()
}

func encodeSection(buf *bytes.Buffer, id SectionID, body []byte) {
	buf.WriteByte(id)
	buf.Write(leb128.EncodeUint32(uint32(len(body))))
	buf.Write(body)
}

func encodeVectorLen(buf *bytes.Buffer, n int) {
	buf.Write(leb128.EncodeUint32(uint32(n)))
}

func encodeName(buf *bytes.Buffer, name string) {
	encodeVectorLen(buf, len(name))
	buf.WriteString(name)
}

func encodeLimits(buf *bytes.Buffer, min, max uint32, hasMax bool) {
	if hasMax {
		buf.WriteByte(0x01)
		buf.Write(leb128.EncodeUint32(min))
		buf.Write(leb128.EncodeUint32(max))
	} else {
		buf.WriteByte(0x00)
		buf.Write(leb128.EncodeUint32(min))
	}
}

func encodeTypeSection(types []*FunctionType) []byte {
	buf := bytes.Buffer{}
	encodeVectorLen(&buf, len(types))
	for _, t := range types {
		buf.WriteByte(0x60)
		encodeVectorLen(&buf, len(t.Params))
		buf.Write(t.Params)
		encodeVectorLen(&buf, len(t.Results))
		buf.Write(t.Results)
	}
	return buf.Bytes()
}

func encodeImportSection(imports []*Import) []byte {
	buf := bytes.Buffer{}
	encodeVectorLen(&buf, len(imports))
	for _, im := range imports {
		encodeName(&buf, im.Module)
		encodeName(&buf, im.Name)
		buf.WriteByte(im.Kind)
		switch im.Kind {
		case ExternTypeFunc:
			buf.Write(leb128.EncodeUint32(im.DescFunc))
		default:
			panic("wasmbin: only function imports are supported (vm_hooks are all functions)")
		}
	}
	return buf.Bytes()
}

func encodeFunctionSection(typeIdx []uint32) []byte {
	buf := bytes.Buffer{}
	encodeVectorLen(&buf, len(typeIdx))
	for _, i := range typeIdx {
		buf.Write(leb128.EncodeUint32(i))
	}
	return buf.Bytes()
}

func encodeMemorySection(mem *Memory) []byte {
	buf := bytes.Buffer{}
	encodeVectorLen(&buf, 1)
	encodeLimits(&buf, mem.Min, mem.Max, mem.HasMax)
	return buf.Bytes()
}

func encodeGlobalSection(globals []*Global) []byte {
	buf := bytes.Buffer{}
	encodeVectorLen(&buf, len(globals))
	for _, g := range globals {
		buf.WriteByte(g.Type)
		if g.Mutable {
			buf.WriteByte(0x01)
		} else {
			buf.WriteByte(0x00)
		}
		buf.Write(g.Init)
	}
	return buf.Bytes()
}

func encodeExportSection(exports []*Export) []byte {
	buf := bytes.Buffer{}
	encodeVectorLen(&buf, len(exports))
	for _, e := range exports {
		encodeName(&buf, e.Name)
		buf.WriteByte(e.Kind)
		buf.Write(leb128.EncodeUint32(e.Index))
	}
	return buf.Bytes()
}

func encodeCodeSection(funcs []*Func) []byte {
	buf := bytes.Buffer{}
	encodeVectorLen(&buf, len(funcs))
	for _, f := range funcs {
		body := encodeFuncBody(f)
		buf.Write(leb128.EncodeUint32(uint32(len(body))))
		buf.Write(body)
	}
	return buf.Bytes()
}

func encodeFuncBody(f *Func) []byte {
	buf := bytes.Buffer{}
	encodeVectorLen(&buf, len(f.Locals))
	for _, l := range f.Locals {
		buf.Write(leb128.EncodeUint32(l.Count))
		buf.WriteByte(l.Type)
	}
	buf.Write(f.Body)
	return buf.Bytes()
}

func encodeDataSection(segments []*Data) []byte {
	buf := bytes.Buffer{}
	encodeVectorLen(&buf, len(segments))
	for _, d := range segments {
		buf.WriteByte(0x00) // active segment, memory index 0
		buf.WriteByte(OpcodeI32Const)
		buf.Write(leb128.EncodeInt32(int32(d.Offset)))
		buf.WriteByte(OpcodeEnd)
		encodeVectorLen(&buf, len(d.Bytes))
		buf.Write(d.Bytes)
	}
	return buf.Bytes()
}
