package testutil

import (
	"encoding/binary"
	"sort"
	"strconv"
	"strings"
	"unicode/utf16"
)

const (
	peHeaderOffset   = 0x80
	fileAlignment    = 0x200
	sectionAlignment = 0x1000
	sizeOfHeaders    = 0x400
)

// Well known resource types.
const (
	RTIcon     = 3
	RTString   = 6
	RTRCData   = 10
	RTVersion  = 16
	RTManifest = 24
)

// ResourceID identifies a resource directory entry either by name or by id.
type ResourceID struct {
	Name string
	ID   uint16
}

func (r ResourceID) key() string {
	if r.Name != "" {
		return "0:" + r.Name
	}
	return "1:" + strconv.Itoa(int(r.ID))
}

// SectionSpec describes a section of a synthesized image.
type SectionSpec struct {
	Name string
	Data []byte
	// RawSize overrides the size of raw data in the header. If set to a
	// value different from len(Data), the header is written as is.
	RawSize *uint32
	// VirtualSize defaults to len(Data).
	VirtualSize     uint32
	Characteristics uint32
}

type importSpec struct {
	dll   string
	funcs []string
}

type resourceSpec struct {
	typ  ResourceID
	name ResourceID
	lang uint16
	data []byte
	// broken data entries point outside of the image.
	broken bool
}

// PEBuilder synthesizes minimal, well-formed PE images for tests.
type PEBuilder struct {
	Is64            bool
	Machine         uint16
	TimeDateStamp   uint32
	Subsystem       uint16
	Characteristics uint16
	// EntryPointSection names the section the entry point lies in. The entry
	// point is placed at its start plus EntryPointOffset. If no section with
	// that name exists, the entry point is 0.
	EntryPointSection string
	EntryPointOffset  uint32

	sections  []SectionSpec
	imports   []importSpec
	exportDLL string
	exports   []string
	resources []resourceSpec
}

// NewPEBuilder creates a builder for a 32 bit GUI executable.
func NewPEBuilder() *PEBuilder {
	return &PEBuilder{
		Machine:           0x14c,
		TimeDateStamp:     0x5f5e1000,
		Subsystem:         2,
		Characteristics:   0x0102,
		EntryPointSection: ".text",
	}
}

// AddSection appends a section with the given raw data.
func (b *PEBuilder) AddSection(name string, data []byte) *PEBuilder {
	b.sections = append(b.sections, SectionSpec{
		Name:            name,
		Data:            data,
		Characteristics: 0x60000020,
	})
	return b
}

// AddSectionSpec appends a fully specified section.
func (b *PEBuilder) AddSectionSpec(spec SectionSpec) *PEBuilder {
	b.sections = append(b.sections, spec)
	return b
}

// AddImport adds an imported library. Functions of the form "#123" are
// imported by ordinal.
func (b *PEBuilder) AddImport(dll string, funcs ...string) *PEBuilder {
	b.imports = append(b.imports, importSpec{dll: dll, funcs: funcs})
	return b
}

// SetExports sets the exported names.
func (b *PEBuilder) SetExports(dllName string, names ...string) *PEBuilder {
	b.exportDLL = dllName
	b.exports = names
	return b
}

// AddResource adds a leaf resource.
func (b *PEBuilder) AddResource(typ, name ResourceID, lang uint16, data []byte) *PEBuilder {
	b.resources = append(b.resources, resourceSpec{typ: typ, name: name, lang: lang, data: data})
	return b
}

// AddBrokenResource adds a leaf resource whose data cannot be resolved.
func (b *PEBuilder) AddBrokenResource(typ, name ResourceID, lang uint16) *PEBuilder {
	b.resources = append(b.resources, resourceSpec{typ: typ, name: name, lang: lang, broken: true})
	return b
}

func align(v, a uint32) uint32 {
	return (v + a - 1) / a * a
}

type layoutSection struct {
	spec    SectionSpec
	va      uint32
	rawSize uint32
	rawPtr  uint32
	build   func(va uint32) []byte
}

// Build serializes the image.
func (b *PEBuilder) Build() []byte {
	sections := make([]*layoutSection, 0, len(b.sections)+3)
	for _, spec := range b.sections {
		sections = append(sections, &layoutSection{spec: spec})
	}
	if len(b.imports) > 0 {
		sections = append(sections, &layoutSection{
			spec:  SectionSpec{Name: ".idata", Characteristics: 0xC0000040},
			build: b.buildImports,
		})
	}
	if len(b.exports) > 0 {
		sections = append(sections, &layoutSection{
			spec:  SectionSpec{Name: ".edata", Characteristics: 0x40000040},
			build: b.buildExports,
		})
	}
	if len(b.resources) > 0 {
		sections = append(sections, &layoutSection{
			spec:  SectionSpec{Name: ".rsrc", Characteristics: 0x40000040},
			build: b.buildResources,
		})
	}

	// Generated sections do not change size with their address.
	va := uint32(sectionAlignment)
	rawPtr := uint32(sizeOfHeaders)
	for _, s := range sections {
		if s.build != nil {
			s.spec.Data = s.build(0)
		}
		s.va = va
		s.rawSize = uint32(len(s.spec.Data))
		if s.spec.RawSize != nil {
			s.rawSize = *s.spec.RawSize
		}
		if s.spec.VirtualSize == 0 {
			s.spec.VirtualSize = uint32(len(s.spec.Data))
		}
		if len(s.spec.Data) > 0 {
			s.rawPtr = rawPtr
			rawPtr += align(uint32(len(s.spec.Data)), fileAlignment)
		}
		span := s.spec.VirtualSize
		if uint32(len(s.spec.Data)) > span {
			span = uint32(len(s.spec.Data))
		}
		if span == 0 {
			span = 1
		}
		va = align(va+span, sectionAlignment)
	}
	for _, s := range sections {
		if s.build != nil {
			s.spec.Data = s.build(s.va)
		}
	}
	sizeOfImage := va

	out := make([]byte, rawPtr)
	le := binary.LittleEndian

	copy(out[0:], "MZ")
	le.PutUint32(out[0x3c:], peHeaderOffset)
	copy(out[peHeaderOffset:], "PE\x00\x00")

	fh := peHeaderOffset + 4
	optSize := uint16(224)
	if b.Is64 {
		optSize = 240
	}
	le.PutUint16(out[fh:], b.Machine)
	le.PutUint16(out[fh+2:], uint16(len(sections)))
	le.PutUint32(out[fh+4:], b.TimeDateStamp)
	le.PutUint16(out[fh+16:], optSize)
	le.PutUint16(out[fh+18:], b.Characteristics)

	oh := fh + 20
	var entryPoint uint32
	for _, s := range sections {
		if s.spec.Name == b.EntryPointSection {
			entryPoint = s.va + b.EntryPointOffset
			break
		}
	}

	var dirs int
	if b.Is64 {
		le.PutUint16(out[oh:], 0x20b)
		le.PutUint32(out[oh+16:], entryPoint)
		le.PutUint64(out[oh+24:], 0x140000000)
		le.PutUint32(out[oh+32:], sectionAlignment)
		le.PutUint32(out[oh+36:], fileAlignment)
		le.PutUint16(out[oh+40:], 6)
		le.PutUint16(out[oh+48:], 6)
		le.PutUint32(out[oh+56:], sizeOfImage)
		le.PutUint32(out[oh+60:], sizeOfHeaders)
		le.PutUint16(out[oh+68:], b.Subsystem)
		le.PutUint32(out[oh+108:], 16)
		dirs = oh + 112
	} else {
		le.PutUint16(out[oh:], 0x10b)
		le.PutUint32(out[oh+16:], entryPoint)
		le.PutUint32(out[oh+28:], 0x400000)
		le.PutUint32(out[oh+32:], sectionAlignment)
		le.PutUint32(out[oh+36:], fileAlignment)
		le.PutUint16(out[oh+40:], 6)
		le.PutUint16(out[oh+48:], 6)
		le.PutUint32(out[oh+56:], sizeOfImage)
		le.PutUint32(out[oh+60:], sizeOfHeaders)
		le.PutUint16(out[oh+68:], b.Subsystem)
		le.PutUint32(out[oh+92:], 16)
		dirs = oh + 96
	}

	sh := oh + int(optSize)
	for _, s := range sections {
		switch s.spec.Name {
		case ".edata":
			le.PutUint32(out[dirs+0*8:], s.va)
			le.PutUint32(out[dirs+0*8+4:], uint32(len(s.spec.Data)))
		case ".idata":
			le.PutUint32(out[dirs+1*8:], s.va)
			le.PutUint32(out[dirs+1*8+4:], uint32(len(s.spec.Data)))
		case ".rsrc":
			le.PutUint32(out[dirs+2*8:], s.va)
			le.PutUint32(out[dirs+2*8+4:], uint32(len(s.spec.Data)))
		}

		copy(out[sh:sh+8], s.spec.Name)
		le.PutUint32(out[sh+8:], s.spec.VirtualSize)
		le.PutUint32(out[sh+12:], s.va)
		le.PutUint32(out[sh+16:], s.rawSize)
		le.PutUint32(out[sh+20:], s.rawPtr)
		le.PutUint32(out[sh+36:], s.spec.Characteristics)
		sh += 40

		copy(out[s.rawPtr:], s.spec.Data)
	}

	return out
}

func (b *PEBuilder) thunkSize() uint32 {
	if b.Is64 {
		return 8
	}
	return 4
}

func (b *PEBuilder) buildImports(base uint32) []byte {
	le := binary.LittleEndian
	ts := b.thunkSize()

	descSize := uint32(20 * (len(b.imports) + 1))
	thunksSize := uint32(0)
	for _, imp := range b.imports {
		thunksSize += 2 * ts * uint32(len(imp.funcs)+1)
	}
	namesStart := descSize + thunksSize

	names := make([]byte, 0)
	addName := func(prefix []byte, name string) uint32 {
		off := namesStart + uint32(len(names))
		names = append(names, prefix...)
		names = append(names, name...)
		names = append(names, 0)
		if len(names)%2 != 0 {
			names = append(names, 0)
		}
		return off
	}

	out := make([]byte, namesStart)
	thunkOff := descSize
	for i, imp := range b.imports {
		desc := uint32(20 * i)
		ilt := thunkOff
		iat := ilt + ts*uint32(len(imp.funcs)+1)
		thunkOff = iat + ts*uint32(len(imp.funcs)+1)

		le.PutUint32(out[desc:], base+ilt)
		le.PutUint32(out[desc+12:], base+addName(nil, imp.dll))
		le.PutUint32(out[desc+16:], base+iat)

		for j, fn := range imp.funcs {
			var value uint64
			if strings.HasPrefix(fn, "#") {
				ord, _ := strconv.Atoi(fn[1:])
				value = uint64(ord)
				if b.Is64 {
					value |= 1 << 63
				} else {
					value |= 1 << 31
				}
			} else {
				value = uint64(base + addName([]byte{0, 0}, fn))
			}
			for _, table := range []uint32{ilt, iat} {
				pos := table + ts*uint32(j)
				if b.Is64 {
					le.PutUint64(out[pos:], value)
				} else {
					le.PutUint32(out[pos:], uint32(value))
				}
			}
		}
	}

	return append(out, names...)
}

func (b *PEBuilder) buildExports(base uint32) []byte {
	le := binary.LittleEndian
	n := uint32(len(b.exports))

	functions := uint32(40)
	namePtrs := functions + 4*n
	ordinals := namePtrs + 4*n
	strs := ordinals + 2*n
	if strs%2 != 0 {
		strs++
	}

	out := make([]byte, strs)
	addString := func(s string) uint32 {
		off := uint32(len(out))
		out = append(out, s...)
		out = append(out, 0)
		return off
	}

	dllName := base + addString(b.exportDLL)
	le.PutUint32(out[12:], dllName)
	le.PutUint32(out[16:], 1)
	le.PutUint32(out[20:], n)
	le.PutUint32(out[24:], n)
	le.PutUint32(out[28:], base+functions)
	le.PutUint32(out[32:], base+namePtrs)
	le.PutUint32(out[36:], base+ordinals)
	for i, name := range b.exports {
		le.PutUint32(out[functions+4*uint32(i):], sectionAlignment)
		nameRVA := base + addString(name)
		le.PutUint32(out[namePtrs+4*uint32(i):], nameRVA)
		le.PutUint16(out[ordinals+2*uint32(i):], uint16(i))
	}
	return out
}

type resourceNode struct {
	id       ResourceID
	children []*resourceNode
	leaf     *resourceSpec
	offset   uint32
}

func (n *resourceNode) child(id ResourceID) *resourceNode {
	for _, c := range n.children {
		if c.id.key() == id.key() {
			return c
		}
	}
	c := &resourceNode{id: id}
	n.children = append(n.children, c)
	return c
}

func sortNodes(nodes []*resourceNode) {
	sort.SliceStable(nodes, func(i, j int) bool {
		return nodes[i].id.key() < nodes[j].id.key()
	})
}

func (b *PEBuilder) buildResources(base uint32) []byte {
	le := binary.LittleEndian

	root := &resourceNode{}
	for i := range b.resources {
		r := &b.resources[i]
		lang := root.child(r.typ).child(r.name).child(ResourceID{ID: r.lang})
		lang.leaf = r
	}

	// Directories breadth first, then data entries, then names, then data.
	levels := [][]*resourceNode{{root}}
	for depth := 0; depth < 3; depth++ {
		next := make([]*resourceNode, 0)
		for _, n := range levels[depth] {
			sortNodes(n.children)
			next = append(next, n.children...)
		}
		levels = append(levels, next)
	}

	off := uint32(0)
	for depth := 0; depth < 3; depth++ {
		for _, n := range levels[depth] {
			n.offset = off
			off += 16 + 8*uint32(len(n.children))
		}
	}
	for _, leaf := range levels[3] {
		leaf.offset = off
		off += 16
	}

	namesStart := off
	nameOffsets := make(map[string]uint32)
	nameBytes := make([]byte, 0)
	for depth := 1; depth < 3; depth++ {
		for _, n := range levels[depth] {
			if n.id.Name == "" {
				continue
			}
			if _, ok := nameOffsets[n.id.Name]; ok {
				continue
			}
			nameOffsets[n.id.Name] = off + uint32(len(nameBytes))
			units := utf16.Encode([]rune(n.id.Name))
			entry := make([]byte, 2+2*len(units))
			le.PutUint16(entry, uint16(len(units)))
			for i, u := range units {
				le.PutUint16(entry[2+2*i:], u)
			}
			nameBytes = append(nameBytes, entry...)
		}
	}
	off += uint32(len(nameBytes))
	off = align(off, 4)

	out := make([]byte, off)
	copy(out[namesStart:], nameBytes)

	for depth := 0; depth < 3; depth++ {
		for _, n := range levels[depth] {
			named, ids := 0, 0
			for _, c := range n.children {
				if c.id.Name != "" {
					named++
				} else {
					ids++
				}
			}
			le.PutUint16(out[n.offset+12:], uint16(named))
			le.PutUint16(out[n.offset+14:], uint16(ids))
			for i, c := range n.children {
				e := n.offset + 16 + 8*uint32(i)
				if c.id.Name != "" {
					le.PutUint32(out[e:], 0x80000000|nameOffsets[c.id.Name])
				} else {
					le.PutUint32(out[e:], uint32(c.id.ID))
				}
				if depth < 2 {
					le.PutUint32(out[e+4:], 0x80000000|c.offset)
				} else {
					le.PutUint32(out[e+4:], c.offset)
				}
			}
		}
	}

	for _, leaf := range levels[3] {
		if leaf.leaf.broken {
			le.PutUint32(out[leaf.offset:], 0x7ffffff0)
			le.PutUint32(out[leaf.offset+4:], 0x100)
			continue
		}
		dataOff := uint32(len(out))
		out = append(out, leaf.leaf.data...)
		for len(out)%4 != 0 {
			out = append(out, 0)
		}
		le.PutUint32(out[leaf.offset:], base+dataOff)
		le.PutUint32(out[leaf.offset+4:], uint32(len(leaf.leaf.data)))
	}

	return out
}
