package peinfo

import (
	"debug/pe"
	"encoding/binary"
	"fmt"
	"unicode/utf16"

	"github.com/sirupsen/logrus"
)

const (
	maxImportDescriptors = 0x1000
	maxImportsPerLibrary = 0x1000
	maxExports           = 0x1000
	maxNameLength        = 0x200

	importDescriptorSize = 20
	exportDirectorySize  = 40

	maxResourceEntries = 0x1000
	maxResourceLeaves  = 0x4000
	resourceDirSize    = 16
	resourceEntrySize  = 8
	resourceDataSize   = 16
)

func (img *image) imports() ImportTable {
	dir := img.directory(pe.IMAGE_DIRECTORY_ENTRY_IMPORT)
	if dir.VirtualAddress == 0 {
		return ImportTable{}
	}

	table := make(ImportTable, 0)
	for i := uint32(0); i < maxImportDescriptors; i++ {
		desc, ok := img.bytesAt(dir.VirtualAddress+i*importDescriptorSize, importDescriptorSize)
		if !ok {
			logrus.WithField("descriptor", i).Debug("Import directory truncated.")
			break
		}
		if isZero(desc) {
			break
		}
		originalFirstThunk := binary.LittleEndian.Uint32(desc[0:])
		nameRVA := binary.LittleEndian.Uint32(desc[12:])
		firstThunk := binary.LittleEndian.Uint32(desc[16:])

		library, ok := img.cstring(nameRVA, maxNameLength)
		if !ok || library == "" {
			logrus.WithField("descriptor", i).Debug("Skipping import descriptor with invalid library name.")
			continue
		}

		symbols := img.thunks(originalFirstThunk)
		if len(symbols) == 0 && firstThunk != originalFirstThunk {
			symbols = img.thunks(firstThunk)
		}

		imp := &Import{
			Library:   library,
			Functions: make([]string, len(symbols)),
			symbols:   symbols,
		}
		for j, sym := range symbols {
			if sym.byOrdinal {
				imp.Functions[j] = fmt.Sprintf("ord(%d)", sym.ordinal)
			} else {
				imp.Functions[j] = sym.name
			}
		}
		table = append(table, imp)
	}
	return table
}

func isZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

func (img *image) thunks(rva uint32) []importedSymbol {
	if rva == 0 {
		return nil
	}
	size := uint32(4)
	if img.is64 {
		size = 8
	}

	symbols := make([]importedSymbol, 0)
	for j := uint32(0); j < maxImportsPerLibrary; j++ {
		var (
			value     uint64
			byOrdinal bool
			ok        bool
		)
		if img.is64 {
			value, ok = img.uint64At(rva + j*size)
			byOrdinal = value&(1<<63) != 0
		} else {
			var v uint32
			v, ok = img.uint32At(rva + j*size)
			value = uint64(v)
			byOrdinal = v&(1<<31) != 0
		}
		if !ok || value == 0 {
			break
		}

		if byOrdinal {
			symbols = append(symbols, importedSymbol{ordinal: uint16(value & 0xffff), byOrdinal: true})
			continue
		}
		name, ok := img.cstring(uint32(value&0x7fffffff)+2, maxNameLength)
		if !ok {
			logrus.WithField("thunk", j).Debug("Skipping import with invalid hint/name entry.")
			continue
		}
		symbols = append(symbols, importedSymbol{name: name})
	}
	return symbols
}

func (img *image) exports() []string {
	dir := img.directory(pe.IMAGE_DIRECTORY_ENTRY_EXPORT)
	exports := make([]string, 0)
	if dir.VirtualAddress == 0 {
		return exports
	}
	if _, ok := img.bytesAt(dir.VirtualAddress, exportDirectorySize); !ok {
		return exports
	}
	numNames, _ := img.uint32At(dir.VirtualAddress + 24)
	addrNames, _ := img.uint32At(dir.VirtualAddress + 32)
	if numNames > maxExports {
		numNames = maxExports
	}

	for i := uint32(0); i < numNames; i++ {
		nameRVA, ok := img.uint32At(addrNames + 4*i)
		if !ok {
			break
		}
		name, ok := img.cstring(nameRVA, maxNameLength)
		if !ok {
			continue
		}
		exports = append(exports, name)
	}
	return exports
}

type resourceEntry struct {
	id     uint16
	name   string
	named  bool
	isDir  bool
	offset uint32
}

func (e *resourceEntry) label() string {
	if e.named {
		return e.name
	}
	return fmt.Sprint(e.id)
}

type resourceWalker struct {
	img     *image
	base    uint32
	visited map[uint32]bool
	sniff   func([]byte) string
	leaves  int
}

func (img *image) resources(sniff func([]byte) string) []*Resource {
	dir := img.directory(pe.IMAGE_DIRECTORY_ENTRY_RESOURCE)
	resources := make([]*Resource, 0)
	if dir.VirtualAddress == 0 {
		return resources
	}

	w := &resourceWalker{
		img:     img,
		base:    dir.VirtualAddress,
		visited: make(map[uint32]bool),
		sniff:   sniff,
	}
	types, ok := w.readDir(0)
	if !ok {
		logrus.Debug("Could not read resource root directory.")
		return resources
	}

	for _, typ := range types {
		typeName := typ.name
		if !typ.named {
			typeName = ResourceTypeName(typ.id)
		}
		if !typ.isDir {
			resources = append(resources, &Resource{Type: typeName})
			continue
		}
		names, ok := w.readDir(typ.offset)
		if !ok {
			resources = append(resources, &Resource{Type: typeName})
			continue
		}
		for _, name := range names {
			if !name.isDir {
				resources = append(resources, w.leaf(typeName, name.label(), 0, name.offset))
				continue
			}
			langs, ok := w.readDir(name.offset)
			if !ok {
				resources = append(resources, &Resource{Type: typeName, Name: name.label()})
				continue
			}
			for _, lang := range langs {
				if lang.isDir {
					logrus.WithField("type", typeName).Debug("Resource tree deeper than three levels.")
					resources = append(resources, &Resource{Type: typeName, Name: name.label()})
					continue
				}
				resources = append(resources, w.leaf(typeName, name.label(), lang.id, lang.offset))
			}
		}
	}
	return resources
}

func (w *resourceWalker) readDir(offset uint32) ([]*resourceEntry, bool) {
	if w.visited[offset] {
		logrus.WithField("offset", offset).Debug("Resource directory loop detected.")
		return nil, false
	}
	w.visited[offset] = true

	rva := w.base + offset
	numNamed, ok1 := w.img.uint16At(rva + 12)
	numIDs, ok2 := w.img.uint16At(rva + 14)
	if !ok1 || !ok2 {
		return nil, false
	}
	n := uint32(numNamed) + uint32(numIDs)
	if n > maxResourceEntries {
		n = maxResourceEntries
	}

	entries := make([]*resourceEntry, 0, n)
	for i := uint32(0); i < n; i++ {
		entryRVA := rva + resourceDirSize + i*resourceEntrySize
		nameField, ok1 := w.img.uint32At(entryRVA)
		dataField, ok2 := w.img.uint32At(entryRVA + 4)
		if !ok1 || !ok2 {
			break
		}
		e := &resourceEntry{
			isDir:  dataField&0x80000000 != 0,
			offset: dataField & 0x7fffffff,
		}
		if nameField&0x80000000 != 0 {
			name, ok := w.readName(nameField & 0x7fffffff)
			if !ok {
				continue
			}
			e.named = true
			e.name = name
		} else {
			e.id = uint16(nameField & 0xffff)
		}
		entries = append(entries, e)
	}
	return entries, true
}

func (w *resourceWalker) readName(offset uint32) (string, bool) {
	rva := w.base + offset
	length, ok := w.img.uint16At(rva)
	if !ok {
		return "", false
	}
	raw, ok := w.img.bytesAt(rva+2, uint32(length)*2)
	if !ok {
		return "", false
	}
	units := make([]uint16, length)
	for i := range units {
		units[i] = uint16(raw[2*i]) | uint16(raw[2*i+1])<<8
	}
	return string(utf16.Decode(units)), true
}

func (w *resourceWalker) leaf(typeName, name string, langID uint16, offset uint32) *Resource {
	res := &Resource{Type: typeName, Name: name}
	w.leaves++
	if w.leaves > maxResourceLeaves {
		return res
	}

	entry, ok := w.img.bytesAt(w.base+offset, resourceDataSize)
	if !ok {
		logrus.WithField("type", typeName).Debug("Could not read resource data entry.")
		return res
	}
	dataRVA := binary.LittleEndian.Uint32(entry[0:])
	size := binary.LittleEndian.Uint32(entry[4:])
	data, ok := w.img.bytesAt(dataRVA, size)
	if !ok {
		logrus.WithFields(logrus.Fields{
			"type": typeName,
			"rva":  dataRVA,
			"size": size,
		}).Debug("Could not resolve resource data.")
		return res
	}

	off, _ := w.img.offset(dataRVA)
	lang := langID & 0x3ff
	sublang := langID >> 10
	res.FileType = w.sniff(data)
	res.Language = LanguageName(lang)
	res.Sublanguage = SublanguageName(lang, sublang)
	res.Size = size
	res.Offset = off
	return res
}
