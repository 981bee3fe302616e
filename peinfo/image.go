package peinfo

import (
	"bytes"
	"debug/pe"
	"encoding/binary"
	"fmt"

	"github.com/targodan/go-errors"
)

// ErrMalformedContainer is returned for inputs that are not valid PE images.
var ErrMalformedContainer = errors.New("malformed PE container")

const (
	dosHeaderSize      = 0x40
	lfanewOffset       = 0x3c
	fileHeaderSize     = 20
	optionalMagicSize  = 2
	optionalHeader32   = 0x10b
	optionalHeader64   = 0x20b
	dataDirectoryCount = 16
)

// MalformedError describes why an input was rejected. It matches
// ErrMalformedContainer via errors.Is.
type MalformedError struct {
	Reason string
	Err    error
}

func malformed(reason string) error {
	return &MalformedError{Reason: reason}
}

func (e *MalformedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v, reason: %s: %v", ErrMalformedContainer, e.Reason, e.Err)
	}
	return fmt.Sprintf("%v, reason: %s", ErrMalformedContainer, e.Reason)
}

func (e *MalformedError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrMalformedContainer.
func (e *MalformedError) Is(target error) bool {
	return target == ErrMalformedContainer
}

// image is a parsed PE file together with its raw bytes. All accessors are
// bounds checked against the raw data.
type image struct {
	data     []byte
	file     *pe.File
	is64     bool
	sections []*pe.Section

	entryPoint    uint32
	imageBase     uint64
	subsystem     uint16
	sizeOfHeaders uint32
	dirs          []pe.DataDirectory
}

func validateHeaders(data []byte) error {
	if len(data) < dosHeaderSize {
		return malformed("file too small for DOS header")
	}
	if data[0] != 'M' || data[1] != 'Z' {
		return malformed("missing MZ signature")
	}
	lfanew := int64(binary.LittleEndian.Uint32(data[lfanewOffset:]))
	if lfanew+4+fileHeaderSize > int64(len(data)) {
		return malformed("e_lfanew out of bounds")
	}
	if !bytes.Equal(data[lfanew:lfanew+4], []byte("PE\x00\x00")) {
		return malformed("missing PE signature")
	}
	fh := lfanew + 4
	optSize := int64(binary.LittleEndian.Uint16(data[fh+16:]))
	if optSize < optionalMagicSize || fh+fileHeaderSize+optSize > int64(len(data)) {
		return malformed("optional header missing or truncated")
	}
	magic := binary.LittleEndian.Uint16(data[fh+fileHeaderSize:])
	if magic != optionalHeader32 && magic != optionalHeader64 {
		return malformed("unknown optional header magic")
	}
	return nil
}

func openImage(data []byte) (*image, error) {
	if err := validateHeaders(data); err != nil {
		return nil, err
	}

	f, err := pe.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, &MalformedError{Reason: "invalid headers", Err: err}
	}

	img := &image{
		data:     data,
		file:     f,
		sections: f.Sections,
	}
	switch oh := f.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		img.entryPoint = oh.AddressOfEntryPoint
		img.imageBase = uint64(oh.ImageBase)
		img.subsystem = oh.Subsystem
		img.sizeOfHeaders = oh.SizeOfHeaders
		img.dirs = oh.DataDirectory[:clampDirs(oh.NumberOfRvaAndSizes)]
	case *pe.OptionalHeader64:
		img.is64 = true
		img.entryPoint = oh.AddressOfEntryPoint
		img.imageBase = oh.ImageBase
		img.subsystem = oh.Subsystem
		img.sizeOfHeaders = oh.SizeOfHeaders
		img.dirs = oh.DataDirectory[:clampDirs(oh.NumberOfRvaAndSizes)]
	default:
		return nil, malformed("optional header missing")
	}
	return img, nil
}

func clampDirs(n uint32) uint32 {
	if n > dataDirectoryCount {
		return dataDirectoryCount
	}
	return n
}

func (img *image) directory(index int) pe.DataDirectory {
	if index >= len(img.dirs) {
		return pe.DataDirectory{}
	}
	return img.dirs[index]
}

// offset translates an RVA into an offset into the raw data. RVAs that map
// to virtual-only parts of a section are not resolvable.
func (img *image) offset(rva uint32) (int64, bool) {
	for _, s := range img.sections {
		span := s.VirtualSize
		if s.Size > span {
			span = s.Size
		}
		if rva < s.VirtualAddress || uint64(rva) >= uint64(s.VirtualAddress)+uint64(span) {
			continue
		}
		delta := rva - s.VirtualAddress
		if delta >= s.Size {
			return 0, false
		}
		off := int64(s.Offset) + int64(delta)
		if off >= int64(len(img.data)) {
			return 0, false
		}
		return off, true
	}
	if rva < img.sizeOfHeaders && int64(rva) < int64(len(img.data)) {
		return int64(rva), true
	}
	return 0, false
}

func (img *image) bytesAt(rva uint32, n uint32) ([]byte, bool) {
	off, ok := img.offset(rva)
	if !ok || off+int64(n) > int64(len(img.data)) {
		return nil, false
	}
	return img.data[off : off+int64(n)], true
}

func (img *image) uint16At(rva uint32) (uint16, bool) {
	b, ok := img.bytesAt(rva, 2)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint16(b), true
}

func (img *image) uint32At(rva uint32) (uint32, bool) {
	b, ok := img.bytesAt(rva, 4)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint32(b), true
}

func (img *image) uint64At(rva uint32) (uint64, bool) {
	b, ok := img.bytesAt(rva, 8)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint64(b), true
}

// cstring reads a NUL terminated string of at most maxLen bytes. Strings
// without terminator within maxLen or the file are rejected.
func (img *image) cstring(rva uint32, maxLen int) (string, bool) {
	off, ok := img.offset(rva)
	if !ok {
		return "", false
	}
	end := off + int64(maxLen) + 1
	if end > int64(len(img.data)) {
		end = int64(len(img.data))
	}
	i := bytes.IndexByte(img.data[off:end], 0)
	if i < 0 {
		return "", false
	}
	return string(img.data[off : off+int64(i)]), true
}

// rawSection returns the on-disk bytes of a section clipped to the file.
func (img *image) rawSection(s *pe.Section) []byte {
	start := int64(s.Offset)
	end := start + int64(s.Size)
	if start >= int64(len(img.data)) || s.Size == 0 {
		return []byte{}
	}
	if end > int64(len(img.data)) {
		end = int64(len(img.data))
	}
	return img.data[start:end]
}
