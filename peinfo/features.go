package peinfo

// Section describes one entry of the section table.
type Section struct {
	Name           string  `json:"name"`
	RawSize        uint32  `json:"rawSize"`
	VirtualSize    uint32  `json:"virtualSize"`
	VirtualAddress uint32  `json:"virtualAddress"`
	Entropy        float64 `json:"entropy"`
	MD5            string  `json:"md5"`
	Suspicious     bool    `json:"suspicious"`
}

type importedSymbol struct {
	name      string
	ordinal   uint16
	byOrdinal bool
}

// Import lists the symbols imported from one library. Symbols imported by
// ordinal are named "ord(<n>)".
type Import struct {
	Library   string   `json:"library"`
	Functions []string `json:"functions"`

	symbols []importedSymbol
}

// ImportTable holds the imported libraries in directory order.
type ImportTable []*Import

// Libraries returns the library names in order.
func (t ImportTable) Libraries() []string {
	libs := make([]string, len(t))
	for i, imp := range t {
		libs[i] = imp.Library
	}
	return libs
}

// Functions returns the symbols imported from library or nil.
func (t ImportTable) Functions(library string) []string {
	for _, imp := range t {
		if imp.Library == library {
			return imp.Functions
		}
	}
	return nil
}

// Resource is a leaf of the resource tree. FileType, Language and
// Sublanguage stay blank if the leaf data could not be resolved.
type Resource struct {
	Type        string `json:"type"`
	Name        string `json:"name"`
	FileType    string `json:"fileType"`
	Language    string `json:"language"`
	Sublanguage string `json:"sublanguage"`
	Size        uint32 `json:"size,omitempty"`
	Offset      int64  `json:"offset,omitempty"`
}

// Features are the static properties extracted from a PE image.
type Features struct {
	Size   int64  `json:"size"`
	MD5    string `json:"md5"`
	SHA1   string `json:"sha1"`
	SHA256 string `json:"sha256"`

	Imphash   string `json:"imphash"`
	FuzzyHash string `json:"fuzzyHash"`

	Machine     string `json:"machine"`
	Is64Bit     bool   `json:"is64Bit"`
	IsDLL       bool   `json:"isDLL"`
	EntryPoint  uint32 `json:"entryPoint"`
	ImageBase   uint64 `json:"imageBase"`
	Timestamp   uint32 `json:"timestamp"`
	CompileTime string `json:"compileTime"`
	Subsystem   string `json:"subsystem"`
	Signature   string `json:"signature"`

	Sections  []*Section  `json:"sections"`
	Imports   ImportTable `json:"imports"`
	Exports   []string    `json:"exports"`
	Resources []*Resource `json:"resources"`
}

// FindSection returns the first section with the given name or nil.
func (f *Features) FindSection(name string) *Section {
	for _, s := range f.Sections {
		if s.Name == name {
			return s
		}
	}
	return nil
}
