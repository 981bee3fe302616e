package correlate

// Pair is the fuzzy similarity of two files.
type Pair struct {
	A     string `json:"a"`
	B     string `json:"b"`
	Score int    `json:"score"`
}

// ImphashGroup lists files sharing an import hash.
type ImphashGroup struct {
	Imphash string   `json:"imphash"`
	Files   []string `json:"files"`
}

// SectionGroup lists files that contain a section with the same name and
// content.
type SectionGroup struct {
	Name  string   `json:"name"`
	MD5   string   `json:"md5"`
	Files []string `json:"files"`
}

// Failure records a file that could not be read.
type Failure struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Report is the result of correlating a set of files.
type Report struct {
	Similarities []*Pair         `json:"similarities"`
	Imphashes    []*ImphashGroup `json:"imphashes"`
	Sections     []*SectionGroup `json:"sections"`
	Failures     []*Failure      `json:"failures"`
}

// FindSectionGroup returns the group for the section name and hash or nil.
func (r *Report) FindSectionGroup(name, md5 string) *SectionGroup {
	for _, g := range r.Sections {
		if g.Name == name && g.MD5 == md5 {
			return g
		}
	}
	return nil
}
