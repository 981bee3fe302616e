// Package output renders results for the console and stacks writers for
// report files.
package output

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/fkie-cad/malw"
	"github.com/fkie-cad/malw/correlate"
	"github.com/fkie-cad/malw/digest"
	"github.com/fkie-cad/malw/ioc"
	"github.com/fkie-cad/malw/peinfo"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
)

var (
	separator = color.New(color.FgMagenta).SprintFunc()
	name      = color.New(color.FgRed).SprintFunc()
	value     = color.New(color.FgGreen).SprintFunc()
	detail    = color.New(color.FgCyan).SprintFunc()
	library   = color.New(color.FgHiGreen).SprintFunc()
	indicator = color.New(color.FgHiRed).SprintFunc()
	digestCol = color.New(color.FgBlue).SprintFunc()
)

// Printer writes human readable, colored results. Write errors are ignored.
type Printer struct {
	out io.Writer
}

// NewPrinter creates a Printer writing to out. Colors follow
// color.NoColor.
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

func (p *Printer) println(a ...interface{}) {
	fmt.Fprintln(p.out, a...)
}

func (p *Printer) printf(format string, a ...interface{}) {
	fmt.Fprintf(p.out, format, a...)
}

// Separator separates the results of two files.
func (p *Printer) Separator() {
	p.println(separator("---"))
}

// Heading starts a new block of the overview.
func (p *Printer) Heading(title string) {
	p.println()
	p.println(separator(title))
}

// FileHeader prints the file name and its size.
func (p *Printer) FileHeader(path string, size int64) {
	p.println(name(fmt.Sprintf("%s - %s", filepath.Base(path), humanize.IBytes(uint64(size)))))
}

// Checksums prints one line per digest. The path is omitted if empty.
func (p *Printer) Checksums(path string, sums []*digest.Checksum) {
	for _, sum := range sums {
		parts := make([]string, 0, 3)
		if path != "" {
			parts = append(parts, name(path))
		}
		parts = append(parts, value(sum.Value), sum.Name)
		p.println(strings.Join(parts, " "))
	}
}

// FileType prints the sniffed type. The path is omitted if empty.
func (p *Printer) FileType(path, fileType string) {
	if path == "" {
		p.println(value(fileType))
		return
	}
	p.println(name(path) + " - " + value(fileType))
}

// Strings prints the strings, prefixed with their offset unless radix is
// zero. Classified strings are highlighted and followed by their hint.
func (p *Printer) Strings(strs []*ioc.ClassifiedString, radix Radix) {
	for _, s := range strs {
		parts := make([]string, 0, 3)
		if radix != 0 {
			parts = append(parts, radix.Format(s.Offset))
		}
		if s.Match != nil {
			parts = append(parts, indicator(s.Value), value(s.Match.Hint))
		} else {
			parts = append(parts, s.Value)
		}
		p.println(strings.Join(parts, "  "))
	}
}

func orNone(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// Features prints the PE information. The path is omitted if empty.
func (p *Printer) Features(path string, f *peinfo.Features) {
	if path != "" {
		p.println(name(filepath.Base(path)))
	}

	p.printf("\nFuzzy hash: %s\n", detail(orNone(f.FuzzyHash)))
	p.printf("\nImphash: %s\n", detail(orNone(f.Imphash)))
	p.printf("\nBuilt with: %s\n", detail(orNone(f.Signature)))
	p.printf("\nCompilation date: %s\n", detail(f.CompileTime))
	p.printf("\nSubsystem: %s\n", detail(f.Subsystem))
	p.printf("\nMachine: %s\n", detail(f.Machine))

	p.println("\nImports:")
	for _, imp := range f.Imports {
		p.println(library(imp.Library + ":"))
		for _, fn := range imp.Functions {
			p.println("\t" + detail(fn))
		}
	}

	p.println("\nExports:")
	for _, exp := range f.Exports {
		p.println(detail(exp))
	}

	p.println("\nSections:")
	tw := tabwriter.NewWriter(p.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "name\traw size\tvirtual size\tentropy\tmd5\tsuspicious")
	for _, s := range f.Sections {
		suspicious := "no"
		if s.Suspicious {
			suspicious = indicator("yes")
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%.2f\t%s\t%s\n", s.Name, s.RawSize, s.VirtualSize, s.Entropy, s.MD5, suspicious)
	}
	tw.Flush()

	p.println("\nResources:")
	if len(f.Resources) == 0 {
		p.println("No resources")
		return
	}
	tw = tabwriter.NewWriter(p.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "type\tname\tfiletype\tlang\tsublang")
	for _, r := range f.Resources {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.Type, orNone(r.Name), orNone(r.FileType), orNone(r.Language), orNone(r.Sublanguage))
	}
	tw.Flush()
}

// Correlation prints the similarity ranking and both kinds of groups.
func (p *Printer) Correlation(r *correlate.Report) {
	p.println(name("Comparison of fuzzy hashes:"))
	for i, pair := range r.Similarities {
		if i > 0 {
			p.println()
		}
		p.printf("similarity: %d\n", pair.Score)
		p.printf("\tfile: %s\n", detail(filepath.Base(pair.A)))
		p.printf("\tfile: %s\n", detail(filepath.Base(pair.B)))
	}

	p.println()
	p.Separator()
	if len(r.Imphashes) == 0 {
		p.println(name("There are no files with the same imphash"))
	} else {
		p.println(name("Files with the same imphash:"))
		for _, g := range r.Imphashes {
			p.printf("imphash: %s\n", digestCol(g.Imphash))
			for _, f := range g.Files {
				p.printf("\tfile: %s\n", detail(filepath.Base(f)))
			}
		}
	}

	p.println()
	p.Separator()
	if len(r.Sections) == 0 {
		p.println(name("No duplicate section md5 hashes"))
	} else {
		p.println(name("Sections with the same md5 hashes:"))
		for _, g := range r.Sections {
			p.printf("section: %s\n", detail(g.Name))
			p.printf("\tmd5: %s\n", digestCol(g.MD5))
			for _, f := range g.Files {
				p.printf("\t\tfile: %s\n", separator(filepath.Base(f)))
			}
		}
	}

	for _, f := range r.Failures {
		p.printf("%s %s: %s\n", indicator("FAILED:"), f.Path, f.Message)
	}
}

// RuleMatches prints the matched yara rules of a file.
func (p *Printer) RuleMatches(path string, matches []*malw.RuleMatch) {
	if len(matches) == 0 {
		p.println(value("No yara rule matched."))
		return
	}
	for _, m := range matches {
		p.printf(indicator("MATCH:")+" Rule \"%s\" matches file %s.\n", m.Rule, path)
		if len(m.Offsets) > 0 {
			offsets := malw.FormatSlice("0x%X", m.Offsets)
			p.printf("\tRule-strings matched at %s.\n", malw.Join(offsets, ", ", " and "))
		}
	}
}
