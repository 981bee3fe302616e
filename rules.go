// Package malw bundles the building blocks of the malw triage toolkit that
// do not belong to a more specific package, most notably yara rule loading
// and scanning.
package malw

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fkie-cad/malw/fileio"

	"github.com/hillu/go-yara/v4"
	"github.com/sirupsen/logrus"
	"github.com/targodan/go-errors"
	"github.com/yeka/zip"
)

// RulesZIPPassword is the password of zipped rule bundles.
const RulesZIPPassword = "infected"

// YaraRulesFileExtensions are the extensions of uncompiled rule files.
var YaraRulesFileExtensions = []string{
	".yar",
	".yara",
}

// CompiledRulesFileExtension is the extension of compiled rule files.
const CompiledRulesFileExtension = ".yarc"

var compiledRulesMagic = []byte("YARA")

// IsYaraRulesFile returns true if the name has an extension of
// YaraRulesFileExtensions, ignoring case.
func IsYaraRulesFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, rExt := range YaraRulesFileExtensions {
		if ext == rExt {
			return true
		}
	}
	return false
}

func isCompiledRules(data []byte) bool {
	return bytes.HasPrefix(data, compiledRulesMagic)
}

// LoadYaraRules loads rules from path. Path may be a compiled or
// uncompiled rules file, an encrypted zip bundle (see RulesZIPPassword) or
// a directory of uncompiled rules. Directories are searched recursively if
// recurse is set.
func LoadYaraRules(path string, recurse bool) (*yara.Rules, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return nil, fileio.NewIOError("stat", path, err)
	}

	if stat.IsDir() {
		return loadRulesDirectory(path, recurse)
	}
	if strings.ToLower(filepath.Ext(path)) == ".zip" {
		return loadRulesZip(path)
	}

	data, err := fileio.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if isCompiledRules(data) {
		rules, err := yara.ReadRules(bytes.NewReader(data))
		if err != nil {
			return nil, errors.Newf("could not load compiled rules \"%s\", reason: %w", path, err)
		}
		return rules, nil
	}
	return compileRules(map[string]string{path: string(data)})
}

func loadRulesDirectory(path string, recurse bool) (*yara.Rules, error) {
	files, err := fileio.Expand(context.Background(), []string{path}, fileio.ExpandOptions{
		Recurse:    recurse,
		Extensions: YaraRulesFileExtensions,
	})
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errors.Newf("could not load rules, reason: no rule files found in \"%s\"", path)
	}

	sources := make(map[string]string, len(files))
	for _, file := range files {
		data, err := fileio.ReadFile(file)
		if err != nil {
			return nil, err
		}
		sources[file] = string(data)
	}
	return compileRules(sources)
}

func loadRulesZip(path string) (*yara.Rules, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fileio.NewIOError("open", path, err)
	}
	defer r.Close()

	sources := make(map[string]string)
	var compiled *yara.Rules
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name := f.Name
		if !IsYaraRulesFile(name) && strings.ToLower(filepath.Ext(name)) != CompiledRulesFileExtension {
			logrus.WithField("file", name).Debug("Ignoring non-rules file in zip.")
			continue
		}
		if f.IsEncrypted() {
			f.SetPassword(RulesZIPPassword)
		}

		rc, err := f.Open()
		if err != nil {
			return nil, errors.Newf("could not open \"%s\" in zip \"%s\", reason: %w", name, path, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, errors.Newf("could not read \"%s\" in zip \"%s\", reason: %w", name, path, err)
		}

		if isCompiledRules(data) {
			if compiled != nil {
				return nil, errors.Newf("could not load zip \"%s\", reason: more than one compiled rules file", path)
			}
			compiled, err = yara.ReadRules(bytes.NewReader(data))
			if err != nil {
				return nil, errors.Newf("could not load compiled rules \"%s\" in zip \"%s\", reason: %w", name, path, err)
			}
			continue
		}
		sources[name] = string(data)
	}

	switch {
	case compiled != nil && len(sources) > 0:
		return nil, errors.Newf("could not load zip \"%s\", reason: mixing compiled and uncompiled rules is not supported", path)
	case compiled != nil:
		return compiled, nil
	case len(sources) == 0:
		return nil, errors.Newf("could not load zip \"%s\", reason: no rules found", path)
	}
	return compileRules(sources)
}

// compileRules compiles all sources in lexicographic order of their names.
func compileRules(sources map[string]string) (*yara.Rules, error) {
	compiler, err := yara.NewCompiler()
	if err != nil {
		return nil, errors.Newf("could not create yara compiler, reason: %w", err)
	}
	defer compiler.Destroy()

	names := make([]string, 0, len(sources))
	for name := range sources {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := compiler.AddString(sources[name], ""); err != nil {
			return nil, compilerError(name, compiler, err)
		}
	}

	rules, err := compiler.GetRules()
	if err != nil {
		return nil, errors.Newf("could not compile rules, reason: %w", err)
	}
	return rules, nil
}

func compilerError(name string, compiler *yara.Compiler, err error) error {
	var errs error
	for _, msg := range compiler.Errors {
		errs = errors.NewMultiError(errs, errors.Newf("line %d: %s", msg.Line, msg.Text))
	}
	if errs == nil {
		errs = err
	}
	return errors.Newf("could not compile rules \"%s\", reason: %w", name, errs)
}
