package report

import (
	"bufio"
	"bytes"
	"embed"
	"encoding/json"
	"io"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/targodan/go-errors"
)

//go:embed schemas
var schemas embed.FS

// Validator checks bundle parts against the embedded JSON schemas. Schemas
// of other origins are never loaded.
type Validator struct {
	compiler *jsonschema.Compiler
}

// NewValidator creates a Validator for the embedded schemas.
func NewValidator() *Validator {
	compiler := jsonschema.NewCompiler()
	compiler.LoadURL = func(url string) (io.ReadCloser, error) {
		if !strings.HasPrefix(url, schemaURLBase) {
			return nil, errors.Newf("schema URL \"%s\" is invalid for malw reports", url)
		}
		return schemas.Open("schemas/" + strings.TrimPrefix(url, schemaURLBase))
	}
	return &Validator{
		compiler: compiler,
	}
}

type partValidation struct {
	file     string
	open     func() (io.ReadCloser, error)
	multiple bool
}

// ValidateReport validates the meta part with the schema of the current
// format version and every other part with the schema the meta part names.
func (v *Validator) ValidateReport(rdr Reader) error {
	in, err := rdr.OpenMeta()
	if err != nil {
		return err
	}
	metaData, err := v.validateSingleObject(schemaURL(MetaFileName), in)
	in.Close()
	if err != nil {
		return errors.Newf("invalid %s, reason: %w", MetaFileName, err)
	}

	urls, _ := metaData["schemaURLs"].(map[string]interface{})

	parts := []partValidation{
		{file: FeaturesFileName, open: rdr.OpenFeatures, multiple: true},
		{file: StringsFileName, open: rdr.OpenStrings, multiple: true},
		{file: CorrelationFileName, open: rdr.OpenCorrelation},
	}
	for _, part := range parts {
		url, ok := urls[part.file].(string)
		if !ok {
			return errors.Newf("%s does not name a schema for %s", MetaFileName, part.file)
		}

		in, err := part.open()
		if err != nil {
			return err
		}
		if part.multiple {
			err = v.validateMultipleObjects(url, in)
		} else {
			_, err = v.validateSingleObject(url, in)
		}
		in.Close()
		if err != nil {
			return errors.Newf("invalid %s, reason: %w", part.file, err)
		}
	}
	return nil
}

func decode(data []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var obj interface{}
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	return obj, nil
}

func (v *Validator) validateSingleObject(schemaURL string, in io.Reader) (map[string]interface{}, error) {
	schema, err := v.compiler.Compile(schemaURL)
	if err != nil {
		return nil, err
	}

	b, err := io.ReadAll(in)
	if err != nil {
		return nil, err
	}
	obj, err := decode(b)
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(obj); err != nil {
		return nil, err
	}

	data, ok := obj.(map[string]interface{})
	if !ok {
		return nil, errors.New("expected a JSON object")
	}
	return data, nil
}

func (v *Validator) validateMultipleObjects(schemaURL string, in io.Reader) error {
	schema, err := v.compiler.Compile(schemaURL)
	if err != nil {
		return err
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 64*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		obj, err := decode([]byte(line))
		if err != nil {
			return errors.Newf("line %d, reason: %w", lineNo, err)
		}
		if err := schema.Validate(obj); err != nil {
			return errors.Newf("line %d, reason: %w", lineNo, err)
		}
	}
	return scanner.Err()
}
