package pcjson

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/gwos/pcjsongen/errors"
	"github.com/gwos/pcjsongen/schema"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Marshal renders a JSON value tree with the indentation of the generated documents
func Marshal(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidInput, err)
	}
	return data, nil
}

// Unmarshal decodes a JSON document keeping numbers exact
func Unmarshal(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidInput, err)
	}
	return v, nil
}

func jsonNumber(s string) json.Number { return json.Number(s) }

// CompileSchema compiles the emitted schema document, an empty root selects
// the whole document, otherwise the named definition
func CompileSchema(schemaJSON []byte, root string) (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft4
	if err := c.AddResource(schema.ResourceURL(), bytes.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidInput, err)
	}
	pointer := "#"
	if root != "" {
		pointer = "#/definitions/" + root
	}
	sch, err := c.Compile(schema.ResourceURL() + pointer)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidInput, err)
	}
	return sch, nil
}

// ValidateDocument checks docJSON against the emitted schema
func ValidateDocument(schemaJSON, docJSON []byte, root string) error {
	sch, err := CompileSchema(schemaJSON, root)
	if err != nil {
		return err
	}
	v, err := Unmarshal(docJSON)
	if err != nil {
		return err
	}
	if err := sch.Validate(v); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidInput, err)
	}
	return nil
}
