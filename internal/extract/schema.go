package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/merchant-intake/constants"
)

// fieldValueSchema accepts "x", {"value": "x"} and null.
var fieldValueSchema = map[string]any{
	"anyOf": []any{
		map[string]any{"type": "string"},
		map[string]any{"type": "null"},
		map[string]any{
			"type":                 "object",
			"properties":           map[string]any{"value": map[string]any{"type": []any{"string", "null"}}},
			"required":             []any{"value"},
			"additionalProperties": true,
		},
	},
}

// BuildAnalysisSchema returns the JSON schema a remote analysis must meet for
// the category: an object whose extractable fields are field values. Other
// keys are allowed and ignored.
func BuildAnalysisSchema(category constants.DocumentCategory) map[string]any {
	props := map[string]any{}
	for _, f := range constants.ExtractableFields(category) {
		props[f] = fieldValueSchema
	}
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"additionalProperties": true,
	}
}

type compiledSchemas struct {
	doc   *jsonschema.Schema
	value *jsonschema.Schema
}

var (
	schemaMu    sync.Mutex
	schemaCache = map[constants.DocumentCategory]*compiledSchemas{}
)

func compileSchema(name string, schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(name, bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

func schemasFor(category constants.DocumentCategory) (*compiledSchemas, error) {
	schemaMu.Lock()
	defer schemaMu.Unlock()
	if s, ok := schemaCache[category]; ok {
		return s, nil
	}
	doc, err := compileSchema("analysis-"+string(category)+".json", BuildAnalysisSchema(category))
	if err != nil {
		return nil, err
	}
	value, err := compileSchema("field-value.json", fieldValueSchema)
	if err != nil {
		return nil, err
	}
	s := &compiledSchemas{doc: doc, value: value}
	schemaCache[category] = s
	return s, nil
}

// DecodeAnalysis validates raw against the category schema and returns the
// known fields. On a schema violation the valid fields are kept and each
// rejected field is reported in warnings. Only a non-object payload is an error.
func DecodeAnalysis(category constants.DocumentCategory, raw []byte) (map[string]FieldValue, []string, error) {
	s, err := schemasFor(category)
	if err != nil {
		return nil, nil, err
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, nil, fmt.Errorf("decode analysis: %w", err)
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, nil, fmt.Errorf("analysis is %T, want object", doc)
	}

	var warnings []string
	strict := s.doc.Validate(obj) == nil

	known := constants.ExtractableFields(category)
	fields := make(map[string]FieldValue, len(known))
	for _, name := range known {
		v, present := obj[name]
		if !present {
			continue
		}
		if !strict {
			if err := s.value.Validate(v); err != nil {
				warnings = append(warnings, fmt.Sprintf("dropped %s: not a string or {value} object", name))
				continue
			}
		}
		b, _ := json.Marshal(v)
		var fv FieldValue
		if err := json.Unmarshal(b, &fv); err != nil {
			warnings = append(warnings, fmt.Sprintf("dropped %s: %v", name, err))
			continue
		}
		if fv.IsEmpty() {
			continue
		}
		fields[name] = fv
	}

	var unknown []string
	for k := range obj {
		if !constants.IsExtractable(category, k) {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		warnings = append(warnings, fmt.Sprintf("ignored fields: %v", unknown))
	}
	return fields, warnings, nil
}
