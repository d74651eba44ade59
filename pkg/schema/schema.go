// Package schema normalizes upstream port schema descriptors into flat column lists
// and handles the JSON snapshot cached on gem properties.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"unicode/utf8"

	"github.com/xeipuuv/gojsonschema"
)

// Field is a flattened upstream column.
type Field struct {
	Name     string `json:"name"`
	DataType string `json:"dataType"`
}

// descriptorSchema is the contract a port schema descriptor must satisfy.
var descriptorSchema = mustCompile(map[string]any{
	"type":     "object",
	"required": []string{"fields"},
	"properties": map[string]any{
		"fields": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":     "object",
				"required": []string{"name", "dataType"},
				"properties": map[string]any{
					"name": map[string]any{"type": "string"},
					"dataType": map[string]any{
						"type":     "object",
						"required": []string{"type"},
						"properties": map[string]any{
							"type": map[string]any{"type": "string"},
						},
					},
				},
			},
		},
	},
})

// snapshotSchema is the contract a cached snapshot must satisfy.
var snapshotSchema = mustCompile(map[string]any{
	"type": "array",
	"items": map[string]any{
		"type":     "object",
		"required": []string{"name", "dataType"},
		"properties": map[string]any{
			"name":     map[string]any{"type": "string"},
			"dataType": map[string]any{"type": "string"},
		},
	},
})

func mustCompile(document map[string]any) *gojsonschema.Schema {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(document))
	if err != nil {
		panic(err)
	}

	return compiled
}

type descriptor struct {
	Fields []struct {
		Name     string `json:"name"`
		DataType struct {
			Type string `json:"type"`
		} `json:"dataType"`
	} `json:"fields"`
}

// ExtractFields flattens a port schema descriptor of the form
// {"fields": [{"name": ..., "dataType": {"type": ...}}]} into an ordered field list.
func ExtractFields(raw map[string]any) ([]Field, error) {
	if raw == nil {
		return nil, &FormatError{Source: "descriptor", Issues: []string{"descriptor is missing"}}
	}

	if err := check(descriptorSchema, gojsonschema.NewGoLoader(raw), "descriptor"); err != nil {
		return nil, err
	}

	// Names must survive the JSON round trip byte for byte.
	if issues := invalidUTF8(raw); len(issues) > 0 {
		return nil, &FormatError{Source: "descriptor", Issues: issues}
	}

	body, err := json.Marshal(raw)
	if err != nil {
		return nil, &FormatError{Source: "descriptor", Err: err}
	}

	var desc descriptor
	if err := json.Unmarshal(body, &desc); err != nil {
		return nil, &FormatError{Source: "descriptor", Err: err}
	}

	fields := make([]Field, 0, len(desc.Fields))
	for _, f := range desc.Fields {
		fields = append(fields, Field{Name: f.Name, DataType: f.DataType.Type})
	}

	return fields, nil
}

// Encode renders fields as the cached snapshot string. An empty list encodes as "[]".
func Encode(fields []Field) string {
	if fields == nil {
		fields = []Field{}
	}

	var buf bytes.Buffer

	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)

	// A []Field of plain strings always encodes.
	_ = encoder.Encode(fields)

	return string(bytes.TrimRight(buf.Bytes(), "\n"))
}

// Decode parses a cached snapshot. The empty string means no upstream schema is known yet
// and decodes to nil.
func Decode(snapshot string) ([]Field, error) {
	if snapshot == "" {
		return nil, nil
	}

	if !utf8.ValidString(snapshot) {
		return nil, &FormatError{Source: "snapshot", Issues: []string{"snapshot is not valid UTF-8"}}
	}

	if err := check(snapshotSchema, gojsonschema.NewStringLoader(snapshot), "snapshot"); err != nil {
		return nil, err
	}

	var fields []Field
	if err := json.Unmarshal([]byte(snapshot), &fields); err != nil {
		return nil, &FormatError{Source: "snapshot", Err: err}
	}

	return fields, nil
}

// check validates document against compiled and reports every violation, sorted.
func check(compiled *gojsonschema.Schema, document gojsonschema.JSONLoader, source string) error {
	result, err := compiled.Validate(document)
	if err != nil {
		return &FormatError{Source: source, Err: err}
	}

	if result.Valid() {
		return nil
	}

	issues := make([]string, 0, len(result.Errors()))
	for _, resultErr := range result.Errors() {
		issues = append(issues, resultErr.String())
	}

	sort.Strings(issues)

	return &FormatError{Source: source, Issues: issues}
}

// invalidUTF8 lists the descriptor strings that are not valid UTF-8. raw has already passed
// descriptorSchema, so only the element shapes a Go or JSON caller can build are expected.
func invalidUTF8(raw map[string]any) []string {
	var elements []map[string]any

	switch fields := raw["fields"].(type) {
	case []map[string]any:
		elements = fields
	case []any:
		for _, field := range fields {
			if element, ok := field.(map[string]any); ok {
				elements = append(elements, element)
			}
		}
	}

	var issues []string

	for i, element := range elements {
		if name, _ := element["name"].(string); !utf8.ValidString(name) {
			issues = append(issues, fmt.Sprintf("fields.%d.name: invalid UTF-8", i))
		}

		dataType, _ := element["dataType"].(map[string]any)
		if typeName, _ := dataType["type"].(string); !utf8.ValidString(typeName) {
			issues = append(issues, fmt.Sprintf("fields.%d.dataType.type: invalid UTF-8", i))
		}
	}

	return issues
}

// Names returns the field names in order.
func Names(fields []Field) []string {
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.Name)
	}

	return names
}
