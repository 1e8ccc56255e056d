// Package llmjson turns loosely formatted model output into validated JSON.
package llmjson

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/xeipuuv/gojsonschema"

	"github.com/spigell/fitcheck/internal/utils"
)

// ErrNoJSON is returned when the output holds no JSON value at all.
var ErrNoJSON = errors.New("no json value in model output")

const previewLength = 120

// ParseError reports output that could not be turned into the expected shape.
type ParseError struct {
	Preview string
	Err     error
}

// NewParseError wraps err with a preview of the offending output.
func NewParseError(raw string, err error) *ParseError {
	return &ParseError{Preview: utils.TruncateForLog(raw, previewLength), Err: err}
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse model output %q: %v", e.Preview, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ExtractJSON strips markdown code fences and any prose around the first
// JSON object or array.
func ExtractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```JSON")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.TrimSpace(strings.Trim(raw, "`"))

	objStart := strings.Index(raw, "{")
	arrStart := strings.Index(raw, "[")
	closer := "}"
	start := objStart
	if arrStart != -1 && (objStart == -1 || arrStart < objStart) {
		closer = "]"
		start = arrStart
	}
	if start == -1 {
		return raw
	}
	end := strings.LastIndex(raw, closer)
	if end < start {
		return raw[start:]
	}
	return raw[start : end+1]
}

// Parse extracts the JSON document from raw, validates it against schema
// when one is given and returns it ready for gjson lookups.
func Parse(raw string, schema *Schema) (gjson.Result, error) {
	doc := ExtractJSON(raw)
	if doc == "" || !gjson.Valid(doc) {
		return gjson.Result{}, NewParseError(raw, ErrNoJSON)
	}
	if schema != nil {
		if err := schema.Validate(doc); err != nil {
			return gjson.Result{}, NewParseError(raw, err)
		}
	}
	return gjson.Parse(doc), nil
}

// Schema is a compiled JSON Schema.
type Schema struct {
	name   string
	schema *gojsonschema.Schema
}

// CompileSchema compiles the schema source.
func CompileSchema(name, source string) (*Schema, error) {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(source))
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return &Schema{name: name, schema: compiled}, nil
}

// MustCompileSchema is CompileSchema for embedded schemas known at build time.
func MustCompileSchema(name, source string) *Schema {
	s, err := CompileSchema(name, source)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Schema) Name() string {
	return s.name
}

// ValidationError lists the schema violations of a document.
type ValidationError struct {
	Schema string
	Errors []FieldError
}

// FieldError is a single violation at a field path.
type FieldError struct {
	Field   string
	Message string
}

func (ve *ValidationError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s validation failed:", ve.Schema)
	for i, err := range ve.Errors {
		fmt.Fprintf(&sb, " %d. %s: %s;", i+1, err.Field, err.Message)
	}
	return strings.TrimSuffix(sb.String(), ";")
}

// Validate checks doc against the schema.
func (s *Schema) Validate(doc string) error {
	result, err := s.schema.Validate(gojsonschema.NewStringLoader(doc))
	if err != nil {
		return fmt.Errorf("validate against %s: %w", s.name, err)
	}
	if result.Valid() {
		return nil
	}

	ve := &ValidationError{Schema: s.name}
	for _, desc := range result.Errors() {
		ve.Errors = append(ve.Errors, FieldError{Field: desc.Field(), Message: desc.Description()})
	}
	return ve
}

// Text returns the trimmed string form of a value.
func Text(r gjson.Result) string {
	if !r.Exists() || r.Type == gjson.Null {
		return ""
	}
	return strings.TrimSpace(r.String())
}

// Number reads a numeric value that may have been emitted as a string.
// ok is false when the value is missing or not a number.
func Number(r gjson.Result) (float64, bool) {
	switch r.Type {
	case gjson.Number:
		return r.Num, true
	case gjson.String:
		f, err := strconv.ParseFloat(strings.TrimSpace(r.Str), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Texts returns the non-empty strings of an array value. A single string is
// treated as a one-element array.
func Texts(r gjson.Result) []string {
	out := []string{}
	if r.Type == gjson.String {
		if s := Text(r); s != "" {
			out = append(out, s)
		}
		return out
	}
	for _, item := range r.Array() {
		if s := Text(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
