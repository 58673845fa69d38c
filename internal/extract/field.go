package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// FieldValue is either a plain scalar or a {"value": ...} wrapper. Callers
// read it through Unwrap and never inspect the shape.
type FieldValue struct {
	s       string
	wrapped bool
}

func Scalar(s string) FieldValue  { return FieldValue{s: s} }
func Wrapped(s string) FieldValue { return FieldValue{s: s, wrapped: true} }

func (v FieldValue) Unwrap() string  { return v.s }
func (v FieldValue) IsWrapped() bool { return v.wrapped }
func (v FieldValue) IsEmpty() bool   { return strings.TrimSpace(v.s) == "" }

func (v FieldValue) String() string { return v.s }

func (v FieldValue) MarshalJSON() ([]byte, error) {
	if v.wrapped {
		return json.Marshal(struct {
			Value string `json:"value"`
		}{v.s})
	}
	return json.Marshal(v.s)
}

func (v *FieldValue) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || string(b) == "null":
		*v = FieldValue{}
		return nil
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = Scalar(s)
		return nil
	case b[0] == '{':
		var w struct {
			Value json.RawMessage `json:"value"`
		}
		if err := json.Unmarshal(b, &w); err != nil {
			return err
		}
		var inner FieldValue
		if err := inner.UnmarshalJSON(w.Value); err != nil {
			return err
		}
		*v = Wrapped(inner.s)
		return nil
	case b[0] == '[':
		return fmt.Errorf("field value: arrays are not supported")
	default:
		// numbers and booleans keep their literal text
		*v = Scalar(string(b))
		return nil
	}
}

// Values returns the unwrapped, non-empty values of fields.
func Values(fields map[string]FieldValue) map[string]string {
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		if v.IsEmpty() {
			continue
		}
		out[k] = strings.TrimSpace(v.Unwrap())
	}
	return out
}
