// Package xlstemplate builds spreadsheet templates from a field
// configuration and re-imports filled-in workbooks against the same
// configuration, with cell-level validation.
package xlstemplate

import (
	"fmt"
	"regexp"
	"strings"
)

// FieldType is the value type of one template column.
type FieldType string

const (
	FieldText        FieldType = "text"
	FieldNumber      FieldType = "number"
	FieldSelect      FieldType = "select"
	FieldMultiSelect FieldType = "multiselect"
)

// FieldSpec describes one column of the template.
type FieldSpec struct {
	// Key identifies the field in parsed rows.
	Key string `json:"key"`
	// Label is the column header shown to the user.
	Label string `json:"label"`
	Type  FieldType `json:"type"`
	// Required fields get a "*" marker and empty cells are violations.
	Required bool `json:"required,omitempty"`
	// Pattern is a regular expression text values must match.
	Pattern string `json:"pattern,omitempty"`
	// Options lists the allowed values for select and multiselect fields.
	Options []string `json:"options,omitempty"`
	// Unique rejects duplicate values within the upload.
	Unique bool `json:"unique,omitempty"`
	// Min and Max bound number fields when set.
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// multiSelectSeparator splits multi-select cells.
const multiSelectSeparator = ","

type compiledField struct {
	FieldSpec
	pattern *regexp.Regexp
	options map[string]struct{}
}

func compileFields(fields []FieldSpec) ([]compiledField, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("field list is empty")
	}
	seen := make(map[string]struct{}, len(fields))
	out := make([]compiledField, 0, len(fields))
	for _, f := range fields {
		if f.Key == "" || f.Label == "" {
			return nil, fmt.Errorf("field %q: key and label are required", f.Key)
		}
		if _, dup := seen[f.Key]; dup {
			return nil, fmt.Errorf("field %q: duplicate key", f.Key)
		}
		seen[f.Key] = struct{}{}

		cf := compiledField{FieldSpec: f}
		switch f.Type {
		case FieldText, FieldNumber:
		case FieldSelect, FieldMultiSelect:
			if len(f.Options) == 0 {
				return nil, fmt.Errorf("field %q: %s needs options", f.Key, f.Type)
			}
			cf.options = make(map[string]struct{}, len(f.Options))
			for _, o := range f.Options {
				cf.options[o] = struct{}{}
			}
		default:
			return nil, fmt.Errorf("field %q: unknown type %q", f.Key, f.Type)
		}
		if f.Pattern != "" {
			re, err := regexp.Compile(f.Pattern)
			if err != nil {
				return nil, fmt.Errorf("field %q: bad pattern: %w", f.Key, err)
			}
			cf.pattern = re
		}
		out = append(out, cf)
	}
	return out, nil
}

// headerLabel is the column header, with the required marker appended.
func (f FieldSpec) headerLabel() string {
	if f.Required {
		return f.Label + " *"
	}
	return f.Label
}

// matchHeader reports whether a header cell belongs to this field,
// tolerating a missing or present required marker.
func (f FieldSpec) matchHeader(h string) bool {
	h = strings.TrimSpace(h)
	return h == f.Label || h == f.Label+" *"
}
