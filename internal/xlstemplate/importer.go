package xlstemplate

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Violation is one failed cell check in an uploaded workbook.
type Violation struct {
	// Row is the 1-based spreadsheet row (header is row 1).
	Row int `json:"row"`
	// Field is the key of the offending column.
	Field string `json:"field"`
	// Cell is the spreadsheet coordinate, e.g. "B4".
	Cell    string `json:"cell"`
	Message string `json:"message"`
}

// ImportResult holds the parsed rows and any violations. Rows are only
// usable when OK reports true: a single violation blocks the import.
type ImportResult struct {
	Rows       []map[string]any `json:"rows"`
	Violations []Violation      `json:"violations,omitempty"`
}

// OK reports whether the upload passed every check.
func (r *ImportResult) OK() bool { return len(r.Violations) == 0 }

// Importer parses uploaded workbooks against a field configuration.
type Importer struct {
	fields []compiledField
}

// NewImporter validates the field configuration and returns an Importer.
func NewImporter(fields []FieldSpec) (*Importer, error) {
	compiled, err := compileFields(fields)
	if err != nil {
		return nil, err
	}
	return &Importer{fields: compiled}, nil
}

// Parse reads a workbook and returns typed rows plus per-cell violations.
// Structural problems (not a workbook, missing sheet or columns) are errors;
// bad cell values are violations, not errors.
func (im *Importer) Parse(r io.Reader) (*ImportResult, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(dataSheet)
	if err != nil {
		return nil, fmt.Errorf("sheet %q: %w", dataSheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q is empty", dataSheet)
	}

	columns, err := im.mapColumns(rows[0])
	if err != nil {
		return nil, err
	}

	result := &ImportResult{}
	seen := make(map[string]map[string]int) // field key -> value -> first row
	for _, field := range im.fields {
		if field.Unique {
			seen[field.Key] = make(map[string]int)
		}
	}

	for i, row := range rows[1:] {
		rowNum := i + 2
		if rowEmpty(row) {
			continue
		}
		parsed := make(map[string]any, len(im.fields))
		for _, field := range im.fields {
			col := columns[field.Key]
			raw := ""
			if col < len(row) {
				raw = strings.TrimSpace(row[col])
			}
			cell, _ := excelize.CoordinatesToCellName(col+1, rowNum)

			if raw == "" {
				if field.Required {
					result.Violations = append(result.Violations, Violation{
						Row: rowNum, Field: field.Key, Cell: cell,
						Message: fmt.Sprintf("%s is required", field.Label),
					})
				}
				continue
			}

			value, vmsg := field.parseValue(raw)
			if vmsg != "" {
				result.Violations = append(result.Violations, Violation{
					Row: rowNum, Field: field.Key, Cell: cell, Message: vmsg,
				})
				continue
			}

			if field.Unique {
				if firstRow, dup := seen[field.Key][raw]; dup {
					result.Violations = append(result.Violations, Violation{
						Row: rowNum, Field: field.Key, Cell: cell,
						Message: fmt.Sprintf("%s must be unique, duplicate of row %d", field.Label, firstRow),
					})
					continue
				}
				seen[field.Key][raw] = rowNum
			}
			parsed[field.Key] = value
		}
		result.Rows = append(result.Rows, parsed)
	}

	return result, nil
}

// mapColumns matches header cells to fields by label. Extra columns are
// ignored; a missing configured column is a structural error.
func (im *Importer) mapColumns(header []string) (map[string]int, error) {
	columns := make(map[string]int, len(im.fields))
	for _, field := range im.fields {
		found := -1
		for idx, h := range header {
			if field.matchHeader(h) {
				found = idx
				break
			}
		}
		if found < 0 {
			return nil, fmt.Errorf("column %q not found in upload", field.Label)
		}
		columns[field.Key] = found
	}
	return columns, nil
}

// parseValue converts a non-empty cell into its typed value, returning a
// violation message on failure.
func (f compiledField) parseValue(raw string) (any, string) {
	if f.pattern != nil && f.Type != FieldNumber && !f.matchesPattern(raw) {
		return nil, fmt.Sprintf("%s does not match the expected format", f.Label)
	}

	switch f.Type {
	case FieldNumber:
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Sprintf("%s must be a number", f.Label)
		}
		if f.Min != nil && n < *f.Min {
			return nil, fmt.Sprintf("%s must be at least %v", f.Label, *f.Min)
		}
		if f.Max != nil && n > *f.Max {
			return nil, fmt.Sprintf("%s must be at most %v", f.Label, *f.Max)
		}
		return n, ""

	case FieldSelect:
		if _, ok := f.options[raw]; !ok {
			return nil, fmt.Sprintf("%s must be one of the configured options", f.Label)
		}
		return raw, ""

	case FieldMultiSelect:
		parts := strings.Split(raw, multiSelectSeparator)
		values := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			if _, ok := f.options[p]; !ok {
				return nil, fmt.Sprintf("%s contains unknown option %q", f.Label, p)
			}
			values = append(values, p)
		}
		if len(values) == 0 {
			return nil, fmt.Sprintf("%s has no valid options", f.Label)
		}
		return values, ""

	default:
		return raw, ""
	}
}

// matchesPattern applies the field pattern to every element of a
// multi-select cell and to the whole value otherwise.
func (f compiledField) matchesPattern(raw string) bool {
	if f.Type == FieldMultiSelect {
		for _, p := range strings.Split(raw, multiSelectSeparator) {
			if p = strings.TrimSpace(p); p != "" && !f.pattern.MatchString(p) {
				return false
			}
		}
		return true
	}
	return f.pattern.MatchString(raw)
}

func rowEmpty(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
