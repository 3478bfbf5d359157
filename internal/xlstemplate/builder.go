package xlstemplate

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const (
	dataSheet    = "Data"
	optionsSheet = "Options"

	// DefaultRows is how many data rows carry validations in a template.
	DefaultRows = 1000
)

// Builder generates template workbooks for a field configuration.
type Builder struct {
	fields []compiledField
	rows   int
}

// NewBuilder validates the field configuration and returns a Builder.
func NewBuilder(fields []FieldSpec, rows int) (*Builder, error) {
	compiled, err := compileFields(fields)
	if err != nil {
		return nil, err
	}
	if rows <= 0 {
		rows = DefaultRows
	}
	return &Builder{fields: compiled, rows: rows}, nil
}

// Build writes the template workbook: a Data sheet with one column per
// field and native validations, fed by a hidden Options sheet so dropdowns
// survive in any spreadsheet application.
func (b *Builder) Build(w io.Writer) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	f.SetSheetName(f.GetSheetName(0), dataSheet)
	if _, err := f.NewSheet(optionsSheet); err != nil {
		return fmt.Errorf("create options sheet: %w", err)
	}
	if err := f.SetSheetVisible(optionsSheet, false); err != nil {
		return fmt.Errorf("hide options sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDEBF7"}},
	})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}

	optionCol := 0
	for i, field := range b.fields {
		col := i + 1
		cell, err := excelize.CoordinatesToCellName(col, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellStr(dataSheet, cell, field.headerLabel()); err != nil {
			return fmt.Errorf("write header %q: %w", field.Key, err)
		}
		if err := f.SetCellStyle(dataSheet, cell, cell, headerStyle); err != nil {
			return err
		}

		colName, err := excelize.ColumnNumberToName(col)
		if err != nil {
			return err
		}
		width := float64(len(field.headerLabel())) + 6
		if width < 14 {
			width = 14
		}
		if err := f.SetColWidth(dataSheet, colName, colName, width); err != nil {
			return err
		}

		switch field.Type {
		case FieldSelect, FieldMultiSelect:
			optionCol++
			if err := b.addListValidation(f, field, col, optionCol); err != nil {
				return err
			}
		case FieldNumber:
			if err := b.addNumberValidation(f, field, col); err != nil {
				return err
			}
		}
	}

	return f.Write(w)
}

// addListValidation writes the field's options into its own column of the
// hidden sheet and points a list validation at that range. Multi-select
// columns get the same dropdown as a hint but stay free-text, since cells
// hold comma-joined combinations the list cannot enumerate.
func (b *Builder) addListValidation(f *excelize.File, field compiledField, dataCol, optionCol int) error {
	for i, opt := range field.Options {
		cell, err := excelize.CoordinatesToCellName(optionCol, i+1)
		if err != nil {
			return err
		}
		if err := f.SetCellStr(optionsSheet, cell, opt); err != nil {
			return fmt.Errorf("write option %q: %w", opt, err)
		}
	}
	if field.Type == FieldMultiSelect {
		return nil
	}

	optColName, err := excelize.ColumnNumberToName(optionCol)
	if err != nil {
		return err
	}
	dv := excelize.NewDataValidation(true)
	dv.Sqref = b.columnRange(dataCol)
	dv.SetSqrefDropList(fmt.Sprintf("%s!$%s$1:$%s$%d", optionsSheet, optColName, optColName, len(field.Options)))
	dv.SetError(excelize.DataValidationErrorStyleStop, "Invalid value", fmt.Sprintf("Pick one of the %s options.", field.Label))
	return f.AddDataValidation(dataSheet, dv)
}

func (b *Builder) addNumberValidation(f *excelize.File, field compiledField, dataCol int) error {
	min, max := -1e15, 1e15
	if field.Min != nil {
		min = *field.Min
	}
	if field.Max != nil {
		max = *field.Max
	}
	dv := excelize.NewDataValidation(true)
	dv.Sqref = b.columnRange(dataCol)
	if err := dv.SetRange(min, max, excelize.DataValidationTypeDecimal, excelize.DataValidationOperatorBetween); err != nil {
		return fmt.Errorf("number validation %q: %w", field.Key, err)
	}
	dv.SetError(excelize.DataValidationErrorStyleStop, "Invalid number", fmt.Sprintf("%s must be a number.", field.Label))
	return f.AddDataValidation(dataSheet, dv)
}

// columnRange covers the data rows of one column, header excluded.
func (b *Builder) columnRange(col int) string {
	start, _ := excelize.CoordinatesToCellName(col, 2)
	end, _ := excelize.CoordinatesToCellName(col, b.rows+1)
	return start + ":" + end
}
