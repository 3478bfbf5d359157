package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/seralis/chatpilot/internal/xlstemplate"
)

// templateRequest is the body of POST /api/v1/excel/template.
type templateRequest struct {
	Fields []xlstemplate.FieldSpec `json:"fields"`
	// Rows overrides the configured number of validated data rows.
	Rows int `json:"rows,omitempty"`
}

// BuildTemplate handles POST /api/v1/excel/template: generates a workbook
// whose columns and validations mirror the posted field configuration.
func (h *Handlers) BuildTemplate(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[templateRequest](w, r, maxRequestBodySize)
	if !ok {
		return
	}
	rows := req.Rows
	if rows <= 0 {
		rows = h.TemplateRows
	}

	builder, err := xlstemplate.NewBuilder(req.Fields, rows)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Build into memory first: a template is small and this keeps a build
	// failure from leaking half a workbook with a 200 status.
	var buf bytes.Buffer
	if err := builder.Build(&buf); err != nil {
		writeDomainError(w, err, "build template")
		return
	}

	name := "template-" + time.Now().Format("20060102") + ".xlsx"
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = w.Write(buf.Bytes())
}

// ImportWorkbook handles POST /api/v1/excel/import: a multipart upload with
// a "fields" part (the JSON field configuration) and a "file" part (the
// filled-in workbook). Any cell violation blocks the import; the violations
// come back with a 422 so the client can mark the offending cells.
func (h *Handlers) ImportWorkbook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.MaxUploadBytes); err != nil {
		if err.Error() == "http: request body too large" {
			writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart upload")
		return
	}

	var fields []xlstemplate.FieldSpec
	if err := json.Unmarshal([]byte(r.FormValue("fields")), &fields); err != nil {
		writeError(w, http.StatusBadRequest, "invalid field configuration")
		return
	}
	importer, err := xlstemplate.NewImporter(fields)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file upload")
		return
	}
	defer func() { _ = file.Close() }()

	result, err := importer.Parse(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !result.OK() {
		writeJSON(w, http.StatusUnprocessableEntity, result)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
