package web

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/contacts/internal/core"
	"github.com/JonMunkholm/contacts/internal/importer"
	"github.com/JonMunkholm/contacts/internal/logging"
	"github.com/JonMunkholm/contacts/internal/web/templates"
)

// multipartOverhead is the body allowance above the file size limit for
// form fields and part headers.
const multipartOverhead = 1 << 20

// handleImportDryRun validates an uploaded file and previews the result.
func (s *Server) handleImportDryRun(w http.ResponseWriter, r *http.Request) {
	req, err := s.readImportRequest(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	res, err := s.service.DryRunImport(r.Context(), req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if isHTMX(r) {
		summary := templates.DryRunSummary{Total: res.Total, Valid: res.Valid, Invalid: res.Invalid}
		for _, e := range res.Errors {
			summary.Errors = append(summary.Errors, templates.RowProblem{Row: e.Row, Message: e.Message})
		}
		renderFragment(w, r, templates.DryRunResult(summary))
		return
	}
	writeJSON(w, res)
}

// handleImport applies an uploaded file and returns the counts plus the
// report download URL.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	req, err := s.readImportRequest(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	res, err := s.service.ApplyImport(r.Context(), req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if isHTMX(r) {
		renderFragment(w, r, templates.ImportResult(templates.ImportSummary{
			Created:   res.Created,
			Updated:   res.Updated,
			Skipped:   res.Skipped,
			Failed:    res.Failed,
			ReportURL: res.ReportURL,
		}))
		return
	}
	writeJSON(w, res)
}

// handleDownloadReport serves a stored import report as CSV.
func (s *Server) handleDownloadReport(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	content, err := s.service.FetchReport(token)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=import-report-%s.csv", token))
	w.Write(content)
}

// readImportRequest parses the multipart upload: file, mode and
// auto_create_fields.
func (s *Server) readImportRequest(w http.ResponseWriter, r *http.Request) (core.ImportRequest, error) {
	maxSize := s.service.MaxFileSize()
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return core.ImportRequest{}, importer.NewFileError(importer.ErrFileTooLarge,
				fmt.Sprintf("File exceeds maximum size limit (%d bytes)", maxSize))
		}
		return core.ImportRequest{}, importer.NewFileError(importer.ErrUnsupportedFile, "Invalid multipart form")
	}

	mode, err := importer.ParseMode(r.FormValue("mode"))
	if err != nil {
		return core.ImportRequest{}, err
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return core.ImportRequest{}, importer.NewFileError(importer.ErrNoFile, "No file provided")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return core.ImportRequest{}, fmt.Errorf("read upload: %w", err)
	}

	return core.ImportRequest{
		FileName:         header.Filename,
		Data:             data,
		Mode:             mode,
		AutoCreateFields: parseBool(r.FormValue("auto_create_fields")),
	}, nil
}

// renderFragment writes an HTMX fragment.
func renderFragment(w http.ResponseWriter, r *http.Request, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := c.Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render fragment", "error", err)
	}
}
