package web

import (
	"bytes"
	"net/http"

	"github.com/JonMunkholm/contacts/internal/core"
)

// handleExportContacts streams contacts as an importable CSV file.
//
// Query parameters: tags (repeated or comma-separated, all must match),
// from and to (inclusive last-interacted bounds) and include_private.
func (s *Server) handleExportContacts(w http.ResponseWriter, r *http.Request) {
	filter := core.ExportFilter{
		Tags:           splitTags(r.URL.Query()["tags"]),
		IncludePrivate: parseBool(r.URL.Query().Get("include_private")),
	}

	var err error
	if filter.From, err = parseTimeParam(r, "from"); err != nil {
		s.respondInvalid(w, r, err.Error())
		return
	}
	if filter.To, err = parseTimeParam(r, "to"); err != nil {
		s.respondInvalid(w, r, err.Error())
		return
	}

	// Buffered so a storage failure can still produce an error response.
	var buf bytes.Buffer
	if err := s.service.ExportContacts(r.Context(), &buf, filter); err != nil {
		s.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=contacts.csv")
	w.Write(buf.Bytes())
}
