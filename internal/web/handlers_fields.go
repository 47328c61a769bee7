package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/contacts/internal/fields"
)

// handleListFields returns every field definition ordered by key.
func (s *Server) handleListFields(w http.ResponseWriter, r *http.Request) {
	defs, err := s.service.ListFields(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if defs == nil {
		defs = []fields.Definition{}
	}
	writeJSON(w, defs)
}

// handleCreateField creates a field definition.
func (s *Server) handleCreateField(w http.ResponseWriter, r *http.Request) {
	var in fields.DefinitionInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.respondInvalid(w, r, err.Error())
		return
	}

	def, err := s.service.CreateField(r.Context(), in)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeCreated(w, def)
}

// handleUpdateField edits a field definition. The body may rename the key.
func (s *Server) handleUpdateField(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var in fields.DefinitionInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.respondInvalid(w, r, err.Error())
		return
	}

	def, err := s.service.UpdateField(r.Context(), key, in)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, def)
}

// handleDeleteField removes an unused field definition.
func (s *Server) handleDeleteField(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteField(r.Context(), chi.URLParam(r, "key")); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, map[string]bool{"deleted": true})
}
