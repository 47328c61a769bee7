package web

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/contacts/internal/core"
)

// handleListContacts lists contacts with keyword, tag and
// last-interacted filters.
func (s *Server) handleListContacts(w http.ResponseWriter, r *http.Request) {
	q := core.ContactQuery{
		Keyword: r.URL.Query().Get("keyword"),
		Tag:     r.URL.Query().Get("tag"),
	}

	var err error
	if q.Page, err = parseIntParam(r, "page", 1); err != nil {
		s.respondInvalid(w, r, err.Error())
		return
	}
	if q.Size, err = parseIntParam(r, "size", core.DefaultPageSize); err != nil {
		s.respondInvalid(w, r, err.Error())
		return
	}
	if q.Before, err = parseTimeParam(r, "last_interacted_before", "before"); err != nil {
		s.respondInvalid(w, r, err.Error())
		return
	}
	if q.After, err = parseTimeParam(r, "last_interacted_after", "after"); err != nil {
		s.respondInvalid(w, r, err.Error())
		return
	}

	contacts, err := s.service.ListContacts(r.Context(), q)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if contacts == nil {
		contacts = []core.ContactView{}
	}
	writeJSON(w, contacts)
}

// handleCreateContact creates a contact with optional custom values.
func (s *Server) handleCreateContact(w http.ResponseWriter, r *http.Request) {
	var in core.ContactInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.respondInvalid(w, r, err.Error())
		return
	}

	view, err := s.service.CreateContact(r.Context(), in)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeCreated(w, view)
}

// handleGetContact returns one contact with its decoded custom values.
func (s *Server) handleGetContact(w http.ResponseWriter, r *http.Request) {
	id, ok := s.contactID(w, r)
	if !ok {
		return
	}

	view, err := s.service.GetContact(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, view)
}

// handleUpdateContact applies a partial update.
func (s *Server) handleUpdateContact(w http.ResponseWriter, r *http.Request) {
	id, ok := s.contactID(w, r)
	if !ok {
		return
	}

	var p core.ContactPatch
	if err := decodeJSON(w, r, &p); err != nil {
		s.respondInvalid(w, r, err.Error())
		return
	}

	view, err := s.service.UpdateContact(r.Context(), id, p)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, view)
}

// handleDeleteContact deletes a contact and its custom values.
func (s *Server) handleDeleteContact(w http.ResponseWriter, r *http.Request) {
	id, ok := s.contactID(w, r)
	if !ok {
		return
	}

	if err := s.service.DeleteContact(r.Context(), id); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, map[string]bool{"deleted": true})
}

// contactID parses the {id} URL parameter, responding 422 when malformed.
func (s *Server) contactID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	return s.pathID(w, r, "Contact")
}

// pathID parses the {id} URL parameter of a resource.
func (s *Server) pathID(w http.ResponseWriter, r *http.Request, resource string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		s.respondInvalid(w, r, resource+" id must be a positive integer")
		return 0, false
	}
	return id, true
}
