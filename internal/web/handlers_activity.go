package web

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/JonMunkholm/contacts/internal/contact"
	"github.com/JonMunkholm/contacts/internal/core"
)

// handleListInteractions lists interactions newest first, optionally for a
// single contact and within from/to bounds.
func (s *Server) handleListInteractions(w http.ResponseWriter, r *http.Request) {
	var (
		q   core.InteractionQuery
		err error
	)
	if raw := strings.TrimSpace(r.URL.Query().Get("contact_id")); raw != "" {
		q.ContactID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil || q.ContactID <= 0 {
			s.respondInvalid(w, r, "contact_id must be a positive integer")
			return
		}
	}
	if q.From, err = parseTimeParam(r, "from"); err != nil {
		s.respondInvalid(w, r, err.Error())
		return
	}
	if q.To, err = parseTimeParam(r, "to"); err != nil {
		s.respondInvalid(w, r, err.Error())
		return
	}

	list, err := s.service.ListInteractions(r.Context(), q)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if list == nil {
		list = []contact.Interaction{}
	}
	writeJSON(w, list)
}

// handleCreateInteraction records an interaction for a contact.
func (s *Server) handleCreateInteraction(w http.ResponseWriter, r *http.Request) {
	var in contact.InteractionInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.respondInvalid(w, r, err.Error())
		return
	}

	i, err := s.service.CreateInteraction(r.Context(), in)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeCreated(w, i)
}

// handleUpdateInteraction applies a partial update.
func (s *Server) handleUpdateInteraction(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "Interaction")
	if !ok {
		return
	}

	var p contact.InteractionPatch
	if err := decodeJSON(w, r, &p); err != nil {
		s.respondInvalid(w, r, err.Error())
		return
	}

	i, err := s.service.UpdateInteraction(r.Context(), id, p)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, i)
}

func (s *Server) handleDeleteInteraction(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "Interaction")
	if !ok {
		return
	}

	if err := s.service.DeleteInteraction(r.Context(), id); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, map[string]bool{"deleted": true})
}

// handleListReminders lists reminders by date. from and to take
// YYYY-MM-DD; done filters on completion.
func (s *Server) handleListReminders(w http.ResponseWriter, r *http.Request) {
	var (
		q   core.ReminderQuery
		err error
	)
	if q.From, err = parseDateParam(r, "from"); err != nil {
		s.respondInvalid(w, r, err.Error())
		return
	}
	if q.To, err = parseDateParam(r, "to"); err != nil {
		s.respondInvalid(w, r, err.Error())
		return
	}
	if raw := r.URL.Query().Get("done"); strings.TrimSpace(raw) != "" {
		done := parseBool(raw)
		q.Done = &done
	}

	list, err := s.service.ListReminders(r.Context(), q)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if list == nil {
		list = []contact.Reminder{}
	}
	writeJSON(w, list)
}

func (s *Server) handleCreateReminder(w http.ResponseWriter, r *http.Request) {
	var in contact.ReminderInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.respondInvalid(w, r, err.Error())
		return
	}

	rem, err := s.service.CreateReminder(r.Context(), in)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeCreated(w, rem)
}

func (s *Server) handleUpdateReminder(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "Reminder")
	if !ok {
		return
	}

	var p contact.ReminderPatch
	if err := decodeJSON(w, r, &p); err != nil {
		s.respondInvalid(w, r, err.Error())
		return
	}

	rem, err := s.service.UpdateReminder(r.Context(), id, p)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, rem)
}

func (s *Server) handleDeleteReminder(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "Reminder")
	if !ok {
		return
	}

	if err := s.service.DeleteReminder(r.Context(), id); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, map[string]bool{"deleted": true})
}
