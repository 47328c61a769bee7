package web

// errors.go provides unified error response handling for the web layer.
//
// The error flow:
//  1. Handler encounters an error
//  2. Calls respondError(w, r, err)
//  3. The HTTP status is chosen from the error kind
//  4. Error is mapped via core.MapError to get a user-friendly message
//  5. Technical error + context is logged with request ID for correlation
//  6. User message is rendered as JSON, or as an alert fragment for HTMX

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"github.com/JonMunkholm/contacts/internal/contact"
	"github.com/JonMunkholm/contacts/internal/core"
	"github.com/JonMunkholm/contacts/internal/fields"
	"github.com/JonMunkholm/contacts/internal/importer"
	"github.com/JonMunkholm/contacts/internal/logging"
	"github.com/JonMunkholm/contacts/internal/web/templates"
)

// CodeFieldInUse is the response code for deleting a field that still has
// stored values.
const CodeFieldInUse = "FIELD_IN_USE"

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError logs err and writes the mapped user message with the status
// for its kind.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := core.MapError(err)
	if errors.Is(err, core.ErrFieldInUse) {
		msg.Code = CodeFieldInUse
	}

	log := logging.FromContext(r.Context()).With(
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"code", msg.Code,
		"error", err.Error(),
	)
	if status >= http.StatusInternalServerError {
		log.Error("request error")
	} else {
		log.Info("request rejected")
	}

	s.writeUserMessage(w, r, status, msg)
}

// respondInvalid rejects a malformed request parameter or body with 422.
func (s *Server) respondInvalid(w http.ResponseWriter, r *http.Request, message string) {
	logging.FromContext(r.Context()).Info("invalid request",
		"path", r.URL.Path,
		"method", r.Method,
		"reason", message,
	)
	s.writeUserMessage(w, r, http.StatusUnprocessableEntity, core.UserMessage{
		Message: message,
		Action:  "Correct the request and try again",
		Code:    "REQ001",
	})
}

func (s *Server) writeUserMessage(w http.ResponseWriter, r *http.Request, status int, msg core.UserMessage) {
	if isHTMX(r) {
		renderErrorPartial(w, r, msg, status)
		return
	}
	writeErrorBody(w, status, ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// statusFor maps an error kind to its HTTP status.
func statusFor(err error) int {
	var (
		fieldErr   *fields.ValidationError
		contactErr *contact.Error
		queryErr   *core.QueryError
		fileErr    *importer.FileError
	)
	switch {
	case errors.Is(err, core.ErrFieldNotFound),
		errors.Is(err, core.ErrContactNotFound),
		errors.Is(err, core.ErrReportNotFound),
		errors.Is(err, core.ErrInteractionNotFound),
		errors.Is(err, core.ErrReminderNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrFieldInUse):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrFieldExists),
		errors.Is(err, core.ErrContactExists),
		errors.Is(err, importer.ErrInvalidMode):
		return http.StatusUnprocessableEntity
	case errors.As(err, &fileErr):
		return http.StatusBadRequest
	case errors.As(err, &fieldErr),
		errors.As(err, &contactErr),
		errors.As(err, &queryErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrTooManyImports):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeErrorBody writes a JSON error response.
func writeErrorBody(w http.ResponseWriter, status int, body ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// renderErrorPartial renders an HTMX-compatible error fragment.
func renderErrorPartial(w http.ResponseWriter, r *http.Request, msg core.UserMessage, status int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	templates.ErrorAlert(msg.Message, msg.Action, msg.Code).Render(r.Context(), w)
}

// isHTMX checks if the request is an HTMX request.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// clientIP strips the port from a RemoteAddr.
func clientIP(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
