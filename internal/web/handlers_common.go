package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/contacts/internal/contact"
	"github.com/JonMunkholm/contacts/internal/importer"
)

// maxJSONBody bounds request bodies for field and contact writes (1MB).
const maxJSONBody = 1 << 20

// errInvalidDate is reported for unparseable date query parameters.
var errInvalidDate = errors.New("Invalid date format")

// decodeJSON reads a single JSON document from the request body. Numbers in
// untyped values stay json.Number so custom number fields keep their
// precision.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("Request body is empty")
		}
		return errors.New("Request body is not valid JSON")
	}
	return nil
}

// parseIntParam parses an integer query parameter. Absent values yield
// defaultVal; malformed values yield an error.
func parseIntParam(r *http.Request, name string, defaultVal int) (int, error) {
	val := strings.TrimSpace(r.URL.Query().Get(name))
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return 0, errors.New(name + " must be an integer")
	}
	return i, nil
}

// parseTimeParam reads the first non-empty query parameter among names.
func parseTimeParam(r *http.Request, names ...string) (*time.Time, error) {
	for _, name := range names {
		val := strings.TrimSpace(r.URL.Query().Get(name))
		if val == "" {
			continue
		}
		t, err := importer.ParseTimestamp(val)
		if err != nil {
			return nil, errInvalidDate
		}
		return t, nil
	}
	return nil, nil
}

// parseDateParam reads a YYYY-MM-DD query parameter.
func parseDateParam(r *http.Request, name string) (*contact.Date, error) {
	val := strings.TrimSpace(r.URL.Query().Get(name))
	if val == "" {
		return nil, nil
	}
	d, err := contact.ParseDate(val)
	if err != nil {
		return nil, errInvalidDate
	}
	return &d, nil
}

// parseBool accepts 1/true/yes/on, case-insensitively, as true.
func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// splitTags reads repeated and comma-separated tag parameters.
func splitTags(values []string) []string {
	var tags []string
	for _, v := range values {
		for _, tag := range strings.Split(v, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				tags = append(tags, tag)
			}
		}
	}
	return tags
}
