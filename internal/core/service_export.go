package core

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/JonMunkholm/contacts/internal/contact"
	"github.com/JonMunkholm/contacts/internal/fields"
	"github.com/JonMunkholm/contacts/internal/importer"
	"github.com/JonMunkholm/contacts/internal/store"
)

// SummaryColumn is the trailing export column. Imports ignore it.
const SummaryColumn = "last_interaction_summary"

// ExportFilter narrows ExportContacts. From and To are inclusive bounds on
// last_interacted_at.
type ExportFilter struct {
	Tags           []string
	From           *time.Time
	To             *time.Time
	IncludePrivate bool
}

// ExportContacts writes every matching contact as CSV in the import file
// layout: the core columns followed by one custom.<key> column per field
// definition, sorted by key, and a last_interaction_summary column
// describing each contact's newest interaction. Email and phone are blank unless
// IncludePrivate is set.
func (s *Service) ExportContacts(ctx context.Context, w io.Writer, filter ExportFilter) error {
	catalog, err := loadCatalog(ctx, s.store)
	if err != nil {
		return err
	}
	keys := catalog.Keys()

	contacts, err := s.store.ListContacts(ctx, store.ContactFilter{Tags: filter.Tags})
	if err != nil {
		return err
	}
	matched := contacts[:0]
	for _, c := range contacts {
		if inRange(c.LastInteractedAt, filter.From, filter.To) {
			matched = append(matched, c)
		}
	}

	ids := make([]int64, len(matched))
	for i, c := range matched {
		ids[i] = c.ID
	}
	values, err := s.store.LoadCustomValues(ctx, ids)
	if err != nil {
		return err
	}
	latest, err := s.store.LatestInteractions(ctx, ids)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	header := append([]string(nil), importer.RequiredColumns...)
	for _, key := range keys {
		header = append(header, importer.CustomPrefix+key)
	}
	header = append(header, SummaryColumn)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write export header: %w", err)
	}

	for _, c := range matched {
		record := exportRow(c, filter.IncludePrivate)
		for _, key := range keys {
			record = append(record, exportValue(catalog[key], values[c.ID][key]))
		}
		var summary string
		if i, ok := latest[c.ID]; ok {
			summary = i.LatestSummary(importer.FormatTimestamp)
		}
		record = append(record, summary)
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write contact %d: %w", c.ID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func inRange(t, from, to *time.Time) bool {
	if from == nil && to == nil {
		return true
	}
	if t == nil {
		return false
	}
	if from != nil && t.Before(*from) {
		return false
	}
	if to != nil && t.After(*to) {
		return false
	}
	return true
}

// exportRow renders the core columns in importer.RequiredColumns order.
func exportRow(c contact.Contact, includePrivate bool) []string {
	var email, phone, last string
	if includePrivate {
		email, phone = deref(c.Email), deref(c.Phone)
	}
	if c.LastInteractedAt != nil {
		last = importer.FormatTimestamp(*c.LastInteractedAt)
	}
	return []string{
		c.Name,
		deref(c.Company),
		deref(c.Title),
		email,
		phone,
		strings.Join(c.Tags, ","),
		deref(c.Note),
		last,
	}
}

// exportValue renders a stored value the way an import reads it back. A
// value that no longer decodes is written as stored.
func exportValue(def fields.Definition, stored *string) string {
	decoded, err := fields.Decode(def, stored)
	if err != nil {
		return deref(stored)
	}
	switch v := decoded.(type) {
	case nil:
		return ""
	case []string:
		return strings.Join(v, ",")
	case bool:
		if v {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprint(v)
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
