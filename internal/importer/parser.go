package importer

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/contacts/internal/contact"
	"github.com/JonMunkholm/contacts/internal/fields"
)

// timestampLayouts are tried in order for last_interacted_at. Layouts in
// the first group carry a UTC offset; the rest are read as UTC.
var (
	zonedLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02 15:04:05.999999999Z07:00",
		"2006-01-02T15:04Z07:00",
		"2006-01-02 15:04Z07:00",
	}
	naiveLayouts = []string{
		"2006-01-02T15:04:05.999999999",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02T15:04",
		"2006-01-02 15:04",
		"2006-01-02T15",
		"2006-01-02",
	}
)

// Row is a data row that parsed cleanly and is ready to apply.
type Row struct {
	Index    int
	Original []string
	Contact  contact.Input
	// Custom holds the encoded custom field delta. A nil entry clears the
	// stored value.
	Custom   fields.Values
	Sample   Sample
	Existing *contact.Contact
}

// Sample is the dry-run preview of a parsed row.
type Sample struct {
	Name             string             `json:"name"`
	Company          *string            `json:"company"`
	Title            *string            `json:"title"`
	Email            *string            `json:"email"`
	Phone            *string            `json:"phone"`
	Tags             []string           `json:"tags"`
	Note             *string            `json:"note"`
	Custom           map[string]*string `json:"custom"`
	LastInteractedAt *string            `json:"last_interacted_at"`
}

// parser converts raw rows into Rows. It owns the working definition
// catalog, which grows when unknown custom columns are auto-created.
type parser struct {
	table          *Table
	customColumns  []string
	catalog        fields.Catalog
	autoCreate     bool
	created        []fields.Definition
	existing       map[string]contact.Contact
	existingValues map[int64]fields.Values
}

func (p *parser) parse(index int, raw []string) (*Row, error) {
	name := strings.TrimSpace(p.cell(raw, "name"))
	if name == "" {
		return nil, errors.New("name is required")
	}

	in := contact.Input{
		Name:    name,
		Company: cleanOptional(p.cell(raw, "company")),
		Title:   cleanOptional(p.cell(raw, "title")),
		Email:   cleanOptional(p.cell(raw, "email")),
		Phone:   cleanOptional(p.cell(raw, "phone")),
		Tags:    splitList(p.cell(raw, "tags")),
		Note:    cleanOptional(p.cell(raw, "note")),
	}

	lastInteracted, naive, err := parseTimestamp(p.cell(raw, "last_interacted_at"))
	if err != nil {
		return nil, err
	}
	in.LastInteractedAt = lastInteracted

	in, err = contact.Validate(in)
	if err != nil {
		return nil, err
	}

	row := &Row{
		Index:    index,
		Original: p.table.Aligned(raw),
		Contact:  in,
	}

	var existingValues fields.Values
	if c, ok := p.existing[identityKey(in)]; ok {
		row.Existing = &c
		existingValues = p.existingValues[c.ID]
	}

	row.Custom, err = p.customValues(raw, existingValues)
	if err != nil {
		return nil, err
	}

	row.Sample = Sample{
		Name:    in.Name,
		Company: in.Company,
		Title:   in.Title,
		Email:   in.Email,
		Phone:   in.Phone,
		Tags:    in.Tags,
		Note:    in.Note,
		Custom:  p.sampleCustom(raw),
	}
	if lastInteracted != nil {
		iso := isoformat(*lastInteracted, naive)
		row.Sample.LastInteractedAt = &iso
	}
	return row, nil
}

func (p *parser) cell(raw []string, column string) string {
	v, _ := p.table.Cell(raw, column)
	return v
}

func (p *parser) customValues(raw []string, existing fields.Values) (fields.Values, error) {
	updates := make(fields.Values, len(p.customColumns))
	for _, col := range p.customColumns {
		key := strings.TrimPrefix(col, CustomPrefix)
		def, err := p.ensureDefinition(key)
		if err != nil {
			return nil, err
		}

		cell, ok := p.table.Cell(raw, col)
		if !ok || strings.TrimSpace(cell) == "" {
			updates[key] = nil
			continue
		}

		var value any = cell
		if def.Type == fields.TypeMultiSelect {
			items := splitList(cell)
			if items == nil {
				items = []string{}
			}
			value = items
		}

		encoded, err := fields.Encode(def, value)
		if err != nil {
			return nil, err
		}
		updates[key] = encoded
	}

	if err := fields.CheckRequired(p.catalog, existing.Merge(updates)); err != nil {
		return nil, err
	}
	return updates, nil
}

// ensureDefinition returns the definition for key, synthesizing a text
// definition when auto-creation is enabled.
func (p *parser) ensureDefinition(key string) (fields.Definition, error) {
	if def, ok := p.catalog[key]; ok {
		return def, nil
	}
	if !p.autoCreate {
		return fields.Definition{}, fmt.Errorf("Unknown custom field '%s'", key)
	}
	if !fields.ValidKey(key) {
		return fields.Definition{}, errors.New(fields.KeyPatternMessage)
	}

	def := fields.Definition{Key: key, Label: key, Type: fields.TypeText}
	p.catalog[key] = def
	p.created = append(p.created, def)
	return def, nil
}

func (p *parser) sampleCustom(raw []string) map[string]*string {
	out := make(map[string]*string, len(p.customColumns))
	for _, col := range p.customColumns {
		key := strings.TrimPrefix(col, CustomPrefix)
		if v, ok := p.table.Cell(raw, col); ok {
			out[key] = &v
		} else {
			out[key] = nil
		}
	}
	return out
}

// identityKey derives the key used to match a row against existing
// contacts: email first, then phone, then a random key that never matches.
func identityKey(in contact.Input) string {
	if in.Email != nil {
		return "email:" + *in.Email
	}
	if in.Phone != nil {
		return "phone:" + *in.Phone
	}
	return "row:" + uuid.NewString()
}

func cleanOptional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// splitList splits a comma separated cell, trimming items and dropping
// empty ones. It returns nil when nothing is left.
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// parseTimestamp parses an ISO 8601 timestamp. A blank cell yields nil.
// naive reports whether the input had no UTC offset.
func parseTimestamp(s string) (t *time.Time, naive bool, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false, nil
	}
	for _, layout := range zonedLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			return &parsed, false, nil
		}
	}
	for _, layout := range naiveLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			return &parsed, true, nil
		}
	}
	return nil, false, errors.New("Invalid last_interacted_at format")
}

// ParseTimestamp parses s with the layouts accepted for
// last_interacted_at cells. Naive values are read as UTC.
func ParseTimestamp(s string) (*time.Time, error) {
	t, _, err := parseTimestamp(s)
	return t, err
}

// FormatTimestamp renders a stored timestamp the way imports accept it back.
func FormatTimestamp(t time.Time) string {
	return isoformat(t, false)
}

// isoformat renders t with microsecond precision, omitting the fraction
// when it is zero and the offset when the input had none.
func isoformat(t time.Time, naive bool) string {
	layout := "2006-01-02T15:04:05"
	if t.Nanosecond()/1000 != 0 {
		layout += ".000000"
	}
	if !naive {
		layout += "-07:00"
	}
	return t.Format(layout)
}
