// Package importer reconciles an uploaded contact table with the stored
// contacts.
//
// An import runs in two phases. Parse reads every row, validates it and
// matches it to an existing contact by email or phone without writing
// anything; the resulting Batch is all a dry run needs. Apply then walks the
// parsed rows in file order and creates, updates or skips contacts. Rows
// later in the file see contacts created by earlier rows, so duplicate rows
// collapse into one contact.
package importer

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/JonMunkholm/contacts/internal/contact"
	"github.com/JonMunkholm/contacts/internal/fields"
	"github.com/JonMunkholm/contacts/internal/logging"
)

// Mode decides what happens to rows that match an existing contact.
type Mode string

const (
	// ModeCreateOnly skips rows that match an existing contact.
	ModeCreateOnly Mode = "create_only"
	// ModeUpsert overwrites matched contacts with the row.
	ModeUpsert Mode = "upsert"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeCreateOnly, ModeUpsert:
		return Mode(s), nil
	}
	return "", fileError(ErrInvalidMode, "%s", ErrInvalidMode.Error())
}

// DefaultSampleSize is the number of parsed rows shown in a dry run.
const DefaultSampleSize = 3

// Options configure an import run.
type Options struct {
	Mode             Mode
	AutoCreateFields bool
	SampleSize       int
}

// Records is the storage the engine reads from and writes to. Apply must be
// given a transactional view so that one run commits as a unit.
type Records interface {
	ListDefinitions(ctx context.Context) ([]fields.Definition, error)
	CreateDefinition(ctx context.Context, def fields.Definition) (fields.Definition, error)
	FindByAlternateKeys(ctx context.Context, emails, phones []string) ([]contact.Contact, error)
	LoadCustomValues(ctx context.Context, contactIDs []int64) (map[int64]fields.Values, error)
	CreateContact(ctx context.Context, in contact.Input) (contact.Contact, error)
	UpdateContact(ctx context.Context, id int64, in contact.Input) (contact.Contact, error)
	UpsertCustomValue(ctx context.Context, contactID int64, key string, value *string) error
}

// Batch is the parsed form of one upload.
type Batch struct {
	Mode   Mode
	Header []string
	Rows   []*Row
	Errors []*RowError
	// NewDefinitions are auto-created definitions. They are only persisted
	// by Apply.
	NewDefinitions []fields.Definition
}

// Total returns the number of data rows in the upload.
func (b *Batch) Total() int {
	return len(b.Rows) + len(b.Errors)
}

// ErrorSummary is one failed row in a dry-run result.
type ErrorSummary struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// SampleRow is one previewed row in a dry-run result.
type SampleRow struct {
	RowIndex int    `json:"row_index"`
	Parsed   Sample `json:"parsed"`
}

// DryRunResult is the outcome of a dry run.
type DryRunResult struct {
	Total   int            `json:"total"`
	Valid   int            `json:"valid"`
	Invalid int            `json:"invalid"`
	Errors  []ErrorSummary `json:"errors"`
	Sample  []SampleRow    `json:"sample"`
}

// DryRun summarizes the batch, previewing at most sampleSize valid rows.
func (b *Batch) DryRun(sampleSize int) DryRunResult {
	if sampleSize <= 0 {
		sampleSize = DefaultSampleSize
	}
	res := DryRunResult{
		Total:   b.Total(),
		Valid:   len(b.Rows),
		Invalid: len(b.Errors),
		Errors:  make([]ErrorSummary, 0, len(b.Errors)),
		Sample:  make([]SampleRow, 0, min(sampleSize, len(b.Rows))),
	}
	for _, e := range b.Errors {
		res.Errors = append(res.Errors, ErrorSummary{Row: e.Row, Message: e.Message})
	}
	for _, row := range b.Rows[:min(sampleSize, len(b.Rows))] {
		res.Sample = append(res.Sample, SampleRow{RowIndex: row.Index, Parsed: row.Sample})
	}
	return res
}

// Engine runs imports.
type Engine struct {
	opts Options
}

// NewEngine returns an engine for opts. An empty mode defaults to
// create_only.
func NewEngine(opts Options) *Engine {
	if opts.Mode == "" {
		opts.Mode = ModeCreateOnly
	}
	if opts.SampleSize <= 0 {
		opts.SampleSize = DefaultSampleSize
	}
	return &Engine{opts: opts}
}

// Options returns the engine configuration.
func (e *Engine) Options() Options {
	return e.opts
}

// Parse validates every row of table and matches rows to existing contacts.
// It never writes to records. Row problems are collected in Batch.Errors;
// only storage failures are returned as errors.
func (e *Engine) Parse(ctx context.Context, records Records, table *Table) (*Batch, error) {
	defs, err := records.ListDefinitions(ctx)
	if err != nil {
		return nil, fmt.Errorf("load field definitions: %w", err)
	}

	existing, err := e.lookupExisting(ctx, records, table)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(existing))
	for _, c := range existing {
		if !slices.Contains(ids, c.ID) {
			ids = append(ids, c.ID)
		}
	}
	existingValues, err := records.LoadCustomValues(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load custom values: %w", err)
	}

	p := &parser{
		table:          table,
		customColumns:  table.CustomColumns(),
		catalog:        fields.NewCatalog(defs),
		autoCreate:     e.opts.AutoCreateFields,
		existing:       existing,
		existingValues: existingValues,
	}

	batch := &Batch{Mode: e.opts.Mode, Header: table.Header}
	for i, raw := range table.Rows {
		if i%100 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		index := i + 1
		row, err := p.parse(index, raw)
		if err != nil {
			batch.Errors = append(batch.Errors, &RowError{
				Row:      index,
				Message:  err.Error(),
				Original: table.Aligned(raw),
			})
			continue
		}
		batch.Rows = append(batch.Rows, row)
	}
	batch.NewDefinitions = p.created

	for _, def := range p.created {
		logging.FromContext(ctx).Debug("custom field auto-created", "key", def.Key)
	}
	return batch, nil
}

// lookupExisting bulk-loads contacts sharing an email or phone with any row
// and indexes them by identity key.
func (e *Engine) lookupExisting(ctx context.Context, records Records, table *Table) (map[string]contact.Contact, error) {
	var emails, phones []string
	for _, raw := range table.Rows {
		if email, _ := table.Cell(raw, "email"); strings.TrimSpace(email) != "" {
			email = strings.TrimSpace(email)
			emails = appendUnique(emails, email)
			if normalized, ok := fields.NormalizeEmail(email); ok {
				emails = appendUnique(emails, normalized)
			}
		}
		if phone, _ := table.Cell(raw, "phone"); strings.TrimSpace(phone) != "" {
			phones = appendUnique(phones, strings.TrimSpace(phone))
		}
	}

	index := make(map[string]contact.Contact)
	if len(emails) == 0 && len(phones) == 0 {
		return index, nil
	}

	found, err := records.FindByAlternateKeys(ctx, emails, phones)
	if err != nil {
		return nil, fmt.Errorf("look up existing contacts: %w", err)
	}
	for _, c := range found {
		if c.Email != nil {
			index["email:"+*c.Email] = c
		}
		if c.Phone != nil {
			index["phone:"+*c.Phone] = c
		}
	}
	return index, nil
}

func appendUnique(list []string, s string) []string {
	if slices.Contains(list, s) {
		return list
	}
	return append(list, s)
}

// Status is the outcome of one row.
type Status string

const (
	StatusCreated Status = "created"
	StatusUpdated Status = "updated"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// SkippedMessage is the report message for rows skipped in create_only mode.
const SkippedMessage = "Existing contact skipped"

// ReportEntry is one line of the import report.
type ReportEntry struct {
	Row      int
	Original []string
	Status   Status
	Message  string
}

// Outcome is the result of Apply.
type Outcome struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`

	Header  []string      `json:"-"`
	Entries []ReportEntry `json:"-"`
}

// Apply writes the batch in file order. records should be a transactional
// view; any error it returns aborts the run and the caller must roll back.
func (e *Engine) Apply(ctx context.Context, records Records, batch *Batch) (*Outcome, error) {
	start := time.Now()

	for _, def := range batch.NewDefinitions {
		if _, err := records.CreateDefinition(ctx, def); err != nil {
			return nil, fmt.Errorf("create field %q: %w", def.Key, err)
		}
	}

	out := &Outcome{
		Header:  batch.Header,
		Entries: make([]ReportEntry, 0, batch.Total()),
	}
	byEmail := make(map[string]contact.Contact)
	byPhone := make(map[string]contact.Contact)

	for _, row := range batch.Rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		email, phone := row.Contact.Email, row.Contact.Phone
		var current *contact.Contact
		if row.Existing != nil {
			c := *row.Existing
			current = &c
		}
		if c, ok := lookup(byEmail, email); ok {
			current = &c
		} else if c, ok := lookup(byPhone, phone); ok {
			current = &c
		}

		entry := ReportEntry{Row: row.Index, Original: row.Original}
		switch {
		case current == nil:
			created, err := records.CreateContact(ctx, row.Contact)
			if err != nil {
				return nil, fmt.Errorf("row %d: create contact: %w", row.Index, err)
			}
			if err := upsertValues(ctx, records, created.ID, row.Custom); err != nil {
				return nil, fmt.Errorf("row %d: %w", row.Index, err)
			}
			current = &created
			entry.Status = StatusCreated
			out.Created++

		case batch.Mode == ModeCreateOnly:
			entry.Status = StatusSkipped
			entry.Message = SkippedMessage
			out.Skipped++

		default:
			updated, err := records.UpdateContact(ctx, current.ID, row.Contact)
			if err != nil {
				return nil, fmt.Errorf("row %d: update contact %d: %w", row.Index, current.ID, err)
			}
			if err := upsertValues(ctx, records, updated.ID, row.Custom); err != nil {
				return nil, fmt.Errorf("row %d: %w", row.Index, err)
			}
			current = &updated
			entry.Status = StatusUpdated
			out.Updated++
		}

		if email != nil {
			byEmail[*email] = *current
		}
		if phone != nil {
			byPhone[*phone] = *current
		}
		out.Entries = append(out.Entries, entry)
	}

	for _, rowErr := range batch.Errors {
		out.Entries = append(out.Entries, ReportEntry{
			Row:      rowErr.Row,
			Original: rowErr.Original,
			Status:   StatusFailed,
			Message:  rowErr.Message,
		})
	}
	out.Failed = len(batch.Errors)

	slices.SortStableFunc(out.Entries, func(a, b ReportEntry) int {
		return a.Row - b.Row
	})

	observeApply(batch.Mode, out, time.Since(start))
	logging.FromContext(ctx).Info("import applied",
		slog.String("mode", string(batch.Mode)),
		slog.Int("created", out.Created),
		slog.Int("updated", out.Updated),
		slog.Int("skipped", out.Skipped),
		slog.Int("failed", out.Failed),
		slog.Duration("duration", time.Since(start)),
	)
	return out, nil
}

func lookup(m map[string]contact.Contact, key *string) (contact.Contact, bool) {
	if key == nil {
		return contact.Contact{}, false
	}
	c, ok := m[*key]
	return c, ok
}

func upsertValues(ctx context.Context, records Records, contactID int64, values fields.Values) error {
	for _, key := range values.Keys() {
		if err := records.UpsertCustomValue(ctx, contactID, key, values[key]); err != nil {
			return fmt.Errorf("store field %q: %w", key, err)
		}
	}
	return nil
}

// DryRun parses table and summarizes the result without writing anything.
func (e *Engine) DryRun(ctx context.Context, records Records, table *Table) (DryRunResult, error) {
	start := time.Now()
	batch, err := e.Parse(ctx, records, table)
	if err != nil {
		return DryRunResult{}, err
	}
	res := batch.DryRun(e.opts.SampleSize)
	observeDryRun(batch.Mode, res, time.Since(start))
	return res, nil
}
