package core

import (
	"bytes"
	"context"
	"encoding/csv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/contacts/internal/config"
	"github.com/JonMunkholm/contacts/internal/contact"
	"github.com/JonMunkholm/contacts/internal/fields"
	"github.com/JonMunkholm/contacts/internal/importer"
	"github.com/JonMunkholm/contacts/internal/store/memstore"
)

const importHeader = "name,company,title,email,phone,tags,note,last_interacted_at"

// fakeClock is a settable time source for report expiry.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestService(t *testing.T) (*Service, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc, err := NewService(memstore.New(), Config{
		ReportTTL: time.Hour,
		Now:       clock.Now,
	})
	require.NoError(t, err)
	return svc, clock
}

func csvFile(lines ...string) []byte {
	return []byte(strings.Join(lines, "\n") + "\n")
}

func createField(t *testing.T, svc *Service, in fields.DefinitionInput) fields.Definition {
	t.Helper()
	def, err := svc.CreateField(context.Background(), in)
	require.NoError(t, err)
	return def
}

func createContact(t *testing.T, svc *Service, in ContactInput) ContactView {
	t.Helper()
	view, err := svc.CreateContact(context.Background(), in)
	require.NoError(t, err)
	return view
}

// ----------------------------------------------------------------------------
// Fields
// ----------------------------------------------------------------------------

func TestService_CreateField(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	def := createField(t, svc, fields.DefinitionInput{
		Key: "segment", Label: "Segment", Type: fields.TypeSingleSelect, Options: []string{" A", "B", "A"},
	})
	assert.Equal(t, []string{"A", "B"}, def.Options)

	_, err := svc.CreateField(ctx, fields.DefinitionInput{Key: "segment", Label: "Again", Type: fields.TypeText})
	assert.ErrorIs(t, err, ErrFieldExists)

	_, err = svc.CreateField(ctx, fields.DefinitionInput{Key: "bad key", Label: "Bad", Type: fields.TypeText})
	assert.ErrorIs(t, err, fields.ErrInvalidDefinition)

	list, err := svc.ListFields(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "segment", list[0].Key)
}

func TestService_UpdateField_RenameMovesValues(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	createField(t, svc, fields.DefinitionInput{Key: "tier", Label: "Tier", Type: fields.TypeText})
	c := createContact(t, svc, ContactInput{
		Input:  contact.Input{Name: "Ada"},
		Custom: map[string]any{"tier": "gold"},
	})

	updated, err := svc.UpdateField(ctx, "tier", fields.DefinitionInput{Key: "level", Label: "Level", Type: fields.TypeText})
	require.NoError(t, err)
	assert.Equal(t, "level", updated.Key)

	got, err := svc.GetContact(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"level": "gold"}, got.Custom)
}

func TestService_UpdateField_IncompatibleRollsBack(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	createField(t, svc, fields.DefinitionInput{Key: "score", Label: "Score", Type: fields.TypeText})
	createContact(t, svc, ContactInput{Input: contact.Input{Name: "Ada"}, Custom: map[string]any{"score": "high"}})

	_, err := svc.UpdateField(ctx, "score", fields.DefinitionInput{Key: "points", Label: "Points", Type: fields.TypeNumber})
	require.ErrorIs(t, err, fields.ErrIncompatibleDefinition)
	assert.Equal(t, "Existing value is incompatible with the updated field definition", err.Error())

	list, err := svc.ListFields(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "score", list[0].Key)
	assert.Equal(t, fields.TypeText, list[0].Type)
}

func TestService_UpdateField_KeepsKeyWhenOmitted(t *testing.T) {
	svc, _ := newTestService(t)
	createField(t, svc, fields.DefinitionInput{Key: "tier", Label: "Tier", Type: fields.TypeText})

	updated, err := svc.UpdateField(context.Background(), "tier", fields.DefinitionInput{Label: "Customer tier", Type: fields.TypeText, Required: true})
	require.NoError(t, err)
	assert.Equal(t, "tier", updated.Key)
	assert.True(t, updated.Required)

	_, err = svc.UpdateField(context.Background(), "missing", fields.DefinitionInput{Label: "X", Type: fields.TypeText})
	assert.ErrorIs(t, err, ErrFieldNotFound)

	_, err = svc.UpdateField(context.Background(), "tier", fields.DefinitionInput{Key: "  tier", Label: "Tier", Type: fields.TypeText})
	require.ErrorIs(t, err, fields.ErrInvalidDefinition)
	assert.Equal(t, fields.KeyPatternMessage, err.Error())
}

func TestService_DeleteField(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	createField(t, svc, fields.DefinitionInput{Key: "tier", Label: "Tier", Type: fields.TypeText})
	createField(t, svc, fields.DefinitionInput{Key: "unused", Label: "Unused", Type: fields.TypeText})
	createContact(t, svc, ContactInput{Input: contact.Input{Name: "Ada"}, Custom: map[string]any{"tier": "gold"}})

	assert.ErrorIs(t, svc.DeleteField(ctx, "tier"), ErrFieldInUse)
	assert.NoError(t, svc.DeleteField(ctx, "unused"))
	assert.ErrorIs(t, svc.DeleteField(ctx, "unused"), ErrFieldNotFound)
}

// ----------------------------------------------------------------------------
// Contacts
// ----------------------------------------------------------------------------

func TestService_CreateContact(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	createField(t, svc, fields.DefinitionInput{Key: "score", Label: "Score", Type: fields.TypeNumber})

	email := "ada@Example.COM"
	view := createContact(t, svc, ContactInput{
		Input:  contact.Input{Name: "Ada", Email: &email, Tags: []string{"vip", " vip "}},
		Custom: map[string]any{"score": 10},
	})
	assert.Equal(t, "ada@example.com", *view.Email)
	assert.Equal(t, []string{"vip"}, view.Tags)
	assert.Equal(t, map[string]any{"score": int64(10)}, view.Custom)

	_, err := svc.CreateContact(ctx, ContactInput{Input: contact.Input{Name: "Other", Email: &email}})
	assert.ErrorIs(t, err, ErrContactExists)

	_, err = svc.CreateContact(ctx, ContactInput{Input: contact.Input{Name: "Bob"}, Custom: map[string]any{"nope": 1}})
	assert.ErrorIs(t, err, fields.ErrUnknownField)

	_, err = svc.CreateContact(ctx, ContactInput{Input: contact.Input{Name: ""}})
	assert.ErrorIs(t, err, contact.ErrInvalid)
}

func TestService_UpdateContact(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	createField(t, svc, fields.DefinitionInput{Key: "tier", Label: "Tier", Type: fields.TypeText, Required: true})
	createField(t, svc, fields.DefinitionInput{Key: "vip", Label: "VIP", Type: fields.TypeBool})

	company := "Acme"
	c := createContact(t, svc, ContactInput{
		Input:  contact.Input{Name: "Ada", Company: &company},
		Custom: map[string]any{"tier": "gold"},
	})

	newName := "Ada Lovelace"
	view, err := svc.UpdateContact(ctx, c.ID, ContactPatch{
		Patch:  contact.Patch{Name: contact.Optional[string]{Set: true, Value: &newName}},
		Custom: map[string]any{"vip": " True "},
	})
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", view.Name)
	assert.Equal(t, "Acme", *view.Company, "unset fields keep their value")
	assert.Equal(t, map[string]any{"tier": "gold", "vip": true}, view.Custom)

	_, err = svc.UpdateContact(ctx, c.ID, ContactPatch{Custom: map[string]any{"tier": nil}})
	require.ErrorIs(t, err, fields.ErrRequiredFieldMissing)
	assert.Equal(t, "Field 'tier' is required", err.Error())

	_, err = svc.UpdateContact(ctx, 999, ContactPatch{})
	assert.ErrorIs(t, err, ErrContactNotFound)
}

func TestService_ListContacts(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	at := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	for _, name := range []string{"Cy", "Ada", "Bob"} {
		createContact(t, svc, ContactInput{Input: contact.Input{Name: name, Tags: []string{"team-" + strings.ToLower(name)}}})
	}
	createContact(t, svc, ContactInput{Input: contact.Input{Name: "Di", LastInteractedAt: &at, Tags: []string{"vip"}}})

	page, err := svc.ListContacts(ctx, ContactQuery{Page: 1, Size: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "Ada", page[0].Name)
	assert.Equal(t, "Bob", page[1].Name)

	page, err = svc.ListContacts(ctx, ContactQuery{Page: 2, Size: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "Cy", page[0].Name)

	tagged, err := svc.ListContacts(ctx, ContactQuery{Tag: "vip"})
	require.NoError(t, err)
	require.Len(t, tagged, 1)
	assert.Equal(t, "Di", tagged[0].Name)

	after := at.Add(-time.Hour)
	recent, err := svc.ListContacts(ctx, ContactQuery{After: &after})
	require.NoError(t, err)
	require.Len(t, recent, 1)

	_, err = svc.ListContacts(ctx, ContactQuery{Size: 101})
	assert.ErrorIs(t, err, ErrInvalidQuery)
	_, err = svc.ListContacts(ctx, ContactQuery{Page: -1})
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestService_ContactViewSkipsUndecodableValues(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	svc, err := NewService(st, Config{})
	require.NoError(t, err)

	_, err = st.CreateDefinition(ctx, fields.Definition{Key: "vip", Label: "VIP", Type: fields.TypeBool})
	require.NoError(t, err)
	c, err := st.CreateContact(ctx, contact.Input{Name: "Ada"})
	require.NoError(t, err)
	require.NoError(t, st.UpsertCustomValue(ctx, c.ID, "vip", fields.Str("maybe")))
	require.NoError(t, st.UpsertCustomValue(ctx, c.ID, "ghost", fields.Str("boo")))

	view, err := svc.GetContact(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, view.Custom)
}

func TestService_DeleteContact(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	c := createContact(t, svc, ContactInput{Input: contact.Input{Name: "Ada"}})

	require.NoError(t, svc.DeleteContact(ctx, c.ID))
	assert.ErrorIs(t, svc.DeleteContact(ctx, c.ID), ErrContactNotFound)
	_, err := svc.GetContact(ctx, c.ID)
	assert.ErrorIs(t, err, ErrContactNotFound)
}

// ----------------------------------------------------------------------------
// Import
// ----------------------------------------------------------------------------

func TestService_DryRunImport(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	res, err := svc.DryRunImport(ctx, ImportRequest{
		FileName: "contacts.csv",
		Data:     csvFile(importHeader, "Ada,,,ada@example.com,,,,", ",,,,,,,"),
		Mode:     importer.ModeUpsert,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, 1, res.Valid)
	assert.Equal(t, 1, res.Invalid)

	list, err := svc.ListContacts(ctx, ContactQuery{})
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Equal(t, 0, svc.Limiter().Status().Active, "the import slot is released")
}

func TestService_ApplyImportAndFetchReport(t *testing.T) {
	ctx := context.Background()
	svc, clock := newTestService(t)

	res, err := svc.ApplyImport(ctx, ImportRequest{
		FileName: "contacts.csv",
		Data:     csvFile(importHeader, "Ada,,,ada@example.com,,,,", "Bob,,,nope,,,,"),
		Mode:     importer.ModeCreateOnly,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, "/api/v1/import/reports/"+res.Token+".csv", res.ReportURL)
	assert.Len(t, res.Token, 32)

	report, err := svc.FetchReport(res.Token)
	require.NoError(t, err)
	records, err := csv.NewReader(bytes.NewReader(report)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"created", ""}, records[1][8:])
	assert.Equal(t, []string{"failed", "Invalid email format"}, records[2][8:])

	clock.Advance(time.Hour + time.Second)
	_, err = svc.FetchReport(res.Token)
	assert.ErrorIs(t, err, ErrReportNotFound)
}

func TestService_ImportFileErrors(t *testing.T) {
	ctx := context.Background()
	svc, err := NewService(memstore.New(), Config{MaxFileSize: 64})
	require.NoError(t, err)

	_, err = svc.ApplyImport(ctx, ImportRequest{FileName: "big.csv", Data: bytes.Repeat([]byte("x"), 65)})
	assert.ErrorIs(t, err, importer.ErrFileTooLarge)

	_, err = svc.DryRunImport(ctx, ImportRequest{FileName: "short.csv", Data: csvFile("name,email")})
	assert.ErrorIs(t, err, importer.ErrMissingColumns)

	_, err = svc.DryRunImport(ctx, ImportRequest{})
	assert.ErrorIs(t, err, importer.ErrNoFile)
}

func TestService_ImportLimiterExhausted(t *testing.T) {
	svc, err := NewService(memstore.New(), Config{MaxConcurrentImports: 1, ImportWait: 10 * time.Millisecond})
	require.NoError(t, err)
	require.True(t, svc.Limiter().TryAcquire())
	defer svc.Limiter().Release()

	_, err = svc.DryRunImport(context.Background(), ImportRequest{FileName: "a.csv", Data: csvFile(importHeader)})
	assert.ErrorIs(t, err, ErrTooManyImports)
}

func TestService_SweepReports(t *testing.T) {
	svc, clock := newTestService(t)
	svc.reports.Put("old", []byte("x"))
	clock.Advance(2 * time.Hour)
	svc.reports.Put("new", []byte("y"))

	assert.Equal(t, 1, svc.sweepReports())
	assert.Equal(t, 1, svc.reports.Len())
}

func TestService_StartReportSweeperStops(t *testing.T) {
	svc, _ := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		svc.StartReportSweeper(ctx, time.Millisecond)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancellation")
	}
}

// ----------------------------------------------------------------------------
// Export
// ----------------------------------------------------------------------------

func TestService_ExportContacts(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	createField(t, svc, fields.DefinitionInput{Key: "langs", Label: "Langs", Type: fields.TypeMultiSelect, Options: []string{"go", "rust"}})
	createField(t, svc, fields.DefinitionInput{Key: "vip", Label: "VIP", Type: fields.TypeBool})

	email := "ada@example.com"
	at := time.Date(2024, 2, 1, 9, 30, 0, 0, time.UTC)
	createContact(t, svc, ContactInput{
		Input:  contact.Input{Name: "Ada", Email: &email, Tags: []string{"a", "b"}, LastInteractedAt: &at},
		Custom: map[string]any{"langs": []any{"rust", "go"}, "vip": false},
	})
	createContact(t, svc, ContactInput{Input: contact.Input{Name: "Bob", Tags: []string{"a"}}})

	var buf bytes.Buffer
	require.NoError(t, svc.ExportContacts(ctx, &buf, ExportFilter{}))
	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)

	require.Len(t, records, 3)
	assert.Equal(t, append(strings.Split(importHeader, ","), "custom.langs", "custom.vip", "last_interaction_summary"), records[0])
	assert.Equal(t, []string{"Ada", "", "", "", "", "a,b", "", "2024-02-01T09:30:00+00:00", "rust,go", "false", ""}, records[1])
	assert.Equal(t, "Bob", records[2][0])

	buf.Reset()
	require.NoError(t, svc.ExportContacts(ctx, &buf, ExportFilter{Tags: []string{"b"}, IncludePrivate: true}))
	records, err = csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "ada@example.com", records[1][3])

	from := at.Add(time.Minute)
	buf.Reset()
	require.NoError(t, svc.ExportContacts(ctx, &buf, ExportFilter{From: &from}))
	records, err = csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 1, "only the header remains")
}

func TestService_ExportIsImportable(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	createField(t, svc, fields.DefinitionInput{Key: "score", Label: "Score", Type: fields.TypeNumber})
	email := "ada@example.com"
	createContact(t, svc, ContactInput{Input: contact.Input{Name: "Ada", Email: &email}, Custom: map[string]any{"score": 4.5}})

	var buf bytes.Buffer
	require.NoError(t, svc.ExportContacts(ctx, &buf, ExportFilter{IncludePrivate: true}))

	res, err := svc.ApplyImport(ctx, ImportRequest{FileName: "export.csv", Data: buf.Bytes(), Mode: importer.ModeCreateOnly})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Failed)
	assert.Equal(t, 1, res.Skipped)
}

func TestConfigFrom(t *testing.T) {
	cfg := &config.Config{
		Import:  config.ImportConfig{MaxFileSize: 2048, MaxConcurrent: 2, MaxWaitTime: time.Second, Timeout: time.Minute, SampleSize: 5},
		Reports: config.ReportsConfig{TTL: time.Hour, Capacity: 8},
	}

	got := ConfigFrom(cfg)

	assert.Equal(t, Config{
		MaxConcurrentImports: 2,
		ImportWait:           time.Second,
		ImportTimeout:        time.Minute,
		MaxFileSize:          2048,
		SampleSize:           5,
		ReportTTL:            time.Hour,
		ReportCapacity:       8,
	}, got)
}
