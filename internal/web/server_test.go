package web

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/contacts/internal/config"
	"github.com/JonMunkholm/contacts/internal/core"
	"github.com/JonMunkholm/contacts/internal/store/memstore"
)

const (
	importHeader = "name,company,title,email,phone,tags,note,last_interacted_at"
	exportHeader = importHeader + ",last_interaction_summary"
)

func testConfig() *config.Config {
	return &config.Config{
		Server:   config.ServerConfig{Port: 8080, RequestTimeout: 10 * time.Second, ShutdownTimeout: time.Second},
		Database: config.DatabaseConfig{Driver: config.DriverMemory},
		Logging:  config.LoggingConfig{Level: "info", Format: "text"},
	}
}

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	svc, err := core.NewService(memstore.New(), core.Config{MaxFileSize: 1 << 16})
	require.NoError(t, err)
	srv := NewServer(svc, cfg)
	t.Cleanup(func() { srv.Shutdown(t.Context()) })
	return srv
}

func do(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func upload(t *testing.T, srv *Server, path string, form map[string]string, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range form {
		require.NoError(t, mw.WriteField(k, v))
	}
	if content != "" {
		fw, err := mw.CreateFormFile("file", "contacts.csv")
		require.NoError(t, err)
		_, err = io.WriteString(fw, content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

// data decodes the {"data": ...} envelope into v.
func data(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, v))
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

func csvLines(lines ...string) string {
	return strings.Join(lines, "\n") + "\n"
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, testConfig())

	rec := do(t, srv, http.MethodGet, "/health", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Status  string                   `json:"status"`
		Imports core.ImportLimiterStatus `json:"imports"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, core.DefaultMaxConcurrentImports, body.Imports.Available)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, testConfig())

	rec := do(t, srv, http.MethodGet, "/metrics", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestFieldLifecycle(t *testing.T) {
	srv := newTestServer(t, testConfig())
	tier := map[string]any{"key": "tier", "label": "Tier", "type": "single_select", "options": []string{"gold", "silver"}}

	rec := do(t, srv, http.MethodPost, "/api/v1/fields", tier)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var def struct {
		Key     string   `json:"key"`
		Options []string `json:"options"`
	}
	data(t, rec, &def)
	assert.Equal(t, "tier", def.Key)
	assert.Equal(t, []string{"gold", "silver"}, def.Options)

	rec = do(t, srv, http.MethodPost, "/api/v1/fields", tier)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "Field key already exists", errorBody(t, rec).Message)

	rec = do(t, srv, http.MethodPost, "/api/v1/contacts", map[string]any{
		"name": "Ann", "custom": map[string]any{"tier": "gold"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, srv, http.MethodDelete, "/api/v1/fields/tier", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := errorBody(t, rec)
	assert.Equal(t, CodeFieldInUse, resp.Code)
	assert.Equal(t, "Field is assigned to existing contacts", resp.Message)

	rec = do(t, srv, http.MethodPut, "/api/v1/fields/tier", map[string]any{
		"key": "level", "label": "Level", "type": "single_select", "options": []string{"gold", "silver"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, srv, http.MethodGet, "/api/v1/contacts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var contacts []core.ContactView
	data(t, rec, &contacts)
	require.Len(t, contacts, 1)
	assert.Equal(t, map[string]any{"level": "gold"}, contacts[0].Custom)

	rec = do(t, srv, http.MethodDelete, "/api/v1/fields/missing", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Field definition not found", errorBody(t, rec).Message)
}

func TestUpdateField_IncompatibleChange(t *testing.T) {
	srv := newTestServer(t, testConfig())
	do(t, srv, http.MethodPost, "/api/v1/fields", map[string]any{"key": "notes", "label": "Notes", "type": "text"})
	do(t, srv, http.MethodPost, "/api/v1/contacts", map[string]any{"name": "Ann", "custom": map[string]any{"notes": "abc"}})

	rec := do(t, srv, http.MethodPut, "/api/v1/fields/notes", map[string]any{"label": "Notes", "type": "number"})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "FLD004", errorBody(t, rec).Code)
}

func TestContactCRUD(t *testing.T) {
	srv := newTestServer(t, testConfig())

	rec := do(t, srv, http.MethodPost, "/api/v1/contacts", map[string]any{
		"name": "Ann", "email": "ann@example.com", "tags": []string{"vip", "vip"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created core.ContactView
	data(t, rec, &created)
	assert.Equal(t, []string{"vip"}, created.Tags)
	path := "/api/v1/contacts/" + itoa(created.ID)

	rec = do(t, srv, http.MethodPut, path, map[string]any{"title": "CEO"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated core.ContactView
	data(t, rec, &updated)
	require.NotNil(t, updated.Title)
	assert.Equal(t, "CEO", *updated.Title)
	assert.Equal(t, "Ann", updated.Name)

	rec = do(t, srv, http.MethodPost, "/api/v1/contacts", map[string]any{"name": "Other", "email": "ann@example.com"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "Contact with the same email or phone already exists", errorBody(t, rec).Message)

	rec = do(t, srv, http.MethodDelete, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":{"deleted":true}}`, rec.Body.String())

	rec = do(t, srv, http.MethodGet, path, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Contact not found", errorBody(t, rec).Message)
}

func TestContactValidation(t *testing.T) {
	srv := newTestServer(t, testConfig())

	tests := []struct {
		name string
		path string
		body any
	}{
		{"missing name", "/api/v1/contacts", map[string]any{"email": "a@example.com"}},
		{"invalid email", "/api/v1/contacts", map[string]any{"name": "Ann", "email": "nope"}},
		{"unknown custom field", "/api/v1/contacts", map[string]any{"name": "Ann", "custom": map[string]any{"ghost": 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
		})
	}

	rec := do(t, srv, http.MethodGet, "/api/v1/contacts/abc", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/v1/contacts?size=101", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/v1/contacts?after=yesterday", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "Invalid date format", errorBody(t, rec).Message)
}

func TestImportDryRun(t *testing.T) {
	srv := newTestServer(t, testConfig())
	file := csvLines(importHeader,
		"Ann,Acme,CEO,ann@example.com,,vip,,2024-01-01",
		"Bob,,,not-an-email,,,,",
	)

	rec := upload(t, srv, "/api/v1/import/contacts/dry-run", map[string]string{"mode": "upsert"}, file)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res struct {
		Total   int `json:"total"`
		Valid   int `json:"valid"`
		Invalid int `json:"invalid"`
		Errors  []struct {
			Row int `json:"row"`
		} `json:"errors"`
	}
	data(t, rec, &res)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, 1, res.Valid)
	assert.Equal(t, 1, res.Invalid)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 2, res.Errors[0].Row)

	rec = do(t, srv, http.MethodGet, "/api/v1/contacts", nil)
	var contacts []core.ContactView
	data(t, rec, &contacts)
	assert.Empty(t, contacts)
}

func TestImportRequestErrors(t *testing.T) {
	srv := newTestServer(t, testConfig())
	file := csvLines(importHeader, "Ann,,,,,,,")

	tests := []struct {
		name string
		form map[string]string
		file string
		want int
	}{
		{"invalid mode", map[string]string{"mode": "merge"}, file, http.StatusUnprocessableEntity},
		{"missing mode", nil, file, http.StatusUnprocessableEntity},
		{"missing file", map[string]string{"mode": "upsert"}, "", http.StatusBadRequest},
		{"missing columns", map[string]string{"mode": "upsert"}, csvLines("name,email", "Ann,"), http.StatusBadRequest},
		{"too large", map[string]string{"mode": "upsert"}, importHeader + "\n" + strings.Repeat("x", 1<<17), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := upload(t, srv, "/api/v1/import/contacts", tt.form, tt.file)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestImportApplyAndDownloadReport(t *testing.T) {
	srv := newTestServer(t, testConfig())
	file := csvLines(importHeader+",custom.tier",
		"Ann,Acme,CEO,ann@example.com,,vip,,2024-01-01,gold",
		"Bob,,,bad,,,,,",
	)

	rec := upload(t, srv, "/api/v1/import/contacts",
		map[string]string{"mode": "create_only", "auto_create_fields": "Yes"}, file)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res core.ImportResult
	data(t, rec, &res)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 1, res.Failed)
	require.True(t, strings.HasPrefix(res.ReportURL, core.ReportPathPrefix))

	rec = do(t, srv, http.MethodGet, res.ReportURL, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	token := strings.TrimSuffix(strings.TrimPrefix(res.ReportURL, core.ReportPathPrefix), ".csv")
	assert.Equal(t, "attachment; filename=import-report-"+token+".csv", rec.Header().Get("Content-Disposition"))
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasSuffix(strings.TrimSpace(lines[0]), "status,message"))

	rec = do(t, srv, http.MethodGet, "/api/v1/fields", nil)
	var defs []struct {
		Key string `json:"key"`
	}
	data(t, rec, &defs)
	require.Len(t, defs, 1)
	assert.Equal(t, "tier", defs[0].Key)

	rec = do(t, srv, http.MethodGet, core.ReportPathPrefix+"unknown.csv", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Report expired or not found", errorBody(t, rec).Message)
}

func TestImport_HTMXFragments(t *testing.T) {
	srv := newTestServer(t, testConfig())

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("mode", "bogus")
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/import/contacts", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("HX-Request", "true")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "Code: IMP002")
}

func TestExportContacts(t *testing.T) {
	srv := newTestServer(t, testConfig())
	do(t, srv, http.MethodPost, "/api/v1/contacts", map[string]any{
		"name": "Ann", "email": "ann@example.com", "tags": []string{"vip"},
		"last_interacted_at": "2024-02-01T10:00:00Z",
	})
	do(t, srv, http.MethodPost, "/api/v1/contacts", map[string]any{"name": "Bob", "tags": []string{"lead"}})

	rec := do(t, srv, http.MethodGet, "/api/v1/export/contacts.csv?tags=vip", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "attachment; filename=contacts.csv", rec.Header().Get("Content-Disposition"))
	assert.Equal(t, csvLines(exportHeader, "Ann,,,,,vip,,2024-02-01T10:00:00+00:00,"),
		strings.ReplaceAll(rec.Body.String(), "\r\n", "\n"))

	rec = do(t, srv, http.MethodGet, "/api/v1/export/contacts.csv?tags=vip&include_private=true", nil)
	assert.Contains(t, rec.Body.String(), "ann@example.com")

	rec = do(t, srv, http.MethodGet, "/api/v1/export/contacts.csv?from=2024-02-02", nil)
	assert.Equal(t, exportHeader, strings.TrimSpace(rec.Body.String()))

	rec = do(t, srv, http.MethodGet, "/api/v1/export/contacts.csv?to=not-a-date", nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "Invalid date format", errorBody(t, rec).Message)
}

func TestAPIKeyRequired(t *testing.T) {
	cfg := testConfig()
	cfg.Security = config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"secret"}}
	srv := newTestServer(t, cfg)

	rec := do(t, srv, http.MethodGet, "/api/v1/fields", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/fields", nil)
	req.Header.Set("X-API-Key", "secret")
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, srv, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 2, ImportLimit: 1}
	srv := newTestServer(t, cfg)

	for i := 0; i < 2; i++ {
		rec := do(t, srv, http.MethodGet, "/api/v1/fields", nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := do(t, srv, http.MethodGet, "/api/v1/fields", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestRateLimit_PerClientIP(t *testing.T) {
	cfg := testConfig()
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 1, ImportLimit: 1}
	srv := newTestServer(t, cfg)

	get := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/fields", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)
		return rec
	}

	rec := get("198.51.100.1:4000")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	// Same client on another port shares the budget.
	rec = get("198.51.100.1:4001")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE002", errorBody(t, rec).Code)

	rec = get("198.51.100.2:4000")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{core.ErrContactNotFound, http.StatusNotFound},
		{core.ErrReportNotFound, http.StatusNotFound},
		{core.ErrInteractionNotFound, http.StatusNotFound},
		{core.ErrReminderNotFound, http.StatusNotFound},
		{core.ErrFieldInUse, http.StatusBadRequest},
		{core.ErrContactExists, http.StatusUnprocessableEntity},
		{core.ErrTooManyImports, http.StatusServiceUnavailable},
		{&core.QueryError{Message: "page must be >= 1"}, http.StatusUnprocessableEntity},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
