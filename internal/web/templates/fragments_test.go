package templates

import (
	"bytes"
	"context"
	"testing"

	"github.com/a-h/templ"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func render(t *testing.T, c templ.Component) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, c.Render(context.Background(), &buf))
	return buf.String()
}

func TestErrorAlert_EscapesMessage(t *testing.T) {
	out := render(t, ErrorAlert(`Field '<b>vip</b>' is required`, "Provide a value", "VAL003"))

	assert.Contains(t, out, "Field &#39;&lt;b&gt;vip&lt;/b&gt;&#39; is required")
	assert.NotContains(t, out, "<b>vip</b>")
	assert.Contains(t, out, "Code: VAL003")
	assert.Contains(t, out, "Provide a value")
}

func TestErrorAlert_OmitsEmptyParts(t *testing.T) {
	out := render(t, ErrorAlert("Contact not found", "", ""))

	assert.NotContains(t, out, "alert-action")
	assert.NotContains(t, out, "alert-code")
}

func TestImportResult(t *testing.T) {
	out := render(t, ImportResult(ImportSummary{
		Created:   2,
		Updated:   1,
		Failed:    1,
		ReportURL: "/api/v1/import/reports/abc.csv",
	}))

	assert.Contains(t, out, "<dt>Created</dt><dd>2</dd>")
	assert.Contains(t, out, "<dt>Skipped</dt><dd>0</dd>")
	assert.Contains(t, out, `href="/api/v1/import/reports/abc.csv"`)
}

func TestDryRunResult_ListsErrors(t *testing.T) {
	out := render(t, DryRunResult(DryRunSummary{
		Total:   3,
		Valid:   2,
		Invalid: 1,
		Errors:  []RowProblem{{Row: 2, Message: "Invalid email"}},
	}))

	assert.Contains(t, out, "<dt>Invalid</dt><dd>1</dd>")
	assert.Contains(t, out, "<li>Row 2: Invalid email</li>")
}
