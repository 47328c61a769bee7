// Package templates renders the HTMX fragments returned by the web layer
// when a request carries the HX-Request header.
package templates

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"
)

// ErrorAlert renders a dismissible error box with the support code.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<div class="alert alert-error" role="alert">`)
		b.WriteString(`<p class="alert-message">`)
		b.WriteString(templ.EscapeString(message))
		b.WriteString(`</p>`)
		if action != "" {
			b.WriteString(`<p class="alert-action">`)
			b.WriteString(templ.EscapeString(action))
			b.WriteString(`</p>`)
		}
		if code != "" {
			b.WriteString(`<p class="alert-code">Code: `)
			b.WriteString(templ.EscapeString(code))
			b.WriteString(`</p>`)
		}
		b.WriteString(`</div>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

// ImportSummary holds the counts shown after an applied import.
type ImportSummary struct {
	Created   int
	Updated   int
	Skipped   int
	Failed    int
	ReportURL string
}

// ImportResult renders the outcome of an applied import with a report link.
func ImportResult(s ImportSummary) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<div class="import-result">`)
		writeCounts(&b, []count{
			{"Created", s.Created},
			{"Updated", s.Updated},
			{"Skipped", s.Skipped},
			{"Failed", s.Failed},
		})
		if s.ReportURL != "" {
			b.WriteString(`<a class="report-link" href="`)
			b.WriteString(templ.EscapeString(string(templ.URL(s.ReportURL))))
			b.WriteString(`" download>Download report</a>`)
		}
		b.WriteString(`</div>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

// RowProblem is one invalid row listed by DryRunResult.
type RowProblem struct {
	Row     int
	Message string
}

// DryRunSummary holds the counts and first errors of a dry run.
type DryRunSummary struct {
	Total   int
	Valid   int
	Invalid int
	Errors  []RowProblem
}

// DryRunResult renders a dry-run preview.
func DryRunResult(s DryRunSummary) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<div class="dry-run-result">`)
		writeCounts(&b, []count{
			{"Rows", s.Total},
			{"Valid", s.Valid},
			{"Invalid", s.Invalid},
		})
		if len(s.Errors) > 0 {
			b.WriteString(`<ul class="row-errors">`)
			for _, e := range s.Errors {
				fmt.Fprintf(&b, `<li>Row %d: %s</li>`, e.Row, templ.EscapeString(e.Message))
			}
			b.WriteString(`</ul>`)
		}
		b.WriteString(`</div>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

type count struct {
	label string
	n     int
}

func writeCounts(b *strings.Builder, counts []count) {
	b.WriteString(`<dl class="counts">`)
	for _, c := range counts {
		fmt.Fprintf(b, `<dt>%s</dt><dd>%d</dd>`, c.label, c.n)
	}
	b.WriteString(`</dl>`)
}
