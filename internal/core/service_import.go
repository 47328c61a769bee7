package core

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/contacts/internal/importer"
	"github.com/JonMunkholm/contacts/internal/logging"
	"github.com/JonMunkholm/contacts/internal/reports"
	"github.com/JonMunkholm/contacts/internal/store"
)

// ImportRequest is one uploaded file plus its import options.
type ImportRequest struct {
	FileName         string
	Data             []byte
	Mode             importer.Mode
	AutoCreateFields bool
}

// ImportResult is the outcome of an applied import.
type ImportResult struct {
	Created   int    `json:"created"`
	Updated   int    `json:"updated"`
	Skipped   int    `json:"skipped"`
	Failed    int    `json:"failed"`
	ReportURL string `json:"report_url"`
	Token     string `json:"-"`
}

// ReportURL returns the download path for a report token.
func ReportURL(token string) string {
	return ReportPathPrefix + token + ".csv"
}

// DryRunImport validates the file and previews the result. Nothing is
// written, not even fields that would be auto-created.
func (s *Service) DryRunImport(ctx context.Context, req ImportRequest) (importer.DryRunResult, error) {
	ctx, release, err := s.beginImport(ctx, req, true)
	if err != nil {
		return importer.DryRunResult{}, err
	}
	defer release()

	table, err := s.readTable(req)
	if err != nil {
		return importer.DryRunResult{}, err
	}
	return s.engine(req).DryRun(ctx, s.store, table)
}

// ApplyImport imports the file in a single transaction and keeps the
// rendered report for later download. Row failures do not fail the import;
// any storage error rolls the whole run back.
func (s *Service) ApplyImport(ctx context.Context, req ImportRequest) (ImportResult, error) {
	ctx, release, err := s.beginImport(ctx, req, false)
	if err != nil {
		return ImportResult{}, err
	}
	defer release()

	table, err := s.readTable(req)
	if err != nil {
		return ImportResult{}, err
	}

	engine := s.engine(req)
	var out *importer.Outcome
	err = s.store.InTx(ctx, func(tx store.Store) error {
		batch, err := engine.Parse(ctx, tx, table)
		if err != nil {
			return err
		}
		out, err = engine.Apply(ctx, tx, batch)
		return err
	})
	if err != nil {
		return ImportResult{}, fmt.Errorf("apply import: %w", err)
	}

	report, err := out.ReportCSV()
	if err != nil {
		return ImportResult{}, err
	}
	token := reports.NewToken()
	s.reports.Put(token, report)

	return ImportResult{
		Created:   out.Created,
		Updated:   out.Updated,
		Skipped:   out.Skipped,
		Failed:    out.Failed,
		ReportURL: ReportURL(token),
		Token:     token,
	}, nil
}

// FetchReport returns a stored report. Expired reports are purged first.
func (s *Service) FetchReport(token string) ([]byte, error) {
	s.sweepReports()
	content, ok := s.reports.Fetch(token)
	if !ok {
		return nil, ErrReportNotFound
	}
	return content, nil
}

// beginImport takes an import slot and bounds the run by the import
// timeout. The returned release must be called when the import ends.
func (s *Service) beginImport(ctx context.Context, req ImportRequest, dryRun bool) (context.Context, func(), error) {
	if len(req.Data) == 0 && req.FileName == "" {
		return nil, nil, importer.NewFileError(importer.ErrNoFile, "No file provided")
	}
	if int64(len(req.Data)) > s.cfg.MaxFileSize {
		return nil, nil, importer.NewFileError(importer.ErrFileTooLarge,
			fmt.Sprintf("File exceeds maximum size limit (%d bytes)", s.cfg.MaxFileSize))
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ImportTimeout)

	logging.WithFields(ctx,
		"file", req.FileName,
		"mode", req.Mode,
		"dry_run", dryRun,
		"bytes", len(req.Data),
	).Info("import started")

	return ctx, func() {
		cancel()
		s.limiter.Release()
	}, nil
}

func (s *Service) readTable(req ImportRequest) (*importer.Table, error) {
	return importer.ReadTable(req.FileName, req.Data)
}

func (s *Service) engine(req ImportRequest) *importer.Engine {
	return importer.NewEngine(importer.Options{
		Mode:             req.Mode,
		AutoCreateFields: req.AutoCreateFields,
		SampleSize:       s.cfg.SampleSize,
	})
}
