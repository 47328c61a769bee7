package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/contacts/internal/config"
	"github.com/JonMunkholm/contacts/internal/importer"
	"github.com/JonMunkholm/contacts/internal/reports"
	"github.com/JonMunkholm/contacts/internal/store"
)

// Errors returned by Service operations in place of the store's generic
// sentinels. Their text is shown to API clients as-is.
var (
	ErrFieldNotFound   = errors.New("Field definition not found")
	ErrFieldExists     = errors.New("Field key already exists")
	ErrFieldInUse      = errors.New("Field is assigned to existing contacts")
	ErrContactNotFound = errors.New("Contact not found")
	ErrContactExists   = errors.New("Contact with the same email or phone already exists")
	ErrReportNotFound  = errors.New("Report expired or not found")

	ErrInteractionNotFound = errors.New("Interaction not found")
	ErrReminderNotFound    = errors.New("Reminder not found")
)

// DefaultImportTimeout bounds a single import when Config leaves it unset.
const DefaultImportTimeout = 10 * time.Minute

// DefaultMaxFileSize is the upload limit when Config leaves it unset (10MB).
const DefaultMaxFileSize = 10 << 20

// ReportPathPrefix is where the HTTP layer serves import reports.
const ReportPathPrefix = "/api/v1/import/reports/"

// Config tunes a Service. Zero values select the package defaults.
type Config struct {
	MaxConcurrentImports int
	ImportWait           time.Duration
	ImportTimeout        time.Duration
	MaxFileSize          int64
	SampleSize           int
	ReportTTL            time.Duration
	ReportCapacity       int

	// Now overrides the clock used for report expiry.
	Now func() time.Time
}

// ConfigFrom builds a service Config from the application configuration.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		MaxConcurrentImports: cfg.Import.MaxConcurrent,
		ImportWait:           cfg.Import.MaxWaitTime,
		ImportTimeout:        cfg.Import.Timeout,
		MaxFileSize:          cfg.Import.MaxFileSize,
		SampleSize:           cfg.Import.SampleSize,
		ReportTTL:            cfg.Reports.TTL,
		ReportCapacity:       cfg.Reports.Capacity,
	}
}

// Service provides the business operations behind the HTTP API and the CLI.
type Service struct {
	store   store.Store
	reports *reports.Store
	limiter *ImportLimiter
	cfg     Config
}

// NewService creates a new Service backed by st.
func NewService(st store.Store, cfg Config) (*Service, error) {
	if cfg.ImportTimeout <= 0 {
		cfg.ImportTimeout = DefaultImportTimeout
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}
	if cfg.SampleSize <= 0 {
		cfg.SampleSize = importer.DefaultSampleSize
	}

	var opts []reports.Option
	if cfg.Now != nil {
		opts = append(opts, reports.WithClock(cfg.Now))
	}
	rs, err := reports.New(cfg.ReportTTL, cfg.ReportCapacity, opts...)
	if err != nil {
		return nil, fmt.Errorf("create report store: %w", err)
	}

	return &Service{
		store:   st,
		reports: rs,
		limiter: NewImportLimiter(cfg.MaxConcurrentImports, cfg.ImportWait),
		cfg:     cfg,
	}, nil
}

// Limiter returns the import limiter, for health reporting and shutdown.
func (s *Service) Limiter() *ImportLimiter {
	return s.limiter
}

// MaxFileSize returns the largest accepted import file in bytes.
func (s *Service) MaxFileSize() int64 {
	return s.cfg.MaxFileSize
}

// Ping checks that the store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// translate swaps the store's generic sentinels for the operation-specific
// errors above. A nil target leaves that sentinel untouched.
func translate(err, notFound, conflict error) error {
	switch {
	case err == nil:
		return nil
	case notFound != nil && errors.Is(err, store.ErrNotFound):
		return notFound
	case conflict != nil && errors.Is(err, store.ErrConflict):
		return conflict
	}
	return err
}
