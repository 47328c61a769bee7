package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/contacts/internal/config"
	"github.com/JonMunkholm/contacts/internal/core"
	"github.com/JonMunkholm/contacts/internal/logging"
	"github.com/JonMunkholm/contacts/internal/storage"
)

type globalOptions struct {
	EnvFile string
}

func newRootCmd() *cobra.Command {
	var opts globalOptions

	cmd := &cobra.Command{
		Use:           "contactsctl",
		Short:         "Import contacts and inspect custom fields",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", "", "dotenv file to load (default .env)")

	cmd.AddCommand(newImportCmd(&opts))
	cmd.AddCommand(newFieldsCmd(&opts))
	cmd.AddCommand(newMigrateCmd(&opts))
	return cmd
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorText(err))
		os.Exit(1)
	}
}

// errorText prefers the user-facing message for known errors.
func errorText(err error) string {
	if core.IsUserFacing(err) {
		return core.FormatUserError(err)
	}
	return err.Error()
}

// loadConfig reads configuration and routes logs to stderr so stdout only
// carries command output.
func loadConfig(opts *globalOptions) (*config.Config, error) {
	var files []string
	if opts.EnvFile != "" {
		files = append(files, opts.EnvFile)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logging.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Format))
	return cfg, nil
}

// openService opens the configured store and builds the service on it.
// The returned close func releases the store.
func openService(ctx context.Context, opts *globalOptions) (*core.Service, func(), error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, nil, err
	}
	db, err := storage.Open(ctx, cfg.Database, cfg.Database.AutoMigrate)
	if err != nil {
		return nil, nil, err
	}
	service, err := core.NewService(db.Store, core.ConfigFrom(cfg))
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return service, db.Close, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
