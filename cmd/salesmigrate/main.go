package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"salesmigrate/internal"
	"salesmigrate/internal/catalog"
	"salesmigrate/internal/config"
	"salesmigrate/internal/connectors"
	"salesmigrate/internal/listener"
	"salesmigrate/internal/pipeline"
	"salesmigrate/internal/storage"
)

// store is everything the commands need from either database backend.
type store interface {
	pipeline.MigrationStore
	catalog.Writer
	connectors.ReportStore
	EnsureAdminUser(ctx context.Context, username string) (internal.AdminUser, error)
	ListSales(ctx context.Context, historicalOnly bool) ([]internal.Sale, error)
	ListFetchedReports(ctx context.Context, limit int) ([]internal.FetchedReport, error)
	GetMetadata(ctx context.Context, key string) (*string, error)
	Close() error
}

var (
	_ listener.Store = store(nil)
	_ store = (*storage.DB)(nil)
	_ store = (*storage.PGStore)(nil)
)

type app struct {
	cfg config.Config
	log *logrus.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{}
	root := newRootCommand(a)
	if err := root.ExecuteContext(ctx); err != nil {
		must(err)
	}
}

func newRootCommand(a *app) *cobra.Command {
	var profilePath, logLevel string

	root := &cobra.Command{
		Use:           "salesmigrate",
		Short:         "Migrate legacy POS sales reports into the store database",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if profilePath != "" {
				if err := cfg.UseProfile(profilePath); err != nil {
					return err
				}
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			a.cfg = cfg
			a.log = config.NewLogger(cfg.LogLevel, cfg.LogFormat)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&profilePath, "profile", "", "layout profile yaml (overrides LAYOUT_PROFILE)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug|info|warn|error (overrides LOG_LEVEL)")

	root.AddCommand(
		salesImportCommand(a),
		salesListCommand(a),
		catalogImportCommand(a),
		catalogListCommand(a),
		adminEnsureCommand(a),
		mailFetchCommand(a),
		mailListCommand(a),
		mailWatchCommand(a),
		reportInspectCommand(a),
		statusCommand(a),
	)
	return root
}

func (a *app) openStore(ctx context.Context) (store, error) {
	if a.cfg.DBDriver == "postgres" {
		pg, err := storage.OpenPostgres(ctx, a.cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return pg, nil
	}
	db, err := storage.Open(a.cfg.DBPath)
	if err != nil {
		return nil, err
	}
	return db, nil
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
