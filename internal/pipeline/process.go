package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"salesmigrate/internal"
	"salesmigrate/internal/catalog"
	"salesmigrate/internal/config"
	"salesmigrate/internal/util"
)

type RunStore interface {
	InsertRun(ctx context.Context, stats internal.ImportStats) error
	SetMetadata(ctx context.Context, key, value string) error
}

type MigrationStore interface {
	SalesStore
	CatalogSource
	RunStore
}

type RunOptions struct {
	Input         string
	DryRun        bool
	PurgeAll      bool
	ReportPath    string
	UnmatchedPath string
}

type MigrationService struct {
	store MigrationStore
	cfg   config.Config
	log   logrus.FieldLogger
}

func NewMigrationService(store MigrationStore, cfg config.Config, log logrus.FieldLogger) *MigrationService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &MigrationService{store: store, cfg: cfg, log: log}
}

// Run executes read, assemble, reconcile and load for one report file, then
// writes the run report. The returned error is set only for failures that
// abort the run before or during cleanup.
func (s *MigrationService) Run(ctx context.Context, opts RunOptions) (internal.ImportStats, error) {
	started := time.Now().UTC()
	runID := uuid.NewString()
	log := s.log.WithFields(logrus.Fields{"run": runID, "input": opts.Input})

	grid, err := ReadGrid(opts.Input)
	if err != nil {
		return internal.ImportStats{}, err
	}

	invoices, assembly := NewAssembler(s.cfg.Profile, log).Assemble(grid)
	log.WithFields(logrus.Fields{
		"rows":     assembly.Rows,
		"invoices": assembly.Invoices,
		"dropped":  assembly.Dropped,
		"skipped":  assembly.SkippedLines,
	}).Info("report assembled")

	products, err := s.store.ListProducts(ctx)
	if err != nil {
		return internal.ImportStats{}, fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
	}
	index := catalog.BuildIndex(products)
	if index.Len() == 0 {
		log.Warn("catalog is empty, every line will be recorded as unmatched")
	}

	normalizer := NewNormalizer(s.cfg.Profile.NameFixes)
	reconciler := NewReconciler(index, normalizer, s.cfg.Profile.MinPartialLength)
	loader := NewLoader(s.store, reconciler, LoadOptions{
		ImportedFrom:  s.cfg.ImportedFrom,
		PaymentMethod: s.cfg.DefaultPaymentMethod,
		PurgeAll:      opts.PurgeAll,
		DryRun:        opts.DryRun,
	}, log)

	stats, err := loader.Load(ctx, invoices)
	if err != nil {
		return stats, err
	}
	stats.RunID = runID
	stats.Source = opts.Input
	stats.StartedAt = started
	stats.Dropped = assembly.Dropped

	reportPath := util.FirstNonEmpty(opts.ReportPath, s.cfg.ReportPath)
	if reportPath != "" {
		if err := WriteReport(reportPath, stats, s.cfg.ReportMaxErrors); err != nil {
			return stats, fmt.Errorf("write report: %w", err)
		}
	}

	unmatchedPath := util.FirstNonEmpty(opts.UnmatchedPath, s.cfg.UnmatchedExportPath)
	if unmatchedPath != "" && len(stats.UnmatchedLines) > 0 {
		if err := ExportUnmatchedToXLSX(stats.UnmatchedLines, unmatchedPath); err != nil {
			log.WithError(err).Warn("unmatched export failed")
		}
	}

	if !opts.DryRun {
		if err := s.store.InsertRun(ctx, stats); err != nil {
			log.WithError(err).Warn("run ledger not updated")
		}
		if err := s.store.SetMetadata(ctx, "sales.last_import", stats.FinishedAt.Format(time.RFC3339)); err != nil {
			log.WithError(err).Warn("last import time not recorded")
		}
	}

	log.WithFields(logrus.Fields{
		"sales":     stats.Sales,
		"items":     stats.SaleItems,
		"unmatched": stats.Unmatched,
		"skipped":   stats.Skipped,
		"total":     stats.TotalAmount.StringFixed(2),
	}).Info("migration finished")
	return stats, nil
}
