package listener

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"salesmigrate/internal"
	"salesmigrate/internal/config"
	"salesmigrate/internal/connectors"
	gmailconnector "salesmigrate/internal/connectors/gmail"
	imapconnector "salesmigrate/internal/connectors/imap"
	"salesmigrate/internal/pipeline"
)

// ErrAutoImportUnconfirmed is returned when auto import is on without the
// confirmation that it replaces earlier migrated history.
var ErrAutoImportUnconfirmed = errors.New("auto import replaces all earlier migrated sales; set MAIL_WATCH_REPLACE_HISTORY=true or pass --replace-history")

type Store interface {
	pipeline.MigrationStore
	connectors.ReportStore
}

// Service polls the mailbox on an interval, stores new sales reports and,
// when auto import is on, migrates the newest one.
type Service struct {
	store   Store
	cfg     config.Config
	log     logrus.FieldLogger
	connect func(ctx context.Context, provider string) (connectors.MailConnector, error)
}

type CycleResult struct {
	Fetch    connectors.FetchResult
	Imported *internal.ImportStats
}

func NewService(store Store, cfg config.Config, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{
		store: store,
		cfg:   cfg,
		log:   log,
		connect: func(ctx context.Context, provider string) (connectors.MailConnector, error) {
			return NewMailConnector(ctx, cfg, provider)
		},
	}
}

// NewMailConnector builds the connector for a provider name (gmail or imap).
func NewMailConnector(ctx context.Context, cfg config.Config, provider string) (connectors.MailConnector, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "gmail":
		return gmailconnector.NewConnector(ctx, cfg)
	case "imap":
		return imapconnector.NewConnector(cfg)
	default:
		return nil, fmt.Errorf("unsupported mail provider: %s", provider)
	}
}

func (s *Service) Run(ctx context.Context) error {
	if err := s.checkAutoImport(); err != nil {
		return err
	}
	interval := time.Duration(s.cfg.MailWatchIntervalSec) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	for {
		if _, err := s.RunCycle(ctx); err != nil {
			s.log.WithError(err).Error("watch cycle failed")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}

func (s *Service) RunCycle(ctx context.Context) (CycleResult, error) {
	if err := s.checkAutoImport(); err != nil {
		return CycleResult{}, err
	}
	provider := strings.ToLower(strings.TrimSpace(s.cfg.MailWatchProvider))
	conn, err := s.connect(ctx, provider)
	if err != nil {
		return CycleResult{}, err
	}

	fetch := connectors.NewReportFetchService(s.store, conn, s.cfg.InboxDir, s.cfg.Profile, s.log)
	res := CycleResult{}
	res.Fetch, err = fetch.FetchAndStore(ctx, s.cfg.MailWatchLabel, s.cfg.MailWatchFetchMax)
	if err != nil {
		return res, err
	}

	log := s.log.WithFields(logrus.Fields{
		"provider": provider,
		"fetched":  res.Fetch.Fetched,
		"stored":   res.Fetch.Stored,
	})

	if s.cfg.MailWatchAutoImport {
		if newest, ok := newestReport(res.Fetch.Reports); ok {
			stats, err := pipeline.NewMigrationService(s.store, s.cfg, s.log).Run(ctx, pipeline.RunOptions{Input: newest.Path})
			if err != nil {
				return res, fmt.Errorf("import %s: %w", newest.FileName, err)
			}
			res.Imported = &stats
			log = log.WithField("sales", stats.Sales)
		}
	}

	log.Info("watch cycle done")
	return res, nil
}

func (s *Service) checkAutoImport() error {
	if s.cfg.MailWatchAutoImport && !s.cfg.MailWatchReplaceHistory {
		return ErrAutoImportUnconfirmed
	}
	return nil
}

// newestReport picks the latest received report; ties go to the later one in
// fetch order.
func newestReport(reports []internal.FetchedReport) (internal.FetchedReport, bool) {
	if len(reports) == 0 {
		return internal.FetchedReport{}, false
	}
	best := reports[0]
	for _, r := range reports[1:] {
		if r.ReceivedAt >= best.ReceivedAt {
			best = r
		}
	}
	return best, true
}
