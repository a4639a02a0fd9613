package connectors

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"salesmigrate/internal"
	"salesmigrate/internal/config"
	"salesmigrate/internal/pipeline"
)

// ReportFetchService pulls mail, keeps the attachments that look like legacy
// sales reports and records them for a later sales:import.
type ReportFetchService struct {
	store     ReportStore
	connector MailConnector
	files     *ReportFileStore
	profile   config.Profile
	log       logrus.FieldLogger
}

type FetchResult struct {
	Fetched     int
	Attachments int
	Stored      int
	Skipped     int
	Reports     []internal.FetchedReport
}

func NewReportFetchService(store ReportStore, connector MailConnector, inboxDir string, profile config.Profile, log logrus.FieldLogger) *ReportFetchService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &ReportFetchService{
		store:     store,
		connector: connector,
		files:     NewReportFileStore(inboxDir),
		profile:   profile,
		log:       log,
	}
}

func (s *ReportFetchService) FetchAndStore(ctx context.Context, label string, max int) (FetchResult, error) {
	messages, err := s.connector.FetchInbox(ctx, label, max)
	if err != nil {
		return FetchResult{}, err
	}

	res := FetchResult{Fetched: len(messages)}
	for _, msg := range messages {
		log := s.log.WithFields(logrus.Fields{"provider": msg.Provider, "message": msg.MessageID})

		attachments, _, err := pipeline.MailReportAttachments(msg.Raw)
		if err != nil {
			log.WithError(err).Warn("message not parsed")
			res.Skipped++
			continue
		}

		for _, att := range attachments {
			res.Attachments++
			grid, err := pipeline.ReadGridBytes(att.FileName, att.Content)
			if err != nil {
				log.WithError(err).WithField("file", att.FileName).Debug("attachment not readable")
				res.Skipped++
				continue
			}
			detected := pipeline.DetectSalesReport(grid, s.profile)
			if !detected.IsSalesReport {
				log.WithFields(logrus.Fields{"file": att.FileName, "score": detected.Score}).Debug("attachment is not a sales report")
				res.Skipped++
				continue
			}

			path, hash, err := s.files.Save(att.FileName, att.Content)
			if err != nil {
				return res, fmt.Errorf("store %s: %w", att.FileName, err)
			}
			report, err := s.store.UpsertFetchedReport(ctx, internal.FetchedReport{
				Provider:   msg.Provider,
				MessageID:  msg.MessageID,
				FileName:   att.FileName,
				Path:       path,
				Hash:       hash,
				ReceivedAt: msg.ReceivedAt,
				Score:      detected.Score,
			})
			if err != nil {
				return res, fmt.Errorf("record %s: %w", att.FileName, err)
			}
			res.Stored++
			res.Reports = append(res.Reports, report)
			log.WithFields(logrus.Fields{"file": att.FileName, "path": path}).Info("sales report stored")
		}
	}

	return res, nil
}
