package connectors

import (
	"context"

	"salesmigrate/internal"
)

// MailConnector pulls raw messages from one mailbox. label is a Gmail label
// id or an IMAP folder name.
type MailConnector interface {
	FetchInbox(ctx context.Context, label string, max int) ([]internal.FetchedMailMessage, error)
}

type ReportStore interface {
	UpsertFetchedReport(ctx context.Context, r internal.FetchedReport) (internal.FetchedReport, error)
}
