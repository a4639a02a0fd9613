package connectors

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"salesmigrate/internal"
	"salesmigrate/internal/config"
)

const salesCSV = ",,,,,,,Invoice No/Date :,,1 / 02-04-2025\r\n" +
	"Sl. No,Code,Item name,HSN,Tax %,Qty,Rate,Net,Tax,Total\r\n" +
	"1,C1,formal shrt 999,6205,5,2,500,1000,50,1050\r\n" +
	",,,Grand Total,,,,,,1050\r\n"

func reportMail() []byte {
	return []byte("From: shop@example.com\r\n" +
		"To: owner@example.com\r\n" +
		"Subject: Daily sales\r\n" +
		"Message-ID: <r1@example.com>\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: multipart/mixed; boundary=\"XYZ\"\r\n" +
		"\r\n" +
		"--XYZ\r\n" +
		"Content-Type: text/plain\r\n" +
		"\r\n" +
		"report attached\r\n" +
		"--XYZ\r\n" +
		"Content-Type: text/csv; name=\"sales.csv\"\r\n" +
		"Content-Disposition: attachment; filename=\"sales.csv\"\r\n" +
		"\r\n" +
		salesCSV +
		"--XYZ\r\n" +
		"Content-Type: text/csv; name=\"notes.csv\"\r\n" +
		"Content-Disposition: attachment; filename=\"notes.csv\"\r\n" +
		"\r\n" +
		"a,b\r\nc,d\r\n" +
		"--XYZ\r\n" +
		"Content-Type: text/plain; name=\"readme.txt\"\r\n" +
		"Content-Disposition: attachment; filename=\"readme.txt\"\r\n" +
		"\r\n" +
		"ignore me\r\n" +
		"--XYZ--\r\n")
}

type fakeConnector struct {
	messages []internal.FetchedMailMessage
	err      error
	label    string
	max      int
}

func (f *fakeConnector) FetchInbox(_ context.Context, label string, max int) ([]internal.FetchedMailMessage, error) {
	f.label, f.max = label, max
	return f.messages, f.err
}

type memReportStore struct {
	rows map[string]internal.FetchedReport
}

func (m *memReportStore) UpsertFetchedReport(_ context.Context, r internal.FetchedReport) (internal.FetchedReport, error) {
	key := r.Provider + "|" + r.MessageID + "|" + r.Hash
	if existing, ok := m.rows[key]; ok {
		r.ID = existing.ID
	} else {
		r.ID = int64(len(m.rows) + 1)
	}
	m.rows[key] = r
	return r, nil
}

func TestFetchAndStoreKeepsOnlySalesReports(t *testing.T) {
	inbox := t.TempDir()
	conn := &fakeConnector{messages: []internal.FetchedMailMessage{
		{Provider: "imap", MessageID: "<r1@example.com>", ReceivedAt: "2025-04-02T10:00:00Z", Raw: reportMail()},
	}}
	store := &memReportStore{rows: map[string]internal.FetchedReport{}}

	svc := NewReportFetchService(store, conn, inbox, config.DefaultProfile(), nil)
	res, err := svc.FetchAndStore(context.Background(), "INBOX", 10)
	if err != nil {
		t.Fatal(err)
	}
	if conn.label != "INBOX" || conn.max != 10 {
		t.Fatalf("connector called with %q/%d", conn.label, conn.max)
	}
	if res.Fetched != 1 || res.Attachments != 2 || res.Stored != 1 || res.Skipped != 1 {
		t.Fatalf("res=%+v", res)
	}

	report := res.Reports[0]
	if report.FileName != "sales.csv" || report.Score < 0.75 {
		t.Fatalf("report=%+v", report)
	}
	if filepath.Dir(report.Path) != inbox || !strings.HasSuffix(report.Path, report.Hash+".csv") {
		t.Fatalf("path=%s", report.Path)
	}
	blob, err := os.ReadFile(report.Path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(blob), "Grand Total") {
		t.Fatalf("stored content=%q", blob)
	}

	again, err := svc.FetchAndStore(context.Background(), "INBOX", 10)
	if err != nil {
		t.Fatal(err)
	}
	if again.Reports[0].ID != report.ID || len(store.rows) != 1 {
		t.Fatalf("refetch duplicated the report: %+v", store.rows)
	}
}

func TestFetchAndStorePropagatesConnectorError(t *testing.T) {
	conn := &fakeConnector{err: errors.New("auth failed")}
	store := &memReportStore{rows: map[string]internal.FetchedReport{}}

	_, err := NewReportFetchService(store, conn, t.TempDir(), config.DefaultProfile(), nil).
		FetchAndStore(context.Background(), "INBOX", 5)
	if err == nil || !strings.Contains(err.Error(), "auth failed") {
		t.Fatalf("err=%v", err)
	}
}

func TestReportFileStoreDeduplicates(t *testing.T) {
	files := NewReportFileStore(filepath.Join(t.TempDir(), "inbox"))
	p1, h1, err := files.Save("A.XLS", []byte("same"))
	if err != nil {
		t.Fatal(err)
	}
	p2, h2, err := files.Save("b.xls", []byte("same"))
	if err != nil {
		t.Fatal(err)
	}
	if p1 != p2 || h1 != h2 || !strings.HasSuffix(p1, ".xls") {
		t.Fatalf("p1=%s p2=%s", p1, p2)
	}
}
