package pipeline

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"salesmigrate/internal"
)

var (
	ErrNoAdminUser        = errors.New("no admin user to attribute migrated sales to")
	ErrCatalogUnavailable = errors.New("catalog unavailable")
)

// SalesStore is the part of the target store the loader writes to.
type SalesStore interface {
	FindAdminUser(ctx context.Context) (*internal.AdminUser, error)
	DeleteHistoricalSales(ctx context.Context) (int64, error)
	DeleteAllSales(ctx context.Context) (int64, error)
	MaxBillNo(ctx context.Context, includeHistorical bool) (int64, error)
	InsertSale(ctx context.Context, sale internal.Sale) (int64, error)
}

type CatalogSource interface {
	ListProducts(ctx context.Context) ([]internal.ProductRecord, error)
}

type LoadOptions struct {
	ImportedFrom  string
	PaymentMethod string
	PurgeAll      bool
	DryRun        bool
}

type Loader struct {
	store      SalesStore
	reconciler *Reconciler
	opts       LoadOptions
	log        logrus.FieldLogger
}

var invoiceDigits = regexp.MustCompile(`^\D*(\d+)\D*$`)

func NewLoader(store SalesStore, reconciler *Reconciler, opts LoadOptions, log logrus.FieldLogger) *Loader {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if opts.PaymentMethod == "" {
		opts.PaymentMethod = "CASH"
	}
	return &Loader{store: store, reconciler: reconciler, opts: opts, log: log}
}

// Load purges earlier historical sales and writes one sale per invoice, each
// in its own transaction. Only precondition and cleanup failures are
// returned as errors; per-invoice failures land in the stats.
func (l *Loader) Load(ctx context.Context, invoices []internal.RawInvoice) (internal.ImportStats, error) {
	stats := internal.ImportStats{
		StartedAt:   time.Now().UTC(),
		DryRun:      l.opts.DryRun,
		Invoices:    len(invoices),
		TotalAmount: decimal.Zero,
	}

	admin, err := l.store.FindAdminUser(ctx)
	if err != nil {
		return stats, fmt.Errorf("find admin user: %w", err)
	}
	if admin == nil {
		return stats, ErrNoAdminUser
	}

	maxBill, err := l.cleanup(ctx)
	if err != nil {
		return stats, err
	}
	next := maxBill + 1

	for _, inv := range invoices {
		log := l.log.WithFields(logrus.Fields{"invoice": inv.Number, "row": inv.StartRow + 1})

		if inv.Date.IsZero() {
			stats.Skipped++
			stats.Errors = append(stats.Errors, fmt.Sprintf("invoice %s (row %d): unparseable date %q", inv.Number, inv.StartRow+1, inv.DateRaw))
			log.Warn("skipping invoice with unparseable date")
			continue
		}

		sale, unmatched := l.buildSale(inv, admin.ID)
		sale.BillNo = billNumber(inv.Number, next)

		if !l.opts.DryRun {
			id, err := l.store.InsertSale(ctx, sale)
			if err != nil {
				stats.Skipped++
				stats.Errors = append(stats.Errors, fmt.Sprintf("invoice %s (row %d): %v", inv.Number, inv.StartRow+1, err))
				log.WithError(err).Warn("invoice not imported")
				continue
			}
			sale.ID = id
		}
		next = sale.BillNo + 1

		stats.Sales++
		stats.SaleItems += len(sale.Items)
		stats.TotalAmount = stats.TotalAmount.Add(sale.GrandTotal)
		for _, line := range unmatched {
			stats.Unmatched++
			stats.UnmatchedLines = append(stats.UnmatchedLines, line)
			stats.Errors = append(stats.Errors, fmt.Sprintf("invoice %s (row %d): unmatched item %q code=%q", line.InvoiceNo, line.RowNumber, line.RawName, line.Code))
		}
		log.WithFields(logrus.Fields{"bill": sale.BillNo, "items": len(sale.Items), "unmatched": len(unmatched)}).Debug("invoice imported")
	}

	stats.FinishedAt = time.Now().UTC()
	return stats, nil
}

func (l *Loader) cleanup(ctx context.Context) (int64, error) {
	if l.opts.DryRun {
		if l.opts.PurgeAll {
			return 0, nil
		}
		maxBill, err := l.store.MaxBillNo(ctx, false)
		if err != nil {
			return 0, fmt.Errorf("read max bill number: %w", err)
		}
		return maxBill, nil
	}

	var (
		removed int64
		err     error
	)
	if l.opts.PurgeAll {
		removed, err = l.store.DeleteAllSales(ctx)
	} else {
		removed, err = l.store.DeleteHistoricalSales(ctx)
	}
	if err != nil {
		return 0, fmt.Errorf("purge previous import: %w", err)
	}
	l.log.WithFields(logrus.Fields{"removed": removed, "all": l.opts.PurgeAll}).Info("previous sales purged")

	maxBill, err := l.store.MaxBillNo(ctx, true)
	if err != nil {
		return 0, fmt.Errorf("read max bill number: %w", err)
	}
	return maxBill, nil
}

func (l *Loader) buildSale(inv internal.RawInvoice, userID int64) (internal.Sale, []internal.UnmatchedLine) {
	sale := internal.Sale{
		Date:            inv.Date,
		Subtotal:        decimal.Zero,
		Tax:             decimal.Zero,
		Discount:        decimal.Zero,
		GrandTotal:      decimal.Zero,
		PaymentMethod:   l.opts.PaymentMethod,
		IsHistorical:    true,
		ImportedFrom:    l.opts.ImportedFrom,
		UserID:          userID,
		SourceInvoiceNo: inv.Number,
	}
	if inv.Discount != nil {
		sale.Discount = *inv.Discount
	}

	unmatched := []internal.UnmatchedLine{}
	for _, raw := range inv.Items {
		res := l.reconciler.Resolve(raw)
		qty := decimal.NewFromFloat(raw.Quantity)

		net := raw.NetAmount
		if net.IsZero() {
			net = raw.UnitPrice.Mul(qty)
		}
		total := raw.LineTotal
		if total.IsZero() {
			total = net.Add(raw.TaxAmount)
		}

		item := internal.SaleItem{
			Name:       res.NormalizedName,
			Quantity:   raw.Quantity,
			UnitPrice:  raw.UnitPrice,
			TaxPercent: raw.TaxPercent,
			TaxAmount:  raw.TaxAmount,
			Total:      total,
		}
		if item.Name == "" {
			item.Name = raw.Name
		}
		if res.Status == internal.MatchMatched {
			item.Name = res.Product.ProductName
			item.ProductID = &res.Product.ProductID
			if res.Product.VariantID != 0 {
				item.VariantID = &res.Product.VariantID
			}
		} else {
			item.Unmatched = true
			unmatched = append(unmatched, internal.UnmatchedLine{
				InvoiceNo:      inv.Number,
				RowNumber:      raw.RowNumber,
				Code:           raw.Code,
				RawName:        raw.Name,
				NormalizedName: res.NormalizedName,
				Quantity:       raw.Quantity,
				LineTotal:      total,
			})
		}

		sale.Items = append(sale.Items, item)
		sale.Subtotal = sale.Subtotal.Add(net)
		sale.Tax = sale.Tax.Add(raw.TaxAmount)
		sale.GrandTotal = sale.GrandTotal.Add(total)
	}

	if sale.GrandTotal.IsZero() && inv.GrandTotal != nil {
		sale.GrandTotal = *inv.GrandTotal
	}
	return sale, unmatched
}

// billNumber keeps the source invoice number when it is usable and does not
// go backwards; otherwise the next free number is assigned.
func billNumber(source string, next int64) int64 {
	m := invoiceDigits.FindStringSubmatch(source)
	if m == nil {
		return next
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || n < next {
		return next
	}
	return n
}
