package internal

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type CellKind int

const (
	CellEmpty CellKind = iota
	CellText
	CellNumber
)

type Cell struct {
	Kind   CellKind
	Text   string
	Number float64
}

func TextCell(s string) Cell {
	if s == "" {
		return Cell{}
	}
	return Cell{Kind: CellText, Text: s}
}

func NumberCell(v float64) Cell {
	return Cell{Kind: CellNumber, Number: v, Text: strconv.FormatFloat(v, 'f', -1, 64)}
}

// SourceNumberCell is a number read from text. The text is kept so codes
// like "00123" or 13-digit barcodes come back unchanged from String.
func SourceNumberCell(v float64, source string) Cell {
	c := NumberCell(v)
	if s := strings.TrimSpace(source); s != "" {
		c.Text = s
	}
	return c
}

func (c Cell) IsEmpty() bool {
	return c.Kind == CellEmpty || (c.Kind == CellText && strings.TrimSpace(c.Text) == "")
}

// String returns the cell as trimmed text. Numbers give their source text,
// or the value without trailing zeros when there is none.
func (c Cell) String() string {
	switch c.Kind {
	case CellNumber:
		if t := strings.TrimSpace(c.Text); t != "" {
			return t
		}
		return strconv.FormatFloat(c.Number, 'f', -1, 64)
	case CellText:
		return strings.TrimSpace(c.Text)
	default:
		return ""
	}
}

type Row []Cell

// At never fails: indexes past the end of a short row read as empty cells.
func (r Row) At(idx int) Cell {
	if idx < 0 || idx >= len(r) {
		return Cell{}
	}
	return r[idx]
}

type Grid []Row

type RowKind int

const (
	RowOther RowKind = iota
	RowInvoiceHeader
	RowItemTableHeader
	RowItem
	RowTotalsMarker
	RowCustomerMarker
)

func (k RowKind) String() string {
	switch k {
	case RowInvoiceHeader:
		return "InvoiceHeader"
	case RowItemTableHeader:
		return "ItemTableHeader"
	case RowItem:
		return "ItemRow"
	case RowTotalsMarker:
		return "TotalsMarker"
	case RowCustomerMarker:
		return "CustomerMarker"
	default:
		return "Other"
	}
}

type ClassifiedRow struct {
	Index       int
	Kind        RowKind
	Row         Row
	InvoiceNo   string
	InvoiceDate string
	Label       string
	Value       decimal.Decimal
}

type RawInvoiceItem struct {
	RowNumber  int
	Code       string
	Name       string
	HSN        string
	TaxPercent decimal.Decimal
	Quantity   float64
	UnitPrice  decimal.Decimal
	NetAmount  decimal.Decimal
	TaxAmount  decimal.Decimal
	LineTotal  decimal.Decimal
}

type RawInvoice struct {
	Number     string
	DateRaw    string
	Date       time.Time
	StartRow   int
	Items      []RawInvoiceItem
	GrandTotal *decimal.Decimal
	Discount   *decimal.Decimal
}

type VariantRecord struct {
	ID        int64
	ProductID int64
	Code      string
	Barcode   string
	SKU       string
	Size      string
	Color     string
	Price     decimal.Decimal
	Cost      decimal.Decimal
	Stock     int
}

type ProductRecord struct {
	ID         int64
	CategoryID int64
	Name       string
	Variants   []VariantRecord
}

type CanonicalProductRef struct {
	ProductID    int64
	VariantID    int64
	ProductName  string
	VariantPrice decimal.Decimal
}

type MatchStatus string

type MatchReason string

const (
	MatchMatched   MatchStatus = "MATCHED"
	MatchUnmatched MatchStatus = "UNMATCHED"

	ReasonCode    MatchReason = "CODE"
	ReasonName    MatchReason = "NAME"
	ReasonPartial MatchReason = "PARTIAL"
	ReasonNone    MatchReason = "NONE"
)

type MatchResult struct {
	Status         MatchStatus
	Reason         MatchReason
	Product        *CanonicalProductRef
	NormalizedName string
}

type AdminUser struct {
	ID       int64
	Username string
	Role     string
}

type Sale struct {
	ID              int64
	BillNo          int64
	Date            time.Time
	Subtotal        decimal.Decimal
	Tax             decimal.Decimal
	Discount        decimal.Decimal
	GrandTotal      decimal.Decimal
	PaymentMethod   string
	IsHistorical    bool
	ImportedFrom    string
	UserID          int64
	SourceInvoiceNo string
	Items           []SaleItem
}

type SaleItem struct {
	ProductID  *int64
	VariantID  *int64
	Name       string
	Quantity   float64
	UnitPrice  decimal.Decimal
	TaxPercent decimal.Decimal
	TaxAmount  decimal.Decimal
	Total      decimal.Decimal
	Unmatched  bool
}

type UnmatchedLine struct {
	InvoiceNo      string
	RowNumber      int
	Code           string
	RawName        string
	NormalizedName string
	Quantity       float64
	LineTotal      decimal.Decimal
}

type ImportStats struct {
	RunID          string
	Source         string
	StartedAt      time.Time
	FinishedAt     time.Time
	DryRun         bool
	Invoices       int
	Sales          int
	SaleItems      int
	Unmatched      int
	Skipped        int
	Dropped        int
	TotalAmount    decimal.Decimal
	Errors         []string
	UnmatchedLines []UnmatchedLine
}

type FetchedMailMessage struct {
	Provider   string
	MessageID  string
	Subject    string
	From       string
	ReceivedAt string
	Raw        []byte
}

type FetchedReport struct {
	ID         int64
	Provider   string
	MessageID  string
	FileName   string
	Path       string
	Hash       string
	ReceivedAt string
	Score      float64
}
