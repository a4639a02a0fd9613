package catalog

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"salesmigrate/internal"
	"salesmigrate/internal/util"
)

// Writer is the part of the store the catalog importer needs.
type Writer interface {
	UpsertCategory(ctx context.Context, name string) (int64, bool, error)
	UpsertProduct(ctx context.Context, categoryID int64, name string) (int64, bool, error)
	UpsertVariant(ctx context.Context, v internal.VariantRecord) (int64, bool, error)
	SetMetadata(ctx context.Context, key, value string) error
}

// NameNormalizer cleans product names before they become catalog keys, so
// catalog names and sale-line names meet in the same form.
type NameNormalizer interface {
	Normalize(raw string) string
}

var ErrNoCatalogRows = errors.New("catalog file has no product rows")

var headerAliases = map[string]string{
	"name":          "name",
	"product":       "name",
	"product name":  "name",
	"item":          "name",
	"item name":     "name",
	"description":   "name",
	"code":          "code",
	"item code":     "code",
	"product code":  "code",
	"barcode":       "barcode",
	"bar code":      "barcode",
	"ean":           "barcode",
	"sku":           "sku",
	"category":      "category",
	"group":         "category",
	"size":          "size",
	"color":         "color",
	"colour":        "color",
	"price":         "price",
	"mrp":           "price",
	"rate":          "price",
	"selling price": "price",
	"sell price":    "price",
	"cost":          "cost",
	"cost price":    "cost",
	"purchase rate": "cost",
	"stock":         "stock",
	"qty":           "stock",
	"quantity":      "stock",
}

type CatalogRow struct {
	Line     int
	Name     string
	Code     string
	Barcode  string
	SKU      string
	Category string
	Size     string
	Color    string
	Price    decimal.Decimal
	Cost     decimal.Decimal
	Stock    int
}

type ImportResult struct {
	Rows       int
	Categories int
	Products   int
	Variants   int
	Skipped    int
	Errors     []string
}

type Importer struct {
	store Writer
	names NameNormalizer
	log   logrus.FieldLogger
}

func NewImporter(store Writer, names NameNormalizer, log logrus.FieldLogger) *Importer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Importer{store: store, names: names, log: log}
}

// ImportFile loads a product sheet (.xlsx or .csv) into the catalog tables.
// A failed row is recorded and skipped; only unreadable files abort.
func (im *Importer) ImportFile(ctx context.Context, path string) (ImportResult, error) {
	raw, err := readSheet(path)
	if err != nil {
		return ImportResult{}, err
	}
	rows, err := ParseCatalogRows(raw)
	if err != nil {
		return ImportResult{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return im.Import(ctx, rows)
}

func (im *Importer) Import(ctx context.Context, rows []CatalogRow) (ImportResult, error) {
	res := ImportResult{}
	categories := map[string]int64{}

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Rows++

		name := util.CollapseSpaces(row.Name)
		if im.names != nil {
			name = im.names.Normalize(row.Name)
		}
		if name == "" {
			res.Skipped++
			continue
		}

		var categoryID int64
		if category := util.CollapseSpaces(row.Category); category != "" {
			key := strings.ToLower(category)
			id, ok := categories[key]
			if !ok {
				var created bool
				var err error
				id, created, err = im.store.UpsertCategory(ctx, category)
				if err != nil {
					res.Skipped++
					res.Errors = append(res.Errors, fmt.Sprintf("row %d: category %q: %v", row.Line, category, err))
					continue
				}
				if created {
					res.Categories++
				}
				categories[key] = id
			}
			categoryID = id
		}

		productID, created, err := im.store.UpsertProduct(ctx, categoryID, name)
		if err != nil {
			res.Skipped++
			res.Errors = append(res.Errors, fmt.Sprintf("row %d: product %q: %v", row.Line, name, err))
			continue
		}
		if created {
			res.Products++
		}

		_, _, err = im.store.UpsertVariant(ctx, internal.VariantRecord{
			ProductID: productID,
			Code:      strings.TrimSpace(row.Code),
			Barcode:   strings.TrimSpace(row.Barcode),
			SKU:       strings.TrimSpace(row.SKU),
			Size:      strings.TrimSpace(row.Size),
			Color:     strings.TrimSpace(row.Color),
			Price:     row.Price,
			Cost:      row.Cost,
			Stock:     row.Stock,
		})
		if err != nil {
			res.Skipped++
			res.Errors = append(res.Errors, fmt.Sprintf("row %d: variant %q: %v", row.Line, row.Code, err))
			continue
		}
		res.Variants++
	}

	if err := im.store.SetMetadata(ctx, "catalog.last_import", time.Now().UTC().Format(time.RFC3339)); err != nil {
		im.log.WithError(err).Warn("catalog import time not recorded")
	}
	im.log.WithFields(logrus.Fields{
		"rows":       res.Rows,
		"categories": res.Categories,
		"products":   res.Products,
		"variants":   res.Variants,
		"skipped":    res.Skipped,
	}).Info("catalog imported")
	return res, nil
}

// ParseCatalogRows maps the first row as headers and reads the rest. Only a
// name column is required.
func ParseCatalogRows(rows [][]string) ([]CatalogRow, error) {
	if len(rows) == 0 {
		return nil, ErrNoCatalogRows
	}
	cols := mapColumns(rows[0])
	if _, ok := cols["name"]; !ok {
		return nil, errors.New("missing required column: name")
	}

	read := func(cells []string, key string) string {
		idx, ok := cols[key]
		if !ok {
			return ""
		}
		return strings.TrimSpace(readCell(cells, idx))
	}

	out := make([]CatalogRow, 0, len(rows)-1)
	for i := 1; i < len(rows); i++ {
		cells := rows[i]
		name := read(cells, "name")
		if name == "" {
			continue
		}
		row := CatalogRow{
			Line:     i + 1,
			Name:     name,
			Code:     read(cells, "code"),
			Barcode:  read(cells, "barcode"),
			SKU:      read(cells, "sku"),
			Category: read(cells, "category"),
			Size:     read(cells, "size"),
			Color:    read(cells, "color"),
			Price:    util.ParseAmount(read(cells, "price")),
			Cost:     util.ParseAmount(read(cells, "cost")),
		}
		if stock, ok := util.ParseNumber(read(cells, "stock")); ok {
			row.Stock = int(stock)
		}
		out = append(out, row)
	}
	if len(out) == 0 {
		return nil, ErrNoCatalogRows
	}
	return out, nil
}

func readSheet(path string) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		f, err := excelize.OpenFile(path)
		if err != nil {
			return nil, fmt.Errorf("open catalog workbook: %w", err)
		}
		defer f.Close()
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, errors.New("catalog workbook has no sheets")
		}
		return f.GetRows(sheets[0])
	case ".csv":
		fh, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer fh.Close()
		r := csv.NewReader(fh)
		r.FieldsPerRecord = -1
		r.LazyQuotes = true
		return r.ReadAll()
	default:
		return nil, fmt.Errorf("unsupported catalog file %q", filepath.Base(path))
	}
}

func mapColumns(header []string) map[string]int {
	mapped := make(map[string]int)
	for idx, col := range header {
		canonical, ok := headerAliases[normalizeHeader(col)]
		if !ok {
			continue
		}
		if _, exists := mapped[canonical]; !exists {
			mapped[canonical] = idx
		}
	}
	return mapped
}

func normalizeHeader(raw string) string {
	value := strings.TrimPrefix(strings.TrimSpace(raw), "\ufeff")
	value = strings.ToLower(value)
	value = strings.ReplaceAll(value, "_", " ")
	return strings.Join(strings.Fields(value), " ")
}

func readCell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}
