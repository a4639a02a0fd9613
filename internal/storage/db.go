package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"salesmigrate/internal"
	"salesmigrate/internal/util"
)

const dateLayout = "2006-01-02"

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Single connection: the PRAGMAs below are per connection.
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL; PRAGMA foreign_keys = ON;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS users (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  username TEXT NOT NULL UNIQUE,
  role TEXT NOT NULL DEFAULT 'admin',
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS categories (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL UNIQUE COLLATE NOCASE,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS products (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  categoryId INTEGER,
  name TEXT NOT NULL UNIQUE COLLATE NOCASE,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(categoryId) REFERENCES categories(id)
);

CREATE TABLE IF NOT EXISTS variants (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  productId INTEGER NOT NULL,
  code TEXT NOT NULL DEFAULT '',
  barcode TEXT NOT NULL DEFAULT '',
  sku TEXT NOT NULL DEFAULT '',
  size TEXT NOT NULL DEFAULT '',
  color TEXT NOT NULL DEFAULT '',
  price TEXT NOT NULL DEFAULT '0',
  cost TEXT NOT NULL DEFAULT '0',
  stock INTEGER NOT NULL DEFAULT 0,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(productId) REFERENCES products(id)
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_variants_code ON variants(code) WHERE code <> '';
CREATE INDEX IF NOT EXISTS idx_variants_product ON variants(productId);

CREATE TABLE IF NOT EXISTS sales (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  billNo INTEGER NOT NULL UNIQUE,
  date TEXT NOT NULL,
  subtotal TEXT NOT NULL,
  tax TEXT NOT NULL,
  discount TEXT NOT NULL,
  grandTotal TEXT NOT NULL,
  paymentMethod TEXT NOT NULL,
  isHistorical INTEGER NOT NULL DEFAULT 0,
  importedFrom TEXT,
  userId INTEGER NOT NULL,
  sourceInvoiceNo TEXT,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(userId) REFERENCES users(id)
);
CREATE INDEX IF NOT EXISTS idx_sales_historical ON sales(isHistorical);

CREATE TABLE IF NOT EXISTS sale_items (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  saleId INTEGER NOT NULL,
  productId INTEGER,
  variantId INTEGER,
  name TEXT NOT NULL,
  quantity REAL NOT NULL,
  unitPrice TEXT NOT NULL,
  taxPercent TEXT NOT NULL,
  taxAmount TEXT NOT NULL,
  total TEXT NOT NULL,
  unmatched INTEGER NOT NULL DEFAULT 0,
  FOREIGN KEY(saleId) REFERENCES sales(id),
  FOREIGN KEY(productId) REFERENCES products(id),
  FOREIGN KEY(variantId) REFERENCES variants(id)
);
CREATE INDEX IF NOT EXISTS idx_sale_items_sale ON sale_items(saleId);

CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  runId TEXT NOT NULL UNIQUE,
  source TEXT NOT NULL,
  dryRun INTEGER NOT NULL DEFAULT 0,
  countsJson TEXT NOT NULL,
  errorsJson TEXT NOT NULL,
  startedAt TEXT,
  finishedAt TEXT,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS fetched_reports (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  provider TEXT NOT NULL,
  messageId TEXT NOT NULL,
  fileName TEXT NOT NULL,
  path TEXT NOT NULL,
  hash TEXT NOT NULL,
  receivedAt TEXT,
  score REAL NOT NULL DEFAULT 0,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(provider, messageId, hash)
);
`

	_, err := d.conn.Exec(schema)
	return err
}

func (d *DB) FindAdminUser(ctx context.Context) (*internal.AdminUser, error) {
	var u internal.AdminUser
	err := d.conn.QueryRowContext(ctx, `SELECT id, username, role FROM users WHERE role = 'admin' ORDER BY id LIMIT 1`).
		Scan(&u.ID, &u.Username, &u.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (d *DB) EnsureAdminUser(ctx context.Context, username string) (internal.AdminUser, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return internal.AdminUser{}, errors.New("username is required")
	}
	if _, err := d.conn.ExecContext(ctx, `
INSERT INTO users (username, role) VALUES (?, 'admin')
ON CONFLICT(username) DO UPDATE SET role = 'admin'
`, username); err != nil {
		return internal.AdminUser{}, err
	}

	var u internal.AdminUser
	err := d.conn.QueryRowContext(ctx, `SELECT id, username, role FROM users WHERE username = ?`, username).
		Scan(&u.ID, &u.Username, &u.Role)
	return u, err
}

func (d *DB) DeleteHistoricalSales(ctx context.Context) (int64, error) {
	return d.deleteSales(ctx, `WHERE isHistorical = 1`)
}

func (d *DB) DeleteAllSales(ctx context.Context) (int64, error) {
	return d.deleteSales(ctx, ``)
}

func (d *DB) deleteSales(ctx context.Context, where string) (int64, error) {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM sale_items WHERE saleId IN (SELECT id FROM sales `+where+`)`); err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM sales `+where)
	if err != nil {
		return 0, err
	}
	removed, _ := res.RowsAffected()
	return removed, tx.Commit()
}

func (d *DB) MaxBillNo(ctx context.Context, includeHistorical bool) (int64, error) {
	query := `SELECT COALESCE(MAX(billNo), 0) FROM sales`
	if !includeHistorical {
		query += ` WHERE isHistorical = 0`
	}
	var max int64
	err := d.conn.QueryRowContext(ctx, query).Scan(&max)
	return max, err
}

func (d *DB) InsertSale(ctx context.Context, sale internal.Sale) (int64, error) {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
INSERT INTO sales (billNo, date, subtotal, tax, discount, grandTotal, paymentMethod, isHistorical, importedFrom, userId, sourceInvoiceNo)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, sale.BillNo, sale.Date.Format(dateLayout), sale.Subtotal, sale.Tax, sale.Discount, sale.GrandTotal,
		sale.PaymentMethod, boolInt(sale.IsHistorical), sale.ImportedFrom, sale.UserID, sale.SourceInvoiceNo)
	if err != nil {
		return 0, fmt.Errorf("insert sale bill=%d: %w", sale.BillNo, err)
	}
	saleID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO sale_items (saleId, productId, variantId, name, quantity, unitPrice, taxPercent, taxAmount, total, unmatched)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for _, item := range sale.Items {
		if _, err := stmt.ExecContext(ctx, saleID, item.ProductID, item.VariantID, item.Name, item.Quantity,
			item.UnitPrice, item.TaxPercent, item.TaxAmount, item.Total, boolInt(item.Unmatched)); err != nil {
			return 0, fmt.Errorf("insert sale item %q: %w", item.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return saleID, nil
}

// ListSales returns sales ordered by bill number with their items.
func (d *DB) ListSales(ctx context.Context, historicalOnly bool) ([]internal.Sale, error) {
	query := `
SELECT id, billNo, date, subtotal, tax, discount, grandTotal, paymentMethod, isHistorical,
       COALESCE(importedFrom, ''), userId, COALESCE(sourceInvoiceNo, '')
FROM sales`
	if historicalOnly {
		query += ` WHERE isHistorical = 1`
	}
	query += ` ORDER BY billNo`

	rows, err := d.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.Sale
	byID := map[int64]int{}
	for rows.Next() {
		var s internal.Sale
		var date string
		var historical int
		if err := rows.Scan(&s.ID, &s.BillNo, &date, &s.Subtotal, &s.Tax, &s.Discount, &s.GrandTotal,
			&s.PaymentMethod, &historical, &s.ImportedFrom, &s.UserID, &s.SourceInvoiceNo); err != nil {
			return nil, err
		}
		s.Date, _ = time.Parse(dateLayout, date)
		s.IsHistorical = historical == 1
		byID[s.ID] = len(out)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	itemRows, err := d.conn.QueryContext(ctx, `
SELECT saleId, productId, variantId, name, quantity, unitPrice, taxPercent, taxAmount, total, unmatched
FROM sale_items ORDER BY saleId, id`)
	if err != nil {
		return nil, err
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var saleID int64
		var item internal.SaleItem
		var productID, variantID sql.NullInt64
		var unmatched int
		if err := itemRows.Scan(&saleID, &productID, &variantID, &item.Name, &item.Quantity,
			&item.UnitPrice, &item.TaxPercent, &item.TaxAmount, &item.Total, &unmatched); err != nil {
			return nil, err
		}
		idx, ok := byID[saleID]
		if !ok {
			continue
		}
		if productID.Valid {
			item.ProductID = &productID.Int64
		}
		if variantID.Valid {
			item.VariantID = &variantID.Int64
		}
		item.Unmatched = unmatched == 1
		out[idx].Items = append(out[idx].Items, item)
	}
	return out, itemRows.Err()
}

func (d *DB) ListProducts(ctx context.Context) ([]internal.ProductRecord, error) {
	rows, err := d.conn.QueryContext(ctx, `
SELECT p.id, COALESCE(p.categoryId, 0), p.name,
       v.id, v.code, v.barcode, v.sku, v.size, v.color, v.price, v.cost, v.stock
FROM products p
LEFT JOIN variants v ON v.productId = p.id
ORDER BY p.id, v.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.ProductRecord
	for rows.Next() {
		var p internal.ProductRecord
		var vid sql.NullInt64
		var code, barcode, sku, size, color, price, cost sql.NullString
		var stock sql.NullInt64
		if err := rows.Scan(&p.ID, &p.CategoryID, &p.Name,
			&vid, &code, &barcode, &sku, &size, &color, &price, &cost, &stock); err != nil {
			return nil, err
		}
		if n := len(out); n == 0 || out[n-1].ID != p.ID {
			out = append(out, p)
		}
		if !vid.Valid {
			continue
		}
		out[len(out)-1].Variants = append(out[len(out)-1].Variants, internal.VariantRecord{
			ID:        vid.Int64,
			ProductID: p.ID,
			Code:      code.String,
			Barcode:   barcode.String,
			SKU:       sku.String,
			Size:      size.String,
			Color:     color.String,
			Price:     util.ParseAmount(price.String),
			Cost:      util.ParseAmount(cost.String),
			Stock:     int(stock.Int64),
		})
	}
	return out, rows.Err()
}

func (d *DB) UpsertCategory(ctx context.Context, name string) (int64, bool, error) {
	return d.findOrCreate(ctx,
		`SELECT id FROM categories WHERE name = ?`, []any{name},
		`INSERT INTO categories (name) VALUES (?)`, []any{name})
}

func (d *DB) UpsertProduct(ctx context.Context, categoryID int64, name string) (int64, bool, error) {
	var category any
	if categoryID > 0 {
		category = categoryID
	}
	id, created, err := d.findOrCreate(ctx,
		`SELECT id FROM products WHERE name = ?`, []any{name},
		`INSERT INTO products (categoryId, name) VALUES (?, ?)`, []any{category, name})
	if err != nil || created || categoryID == 0 {
		return id, created, err
	}
	_, err = d.conn.ExecContext(ctx, `UPDATE products SET categoryId = ? WHERE id = ? AND categoryId IS NULL`, categoryID, id)
	return id, false, err
}

// UpsertVariant keys a variant by its code when it has one, otherwise by
// product, size and colour.
func (d *DB) UpsertVariant(ctx context.Context, v internal.VariantRecord) (int64, bool, error) {
	var (
		id  int64
		err error
	)
	if v.Code != "" {
		err = d.conn.QueryRowContext(ctx, `SELECT id FROM variants WHERE code = ?`, v.Code).Scan(&id)
	} else {
		err = d.conn.QueryRowContext(ctx, `SELECT id FROM variants WHERE productId = ? AND code = '' AND size = ? AND color = ?`,
			v.ProductID, v.Size, v.Color).Scan(&id)
	}
	switch {
	case errors.Is(err, sql.ErrNoRows):
		res, err := d.conn.ExecContext(ctx, `
INSERT INTO variants (productId, code, barcode, sku, size, color, price, cost, stock)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`, v.ProductID, v.Code, v.Barcode, v.SKU, v.Size, v.Color, v.Price, v.Cost, v.Stock)
		if err != nil {
			return 0, false, err
		}
		id, err = res.LastInsertId()
		return id, true, err
	case err != nil:
		return 0, false, err
	}

	_, err = d.conn.ExecContext(ctx, `
UPDATE variants SET productId = ?, barcode = ?, sku = ?, size = ?, color = ?, price = ?, cost = ?, stock = ?
WHERE id = ?
`, v.ProductID, v.Barcode, v.SKU, v.Size, v.Color, v.Price, v.Cost, v.Stock, id)
	return id, false, err
}

func (d *DB) findOrCreate(ctx context.Context, find string, findArgs []any, insert string, insertArgs []any) (int64, bool, error) {
	var id int64
	err := d.conn.QueryRowContext(ctx, find, findArgs...).Scan(&id)
	if err == nil {
		return id, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, false, err
	}
	res, err := d.conn.ExecContext(ctx, insert, insertArgs...)
	if err != nil {
		return 0, false, err
	}
	id, err = res.LastInsertId()
	return id, true, err
}

func (d *DB) InsertRun(ctx context.Context, stats internal.ImportStats) error {
	countsJSON, errorsJSON := runJSON(stats)
	_, err := d.conn.ExecContext(ctx, `
INSERT INTO runs (runId, source, dryRun, countsJson, errorsJson, startedAt, finishedAt)
VALUES (?, ?, ?, ?, ?, ?, ?)
`, stats.RunID, stats.Source, boolInt(stats.DryRun), countsJSON, errorsJSON,
		stats.StartedAt.Format(time.RFC3339), stats.FinishedAt.Format(time.RFC3339))
	return err
}

func (d *DB) SetMetadata(ctx context.Context, key, value string) error {
	_, err := d.conn.ExecContext(ctx, `
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(ctx context.Context, key string) (*string, error) {
	var value string
	err := d.conn.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}

func (d *DB) UpsertFetchedReport(ctx context.Context, r internal.FetchedReport) (internal.FetchedReport, error) {
	_, err := d.conn.ExecContext(ctx, `
INSERT INTO fetched_reports (provider, messageId, fileName, path, hash, receivedAt, score)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(provider, messageId, hash) DO UPDATE SET
  fileName = excluded.fileName,
  path = excluded.path,
  receivedAt = excluded.receivedAt,
  score = excluded.score
`, r.Provider, r.MessageID, r.FileName, r.Path, r.Hash, r.ReceivedAt, r.Score)
	if err != nil {
		return internal.FetchedReport{}, err
	}

	err = d.conn.QueryRowContext(ctx, `SELECT id FROM fetched_reports WHERE provider = ? AND messageId = ? AND hash = ?`,
		r.Provider, r.MessageID, r.Hash).Scan(&r.ID)
	return r, err
}

func (d *DB) ListFetchedReports(ctx context.Context, limit int) ([]internal.FetchedReport, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.conn.QueryContext(ctx, `
SELECT id, provider, messageId, fileName, path, hash, COALESCE(receivedAt, ''), score
FROM fetched_reports ORDER BY id DESC LIMIT ?
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.FetchedReport
	for rows.Next() {
		var r internal.FetchedReport
		if err := rows.Scan(&r.ID, &r.Provider, &r.MessageID, &r.FileName, &r.Path, &r.Hash, &r.ReceivedAt, &r.Score); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func runJSON(stats internal.ImportStats) (string, string) {
	counts := map[string]any{
		"invoices":  stats.Invoices,
		"sales":     stats.Sales,
		"saleItems": stats.SaleItems,
		"unmatched": stats.Unmatched,
		"skipped":   stats.Skipped,
		"dropped":   stats.Dropped,
		"total":     stats.TotalAmount.StringFixed(2),
	}
	countsJSON, _ := json.Marshal(counts)
	errs := stats.Errors
	if errs == nil {
		errs = []string{}
	}
	errorsJSON, _ := json.Marshal(errs)
	return string(countsJSON), string(errorsJSON)
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
