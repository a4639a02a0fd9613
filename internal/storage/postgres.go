package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"salesmigrate/internal"
)

// PGStore is the Postgres flavour of the target store. It carries the same
// tables as DB and is selected with DB_DRIVER=postgres.
type PGStore struct {
	pool *pgxpool.Pool
}

const pgSchema = `
CREATE TABLE IF NOT EXISTS users (
  id BIGSERIAL PRIMARY KEY,
  username TEXT NOT NULL UNIQUE,
  role TEXT NOT NULL DEFAULT 'admin',
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS categories (
  id BIGSERIAL PRIMARY KEY,
  name TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS uq_categories_name ON categories (LOWER(name));

CREATE TABLE IF NOT EXISTS products (
  id BIGSERIAL PRIMARY KEY,
  category_id BIGINT REFERENCES categories(id),
  name TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS uq_products_name ON products (LOWER(name));

CREATE TABLE IF NOT EXISTS variants (
  id BIGSERIAL PRIMARY KEY,
  product_id BIGINT NOT NULL REFERENCES products(id),
  code TEXT NOT NULL DEFAULT '',
  barcode TEXT NOT NULL DEFAULT '',
  sku TEXT NOT NULL DEFAULT '',
  size TEXT NOT NULL DEFAULT '',
  color TEXT NOT NULL DEFAULT '',
  price NUMERIC(14,2) NOT NULL DEFAULT 0,
  cost NUMERIC(14,2) NOT NULL DEFAULT 0,
  stock INTEGER NOT NULL DEFAULT 0,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS uq_variants_code ON variants (code) WHERE code <> '';

CREATE TABLE IF NOT EXISTS sales (
  id BIGSERIAL PRIMARY KEY,
  bill_no BIGINT NOT NULL UNIQUE,
  date DATE NOT NULL,
  subtotal NUMERIC(14,2) NOT NULL,
  tax NUMERIC(14,2) NOT NULL,
  discount NUMERIC(14,2) NOT NULL,
  grand_total NUMERIC(14,2) NOT NULL,
  payment_method TEXT NOT NULL,
  is_historical BOOLEAN NOT NULL DEFAULT FALSE,
  imported_from TEXT,
  user_id BIGINT NOT NULL REFERENCES users(id),
  source_invoice_no TEXT,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_sales_historical ON sales (is_historical);

CREATE TABLE IF NOT EXISTS sale_items (
  id BIGSERIAL PRIMARY KEY,
  sale_id BIGINT NOT NULL REFERENCES sales(id) ON DELETE CASCADE,
  product_id BIGINT REFERENCES products(id),
  variant_id BIGINT REFERENCES variants(id),
  name TEXT NOT NULL,
  quantity DOUBLE PRECISION NOT NULL,
  unit_price NUMERIC(14,2) NOT NULL,
  tax_percent NUMERIC(7,2) NOT NULL,
  tax_amount NUMERIC(14,2) NOT NULL,
  total NUMERIC(14,2) NOT NULL,
  unmatched BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS runs (
  id BIGSERIAL PRIMARY KEY,
  run_id TEXT NOT NULL UNIQUE,
  source TEXT NOT NULL,
  dry_run BOOLEAN NOT NULL DEFAULT FALSE,
  counts_json JSONB NOT NULL,
  errors_json JSONB NOT NULL,
  started_at TIMESTAMPTZ,
  finished_at TIMESTAMPTZ,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS fetched_reports (
  id BIGSERIAL PRIMARY KEY,
  provider TEXT NOT NULL,
  message_id TEXT NOT NULL,
  file_name TEXT NOT NULL,
  path TEXT NOT NULL,
  hash TEXT NOT NULL,
  received_at TEXT,
  score DOUBLE PRECISION NOT NULL DEFAULT 0,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  UNIQUE (provider, message_id, hash)
);
`

func OpenPostgres(ctx context.Context, databaseURL string) (*PGStore, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, errors.New("DATABASE_URL is required for the postgres driver")
	}
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 4
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &PGStore{pool: pool}, nil
}

func (s *PGStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PGStore) FindAdminUser(ctx context.Context) (*internal.AdminUser, error) {
	var u internal.AdminUser
	err := s.pool.QueryRow(ctx, `SELECT id, username, role FROM users WHERE role = 'admin' ORDER BY id LIMIT 1`).
		Scan(&u.ID, &u.Username, &u.Role)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *PGStore) EnsureAdminUser(ctx context.Context, username string) (internal.AdminUser, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return internal.AdminUser{}, errors.New("username is required")
	}
	var u internal.AdminUser
	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (username, role) VALUES ($1, 'admin')
		ON CONFLICT (username) DO UPDATE SET role = 'admin'
		RETURNING id, username, role
	`, username).Scan(&u.ID, &u.Username, &u.Role)
	return u, err
}

func (s *PGStore) DeleteHistoricalSales(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sales WHERE is_historical`)
	if err != nil {
		return 0, fmt.Errorf("delete historical sales: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PGStore) DeleteAllSales(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sales`)
	if err != nil {
		return 0, fmt.Errorf("delete sales: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PGStore) MaxBillNo(ctx context.Context, includeHistorical bool) (int64, error) {
	query := `SELECT COALESCE(MAX(bill_no), 0) FROM sales`
	if !includeHistorical {
		query += ` WHERE NOT is_historical`
	}
	var max int64
	err := s.pool.QueryRow(ctx, query).Scan(&max)
	return max, err
}

func (s *PGStore) InsertSale(ctx context.Context, sale internal.Sale) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin sale tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var saleID int64
	if err := tx.QueryRow(ctx, `
		INSERT INTO sales (
			bill_no, date, subtotal, tax, discount, grand_total,
			payment_method, is_historical, imported_from, user_id, source_invoice_no
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`,
		sale.BillNo, sale.Date, sale.Subtotal, sale.Tax, sale.Discount, sale.GrandTotal,
		sale.PaymentMethod, sale.IsHistorical, sale.ImportedFrom, sale.UserID, sale.SourceInvoiceNo,
	).Scan(&saleID); err != nil {
		return 0, fmt.Errorf("insert sale bill=%d: %w", sale.BillNo, err)
	}

	batch := &pgx.Batch{}
	for _, item := range sale.Items {
		batch.Queue(`
			INSERT INTO sale_items (
				sale_id, product_id, variant_id, name, quantity,
				unit_price, tax_percent, tax_amount, total, unmatched
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`,
			saleID, item.ProductID, item.VariantID, item.Name, item.Quantity,
			item.UnitPrice, item.TaxPercent, item.TaxAmount, item.Total, item.Unmatched,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return 0, fmt.Errorf("insert sale items bill=%d: %w", sale.BillNo, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit sale bill=%d: %w", sale.BillNo, err)
	}
	return saleID, nil
}

func (s *PGStore) ListSales(ctx context.Context, historicalOnly bool) ([]internal.Sale, error) {
	query := `
		SELECT id, bill_no, date, subtotal, tax, discount, grand_total, payment_method, is_historical,
		       COALESCE(imported_from, ''), user_id, COALESCE(source_invoice_no, '')
		FROM sales`
	if historicalOnly {
		query += ` WHERE is_historical`
	}
	query += ` ORDER BY bill_no`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	var out []internal.Sale
	byID := map[int64]int{}
	for rows.Next() {
		var sale internal.Sale
		if err := rows.Scan(&sale.ID, &sale.BillNo, &sale.Date, &sale.Subtotal, &sale.Tax, &sale.Discount,
			&sale.GrandTotal, &sale.PaymentMethod, &sale.IsHistorical, &sale.ImportedFrom, &sale.UserID,
			&sale.SourceInvoiceNo); err != nil {
			rows.Close()
			return nil, err
		}
		byID[sale.ID] = len(out)
		out = append(out, sale)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	itemRows, err := s.pool.Query(ctx, `
		SELECT sale_id, product_id, variant_id, name, quantity, unit_price, tax_percent, tax_amount, total, unmatched
		FROM sale_items ORDER BY sale_id, id
	`)
	if err != nil {
		return nil, err
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var saleID int64
		var item internal.SaleItem
		if err := itemRows.Scan(&saleID, &item.ProductID, &item.VariantID, &item.Name, &item.Quantity,
			&item.UnitPrice, &item.TaxPercent, &item.TaxAmount, &item.Total, &item.Unmatched); err != nil {
			return nil, err
		}
		if idx, ok := byID[saleID]; ok {
			out[idx].Items = append(out[idx].Items, item)
		}
	}
	return out, itemRows.Err()
}

func (s *PGStore) ListProducts(ctx context.Context) ([]internal.ProductRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT p.id, COALESCE(p.category_id, 0), p.name,
		       v.id, v.code, v.barcode, v.sku, v.size, v.color, v.price, v.cost, v.stock
		FROM products p
		LEFT JOIN variants v ON v.product_id = p.id
		ORDER BY p.id, v.id
	`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var out []internal.ProductRecord
	for rows.Next() {
		var p internal.ProductRecord
		var vid *int64
		var code, barcode, sku, size, color *string
		var price, cost decimal.NullDecimal
		var stock *int32
		if err := rows.Scan(&p.ID, &p.CategoryID, &p.Name,
			&vid, &code, &barcode, &sku, &size, &color, &price, &cost, &stock); err != nil {
			return nil, err
		}
		if n := len(out); n == 0 || out[n-1].ID != p.ID {
			out = append(out, p)
		}
		if vid == nil {
			continue
		}
		v := internal.VariantRecord{
			ID:        *vid,
			ProductID: p.ID,
			Code:      deref(code),
			Barcode:   deref(barcode),
			SKU:       deref(sku),
			Size:      deref(size),
			Color:     deref(color),
			Price:     price.Decimal,
			Cost:      cost.Decimal,
		}
		if stock != nil {
			v.Stock = int(*stock)
		}
		out[len(out)-1].Variants = append(out[len(out)-1].Variants, v)
	}
	return out, rows.Err()
}

func (s *PGStore) UpsertCategory(ctx context.Context, name string) (int64, bool, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `SELECT id FROM categories WHERE LOWER(name) = LOWER($1)`, name).Scan(&id)
	if err == nil {
		return id, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, false, err
	}
	err = s.pool.QueryRow(ctx, `INSERT INTO categories (name) VALUES ($1) RETURNING id`, name).Scan(&id)
	return id, err == nil, err
}

func (s *PGStore) UpsertProduct(ctx context.Context, categoryID int64, name string) (int64, bool, error) {
	var category *int64
	if categoryID > 0 {
		category = &categoryID
	}
	var id int64
	err := s.pool.QueryRow(ctx, `SELECT id FROM products WHERE LOWER(name) = LOWER($1)`, name).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		err = s.pool.QueryRow(ctx, `INSERT INTO products (category_id, name) VALUES ($1, $2) RETURNING id`, category, name).Scan(&id)
		return id, err == nil, err
	}
	if err != nil {
		return 0, false, err
	}
	if category != nil {
		if _, err := s.pool.Exec(ctx, `UPDATE products SET category_id = $1 WHERE id = $2 AND category_id IS NULL`, *category, id); err != nil {
			return 0, false, err
		}
	}
	return id, false, nil
}

func (s *PGStore) UpsertVariant(ctx context.Context, v internal.VariantRecord) (int64, bool, error) {
	var (
		id  int64
		err error
	)
	if v.Code != "" {
		err = s.pool.QueryRow(ctx, `SELECT id FROM variants WHERE code = $1`, v.Code).Scan(&id)
	} else {
		err = s.pool.QueryRow(ctx, `
			SELECT id FROM variants
			WHERE product_id = $1 AND code = '' AND size = $2 AND color = $3
		`, v.ProductID, v.Size, v.Color).Scan(&id)
	}
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		err = s.pool.QueryRow(ctx, `
			INSERT INTO variants (product_id, code, barcode, sku, size, color, price, cost, stock)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id
		`, v.ProductID, v.Code, v.Barcode, v.SKU, v.Size, v.Color, v.Price, v.Cost, v.Stock).Scan(&id)
		return id, err == nil, err
	case err != nil:
		return 0, false, err
	}

	_, err = s.pool.Exec(ctx, `
		UPDATE variants
		SET product_id = $1, barcode = $2, sku = $3, size = $4, color = $5, price = $6, cost = $7, stock = $8
		WHERE id = $9
	`, v.ProductID, v.Barcode, v.SKU, v.Size, v.Color, v.Price, v.Cost, v.Stock, id)
	return id, false, err
}

func (s *PGStore) InsertRun(ctx context.Context, stats internal.ImportStats) error {
	countsJSON, errorsJSON := runJSON(stats)
	_, err := s.pool.Exec(ctx, `
		INSERT INTO runs (run_id, source, dry_run, counts_json, errors_json, started_at, finished_at)
		VALUES ($1, $2, $3, $4::jsonb, $5::jsonb, $6, $7)
	`, stats.RunID, stats.Source, stats.DryRun, countsJSON, errorsJSON, stats.StartedAt, stats.FinishedAt)
	return err
}

func (s *PGStore) SetMetadata(ctx context.Context, key, value string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO metadata (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`, key, value)
	return err
}

func (s *PGStore) GetMetadata(ctx context.Context, key string) (*string, error) {
	var value string
	err := s.pool.QueryRow(ctx, `SELECT value FROM metadata WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}

func (s *PGStore) UpsertFetchedReport(ctx context.Context, r internal.FetchedReport) (internal.FetchedReport, error) {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO fetched_reports (provider, message_id, file_name, path, hash, received_at, score)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (provider, message_id, hash) DO UPDATE SET
			file_name = EXCLUDED.file_name,
			path = EXCLUDED.path,
			received_at = EXCLUDED.received_at,
			score = EXCLUDED.score
		RETURNING id
	`, r.Provider, r.MessageID, r.FileName, r.Path, r.Hash, r.ReceivedAt, r.Score).Scan(&r.ID)
	return r, err
}

func (s *PGStore) ListFetchedReports(ctx context.Context, limit int) ([]internal.FetchedReport, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, provider, message_id, file_name, path, hash, COALESCE(received_at, ''), score
		FROM fetched_reports ORDER BY id DESC LIMIT $1
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

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
