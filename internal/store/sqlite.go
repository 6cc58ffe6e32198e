package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sellhub-kr/listing-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS products (
	product_code  TEXT PRIMARY KEY,
	name_variants TEXT NOT NULL,
	mix_url       TEXT,
	nukki_url     TEXT,
	category      TEXT,
	status        TEXT NOT NULL DEFAULT 'ACTIVE',
	source_file   TEXT,
	imported_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS upload_logs (
	id                 TEXT PRIMARY KEY,
	sheet_name         TEXT NOT NULL,
	business_number    TEXT NOT NULL,
	store_name         TEXT,
	product_code       TEXT NOT NULL,
	used_mix_url       TEXT,
	used_nukki_url     TEXT,
	used_product_name  TEXT NOT NULL,
	product_name_index INTEGER NOT NULL,
	combo_key          TEXT NOT NULL,
	strategy           TEXT,
	upload_status      TEXT NOT NULL,
	uploaded_at        DATETIME NOT NULL,
	notes              TEXT
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_upload_logs_sheet_combo
	ON upload_logs(sheet_name, combo_key);
CREATE INDEX IF NOT EXISTS idx_upload_logs_business_product
	ON upload_logs(business_number, product_code, upload_status);
CREATE INDEX IF NOT EXISTS idx_products_category_status
	ON products(category, status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertProducts(ctx context.Context, products []model.Product) (int, error) {
	if len(products) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin upsert products")
	}
	defer tx.Rollback() //nolint:errcheck

	count := 0
	for _, p := range products {
		namesJSON, err := json.Marshal(p.NameVariants)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: marshal names for %s", p.ProductCode)
		}
		status := p.Status
		if status == "" {
			status = model.ProductStatusActive
		}
		importedAt := p.ImportedAt
		if importedAt.IsZero() {
			importedAt = time.Now().UTC()
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO products (product_code, name_variants, mix_url, nukki_url, category, status, source_file, imported_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(product_code) DO UPDATE SET
				name_variants = excluded.name_variants,
				mix_url       = excluded.mix_url,
				nukki_url     = excluded.nukki_url,
				category      = excluded.category,
				status        = excluded.status,
				source_file   = excluded.source_file,
				imported_at   = excluded.imported_at`,
			p.ProductCode, string(namesJSON), p.MixURL, p.NukkiURL, p.Category, string(status), p.SourceFile, importedAt,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert product %s", p.ProductCode)
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit upsert products")
	}
	return count, nil
}

func (s *SQLiteStore) ListProducts(ctx context.Context, filter model.ProductFilter) ([]model.Product, error) {
	query := `SELECT product_code, name_variants, mix_url, nukki_url, category, status, source_file, imported_at
		FROM products WHERE 1=1`
	var args []any

	if filter.Category != "" {
		query += ` AND category LIKE ?`
		args = append(args, filter.Category+"%")
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	// Stable caller-visible order; allocation determinism depends on it.
	query += ` ORDER BY product_code ASC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list products")
	}
	defer rows.Close()

	var products []model.Product
	for rows.Next() {
		var p model.Product
		var namesJSON string
		var mixURL, nukkiURL, category, sourceFile sql.NullString
		if err := rows.Scan(&p.ProductCode, &namesJSON, &mixURL, &nukkiURL, &category, &p.Status, &sourceFile, &p.ImportedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan product")
		}
		if err := json.Unmarshal([]byte(namesJSON), &p.NameVariants); err != nil {
			return nil, eris.Wrapf(err, "sqlite: unmarshal names for %s", p.ProductCode)
		}
		p.MixURL = mixURL.String
		p.NukkiURL = nukkiURL.String
		p.Category = category.String
		p.SourceFile = sourceFile.String
		products = append(products, p)
	}
	return products, eris.Wrap(rows.Err(), "sqlite: list products iterate")
}

func (s *SQLiteStore) ListUsage(ctx context.Context, filter model.UsageFilter) ([]model.UsageRecord, error) {
	if filter.SheetName == "" {
		return nil, eris.New("sqlite: list usage requires a sheet name")
	}

	query := `SELECT id, sheet_name, business_number, store_name, product_code,
		used_mix_url, used_nukki_url, used_product_name, product_name_index,
		strategy, upload_status, uploaded_at, notes
		FROM upload_logs WHERE sheet_name = ?`
	args := []any{filter.SheetName}

	if filter.ProductCode != "" {
		query += ` AND product_code = ?`
		args = append(args, filter.ProductCode)
	}
	if filter.Status != "" {
		query += ` AND upload_status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY uploaded_at ASC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list usage")
	}
	defer rows.Close()

	var records []model.UsageRecord
	for rows.Next() {
		rec, err := scanUsage(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: list usage iterate")
}

func (s *SQLiteStore) HasSuccessfulUpload(ctx context.Context, businessNumber, productCode string) (bool, error) {
	if businessNumber == "" || productCode == "" {
		return false, nil
	}

	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM upload_logs
		 WHERE business_number = ? AND product_code = ? AND upload_status = ?`,
		businessNumber, productCode, string(model.UploadStatusSuccess),
	).Scan(&count)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: check uploads for %s", productCode)
	}
	return count > 0, nil
}

// InsertUsageBatch writes all records in one transaction. The unique
// (sheet_name, combo_key) index makes a duplicate combination fail the
// whole batch, so no partial subset ever becomes visible.
func (s *SQLiteStore) InsertUsageBatch(ctx context.Context, records []model.UsageRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	for _, rec := range records {
		if err := rec.Validate(); err != nil {
			return 0, eris.Wrap(err, "sqlite: insert usage batch")
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin usage batch")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, rec := range records {
		strategyJSON, err := json.Marshal(rec.Strategy)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: marshal strategy for %s", rec.ProductCode)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO upload_logs (
				id, sheet_name, business_number, store_name, product_code,
				used_mix_url, used_nukki_url, used_product_name, product_name_index,
				combo_key, strategy, upload_status, uploaded_at, notes
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, rec.SheetName, rec.BusinessNumber, rec.StoreName, rec.ProductCode,
			nullable(rec.UsedMixURL), nullable(rec.UsedNukkiURL), rec.UsedProductName, rec.ProductNameIndex,
			rec.Key().String(), string(strategyJSON), string(rec.Status), rec.UploadedAt, rec.Notes,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert usage record %s", rec.ProductCode)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit usage batch")
	}
	return len(records), nil
}

// helpers

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

type scannable interface {
	Scan(dest ...any) error
}

func scanUsage(row scannable) (*model.UsageRecord, error) {
	var rec model.UsageRecord
	var mixURL, nukkiURL, storeName, strategyJSON, notes sql.NullString

	err := row.Scan(&rec.ID, &rec.SheetName, &rec.BusinessNumber, &storeName, &rec.ProductCode,
		&mixURL, &nukkiURL, &rec.UsedProductName, &rec.ProductNameIndex,
		&strategyJSON, &rec.Status, &rec.UploadedAt, &notes)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan usage record")
	}

	rec.StoreName = storeName.String
	rec.UsedMixURL = mixURL.String
	rec.UsedNukkiURL = nukkiURL.String
	rec.Notes = notes.String
	if strategyJSON.Valid && strategyJSON.String != "" {
		if err := json.Unmarshal([]byte(strategyJSON.String), &rec.Strategy); err != nil {
			return nil, eris.Wrapf(err, "sqlite: unmarshal strategy for %s", rec.ProductCode)
		}
	}
	return &rec, nil
}
