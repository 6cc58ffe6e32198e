package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sellhub-kr/listing-cli/internal/db"
	"github.com/sellhub-kr/listing-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool; used by tests with pgxmock.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS products (
	product_code  TEXT PRIMARY KEY,
	name_variants JSONB NOT NULL,
	mix_url       TEXT,
	nukki_url     TEXT,
	category      TEXT,
	status        TEXT NOT NULL DEFAULT 'ACTIVE',
	source_file   TEXT,
	imported_at   TIMESTAMPTZ NOT NULL DEFAULT now()
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
	product_name_index INT NOT NULL,
	combo_key          TEXT NOT NULL,
	strategy           JSONB,
	upload_status      TEXT NOT NULL,
	uploaded_at        TIMESTAMPTZ NOT NULL,
	notes              TEXT
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_upload_logs_sheet_combo
	ON upload_logs(sheet_name, combo_key);
CREATE INDEX IF NOT EXISTS idx_upload_logs_business_product
	ON upload_logs(business_number, product_code, upload_status);
CREATE INDEX IF NOT EXISTS idx_products_category_status
	ON products(category, status);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

var productColumns = []string{
	"product_code", "name_variants", "mix_url", "nukki_url",
	"category", "status", "source_file", "imported_at",
}

func (s *PostgresStore) UpsertProducts(ctx context.Context, products []model.Product) (int, error) {
	if len(products) == 0 {
		return 0, nil
	}

	rows := make([][]any, 0, len(products))
	for _, p := range products {
		namesJSON, err := json.Marshal(p.NameVariants)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: marshal names for %s", p.ProductCode)
		}
		status := p.Status
		if status == "" {
			status = model.ProductStatusActive
		}
		importedAt := p.ImportedAt
		if importedAt.IsZero() {
			importedAt = time.Now().UTC()
		}
		rows = append(rows, []any{
			p.ProductCode, string(namesJSON), p.MixURL, p.NukkiURL,
			p.Category, string(status), p.SourceFile, importedAt,
		})
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "products",
		Columns:      productColumns,
		ConflictKeys: []string{"product_code"},
	}, rows)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *PostgresStore) ListProducts(ctx context.Context, filter model.ProductFilter) ([]model.Product, error) {
	query := `SELECT product_code, name_variants, mix_url, nukki_url, category, status, source_file, imported_at
		FROM products WHERE 1=1`
	var args []any

	if filter.Category != "" {
		args = append(args, filter.Category+"%")
		query += ` AND category LIKE $1`
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` AND status = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY product_code ASC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list products")
	}
	defer rows.Close()

	var products []model.Product
	for rows.Next() {
		var p model.Product
		var namesJSON string
		var mixURL, nukkiURL, category, sourceFile *string
		if err := rows.Scan(&p.ProductCode, &namesJSON, &mixURL, &nukkiURL, &category, &p.Status, &sourceFile, &p.ImportedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan product")
		}
		if err := json.Unmarshal([]byte(namesJSON), &p.NameVariants); err != nil {
			return nil, eris.Wrapf(err, "postgres: unmarshal names for %s", p.ProductCode)
		}
		p.MixURL = deref(mixURL)
		p.NukkiURL = deref(nukkiURL)
		p.Category = deref(category)
		p.SourceFile = deref(sourceFile)
		products = append(products, p)
	}
	return products, eris.Wrap(rows.Err(), "postgres: list products iterate")
}

func (s *PostgresStore) ListUsage(ctx context.Context, filter model.UsageFilter) ([]model.UsageRecord, error) {
	if filter.SheetName == "" {
		return nil, eris.New("postgres: list usage requires a sheet name")
	}

	query := `SELECT id, sheet_name, business_number, store_name, product_code,
		used_mix_url, used_nukki_url, used_product_name, product_name_index,
		strategy, upload_status, uploaded_at, notes
		FROM upload_logs WHERE sheet_name = $1`
	args := []any{filter.SheetName}

	if filter.ProductCode != "" {
		args = append(args, filter.ProductCode)
		query += ` AND product_code = $` + strconv.Itoa(len(args))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` AND upload_status = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY uploaded_at ASC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list usage")
	}
	defer rows.Close()

	var records []model.UsageRecord
	for rows.Next() {
		rec, err := scanUsagePgx(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, eris.Wrap(rows.Err(), "postgres: list usage iterate")
}

func (s *PostgresStore) HasSuccessfulUpload(ctx context.Context, businessNumber, productCode string) (bool, error) {
	if businessNumber == "" || productCode == "" {
		return false, nil
	}

	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM upload_logs
			WHERE business_number = $1 AND product_code = $2 AND upload_status = $3
		)`,
		businessNumber, productCode, string(model.UploadStatusSuccess),
	).Scan(&exists)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: check uploads for %s", productCode)
	}
	return exists, nil
}

var uploadLogColumns = []string{
	"id", "sheet_name", "business_number", "store_name", "product_code",
	"used_mix_url", "used_nukki_url", "used_product_name", "product_name_index",
	"combo_key", "strategy", "upload_status", "uploaded_at", "notes",
}

// InsertUsageBatch writes all records via COPY inside one transaction.
// The unique (sheet_name, combo_key) index fails the whole transaction
// on a duplicate combination; nothing becomes visible on error.
func (s *PostgresStore) InsertUsageBatch(ctx context.Context, records []model.UsageRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	rows := make([][]any, 0, len(records))
	for _, rec := range records {
		if err := rec.Validate(); err != nil {
			return 0, eris.Wrap(err, "postgres: insert usage batch")
		}
		strategyJSON, err := json.Marshal(rec.Strategy)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: marshal strategy for %s", rec.ProductCode)
		}
		rows = append(rows, []any{
			rec.ID, rec.SheetName, rec.BusinessNumber, nullableString(rec.StoreName), rec.ProductCode,
			nullableString(rec.UsedMixURL), nullableString(rec.UsedNukkiURL), rec.UsedProductName, rec.ProductNameIndex,
			rec.Key().String(), string(strategyJSON), string(rec.Status), rec.UploadedAt, nullableString(rec.Notes),
		})
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: begin usage batch")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	n, err := tx.CopyFrom(ctx, pgx.Identifier{"upload_logs"}, uploadLogColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, eris.Wrap(err, "postgres: copy usage batch")
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: commit usage batch")
	}
	return int(n), nil
}

// helpers

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func scanUsagePgx(rows pgx.Rows) (*model.UsageRecord, error) {
	var rec model.UsageRecord
	var storeName, mixURL, nukkiURL, strategyJSON, notes *string

	err := rows.Scan(&rec.ID, &rec.SheetName, &rec.BusinessNumber, &storeName, &rec.ProductCode,
		&mixURL, &nukkiURL, &rec.UsedProductName, &rec.ProductNameIndex,
		&strategyJSON, &rec.Status, &rec.UploadedAt, &notes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.New("postgres: usage record not found")
		}
		return nil, eris.Wrap(err, "postgres: scan usage record")
	}

	rec.StoreName = deref(storeName)
	rec.UsedMixURL = deref(mixURL)
	rec.UsedNukkiURL = deref(nukkiURL)
	rec.Notes = deref(notes)
	if strategyJSON != nil && *strategyJSON != "" {
		if err := json.Unmarshal([]byte(*strategyJSON), &rec.Strategy); err != nil {
			return nil, eris.Wrapf(err, "postgres: unmarshal strategy for %s", rec.ProductCode)
		}
	}
	return &rec, nil
}
