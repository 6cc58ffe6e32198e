package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sellhub-kr/listing-cli/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresFromPool(mock), mock
}

func TestPostgresHasSuccessfulUpload(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("123-45-67890", "PROD001", "SUCCESS").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	got, err := st.HasSuccessfulUpload(context.Background(), "123-45-67890", "PROD001")
	require.NoError(t, err)
	assert.True(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresHasSuccessfulUploadEmptyArgs(t *testing.T) {
	st, mock := newMockStore(t)

	// No query expected: empty inputs short-circuit.
	got, err := st.HasSuccessfulUpload(context.Background(), "", "PROD001")
	require.NoError(t, err)
	assert.False(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresInsertUsageBatch(t *testing.T) {
	st, mock := newMockStore(t)

	records := []model.UsageRecord{
		{
			ID:              "id-1",
			SheetName:       "쿠팡",
			BusinessNumber:  "123-45-67890",
			StoreName:       "스토어A",
			ProductCode:     "PROD001",
			UsedMixURL:      "https://img.example/mix1.jpg",
			UsedProductName: "이름A",
			Status:          model.UploadStatusSuccess,
			UploadedAt:      time.Now().UTC(),
		},
	}

	mock.ExpectBegin()
	mock.ExpectCopyFrom(pgx.Identifier{"upload_logs"}, uploadLogColumns).
		WillReturnResult(int64(len(records)))
	mock.ExpectCommit()

	n, err := st.InsertUsageBatch(context.Background(), records)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresInsertUsageBatchRejectsInvalid(t *testing.T) {
	st, mock := newMockStore(t)

	bad := model.UsageRecord{
		SheetName:   "쿠팡",
		ProductCode: "PROD001",
		// no URL at all
		Status: model.UploadStatusSuccess,
	}

	_, err := st.InsertUsageBatch(context.Background(), []model.UsageRecord{bad})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet(), "invalid batch must not reach the database")
}

func TestPostgresListUsage(t *testing.T) {
	st, mock := newMockStore(t)

	uploadedAt := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	strategy := `{"product_code":"PROD001","kind":"MIX","name_index":0,"strategy_id":"PROD001_0_mix"}`
	mix := "https://img.example/mix1.jpg"
	storeName := "스토어A"

	rows := pgxmock.NewRows([]string{
		"id", "sheet_name", "business_number", "store_name", "product_code",
		"used_mix_url", "used_nukki_url", "used_product_name", "product_name_index",
		"strategy", "upload_status", "uploaded_at", "notes",
	}).AddRow(
		"id-1", "쿠팡", "123-45-67890", &storeName, "PROD001",
		&mix, (*string)(nil), "이름A", 0,
		&strategy, model.UploadStatusSuccess, uploadedAt, (*string)(nil),
	)

	mock.ExpectQuery("SELECT id, sheet_name").
		WithArgs("쿠팡").
		WillReturnRows(rows)

	got, err := st.ListUsage(context.Background(), model.UsageFilter{SheetName: "쿠팡"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "PROD001", got[0].ProductCode)
	assert.Equal(t, "스토어A", got[0].StoreName)
	assert.Equal(t, mix, got[0].URL())
	assert.Equal(t, "PROD001_0_mix", got[0].Strategy.StrategyID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListUsageRequiresSheet(t *testing.T) {
	st, _ := newMockStore(t)

	_, err := st.ListUsage(context.Background(), model.UsageFilter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sheet name")
}

func TestPostgresMigrate(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS products").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, st.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpsertProducts(t *testing.T) {
	st, mock := newMockStore(t)

	products := []model.Product{
		{
			ProductCode:  "PROD001",
			NameVariants: []string{"프리미엄 공기청정기"},
			MixURL:       "https://img.example/mix1.jpg",
			Category:     "가전",
		},
	}

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_products"}, productColumns).
		WillReturnResult(int64(len(products)))
	mock.ExpectExec("INSERT INTO \"products\"").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	n, err := st.UpsertProducts(context.Background(), products)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
