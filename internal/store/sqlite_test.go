package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sellhub-kr/listing-cli/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testRecord(sheet, code, url, name string, status model.UploadStatus) model.UsageRecord {
	return model.UsageRecord{
		ID:               uuid.New().String(),
		SheetName:        sheet,
		BusinessNumber:   "123-45-67890",
		StoreName:        "스토어A",
		ProductCode:      code,
		UsedMixURL:       url,
		UsedProductName:  name,
		ProductNameIndex: 0,
		Strategy: model.Strategy{
			ProductCode: code,
			Kind:        model.KindMix,
			StrategyID:  code + "_0_mix",
		},
		Status:     status,
		UploadedAt: time.Now().UTC(),
	}
}

func TestUpsertProducts(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	products := []model.Product{
		{
			ProductCode:  "PROD001",
			NameVariants: []string{"프리미엄 공기청정기", "공기청정기 특가"},
			MixURL:       "https://img.example/mix1.jpg",
			NukkiURL:     "https://img.example/nukki1.jpg",
			Category:     "가전",
			Status:       model.ProductStatusActive,
			SourceFile:   "catalog.xlsx",
		},
		{
			ProductCode:  "PROD002",
			NameVariants: []string{"무선 청소기"},
			MixURL:       "https://img.example/mix2.jpg",
			Category:     "가전",
		},
	}

	n, err := st.UpsertProducts(ctx, products)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Re-import replaces, not duplicates.
	products[0].NameVariants = []string{"새 이름"}
	n, err = st.UpsertProducts(ctx, products[:1])
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := st.ListProducts(ctx, model.ProductFilter{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "PROD001", got[0].ProductCode)
	assert.Equal(t, []string{"새 이름"}, got[0].NameVariants)
	assert.Equal(t, model.ProductStatusActive, got[1].Status)
}

func TestListProductsFilter(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, err := st.UpsertProducts(ctx, []model.Product{
		{ProductCode: "PROD001", NameVariants: []string{"a"}, MixURL: "u", Category: "가전/주방"},
		{ProductCode: "PROD002", NameVariants: []string{"b"}, MixURL: "u", Category: "가전/거실"},
		{ProductCode: "PROD003", NameVariants: []string{"c"}, MixURL: "u", Category: "식품"},
	})
	require.NoError(t, err)

	got, err := st.ListProducts(ctx, model.ProductFilter{Category: "가전"})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = st.ListProducts(ctx, model.ProductFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "PROD001", got[0].ProductCode)
}

func TestInsertUsageBatchAndList(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	records := []model.UsageRecord{
		testRecord("쿠팡", "PROD001", "https://img.example/mix1.jpg", "이름A", model.UploadStatusSuccess),
		testRecord("쿠팡", "PROD002", "https://img.example/mix2.jpg", "이름B", model.UploadStatusFailed),
	}
	n, err := st.InsertUsageBatch(ctx, records)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := st.ListUsage(ctx, model.UsageFilter{SheetName: "쿠팡"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "PROD001", got[0].ProductCode)
	assert.Equal(t, "이름A", got[0].UsedProductName)
	assert.Equal(t, model.KindMix, got[0].Strategy.Kind)
	assert.Equal(t, "PROD001_0_mix", got[0].Strategy.StrategyID)
	assert.Equal(t, model.UploadStatusFailed, got[1].Status)

	got, err = st.ListUsage(ctx, model.UsageFilter{SheetName: "쿠팡", Status: model.UploadStatusSuccess})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "PROD001", got[0].ProductCode)

	_, err = st.ListUsage(ctx, model.UsageFilter{})
	require.Error(t, err)
}

func TestInsertUsageBatchAtomicOnDuplicate(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	first := testRecord("쿠팡", "PROD001", "https://img.example/mix1.jpg", "이름A", model.UploadStatusSuccess)
	_, err := st.InsertUsageBatch(ctx, []model.UsageRecord{first})
	require.NoError(t, err)

	// Batch of a fresh record plus a combination already used on the
	// sheet: the unique index rejects the duplicate and the whole batch
	// rolls back.
	fresh := testRecord("쿠팡", "PROD002", "https://img.example/mix2.jpg", "이름B", model.UploadStatusSuccess)
	dup := testRecord("쿠팡", "PROD001", "https://img.example/mix1.jpg", "이름A", model.UploadStatusFailed)
	_, err = st.InsertUsageBatch(ctx, []model.UsageRecord{fresh, dup})
	require.Error(t, err)

	got, err := st.ListUsage(ctx, model.UsageFilter{SheetName: "쿠팡"})
	require.NoError(t, err)
	assert.Len(t, got, 1, "failed batch must leave no partial rows")
}

func TestSheetsAreIndependentNamespaces(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	// Identical combination on two sheets is allowed.
	a := testRecord("쿠팡", "PROD001", "https://img.example/mix1.jpg", "이름A", model.UploadStatusSuccess)
	b := testRecord("스마트스토어", "PROD001", "https://img.example/mix1.jpg", "이름A", model.UploadStatusSuccess)

	_, err := st.InsertUsageBatch(ctx, []model.UsageRecord{a})
	require.NoError(t, err)
	_, err = st.InsertUsageBatch(ctx, []model.UsageRecord{b})
	require.NoError(t, err)

	got, err := st.ListUsage(ctx, model.UsageFilter{SheetName: "쿠팡"})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestInsertUsageBatchRejectsInvalid(t *testing.T) {
	st := newTestStore(t)

	bad := testRecord("쿠팡", "PROD001", "https://img.example/mix1.jpg", "이름A", model.UploadStatusSuccess)
	bad.UsedNukkiURL = "https://img.example/nukki1.jpg" // both URLs set

	_, err := st.InsertUsageBatch(context.Background(), []model.UsageRecord{bad})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one")
}

func TestHasSuccessfulUpload(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	failed := testRecord("쿠팡", "PROD001", "https://img.example/mix1.jpg", "이름A", model.UploadStatusFailed)
	_, err := st.InsertUsageBatch(ctx, []model.UsageRecord{failed})
	require.NoError(t, err)

	// FAILED attempts do not count.
	got, err := st.HasSuccessfulUpload(ctx, "123-45-67890", "PROD001")
	require.NoError(t, err)
	assert.False(t, got)

	ok := testRecord("스마트스토어", "PROD001", "https://img.example/mix2.jpg", "이름B", model.UploadStatusSuccess)
	_, err = st.InsertUsageBatch(ctx, []model.UsageRecord{ok})
	require.NoError(t, err)

	// SUCCESS on any sheet counts for the business entity.
	got, err = st.HasSuccessfulUpload(ctx, "123-45-67890", "PROD001")
	require.NoError(t, err)
	assert.True(t, got)

	got, err = st.HasSuccessfulUpload(ctx, "999-99-99999", "PROD001")
	require.NoError(t, err)
	assert.False(t, got)

	got, err = st.HasSuccessfulUpload(ctx, "", "PROD001")
	require.NoError(t, err)
	assert.False(t, got)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "oracle", "dsn")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown driver")
}

func TestEmptyBatchesAreNoOps(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	n, err := st.UpsertProducts(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = st.InsertUsageBatch(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}
