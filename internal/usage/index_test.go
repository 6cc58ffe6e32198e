package usage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sellhub-kr/listing-cli/internal/model"
	"github.com/sellhub-kr/listing-cli/internal/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func seedUsage(t *testing.T, st store.Store, sheet string, combo model.Combination, slot model.StoreSlot, status model.UploadStatus) {
	t.Helper()
	rec := model.NewUsageRecord(sheet, slot, combo, status, "")
	_, err := st.InsertUsageBatch(context.Background(), []model.UsageRecord{rec})
	require.NoError(t, err)
}

func TestLoadIncludesAllStatuses(t *testing.T) {
	st := newTestStore(t)
	slot := model.StoreSlot{Name: "스토어A", BusinessNumber: "123-45-67890"}

	success := model.Combination{ProductCode: "PROD001", Kind: model.KindMix, URL: "https://img.example/mix1.jpg", NameIndex: 0, NameText: "이름A"}
	failed := model.Combination{ProductCode: "PROD002", Kind: model.KindNukki, URL: "https://img.example/nukki2.jpg", NameIndex: 1, NameText: "이름B"}
	seedUsage(t, st, "쿠팡", success, slot, model.UploadStatusSuccess)
	seedUsage(t, st, "쿠팡", failed, slot, model.UploadStatusFailed)

	ix, err := Load(context.Background(), st, "쿠팡")
	require.NoError(t, err)

	assert.Equal(t, "쿠팡", ix.Sheet())
	assert.Equal(t, 2, ix.Len())
	// A FAILED attempt still burns the combination.
	assert.True(t, ix.Contains(success.Key()))
	assert.True(t, ix.Contains(failed.Key()))
}

func TestLoadIsSheetScoped(t *testing.T) {
	st := newTestStore(t)
	slot := model.StoreSlot{Name: "스토어A", BusinessNumber: "123-45-67890"}

	combo := model.Combination{ProductCode: "PROD001", Kind: model.KindMix, URL: "https://img.example/mix1.jpg", NameText: "이름A"}
	seedUsage(t, st, "쿠팡", combo, slot, model.UploadStatusSuccess)

	ix, err := Load(context.Background(), st, "스마트스토어")
	require.NoError(t, err)
	assert.Zero(t, ix.Len())
	assert.False(t, ix.Contains(combo.Key()))
}

func TestLoadRequiresSheet(t *testing.T) {
	st := newTestStore(t)

	_, err := Load(context.Background(), st, "")
	require.Error(t, err)
}

func TestInsertIsVisibleBeforeFlush(t *testing.T) {
	st := newTestStore(t)

	ix, err := Load(context.Background(), st, "쿠팡")
	require.NoError(t, err)

	key := model.NewCombinationKey("PROD001", "https://img.example/mix1.jpg", "이름A")
	assert.False(t, ix.Contains(key))

	ix.Insert(key)
	assert.True(t, ix.Contains(key))
	assert.Equal(t, 1, ix.Len())

	// Nothing was persisted; a reload drops the in-memory reservation.
	require.NoError(t, ix.Reload(context.Background(), st))
	assert.False(t, ix.Contains(key))
}

func TestKindDoesNotDistinguishKeys(t *testing.T) {
	st := newTestStore(t)
	slot := model.StoreSlot{Name: "스토어A", BusinessNumber: "123-45-67890"}

	// A product whose mix and nukki columns carry the same URL: once
	// the MIX side is used, the NUKKI side is used up too.
	url := "https://img.example/same.jpg"
	mix := model.Combination{ProductCode: "PROD001", Kind: model.KindMix, URL: url, NameText: "이름A"}
	seedUsage(t, st, "쿠팡", mix, slot, model.UploadStatusSuccess)

	ix, err := Load(context.Background(), st, "쿠팡")
	require.NoError(t, err)

	nukki := model.Combination{ProductCode: "PROD001", Kind: model.KindNukki, URL: url, NameText: "이름A"}
	assert.True(t, ix.Contains(nukki.Key()))
}
