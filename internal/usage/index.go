// Package usage maintains the per-sheet in-memory view of consumed
// combination keys.
package usage

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sellhub-kr/listing-cli/internal/model"
	"github.com/sellhub-kr/listing-cli/internal/store"
)

// Index is the set of dedup keys already consumed on one sheet. It is
// run-scoped: loaded once per sheet per run, mutated in memory as
// allocations are made, and thrown away if the run aborts before the
// batch flush commits. It is not safe for concurrent use; a sheet run
// is a single logical unit of work.
type Index struct {
	sheet string
	keys  map[model.CombinationKey]struct{}
}

// Load reads every usage record for the sheet, regardless of upload
// status, and builds the key set. A load failure is fatal for the
// sheet: allocating without history risks duplicate combinations.
func Load(ctx context.Context, st store.Store, sheetName string) (*Index, error) {
	if sheetName == "" {
		return nil, eris.New("usage: sheet name required")
	}

	records, err := st.ListUsage(ctx, model.UsageFilter{SheetName: sheetName})
	if err != nil {
		return nil, eris.Wrapf(err, "usage: load index for sheet %s", sheetName)
	}

	ix := &Index{
		sheet: sheetName,
		keys:  make(map[model.CombinationKey]struct{}, len(records)),
	}
	for _, rec := range records {
		ix.keys[rec.Key()] = struct{}{}
	}

	zap.L().Debug("usage: index loaded",
		zap.String("sheet", sheetName),
		zap.Int("keys", len(ix.keys)),
	)
	return ix, nil
}

// Sheet returns the dedup namespace this index covers.
func (ix *Index) Sheet() string { return ix.sheet }

// Contains reports whether the key is already consumed on this sheet.
func (ix *Index) Contains(key model.CombinationKey) bool {
	_, ok := ix.keys[key]
	return ok
}

// Insert marks a key consumed immediately, before the durable flush,
// so later allocations in the same run never double-assign it.
func (ix *Index) Insert(key model.CombinationKey) {
	ix.keys[key] = struct{}{}
}

// Len returns the number of consumed keys.
func (ix *Index) Len() int { return len(ix.keys) }

// Reload replaces the key set with fresh store state. Call it before
// starting a new run against the same Index value.
func (ix *Index) Reload(ctx context.Context, st store.Store) error {
	fresh, err := Load(ctx, st, ix.sheet)
	if err != nil {
		return err
	}
	ix.keys = fresh.keys
	return nil
}
