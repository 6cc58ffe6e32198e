// Package alloc decides which combination each store slot receives and
// journals the outcomes for batched persistence.
package alloc

import (
	"go.uber.org/zap"

	"github.com/sellhub-kr/listing-cli/internal/catalog"
	"github.com/sellhub-kr/listing-cli/internal/model"
	"github.com/sellhub-kr/listing-cli/internal/usage"
)

// Allocator assigns combinations to store slots for one sheet run.
// It is pure in-memory: persistence faults never surface here.
type Allocator struct {
	index   *usage.Index
	claimed map[string]struct{} // product codes assigned in this run
}

// New creates an allocator over a loaded usage index. The allocator is
// run-scoped, like the index: build a fresh one per run.
func New(index *usage.Index) *Allocator {
	return &Allocator{
		index:   index,
		claimed: make(map[string]struct{}),
	}
}

// Allocate assigns at most one product to each slot, in slot order.
//
// For each slot it scans products in caller order and takes the first
// combination in catalog order whose key is free on the sheet.
// Products not yet claimed this run are preferred; once every product
// is claimed, a claimed product's next free combination is reused
// rather than starving the slot. The chosen key is inserted into the
// index immediately, so later slots see it before any flush. A slot
// with no available combination is skipped, never retried.
//
// Every slot receives exactly one result; the whole procedure is
// deterministic given identical inputs and index state.
func (a *Allocator) Allocate(products []model.Product, slots []model.StoreSlot) []model.AllocationResult {
	log := zap.L().With(zap.String("sheet", a.index.Sheet()))

	// Malformed products are skipped with a warning, not fatal.
	valid := make([]model.Product, 0, len(products))
	for _, p := range products {
		if err := p.Validate(); err != nil {
			log.Warn("alloc: skipping malformed product",
				zap.String("product_code", p.ProductCode),
				zap.Error(err),
			)
			continue
		}
		valid = append(valid, p)
	}

	results := make([]model.AllocationResult, 0, len(slots))
	for _, slot := range slots {
		combo := a.next(valid)
		if combo == nil {
			log.Info("alloc: no available combination",
				zap.String("store", slot.Name),
			)
			results = append(results, model.AllocationResult{
				Slot:    slot,
				Outcome: model.OutcomeNoAvailableCombination,
			})
			continue
		}

		a.index.Insert(combo.Key())
		a.claimed[combo.ProductCode] = struct{}{}
		results = append(results, model.AllocationResult{
			Slot:        slot,
			Outcome:     model.OutcomeAssigned,
			Combination: combo,
		})

		log.Debug("alloc: assigned",
			zap.String("store", slot.Name),
			zap.String("product_code", combo.ProductCode),
			zap.String("kind", string(combo.Kind)),
			zap.Int("name_index", combo.NameIndex),
		)
	}
	return results
}

// Claimed returns the number of product codes consumed so far.
func (a *Allocator) Claimed() int { return len(a.claimed) }

// next finds the first free combination, preferring unclaimed products.
func (a *Allocator) next(products []model.Product) *model.Combination {
	if combo := a.scan(products, false); combo != nil {
		return combo
	}
	return a.scan(products, true)
}

func (a *Allocator) scan(products []model.Product, claimed bool) *model.Combination {
	for _, p := range products {
		if _, taken := a.claimed[p.ProductCode]; taken != claimed {
			continue
		}
		for _, c := range catalog.Generate(p) {
			if !a.index.Contains(c.Key()) {
				combo := c
				return &combo
			}
		}
	}
	return nil
}
