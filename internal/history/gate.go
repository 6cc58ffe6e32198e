// Package history implements the coarse cross-run dedup check: has a
// business entity ever successfully delivered a product, on any sheet,
// with any combination.
package history

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sellhub-kr/listing-cli/internal/model"
	"github.com/sellhub-kr/listing-cli/internal/store"
)

// Gate filters products that were already sold through an account.
// Its key is (business_number, product_code) and only SUCCESS records
// count; a FAILED attempt leaves the product eligible.
type Gate struct {
	st store.Store
}

// NewGate creates a gate over the given store.
func NewGate(st store.Store) *Gate {
	return &Gate{st: st}
}

// Filter returns the products with no prior successful delivery for
// the business number, preserving caller order, plus the count of
// products it dropped.
func (g *Gate) Filter(ctx context.Context, products []model.Product, businessNumber string) ([]model.Product, int, error) {
	if businessNumber == "" {
		return products, 0, nil
	}

	kept := make([]model.Product, 0, len(products))
	dropped := 0
	for _, p := range products {
		delivered, err := g.st.HasSuccessfulUpload(ctx, businessNumber, p.ProductCode)
		if err != nil {
			return nil, 0, eris.Wrapf(err, "history: check %s", p.ProductCode)
		}
		if delivered {
			dropped++
			zap.L().Debug("history: product already delivered",
				zap.String("business_number", businessNumber),
				zap.String("product_code", p.ProductCode),
			)
			continue
		}
		kept = append(kept, p)
	}
	return kept, dropped, nil
}
