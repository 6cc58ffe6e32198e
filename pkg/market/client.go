// Package market is the boundary to the marketplace upload
// collaborators. The engine allocates optimistically, hands the
// assignment to an Uploader, and records whatever status comes back.
package market

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sellhub-kr/listing-cli/internal/model"
)

// Uploader delivers one assigned combination to a storefront and
// reports the outcome. Implementations wrap the per-marketplace HTTP
// protocols, which live outside this repo.
type Uploader interface {
	Upload(ctx context.Context, sheetName string, slot model.StoreSlot, combo model.Combination) (model.UploadStatus, error)
}

// ClientOption configures a client.
type ClientOption func(*dryRunClient)

// WithRateLimit throttles upload calls to rps requests per second.
// Marketplaces ban accounts that hammer their listing endpoints.
func WithRateLimit(rps float64) ClientOption {
	return func(c *dryRunClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		} else {
			c.limiter = nil
		}
	}
}

// dryRunClient reports SUCCESS without calling any marketplace. Used
// for offline exports (the sheet is produced for manual upload) and in
// tests.
type dryRunClient struct {
	limiter *rate.Limiter
}

// NewDryRun creates an uploader that performs no delivery and reports
// every assignment as successful. Default throttle is 5 req/s to keep
// dry runs representative of live pacing.
func NewDryRun(opts ...ClientOption) Uploader {
	c := &dryRunClient{limiter: rate.NewLimiter(5, 1)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *dryRunClient) Upload(ctx context.Context, sheetName string, slot model.StoreSlot, combo model.Combination) (model.UploadStatus, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return model.UploadStatusFailed, eris.Wrap(err, "market: rate limit wait")
		}
	}

	zap.L().Debug("market: dry-run upload",
		zap.String("sheet", sheetName),
		zap.String("store", slot.Name),
		zap.String("product_code", combo.ProductCode),
	)
	return model.UploadStatusSuccess, nil
}
