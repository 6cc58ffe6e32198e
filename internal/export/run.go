// Package export orchestrates one sheet-level allocation run: history
// gate, usage index load, allocation, upload attempts, batched flush.
package export

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sellhub-kr/listing-cli/internal/alloc"
	"github.com/sellhub-kr/listing-cli/internal/history"
	"github.com/sellhub-kr/listing-cli/internal/model"
	"github.com/sellhub-kr/listing-cli/internal/resilience"
	"github.com/sellhub-kr/listing-cli/internal/store"
	"github.com/sellhub-kr/listing-cli/internal/usage"
)

// Uploader matches pkg/market.Uploader; declared here so the runner
// depends on behavior, not on the client package.
type Uploader interface {
	Upload(ctx context.Context, sheetName string, slot model.StoreSlot, combo model.Combination) (model.UploadStatus, error)
}

// Request describes one run: one sheet, one business entity, its
// ordered store slots, and the candidate products in consideration
// order. Product order is caller-supplied and drives the allocation
// tie-break.
type Request struct {
	SheetName      string
	BusinessNumber string
	Slots          []model.StoreSlot
	Products       []model.Product
	FlushRetries   int           // extra flush attempts after the first
	FlushBackoff   time.Duration // wait between attempts; 0 = immediate
}

// Runner executes requests against a store and an uploader.
type Runner struct {
	st       store.Store
	uploader Uploader
}

// NewRunner creates a runner.
func NewRunner(st store.Store, uploader Uploader) *Runner {
	return &Runner{st: st, uploader: uploader}
}

// Run executes one sheet run. The returned report is non-nil whenever
// allocation started, even if the flush ultimately failed; the error
// carries the fatal condition if there is one.
//
// Callers must not run two invocations against the same sheet
// concurrently: the usage index and claimed-code set are run-scoped.
func (r *Runner) Run(ctx context.Context, req Request) (*model.RunReport, error) {
	if req.SheetName == "" {
		return nil, eris.New("export: sheet name required")
	}
	log := zap.L().With(
		zap.String("sheet", req.SheetName),
		zap.String("business_number", req.BusinessNumber),
	)
	log.Info("export: run starting",
		zap.Int("products", len(req.Products)),
		zap.Int("slots", len(req.Slots)),
	)

	report := &model.RunReport{
		SheetName:      req.SheetName,
		BusinessNumber: req.BusinessNumber,
		Slots:          len(req.Slots),
	}

	// Coarse dedup first: drop products this business entity already
	// sold, on any sheet, through any combination.
	gate := history.NewGate(r.st)
	candidates, dropped, err := gate.Filter(ctx, req.Products, req.BusinessNumber)
	if err != nil {
		return nil, eris.Wrap(err, "export: history gate")
	}
	report.FilteredByHistory = dropped

	// Count malformed products once; the allocator skips them too.
	valid := candidates[:0:0]
	for _, p := range candidates {
		if vErr := p.Validate(); vErr != nil {
			report.SkippedMalformed++
			log.Warn("export: malformed product skipped",
				zap.String("product_code", p.ProductCode),
				zap.Error(vErr),
			)
			continue
		}
		valid = append(valid, p)
	}

	// A failed load is fatal for the sheet: without history we could
	// hand out duplicates.
	index, err := usage.Load(ctx, r.st, req.SheetName)
	if err != nil {
		return nil, eris.Wrap(err, "export: load usage index")
	}

	results := alloc.New(index).Allocate(valid, req.Slots)

	writer := alloc.NewWriter(r.st)
	for _, res := range results {
		if !res.Assigned() {
			report.SkippedNoCombination++
			continue
		}
		report.Assigned++

		// Allocation is optimistic: the combination is reserved before
		// the delivery attempt, and the record carries whatever status
		// the marketplace reported.
		status, notes := r.attemptUpload(ctx, req.SheetName, res, log)
		if status == model.UploadStatusSuccess {
			report.Uploaded++
		} else {
			report.UploadFailed++
		}
		writer.Record(model.NewUsageRecord(req.SheetName, res.Slot, *res.Combination, status, notes))
	}

	persisted, flushErr := r.flush(ctx, writer, req, report)
	report.Persisted = persisted
	if flushErr != nil {
		report.Error = flushErr.Error()
		log.Error("export: flush failed, run incomplete",
			zap.Int("pending", writer.Pending()),
			zap.Error(flushErr),
		)
		return report, flushErr
	}

	log.Info("export: run complete",
		zap.Int("assigned", report.Assigned),
		zap.Int("skipped_no_combination", report.SkippedNoCombination),
		zap.Int("skipped_malformed", report.SkippedMalformed),
		zap.Int("filtered_by_history", report.FilteredByHistory),
		zap.Int("persisted", report.Persisted),
	)
	return report, nil
}

// attemptUpload runs one delivery and maps transport errors to FAILED.
func (r *Runner) attemptUpload(ctx context.Context, sheetName string, res model.AllocationResult, log *zap.Logger) (model.UploadStatus, string) {
	status, err := r.uploader.Upload(ctx, sheetName, res.Slot, *res.Combination)
	if err != nil {
		log.Warn("export: upload attempt failed",
			zap.String("store", res.Slot.Name),
			zap.String("product_code", res.Combination.ProductCode),
			zap.Error(err),
		)
		return model.UploadStatusFailed, err.Error()
	}
	return status, ""
}

// flush commits the buffered records, retrying within the request's
// budget. The buffer survives each failed attempt, so every retry
// replays the identical batch; that makes any failure worth the
// remaining budget, not just transient ones.
func (r *Runner) flush(ctx context.Context, writer *alloc.Writer, req Request, report *model.RunReport) (int, error) {
	var persisted int
	err := resilience.Do(ctx, resilience.RetryConfig{
		MaxAttempts:    req.FlushRetries + 1,
		InitialBackoff: req.FlushBackoff,
		Multiplier:     1.0,
		ShouldRetry:    func(error) bool { return true },
		OnRetry: func(attempt int, err error) {
			zap.L().Warn("export: flush attempt failed",
				zap.String("sheet", req.SheetName),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		},
	}, func(ctx context.Context) error {
		report.FlushAttempts++
		n, err := writer.Flush(ctx)
		if err != nil {
			return err
		}
		persisted = n
		return nil
	})
	if err != nil {
		return 0, eris.Wrapf(err, "export: flush failed after %d attempts", report.FlushAttempts)
	}
	return persisted, nil
}

// RunAll executes requests concurrently, at most maxConcurrent at a
// time. Sheets share no mutable state, so distinct sheets may overlap;
// duplicate sheet names are rejected up front to keep the
// single-writer-per-sheet discipline. One sheet's failure does not
// abort the others; per-sheet errors land in each report.
func (r *Runner) RunAll(ctx context.Context, reqs []Request, maxConcurrent int) ([]*model.RunReport, error) {
	seen := make(map[string]struct{}, len(reqs))
	for _, req := range reqs {
		if _, dup := seen[req.SheetName]; dup {
			return nil, eris.Errorf("export: sheet %q appears twice; same-sheet runs must be serialized", req.SheetName)
		}
		seen[req.SheetName] = struct{}{}
	}

	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	reports := make([]*model.RunReport, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrent)

	for i, req := range reqs {
		g.Go(func() error {
			report, err := r.Run(gctx, req)
			if report == nil {
				report = &model.RunReport{SheetName: req.SheetName, BusinessNumber: req.BusinessNumber}
			}
			if err != nil {
				report.Error = err.Error()
			}
			reports[i] = report
			return nil // individual sheet failures don't abort the batch
		})
	}

	if err := g.Wait(); err != nil {
		return reports, eris.Wrap(err, "export: run all")
	}
	return reports, nil
}
