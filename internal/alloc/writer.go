package alloc

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sellhub-kr/listing-cli/internal/model"
	"github.com/sellhub-kr/listing-cli/internal/store"
)

// Writer buffers usage records and commits them in one transaction.
// Per-record commits serialize on storage I/O; batching amortizes the
// commit cost while keeping the same visibility contract: all rows of
// one flush land together or not at all.
type Writer struct {
	st  store.Store
	buf []model.UsageRecord
}

// NewWriter creates an empty writer over the given store.
func NewWriter(st store.Store) *Writer {
	return &Writer{st: st}
}

// Record appends a usage record to the buffer. No I/O happens here.
func (w *Writer) Record(rec model.UsageRecord) {
	w.buf = append(w.buf, rec)
}

// Pending returns the number of buffered, unflushed records.
func (w *Writer) Pending() int { return len(w.buf) }

// Flush commits every buffered record in a single transaction. On
// success the buffer is cleared; on failure it is retained unmodified
// so the caller can retry the identical flush. Retry policy belongs to
// the caller.
func (w *Writer) Flush(ctx context.Context) (int, error) {
	if len(w.buf) == 0 {
		return 0, nil
	}

	n, err := w.st.InsertUsageBatch(ctx, w.buf)
	if err != nil {
		return 0, eris.Wrapf(err, "alloc: flush %d usage records", len(w.buf))
	}

	zap.L().Info("alloc: usage batch flushed", zap.Int("records", n))
	w.buf = w.buf[:0]
	return n, nil
}
