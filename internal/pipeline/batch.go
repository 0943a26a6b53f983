package pipeline

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/valpere/perepys/internal/article"
)

// DefaultBatchDelay paces consecutive batch articles.
const DefaultBatchDelay = 5 * time.Second

// BatchItem is the outcome of one batch entry. Err is set when the run
// aborted before producing a result: fetch failure or cancellation.
type BatchItem struct {
	Request RunRequest
	Result  *article.PipelineResult
	Err     error
}

// RunBatch processes the requests in order, waiting out the delay between
// starts so consecutive articles do not hammer the scrape target or the
// backend API. A failed article never stops the batch; cancellation does,
// recorded on the entry it interrupted.
func (r *Runner) RunBatch(ctx context.Context, reqs []RunRequest, delay time.Duration) []BatchItem {
	if delay <= 0 {
		delay = DefaultBatchDelay
	}
	limiter := rate.NewLimiter(rate.Every(delay), 1)

	items := make([]BatchItem, 0, len(reqs))
	for _, req := range reqs {
		if err := limiter.Wait(ctx); err != nil {
			items = append(items, BatchItem{Request: req, Err: err})
			break
		}
		res, err := r.Run(ctx, req)
		items = append(items, BatchItem{Request: req, Result: res, Err: err})
	}
	return items
}
