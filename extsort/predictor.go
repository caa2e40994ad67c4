package extsort

import (
	"context"
	"sync/atomic"

	"github.com/go-sif/dflow/internal/util"
	"github.com/go-sif/dflow/logging"
)

// predict is the predictor goroutine. It repeatedly prefetches the next frame of the run whose
// last known tuple sorts first, until every run is exhausted or ctx is cancelled.
func (c *PredictingFrameReaderCollection) predict(ctx context.Context) {
	defer close(c.done)
	logging.Printf(logging.DebugLevel, "Predictor started over %d runs", c.tree.Len())
	err := util.SafeGo("Predictor", func() error {
		for c.predictNext(ctx) {
		}
		return nil
	})
	if err != nil {
		logging.Printf(logging.ErrorLevel, "%s", err.Error())
	}
	cancelled := ctx.Err() != nil
	// hand every run which still has a consumer back to synchronous reads, or end it
	for _, q := range c.queues {
		q.mu.Lock()
		if cancelled {
			q.cancelled = true
		} else {
			q.fallback = true
		}
		q.cond.Broadcast()
		q.mu.Unlock()
	}
	logging.Printf(logging.DebugLevel, "Predictor stopped (cancelled: %t)", cancelled)
}

// predictNext performs one prefetch, returning false when the predictor should stop
func (c *PredictingFrameReaderCollection) predictNext(ctx context.Context) bool {
	run, ok := c.tree.Peek()
	if !ok {
		return false
	}
	pb, ok := c.takeEmptyBuffer(ctx)
	if !ok {
		return false
	}
	q := c.queues[run]
	q.mu.Lock()
	for q.reading && !q.closed && ctx.Err() == nil {
		q.cond.Wait()
	}
	if q.closed || ctx.Err() != nil {
		q.mu.Unlock()
		c.pool <- pb
		return false
	}
	if q.exhausted {
		q.mu.Unlock()
		c.pool <- pb
		c.tree.Pop()
		return true
	}
	q.inFlight = true
	q.mu.Unlock()

	hasFrame, err := c.readers[run].NextFrame(pb.frame)

	if err == nil && hasFrame {
		c.prime(run, pb.frame)
	}
	q.mu.Lock()
	q.inFlight = false
	if err != nil {
		// the consumer will retry this frame synchronously, surfacing the error if it persists
		q.fallback = true
		q.cond.Broadcast()
		q.mu.Unlock()
		c.pool <- pb
		c.tree.Pop()
		c.stats.PrefetchFailed()
		logging.Printf(logging.WarnLevel, "Unable to prefetch frame of run %d, reverting to synchronous reads: %s", run, err)
		return true
	} else if !hasFrame {
		q.exhausted = true
		q.cond.Broadcast()
		q.mu.Unlock()
		c.pool <- pb
		c.tree.Pop()
		return true
	}
	q.enqueue(pb)
	q.mu.Unlock()
	c.stats.FramePrefetched(run)
	c.tree.Advance()
	return true
}

// takeEmptyBuffer blocks until a buffer is available in the pool or ctx is cancelled
func (c *PredictingFrameReaderCollection) takeEmptyBuffer(ctx context.Context) (*predictionBuffer, bool) {
	select {
	case pb := <-c.pool:
		return pb, true
	default:
	}
	c.stats.PoolWaited()
	atomic.StoreInt32(&c.starved, 1)
	defer atomic.StoreInt32(&c.starved, 0)
	c.wakeConsumers()
	select {
	case pb := <-c.pool:
		return pb, true
	case <-ctx.Done():
		return nil, false
	}
}
