// Package extsort implements external sorting: generating sorted runs under a frame budget, and
// merging them through a selection tree. Merges may read ahead through a
// PredictingFrameReaderCollection, whose predictor goroutine prefetches the next frame of the run
// that will be exhausted soonest.
package extsort

import (
	"context"
	"log"
	"sync"
	"sync/atomic"

	"github.com/go-sif/dflow"
	"github.com/go-sif/dflow/comparator"
	"github.com/go-sif/dflow/errors"
	"github.com/go-sif/dflow/frame"
	"github.com/go-sif/dflow/internal/selection"
	"github.com/go-sif/dflow/internal/stats"
	"github.com/hashicorp/go-multierror"
)

// referenceEntry tracks the last tuple known for a run: the last tuple of the most recent
// frame read from it. After activation it is only touched by the predictor.
type referenceEntry struct {
	run        int
	frame      []byte // a private copy of the most recent frame
	accessor   *frame.TupleAccessor
	tupleIndex int // -1 while no tuple is known
}

// PredictingFrameReaderCollection presents N run readers as N independent cursors. Until
// Activate is called, cursors read synchronously from their runs. Afterwards, a predictor
// goroutine reads ahead into a bounded pool of buffers, always serving the run whose last
// known tuple sorts first.
type PredictingFrameReaderCollection struct {
	opts       *CollectionOptions
	readers    []dflow.FrameReader
	cursors    []dflow.FrameReader
	entries    []*referenceEntry
	queues     []*forecastQueue
	pool       chan *predictionBuffer
	stats      *stats.PredictionStatistics
	starved    int32 // 1 while the predictor waits for an empty buffer
	lock       sync.Mutex
	activated  bool
	closed     bool
	comparator *comparator.TupleComparator
	tree       *selection.Tree
	cancel     context.CancelFunc
	done       chan struct{}
}

// CreatePredictingFrameReaderCollection wraps the given run readers. Prediction buffers are
// allocated immediately, but no goroutine is started until Activate.
func CreatePredictingFrameReaderCollection(runs []dflow.FrameReader, opts *CollectionOptions) *PredictingFrameReaderCollection {
	ensureDefaultCollectionOptionsValues(opts)
	c := &PredictingFrameReaderCollection{
		opts:    opts,
		readers: runs,
		cursors: make([]dflow.FrameReader, len(runs)),
		entries: make([]*referenceEntry, len(runs)),
		queues:  make([]*forecastQueue, len(runs)),
		pool:    make(chan *predictionBuffer, opts.PredictionFramesLimit),
		stats:   stats.CreatePredictionStatistics(len(runs)),
	}
	for i := range runs {
		c.cursors[i] = &runCursor{collection: c, run: i}
		c.entries[i] = &referenceEntry{
			run:        i,
			frame:      frame.Allocate(opts.FrameSize),
			accessor:   frame.CreateTupleAccessor(opts.RecordDescriptor),
			tupleIndex: -1,
		}
		c.queues[i] = createForecastQueue()
	}
	for i := 0; i < opts.PredictionFramesLimit; i++ {
		c.pool <- &predictionBuffer{frame: frame.Allocate(opts.FrameSize)}
	}
	return c
}

// RunCursors returns one FrameReader per run. Closing a cursor has no effect; the underlying
// readers are closed by Close.
func (c *PredictingFrameReaderCollection) RunCursors() []dflow.FrameReader {
	return c.cursors
}

// NumRuns returns the number of runs in this collection
func (c *PredictingFrameReaderCollection) NumRuns() int {
	return len(c.readers)
}

// Statistics returns live statistics about this collection
func (c *PredictingFrameReaderCollection) Statistics() dflow.PredictionStatistics {
	return c.stats
}

// Activate switches the collection to prediction mode: it builds the selection tree over every
// run's last known tuple and starts the predictor. If cmp is nil, a comparator is built from the
// configured sort fields. Activate may only be called once.
func (c *PredictingFrameReaderCollection) Activate(ctx context.Context, cmp *comparator.TupleComparator) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.closed {
		return errors.CollectionClosedError{}
	} else if c.activated {
		return errors.AlreadyActivatedError{}
	}
	if cmp == nil {
		if len(c.opts.SortFields) == 0 {
			log.Panicf("Cannot activate prediction without a comparator or sort fields")
		}
		cmp = comparator.CreateTupleComparator(c.opts.SortFields, c.opts.ComparatorFactories)
	}
	cmp.Validate(c.opts.RecordDescriptor)
	c.activated = true
	c.comparator = cmp
	// flipping every queue to active under its lock orders all earlier priming reads before the predictor
	live := make([]int, 0, len(c.queues))
	for i, q := range c.queues {
		q.mu.Lock()
		q.active = true
		if !q.exhausted {
			live = append(live, i)
		}
		q.mu.Unlock()
	}
	c.tree = selection.New(live, c.entryLess)
	pctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.predict(pctx)
	return nil
}

// entryLess orders runs by their last known tuple. Runs without a known tuple come first.
func (c *PredictingFrameReaderCollection) entryLess(a int, b int) bool {
	ea := c.entries[a]
	eb := c.entries[b]
	if ea.tupleIndex < 0 || eb.tupleIndex < 0 {
		if ea.tupleIndex < 0 && eb.tupleIndex < 0 {
			return a < b
		}
		return ea.tupleIndex < 0
	}
	res := c.comparator.Compare(ea.accessor, ea.tupleIndex, eb.accessor, eb.tupleIndex)
	if res != 0 {
		return res < 0
	}
	return a < b
}

// prime records the last tuple of a frame just read from a run
func (c *PredictingFrameReaderCollection) prime(run int, f []byte) {
	e := c.entries[run]
	frame.Copy(f, e.frame)
	e.accessor.Reset(e.frame)
	e.tupleIndex = e.accessor.GetTupleCount() - 1
}

// GetFrame copies the next frame of a run into buf, returning false at the end of the run
func (c *PredictingFrameReaderCollection) GetFrame(buf []byte, run int) (bool, error) {
	if err := frame.CheckSize(buf, c.opts.FrameSize); err != nil {
		return false, err
	}
	q := c.queues[run]
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false, errors.CollectionClosedError{}
	}
	if !q.active {
		defer q.mu.Unlock()
		if q.exhausted {
			return false, nil
		}
		ok, err := c.readers[run].NextFrame(buf)
		if err != nil {
			return false, errors.DataExchangeError{Run: run, Err: err}
		} else if !ok {
			q.exhausted = true
			return false, nil
		}
		c.prime(run, buf)
		c.stats.FrameDelivered(run)
		return true, nil
	}
	blocked := false
	for {
		if pb := q.dequeue(); pb != nil {
			frame.Copy(pb.frame, buf)
			q.mu.Unlock()
			c.pool <- pb
			c.stats.FrameDelivered(run)
			return true, nil
		}
		if q.exhausted || q.cancelled || q.closed {
			q.mu.Unlock()
			return false, nil
		}
		// read directly if the predictor has given up on this run, or is stuck waiting
		// for a buffer only a consumer can return
		if !q.inFlight && !q.reading && (q.fallback || atomic.LoadInt32(&c.starved) == 1) {
			return c.readDirect(q, buf, run)
		}
		if !blocked {
			blocked = true
			c.stats.DequeueBlocked(run)
		}
		q.cond.Wait()
	}
}

// readDirect reads the next frame of a run synchronously. q.mu must be held, and is released.
func (c *PredictingFrameReaderCollection) readDirect(q *forecastQueue, buf []byte, run int) (bool, error) {
	q.reading = true
	q.mu.Unlock()
	ok, err := c.readers[run].NextFrame(buf)
	q.mu.Lock()
	q.reading = false
	if err == nil && !ok {
		q.exhausted = true
	}
	q.cond.Broadcast()
	q.mu.Unlock()
	if err != nil {
		return false, errors.DataExchangeError{Run: run, Err: err}
	} else if ok {
		c.stats.FrameDirect(run)
		c.stats.FrameDelivered(run)
	}
	return ok, nil
}

// Close stops the predictor, wakes every blocked consumer and closes the underlying readers
func (c *PredictingFrameReaderCollection) Close() error {
	c.lock.Lock()
	if c.closed {
		c.lock.Unlock()
		return nil
	}
	c.closed = true
	cancel := c.cancel
	done := c.done
	c.lock.Unlock()
	if cancel != nil {
		cancel()
	}
	for _, q := range c.queues {
		q.mu.Lock()
		q.closed = true
		q.cond.Broadcast()
		q.mu.Unlock()
	}
	if done != nil {
		<-done
	}
	var errs *multierror.Error
	for i, q := range c.queues {
		q.mu.Lock()
		for q.reading {
			q.cond.Wait()
		}
		for _, pb := range q.drain() {
			c.pool <- pb
		}
		q.mu.Unlock()
		if err := c.readers[i].Close(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}

// wakeConsumers broadcasts on every queue, so that blocked consumers re-evaluate their state
func (c *PredictingFrameReaderCollection) wakeConsumers() {
	for _, q := range c.queues {
		q.mu.Lock()
		q.cond.Broadcast()
		q.mu.Unlock()
	}
}

// runCursor is the FrameReader for a single run of a collection
type runCursor struct {
	collection *PredictingFrameReaderCollection
	run        int
}

func (rc *runCursor) NextFrame(buf []byte) (bool, error) {
	return rc.collection.GetFrame(buf, rc.run)
}

func (rc *runCursor) Close() error {
	return nil
}
