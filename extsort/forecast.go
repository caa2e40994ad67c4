package extsort

import (
	"sync"
)

// predictionBuffer is a pooled frame, owned by exactly one of: the empty pool, the predictor
// while it fills it, or a single forecast queue
type predictionBuffer struct {
	frame []byte
	next  *predictionBuffer
}

// forecastQueue hands the frames prefetched for one run from the predictor to that run's consumer
type forecastQueue struct {
	mu        sync.Mutex
	cond      *sync.Cond
	head      *predictionBuffer
	tail      *predictionBuffer
	length    int
	active    bool // prediction has started
	inFlight  bool // the predictor is reading this run
	reading   bool // the consumer is reading this run directly
	exhausted bool // the run has no more frames
	fallback  bool // the predictor has given up on this run
	cancelled bool // the predictor's context was cancelled
	closed    bool
}

func createForecastQueue() *forecastQueue {
	q := &forecastQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// enqueue links a filled buffer at the tail of the queue. q.mu must be held.
func (q *forecastQueue) enqueue(pb *predictionBuffer) {
	pb.next = nil
	if q.head == nil {
		q.head = pb
	} else {
		q.tail.next = pb
	}
	q.tail = pb
	q.length++
	q.cond.Broadcast()
}

// dequeue detaches the head buffer, or returns nil if the queue is empty. q.mu must be held.
func (q *forecastQueue) dequeue() *predictionBuffer {
	pb := q.head
	if pb == nil {
		return nil
	}
	q.head = pb.next
	if q.head == nil {
		q.tail = nil
	}
	pb.next = nil
	q.length--
	return pb
}

// drain detaches every queued buffer. q.mu must be held.
func (q *forecastQueue) drain() []*predictionBuffer {
	res := make([]*predictionBuffer, 0, q.length)
	for pb := q.dequeue(); pb != nil; pb = q.dequeue() {
		res = append(res, pb)
	}
	return res
}
