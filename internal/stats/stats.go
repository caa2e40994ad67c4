package stats

import (
	"sync/atomic"
	"time"
)

// PredictionStatistics contains statistics about a predicting frame reader collection. All
// counters may be updated concurrently.
type PredictionStatistics struct {
	framesPrefetched []int64
	framesDelivered  []int64
	blockedDequeues  []int64
	directReads      []int64
	prefetchFailures int64
	poolWaits        int64
}

// CreatePredictionStatistics creates statistics for a collection of numRuns runs
func CreatePredictionStatistics(numRuns int) *PredictionStatistics {
	return &PredictionStatistics{
		framesPrefetched: make([]int64, numRuns),
		framesDelivered:  make([]int64, numRuns),
		blockedDequeues:  make([]int64, numRuns),
		directReads:      make([]int64, numRuns),
	}
}

// FramePrefetched tracks a frame read ahead by the predictor
func (ps *PredictionStatistics) FramePrefetched(run int) {
	atomic.AddInt64(&ps.framesPrefetched[run], 1)
}

// FrameDelivered tracks a frame handed to a consumer
func (ps *PredictionStatistics) FrameDelivered(run int) {
	atomic.AddInt64(&ps.framesDelivered[run], 1)
}

// DequeueBlocked tracks a consumer waiting for the predictor
func (ps *PredictionStatistics) DequeueBlocked(run int) {
	atomic.AddInt64(&ps.blockedDequeues[run], 1)
}

// FrameDirect tracks a frame a consumer read itself, after activation
func (ps *PredictionStatistics) FrameDirect(run int) {
	atomic.AddInt64(&ps.directReads[run], 1)
}

// PrefetchFailed tracks a failed read ahead
func (ps *PredictionStatistics) PrefetchFailed() {
	atomic.AddInt64(&ps.prefetchFailures, 1)
}

// PoolWaited tracks the predictor waiting for an empty buffer
func (ps *PredictionStatistics) PoolWaited() {
	atomic.AddInt64(&ps.poolWaits, 1)
}

func snapshot(counters []int64) []int64 {
	res := make([]int64, len(counters))
	for i := range counters {
		res[i] = atomic.LoadInt64(&counters[i])
	}
	return res
}

// GetFramesPrefetched returns the number of frames the predictor has read ahead, per run
func (ps *PredictionStatistics) GetFramesPrefetched() []int64 {
	return snapshot(ps.framesPrefetched)
}

// GetFramesDelivered returns the number of frames delivered to consumers, per run
func (ps *PredictionStatistics) GetFramesDelivered() []int64 {
	return snapshot(ps.framesDelivered)
}

// GetBlockedDequeues returns the number of times a consumer had to wait for the predictor, per run
func (ps *PredictionStatistics) GetBlockedDequeues() []int64 {
	return snapshot(ps.blockedDequeues)
}

// GetDirectReads returns the number of frames consumers read themselves after activation, per run
func (ps *PredictionStatistics) GetDirectReads() []int64 {
	return snapshot(ps.directReads)
}

// GetPrefetchFailures returns the number of failed prefetch reads
func (ps *PredictionStatistics) GetPrefetchFailures() int64 {
	return atomic.LoadInt64(&ps.prefetchFailures)
}

// GetPoolWaits returns the number of times the predictor had to wait for an empty buffer
func (ps *PredictionStatistics) GetPoolWaits() int64 {
	return atomic.LoadInt64(&ps.poolWaits)
}

// SortStatistics contains statistics about a running external sort
type SortStatistics struct {
	started           bool
	finished          bool
	startTime         time.Time
	totalRuntime      int64
	runsGenerated     int64
	framesSpilled     int64
	framesMerged      int64
	mergeRuntime      int64
	currentMergeStart time.Time
}

// Start triggers statistics tracking, if it hasn't been started already
func (ss *SortStatistics) Start() {
	if !ss.started {
		ss.started = true
		ss.startTime = time.Now()
	}
}

// Finish completes statistics tracking
func (ss *SortStatistics) Finish() {
	ss.totalRuntime = time.Since(ss.startTime).Nanoseconds()
	ss.finished = true
}

// RunGenerated tracks a run spilled to disk
func (ss *SortStatistics) RunGenerated(numFrames int) {
	atomic.AddInt64(&ss.runsGenerated, 1)
	atomic.AddInt64(&ss.framesSpilled, int64(numFrames))
}

// StartMerge tracks the beginning of the merge phase
func (ss *SortStatistics) StartMerge() {
	ss.currentMergeStart = time.Now()
}

// EndMerge tracks the end of the merge phase
func (ss *SortStatistics) EndMerge() {
	ss.mergeRuntime = time.Since(ss.currentMergeStart).Nanoseconds()
}

// FrameMerged tracks a frame produced by the merge
func (ss *SortStatistics) FrameMerged() {
	atomic.AddInt64(&ss.framesMerged, 1)
}

// GetStartTime returns the start time of the sort
func (ss *SortStatistics) GetStartTime() time.Time {
	return ss.startTime
}

// GetRuntime returns the running time of the sort
func (ss *SortStatistics) GetRuntime() int64 {
	if ss.finished {
		return ss.totalRuntime
	}
	return time.Since(ss.startTime).Nanoseconds()
}

// GetNumRunsGenerated returns the number of runs spilled so far
func (ss *SortStatistics) GetNumRunsGenerated() int64 {
	return atomic.LoadInt64(&ss.runsGenerated)
}

// GetNumFramesSpilled returns the number of frames written to runs so far
func (ss *SortStatistics) GetNumFramesSpilled() int64 {
	return atomic.LoadInt64(&ss.framesSpilled)
}

// GetNumFramesMerged returns the number of frames produced by the merge so far
func (ss *SortStatistics) GetNumFramesMerged() int64 {
	return atomic.LoadInt64(&ss.framesMerged)
}

// GetMergeRuntime returns the running time of the most recent merge phase
func (ss *SortStatistics) GetMergeRuntime() int64 {
	return ss.mergeRuntime
}
