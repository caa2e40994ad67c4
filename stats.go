package dflow

import "time"

// PredictionStatistics facilitates the retrieval of statistics about a running predicting merge
type PredictionStatistics interface {
	// GetFramesPrefetched returns the number of frames the predictor has read ahead, per run
	GetFramesPrefetched() []int64
	// GetFramesDelivered returns the number of frames delivered to consumers, per run
	GetFramesDelivered() []int64
	// GetBlockedDequeues returns the number of times a consumer had to wait for the predictor, per run
	GetBlockedDequeues() []int64
	// GetDirectReads returns the number of frames consumers read themselves after activation, per run
	GetDirectReads() []int64
	// GetPrefetchFailures returns the number of failed prefetch reads
	GetPrefetchFailures() int64
	// GetPoolWaits returns the number of times the predictor had to wait for an empty buffer
	GetPoolWaits() int64
}

// SortStatistics facilitates the retrieval of statistics about an external sort
type SortStatistics interface {
	GetStartTime() time.Time    // GetStartTime returns the time at which the sort started
	GetRuntime() int64          // GetRuntime returns the running time of the sort, in nanoseconds
	GetNumRunsGenerated() int64 // GetNumRunsGenerated returns the number of sorted runs spilled to disk
	GetNumFramesSpilled() int64 // GetNumFramesSpilled returns the number of frames written to runs
	GetNumFramesMerged() int64  // GetNumFramesMerged returns the number of frames produced by the final merge
	GetMergeRuntime() int64     // GetMergeRuntime returns the running time of the merge phase, in nanoseconds
}
