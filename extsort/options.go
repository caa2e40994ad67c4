package extsort

import (
	"log"

	"github.com/go-sif/dflow"
	"github.com/go-sif/dflow/frame"
	"github.com/go-sif/dflow/runfile"
	"golang.org/x/sync/semaphore"
)

// CollectionOptions configures a PredictingFrameReaderCollection
type CollectionOptions struct {
	FrameSize             int                             // the size of every frame in every run. Defaults to frame.DefaultFrameSize
	PredictionFramesLimit int                             // the number of frames which may be read ahead, across all runs. Defaults to 2
	SortFields            []int                           // the fields the runs are sorted on, in order
	ComparatorFactories   []dflow.BinaryComparatorFactory // one comparator factory per sort field
	RecordDescriptor      *dflow.RecordDescriptor         // the layout of the tuples within the runs
}

func ensureDefaultCollectionOptionsValues(opts *CollectionOptions) {
	if opts.FrameSize == 0 {
		opts.FrameSize = frame.DefaultFrameSize
	}
	if opts.PredictionFramesLimit == 0 {
		opts.PredictionFramesLimit = 2
	}
	if opts.FrameSize < 0 {
		log.Panicf("CollectionOptions.FrameSize %d must be positive", opts.FrameSize)
	}
	if opts.PredictionFramesLimit < 0 {
		log.Panicf("CollectionOptions.PredictionFramesLimit %d must be positive", opts.PredictionFramesLimit)
	}
	if opts.RecordDescriptor == nil {
		log.Panicf("CollectionOptions.RecordDescriptor must be provided")
	}
}

// SortOptions configures an external sort
type SortOptions struct {
	FrameSize           int                             // the size of every frame. Defaults to frame.DefaultFrameSize
	FramesLimit         int                             // the number of frames sorted in memory before spilling a run. Defaults to 32
	ForecastFramesLimit int                             // the number of frames the merge may read ahead. 0 (default) disables prediction
	SortFields          []int                           // the fields to sort on, in order
	ComparatorFactories []dflow.BinaryComparatorFactory // one comparator factory per sort field
	RecordDescriptor    *dflow.RecordDescriptor         // the layout of the tuples being sorted
	Workspace           *runfile.Workspace              // where runs are stored. A private Workspace is created if nil
	MemoryBudget        *semaphore.Weighted             // optional frame budget shared by concurrent sorts
}

func ensureDefaultSortOptionsValues(opts *SortOptions) {
	if opts.FrameSize == 0 {
		opts.FrameSize = frame.DefaultFrameSize
	}
	if opts.FramesLimit == 0 {
		opts.FramesLimit = 32
	}
	if opts.FrameSize < 0 {
		log.Panicf("SortOptions.FrameSize %d must be positive", opts.FrameSize)
	}
	if opts.FramesLimit < 1 {
		log.Panicf("SortOptions.FramesLimit %d must be positive", opts.FramesLimit)
	}
	if opts.ForecastFramesLimit < 0 {
		log.Panicf("SortOptions.ForecastFramesLimit %d must not be negative", opts.ForecastFramesLimit)
	}
	if opts.RecordDescriptor == nil {
		log.Panicf("SortOptions.RecordDescriptor must be provided")
	}
	if len(opts.SortFields) == 0 || len(opts.SortFields) != len(opts.ComparatorFactories) {
		log.Panicf("SortOptions requires one comparator factory per sort field, got %d sort fields and %d factories", len(opts.SortFields), len(opts.ComparatorFactories))
	}
	if opts.Workspace != nil && opts.Workspace.FrameSize() != opts.FrameSize {
		log.Panicf("SortOptions.FrameSize %d does not match workspace frame size %d", opts.FrameSize, opts.Workspace.FrameSize())
	}
}
