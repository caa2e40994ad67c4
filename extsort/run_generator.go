package extsort

import (
	"context"
	"fmt"
	"sort"

	"github.com/go-sif/dflow/comparator"
	"github.com/go-sif/dflow/frame"
	"github.com/go-sif/dflow/internal/stats"
	"github.com/go-sif/dflow/logging"
	"github.com/go-sif/dflow/runfile"
	"github.com/hashicorp/go-multierror"
)

type tupleRef struct {
	frame int
	tuple int
}

// RunGenerator is a FrameWriter which sorts the frames pushed into it in batches of at most
// FramesLimit frames, spilling each sorted batch to a run file
type RunGenerator struct {
	ctx       context.Context
	opts      *SortOptions
	workspace *runfile.Workspace
	cmp       *comparator.TupleComparator
	frames    [][]byte
	accessors []*frame.TupleAccessor
	acquired  int64 // frames currently held from MemoryBudget
	runs      []*runfile.Run
	stats     *stats.SortStatistics
	out       []byte
	appender  *frame.TupleAppender
}

// CreateRunGenerator creates a RunGenerator which stores its runs in workspace
func CreateRunGenerator(ctx context.Context, workspace *runfile.Workspace, opts *SortOptions) *RunGenerator {
	ensureDefaultSortOptionsValues(opts)
	cmp := comparator.CreateTupleComparator(opts.SortFields, opts.ComparatorFactories)
	cmp.Validate(opts.RecordDescriptor)
	return &RunGenerator{
		ctx:       ctx,
		opts:      opts,
		workspace: workspace,
		cmp:       cmp,
		stats:     &stats.SortStatistics{},
		out:       frame.Allocate(opts.FrameSize),
		appender:  frame.CreateTupleAppender(opts.FrameSize),
	}
}

// Open prepares this RunGenerator for receiving frames
func (g *RunGenerator) Open() error {
	g.stats.Start()
	return nil
}

// NextFrame buffers a copy of a frame, spilling a run first if the buffer is full
func (g *RunGenerator) NextFrame(f []byte) error {
	if err := frame.CheckSize(f, g.opts.FrameSize); err != nil {
		return err
	}
	if frame.GetTupleCount(f) == 0 {
		return nil
	}
	if len(g.frames) >= g.opts.FramesLimit {
		if err := g.spill(); err != nil {
			return err
		}
	}
	if err := g.acquireFrame(); err != nil {
		return err
	}
	var buf []byte
	if len(g.frames) < cap(g.frames) {
		// reuse a frame released by an earlier spill
		buf = g.frames[:len(g.frames)+1][len(g.frames)]
	}
	if buf == nil {
		buf = frame.Allocate(g.opts.FrameSize)
	}
	frame.Copy(f, buf)
	g.frames = append(g.frames, buf)
	return nil
}

// acquireFrame reserves one frame of the shared memory budget. If none is available while
// frames are held, the held frames are spilled first so that concurrent sorts cannot starve
// each other.
func (g *RunGenerator) acquireFrame() error {
	if g.opts.MemoryBudget == nil {
		return nil
	}
	if !g.opts.MemoryBudget.TryAcquire(1) {
		if len(g.frames) > 0 {
			if err := g.spill(); err != nil {
				return err
			}
		}
		if err := g.opts.MemoryBudget.Acquire(g.ctx, 1); err != nil {
			return err
		}
	}
	g.acquired++
	return nil
}

func (g *RunGenerator) releaseFrames() {
	if g.opts.MemoryBudget != nil && g.acquired > 0 {
		g.opts.MemoryBudget.Release(g.acquired)
	}
	g.acquired = 0
}

// spill sorts the buffered frames and writes them out as a new run
func (g *RunGenerator) spill() error {
	if len(g.frames) == 0 {
		return nil
	}
	if err := g.ctx.Err(); err != nil {
		return err
	}
	for len(g.accessors) < len(g.frames) {
		g.accessors = append(g.accessors, frame.CreateTupleAccessor(g.opts.RecordDescriptor))
	}
	refs := []tupleRef{}
	for i, f := range g.frames {
		g.accessors[i].Reset(f)
		for t := 0; t < g.accessors[i].GetTupleCount(); t++ {
			refs = append(refs, tupleRef{frame: i, tuple: t})
		}
	}
	sort.SliceStable(refs, func(i, j int) bool {
		a := refs[i]
		b := refs[j]
		return g.cmp.Compare(g.accessors[a.frame], a.tuple, g.accessors[b.frame], b.tuple) < 0
	})
	w, err := g.workspace.CreateRun()
	if err != nil {
		return err
	}
	g.appender.Reset(g.out, true)
	for _, ref := range refs {
		if err := g.appender.AppendTupleOrFlush(g.accessors[ref.frame], ref.tuple, w); err != nil {
			w.Fail()
			return err
		}
	}
	if err := g.appender.Flush(w, true); err != nil {
		w.Fail()
		return err
	}
	if err := w.Close(); err != nil {
		w.Fail()
		return err
	}
	g.runs = append(g.runs, w.Run())
	g.stats.RunGenerated(w.Run().FrameCount)
	g.frames = g.frames[:0]
	g.releaseFrames()
	return nil
}

// Fail discards every buffered frame and every run produced so far
func (g *RunGenerator) Fail() error {
	g.frames = g.frames[:0]
	g.releaseFrames()
	var errs *multierror.Error
	for _, run := range g.runs {
		if err := g.workspace.DeleteRun(run); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	g.runs = nil
	return errs.ErrorOrNil()
}

// Close spills any remaining buffered frames
func (g *RunGenerator) Close() error {
	if err := g.spill(); err != nil {
		return fmt.Errorf("Unable to spill final run: %w", err)
	}
	logging.Printf(logging.DebugLevel, "Generated %d runs", len(g.runs))
	return nil
}

// Runs returns the runs produced so far, in the order they were produced
func (g *RunGenerator) Runs() []*runfile.Run {
	return g.runs
}

// Statistics returns the statistics of this RunGenerator
func (g *RunGenerator) Statistics() *stats.SortStatistics {
	return g.stats
}
