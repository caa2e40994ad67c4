package extsort

import (
	"context"

	"github.com/go-sif/dflow"
	"github.com/go-sif/dflow/comparator"
	"github.com/go-sif/dflow/frame"
	"github.com/go-sif/dflow/internal/selection"
	"github.com/go-sif/dflow/internal/stats"
	"github.com/go-sif/dflow/logging"
	"github.com/go-sif/dflow/runfile"
	"github.com/hashicorp/go-multierror"
)

// RunMerger merges sorted runs into a single sorted stream. When more runs exist than can be
// merged at once, intermediate runs are produced first.
type RunMerger struct {
	opts      *SortOptions
	workspace *runfile.Workspace
	cmp       *comparator.TupleComparator
	stats     *stats.SortStatistics
}

// CreateRunMerger creates a RunMerger over runs stored in workspace
func CreateRunMerger(workspace *runfile.Workspace, opts *SortOptions, sortStats *stats.SortStatistics) *RunMerger {
	ensureDefaultSortOptionsValues(opts)
	cmp := comparator.CreateTupleComparator(opts.SortFields, opts.ComparatorFactories)
	cmp.Validate(opts.RecordDescriptor)
	if sortStats == nil {
		sortStats = &stats.SortStatistics{}
	}
	return &RunMerger{opts: opts, workspace: workspace, cmp: cmp, stats: sortStats}
}

// fanIn returns the number of runs merged at once: one input frame per run, plus an output frame
func (m *RunMerger) fanIn() int {
	if m.opts.FramesLimit-1 < 2 {
		return 2
	}
	return m.opts.FramesLimit - 1
}

// Merge merges runs into output, which must already be open. Intermediate runs are deleted;
// the given runs are not.
func (m *RunMerger) Merge(ctx context.Context, runs []*runfile.Run, output dflow.FrameWriter) error {
	m.stats.StartMerge()
	defer m.stats.EndMerge()
	intermediate := []*runfile.Run{}
	defer func() {
		for _, run := range intermediate {
			if err := m.workspace.DeleteRun(run); err != nil {
				logging.Printf(logging.WarnLevel, "Unable to delete intermediate run %s: %s", run.Path, err)
			}
		}
	}()
	pass := 0
	for len(runs) > m.fanIn() {
		next := []*runfile.Run{}
		for i := 0; i < len(runs); i += m.fanIn() {
			end := i + m.fanIn()
			if end > len(runs) {
				end = len(runs)
			}
			w, err := m.workspace.CreateRun()
			if err != nil {
				return err
			}
			if err := m.mergeRuns(ctx, runs[i:end], w, false); err != nil {
				w.Fail()
				return err
			}
			if err := w.Close(); err != nil {
				w.Fail()
				return err
			}
			next = append(next, w.Run())
			intermediate = append(intermediate, w.Run())
		}
		pass++
		logging.Printf(logging.DebugLevel, "Merge pass %d reduced %d runs to %d", pass, len(runs), len(next))
		runs = next
	}
	logging.Printf(logging.DebugLevel, "Merging %d runs", len(runs))
	return m.mergeRuns(ctx, runs, output, true)
}

// mergeRuns performs a single k-way merge of runs into output
func (m *RunMerger) mergeRuns(ctx context.Context, runs []*runfile.Run, output dflow.FrameWriter, final bool) (err error) {
	readers := make([]dflow.FrameReader, 0, len(runs))
	for _, run := range runs {
		r, openErr := m.workspace.OpenRun(run)
		if openErr != nil {
			for _, opened := range readers {
				opened.Close()
			}
			return openErr
		}
		readers = append(readers, r)
	}
	cursors := readers
	var collection *PredictingFrameReaderCollection
	if m.opts.ForecastFramesLimit > 0 {
		collection = CreatePredictingFrameReaderCollection(readers, &CollectionOptions{
			FrameSize:             m.opts.FrameSize,
			PredictionFramesLimit: m.opts.ForecastFramesLimit,
			SortFields:            m.opts.SortFields,
			ComparatorFactories:   m.opts.ComparatorFactories,
			RecordDescriptor:      m.opts.RecordDescriptor,
		})
		cursors = collection.RunCursors()
	}
	defer func() {
		var errs *multierror.Error
		if err != nil {
			errs = multierror.Append(errs, err)
		}
		if collection != nil {
			if closeErr := collection.Close(); closeErr != nil {
				errs = multierror.Append(errs, closeErr)
			}
		} else {
			for _, r := range readers {
				if closeErr := r.Close(); closeErr != nil {
					errs = multierror.Append(errs, closeErr)
				}
			}
		}
		err = errs.ErrorOrNil()
	}()

	// prime every cursor with its first frame
	frames := make([][]byte, len(cursors))
	accessors := make([]*frame.TupleAccessor, len(cursors))
	positions := make([]int, len(cursors))
	live := []int{}
	for i, cursor := range cursors {
		frames[i] = frame.Allocate(m.opts.FrameSize)
		accessors[i] = frame.CreateTupleAccessor(m.opts.RecordDescriptor)
		ok, readErr := nextNonEmptyFrame(cursor, frames[i])
		if readErr != nil {
			return readErr
		} else if ok {
			accessors[i].Reset(frames[i])
			live = append(live, i)
		}
	}
	if collection != nil {
		if err := collection.Activate(ctx, m.cmp); err != nil {
			return err
		}
	}

	tree := selection.New(live, func(a int, b int) bool {
		res := m.cmp.Compare(accessors[a], positions[a], accessors[b], positions[b])
		if res != 0 {
			return res < 0
		}
		return a < b
	})
	out := frame.Allocate(m.opts.FrameSize)
	appender := frame.CreateTupleAppender(m.opts.FrameSize)
	appender.Reset(out, true)
	var counting dflow.FrameWriter = output
	if final {
		counting = &countingFrameWriter{FrameWriter: output, stats: m.stats}
	}
	for !tree.IsEmpty() {
		run, _ := tree.Peek()
		if err := appender.AppendTupleOrFlush(accessors[run], positions[run], counting); err != nil {
			return err
		}
		positions[run]++
		if positions[run] < accessors[run].GetTupleCount() {
			tree.Advance()
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		ok, readErr := nextNonEmptyFrame(cursors[run], frames[run])
		if readErr != nil {
			return readErr
		} else if !ok {
			tree.Pop()
			continue
		}
		accessors[run].Reset(frames[run])
		positions[run] = 0
		tree.Advance()
	}
	return appender.Flush(counting, true)
}

// nextNonEmptyFrame reads frames until one holding at least one tuple is found
func nextNonEmptyFrame(r dflow.FrameReader, buf []byte) (bool, error) {
	for {
		ok, err := r.NextFrame(buf)
		if err != nil || !ok {
			return false, err
		}
		if frame.GetTupleCount(buf) > 0 {
			return true, nil
		}
	}
}

type countingFrameWriter struct {
	dflow.FrameWriter
	stats *stats.SortStatistics
}

func (w *countingFrameWriter) NextFrame(f []byte) error {
	if err := w.FrameWriter.NextFrame(f); err != nil {
		return err
	}
	w.stats.FrameMerged()
	return nil
}
