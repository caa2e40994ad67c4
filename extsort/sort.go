package extsort

import (
	"context"
	"log"

	"github.com/go-sif/dflow"
	"github.com/go-sif/dflow/frame"
	"github.com/go-sif/dflow/runfile"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
)

// ExternalSort sorts every tuple read from input and pushes the result into output. Runs are
// spilled to opts.Workspace (or a private Workspace) and deleted once merged. Input is read to
// its end but not closed; output is opened, then closed on success or failed on error.
func ExternalSort(ctx context.Context, input dflow.FrameReader, output dflow.FrameWriter, opts *SortOptions) (dflow.SortStatistics, error) {
	ensureDefaultSortOptionsValues(opts)
	workspace := opts.Workspace
	if workspace == nil {
		ws, err := runfile.CreateWorkspace(&runfile.WorkspaceOptions{FrameSize: opts.FrameSize})
		if err != nil {
			return nil, err
		}
		defer ws.Close()
		workspace = ws
	}
	generator := CreateRunGenerator(ctx, workspace, opts)
	sortStats := generator.Statistics()
	defer sortStats.Finish()
	if err := generateRuns(ctx, input, generator, opts.FrameSize); err != nil {
		return sortStats, failOutput(output, err)
	}
	defer func() {
		for _, run := range generator.Runs() {
			workspace.DeleteRun(run)
		}
	}()
	if err := output.Open(); err != nil {
		return sortStats, err
	}
	merger := CreateRunMerger(workspace, opts, sortStats)
	if err := merger.Merge(ctx, generator.Runs(), output); err != nil {
		return sortStats, failOutput(output, err)
	}
	return sortStats, output.Close()
}

func generateRuns(ctx context.Context, input dflow.FrameReader, generator *RunGenerator, frameSize int) error {
	if err := generator.Open(); err != nil {
		return err
	}
	buf := frame.Allocate(frameSize)
	for {
		if err := ctx.Err(); err != nil {
			generator.Fail()
			return err
		}
		ok, err := input.NextFrame(buf)
		if err != nil {
			generator.Fail()
			return err
		} else if !ok {
			break
		}
		if err := generator.NextFrame(buf); err != nil {
			generator.Fail()
			return err
		}
	}
	if err := generator.Close(); err != nil {
		generator.Fail()
		return err
	}
	return nil
}

func failOutput(output dflow.FrameWriter, err error) error {
	if failErr := output.Fail(); failErr != nil {
		return multierror.Append(err, failErr)
	}
	return err
}

// SortPartitions runs one ExternalSort per partition concurrently, sorting inputs[i] into
// outputs[i]. All sorts share opts.Workspace and opts.MemoryBudget. The first failure cancels
// every other sort.
func SortPartitions(ctx context.Context, inputs []dflow.FrameReader, outputs []dflow.FrameWriter, opts *SortOptions) ([]dflow.SortStatistics, error) {
	if len(inputs) != len(outputs) {
		log.Panicf("Got %d inputs but %d outputs", len(inputs), len(outputs))
	}
	ensureDefaultSortOptionsValues(opts)
	if opts.Workspace == nil {
		ws, err := runfile.CreateWorkspace(&runfile.WorkspaceOptions{FrameSize: opts.FrameSize})
		if err != nil {
			return nil, err
		}
		defer ws.Close()
		opts.Workspace = ws
		defer func() { opts.Workspace = nil }()
	}
	results := make([]dflow.SortStatistics, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	for i := range inputs {
		i := i
		partOpts := *opts
		g.Go(func() error {
			s, err := ExternalSort(gctx, inputs[i], outputs[i], &partOpts)
			results[i] = s
			return err
		})
	}
	return results, g.Wait()
}
