package runfile

import (
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"path"
	"sort"
	"sync"

	"github.com/docker/docker/pkg/locker"
	"github.com/go-sif/dflow/frame"
	"github.com/go-sif/dflow/internal/util"
	"github.com/go-sif/dflow/logging"
	"github.com/gofrs/uuid"
	"github.com/hashicorp/go-multierror"
)

// WorkspaceOptions configures a Workspace
type WorkspaceOptions struct {
	Dir       string // the directory in which the Workspace's own temporary directory is created. Defaults to os.TempDir()
	Codec     string // the compression codec for new runs: "none" (default), "lz4" or "zstd"
	FrameSize int    // the size of the frames stored in runs. Defaults to frame.DefaultFrameSize
}

func ensureDefaultWorkspaceOptionsValues(opts *WorkspaceOptions) {
	if len(opts.Dir) == 0 {
		opts.Dir = os.TempDir()
	}
	if len(opts.Codec) == 0 {
		opts.Codec = NoneCodec
	}
	if opts.FrameSize == 0 {
		opts.FrameSize = frame.DefaultFrameSize
	}
	if opts.FrameSize < 0 {
		log.Panicf("WorkspaceOptions.FrameSize %d must be positive", opts.FrameSize)
	}
}

// Workspace manages the run files of one or more sorts, in a private temporary directory
type Workspace struct {
	opts     *WorkspaceOptions
	codec    codec
	dir      string
	locks    *locker.Locker
	runsLock sync.Mutex
	runs     map[string]*Run // runs which have been created but not deleted
	closed   bool
}

// CreateWorkspace creates a Workspace and its temporary directory
func CreateWorkspace(opts *WorkspaceOptions) (*Workspace, error) {
	if opts == nil {
		opts = &WorkspaceOptions{}
	}
	ensureDefaultWorkspaceOptionsValues(opts)
	c, err := codecByName(opts.Codec)
	if err != nil {
		return nil, err
	}
	dir, err := ioutil.TempDir(opts.Dir, "dflow-")
	if err != nil {
		return nil, fmt.Errorf("Unable to create workspace in %s: %w", opts.Dir, err)
	}
	return &Workspace{
		opts:  opts,
		codec: c,
		dir:   dir,
		locks: locker.New(),
		runs:  make(map[string]*Run),
	}, nil
}

// Dir returns the directory holding this Workspace's run files
func (ws *Workspace) Dir() string {
	return ws.dir
}

// FrameSize returns the size of the frames stored in this Workspace's runs
func (ws *Workspace) FrameSize() int {
	return ws.opts.FrameSize
}

// CreateRun creates a new, uniquely-named run file and returns a Writer for it
func (ws *Workspace) CreateRun() (*Writer, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	name := "run-" + id.String()
	ws.locks.Lock(name)
	defer ws.locks.Unlock(name)
	ws.runsLock.Lock()
	closed := ws.closed
	ws.runsLock.Unlock()
	if closed {
		return nil, fmt.Errorf("Workspace %s has been closed", ws.dir)
	}
	run := &Run{
		Name:      name,
		Path:      path.Join(ws.dir, name),
		FrameSize: ws.opts.FrameSize,
		Codec:     ws.codec.name(),
	}
	w, err := createWriter(run, ws.codec, ws.onWriterDone)
	if err != nil {
		return nil, err
	}
	ws.runsLock.Lock()
	ws.runs[name] = run
	ws.runsLock.Unlock()
	return w, nil
}

// a failed Writer's run is deleted immediately
func (ws *Workspace) onWriterDone(run *Run, failed bool) {
	if !failed {
		return
	}
	if err := ws.DeleteRun(run); err != nil {
		logging.Printf(logging.WarnLevel, "Unable to delete failed run %s: %s", run.Path, err)
	}
}

// OpenRun opens a finished run for reading
func (ws *Workspace) OpenRun(run *Run) (*Reader, error) {
	ws.locks.Lock(run.Name)
	defer ws.locks.Unlock(run.Name)
	ws.runsLock.Lock()
	_, ok := ws.runs[run.Name]
	ws.runsLock.Unlock()
	if !ok {
		return nil, fmt.Errorf("Run %s does not exist in workspace %s", run.Name, ws.dir)
	}
	return openReader(run)
}

// DeleteRun removes a run file. Readers which are still open may continue reading on platforms
// which allow it.
func (ws *Workspace) DeleteRun(run *Run) error {
	ws.locks.Lock(run.Name)
	defer ws.locks.Unlock(run.Name)
	ws.runsLock.Lock()
	_, ok := ws.runs[run.Name]
	delete(ws.runs, run.Name)
	ws.runsLock.Unlock()
	if !ok {
		return nil
	}
	if err := os.Remove(run.Path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// NumRuns returns the number of runs which have been created and not yet deleted
func (ws *Workspace) NumRuns() int {
	ws.runsLock.Lock()
	defer ws.runsLock.Unlock()
	return len(ws.runs)
}

// Close deletes every remaining run and the Workspace's directory
func (ws *Workspace) Close() error {
	ws.runsLock.Lock()
	if ws.closed {
		ws.runsLock.Unlock()
		return nil
	}
	ws.closed = true
	remaining := make([]*Run, 0, len(ws.runs))
	for _, run := range ws.runs {
		remaining = append(remaining, run)
	}
	ws.runsLock.Unlock()
	sort.Slice(remaining, func(i, j int) bool {
		return remaining[i].Name < remaining[j].Name
	})
	var errs *multierror.Error
	for _, run := range remaining {
		if err := ws.DeleteRun(run); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	if err := os.RemoveAll(ws.dir); err != nil {
		errs = multierror.Append(errs, err)
	}
	if errs != nil {
		logging.Printf(logging.WarnLevel, "Unable to clean up workspace %s:\n%s", ws.dir, util.FormatMultiError(errs))
	}
	return errs.ErrorOrNil()
}
