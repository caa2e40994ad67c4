// Package runfile stores runs, ordered sequences of fixed-size frames, in temporary files
// which can optionally be compressed.
package runfile

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/go-sif/dflow/frame"
)

// Run describes a finished run file
type Run struct {
	Name       string // the unique name of this run within its Workspace
	Path       string // the location of the run file
	FrameCount int    // the number of frames in the run
	FrameSize  int    // the size of every frame in the run
	Codec      string // the compression codec the run was written with
}

// Writer writes frames to a new run file. It implements dflow.FrameWriter.
type Writer struct {
	run        *Run
	file       *os.File
	buffered   *bufio.Writer
	compressed io.WriteCloser
	done       bool
	onDone     func(run *Run, failed bool)
}

// Open is a no-op, since the run file is created along with the Writer
func (w *Writer) Open() error {
	return nil
}

// NextFrame appends a frame to the run
func (w *Writer) NextFrame(f []byte) error {
	if w.done {
		return fmt.Errorf("Run %s has already been closed", w.run.Name)
	}
	if err := frame.CheckSize(f, w.run.FrameSize); err != nil {
		return err
	}
	if _, err := w.compressed.Write(f); err != nil {
		return err
	}
	w.run.FrameCount++
	return nil
}

// Fail abandons the run, deleting its file
func (w *Writer) Fail() error {
	if w.done {
		return nil
	}
	w.done = true
	w.compressed.Close()
	err := w.file.Close()
	if w.onDone != nil {
		w.onDone(w.run, true)
	}
	return err
}

// Close finishes the run, which can then be retrieved via Run
func (w *Writer) Close() error {
	if w.done {
		return nil
	}
	w.done = true
	if err := w.compressed.Close(); err != nil {
		w.file.Close()
		return err
	}
	if err := w.buffered.Flush(); err != nil {
		w.file.Close()
		return err
	}
	if err := w.file.Close(); err != nil {
		return err
	}
	if w.onDone != nil {
		w.onDone(w.run, false)
	}
	return nil
}

// Run returns the description of the run being written. It is complete once Close has returned.
func (w *Writer) Run() *Run {
	return w.run
}

// Reader reads the frames of a run file in the order they were written. It implements dflow.FrameReader.
type Reader struct {
	run          *Run
	file         *os.File
	decompressed io.ReadCloser
	framesRead   int
	closed       bool
}

// NextFrame reads the next frame of the run into buf, returning false once all frames have been read
func (r *Reader) NextFrame(buf []byte) (bool, error) {
	if r.closed {
		return false, fmt.Errorf("Reader for run %s has already been closed", r.run.Name)
	}
	if err := frame.CheckSize(buf, r.run.FrameSize); err != nil {
		return false, err
	}
	if r.framesRead >= r.run.FrameCount {
		return false, nil
	}
	if _, err := io.ReadFull(r.decompressed, buf); err != nil {
		return false, fmt.Errorf("Unable to read frame %d of run %s: %w", r.framesRead, r.run.Name, err)
	}
	r.framesRead++
	return true, nil
}

// Close releases the run file. The run itself is kept until it is deleted from its Workspace.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.decompressed.Close()
	return r.file.Close()
}

// Run returns the description of the run being read
func (r *Reader) Run() *Run {
	return r.run
}

func createWriter(run *Run, c codec, onDone func(run *Run, failed bool)) (*Writer, error) {
	f, err := os.OpenFile(run.Path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return nil, err
	}
	buffered := bufio.NewWriter(f)
	compressed, err := c.wrapWriter(buffered)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &Writer{run: run, file: f, buffered: buffered, compressed: compressed, onDone: onDone}, nil
}

func openReader(run *Run) (*Reader, error) {
	c, err := codecByName(run.Codec)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(run.Path)
	if err != nil {
		return nil, err
	}
	decompressed, err := c.wrapReader(bufio.NewReader(f))
	if err != nil {
		f.Close()
		return nil, err
	}
	return &Reader{run: run, file: f, decompressed: decompressed}, nil
}
