// Package testing provides helpers for testing dflow components: in-memory frame
// readers and writers, and builders for frames and sorted runs.
package testing

import (
	"fmt"
	"sync"

	"github.com/go-sif/dflow"
	"github.com/go-sif/dflow/comparator"
	"github.com/go-sif/dflow/frame"
)

// IntRecordDescriptor describes tuples with a single int32 key field and a payload field
var IntRecordDescriptor = dflow.CreateRecordDescriptor("key", "payload")

// CreateFrames packs tuples into as many frames as necessary
func CreateFrames(frameSize int, tuples [][][]byte) [][]byte {
	frames := [][]byte{}
	appender := frame.CreateTupleAppender(frameSize)
	current := frame.Allocate(frameSize)
	appender.Reset(current, true)
	for _, t := range tuples {
		if !appender.Append(t) {
			frames = append(frames, current)
			current = frame.Allocate(frameSize)
			appender.Reset(current, true)
			if !appender.Append(t) {
				panic(fmt.Errorf("tuple does not fit in a frame of %d bytes", frameSize))
			}
		}
	}
	if appender.GetTupleCount() > 0 {
		frames = append(frames, current)
	}
	return frames
}

// CreateIntRun creates a run of numFrames frames, each holding tuplesPerFrame tuples
// whose keys are keys[0], keys[1], ... in order
func CreateIntRun(frameSize int, tuplesPerFrame int, keys []int32) [][]byte {
	frames := [][]byte{}
	appender := frame.CreateTupleAppender(frameSize)
	for i := 0; i < len(keys); i += tuplesPerFrame {
		current := frame.Allocate(frameSize)
		appender.Reset(current, true)
		for j := i; j < i+tuplesPerFrame && j < len(keys); j++ {
			if !appender.Append([][]byte{comparator.EncodeInt32(keys[j]), []byte(fmt.Sprintf("p%d", keys[j]))}) {
				panic(fmt.Errorf("%d tuples do not fit in a frame of %d bytes", tuplesPerFrame, frameSize))
			}
		}
		frames = append(frames, current)
	}
	return frames
}

// SequentialKeys returns count keys starting at start, stepping by step
func SequentialKeys(start int32, step int32, count int) []int32 {
	keys := make([]int32, count)
	for i := range keys {
		keys[i] = start + int32(i)*step
	}
	return keys
}

// ReadIntKeys decodes the key field of every tuple within frames
func ReadIntKeys(frames [][]byte) []int32 {
	keys := []int32{}
	accessor := frame.CreateTupleAccessor(IntRecordDescriptor)
	for _, f := range frames {
		accessor.Reset(f)
		for t := 0; t < accessor.GetTupleCount(); t++ {
			keys = append(keys, comparator.DecodeInt32(accessor.GetField(t, 0)))
		}
	}
	return keys
}

// ReadAll drains a FrameReader, returning copies of every frame it produced
func ReadAll(reader dflow.FrameReader, frameSize int) ([][]byte, error) {
	frames := [][]byte{}
	for {
		buf := frame.Allocate(frameSize)
		ok, err := reader.NextFrame(buf)
		if err != nil {
			return frames, err
		} else if !ok {
			return frames, nil
		}
		frames = append(frames, buf)
	}
}

// SliceFrameReader is a FrameReader over in-memory frames. It can be configured to fail, or to
// block, when reaching a particular frame.
type SliceFrameReader struct {
	lock      sync.Mutex
	frames    [][]byte
	next      int
	failAt    int
	failErr   error
	failOnce  bool
	gate      chan struct{}
	gateAfter int
	reads     int
	closed    bool
}

// CreateSliceFrameReader is a factory for SliceFrameReaders
func CreateSliceFrameReader(frames [][]byte) *SliceFrameReader {
	return &SliceFrameReader{frames: frames, failAt: -1}
}

// FailOnceAt configures this reader to return err, once, when asked for frame index idx
func (r *SliceFrameReader) FailOnceAt(idx int, err error) *SliceFrameReader {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.failAt = idx
	r.failErr = err
	r.failOnce = true
	return r
}

// FailAlwaysAt configures this reader to return err whenever it is asked for frame index idx
func (r *SliceFrameReader) FailAlwaysAt(idx int, err error) *SliceFrameReader {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.failAt = idx
	r.failErr = err
	r.failOnce = false
	return r
}

// GateAfter makes every read of frame index n or later wait until gate is closed
func (r *SliceFrameReader) GateAfter(n int, gate chan struct{}) *SliceFrameReader {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.gate = gate
	r.gateAfter = n
	return r
}

// NextFrame copies the next frame into buf
func (r *SliceFrameReader) NextFrame(buf []byte) (bool, error) {
	r.lock.Lock()
	gate := r.gate
	gated := gate != nil && r.next >= r.gateAfter
	r.lock.Unlock()
	if gated {
		<-gate
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	r.reads++
	if r.next == r.failAt {
		if r.failOnce {
			r.failAt = -1
		}
		return false, r.failErr
	}
	if r.next >= len(r.frames) {
		return false, nil
	}
	frame.Copy(r.frames[r.next], buf)
	r.next++
	return true, nil
}

// Close marks this reader as closed
func (r *SliceFrameReader) Close() error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.closed = true
	return nil
}

// IsClosed returns true iff Close has been called
func (r *SliceFrameReader) IsClosed() bool {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.closed
}

// NumReads returns the number of times NextFrame has been called
func (r *SliceFrameReader) NumReads() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.reads
}

// CollectingFrameWriter is a FrameWriter which keeps a copy of every frame pushed into it
type CollectingFrameWriter struct {
	lock   sync.Mutex
	Frames [][]byte
	Opened bool
	Failed bool
	Closed bool
}

// Open marks this writer as opened
func (w *CollectingFrameWriter) Open() error {
	w.lock.Lock()
	defer w.lock.Unlock()
	w.Opened = true
	return nil
}

// NextFrame keeps a copy of frame
func (w *CollectingFrameWriter) NextFrame(f []byte) error {
	w.lock.Lock()
	defer w.lock.Unlock()
	buf := make([]byte, len(f))
	copy(buf, f)
	w.Frames = append(w.Frames, buf)
	return nil
}

// Fail marks this writer as failed
func (w *CollectingFrameWriter) Fail() error {
	w.lock.Lock()
	defer w.lock.Unlock()
	w.Failed = true
	return nil
}

// Close marks this writer as closed
func (w *CollectingFrameWriter) Close() error {
	w.lock.Lock()
	defer w.lock.Unlock()
	w.Closed = true
	return nil
}
