package frame

import (
	"encoding/binary"

	"github.com/go-sif/dflow"
	"github.com/go-sif/dflow/errors"
)

// TupleAppender packs tuples into a frame
type TupleAppender struct {
	frameSize  int
	buffer     []byte
	tupleCount int
	dataEnd    int // offset just past the last tuple's data
}

// CreateTupleAppender is a factory for TupleAppenders
func CreateTupleAppender(frameSize int) *TupleAppender {
	return &TupleAppender{frameSize: frameSize}
}

// Reset attaches this appender to a new frame. If clear is false, appending continues after the
// tuples already present in the frame.
func (a *TupleAppender) Reset(frame []byte, clear bool) {
	a.buffer = frame
	if clear {
		a.tupleCount = 0
		a.dataEnd = 0
		setTupleCount(a.buffer, 0)
		return
	}
	a.tupleCount = GetTupleCount(a.buffer)
	if a.tupleCount == 0 {
		a.dataEnd = 0
	} else {
		a.dataEnd = int(binary.BigEndian.Uint32(a.buffer[tupleEndSlot(a.buffer, a.tupleCount-1):]))
	}
}

// GetTupleCount returns the number of tuples in the current frame
func (a *TupleAppender) GetTupleCount() int {
	return a.tupleCount
}

// GetBuffer returns the current frame
func (a *TupleAppender) GetBuffer() []byte {
	return a.buffer
}

// fits returns true iff a tuple of size bytes can be added to the current frame
func (a *TupleAppender) fits(size int) bool {
	return a.dataEnd+size+slotSize*(a.tupleCount+1)+slotSize <= a.frameSize
}

// Append adds a tuple made of the given fields, returning false if it does not fit
func (a *TupleAppender) Append(fields [][]byte) bool {
	size := slotSize * len(fields)
	for _, f := range fields {
		size += len(f)
	}
	if !a.fits(size) {
		return false
	}
	slots := a.dataEnd
	pos := a.dataEnd + slotSize*len(fields)
	fieldEnd := 0
	for i, f := range fields {
		fieldEnd += len(f)
		binary.BigEndian.PutUint32(a.buffer[slots+slotSize*i:], uint32(fieldEnd))
		pos += copy(a.buffer[pos:], f)
	}
	a.commit(pos)
	return true
}

// AppendTuple copies a tuple from another frame, returning false if it does not fit
func (a *TupleAppender) AppendTuple(accessor dflow.FrameTupleAccessor, tIndex int) bool {
	start := accessor.GetTupleStartOffset(tIndex)
	end := accessor.GetTupleEndOffset(tIndex)
	if !a.fits(end - start) {
		return false
	}
	copy(a.buffer[a.dataEnd:], accessor.GetBuffer()[start:end])
	a.commit(a.dataEnd + end - start)
	return true
}

// AppendTupleOrFlush appends a tuple, flushing the current frame to writer first if it is full
func (a *TupleAppender) AppendTupleOrFlush(accessor dflow.FrameTupleAccessor, tIndex int, writer dflow.FrameWriter) error {
	if a.AppendTuple(accessor, tIndex) {
		return nil
	}
	if err := a.Flush(writer, true); err != nil {
		return err
	}
	if !a.AppendTuple(accessor, tIndex) {
		size := accessor.GetTupleEndOffset(tIndex) - accessor.GetTupleStartOffset(tIndex)
		return errors.TupleTooLargeError{Size: size, FrameSize: a.frameSize}
	}
	return nil
}

// Flush pushes the current frame to writer, clearing it afterwards if clear is true. Empty
// frames are not flushed.
func (a *TupleAppender) Flush(writer dflow.FrameWriter, clear bool) error {
	if a.tupleCount == 0 {
		return nil
	}
	if err := writer.NextFrame(a.buffer); err != nil {
		return err
	}
	if clear {
		a.Reset(a.buffer, true)
	}
	return nil
}

func (a *TupleAppender) commit(newDataEnd int) {
	binary.BigEndian.PutUint32(a.buffer[tupleEndSlot(a.buffer, a.tupleCount):], uint32(newDataEnd))
	a.tupleCount++
	a.dataEnd = newDataEnd
	setTupleCount(a.buffer, a.tupleCount)
}
