// Package frame implements dflow's binary frame format.
//
// A frame is a fixed-size byte slice. Tuples are packed from the start of the frame, while the
// tuple count (last four bytes) and the end offset of every tuple (growing downward from the tuple
// count) are stored at its end. Each tuple starts with one end offset per field, relative to the
// start of the tuple's field data, followed by the field data itself. All integers are big-endian.
package frame

import (
	"encoding/binary"
	"log"

	"github.com/go-sif/dflow/errors"
)

const (
	// DefaultFrameSize is the frame size used when none is configured
	DefaultFrameSize = 32 * 1024
	// slotSize is the size of a tuple or field offset slot
	slotSize = 4
)

// Allocate creates a new, empty frame
func Allocate(frameSize int) []byte {
	if frameSize < 2*slotSize {
		log.Panicf("Frame size %d is too small", frameSize)
	}
	return make([]byte, frameSize)
}

// Copy copies the contents of one frame into another of identical size
func Copy(src []byte, dst []byte) {
	if len(src) != len(dst) {
		log.Panicf("%s", errors.FrameSizeError{Expected: len(dst), Actual: len(src)}.Error())
	}
	copy(dst, src)
}

// Clear marks a frame as containing no tuples
func Clear(frame []byte) {
	setTupleCount(frame, 0)
}

// GetTupleCount reads the number of tuples in a frame
func GetTupleCount(frame []byte) int {
	return int(binary.BigEndian.Uint32(frame[len(frame)-slotSize:]))
}

// CheckSize returns a FrameSizeError if frame is not exactly frameSize bytes long
func CheckSize(frame []byte, frameSize int) error {
	if len(frame) != frameSize {
		return errors.FrameSizeError{Expected: frameSize, Actual: len(frame)}
	}
	return nil
}

func setTupleCount(frame []byte, count int) {
	binary.BigEndian.PutUint32(frame[len(frame)-slotSize:], uint32(count))
}

// tupleEndSlot returns the offset of the slot holding the end offset of tuple tIndex
func tupleEndSlot(frame []byte, tIndex int) int {
	return len(frame) - slotSize - slotSize*(tIndex+1)
}
