package frame

import (
	"encoding/binary"

	"github.com/go-sif/dflow"
)

// TupleAccessor locates tuples and fields within a frame
type TupleAccessor struct {
	recDesc *dflow.RecordDescriptor
	buffer  []byte
}

// CreateTupleAccessor is a factory for TupleAccessors
func CreateTupleAccessor(recDesc *dflow.RecordDescriptor) *TupleAccessor {
	return &TupleAccessor{recDesc: recDesc}
}

// Reset points this accessor at a new frame
func (a *TupleAccessor) Reset(frame []byte) {
	a.buffer = frame
}

// GetBuffer returns the frame this accessor currently points at
func (a *TupleAccessor) GetBuffer() []byte {
	return a.buffer
}

// GetTupleCount returns the number of tuples in the current frame, or 0 if there is no frame
func (a *TupleAccessor) GetTupleCount() int {
	if a.buffer == nil {
		return 0
	}
	return GetTupleCount(a.buffer)
}

// GetTupleStartOffset returns the offset of the first byte of a tuple
func (a *TupleAccessor) GetTupleStartOffset(tIndex int) int {
	if tIndex == 0 {
		return 0
	}
	return a.GetTupleEndOffset(tIndex - 1)
}

// GetTupleEndOffset returns the offset just past the last byte of a tuple
func (a *TupleAccessor) GetTupleEndOffset(tIndex int) int {
	return int(binary.BigEndian.Uint32(a.buffer[tupleEndSlot(a.buffer, tIndex):]))
}

// GetFieldSlotsLength returns the size of the field offset header at the start of each tuple
func (a *TupleAccessor) GetFieldSlotsLength() int {
	return a.recDesc.NumFields() * slotSize
}

// GetFieldCount returns the number of fields in each tuple
func (a *TupleAccessor) GetFieldCount() int {
	return a.recDesc.NumFields()
}

// GetFieldStartOffset returns the absolute offset of the first byte of a field
func (a *TupleAccessor) GetFieldStartOffset(tIndex int, fIndex int) int {
	tStart := a.GetTupleStartOffset(tIndex)
	dataStart := tStart + a.GetFieldSlotsLength()
	if fIndex == 0 {
		return dataStart
	}
	return dataStart + int(binary.BigEndian.Uint32(a.buffer[tStart+slotSize*(fIndex-1):]))
}

// GetFieldEndOffset returns the absolute offset just past the last byte of a field
func (a *TupleAccessor) GetFieldEndOffset(tIndex int, fIndex int) int {
	tStart := a.GetTupleStartOffset(tIndex)
	return tStart + a.GetFieldSlotsLength() + int(binary.BigEndian.Uint32(a.buffer[tStart+slotSize*fIndex:]))
}

// GetFieldLength returns the length of a field, in bytes
func (a *TupleAccessor) GetFieldLength(tIndex int, fIndex int) int {
	return a.GetFieldEndOffset(tIndex, fIndex) - a.GetFieldStartOffset(tIndex, fIndex)
}

// GetField returns the bytes of a field. The result aliases the frame.
func (a *TupleAccessor) GetField(tIndex int, fIndex int) []byte {
	return a.buffer[a.GetFieldStartOffset(tIndex, fIndex):a.GetFieldEndOffset(tIndex, fIndex)]
}
