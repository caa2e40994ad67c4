package dflow

// RecordDescriptor describes the layout of the tuples which flow along an edge of a job graph
type RecordDescriptor struct {
	Fields []string // the names of the fields of a tuple, in order
}

// CreateRecordDescriptor is a factory for RecordDescriptors
func CreateRecordDescriptor(fields ...string) *RecordDescriptor {
	return &RecordDescriptor{Fields: fields}
}

// NumFields returns the number of fields in a tuple described by this RecordDescriptor
func (r *RecordDescriptor) NumFields() int {
	return len(r.Fields)
}

// FrameTupleAccessor exposes the tuples within a frame. It never interprets field
// contents, it only locates them.
type FrameTupleAccessor interface {
	Reset(frame []byte)                             // Reset points this accessor at a new frame
	GetBuffer() []byte                              // GetBuffer returns the frame this accessor currently points at
	GetTupleCount() int                             // GetTupleCount returns the number of tuples in the current frame
	GetTupleStartOffset(tIndex int) int             // GetTupleStartOffset returns the offset of the first byte of a tuple
	GetTupleEndOffset(tIndex int) int               // GetTupleEndOffset returns the offset just past the last byte of a tuple
	GetFieldSlotsLength() int                       // GetFieldSlotsLength returns the size of the field offset header at the start of each tuple
	GetFieldCount() int                             // GetFieldCount returns the number of fields in each tuple
	GetFieldStartOffset(tIndex int, fIndex int) int // GetFieldStartOffset returns the absolute offset of the first byte of a field
	GetFieldEndOffset(tIndex int, fIndex int) int   // GetFieldEndOffset returns the absolute offset just past the last byte of a field
	GetFieldLength(tIndex int, fIndex int) int      // GetFieldLength returns the length of a field, in bytes
}
