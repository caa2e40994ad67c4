// Package comparator provides order-preserving field encodings, the BinaryComparators which
// compare them, and the TupleComparator which composes them over a set of sort fields.
package comparator

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/go-sif/dflow"
)

// EncodeInt32 serializes an int32 such that byte order matches numeric order
func EncodeInt32(v int32) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(v)^(1<<31))
	return buf
}

// DecodeInt32 is the inverse of EncodeInt32
func DecodeInt32(buf []byte) int32 {
	return int32(binary.BigEndian.Uint32(buf) ^ (1 << 31))
}

// EncodeInt64 serializes an int64 such that byte order matches numeric order
func EncodeInt64(v int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(v)^(1<<63))
	return buf
}

// DecodeInt64 is the inverse of EncodeInt64
func DecodeInt64(buf []byte) int64 {
	return int64(binary.BigEndian.Uint64(buf) ^ (1 << 63))
}

// EncodeFloat64 serializes a float64 such that byte order matches numeric order (NaNs sort last)
func EncodeFloat64(v float64) []byte {
	bits := math.Float64bits(v)
	if bits&(1<<63) != 0 {
		bits = ^bits
	} else {
		bits |= 1 << 63
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, bits)
	return buf
}

// DecodeFloat64 is the inverse of EncodeFloat64
func DecodeFloat64(buf []byte) float64 {
	bits := binary.BigEndian.Uint64(buf)
	if bits&(1<<63) != 0 {
		bits &^= 1 << 63
	} else {
		bits = ^bits
	}
	return math.Float64frombits(bits)
}

type bytesComparator struct{}

func (c bytesComparator) Compare(b1 []byte, s1 int, l1 int, b2 []byte, s2 int, l2 int) int {
	return bytes.Compare(b1[s1:s1+l1], b2[s2:s2+l2])
}

// BytesBinaryComparatorFactory produces comparators which order fields lexicographically.
// Every encoding within this package is order-compatible with it, as is UTF-8 text.
type BytesBinaryComparatorFactory struct{}

// CreateBinaryComparator creates a lexicographic BinaryComparator
func (f BytesBinaryComparatorFactory) CreateBinaryComparator() dflow.BinaryComparator {
	return bytesComparator{}
}

type int32Comparator struct{}

func (c int32Comparator) Compare(b1 []byte, s1 int, l1 int, b2 []byte, s2 int, l2 int) int {
	v1 := DecodeInt32(b1[s1 : s1+l1])
	v2 := DecodeInt32(b2[s2 : s2+l2])
	if v1 < v2 {
		return -1
	} else if v1 > v2 {
		return 1
	}
	return 0
}

// Int32BinaryComparatorFactory produces comparators for fields written by EncodeInt32
type Int32BinaryComparatorFactory struct{}

// CreateBinaryComparator creates an int32 BinaryComparator
func (f Int32BinaryComparatorFactory) CreateBinaryComparator() dflow.BinaryComparator {
	return int32Comparator{}
}

type int64Comparator struct{}

func (c int64Comparator) Compare(b1 []byte, s1 int, l1 int, b2 []byte, s2 int, l2 int) int {
	v1 := DecodeInt64(b1[s1 : s1+l1])
	v2 := DecodeInt64(b2[s2 : s2+l2])
	if v1 < v2 {
		return -1
	} else if v1 > v2 {
		return 1
	}
	return 0
}

// Int64BinaryComparatorFactory produces comparators for fields written by EncodeInt64
type Int64BinaryComparatorFactory struct{}

// CreateBinaryComparator creates an int64 BinaryComparator
func (f Int64BinaryComparatorFactory) CreateBinaryComparator() dflow.BinaryComparator {
	return int64Comparator{}
}

type float64Comparator struct{}

func (c float64Comparator) Compare(b1 []byte, s1 int, l1 int, b2 []byte, s2 int, l2 int) int {
	// the encoding is order-preserving, so the raw bytes compare correctly even for NaN and -0
	return bytes.Compare(b1[s1:s1+l1], b2[s2:s2+l2])
}

// Float64BinaryComparatorFactory produces comparators for fields written by EncodeFloat64
type Float64BinaryComparatorFactory struct{}

// CreateBinaryComparator creates a float64 BinaryComparator
func (f Float64BinaryComparatorFactory) CreateBinaryComparator() dflow.BinaryComparator {
	return float64Comparator{}
}
