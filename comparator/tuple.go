package comparator

import (
	"log"

	"github.com/go-sif/dflow"
)

// TupleComparator orders tuples lexicographically over a set of sort fields
type TupleComparator struct {
	sortFields  []int
	comparators []dflow.BinaryComparator
}

// CreateTupleComparator builds a TupleComparator which compares sortFields[0] using
// factories[0], then sortFields[1] using factories[1], and so on
func CreateTupleComparator(sortFields []int, factories []dflow.BinaryComparatorFactory) *TupleComparator {
	if len(sortFields) != len(factories) {
		log.Panicf("Got %d sort fields but %d comparator factories", len(sortFields), len(factories))
	}
	comparators := make([]dflow.BinaryComparator, len(factories))
	for i, f := range factories {
		comparators[i] = f.CreateBinaryComparator()
	}
	return &TupleComparator{sortFields: sortFields, comparators: comparators}
}

// Compare returns a negative number, zero or a positive number as tuple ai of a sorts before,
// equal to or after tuple bi of b
func (c *TupleComparator) Compare(a dflow.FrameTupleAccessor, ai int, b dflow.FrameTupleAccessor, bi int) int {
	for i, f := range c.sortFields {
		res := c.comparators[i].Compare(
			a.GetBuffer(), a.GetFieldStartOffset(ai, f), a.GetFieldLength(ai, f),
			b.GetBuffer(), b.GetFieldStartOffset(bi, f), b.GetFieldLength(bi, f),
		)
		if res != 0 {
			return res
		}
	}
	return 0
}

// SortFields returns the fields this TupleComparator compares, in order
func (c *TupleComparator) SortFields() []int {
	return c.sortFields
}

// Validate panics if a sort field lies outside of recDesc
func (c *TupleComparator) Validate(recDesc *dflow.RecordDescriptor) {
	for _, f := range c.sortFields {
		if f < 0 || f >= recDesc.NumFields() {
			log.Panicf("Sort field %d is outside of record with %d fields", f, recDesc.NumFields())
		}
	}
}
