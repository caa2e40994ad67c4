package dflow

// BinaryComparator compares two serialized field values
type BinaryComparator interface {
	Compare(b1 []byte, s1 int, l1 int, b2 []byte, s2 int, l2 int) int
}

// BinaryComparatorFactory produces BinaryComparators. Comparators may carry state, so
// every consumer creates its own.
type BinaryComparatorFactory interface {
	CreateBinaryComparator() BinaryComparator
}

// BinaryHashFunction hashes a serialized field value
type BinaryHashFunction interface {
	Hash(b []byte, s int, l int) uint64
}

// BinaryHashFunctionFactory produces BinaryHashFunctions
type BinaryHashFunctionFactory interface {
	CreateBinaryHashFunction() BinaryHashFunction
}

// TuplePartitionComputer decides which of nParts consumer partitions a tuple is sent to
type TuplePartitionComputer interface {
	Partition(accessor FrameTupleAccessor, tIndex int, nParts int) (int, error)
}

// TuplePartitionComputerFactory produces TuplePartitionComputers
type TuplePartitionComputerFactory interface {
	CreatePartitioner() TuplePartitionComputer
}
