package partition

import (
	"github.com/go-sif/dflow"
)

// TupleRangePartitionComputerFactory spreads tuples over consumer partitions round robin,
// without looking at their contents
type TupleRangePartitionComputerFactory struct{}

// CreatePartitioner creates a round robin TuplePartitionComputer
func (f TupleRangePartitionComputerFactory) CreatePartitioner() dflow.TuplePartitionComputer {
	return &tupleRangePartitionComputer{}
}

type tupleRangePartitionComputer struct {
	next int
}

// Partition returns the partition after the one chosen by the previous call
func (c *tupleRangePartitionComputer) Partition(accessor dflow.FrameTupleAccessor, tIndex int, nParts int) (int, error) {
	if nParts <= 0 {
		return 0, nil
	}
	p := c.next % nParts
	c.next = p + 1
	return p, nil
}
