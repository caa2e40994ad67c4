package partition

import (
	"testing"

	"github.com/go-sif/dflow"
	"github.com/go-sif/dflow/comparator"
	"github.com/go-sif/dflow/frame"
	"github.com/stretchr/testify/require"
)

func createTestFrame(t *testing.T) *frame.TupleAccessor {
	recDesc := dflow.CreateRecordDescriptor("key", "value")
	f := frame.Allocate(1024)
	appender := frame.CreateTupleAppender(1024)
	appender.Reset(f, true)
	for i := int32(0); i < 20; i++ {
		require.True(t, appender.Append([][]byte{comparator.EncodeInt32(i % 5), comparator.EncodeInt32(i)}))
	}
	accessor := frame.CreateTupleAccessor(recDesc)
	accessor.Reset(f)
	return accessor
}

func TestFieldHashPartitioning(t *testing.T) {
	accessor := createTestFrame(t)
	factory := CreateFieldHashPartitionComputerFactory([]int{0}, []dflow.BinaryHashFunctionFactory{comparator.XXHashBinaryHashFunctionFactory{}})
	computer := factory.CreatePartitioner()
	assignments := make(map[int32]int)
	for i := 0; i < accessor.GetTupleCount(); i++ {
		p, err := computer.Partition(accessor, i, 3)
		require.Nil(t, err)
		require.True(t, p >= 0 && p < 3)
		key := comparator.DecodeInt32(accessor.GetField(i, 0))
		// equal keys always land in the same partition
		if prev, ok := assignments[key]; ok {
			require.Equal(t, p, prev)
		}
		assignments[key] = p
	}
	// a second computer agrees with the first
	other := factory.CreatePartitioner()
	for i := 0; i < accessor.GetTupleCount(); i++ {
		p1, err := computer.Partition(accessor, i, 7)
		require.Nil(t, err)
		p2, err := other.Partition(accessor, i, 7)
		require.Nil(t, err)
		require.Equal(t, p1, p2)
	}
}

func TestFieldHashPartitioningMultipleFields(t *testing.T) {
	accessor := createTestFrame(t)
	factory := CreateFieldHashPartitionComputerFactory(
		[]int{0, 1},
		[]dflow.BinaryHashFunctionFactory{comparator.XXHashBinaryHashFunctionFactory{}, comparator.XXHashBinaryHashFunctionFactory{}},
	)
	computer := factory.CreatePartitioner()
	counts := make([]int, 4)
	for i := 0; i < accessor.GetTupleCount(); i++ {
		p, err := computer.Partition(accessor, i, 4)
		require.Nil(t, err)
		counts[p]++
	}
	total := 0
	for _, c := range counts {
		total += c
	}
	require.Equal(t, total, 20)
	require.Panics(t, func() {
		CreateFieldHashPartitionComputerFactory([]int{0, 1}, []dflow.BinaryHashFunctionFactory{comparator.XXHashBinaryHashFunctionFactory{}})
	})
}

func TestTupleRangePartitioning(t *testing.T) {
	accessor := createTestFrame(t)
	computer := TupleRangePartitionComputerFactory{}.CreatePartitioner()
	for i := 0; i < 9; i++ {
		p, err := computer.Partition(accessor, i, 3)
		require.Nil(t, err)
		require.Equal(t, p, i%3)
	}
}
