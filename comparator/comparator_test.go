package comparator

import (
	"math"
	"sort"
	"testing"

	"github.com/go-sif/dflow"
	"github.com/go-sif/dflow/frame"
	"github.com/stretchr/testify/require"
)

func compareEncoded(f dflow.BinaryComparatorFactory, a []byte, b []byte) int {
	return f.CreateBinaryComparator().Compare(a, 0, len(a), b, 0, len(b))
}

func TestInt32Encoding(t *testing.T) {
	values := []int32{math.MinInt32, -1000, -1, 0, 1, 7, 1000, math.MaxInt32}
	for i := 0; i < len(values); i++ {
		require.Equal(t, DecodeInt32(EncodeInt32(values[i])), values[i])
		for j := 0; j < len(values); j++ {
			expected := 0
			if i < j {
				expected = -1
			} else if i > j {
				expected = 1
			}
			require.Equal(t, compareEncoded(Int32BinaryComparatorFactory{}, EncodeInt32(values[i]), EncodeInt32(values[j])), expected)
			// the encoding is order preserving for raw bytes as well
			require.Equal(t, compareEncoded(BytesBinaryComparatorFactory{}, EncodeInt32(values[i]), EncodeInt32(values[j])), expected)
		}
	}
}

func TestInt64Encoding(t *testing.T) {
	values := []int64{math.MinInt64, -1 << 40, -1, 0, 1, 1 << 40, math.MaxInt64}
	for i := 0; i < len(values); i++ {
		require.Equal(t, DecodeInt64(EncodeInt64(values[i])), values[i])
		for j := 0; j < len(values); j++ {
			res := compareEncoded(Int64BinaryComparatorFactory{}, EncodeInt64(values[i]), EncodeInt64(values[j]))
			require.Equal(t, res < 0, i < j)
			require.Equal(t, res > 0, i > j)
		}
	}
}

func TestFloat64Encoding(t *testing.T) {
	values := []float64{math.Inf(-1), -1e10, -1.5, -math.SmallestNonzeroFloat64, 0, math.SmallestNonzeroFloat64, 2.25, 1e300, math.Inf(1)}
	for i := 0; i < len(values); i++ {
		require.Equal(t, DecodeFloat64(EncodeFloat64(values[i])), values[i])
		for j := 0; j < len(values); j++ {
			res := compareEncoded(Float64BinaryComparatorFactory{}, EncodeFloat64(values[i]), EncodeFloat64(values[j]))
			require.Equal(t, res < 0, i < j)
			require.Equal(t, res > 0, i > j)
		}
	}
	require.True(t, math.IsNaN(DecodeFloat64(EncodeFloat64(math.NaN()))))
}

func TestTupleComparator(t *testing.T) {
	recDesc := dflow.CreateRecordDescriptor("name", "age")
	f := frame.Allocate(256)
	appender := frame.CreateTupleAppender(256)
	appender.Reset(f, true)
	tuples := [][2]interface{}{{"bob", int32(30)}, {"alice", int32(40)}, {"bob", int32(20)}, {"alice", int32(40)}}
	for _, tuple := range tuples {
		require.True(t, appender.Append([][]byte{[]byte(tuple[0].(string)), EncodeInt32(tuple[1].(int32))}))
	}
	accessor := frame.CreateTupleAccessor(recDesc)
	accessor.Reset(f)
	cmp := CreateTupleComparator([]int{0, 1}, []dflow.BinaryComparatorFactory{BytesBinaryComparatorFactory{}, Int32BinaryComparatorFactory{}})
	cmp.Validate(recDesc)
	// sort tuple indices
	indices := []int{0, 1, 2, 3}
	sort.SliceStable(indices, func(i, j int) bool {
		return cmp.Compare(accessor, indices[i], accessor, indices[j]) < 0
	})
	require.Equal(t, indices, []int{1, 3, 2, 0})
	require.Equal(t, cmp.Compare(accessor, 1, accessor, 3), 0)
	// second field only
	byAge := CreateTupleComparator([]int{1}, []dflow.BinaryComparatorFactory{Int32BinaryComparatorFactory{}})
	require.True(t, byAge.Compare(accessor, 2, accessor, 0) < 0)
	require.True(t, byAge.Compare(accessor, 1, accessor, 0) > 0)
	require.Equal(t, byAge.SortFields(), []int{1})
}

func TestTupleComparatorMisconfigured(t *testing.T) {
	require.Panics(t, func() {
		CreateTupleComparator([]int{0, 1}, []dflow.BinaryComparatorFactory{BytesBinaryComparatorFactory{}})
	})
	cmp := CreateTupleComparator([]int{3}, []dflow.BinaryComparatorFactory{BytesBinaryComparatorFactory{}})
	require.Panics(t, func() {
		cmp.Validate(dflow.CreateRecordDescriptor("a", "b"))
	})
}

func TestXXHashFunction(t *testing.T) {
	h := XXHashBinaryHashFunctionFactory{}.CreateBinaryHashFunction()
	buf := []byte("xxabcxx")
	require.Equal(t, h.Hash(buf, 2, 3), h.Hash([]byte("abc"), 0, 3))
	require.NotEqual(t, h.Hash(buf, 2, 3), h.Hash(buf, 1, 3))
}
