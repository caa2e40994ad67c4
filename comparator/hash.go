package comparator

import (
	"github.com/cespare/xxhash/v2"
	"github.com/go-sif/dflow"
)

type xxhashFunction struct{}

func (h xxhashFunction) Hash(b []byte, s int, l int) uint64 {
	return xxhash.Sum64(b[s : s+l])
}

// XXHashBinaryHashFunctionFactory produces BinaryHashFunctions which hash the raw bytes of a field
type XXHashBinaryHashFunctionFactory struct{}

// CreateBinaryHashFunction creates an xxhash BinaryHashFunction
func (f XXHashBinaryHashFunctionFactory) CreateBinaryHashFunction() dflow.BinaryHashFunction {
	return xxhashFunction{}
}
