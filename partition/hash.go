// Package partition provides TuplePartitionComputers, which decide the consumer partition
// each tuple crossing a partitioning connector is routed to.
package partition

import (
	"encoding/binary"
	"log"

	"github.com/cespare/xxhash/v2"
	"github.com/go-sif/dflow"
)

// FieldHashPartitionComputerFactory routes tuples by hashing their key fields
type FieldHashPartitionComputerFactory struct {
	KeyFields             []int
	HashFunctionFactories []dflow.BinaryHashFunctionFactory
}

// CreateFieldHashPartitionComputerFactory is a factory for FieldHashPartitionComputerFactories
func CreateFieldHashPartitionComputerFactory(keyFields []int, hashFunctionFactories []dflow.BinaryHashFunctionFactory) *FieldHashPartitionComputerFactory {
	if len(keyFields) != len(hashFunctionFactories) {
		log.Panicf("Got %d key fields but %d hash function factories", len(keyFields), len(hashFunctionFactories))
	}
	return &FieldHashPartitionComputerFactory{KeyFields: keyFields, HashFunctionFactories: hashFunctionFactories}
}

// CreatePartitioner creates a field hash TuplePartitionComputer
func (f *FieldHashPartitionComputerFactory) CreatePartitioner() dflow.TuplePartitionComputer {
	hashFunctions := make([]dflow.BinaryHashFunction, len(f.HashFunctionFactories))
	for i, hf := range f.HashFunctionFactories {
		hashFunctions[i] = hf.CreateBinaryHashFunction()
	}
	return &fieldHashPartitionComputer{keyFields: f.KeyFields, hashFunctions: hashFunctions, scratch: make([]byte, 8)}
}

type fieldHashPartitionComputer struct {
	keyFields     []int
	hashFunctions []dflow.BinaryHashFunction
	scratch       []byte
}

// Partition combines the hashes of all key fields and reduces the result modulo nParts
func (c *fieldHashPartitionComputer) Partition(accessor dflow.FrameTupleAccessor, tIndex int, nParts int) (int, error) {
	if nParts <= 0 {
		return 0, nil
	}
	var h uint64
	if len(c.keyFields) == 1 {
		f := c.keyFields[0]
		h = c.hashFunctions[0].Hash(accessor.GetBuffer(), accessor.GetFieldStartOffset(tIndex, f), accessor.GetFieldLength(tIndex, f))
	} else {
		digest := xxhash.New()
		for i, f := range c.keyFields {
			fh := c.hashFunctions[i].Hash(accessor.GetBuffer(), accessor.GetFieldStartOffset(tIndex, f), accessor.GetFieldLength(tIndex, f))
			binary.BigEndian.PutUint64(c.scratch, fh)
			if _, err := digest.Write(c.scratch); err != nil {
				return 0, err
			}
		}
		h = digest.Sum64()
	}
	return int(h % uint64(nParts)), nil
}
