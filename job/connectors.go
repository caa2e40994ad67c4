package job

import (
	"fmt"
	"log"

	"github.com/go-sif/dflow"
)

type connectorBase struct {
	id   dflow.ConnectorID
	kind dflow.ConnectorKind
}

// ID returns the ID of this connector
func (c *connectorBase) ID() dflow.ConnectorID {
	return c.id
}

// Kind returns the routing behaviour of this connector
func (c *connectorBase) Kind() dflow.ConnectorKind {
	return c.kind
}

func (c *connectorBase) String() string {
	return fmt.Sprintf("%s#%d", dflow.ConnectorKindToString(c.kind), c.id)
}

func registerConnector(spec *Specification, kind dflow.ConnectorKind) connectorBase {
	return connectorBase{id: spec.nextConnectorID(), kind: kind}
}

// OneToOneConnectorDescriptor sends partition i of its producer to partition i of its consumer
type OneToOneConnectorDescriptor struct {
	connectorBase
}

// CreateOneToOneConnectorDescriptor adds a OneToOneConnectorDescriptor to spec
func CreateOneToOneConnectorDescriptor(spec *Specification) *OneToOneConnectorDescriptor {
	c := &OneToOneConnectorDescriptor{registerConnector(spec, dflow.OneToOneConnectorKind)}
	spec.addConnector(c)
	return c
}

// MToNPartitioningConnectorDescriptor routes each tuple to the consumer partition chosen by a
// TuplePartitionComputer
type MToNPartitioningConnectorDescriptor struct {
	connectorBase
	PartitionComputerFactory dflow.TuplePartitionComputerFactory
}

// CreateMToNPartitioningConnectorDescriptor adds a MToNPartitioningConnectorDescriptor to spec
func CreateMToNPartitioningConnectorDescriptor(spec *Specification, tpcf dflow.TuplePartitionComputerFactory) *MToNPartitioningConnectorDescriptor {
	c := &MToNPartitioningConnectorDescriptor{
		connectorBase:            registerConnector(spec, dflow.MToNPartitioningConnectorKind),
		PartitionComputerFactory: tpcf,
	}
	spec.addConnector(c)
	return c
}

// MToNPartitioningMergingConnectorDescriptor routes like MToNPartitioningConnectorDescriptor,
// and merges the sorted streams arriving at each consumer partition
type MToNPartitioningMergingConnectorDescriptor struct {
	connectorBase
	PartitionComputerFactory dflow.TuplePartitionComputerFactory
	SortFields               []int
	ComparatorFactories      []dflow.BinaryComparatorFactory
}

// CreateMToNPartitioningMergingConnectorDescriptor adds a MToNPartitioningMergingConnectorDescriptor to spec
func CreateMToNPartitioningMergingConnectorDescriptor(spec *Specification, tpcf dflow.TuplePartitionComputerFactory, sortFields []int, comparatorFactories []dflow.BinaryComparatorFactory) *MToNPartitioningMergingConnectorDescriptor {
	if len(sortFields) != len(comparatorFactories) {
		log.Panicf("Got %d sort fields but %d comparator factories", len(sortFields), len(comparatorFactories))
	}
	c := &MToNPartitioningMergingConnectorDescriptor{
		connectorBase:            registerConnector(spec, dflow.MToNPartitioningMergingConnectorKind),
		PartitionComputerFactory: tpcf,
		SortFields:               sortFields,
		ComparatorFactories:      comparatorFactories,
	}
	spec.addConnector(c)
	return c
}

// MToNReplicatingConnectorDescriptor sends every tuple to every consumer partition
type MToNReplicatingConnectorDescriptor struct {
	connectorBase
}

// CreateMToNReplicatingConnectorDescriptor adds a MToNReplicatingConnectorDescriptor to spec
func CreateMToNReplicatingConnectorDescriptor(spec *Specification) *MToNReplicatingConnectorDescriptor {
	c := &MToNReplicatingConnectorDescriptor{registerConnector(spec, dflow.MToNReplicatingConnectorKind)}
	spec.addConnector(c)
	return c
}
