package dflow

// ConnectorID identifies a ConnectorDescriptor within a job
type ConnectorID int

// ConnectorKind describes how a connector routes frames from producer partitions to consumer partitions
type ConnectorKind int

const (
	// OneToOneConnectorKind sends partition i of the producer to partition i of the consumer
	OneToOneConnectorKind ConnectorKind = iota
	// MToNPartitioningConnectorKind routes each tuple to one consumer partition via a TuplePartitionComputer
	MToNPartitioningConnectorKind
	// MToNPartitioningMergingConnectorKind routes like MToNPartitioningConnectorKind, merging the sorted producer streams on the consumer side
	MToNPartitioningMergingConnectorKind
	// MToNReplicatingConnectorKind sends every tuple to every consumer partition
	MToNReplicatingConnectorKind
)

// ConnectorKindToString translates a ConnectorKind to a string representation
func ConnectorKindToString(kind ConnectorKind) string {
	switch kind {
	case OneToOneConnectorKind:
		return "one-to-one"
	case MToNPartitioningConnectorKind:
		return "m-to-n-partitioning"
	case MToNPartitioningMergingConnectorKind:
		return "m-to-n-partitioning-merging"
	case MToNReplicatingConnectorKind:
		return "m-to-n-replicating"
	default:
		return "unknown"
	}
}

// ConnectorDescriptor describes an edge of a physical job graph
type ConnectorDescriptor interface {
	ID() ConnectorID     // ID returns the ID of this connector within its job
	Kind() ConnectorKind // Kind returns the routing behaviour of this connector
	String() string
}

// ConnectorPolicy decides how frames crossing a connector are scheduled
type ConnectorPolicy interface {
	ProducerWaitsForConsumerToFinish() bool // ProducerWaitsForConsumerToFinish is true iff the producer may not finish before its consumers
	ConsumerWaitsForProducerToFinish() bool // ConsumerWaitsForProducerToFinish is true iff consumers only start once producers are done
	MaterializeOnSendSide() bool            // MaterializeOnSendSide is true iff frames are spilled by the sender before transmission
	MaterializeOnReceiveSide() bool         // MaterializeOnReceiveSide is true iff frames are spilled by the receiver before consumption
	String() string
}

// ConnectorPolicyAssignmentPolicy chooses a ConnectorPolicy for each connector of a job
type ConnectorPolicyAssignmentPolicy interface {
	GetConnectorPolicyAssignment(c ConnectorDescriptor, nProducers int, nConsumers int, fanouts []int) ConnectorPolicy
}

// TargetConstraint relates the partition count of a connector's consumer to its producer
type TargetConstraint int

const (
	// NoTargetConstraint places no requirement on the consumer
	NoTargetConstraint TargetConstraint = iota
	// OneTargetConstraint runs the consumer as a single partition
	OneTargetConstraint
	// SameCountTargetConstraint gives the consumer the producer's partition constraint
	SameCountTargetConstraint
	// RackAggSenderTargetConstraint places the consumer on rack representatives of the producer's locations
	RackAggSenderTargetConstraint
	// RackAggReceiverTargetConstraint places the consumer on rack representatives of the whole cluster
	RackAggReceiverTargetConstraint
)

// TargetConstraintToString translates a TargetConstraint to a string representation
func TargetConstraintToString(tc TargetConstraint) string {
	switch tc {
	case OneTargetConstraint:
		return "ONE"
	case SameCountTargetConstraint:
		return "SAME_COUNT"
	case RackAggSenderTargetConstraint:
		return "RACK_AGG_SENDER"
	case RackAggReceiverTargetConstraint:
		return "RACK_AGG_RECEIVER"
	default:
		return "NONE"
	}
}
