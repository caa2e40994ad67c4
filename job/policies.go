package job

import "github.com/go-sif/dflow"

// PipeliningConnectorPolicy streams frames from producers to consumers as they are produced
type PipeliningConnectorPolicy struct{}

// ProducerWaitsForConsumerToFinish returns false
func (p PipeliningConnectorPolicy) ProducerWaitsForConsumerToFinish() bool { return false }

// ConsumerWaitsForProducerToFinish returns false
func (p PipeliningConnectorPolicy) ConsumerWaitsForProducerToFinish() bool { return false }

// MaterializeOnSendSide returns false
func (p PipeliningConnectorPolicy) MaterializeOnSendSide() bool { return false }

// MaterializeOnReceiveSide returns false
func (p PipeliningConnectorPolicy) MaterializeOnReceiveSide() bool { return false }

func (p PipeliningConnectorPolicy) String() string { return "pipelining" }

// SendSideMaterializedPipeliningConnectorPolicy spills frames on the producer side before
// streaming them, so that consumers can replay them in a deterministic order
type SendSideMaterializedPipeliningConnectorPolicy struct{}

// ProducerWaitsForConsumerToFinish returns false
func (p SendSideMaterializedPipeliningConnectorPolicy) ProducerWaitsForConsumerToFinish() bool {
	return false
}

// ConsumerWaitsForProducerToFinish returns false
func (p SendSideMaterializedPipeliningConnectorPolicy) ConsumerWaitsForProducerToFinish() bool {
	return false
}

// MaterializeOnSendSide returns true
func (p SendSideMaterializedPipeliningConnectorPolicy) MaterializeOnSendSide() bool { return true }

// MaterializeOnReceiveSide returns false
func (p SendSideMaterializedPipeliningConnectorPolicy) MaterializeOnReceiveSide() bool {
	return false
}

func (p SendSideMaterializedPipeliningConnectorPolicy) String() string {
	return "send-side-materialized-pipelining"
}

// MergingMaterializationPolicy materializes partitioning-merging connectors on the send side
// and pipelines every other connector
type MergingMaterializationPolicy struct{}

// GetConnectorPolicyAssignment chooses the policy for c
func (p MergingMaterializationPolicy) GetConnectorPolicyAssignment(c dflow.ConnectorDescriptor, nProducers int, nConsumers int, fanouts []int) dflow.ConnectorPolicy {
	if c.Kind() == dflow.MToNPartitioningMergingConnectorKind {
		return SendSideMaterializedPipeliningConnectorPolicy{}
	}
	return PipeliningConnectorPolicy{}
}

// PipelineAllPolicy pipelines every connector
type PipelineAllPolicy struct{}

// GetConnectorPolicyAssignment returns PipeliningConnectorPolicy
func (p PipelineAllPolicy) GetConnectorPolicyAssignment(c dflow.ConnectorDescriptor, nProducers int, nConsumers int, fanouts []int) dflow.ConnectorPolicy {
	return PipeliningConnectorPolicy{}
}
