// Package job describes physical dataflow jobs: operators, the connectors joining them, the
// partition constraints deciding where each operator runs, and the policies deciding how frames
// cross each connector.
package job

import (
	"fmt"
	"sort"

	"github.com/go-sif/dflow"
	"github.com/go-sif/dflow/errors"
	"github.com/gofrs/uuid"
)

// ConnectorEndpoints describes the operators joined by a connector
type ConnectorEndpoints struct {
	Producer     dflow.OperatorDescriptor
	ProducerPort int
	Consumer     dflow.OperatorDescriptor
	ConsumerPort int
}

// Specification is a physical job graph
type Specification struct {
	id               string
	operators        []dflow.OperatorDescriptor
	connectors       []dflow.ConnectorDescriptor
	inputs           map[dflow.OperatorID][]dflow.ConnectorDescriptor
	outputs          map[dflow.OperatorID][]dflow.ConnectorDescriptor
	endpoints        map[dflow.ConnectorID]*ConnectorEndpoints
	roots            []dflow.OperatorID
	constraints      map[dflow.OperatorID]dflow.PartitionConstraint
	policyAssignment dflow.ConnectorPolicyAssignmentPolicy
}

// CreateSpecification is a factory for empty Specifications
func CreateSpecification() (*Specification, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	return &Specification{
		id:          id.String(),
		operators:   []dflow.OperatorDescriptor{},
		connectors:  []dflow.ConnectorDescriptor{},
		inputs:      make(map[dflow.OperatorID][]dflow.ConnectorDescriptor),
		outputs:     make(map[dflow.OperatorID][]dflow.ConnectorDescriptor),
		endpoints:   make(map[dflow.ConnectorID]*ConnectorEndpoints),
		roots:       []dflow.OperatorID{},
		constraints: make(map[dflow.OperatorID]dflow.PartitionConstraint),
	}, nil
}

// ID returns the unique ID of this Specification
func (s *Specification) ID() string {
	return s.id
}

func (s *Specification) nextOperatorID() dflow.OperatorID {
	return dflow.OperatorID(len(s.operators))
}

func (s *Specification) nextConnectorID() dflow.ConnectorID {
	return dflow.ConnectorID(len(s.connectors))
}

func (s *Specification) addOperator(op dflow.OperatorDescriptor) {
	s.operators = append(s.operators, op)
}

func (s *Specification) addConnector(conn dflow.ConnectorDescriptor) {
	s.connectors = append(s.connectors, conn)
}

// Operators returns every operator of this Specification, ordered by ID
func (s *Specification) Operators() []dflow.OperatorDescriptor {
	return s.operators
}

// Operator returns the operator with the given ID, or nil
func (s *Specification) Operator(id dflow.OperatorID) dflow.OperatorDescriptor {
	if int(id) < 0 || int(id) >= len(s.operators) {
		return nil
	}
	return s.operators[id]
}

// Connectors returns every connector of this Specification, ordered by ID
func (s *Specification) Connectors() []dflow.ConnectorDescriptor {
	return s.connectors
}

// Connect joins output port srcPort of src to input port dstPort of dst through conn
func (s *Specification) Connect(conn dflow.ConnectorDescriptor, src dflow.OperatorDescriptor, srcPort int, dst dflow.OperatorDescriptor, dstPort int) {
	s.outputs[src.ID()] = insertAt(s.outputs[src.ID()], conn, srcPort)
	s.inputs[dst.ID()] = insertAt(s.inputs[dst.ID()], conn, dstPort)
	s.endpoints[conn.ID()] = &ConnectorEndpoints{
		Producer:     src,
		ProducerPort: srcPort,
		Consumer:     dst,
		ConsumerPort: dstPort,
	}
}

// insertAt places conn at index pos, growing the slice with nils if necessary
func insertAt(conns []dflow.ConnectorDescriptor, conn dflow.ConnectorDescriptor, pos int) []dflow.ConnectorDescriptor {
	for len(conns) <= pos {
		conns = append(conns, nil)
	}
	conns[pos] = conn
	return conns
}

// AddRoot marks op as a root (sink) of this job
func (s *Specification) AddRoot(op dflow.OperatorDescriptor) {
	for _, id := range s.roots {
		if id == op.ID() {
			return
		}
	}
	s.roots = append(s.roots, op.ID())
}

// Roots returns the IDs of the roots of this job, in the order they were added
func (s *Specification) Roots() []dflow.OperatorID {
	return s.roots
}

// GetOperatorInputs returns the connectors feeding op, indexed by input port
func (s *Specification) GetOperatorInputs(id dflow.OperatorID) []dflow.ConnectorDescriptor {
	return s.inputs[id]
}

// GetOperatorOutputs returns the connectors fed by op, indexed by output port
func (s *Specification) GetOperatorOutputs(id dflow.OperatorID) []dflow.ConnectorDescriptor {
	return s.outputs[id]
}

// GetConnectorEndpoints returns the operators joined by a connector, or nil if it is not connected
func (s *Specification) GetConnectorEndpoints(id dflow.ConnectorID) *ConnectorEndpoints {
	return s.endpoints[id]
}

// SetPartitionConstraint attaches a partition constraint to an operator. Constraints are set once.
func (s *Specification) SetPartitionConstraint(op dflow.OperatorDescriptor, pc dflow.PartitionConstraint) error {
	if _, ok := s.constraints[op.ID()]; ok {
		return errors.ConstraintAlreadySetError{Operator: op.String()}
	}
	s.constraints[op.ID()] = pc
	return nil
}

// GetPartitionConstraint returns the partition constraint of an operator, or nil if none is set
func (s *Specification) GetPartitionConstraint(id dflow.OperatorID) dflow.PartitionConstraint {
	return s.constraints[id]
}

// SetConnectorPolicyAssignment sets the policy deciding how frames cross each connector
func (s *Specification) SetConnectorPolicyAssignment(p dflow.ConnectorPolicyAssignmentPolicy) {
	s.policyAssignment = p
}

// ConnectorPolicyAssignment returns the policy deciding how frames cross each connector
func (s *Specification) ConnectorPolicyAssignment() dflow.ConnectorPolicyAssignmentPolicy {
	return s.policyAssignment
}

// ResolveConnectorPolicies applies the connector policy assignment to every connector. Both ends
// of every connector must carry a partition constraint.
func (s *Specification) ResolveConnectorPolicies() (map[dflow.ConnectorID]dflow.ConnectorPolicy, error) {
	assignment := s.policyAssignment
	if assignment == nil {
		assignment = PipelineAllPolicy{}
	}
	policies := make(map[dflow.ConnectorID]dflow.ConnectorPolicy, len(s.connectors))
	for _, conn := range s.connectors {
		ends := s.endpoints[conn.ID()]
		if ends == nil {
			return nil, fmt.Errorf("Connector %s is not connected", conn)
		}
		producers := s.constraints[ends.Producer.ID()]
		consumers := s.constraints[ends.Consumer.ID()]
		if producers == nil || consumers == nil {
			return nil, fmt.Errorf("Connector %s joins operators without partition constraints", conn)
		}
		nProducers := producers.Cardinality()
		nConsumers := consumers.Cardinality()
		fanouts := make([]int, nProducers)
		for i := range fanouts {
			fanouts[i] = nConsumers
			if conn.Kind() == dflow.OneToOneConnectorKind {
				fanouts[i] = 1
			}
		}
		policies[conn.ID()] = assignment.GetConnectorPolicyAssignment(conn, nProducers, nConsumers, fanouts)
	}
	return policies, nil
}

// String returns a multi-line description of this job, useful for logging
func (s *Specification) String() string {
	res := fmt.Sprintf("Job %s\n", s.id)
	for _, op := range s.operators {
		res += fmt.Sprintf("  %s", op)
		if pc := s.constraints[op.ID()]; pc != nil {
			res += fmt.Sprintf(" @ %s", pc)
		}
		res += "\n"
	}
	ids := make([]int, 0, len(s.endpoints))
	for id := range s.endpoints {
		ids = append(ids, int(id))
	}
	sort.Ints(ids)
	for _, id := range ids {
		ends := s.endpoints[dflow.ConnectorID(id)]
		res += fmt.Sprintf("  %s: %d:%d -> %d:%d\n", s.connectors[id], ends.Producer.ID(), ends.ProducerPort, ends.Consumer.ID(), ends.ConsumerPort)
	}
	return res
}
