package jobgen

import (
	"testing"

	"github.com/go-sif/dflow"
	"github.com/go-sif/dflow/comparator"
	"github.com/go-sif/dflow/errors"
	"github.com/go-sif/dflow/job"
	"github.com/go-sif/dflow/partition"
	dftest "github.com/go-sif/dflow/testing"
	"github.com/go-sif/dflow/topology"
	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/require"
)

const twoRacks = `{"name": "core", "ports": [
	{"name": "rackA", "ports": [{"name": "a0"}, {"name": "a1"}, {"name": "a2"}]},
	{"name": "rackB", "ports": [{"name": "b0"}, {"name": "b1"}]}
]}`

const oneRack = `{"name": "core", "ports": [
	{"name": "rackA", "ports": [{"name": "a0"}, {"name": "a1"}, {"name": "a2"}]}
]}`

type logicalOp struct {
	name string
}

func (op *logicalOp) String() string {
	return op.name
}

type passThroughFactory struct {
	name string
}

func (f *passThroughFactory) CreatePushRuntime(output dflow.FrameWriter) (dflow.FrameWriter, error) {
	return output, nil
}

func (f *passThroughFactory) String() string {
	return f.name
}

func parseTopology(t *testing.T, data string) dflow.ClusterTopology {
	topo, err := topology.FromJSON([]byte(data))
	require.Nil(t, err)
	return topo
}

func createTestBuilder(t *testing.T, topo dflow.ClusterTopology, locations ...string) *Builder {
	b, err := CreateBuilder(&BuilderOptions{
		ClusterLocations: dflow.CreateAbsolutePartitionConstraint(locations...),
		Topology:         topo,
	})
	require.Nil(t, err)
	return b
}

func hashPartitioner() dflow.TuplePartitionComputerFactory {
	return partition.CreateFieldHashPartitionComputerFactory([]int{0}, []dflow.BinaryHashFunctionFactory{comparator.XXHashBinaryHashFunctionFactory{}})
}

func contributeMicro(b *Builder, op *logicalOp, pc dflow.PartitionConstraint) {
	b.ContributeMicroOperator(op, &passThroughFactory{name: op.name}, dftest.IntRecordDescriptor, pc)
}

// contributeShufflePlan contributes scan -> select -> exchange -> aggregate -> write, where the
// exchange is a hash partitioning connector
func contributeShufflePlan(b *Builder, scanConstraint dflow.PartitionConstraint, writeConstraint dflow.PartitionConstraint) []dflow.LogicalOperator {
	scan := &logicalOp{"scan"}
	sel := &logicalOp{"select"}
	exchange := &logicalOp{"exchange"}
	agg := &logicalOp{"aggregate"}
	write := &logicalOp{"write"}
	contributeMicro(b, scan, scanConstraint)
	contributeMicro(b, sel, nil)
	b.ContributeConnector(exchange, job.CreateMToNPartitioningConnectorDescriptor(b.Specification(), hashPartitioner()))
	contributeMicro(b, agg, nil)
	contributeMicro(b, write, writeConstraint)
	b.ContributeGraphEdge(scan, 0, sel, 0)
	b.ContributeGraphEdge(sel, 0, exchange, 0)
	b.ContributeGraphEdge(exchange, 0, agg, 0)
	b.ContributeGraphEdge(agg, 0, write, 0)
	return []dflow.LogicalOperator{write}
}

func constraintsOf(spec *job.Specification) []string {
	res := []string{}
	for _, op := range spec.Operators() {
		pc := spec.GetPartitionConstraint(op.ID())
		if pc == nil {
			res = append(res, op.String()+" unconstrained")
		} else {
			res = append(res, op.String()+" "+pc.String())
		}
	}
	return res
}

func TestFusion(t *testing.T) {
	b := createTestBuilder(t, nil, "a0", "a1")
	roots := contributeShufflePlan(b, nil, nil)
	spec, err := b.BuildSpec(roots)
	require.Nil(t, err)
	ops := spec.Operators()
	require.Equal(t, len(ops), 2)
	require.Equal(t, ops[0].String(), "meta#0[scan -> select]")
	require.Equal(t, ops[1].String(), "meta#1[aggregate -> write]")
	require.Equal(t, ops[0].InputArity(), 0)
	require.Equal(t, ops[0].OutputArity(), 1)
	require.Equal(t, spec.Roots(), []dflow.OperatorID{ops[1].ID()})
	require.Equal(t, len(spec.Connectors()), 1)
	ends := spec.GetConnectorEndpoints(spec.Connectors()[0].ID())
	require.Equal(t, ends.Producer, ops[0])
	require.Equal(t, ends.Consumer, ops[1])
	// no inputs and an unconstrained parent falls back to the cluster
	require.Equal(t, constraintsOf(spec), []string{
		"meta#0[scan -> select] absolute[a0,a1]",
		"meta#1[aggregate -> write] absolute[a0,a1]",
	})
	// builders are single-use
	_, err = b.BuildSpec(roots)
	require.NotNil(t, err)
}

func TestFusionMergesGroupsAcrossContributionOrder(t *testing.T) {
	b := createTestBuilder(t, nil, "a0")
	first := &logicalOp{"first"}
	second := &logicalOp{"second"}
	third := &logicalOp{"third"}
	// contribute the tail of the chain first
	contributeMicro(b, third, nil)
	contributeMicro(b, first, nil)
	contributeMicro(b, second, nil)
	b.ContributeGraphEdge(second, 0, third, 0)
	b.ContributeGraphEdge(first, 0, second, 0)
	spec, err := b.BuildSpec([]dflow.LogicalOperator{third})
	require.Nil(t, err)
	require.Equal(t, len(spec.Operators()), 1)
	meta := spec.Operators()[0].(*job.MetaOperatorDescriptor)
	names := []string{}
	for _, f := range meta.MicroOperators() {
		names = append(names, f.String())
	}
	require.Equal(t, names, []string{"first", "second", "third"})
}

func TestFanOutAndFanInStopFusion(t *testing.T) {
	b := createTestBuilder(t, nil, "a0")
	split := &logicalOp{"split"}
	left := &logicalOp{"left"}
	right := &logicalOp{"right"}
	join := &logicalOp{"join"}
	for _, op := range []*logicalOp{split, left, right, join} {
		contributeMicro(b, op, nil)
	}
	b.ContributeGraphEdge(split, 0, left, 0)
	b.ContributeGraphEdge(split, 1, right, 0)
	b.ContributeGraphEdge(left, 0, join, 0)
	b.ContributeGraphEdge(right, 0, join, 1)
	spec, err := b.BuildSpec([]dflow.LogicalOperator{join})
	require.Nil(t, err)
	ops := spec.Operators()
	require.Equal(t, len(ops), 4)
	require.Equal(t, ops[0].String(), "meta#0[split]")
	require.Equal(t, ops[0].OutputArity(), 2)
	require.Equal(t, ops[3].String(), "meta#3[join]")
	require.Equal(t, ops[3].InputArity(), 2)
}

func TestTargetConstraints(t *testing.T) {
	b := createTestBuilder(t, nil, "a0", "a1", "a2")
	spec := b.Specification()
	scan := &logicalOp{"scan"}
	toSort := &logicalOp{"to-sort"}
	sorter := &logicalOp{"sort"}
	gather := &logicalOp{"gather"}
	write := &logicalOp{"write"}
	scanDesc := job.CreateGenericOperatorDescriptor(spec, "scan", 0, dftest.IntRecordDescriptor)
	b.ContributeOperator(scan, scanDesc)
	b.ContributePartitionConstraint(scanDesc, dflow.CreateAbsolutePartitionConstraint("a2", "a0"))
	b.ContributeConnectorWithTargetConstraint(toSort, job.CreateOneToOneConnectorDescriptor(spec), dflow.SameCountTargetConstraint)
	contributeMicro(b, sorter, nil)
	merging := job.CreateMToNPartitioningMergingConnectorDescriptor(spec, hashPartitioner(), []int{0}, []dflow.BinaryComparatorFactory{comparator.Int32BinaryComparatorFactory{}})
	b.ContributeConnectorWithTargetConstraint(gather, merging, dflow.OneTargetConstraint)
	contributeMicro(b, write, nil)
	b.ContributeGraphEdge(scan, 0, toSort, 0)
	b.ContributeGraphEdge(toSort, 0, sorter, 0)
	b.ContributeGraphEdge(sorter, 0, gather, 0)
	b.ContributeGraphEdge(gather, 0, write, 0)
	built, err := b.BuildSpec([]dflow.LogicalOperator{write})
	require.Nil(t, err)
	require.Equal(t, constraintsOf(built), []string{
		"scan#0 absolute[a2,a0]",
		"meta#1[sort] absolute[a2,a0]",
		"meta#2[write] count[1]",
	})
	policies, err := built.ResolveConnectorPolicies()
	require.Nil(t, err)
	require.True(t, policies[merging.ID()].MaterializeOnSendSide())
}

func TestLeafInheritsParentConstraint(t *testing.T) {
	b := createTestBuilder(t, nil, "a0", "a1")
	scan := &logicalOp{"scan"}
	exchange := &logicalOp{"exchange"}
	write := &logicalOp{"write"}
	contributeMicro(b, scan, nil)
	b.ContributeConnector(exchange, job.CreateOneToOneConnectorDescriptor(b.Specification()))
	contributeMicro(b, write, dflow.CreateAbsolutePartitionConstraint("a1"))
	b.ContributeGraphEdge(scan, 0, exchange, 0)
	b.ContributeGraphEdge(exchange, 0, write, 0)
	spec, err := b.BuildSpec([]dflow.LogicalOperator{write})
	require.Nil(t, err)
	require.Equal(t, constraintsOf(spec), []string{
		"meta#0[scan] absolute[a1]",
		"meta#1[write] absolute[a1]",
	})
}

func TestNoRackOperatorsWithinOneRack(t *testing.T) {
	b := createTestBuilder(t, parseTopology(t, oneRack), "a0", "a1", "a2")
	spec, err := b.BuildSpec(contributeShufflePlan(b, nil, nil))
	require.Nil(t, err)
	require.Equal(t, len(spec.Operators()), 2)
	require.Equal(t, len(spec.Connectors()), 1)
}

func TestNoRackOperatorsWhenEndpointsShareARack(t *testing.T) {
	b := createTestBuilder(t, parseTopology(t, twoRacks), "a0", "a1", "a2", "b0", "b1")
	roots := contributeShufflePlan(b, dflow.CreateAbsolutePartitionConstraint("a0", "a1"), dflow.CreateAbsolutePartitionConstraint("a2"))
	spec, err := b.BuildSpec(roots)
	require.Nil(t, err)
	require.Equal(t, len(spec.Operators()), 2)
}

func TestRackOperatorsAcrossRacks(t *testing.T) {
	topo := parseTopology(t, twoRacks)
	b := createTestBuilder(t, topo, "a0", "a1", "a2", "b0", "b1")
	spec, err := b.BuildSpec(contributeShufflePlan(b, nil, nil))
	require.Nil(t, err)
	ops := spec.Operators()
	require.Equal(t, len(ops), 4)
	require.Equal(t, len(spec.Connectors()), 3)
	sender := ops[2]
	receiver := ops[3]
	require.Equal(t, sender.String(), "identity#2")
	require.Equal(t, receiver.String(), "identity#3")

	// producer -> sender -> (original connector) -> receiver -> consumer
	require.Equal(t, spec.GetOperatorInputs(sender.ID())[0].Kind(), dflow.OneToOneConnectorKind)
	require.Equal(t, spec.GetConnectorEndpoints(spec.GetOperatorInputs(sender.ID())[0].ID()).Producer, ops[0])
	partitioning := spec.GetOperatorInputs(receiver.ID())[0]
	require.Equal(t, partitioning.Kind(), dflow.MToNPartitioningConnectorKind)
	require.Equal(t, spec.GetConnectorEndpoints(partitioning.ID()).Producer, sender)
	require.Equal(t, spec.GetConnectorEndpoints(spec.GetOperatorInputs(ops[1].ID())[0].ID()).Producer, receiver)

	// every sender partition stays within the rack of the producer partition feeding it
	producerLocs := spec.GetPartitionConstraint(ops[0].ID()).(*dflow.AbsolutePartitionConstraint).Locations
	senderLocs := spec.GetPartitionConstraint(sender.ID()).(*dflow.AbsolutePartitionConstraint).Locations
	require.Equal(t, len(senderLocs), len(producerLocs))
	for i := range producerLocs {
		require.Equal(t, rackOf(t, topo, senderLocs[i]), rackOf(t, topo, producerLocs[i]))
	}
	// representatives are used round-robin, so small racks use each of their machines
	require.ElementsMatch(t, senderLocs, []string{"a0", "a1", "a2", "b0", "b1"})
	require.Equal(t, spec.GetPartitionConstraint(receiver.ID()).Cardinality(), 5)
}

func rackOf(t *testing.T, topo dflow.ClusterTopology, loc string) string {
	path, ok := topo.LookupNetworkTerminal(loc)
	require.True(t, ok)
	return topology.RackKey(path)
}

func TestRackRepresentativesCap(t *testing.T) {
	b, err := CreateBuilder(&BuilderOptions{
		ClusterLocations:    dflow.CreateAbsolutePartitionConstraint("a0", "a1", "a2", "b0", "b1"),
		Topology:            parseTopology(t, twoRacks),
		RackRepresentatives: 1,
	})
	require.Nil(t, err)
	spec, err := b.BuildSpec(contributeShufflePlan(b, nil, nil))
	require.Nil(t, err)
	senderLocs := spec.GetPartitionConstraint(spec.Operators()[2].ID()).(*dflow.AbsolutePartitionConstraint).Locations
	// one representative per rack
	require.Equal(t, senderLocs[0], senderLocs[1])
	require.Equal(t, senderLocs[1], senderLocs[2])
	require.Equal(t, senderLocs[3], senderLocs[4])
}

func TestDeterministicConstraints(t *testing.T) {
	build := func() []string {
		b := createTestBuilder(t, parseTopology(t, twoRacks), "a0", "a1", "a2", "b0", "b1")
		spec, err := b.BuildSpec(contributeShufflePlan(b, nil, nil))
		require.Nil(t, err)
		return constraintsOf(spec)
	}
	first := build()
	for i := 0; i < 5; i++ {
		require.Equal(t, build(), first)
	}
}

func TestCountConstraintAcrossRacks(t *testing.T) {
	b := createTestBuilder(t, parseTopology(t, twoRacks), "a0", "a1", "a2", "b0", "b1")
	roots := contributeShufflePlan(b, dflow.CreateCountPartitionConstraint(2), nil)
	spec, err := b.BuildSpec(roots)
	require.Nil(t, spec)
	_, ok := err.(errors.CountConstraintError)
	require.True(t, ok)
}

func TestUnknownClusterLocation(t *testing.T) {
	_, err := CreateBuilder(&BuilderOptions{
		ClusterLocations: dflow.CreateAbsolutePartitionConstraint("a0", "z9"),
		Topology:         parseTopology(t, twoRacks),
	})
	require.Equal(t, err, errors.UnknownTerminalError{Location: "z9"})
}

func TestMissingOperatorMappings(t *testing.T) {
	b := createTestBuilder(t, nil, "a0")
	scan := &logicalOp{"scan"}
	exchange := &logicalOp{"exchange"}
	write := &logicalOp{"write"}
	ghost := &logicalOp{"ghost"}
	b.ContributeConnector(exchange, job.CreateOneToOneConnectorDescriptor(b.Specification()))
	contributeMicro(b, write, nil)
	b.ContributeGraphEdge(scan, 0, exchange, 0)
	b.ContributeGraphEdge(exchange, 0, write, 0)
	spec, err := b.BuildSpec([]dflow.LogicalOperator{write, ghost})
	require.Nil(t, spec)
	merr, ok := err.(*multierror.Error)
	require.True(t, ok)
	require.Equal(t, len(merr.Errors), 2)
	require.Equal(t, merr.Errors[0], errors.MissingOperatorMappingError{Operator: "scan"})
	require.Equal(t, merr.Errors[1], errors.MissingOperatorMappingError{Operator: "ghost"})
}

func TestBuilderOptionsDefaults(t *testing.T) {
	opts := &BuilderOptions{ClusterLocations: dflow.CreateAbsolutePartitionConstraint("a0")}
	b, err := CreateBuilder(opts)
	require.Nil(t, err)
	require.Equal(t, opts.RackRepresentatives, 8)
	require.Equal(t, b.Specification().ConnectorPolicyAssignment(), dflow.ConnectorPolicyAssignmentPolicy(job.MergingMaterializationPolicy{}))
	require.Panics(t, func() {
		CreateBuilder(&BuilderOptions{})
	})
}

func TestDisjointSet(t *testing.T) {
	ds := createDisjointSet(6)
	ds.union(0, 1)
	ds.union(2, 3)
	ds.union(1, 3)
	require.Equal(t, ds.find(0), ds.find(2))
	require.NotEqual(t, ds.find(0), ds.find(4))
	ds.union(4, 5)
	ds.union(5, 4)
	require.Equal(t, ds.find(4), ds.find(5))
	require.NotEqual(t, ds.find(5), ds.find(3))
}
