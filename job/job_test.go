package job

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/go-sif/dflow"
	"github.com/go-sif/dflow/comparator"
	"github.com/go-sif/dflow/errors"
	"github.com/go-sif/dflow/extsort"
	"github.com/go-sif/dflow/frame"
	"github.com/go-sif/dflow/partition"
	dftest "github.com/go-sif/dflow/testing"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const testFrameSize = 128

// minKeyFactory drops every tuple whose key is below min
type minKeyFactory struct {
	min int32
}

func (f *minKeyFactory) CreatePushRuntime(output dflow.FrameWriter) (dflow.FrameWriter, error) {
	return &minKeyRuntime{
		min:      f.min,
		output:   output,
		accessor: frame.CreateTupleAccessor(dftest.IntRecordDescriptor),
		appender: frame.CreateTupleAppender(testFrameSize),
		buf:      frame.Allocate(testFrameSize),
	}, nil
}

func (f *minKeyFactory) String() string {
	return fmt.Sprintf("min-key(%d)", f.min)
}

type minKeyRuntime struct {
	min      int32
	output   dflow.FrameWriter
	accessor *frame.TupleAccessor
	appender *frame.TupleAppender
	buf      []byte
}

func (r *minKeyRuntime) Open() error {
	r.appender.Reset(r.buf, true)
	return r.output.Open()
}

func (r *minKeyRuntime) NextFrame(f []byte) error {
	r.accessor.Reset(f)
	for i := 0; i < r.accessor.GetTupleCount(); i++ {
		if comparator.DecodeInt32(r.accessor.GetField(i, 0)) < r.min {
			continue
		}
		if err := r.appender.AppendTupleOrFlush(r.accessor, i, r.output); err != nil {
			return err
		}
	}
	return nil
}

func (r *minKeyRuntime) Fail() error {
	return r.output.Fail()
}

func (r *minKeyRuntime) Close() error {
	if err := r.appender.Flush(r.output, true); err != nil {
		return err
	}
	return r.output.Close()
}

type panickingFactory struct{}

func (f panickingFactory) CreatePushRuntime(output dflow.FrameWriter) (dflow.FrameWriter, error) {
	panic(fmt.Errorf("cannot create runtime"))
}

func (f panickingFactory) String() string {
	return "panicking"
}

func createTestSpecification(t *testing.T) *Specification {
	spec, err := CreateSpecification()
	require.Nil(t, err)
	return spec
}

func TestConnect(t *testing.T) {
	spec := createTestSpecification(t)
	require.NotEqual(t, spec.ID(), "")
	scan := CreateGenericOperatorDescriptor(spec, "scan", 0, dftest.IntRecordDescriptor)
	join := CreateGenericOperatorDescriptor(spec, "join", 2, dftest.IntRecordDescriptor)
	other := CreateGenericOperatorDescriptor(spec, "scan", 0, dftest.IntRecordDescriptor)
	left := CreateOneToOneConnectorDescriptor(spec)
	right := CreateMToNReplicatingConnectorDescriptor(spec)
	// connect out of order
	spec.Connect(right, other, 0, join, 1)
	spec.Connect(left, scan, 0, join, 0)
	spec.AddRoot(join)
	spec.AddRoot(join)

	require.Equal(t, len(spec.Operators()), 3)
	require.Equal(t, spec.Operator(1), dflow.OperatorDescriptor(join))
	require.Nil(t, spec.Operator(3))
	require.Equal(t, spec.GetOperatorInputs(join.ID()), []dflow.ConnectorDescriptor{left, right})
	require.Equal(t, spec.GetOperatorOutputs(scan.ID()), []dflow.ConnectorDescriptor{left})
	require.Equal(t, len(spec.GetOperatorInputs(scan.ID())), 0)
	require.Equal(t, spec.Roots(), []dflow.OperatorID{join.ID()})
	ends := spec.GetConnectorEndpoints(right.ID())
	require.Equal(t, ends.Producer, dflow.OperatorDescriptor(other))
	require.Equal(t, ends.ConsumerPort, 1)
	require.True(t, strings.Contains(spec.String(), "m-to-n-replicating#1: 2:0 -> 1:1"))
}

func TestSetPartitionConstraintOnce(t *testing.T) {
	spec := createTestSpecification(t)
	op := CreateIdentityOperatorDescriptor(spec, dftest.IntRecordDescriptor)
	require.Nil(t, spec.GetPartitionConstraint(op.ID()))
	require.Nil(t, spec.SetPartitionConstraint(op, dflow.CreateCountPartitionConstraint(2)))
	err := spec.SetPartitionConstraint(op, dflow.CreateCountPartitionConstraint(3))
	_, ok := err.(errors.ConstraintAlreadySetError)
	require.True(t, ok)
	require.Equal(t, spec.GetPartitionConstraint(op.ID()).Cardinality(), 2)
}

func TestResolveConnectorPolicies(t *testing.T) {
	spec := createTestSpecification(t)
	scan := CreateGenericOperatorDescriptor(spec, "scan", 0, dftest.IntRecordDescriptor)
	sorter := CreateIdentityOperatorDescriptor(spec, dftest.IntRecordDescriptor)
	sink := CreateIdentityOperatorDescriptor(spec, dftest.IntRecordDescriptor)
	tpcf := partition.CreateFieldHashPartitionComputerFactory([]int{0}, []dflow.BinaryHashFunctionFactory{comparator.XXHashBinaryHashFunctionFactory{}})
	merging := CreateMToNPartitioningMergingConnectorDescriptor(spec, tpcf, []int{0}, []dflow.BinaryComparatorFactory{comparator.Int32BinaryComparatorFactory{}})
	oneToOne := CreateOneToOneConnectorDescriptor(spec)
	spec.Connect(merging, scan, 0, sorter, 0)
	spec.Connect(oneToOne, sorter, 0, sink, 0)
	spec.AddRoot(sink)

	// constraints are required
	_, err := spec.ResolveConnectorPolicies()
	require.NotNil(t, err)

	require.Nil(t, spec.SetPartitionConstraint(scan, dflow.CreateAbsolutePartitionConstraint("a", "b", "c")))
	require.Nil(t, spec.SetPartitionConstraint(sorter, dflow.CreateCountPartitionConstraint(2)))
	require.Nil(t, spec.SetPartitionConstraint(sink, dflow.CreateCountPartitionConstraint(2)))

	policies, err := spec.ResolveConnectorPolicies()
	require.Nil(t, err)
	require.Equal(t, policies[merging.ID()], dflow.ConnectorPolicy(PipeliningConnectorPolicy{}))

	spec.SetConnectorPolicyAssignment(MergingMaterializationPolicy{})
	policies, err = spec.ResolveConnectorPolicies()
	require.Nil(t, err)
	require.True(t, policies[merging.ID()].MaterializeOnSendSide())
	require.False(t, policies[oneToOne.ID()].MaterializeOnSendSide())
	require.Equal(t, policies[oneToOne.ID()].String(), "pipelining")
}

type recordingPolicy struct {
	fanouts map[dflow.ConnectorID][]int
}

func (p *recordingPolicy) GetConnectorPolicyAssignment(c dflow.ConnectorDescriptor, nProducers int, nConsumers int, fanouts []int) dflow.ConnectorPolicy {
	p.fanouts[c.ID()] = fanouts
	return PipeliningConnectorPolicy{}
}

func TestConnectorFanouts(t *testing.T) {
	spec := createTestSpecification(t)
	a := CreateIdentityOperatorDescriptor(spec, dftest.IntRecordDescriptor)
	b := CreateIdentityOperatorDescriptor(spec, dftest.IntRecordDescriptor)
	c := CreateIdentityOperatorDescriptor(spec, dftest.IntRecordDescriptor)
	tpcf := partition.CreateFieldHashPartitionComputerFactory([]int{0}, []dflow.BinaryHashFunctionFactory{comparator.XXHashBinaryHashFunctionFactory{}})
	partitioning := CreateMToNPartitioningConnectorDescriptor(spec, tpcf)
	oneToOne := CreateOneToOneConnectorDescriptor(spec)
	spec.Connect(partitioning, a, 0, b, 0)
	spec.Connect(oneToOne, b, 0, c, 0)
	require.Nil(t, spec.SetPartitionConstraint(a, dflow.CreateCountPartitionConstraint(2)))
	require.Nil(t, spec.SetPartitionConstraint(b, dflow.CreateCountPartitionConstraint(3)))
	require.Nil(t, spec.SetPartitionConstraint(c, dflow.CreateCountPartitionConstraint(3)))
	policy := &recordingPolicy{fanouts: make(map[dflow.ConnectorID][]int)}
	spec.SetConnectorPolicyAssignment(policy)
	_, err := spec.ResolveConnectorPolicies()
	require.Nil(t, err)
	require.Equal(t, policy.fanouts[partitioning.ID()], []int{3, 3})
	require.Equal(t, policy.fanouts[oneToOne.ID()], []int{1, 1, 1})
}

func TestMetaOperatorPipeline(t *testing.T) {
	spec := createTestSpecification(t)
	op := CreateMetaOperatorDescriptor(spec, 1, 1,
		[]dflow.PushRuntimeFactory{&minKeyFactory{min: 5}, &minKeyFactory{min: 8}},
		[]*dflow.RecordDescriptor{dftest.IntRecordDescriptor, dftest.IntRecordDescriptor},
	)
	require.Equal(t, op.String(), "meta#0[min-key(5) -> min-key(8)]")
	require.Equal(t, op.OutputRecordDescriptors(), []*dflow.RecordDescriptor{dftest.IntRecordDescriptor})
	output := &dftest.CollectingFrameWriter{}
	runtime, err := op.CreatePushRuntime(output)
	require.Nil(t, err)
	require.Nil(t, runtime.Open())
	for _, f := range dftest.CreateIntRun(testFrameSize, 4, dftest.SequentialKeys(0, 1, 12)) {
		require.Nil(t, runtime.NextFrame(f))
	}
	require.Nil(t, runtime.Close())
	require.True(t, output.Opened)
	require.True(t, output.Closed)
	require.Equal(t, dftest.ReadIntKeys(output.Frames), []int32{8, 9, 10, 11})
}

func TestMetaOperatorPanic(t *testing.T) {
	spec := createTestSpecification(t)
	op := CreateMetaOperatorDescriptor(spec, 1, 1,
		[]dflow.PushRuntimeFactory{&minKeyFactory{min: 5}, panickingFactory{}},
		[]*dflow.RecordDescriptor{dftest.IntRecordDescriptor, dftest.IntRecordDescriptor},
	)
	_, err := op.CreatePushRuntime(&dftest.CollectingFrameWriter{})
	require.NotNil(t, err)
	require.True(t, strings.Contains(err.Error(), "Operator: panicking"))
	require.Panics(t, func() {
		CreateMetaOperatorDescriptor(spec, 1, 1, []dflow.PushRuntimeFactory{panickingFactory{}}, nil)
	})
}

func TestIdentityOperator(t *testing.T) {
	spec := createTestSpecification(t)
	op := CreateIdentityOperatorDescriptor(spec, dftest.IntRecordDescriptor)
	output := &dftest.CollectingFrameWriter{}
	runtime, err := op.CreatePushRuntime(output)
	require.Nil(t, err)
	require.Equal(t, runtime, dflow.FrameWriter(output))
	require.Equal(t, op.String(), "identity#0")
}

func TestExternalSortOperator(t *testing.T) {
	defer goleak.VerifyNone(t)
	spec := createTestSpecification(t)
	op := CreateExternalSortOperatorDescriptor(spec, &extsort.SortOptions{
		FrameSize:           testFrameSize,
		FramesLimit:         3,
		ForecastFramesLimit: 2,
		SortFields:          []int{0},
		ComparatorFactories: []dflow.BinaryComparatorFactory{comparator.Int32BinaryComparatorFactory{}},
		RecordDescriptor:    dftest.IntRecordDescriptor,
	})
	require.Equal(t, op.OutputRecordDescriptors(), []*dflow.RecordDescriptor{dftest.IntRecordDescriptor})
	keys := dftest.SequentialKeys(60, -1, 60)
	output := &dftest.CollectingFrameWriter{}
	stats, err := op.Execute(context.Background(), dftest.CreateSliceFrameReader(dftest.CreateIntRun(testFrameSize, 4, keys)), output)
	require.Nil(t, err)
	require.Equal(t, dftest.ReadIntKeys(output.Frames), dftest.SequentialKeys(1, 1, 60))
	require.True(t, stats.GetNumRunsGenerated() > 1)
}
