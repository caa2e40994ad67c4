package job

import (
	"context"
	"fmt"
	"log"

	"github.com/go-sif/dflow"
	"github.com/go-sif/dflow/extsort"
	"github.com/go-sif/dflow/internal/util"
)

// IdentityOperatorDescriptor passes every frame through unchanged
type IdentityOperatorDescriptor struct {
	id      dflow.OperatorID
	recDesc *dflow.RecordDescriptor
}

// CreateIdentityOperatorDescriptor adds an IdentityOperatorDescriptor to spec
func CreateIdentityOperatorDescriptor(spec *Specification, recDesc *dflow.RecordDescriptor) *IdentityOperatorDescriptor {
	op := &IdentityOperatorDescriptor{id: spec.nextOperatorID(), recDesc: recDesc}
	spec.addOperator(op)
	return op
}

// ID returns the ID of this operator
func (op *IdentityOperatorDescriptor) ID() dflow.OperatorID {
	return op.id
}

// InputArity returns 1
func (op *IdentityOperatorDescriptor) InputArity() int {
	return 1
}

// OutputArity returns 1
func (op *IdentityOperatorDescriptor) OutputArity() int {
	return 1
}

// OutputRecordDescriptors returns the record descriptor this operator was created with
func (op *IdentityOperatorDescriptor) OutputRecordDescriptors() []*dflow.RecordDescriptor {
	return []*dflow.RecordDescriptor{op.recDesc}
}

// CreatePushRuntime returns output itself
func (op *IdentityOperatorDescriptor) CreatePushRuntime(output dflow.FrameWriter) (dflow.FrameWriter, error) {
	return output, nil
}

func (op *IdentityOperatorDescriptor) String() string {
	return fmt.Sprintf("identity#%d", op.id)
}

// MetaOperatorDescriptor is a linear pipeline of micro operators running as a single operator
type MetaOperatorDescriptor struct {
	id          dflow.OperatorID
	inArity     int
	outArity    int
	factories   []dflow.PushRuntimeFactory
	recordDescs []*dflow.RecordDescriptor
}

// CreateMetaOperatorDescriptor adds a MetaOperatorDescriptor to spec. recordDescs[i] describes
// the output of factories[i].
func CreateMetaOperatorDescriptor(spec *Specification, inArity int, outArity int, factories []dflow.PushRuntimeFactory, recordDescs []*dflow.RecordDescriptor) *MetaOperatorDescriptor {
	if len(factories) == 0 || len(factories) != len(recordDescs) {
		log.Panicf("Meta operator requires one record descriptor per micro operator, got %d micro operators and %d record descriptors", len(factories), len(recordDescs))
	}
	op := &MetaOperatorDescriptor{
		id:          spec.nextOperatorID(),
		inArity:     inArity,
		outArity:    outArity,
		factories:   factories,
		recordDescs: recordDescs,
	}
	spec.addOperator(op)
	return op
}

// ID returns the ID of this operator
func (op *MetaOperatorDescriptor) ID() dflow.OperatorID {
	return op.id
}

// InputArity returns the number of inputs of the first micro operator
func (op *MetaOperatorDescriptor) InputArity() int {
	return op.inArity
}

// OutputArity returns the number of outputs of the last micro operator
func (op *MetaOperatorDescriptor) OutputArity() int {
	return op.outArity
}

// OutputRecordDescriptors returns the output layout of the last micro operator, once per output
func (op *MetaOperatorDescriptor) OutputRecordDescriptors() []*dflow.RecordDescriptor {
	res := make([]*dflow.RecordDescriptor, op.outArity)
	for i := range res {
		res[i] = op.recordDescs[len(op.recordDescs)-1]
	}
	return res
}

// MicroOperators returns the micro operators of this pipeline, in execution order
func (op *MetaOperatorDescriptor) MicroOperators() []dflow.PushRuntimeFactory {
	return op.factories
}

// CreatePushRuntime chains the runtimes of every micro operator, the last of which pushes into
// output. Frames pushed into the result flow through the whole pipeline.
func (op *MetaOperatorDescriptor) CreatePushRuntime(output dflow.FrameWriter) (dflow.FrameWriter, error) {
	next := output
	for i := len(op.factories) - 1; i >= 0; i-- {
		runtime, err := util.SafeCreatePushRuntime(op.factories[i], next)
		if err != nil {
			return nil, err
		}
		next = runtime
	}
	return next, nil
}

func (op *MetaOperatorDescriptor) String() string {
	res := fmt.Sprintf("meta#%d[", op.id)
	for i, f := range op.factories {
		if i > 0 {
			res += " -> "
		}
		res += f.String()
	}
	return res + "]"
}

// GenericOperatorDescriptor is an operator whose runtime is provided elsewhere, known only by name
type GenericOperatorDescriptor struct {
	id          dflow.OperatorID
	name        string
	inArity     int
	recordDescs []*dflow.RecordDescriptor
}

// CreateGenericOperatorDescriptor adds a GenericOperatorDescriptor to spec, with one output per
// record descriptor
func CreateGenericOperatorDescriptor(spec *Specification, name string, inArity int, recordDescs ...*dflow.RecordDescriptor) *GenericOperatorDescriptor {
	op := &GenericOperatorDescriptor{id: spec.nextOperatorID(), name: name, inArity: inArity, recordDescs: recordDescs}
	spec.addOperator(op)
	return op
}

// ID returns the ID of this operator
func (op *GenericOperatorDescriptor) ID() dflow.OperatorID {
	return op.id
}

// InputArity returns the number of inputs of this operator
func (op *GenericOperatorDescriptor) InputArity() int {
	return op.inArity
}

// OutputArity returns the number of outputs of this operator
func (op *GenericOperatorDescriptor) OutputArity() int {
	return len(op.recordDescs)
}

// OutputRecordDescriptors returns the layout of each output of this operator
func (op *GenericOperatorDescriptor) OutputRecordDescriptors() []*dflow.RecordDescriptor {
	return op.recordDescs
}

func (op *GenericOperatorDescriptor) String() string {
	return fmt.Sprintf("%s#%d", op.name, op.id)
}

// ExternalSortOperatorDescriptor sorts each of its partitions, spilling to disk as necessary
type ExternalSortOperatorDescriptor struct {
	id   dflow.OperatorID
	opts extsort.SortOptions
}

// CreateExternalSortOperatorDescriptor adds an ExternalSortOperatorDescriptor to spec. Each
// partition sorts with a copy of opts.
func CreateExternalSortOperatorDescriptor(spec *Specification, opts *extsort.SortOptions) *ExternalSortOperatorDescriptor {
	if opts.RecordDescriptor == nil {
		log.Panicf("External sort operator requires a record descriptor")
	}
	op := &ExternalSortOperatorDescriptor{id: spec.nextOperatorID(), opts: *opts}
	spec.addOperator(op)
	return op
}

// ID returns the ID of this operator
func (op *ExternalSortOperatorDescriptor) ID() dflow.OperatorID {
	return op.id
}

// InputArity returns 1
func (op *ExternalSortOperatorDescriptor) InputArity() int {
	return 1
}

// OutputArity returns 1
func (op *ExternalSortOperatorDescriptor) OutputArity() int {
	return 1
}

// OutputRecordDescriptors returns the layout of the tuples being sorted
func (op *ExternalSortOperatorDescriptor) OutputRecordDescriptors() []*dflow.RecordDescriptor {
	return []*dflow.RecordDescriptor{op.opts.RecordDescriptor}
}

// Execute sorts one partition of this operator's input into output
func (op *ExternalSortOperatorDescriptor) Execute(ctx context.Context, input dflow.FrameReader, output dflow.FrameWriter) (dflow.SortStatistics, error) {
	opts := op.opts
	return extsort.ExternalSort(ctx, input, output, &opts)
}

func (op *ExternalSortOperatorDescriptor) String() string {
	return fmt.Sprintf("external-sort#%d", op.id)
}
