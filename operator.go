package dflow

// OperatorID identifies an OperatorDescriptor within a job
type OperatorID int

// OperatorDescriptor describes a node of a physical job graph
type OperatorDescriptor interface {
	ID() OperatorID                               // ID returns the ID of this operator within its job
	InputArity() int                              // InputArity returns the number of inputs of this operator
	OutputArity() int                             // OutputArity returns the number of outputs of this operator
	OutputRecordDescriptors() []*RecordDescriptor // OutputRecordDescriptors returns the layout of each output of this operator
	String() string
}

// LogicalOperator is a node of a logical plan, as handed to the job builder. Implementations
// must be comparable (typically pointers), as they are used as map keys.
type LogicalOperator interface {
	String() string
}

// PushRuntimeFactory produces the runtime of a micro operator: a FrameWriter which
// transforms the frames pushed into it and pushes the results into output.
type PushRuntimeFactory interface {
	CreatePushRuntime(output FrameWriter) (FrameWriter, error)
	String() string
}
