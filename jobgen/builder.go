// Package jobgen compiles a logical operator DAG into a physical job.Specification. Chains of
// micro operators are fused into meta operators, exchanges become connectors (rerouted through
// rack representatives when they cross racks), and every operator is given a partition constraint.
package jobgen

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/go-sif/dflow"
	"github.com/go-sif/dflow/errors"
	"github.com/go-sif/dflow/job"
	"github.com/go-sif/dflow/logging"
	"github.com/go-sif/dflow/topology"
	"github.com/hashicorp/go-multierror"
)

type microOperator struct {
	factory    dflow.PushRuntimeFactory
	recDesc    *dflow.RecordDescriptor
	constraint dflow.PartitionConstraint
}

type connectorContribution struct {
	conn   dflow.ConnectorDescriptor
	target dflow.TargetConstraint
}

// Builder accumulates the contributions of a logical plan and builds the physical job from them
type Builder struct {
	opts     *BuilderOptions
	spec     *job.Specification
	rand     *rand.Rand
	built    bool
	logical  []dflow.LogicalOperator // in order of first contribution
	seen     map[dflow.LogicalOperator]int
	outEdges map[dflow.LogicalOperator][]dflow.LogicalOperator
	inEdges  map[dflow.LogicalOperator][]dflow.LogicalOperator
	// contributions
	microOps    map[dflow.LogicalOperator]*microOperator
	connectors  map[dflow.LogicalOperator]*connectorContribution
	operators   map[dflow.LogicalOperator]dflow.OperatorDescriptor
	constraints map[dflow.OperatorID]dflow.PartitionConstraint
	// results of fusion
	metaOps map[dflow.LogicalOperator]*job.MetaOperatorDescriptor
	// rack key -> machines of the cluster within that rack
	racks    map[string][]string
	rackKeys []string
}

// CreateBuilder is a factory for Builders. It fails if a cluster location is missing from the topology.
func CreateBuilder(opts *BuilderOptions) (*Builder, error) {
	ensureDefaultBuilderOptionsValues(opts)
	spec, err := job.CreateSpecification()
	if err != nil {
		return nil, err
	}
	spec.SetConnectorPolicyAssignment(opts.PolicyAssignment)
	b := &Builder{
		opts:        opts,
		spec:        spec,
		rand:        rand.New(rand.NewSource(clusterSeed(opts.ClusterLocations.Locations))),
		logical:     []dflow.LogicalOperator{},
		seen:        make(map[dflow.LogicalOperator]int),
		outEdges:    make(map[dflow.LogicalOperator][]dflow.LogicalOperator),
		inEdges:     make(map[dflow.LogicalOperator][]dflow.LogicalOperator),
		microOps:    make(map[dflow.LogicalOperator]*microOperator),
		connectors:  make(map[dflow.LogicalOperator]*connectorContribution),
		operators:   make(map[dflow.LogicalOperator]dflow.OperatorDescriptor),
		constraints: make(map[dflow.OperatorID]dflow.PartitionConstraint),
		metaOps:     make(map[dflow.LogicalOperator]*job.MetaOperatorDescriptor),
		racks:       make(map[string][]string),
	}
	if err := b.initializeRacks(); err != nil {
		return nil, err
	}
	return b, nil
}

// clusterSeed derives a deterministic random seed from the cluster's locations
func clusterSeed(locations []string) int64 {
	return int64(xxhash.Sum64String(strings.Join(locations, "\x00")))
}

func (b *Builder) initializeRacks() error {
	if b.opts.Topology == nil {
		logging.Printf(logging.DebugLevel, "No cluster topology provided, rack-aware operators are disabled")
		return nil
	}
	for _, loc := range b.opts.ClusterLocations.Locations {
		key, err := b.rackOf(loc)
		if err != nil {
			return err
		}
		if _, ok := b.racks[key]; !ok {
			b.rackKeys = append(b.rackKeys, key)
		}
		machines := b.racks[key]
		if !containsString(machines, loc) {
			b.racks[key] = append(machines, loc)
		}
	}
	sort.Strings(b.rackKeys)
	for _, key := range b.rackKeys {
		logging.Printf(logging.DebugLevel, "Rack %q holds %s", key, strings.Join(b.racks[key], ","))
	}
	return nil
}

func (b *Builder) rackOf(loc string) (string, error) {
	path, ok := b.opts.Topology.LookupNetworkTerminal(loc)
	if !ok {
		return "", errors.UnknownTerminalError{Location: loc}
	}
	return topology.RackKey(path), nil
}

func containsString(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}

// Specification returns the job being built. Contributed operators and connectors must be
// created against it.
func (b *Builder) Specification() *job.Specification {
	return b.spec
}

func (b *Builder) register(op dflow.LogicalOperator) {
	if _, ok := b.seen[op]; !ok {
		b.seen[op] = len(b.logical)
		b.logical = append(b.logical, op)
	}
}

// ContributeMicroOperator declares that op runs as a micro operator producing tuples described
// by recDesc. pc optionally constrains where the meta operator containing op runs.
func (b *Builder) ContributeMicroOperator(op dflow.LogicalOperator, runtime dflow.PushRuntimeFactory, recDesc *dflow.RecordDescriptor, pc dflow.PartitionConstraint) {
	b.register(op)
	b.microOps[op] = &microOperator{factory: runtime, recDesc: recDesc, constraint: pc}
}

// ContributeConnector declares that the exchange exchg becomes conn
func (b *Builder) ContributeConnector(exchg dflow.LogicalOperator, conn dflow.ConnectorDescriptor) {
	b.ContributeConnectorWithTargetConstraint(exchg, conn, dflow.NoTargetConstraint)
}

// ContributeConnectorWithTargetConstraint declares that the exchange exchg becomes conn, and
// that the consumer's partitions relate to the producer's as described by tc
func (b *Builder) ContributeConnectorWithTargetConstraint(exchg dflow.LogicalOperator, conn dflow.ConnectorDescriptor, tc dflow.TargetConstraint) {
	b.register(exchg)
	b.connectors[exchg] = &connectorContribution{conn: conn, target: tc}
}

// ContributeGraphEdge declares that output srcOutputIndex of src feeds input destInputIndex of dest
func (b *Builder) ContributeGraphEdge(src dflow.LogicalOperator, srcOutputIndex int, dest dflow.LogicalOperator, destInputIndex int) {
	b.register(src)
	b.register(dest)
	b.outEdges[src] = placeAt(b.outEdges[src], dest, srcOutputIndex)
	b.inEdges[dest] = placeAt(b.inEdges[dest], src, destInputIndex)
}

func placeAt(ops []dflow.LogicalOperator, op dflow.LogicalOperator, pos int) []dflow.LogicalOperator {
	for len(ops) <= pos {
		ops = append(ops, nil)
	}
	ops[pos] = op
	return ops
}

// ContributeOperator declares that op runs as the physical operator opDesc
func (b *Builder) ContributeOperator(op dflow.LogicalOperator, opDesc dflow.OperatorDescriptor) {
	b.register(op)
	b.operators[op] = opDesc
}

// ContributePartitionConstraint constrains where opDesc runs
func (b *Builder) ContributePartitionConstraint(opDesc dflow.OperatorDescriptor, pc dflow.PartitionConstraint) {
	b.constraints[opDesc.ID()] = pc
}

// BuildSpec builds the physical job for the given roots. No partial job is returned on error.
// A Builder can only build once.
func (b *Builder) BuildSpec(roots []dflow.LogicalOperator) (*job.Specification, error) {
	if b.built {
		return nil, fmt.Errorf("Job %s has already been built", b.spec.ID())
	}
	b.built = true
	b.buildMetaOperators()
	b.collectSpecifiedConstraints()
	var errs *multierror.Error
	targets, err := b.setupConnectors()
	if err != nil {
		errs = multierror.Append(errs, err)
	}
	for _, r := range roots {
		opDesc, err := b.findOperatorDescriptor(r)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		b.spec.AddRoot(opDesc)
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	if err := b.setAllPartitionConstraints(targets); err != nil {
		return nil, err
	}
	logging.Printf(logging.TraceLevel, "Built %s", b.spec)
	return b.spec, nil
}

// findOperatorDescriptor returns the physical operator op runs as
func (b *Builder) findOperatorDescriptor(op dflow.LogicalOperator) (dflow.OperatorDescriptor, error) {
	if opDesc, ok := b.operators[op]; ok {
		return opDesc, nil
	}
	if meta, ok := b.metaOps[op]; ok {
		return meta, nil
	}
	return nil, errors.MissingOperatorMappingError{Operator: fmt.Sprintf("%v", op)}
}

// singleEdge returns the only operator in ops, if there is exactly one
func singleEdge(ops []dflow.LogicalOperator) (dflow.LogicalOperator, bool) {
	if len(ops) != 1 || ops[0] == nil {
		return nil, false
	}
	return ops[0], true
}

// buildMetaOperators fuses linear chains of micro operators into meta operators
func (b *Builder) buildMetaOperators() {
	groups := createDisjointSet(len(b.logical))
	for _, op := range b.logical {
		if _, ok := b.microOps[op]; !ok {
			continue
		}
		dest, ok := singleEdge(b.outEdges[op])
		if !ok {
			continue
		}
		if _, ok := b.microOps[dest]; !ok {
			continue
		}
		if _, ok := singleEdge(b.inEdges[dest]); !ok {
			continue
		}
		groups.union(b.seen[op], b.seen[dest])
	}
	for _, op := range b.logical {
		if _, ok := b.microOps[op]; !ok {
			continue
		}
		if _, ok := b.metaOps[op]; ok {
			continue
		}
		// walk back to the head of the chain, then forward to its tail
		group := groups.find(b.seen[op])
		head := op
		for {
			prev, ok := singleEdge(b.inEdges[head])
			if !ok || b.microOps[prev] == nil || groups.find(b.seen[prev]) != group {
				break
			}
			head = prev
		}
		chain := []dflow.LogicalOperator{head}
		for {
			next, ok := singleEdge(b.outEdges[chain[len(chain)-1]])
			if !ok || b.microOps[next] == nil || groups.find(b.seen[next]) != group {
				break
			}
			chain = append(chain, next)
		}
		factories := make([]dflow.PushRuntimeFactory, len(chain))
		recDescs := make([]*dflow.RecordDescriptor, len(chain))
		for i, member := range chain {
			factories[i] = b.microOps[member].factory
			recDescs[i] = b.microOps[member].recDesc
		}
		tail := chain[len(chain)-1]
		meta := job.CreateMetaOperatorDescriptor(b.spec, len(b.inEdges[head]), len(b.outEdges[tail]), factories, recDescs)
		for _, member := range chain {
			b.metaOps[member] = meta
		}
		logging.Printf(logging.DebugLevel, "Fused %d micro operators into %s", len(chain), meta)
	}
}

// collectSpecifiedConstraints attaches the constraints of micro operators to their meta operators
func (b *Builder) collectSpecifiedConstraints() {
	for _, op := range b.logical {
		micro, ok := b.microOps[op]
		if !ok || micro.constraint == nil {
			continue
		}
		b.constraints[b.metaOps[op].ID()] = micro.constraint
	}
}

// setupConnectors connects the physical operators on both sides of every exchange, returning the
// target constraint of each connector
func (b *Builder) setupConnectors() (map[dflow.ConnectorID]dflow.TargetConstraint, error) {
	var errs *multierror.Error
	targets := make(map[dflow.ConnectorID]dflow.TargetConstraint)
	for _, exchg := range b.logical {
		contribution, ok := b.connectors[exchg]
		if !ok {
			continue
		}
		inOp, inOk := singleEdge(b.inEdges[exchg])
		outOp, outOk := singleEdge(b.outEdges[exchg])
		if !inOk || !outOk {
			errs = multierror.Append(errs, fmt.Errorf("Exchange %v must have exactly one producer and one consumer", exchg))
			continue
		}
		inOpDesc, err := b.findOperatorDescriptor(inOp)
		if err != nil {
			errs = multierror.Append(errs, err)
		}
		outOpDesc, err := b.findOperatorDescriptor(outOp)
		if err != nil {
			errs = multierror.Append(errs, err)
		}
		if inOpDesc == nil || outOpDesc == nil {
			continue
		}
		conn := contribution.conn
		producerPort := indexOf(b.outEdges[inOp], exchg)
		consumerPort := indexOf(b.inEdges[outOp], exchg)

		crossRack, err := b.crossesRacks(conn, inOpDesc, outOpDesc)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		if crossRack {
			logging.Printf(logging.DebugLevel, "Introducing rack-aware operators for connector %s", conn)
			var recDesc *dflow.RecordDescriptor
			if recDescs := inOpDesc.OutputRecordDescriptors(); producerPort < len(recDescs) {
				recDesc = recDescs[producerPort]
			}
			// sender side intermediate operator
			sender := job.CreateIdentityOperatorDescriptor(b.spec, recDesc)
			producerSide := job.CreateOneToOneConnectorDescriptor(b.spec)
			b.spec.Connect(producerSide, inOpDesc, producerPort, sender, 0)
			targets[producerSide.ID()] = dflow.RackAggSenderTargetConstraint
			// receiver side intermediate operator
			receiver := job.CreateIdentityOperatorDescriptor(b.spec, recDesc)
			b.spec.Connect(conn, sender, 0, receiver, 0)
			targets[conn.ID()] = dflow.RackAggReceiverTargetConstraint
			// receiver side intermediate operator to the consumer
			consumerSide := job.CreateOneToOneConnectorDescriptor(b.spec)
			b.spec.Connect(consumerSide, receiver, 0, outOpDesc, consumerPort)
			if contribution.target != dflow.NoTargetConstraint {
				targets[consumerSide.ID()] = contribution.target
			}
		} else {
			logging.Printf(logging.DebugLevel, "Not introducing rack-aware operators for connector %s", conn)
			b.spec.Connect(conn, inOpDesc, producerPort, outOpDesc, consumerPort)
			if contribution.target != dflow.NoTargetConstraint {
				targets[conn.ID()] = contribution.target
			}
		}
	}
	return targets, errs.ErrorOrNil()
}

func indexOf(ops []dflow.LogicalOperator, op dflow.LogicalOperator) int {
	for i, o := range ops {
		if o == op {
			return i
		}
	}
	return -1
}

// crossesRacks returns true iff conn is a partitioning connector whose endpoints span more than
// one rack. Endpoints without an absolute constraint are assumed to span the whole cluster.
func (b *Builder) crossesRacks(conn dflow.ConnectorDescriptor, src dflow.OperatorDescriptor, dst dflow.OperatorDescriptor) (bool, error) {
	if conn.Kind() != dflow.MToNPartitioningConnectorKind || b.opts.Topology == nil {
		return false, nil
	}
	spanned := make(map[string]bool)
	for _, op := range []dflow.OperatorDescriptor{src, dst} {
		locations := b.opts.ClusterLocations.Locations
		if abs, ok := b.constraints[op.ID()].(*dflow.AbsolutePartitionConstraint); ok {
			locations = abs.Locations
		}
		for _, loc := range locations {
			key, err := b.rackOf(loc)
			if err != nil {
				return false, err
			}
			spanned[key] = true
		}
	}
	return len(spanned) > 1, nil
}

// setAllPartitionConstraints resolves the partition constraint of every operator reachable from
// the roots
func (b *Builder) setAllPartitionConstraints(targets map[dflow.ConnectorID]dflow.TargetConstraint) error {
	ids := make([]int, 0, len(b.constraints))
	for id := range b.constraints {
		ids = append(ids, int(id))
	}
	sort.Ints(ids)
	for _, id := range ids {
		op := b.spec.Operator(dflow.OperatorID(id))
		if op == nil {
			return fmt.Errorf("Partition constraint contributed for unknown operator %d", id)
		}
		if err := b.spec.SetPartitionConstraint(op, b.constraints[op.ID()]); err != nil {
			return err
		}
	}
	visited := make(map[dflow.OperatorID]bool)
	for _, root := range b.spec.Roots() {
		if err := b.setPartitionConstraintsDFS(root, targets, nil, visited); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) setPartitionConstraintsDFS(id dflow.OperatorID, targets map[dflow.ConnectorID]dflow.TargetConstraint, parent dflow.OperatorDescriptor, visited map[dflow.OperatorID]bool) error {
	if visited[id] {
		return nil
	}
	visited[id] = true
	op := b.spec.Operator(id)
	inputs := b.spec.GetOperatorInputs(id)
	var opConstraint dflow.PartitionConstraint
	for _, conn := range inputs {
		if conn == nil {
			continue
		}
		src := b.spec.GetConnectorEndpoints(conn.ID()).Producer
		if err := b.setPartitionConstraintsDFS(src.ID(), targets, op, visited); err != nil {
			return err
		}
		switch targets[conn.ID()] {
		case dflow.OneTargetConstraint:
			opConstraint = dflow.CreateCountPartitionConstraint(1)
		case dflow.SameCountTargetConstraint:
			opConstraint = b.spec.GetPartitionConstraint(src.ID())
		case dflow.RackAggSenderTargetConstraint:
			pc, err := b.mediatorConstraint(src, b.spec.GetPartitionConstraint(src.ID()))
			if err != nil {
				return err
			}
			opConstraint = pc
		case dflow.RackAggReceiverTargetConstraint:
			pc, err := b.mediatorConstraint(op, b.opts.ClusterLocations)
			if err != nil {
				return err
			}
			opConstraint = pc
		}
	}
	if b.spec.GetPartitionConstraint(id) != nil {
		return nil
	}
	if opConstraint == nil && len(inputs) == 0 && parent != nil {
		opConstraint = b.spec.GetPartitionConstraint(parent.ID())
	}
	if opConstraint == nil {
		opConstraint = b.opts.ClusterLocations
	}
	logging.Printf(logging.TraceLevel, "Operator %s runs at %s", op, opConstraint)
	return b.spec.SetPartitionConstraint(op, opConstraint)
}

// mediatorConstraint places one partition per location of induced on a representative of that
// location's rack. Representatives are drawn from a shuffle of each rack's machines and used
// round-robin.
func (b *Builder) mediatorConstraint(op dflow.OperatorDescriptor, induced dflow.PartitionConstraint) (dflow.PartitionConstraint, error) {
	abs, ok := induced.(*dflow.AbsolutePartitionConstraint)
	if !ok {
		return nil, errors.CountConstraintError{Operator: op.String()}
	}
	centers := make(map[string][]string, len(b.racks))
	rotation := make(map[string]int, len(b.racks))
	for _, key := range b.rackKeys {
		machines := make([]string, len(b.racks[key]))
		copy(machines, b.racks[key])
		b.rand.Shuffle(len(machines), func(i, j int) {
			machines[i], machines[j] = machines[j], machines[i]
		})
		if len(machines) > b.opts.RackRepresentatives {
			machines = machines[:b.opts.RackRepresentatives]
		}
		centers[key] = machines
		logging.Printf(logging.TraceLevel, "Rack %q is represented by %s", key, strings.Join(machines, ","))
	}
	locations := make([]string, len(abs.Locations))
	for i, loc := range abs.Locations {
		key, err := b.rackOf(loc)
		if err != nil {
			return nil, err
		}
		rackCenters, ok := centers[key]
		if !ok {
			// the rack holds no cluster machine to relay through
			return nil, errors.UnknownTerminalError{Location: loc}
		}
		locations[i] = rackCenters[rotation[key]]
		rotation[key] = (rotation[key] + 1) % len(rackCenters)
	}
	return dflow.CreateAbsolutePartitionConstraint(locations...), nil
}
