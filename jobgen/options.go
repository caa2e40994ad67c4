package jobgen

import (
	"log"

	"github.com/go-sif/dflow"
	"github.com/go-sif/dflow/job"
)

// BuilderOptions configures a Builder
type BuilderOptions struct {
	ClusterLocations    *dflow.AbsolutePartitionConstraint    // every location of the cluster. Required
	Topology            dflow.ClusterTopology                 // the network layout of the cluster. Rack-aware operators are only introduced if provided
	PolicyAssignment    dflow.ConnectorPolicyAssignmentPolicy // decides how frames cross each connector. Defaults to job.MergingMaterializationPolicy
	RackRepresentatives int                                   // the maximum number of machines per rack which relay traffic between racks. Defaults to 8
}

func ensureDefaultBuilderOptionsValues(opts *BuilderOptions) {
	if opts.ClusterLocations == nil || len(opts.ClusterLocations.Locations) == 0 {
		log.Panicf("BuilderOptions.ClusterLocations must list at least one location")
	}
	if opts.PolicyAssignment == nil {
		opts.PolicyAssignment = job.MergingMaterializationPolicy{}
	}
	if opts.RackRepresentatives == 0 {
		opts.RackRepresentatives = 8
	}
	if opts.RackRepresentatives < 0 {
		log.Panicf("BuilderOptions.RackRepresentatives %d must be positive", opts.RackRepresentatives)
	}
}
