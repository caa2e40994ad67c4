// Package dflow contains the core components of dflow, a partitioned, push-based dataflow engine.
// This root package defines the collaborator interfaces shared by every other package: frames and the
// readers/writers which move them, tuple accessors and binary comparators, partition constraints,
// operator and connector descriptors, and cluster topologies. It is an excellent overview of dflow's
// key concepts.
package dflow
