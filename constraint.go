package dflow

import (
	"fmt"
	"strings"
)

// PartitionConstraintType distinguishes the kinds of PartitionConstraint
type PartitionConstraintType int

const (
	// AbsoluteConstraintType indicates a PartitionConstraint which lists physical locations
	AbsoluteConstraintType PartitionConstraintType = iota
	// CountConstraintType indicates a PartitionConstraint which only specifies a number of partitions
	CountConstraintType
)

// PartitionConstraint declares which physical locations (or how many) an operator must run on
type PartitionConstraint interface {
	Type() PartitionConstraintType // Type returns the kind of this PartitionConstraint
	Cardinality() int              // Cardinality returns the number of partitions this PartitionConstraint implies
	String() string
}

// AbsolutePartitionConstraint pins each partition of an operator to a named location
type AbsolutePartitionConstraint struct {
	Locations []string
}

// CreateAbsolutePartitionConstraint is a factory for AbsolutePartitionConstraints
func CreateAbsolutePartitionConstraint(locations ...string) *AbsolutePartitionConstraint {
	return &AbsolutePartitionConstraint{Locations: locations}
}

// Type returns AbsoluteConstraintType
func (c *AbsolutePartitionConstraint) Type() PartitionConstraintType {
	return AbsoluteConstraintType
}

// Cardinality returns the number of locations
func (c *AbsolutePartitionConstraint) Cardinality() int {
	return len(c.Locations)
}

func (c *AbsolutePartitionConstraint) String() string {
	return fmt.Sprintf("absolute[%s]", strings.Join(c.Locations, ","))
}

// CountPartitionConstraint only specifies a number of partitions, leaving placement to the scheduler
type CountPartitionConstraint struct {
	Count int
}

// CreateCountPartitionConstraint is a factory for CountPartitionConstraints
func CreateCountPartitionConstraint(count int) *CountPartitionConstraint {
	return &CountPartitionConstraint{Count: count}
}

// Type returns CountConstraintType
func (c *CountPartitionConstraint) Type() PartitionConstraintType {
	return CountConstraintType
}

// Cardinality returns the count
func (c *CountPartitionConstraint) Cardinality() int {
	return c.Count
}

func (c *CountPartitionConstraint) String() string {
	return fmt.Sprintf("count[%d]", c.Count)
}
