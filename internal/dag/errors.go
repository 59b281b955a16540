// Package dag builds the sub-DAG reachable from a set of parent message
// IDs and linearizes it deterministically for feeding to a model adapter.
package dag

import "errors"

var (
	// ErrEmptyParents is returned by BuildHistory when called with no
	// parent IDs. Callers should treat this as "first question, no
	// history" rather than a fatal error.
	ErrEmptyParents = errors.New("dag: empty parent set")

	// ErrInvalidDag is returned when the topological sort cannot emit
	// every node in the sub-DAG — either a cycle, or more than one
	// (or zero) nodes with no in-DAG parent.
	ErrInvalidDag = errors.New("dag: invalid conversation graph")
)
