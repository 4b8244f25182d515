// Copyright 2024 The trident Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package rts

// IndexOrder names one of the six subject/predicate/object permutations a
// triple-store index can be scanned in.
type IndexOrder int

const (
	OrderSPO IndexOrder = iota
	OrderSOP
	OrderPSO
	OrderPOS
	OrderOSP
	OrderOPS
)

func (o IndexOrder) String() string {
	switch o {
	case OrderSPO:
		return "SPO"
	case OrderSOP:
		return "SOP"
	case OrderPSO:
		return "PSO"
	case OrderPOS:
		return "POS"
	case OrderOSP:
		return "OSP"
	case OrderOPS:
		return "OPS"
	default:
		return "?"
	}
}

// ScanBound describes how one triple position (subject, predicate or
// object) is resolved for a scan: either pre-loaded with a constant
// dictionary id, bound into a register the scan writes into, or left
// unused entirely (aggregated/fully-aggregated scans skip some
// positions depending on the index order).
type ScanBound struct {
	// Const is true when this position is a query constant; Reg already
	// holds the constant's dictionary id and the scan should filter on it
	// rather than write to it.
	Const bool
	// Reg is nil when the position is unused by this scan variant.
	Reg *Register
}

// Database is the triple-store collaborator the scan builder (§4.C)
// targets. It is external to this module (§1 Out of scope); this package
// only consumes it. The store package provides fixtures implementing it
// for tests.
type Database interface {
	// NewIndexScan returns an operator enumerating every matching triple
	// in the given index order.
	NewIndexScan(order IndexOrder, subject, predicate, object ScanBound, cardinality uint64) (Operator, error)
	// NewAggregatedIndexScan returns an operator enumerating distinct
	// prefixes of the given index order (the last unused position(s) are
	// collapsed).
	NewAggregatedIndexScan(order IndexOrder, subject, predicate, object ScanBound, cardinality uint64) (Operator, error)
	// NewFullyAggregatedIndexScan returns an operator enumerating the
	// distinct values of only the first materialized position.
	NewFullyAggregatedIndexScan(order IndexOrder, subject, predicate, object ScanBound, cardinality uint64) (Operator, error)
}

// Operator is the Volcano-style pull interface every compiled physical
// operator implements (§5, Design Notes "Iterator/pull operators").
// Next reports whether another tuple was produced; on true, every bound
// register the operator owns has been updated in place.
type Operator interface {
	Open() error
	Next() (bool, error)
	Close() error
	// ExpectedOutputCardinality is the plan's cardinality estimate carried
	// through unchanged; consumers use it only as a size hint (e.g. for
	// pre-sizing a hash table), never for correctness.
	ExpectedOutputCardinality() uint64
}
