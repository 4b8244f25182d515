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

// Package plangen holds the Plan tree: the resolved physical plan the
// logical optimizer hands this module (§3 Data Model, "Plan", external
// input). Like infra.QueryGraph, nothing here executes; Op plus OpArg
// select which of the back-pointer fields below is meaningful, matching
// the original's tagged-pointer-with-downcast node shape (§9 Design
// Notes) expressed as one struct with typed, op-specific fields instead
// of untyped pointers.
package plangen

import "github.com/WDPS-Team/trident/cts/infra"
import "github.com/WDPS-Team/trident/rts"

// Op names a physical plan node kind (§2 component table, §3 Plan).
type Op int

const (
	OpIndexScan Op = iota
	OpAggregatedIndexScan
	OpFullyAggregatedIndexScan
	OpNestedLoopJoin
	OpMergeJoin
	OpHashJoin
	OpCartProd
	OpHashGroupify
	OpFilter
	OpUnion
	OpMergeUnion
	OpTableFunction
	OpSingleton
	OpSubselect
	OpMinus
	OpValuesScan
	OpGroupBy
	OpHaving
	OpAggregates
)

func (o Op) String() string {
	switch o {
	case OpIndexScan:
		return "IndexScan"
	case OpAggregatedIndexScan:
		return "AggregatedIndexScan"
	case OpFullyAggregatedIndexScan:
		return "FullyAggregatedIndexScan"
	case OpNestedLoopJoin:
		return "NestedLoopJoin"
	case OpMergeJoin:
		return "MergeJoin"
	case OpHashJoin:
		return "HashJoin"
	case OpCartProd:
		return "CartProd"
	case OpHashGroupify:
		return "HashGroupify"
	case OpFilter:
		return "Filter"
	case OpUnion:
		return "Union"
	case OpMergeUnion:
		return "MergeUnion"
	case OpTableFunction:
		return "TableFunction"
	case OpSingleton:
		return "Singleton"
	case OpSubselect:
		return "Subselect"
	case OpMinus:
		return "Minus"
	case OpValuesScan:
		return "ValuesScan"
	case OpGroupBy:
		return "GroupBy"
	case OpHaving:
		return "Having"
	case OpAggregates:
		return "Aggregates"
	default:
		return "?"
	}
}

// Plan is one node of the physical plan tree.
type Plan struct {
	Op          Op
	Cardinality uint64
	Cost        float64
	Optional    bool

	// OpArg's meaning depends on Op: rts.IndexOrder for the three scan
	// ops, the primary join variable id for MergeJoin, 1 for a distinct
	// GroupBy (0 otherwise).
	OpArg int64

	Left, Right *Plan

	// Back-pointers into the query graph; populated only for the Op that
	// needs them.
	ScanNode      *infra.Node
	TableFunction *infra.TableFunction
	ValuesNode    *infra.ValuesNode
	Subquery      *infra.QueryGraph
	Filter        infra.FilterExpr

	// GroupKeys names the group-by variables for an OpGroupBy node.
	GroupKeys []uint64
	// Aggregate is the registration table an OpAggregates node's
	// AggrFunctions is built against.
	Aggregate *infra.AggregateDescriptor
}

// IndexOrder reads OpArg as an rts.IndexOrder, valid for the three scan
// ops.
func (p *Plan) IndexOrder() rts.IndexOrder { return rts.IndexOrder(p.OpArg) }

// Distinct reads OpArg as the GroupBy distinct flag.
func (p *Plan) Distinct() bool { return p.OpArg != 0 }
