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

// Package infra holds the logical query graph: the resolved, external
// input this module's compiler consumes (§3 Data Model, "QueryGraph").
// Nothing here executes; it is a plain recursive data structure handed
// in by the parser/logical-optimizer stage the rest of the engine owns.
package infra

// Duplicates names the five duplicate-row policies a SPARQL SELECT can
// request.
type Duplicates int

const (
	AllDuplicates Duplicates = iota
	CountDuplicates
	ReducedDuplicates
	NoDuplicates
	ShowDuplicates
)

// Term is one triple-pattern position: either a compile-time constant
// dictionary id, or a variable id to be bound at run time.
type Term struct {
	IsConstant bool
	Value      uint64
}

// Node is a single triple pattern in a basic graph pattern.
type Node struct {
	Subject, Predicate, Object Term
}

// TableFunction is a BIND or extension-function call: it consumes Args
// (already-bound upstream terms) and produces one fresh variable per
// entry in Output.
type TableFunction struct {
	Name   string
	Args   []Term
	Output []uint64
}

// ValuesNode is a literal VALUES clause: Vars names the columns, Rows is
// the flat row buffer (each row has len(Vars) entries; a row's Bound is
// true for a bound cell, false for UNDEF).
type ValuesNode struct {
	Vars []uint64
	Rows []ValuesRow
}

// ValuesRow is one VALUES row; a cell with Bound == false means UNDEF
// for that column in this row.
type ValuesRow struct {
	Cells []uint64
	Bound []bool
}

// OrderKey is one ORDER BY position.
type OrderKey struct {
	Var        uint64
	Descending bool
}

// Assignment is a global BIND: Var := Expr, evaluated once per row at
// the scope it is declared in.
type Assignment struct {
	Var  uint64
	Expr FilterExpr
}

// AggregateFunc enumerates the SPARQL aggregate functions this compiler
// recognizes (§4.G, §4.I). GroupConcat and Sample are recognized but
// always rejected at compile time (ErrNotImplementedAggregate).
type AggregateFunc int

const (
	AggrCount AggregateFunc = iota
	AggrSum
	AggrAvg
	AggrMin
	AggrMax
	AggrGroupConcat
	AggrSample
)

// FunctCallSpec is one (function, input variable) aggregate registration
// (§3 "Aggregate state").
type FunctCallSpec struct {
	Function  AggregateFunc
	InputVar  uint64
	OutputVar uint64
}

// AggregateDescriptor is the query's full aggregate registration table,
// consulted by the Aggregate & Group-By Compiler (§4.G).
type AggregateDescriptor struct {
	Calls []FunctCallSpec
}

// QueryGraph is the recursive logical query tree (§3). A QueryGraph is
// reused, unmodified, both as the root of a query and as the body of a
// nested OPTIONAL, UNION branch, subquery or MINUS.
type QueryGraph struct {
	Nodes          []*Node
	Optional       []*QueryGraph
	Unions         [][]*QueryGraph
	TableFunctions []*TableFunction
	ValuesNodes    []*ValuesNode
	Subqueries     []*QueryGraph
	Minuses        []*QueryGraph
	Filters        []FilterExpr

	Projection  []uint64
	OrderBy     []OrderKey
	Assignments []Assignment
	Aggregate   *AggregateDescriptor
	GroupBy     []uint64
	Duplicates Duplicates
	// Limit is the LIMIT clause's row count, or -1 if the query has none.
	Limit int64
	// Offset is the OFFSET clause's row count; 0 if the query has none.
	Offset int64
}
