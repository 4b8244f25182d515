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

// Package codegen is the query compiler itself (components A-H):
// slot allocation, the binding environment, the scan/join/set-op/filter/
// aggregate builders and the top-level Translate entry points, grounded
// on original_source/rdf3x/src/cts/CodeGen.cpp.
package codegen

import (
	"github.com/mitchellh/hashstructure"
	"github.com/sirupsen/logrus"

	"github.com/WDPS-Team/trident/cts/infra"
)

// SlotMap maps query-graph elements to the base register slot the
// allocator reserved for them (§4.A).
type SlotMap struct {
	NodeBase         map[*infra.Node]int
	TableFunctionOut map[*infra.TableFunction][]int
	ValuesNodeSlots  map[*infra.ValuesNode][]int
	AggregateOut     map[uint64]int
}

// DomainClasses maps a variable id to every slot bound to it anywhere in
// the query (§3 "Slot classes").
type DomainClasses map[uint64][]int

type allocator struct {
	next    int
	slots   SlotMap
	classes DomainClasses
}

// Allocate walks q in the fixed pre-order §4.A specifies and reserves a
// slot range for every triple pattern, table-function output, VALUES
// column and aggregate output. total is the high-water mark plus one
// spare slot reserved for subquery projection fall-through.
func Allocate(q *infra.QueryGraph) (SlotMap, DomainClasses, int) {
	a := &allocator{
		slots: SlotMap{
			NodeBase:         map[*infra.Node]int{},
			TableFunctionOut: map[*infra.TableFunction][]int{},
			ValuesNodeSlots:  map[*infra.ValuesNode][]int{},
			AggregateOut:     map[uint64]int{},
		},
		classes: DomainClasses{},
	}
	a.walk(q)
	total := a.next + 1

	if entry := log(); entry.Logger.IsLevelEnabled(logrus.DebugLevel) {
		for v, slots := range a.classes {
			if len(slots) < 2 {
				continue
			}
			h, err := hashstructure.Hash(slots, nil)
			if err != nil {
				continue
			}
			entry.WithFields(logrus.Fields{"variable": v, "slots": slots, "hash": h}).Debug("domain class")
		}
	}
	return a.slots, a.classes, total
}

func (a *allocator) reserve(n int) int {
	base := a.next
	a.next += n
	return base
}

func (a *allocator) addClass(v uint64, slot int) {
	a.classes[v] = append(a.classes[v], slot)
}

func (a *allocator) walk(q *infra.QueryGraph) {
	if q == nil {
		return
	}
	for _, n := range q.Nodes {
		base := a.reserve(3)
		a.slots.NodeBase[n] = base
		if !n.Subject.IsConstant {
			a.addClass(n.Subject.Value, base+0)
		}
		if !n.Predicate.IsConstant {
			a.addClass(n.Predicate.Value, base+1)
		}
		if !n.Object.IsConstant {
			a.addClass(n.Object.Value, base+2)
		}
	}
	for _, opt := range q.Optional {
		a.walk(opt)
	}
	for _, branch := range q.Unions {
		for _, g := range branch {
			a.walk(g)
		}
	}
	for _, tf := range q.TableFunctions {
		slots := make([]int, len(tf.Output))
		for i, v := range tf.Output {
			s := a.reserve(1)
			slots[i] = s
			a.addClass(v, s)
		}
		a.slots.TableFunctionOut[tf] = slots
	}
	for _, sub := range q.Subqueries {
		a.walk(sub)
	}
	for _, m := range q.Minuses {
		a.walk(m)
	}
	for _, vn := range q.ValuesNodes {
		slots := make([]int, len(vn.Vars))
		for i, v := range vn.Vars {
			s := a.reserve(1)
			slots[i] = s
			a.addClass(v, s)
		}
		a.slots.ValuesNodeSlots[vn] = slots
	}
	for _, f := range q.Filters {
		a.walkFilterSubqueries(f)
	}
	for _, asg := range q.Assignments {
		a.walkFilterSubqueries(asg.Expr)
	}
	if q.Aggregate != nil {
		for _, c := range q.Aggregate.Calls {
			if _, ok := a.slots.AggregateOut[c.OutputVar]; ok {
				continue
			}
			s := a.reserve(1)
			a.slots.AggregateOut[c.OutputVar] = s
			a.addClass(c.OutputVar, s)
		}
	}
}

// walkFilterSubqueries finds every NOT EXISTS nested anywhere in f and
// allocates slots for its subquery/subpattern body, since those are full
// QueryGraphs that need their own triple-pattern slots.
func (a *allocator) walkFilterSubqueries(f infra.FilterExpr) {
	walkFilter(f, func(n infra.FilterExpr) {
		ne, ok := n.(infra.FNotExists)
		if !ok {
			return
		}
		a.walk(ne.Subquery)
		a.walk(ne.Subpattern)
	})
}
