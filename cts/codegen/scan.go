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

package codegen

import (
	"github.com/WDPS-Team/trident/cts/infra"
	"github.com/WDPS-Team/trident/cts/plangen"
	"github.com/WDPS-Team/trident/rts"
)

// orderColumns maps an index order to which of (subject=0, predicate=1,
// object=2) each successive scanned column represents.
func orderColumns(order rts.IndexOrder) [3]int {
	switch order {
	case rts.OrderSPO:
		return [3]int{0, 1, 2}
	case rts.OrderSOP:
		return [3]int{0, 2, 1}
	case rts.OrderPSO:
		return [3]int{1, 0, 2}
	case rts.OrderPOS:
		return [3]int{1, 2, 0}
	case rts.OrderOSP:
		return [3]int{2, 0, 1}
	case rts.OrderOPS:
		return [3]int{2, 1, 0}
	default:
		return [3]int{0, 1, 2}
	}
}

// buildScan implements the Scan Builder (§4.C): it resolves each
// triple-pattern position to a register — constant, reused from outer
// context, or freshly bound — and dispatches to the Database factory
// matching plan.Op, skipping positions an Aggregated/FullyAggregated
// scan leaves unmaterialized. A free position only becomes a binding a
// caller can see when projection requires the variable (CodeGen.cpp's
// resolveScanVariable gates the same way); an unprojected free variable
// still gets a register to scan over, it just never leaks into the
// Bindings a sibling or ancestor could pick up.
func buildScan(rt *rts.Runtime, slotMap SlotMap, plan *plangen.Plan, b Bindings, projection map[uint64]bool) (rts.Operator, Bindings, error) {
	node := plan.ScanNode
	base, ok := slotMap.NodeBase[node]
	if !ok {
		return nil, b, rts.ErrInvariantViolation.New("scan node missing from slot map")
	}
	order := plan.IndexOrder()
	cols := orderColumns(order)

	var unused [3]bool
	switch plan.Op {
	case plangen.OpAggregatedIndexScan:
		unused[cols[2]] = true
	case plangen.OpFullyAggregatedIndexScan:
		unused[cols[1]] = true
		unused[cols[2]] = true
	}

	terms := [3]infra.Term{node.Subject, node.Predicate, node.Object}
	var bounds [3]rts.ScanBound
	out := b.clone()

	for i := 0; i < 3; i++ {
		if unused[i] {
			continue
		}
		term := terms[i]
		slot := base + i
		switch {
		case term.IsConstant:
			reg := rt.GetRegister(slot)
			reg.Value, reg.Null = term.Value, false
			bounds[i] = rts.ScanBound{Const: true, Reg: reg}
		default:
			if ctxReg, ok := b.Context[term.Value]; ok {
				bounds[i] = rts.ScanBound{Const: true, Reg: ctxReg}
				continue
			}
			reg := rt.GetRegister(slot)
			reg.Null = false
			if projection[term.Value] {
				out.bind(term.Value, reg)
			}
			bounds[i] = rts.ScanBound{Reg: reg}
		}
	}

	db := rt.Database()
	var (
		op  rts.Operator
		err error
	)
	switch plan.Op {
	case plangen.OpIndexScan:
		op, err = db.NewIndexScan(order, bounds[0], bounds[1], bounds[2], plan.Cardinality)
	case plangen.OpAggregatedIndexScan:
		op, err = db.NewAggregatedIndexScan(order, bounds[0], bounds[1], bounds[2], plan.Cardinality)
	case plangen.OpFullyAggregatedIndexScan:
		op, err = db.NewFullyAggregatedIndexScan(order, bounds[0], bounds[1], bounds[2], plan.Cardinality)
	default:
		return nil, b, rts.ErrInvariantViolation.New("buildScan called on a non-scan op")
	}
	if err != nil {
		return nil, b, err
	}
	log().WithField("plan_op", plan.Op.String()).WithField("order", order.String()).Debug("scan built")
	return op, out, nil
}
