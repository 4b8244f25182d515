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
	"sort"

	"github.com/WDPS-Team/trident/cts/infra"
	"github.com/WDPS-Team/trident/cts/plangen"
	"github.com/WDPS-Team/trident/rts"
	"github.com/WDPS-Team/trident/rts/operator"
)

// collectVars gathers every non-constant variable plan produces,
// excluding anything already bound in ctx (§4.D step 1).
func collectVars(plan *plangen.Plan, ctx map[uint64]*rts.Register) map[uint64]bool {
	out := map[uint64]bool{}
	var walk func(p *plangen.Plan)
	add := func(v uint64) {
		if _, bound := ctx[v]; !bound {
			out[v] = true
		}
	}
	walk = func(p *plangen.Plan) {
		if p == nil {
			return
		}
		switch p.Op {
		case plangen.OpIndexScan, plangen.OpAggregatedIndexScan, plangen.OpFullyAggregatedIndexScan:
			n := p.ScanNode
			for _, t := range [3]infra.Term{n.Subject, n.Predicate, n.Object} {
				if !t.IsConstant {
					add(t.Value)
				}
			}
		case plangen.OpTableFunction:
			for _, v := range p.TableFunction.Output {
				add(v)
			}
			walk(p.Left)
		case plangen.OpValuesScan:
			for _, v := range p.ValuesNode.Vars {
				add(v)
			}
		case plangen.OpSubselect:
			for _, v := range p.Subquery.Projection {
				add(v)
			}
		case plangen.OpSingleton:
		default:
			walk(p.Left)
			walk(p.Right)
		}
	}
	walk(plan)
	return out
}

func intersectVars(a, b map[uint64]bool) map[uint64]bool {
	out := map[uint64]bool{}
	for v := range a {
		if b[v] {
			out[v] = true
		}
	}
	return out
}

func sortedVars(set map[uint64]bool) []uint64 {
	out := make([]uint64, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// tailRegs returns b's bound registers for vars, sorted by variable id,
// skipping any variable equal to exclude (the join's primary key,
// already carried by leftKeyReg/rightKeyReg).
func tailRegs(b Bindings, vars []uint64, exclude uint64, hasExclude bool) []*rts.Register {
	var out []*rts.Register
	for _, v := range vars {
		if hasExclude && v == exclude {
			continue
		}
		if r, ok := b.Bound[v]; ok {
			out = append(out, r)
		}
	}
	return out
}

func allTailRegs(b Bindings) []*rts.Register {
	vars := make([]uint64, 0, len(b.Bound))
	for v := range b.Bound {
		vars = append(vars, v)
	}
	sort.Slice(vars, func(i, j int) bool { return vars[i] < vars[j] })
	return tailRegs(b, vars, 0, false)
}

// positionBitset walks p looking for IndexScans that materialize v,
// OR-ing bit 0 (subject) / 1 (predicate) / 2 (object) for every
// occurrence found (§4.D.6, §12 "findScan/bitset computation").
func positionBitset(p *plangen.Plan, v uint64) int {
	if p == nil {
		return 0
	}
	switch p.Op {
	case plangen.OpIndexScan, plangen.OpAggregatedIndexScan, plangen.OpFullyAggregatedIndexScan:
		n := p.ScanNode
		bits := 0
		if !n.Subject.IsConstant && n.Subject.Value == v {
			bits |= 1 << 0
		}
		if !n.Predicate.IsConstant && n.Predicate.Value == v {
			bits |= 1 << 1
		}
		if !n.Object.IsConstant && n.Object.Value == v {
			bits |= 1 << 2
		}
		return bits
	default:
		return positionBitset(p.Left, v) | positionBitset(p.Right, v)
	}
}

// residualSelection AND-chains an equality predicate for every variable
// in vars across leftB/rightB (§4.D.4-6 "wrap in a residual selection").
func residualSelection(op rts.Operator, vars []uint64, leftB, rightB Bindings) rts.Operator {
	if len(vars) == 0 {
		return op
	}
	var pred operator.Predicate
	for _, v := range vars {
		lr, lok := leftB.Lookup(v)
		rr, rok := rightB.Lookup(v)
		if !lok || !rok {
			continue
		}
		eq := &operator.Equal{Left: &operator.Variable{Reg: lr}, Right: &operator.Variable{Reg: rr}}
		if pred == nil {
			pred = eq
		} else {
			pred = &operator.And{Left: pred, Right: eq}
		}
	}
	if pred == nil {
		return op
	}
	return operator.NewSelection(op, pred, op.ExpectedOutputCardinality())
}

// buildBinaryJoin implements the Join Builder (§4.D) for the four
// binary join kinds. translatePlanFn is the top-level dispatcher the
// builder recurses into for both children.
func buildBinaryJoin(rt *rts.Runtime, slotMap SlotMap, plan *plangen.Plan, b Bindings, projection map[uint64]bool, translatePlanFn translateFunc) (rts.Operator, Bindings, error) {
	leftVars := collectVars(plan.Left, b.Context)
	rightVars := collectVars(plan.Right, b.Context)
	joinVars := intersectVars(leftVars, rightVars)
	childProjection := unionVarSet(projection, joinVars)

	leftOp, leftB, err := translatePlanFn(rt, slotMap, plan.Left, b, childProjection)
	if err != nil {
		return nil, b, err
	}
	rightOp, rightB, err := translatePlanFn(rt, slotMap, plan.Right, b, childProjection)
	if err != nil {
		return nil, b, err
	}
	bindingsOut := mergeBindings(leftB, rightB, projection)
	joinVarList := sortedVars(joinVars)

	log().WithField("plan_op", plan.Op.String()).WithField("join_vars", joinVarList).Debug("join built")

	switch plan.Op {
	case plangen.OpNestedLoopJoin:
		joined := operator.NewNestedLoopJoin(leftOp, rightOp, plan.Cardinality)
		return residualSelection(joined, joinVarList, leftB, rightB), bindingsOut, nil

	case plangen.OpCartProd:
		cp := operator.NewCartProd(leftOp, allTailRegs(leftB), rightOp, allTailRegs(rightB), plan.Cardinality, false, plan.Optional, 0)
		return cp, bindingsOut, nil

	case plangen.OpMergeJoin:
		joinVar := uint64(plan.OpArg)
		if len(joinVars) == 0 {
			return nil, b, rts.ErrInvariantViolation.New("merge join with empty join-variable set")
		}
		if !joinVars[joinVar] {
			return nil, b, rts.ErrInvariantViolation.New("merge join key not in join-variable set")
		}
		leftKeyReg, _ := leftB.Lookup(joinVar)
		rightKeyReg, _ := rightB.Lookup(joinVar)
		leftVarList := append([]uint64{}, sortedKeys(leftB.Bound)...)
		rightVarList := append([]uint64{}, sortedKeys(rightB.Bound)...)
		mj := operator.NewMergeJoin(
			leftOp, leftKeyReg, tailRegs(leftB, leftVarList, joinVar, true),
			rightOp, rightKeyReg, tailRegs(rightB, rightVarList, joinVar, true),
			false, plan.Optional, plan.Cardinality,
		)
		residual := removeVar(joinVarList, joinVar)
		return residualSelection(mj, residual, leftB, rightB), bindingsOut, nil

	case plangen.OpHashJoin:
		if len(joinVars) == 0 {
			return nil, b, rts.ErrInvariantViolation.New("hash join with empty join-variable set")
		}
		joinVar := joinVarList[0]
		bitset := positionBitset(plan.Right, joinVar)
		leftKeyReg, _ := leftB.Lookup(joinVar)
		rightKeyReg, _ := rightB.Lookup(joinVar)
		leftVarList := append([]uint64{}, sortedKeys(leftB.Bound)...)
		rightVarList := append([]uint64{}, sortedKeys(rightB.Bound)...)
		var leftCost, rightCost float64
		if plan.Left != nil {
			leftCost = plan.Left.Cost
		}
		if plan.Right != nil {
			rightCost = plan.Right.Cost
		}
		hj := operator.NewHashJoin(
			leftOp, leftKeyReg, tailRegs(leftB, leftVarList, joinVar, true),
			rightOp, rightKeyReg, tailRegs(rightB, rightVarList, joinVar, true),
			leftCost, rightCost, plan.Cardinality, false, plan.Optional, bitset,
		)
		residual := removeVar(joinVarList, joinVar)
		return residualSelection(hj, residual, leftB, rightB), bindingsOut, nil

	default:
		return nil, b, rts.ErrInvariantViolation.New("buildBinaryJoin called on a non-join op")
	}
}

func sortedKeys(m map[uint64]*rts.Register) []uint64 {
	out := make([]uint64, 0, len(m))
	for v := range m {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func removeVar(vars []uint64, v uint64) []uint64 {
	out := make([]uint64, 0, len(vars))
	for _, x := range vars {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}
