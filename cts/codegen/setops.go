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
	"github.com/WDPS-Team/trident/cts/plangen"
	"github.com/WDPS-Team/trident/rts"
	"github.com/WDPS-Team/trident/rts/operator"
)

// buildUnion implements the Set-Operation Builder's Union/MergeUnion half
// (§4.E.1-2). The union variable set is the union of every branch's
// variables; each variable gets one canonical output register, sourced
// from whichever branch first binds it, with every branch's matching
// register wired as an arm so either side can feed the same output slot.
func buildUnion(rt *rts.Runtime, slotMap SlotMap, plan *plangen.Plan, b Bindings, projection map[uint64]bool, translatePlanFn translateFunc) (rts.Operator, Bindings, error) {
	leftOp, leftB, err := translatePlanFn(rt, slotMap, plan.Left, b, projection)
	if err != nil {
		return nil, b, err
	}
	rightOp, rightB, err := translatePlanFn(rt, slotMap, plan.Right, b, projection)
	if err != nil {
		return nil, b, err
	}

	unionVars := sortedVars(unionVarSet(varsOfBound(leftB), varsOfBound(rightB)))
	out := b.clone()
	arms := make([]operator.UnionArm, 0, len(unionVars))
	for _, v := range unionVars {
		lr, lok := leftB.Lookup(v)
		rr, rok := rightB.Lookup(v)
		var canonical *rts.Register
		switch {
		case lok:
			canonical = lr
		case rok:
			canonical = rr
		default:
			continue
		}
		if !lok {
			lr = FallbackRegister(rt)
		}
		if !rok {
			rr = FallbackRegister(rt)
		}
		out.bind(v, canonical)
		arms = append(arms, operator.UnionArm{Left: lr, Right: rr, Out: canonical})
	}

	log().WithField("plan_op", plan.Op.String()).WithField("union_vars", unionVars).Debug("union built")

	switch plan.Op {
	case plangen.OpUnion:
		return operator.NewUnion(leftOp, rightOp, arms, plan.Cardinality), out, nil
	case plangen.OpMergeUnion:
		if len(unionVars) == 0 {
			return nil, b, rts.ErrInvariantViolation.New("merge union requires at least one shared variable")
		}
		key := uint64(plan.OpArg)
		leftKey, lok := leftB.Lookup(key)
		rightKey, rok := rightB.Lookup(key)
		if !lok || !rok {
			return nil, b, rts.ErrInvariantViolation.New("merge union key unbound on a branch")
		}
		return operator.NewMergeUnion(leftOp, rightOp, leftKey, rightKey, arms, plan.Cardinality), out, nil
	default:
		return nil, b, rts.ErrInvariantViolation.New("buildUnion called on a non-union op")
	}
}

// buildMinus implements the Set-Operation Builder's Minus half (§4.E.3):
// commonVars is vars(left) ∩ vars(right), the two sides' registers for
// those variables are paired up as SharedLeft/SharedRight, and the right
// subplan's own bindings are discarded — MINUS exposes none of the right
// side's variables to its parent.
func buildMinus(rt *rts.Runtime, slotMap SlotMap, plan *plangen.Plan, b Bindings, projection map[uint64]bool, translatePlanFn translateFunc) (rts.Operator, Bindings, error) {
	if plan.Right == nil {
		return nil, b, rts.ErrUnsupported.New("MINUS without a right subplan")
	}
	leftVars := collectVars(plan.Left, b.Context)
	rightVars := collectVars(plan.Right, b.Context)
	commonVars := sortedVars(intersectVars(leftVars, rightVars))

	leftOp, leftB, err := translatePlanFn(rt, slotMap, plan.Left, b, unionVarSet(projection, varSet(commonVars)))
	if err != nil {
		return nil, b, err
	}
	rightOp, rightB, err := translatePlanFn(rt, slotMap, plan.Right, b, varSet(commonVars))
	if err != nil {
		return nil, b, err
	}

	var sharedLeft, sharedRight []*rts.Register
	for _, v := range commonVars {
		lr, lok := leftB.Lookup(v)
		rr, rok := rightB.Lookup(v)
		if !lok || !rok {
			continue
		}
		sharedLeft = append(sharedLeft, lr)
		sharedRight = append(sharedRight, rr)
	}

	log().WithField("common_vars", commonVars).Debug("minus built")
	return operator.NewSetMinus(leftOp, rightOp, sharedLeft, sharedRight, plan.Cardinality), leftB, nil
}

func varsOfBound(b Bindings) map[uint64]bool {
	out := make(map[uint64]bool, len(b.Bound))
	for v := range b.Bound {
		out[v] = true
	}
	return out
}
