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
	"context"

	uuid "github.com/satori/go.uuid"

	"github.com/WDPS-Team/trident/cts/infra"
	"github.com/WDPS-Team/trident/cts/plangen"
	"github.com/WDPS-Team/trident/rts"
	"github.com/WDPS-Team/trident/rts/operator"
	"github.com/WDPS-Team/trident/sparql"
)

// translatePlan is the top-level dispatcher every builder recurses
// through (translateFunc's concrete implementation). It switches on
// plan.Op and delegates to the per-kind builder; trimming bindings the
// projection set does not require is left to the builders themselves
// (translateFilter and translateAggregates).
func translatePlan(rt *rts.Runtime, slotMap SlotMap, plan *plangen.Plan, b Bindings, projection map[uint64]bool) (rts.Operator, Bindings, error) {
	if plan == nil {
		return nil, b, nil
	}

	switch plan.Op {
	case plangen.OpIndexScan, plangen.OpAggregatedIndexScan, plangen.OpFullyAggregatedIndexScan:
		return buildScan(rt, slotMap, plan, b, projection)

	case plangen.OpNestedLoopJoin, plangen.OpMergeJoin, plangen.OpHashJoin, plangen.OpCartProd:
		return buildBinaryJoin(rt, slotMap, plan, b, projection, translatePlan)

	case plangen.OpUnion, plangen.OpMergeUnion:
		return buildUnion(rt, slotMap, plan, b, projection, translatePlan)

	case plangen.OpMinus:
		return buildMinus(rt, slotMap, plan, b, projection, translatePlan)

	case plangen.OpFilter:
		return translateFilter(rt, slotMap, plan, b, projection)

	case plangen.OpHaving:
		return translateHaving(rt, slotMap, plan, b, projection)

	case plangen.OpGroupBy:
		return translateGroupBy(rt, slotMap, plan, b, projection)

	case plangen.OpAggregates:
		return translateAggregates(rt, slotMap, plan, b, projection)

	case plangen.OpTableFunction:
		return translateTableFunction(rt, slotMap, plan, b, projection)

	case plangen.OpValuesScan:
		return translateValuesScan(rt, slotMap, plan, b)

	case plangen.OpSubselect:
		return translateSubselect(rt, slotMap, plan, b, projection)

	case plangen.OpSingleton:
		return operator.NewSingletonScan(), b.clone(), nil

	case plangen.OpHashGroupify:
		return translateHashGroupify(rt, slotMap, plan, b, projection)

	default:
		return nil, b, rts.ErrInvariantViolation.New("unrecognized plan op: " + plan.Op.String())
	}
}

// translateFilter implements the FILTER half of component F's wiring
// (§4.F): the child compiles against a projection widened with the
// filter's free variables, then, once the predicate is folded, any
// binding introduced solely to evaluate it is dropped again.
func translateFilter(rt *rts.Runtime, slotMap SlotMap, plan *plangen.Plan, b Bindings, projection map[uint64]bool) (rts.Operator, Bindings, error) {
	childProjection := unionVarSet(projection, freeVars(plan.Filter))
	input, childB, err := translatePlan(rt, slotMap, plan.Left, b, childProjection)
	if err != nil {
		return nil, b, err
	}
	if input == nil {
		return nil, b, nil
	}
	out, err := buildSelection(rt, slotMap, input, childB, plan.Filter, plan.Cardinality, true, translatePlan)
	if err != nil {
		return nil, b, err
	}
	return out, dropUnprojected(childB, projection), nil
}

// translateHaving mirrors translateFilter but never takes the Filter
// fast path (§4.F: an aggregate output is never a cheap register
// membership test) and never trims bindings — HAVING sits directly
// under the root, where every group-by/aggregate-output var is already
// exactly what the caller wants.
func translateHaving(rt *rts.Runtime, slotMap SlotMap, plan *plangen.Plan, b Bindings, projection map[uint64]bool) (rts.Operator, Bindings, error) {
	childProjection := unionVarSet(projection, freeVars(plan.Filter))
	input, childB, err := translatePlan(rt, slotMap, plan.Left, b, childProjection)
	if err != nil {
		return nil, b, err
	}
	if input == nil {
		return nil, b, nil
	}
	out, err := buildSelection(rt, slotMap, input, childB, plan.Filter, plan.Cardinality, false, translatePlan)
	if err != nil {
		return nil, b, err
	}
	return out, childB, nil
}

// translateGroupBy implements the GroupBy half of component G (§4.G
// item 2): it compiles its child, then collects the group-by variables
// that are actually bound by the child, silently dropping any that are
// not (Open Question 3) rather than erroring — a variable that never
// appears on the left can still legally appear in GROUP BY when the
// pattern that would have bound it sits behind an OPTIONAL that failed
// to match on every row.
func translateGroupBy(rt *rts.Runtime, slotMap SlotMap, plan *plangen.Plan, b Bindings, projection map[uint64]bool) (rts.Operator, Bindings, error) {
	input, childB, err := translatePlan(rt, slotMap, plan.Left, b, unionVarSet(projection, varSet(plan.GroupKeys)))
	if err != nil {
		return nil, b, err
	}
	if input == nil {
		return nil, b, nil
	}
	var keys []*rts.Register
	for _, v := range plan.GroupKeys {
		if r, ok := childB.Lookup(v); ok {
			keys = append(keys, r)
		}
	}
	log().WithField("group_keys", plan.GroupKeys).Debug("group by built")
	return operator.NewGroupBy(input, keys, plan.Distinct(), plan.Cardinality), childB, nil
}

// translateAggregates implements the Aggregates half of component G
// (§4.G item 1): it consults the handler built from plan.Aggregate for
// (inputVars, outputVars), widens the child's projection with the
// handler's input variables so every accumulator sees its source
// register, allocates the slot-assigned output register for every
// aggregate output into the outgoing bindings, and stacks AggrFunctions
// on top of whatever GroupBy (or plain scan, for a fully-aggregated
// query with no GROUP BY) the child produced.
func translateAggregates(rt *rts.Runtime, slotMap SlotMap, plan *plangen.Plan, b Bindings, projection map[uint64]bool) (rts.Operator, Bindings, error) {
	if plan.Aggregate == nil {
		return nil, b, rts.ErrInvariantViolation.New("aggregates node without an aggregate descriptor")
	}
	handler, err := sparql.NewAggregateHandler(plan.Aggregate)
	if err != nil {
		return nil, b, err
	}

	childProjection := unionVarSet(projection, varSet(handler.InputVars()))
	input, childB, err := translatePlan(rt, slotMap, plan.Left, b, childProjection)
	if err != nil {
		return nil, b, err
	}
	if input == nil {
		return nil, b, nil
	}

	inputRegs := make(map[uint64]*rts.Register)
	for _, v := range handler.InputVars() {
		if r, ok := childB.Lookup(v); ok {
			inputRegs[v] = r
		}
	}

	out := childB.clone()
	outputRegs := make(map[uint64]*rts.Register)
	for _, v := range handler.OutputVars() {
		slot, ok := slotMap.AggregateOut[v]
		if !ok {
			return nil, b, rts.ErrInvariantViolation.New("aggregate output missing from slot map")
		}
		reg := rt.GetRegister(slot)
		outputRegs[v] = reg
		out.bind(v, reg)
	}

	var groupKeys []*rts.Register
	if gb, ok := input.(*operator.GroupBy); ok {
		groupKeys = gb.Keys
	}

	log().WithField("aggregate_outputs", handler.OutputVars()).Debug("aggregates built")
	return operator.NewAggrFunctions(input, groupKeys, handler, inputRegs, outputRegs, plan.Cardinality), dropUnprojected(out, unionVarSet(projection, varSet(handler.OutputVars()))), nil
}

// translateTableFunction implements the TableFunction plan node: Args
// resolve against whatever the child (or, for a BIND with no preceding
// pattern, a Singleton) already bound, and Output gets one freshly
// allocated register per entry, wired through the built-in registry
// (§6 "External table functions").
func translateTableFunction(rt *rts.Runtime, slotMap SlotMap, plan *plangen.Plan, b Bindings, projection map[uint64]bool) (rts.Operator, Bindings, error) {
	left := plan.Left
	if left == nil {
		left = &plangen.Plan{Op: plangen.OpSingleton, Cardinality: 1}
	}
	input, childB, err := translatePlan(rt, slotMap, left, b, projection)
	if err != nil {
		return nil, b, err
	}
	if input == nil {
		return nil, b, nil
	}

	tf := plan.TableFunction
	argRegs := make([]*rts.Register, len(tf.Args))
	for i, t := range tf.Args {
		if t.IsConstant {
			constReg := &rts.Register{}
			constReg.Value, constReg.Null = t.Value, false
			argRegs[i] = constReg
			continue
		}
		reg, ok := childB.Lookup(t.Value)
		if !ok {
			return nil, b, rts.ErrInvariantViolation.New("table function argument unbound")
		}
		argRegs[i] = reg
	}

	slots, ok := slotMap.TableFunctionOut[tf]
	if !ok {
		return nil, b, rts.ErrInvariantViolation.New("table function missing from slot map")
	}
	out := childB.clone()
	outRegs := make([]*rts.Register, len(tf.Output))
	for i, v := range tf.Output {
		reg := rt.GetRegister(slots[i])
		reg.Null = false
		out.bind(v, reg)
		outRegs[i] = reg
	}

	impl, err := sparql.NewTableFunctionImpl(tf.Name, argRegs, outRegs)
	if err != nil {
		return nil, b, err
	}
	log().WithField("table_function", tf.Name).Debug("table function built")
	return operator.NewTableFunction(input, impl, plan.Cardinality), out, nil
}

// translateValuesScan implements the ValuesScan plan node (§3
// "ValuesNode"): one register per column, sourced from the slot
// allocator, and one flat row/null pair per VALUES row.
func translateValuesScan(rt *rts.Runtime, slotMap SlotMap, plan *plangen.Plan, b Bindings) (rts.Operator, Bindings, error) {
	vn := plan.ValuesNode
	slots, ok := slotMap.ValuesNodeSlots[vn]
	if !ok {
		return nil, b, rts.ErrInvariantViolation.New("values node missing from slot map")
	}
	out := b.clone()
	regs := make([]*rts.Register, len(vn.Vars))
	for i, v := range vn.Vars {
		reg := rt.GetRegister(slots[i])
		out.bind(v, reg)
		regs[i] = reg
	}
	rows := make([][]uint64, len(vn.Rows))
	nuls := make([][]bool, len(vn.Rows))
	for i, row := range vn.Rows {
		vals := make([]uint64, len(row.Cells))
		nul := make([]bool, len(row.Bound))
		for j := range row.Cells {
			vals[j] = row.Cells[j]
			nul[j] = !row.Bound[j]
		}
		rows[i], nuls[i] = vals, nul
	}
	return operator.NewValuesScan(regs, rows, nuls), out, nil
}

// translateHashGroupify handles an explicit HashGroupify plan node
// (distinct-row dedup that the optimizer placed itself, as opposed to
// the DISTINCT root wrapping translateSubselect/Translate apply).
func translateHashGroupify(rt *rts.Runtime, slotMap SlotMap, plan *plangen.Plan, b Bindings, projection map[uint64]bool) (rts.Operator, Bindings, error) {
	input, childB, err := translatePlan(rt, slotMap, plan.Left, b, projection)
	if err != nil {
		return nil, b, err
	}
	if input == nil {
		return nil, b, nil
	}
	keys := make([]*rts.Register, 0, len(projection))
	for _, v := range sortedVars(projection) {
		if r, ok := childB.Lookup(v); ok {
			keys = append(keys, r)
		}
	}
	return operator.NewHashGroupify(input, keys, plan.Cardinality), childB, nil
}

// translateSubselect implements the Subselect half of component H
// (§4.H "Subselect"): the inner plan compiles through the same
// translator, sharing rt and slotMap but starting from a fresh,
// context-free scope, since a SPARQL subquery is not correlated against
// its enclosing query. Its projected output registers are then exposed
// to the outer scope under the inner query's own projection variable
// ids, wrapped in the inner query's own DISTINCT/LIMIT/OFFSET.
//
// If the inner translate comes back with a nil operator — the §12
// null-tree short-circuit an unsatisfiable inner plan produces — that
// nil propagates straight up through this node too, rather than being
// mistaken for an empty-but-valid result set.
func translateSubselect(rt *rts.Runtime, slotMap SlotMap, plan *plangen.Plan, b Bindings, _ map[uint64]bool) (rts.Operator, Bindings, error) {
	if plan.Left == nil {
		return nil, b, nil
	}
	inner, innerB, err := translatePlan(rt, slotMap, plan.Left, NewBindings(nil), varSet(plan.Subquery.Projection))
	if err != nil {
		return nil, b, err
	}
	if inner == nil {
		return nil, b, nil
	}

	out := b.clone()
	outRegs := make([]*rts.Register, 0, len(plan.Subquery.Projection))
	for _, v := range plan.Subquery.Projection {
		r, ok := innerB.Lookup(v)
		if !ok {
			r = FallbackRegister(rt)
		}
		out.bind(v, r)
		outRegs = append(outRegs, r)
	}

	wrapped := rts.Operator(inner)
	if plan.Subquery.Duplicates == infra.NoDuplicates || plan.Subquery.Duplicates == infra.ReducedDuplicates {
		wrapped = operator.NewHashGroupify(wrapped, outRegs, plan.Cardinality)
	}
	wrapped = operator.NewDuplLimit(wrapped, plan.Subquery.Offset, plan.Subquery.Limit, plan.Cardinality)

	log().WithField("inner_projection", plan.Subquery.Projection).Debug("subselect built")
	return wrapped, out, nil
}

// TranslateInner compiles plan's body — everything below the root's own
// DISTINCT/ORDER BY/LIMIT/OFFSET wrapping — and returns the operator
// tree alongside the output registers q.Projection names, in order. A
// nil operator with a nil error is the §12 short-circuit: the plan
// proved unsatisfiable somewhere below, and the caller (Translate)
// should produce an EmptyScan rather than treating this as an error.
func TranslateInner(rt *rts.Runtime, slotMap SlotMap, q *infra.QueryGraph, plan *plangen.Plan) (rts.Operator, []*rts.Register, error) {
	if plan == nil {
		return nil, nil, nil
	}
	op, b, err := translatePlan(rt, slotMap, plan, NewBindings(nil), varSet(q.Projection))
	if err != nil {
		return nil, nil, err
	}
	if op == nil {
		return nil, nil, nil
	}
	regs := make([]*rts.Register, 0, len(q.Projection))
	for _, v := range q.Projection {
		r, ok := b.Lookup(v)
		if !ok {
			r = FallbackRegister(rt)
		}
		regs = append(regs, r)
	}
	return op, regs, nil
}

// CollectVariables exposes the Join Builder's free-variable walk
// (§4.D step 1) for callers outside this package that need to know
// which variables a plan materializes — e.g. a caller validating that
// ORDER BY only names projected or otherwise-bound variables.
func CollectVariables(plan *plangen.Plan) map[uint64]bool {
	return collectVars(plan, nil)
}

// Translate is the top-level entry point (§4.H "Root output", §6
// "compile"): it runs TranslateInner, falls back to EmptyScan on the
// §12 null-tree short-circuit, applies ORDER BY via Sort, and finally
// wraps the whole tree in the query's DISTINCT/REDUCED handling and
// LIMIT/OFFSET before handing it to ResultsPrinter — the one type every
// caller Opens/pulls/Closes regardless of what the rest of the tree
// looks like.
func Translate(ctx context.Context, rt *rts.Runtime, slotMap SlotMap, q *infra.QueryGraph, plan *plangen.Plan) (*operator.ResultsPrinter, error) {
	compileID := uuid.NewV4()
	span, _ := startSpan(ctx, "sparql.compile")
	span.SetTag("compile_id", compileID.String())
	defer span.Finish()
	entry := log().WithField("compile_id", compileID.String())

	inner, regs, err := TranslateInner(rt, slotMap, q, plan)
	if err != nil {
		return nil, err
	}
	if inner == nil {
		return operator.NewResultsPrinter(operator.NewEmptyScan()), nil
	}

	tree := rts.Operator(inner)
	if len(q.OrderBy) > 0 {
		keys := make([]operator.SortKey, 0, len(q.OrderBy))
		byVar := make(map[uint64]*rts.Register, len(q.Projection))
		for i, v := range q.Projection {
			byVar[v] = regs[i]
		}
		for _, key := range q.OrderBy {
			reg, bound := byVar[key.Var]
			if !bound {
				reg = FallbackRegister(rt)
			}
			keys = append(keys, operator.SortKey{Reg: reg, Descending: key.Descending})
		}
		tree = operator.NewSort(tree, keys, regs, plan.Cardinality)
	}

	switch q.Duplicates {
	case infra.NoDuplicates, infra.ReducedDuplicates:
		tree = operator.NewHashGroupify(tree, regs, plan.Cardinality)
	}

	if q.Limit >= 0 || q.Offset > 0 {
		tree = operator.NewDuplLimit(tree, q.Offset, q.Limit, plan.Cardinality)
	}

	entry.WithField("duplicates", q.Duplicates).WithField("limit", q.Limit).WithField("offset", q.Offset).Debug("root wrapped")
	return operator.NewResultsPrinter(tree), nil
}
