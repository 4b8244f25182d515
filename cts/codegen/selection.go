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
	"github.com/WDPS-Team/trident/rts/operator"
)

// translateFunc is the top-level dispatcher's signature (defined in
// translate.go). The Join/Set-Operation/Filter builders each recurse into
// their children through it rather than calling translatePlan directly.
type translateFunc func(rt *rts.Runtime, slotMap SlotMap, plan *plangen.Plan, b Bindings, projection map[uint64]bool) (rts.Operator, Bindings, error)

func varsOfBindings(b Bindings) map[uint64]bool {
	out := make(map[uint64]bool, len(b.Context)+len(b.Bound))
	for v := range b.Context {
		out[v] = true
	}
	for v := range b.Bound {
		out[v] = true
	}
	return out
}

// freeVars collects every variable a FilterExpr reads (§4.F's
// "free-variable walk"), which the compiler needs bound before folding
// the expression, used to extend a join's projection set so FILTER sees
// both sides' variables.
func freeVars(f infra.FilterExpr) map[uint64]bool {
	out := map[uint64]bool{}
	walkFilter(f, func(n infra.FilterExpr) {
		switch v := n.(type) {
		case infra.FVariable:
			out[v.Var] = true
		case infra.FBound:
			out[v.Var] = true
		}
	})
	return out
}

// buildNaivePlan assembles a left-deep NestedLoopJoin tree over q's own
// triple nodes, default SPO order, for use where a NOT EXISTS subpattern
// needs a plan of its own but the optimizer only ever produced a Plan for
// the outer query. This is strictly an existence check, so join order
// and algorithm choice do not affect correctness, only constant-factor
// cost — a concession this compiler accepts for NOT EXISTS subpatterns.
func buildNaivePlan(q *infra.QueryGraph) *plangen.Plan {
	if len(q.Nodes) == 0 {
		return &plangen.Plan{Op: plangen.OpSingleton, Cardinality: 1}
	}
	plan := &plangen.Plan{Op: plangen.OpIndexScan, Cardinality: 1, ScanNode: q.Nodes[0]}
	for i := 1; i < len(q.Nodes); i++ {
		right := &plangen.Plan{Op: plangen.OpIndexScan, Cardinality: 1, ScanNode: q.Nodes[i]}
		plan = &plangen.Plan{Op: plangen.OpNestedLoopJoin, Cardinality: 1, Left: plan, Right: right}
	}
	return plan
}

// compileExpr folds a source FilterExpr into a compiled Predicate tree
// (§4.F's "generic predicate builder"): constants resolve to their
// literal/IRI leaves, FGreater(OrEqual) rewrite into FLess(OrEqual) with
// swapped operands, FUnaryPlus folds away, and an unbound FVariable
// compiles to Null (Bound() on a never-assigned variable compiles to
// False instead, since there is no register to check).
func compileExpr(rt *rts.Runtime, slotMap SlotMap, b Bindings, f infra.FilterExpr, translatePlanFn translateFunc) (operator.Predicate, error) {
	switch n := f.(type) {
	case infra.FVariable:
		if reg, ok := b.Lookup(n.Var); ok {
			return &operator.Variable{Reg: reg}, nil
		}
		return &operator.Null{}, nil

	case infra.FLiteral:
		if n.HasID {
			return &operator.ConstantLiteral{ID: n.ID}, nil
		}
		return &operator.TemporaryConstantLiteral{Value: n.Raw}, nil

	case infra.FIRI:
		if n.HasID {
			return &operator.ConstantIRI{ID: n.ID}, nil
		}
		return &operator.TemporaryConstantIRI{Value: n.Raw}, nil

	case infra.FAnd:
		l, err := compileExpr(rt, slotMap, b, n.Left, translatePlanFn)
		if err != nil {
			return nil, err
		}
		r, err := compileExpr(rt, slotMap, b, n.Right, translatePlanFn)
		if err != nil {
			return nil, err
		}
		return &operator.And{Left: l, Right: r}, nil

	case infra.FOr:
		l, err := compileExpr(rt, slotMap, b, n.Left, translatePlanFn)
		if err != nil {
			return nil, err
		}
		r, err := compileExpr(rt, slotMap, b, n.Right, translatePlanFn)
		if err != nil {
			return nil, err
		}
		return &operator.Or{Left: l, Right: r}, nil

	case infra.FNot:
		arg, err := compileExpr(rt, slotMap, b, n.Arg, translatePlanFn)
		if err != nil {
			return nil, err
		}
		return &operator.Not{Arg: arg}, nil

	case infra.FEqual:
		return compileBinary(rt, slotMap, b, n.Left, n.Right, translatePlanFn, func(l, r operator.Predicate) operator.Predicate {
			return &operator.Equal{Left: l, Right: r}
		})
	case infra.FNotEqual:
		return compileBinary(rt, slotMap, b, n.Left, n.Right, translatePlanFn, func(l, r operator.Predicate) operator.Predicate {
			return &operator.NotEqual{Left: l, Right: r}
		})
	case infra.FLess:
		return compileBinary(rt, slotMap, b, n.Left, n.Right, translatePlanFn, func(l, r operator.Predicate) operator.Predicate {
			return &operator.Less{Left: l, Right: r}
		})
	case infra.FLessOrEqual:
		return compileBinary(rt, slotMap, b, n.Left, n.Right, translatePlanFn, func(l, r operator.Predicate) operator.Predicate {
			return &operator.LessOrEqual{Left: l, Right: r}
		})
	case infra.FGreater:
		// a > b  ==  b < a
		return compileBinary(rt, slotMap, b, n.Right, n.Left, translatePlanFn, func(l, r operator.Predicate) operator.Predicate {
			return &operator.Less{Left: l, Right: r}
		})
	case infra.FGreaterOrEqual:
		// a >= b  ==  b <= a
		return compileBinary(rt, slotMap, b, n.Right, n.Left, translatePlanFn, func(l, r operator.Predicate) operator.Predicate {
			return &operator.LessOrEqual{Left: l, Right: r}
		})

	case infra.FPlus:
		return compileBinary(rt, slotMap, b, n.Left, n.Right, translatePlanFn, func(l, r operator.Predicate) operator.Predicate {
			return &operator.Plus{Left: l, Right: r}
		})
	case infra.FMinus:
		return compileBinary(rt, slotMap, b, n.Left, n.Right, translatePlanFn, func(l, r operator.Predicate) operator.Predicate {
			return &operator.Minus{Left: l, Right: r}
		})
	case infra.FMul:
		return compileBinary(rt, slotMap, b, n.Left, n.Right, translatePlanFn, func(l, r operator.Predicate) operator.Predicate {
			return &operator.Mul{Left: l, Right: r}
		})
	case infra.FDiv:
		return compileBinary(rt, slotMap, b, n.Left, n.Right, translatePlanFn, func(l, r operator.Predicate) operator.Predicate {
			return &operator.Div{Left: l, Right: r}
		})
	case infra.FNeg:
		arg, err := compileExpr(rt, slotMap, b, n.Arg, translatePlanFn)
		if err != nil {
			return nil, err
		}
		return &operator.Neg{Arg: arg}, nil
	case infra.FUnaryPlus:
		return compileExpr(rt, slotMap, b, n.Arg, translatePlanFn)

	case infra.FBound:
		reg, ok := b.Lookup(n.Var)
		if !ok {
			return &operator.False{}, nil
		}
		return &operator.BuiltinBound{Reg: reg}, nil

	case infra.FStr:
		arg, err := compileExpr(rt, slotMap, b, n.Arg, translatePlanFn)
		if err != nil {
			return nil, err
		}
		return &operator.BuiltinStr{Arg: arg}, nil
	case infra.FLang:
		arg, err := compileExpr(rt, slotMap, b, n.Arg, translatePlanFn)
		if err != nil {
			return nil, err
		}
		return &operator.BuiltinLang{Arg: arg}, nil
	case infra.FLangMatches:
		lang, err := compileExpr(rt, slotMap, b, n.Lang, translatePlanFn)
		if err != nil {
			return nil, err
		}
		pat, err := compileExpr(rt, slotMap, b, n.Pattern, translatePlanFn)
		if err != nil {
			return nil, err
		}
		return &operator.BuiltinLangMatches{Lang: lang, Pattern: pat}, nil
	case infra.FContains:
		h, err := compileExpr(rt, slotMap, b, n.Haystack, translatePlanFn)
		if err != nil {
			return nil, err
		}
		needle, err := compileExpr(rt, slotMap, b, n.Needle, translatePlanFn)
		if err != nil {
			return nil, err
		}
		return &operator.BuiltinContains{Haystack: h, Needle: needle}, nil
	case infra.FDatatype:
		arg, err := compileExpr(rt, slotMap, b, n.Arg, translatePlanFn)
		if err != nil {
			return nil, err
		}
		return &operator.BuiltinDatatype{Arg: arg}, nil
	case infra.FSameTerm:
		l, err := compileExpr(rt, slotMap, b, n.Left, translatePlanFn)
		if err != nil {
			return nil, err
		}
		r, err := compileExpr(rt, slotMap, b, n.Right, translatePlanFn)
		if err != nil {
			return nil, err
		}
		return &operator.BuiltinSameTerm{Left: l, Right: r}, nil
	case infra.FIsIRI:
		arg, err := compileExpr(rt, slotMap, b, n.Arg, translatePlanFn)
		if err != nil {
			return nil, err
		}
		return &operator.BuiltinIsIRI{Arg: arg}, nil
	case infra.FIsBlank:
		arg, err := compileExpr(rt, slotMap, b, n.Arg, translatePlanFn)
		if err != nil {
			return nil, err
		}
		return &operator.BuiltinIsBlank{Arg: arg}, nil
	case infra.FIsLiteral:
		arg, err := compileExpr(rt, slotMap, b, n.Arg, translatePlanFn)
		if err != nil {
			return nil, err
		}
		return &operator.BuiltinIsLiteral{Arg: arg}, nil
	case infra.FRegex:
		text, err := compileExpr(rt, slotMap, b, n.Text, translatePlanFn)
		if err != nil {
			return nil, err
		}
		pat, err := compileExpr(rt, slotMap, b, n.Pattern, translatePlanFn)
		if err != nil {
			return nil, err
		}
		var flags operator.Predicate
		if n.Flags != nil {
			flags, err = compileExpr(rt, slotMap, b, n.Flags, translatePlanFn)
			if err != nil {
				return nil, err
			}
		}
		return &operator.BuiltinRegEx{Text: text, Pattern: pat, Flags: flags}, nil
	case infra.FReplace:
		text, err := compileExpr(rt, slotMap, b, n.Text, translatePlanFn)
		if err != nil {
			return nil, err
		}
		pat, err := compileExpr(rt, slotMap, b, n.Pattern, translatePlanFn)
		if err != nil {
			return nil, err
		}
		repl, err := compileExpr(rt, slotMap, b, n.Replacement, translatePlanFn)
		if err != nil {
			return nil, err
		}
		var flags operator.Predicate
		if n.Flags != nil {
			flags, err = compileExpr(rt, slotMap, b, n.Flags, translatePlanFn)
			if err != nil {
				return nil, err
			}
		}
		return &operator.BuiltinReplace{Text: text, Pattern: pat, Replacement: repl, Flags: flags}, nil

	case infra.FIn:
		arg, err := compileExpr(rt, slotMap, b, n.Arg, translatePlanFn)
		if err != nil {
			return nil, err
		}
		values := make([]operator.Predicate, 0, len(n.Args))
		for _, a := range n.Args {
			cv, err := compileExpr(rt, slotMap, b, a, translatePlanFn)
			if err != nil {
				return nil, err
			}
			values = append(values, cv)
		}
		return &operator.BuiltinIn{Arg: arg, Values: values, Negated: n.Negated}, nil

	case infra.FXSDDecimal:
		arg, err := compileExpr(rt, slotMap, b, n.Arg, translatePlanFn)
		if err != nil {
			return nil, err
		}
		return &operator.BuiltinXSD{Arg: arg}, nil

	case infra.FNotExists:
		return compileNotExists(rt, slotMap, b, n, translatePlanFn)

	case infra.FAggregateRef:
		reg, ok := b.Lookup(n.OutputVar)
		if !ok {
			return nil, rts.ErrInvariantViolation.New("aggregate output referenced before it was compiled")
		}
		return &operator.AggrFunction{Reg: reg}, nil

	case infra.FFunctionCall:
		args := make([]operator.Predicate, 0, len(n.Args))
		for _, a := range n.Args {
			cv, err := compileExpr(rt, slotMap, b, a, translatePlanFn)
			if err != nil {
				return nil, err
			}
			args = append(args, cv)
		}
		return &operator.FunctionCall{IRI: n.IRI, Args: args}, nil

	default:
		return nil, rts.ErrInvariantViolation.New("unrecognized filter expression node")
	}
}

func compileBinary(rt *rts.Runtime, slotMap SlotMap, b Bindings, left, right infra.FilterExpr, translatePlanFn translateFunc, wrap func(l, r operator.Predicate) operator.Predicate) (operator.Predicate, error) {
	l, err := compileExpr(rt, slotMap, b, left, translatePlanFn)
	if err != nil {
		return nil, err
	}
	r, err := compileExpr(rt, slotMap, b, right, translatePlanFn)
	if err != nil {
		return nil, err
	}
	return wrap(l, r), nil
}

// compileNotExists compiles FNotExists (§4.F "NotExists"): the subpattern
// is planned independently of the outer plan via buildNaivePlan and
// compiled with every variable the subpattern shares with the outer
// query pre-loaded into its Context, pointing straight at the outer
// query's own register for that variable. That makes buildScan treat a
// shared position as Const-bound (scan.go's Context branch), so the
// inner scan filters on whatever value the outer register currently
// holds every time BuiltinNotExists re-Opens it — no separate copy step,
// no stale snapshot from compile time.
func compileNotExists(rt *rts.Runtime, slotMap SlotMap, b Bindings, n infra.FNotExists, translatePlanFn translateFunc) (operator.Predicate, error) {
	innerQ := n.Subquery
	if innerQ == nil {
		innerQ = n.Subpattern
	}
	if innerQ == nil {
		return nil, rts.ErrUnsupported.New("NOT EXISTS with neither a subquery nor a subpattern")
	}

	subPlan := buildNaivePlan(innerQ)
	innerVars := collectVars(subPlan, nil)
	shared := sortedVars(intersectVars(innerVars, varsOfBindings(b)))

	ctx := make(map[uint64]*rts.Register, len(shared))
	for _, v := range shared {
		if outerReg, ok := b.Lookup(v); ok {
			ctx[v] = outerReg
		}
	}

	innerOp, _, err := translatePlanFn(rt, slotMap, subPlan, NewBindings(ctx), varSet(shared))
	if err != nil {
		return nil, err
	}

	return &operator.BuiltinNotExists{Inner: innerOp}, nil
}

// tryFastPath recognizes the equality/inequality/IN-against-constants
// shapes that skip the general predicate tree (§4.F "fast path"):
// Variable = Literal/IRI, its negation, and IN/NOT IN with a fully
// constant argument list.
func tryFastPath(b Bindings, f infra.FilterExpr) (*operator.Filter, bool) {
	switch n := f.(type) {
	case infra.FEqual:
		return tryFastPathEquality(b, n.Left, n.Right, false)
	case infra.FNotEqual:
		return tryFastPathEquality(b, n.Left, n.Right, true)
	case infra.FNot:
		if eq, ok := n.Arg.(infra.FEqual); ok {
			return tryFastPathEquality(b, eq.Left, eq.Right, true)
		}
		return nil, false
	case infra.FIn:
		v, ok := n.Arg.(infra.FVariable)
		if !ok {
			return nil, false
		}
		reg, ok := b.Lookup(v.Var)
		if !ok {
			return nil, false
		}
		values := make([]uint64, 0, len(n.Args))
		for _, a := range n.Args {
			id, ok := constID(a)
			if !ok {
				return nil, false
			}
			values = append(values, id)
		}
		return &operator.Filter{Reg: reg, Values: values, Negated: n.Negated}, true
	default:
		return nil, false
	}
}

func tryFastPathEquality(b Bindings, left, right infra.FilterExpr, negated bool) (*operator.Filter, bool) {
	v, lit, ok := splitVarConst(left, right)
	if !ok {
		return nil, false
	}
	reg, ok := b.Lookup(v)
	if !ok {
		return nil, false
	}
	return &operator.Filter{Reg: reg, Values: []uint64{lit}, Negated: negated}, true
}

func splitVarConst(left, right infra.FilterExpr) (uint64, uint64, bool) {
	if v, ok := left.(infra.FVariable); ok {
		if id, ok := constID(right); ok {
			return v.Var, id, true
		}
	}
	if v, ok := right.(infra.FVariable); ok {
		if id, ok := constID(left); ok {
			return v.Var, id, true
		}
	}
	return 0, 0, false
}

func constID(f infra.FilterExpr) (uint64, bool) {
	switch n := f.(type) {
	case infra.FLiteral:
		if n.HasID {
			return n.ID, true
		}
	case infra.FIRI:
		if n.HasID {
			return n.ID, true
		}
	}
	return 0, false
}

// buildSelection implements the rest of the Filter/Selection Compiler:
// given the already-translated input operator and its bindings, it folds
// expr, prefers the fast path when allowFastPath is set and the shape matches,
// and otherwise falls back to a generic Selection. HAVING reuses this
// with allowFastPath=false, since an aggregate output is never a register
// the Filter fast path's membership test can read cheaply.
func buildSelection(rt *rts.Runtime, slotMap SlotMap, input rts.Operator, b Bindings, expr infra.FilterExpr, cardinality uint64, allowFastPath bool, translatePlanFn translateFunc) (rts.Operator, error) {
	if allowFastPath {
		if fp, ok := tryFastPath(b, expr); ok {
			return operator.NewFilter(input, fp.Reg, fp.Values, fp.Negated, cardinality), nil
		}
	}
	pred, err := compileExpr(rt, slotMap, b, expr, translatePlanFn)
	if err != nil {
		return nil, err
	}
	return operator.NewSelection(input, pred, cardinality), nil
}
