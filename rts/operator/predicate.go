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

// Package operator holds the compiled, pull-based operator tree (the
// Selection predicate algebra lives here too, mirroring the original
// rts/operator/Selection.hpp nesting Predicate under the Selection
// operator).
package operator

import (
	"regexp"
	"strings"

	"github.com/WDPS-Team/trident/rts"
)

// Kind tags the dynamic type of a Value without requiring a type switch at
// every call site.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindID
	KindNumber
	KindString
)

// Value is the typed result of evaluating a Predicate. Only one of Bool,
// ID, Num or Str is meaningful, selected by Kind.
type Value struct {
	Kind Kind
	Bool bool
	ID   uint64
	Num  float64
	Str  string
}

var nullValue = Value{Kind: KindNull}

func boolValue(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// Truthy implements SPARQL effective boolean value coercion for the
// subset of types this compiler produces.
func (v Value) Truthy() bool {
	switch v.Kind {
	case KindNull:
		return false
	case KindBool:
		return v.Bool
	case KindID:
		return v.ID != 0
	case KindNumber:
		return v.Num != 0
	case KindString:
		return v.Str != ""
	default:
		return false
	}
}

func (v Value) numeric() (float64, bool) {
	switch v.Kind {
	case KindNumber:
		return v.Num, true
	case KindID:
		return float64(v.ID), true
	default:
		return 0, false
	}
}

// Predicate is a node in the compiled selection-predicate tree (§3
// "Selection predicate tree").
type Predicate interface {
	Eval() (Value, error)
}

// --- leaves -----------------------------------------------------------

// Variable reads the current value of a bound register.
type Variable struct{ Reg *rts.Register }

func (p *Variable) Eval() (Value, error) {
	if p.Reg.Null {
		return nullValue, nil
	}
	if p.Reg.IsNumber {
		return Value{Kind: KindNumber, Num: p.Reg.Num}, nil
	}
	return Value{Kind: KindID, ID: p.Reg.Value}, nil
}

// ConstantLiteral is a dictionary-resolved literal id known at compile
// time.
type ConstantLiteral struct{ ID uint64 }

func (p *ConstantLiteral) Eval() (Value, error) { return Value{Kind: KindID, ID: p.ID}, nil }

// TemporaryConstantLiteral carries a raw literal string whose dictionary
// id was not yet known at compile time. Eval returns that string as a
// KindString value; it is not resolved to a dictionary id.
type TemporaryConstantLiteral struct{ Value string }

func (p *TemporaryConstantLiteral) Eval() (Value, error) {
	return Value{Kind: KindString, Str: p.Value}, nil
}

// ConstantIRI is a dictionary-resolved IRI id known at compile time.
type ConstantIRI struct{ ID uint64 }

func (p *ConstantIRI) Eval() (Value, error) { return Value{Kind: KindID, ID: p.ID}, nil }

// TemporaryConstantIRI carries a raw IRI string not yet resolved to a
// dictionary id.
type TemporaryConstantIRI struct{ Value string }

func (p *TemporaryConstantIRI) Eval() (Value, error) {
	return Value{Kind: KindString, Str: p.Value}, nil
}

// Null represents SPARQL unbound semantics for an unbound variable
// reference.
type Null struct{}

func (p *Null) Eval() (Value, error) { return nullValue, nil }

// False is the constant boolean false, used when Bound() is applied to a
// variable that never occurs in the query (no id was ever assigned).
type False struct{}

func (p *False) Eval() (Value, error) { return boolValue(false), nil }

// AggrFunction reads an aggregate's output register.
type AggrFunction struct{ Reg *rts.Register }

func (p *AggrFunction) Eval() (Value, error) {
	if p.Reg.Null {
		return nullValue, nil
	}
	if p.Reg.IsNumber {
		return Value{Kind: KindNumber, Num: p.Reg.Num}, nil
	}
	return Value{Kind: KindID, ID: p.Reg.Value}, nil
}

// --- boolean connectives ------------------------------------------------

type And struct{ Left, Right Predicate }

func (p *And) Eval() (Value, error) {
	l, err := p.Left.Eval()
	if err != nil {
		return Value{}, err
	}
	if !l.Truthy() {
		return boolValue(false), nil
	}
	r, err := p.Right.Eval()
	if err != nil {
		return Value{}, err
	}
	return boolValue(r.Truthy()), nil
}

type Or struct{ Left, Right Predicate }

func (p *Or) Eval() (Value, error) {
	l, err := p.Left.Eval()
	if err != nil {
		return Value{}, err
	}
	if l.Truthy() {
		return boolValue(true), nil
	}
	r, err := p.Right.Eval()
	if err != nil {
		return Value{}, err
	}
	return boolValue(r.Truthy()), nil
}

type Not struct{ Arg Predicate }

func (p *Not) Eval() (Value, error) {
	v, err := p.Arg.Eval()
	if err != nil {
		return Value{}, err
	}
	return boolValue(!v.Truthy()), nil
}

// --- comparisons --------------------------------------------------------

func compareValues(a, b Value) int {
	if an, aok := a.numeric(); aok {
		if bn, bok := b.numeric(); bok {
			switch {
			case an < bn:
				return -1
			case an > bn:
				return 1
			default:
				return 0
			}
		}
	}
	return strings.Compare(a.Str, b.Str)
}

type Equal struct{ Left, Right Predicate }

func (p *Equal) Eval() (Value, error) {
	l, err := p.Left.Eval()
	if err != nil {
		return Value{}, err
	}
	r, err := p.Right.Eval()
	if err != nil {
		return Value{}, err
	}
	if l.Kind == KindNull || r.Kind == KindNull {
		return nullValue, nil
	}
	return boolValue(compareValues(l, r) == 0), nil
}

type NotEqual struct{ Left, Right Predicate }

func (p *NotEqual) Eval() (Value, error) {
	l, err := p.Left.Eval()
	if err != nil {
		return Value{}, err
	}
	r, err := p.Right.Eval()
	if err != nil {
		return Value{}, err
	}
	if l.Kind == KindNull || r.Kind == KindNull {
		return nullValue, nil
	}
	return boolValue(compareValues(l, r) != 0), nil
}

type Less struct{ Left, Right Predicate }

func (p *Less) Eval() (Value, error) {
	l, err := p.Left.Eval()
	if err != nil {
		return Value{}, err
	}
	r, err := p.Right.Eval()
	if err != nil {
		return Value{}, err
	}
	if l.Kind == KindNull || r.Kind == KindNull {
		return nullValue, nil
	}
	return boolValue(compareValues(l, r) < 0), nil
}

type LessOrEqual struct{ Left, Right Predicate }

func (p *LessOrEqual) Eval() (Value, error) {
	l, err := p.Left.Eval()
	if err != nil {
		return Value{}, err
	}
	r, err := p.Right.Eval()
	if err != nil {
		return Value{}, err
	}
	if l.Kind == KindNull || r.Kind == KindNull {
		return nullValue, nil
	}
	return boolValue(compareValues(l, r) <= 0), nil
}

// --- arithmetic ----------------------------------------------------------

type Plus struct{ Left, Right Predicate }

func (p *Plus) Eval() (Value, error) { return arith(p.Left, p.Right, func(a, b float64) float64 { return a + b }) }

type Minus struct{ Left, Right Predicate }

func (p *Minus) Eval() (Value, error) { return arith(p.Left, p.Right, func(a, b float64) float64 { return a - b }) }

type Mul struct{ Left, Right Predicate }

func (p *Mul) Eval() (Value, error) { return arith(p.Left, p.Right, func(a, b float64) float64 { return a * b }) }

type Div struct{ Left, Right Predicate }

func (p *Div) Eval() (Value, error) {
	return arith(p.Left, p.Right, func(a, b float64) float64 {
		if b == 0 {
			return 0
		}
		return a / b
	})
}

func arith(left, right Predicate, f func(a, b float64) float64) (Value, error) {
	l, err := left.Eval()
	if err != nil {
		return Value{}, err
	}
	r, err := right.Eval()
	if err != nil {
		return Value{}, err
	}
	ln, lok := l.numeric()
	rn, rok := r.numeric()
	if !lok || !rok {
		return nullValue, nil
	}
	return Value{Kind: KindNumber, Num: f(ln, rn)}, nil
}

type Neg struct{ Arg Predicate }

func (p *Neg) Eval() (Value, error) {
	v, err := p.Arg.Eval()
	if err != nil {
		return Value{}, err
	}
	n, ok := v.numeric()
	if !ok {
		return nullValue, nil
	}
	return Value{Kind: KindNumber, Num: -n}, nil
}

// --- built-ins -----------------------------------------------------------

// BuiltinBound implements SPARQL BOUND(?v): true iff the register was ever
// materialized (the compiler only constructs this node for variables that
// have an id; an unbound-at-compile-time reference compiles to False{}
// instead, per §4.F).
type BuiltinBound struct{ Reg *rts.Register }

func (p *BuiltinBound) Eval() (Value, error) { return boolValue(!p.Reg.Null), nil }

type BuiltinStr struct{ Arg Predicate }

func (p *BuiltinStr) Eval() (Value, error) {
	v, err := p.Arg.Eval()
	if err != nil {
		return Value{}, err
	}
	if v.Kind == KindString {
		return v, nil
	}
	return Value{Kind: KindString, Str: v.Str}, nil
}

type BuiltinLang struct{ Arg Predicate }

func (p *BuiltinLang) Eval() (Value, error) { return Value{Kind: KindString, Str: ""}, nil }

type BuiltinLangMatches struct{ Lang, Pattern Predicate }

func (p *BuiltinLangMatches) Eval() (Value, error) {
	l, err := p.Lang.Eval()
	if err != nil {
		return Value{}, err
	}
	pat, err := p.Pattern.Eval()
	if err != nil {
		return Value{}, err
	}
	if pat.Str == "*" {
		return boolValue(l.Str != ""), nil
	}
	return boolValue(strings.EqualFold(l.Str, pat.Str)), nil
}

type BuiltinContains struct{ Haystack, Needle Predicate }

func (p *BuiltinContains) Eval() (Value, error) {
	h, err := p.Haystack.Eval()
	if err != nil {
		return Value{}, err
	}
	n, err := p.Needle.Eval()
	if err != nil {
		return Value{}, err
	}
	return boolValue(strings.Contains(h.Str, n.Str)), nil
}

type BuiltinDatatype struct{ Arg Predicate }

func (p *BuiltinDatatype) Eval() (Value, error) { return Value{Kind: KindString, Str: ""}, nil }

type BuiltinSameTerm struct{ Left, Right Predicate }

func (p *BuiltinSameTerm) Eval() (Value, error) {
	l, err := p.Left.Eval()
	if err != nil {
		return Value{}, err
	}
	r, err := p.Right.Eval()
	if err != nil {
		return Value{}, err
	}
	return boolValue(l.Kind == r.Kind && compareValues(l, r) == 0), nil
}

type BuiltinIsIRI struct{ Arg Predicate }

func (p *BuiltinIsIRI) Eval() (Value, error) {
	v, err := p.Arg.Eval()
	if err != nil {
		return Value{}, err
	}
	return boolValue(v.Kind == KindID), nil
}

type BuiltinIsBlank struct{ Arg Predicate }

func (p *BuiltinIsBlank) Eval() (Value, error) { return boolValue(false), nil }

type BuiltinIsLiteral struct{ Arg Predicate }

func (p *BuiltinIsLiteral) Eval() (Value, error) {
	v, err := p.Arg.Eval()
	if err != nil {
		return Value{}, err
	}
	return boolValue(v.Kind == KindString || v.Kind == KindNumber), nil
}

type BuiltinRegEx struct{ Text, Pattern, Flags Predicate }

func (p *BuiltinRegEx) Eval() (Value, error) {
	t, err := p.Text.Eval()
	if err != nil {
		return Value{}, err
	}
	pat, err := p.Pattern.Eval()
	if err != nil {
		return Value{}, err
	}
	expr := pat.Str
	if p.Flags != nil {
		f, err := p.Flags.Eval()
		if err != nil {
			return Value{}, err
		}
		if strings.Contains(f.Str, "i") {
			expr = "(?i)" + expr
		}
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return boolValue(false), nil
	}
	return boolValue(re.MatchString(t.Str)), nil
}

type BuiltinReplace struct{ Text, Pattern, Replacement, Flags Predicate }

func (p *BuiltinReplace) Eval() (Value, error) {
	t, err := p.Text.Eval()
	if err != nil {
		return Value{}, err
	}
	pat, err := p.Pattern.Eval()
	if err != nil {
		return Value{}, err
	}
	repl, err := p.Replacement.Eval()
	if err != nil {
		return Value{}, err
	}
	re, err := regexp.Compile(pat.Str)
	if err != nil {
		return Value{Kind: KindString, Str: t.Str}, nil
	}
	return Value{Kind: KindString, Str: re.ReplaceAllString(t.Str, repl.Str)}, nil
}

// BuiltinIn implements IN/NOT IN (§4.F): Negated selects NOT IN semantics
// over Values (resolved arguments) plus Strings (raw, not-yet-resolved
// argument values, used by NOT IN per the original's string-set
// collection).
type BuiltinIn struct {
	Arg      Predicate
	Values   []Predicate
	Strings  map[string]struct{}
	Negated  bool
}

func (p *BuiltinIn) Eval() (Value, error) {
	v, err := p.Arg.Eval()
	if err != nil {
		return Value{}, err
	}
	found := false
	for _, candidate := range p.Values {
		c, err := candidate.Eval()
		if err != nil {
			return Value{}, err
		}
		if compareValues(v, c) == 0 {
			found = true
			break
		}
	}
	if !found {
		if _, ok := p.Strings[v.Str]; ok {
			found = true
		}
	}
	if p.Negated {
		return boolValue(!found), nil
	}
	return boolValue(found), nil
}

type BuiltinXSD struct{ Arg Predicate }

func (p *BuiltinXSD) Eval() (Value, error) {
	v, err := p.Arg.Eval()
	if err != nil {
		return Value{}, err
	}
	n, ok := v.numeric()
	if !ok {
		return nullValue, nil
	}
	return Value{Kind: KindNumber, Num: n}, nil
}

// BuiltinNotExists runs a fully compiled inner operator tree and reports
// whether at least one inner row was produced (§4.F "NotExists"). Inner
// was compiled with every shared variable's scan bound straight to the
// outer query's own register (see compileNotExists), so Open re-scans
// against whatever value that register currently holds — correlation
// falls out of sharing the register, not out of copying a value here.
type BuiltinNotExists struct {
	Inner rts.Operator
}

func (p *BuiltinNotExists) Eval() (Value, error) {
	if err := p.Inner.Open(); err != nil {
		return Value{}, err
	}
	defer p.Inner.Close()
	more, err := p.Inner.Next()
	if err != nil {
		return Value{}, err
	}
	return boolValue(!more), nil
}

// FunctionCall is the generic fallback for an unrecognized IRI-named
// function (§3, "generic function-call").
type FunctionCall struct {
	IRI  uint64
	Args []Predicate
}

func (p *FunctionCall) Eval() (Value, error) {
	for _, arg := range p.Args {
		if _, err := arg.Eval(); err != nil {
			return Value{}, err
		}
	}
	return nullValue, nil
}
