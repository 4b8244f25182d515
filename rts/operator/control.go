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

package operator

import "github.com/WDPS-Team/trident/rts"

// Selection passes through every Input row whose Predicate evaluates
// truthy; everything else (including Null) is dropped (§4.F).
type Selection struct {
	Input       rts.Operator
	Pred        Predicate
	cardinality uint64
}

func NewSelection(input rts.Operator, pred Predicate, cardinality uint64) *Selection {
	return &Selection{Input: input, Pred: pred, cardinality: cardinality}
}

func (s *Selection) Open() error { return s.Input.Open() }

func (s *Selection) Next() (bool, error) {
	for {
		more, err := s.Input.Next()
		if err != nil || !more {
			return false, err
		}
		v, err := s.Pred.Eval()
		if err != nil {
			return false, err
		}
		if v.Truthy() {
			return true, nil
		}
	}
}

func (s *Selection) Close() error { return s.Input.Close() }

func (s *Selection) ExpectedOutputCardinality() uint64 { return s.cardinality }

// Filter is the fast-path selection the compiler recognizes when a
// predicate reduces to "register equals one of a short constant list,
// optionally negated" (§4.F, "fast path"): membership testing against
// Values skips the general Predicate tree entirely.
type Filter struct {
	Input       rts.Operator
	Reg         *rts.Register
	Values      []uint64
	Negated     bool
	cardinality uint64
}

func NewFilter(input rts.Operator, reg *rts.Register, values []uint64, negated bool, cardinality uint64) *Filter {
	return &Filter{Input: input, Reg: reg, Values: values, Negated: negated, cardinality: cardinality}
}

func (f *Filter) Open() error { return f.Input.Open() }

func (f *Filter) Next() (bool, error) {
	for {
		more, err := f.Input.Next()
		if err != nil || !more {
			return false, err
		}
		if f.Reg.Null {
			continue
		}
		found := false
		for _, v := range f.Values {
			if f.Reg.Value == v {
				found = true
				break
			}
		}
		if found != f.Negated {
			return true, nil
		}
	}
}

func (f *Filter) Close() error { return f.Input.Close() }

func (f *Filter) ExpectedOutputCardinality() uint64 { return f.cardinality }

// Assignment evaluates Expr once per Input row and stores the result in
// Out, implementing BIND (§4.F "Assignment"). A Null result marks Out
// unbound rather than storing a zero value.
type Assignment struct {
	Input       rts.Operator
	Out         *rts.Register
	Expr        Predicate
	cardinality uint64
}

func NewAssignment(input rts.Operator, out *rts.Register, expr Predicate, cardinality uint64) *Assignment {
	return &Assignment{Input: input, Out: out, Expr: expr, cardinality: cardinality}
}

func (a *Assignment) Open() error { return a.Input.Open() }

func (a *Assignment) Next() (bool, error) {
	more, err := a.Input.Next()
	if err != nil || !more {
		return false, err
	}
	v, err := a.Expr.Eval()
	if err != nil {
		return false, err
	}
	if v.Kind == KindNull {
		a.Out.Null = true
		return true, nil
	}
	a.Out.Null = false
	a.Out.IsNumber = false
	switch v.Kind {
	case KindID:
		a.Out.Value = v.ID
	case KindNumber:
		a.Out.IsNumber, a.Out.Num = true, v.Num
	}
	return true, nil
}

func (a *Assignment) Close() error { return a.Input.Close() }

func (a *Assignment) ExpectedOutputCardinality() uint64 { return a.cardinality }

// TableFunctionImpl is the external contract a compiled TableFunction
// call is bound against: one call per Input row, expanding into zero or
// more output rows (§4.C "TableFunction", a generic extension point the
// original reserves for built-ins like STRSPLIT).
type TableFunctionImpl interface {
	// Open starts the function for the current Input row (its argument
	// registers already hold that row's values); Next reports whether
	// one more output row was produced.
	Open() error
	Next() (bool, error)
	Close() error
}

// TableFunction drives one TableFunctionImpl per Input row (§4.C).
type TableFunction struct {
	Input       rts.Operator
	Impl        TableFunctionImpl
	cardinality uint64

	implOpen bool
}

func NewTableFunction(input rts.Operator, impl TableFunctionImpl, cardinality uint64) *TableFunction {
	return &TableFunction{Input: input, Impl: impl, cardinality: cardinality}
}

func (t *TableFunction) Open() error { return t.Input.Open() }

func (t *TableFunction) Next() (bool, error) {
	for {
		if !t.implOpen {
			more, err := t.Input.Next()
			if err != nil || !more {
				return false, err
			}
			if err := t.Impl.Open(); err != nil {
				return false, err
			}
			t.implOpen = true
		}
		more, err := t.Impl.Next()
		if err != nil {
			return false, err
		}
		if more {
			return true, nil
		}
		if err := t.Impl.Close(); err != nil {
			return false, err
		}
		t.implOpen = false
	}
}

func (t *TableFunction) Close() error {
	if t.implOpen {
		t.Impl.Close()
	}
	return t.Input.Close()
}

func (t *TableFunction) ExpectedOutputCardinality() uint64 { return t.cardinality }
