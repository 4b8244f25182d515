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

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/WDPS-Team/trident/rts"
)

func TestVariableEvalReflectsRegisterNull(t *testing.T) {
	require := require.New(t)
	reg := &rts.Register{Value: 5}
	v := &Variable{Reg: reg}

	got, err := v.Eval()
	require.NoError(err)
	require.Equal(Value{Kind: KindID, ID: 5}, got)

	reg.Null = true
	got, err = v.Eval()
	require.NoError(err)
	require.Equal(KindNull, got.Kind)
}

func TestEqualReturnsNullWhenEitherSideUnbound(t *testing.T) {
	require := require.New(t)
	eq := &Equal{Left: &Null{}, Right: &ConstantLiteral{ID: 1}}
	got, err := eq.Eval()
	require.NoError(err)
	require.Equal(KindNull, got.Kind)
}

func TestEqualComparesResolvedIDs(t *testing.T) {
	require := require.New(t)
	eq := &Equal{Left: &ConstantLiteral{ID: 7}, Right: &ConstantLiteral{ID: 7}}
	got, err := eq.Eval()
	require.NoError(err)
	require.True(got.Truthy())

	neq := &Equal{Left: &ConstantLiteral{ID: 7}, Right: &ConstantLiteral{ID: 8}}
	got, err = neq.Eval()
	require.NoError(err)
	require.False(got.Truthy())
}

func TestAndShortCircuitsOnFalseLeft(t *testing.T) {
	require := require.New(t)
	// A right side that would error if evaluated proves short-circuiting.
	and := &And{Left: &False{}, Right: &erroringPredicate{}}
	got, err := and.Eval()
	require.NoError(err)
	require.False(got.Truthy())
}

type erroringPredicate struct{}

func (erroringPredicate) Eval() (Value, error) { return Value{}, errEvalCalled }

var errEvalCalled = errors.New("Eval should not have been called")

func TestOrShortCircuitsOnTrueLeft(t *testing.T) {
	require := require.New(t)
	or := &Or{Left: &ConstantLiteral{ID: 1}, Right: &Null{}}
	got, err := or.Eval()
	require.NoError(err)
	require.True(got.Truthy())
}

func TestArithmeticOperators(t *testing.T) {
	require := require.New(t)
	five := &ConstantLiteral{ID: 5}
	three := &ConstantLiteral{ID: 3}

	sum, err := (&Plus{Left: five, Right: three}).Eval()
	require.NoError(err)
	require.Equal(8.0, sum.Num)

	diff, err := (&Minus{Left: five, Right: three}).Eval()
	require.NoError(err)
	require.Equal(2.0, diff.Num)

	prod, err := (&Mul{Left: five, Right: three}).Eval()
	require.NoError(err)
	require.Equal(15.0, prod.Num)

	quot, err := (&Div{Left: five, Right: three}).Eval()
	require.NoError(err)
	require.InDelta(5.0/3.0, quot.Num, 1e-9)
}

func TestDivByZeroYieldsZeroNotPanic(t *testing.T) {
	require := require.New(t)
	got, err := (&Div{Left: &ConstantLiteral{ID: 1}, Right: &ConstantLiteral{ID: 0}}).Eval()
	require.NoError(err)
	require.Equal(0.0, got.Num)
}

func TestBuiltinBoundReflectsRegisterNull(t *testing.T) {
	require := require.New(t)
	reg := &rts.Register{}
	b := &BuiltinBound{Reg: reg}

	got, err := b.Eval()
	require.NoError(err)
	require.True(got.Truthy(), "a materialized register is bound")

	reg.Null = true
	got, err = b.Eval()
	require.NoError(err)
	require.False(got.Truthy())
}

func TestBuiltinRegExMatchesWithCaseInsensitiveFlag(t *testing.T) {
	require := require.New(t)
	re := &BuiltinRegEx{
		Text:    &TemporaryConstantLiteral{Value: "HELLO world"},
		Pattern: &TemporaryConstantLiteral{Value: "hello"},
		Flags:   &TemporaryConstantLiteral{Value: "i"},
	}
	got, err := re.Eval()
	require.NoError(err)
	require.True(got.Truthy())
}

func TestBuiltinInMatchesResolvedValueOrRawString(t *testing.T) {
	require := require.New(t)
	in := &BuiltinIn{
		Arg:     &ConstantLiteral{ID: 2},
		Values:  []Predicate{&ConstantLiteral{ID: 1}, &ConstantLiteral{ID: 2}},
		Negated: false,
	}
	got, err := in.Eval()
	require.NoError(err)
	require.True(got.Truthy())

	notIn := &BuiltinIn{
		Arg:     &ConstantLiteral{ID: 3},
		Values:  []Predicate{&ConstantLiteral{ID: 1}, &ConstantLiteral{ID: 2}},
		Negated: true,
	}
	got, err = notIn.Eval()
	require.NoError(err)
	require.True(got.Truthy(), "3 is absent from the list so NOT IN holds")
}

func TestBuiltinNotExistsReportsNoInnerRows(t *testing.T) {
	require := require.New(t)
	inner := &rts.Register{}

	empty := &BuiltinNotExists{
		Inner: &fixedScan{regs: []*rts.Register{inner}, rows: nil},
	}
	got, err := empty.Eval()
	require.NoError(err)
	require.True(got.Truthy(), "no inner rows means NOT EXISTS holds")

	nonEmpty := &BuiltinNotExists{
		Inner: &fixedScan{regs: []*rts.Register{inner}, rows: [][]uint64{{1}}},
	}
	got, err = nonEmpty.Eval()
	require.NoError(err)
	require.False(got.Truthy(), "an inner row means NOT EXISTS fails")
}

func TestFunctionCallFallsBackToNull(t *testing.T) {
	require := require.New(t)
	fc := &FunctionCall{IRI: 99, Args: []Predicate{&ConstantLiteral{ID: 1}}}
	got, err := fc.Eval()
	require.NoError(err)
	require.Equal(KindNull, got.Kind)
}
