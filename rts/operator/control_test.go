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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/WDPS-Team/trident/rts"
)

func TestSelectionDropsFalseAndNullRows(t *testing.T) {
	require := require.New(t)
	x := &rts.Register{}
	input := &nullableScan{reg: x, rows: []struct {
		val  uint64
		null bool
	}{{0, false}, {2, true}, {1, false}, {2, false}}}

	sel := NewSelection(input, &Equal{Left: &Variable{Reg: x}, Right: &ConstantLiteral{ID: 2}}, 1)
	got := readAll(t, sel, x)
	require.Equal([]uint64{2}, got)
}

func TestFilterFastPathMembership(t *testing.T) {
	require := require.New(t)
	x := &rts.Register{}
	input := &fixedScan{regs: []*rts.Register{x}, rows: [][]uint64{{1}, {2}, {3}}}

	f := NewFilter(input, x, []uint64{1, 3}, false, 2)
	got := readAll(t, f, x)
	require.Equal([]uint64{1, 3}, got)
}

func TestFilterFastPathNegated(t *testing.T) {
	require := require.New(t)
	x := &rts.Register{}
	input := &fixedScan{regs: []*rts.Register{x}, rows: [][]uint64{{1}, {2}, {3}}}

	f := NewFilter(input, x, []uint64{1, 3}, true, 1)
	got := readAll(t, f, x)
	require.Equal([]uint64{2}, got)
}

func TestFilterSkipsUnboundRegardlessOfNegation(t *testing.T) {
	require := require.New(t)
	x := &rts.Register{}
	input := &nullableScan{reg: x, rows: []struct {
		val  uint64
		null bool
	}{{1, true}, {2, false}}}

	f := NewFilter(input, x, []uint64{1}, true, 1)
	got := readAll(t, f, x)
	require.Equal([]uint64{2}, got)
}

func TestAssignmentBindsExpressionResult(t *testing.T) {
	require := require.New(t)
	x, out := &rts.Register{}, &rts.Register{}
	input := &fixedScan{regs: []*rts.Register{x}, rows: [][]uint64{{3}}}

	a := NewAssignment(input, out, &Plus{Left: &Variable{Reg: x}, Right: &ConstantLiteral{ID: 4}}, 1)
	require.NoError(a.Open())
	defer a.Close()

	more, err := a.Next()
	require.NoError(err)
	require.True(more)
	require.False(out.Null)
}

func TestAssignmentNullExpressionMarksOutUnbound(t *testing.T) {
	require := require.New(t)
	x, out := &rts.Register{}, &rts.Register{Value: 99}
	input := &fixedScan{regs: []*rts.Register{x}, rows: [][]uint64{{0}}}

	a := NewAssignment(input, out, &Null{}, 1)
	require.NoError(a.Open())
	defer a.Close()

	more, err := a.Next()
	require.NoError(err)
	require.True(more)
	require.True(out.Null)
}

// fixedTableFunc expands each input row into a fixed number of output rows,
// writing an incrementing tag into Out.
type fixedTableFunc struct {
	Out    *rts.Register
	n, pos int
}

func (f *fixedTableFunc) Open() error { f.pos = 0; return nil }
func (f *fixedTableFunc) Next() (bool, error) {
	if f.pos >= f.n {
		return false, nil
	}
	f.Out.Value = uint64(f.pos)
	f.pos++
	return true, nil
}
func (f *fixedTableFunc) Close() error { return nil }

func TestTableFunctionExpandsEachInputRow(t *testing.T) {
	require := require.New(t)
	in := &rts.Register{}
	out := &rts.Register{}
	input := &fixedScan{regs: []*rts.Register{in}, rows: [][]uint64{{1}, {2}}}

	tf := NewTableFunction(input, &fixedTableFunc{Out: out, n: 2}, 4)
	got := readAll(t, tf, out)
	require.Equal([]uint64{0, 1, 0, 1}, got)
}
