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

func TestGroupByKeepsArrivalOrderOfGroups(t *testing.T) {
	require := require.New(t)
	key := &rts.Register{}
	input := &fixedScan{regs: []*rts.Register{key}, rows: [][]uint64{{1}, {2}, {1}, {2}, {2}}}

	g := NewGroupBy(input, []*rts.Register{key}, false, 5)
	got := readAll(t, g, key)
	require.Equal([]uint64{1, 1, 2, 2, 2}, got, "rows regroup by key but groups keep their first-seen order")
}

func TestGroupByDistinctCollapsesRepeatedKeys(t *testing.T) {
	require := require.New(t)
	key := &rts.Register{}
	input := &fixedScan{regs: []*rts.Register{key}, rows: [][]uint64{{1}, {1}, {2}, {1}}}

	g := NewGroupBy(input, []*rts.Register{key}, true, 2)
	got := readAll(t, g, key)
	require.Equal([]uint64{1, 2}, got)
}

// countHandler is a minimal AggregateHandler counting rows per group into a
// single output variable, the shape scenario S4 describes for COUNT(?x).
type countHandler struct {
	inputVar, outputVar uint64
	count               uint64
}

func (h *countHandler) StartUpdate() { h.count = 0 }
func (h *countHandler) UpdateVar(v uint64, reg *rts.Register) error {
	if v == h.inputVar && !reg.Null {
		h.count++
	}
	return nil
}
func (h *countHandler) StopUpdate() error                    { return nil }
func (h *countHandler) InputVars() []uint64                  { return []uint64{h.inputVar} }
func (h *countHandler) OutputVars() []uint64                 { return []uint64{h.outputVar} }
func (h *countHandler) OutputKind(uint64) Kind               { return KindNumber }
func (h *countHandler) OutputID(uint64) uint64                { return 0 }
func (h *countHandler) OutputNumber(uint64) float64          { return float64(h.count) }
func (h *countHandler) RequiresNumber(uint64) bool           { return false }

func TestAggrFunctionsCountsPerGroup(t *testing.T) {
	require := require.New(t)
	const sVar, xVar, cVar uint64 = 1, 2, 3

	sReg, xReg, cReg := &rts.Register{}, &rts.Register{}, &rts.Register{}
	// Pre-grouped input: ?s=10 has two rows, ?s=20 has one (GroupBy sits
	// below AggrFunctions in a compiled plan, per scenario S4).
	input := &fixedScan{regs: []*rts.Register{sReg, xReg}, rows: [][]uint64{{10, 100}, {10, 101}, {20, 200}}}

	handler := &countHandler{inputVar: xVar, outputVar: cVar}
	a := NewAggrFunctions(input, []*rts.Register{sReg}, handler,
		map[uint64]*rts.Register{xVar: xReg},
		map[uint64]*rts.Register{cVar: cReg},
		2)

	require.NoError(a.Open())
	defer a.Close()

	more, err := a.Next()
	require.NoError(err)
	require.True(more)
	require.Equal(uint64(10), sReg.Value)
	require.True(cReg.IsNumber)
	require.Equal(2.0, cReg.Num)

	more, err = a.Next()
	require.NoError(err)
	require.True(more)
	require.Equal(uint64(20), sReg.Value)
	require.True(cReg.IsNumber)
	require.Equal(1.0, cReg.Num)

	more, err = a.Next()
	require.NoError(err)
	require.False(more)
}
