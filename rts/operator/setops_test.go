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

func TestUnionConcatenatesBothArms(t *testing.T) {
	require := require.New(t)
	lOut, rOut := &rts.Register{}, &rts.Register{}
	out := &rts.Register{}

	left := &fixedScan{regs: []*rts.Register{lOut}, rows: [][]uint64{{1}, {2}}}
	right := &fixedScan{regs: []*rts.Register{rOut}, rows: [][]uint64{{3}}}

	u := NewUnion(left, right, []UnionArm{{Left: lOut, Right: rOut, Out: out}}, 3)
	require.NoError(u.Open())
	defer u.Close()

	var got []uint64
	for {
		more, err := u.Next()
		require.NoError(err)
		if !more {
			break
		}
		got = append(got, out.Value)
	}
	require.Equal([]uint64{1, 2, 3}, got)
}

func TestMergeUnionOrdersByKey(t *testing.T) {
	require := require.New(t)
	lKey, rKey := &rts.Register{}, &rts.Register{}
	out := &rts.Register{}

	left := &fixedScan{regs: []*rts.Register{lKey}, rows: [][]uint64{{1}, {3}}}
	right := &fixedScan{regs: []*rts.Register{rKey}, rows: [][]uint64{{2}, {4}}}

	u := NewMergeUnion(left, right, lKey, rKey, []UnionArm{{Left: lKey, Right: rKey, Out: out}}, 4)
	require.NoError(u.Open())
	defer u.Close()

	var got []uint64
	for {
		more, err := u.Next()
		require.NoError(err)
		if !more {
			break
		}
		got = append(got, out.Value)
	}
	require.Equal([]uint64{1, 2, 3, 4}, got)
}

func TestSetMinusExcludesMatchingSharedRows(t *testing.T) {
	require := require.New(t)
	lShared, rShared := &rts.Register{}, &rts.Register{}

	left := &fixedScan{regs: []*rts.Register{lShared}, rows: [][]uint64{{1}, {2}, {3}}}
	right := &fixedScan{regs: []*rts.Register{rShared}, rows: [][]uint64{{2}}}

	m := NewSetMinus(left, right, []*rts.Register{lShared}, []*rts.Register{rShared}, 3)
	require.NoError(m.Open())
	defer m.Close()

	var got []uint64
	for {
		more, err := m.Next()
		require.NoError(err)
		if !more {
			break
		}
		got = append(got, lShared.Value)
	}
	require.Equal([]uint64{1, 3}, got)
}

func TestSetMinusAllNullSharedAlwaysPasses(t *testing.T) {
	require := require.New(t)
	lShared := &rts.Register{Null: true}
	rShared := &rts.Register{}

	left := &fixedScan{regs: nil, rows: [][]uint64{{}}}
	right := &fixedScan{regs: []*rts.Register{rShared}, rows: nil}

	m := NewSetMinus(left, right, []*rts.Register{lShared}, []*rts.Register{rShared}, 1)
	require.NoError(m.Open())
	defer m.Close()

	more, err := m.Next()
	require.NoError(err)
	require.True(more, "an all-null shared key never matches, so the row always passes through")
}

func TestHashGroupifyDropsConsecutiveAndNonConsecutiveDuplicates(t *testing.T) {
	require := require.New(t)
	key := &rts.Register{}
	input := &fixedScan{regs: []*rts.Register{key}, rows: [][]uint64{{1}, {1}, {2}, {1}}}

	g := NewHashGroupify(input, []*rts.Register{key}, 4)
	require.NoError(g.Open())
	defer g.Close()

	var got []uint64
	for {
		more, err := g.Next()
		require.NoError(err)
		if !more {
			break
		}
		got = append(got, key.Value)
	}
	require.Equal([]uint64{1, 2}, got)
}
