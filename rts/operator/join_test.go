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

// fixedScan replays a fixed set of rows into regs, one row per Next.
type fixedScan struct {
	regs []*rts.Register
	rows [][]uint64
	pos  int
}

func (f *fixedScan) Open() error { f.pos = 0; return nil }
func (f *fixedScan) Next() (bool, error) {
	if f.pos >= len(f.rows) {
		return false, nil
	}
	row := f.rows[f.pos]
	f.pos++
	for i, r := range f.regs {
		r.Value, r.Null = row[i], false
	}
	return true, nil
}
func (f *fixedScan) Close() error                       { return nil }
func (f *fixedScan) ExpectedOutputCardinality() uint64 { return uint64(len(f.rows)) }

func TestNestedLoopJoinCartesian(t *testing.T) {
	require := require.New(t)
	l, r := &rts.Register{}, &rts.Register{}
	left := &fixedScan{regs: []*rts.Register{l}, rows: [][]uint64{{1}, {2}}}
	right := &fixedScan{regs: []*rts.Register{r}, rows: [][]uint64{{10}, {20}, {30}}}

	j := NewNestedLoopJoin(left, right, 6)
	require.NoError(j.Open())
	defer j.Close()

	var pairs [][2]uint64
	for {
		more, err := j.Next()
		require.NoError(err)
		if !more {
			break
		}
		pairs = append(pairs, [2]uint64{l.Value, r.Value})
	}
	require.Equal([][2]uint64{{1, 10}, {1, 20}, {1, 30}, {2, 10}, {2, 20}, {2, 30}}, pairs)
}

func TestMergeJoinMatchesOnKey(t *testing.T) {
	require := require.New(t)
	lk, lt := &rts.Register{}, &rts.Register{}
	rk, rt_ := &rts.Register{}, &rts.Register{}

	left := &fixedScan{regs: []*rts.Register{lk, lt}, rows: [][]uint64{{1, 100}, {2, 200}}}
	right := &fixedScan{regs: []*rts.Register{rk, rt_}, rows: [][]uint64{{1, 999}, {3, 888}}}

	j := NewMergeJoin(left, lk, []*rts.Register{lt}, right, rk, []*rts.Register{rt_}, false, false, 2)
	require.NoError(j.Open())
	defer j.Close()

	more, err := j.Next()
	require.NoError(err)
	require.True(more)
	require.Equal(uint64(1), lk.Value)
	require.Equal(uint64(999), rt_.Value)

	more, err = j.Next()
	require.NoError(err)
	require.False(more, "key 2 has no right-side match and LeftOptional is false")
}

func TestMergeJoinOptionalEmitsNullTail(t *testing.T) {
	require := require.New(t)
	lk := &rts.Register{}
	rk, rt_ := &rts.Register{}, &rts.Register{}

	left := &fixedScan{regs: []*rts.Register{lk}, rows: [][]uint64{{1}, {2}}}
	right := &fixedScan{regs: []*rts.Register{rk, rt_}, rows: [][]uint64{{1, 999}}}

	j := NewMergeJoin(left, lk, nil, right, rk, []*rts.Register{rt_}, true, false, 2)
	require.NoError(j.Open())
	defer j.Close()

	more, err := j.Next()
	require.NoError(err)
	require.True(more)
	require.False(rt_.Null)
	require.Equal(uint64(999), rt_.Value)

	more, err = j.Next()
	require.NoError(err)
	require.True(more, "LeftOptional keeps the unmatched left row")
	require.True(rt_.Null)

	more, err = j.Next()
	require.NoError(err)
	require.False(more)
}

func TestHashJoinSameSemanticsAsMergeJoin(t *testing.T) {
	require := require.New(t)
	lk := &rts.Register{}
	rk, rt_ := &rts.Register{}, &rts.Register{}

	left := &fixedScan{regs: []*rts.Register{lk}, rows: [][]uint64{{1}, {2}}}
	right := &fixedScan{regs: []*rts.Register{rk, rt_}, rows: [][]uint64{{1, 42}, {2, 43}}}

	j := NewHashJoin(left, lk, nil, right, rk, []*rts.Register{rt_}, 1.0, 1.0, 2, false, false, 0)
	require.NoError(j.Open())
	defer j.Close()

	var got []uint64
	for {
		more, err := j.Next()
		require.NoError(err)
		if !more {
			break
		}
		got = append(got, rt_.Value)
	}
	require.Equal([]uint64{42, 43}, got)
}

func TestCartProdPairsEveryRow(t *testing.T) {
	require := require.New(t)
	l, r := &rts.Register{}, &rts.Register{}
	left := &fixedScan{regs: []*rts.Register{l}, rows: [][]uint64{{1}}}
	right := &fixedScan{regs: []*rts.Register{r}, rows: [][]uint64{{1}, {2}}}

	cp := NewCartProd(left, []*rts.Register{l}, right, []*rts.Register{r}, 2, false, false, 0)
	require.NoError(cp.Open())
	defer cp.Close()

	count := 0
	for {
		more, err := cp.Next()
		require.NoError(err)
		if !more {
			break
		}
		count++
	}
	require.Equal(2, count)
}
