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

package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/WDPS-Team/trident/rts"
)

func drain(t *testing.T, op rts.Operator, regs []*rts.Register) [][]uint64 {
	t.Helper()
	require.NoError(t, op.Open())
	defer op.Close()
	var out [][]uint64
	for {
		more, err := op.Next()
		require.NoError(t, err)
		if !more {
			break
		}
		row := make([]uint64, len(regs))
		for i, r := range regs {
			row[i] = r.Value
		}
		out = append(out, row)
	}
	return out
}

func TestMemoryStoreIndexScanUnbound(t *testing.T) {
	require := require.New(t)
	s := NewMemoryStore([]Triple{
		{S: 1, P: 10, O: 100},
		{S: 2, P: 10, O: 200},
		{S: 1, P: 11, O: 300},
	})

	sReg, pReg, oReg := &rts.Register{}, &rts.Register{}, &rts.Register{}
	op, err := s.NewIndexScan(rts.OrderSPO,
		rts.ScanBound{Reg: sReg}, rts.ScanBound{Reg: pReg}, rts.ScanBound{Reg: oReg}, 3)
	require.NoError(err)

	rows := drain(t, op, []*rts.Register{sReg, pReg, oReg})
	require.Equal([][]uint64{{1, 10, 100}, {1, 11, 300}, {2, 10, 200}}, rows)
}

func TestMemoryStoreIndexScanConstantSubject(t *testing.T) {
	require := require.New(t)
	s := NewMemoryStore([]Triple{
		{S: 1, P: 10, O: 100},
		{S: 2, P: 10, O: 200},
		{S: 1, P: 11, O: 300},
	})

	sConst := &rts.Register{Value: 1}
	pReg, oReg := &rts.Register{}, &rts.Register{}
	op, err := s.NewIndexScan(rts.OrderSPO,
		rts.ScanBound{Const: true, Reg: sConst}, rts.ScanBound{Reg: pReg}, rts.ScanBound{Reg: oReg}, 2)
	require.NoError(err)

	rows := drain(t, op, []*rts.Register{pReg, oReg})
	require.Equal([][]uint64{{10, 100}, {11, 300}}, rows)
}

func TestMemoryStoreAggregatedIndexScanDedups(t *testing.T) {
	require := require.New(t)
	s := NewMemoryStore([]Triple{
		{S: 1, P: 10, O: 100},
		{S: 1, P: 10, O: 200},
		{S: 1, P: 11, O: 300},
		{S: 2, P: 12, O: 400},
	})

	sReg, pReg := &rts.Register{}, &rts.Register{}
	op, err := s.NewAggregatedIndexScan(rts.OrderSPO,
		rts.ScanBound{Reg: sReg}, rts.ScanBound{Reg: pReg}, rts.ScanBound{}, 3)
	require.NoError(err)

	rows := drain(t, op, []*rts.Register{sReg, pReg})
	require.Equal([][]uint64{{1, 10}, {1, 11}, {2, 12}}, rows)
}

func TestMemoryStoreFullyAggregatedIndexScan(t *testing.T) {
	require := require.New(t)
	s := NewMemoryStore([]Triple{
		{S: 1, P: 10, O: 100},
		{S: 1, P: 11, O: 200},
		{S: 2, P: 12, O: 300},
	})

	sReg := &rts.Register{}
	op, err := s.NewFullyAggregatedIndexScan(rts.OrderSPO,
		rts.ScanBound{Reg: sReg}, rts.ScanBound{}, rts.ScanBound{}, 2)
	require.NoError(err)

	rows := drain(t, op, []*rts.Register{sReg})
	require.Equal([][]uint64{{1}, {2}}, rows)
}

func TestMemoryStorePOSOrder(t *testing.T) {
	require := require.New(t)
	s := NewMemoryStore([]Triple{
		{S: 1, P: 10, O: 100},
		{S: 2, P: 5, O: 200},
	})

	pReg, oReg, sReg := &rts.Register{}, &rts.Register{}, &rts.Register{}
	op, err := s.NewIndexScan(rts.OrderPOS,
		rts.ScanBound{Reg: sReg}, rts.ScanBound{Reg: pReg}, rts.ScanBound{Reg: oReg}, 2)
	require.NoError(err)
	require.NoError(op.Open())
	defer op.Close()

	more, err := op.Next()
	require.NoError(err)
	require.True(more)
	require.Equal(uint64(5), pReg.Value)
	require.Equal(uint64(200), oReg.Value)
	require.Equal(uint64(2), sReg.Value)
}
