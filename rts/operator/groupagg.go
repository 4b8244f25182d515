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

// GroupBy buckets Input rows by Keys so that AggrFunctions, stacked on
// top, sees contiguous runs of equal group keys (§4.G item 2). It does
// not itself aggregate anything; Distinct additionally collapses rows
// that share the same Keys values down to one, which is what backs
// COUNT(DISTINCT ...) at the AggrFunctions level above it.
type GroupBy struct {
	Input       rts.Operator
	Keys        []*rts.Register
	Distinct    bool
	cardinality uint64

	order  []string
	groups map[string][]int // group key -> indices into buffered rows, in arrival order
	rows   []groupKeySnapshot
	gi, ri int
}

type groupKeySnapshot struct {
	val  []uint64
	null []bool
}

func NewGroupBy(input rts.Operator, keys []*rts.Register, distinct bool, cardinality uint64) *GroupBy {
	return &GroupBy{Input: input, Keys: keys, Distinct: distinct, cardinality: cardinality}
}

func (g *GroupBy) Open() error {
	if err := g.Input.Open(); err != nil {
		return err
	}
	g.groups = make(map[string][]int)
	g.order = nil
	g.rows = nil
	seen := make(map[string]bool)
	for {
		more, err := g.Input.Next()
		if err != nil {
			g.Input.Close()
			return err
		}
		if !more {
			break
		}
		key, _ := rowKey(g.Keys)
		if g.Distinct {
			if seen[key] {
				continue
			}
			seen[key] = true
		}
		if _, ok := g.groups[key]; !ok {
			g.order = append(g.order, key)
		}
		snap := groupKeySnapshot{val: make([]uint64, len(g.Keys)), null: make([]bool, len(g.Keys))}
		for i, k := range g.Keys {
			snap.val[i], snap.null[i] = k.Value, k.Null
		}
		idx := len(g.rows)
		g.rows = append(g.rows, snap)
		g.groups[key] = append(g.groups[key], idx)
	}
	if err := g.Input.Close(); err != nil {
		return err
	}
	g.gi, g.ri = 0, 0
	return nil
}

func (g *GroupBy) Next() (bool, error) {
	for g.gi < len(g.order) {
		indices := g.groups[g.order[g.gi]]
		if g.ri >= len(indices) {
			g.gi++
			g.ri = 0
			continue
		}
		snap := g.rows[indices[g.ri]]
		g.ri++
		for i, k := range g.Keys {
			k.Value, k.Null = snap.val[i], snap.null[i]
		}
		return true, nil
	}
	return false, nil
}

func (g *GroupBy) Close() error { return nil }

func (g *GroupBy) ExpectedOutputCardinality() uint64 { return g.cardinality }

// AggregateHandler is the runtime contract component G drives and
// component I implements (§4.G, §4.I, §6 "Consumed interfaces"). One
// UpdateVar call happens per input row per tracked input variable;
// StartUpdate/StopUpdate bracket one group.
type AggregateHandler interface {
	StartUpdate()
	UpdateVar(v uint64, reg *rts.Register) error
	StopUpdate() error
	InputVars() []uint64
	OutputVars() []uint64
	OutputKind(outputVar uint64) Kind
	OutputID(outputVar uint64) uint64
	OutputNumber(outputVar uint64) float64
	// RequiresNumber reports whether v feeds a function that needs the
	// numeric (float64) reading of its input register rather than the raw
	// ID (e.g. AVG, SUM, or an arithmetic expression over the value), so
	// UpdateVar can be driven off a coerced number instead of Value.
	RequiresNumber(v uint64) bool
}

// AggrFunctions drives Handler over Input's grouped rows, one output row
// per distinct run of GroupKeys values (§4.G item 1, scenario S4). It
// fully drains Input at Open because the runtime register tree gives no
// other way to know a group has ended without peeking at the next row.
type AggrFunctions struct {
	Input       rts.Operator
	GroupKeys   []*rts.Register
	Handler     AggregateHandler
	InputRegs   map[uint64]*rts.Register
	OutputRegs  map[uint64]*rts.Register
	cardinality uint64

	groupVal  [][]uint64
	groupNull [][]bool
	outVal    []map[uint64]uint64
	outNum    []map[uint64]float64
	outKind   []map[uint64]Kind
	pos       int
}

func NewAggrFunctions(input rts.Operator, groupKeys []*rts.Register, handler AggregateHandler, inputRegs, outputRegs map[uint64]*rts.Register, cardinality uint64) *AggrFunctions {
	return &AggrFunctions{
		Input: input, GroupKeys: groupKeys, Handler: handler,
		InputRegs: inputRegs, OutputRegs: outputRegs, cardinality: cardinality,
	}
}

func (a *AggrFunctions) Open() error {
	if err := a.Input.Open(); err != nil {
		return err
	}
	a.groupVal, a.groupNull, a.outVal, a.outNum, a.outKind = nil, nil, nil, nil, nil

	have := false
	var curKey string
	flush := func() error {
		if !have {
			return nil
		}
		if err := a.Handler.StopUpdate(); err != nil {
			return err
		}
		kinds := make(map[uint64]Kind)
		ids := make(map[uint64]uint64)
		nums := make(map[uint64]float64)
		for _, v := range a.Handler.OutputVars() {
			k := a.Handler.OutputKind(v)
			kinds[v] = k
			switch k {
			case KindID:
				ids[v] = a.Handler.OutputID(v)
			case KindNumber:
				nums[v] = a.Handler.OutputNumber(v)
			}
		}
		a.outKind = append(a.outKind, kinds)
		a.outVal = append(a.outVal, ids)
		a.outNum = append(a.outNum, nums)
		return nil
	}

	for {
		more, err := a.Input.Next()
		if err != nil {
			a.Input.Close()
			return err
		}
		if !more {
			break
		}
		key, _ := rowKey(a.GroupKeys)
		if !have || key != curKey {
			if err := flush(); err != nil {
				a.Input.Close()
				return err
			}
			have, curKey = true, key
			kv := make([]uint64, len(a.GroupKeys))
			kn := make([]bool, len(a.GroupKeys))
			for i, k := range a.GroupKeys {
				kv[i], kn[i] = k.Value, k.Null
			}
			a.groupVal = append(a.groupVal, kv)
			a.groupNull = append(a.groupNull, kn)
			a.Handler.StartUpdate()
		}
		for _, v := range a.Handler.InputVars() {
			reg, ok := a.InputRegs[v]
			if !ok {
				continue
			}
			if err := a.Handler.UpdateVar(v, reg); err != nil {
				a.Input.Close()
				return err
			}
		}
	}
	if err := flush(); err != nil {
		a.Input.Close()
		return err
	}
	a.pos = 0
	return a.Input.Close()
}

func (a *AggrFunctions) Next() (bool, error) {
	if a.pos >= len(a.groupVal) {
		return false, nil
	}
	i := a.pos
	a.pos++
	for gi, k := range a.GroupKeys {
		k.Value, k.Null = a.groupVal[i][gi], a.groupNull[i][gi]
	}
	for v, reg := range a.OutputRegs {
		reg.IsNumber = false
		switch a.outKind[i][v] {
		case KindNull:
			reg.Null = true
		case KindID:
			reg.Null = false
			reg.Value = a.outVal[i][v]
		case KindNumber:
			// Carry the decimal faithfully (AVG, a promoted SUM/MIN/MAX)
			// instead of truncating it into Value.
			reg.Null = false
			reg.IsNumber = true
			reg.Num = a.outNum[i][v]
		default:
			reg.Null = true
		}
	}
	return true, nil
}

func (a *AggrFunctions) Close() error { return nil }

func (a *AggrFunctions) ExpectedOutputCardinality() uint64 { return a.cardinality }
