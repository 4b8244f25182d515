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
	"sort"

	"github.com/WDPS-Team/trident/rts"
)

// DuplLimit implements OFFSET/LIMIT (§4.H "Sort/Limit wrapping"): it
// drops the first Skip rows and then passes through at most Limit rows.
// A negative Limit means unbounded.
type DuplLimit struct {
	Input       rts.Operator
	Skip, Limit int64
	cardinality uint64

	skipped, emitted int64
}

func NewDuplLimit(input rts.Operator, skip, limit int64, cardinality uint64) *DuplLimit {
	return &DuplLimit{Input: input, Skip: skip, Limit: limit, cardinality: cardinality}
}

func (d *DuplLimit) Open() error { return d.Input.Open() }

func (d *DuplLimit) Next() (bool, error) {
	if d.Limit >= 0 && d.emitted >= d.Limit {
		return false, nil
	}
	for d.skipped < d.Skip {
		more, err := d.Input.Next()
		if err != nil || !more {
			return false, err
		}
		d.skipped++
	}
	more, err := d.Input.Next()
	if err != nil || !more {
		return false, err
	}
	d.emitted++
	return true, nil
}

func (d *DuplLimit) Close() error { return d.Input.Close() }

func (d *DuplLimit) ExpectedOutputCardinality() uint64 { return d.cardinality }

// SortKey names one ORDER BY position.
type SortKey struct {
	Reg        *rts.Register
	Descending bool
}

// Sort is a blocking operator: it drains Input at Open, orders the
// buffered rows by Keys, and replays Output on each Next (§4.H). Ties
// keep Input's relative order (stable sort), matching ORDER BY's usual
// SPARQL semantics when no further tie-break key is given.
type Sort struct {
	Input       rts.Operator
	Keys        []SortKey
	Output      []*rts.Register
	cardinality uint64

	keyRows [][]uint64
	keyNull [][]bool
	outRows [][]uint64
	outNull [][]bool
	order   []int
	pos     int
}

func NewSort(input rts.Operator, keys []SortKey, output []*rts.Register, cardinality uint64) *Sort {
	return &Sort{Input: input, Keys: keys, Output: output, cardinality: cardinality}
}

func (s *Sort) Open() error {
	if err := s.Input.Open(); err != nil {
		return err
	}
	s.keyRows, s.keyNull, s.outRows, s.outNull = nil, nil, nil, nil
	for {
		more, err := s.Input.Next()
		if err != nil {
			s.Input.Close()
			return err
		}
		if !more {
			break
		}
		kv := make([]uint64, len(s.Keys))
		kn := make([]bool, len(s.Keys))
		for i, k := range s.Keys {
			kv[i], kn[i] = k.Reg.Value, k.Reg.Null
		}
		ov := make([]uint64, len(s.Output))
		on := make([]bool, len(s.Output))
		for i, r := range s.Output {
			ov[i], on[i] = r.Value, r.Null
		}
		s.keyRows = append(s.keyRows, kv)
		s.keyNull = append(s.keyNull, kn)
		s.outRows = append(s.outRows, ov)
		s.outNull = append(s.outNull, on)
	}
	if err := s.Input.Close(); err != nil {
		return err
	}
	s.order = make([]int, len(s.outRows))
	for i := range s.order {
		s.order[i] = i
	}
	sort.SliceStable(s.order, func(a, b int) bool {
		ia, ib := s.order[a], s.order[b]
		for k := range s.Keys {
			an, bn := s.keyNull[ia][k], s.keyNull[ib][k]
			if an != bn {
				return an // unbound sorts first, matching SPARQL's ORDER BY
			}
			if an {
				continue
			}
			av, bv := s.keyRows[ia][k], s.keyRows[ib][k]
			if av == bv {
				continue
			}
			if s.Keys[k].Descending {
				return av > bv
			}
			return av < bv
		}
		return false
	})
	s.pos = 0
	return nil
}

func (s *Sort) Next() (bool, error) {
	if s.pos >= len(s.order) {
		return false, nil
	}
	idx := s.order[s.pos]
	s.pos++
	for i, r := range s.Output {
		r.Value, r.Null = s.outRows[idx][i], s.outNull[idx][i]
	}
	return true, nil
}

func (s *Sort) Close() error { return nil }

func (s *Sort) ExpectedOutputCardinality() uint64 { return s.cardinality }

// ResultsPrinter is the terminal operator at the root of every compiled
// plan (§4.H): it passes Input through unchanged, giving the caller a
// single well-known type to Open/pull/Close regardless of what the rest
// of the tree looks like. Formatting the bound registers into a wire
// result set is left to the caller, outside this module's scope.
type ResultsPrinter struct {
	Input rts.Operator
}

func NewResultsPrinter(input rts.Operator) *ResultsPrinter { return &ResultsPrinter{Input: input} }

func (p *ResultsPrinter) Open() error { return p.Input.Open() }

func (p *ResultsPrinter) Next() (bool, error) { return p.Input.Next() }

func (p *ResultsPrinter) Close() error { return p.Input.Close() }

func (p *ResultsPrinter) ExpectedOutputCardinality() uint64 {
	return p.Input.ExpectedOutputCardinality()
}

// SingletonScan produces exactly one empty row, the base case for a
// query whose body is only constants or BIND expressions (§4.C).
type SingletonScan struct {
	done bool
}

func NewSingletonScan() *SingletonScan { return &SingletonScan{} }

func (s *SingletonScan) Open() error { s.done = false; return nil }

func (s *SingletonScan) Next() (bool, error) {
	if s.done {
		return false, nil
	}
	s.done = true
	return true, nil
}

func (s *SingletonScan) Close() error { return nil }

func (s *SingletonScan) ExpectedOutputCardinality() uint64 { return 1 }

// EmptyScan produces no rows at all, used when the optimizer proves a
// subplan is unsatisfiable at compile time (§4.C).
type EmptyScan struct{}

func NewEmptyScan() *EmptyScan { return &EmptyScan{} }

func (EmptyScan) Open() error                       { return nil }
func (EmptyScan) Next() (bool, error)                { return false, nil }
func (EmptyScan) Close() error                      { return nil }
func (EmptyScan) ExpectedOutputCardinality() uint64 { return 0 }

// ValuesScan replays a literal VALUES clause (§3 "ValuesNode"), writing
// one buffered row per Next into Regs.
type ValuesScan struct {
	Regs []*rts.Register
	Rows [][]uint64
	Nuls [][]bool

	pos int
}

func NewValuesScan(regs []*rts.Register, rows [][]uint64, nuls [][]bool) *ValuesScan {
	return &ValuesScan{Regs: regs, Rows: rows, Nuls: nuls}
}

func (v *ValuesScan) Open() error { v.pos = 0; return nil }

func (v *ValuesScan) Next() (bool, error) {
	if v.pos >= len(v.Rows) {
		return false, nil
	}
	row, nul := v.Rows[v.pos], v.Nuls[v.pos]
	v.pos++
	for i, r := range v.Regs {
		r.Value, r.Null = row[i], nul[i]
	}
	return true, nil
}

func (v *ValuesScan) Close() error { return nil }

func (v *ValuesScan) ExpectedOutputCardinality() uint64 { return uint64(len(v.Rows)) }
