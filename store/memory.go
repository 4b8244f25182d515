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

// Package store holds fixture rts.Database implementations: an
// in-memory one for unit tests and a boltdb-backed one for tests that
// want the scans to run against an actual on-disk index, mirroring how
// sql/memory backs dolthub/go-mysql-server's engine tests.
package store

import (
	"sort"

	"github.com/WDPS-Team/trident/rts"
)

// Triple is one (subject, predicate, object) dictionary-id row.
type Triple struct {
	S, P, O uint64
}

// orderColumns maps an index order to which of (subject=0, predicate=1,
// object=2) each successive ordered column represents — kept local to
// this package rather than shared with cts/codegen, since a store
// fixture has no business depending on the compiler.
func orderColumns(order rts.IndexOrder) [3]int {
	switch order {
	case rts.OrderSPO:
		return [3]int{0, 1, 2}
	case rts.OrderSOP:
		return [3]int{0, 2, 1}
	case rts.OrderPSO:
		return [3]int{1, 0, 2}
	case rts.OrderPOS:
		return [3]int{1, 2, 0}
	case rts.OrderOSP:
		return [3]int{2, 0, 1}
	case rts.OrderOPS:
		return [3]int{2, 1, 0}
	default:
		return [3]int{0, 1, 2}
	}
}

// MemoryStore is an in-memory rts.Database fixture: every scan sorts and
// filters a copy of the triple set on demand. Fine for the query sizes
// unit tests exercise; not meant as a production index.
type MemoryStore struct {
	triples []Triple
}

// NewMemoryStore copies triples into a fresh store.
func NewMemoryStore(triples []Triple) *MemoryStore {
	cp := make([]Triple, len(triples))
	copy(cp, triples)
	return &MemoryStore{triples: cp}
}

func (m *MemoryStore) NewIndexScan(order rts.IndexOrder, subject, predicate, object rts.ScanBound, cardinality uint64) (rts.Operator, error) {
	return m.scan(order, [3]rts.ScanBound{subject, predicate, object}, 3, cardinality), nil
}

func (m *MemoryStore) NewAggregatedIndexScan(order rts.IndexOrder, subject, predicate, object rts.ScanBound, cardinality uint64) (rts.Operator, error) {
	return m.scan(order, [3]rts.ScanBound{subject, predicate, object}, 2, cardinality), nil
}

func (m *MemoryStore) NewFullyAggregatedIndexScan(order rts.IndexOrder, subject, predicate, object rts.ScanBound, cardinality uint64) (rts.Operator, error) {
	return m.scan(order, [3]rts.ScanBound{subject, predicate, object}, 1, cardinality), nil
}

// scan returns a rowsOperator whose row set is computed lazily at Open,
// not here at construction time: bounds[i].Reg for a Const position may
// be a correlation register a caller (e.g. BuiltinNotExists, §4.F
// "NotExists") rewrites between Opens, and the scan must see whatever
// value is current at Open, not whatever was there when the plan was
// compiled.
func (m *MemoryStore) scan(order rts.IndexOrder, bounds [3]rts.ScanBound, materialized int, cardinality uint64) rts.Operator {
	return &rowsOperator{
		order: order, bounds: bounds, materialized: materialized, cardinality: cardinality,
		load: func() ([][3]uint64, error) { return m.scanRows(order, bounds, materialized), nil },
	}
}

func (m *MemoryStore) scanRows(order rts.IndexOrder, bounds [3]rts.ScanBound, materialized int) [][3]uint64 {
	cols := orderColumns(order)
	rows := make([][3]uint64, 0, len(m.triples))
	for _, t := range m.triples {
		natural := [3]uint64{t.S, t.P, t.O}
		ordered := [3]uint64{natural[cols[0]], natural[cols[1]], natural[cols[2]]}
		match := true
		for i := 0; i < materialized; i++ {
			b := bounds[cols[i]]
			if b.Const && ordered[i] != b.Reg.Value {
				match = false
				break
			}
		}
		if match {
			rows = append(rows, ordered)
		}
	}
	sort.Slice(rows, func(a, b int) bool {
		for i := 0; i < materialized; i++ {
			if rows[a][i] != rows[b][i] {
				return rows[a][i] < rows[b][i]
			}
		}
		return false
	})
	if materialized < 3 {
		rows = dedupPrefix(rows, materialized)
	}
	return rows
}

func dedupPrefix(rows [][3]uint64, width int) [][3]uint64 {
	out := rows[:0]
	var last [3]uint64
	haveLast := false
	for _, r := range rows {
		if haveLast && samePrefix(last, r, width) {
			continue
		}
		out = append(out, r)
		last, haveLast = r, true
	}
	return out
}

func samePrefix(a, b [3]uint64, width int) bool {
	for i := 0; i < width; i++ {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// rowsOperator replays a filtered, sorted row set computed by load at
// Open, writing each materialized column into whichever register the
// scan builder bound it to (constant positions are never written back).
// Both store fixtures share this type; only how load is built differs.
type rowsOperator struct {
	order        rts.IndexOrder
	bounds       [3]rts.ScanBound
	materialized int
	cardinality  uint64
	load         func() ([][3]uint64, error)

	rows [][3]uint64
	pos  int
}

func (r *rowsOperator) Open() error {
	rows, err := r.load()
	if err != nil {
		return err
	}
	r.rows = rows
	r.pos = 0
	return nil
}

func (r *rowsOperator) Next() (bool, error) {
	if r.pos >= len(r.rows) {
		return false, nil
	}
	row := r.rows[r.pos]
	r.pos++
	cols := orderColumns(r.order)
	for i := 0; i < r.materialized; i++ {
		b := r.bounds[cols[i]]
		if b.Reg != nil && !b.Const {
			b.Reg.Value, b.Reg.Null = row[i], false
		}
	}
	return true, nil
}

func (r *rowsOperator) Close() error { return nil }

func (r *rowsOperator) ExpectedOutputCardinality() uint64 { return r.cardinality }

var _ rts.Database = (*MemoryStore)(nil)
