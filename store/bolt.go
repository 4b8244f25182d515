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
	"encoding/binary"

	"github.com/boltdb/bolt"

	"github.com/WDPS-Team/trident/rts"
)

// bucketNames indexes a bolt bucket per IndexOrder; big-endian uint64
// keys keep bolt's natural byte-lexicographic cursor order numeric.
var bucketNames = [6][]byte{
	[]byte("spo"), []byte("sop"), []byte("pso"),
	[]byte("pos"), []byte("osp"), []byte("ops"),
}

// BoltStore is a disk-backed rts.Database fixture: six covering indexes,
// one per IndexOrder, each a bolt bucket keyed by the 24-byte big-endian
// encoding of the ordered triple. Bolt's B+tree cursor already walks a
// bucket in key order, so scans need no in-memory sort the way
// MemoryStore's do.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if absent) a bolt database at path and
// populates every order's bucket with triples. Safe to call once per
// test; callers own closing the returned store.
func NewBoltStore(path string, triples []Triple) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, err
	}
	s := &BoltStore{db: db}
	if err := s.load(triples); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *BoltStore) load(triples []Triple) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for orderIdx, name := range bucketNames {
			bucket, err := tx.CreateBucketIfNotExists(name)
			if err != nil {
				return err
			}
			cols := orderColumns(rts.IndexOrder(orderIdx))
			for _, t := range triples {
				natural := [3]uint64{t.S, t.P, t.O}
				key := encodeKey([3]uint64{natural[cols[0]], natural[cols[1]], natural[cols[2]]})
				if err := bucket.Put(key, nil); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// Close releases the underlying bolt database handle.
func (s *BoltStore) Close() error { return s.db.Close() }

func encodeKey(ordered [3]uint64) []byte {
	buf := make([]byte, 24)
	binary.BigEndian.PutUint64(buf[0:8], ordered[0])
	binary.BigEndian.PutUint64(buf[8:16], ordered[1])
	binary.BigEndian.PutUint64(buf[16:24], ordered[2])
	return buf
}

func decodeKey(key []byte) [3]uint64 {
	return [3]uint64{
		binary.BigEndian.Uint64(key[0:8]),
		binary.BigEndian.Uint64(key[8:16]),
		binary.BigEndian.Uint64(key[16:24]),
	}
}

func (s *BoltStore) NewIndexScan(order rts.IndexOrder, subject, predicate, object rts.ScanBound, cardinality uint64) (rts.Operator, error) {
	return s.scan(order, [3]rts.ScanBound{subject, predicate, object}, 3, cardinality)
}

func (s *BoltStore) NewAggregatedIndexScan(order rts.IndexOrder, subject, predicate, object rts.ScanBound, cardinality uint64) (rts.Operator, error) {
	return s.scan(order, [3]rts.ScanBound{subject, predicate, object}, 2, cardinality)
}

func (s *BoltStore) NewFullyAggregatedIndexScan(order rts.IndexOrder, subject, predicate, object rts.ScanBound, cardinality uint64) (rts.Operator, error) {
	return s.scan(order, [3]rts.ScanBound{subject, predicate, object}, 1, cardinality)
}

// scan returns a rowsOperator whose load walks the bucket for order at
// every Open, not once here at construction time — matching MemoryStore's
// scan (see its doc comment) so a correlated register rebound between
// Opens (BuiltinNotExists, §4.F "NotExists") is honored on re-evaluation.
func (s *BoltStore) scan(order rts.IndexOrder, bounds [3]rts.ScanBound, materialized int, cardinality uint64) (rts.Operator, error) {
	return &rowsOperator{
		order: order, bounds: bounds, materialized: materialized, cardinality: cardinality,
		load: func() ([][3]uint64, error) { return s.scanRows(order, bounds, materialized) },
	}, nil
}

func (s *BoltStore) scanRows(order rts.IndexOrder, bounds [3]rts.ScanBound, materialized int) ([][3]uint64, error) {
	cols := orderColumns(order)
	var rows [][3]uint64
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketNames[int(order)])
		if bucket == nil {
			return nil
		}
		cursor := bucket.Cursor()
		var last [3]uint64
		haveLast := false
		for key, _ := cursor.First(); key != nil; key, _ = cursor.Next() {
			ordered := decodeKey(key)
			match := true
			for i := 0; i < materialized; i++ {
				b := bounds[cols[i]]
				if b.Const && ordered[i] != b.Reg.Value {
					match = false
					break
				}
			}
			if !match {
				continue
			}
			if materialized < 3 && haveLast && samePrefix(last, ordered, materialized) {
				continue
			}
			rows = append(rows, ordered)
			last, haveLast = ordered, true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

var _ rts.Database = (*BoltStore)(nil)
