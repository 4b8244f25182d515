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

// NestedLoopJoin produces the Cartesian product of Left and Right; the
// join builder (§4.D.4) wraps it in a residual Selection when the logical
// join has shared variables.
type NestedLoopJoin struct {
	Left, Right rts.Operator
	cardinality uint64

	rightOpen bool
}

func NewNestedLoopJoin(left, right rts.Operator, cardinality uint64) *NestedLoopJoin {
	return &NestedLoopJoin{Left: left, Right: right, cardinality: cardinality}
}

func (j *NestedLoopJoin) Open() error { return j.Left.Open() }

func (j *NestedLoopJoin) Next() (bool, error) {
	for {
		if !j.rightOpen {
			more, err := j.Left.Next()
			if err != nil || !more {
				return false, err
			}
			if err := j.Right.Open(); err != nil {
				return false, err
			}
			j.rightOpen = true
		}
		more, err := j.Right.Next()
		if err != nil {
			return false, err
		}
		if more {
			return true, nil
		}
		if err := j.Right.Close(); err != nil {
			return false, err
		}
		j.rightOpen = false
	}
}

func (j *NestedLoopJoin) Close() error {
	if j.rightOpen {
		j.Right.Close()
	}
	return j.Left.Close()
}

func (j *NestedLoopJoin) ExpectedOutputCardinality() uint64 { return j.cardinality }

// CartProd is the degenerate join with no shared variables: every left
// row is paired with every right row and no residual selection is ever
// required (§4.D.7).
type CartProd struct {
	Left, Right                 rts.Operator
	LeftTail, RightTail          []*rts.Register
	LeftOptional, RightOptional bool
	Bitset                      int
	cardinality                 uint64

	inner *NestedLoopJoin
}

func NewCartProd(left rts.Operator, leftTail []*rts.Register, right rts.Operator, rightTail []*rts.Register, cardinality uint64, leftOptional, rightOptional bool, bitset int) *CartProd {
	return &CartProd{
		Left: left, Right: right,
		LeftTail: leftTail, RightTail: rightTail,
		LeftOptional: leftOptional, RightOptional: rightOptional,
		Bitset: bitset, cardinality: cardinality,
		inner: NewNestedLoopJoin(left, right, cardinality),
	}
}

func (j *CartProd) Open() error                       { return j.inner.Open() }
func (j *CartProd) Next() (bool, error)                { return j.inner.Next() }
func (j *CartProd) Close() error                       { return j.inner.Close() }
func (j *CartProd) ExpectedOutputCardinality() uint64 { return j.cardinality }

// equiJoinBuckets drains right fully, grouping tail-register snapshots by
// the join key's value. MergeJoin and HashJoin share this: the compiler
// trusts the optimizer to hand MergeJoin pre-sorted children (§5), but
// bucketing by key produces identical results whether or not the input
// happens to be sorted, and keeps both operators' implementations small.
func equiJoinBuckets(right rts.Operator, rightKey *rts.Register, rightTail []*rts.Register) (map[uint64][][]uint64, error) {
	if err := right.Open(); err != nil {
		return nil, err
	}
	defer right.Close()
	buckets := make(map[uint64][][]uint64)
	for {
		more, err := right.Next()
		if err != nil {
			return nil, err
		}
		if !more {
			break
		}
		snap := make([]uint64, len(rightTail))
		for i, r := range rightTail {
			snap[i] = r.Value
		}
		buckets[rightKey.Value] = append(buckets[rightKey.Value], snap)
	}
	return buckets, nil
}

// MergeJoin is built when the plan names a single primary join variable
// (§4.D.5); any additional shared variables are enforced by a residual
// equality selection the join builder wraps around it.
type MergeJoin struct {
	Left                        rts.Operator
	LeftKey                     *rts.Register
	LeftTail                    []*rts.Register
	Right                       rts.Operator
	RightKey                    *rts.Register
	RightTail                   []*rts.Register
	LeftOptional, RightOptional bool
	cardinality                 uint64

	buckets    map[uint64][][]uint64
	bucket     [][]uint64
	bucketPos  int
}

func NewMergeJoin(left rts.Operator, leftKey *rts.Register, leftTail []*rts.Register, right rts.Operator, rightKey *rts.Register, rightTail []*rts.Register, leftOptional, rightOptional bool, cardinality uint64) *MergeJoin {
	return &MergeJoin{
		Left: left, LeftKey: leftKey, LeftTail: leftTail,
		Right: right, RightKey: rightKey, RightTail: rightTail,
		LeftOptional: leftOptional, RightOptional: rightOptional,
		cardinality: cardinality,
	}
}

func (j *MergeJoin) Open() error {
	buckets, err := equiJoinBuckets(j.Right, j.RightKey, j.RightTail)
	if err != nil {
		return err
	}
	j.buckets = buckets
	return j.Left.Open()
}

func (j *MergeJoin) Next() (bool, error) {
	for {
		if j.bucketPos < len(j.bucket) {
			snap := j.bucket[j.bucketPos]
			j.bucketPos++
			for i, r := range j.RightTail {
				r.Value, r.Null = snap[i], false
			}
			return true, nil
		}
		more, err := j.Left.Next()
		if err != nil {
			return false, err
		}
		if !more {
			return false, nil
		}
		j.bucket = j.buckets[j.LeftKey.Value]
		j.bucketPos = 0
		if len(j.bucket) == 0 {
			if j.LeftOptional {
				for _, r := range j.RightTail {
					r.Null = true
				}
				return true, nil
			}
			continue
		}
	}
}

func (j *MergeJoin) Close() error { return j.Left.Close() }

func (j *MergeJoin) ExpectedOutputCardinality() uint64 { return j.cardinality }

// HashJoin probes a hash table built over Right, keyed on whichever join
// variable the join builder picked (§4.D.6). Bitset records which of
// subject/predicate/object the join variable occupies in the right
// child's scan, mirroring CodeGen.cpp's findScan; the compiler computes
// it purely as a hash-probe specialization hint, it does not affect
// results.
type HashJoin struct {
	Left                        rts.Operator
	LeftKey                     *rts.Register
	LeftTail                    []*rts.Register
	Right                       rts.Operator
	RightKey                    *rts.Register
	RightTail                   []*rts.Register
	LeftCost, RightCost         float64
	LeftOptional, RightOptional bool
	Bitset                      int
	cardinality                 uint64

	buckets   map[uint64][][]uint64
	bucket    [][]uint64
	bucketPos int
}

func NewHashJoin(left rts.Operator, leftKey *rts.Register, leftTail []*rts.Register, right rts.Operator, rightKey *rts.Register, rightTail []*rts.Register, leftCost, rightCost float64, cardinality uint64, leftOptional, rightOptional bool, bitset int) *HashJoin {
	return &HashJoin{
		Left: left, LeftKey: leftKey, LeftTail: leftTail,
		Right: right, RightKey: rightKey, RightTail: rightTail,
		LeftCost: leftCost, RightCost: rightCost,
		LeftOptional: leftOptional, RightOptional: rightOptional,
		Bitset: bitset, cardinality: cardinality,
	}
}

func (j *HashJoin) Open() error {
	buckets, err := equiJoinBuckets(j.Right, j.RightKey, j.RightTail)
	if err != nil {
		return err
	}
	j.buckets = buckets
	return j.Left.Open()
}

func (j *HashJoin) Next() (bool, error) {
	for {
		if j.bucketPos < len(j.bucket) {
			snap := j.bucket[j.bucketPos]
			j.bucketPos++
			for i, r := range j.RightTail {
				r.Value, r.Null = snap[i], false
			}
			return true, nil
		}
		more, err := j.Left.Next()
		if err != nil {
			return false, err
		}
		if !more {
			return false, nil
		}
		j.bucket = j.buckets[j.LeftKey.Value]
		j.bucketPos = 0
		if len(j.bucket) == 0 {
			if j.LeftOptional {
				for _, r := range j.RightTail {
					r.Null = true
				}
				return true, nil
			}
			continue
		}
	}
}

func (j *HashJoin) Close() error { return j.Left.Close() }

func (j *HashJoin) ExpectedOutputCardinality() uint64 { return j.cardinality }
