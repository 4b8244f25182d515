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

// UnionArm maps one branch's register for a union variable onto the
// register the union operator publishes. Left and Right name the same
// logical variable but were very possibly allocated distinct registers
// by the two subplans' independent slot allocations.
type UnionArm struct {
	Left, Right *rts.Register
	Out         *rts.Register
}

// Union concatenates Left's rows followed by Right's rows, copying each
// arm's register into the shared Out register as it goes. The second
// (Right) operator is opened unconditionally at Open time, even though
// its rows are only pulled once Left is exhausted, so that both children
// observe the same Open/Close lifetime regardless of which one is ever
// drained.
type Union struct {
	Left, Right rts.Operator
	Arms        []UnionArm
	cardinality uint64

	leftDone bool
}

func NewUnion(left, right rts.Operator, arms []UnionArm, cardinality uint64) *Union {
	return &Union{Left: left, Right: right, Arms: arms, cardinality: cardinality}
}

func (u *Union) Open() error {
	if err := u.Left.Open(); err != nil {
		return err
	}
	return u.Right.Open()
}

func (u *Union) Next() (bool, error) {
	if !u.leftDone {
		more, err := u.Left.Next()
		if err != nil {
			return false, err
		}
		if more {
			for _, a := range u.Arms {
				a.Out.Value, a.Out.Null = a.Left.Value, a.Left.Null
			}
			return true, nil
		}
		u.leftDone = true
	}
	more, err := u.Right.Next()
	if err != nil {
		return false, err
	}
	if !more {
		return false, nil
	}
	for _, a := range u.Arms {
		a.Out.Value, a.Out.Null = a.Right.Value, a.Right.Null
	}
	return true, nil
}

func (u *Union) Close() error {
	errL := u.Left.Close()
	errR := u.Right.Close()
	if errL != nil {
		return errL
	}
	return errR
}

func (u *Union) ExpectedOutputCardinality() uint64 { return u.cardinality }

// MergeUnion is Union specialized for two children already sorted on the
// shared union key: it merges them in key order, still publishing through
// Arms like Union, but without requiring a downstream sort (§4.E.2).
type MergeUnion struct {
	Left, Right     rts.Operator
	LeftKey, RightKey *rts.Register
	Arms            []UnionArm
	cardinality     uint64

	leftHas, rightHas   bool
	leftPrimed, rightPrimed bool
}

func NewMergeUnion(left, right rts.Operator, leftKey, rightKey *rts.Register, arms []UnionArm, cardinality uint64) *MergeUnion {
	return &MergeUnion{Left: left, Right: right, LeftKey: leftKey, RightKey: rightKey, Arms: arms, cardinality: cardinality}
}

func (u *MergeUnion) Open() error {
	if err := u.Left.Open(); err != nil {
		return err
	}
	return u.Right.Open()
}

func (u *MergeUnion) advanceLeft() error {
	more, err := u.Left.Next()
	u.leftHas, u.leftPrimed = more, true
	return err
}

func (u *MergeUnion) advanceRight() error {
	more, err := u.Right.Next()
	u.rightHas, u.rightPrimed = more, true
	return err
}

func (u *MergeUnion) Next() (bool, error) {
	if !u.leftPrimed {
		if err := u.advanceLeft(); err != nil {
			return false, err
		}
	}
	if !u.rightPrimed {
		if err := u.advanceRight(); err != nil {
			return false, err
		}
	}
	switch {
	case !u.leftHas && !u.rightHas:
		return false, nil
	case !u.rightHas || (u.leftHas && u.LeftKey.Value <= u.RightKey.Value):
		for _, a := range u.Arms {
			a.Out.Value, a.Out.Null = a.Left.Value, a.Left.Null
		}
		if err := u.advanceLeft(); err != nil {
			return false, err
		}
		return true, nil
	default:
		for _, a := range u.Arms {
			a.Out.Value, a.Out.Null = a.Right.Value, a.Right.Null
		}
		if err := u.advanceRight(); err != nil {
			return false, err
		}
		return true, nil
	}
}

func (u *MergeUnion) Close() error {
	errL := u.Left.Close()
	errR := u.Right.Close()
	if errL != nil {
		return errL
	}
	return errR
}

func (u *MergeUnion) ExpectedOutputCardinality() uint64 { return u.cardinality }

// SetMinus emits every Left row for which no Right row agrees on every
// register named in SharedLeft/SharedRight (the MINUS clause's shared
// variables, §4.E.3). A Left row whose shared registers are all Null
// never matches anything and always passes through, matching the
// reference implementation's domain-compatibility short circuit.
type SetMinus struct {
	Left, Right               rts.Operator
	SharedLeft, SharedRight   []*rts.Register
	cardinality               uint64

	seen map[string]bool
}

func NewSetMinus(left, right rts.Operator, sharedLeft, sharedRight []*rts.Register, cardinality uint64) *SetMinus {
	return &SetMinus{Left: left, Right: right, SharedLeft: sharedLeft, SharedRight: sharedRight, cardinality: cardinality}
}

func rowKey(regs []*rts.Register) (string, bool) {
	allNull := true
	b := make([]byte, 0, 9*len(regs))
	for _, r := range regs {
		if !r.Null {
			allNull = false
		}
		b = append(b, boolByte(r.Null))
		v := r.Value
		for i := 0; i < 8; i++ {
			b = append(b, byte(v))
			v >>= 8
		}
	}
	return string(b), allNull
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func (m *SetMinus) Open() error {
	if err := m.Right.Open(); err != nil {
		return err
	}
	m.seen = make(map[string]bool)
	for {
		more, err := m.Right.Next()
		if err != nil {
			m.Right.Close()
			return err
		}
		if !more {
			break
		}
		key, _ := rowKey(m.SharedRight)
		m.seen[key] = true
	}
	if err := m.Right.Close(); err != nil {
		return err
	}
	return m.Left.Open()
}

func (m *SetMinus) Next() (bool, error) {
	for {
		more, err := m.Left.Next()
		if err != nil {
			return false, err
		}
		if !more {
			return false, nil
		}
		key, allNull := rowKey(m.SharedLeft)
		if allNull || !m.seen[key] {
			return true, nil
		}
	}
}

func (m *SetMinus) Close() error { return m.Left.Close() }

func (m *SetMinus) ExpectedOutputCardinality() uint64 { return m.cardinality }

// HashGroupify collapses duplicate rows produced under
// DISTINCT/REDUCED into a single row, keyed on Keys (§4.H, dupl
// handling). It buffers every distinct key seen for the lifetime of the
// operator rather than only the immediately preceding row, matching the
// original's full-hash-table grouping rather than a sort-adjacent dedup.
type HashGroupify struct {
	Input       rts.Operator
	Keys        []*rts.Register
	cardinality uint64

	seen map[string]bool
}

func NewHashGroupify(input rts.Operator, keys []*rts.Register, cardinality uint64) *HashGroupify {
	return &HashGroupify{Input: input, Keys: keys, cardinality: cardinality}
}

func (g *HashGroupify) Open() error {
	g.seen = make(map[string]bool)
	return g.Input.Open()
}

func (g *HashGroupify) Next() (bool, error) {
	for {
		more, err := g.Input.Next()
		if err != nil {
			return false, err
		}
		if !more {
			return false, nil
		}
		key, _ := rowKey(g.Keys)
		if !g.seen[key] {
			g.seen[key] = true
			return true, nil
		}
	}
}

func (g *HashGroupify) Close() error { return g.Input.Close() }

func (g *HashGroupify) ExpectedOutputCardinality() uint64 { return g.cardinality }
