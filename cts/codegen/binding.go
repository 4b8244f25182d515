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

package codegen

import "github.com/WDPS-Team/trident/rts"

// Bindings is the three-layer view §4.B describes, minus the separate
// "projection" layer: Context holds read-only bindings inherited from
// an enclosing join (never re-emitted on lookup), Bound holds whatever
// the current subtree has materialized itself. Every recursive compile
// call returns a fresh Bindings value rather than mutating a shared map,
// matching §9's Design Notes guidance for this component.
type Bindings struct {
	Context map[uint64]*rts.Register
	Bound   map[uint64]*rts.Register
}

// NewBindings starts a fresh scope inheriting context.
func NewBindings(context map[uint64]*rts.Register) Bindings {
	return Bindings{Context: context, Bound: map[uint64]*rts.Register{}}
}

// Lookup checks Context first (a context hit means "already bound by an
// ancestor, do not re-emit"), then Bound.
func (b Bindings) Lookup(v uint64) (*rts.Register, bool) {
	if r, ok := b.Context[v]; ok {
		return r, true
	}
	if r, ok := b.Bound[v]; ok {
		return r, true
	}
	return nil, false
}

// InContext reports whether v is pre-bound by an enclosing scope.
func (b Bindings) InContext(v uint64) bool {
	_, ok := b.Context[v]
	return ok
}

// clone copies Bound so a caller can extend it without mutating the
// original binding's view.
func (b Bindings) clone() Bindings {
	nb := Bindings{Context: b.Context, Bound: make(map[uint64]*rts.Register, len(b.Bound))}
	for k, v := range b.Bound {
		nb.Bound[k] = v
	}
	return nb
}

// bind records a freshly materialized variable (scan output,
// table-function output, VALUES column, aggregate output).
func (b *Bindings) bind(v uint64, r *rts.Register) { b.Bound[v] = r }

// withContext extends Context with every variable currently bound,
// producing the context a child subtree should compile against.
func (b Bindings) withContext(extra map[uint64]*rts.Register) Bindings {
	ctx := make(map[uint64]*rts.Register, len(b.Context)+len(b.Bound)+len(extra))
	for k, v := range b.Context {
		ctx[k] = v
	}
	for k, v := range b.Bound {
		ctx[k] = v
	}
	for k, v := range extra {
		ctx[k] = v
	}
	return NewBindings(ctx)
}

// mergeBindings combines a join's two sibling bindings: the left
// register wins for variables present on both sides; a right-only
// variable is carried up only if projection requires it (§4.B "Merging
// two sibling bindings during a join").
func mergeBindings(left, right Bindings, projection map[uint64]bool) Bindings {
	out := left.clone()
	for v, r := range right.Bound {
		if _, ok := out.Bound[v]; ok {
			continue
		}
		if projection[v] {
			out.Bound[v] = r
		}
	}
	return out
}

// dropUnprojected removes every binding in b.Bound that projection does
// not require, used after FILTER compilation to discard bindings
// introduced solely for the filter's free variables (§4.F, last
// paragraph).
func dropUnprojected(b Bindings, projection map[uint64]bool) Bindings {
	out := Bindings{Context: b.Context, Bound: make(map[uint64]*rts.Register)}
	for v, r := range b.Bound {
		if projection[v] {
			out.Bound[v] = r
		}
	}
	return out
}

func varSet(vars []uint64) map[uint64]bool {
	out := make(map[uint64]bool, len(vars))
	for _, v := range vars {
		out[v] = true
	}
	return out
}

func unionVarSet(sets ...map[uint64]bool) map[uint64]bool {
	out := make(map[uint64]bool)
	for _, s := range sets {
		for v := range s {
			out[v] = true
		}
	}
	return out
}
