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

package rts

import "gopkg.in/src-d/go-errors.v1"

// Error kinds raised by the compiler (§7 Error Handling Design). All of
// them abort the whole compilation; there is no partial-tree recovery.
var (
	// ErrUnsupported wraps a feature the compiler deliberately does not
	// implement: NOT EXISTS with neither a subquery nor a subpattern,
	// MINUS without a right subplan, an unregistered table function.
	ErrUnsupported = errors.NewKind("unsupported: %s")

	// ErrInvariantViolation signals a bug in the upstream optimizer: an
	// unrecognized filter expression node, an unknown plan op kind,
	// a MergeJoin with an empty or out-of-set join variable.
	ErrInvariantViolation = errors.NewKind("invariant violation: %s")

	// ErrNotImplementedAggregate is raised for GROUP_CONCAT and SAMPLE,
	// which aggrhandler.cpp explicitly leaves unimplemented.
	ErrNotImplementedAggregate = errors.NewKind("aggregate function not implemented: %s")

	// ErrTooManyAggregateVars is raised when a query tracks more distinct
	// aggregate input/output variables than fit in the 64-bit inputmask
	// aggrhandler.cpp's varvalues vector (and stopUpdate's fixed-point loop)
	// are built around.
	ErrTooManyAggregateVars = errors.NewKind("too many aggregate variables (max 64): %s")
)
