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

import (
	"github.com/WDPS-Team/trident/cts/infra"
	"github.com/WDPS-Team/trident/rts"
)

// PrepareRuntime runs the Slot Allocator (§4.A) and then the
// Register/Domain Setup (§4.I): it allocates total+1 registers — the
// slot allocator's own highwater+1 "spare used by subquery projection
// fall-through", plus one further trailing register appended here as
// the "missing-binding fallback" used when a projected variable has no
// binding anywhere in the compiled tree. FallbackRegister returns that
// last register.
func PrepareRuntime(rt *rts.Runtime, q *infra.QueryGraph) (SlotMap, DomainClasses) {
	slotMap, classes, total := Allocate(q)
	rt.AllocateRegisters(total + 1)

	ndesc := 0
	for _, slots := range classes {
		if len(slots) >= 2 {
			ndesc++
		}
	}
	rt.AllocateDomainDescriptions(ndesc)
	di := 0
	for _, slots := range classes {
		if len(slots) < 2 {
			continue
		}
		dom := rt.GetDomainDescription(di)
		di++
		for _, s := range slots {
			rt.GetRegister(s).Domain = dom
		}
	}
	return slotMap, classes
}

// FallbackRegister returns the trailing always-unbound register §4.I
// reserves as the missing-binding fallback. rt must already have been
// prepared by PrepareRuntime.
func FallbackRegister(rt *rts.Runtime) *rts.Register {
	r := rt.GetRegister(rt.RegisterCount() - 1)
	r.Null = true
	return r
}
