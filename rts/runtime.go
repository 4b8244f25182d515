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

// Package rts holds the small set of runtime types the query compiler and
// the compiled operator tree share: registers, domain descriptions and the
// Database the scan operators are built against.
package rts

// Register is a single 64-bit value slot. The compiler assigns one to every
// triple-pattern position, table-function output, VALUES column and
// aggregate output; the compiled operator tree reads and writes registers
// in place rather than passing copies between operators.
type Register struct {
	id    int
	Value uint64
	// Num and IsNumber carry a decimal result (AVG, a promoted SUM/MIN/
	// MAX) faithfully: Value alone cannot hold a fraction, and an
	// aggregate output or arithmetic result that is a genuine decimal
	// sets IsNumber so readers know to consult Num instead of Value.
	Num      float64
	IsNumber bool
	// Null marks the register as currently unbound (SPARQL unbound
	// semantics); operators that produce a binding clear it, operators
	// that merely pass a register through leave it as found.
	Null   bool
	Domain *DomainDescription
}

// ID returns the slot index this register occupies in the Runtime.
func (r *Register) ID() int {
	return r.id
}

// DomainDescription is the shared value-domain attached to every register
// bound to the same query variable. The runtime uses it to pre-filter
// impossible join keys; registers with distinct domains can never compare
// equal during a join probe.
type DomainDescription struct {
	id int
}

// ID returns the index of this domain description in the Runtime.
func (d *DomainDescription) ID() int {
	return d.id
}

// Runtime owns the register pool and domain descriptions for one compiled
// query. It is allocated once per query and is not safe for concurrent use
// (§5: compilation and the compiled tree are single-threaded).
type Runtime struct {
	registers []Register
	domains   []DomainDescription
	db        Database
}

// NewRuntime creates a Runtime bound to db. Registers and domain
// descriptions are allocated later by the slot allocator via
// AllocateRegisters/AllocateDomainDescriptions.
func NewRuntime(db Database) *Runtime {
	return &Runtime{db: db}
}

// AllocateRegisters grows the register pool to exactly n registers,
// discarding any values previously held. The slot allocator calls this
// once, after computing the high-water mark of slot ids.
func (rt *Runtime) AllocateRegisters(n int) {
	rt.registers = make([]Register, n)
	for i := range rt.registers {
		rt.registers[i].id = i
	}
}

// GetRegister returns the register at slot i. i must be < RegisterCount().
func (rt *Runtime) GetRegister(i int) *Register {
	return &rt.registers[i]
}

// RegisterCount returns the number of registers currently allocated.
func (rt *Runtime) RegisterCount() int {
	return len(rt.registers)
}

// AllocateDomainDescriptions grows the domain-description pool to n
// entries, one per domain class with two or more member registers.
func (rt *Runtime) AllocateDomainDescriptions(n int) {
	rt.domains = make([]DomainDescription, n)
	for i := range rt.domains {
		rt.domains[i].id = i
	}
}

// GetDomainDescription returns the i-th domain description.
func (rt *Runtime) GetDomainDescription(i int) *DomainDescription {
	return &rt.domains[i]
}

// Database returns the triple store the compiled scans run against.
func (rt *Runtime) Database() Database {
	return rt.db
}
