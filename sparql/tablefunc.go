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

package sparql

import (
	"strings"

	"github.com/WDPS-Team/trident/rts"
	"github.com/WDPS-Team/trident/rts/operator"
)

// TableFunctionFactory builds a TableFunctionImpl bound to a particular
// call's already-resolved argument and output registers.
type TableFunctionFactory func(args, outputs []*rts.Register) (operator.TableFunctionImpl, error)

// tableFunctions is the extension-point registry CodeGen.cpp's
// translateTableFunction leaves to an external factory (it resolves
// QueryGraph::TableFunction.name but constructs the concrete
// TableFunction::Implementation elsewhere): this module ships one
// built-in, RANGE, and lets callers register their own before compiling
// any query that uses them.
var tableFunctions = map[string]TableFunctionFactory{
	"RANGE": newRangeTableFunction,
}

// RegisterTableFunction adds (or replaces) a named table function the
// compiler can bind an OpTableFunction plan node against.
func RegisterTableFunction(name string, factory TableFunctionFactory) {
	tableFunctions[strings.ToUpper(name)] = factory
}

// NewTableFunctionImpl resolves name against the registry and builds an
// implementation bound to args/outputs.
func NewTableFunctionImpl(name string, args, outputs []*rts.Register) (operator.TableFunctionImpl, error) {
	factory, ok := tableFunctions[strings.ToUpper(name)]
	if !ok {
		return nil, rts.ErrUnsupported.New("table function: " + name)
	}
	return factory(args, outputs)
}

// rangeTableFunction expands into the half-open integer interval
// [Args[0], Args[1]), one output row per value, written to Outputs[0].
// A null either bound produces zero rows rather than an error.
type rangeTableFunction struct {
	lo, hi *rts.Register
	out    *rts.Register

	cur, end uint64
}

func newRangeTableFunction(args, outputs []*rts.Register) (operator.TableFunctionImpl, error) {
	if len(args) != 2 || len(outputs) != 1 {
		return nil, rts.ErrInvariantViolation.New("RANGE takes two arguments and one output")
	}
	return &rangeTableFunction{lo: args[0], hi: args[1], out: outputs[0]}, nil
}

func (r *rangeTableFunction) Open() error {
	if r.lo.Null || r.hi.Null {
		r.cur, r.end = 0, 0
		return nil
	}
	r.cur, r.end = r.lo.Value, r.hi.Value
	return nil
}

func (r *rangeTableFunction) Next() (bool, error) {
	if r.cur >= r.end {
		return false, nil
	}
	r.out.Value, r.out.Null = r.cur, false
	r.cur++
	return true, nil
}

func (r *rangeTableFunction) Close() error { return nil }
