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

// Package sparql holds the aggregate evaluator (§4.I, component I):
// the runtime helper the Aggregate & Group-By Compiler (cts/codegen)
// wires an rts/operator.AggrFunctions against, grounded on
// original_source/src/trident/sparql/aggrhandler.cpp.
package sparql

import (
	"math"
	"strconv"

	"github.com/mitchellh/hashstructure"
	"github.com/spf13/cast"

	"github.com/WDPS-Team/trident/cts/infra"
	"github.com/WDPS-Team/trident/rts"
	"github.com/WDPS-Team/trident/rts/operator"
)

// funcCall is one (function, input-variable) registration — aggrhandler.cpp's
// FunctCall. Its accumulator state is reset by AggregateHandler.StartUpdate
// at every group boundary and read back by AggregateHandler.OutputKind/
// OutputID/OutputNumber once AggregateHandler.StopUpdate has run.
type funcCall struct {
	spec infra.FunctCallSpec

	intAcc    int64
	decAcc    float64
	useInt    bool
	count     int64
	haveValue bool

	// inputBit is this call's bit in AggregateHandler's inputmask (the var
	// slot spec.InputVar was assigned), outputMask the OR of every output
	// variable's bit this call feeds (aggrhandler.cpp's call.inputmask /
	// call.outputmask). finished guards against StopUpdate's fixed-point
	// loop calling finish() on the same call twice in one group.
	inputBit   uint64
	outputMask uint64
	finished   bool
}

func newFuncCall(spec infra.FunctCallSpec) *funcCall {
	fc := &funcCall{spec: spec}
	fc.reset()
	return fc
}

func (fc *funcCall) reset() {
	// arg1_bool: the original never explicitly initializes this int-mode
	// flag in reset()/prepare(); this reimplementation does, to true
	// (Open Question 4).
	fc.useInt = true
	fc.count = 0
	fc.haveValue = false
	fc.finished = false
	switch fc.spec.Function {
	case infra.AggrMin:
		fc.intAcc = math.MaxInt64
		fc.decAcc = math.MaxFloat64
	case infra.AggrMax:
		fc.intAcc = math.MinInt64
		fc.decAcc = -math.MaxFloat64
	default:
		fc.intAcc = 0
		fc.decAcc = 0
	}
}

// promote converts the accumulator from int to decimal mode on first
// non-integral input, the int->dec promotion rule SUM/MIN/MAX share.
// AVG always sums into decAcc, so update never promotes it.
func (fc *funcCall) promote() {
	if fc.useInt {
		fc.decAcc = float64(fc.intAcc)
		fc.useInt = false
	}
}

func (fc *funcCall) update(reg *rts.Register) error {
	switch fc.spec.Function {
	case infra.AggrCount:
		if !reg.Null {
			fc.intAcc++
		}
		return nil
	case infra.AggrSum, infra.AggrAvg, infra.AggrMin, infra.AggrMax:
		if reg.Null {
			return nil
		}
		num := cast.ToFloat64(reg.Value)
		if reg.IsNumber {
			num = reg.Num
		}
		if fc.useInt && num != math.Trunc(num) && fc.spec.Function != infra.AggrAvg {
			fc.promote()
		}
		switch fc.spec.Function {
		case infra.AggrSum:
			if fc.useInt {
				fc.intAcc += int64(num)
			} else {
				fc.decAcc += num
			}
		case infra.AggrAvg:
			fc.decAcc += num
			fc.count++
		case infra.AggrMin:
			if fc.useInt {
				if int64(num) < fc.intAcc {
					fc.intAcc = int64(num)
				}
			} else if num < fc.decAcc {
				fc.decAcc = num
			}
		case infra.AggrMax:
			if fc.useInt {
				if int64(num) > fc.intAcc {
					fc.intAcc = int64(num)
				}
			} else if num > fc.decAcc {
				fc.decAcc = num
			}
		}
		fc.haveValue = true
		return nil
	default:
		return rts.ErrNotImplementedAggregate.New(functionName(fc.spec.Function))
	}
}

func (fc *funcCall) finish() {
	if fc.spec.Function == infra.AggrAvg {
		fc.useInt = false
		if fc.count == 0 {
			fc.decAcc = 0
		} else {
			fc.decAcc = fc.decAcc / float64(fc.count)
		}
	}
}

func (fc *funcCall) outputsNull() bool {
	switch fc.spec.Function {
	case infra.AggrMin, infra.AggrMax:
		return !fc.haveValue
	default:
		return false
	}
}

// outputRegister snapshots this call's finished value into a transient
// register, the form StopUpdate's fixed-point loop feeds into a downstream
// call whose InputVar is this call's OutputVar (a chained aggregate).
func (fc *funcCall) outputRegister() *rts.Register {
	if fc.outputsNull() {
		return &rts.Register{Null: true}
	}
	if fc.useInt {
		return &rts.Register{Value: uint64(fc.intAcc)}
	}
	return &rts.Register{IsNumber: true, Num: fc.decAcc}
}

func functionName(f infra.AggregateFunc) string {
	switch f {
	case infra.AggrCount:
		return "COUNT"
	case infra.AggrSum:
		return "SUM"
	case infra.AggrAvg:
		return "AVG"
	case infra.AggrMin:
		return "MIN"
	case infra.AggrMax:
		return "MAX"
	case infra.AggrGroupConcat:
		return "GROUP_CONCAT"
	case infra.AggrSample:
		return "SAMPLE"
	default:
		return "?"
	}
}

// AggregateHandler implements operator.AggregateHandler (§6 "Consumed
// interfaces"). Multiple FunctCallSpec entries naming the same
// (function, input-variable) pair collapse onto one shared accumulator,
// mirroring aggrhandler.cpp's getNewOrExistingVar via a structural hash
// instead of a hand-rolled composite map key.
type AggregateHandler struct {
	calls    []*funcCall
	byInput  map[uint64][]*funcCall
	byOutput map[uint64]*funcCall

	// varBit assigns every variable this handler touches (as an input or
	// an output) a bit position, aggrhandler.cpp's varvalues slot. mask is
	// the running inputmask: the OR of every bit UpdateVar has touched
	// since the last StartUpdate, which StopUpdate drains to a fixed point.
	varBit map[uint64]uint64
	mask   uint64
}

// NewAggregateHandler builds a handler from the query graph's aggregate
// descriptor. It fails fast (§7 "Not-implemented aggregate") for
// GROUP_CONCAT/SAMPLE rather than deferring the error to first use, and
// fails fast if the query tracks more than 64 distinct aggregate variables,
// the explicit ceiling the inputmask fixed-point loop in StopUpdate is
// built around (spec.md's documented 64-variable limit).
func NewAggregateHandler(desc *infra.AggregateDescriptor) (*AggregateHandler, error) {
	h := &AggregateHandler{
		byInput:  map[uint64][]*funcCall{},
		byOutput: map[uint64]*funcCall{},
		varBit:   map[uint64]uint64{},
	}
	seen := map[uint64]*funcCall{}
	for _, spec := range desc.Calls {
		if spec.Function == infra.AggrGroupConcat || spec.Function == infra.AggrSample {
			return nil, rts.ErrNotImplementedAggregate.New(functionName(spec.Function))
		}
		key, err := hashstructure.Hash(struct {
			Function infra.AggregateFunc
			Input    uint64
		}{spec.Function, spec.InputVar}, nil)
		if err != nil {
			return nil, err
		}
		fc, ok := seen[key]
		if !ok {
			fc = newFuncCall(spec)
			seen[key] = fc
			h.calls = append(h.calls, fc)
			h.byInput[spec.InputVar] = append(h.byInput[spec.InputVar], fc)
		}
		h.byOutput[spec.OutputVar] = fc

		if _, err := h.bitFor(spec.InputVar); err != nil {
			return nil, err
		}
		if _, err := h.bitFor(spec.OutputVar); err != nil {
			return nil, err
		}
	}
	for _, fc := range h.calls {
		fc.inputBit = h.varBit[fc.spec.InputVar]
	}
	for v, fc := range h.byOutput {
		fc.outputMask |= h.varBit[v]
	}
	return h, nil
}

// bitFor returns v's inputmask bit, assigning the next free one on first
// sight.
func (h *AggregateHandler) bitFor(v uint64) (uint64, error) {
	if b, ok := h.varBit[v]; ok {
		return b, nil
	}
	if len(h.varBit) >= 64 {
		return 0, rts.ErrTooManyAggregateVars.New(functionNameVar(v))
	}
	b := uint64(1) << uint(len(h.varBit))
	h.varBit[v] = b
	return b, nil
}

func functionNameVar(v uint64) string {
	return "variable " + strconv.FormatUint(v, 10)
}

func (h *AggregateHandler) StartUpdate() {
	h.mask = 0
	for _, fc := range h.calls {
		fc.reset()
	}
}

func (h *AggregateHandler) UpdateVar(v uint64, reg *rts.Register) error {
	h.mask |= h.varBit[v]
	for _, fc := range h.byInput[v] {
		if err := fc.update(reg); err != nil {
			return err
		}
	}
	return nil
}

// StopUpdate drains the inputmask to a fixed point (aggrhandler.cpp's
// stopUpdate do-while): every call whose input variable was touched this
// group gets finished, and if a finished call's output variable is itself
// another call's input variable (a chained aggregate), that value is fed
// into the downstream call before it is finished too. The loop runs at
// most len(h.calls)+1 rounds, which is enough to drain any acyclic chain
// across the tracked calls and bounds the "no infinite loop" requirement.
func (h *AggregateHandler) StopUpdate() error {
	mask := h.mask
	rounds := len(h.calls) + 1
	for mask != 0 && rounds > 0 {
		rounds--
		var next uint64
		for _, fc := range h.calls {
			if fc.finished || fc.inputBit&mask == 0 {
				continue
			}
			fc.finish()
			fc.finished = true
			next |= fc.outputMask
		}
		if next == 0 {
			break
		}
		for v, fc := range h.byOutput {
			bit := h.varBit[v]
			if bit == 0 || next&bit == 0 || !fc.finished {
				continue
			}
			out := fc.outputRegister()
			for _, dst := range h.byInput[v] {
				if dst.finished {
					continue
				}
				if err := dst.update(out); err != nil {
					return err
				}
			}
		}
		mask = next
	}
	return nil
}

func (h *AggregateHandler) InputVars() []uint64 {
	vars := make([]uint64, 0, len(h.byInput))
	for v := range h.byInput {
		vars = append(vars, v)
	}
	return vars
}

func (h *AggregateHandler) OutputVars() []uint64 {
	vars := make([]uint64, 0, len(h.byOutput))
	for v := range h.byOutput {
		vars = append(vars, v)
	}
	return vars
}

func (h *AggregateHandler) OutputKind(v uint64) operator.Kind {
	fc, ok := h.byOutput[v]
	if !ok || fc.outputsNull() {
		return operator.KindNull
	}
	if fc.useInt {
		return operator.KindID
	}
	return operator.KindNumber
}

func (h *AggregateHandler) OutputID(v uint64) uint64 {
	fc, ok := h.byOutput[v]
	if !ok {
		return 0
	}
	return uint64(fc.intAcc)
}

func (h *AggregateHandler) OutputNumber(v uint64) float64 {
	fc, ok := h.byOutput[v]
	if !ok {
		return 0
	}
	return fc.decAcc
}

// RequiresNumber reports whether v feeds a function that needs v's numeric
// reading rather than its raw ID (aggrhandler.cpp's requiresNumber/
// varvalues[...].requiresNumber: false for COUNT, true for SUM/AVG/MIN/MAX).
func (h *AggregateHandler) RequiresNumber(v uint64) bool {
	for _, fc := range h.byInput[v] {
		switch fc.spec.Function {
		case infra.AggrSum, infra.AggrAvg, infra.AggrMin, infra.AggrMax:
			return true
		}
	}
	return false
}

// Empty reports whether this handler tracks no aggregates at all.
func (h *AggregateHandler) Empty() bool { return len(h.calls) == 0 }

var _ operator.AggregateHandler = (*AggregateHandler)(nil)
