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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/WDPS-Team/trident/cts/infra"
	"github.com/WDPS-Team/trident/rts"
	"github.com/WDPS-Team/trident/rts/operator"
)

func TestAggregateHandlerAvgCarriesDecimal(t *testing.T) {
	require := require.New(t)
	const x, avg uint64 = 1, 2

	h, err := NewAggregateHandler(&infra.AggregateDescriptor{
		Calls: []infra.FunctCallSpec{{Function: infra.AggrAvg, InputVar: x, OutputVar: avg}},
	})
	require.NoError(err)

	h.StartUpdate()
	require.NoError(h.UpdateVar(x, &rts.Register{Value: 1}))
	require.NoError(h.UpdateVar(x, &rts.Register{Value: 2}))
	require.NoError(h.StopUpdate())

	require.Equal(operator.KindNumber, h.OutputKind(avg))
	require.Equal(1.5, h.OutputNumber(avg))
}

func TestAggregateHandlerRequiresNumber(t *testing.T) {
	require := require.New(t)
	const x, c, y, s uint64 = 1, 2, 3, 4

	h, err := NewAggregateHandler(&infra.AggregateDescriptor{
		Calls: []infra.FunctCallSpec{
			{Function: infra.AggrCount, InputVar: x, OutputVar: c},
			{Function: infra.AggrSum, InputVar: y, OutputVar: s},
		},
	})
	require.NoError(err)

	require.False(h.RequiresNumber(x), "COUNT reads presence, not a numeric value")
	require.True(h.RequiresNumber(y), "SUM needs its input coerced to a number")
}

// TestAggregateHandlerChainsThroughOutput covers the defect where one
// aggregate's output feeds another aggregate's input (§4.I, testable
// property #7): SUM(?c) where ?c is itself COUNT(?x)'s output must see
// COUNT's finished value once StopUpdate drains the inputmask, not just
// whatever ?c last held.
func TestAggregateHandlerChainsThroughOutput(t *testing.T) {
	require := require.New(t)
	const x, c, s uint64 = 1, 2, 3

	h, err := NewAggregateHandler(&infra.AggregateDescriptor{
		Calls: []infra.FunctCallSpec{
			{Function: infra.AggrCount, InputVar: x, OutputVar: c},
			{Function: infra.AggrSum, InputVar: c, OutputVar: s},
		},
	})
	require.NoError(err)

	h.StartUpdate()
	require.NoError(h.UpdateVar(x, &rts.Register{Value: 100}))
	require.NoError(h.UpdateVar(x, &rts.Register{Value: 101}))
	require.NoError(h.StopUpdate())

	require.Equal(operator.KindID, h.OutputKind(c))
	require.Equal(uint64(2), h.OutputID(c))

	require.Equal(operator.KindID, h.OutputKind(s), "SUM over a single chained int value stays int")
	require.Equal(uint64(2), h.OutputID(s), "SUM must see COUNT's finished value, not zero")
}

func TestAggregateHandlerRejectsGroupConcat(t *testing.T) {
	require := require.New(t)
	_, err := NewAggregateHandler(&infra.AggregateDescriptor{
		Calls: []infra.FunctCallSpec{{Function: infra.AggrGroupConcat, InputVar: 1, OutputVar: 2}},
	})
	require.Error(err)
}
