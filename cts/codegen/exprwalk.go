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

import "github.com/WDPS-Team/trident/cts/infra"

// filterChildren enumerates f's immediate FilterExpr children, used by
// both the slot allocator's subquery discovery (§4.A) and the filter
// compiler's free-variable walk (§4.F). NOT EXISTS's Subquery/Subpattern
// are QueryGraphs, not FilterExprs, and are not returned here; callers
// that need them type-switch on infra.FNotExists directly.
func filterChildren(f infra.FilterExpr) []infra.FilterExpr {
	switch n := f.(type) {
	case infra.FAnd:
		return []infra.FilterExpr{n.Left, n.Right}
	case infra.FOr:
		return []infra.FilterExpr{n.Left, n.Right}
	case infra.FEqual:
		return []infra.FilterExpr{n.Left, n.Right}
	case infra.FNotEqual:
		return []infra.FilterExpr{n.Left, n.Right}
	case infra.FLess:
		return []infra.FilterExpr{n.Left, n.Right}
	case infra.FLessOrEqual:
		return []infra.FilterExpr{n.Left, n.Right}
	case infra.FGreater:
		return []infra.FilterExpr{n.Left, n.Right}
	case infra.FGreaterOrEqual:
		return []infra.FilterExpr{n.Left, n.Right}
	case infra.FPlus:
		return []infra.FilterExpr{n.Left, n.Right}
	case infra.FMinus:
		return []infra.FilterExpr{n.Left, n.Right}
	case infra.FMul:
		return []infra.FilterExpr{n.Left, n.Right}
	case infra.FDiv:
		return []infra.FilterExpr{n.Left, n.Right}
	case infra.FSameTerm:
		return []infra.FilterExpr{n.Left, n.Right}
	case infra.FNot:
		return []infra.FilterExpr{n.Arg}
	case infra.FNeg:
		return []infra.FilterExpr{n.Arg}
	case infra.FUnaryPlus:
		return []infra.FilterExpr{n.Arg}
	case infra.FStr:
		return []infra.FilterExpr{n.Arg}
	case infra.FLang:
		return []infra.FilterExpr{n.Arg}
	case infra.FDatatype:
		return []infra.FilterExpr{n.Arg}
	case infra.FIsIRI:
		return []infra.FilterExpr{n.Arg}
	case infra.FIsBlank:
		return []infra.FilterExpr{n.Arg}
	case infra.FIsLiteral:
		return []infra.FilterExpr{n.Arg}
	case infra.FXSDDecimal:
		return []infra.FilterExpr{n.Arg}
	case infra.FLangMatches:
		return []infra.FilterExpr{n.Lang, n.Pattern}
	case infra.FContains:
		return []infra.FilterExpr{n.Haystack, n.Needle}
	case infra.FRegex:
		out := []infra.FilterExpr{n.Text, n.Pattern}
		if n.Flags != nil {
			out = append(out, n.Flags)
		}
		return out
	case infra.FReplace:
		out := []infra.FilterExpr{n.Text, n.Pattern, n.Replacement}
		if n.Flags != nil {
			out = append(out, n.Flags)
		}
		return out
	case infra.FIn:
		out := append([]infra.FilterExpr{n.Arg}, n.Args...)
		return out
	case infra.FFunctionCall:
		return n.Args
	default:
		return nil
	}
}

// walkFilter visits f and every descendant, depth first.
func walkFilter(f infra.FilterExpr, visit func(infra.FilterExpr)) {
	if f == nil {
		return
	}
	visit(f)
	for _, c := range filterChildren(f) {
		walkFilter(c, visit)
	}
}
