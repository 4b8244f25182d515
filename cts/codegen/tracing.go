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
	"context"

	opentracing "github.com/opentracing/opentracing-go"
)

// startSpan opens a child span under ctx tagged with op, or returns a
// no-op span when tracing is disabled (§10 Ambient Stack, "Tracing").
// Compilation is synchronous (§5), so spans never cross goroutines.
func startSpan(ctx context.Context, op string) (opentracing.Span, context.Context) {
	return opentracing.StartSpanFromContext(ctx, op)
}
