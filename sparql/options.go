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
	"io"
	"io/ioutil"

	yaml "gopkg.in/yaml.v2"
)

// CompilerOptions is the YAML-decodable compiler configuration (§10
// Ambient Stack, "Config"). cts/codegen's Translate does not take a
// CompilerOptions, and no code in this module reads its fields.
type CompilerOptions struct {
	// Silent records whether result output is to be suppressed.
	// ResultsPrinter is a plain passthrough and does not consult it.
	Silent bool `yaml:"silent"`
	// TraceSampleRate is a fraction of compiles (0.0-1.0) to trace.
	// Translate opens its tracing span on every call regardless of it.
	TraceSampleRate float64 `yaml:"trace_sample_rate"`
	// FastPathFilters records whether the §4.F InFilter fast path is
	// enabled. The FILTER compiler always tries the fast path; setting
	// this to false does not switch it off.
	FastPathFilters bool `yaml:"fast_path_filters"`
}

// DefaultCompilerOptions mirrors the production defaults: fast-path
// filters on, no output silencing, no tracing.
func DefaultCompilerOptions() CompilerOptions {
	return CompilerOptions{Silent: false, TraceSampleRate: 0, FastPathFilters: true}
}

// LoadCompilerOptions decodes YAML-encoded options, filling any field
// the document omits with DefaultCompilerOptions' value.
func LoadCompilerOptions(r io.Reader) (CompilerOptions, error) {
	opts := DefaultCompilerOptions()
	data, err := ioutil.ReadAll(r)
	if err != nil {
		return opts, err
	}
	if len(data) == 0 {
		return opts, nil
	}
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return opts, err
	}
	return opts, nil
}
