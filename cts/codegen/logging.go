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

import "github.com/sirupsen/logrus"

// logger is the package-level factory every translate* entry point logs
// through (§10 Ambient Stack, "Logging"). Compile-time diagnostics only;
// nothing on the compiled tree's per-row execution path logs.
var logger = logrus.New()

func log() *logrus.Entry { return logrus.NewEntry(logger) }

// SetLogger lets a caller swap in its own configured *logrus.Logger
// (e.g. to route compiler diagnostics into the host process's
// structured log sink).
func SetLogger(l *logrus.Logger) { logger = l }
