// Copyright 2020-2025 Buf Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package layout

import (
	"fmt"
	"reflect"
)

// PathError is returned by [Layout.Lookup] when a selector chain does not
// name a field.
type PathError struct {
	Type   reflect.Type // The type the chain starts at.
	Path   string       // The whole chain.
	Step   string       // The step that failed, if the chain parsed.
	Reason string
}

// Error implements [error].
func (e *PathError) Error() string {
	if e.Step == "" {
		return fmt.Sprintf("layout: invalid path %q for %v: %s", e.Path, e.Type, e.Reason)
	}
	return fmt.Sprintf("layout: invalid path %q for %v at %q: %s", e.Path, e.Type, e.Step, e.Reason)
}
