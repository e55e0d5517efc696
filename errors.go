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

package keypath

import (
	"errors"
	"fmt"
	"reflect"
)

// ErrZeroPath is wrapped by the panic value of operations on a zero [Path]
// whose source and target types differ.
var ErrZeroPath = errors.New("keypath: zero Path")

// EscapeError is the panic value of [Of] when a projection does not return
// a pointer into the value it was given.
type EscapeError struct {
	From, To reflect.Type

	// Set if the projection returned nil.
	Nil bool
}

// Error implements [error].
func (e *EscapeError) Error() string {
	if e.Nil {
		return fmt.Sprintf("keypath: projection from %v to %v returned nil", e.From, e.To)
	}
	return fmt.Sprintf("keypath: projection from %v to %v escapes the %[1]v it was given", e.From, e.To)
}

// TypeMismatchError is returned by operations on [Dyn] when the runtime types
// of two paths, or of a path and a value, do not line up.
type TypeMismatchError struct {
	Op        string
	Want, Got reflect.Type
}

// Error implements [error].
func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("keypath: %s: type mismatch: want %v, got %v", e.Op, e.Want, e.Got)
}
