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
	"unsafe"
)

// ErrZeroDyn is returned when an operation is given a zero [Dyn].
var ErrZeroDyn = errors.New("keypath: zero Dyn")

// Dyn is a path whose source and target types are known only at runtime.
//
// Where [Path] relies on the compiler to reject mismatched types, Dyn
// compares [reflect.Type]s on every operation that could mix them up, and
// reports a [*TypeMismatchError] instead.
//
// The zero value is not a valid path.
type Dyn struct {
	offset   uintptr
	from, to reflect.Type
}

// DynFromOffset constructs an erased path from from to to at the given
// offset.
//
// This is the erased counterpart of [FromOffset], and has the same
// invariants: offset must be the exact offset of a field of type to within
// a from, as computed by this build of the program.
//
// Panics if either type is nil.
func DynFromOffset(from, to reflect.Type, offset uintptr) Dyn {
	if from == nil || to == nil {
		panic("keypath: DynFromOffset called with a nil reflect.Type")
	}
	return Dyn{offset: offset, from: from, to: to}
}

// IsZero returns whether this is the zero Dyn.
func (d Dyn) IsZero() bool {
	return d.from == nil
}

// Offset returns the byte offset of the field.
func (d Dyn) Offset() uintptr {
	return d.offset
}

// From returns the type this path starts at.
func (d Dyn) From() reflect.Type {
	return d.from
}

// To returns the type of the field this path leads to.
func (d Dyn) To() reflect.Type {
	return d.to
}

// Append appends q onto d, like [Append].
//
// Returns a [*TypeMismatchError] if q does not start at the type d leads to.
func (d Dyn) Append(q Dyn) (Dyn, error) {
	if d.IsZero() || q.IsZero() {
		return Dyn{}, ErrZeroDyn
	}
	if d.to != q.from {
		return Dyn{}, &TypeMismatchError{Op: "Append", Want: d.to, Got: q.from}
	}
	return Dyn{offset: d.offset + q.offset, from: d.from, to: q.to}, nil
}

// In resolves this path against v, which must be a non-nil pointer to the
// type this path starts at. The result is a pointer to the field, boxed in
// an any.
func (d Dyn) In(v any) (any, error) {
	if d.IsZero() {
		return nil, ErrZeroDyn
	}

	rv := reflect.ValueOf(v)
	if want := reflect.PointerTo(d.from); !rv.IsValid() || rv.Type() != want {
		return nil, &TypeMismatchError{Op: "In", Want: want, Got: reflect.TypeOf(v)}
	}
	if rv.IsNil() {
		return nil, fmt.Errorf("keypath: In called with a nil %v", rv.Type())
	}

	field := unsafe.Add(rv.UnsafePointer(), d.offset)
	return reflect.NewAt(d.to, field).Interface(), nil
}

// String implements [fmt.Stringer].
func (d Dyn) String() string {
	if d.IsZero() {
		return "Dyn(<nil>)"
	}
	return fmt.Sprintf("Dyn[%v, %v](+%d)", d.from, d.to, d.offset)
}

// Assert recovers a typed path from an erased one.
//
// Returns a [*TypeMismatchError] if d does not go from S to T.
func Assert[S, T any](d Dyn) (Path[S, T], error) {
	if d.IsZero() {
		return Path[S, T]{}, ErrZeroDyn
	}
	if from := reflect.TypeFor[S](); d.from != from {
		return Path[S, T]{}, &TypeMismatchError{Op: "Assert", Want: from, Got: d.from}
	}
	if to := reflect.TypeFor[T](); d.to != to {
		return Path[S, T]{}, &TypeMismatchError{Op: "Assert", Want: to, Got: d.to}
	}
	return FromOffset[S, T](d.offset), nil
}
