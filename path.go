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
	"fmt"
	"reflect"

	"github.com/bufbuild/keypath/internal/ext/unsafex"
)

// Path is a path from a value of type S to one of its fields, of type T.
//
// A Path is a byte offset decorated with its source and target types. It
// holds no pointers, is comparable, and is cheap to copy.
//
// The zero value is not a path produced by any constructor. When S and T are
// the same type it resolves like [Self]; otherwise resolving or erasing it
// panics with an error wrapping [ErrZeroPath].
//
// A Path is only valid for the build of the program that computed it, since
// struct layout may differ between builds. Do not persist offsets.
type Path[S, T any] struct {
	_ [0]*S
	_ [0]*T

	// One more than the byte offset, so that the zero Path can be told apart
	// from a path to the field at offset zero.
	offset1 uintptr
}

// Of constructs the path that project takes from an S to a T.
//
// project must only take addresses: it is called once, on a zero S owned by
// this function, and should be a selector chain of the form
//
//	func(s *S) *T { return &s.A.B[2].C }
//
// Field names, array indices and the target type are all checked by the
// compiler, so the resulting path always satisfies the invariants of
// [FromOffset].
//
// Panics with an [*EscapeError] if the returned pointer is nil or does not
// point to a T inside the S it was given, e.g. because the chain goes
// through a pointer, slice or map. Chains through a nil pointer field panic
// with an ordinary nil dereference.
func Of[S, T any](project func(*S) *T) Path[S, T] {
	base := new(S)
	field := project(base)

	offset, ok := unsafex.Within(field, base)
	if !ok {
		panic(&EscapeError{
			From: reflect.TypeFor[S](),
			To:   reflect.TypeFor[T](),
			Nil:  field == nil,
		})
	}
	return FromOffset[S, T](offset)
}

// FromOffset constructs a path directly from a byte offset. There are two
// invariants the caller must uphold:
//
//  1. offset is the exact distance from the start of an S to the start of
//     a field of S of type exactly T. [unsafe.Offsetof] computes this for
//     single-level selectors.
//
//  2. offset was computed by the same build of the program that uses it.
//
// Neither invariant is checked, and violating either makes [Path.In] return
// a wild pointer. Prefer [Of], which upholds both by construction.
func FromOffset[S, T any](offset uintptr) Path[S, T] {
	return Path[S, T]{offset1: offset + 1}
}

// Self returns the empty path from S to itself.
//
// It is an identity for [Append].
func Self[S any]() Path[S, S] {
	return FromOffset[S, S](0)
}

// Append appends q onto p, producing a path from A directly to C.
//
// The compiler rejects paths appended in the wrong order, because q must
// start where p ends.
func Append[A, B, C any](p Path[A, B], q Path[B, C]) Path[A, C] {
	return FromOffset[A, C](p.checked() + q.checked())
}

// IsZero returns whether this is the zero Path.
func (p Path[S, T]) IsZero() bool {
	return p.offset1 == 0
}

// Offset returns the byte offset of the field from the start of an S.
//
// The zero Path reports offset zero.
func (p Path[S, T]) Offset() uintptr {
	if p.IsZero() {
		return 0
	}
	return p.offset1 - 1
}

// In resolves this path against s, returning a pointer to the field.
//
// The result aliases s, and must be treated exactly like &s.Field: it keeps
// s alive, and writes through it are visible through s. If s is nil, this
// panics.
func (p Path[S, T]) In(s *S) *T {
	if s == nil {
		_ = *s // Trigger an ordinary nil dereference on purpose.
	}
	return unsafex.ByteAdd[T](s, p.checked())
}

// Get returns the value of the field at this path in s.
func (p Path[S, T]) Get(s *S) T {
	return *p.In(s)
}

// Set sets the field at this path in s to v.
func (p Path[S, T]) Set(s *S, v T) {
	*p.In(s) = v
}

// Erase discards the static types of this path, replacing them with
// runtime type identifiers.
func (p Path[S, T]) Erase() Dyn {
	return Dyn{
		offset: p.checked(),
		from:   reflect.TypeFor[S](),
		to:     reflect.TypeFor[T](),
	}
}

// String implements [fmt.Stringer].
func (p Path[S, T]) String() string {
	if p.IsZero() {
		return fmt.Sprintf("Path[%v, %v](<zero>)", reflect.TypeFor[S](), reflect.TypeFor[T]())
	}
	return fmt.Sprintf("Path[%v, %v](+%d)", reflect.TypeFor[S](), reflect.TypeFor[T](), p.Offset())
}

// checked returns the offset of this path, or panics if this is a zero Path
// that does not go from a type to itself.
func (p Path[S, T]) checked() uintptr {
	if p.IsZero() {
		from, to := reflect.TypeFor[S](), reflect.TypeFor[T]()
		if from != to {
			panic(fmt.Errorf("%w from %v to %v", ErrZeroPath, from, to))
		}
		return 0
	}
	return p.offset1 - 1
}
