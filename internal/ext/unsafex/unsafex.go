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

// package unsafex contains extensions to Go's package unsafe.
//
// Importing this package should be treated as equivalent to importing unsafe.
package unsafex

import (
	"runtime"
	"unsafe"

	"golang.org/x/exp/constraints" //nolint:exptostd // Tries to replace w/ cmp.
)

// Layout is the layout of a type.
//
// This is a more convenient abstraction that manipulating the size and
// alignment separately.
type Layout struct {
	Size, Align int
}

// LayoutOf returns the layout of some type.
func LayoutOf[T any]() Layout {
	var v T
	return Layout{
		Size:  int(unsafe.Sizeof(v)),
		Align: int(unsafe.Alignof(v)),
	}
}

// Int is any integer type usable as a byte offset.
type Int = constraints.Integer

// ByteAdd adds n bytes to p, without scaling, and casts the result to *T.
//
// This function has the same safety caveats as [unsafe.Add]: the result must
// point into the same allocation as p.
//
//go:nosplit
func ByteAdd[T any, P ~*E, E any, I Int](p P, n I) *T {
	return (*T)(unsafe.Add(unsafe.Pointer(p), n))
}

// ByteSub computes p1 - p2 in bytes, without scaling.
//
//go:nosplit
func ByteSub[P1 ~*E1, P2 ~*E2, E1, E2 any](p1 P1, p2 P2) int {
	return int(uintptr(unsafe.Pointer(p1)) - uintptr(unsafe.Pointer(p2)))
}

// Within returns the byte offset of p from base, and whether the whole of *p
// lies inside *base.
//
// Nil pointers are never within anything.
func Within[T, S any](p *T, base *S) (uintptr, bool) {
	if p == nil || base == nil {
		return 0, false
	}

	// KeepAlive escapes its argument, so this ensures that p and base have
	// escaped to the heap and won't be moved between the two conversions
	// to uintptr in ByteSub.
	runtime.KeepAlive([2]unsafe.Pointer{unsafe.Pointer(p), unsafe.Pointer(base)})

	diff := uintptr(ByteSub(p, base))
	outer := uintptr(LayoutOf[S]().Size)
	inner := uintptr(LayoutOf[T]().Size)

	// If the subtraction overflowed, diff is "negative" two's complement,
	// which is greater than any real object size, so this single comparison
	// also rejects pointers before base.
	if diff > outer || inner > outer-diff {
		return 0, false
	}
	return diff, true
}
