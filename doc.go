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

// Package keypath provides typed paths from a struct to one of its fields.
//
// A [Path] is a byte offset from the start of a value of some type S to a
// field of type T somewhere inside it, possibly several levels deep. Paths
// are computed once and then resolved against any number of instances
// without repeating the field selection:
//
//	type Inner struct {
//		A uint64
//		B uint32
//	}
//
//	type Outer struct {
//		Name  string
//		Inner Inner
//	}
//
//	var outerInner = keypath.Of(func(o *Outer) *Inner { return &o.Inner })
//	var innerB = keypath.Of(func(i *Inner) *uint32 { return &i.B })
//
//	// A path from Outer straight to Inner.B.
//	var outerB = keypath.Append(outerInner, innerB)
//
//	func bump(o *Outer) {
//		*outerB.In(o) += 200
//	}
//
// # Safety
//
// Paths constructed with [Of] are always correct: the compiler checks the
// selector chain and the target type, and Of checks that the chain does not
// leave the value it starts at. Resolution performs no checks at all, which
// is what makes it cheap. [FromOffset] skips every check, and is as
// dangerous as [unsafe.Add].
//
// Resolving a path yields a pointer with the same aliasing rules as taking
// the address of the field directly. Package
// [github.com/bufbuild/keypath/borrow] offers a cell type that checks those
// rules at runtime.
//
// When the types involved are only known at runtime, [Path.Erase] produces a
// [Dyn], which checks types on every operation instead. Package
// [github.com/bufbuild/keypath/layout] builds Dyn paths by reflection.
package keypath
