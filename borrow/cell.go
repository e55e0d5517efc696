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

// Package borrow provides a cell that checks Go's pointer aliasing rules for
// a value at runtime.
//
// Resolving a [keypath.Path] hands out a pointer into a value with no
// checks at all, like taking the address of a field does. When the value is
// shared between components that cannot coordinate statically, a [Cell]
// enforces the usual discipline dynamically: any number of shared borrows,
// or exactly one exclusive borrow, at a time.
//
// Cells never block. A conflicting borrow is a bug in the program, and
// panics with a [*ConflictError].
package borrow

import (
	"fmt"
	"reflect"
	"sync/atomic"

	"github.com/petermattis/goid"

	"github.com/bufbuild/keypath"
)

const exclusive = -1

// Kind is a kind of borrow.
type Kind int8

const (
	Shared Kind = iota + 1
	Exclusive
)

// String implements [fmt.Stringer].
func (k Kind) String() string {
	switch k {
	case Shared:
		return "shared"
	case Exclusive:
		return "exclusive"
	default:
		return fmt.Sprintf("Kind(%d)", int8(k))
	}
}

// Cell owns a value of type S and tracks borrows of it.
//
// A zero Cell holds a zero S and is ready to use. A Cell must not be copied
// after first use.
type Cell[S any] struct {
	// Number of live shared borrows, or exclusive.
	state atomic.Int64
	// Goroutine holding the exclusive borrow, if any. This is only used for
	// diagnostics, so it may briefly lag behind state.
	owner atomic.Int64

	value S
}

// New returns a new cell holding value.
func New[S any](value S) *Cell[S] {
	return &Cell[S]{value: value}
}

// Borrow takes a shared borrow of the value.
//
// Panics if the value is exclusively borrowed.
func (c *Cell[S]) Borrow() *Ref[S] {
	for {
		n := c.state.Load()
		if n == exclusive {
			panic(c.conflict(Shared, Exclusive))
		}
		if c.state.CompareAndSwap(n, n+1) {
			return &Ref[S]{cell: c}
		}
	}
}

// BorrowMut takes an exclusive borrow of the value.
//
// Panics if the value is borrowed in any way.
func (c *Cell[S]) BorrowMut() *Mut[S] {
	if !c.state.CompareAndSwap(0, exclusive) {
		held := Shared
		if c.state.Load() == exclusive {
			held = Exclusive
		}
		panic(c.conflict(Exclusive, held))
	}
	c.owner.Store(goid.Get())
	return &Mut[S]{cell: c}
}

func (c *Cell[S]) conflict(want, held Kind) *ConflictError {
	err := &ConflictError{
		Type: reflect.TypeFor[S](),
		Want: want,
		Held: held,
	}
	if held == Exclusive {
		err.Owner = c.owner.Load()
		err.Reentrant = err.Owner == goid.Get()
	}
	return err
}

// Ref is a shared borrow of the value in a [Cell].
type Ref[S any] struct {
	cell *Cell[S]
}

// Value returns the borrowed value. It must not be written through, nor used
// after [Ref.Release].
func (r *Ref[S]) Value() *S {
	return &r.live().value
}

// Release ends this borrow. Releasing twice panics.
func (r *Ref[S]) Release() {
	r.live().state.Add(-1)
	r.cell = nil
}

func (r *Ref[S]) live() *Cell[S] {
	if r.cell == nil {
		panic("borrow: use of released Ref")
	}
	return r.cell
}

// Mut is an exclusive borrow of the value in a [Cell].
type Mut[S any] struct {
	cell *Cell[S]
}

// Value returns the borrowed value. It must not be used after
// [Mut.Release].
func (m *Mut[S]) Value() *S {
	return &m.live().value
}

// Release ends this borrow. Releasing twice panics.
func (m *Mut[S]) Release() {
	c := m.live()
	c.owner.Store(0)
	c.state.Store(0)
	m.cell = nil
}

func (m *Mut[S]) live() *Cell[S] {
	if m.cell == nil {
		panic("borrow: use of released Mut")
	}
	return m.cell
}

// Load reads the field at path through a shared borrow.
func Load[S, T any](r *Ref[S], path keypath.Path[S, T]) T {
	return path.Get(r.Value())
}

// Field resolves path through an exclusive borrow. The result must not be
// used after the borrow is released.
func Field[S, T any](m *Mut[S], path keypath.Path[S, T]) *T {
	return path.In(m.Value())
}

// Get reads the field at path, holding a shared borrow for the duration of
// the read.
func Get[S, T any](c *Cell[S], path keypath.Path[S, T]) T {
	r := c.Borrow()
	defer r.Release()
	return Load(r, path)
}

// Update calls f with the field at path, holding an exclusive borrow until f
// returns.
func Update[S, T any](c *Cell[S], path keypath.Path[S, T], f func(*T)) {
	m := c.BorrowMut()
	defer m.Release()
	f(Field(m, path))
}

// ConflictError is the panic value of a borrow that conflicts with one that
// is already live.
type ConflictError struct {
	Type       reflect.Type
	Want, Held Kind

	// The goroutine holding an exclusive borrow, or zero.
	Owner int64
	// Set if Owner is the goroutine that attempted the borrow.
	Reentrant bool
}

// Error implements [error].
func (e *ConflictError) Error() string {
	msg := fmt.Sprintf("borrow: cannot take %v borrow of %v: it has a live %v borrow", e.Want, e.Type, e.Held)
	switch {
	case e.Reentrant:
		msg += " held by this goroutine"
	case e.Owner != 0:
		msg += fmt.Sprintf(" held by goroutine %d", e.Owner)
	}
	return msg
}
