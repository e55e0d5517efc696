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

package borrow_test

import (
	"reflect"
	"testing"

	"github.com/petermattis/goid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/bufbuild/keypath"
	"github.com/bufbuild/keypath/borrow"
)

type inner struct {
	A uint64
	B uint32
}

type outer struct {
	Inner inner
}

var innerB = keypath.Of(func(o *outer) *uint32 { return &o.Inner.B })

// conflict runs f and returns the *borrow.ConflictError it panics with.
func conflict(f func()) (err *borrow.ConflictError) {
	defer func() { err, _ = recover().(*borrow.ConflictError) }()
	f()
	return nil
}

func TestGetUpdate(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)

	cell := borrow.New(outer{Inner: inner{A: 4, B: 10}})
	borrow.Update(cell, innerB, func(b *uint32) { *b += 200 })
	assert.Equal(uint32(210), borrow.Get(cell, innerB))

	// Both borrows were released.
	m := cell.BorrowMut()
	assert.Equal(uint64(4), m.Value().Inner.A)
	m.Release()
}

func TestShared(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)

	var cell borrow.Cell[outer]
	r1 := cell.Borrow()
	r2 := cell.Borrow()
	assert.Same(r1.Value(), r2.Value())
	assert.Equal(uint32(0), borrow.Load(r1, innerB))

	err := conflict(func() { cell.BorrowMut() })
	require.NotNil(t, err)
	assert.Equal(borrow.Exclusive, err.Want)
	assert.Equal(borrow.Shared, err.Held)
	assert.Zero(err.Owner)
	assert.False(err.Reentrant)
	assert.Equal(reflect.TypeFor[outer](), err.Type)
	assert.Equal("borrow: cannot take exclusive borrow of borrow_test.outer: it has a live shared borrow", err.Error())

	r1.Release()
	assert.NotNil(conflict(func() { cell.BorrowMut() }))
	r2.Release()
	assert.Nil(conflict(func() { cell.BorrowMut().Release() }))
}

func TestExclusive(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)

	cell := borrow.New(outer{})
	m := cell.BorrowMut()
	*borrow.Field(m, innerB) = 7

	err := conflict(func() { cell.Borrow() })
	require.NotNil(t, err)
	assert.Equal(borrow.Shared, err.Want)
	assert.Equal(borrow.Exclusive, err.Held)
	assert.Equal(goid.Get(), err.Owner)
	assert.True(err.Reentrant)
	assert.Equal("borrow: cannot take shared borrow of borrow_test.outer: it has a live exclusive borrow held by this goroutine", err.Error())

	err = conflict(func() { cell.BorrowMut() })
	require.NotNil(t, err)
	assert.Equal(borrow.Exclusive, err.Want)
	assert.True(err.Reentrant)

	m.Release()
	assert.Equal(uint32(7), borrow.Get(cell, innerB))
}

func TestReentrantUpdate(t *testing.T) {
	t.Parallel()

	cell := borrow.New(outer{})
	err := conflict(func() {
		borrow.Update(cell, innerB, func(*uint32) {
			borrow.Get(cell, innerB)
		})
	})
	require.NotNil(t, err)
	assert.True(t, err.Reentrant)

	// The deferred release ran while panicking.
	assert.Nil(t, conflict(func() { borrow.Update(cell, innerB, func(b *uint32) { *b = 1 }) }))
}

func TestOtherGoroutine(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)

	cell := borrow.New(outer{})
	m := cell.BorrowMut()
	owner := goid.Get()

	var err *borrow.ConflictError
	var group errgroup.Group
	group.Go(func() error {
		err = conflict(func() { cell.Borrow() })
		return nil
	})
	require.NoError(t, group.Wait())
	m.Release()

	require.NotNil(t, err)
	assert.Equal(owner, err.Owner)
	assert.False(err.Reentrant)
	assert.Contains(err.Error(), "held by goroutine")
}

func TestConcurrentReaders(t *testing.T) {
	t.Parallel()

	cell := borrow.New(outer{Inner: inner{B: 3}})
	var group errgroup.Group
	for range 8 {
		group.Go(func() error {
			for range 1000 {
				if got := borrow.Get(cell, innerB); got != 3 {
					t.Errorf("got %d", got)
				}
			}
			return nil
		})
	}
	require.NoError(t, group.Wait())
	assert.Nil(t, conflict(func() { cell.BorrowMut().Release() }))
}

func TestReleased(t *testing.T) {
	t.Parallel()

	cell := borrow.New(outer{})
	r := cell.Borrow()
	r.Release()
	assert.Panics(t, func() { r.Release() })
	assert.Panics(t, func() { r.Value() })

	m := cell.BorrowMut()
	m.Release()
	assert.Panics(t, func() { m.Release() })
	assert.Panics(t, func() { borrow.Field(m, innerB) })
}

func TestKindString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "shared", borrow.Shared.String())
	assert.Equal(t, "exclusive", borrow.Exclusive.String())
	assert.Equal(t, "Kind(0)", borrow.Kind(0).String())
}
