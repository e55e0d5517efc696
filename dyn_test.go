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

package keypath_test

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bufbuild/keypath"
)

func TestErase(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)

	path := keypath.Of(func(o *outer) *uint32 { return &o.Inner.B })
	dyn := path.Erase()

	assert.False(dyn.IsZero())
	assert.Equal(path.Offset(), dyn.Offset())
	assert.Equal(reflect.TypeFor[outer](), dyn.From())
	assert.Equal(reflect.TypeFor[uint32](), dyn.To())

	back, err := keypath.Assert[outer, uint32](dyn)
	require.NoError(t, err)
	assert.Equal(path, back)

	_, err = keypath.Assert[outer, uint64](dyn)
	var mismatch *keypath.TypeMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(reflect.TypeFor[uint64](), mismatch.Want)
	assert.Equal(reflect.TypeFor[uint32](), mismatch.Got)

	_, err = keypath.Assert[inner, uint32](dyn)
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(reflect.TypeFor[inner](), mismatch.Want)
	assert.Equal(reflect.TypeFor[outer](), mismatch.Got)

	_, err = keypath.Assert[outer, uint32](keypath.Dyn{})
	assert.ErrorIs(err, keypath.ErrZeroDyn)
}

func TestDynAppend(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)

	outerInner := keypath.Of(func(o *outer) *inner { return &o.Inner }).Erase()
	innerB := keypath.Of(func(i *inner) *uint32 { return &i.B }).Erase()

	path, err := outerInner.Append(innerB)
	require.NoError(t, err)
	assert.Equal(keypath.Of(func(o *outer) *uint32 { return &o.Inner.B }).Erase(), path)

	_, err = innerB.Append(outerInner)
	var mismatch *keypath.TypeMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal("Append", mismatch.Op)
	assert.Equal(reflect.TypeFor[uint32](), mismatch.Want)
	assert.Equal(reflect.TypeFor[outer](), mismatch.Got)
	assert.Equal("keypath: Append: type mismatch: want uint32, got keypath_test.outer", err.Error())

	_, err = outerInner.Append(keypath.Dyn{})
	assert.ErrorIs(err, keypath.ErrZeroDyn)
}

func TestDynIn(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)

	dyn := keypath.Of(func(o *outer) *uint32 { return &o.Inner.B }).Erase()
	instance := outer{Inner: inner{B: 10}}

	field, err := dyn.In(&instance)
	require.NoError(t, err)
	ptr, ok := field.(*uint32)
	require.True(t, ok)
	assert.Same(&instance.Inner.B, ptr)
	*ptr += 200
	assert.Equal(uint32(210), instance.Inner.B)

	var mismatch *keypath.TypeMismatchError
	_, err = dyn.In(instance)
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(reflect.TypeFor[*outer](), mismatch.Want)
	assert.Equal(reflect.TypeFor[outer](), mismatch.Got)

	_, err = dyn.In(nil)
	require.ErrorAs(t, err, &mismatch)
	assert.Nil(mismatch.Got)

	_, err = dyn.In((*outer)(nil))
	require.Error(t, err)
	assert.False(errors.As(err, &mismatch))

	_, err = keypath.Dyn{}.In(&instance)
	assert.ErrorIs(err, keypath.ErrZeroDyn)
}

func TestDynFromOffset(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)

	path := keypath.Of(func(o *outer) *inner { return &o.Inner })
	dyn := keypath.DynFromOffset(reflect.TypeFor[outer](), reflect.TypeFor[inner](), path.Offset())
	assert.Equal(path.Erase(), dyn)
	assert.Equal("Dyn(<nil>)", keypath.Dyn{}.String())
	assert.Equal(fmt.Sprintf("Dyn[keypath_test.outer, keypath_test.inner](+%d)", path.Offset()), dyn.String())

	assert.Panics(func() { keypath.DynFromOffset(nil, reflect.TypeFor[inner](), 0) })
}
