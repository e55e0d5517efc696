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

// Package layout computes the field layout of Go types by reflection.
//
// Where [keypath.Of] relies on the compiler to check a selector chain, this
// package checks chains against [reflect.Type]s at runtime, which makes it
// suitable for chains that come from configuration, debugging tools or
// tests. It never follows pointers, slices, maps or interfaces: every field
// it reports lives inside the value whose layout was requested.
package layout

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rivo/uniseg"

	"github.com/bufbuild/keypath"
)

// MaxElems is the largest array whose elements are listed individually by
// [Layout.Fields]. Larger arrays are listed as a single field, but their
// elements can still be reached with [Layout.Lookup].
const MaxElems = 64

var cache sync.Map // map[reflect.Type]*Layout

// Layout is the layout of a struct or array type.
//
// A Layout is immutable, and safe to use from multiple goroutines.
type Layout struct {
	typ    reflect.Type
	fields []Field
	index  index
}

// Field is a field within a [Layout]. Array elements count as fields.
type Field struct {
	Name   string // Selector chain from the root, such as "Inner.Pair[1]".
	Offset uintptr
	Size   uintptr
	Align  int
	Depth  int // Number of steps from the root; top-level fields are at 1.
	Type   reflect.Type

	root reflect.Type
	glob string // Name with "/" between steps, for [Layout.Match].
}

// Of returns the layout of t.
//
// Layouts are cached, so calling this repeatedly with the same type is cheap.
// Types other than structs and arrays have no fields.
func Of(t reflect.Type) *Layout {
	if l, ok := cache.Load(t); ok {
		return l.(*Layout) //nolint:errcheck // Only *Layout is ever stored.
	}

	l := &Layout{typ: t}
	l.walk(t, 0, 1, "", "")
	for i := range l.fields {
		l.index.insert(&l.fields[i])
	}

	actual, _ := cache.LoadOrStore(t, l)
	return actual.(*Layout) //nolint:errcheck // Only *Layout is ever stored.
}

// For returns the layout of S.
func For[S any]() *Layout {
	return Of(reflect.TypeFor[S]())
}

// Path looks up a typed path by name, as if by [Layout.Lookup].
//
// Returns a [*keypath.TypeMismatchError] if the field is not of type T.
func Path[S, T any](name string) (keypath.Path[S, T], error) {
	dyn, err := For[S]().Lookup(name)
	if err != nil {
		return keypath.Path[S, T]{}, err
	}
	return keypath.Assert[S, T](dyn)
}

// Type returns the type this is the layout of.
func (l *Layout) Type() reflect.Type {
	return l.typ
}

// Fields returns every field in this layout, in order of offset. Fields
// come before the fields nested in them.
func (l *Layout) Fields() []Field {
	return slices.Clone(l.fields)
}

// At returns every field whose bytes include offset, outermost first.
//
// Returns nil if offset is out of bounds or falls in padding between
// top-level fields.
func (l *Layout) At(offset uintptr) []Field {
	var out []Field
	for f := range l.index.containing(offset) {
		out = append(out, *f)
	}
	return out
}

// Match returns every field whose name matches a glob pattern, in order of
// offset.
//
// Patterns use [doublestar] syntax, with "/" between steps and bare numbers
// for array indices: "Inner/*" matches every top-level field of Inner, and
// "Items/*/ID" matches the ID of every element of the array Items.
func (l *Layout) Match(pattern string) ([]Field, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("layout: %w: %q", doublestar.ErrBadPattern, pattern)
	}

	var out []Field
	for _, f := range l.fields {
		if ok, _ := doublestar.Match(pattern, f.glob); ok {
			out = append(out, f)
		}
	}
	return out, nil
}

// Lookup looks up a field by its selector chain, returning an erased path to
// it.
//
// A chain is a sequence of steps separated by dots. A step is a field name,
// an array index in brackets, or a bare number, which selects an array
// element or the nth field of a struct. For example, all of
// "Items[2].Pair.1", "Items.2.Pair[1]" and "0.2.Pair.1" may name the same
// field.
//
// Returns a [*PathError] if the chain does not name a field within the type
// this layout describes.
func (l *Layout) Lookup(name string) (keypath.Dyn, error) {
	steps, err := Split(name)
	if err != nil {
		return keypath.Dyn{}, &PathError{Type: l.typ, Path: name, Reason: err.Error()}
	}

	t, offset := l.typ, uintptr(0)
	for _, step := range steps {
		fail := func(format string, args ...any) error {
			return &PathError{Type: l.typ, Path: name, Step: step, Reason: fmt.Sprintf(format, args...)}
		}

		switch t.Kind() {
		case reflect.Struct:
			index, ok := fieldIndex(t, step)
			if !ok {
				return keypath.Dyn{}, fail("no field %s in %v", step, t)
			}
			for _, i := range index {
				if t.Kind() == reflect.Pointer {
					return keypath.Dyn{}, fail("field is promoted through embedded pointer %v", t)
				}
				f := t.Field(i)
				offset += f.Offset
				t = f.Type
			}

		case reflect.Array:
			n, err := strconv.Atoi(step)
			if err != nil || n < 0 || n >= t.Len() {
				return keypath.Dyn{}, fail("index out of range for %v", t)
			}
			offset += uintptr(n) * t.Elem().Size()
			t = t.Elem()

		default:
			return keypath.Dyn{}, fail("cannot step into %v, which is a %v", t, t.Kind())
		}
	}

	return keypath.DynFromOffset(l.typ, t, offset), nil
}

// String implements [fmt.Stringer].
//
// The result is a table of offsets, sizes, names and types, one row per
// field.
func (l *Layout) String() string {
	var offsetWidth, sizeWidth, nameWidth int
	for _, f := range l.fields {
		offsetWidth = max(offsetWidth, len(strconv.FormatUint(uint64(f.Offset), 10)))
		sizeWidth = max(sizeWidth, len(strconv.FormatUint(uint64(f.Size), 10)))
		nameWidth = max(nameWidth, uniseg.StringWidth(f.Name))
	}

	var b strings.Builder
	for _, f := range l.fields {
		pad := strings.Repeat(" ", nameWidth-uniseg.StringWidth(f.Name))
		fmt.Fprintf(&b, "%*d  %*d  %s%s  %v\n", offsetWidth, f.Offset, sizeWidth, f.Size, f.Name, pad, f.Type)
	}
	return b.String()
}

// Dyn returns an erased path to this field from the root of its layout.
func (f Field) Dyn() keypath.Dyn {
	return keypath.DynFromOffset(f.root, f.Type, f.Offset)
}

// MarshalYAML implements the yaml.v3 Marshaler interface, for debug dumps.
//
// The offsets in a dump describe this build only.
func (f Field) MarshalYAML() (any, error) {
	return struct {
		Name   string  `yaml:"name"`
		Offset uintptr `yaml:"offset"`
		Size   uintptr `yaml:"size"`
		Align  int     `yaml:"align"`
		Type   string  `yaml:"type"`
	}{f.Name, f.Offset, f.Size, f.Align, f.Type.String()}, nil
}

// walk appends every field of t to l.fields, in pre-order.
func (l *Layout) walk(t reflect.Type, base uintptr, depth int, name, glob string) {
	add := func(step, globStep string, offset uintptr, ft reflect.Type) {
		f := Field{
			Name:   name + step,
			Offset: base + offset,
			Size:   ft.Size(),
			Align:  ft.Align(),
			Depth:  depth,
			Type:   ft,
			root:   l.typ,
			glob:   glob + globStep,
		}
		l.fields = append(l.fields, f)
		l.walk(ft, f.Offset, depth+1, f.Name, f.glob+"/")
	}

	switch t.Kind() {
	case reflect.Struct:
		for i := range t.NumField() {
			sf := t.Field(i)
			if sf.Name == "_" {
				continue
			}
			step := sf.Name
			if name != "" {
				step = "." + step
			}
			add(step, sf.Name, sf.Offset, sf.Type)
		}

	case reflect.Array:
		if t.Len() > MaxElems {
			return
		}
		elem := t.Elem()
		for i := range t.Len() {
			n := strconv.Itoa(i)
			add("["+n+"]", n, uintptr(i)*elem.Size(), elem)
		}
	}
}

// fieldIndex finds a field of the struct type t by name or position.
func fieldIndex(t reflect.Type, step string) ([]int, bool) {
	if n, err := strconv.Atoi(step); err == nil {
		if n < 0 || n >= t.NumField() {
			return nil, false
		}
		return []int{n}, true
	}

	f, ok := t.FieldByName(step)
	if !ok || step == "_" {
		return nil, false
	}
	return f.Index, true
}

// Split splits a selector chain into its steps, as understood by
// [Layout.Lookup]. Brackets are removed from array indices, so "A[1].B"
// splits into "A", "1" and "B".
//
// A closing bracket must be followed by a dot, another index or the end of
// the chain. Steps may not begin with a sign.
func Split(name string) ([]string, error) {
	var steps []string
	add := func(step string) error {
		if step[0] == '+' || step[0] == '-' {
			return fmt.Errorf("signed step %q in %q", step, name)
		}
		steps = append(steps, step)
		return nil
	}

	rest := name
	for rest != "" {
		switch {
		case rest[0] == '[':
			end := strings.IndexByte(rest, ']')
			if end < 0 {
				return nil, fmt.Errorf("unclosed [ at %q", rest)
			}
			if end == 1 {
				return nil, fmt.Errorf("empty index at %q", rest)
			}
			if err := add(rest[1:end]); err != nil {
				return nil, err
			}
			rest = rest[end+1:]
			if rest != "" && rest[0] != '.' && rest[0] != '[' {
				return nil, fmt.Errorf("missing . before %q", rest)
			}

		case rest[0] == '.':
			if len(steps) == 0 {
				return nil, fmt.Errorf("leading dot in %q", name)
			}
			rest = rest[1:]
			if rest == "" || rest[0] == '.' || rest[0] == '[' {
				return nil, fmt.Errorf("empty step in %q", name)
			}
			fallthrough

		default:
			end := strings.IndexAny(rest, ".[")
			if end < 0 {
				end = len(rest)
			}
			if err := add(rest[:end]); err != nil {
				return nil, err
			}
			rest = rest[end:]
		}
	}

	if len(steps) == 0 {
		return nil, errors.New("empty path")
	}
	return steps, nil
}
