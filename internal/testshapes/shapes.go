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

// Package testshapes contains types with generated paths, for testing.
package testshapes

//go:generate go run github.com/bufbuild/keypath/internal/keygen paths.yaml

type Record struct {
	Field1 int
	Field2 float64
}

type Inner struct {
	A uint64
	B uint32
}

type Outer struct {
	Inner Inner
}

type Cell struct {
	Label  string
	Weight float32
}

type Grid struct {
	Name string
	Rows [2][3]Cell
}
