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

package layout

import (
	"iter"

	"github.com/tidwall/btree"
)

// index finds the fields containing a byte offset.
//
// Fields at the same depth never overlap: they are either siblings, or they
// sit inside distinct, non-overlapping parents. So each depth gets its own
// tree, keyed by the last byte of each field. The first field in a tree whose
// last byte is at or after the offset is the only candidate at that depth.
type index struct {
	depths []*btree.Map[uintptr, *Field]
}

func (x *index) insert(f *Field) {
	if f.Size == 0 {
		return // Contains no bytes.
	}

	for len(x.depths) < f.Depth {
		x.depths = append(x.depths, new(btree.Map[uintptr, *Field]))
	}
	x.depths[f.Depth-1].Set(f.Offset+f.Size-1, f)
}

// containing yields the fields whose bytes include offset, outermost first.
func (x *index) containing(offset uintptr) iter.Seq[*Field] {
	return func(yield func(*Field) bool) {
		for _, tree := range x.depths {
			it := tree.Iter()
			if !it.Seek(offset) || it.Value().Offset > offset {
				// Nothing deeper can contain offset either, since it would
				// need a parent at this depth.
				return
			}
			if !yield(it.Value()) {
				return
			}
		}
	}
}
