// Copyright 2026 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package dataset

import (
	"io"

	"github.com/gorse-io/movie-recommender/base/encoding"
	"github.com/juju/errors"
	"github.com/samber/lo"
)

// NotFound is the index of values missing from a FreqDict.
const NotFound int32 = -1

// FreqDict is a bidirectional value-to-key dictionary. It maps arbitrary ids to
// dense zero-based indices in insertion order and counts how often each id was
// added. Lookups never insert.
type FreqDict struct {
	si  map[int64]int32
	is  []int64
	cnt []int
}

func NewFreqDict() (d *FreqDict) {
	d = &FreqDict{map[int64]int32{}, []int64{}, []int{}}
	return
}

func (d *FreqDict) Count() int32 {
	return int32(len(d.is))
}

// Add inserts a value if absent, increases its frequency and returns its index.
func (d *FreqDict) Add(v int64) (y int32) {
	if y, ok := d.si[v]; ok {
		d.cnt[y]++
		return y
	}

	y = int32(len(d.is))
	d.si[v] = y
	d.is = append(d.is, v)
	d.cnt = append(d.cnt, 1)
	return
}

// Id returns the index of a value, or NotFound.
func (d *FreqDict) Id(v int64) int32 {
	if y, ok := d.si[v]; ok {
		return y
	}
	return NotFound
}

// Value returns the value at an index.
func (d *FreqDict) Value(id int32) (v int64, ok bool) {
	if id < 0 || int(id) >= len(d.is) {
		return 0, false
	}
	return d.is[id], true
}

func (d *FreqDict) Freq(id int32) int {
	if id < 0 || int(id) >= len(d.cnt) {
		return 0
	}
	return d.cnt[id]
}

// Marshal writes values and frequencies in index order.
func (d *FreqDict) Marshal(w io.Writer) error {
	if err := encoding.WriteInt64s(w, d.is); err != nil {
		return errors.Trace(err)
	}
	counts := lo.Map(d.cnt, func(c int, _ int) int64 { return int64(c) })
	return errors.Trace(encoding.WriteInt64s(w, counts))
}

// Unmarshal restores a dictionary written by Marshal.
func (d *FreqDict) Unmarshal(r io.Reader) error {
	values, err := encoding.ReadInt64s(r)
	if err != nil {
		return errors.Trace(err)
	}
	counts, err := encoding.ReadInt64s(r)
	if err != nil {
		return errors.Trace(err)
	}
	if len(values) != len(counts) {
		return errors.NotValidf("dictionary with %d values and %d counts", len(values), len(counts))
	}
	d.si = make(map[int64]int32, len(values))
	d.is = values
	d.cnt = make([]int, len(counts))
	for i, v := range values {
		if _, exist := d.si[v]; exist {
			return errors.NotValidf("duplicate dictionary value %d", v)
		}
		d.si[v] = int32(i)
		d.cnt[i] = int(counts[i])
	}
	return nil
}
