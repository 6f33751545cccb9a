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
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFreqDict(t *testing.T) {
	dict := NewFreqDict()
	assert.Equal(t, int32(0), dict.Add(100))
	assert.Equal(t, int32(1), dict.Add(7))
	assert.Equal(t, int32(1), dict.Add(7))
	assert.Equal(t, int32(2), dict.Add(-3))
	assert.Equal(t, int32(2), dict.Add(-3))
	assert.Equal(t, int32(2), dict.Add(-3))
	assert.Equal(t, int32(3), dict.Count())
	assert.Equal(t, 1, dict.Freq(0))
	assert.Equal(t, 2, dict.Freq(1))
	assert.Equal(t, 3, dict.Freq(2))
	assert.Equal(t, 0, dict.Freq(3))

	// lookups never insert
	assert.Equal(t, int32(1), dict.Id(7))
	assert.Equal(t, NotFound, dict.Id(8))
	assert.Equal(t, int32(3), dict.Count())

	v, ok := dict.Value(2)
	assert.True(t, ok)
	assert.Equal(t, int64(-3), v)
	_, ok = dict.Value(3)
	assert.False(t, ok)
	_, ok = dict.Value(NotFound)
	assert.False(t, ok)
}

func TestFreqDict_Marshal(t *testing.T) {
	dict := NewFreqDict()
	for _, v := range []int64{6, 10, 6, 42} {
		dict.Add(v)
	}
	buf := bytes.NewBuffer(nil)
	assert.NoError(t, dict.Marshal(buf))
	restored := NewFreqDict()
	assert.NoError(t, restored.Unmarshal(buf))
	assert.Equal(t, dict, restored)
	assert.Equal(t, int32(2), restored.Id(42))
	assert.Equal(t, 2, restored.Freq(0))

	// truncated stream
	buf.Reset()
	assert.NoError(t, dict.Marshal(buf))
	assert.Error(t, NewFreqDict().Unmarshal(bytes.NewReader(buf.Bytes()[:12])))
}
