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

package base

import (
	"bufio"
	"strings"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
)

func splitLines(t *testing.T, text string) ([][]string, []int) {
	sc := bufio.NewScanner(strings.NewReader(text))
	lines := make([][]string, 0)
	numbers := make([]int, 0)
	err := ReadLines(sc, ',', func(n int, fields []string) error {
		lines = append(lines, fields)
		numbers = append(numbers, n)
		return nil
	})
	assert.NoError(t, err)
	return lines, numbers
}

func TestReadLines(t *testing.T) {
	lines, numbers := splitLines(t, "1,2,3\r\n4,5,6\r\n")
	assert.Equal(t, [][]string{{"1", "2", "3"}, {"4", "5", "6"}}, lines)
	assert.Equal(t, []int{1, 2}, numbers)

	lines, _ = splitLines(t, "\"1,2\",\"3,4\",\"5,6\"\r\n\"2,3\",\"4,6\",\"6,9\"")
	assert.Equal(t, [][]string{{"1,2", "3,4", "5,6"}, {"2,3", "4,6", "6,9"}}, lines)

	lines, _ = splitLines(t, "\"\"\"1,2\"\"\",3\n")
	assert.Equal(t, [][]string{{"\"1,2\"", "3"}}, lines)

	lines, numbers = splitLines(t, "\"1\r\n2\",3\r\n4,5")
	assert.Equal(t, [][]string{{"1\r\n2", "3"}, {"4", "5"}}, lines)
	assert.Equal(t, []int{1, 3}, numbers)

	lines, numbers = splitLines(t, "1,2\n\n  \n3,4\n")
	assert.Equal(t, [][]string{{"1", "2"}, {"3", "4"}}, lines)
	assert.Equal(t, []int{1, 4}, numbers)
}

func TestReadLinesError(t *testing.T) {
	sc := bufio.NewScanner(strings.NewReader("1,2\n3,4\n"))
	err := ReadLines(sc, ',', func(n int, fields []string) error {
		if n == 2 {
			return errors.NotValidf("line %d", n)
		}
		return nil
	})
	assert.True(t, errors.Is(err, errors.NotValid))

	sc = bufio.NewScanner(strings.NewReader("1,\"2\n"))
	err = ReadLines(sc, ',', func(int, []string) error { return nil })
	assert.True(t, errors.Is(err, errors.NotValid))
}
