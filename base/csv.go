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

	"github.com/juju/errors"
)

// ReadLines parses fields of each record of a csv stream. Quoted fields may contain
// separators, escaped quotes and line breaks. Blank lines are skipped. The handler
// receives the one-based line number where the record starts.
func ReadLines(sc *bufio.Scanner, sep rune, handler func(int, []string) error) error {
	lineNumber := 0              // line number of current position
	startLine := 0               // line number where current record starts
	fields := make([]string, 0)  // fields for current record
	builder := strings.Builder{} // string builder for current field
	quoted := false              // whether current position in quote
	for sc.Scan() {
		lineNumber++
		line := []rune(sc.Text())
		if quoted {
			builder.WriteString("\r\n")
		} else {
			startLine = lineNumber
			if len(strings.TrimSpace(string(line))) == 0 {
				continue
			}
		}
		for i := 0; i < len(line); i++ {
			switch {
			case line[i] == sep && !quoted:
				fields = append(fields, builder.String())
				builder.Reset()
			case line[i] == '"' && quoted:
				if i+1 < len(line) && line[i+1] == '"' {
					i++
					builder.WriteRune('"')
				} else {
					quoted = false
				}
			case line[i] == '"':
				quoted = true
			default:
				builder.WriteRune(line[i])
			}
		}
		if quoted {
			continue
		}
		fields = append(fields, builder.String())
		builder.Reset()
		if err := handler(startLine, fields); err != nil {
			return err
		}
		fields = []string{}
	}
	if err := sc.Err(); err != nil {
		return errors.Trace(err)
	}
	if quoted {
		return errors.NotValidf("unterminated quote at line %d", startLine)
	}
	return nil
}
