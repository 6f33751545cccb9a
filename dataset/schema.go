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
	"github.com/juju/errors"
	"github.com/samber/lo"
)

type ColumnType string

const (
	Int64  ColumnType = "Int64"
	Single ColumnType = "Single"
)

type Column struct {
	Name string     `json:"name"`
	Type ColumnType `json:"type"`
}

// Schema is the ordered column list of a ratings table.
type Schema struct {
	Columns []Column `json:"columns"`
}

// Columns names the user, movie and label columns of ratings files.
type Columns struct {
	User  string
	Movie string
	Label string
}

func DefaultColumns() Columns {
	return Columns{
		User:  "userId",
		Movie: "movieId",
		Label: "Label",
	}
}

func (c Columns) Names() []string {
	return []string{c.User, c.Movie, c.Label}
}

func (c Columns) Schema() Schema {
	return Schema{Columns: []Column{
		{Name: c.User, Type: Int64},
		{Name: c.Movie, Type: Int64},
		{Name: c.Label, Type: Single},
	}}
}

// Check returns an error unless every column in c exists in the schema with the
// expected type.
func (s Schema) Check(c Columns) error {
	for _, expected := range c.Schema().Columns {
		column, ok := lo.Find(s.Columns, func(column Column) bool {
			return column.Name == expected.Name
		})
		if !ok {
			return errors.NotValidf("schema without column %q", expected.Name)
		}
		if column.Type != expected.Type {
			return errors.NotValidf("column %q of type %s, expected %s", column.Name, column.Type, expected.Type)
		}
	}
	return nil
}
