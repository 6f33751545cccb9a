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
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorse-io/movie-recommender/base"
	"github.com/gorse-io/movie-recommender/base/log"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Rating is one observed rating given by a user to a movie.
type Rating struct {
	UserId  int64
	MovieId int64
	Label   float32
}

// Table is an immutable ordered sequence of ratings. Duplicated (user, movie)
// pairs are kept as separate rows.
type Table struct {
	schema  Schema
	ratings []Rating
}

// NewTable creates a table from ratings. The slice is copied.
func NewTable(schema Schema, ratings []Rating) *Table {
	return &Table{
		schema:  schema,
		ratings: append([]Rating(nil), ratings...),
	}
}

func (t *Table) Schema() Schema {
	return t.schema
}

func (t *Table) Count() int {
	return len(t.ratings)
}

func (t *Table) Get(i int) Rating {
	return t.ratings[i]
}

// CountUsers returns the number of distinct users.
func (t *Table) CountUsers() int {
	users := mapset.NewThreadUnsafeSet[int64]()
	for _, r := range t.ratings {
		users.Add(r.UserId)
	}
	return users.Cardinality()
}

// CountMovies returns the number of distinct movies.
func (t *Table) CountMovies() int {
	movies := mapset.NewThreadUnsafeSet[int64]()
	for _, r := range t.ratings {
		movies.Add(r.MovieId)
	}
	return movies.Cardinality()
}

// LoadOptions describes the text format of a ratings file. User, movie and
// label are the first three fields unless ColumnsByName is set, in which case
// they are looked up in the header by the names in Columns.
type LoadOptions struct {
	Separator     rune
	HasHeader     bool
	ColumnsByName bool
	Columns       Columns
}

func NewLoadOptions() LoadOptions {
	return LoadOptions{
		Separator: ',',
		HasHeader: true,
		Columns:   DefaultColumns(),
	}
}

// LoadTable parses ratings from a separated text stream. Any malformed row fails
// the whole load.
func LoadTable(r io.Reader, opts LoadOptions) (*Table, error) {
	var (
		ratings   []Rating
		width     int
		positions = [3]int{0, 1, 2}
	)
	if !opts.HasHeader {
		width = len(positions)
	}
	scanner := bufio.NewScanner(r)
	err := base.ReadLines(scanner, opts.Separator, func(line int, fields []string) error {
		if opts.HasHeader && width == 0 {
			header := lo.Map(fields, func(f string, _ int) string {
				return strings.TrimSpace(strings.TrimPrefix(f, "\ufeff"))
			})
			if opts.ColumnsByName {
				for i, name := range opts.Columns.Names() {
					positions[i] = lo.IndexOf(header, name)
					if positions[i] < 0 {
						return errors.NotValidf("header %v without column %q", header, name)
					}
				}
			} else if len(header) < len(positions) {
				return errors.NotValidf("header %v with %d columns, expected at least %d", header, len(header), len(positions))
			}
			width = len(header)
			return nil
		}
		if opts.HasHeader && len(fields) != width {
			return errors.NotValidf("line %d with %d fields, expected %d", line, len(fields), width)
		} else if len(fields) < width {
			return errors.NotValidf("line %d with %d fields, expected at least %d", line, len(fields), width)
		}
		rating, err := parseRating(fields, positions, opts.Columns)
		if err != nil {
			return errors.Annotatef(err, "line %d", line)
		}
		ratings = append(ratings, rating)
		return nil
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	if opts.HasHeader && width == 0 {
		return nil, errors.NotValidf("ratings without header")
	}
	return &Table{schema: opts.Columns.Schema(), ratings: ratings}, nil
}

func parseRating(fields []string, positions [3]int, columns Columns) (Rating, error) {
	userId, err := strconv.ParseInt(strings.TrimSpace(fields[positions[0]]), 10, 64)
	if err != nil {
		return Rating{}, errors.NotValidf("%s %q", columns.User, fields[positions[0]])
	}
	movieId, err := strconv.ParseInt(strings.TrimSpace(fields[positions[1]]), 10, 64)
	if err != nil {
		return Rating{}, errors.NotValidf("%s %q", columns.Movie, fields[positions[1]])
	}
	label, err := strconv.ParseFloat(strings.TrimSpace(fields[positions[2]]), 32)
	if err != nil {
		return Rating{}, errors.NotValidf("%s %q", columns.Label, fields[positions[2]])
	}
	return Rating{UserId: userId, MovieId: movieId, Label: float32(label)}, nil
}

// LoadTableFromFile loads ratings from a file.
func LoadTableFromFile(path string, opts LoadOptions) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer file.Close()
	table, err := LoadTable(file, opts)
	if err != nil {
		return nil, errors.Annotatef(err, "load %s", path)
	}
	log.Logger().Info("load ratings",
		zap.String("path", path),
		zap.Int("n_ratings", table.Count()),
		zap.Int("n_users", table.CountUsers()),
		zap.Int("n_movies", table.CountMovies()))
	return table, nil
}

// LoadData loads the training and test splits from a directory.
func LoadData(dir, trainFile, testFile string, opts LoadOptions) (train, test *Table, err error) {
	train, err = LoadTableFromFile(filepath.Join(dir, trainFile), opts)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	test, err = LoadTableFromFile(filepath.Join(dir, testFile), opts)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	return train, test, nil
}
