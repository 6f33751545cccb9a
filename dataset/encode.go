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

// BuildDicts builds the user and movie dictionaries of a training table.
func BuildDicts(t *Table) (userDict, movieDict *FreqDict) {
	userDict, movieDict = NewFreqDict(), NewFreqDict()
	for _, r := range t.ratings {
		userDict.Add(r.UserId)
		movieDict.Add(r.MovieId)
	}
	return
}

// Encode maps ratings of a table to dense indices. Ids missing from the
// dictionaries are encoded as NotFound.
func Encode(t *Table, userDict, movieDict *FreqDict) (users, movies []int32) {
	users = make([]int32, len(t.ratings))
	movies = make([]int32, len(t.ratings))
	for i, r := range t.ratings {
		users[i] = userDict.Id(r.UserId)
		movies[i] = movieDict.Id(r.MovieId)
	}
	return
}
