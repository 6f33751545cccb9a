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

package blob

import (
	"context"
	"io"
	"testing"

	"github.com/gorse-io/movie-recommender/config"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type baseTestSuite struct {
	suite.Suite
	store Store
}

func (suite *baseTestSuite) write(name, content string) {
	w, err := suite.store.Create(context.Background(), name)
	suite.NoError(err)
	_, err = w.Write([]byte(content))
	suite.NoError(err)
	suite.NoError(w.Close())
}

func (suite *baseTestSuite) read(name string) string {
	r, err := suite.store.Open(context.Background(), name)
	suite.NoError(err)
	data, err := io.ReadAll(r)
	suite.NoError(err)
	suite.NoError(r.Close())
	return string(data)
}

func (suite *baseTestSuite) TestReadWrite() {
	suite.write("test.zip", "hello world")
	suite.Equal("hello world", suite.read("test.zip"))
}

func (suite *baseTestSuite) TestOverwrite() {
	suite.write("test.zip", "hello world")
	suite.write("test.zip", "hello")
	suite.Equal("hello", suite.read("test.zip"))
}

func TestOpen(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Storage.Dir = t.TempDir()
	store, err := Open(cfg)
	assert.NoError(t, err)
	assert.IsType(t, &POSIX{}, store)

	cfg.Storage.BlobStore = "ftp"
	_, err = Open(cfg)
	assert.True(t, errors.Is(err, errors.NotSupported))
}

func TestPipeWriter(t *testing.T) {
	var uploaded []byte
	w := newPipeWriter(func(r io.Reader) (err error) {
		uploaded, err = io.ReadAll(r)
		return
	})
	_, err := w.Write([]byte("hello"))
	assert.NoError(t, err)
	assert.NoError(t, w.Close())
	assert.Equal(t, "hello", string(uploaded))

	w = newPipeWriter(func(r io.Reader) error {
		return errors.New("upload failed")
	})
	_, err = w.Write([]byte("hello"))
	assert.ErrorContains(t, err, "upload failed")
	assert.ErrorContains(t, w.Close(), "upload failed")
}
