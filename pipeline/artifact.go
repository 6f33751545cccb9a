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

package pipeline

import (
	"archive/zip"
	"bytes"
	"context"
	"io"

	"github.com/gorse-io/movie-recommender/base/json"
	"github.com/gorse-io/movie-recommender/base/log"
	"github.com/gorse-io/movie-recommender/dataset"
	"github.com/gorse-io/movie-recommender/model/mf"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

const (
	schemaEntry = "schema.json"
	modelEntry  = "model.bin"
)

// SaveModel writes the model and the training schema into a zip artifact,
// replacing any previous artifact.
func (p *Pipeline) SaveModel(ctx context.Context, m *mf.MatrixFactorization, schema dataset.Schema) error {
	if m.Invalid() {
		return errors.NotValidf("untrained model")
	}
	data, err := marshalArtifact(m, schema)
	if err != nil {
		return errors.Trace(err)
	}
	name := p.Config.Storage.ModelName
	w, err := p.Store.Create(ctx, name)
	if err != nil {
		return errors.Annotatef(err, "create %s", name)
	}
	if _, err = w.Write(data); err != nil {
		_ = w.Close()
		return errors.Annotatef(err, "write %s", name)
	}
	if err = w.Close(); err != nil {
		return errors.Annotatef(err, "write %s", name)
	}
	log.Logger().Info("save model",
		zap.String("name", name),
		zap.Int("size", len(data)))
	return nil
}

func marshalArtifact(m *mf.MatrixFactorization, schema dataset.Schema) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	zw := zip.NewWriter(buf)
	schemaData, err := json.MarshalIndent(schema)
	if err != nil {
		return nil, errors.Trace(err)
	}
	w, err := zw.Create(schemaEntry)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if _, err = w.Write(schemaData); err != nil {
		return nil, errors.Trace(err)
	}
	w, err = zw.Create(modelEntry)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if err = mf.MarshalModel(w, m); err != nil {
		return nil, errors.Trace(err)
	}
	if err = zw.Close(); err != nil {
		return nil, errors.Trace(err)
	}
	return buf.Bytes(), nil
}

// LoadModel reads the artifact written by SaveModel. The stored schema must
// contain the configured user, movie and label columns.
func (p *Pipeline) LoadModel(ctx context.Context) (*mf.MatrixFactorization, dataset.Schema, error) {
	name := p.Config.Storage.ModelName
	r, err := p.Store.Open(ctx, name)
	if err != nil {
		return nil, dataset.Schema{}, errors.Annotatef(err, "open %s", name)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, dataset.Schema{}, errors.Annotatef(err, "read %s", name)
	}
	m, schema, err := unmarshalArtifact(data)
	if err != nil {
		return nil, dataset.Schema{}, errors.Annotatef(err, "load %s", name)
	}
	if err = schema.Check(p.Config.Data.GetLoadOptions().Columns); err != nil {
		return nil, dataset.Schema{}, errors.Trace(err)
	}
	movieId, count := mostRated(m.MovieDict)
	log.Logger().Info("load model",
		zap.String("name", name),
		zap.Int32("n_users", m.UserDict.Count()),
		zap.Int32("n_movies", m.MovieDict.Count()),
		zap.Int64("most_rated_movie", movieId),
		zap.Int("most_rated_count", count))
	return m, schema, nil
}

func unmarshalArtifact(data []byte) (*mf.MatrixFactorization, dataset.Schema, error) {
	var schema dataset.Schema
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, schema, errors.NewNotValid(err, "artifact")
	}
	schemaData, err := readEntry(zr, schemaEntry)
	if err != nil {
		return nil, schema, errors.Trace(err)
	}
	if err = json.Unmarshal(schemaData, &schema); err != nil {
		return nil, schema, errors.NewNotValid(err, schemaEntry)
	}
	modelData, err := readEntry(zr, modelEntry)
	if err != nil {
		return nil, schema, errors.Trace(err)
	}
	m, err := mf.UnmarshalModel(bytes.NewReader(modelData))
	if err != nil {
		return nil, schema, errors.Annotate(err, modelEntry)
	}
	return m, schema, nil
}

func readEntry(zr *zip.Reader, name string) ([]byte, error) {
	f, err := zr.Open(name)
	if err != nil {
		return nil, errors.NewNotValid(err, "artifact without "+name)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, errors.Annotatef(err, "read %s", name)
	}
	return data, nil
}
