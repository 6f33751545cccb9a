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
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorse-io/movie-recommender/config"
	"github.com/gorse-io/movie-recommender/dataset"
	"github.com/gorse-io/movie-recommender/storage/blob"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const header = "userId,movieId,Label,timestamp\n"

func trainRatings() string {
	var builder strings.Builder
	builder.WriteString(header)
	for i := 0; i < 30; i++ {
		builder.WriteString("6,10,4,964982703\n")
	}
	for u := 1; u <= 5; u++ {
		for m := 1; m <= 5; m++ {
			if (u+m)%2 == 0 {
				_, _ = fmt.Fprintf(&builder, "%d,%d,%d,964982703\n", u, m, 1+(u*m)%5)
			}
		}
	}
	return builder.String()
}

func newTestPipeline(t *testing.T, train, test string) (*Pipeline, string) {
	dir := t.TempDir()
	cfg := config.GetDefaultConfig()
	cfg.Data.Dir = dir
	require.NoError(t, os.WriteFile(filepath.Join(dir, cfg.Data.TrainFile), []byte(train), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, cfg.Data.TestFile), []byte(test), 0644))
	store, err := blob.Open(cfg)
	require.NoError(t, err)
	return NewPipeline(cfg, store), dir
}

func TestPipeline_Run(t *testing.T) {
	p, dir := newTestPipeline(t, trainRatings(), header+"6,10,4,964982703\n1,1,3,964982703\n")
	result, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.TestSize)
	assert.False(t, math.IsNaN(result.Metrics.RMSE))
	assert.False(t, math.IsNaN(result.Metrics.RSquared))
	assert.True(t, result.Prediction.Recommended)
	assert.Equal(t, "Movie 10 is recommended for user 6", result.Prediction.Message())
	_, err = os.Stat(filepath.Join(dir, "MovieRecommenderModel.zip"))
	assert.NoError(t, err)

	// load model and predict again
	m, schema, err := p.LoadModel(context.Background())
	require.NoError(t, err)
	assert.Equal(t, dataset.DefaultColumns().Schema(), schema)
	assert.Equal(t, result.Prediction.Score, m.Predict(6, 10))
	assert.Equal(t, result.Prediction, PredictSingle(m, 6, 10, 3.5))
}

func TestPipeline_Deterministic(t *testing.T) {
	test := header + "6,10,4,964982703\n1,1,3,964982703\n2,2,5,964982703\n"
	p1, _ := newTestPipeline(t, trainRatings(), test)
	p2, _ := newTestPipeline(t, trainRatings(), test)
	r1, err := p1.Run(context.Background())
	require.NoError(t, err)
	r2, err := p2.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, r1.Metrics, r2.Metrics)
	assert.Equal(t, r1.Prediction, r2.Prediction)
}

func TestPipeline_EmptyTrainSet(t *testing.T) {
	p, dir := newTestPipeline(t, header, header+"6,10,4,964982703\n")
	_, err := p.Run(context.Background())
	assert.True(t, errors.Is(err, errors.NotValid))
	_, err = os.Stat(filepath.Join(dir, "MovieRecommenderModel.zip"))
	assert.True(t, os.IsNotExist(err))
}

func TestPipeline_EmptyTestSet(t *testing.T) {
	p, _ := newTestPipeline(t, trainRatings(), header)
	result, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, math.IsNaN(result.Metrics.RMSE))
	assert.True(t, math.IsNaN(result.Metrics.RSquared))
}

func TestPipeline_UnseenUser(t *testing.T) {
	p, _ := newTestPipeline(t, trainRatings(), header+"100,10,4,964982703\n6,10,4,964982703\n")
	train, test, err := p.LoadData()
	require.NoError(t, err)
	m, err := p.BuildTrainModel(context.Background(), train)
	require.NoError(t, err)
	metrics := p.EvaluateModel(m, test)
	assert.False(t, math.IsNaN(metrics.RMSE))
	assert.False(t, math.IsInf(metrics.RMSE, 0))
	assert.Zero(t, m.Predict(100, 10))
	assert.False(t, PredictSingle(m, 100, 10, 3.5).Recommended)
}

func TestPipeline_MissingFile(t *testing.T) {
	p, dir := newTestPipeline(t, trainRatings(), header)
	require.NoError(t, os.Remove(filepath.Join(dir, p.Config.Data.TestFile)))
	_, err := p.Run(context.Background())
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestPipeline_MalformedFile(t *testing.T) {
	p, dir := newTestPipeline(t, trainRatings(), header+"6,ten,4,964982703\n")
	_, err := p.Run(context.Background())
	assert.True(t, errors.Is(err, errors.NotValid))
	_, err = os.Stat(filepath.Join(dir, "MovieRecommenderModel.zip"))
	assert.True(t, os.IsNotExist(err))
}

func TestPipeline_MissingOutputDirectory(t *testing.T) {
	p, dir := newTestPipeline(t, trainRatings(), header)
	p.Config.Storage.Dir = filepath.Join(dir, "missing")
	p.Store = blob.NewPOSIX(p.Config.StorageDir())
	_, err := p.Run(context.Background())
	assert.True(t, errors.Is(err, os.ErrNotExist))
	_, err = os.Stat(p.Config.StorageDir())
	assert.True(t, os.IsNotExist(err))
}

func TestPipeline_Overwrite(t *testing.T) {
	p, dir := newTestPipeline(t, trainRatings(), header)
	path := filepath.Join(dir, "MovieRecommenderModel.zip")
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0644))
	_, err := p.Run(context.Background())
	require.NoError(t, err)
	_, _, err = p.LoadModel(context.Background())
	assert.NoError(t, err)
}

func TestPipeline_LoadModel(t *testing.T) {
	p, dir := newTestPipeline(t, trainRatings(), header)
	path := filepath.Join(dir, "MovieRecommenderModel.zip")

	// missing artifact
	_, _, err := p.LoadModel(context.Background())
	assert.True(t, errors.Is(err, os.ErrNotExist))

	// corrupted artifact
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0644))
	_, _, err = p.LoadModel(context.Background())
	assert.True(t, errors.Is(err, errors.NotValid))

	// schema mismatch
	_, err = p.Run(context.Background())
	require.NoError(t, err)
	p.Config.Data.LabelColumn = "rating"
	_, _, err = p.LoadModel(context.Background())
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestMostRated(t *testing.T) {
	dict := dataset.NewFreqDict()
	movieId, count := mostRated(dict)
	assert.Zero(t, movieId)
	assert.Zero(t, count)

	for _, v := range []int64{3, 10, 10, 7, 10, 3} {
		dict.Add(v)
	}
	movieId, count = mostRated(dict)
	assert.Equal(t, int64(10), movieId)
	assert.Equal(t, 3, count)

	// ties go to the first added
	dict.Add(3)
	movieId, count = mostRated(dict)
	assert.Equal(t, int64(3), movieId)
	assert.Equal(t, 3, count)
}

func TestPipeline_RatingHeader(t *testing.T) {
	train := strings.Replace(trainRatings(), header, "userId,movieId,rating,timestamp\n", 1)
	p, _ := newTestPipeline(t, train, "userId,movieId,rating,timestamp\n6,10,4,964982703\n")
	result, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.TestSize)
	assert.Equal(t, "Movie 10 is recommended for user 6", result.Prediction.Message())

	m, _, err := p.LoadModel(context.Background())
	require.NoError(t, err)
	movieId, count := mostRated(m.MovieDict)
	assert.Equal(t, int64(10), movieId)
	assert.Equal(t, 30, count)
}

type constantPredictor float32

func (c constantPredictor) Predict(int64, int64) float32 {
	return float32(c)
}

func TestPredictSingle(t *testing.T) {
	for _, c := range []struct {
		score       float32
		recommended bool
	}{
		{score: 3.5, recommended: false},
		{score: 3.45, recommended: false},
		{score: 3.54, recommended: false},
		{score: 3.55, recommended: false},
		{score: 3.56, recommended: true},
		{score: 3.6, recommended: true},
		{score: 0, recommended: false},
		{score: 5, recommended: true},
	} {
		prediction := PredictSingle(constantPredictor(c.score), 6, 10, 3.5)
		assert.Equal(t, c.recommended, prediction.Recommended, c.score)
		assert.Equal(t, c.score, prediction.Score)
	}
	assert.Equal(t, "Movie 10 is not recommended for user 6",
		PredictSingle(constantPredictor(3.5), 6, 10, 3.5).Message())
	assert.Equal(t, "Movie 10 is recommended for user 6",
		PredictSingle(constantPredictor(3.6), 6, 10, 3.5).Message())
}
