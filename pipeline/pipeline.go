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
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorse-io/movie-recommender/base/log"
	"github.com/gorse-io/movie-recommender/config"
	"github.com/gorse-io/movie-recommender/dataset"
	"github.com/gorse-io/movie-recommender/model"
	"github.com/gorse-io/movie-recommender/model/mf"
	"github.com/gorse-io/movie-recommender/storage/blob"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// Pipeline runs the stages of the movie recommender. Stages share the
// configuration and the artifact store.
type Pipeline struct {
	Config *config.Config
	Store  blob.Store
}

// NewPipeline creates a pipeline writing artifacts to store.
func NewPipeline(cfg *config.Config, store blob.Store) *Pipeline {
	return &Pipeline{Config: cfg, Store: store}
}

// Result is the outcome of a pipeline run.
type Result struct {
	TrainSize  int
	TestSize   int
	Metrics    model.RegressionMetrics
	Prediction Prediction
}

// Run loads data, trains, evaluates, predicts and saves the model in order.
// It stops at the first error.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	train, test, err := p.LoadData()
	if err != nil {
		return nil, errors.Trace(err)
	}
	m, err := p.BuildTrainModel(ctx, train)
	if err != nil {
		return nil, errors.Trace(err)
	}
	result := &Result{
		TrainSize:  train.Count(),
		TestSize:   test.Count(),
		Metrics:    p.EvaluateModel(m, test),
		Prediction: PredictSingle(m, p.Config.Predict.UserId, p.Config.Predict.MovieId, p.Config.Predict.Threshold),
	}
	if err = p.SaveModel(ctx, m, train.Schema()); err != nil {
		return nil, errors.Trace(err)
	}
	return result, nil
}

// LoadData loads the training and test tables.
func (p *Pipeline) LoadData() (train, test *dataset.Table, err error) {
	cfg := p.Config.Data
	train, test, err = dataset.LoadData(cfg.Dir, cfg.TrainFile, cfg.TestFile, cfg.GetLoadOptions())
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	return train, test, nil
}

// BuildTrainModel fits a matrix factorization model on the training table.
func (p *Pipeline) BuildTrainModel(ctx context.Context, train *dataset.Table) (*mf.MatrixFactorization, error) {
	log.Logger().Info("training the model",
		zap.Int("n_ratings", train.Count()),
		zap.Int("n_factors", p.Config.Model.NFactors),
		zap.Int("n_epochs", p.Config.Model.NEpochs))
	start := time.Now()
	m := mf.NewMatrixFactorization(p.Config.Model.GetParams())
	if err := m.Fit(ctx, train, mf.NewFitConfig()); err != nil {
		return nil, errors.Annotate(err, "train model")
	}
	movieId, count := mostRated(m.MovieDict)
	log.Logger().Info("complete training the model",
		zap.Duration("duration", time.Since(start)),
		zap.Int64("most_rated_movie", movieId),
		zap.Int("most_rated_count", count))
	return m, nil
}

// mostRated returns the value added most often to a dictionary and its count.
// Ties go to the smaller index. An empty dictionary gives (0, 0).
func mostRated(dict *dataset.FreqDict) (value int64, count int) {
	best := dataset.NotFound
	for id := int32(0); id < dict.Count(); id++ {
		if best == dataset.NotFound || dict.Freq(id) > dict.Freq(best) {
			best = id
		}
	}
	value, _ = dict.Value(best)
	return value, dict.Freq(best)
}

// EvaluateModel scores the test table and computes regression metrics. Rows
// with users or movies missing from the training table are scored 0.
func (p *Pipeline) EvaluateModel(m *mf.MatrixFactorization, test *dataset.Table) model.RegressionMetrics {
	labels := make([]float32, test.Count())
	unseenUsers := mapset.NewThreadUnsafeSet[int64]()
	unseenMovies := mapset.NewThreadUnsafeSet[int64]()
	unseenRows := 0
	for i := range labels {
		r := test.Get(i)
		labels[i] = r.Label
		userUnseen := m.UserDict.Id(r.UserId) == dataset.NotFound
		movieUnseen := m.MovieDict.Id(r.MovieId) == dataset.NotFound
		if userUnseen {
			unseenUsers.Add(r.UserId)
		}
		if movieUnseen {
			unseenMovies.Add(r.MovieId)
		}
		if userUnseen || movieUnseen {
			unseenRows++
		}
	}
	if unseenRows > 0 {
		log.Logger().Warn("unseen users or movies in test set",
			zap.Int("n_rows", unseenRows),
			zap.Int("n_users", unseenUsers.Cardinality()),
			zap.Int("n_movies", unseenMovies.Cardinality()))
	}
	metrics := model.EvaluateRegression(labels, m.Transform(test))
	log.Logger().Info("evaluate model",
		zap.Int("n_ratings", test.Count()),
		zap.Float64("rmse", metrics.RMSE),
		zap.Float64("r_squared", metrics.RSquared),
		zap.Float64("mae", metrics.MAE),
		zap.Float64("mse", metrics.MSE),
		zap.Float64("loss", metrics.Loss))
	return metrics
}

// Predictor scores a (user, movie) pair.
type Predictor interface {
	Predict(userId, movieId int64) float32
}

// Prediction is the recommendation of a movie to a user.
type Prediction struct {
	UserId      int64
	MovieId     int64
	Score       float32
	Recommended bool
}

// Message describes the prediction for humans.
func (p Prediction) Message() string {
	if p.Recommended {
		return fmt.Sprintf("Movie %d is recommended for user %d", p.MovieId, p.UserId)
	}
	return fmt.Sprintf("Movie %d is not recommended for user %d", p.MovieId, p.UserId)
}

// PredictSingle scores one pair. The movie is recommended if the score rounded
// to one decimal place is strictly greater than threshold.
func PredictSingle(m Predictor, userId, movieId int64, threshold float32) Prediction {
	score := m.Predict(userId, movieId)
	prediction := Prediction{
		UserId:      userId,
		MovieId:     movieId,
		Score:       score,
		Recommended: math.Round(float64(score)*10)/10 > float64(threshold),
	}
	log.Logger().Info("predict",
		zap.Int64("user_id", userId),
		zap.Int64("movie_id", movieId),
		zap.Float32("score", score),
		zap.Bool("recommended", prediction.Recommended))
	return prediction
}
