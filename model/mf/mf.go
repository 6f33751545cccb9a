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

package mf

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/bits-and-blooms/bitset"
	"github.com/chewxy/math32"
	"github.com/gorse-io/movie-recommender/base"
	"github.com/gorse-io/movie-recommender/base/encoding"
	"github.com/gorse-io/movie-recommender/base/log"
	"github.com/gorse-io/movie-recommender/base/progress"
	"github.com/gorse-io/movie-recommender/common/floats"
	"github.com/gorse-io/movie-recommender/dataset"
	"github.com/gorse-io/movie-recommender/model"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

const ModelName = "mf"

type FitConfig struct {
	Verbose int // log training loss every Verbose epochs
}

func NewFitConfig() *FitConfig {
	return &FitConfig{Verbose: 1}
}

func (config *FitConfig) SetVerbose(verbose int) *FitConfig {
	config.Verbose = verbose
	return config
}

// MatrixFactorization predicts the rating of a user to a movie by the dot
// product of their latent factors:
//
//	\hat{r}_{ui} = p_u^T q_i
//
// Factors are learned by SGD on squared error with L2 regularization. Each
// row of factors has its own AdaGrad learning rate.
//
// Hyper-parameters:
//
//	NFactors	- The number of latent factors. Default is 100.
//	NEpochs		- The number of passes over the training set. Default is 20.
//	Lr		- The initial learning rate. Default is 0.1.
//	Reg		- The regularization strength. Default is 0.1.
//	InitLow		- The lower bound of initial factors. Default is 0.
//	InitHigh	- The upper bound of initial factors. Default is 1/sqrt(NFactors).
//	RandomState	- The seed of initialization and shuffling. Default is 0.
type MatrixFactorization struct {
	model.BaseModel
	UserDict         *dataset.FreqDict
	MovieDict        *dataset.FreqDict
	UserPredictable  *bitset.BitSet
	MoviePredictable *bitset.BitSet
	// Model parameters
	UserFactor  [][]float32 // p_u
	MovieFactor [][]float32 // q_i
	// Hyper parameters
	nFactors int
	nEpochs  int
	lr       float32
	reg      float32
	initLow  float32
	initHigh float32
}

// NewMatrixFactorization creates a matrix factorization model.
func NewMatrixFactorization(params model.Params) *MatrixFactorization {
	m := new(MatrixFactorization)
	m.SetParams(params)
	return m
}

func DefaultParams() model.Params {
	return model.Params{
		model.NFactors:    100,
		model.NEpochs:     20,
		model.Lr:          float32(0.1),
		model.Reg:         float32(0.1),
		model.RandomState: int64(0),
	}
}

// SetParams sets hyper-parameters of the model.
func (m *MatrixFactorization) SetParams(params model.Params) {
	m.BaseModel.SetParams(params)
	m.nFactors = m.Params.GetInt(model.NFactors, 100)
	m.nEpochs = m.Params.GetInt(model.NEpochs, 20)
	m.lr = m.Params.GetFloat32(model.Lr, 0.1)
	m.reg = m.Params.GetFloat32(model.Reg, 0.1)
	m.initLow = m.Params.GetFloat32(model.InitLow, 0)
	m.initHigh = m.Params.GetFloat32(model.InitHigh, 1/math32.Sqrt(float32(m.nFactors)))
}

func (m *MatrixFactorization) init(train *dataset.Table) {
	m.UserDict, m.MovieDict = dataset.BuildDicts(train)
	nUsers, nMovies := m.UserDict.Count(), m.MovieDict.Count()
	m.UserPredictable = bitset.New(uint(nUsers))
	m.MoviePredictable = bitset.New(uint(nMovies))
	m.ResetRandomGenerator()
	rng := m.GetRandomGenerator()
	m.UserFactor = rng.UniformMatrix(int(nUsers), m.nFactors, m.initLow, m.initHigh)
	m.MovieFactor = rng.UniformMatrix(int(nMovies), m.nFactors, m.initLow, m.initHigh)
}

// Fit the model on a training table. The table must not be empty.
func (m *MatrixFactorization) Fit(ctx context.Context, train *dataset.Table, config *FitConfig) error {
	if train.Count() == 0 {
		return errors.NotValidf("empty training set")
	}
	if m.nFactors <= 0 || m.nEpochs < 0 {
		return errors.NotValidf("hyper-parameters %v", m.Params.ToString())
	}
	if config == nil {
		config = NewFitConfig()
	}
	log.Logger().Info("fit mf",
		zap.Int("train_set_size", train.Count()),
		zap.Any("params", m.GetParams()),
		zap.Any("config", config))
	m.init(train)
	users, movies := dataset.Encode(train, m.UserDict, m.MovieDict)
	for i := range users {
		m.UserPredictable.Set(uint(users[i]))
		m.MoviePredictable.Set(uint(movies[i]))
	}
	rng := m.GetRandomGenerator()
	// Create buffers
	userGrad := make([]float32, m.nFactors)
	movieGrad := make([]float32, m.nFactors)
	userG := base.RepeatFloat32s(len(m.UserFactor), 1)
	movieG := base.RepeatFloat32s(len(m.MovieFactor), 1)
	k := float32(m.nFactors)
	// Training
	span := progress.Start(ctx, "MatrixFactorization.Fit", m.nEpochs)
	for epoch := 1; epoch <= m.nEpochs; epoch++ {
		if err := ctx.Err(); err != nil {
			span.Fail(err)
			return errors.Trace(err)
		}
		fitStart := time.Now()
		var cost float32
		for _, j := range rng.Permutation(train.Count()) {
			u, i := users[j], movies[j]
			p, q := m.UserFactor[u], m.MovieFactor[i]
			diff := train.Get(j).Label - floats.Dot(p, q)
			cost += diff * diff
			// gradient of user latent factor: -e q_i + \lambda p_u
			floats.MulConstTo(q, -diff, userGrad)
			floats.MulConstAdd(p, m.reg, userGrad)
			// gradient of movie latent factor: -e p_u + \lambda q_i
			floats.MulConstTo(p, -diff, movieGrad)
			floats.MulConstAdd(q, m.reg, movieGrad)
			// AdaGrad update
			floats.MulConstAdd(userGrad, -m.lr/math32.Sqrt(userG[u]), p)
			floats.MulConstAdd(movieGrad, -m.lr/math32.Sqrt(movieG[i]), q)
			userG[u] += floats.Dot(userGrad, userGrad) / k
			movieG[i] += floats.Dot(movieGrad, movieGrad) / k
		}
		rmse := math32.Sqrt(cost / float32(train.Count()))
		if math32.IsNaN(rmse) || math32.IsInf(rmse, 0) {
			err := errors.NotValidf("training loss %v at epoch %d", rmse, epoch)
			span.Fail(err)
			return err
		}
		if epoch%config.Verbose == 0 || epoch == m.nEpochs {
			log.Logger().Debug(fmt.Sprintf("fit mf %v/%v", epoch, m.nEpochs),
				zap.String("fit_time", time.Since(fitStart).String()),
				zap.Float32("train_rmse", rmse))
		}
		span.Add(1)
	}
	span.End()
	log.Logger().Info("fit mf complete",
		zap.Int32("n_users", m.UserDict.Count()),
		zap.Int32("n_movies", m.MovieDict.Count()))
	return nil
}

// IsUserPredictable returns false if the user has no rating in the training set.
func (m *MatrixFactorization) IsUserPredictable(userIndex int32) bool {
	if userIndex < 0 || userIndex >= m.UserDict.Count() {
		return false
	}
	return m.UserPredictable.Test(uint(userIndex))
}

// IsMoviePredictable returns false if the movie has no rating in the training set.
func (m *MatrixFactorization) IsMoviePredictable(movieIndex int32) bool {
	if movieIndex < 0 || movieIndex >= m.MovieDict.Count() {
		return false
	}
	return m.MoviePredictable.Test(uint(movieIndex))
}

// Predict the rating given by a user to a movie. It is the single-row entry
// point: unknown users or movies are scored 0 and logged as a warning. Use
// Transform to score a table without per-row logs.
func (m *MatrixFactorization) Predict(userId, movieId int64) float32 {
	userIndex := m.UserDict.Id(userId)
	movieIndex := m.MovieDict.Id(movieId)
	if !m.IsUserPredictable(userIndex) {
		log.Logger().Warn("unknown user", zap.Int64("user_id", userId))
		return 0
	}
	if !m.IsMoviePredictable(movieIndex) {
		log.Logger().Warn("unknown movie", zap.Int64("movie_id", movieId))
		return 0
	}
	return m.internalPredict(userIndex, movieIndex)
}

func (m *MatrixFactorization) internalPredict(userIndex, movieIndex int32) float32 {
	return floats.Dot(m.UserFactor[userIndex], m.MovieFactor[movieIndex])
}

// Transform scores every row of a table. Rows with unknown users or movies
// are scored 0.
func (m *MatrixFactorization) Transform(t *dataset.Table) []float32 {
	users, movies := dataset.Encode(t, m.UserDict, m.MovieDict)
	scores := make([]float32, t.Count())
	for i := range scores {
		if m.IsUserPredictable(users[i]) && m.IsMoviePredictable(movies[i]) {
			scores[i] = m.internalPredict(users[i], movies[i])
		}
	}
	return scores
}

// Marshal model into byte stream.
func (m *MatrixFactorization) Marshal(w io.Writer) error {
	// write params
	if err := encoding.WriteGob(w, m.Params); err != nil {
		return errors.Trace(err)
	}
	// write dictionaries
	if err := m.UserDict.Marshal(w); err != nil {
		return errors.Trace(err)
	}
	if err := m.MovieDict.Marshal(w); err != nil {
		return errors.Trace(err)
	}
	// write latent factors
	if err := encoding.WriteMatrix(w, m.UserFactor); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(encoding.WriteMatrix(w, m.MovieFactor))
}

// Unmarshal model from byte stream. If r reports the number of unread bytes by
// Len, as bytes.Reader does, latent factors larger than that are rejected
// before allocation.
func (m *MatrixFactorization) Unmarshal(r io.Reader) error {
	// read params
	var params model.Params
	if err := encoding.ReadGob(r, &params); err != nil {
		return errors.Trace(err)
	}
	m.SetParams(params)
	if m.nFactors <= 0 {
		return errors.NotValidf("number of factors %d", m.nFactors)
	}
	// read dictionaries
	m.UserDict, m.MovieDict = dataset.NewFreqDict(), dataset.NewFreqDict()
	if err := m.UserDict.Unmarshal(r); err != nil {
		return errors.Trace(err)
	}
	if err := m.MovieDict.Unmarshal(r); err != nil {
		return errors.Trace(err)
	}
	// every user and movie in dictionaries has been trained
	m.UserPredictable = bitset.New(uint(m.UserDict.Count()))
	for i := int32(0); i < m.UserDict.Count(); i++ {
		m.UserPredictable.Set(uint(i))
	}
	m.MoviePredictable = bitset.New(uint(m.MovieDict.Count()))
	for i := int32(0); i < m.MovieDict.Count(); i++ {
		m.MoviePredictable.Set(uint(i))
	}
	// read latent factors
	if sized, ok := r.(interface{ Len() int }); ok {
		rows := int64(m.UserDict.Count()) + int64(m.MovieDict.Count())
		if rows > 0 && int64(m.nFactors) > int64(sized.Len())/4/rows {
			return errors.NotValidf("%d factors of %d rows in %d bytes", m.nFactors, rows, sized.Len())
		}
	}
	m.UserFactor = base.NewMatrix32(int(m.UserDict.Count()), m.nFactors)
	if err := encoding.ReadMatrix(r, m.UserFactor); err != nil {
		return errors.Trace(err)
	}
	m.MovieFactor = base.NewMatrix32(int(m.MovieDict.Count()), m.nFactors)
	return errors.Trace(encoding.ReadMatrix(r, m.MovieFactor))
}

func (m *MatrixFactorization) Clear() {
	m.UserDict = nil
	m.MovieDict = nil
	m.UserPredictable = nil
	m.MoviePredictable = nil
	m.UserFactor = nil
	m.MovieFactor = nil
}

func (m *MatrixFactorization) Invalid() bool {
	return m == nil ||
		m.UserDict == nil ||
		m.MovieDict == nil ||
		m.UserFactor == nil ||
		m.MovieFactor == nil
}

// MarshalModel writes the model name followed by the model.
func MarshalModel(w io.Writer, m model.Model) error {
	factorization, ok := m.(*MatrixFactorization)
	if !ok {
		return errors.NotSupportedf("model %T", m)
	}
	if err := encoding.WriteString(w, ModelName); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(factorization.Marshal(w))
}

// UnmarshalModel reads a model written by MarshalModel.
func UnmarshalModel(r io.Reader) (*MatrixFactorization, error) {
	name, err := encoding.ReadString(r)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if name != ModelName {
		return nil, errors.NotSupportedf("model %q", name)
	}
	var m MatrixFactorization
	if err := m.Unmarshal(r); err != nil {
		return nil, errors.Trace(err)
	}
	return &m, nil
}
