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

package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluateRegression(t *testing.T) {
	labels := []float32{1, 2, 3, 4}
	scores := []float32{2, 2, 3, 2}
	metrics := EvaluateRegression(labels, scores)
	assert.InDelta(t, 1.25, metrics.MSE, 1e-9)
	assert.InDelta(t, math.Sqrt(1.25), metrics.RMSE, 1e-9)
	assert.InDelta(t, 0.75, metrics.MAE, 1e-9)
	assert.InDelta(t, 1.25, metrics.Loss, 1e-9)
	// variance of labels is 5
	assert.InDelta(t, 0, metrics.RSquared, 1e-9)

	metrics = EvaluateRegression(labels, labels)
	assert.Zero(t, metrics.RMSE)
	assert.Equal(t, 1.0, metrics.RSquared)
}

func TestEvaluateRegression_Empty(t *testing.T) {
	metrics := EvaluateRegression(nil, nil)
	assert.True(t, math.IsNaN(metrics.RMSE))
	assert.True(t, math.IsNaN(metrics.MAE))
	assert.True(t, math.IsNaN(metrics.MSE))
	assert.True(t, math.IsNaN(metrics.RSquared))
	assert.True(t, math.IsNaN(metrics.Loss))
}

func TestEvaluateRegression_Mismatch(t *testing.T) {
	assert.Panics(t, func() {
		EvaluateRegression([]float32{1}, nil)
	})
}
