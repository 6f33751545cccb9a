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
)

// RegressionMetrics are the quality metrics of a rating model on a test set.
type RegressionMetrics struct {
	RMSE     float64
	MAE      float64
	MSE      float64
	RSquared float64
	Loss     float64 // mean squared loss
}

// EvaluateRegression compares scores against labels. All metrics are NaN if
// there are no labels. RSquared is not finite if all labels are equal.
func EvaluateRegression(labels, scores []float32) RegressionMetrics {
	if len(labels) != len(scores) {
		panic("labels and scores have different lengths")
	}
	if len(labels) == 0 {
		nan := math.NaN()
		return RegressionMetrics{RMSE: nan, MAE: nan, MSE: nan, RSquared: nan, Loss: nan}
	}
	n := float64(len(labels))
	var sum, sumAbs, sumSquare float64
	for i := range labels {
		sum += float64(labels[i])
		diff := float64(scores[i]) - float64(labels[i])
		sumAbs += math.Abs(diff)
		sumSquare += diff * diff
	}
	mean := sum / n
	var variance float64
	for _, label := range labels {
		diff := float64(label) - mean
		variance += diff * diff
	}
	mse := sumSquare / n
	return RegressionMetrics{
		RMSE:     math.Sqrt(mse),
		MAE:      sumAbs / n,
		MSE:      mse,
		RSquared: 1 - sumSquare/variance,
		Loss:     mse,
	}
}
