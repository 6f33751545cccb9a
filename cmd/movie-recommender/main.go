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

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/google/uuid"
	"github.com/gorse-io/movie-recommender/base/log"
	"github.com/gorse-io/movie-recommender/base/progress"
	"github.com/gorse-io/movie-recommender/cmd/version"
	"github.com/gorse-io/movie-recommender/config"
	"github.com/gorse-io/movie-recommender/model"
	"github.com/gorse-io/movie-recommender/pipeline"
	"github.com/gorse-io/movie-recommender/storage/blob"
	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCommand = &cobra.Command{
	Use:   "movie-recommender",
	Short: "Train, evaluate and save a matrix factorization movie recommender.",
	Run: func(cmd *cobra.Command, args []string) {
		// Show version
		if showVersion, _ := cmd.PersistentFlags().GetBool("version"); showVersion {
			fmt.Fprint(cmd.OutOrStdout(), version.BuildInfo())
			return
		}
		p := setup(cmd)
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		ctx = progress.WithListener(ctx, newProgressBar(cmd.ErrOrStderr()))
		result, err := p.Run(ctx)
		if err != nil {
			log.Logger().Fatal("failed to run pipeline", zap.Error(err))
		}
		if err = renderMetrics(cmd.OutOrStdout(), result.Metrics); err != nil {
			log.Logger().Fatal("failed to render metrics", zap.Error(err))
		}
		fmt.Fprintln(cmd.OutOrStdout(), result.Prediction.Message())
	},
}

var predictCommand = &cobra.Command{
	Use:   "predict",
	Short: "Predict whether a movie is recommended for a user by the saved model.",
	Run: func(cmd *cobra.Command, args []string) {
		p := setup(cmd)
		if cmd.Flags().Changed("user") {
			p.Config.Predict.UserId, _ = cmd.Flags().GetInt64("user")
		}
		if cmd.Flags().Changed("movie") {
			p.Config.Predict.MovieId, _ = cmd.Flags().GetInt64("movie")
		}
		m, _, err := p.LoadModel(context.Background())
		if err != nil {
			log.Logger().Fatal("failed to load model", zap.Error(err))
		}
		prediction := pipeline.PredictSingle(m, p.Config.Predict.UserId, p.Config.Predict.MovieId, p.Config.Predict.Threshold)
		fmt.Fprintln(cmd.OutOrStdout(), prediction.Message())
	},
}

// setup initializes the logger and creates the pipeline from flags and configuration.
func setup(cmd *cobra.Command) *pipeline.Pipeline {
	flags := cmd.Root().PersistentFlags()
	debug, _ := flags.GetBool("debug")
	log.SetLogger(flags, debug)
	log.With(zap.String("run_id", uuid.NewString()))

	configPath, _ := flags.GetString("config")
	log.Logger().Info("load config", zap.String("config", configPath))
	conf, err := loadConfig(configPath, flags.Lookup("data-dir").Value.String(), flags.Changed("data-dir"))
	if err != nil {
		log.Logger().Fatal("failed to load config", zap.Error(err))
	}
	store, err := blob.Open(conf)
	if err != nil {
		log.Logger().Fatal("failed to open blob store", zap.Error(err))
	}
	return pipeline.NewPipeline(conf, store)
}

func loadConfig(path, dataDir string, overrideDataDir bool) (*config.Config, error) {
	conf, err := config.LoadConfig(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if overrideDataDir {
		conf.Data.Dir = dataDir
		if err = conf.Validate(); err != nil {
			return nil, errors.Trace(err)
		}
	}
	return conf, nil
}

func renderMetrics(w io.Writer, metrics model.RegressionMetrics) error {
	table := tablewriter.NewWriter(w)
	table.Header("Metric", "Value")
	for _, row := range [][]string{
		{"RMSE", fmt.Sprintf("%.4f", metrics.RMSE)},
		{"R-Squared", fmt.Sprintf("%.4f", metrics.RSquared)},
		{"MAE", fmt.Sprintf("%.4f", metrics.MAE)},
		{"MSE", fmt.Sprintf("%.4f", metrics.MSE)},
		{"Loss", fmt.Sprintf("%.4f", metrics.Loss)},
	} {
		if err := table.Append(row); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(table.Render())
}

func init() {
	log.AddFlags(rootCommand.PersistentFlags())
	rootCommand.PersistentFlags().Bool("debug", false, "use debug log mode")
	rootCommand.PersistentFlags().BoolP("version", "v", false, "movie recommender version")
	rootCommand.PersistentFlags().StringP("config", "c", "", "configuration file path")
	rootCommand.PersistentFlags().String("data-dir", "Data", "directory of ratings files and the model artifact")
	predictCommand.Flags().Int64("user", 6, "user id")
	predictCommand.Flags().Int64("movie", 10, "movie id")
	rootCommand.AddCommand(predictCommand)
}

func main() {
	defer log.CloseLogger()
	if err := rootCommand.Execute(); err != nil {
		log.Logger().Fatal("failed to execute", zap.Error(err))
	}
}
