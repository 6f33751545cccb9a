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

package config

import (
	"reflect"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/gorse-io/movie-recommender/dataset"
	"github.com/gorse-io/movie-recommender/model"
	"github.com/juju/errors"
	"github.com/spf13/viper"
)

const EnvPrefix = "MOVIE_RECOMMENDER"

const (
	POSIX = "posix"
	S3    = "s3"
	GCS   = "gcs"
	Azure = "azure"
)

// Config is the configuration of the movie recommender.
type Config struct {
	Data    DataConfig    `mapstructure:"data"`
	Model   ModelConfig   `mapstructure:"model"`
	Predict PredictConfig `mapstructure:"predict"`
	Storage StorageConfig `mapstructure:"storage"`
}

// DataConfig describes the location and format of ratings files. User, movie
// and label are the first three columns unless ColumnsByName is set.
type DataConfig struct {
	Dir           string    `mapstructure:"dir" validate:"required"`
	TrainFile     string    `mapstructure:"train_file" validate:"required"`
	TestFile      string    `mapstructure:"test_file" validate:"required"`
	Separator     Separator `mapstructure:"separator" validate:"required"`
	HasHeader     bool      `mapstructure:"has_header"`
	ColumnsByName bool      `mapstructure:"columns_by_name"`
	UserColumn    string    `mapstructure:"user_column" validate:"required"`
	MovieColumn   string    `mapstructure:"movie_column" validate:"required"`
	LabelColumn   string    `mapstructure:"label_column" validate:"required"`
}

// ModelConfig holds hyper-parameters of matrix factorization. InitHigh of 0
// means 1/sqrt(NFactors).
type ModelConfig struct {
	NFactors    int     `mapstructure:"n_factors" validate:"gt=0"`
	NEpochs     int     `mapstructure:"n_epochs" validate:"gte=0"`
	Lr          float32 `mapstructure:"lr" validate:"gt=0"`
	Reg         float32 `mapstructure:"reg" validate:"gte=0"`
	InitLow     float32 `mapstructure:"init_low"`
	InitHigh    float32 `mapstructure:"init_high" validate:"omitempty,gtfield=InitLow"`
	RandomState int64   `mapstructure:"random_state"`
}

type PredictConfig struct {
	UserId    int64   `mapstructure:"user_id"`
	MovieId   int64   `mapstructure:"movie_id"`
	Threshold float32 `mapstructure:"threshold"`
}

// StorageConfig chooses where the model artifact is written. The POSIX store
// writes into Dir, or into the data directory if Dir is empty.
type StorageConfig struct {
	ModelName string          `mapstructure:"model_name" validate:"required"`
	BlobStore string          `mapstructure:"blob_store" validate:"oneof=posix s3 gcs azure"`
	Dir       string          `mapstructure:"dir"`
	S3        S3Config        `mapstructure:"s3"`
	GCS       GCSConfig       `mapstructure:"gcs"`
	Azure     AzureBlobConfig `mapstructure:"azure"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
}

type GCSConfig struct {
	CredentialsFile string `mapstructure:"credentials_file"`
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
}

type AzureBlobConfig struct {
	ConnectionString string `mapstructure:"connection_string"`
	AccountName      string `mapstructure:"account_name"`
	AccountKey       string `mapstructure:"account_key"`
	Endpoint         string `mapstructure:"endpoint"`
	Container        string `mapstructure:"container"`
	Prefix           string `mapstructure:"prefix"`
}

// Separator is a field separator. It is written as a single character or "tab".
type Separator rune

func (s *Separator) UnmarshalText(text []byte) error {
	switch str := string(text); {
	case str == "tab" || str == `\t`:
		*s = '\t'
	case utf8.RuneCountInString(str) == 1:
		r, _ := utf8.DecodeRuneInString(str)
		*s = Separator(r)
	default:
		return errors.NotValidf("separator %q", str)
	}
	return nil
}

func GetDefaultConfig() *Config {
	return &Config{
		Data: DataConfig{
			Dir:         "Data",
			TrainFile:   "recommendation-ratings-train.csv",
			TestFile:    "recommendation-ratings-test.csv",
			Separator:   ',',
			HasHeader:   true,
			UserColumn:  "userId",
			MovieColumn: "movieId",
			LabelColumn: "Label",
		},
		Model: ModelConfig{
			NFactors: 100,
			NEpochs:  20,
			Lr:       0.1,
			Reg:      0.1,
		},
		Predict: PredictConfig{
			UserId:    6,
			MovieId:   10,
			Threshold: 3.5,
		},
		Storage: StorageConfig{
			ModelName: "MovieRecommenderModel.zip",
			BlobStore: POSIX,
		},
	}
}

func setDefault(v *viper.Viper) {
	defaultConfig := GetDefaultConfig()
	// [data]
	v.SetDefault("data.dir", defaultConfig.Data.Dir)
	v.SetDefault("data.train_file", defaultConfig.Data.TrainFile)
	v.SetDefault("data.test_file", defaultConfig.Data.TestFile)
	v.SetDefault("data.separator", string(rune(defaultConfig.Data.Separator)))
	v.SetDefault("data.has_header", defaultConfig.Data.HasHeader)
	v.SetDefault("data.columns_by_name", defaultConfig.Data.ColumnsByName)
	v.SetDefault("data.user_column", defaultConfig.Data.UserColumn)
	v.SetDefault("data.movie_column", defaultConfig.Data.MovieColumn)
	v.SetDefault("data.label_column", defaultConfig.Data.LabelColumn)
	// [model]
	v.SetDefault("model.n_factors", defaultConfig.Model.NFactors)
	v.SetDefault("model.n_epochs", defaultConfig.Model.NEpochs)
	v.SetDefault("model.lr", defaultConfig.Model.Lr)
	v.SetDefault("model.reg", defaultConfig.Model.Reg)
	v.SetDefault("model.init_low", defaultConfig.Model.InitLow)
	v.SetDefault("model.init_high", defaultConfig.Model.InitHigh)
	v.SetDefault("model.random_state", defaultConfig.Model.RandomState)
	// [predict]
	v.SetDefault("predict.user_id", defaultConfig.Predict.UserId)
	v.SetDefault("predict.movie_id", defaultConfig.Predict.MovieId)
	v.SetDefault("predict.threshold", defaultConfig.Predict.Threshold)
	// [storage]
	v.SetDefault("storage.model_name", defaultConfig.Storage.ModelName)
	v.SetDefault("storage.blob_store", defaultConfig.Storage.BlobStore)
	v.SetDefault("storage.dir", defaultConfig.Storage.Dir)
	for _, key := range []string{
		"s3.endpoint", "s3.access_key_id", "s3.secret_access_key", "s3.use_ssl", "s3.bucket", "s3.prefix",
		"gcs.credentials_file", "gcs.bucket", "gcs.prefix",
		"azure.connection_string", "azure.account_name", "azure.account_key", "azure.endpoint", "azure.container", "azure.prefix",
	} {
		if strings.HasSuffix(key, "use_ssl") {
			v.SetDefault("storage."+key, false)
		} else {
			v.SetDefault("storage."+key, "")
		}
	}
}

// LoadConfig loads configuration from a TOML or YAML file, or from defaults if
// path is empty. Environment variables MOVIE_RECOMMENDER_<SECTION>_<KEY> take
// precedence over the file.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefault(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range v.AllKeys() {
		if err := v.BindEnv(key); err != nil {
			return nil, errors.Trace(err)
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Annotatef(err, "read config %s", path)
		}
	}
	var conf Config
	if err := v.Unmarshal(&conf, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, errors.Annotate(err, "decode config")
	}
	if err := conf.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &conf, nil
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(field reflect.StructField) string {
			return field.Tag.Get("mapstructure")
		})
		validate.RegisterStructValidation(validateStorage, StorageConfig{})
	})
	return validate
}

// validateStorage requires the location of the selected remote store.
func validateStorage(sl validator.StructLevel) {
	storage := sl.Current().Interface().(StorageConfig)
	switch storage.BlobStore {
	case S3:
		if storage.S3.Endpoint == "" {
			sl.ReportError(storage.S3.Endpoint, "s3.endpoint", "Endpoint", "required", "")
		}
		if storage.S3.Bucket == "" {
			sl.ReportError(storage.S3.Bucket, "s3.bucket", "Bucket", "required", "")
		}
	case GCS:
		if storage.GCS.Bucket == "" {
			sl.ReportError(storage.GCS.Bucket, "gcs.bucket", "Bucket", "required", "")
		}
	case Azure:
		if storage.Azure.Container == "" {
			sl.ReportError(storage.Azure.Container, "azure.container", "Container", "required", "")
		}
		if storage.Azure.ConnectionString == "" && (storage.Azure.AccountName == "" || storage.Azure.AccountKey == "") {
			sl.ReportError(storage.Azure.ConnectionString, "azure.connection_string", "ConnectionString", "required", "")
		}
	}
}

// Validate checks the configuration.
func (config *Config) Validate() error {
	if err := getValidator().Struct(config); err != nil {
		return errors.NewNotValid(err, "invalid config")
	}
	return nil
}

// StorageDir is the directory of the POSIX artifact store.
func (config *Config) StorageDir() string {
	if config.Storage.Dir != "" {
		return config.Storage.Dir
	}
	return config.Data.Dir
}

func (config *DataConfig) GetLoadOptions() dataset.LoadOptions {
	return dataset.LoadOptions{
		Separator:     rune(config.Separator),
		HasHeader:     config.HasHeader,
		ColumnsByName: config.ColumnsByName,
		Columns: dataset.Columns{
			User:  config.UserColumn,
			Movie: config.MovieColumn,
			Label: config.LabelColumn,
		},
	}
}

func (config *ModelConfig) GetParams() model.Params {
	params := model.Params{
		model.NFactors:    config.NFactors,
		model.NEpochs:     config.NEpochs,
		model.Lr:          config.Lr,
		model.Reg:         config.Reg,
		model.InitLow:     config.InitLow,
		model.RandomState: config.RandomState,
	}
	if config.InitHigh != 0 {
		params[model.InitHigh] = config.InitHigh
	}
	return params
}
