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

package log

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestSetLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recommender.log")
	flagSet := pflag.NewFlagSet("test", pflag.ContinueOnError)
	AddFlags(flagSet)
	assert.NoError(t, flagSet.Parse([]string{"--log-path", path}))

	SetLogger(flagSet, false)
	Logger().Info("hello", zap.String("stage", "test"))
	_ = Logger().Sync()
	data, err := os.ReadFile(path)
	assert.NoError(t, err)
	assert.Contains(t, string(data), "\"stage\":\"test\"")

	SetLogger(flagSet, true)
	Logger().Debug("debug line")
	_ = Logger().Sync()
	data, err = os.ReadFile(path)
	assert.NoError(t, err)
	assert.Contains(t, string(data), "debug line")
}

func TestWith(t *testing.T) {
	before := Logger()
	With(zap.String("run_id", "abc"))
	assert.NotSame(t, before, Logger())
	CloseLogger()
}
