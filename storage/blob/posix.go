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
	"os"
	"path/filepath"

	"github.com/gorse-io/movie-recommender/base/log"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// POSIX stores blobs as files in an existing directory.
type POSIX struct {
	dir string
}

func NewPOSIX(dir string) *POSIX {
	return &POSIX{dir: dir}
}

// Open a file for reading.
func (p *POSIX) Open(_ context.Context, name string) (io.ReadCloser, error) {
	file, err := os.Open(filepath.Join(p.dir, name))
	if err != nil {
		return nil, errors.Trace(err)
	}
	return file, nil
}

// Create a file for writing. Data goes to a temporary file in the same
// directory, which replaces the target on Close. The directory is never created.
func (p *POSIX) Create(_ context.Context, name string) (io.WriteCloser, error) {
	fullPath := filepath.Join(p.dir, name)
	file, err := os.CreateTemp(filepath.Dir(fullPath), "."+filepath.Base(fullPath)+".*")
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &posixWriter{file: file, path: fullPath}, nil
}

type posixWriter struct {
	file *os.File
	path string
	err  error
}

func (w *posixWriter) Write(p []byte) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	n, err := w.file.Write(p)
	if err != nil {
		w.err = errors.Trace(err)
	}
	return n, w.err
}

func (w *posixWriter) Close() error {
	err := w.err
	if closeErr := w.file.Close(); err == nil && closeErr != nil {
		err = errors.Trace(closeErr)
	}
	if err == nil {
		err = errors.Trace(os.Chmod(w.file.Name(), 0644))
	}
	if err == nil {
		err = errors.Trace(os.Rename(w.file.Name(), w.path))
	}
	if err != nil {
		if removeErr := os.Remove(w.file.Name()); removeErr != nil && !os.IsNotExist(removeErr) {
			log.Logger().Warn("failed to remove temporary file",
				zap.String("file", w.file.Name()), zap.Error(removeErr))
		}
		return err
	}
	return nil
}
