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

	"github.com/gorse-io/movie-recommender/base/log"
	"github.com/gorse-io/movie-recommender/config"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// Store keeps named blobs. A blob written by Create is visible once Close of
// the writer returns nil.
type Store interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Create(ctx context.Context, name string) (io.WriteCloser, error)
}

// Open the store selected by configuration.
func Open(cfg *config.Config) (Store, error) {
	log.Logger().Info("open blob store",
		zap.String("blob_store", cfg.Storage.BlobStore))
	switch cfg.Storage.BlobStore {
	case config.POSIX:
		return NewPOSIX(cfg.StorageDir()), nil
	case config.S3:
		return NewS3(cfg.Storage.S3)
	case config.GCS:
		return NewGCS(cfg.Storage.GCS)
	case config.Azure:
		return NewAzureBlob(cfg.Storage.Azure)
	}
	return nil, errors.NotSupportedf("blob store %q", cfg.Storage.BlobStore)
}

// pipeWriter streams writes to an upload running in another goroutine. Close
// waits for the upload and returns its error.
type pipeWriter struct {
	*io.PipeWriter
	done chan error
}

func newPipeWriter(upload func(r io.Reader) error) *pipeWriter {
	pr, pw := io.Pipe()
	done := make(chan error, 1)
	go func() {
		err := upload(pr)
		_ = pr.CloseWithError(err)
		done <- err
	}()
	return &pipeWriter{PipeWriter: pw, done: done}
}

func (w *pipeWriter) Close() error {
	if err := w.PipeWriter.Close(); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(<-w.done)
}
