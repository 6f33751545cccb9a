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
	"io"

	"github.com/gorse-io/movie-recommender/base/progress"
	"github.com/schollz/progressbar/v3"
)

// progressBar renders progress spans in a terminal.
type progressBar struct {
	w   io.Writer
	bar *progressbar.ProgressBar
}

func newProgressBar(w io.Writer) *progressBar {
	return &progressBar{w: w}
}

func (p *progressBar) OnStart(name string, total int) {
	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(p.w),
		progressbar.OptionSetDescription(name),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish())
}

func (p *progressBar) OnAdd(_ string, count, _ int) {
	if p.bar != nil {
		_ = p.bar.Set(count)
	}
}

func (p *progressBar) OnEnd(_ string, status progress.Status) {
	if p.bar == nil {
		return
	}
	if status == progress.StatusComplete {
		_ = p.bar.Finish()
	} else {
		_ = p.bar.Exit()
	}
	p.bar = nil
}
