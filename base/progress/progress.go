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

package progress

import (
	"context"
	"sync"
	"time"
)

type listenerKeyType struct{}

var listenerKey = listenerKeyType{}

type Status string

const (
	StatusRunning  Status = "Running"
	StatusComplete Status = "Complete"
	StatusFailed   Status = "Failed"
)

// Listener receives progress of spans started under a context.
type Listener interface {
	OnStart(name string, total int)
	OnAdd(name string, count, total int)
	OnEnd(name string, status Status)
}

// WithListener attaches a listener to a context.
func WithListener(ctx context.Context, listener Listener) context.Context {
	return context.WithValue(ctx, listenerKey, listener)
}

type Span struct {
	mu       sync.Mutex
	name     string
	status   Status
	total    int
	count    int
	err      error
	start    time.Time
	finish   time.Time
	listener Listener
}

// Start creates a span. Progress is reported to the listener of ctx if any.
func Start(ctx context.Context, name string, total int) *Span {
	span := &Span{
		name:   name,
		status: StatusRunning,
		total:  total,
		start:  time.Now(),
	}
	if ctx != nil {
		span.listener, _ = ctx.Value(listenerKey).(Listener)
	}
	if span.listener != nil {
		span.listener.OnStart(name, total)
	}
	return span
}

func (s *Span) Add(n int) {
	s.mu.Lock()
	s.count += n
	count := s.count
	s.mu.Unlock()
	if s.listener != nil {
		s.listener.OnAdd(s.name, count, s.total)
	}
}

func (s *Span) End() {
	s.mu.Lock()
	s.count = s.total
	s.status = StatusComplete
	s.finish = time.Now()
	s.mu.Unlock()
	if s.listener != nil {
		s.listener.OnEnd(s.name, StatusComplete)
	}
}

func (s *Span) Fail(err error) {
	s.mu.Lock()
	s.err = err
	s.status = StatusFailed
	s.finish = time.Now()
	s.mu.Unlock()
	if s.listener != nil {
		s.listener.OnEnd(s.name, StatusFailed)
	}
}

func (s *Span) Progress() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := Progress{
		Name:       s.name,
		Status:     s.status,
		Count:      s.count,
		Total:      s.total,
		StartTime:  s.start,
		FinishTime: s.finish,
	}
	if s.err != nil {
		p.Error = s.err.Error()
	}
	return p
}

type Progress struct {
	Name       string
	Status     Status
	Error      string
	Count      int
	Total      int
	StartTime  time.Time
	FinishTime time.Time
}
