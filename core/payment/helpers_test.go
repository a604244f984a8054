package payment

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func nullLog() logrus.FieldLogger {
	log, _ := test.NewNullLogger()
	return log
}

type recorder struct {
	mu  sync.Mutex
	got []Resolution
}

func (r *recorder) Notify(res Resolution) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, res)
}

func (r *recorder) all() []Resolution {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Resolution(nil), r.got...)
}

type step struct {
	obs Observation
	err error
}

// script answers queries with steps in order, then repeats the last one.
type script struct {
	mu    sync.Mutex
	steps []step
	calls int
	refs  []string
}

func (s *script) Query(ctx context.Context, reference string) (Observation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.refs = append(s.refs, reference)
	i := s.calls
	s.calls++
	if i >= len(s.steps) {
		i = len(s.steps) - 1
	}
	return s.steps[i].obs, s.steps[i].err
}

func (s *script) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func pending() step {
	return step{obs: Observation{Status: PendingConfirmation, Message: "awaiting confirmation"}}
}

func repeat(s step, n int) []step {
	out := make([]step, n)
	for i := range out {
		out[i] = s
	}
	return out
}
