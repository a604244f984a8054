package payment

import (
	"context"
	"errors"
	"testing"
	"time"
)

func runPoller(t *testing.T, q Querier, max int, interval time.Duration, tr *Tracker) {
	t.Helper()

	p := &Poller{Querier: q, MaxAttempts: max, Interval: interval, Log: nullLog()}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = p.Run(context.Background(), tr)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("poller did not return")
	}
}

func TestPollerSucceedsOnSixthTick(t *testing.T) {
	q := &script{steps: append(repeat(pending(), 5),
		step{obs: Observation{Status: Successful, Message: "Payment received", OrderID: "O1"}},
	)}
	rec := &recorder{}
	tr := NewTracker("u1", "R1", rec)

	runPoller(t, q, 24, time.Millisecond, tr)

	if got := q.count(); got != 6 {
		t.Fatalf("expected 6 queries, got %d", got)
	}
	got := rec.all()
	if len(got) != 1 {
		t.Fatalf("expected one notification, got %d", len(got))
	}
	if got[0].Transaction.Status != Successful || got[0].Transaction.OrderID != "O1" {
		t.Fatalf("unexpected resolution %+v", got[0])
	}
	for _, ref := range q.refs {
		if ref != "R1" {
			t.Fatalf("queried unexpected reference %q", ref)
		}
	}
}

func TestPollerTimesOut(t *testing.T) {
	q := &script{steps: []step{pending()}}
	rec := &recorder{}
	tr := NewTracker("u1", "R2", rec)

	runPoller(t, q, 24, time.Millisecond, tr)

	if got := q.count(); got != 24 {
		t.Fatalf("expected exactly 24 queries, got %d", got)
	}
	got := rec.all()
	if len(got) != 1 || got[0].Transaction.Status != FailedTimeout {
		t.Fatalf("expected a single failed_timeout, got %+v", got)
	}
	if got[0].Source != SourcePoller {
		t.Fatalf("expected the poller to resolve, got %s", got[0].Source)
	}
}

func TestPollerForcedTerminalErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		exp  Status
	}{
		{"auth expired", ErrAuthExpired, FailedProcessingError},
		{"not found", ErrNotFound, NotFound},
		{"wrapped auth expired", errors.Join(errors.New("fetch"), ErrAuthExpired), FailedProcessingError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &script{steps: []step{pending(), {err: tt.err}}}
			rec := &recorder{}
			tr := NewTracker("u1", "R1", rec)

			runPoller(t, q, 24, time.Millisecond, tr)

			if got := q.count(); got != 2 {
				t.Fatalf("expected 2 queries, got %d", got)
			}
			got := rec.all()
			if len(got) != 1 || got[0].Transaction.Status != tt.exp {
				t.Fatalf("expected a single %s, got %+v", tt.exp, got)
			}
		})
	}
}

func TestPollerTransientErrorIsSoft(t *testing.T) {
	q := &script{steps: []step{
		{err: errors.New("connection reset")},
		{err: errors.New("connection reset")},
		{obs: Observation{Status: CancelledByUser, Message: "Request cancelled by user"}},
	}}
	rec := &recorder{}
	tr := NewTracker("u1", "R1", rec)

	runPoller(t, q, 24, time.Millisecond, tr)

	got := rec.all()
	if len(got) != 1 || got[0].Transaction.Status != CancelledByUser {
		t.Fatalf("expected a single cancelled_by_user, got %+v", got)
	}
	if got[0].Transaction.Message != "Request cancelled by user" {
		t.Fatalf("error message should be replaced by the next result, got %q", got[0].Transaction.Message)
	}
}

func TestPollerTransientErrorUpdatesMessage(t *testing.T) {
	q := &script{steps: []step{{err: errors.New("connection reset")}}}
	tr := NewTracker("u1", "R1", nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := &Poller{Querier: q, MaxAttempts: 24, Interval: time.Hour, Log: nullLog()}
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = p.Run(ctx, tr)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for tr.Snapshot().Message != msgQueryError && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	got := tr.Snapshot()
	if got.Message != msgQueryError {
		t.Fatalf("expected the error-reading message, got %q", got.Message)
	}
	if got.Status != Initiated {
		t.Fatalf("a failed query must not change the status, got %s", got.Status)
	}

	cancel()
	<-done

	if q.count() != 1 {
		t.Fatalf("expected a single query before the next interval, got %d", q.count())
	}
}

func TestPollerErrorOnLastAttemptTimesOut(t *testing.T) {
	q := &script{steps: []step{{err: errors.New("connection reset")}}}
	rec := &recorder{}
	tr := NewTracker("u1", "R1", rec)

	runPoller(t, q, 1, time.Millisecond, tr)

	got := rec.all()
	if len(got) != 1 || got[0].Transaction.Status != FailedTimeout {
		t.Fatalf("expected a single failed_timeout, got %+v", got)
	}
	if got[0].Transaction.Message != msgTimedOut {
		t.Fatalf("unexpected message %q", got[0].Transaction.Message)
	}
}

func TestPollerCancellationStopsTicks(t *testing.T) {
	q := &script{steps: []step{pending()}}
	rec := &recorder{}
	tr := NewTracker("u1", "R1", rec)

	ctx, cancel := context.WithCancel(context.Background())
	p := &Poller{Querier: q, MaxAttempts: 1000, Interval: 5 * time.Millisecond, Log: nullLog()}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = p.Run(ctx, tr)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()
	tr.Seal()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop after cancellation")
	}

	n := q.count()
	time.Sleep(50 * time.Millisecond)
	if q.count() != n {
		t.Fatalf("queries kept firing after cancellation: %d then %d", n, q.count())
	}
	if len(rec.all()) != 0 {
		t.Fatal("an abandoned attempt must not notify")
	}
}

func TestPollerDoesNotWaitForInflightQuery(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	q := QuerierFunc(func(ctx context.Context, reference string) (Observation, error) {
		<-release
		return Observation{Status: Successful, OrderID: "late"}, nil
	})

	rec := &recorder{}
	tr := NewTracker("u1", "R1", rec)
	ctx, cancel := context.WithCancel(context.Background())

	p := &Poller{Querier: q, MaxAttempts: 24, Interval: time.Millisecond, Log: nullLog()}
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = p.Run(ctx, tr)
	}()

	time.Sleep(10 * time.Millisecond)
	tr.Seal()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cancellation blocked on the in-flight query")
	}

	if len(rec.all()) != 0 {
		t.Fatal("a late result of an abandoned attempt must be dropped")
	}
}
