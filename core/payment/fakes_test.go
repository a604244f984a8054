package payment

import (
	"context"
	"sync"
	"time"

	"github.com/Izzienjeri/shoply-sub000/database"
)

// memLedger keeps the first-write-wins rule of the real ledger in memory.
type memLedger struct {
	mu       sync.Mutex
	rows     map[string]Record
	pending  []string
	fetchErr error
}

func newMemLedger(rs ...Record) *memLedger {
	l := &memLedger{rows: make(map[string]Record)}
	for _, r := range rs {
		l.rows[r.Reference] = r
	}
	return l
}

func (l *memLedger) Fetch(ctx context.Context, reference string) (Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.fetchErr != nil {
		return Record{}, l.fetchErr
	}
	r, ok := l.rows[reference]
	if !ok {
		return Record{}, database.ErrDBNotFound
	}
	return r, nil
}

func (l *memLedger) Resolve(ctx context.Context, reference string, o Outcome) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	r, ok := l.rows[reference]
	if !ok || r.Status.Terminal() {
		return false, nil
	}
	r.Status = o.Status
	r.Message = o.Message
	if o.Receipt != "" {
		r.Receipt = &o.Receipt
	}
	if o.OrderID != "" {
		r.OrderID = &o.OrderID
	}
	l.rows[reference] = r
	return true, nil
}

func (l *memLedger) MarkPending(ctx context.Context, reference string, msg string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.pending = append(l.pending, reference)
	if r, ok := l.rows[reference]; ok && !r.Status.Terminal() {
		r.Status = PendingConfirmation
		r.Message = msg
		l.rows[reference] = r
	}
	return nil
}

func (l *memLedger) ListStale(ctx context.Context, before time.Time, limit int) ([]Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []Record
	for _, r := range l.rows {
		if !r.Status.Terminal() && r.CreatedAt.Before(before) {
			out = append(out, r)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (l *memLedger) get(reference string) Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rows[reference]
}

type fakeMaterializer struct {
	ledger  *memLedger
	orderID string
	err     error
	calls   int
}

func (m *fakeMaterializer) Materialize(ctx context.Context, rec Record, out Outcome) (string, error) {
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	ok, _ := m.ledger.Resolve(ctx, rec.Reference, Outcome{Status: out.Status, Message: out.Message, Receipt: out.Receipt, OrderID: m.orderID})
	if !ok {
		return "", ErrAlreadyResolved
	}
	return m.orderID, nil
}

type published struct {
	principal string
	event     Event
}

type fakePublisher struct {
	mu  sync.Mutex
	got []published
	err error
}

func (p *fakePublisher) Publish(ctx context.Context, principal string, ev Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.got = append(p.got, published{principal: principal, event: ev})
	return p.err
}

func (p *fakePublisher) all() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.got...)
}
