package payment

import (
	"sync"
)

// Tracker owns the state of one transaction for the duration of a checkout
// attempt. Every observer writes through Observe; the first terminal
// observation wins and is handed to the Notifier. Later observations, and
// all observations after Seal, are dropped.
type Tracker struct {
	principal string
	notifier  Notifier

	mu       sync.Mutex
	tx       Transaction
	source   Source
	sealed   bool
	done     chan struct{}
	closed   bool
	resolved bool
}

func NewTracker(principal string, reference string, n Notifier) *Tracker {
	return &Tracker{
		principal: principal,
		notifier:  n,
		tx: Transaction{
			Reference: reference,
			Status:    Initiated,
			Message:   "Payment request sent, awaiting confirmation.",
		},
		done: make(chan struct{}),
	}
}

// Observe applies o if the transaction is still open. It reports whether
// this call moved the transaction to a terminal state. Observations with a
// status outside the enumeration are dropped whole.
func (t *Tracker) Observe(src Source, o Observation) bool {
	if o.Status != "" && !o.Status.Known() {
		return false
	}

	t.mu.Lock()

	if t.sealed || t.tx.Status.Terminal() {
		t.mu.Unlock()
		return false
	}

	switch {
	case o.Status == "":
	case o.Status == Initiated:
		// an open transaction never goes back to initiated
	default:
		t.tx.Status = o.Status
	}
	if o.Message != "" {
		t.tx.Message = o.Message
	}

	if !t.tx.Status.Terminal() {
		t.mu.Unlock()
		return false
	}

	t.tx.OrderID = o.OrderID
	t.source = src
	t.resolved = true
	t.closeLocked()

	r := Resolution{Principal: t.principal, Transaction: t.tx, Source: src}
	t.mu.Unlock()

	if t.notifier != nil {
		t.notifier.Notify(r)
	}
	return true
}

// Note replaces the message of an open transaction.
func (t *Tracker) Note(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.sealed || t.tx.Status.Terminal() {
		return
	}
	t.tx.Message = msg
}

// Seal stops the tracker from accepting observations without resolving it.
// Sealing an already closed tracker is a no-op.
func (t *Tracker) Seal() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.sealed = true
	t.closeLocked()
}

// Done is closed once the tracker accepts no more observations, either
// because it resolved or because it was sealed.
func (t *Tracker) Done() <-chan struct{} {
	return t.done
}

func (t *Tracker) Snapshot() Transaction {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tx
}

// Resolution returns the terminal outcome, if any.
func (t *Tracker) Resolution() (Resolution, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.resolved {
		return Resolution{}, false
	}
	return Resolution{Principal: t.principal, Transaction: t.tx, Source: t.source}, true
}

func (t *Tracker) Reference() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tx.Reference
}

func (t *Tracker) Principal() string {
	return t.principal
}

func (t *Tracker) closeLocked() {
	if !t.closed {
		t.closed = true
		close(t.done)
	}
}
