package payment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Izzienjeri/shoply-sub000/database"
)

type fetchFunc func(ctx context.Context, reference string) (Record, error)

func (f fetchFunc) Fetch(ctx context.Context, reference string) (Record, error) {
	return f(ctx, reference)
}

func TestLedgerQuerier(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	order := "O1"

	rows := map[string]Record{
		"R1": {Reference: "R1", Principal: "u1", Status: Initiated},
		"R2": {Reference: "R2", Principal: "u1", Status: Successful, Message: "paid", OrderID: &order},
		"R3": {Reference: "R3", Principal: "u2", Status: Initiated},
		"R4": {Reference: "R4", Principal: "u1", Status: "refunded"},
	}
	ledger := fetchFunc(func(ctx context.Context, ref string) (Record, error) {
		if ref == "broken" {
			return Record{}, errors.New("connection refused")
		}
		r, ok := rows[ref]
		if !ok {
			return Record{}, database.ErrDBNotFound
		}
		return r, nil
	})

	q := &LedgerQuerier{Ledger: ledger, Principal: "u1", Expiry: now.Add(time.Hour), Now: func() time.Time { return now }}
	ctx := context.Background()

	obs, err := q.Query(ctx, "R1")
	if err != nil || obs.Status != PendingConfirmation || obs.Message != msgAwaiting {
		t.Fatalf("expected pending confirmation, got %+v (%v)", obs, err)
	}

	obs, err = q.Query(ctx, "R2")
	if err != nil || obs.Status != Successful || obs.OrderID != "O1" {
		t.Fatalf("expected success with O1, got %+v (%v)", obs, err)
	}

	if _, err := q.Query(ctx, "R3"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("another principal's transaction must look absent, got %v", err)
	}
	if _, err := q.Query(ctx, "R9"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	if obs, err := q.Query(ctx, "R4"); err == nil {
		t.Fatalf("a stored status outside the enumeration must not be reported, got %+v", obs)
	}

	_, err = q.Query(ctx, "broken")
	if err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, ErrAuthExpired) {
		t.Fatalf("expected a transient error, got %v", err)
	}

	q.Now = func() time.Time { return now.Add(2 * time.Hour) }
	if _, err := q.Query(ctx, "R1"); !errors.Is(err, ErrAuthExpired) {
		t.Fatalf("expected session expiry, got %v", err)
	}
}
