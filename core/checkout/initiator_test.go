package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Izzienjeri/shoply-sub000/core/cart"
	"github.com/Izzienjeri/shoply-sub000/core/payment"
	"github.com/Izzienjeri/shoply-sub000/daraja"
	"github.com/Izzienjeri/shoply-sub000/daraja/darajatest"
	"github.com/shopspring/decimal"
)

func newInitiator(t *testing.T) (*Initiator, *darajatest.Server, *memLedger) {
	t.Helper()

	srv := darajatest.NewServer()
	t.Cleanup(srv.Close)

	client := daraja.New(daraja.Config{
		BaseURL:         srv.URL,
		ConsumerKey:     darajatest.ConsumerKey,
		ConsumerSecret:  darajatest.ConsumerSecret,
		Shortcode:       "174379",
		Passkey:         "passkey",
		TransactionType: "CustomerPayBillOnline",
		CallbackURL:     "https://shoply.example/payments/callback",
		Timeout:         5 * time.Second,
	}, nullLog())

	ledger := newMemLedger()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return &Initiator{
		Gateway: client,
		Ledger:  ledger,
		Log:     nullLog(),
		Now:     func() time.Time { return now },
	}, srv, ledger
}

func request(amount string) Request {
	return Request{
		ContactID:        "254708374149",
		DeliveryOptionID: "d-pickup",
		Amount:           decimal.RequireFromString(amount),
	}
}

func TestSubmitAccepted(t *testing.T) {
	in, srv, ledger := newInitiator(t)

	c := sampleCart()
	tx, err := in.Submit(context.Background(), "u1", c, cart.Evaluate(c), request("2000.40"))
	if err != nil {
		t.Fatalf("submitting: %v", err)
	}
	if tx.Status != payment.Initiated || tx.Reference == "" {
		t.Fatalf("unexpected transaction %+v", tx)
	}

	pushes := srv.Pushes()
	if len(pushes) != 1 {
		t.Fatalf("expected exactly one push, got %d", len(pushes))
	}
	if pushes[0]["AccountReference"] != "CART_9f1c2d3e" || pushes[0]["PhoneNumber"] != "254708374149" {
		t.Fatalf("unexpected push %v", pushes[0])
	}
	if pushes[0]["Amount"] != float64(2001) {
		t.Fatalf("expected the charge rounded up to 2001, got %v", pushes[0]["Amount"])
	}

	rec, ok := ledger.record(tx.Reference)
	if !ok {
		t.Fatal("accepted push not recorded")
	}
	if rec.Status != payment.Initiated || rec.Principal != "u1" || rec.CartID != c.ID {
		t.Fatalf("unexpected record %+v", rec)
	}
	if !rec.Amount.Equal(decimal.RequireFromString("2000.40")) || !rec.ChargedAmount.Equal(decimal.NewFromInt(2001)) {
		t.Fatalf("expected 2000.40 charged as 2001, got %s / %s", rec.Amount, rec.ChargedAmount)
	}
	if len(rec.Items) != 1 || rec.Items[0].ArtworkID != "a1" {
		t.Fatalf("unexpected snapshot %+v", rec.Items)
	}
}

func TestSubmitChecksBeforeContactingGateway(t *testing.T) {
	in, srv, _ := newInitiator(t)

	c := sampleCart()
	av := cart.Evaluate(c)

	bad := request("2000")
	bad.ContactID = "0708374149"
	if _, err := in.Submit(context.Background(), "u1", c, av, bad); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected an invalid request, got %v", err)
	}
	if _, err := in.Submit(context.Background(), "u1", c, av, request("0")); !errors.Is(err, ErrNonPositiveTotal) {
		t.Fatalf("expected a non-positive total, got %v", err)
	}
	if _, err := in.Submit(context.Background(), "u1", c, cart.Availability{}, request("2000")); !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("expected an empty cart, got %v", err)
	}

	if n := len(srv.Pushes()); n != 0 {
		t.Fatalf("the gateway must not be contacted, got %d pushes", n)
	}
}

func TestSubmitRejected(t *testing.T) {
	in, srv, ledger := newInitiator(t)
	srv.RejectPush("Bad Request - Invalid PhoneNumber")

	c := sampleCart()
	tx, err := in.Submit(context.Background(), "u1", c, cart.Evaluate(c), request("2000"))
	if err != nil {
		t.Fatal(err)
	}
	if tx.Status != payment.FailedSTKInitiation || tx.Message != "Bad Request - Invalid PhoneNumber" {
		t.Fatalf("unexpected transaction %+v", tx)
	}
	if len(ledger.rows) != 0 {
		t.Fatal("a rejected push must not be recorded")
	}
}

func TestSubmitMissingReference(t *testing.T) {
	in, srv, _ := newInitiator(t)
	srv.OmitReference()

	c := sampleCart()
	tx, err := in.Submit(context.Background(), "u1", c, cart.Evaluate(c), request("2000"))
	if err != nil {
		t.Fatal(err)
	}
	if tx.Status != payment.FailedSTKMissingID {
		t.Fatalf("unexpected transaction %+v", tx)
	}
}

func TestSubmitRecordingFails(t *testing.T) {
	in, _, ledger := newInitiator(t)
	ledger.createErr = errors.New("connection refused")

	c := sampleCart()
	tx, err := in.Submit(context.Background(), "u1", c, cart.Evaluate(c), request("2000"))
	if err != nil {
		t.Fatal(err)
	}
	if tx.Status != payment.FailedProcessingError || tx.Reference == "" {
		t.Fatalf("the unrecorded push should fail with its reference, got %+v", tx)
	}
}
