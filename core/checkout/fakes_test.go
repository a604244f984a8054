package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Izzienjeri/shoply-sub000/api/background"
	"github.com/Izzienjeri/shoply-sub000/core/cart"
	"github.com/Izzienjeri/shoply-sub000/core/claims"
	"github.com/Izzienjeri/shoply-sub000/core/delivery"
	"github.com/Izzienjeri/shoply-sub000/core/payment"
	"github.com/Izzienjeri/shoply-sub000/daraja"
	"github.com/Izzienjeri/shoply-sub000/database"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

const cartID = "9f1c2d3e-4b5a-4c6d-8e7f-0a1b2c3d4e5f"

var shopper = claims.Claims{UserID: "u1"}

func nullLog() logrus.FieldLogger {
	log, _ := test.NewNullLogger()
	return log
}

func artwork(id string, price int64, stock int) cart.ArtworkSnapshot {
	return cart.ArtworkSnapshot{
		ID:            id,
		Name:          "artwork " + id,
		UnitPrice:     decimal.NewFromInt(price),
		StockQuantity: stock,
		Active:        true,
		ArtistActive:  true,
	}
}

// sampleCart has two units at 1000 that can be bought and one sold-out line.
func sampleCart() cart.Cart {
	return cart.Cart{
		ID:        cartID,
		Principal: "u1",
		Lines: []cart.Line{
			{ID: "l1", Artwork: artwork("a1", 1000, 5), Quantity: 2},
			{ID: "l2", Artwork: artwork("a2", 500, 0), Quantity: 1},
		},
	}
}

var sampleOptions = []delivery.Option{
	{ID: "d-pickup", Name: "Gallery pickup", Fee: decimal.Zero, IsPickup: true, Active: true},
	{ID: "d-ship", Name: "Nairobi delivery", Fee: decimal.NewFromInt(300), Active: true},
	{ID: "d-old", Name: "Old pickup point", Fee: decimal.Zero, IsPickup: true, Active: false},
}

var pickup = RequestNew{
	ContactID:        "254708374149",
	DeliveryOptionID: "d-pickup",
	Fulfillment:      delivery.Pickup,
}

type fakeCatalog struct {
	cart    cart.Cart
	cartErr error
	options []delivery.Option
}

func (c *fakeCatalog) Cart(ctx context.Context, principal string) (cart.Cart, error) {
	if c.cartErr != nil {
		return cart.Cart{}, c.cartErr
	}
	return c.cart, nil
}

func (c *fakeCatalog) DeliveryOptions(ctx context.Context) ([]delivery.Option, error) {
	return c.options, nil
}

type fakeGateway struct {
	mu       sync.Mutex
	requests []daraja.PushRequest
	err      error
	omitRef  bool
}

func (g *fakeGateway) STKPush(ctx context.Context, pr daraja.PushRequest) (daraja.PushResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.requests = append(g.requests, pr)
	if g.err != nil {
		return daraja.PushResponse{}, g.err
	}

	resp := daraja.PushResponse{
		MerchantRequestID:   fmt.Sprintf("m-%d", len(g.requests)),
		CheckoutRequestID:   fmt.Sprintf("R%d", len(g.requests)),
		ResponseCode:        daraja.ResultOK,
		ResponseDescription: "Success. Request accepted for processing",
	}
	if g.omitRef {
		resp.CheckoutRequestID = ""
	}
	return resp, nil
}

func (g *fakeGateway) calls() []daraja.PushRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]daraja.PushRequest(nil), g.requests...)
}

// memLedger records transactions and lets a test script what later
// fetches of a reference see.
type memLedger struct {
	mu        sync.Mutex
	rows      map[string]payment.Record
	fetches   map[string]int
	onFetch   func(n int, r *payment.Record)
	createErr error
}

func newMemLedger() *memLedger {
	return &memLedger{
		rows:    make(map[string]payment.Record),
		fetches: make(map[string]int),
	}
}

func (l *memLedger) Create(ctx context.Context, r payment.Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.createErr != nil {
		return l.createErr
	}
	if _, ok := l.rows[r.Reference]; ok {
		return errors.New("duplicate reference")
	}
	l.rows[r.Reference] = r
	return nil
}

func (l *memLedger) Fetch(ctx context.Context, reference string) (payment.Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	r, ok := l.rows[reference]
	if !ok {
		return payment.Record{}, database.ErrDBNotFound
	}

	l.fetches[reference]++
	if l.onFetch != nil {
		l.onFetch(l.fetches[reference], &r)
		l.rows[reference] = r
	}
	return r, nil
}

func (l *memLedger) fetchCount(reference string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fetches[reference]
}

func (l *memLedger) record(reference string) (payment.Record, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.rows[reference]
	return r, ok
}

// fakeBus is an in-memory push channel.
type fakeBus struct {
	mu    sync.Mutex
	subs  map[string][]*fakeSub
	ready chan string
	err   error
}

func newFakeBus() *fakeBus {
	return &fakeBus{
		subs:  make(map[string][]*fakeSub),
		ready: make(chan string, 16),
	}
}

func (b *fakeBus) Subscribe(ctx context.Context, principal string) (payment.Subscription, error) {
	if b.err != nil {
		return nil, b.err
	}

	s := &fakeSub{bus: b, principal: principal, events: make(chan payment.Event, 16)}

	b.mu.Lock()
	b.subs[principal] = append(b.subs[principal], s)
	b.mu.Unlock()

	b.ready <- principal
	return s, nil
}

func (b *fakeBus) Publish(ctx context.Context, principal string, ev payment.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, s := range b.subs[principal] {
		s.events <- ev
	}
	return nil
}

func (b *fakeBus) open(principal string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[principal])
}

func (b *fakeBus) waitSubscribed(t *testing.T) {
	t.Helper()
	select {
	case <-b.ready:
	case <-time.After(2 * time.Second):
		t.Fatal("attempt never subscribed to the push channel")
	}
}

type fakeSub struct {
	bus       *fakeBus
	principal string
	events    chan payment.Event
	once      sync.Once
}

func (s *fakeSub) Events() <-chan payment.Event { return s.events }

func (s *fakeSub) Close() error {
	s.once.Do(func() {
		s.bus.mu.Lock()
		defer s.bus.mu.Unlock()

		subs := s.bus.subs[s.principal]
		for i, o := range subs {
			if o == s {
				s.bus.subs[s.principal] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
	})
	return nil
}

type notes struct {
	mu  sync.Mutex
	got []payment.Resolution
	ch  chan payment.Resolution
}

func newNotes() *notes {
	return &notes{ch: make(chan payment.Resolution, 16)}
}

func (n *notes) Notify(r payment.Resolution) {
	n.mu.Lock()
	n.got = append(n.got, r)
	n.mu.Unlock()
	n.ch <- r
}

func (n *notes) wait(t *testing.T) payment.Resolution {
	t.Helper()
	select {
	case r := <-n.ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("no notification")
	}
	return payment.Resolution{}
}

func (n *notes) all() []payment.Resolution {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]payment.Resolution(nil), n.got...)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func waitDone(t *testing.T, a *Attempt) {
	t.Helper()
	select {
	case <-a.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("attempt did not stop")
	}
}

type env struct {
	svc     *Service
	catalog *fakeCatalog
	gw      *fakeGateway
	ledger  *memLedger
	bus     *fakeBus
	notes   *notes
}

func newEnv(t *testing.T, mods ...func(*ServiceConfig)) *env {
	t.Helper()

	e := &env{
		catalog: &fakeCatalog{cart: sampleCart(), options: sampleOptions},
		gw:      &fakeGateway{},
		ledger:  newMemLedger(),
		bus:     newFakeBus(),
		notes:   newNotes(),
	}

	bg := background.New(nullLog())
	cfg := ServiceConfig{
		Catalog: e.catalog,
		Initiator: &Initiator{
			Gateway: e.gw,
			Ledger:  e.ledger,
			Log:     nullLog(),
		},
		Ledger:       e.ledger,
		Subscriber:   e.bus,
		Notifier:     e.notes,
		Background:   bg,
		Log:          nullLog(),
		PollAttempts: payment.DefaultMaxAttempts,
		PollInterval: time.Hour,
		RateBurst:    100,
		RateInterval: time.Millisecond,
	}
	for _, m := range mods {
		m(&cfg)
	}

	e.svc = NewService(cfg)
	t.Cleanup(func() {
		e.svc.Shutdown()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := bg.Shutdown(ctx); err != nil {
			t.Errorf("attempts still running after shutdown: %v", err)
		}
	})
	return e
}

func pollEvery(d time.Duration) func(*ServiceConfig) {
	return func(c *ServiceConfig) { c.PollInterval = d }
}
