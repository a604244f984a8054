// Package pushchan carries per-principal events over Redis pub/sub.
package pushchan

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/Izzienjeri/shoply-sub000/core/payment"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Channel carries transaction events for a principal.
func Channel(principal string) string {
	return "user_" + principal
}

// NotifyChannel carries the user-facing notifications for a principal.
func NotifyChannel(principal string) string {
	return "notify_user_" + principal
}

type Bus struct {
	client redis.UniversalClient
	log    logrus.FieldLogger
}

func New(client redis.UniversalClient, log logrus.FieldLogger) *Bus {
	return &Bus{client: client, log: log}
}

func (b *Bus) Publish(ctx context.Context, principal string, ev payment.Event) error {
	return b.publish(ctx, Channel(principal), ev)
}

func (b *Bus) Notify(ctx context.Context, principal string, v any) error {
	return b.publish(ctx, NotifyChannel(principal), v)
}

func (b *Bus) publish(ctx context.Context, channel string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal event for %s: %w", channel, err)
	}
	if err := b.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("redis publish to %s: %w", channel, err)
	}
	return nil
}

// Subscribe returns once the subscription is confirmed by the server, so no
// event published after it returns is missed.
func (b *Bus) Subscribe(ctx context.Context, principal string) (payment.Subscription, error) {
	channel := Channel(principal)

	ps := b.client.Subscribe(ctx, channel)
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("subscribing to %s: %w", channel, err)
	}

	s := &subscription{
		ps:     ps,
		events: make(chan payment.Event),
		done:   make(chan struct{}),
		log:    b.log.WithField("channel", channel),
	}
	go s.pump(ps.Channel())

	return s, nil
}

type subscription struct {
	ps     *redis.PubSub
	events chan payment.Event
	done   chan struct{}
	once   sync.Once
	err    error
	log    logrus.FieldLogger
}

func (s *subscription) Events() <-chan payment.Event {
	return s.events
}

func (s *subscription) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.err = s.ps.Close()
	})
	return s.err
}

func (s *subscription) pump(msgs <-chan *redis.Message) {
	defer close(s.events)

	for {
		select {
		case <-s.done:
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}

			var ev payment.Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				s.log.WithError(err).Warn("dropping malformed push event")
				continue
			}

			select {
			case s.events <- ev:
			case <-s.done:
				return
			}
		}
	}
}
