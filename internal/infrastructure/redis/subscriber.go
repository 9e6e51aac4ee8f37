package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/avatarctic/novel-reader/go/internal/core/domain/event"
	"github.com/avatarctic/novel-reader/go/internal/core/ports"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// EventSubscriber forwards push-channel mutation events from a Redis pub/sub channel to
// the local notifier. Reconnection is handled by the go-redis PubSub.
type EventSubscriber struct {
	client   redis.UniversalClient
	channel  string
	notifier ports.MutationNotifier
	logger   *logrus.Logger
}

func NewEventSubscriber(client redis.UniversalClient, channel string, notifier ports.MutationNotifier, logger *logrus.Logger) *EventSubscriber {
	return &EventSubscriber{client: client, channel: channel, notifier: notifier, logger: logger}
}

// Run blocks until ctx is done, publishing every valid event it receives.
func (s *EventSubscriber) Run(ctx context.Context) error {
	sub := s.client.Subscribe(ctx, s.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe to %s: %w", s.channel, err)
	}
	s.logger.WithField("channel", s.channel).Info("Listening for catalog push events")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			s.handle(ctx, msg.Payload)
		}
	}
}

func (s *EventSubscriber) handle(ctx context.Context, payload string) {
	var ev event.Mutation
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		s.logger.WithError(err).Warn("Ignoring undecodable push event")
		return
	}
	if !ev.Valid() {
		s.logger.WithFields(logrus.Fields{"kind": ev.Kind, "action": ev.Action}).Warn("Ignoring push event without identity")
		return
	}
	s.logger.WithFields(logrus.Fields{
		"event_id":    ev.ID,
		"kind":        ev.Kind,
		"resource_id": ev.ResourceID,
		"action":      ev.Action,
	}).Debug("Push event received")
	s.notifier.Publish(ctx, ev)
}
