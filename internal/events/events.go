// Package events fans public match events out of the process: to a Redis
// pub/sub channel for other services, and to the log.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"carioca/internal/game"
)

// Envelope wraps one match event with the session it belongs to.
type Envelope struct {
	ID      uuid.UUID `json:"id"`
	Session string    `json:"session"`
	Type    string    `json:"type"`
	Payload any       `json:"payload,omitempty"`
	At      time.Time `json:"at"`
}

// NewEnvelope stamps ev with a fresh id and the current time.
func NewEnvelope(session string, ev game.Event) Envelope {
	return Envelope{
		ID:      uuid.New(),
		Session: session,
		Type:    ev.Type,
		Payload: ev.Payload,
		At:      time.Now().UTC(),
	}
}

// Publisher delivers envelopes somewhere outside the match.
type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
	Close() error
}

// redisClient is the part of *redis.Client the publisher needs.
type redisClient interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
	Close() error
}

// RedisPublisher PUBLISHes JSON envelopes on a single channel.
type RedisPublisher struct {
	client  redisClient
	channel string
}

// NewRedisPublisher connects lazily to the server at url (redis://...).
func NewRedisPublisher(url, channel string) (*RedisPublisher, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if channel == "" {
		return nil, errors.New("redis channel is empty")
	}
	return &RedisPublisher{client: redis.NewClient(opts), channel: channel}, nil
}

func (p *RedisPublisher) Publish(ctx context.Context, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", env.Type, err)
	}
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("publish %s event to %s: %w", env.Type, p.channel, err)
	}
	return nil
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

// LogPublisher writes envelopes to a logrus logger. Action events go to Debug,
// round and match outcomes to Info.
type LogPublisher struct {
	log *logrus.Entry
}

func NewLogPublisher(log *logrus.Entry) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(_ context.Context, env Envelope) error {
	entry := p.log.WithFields(logrus.Fields{
		"session": env.Session,
		"event":   env.Type,
		"id":      env.ID,
	})
	if env.Type == game.EventAction {
		entry.Debug("match event")
		return nil
	}
	entry.WithField("payload", env.Payload).Info("match event")
	return nil
}

func (p *LogPublisher) Close() error { return nil }

// Multi publishes to every publisher in turn and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, env Envelope) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, env); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
