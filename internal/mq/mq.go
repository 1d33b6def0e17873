package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/o2a/bapsim/config"
)

// ImageDeletedChannel carries storage keys of images whose recipe was deleted.
const ImageDeletedChannel = "recipe-images.deleted"

var (
	// ErrNotConfigured is returned by Open when no broker is selected.
	ErrNotConfigured = errors.New("message broker is not configured")
	// ErrPermanent marks a message that can never be processed. Backends drop
	// such messages instead of redelivering them.
	ErrPermanent = errors.New("permanent message failure")
)

// Message represents a broker-agnostic payload delivered to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler processes a message. Return an error to signal a retry/nack.
type Handler func(ctx context.Context, msg Message) error

// Backend defines the broker-agnostic operations used by the app.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// ImageDeleted is published after a recipe carrying an image is removed.
type ImageDeleted struct {
	Key string `json:"key"`
}

// MQ publishes and consumes the application's typed events.
type MQ struct {
	backend Backend
}

func New(backend Backend) *MQ {
	return &MQ{backend: backend}
}

// Open connects to the broker selected by cfg.Backend.
func Open(ctx context.Context, cfg config.MQConfig) (*MQ, error) {
	var (
		backend Backend
		err     error
	)
	switch cfg.Backend {
	case "":
		return nil, ErrNotConfigured
	case "rabbitmq":
		backend, err = NewRabbitMQClient(cfg.RabbitMQ)
	case "pubsub":
		backend, err = NewPubSubClient(ctx, cfg.PubSub)
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	return New(backend), nil
}

func (m *MQ) PublishImageDeleted(ctx context.Context, key string) error {
	if strings.TrimSpace(key) == "" {
		return errors.New("image key is required")
	}
	data, err := json.Marshal(ImageDeleted{Key: key})
	if err != nil {
		return err
	}
	_, err = m.backend.Publish(ctx, ImageDeletedChannel, data, map[string]string{"content-type": "application/json"})
	return err
}

// SubscribeImageDeleted blocks, passing every decoded event to handle until
// ctx is cancelled. Undecodable messages are dropped.
func (m *MQ) SubscribeImageDeleted(ctx context.Context, handle func(ctx context.Context, event ImageDeleted) error) error {
	return m.backend.Subscribe(ctx, ImageDeletedChannel, func(ctx context.Context, msg Message) error {
		var event ImageDeleted
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			return fmt.Errorf("decode message %s: %v: %w", msg.ID, err, ErrPermanent)
		}
		if strings.TrimSpace(event.Key) == "" {
			return fmt.Errorf("message %s has no key: %w", msg.ID, ErrPermanent)
		}
		return handle(ctx, event)
	})
}

// Close closes the underlying backend.
func (m *MQ) Close() error {
	return m.backend.Close()
}
