package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/layer-3/basetips/ports"
)

// Topic is the stream auth events are published to
const Topic = "basetips.auth"

const (
	TypeLogin  = "login"
	TypeLogout = "logout"
)

// AuthEvent represents a login or logout event
type AuthEvent struct {
	Type    string    `json:"type"`
	Address string    `json:"address"`
	ChainID int       `json:"chainId,omitempty"`
	At      time.Time `json:"at"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
	topic     string
	now       func() time.Time
}

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher) ports.EventPublisher {
	return &WatermillPublisher{
		publisher: publisher,
		topic:     Topic,
		now:       time.Now,
	}
}

// PublishLogin publishes a login event
func (p *WatermillPublisher) PublishLogin(ctx context.Context, address string, chainID int) error {
	return p.publish(ctx, AuthEvent{
		Type:    TypeLogin,
		Address: address,
		ChainID: chainID,
		At:      p.now().UTC(),
	})
}

// PublishLogout publishes a logout event
func (p *WatermillPublisher) PublishLogout(ctx context.Context, address string) error {
	return p.publish(ctx, AuthEvent{
		Type:    TypeLogout,
		Address: address,
		At:      p.now().UTC(),
	})
}

func (p *WatermillPublisher) publish(ctx context.Context, event AuthEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(uuid.New().String(), payload)
	msg.SetContext(ctx)
	msg.Metadata.Set("type", event.Type)

	if err := p.publisher.Publish(p.topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}
