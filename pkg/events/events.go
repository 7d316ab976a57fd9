package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/diagnosis/tablelink/pkg/logger"
	"github.com/nats-io/nats.go"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
	Close() error
}

type NATSPublisher struct {
	conn *nats.Conn
}

func NewNATSPublisher(url string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("tablelink-bridge"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSPublisher{conn: conn}, nil
}

func (n *NATSPublisher) Publish(ctx context.Context, subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	logger.DebugContext(ctx, "Publishing event", "subject", subject, "bytes", len(payload))

	return n.conn.Publish(subject, payload)
}

func (n *NATSPublisher) Close() error {
	return n.conn.Drain()
}

// NopPublisher drops every event. Used when NATS_URL is not configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, interface{}) error { return nil }
func (NopPublisher) Close() error                                       { return nil }

// PublishBestEffort publishes and logs failures instead of returning them.
func PublishBestEffort(ctx context.Context, p Publisher, subject string, data interface{}) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, subject, data); err != nil {
		logger.WarnContext(ctx, "Failed to publish event", "subject", subject, "error", err)
	}
}

// Subjects
const (
	LinkIssued      = "bridge.link.issued"
	LinkRedeemed    = "bridge.link.redeemed"
	SessionResolved = "bridge.session.resolved"
	MessageReceived = "bridge.channel.message.received"
)

type LinkIssuedEvent struct {
	Code         string    `json:"code"`
	RestaurantID string    `json:"restaurant_id,omitempty"`
	BranchID     string    `json:"branch_id,omitempty"`
	TableID      string    `json:"table_id,omitempty"`
	Source       string    `json:"source"` // api or channel
	ExpiresAt    time.Time `json:"expires_at"`
}

type LinkRedeemedEvent struct {
	Code       string    `json:"code"`
	TableID    string    `json:"table_id,omitempty"`
	OneTime    bool      `json:"one_time"`
	RedeemedAt time.Time `json:"redeemed_at"`
}

type SessionResolvedEvent struct {
	Guest        bool      `json:"guest"`
	CustomerID   string    `json:"customer_id,omitempty"`
	RestaurantID string    `json:"restaurant_id,omitempty"`
	TableID      string    `json:"table_id,omitempty"`
	ResolvedAt   time.Time `json:"resolved_at"`
}

type MessageReceivedEvent struct {
	MessageID string    `json:"message_id"`
	Action    string    `json:"action"`
	Degraded  int       `json:"degraded"`
	At        time.Time `json:"at"`
}
