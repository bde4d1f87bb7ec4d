package events

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"

	"github.com/ayush/estate-marketplace/internal/logging"
	"github.com/ayush/estate-marketplace/internal/metrics"
	"github.com/ayush/estate-marketplace/internal/models"
)

const (
	SubjectListingCreated = "listing.created"
	SubjectListingDeleted = "listing.deleted"
	SubjectUserDeleted    = "user.deleted"
)

// Publisher emits domain events. Implementations never block the request on
// delivery and only log failures.
type Publisher interface {
	ListingCreated(ctx context.Context, l *models.Listing)
	ListingDeleted(ctx context.Context, l *models.Listing)
	UserDeleted(ctx context.Context, userID string)
}

type ListingEvent struct {
	EventType  string    `json:"event_type"`
	ListingID  string    `json:"listing_id"`
	OwnerID    string    `json:"owner_id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
}

type UserEvent struct {
	EventType  string    `json:"event_type"`
	UserID     string    `json:"user_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Conn is the part of *nats.Conn the publisher uses.
type Conn interface {
	Publish(subject string, data []byte) error
}

type NatsPublisher struct {
	conn Conn
	now  func() time.Time
}

// Connect dials NATS and returns a publisher with its connection.
func Connect(url string) (*NatsPublisher, *nats.Conn, error) {
	nc, err := nats.Connect(url, nats.Name("estate-marketplace"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect: %w", err)
	}
	return NewNatsPublisher(nc), nc, nil
}

func NewNatsPublisher(conn Conn) *NatsPublisher {
	return &NatsPublisher{conn: conn, now: time.Now}
}

func (p *NatsPublisher) ListingCreated(ctx context.Context, l *models.Listing) {
	p.publish(ctx, SubjectListingCreated, p.listingEvent(SubjectListingCreated, l))
}

func (p *NatsPublisher) ListingDeleted(ctx context.Context, l *models.Listing) {
	p.publish(ctx, SubjectListingDeleted, p.listingEvent(SubjectListingDeleted, l))
}

func (p *NatsPublisher) UserDeleted(ctx context.Context, userID string) {
	p.publish(ctx, SubjectUserDeleted, UserEvent{
		EventType:  SubjectUserDeleted,
		UserID:     userID,
		OccurredAt: p.now().UTC(),
	})
}

func (p *NatsPublisher) listingEvent(subject string, l *models.Listing) ListingEvent {
	return ListingEvent{
		EventType:  subject,
		ListingID:  l.ID.Hex(),
		OwnerID:    l.OwnerID,
		Type:       l.Type,
		OccurredAt: p.now().UTC(),
	}
}

func (p *NatsPublisher) publish(ctx context.Context, subject string, event any) {
	data, err := json.Marshal(event)
	if err == nil {
		err = p.conn.Publish(subject, data)
	}
	if err != nil {
		metrics.EventPublishErrors.WithLabelValues(subject).Inc()
		logging.Ctx(ctx).Warn().Err(err).Str("subject", subject).Msg("publish event")
		return
	}
	logging.Ctx(ctx).Debug().Str("subject", subject).Msg("published event")
}

// NopPublisher drops every event. Used when NATS is not configured.
type NopPublisher struct{}

func (NopPublisher) ListingCreated(context.Context, *models.Listing) {}
func (NopPublisher) ListingDeleted(context.Context, *models.Listing) {}
func (NopPublisher) UserDeleted(context.Context, string)             {}
