package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/sirupsen/logrus"

	"storefront-sync-service/internal/models"
)

const (
	StreamName = "STOREFRONT_EVENTS"

	SubjectCatalogSynced      = "storefront.catalog.synced"
	SubjectOrderPlaced        = "storefront.order.placed"
	SubjectOrderStatusChanged = "storefront.order.status_changed"
)

// Event is the envelope of every published message
type Event struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Source    string      `json:"source"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

type CatalogSyncedData struct {
	Origin string              `json:"origin"` // exchange, reconcile, resync, sync_api
	File   string              `json:"file,omitempty"`
	Stats  *models.ImportStats `json:"stats"`
}

type OrderData struct {
	OrderID        int64              `json:"orderId"`
	Status         models.OrderStatus `json:"status"`
	PreviousStatus models.OrderStatus `json:"previousStatus,omitempty"`
	Total          int64              `json:"total"`
	CustomerEmail  string             `json:"customerEmail,omitempty"`
}

// Publisher sends storefront events to JetStream. A nil *Publisher is a
// valid no-op publisher.
type Publisher struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	source string
	logger *logrus.Entry
}

// NewPublisher connects to NATS and ensures the storefront stream exists
func NewPublisher(natsURL, source string, logger *logrus.Logger) (*Publisher, error) {
	log := logger.WithField("component", "events_publisher")

	nc, err := nats.Connect(natsURL,
		nats.Name(source),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.WithField("url", nc.ConnectedUrl()).Info("NATS reconnected")
		}),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.WithError(err).Warn("NATS disconnected")
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			log.Info("NATS connection closed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{"storefront.>"},
		Retention: jetstream.LimitsPolicy,
		MaxAge:    7 * 24 * time.Hour,
		Storage:   jetstream.FileStorage,
		Replicas:  1,
	})
	if err != nil {
		log.WithError(err).Warn("could not ensure storefront stream (may already exist)")
	}

	return &Publisher{nc: nc, js: js, source: source, logger: log}, nil
}

func (p *Publisher) Close() {
	if p == nil || p.nc == nil {
		return
	}
	p.nc.Close()
}

// PublishCatalogSynced announces that a catalog import finished
func (p *Publisher) PublishCatalogSynced(ctx context.Context, origin, file string, stats *models.ImportStats) error {
	return p.publish(ctx, SubjectCatalogSynced, CatalogSyncedData{Origin: origin, File: file, Stats: stats})
}

func (p *Publisher) PublishOrderPlaced(ctx context.Context, order *models.Order) error {
	return p.publish(ctx, SubjectOrderPlaced, OrderData{
		OrderID:       order.ID,
		Status:        order.Status,
		Total:         order.Total,
		CustomerEmail: order.CustomerEmail,
	})
}

func (p *Publisher) PublishOrderStatusChanged(ctx context.Context, order *models.Order, previous models.OrderStatus) error {
	return p.publish(ctx, SubjectOrderStatusChanged, OrderData{
		OrderID:        order.ID,
		Status:         order.Status,
		PreviousStatus: previous,
		Total:          order.Total,
	})
}

func (p *Publisher) publish(ctx context.Context, subject string, data interface{}) error {
	if p == nil || p.js == nil {
		return nil
	}

	payload, err := json.Marshal(Event{
		ID:        uuid.New().String(),
		Type:      subject,
		Source:    p.source,
		Timestamp: time.Now().UTC(),
		Data:      data,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := p.js.Publish(ctx, subject, payload); err != nil {
		p.logger.WithError(err).WithField("subject", subject).Warn("failed to publish event")
		return fmt.Errorf("failed to publish %s: %w", subject, err)
	}

	p.logger.WithField("subject", subject).Debug("event published")
	return nil
}
