// Package publish emits conversion events to NATS for downstream
// consumers (chat-app sharing, notification fan-out).
package publish

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// SubjectConverted is the NATS subject for completed conversions.
const SubjectConverted = "itinerary.converted"

// ConvertedEvent is published after every successful conversion.
type ConvertedEvent struct {
	ConversionID    string `json:"conversion_id"`
	FlightNumber    string `json:"flight_number"`
	TravelDate      string `json:"travel_date"`
	Origin          string `json:"origin"`
	Destination     string `json:"destination"`
	HasArrival      bool   `json:"has_arrival"`
	ReservationCode string `json:"reservation_code,omitempty"`
	OutputText      string `json:"output_text"`
}

// Publisher wraps a NATS connection for event publishing.
type Publisher struct {
	conn   *nats.Conn
	logger *slog.Logger
}

// Connect establishes a NATS connection with reconnect handling.
func Connect(url string, logger *slog.Logger) (*Publisher, error) {
	opts := []nats.Option{
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return &Publisher{conn: nc, logger: logger}, nil
}

// Publish marshals the event and sends it on SubjectConverted.
func (p *Publisher) Publish(event ConvertedEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.conn.Publish(SubjectConverted, payload); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	if err := p.conn.Drain(); err != nil {
		p.logger.Warn("nats drain", "error", err)
	}
	p.conn.Close()
}
