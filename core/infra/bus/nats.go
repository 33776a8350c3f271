// Package bus wraps the NATS connection carrying asynchronous deploy
// events, JSON-encoded per subject.
package bus

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/jarvault/jarvault/core/infra/logging"
)

// Bus publishes and consumes JSON events.
type Bus interface {
	Publish(subject string, event any) error
	Subscribe(subject, queue string, handler func(data []byte) error) error
	Close()
}

var (
	errNilBus     = errors.New("nats bus not initialized")
	errEmptyTopic = errors.New("empty subject")
)

// NatsBus is a thin wrapper over a NATS connection.
type NatsBus struct {
	nc *nats.Conn
}

// NewNatsBus dials NATS at the provided URL.
func NewNatsBus(url string) (*NatsBus, error) {
	opts := []nats.Option{
		nats.Name("jarvault-bus"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logging.Error("bus", "disconnected from NATS", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logging.Info("bus", "reconnected to NATS", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logging.Info("bus", "connection closed")
		}),
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, err
	}
	return &NatsBus{nc: nc}, nil
}

// Close shuts down the underlying NATS connection.
func (b *NatsBus) Close() {
	if b != nil && b.nc != nil {
		b.nc.Close()
	}
}

// Publish sends a JSON-encoded event on the given subject.
func (b *NatsBus) Publish(subject string, event any) error {
	if b == nil || b.nc == nil {
		return errNilBus
	}
	if subject == "" {
		return errEmptyTopic
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return b.nc.Publish(subject, data)
}

// Subscribe attaches a queue subscription invoking handler per message.
// Handler errors are logged; NATS redelivery is not requested for plain
// subjects.
func (b *NatsBus) Subscribe(subject, queue string, handler func(data []byte) error) error {
	if b == nil || b.nc == nil {
		return errNilBus
	}
	if subject == "" {
		return errEmptyTopic
	}
	cb := func(msg *nats.Msg) {
		if err := handler(msg.Data); err != nil {
			logging.Error("bus", "handler failed", "subject", subject, "error", err)
		}
	}
	var err error
	if queue != "" {
		_, err = b.nc.QueueSubscribe(subject, queue, cb)
	} else {
		_, err = b.nc.Subscribe(subject, cb)
	}
	return err
}
