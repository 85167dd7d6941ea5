// Package bus publishes run events to NATS.
package bus

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

const flushTimeout = 5 * time.Second

// Client publishes JSON events on one connection.
type Client struct {
	nc     *nats.Conn
	logger *slog.Logger
}

// Connect dials NATS for publishing run events. Reconnect attempts are
// bounded because a CLI run is short-lived.
func Connect(url, name string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(5),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "err", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", url, err)
	}
	return &Client{nc: nc, logger: logger}, nil
}

// Close flushes buffered events and drains the connection. Events still
// buffered after the flush timeout are lost and logged.
func (c *Client) Close() {
	if c.nc == nil {
		return
	}
	if err := c.nc.FlushTimeout(flushTimeout); err != nil {
		c.log().Warn("flush run events failed", "err", err)
	}
	if err := c.nc.Drain(); err != nil {
		c.log().Warn("drain nats connection failed", "err", err)
	}
}

// PublishJSON encodes v and publishes it on subject.
func (c *Client) PublishJSON(subject string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode event for %s: %w", subject, err)
	}
	if c.nc == nil {
		return fmt.Errorf("publish %s: not connected", subject)
	}
	return c.nc.Publish(subject, b)
}

func (c *Client) log() *slog.Logger {
	if c.logger == nil {
		return slog.Default()
	}
	return c.logger
}
