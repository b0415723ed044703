package messaging

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/vrrprepo/rprepo/pkg/rprepo/config"
)

// SubjectUpdateCreated is published after a feed update is posted
const SubjectUpdateCreated = "update.created"

// Publisher broadcasts domain events to external consumers such as chat bots
type Publisher interface {
	Publish(ctx context.Context, subject string, event interface{}) error
	Close() error
}

// UpdateCreated is the payload of SubjectUpdateCreated
type UpdateCreated struct {
	ID          uint      `json:"id"`
	UserID      uint      `json:"userId"`
	UserName    string    `json:"userName"`
	ProjectID   *uint     `json:"projectId,omitempty"`
	ProjectName string    `json:"projectName,omitempty"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"createdAt"`
}

// New connects to NATS, or returns a no-op publisher when no URL is configured
func New(cfg config.NATSConfig, logger *zap.Logger) (Publisher, error) {
	if cfg.URL == "" {
		return Nop{}, nil
	}

	nc, err := nats.Connect(cfg.URL,
		nats.Name("rprepo"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
	)
	if err != nil {
		return nil, err
	}

	logger.Info("nats producer initialized", zap.String("url", cfg.URL), zap.String("prefix", cfg.SubjectPrefix))
	return &Producer{conn: nc, prefix: cfg.SubjectPrefix, logger: logger}, nil
}

// Producer publishes JSON events on <prefix>.<subject>
type Producer struct {
	conn   *nats.Conn
	prefix string
	logger *zap.Logger
}

func (p *Producer) Publish(ctx context.Context, subject string, event interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	full := Subject(p.prefix, subject)
	if err := p.conn.Publish(full, data); err != nil {
		return err
	}

	p.logger.Debug("event published", zap.String("subject", full))
	return nil
}

func (p *Producer) Close() error {
	return p.conn.Drain()
}

// Subject joins the configured prefix and an event subject
func Subject(prefix, subject string) string {
	if prefix == "" {
		return subject
	}
	return prefix + "." + subject
}

// Nop discards events
type Nop struct{}

func (Nop) Publish(context.Context, string, interface{}) error { return nil }

func (Nop) Close() error { return nil }
