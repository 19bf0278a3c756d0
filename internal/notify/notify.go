// Package notify announces the active project over NATS so editors, shell
// prompts and other tools can follow project switches.
//
// Every switch publishes one JSON Event to the configured subject
// (projecthub.project.active by default). Delivery is fire-and-forget:
// no JetStream, no acknowledgements.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/projecthub/internal/config"
	"github.com/fyrsmithlabs/projecthub/internal/project"
)

// DefaultSubject is the subject active-project events are published on.
const DefaultSubject = "projecthub.project.active"

// ErrNoSubject is returned when a publisher or subscription has no subject.
var ErrNoSubject = errors.New("notify: subject is required")

// Event is the payload published for each active-project change.
type Event struct {
	ProjectID  string    `json:"project_id"`
	Name       string    `json:"name,omitempty"`
	Path       string    `json:"path,omitempty"`
	SwitchedAt time.Time `json:"switched_at"`
}

// Connect dials NATS using the notify configuration.
func Connect(cfg config.NotifyConfig, logger *zap.Logger) (*nats.Conn, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := []nats.Option{
		nats.Name("projecthub"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(1 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("disconnected from NATS", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("reconnected to NATS", zap.String("url", nc.ConnectedUrl()))
		}),
	}
	if token := cfg.Token.Value(); token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(cfg.NATSURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATSURL, err)
	}

	logger.Info("connected to NATS", zap.String("url", cfg.NATSURL))
	return nc, nil
}

// Publisher publishes active-project events.
type Publisher struct {
	nc      *nats.Conn
	subject string
	catalog project.Catalog
	logger  *zap.Logger
	now     func() time.Time
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithCatalog enriches events with the project's name and path.
func WithCatalog(c project.Catalog) Option {
	return func(p *Publisher) { p.catalog = c }
}

// WithLogger sets the publisher logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Publisher) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPublisher creates a publisher on subject.
func NewPublisher(nc *nats.Conn, subject string, opts ...Option) (*Publisher, error) {
	if nc == nil {
		return nil, errors.New("notify: nats connection is required")
	}
	if subject == "" {
		return nil, ErrNoSubject
	}

	p := &Publisher{
		nc:      nc,
		subject: subject,
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Subject returns the subject events are published on.
func (p *Publisher) Subject() string { return p.subject }

// PublishActive publishes an Event for projectID. Catalog lookup failures
// only drop the optional name and path.
func (p *Publisher) PublishActive(ctx context.Context, projectID string) error {
	ev := Event{ProjectID: projectID, SwitchedAt: p.now().UTC()}

	if p.catalog != nil {
		if proj, err := p.catalog.Get(ctx, projectID); err == nil {
			ev.Name = proj.Name
			ev.Path = proj.Path
		} else {
			p.logger.Debug("publishing event without project details",
				zap.String("project_id", projectID),
				zap.Error(err),
			)
		}
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := p.nc.Publish(p.subject, data); err != nil {
		return fmt.Errorf("publish active project: %w", err)
	}

	p.logger.Debug("published active project",
		zap.String("subject", p.subject),
		zap.String("project_id", projectID),
	)
	return nil
}

// Subscribe calls fn for every event on subject. Malformed payloads are
// logged and skipped.
func Subscribe(nc *nats.Conn, subject string, logger *zap.Logger, fn func(Event)) (*nats.Subscription, error) {
	if subject == "" {
		return nil, ErrNoSubject
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	sub, err := nc.Subscribe(subject, func(msg *nats.Msg) {
		var ev Event
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			logger.Warn("dropping malformed active-project event",
				zap.String("subject", msg.Subject),
				zap.Error(err),
			)
			return
		}
		fn(ev)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}
	return sub, nil
}
