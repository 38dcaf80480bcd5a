// Package events publishes task history rows to NATS so other processes can
// follow ledger activity without polling.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/orctasks/internal/ledger"
	"github.com/fyrsmithlabs/orctasks/internal/sanitize"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Event is the JSON payload published for each history row.
type Event struct {
	TaskID     int64     `json:"task_id"`
	Title      string    `json:"title"`
	Worktree   string    `json:"worktree"`
	Status     string    `json:"status"`
	Priority   string    `json:"priority"`
	Action     string    `json:"action"`
	OldValue   string    `json:"old_value,omitempty"`
	NewValue   string    `json:"new_value,omitempty"`
	Notes      string    `json:"notes,omitempty"`
	AgentID    string    `json:"agent_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher implements ledger.Notifier on a NATS connection.
type Publisher struct {
	nc     *nats.Conn
	prefix string
	logger *zap.Logger
}

var _ ledger.Notifier = (*Publisher)(nil)

// Connect dials NATS with the reconnect policy used by the server.
func Connect(url, token string, logger *zap.Logger) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name("orctasks"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}
	if logger != nil {
		opts = append(opts, nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}))
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	return nc, nil
}

// NewPublisher creates a Publisher. A nil logger is replaced with a no-op.
func NewPublisher(nc *nats.Conn, prefix string, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{nc: nc, prefix: prefix, logger: logger}
}

// Subject returns <prefix>.<worktree>.<action> with each token made safe for
// NATS (no dots, spaces or wildcards).
func Subject(prefix, worktree, action string) string {
	return prefix + "." + sanitize.SubjectToken(worktree) + "." + sanitize.SubjectToken(action)
}

// Publish sends one event.
func (p *Publisher) Publish(ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.nc.Publish(Subject(p.prefix, ev.Worktree, ev.Action), data); err != nil {
		return fmt.Errorf("publish %s event: %w", ev.Action, err)
	}
	return nil
}

// HistoryAppended publishes the change. Failures are logged and never
// reach the ledger caller.
func (p *Publisher) HistoryAppended(ctx context.Context, change ledger.Change) {
	ev := Event{
		TaskID:     change.Task.ID,
		Title:      change.Task.Title,
		Worktree:   change.Worktree,
		Status:     string(change.Task.Status),
		Priority:   string(change.Task.Priority),
		Action:     change.Entry.Action,
		OldValue:   change.Entry.OldValue,
		NewValue:   change.Entry.NewValue,
		Notes:      change.Entry.Notes,
		AgentID:    change.Entry.AgentID,
		OccurredAt: change.Entry.CreatedAt,
	}
	if err := p.Publish(ev); err != nil {
		p.logger.Warn("history event not published",
			zap.Int64("task_id", ev.TaskID),
			zap.String("action", ev.Action),
			zap.Error(err),
		)
	}
}
