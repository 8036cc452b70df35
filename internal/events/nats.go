// Package events publishes execution state transitions to NATS so that
// other services can follow imports without polling the execution store.
package events

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/MarlonSantos/geonode-cloud/internal/ingest"
	"github.com/MarlonSantos/geonode-cloud/internal/model"
)

// DefaultPrefix is the subject prefix used when none is configured.
const DefaultPrefix = "ncload"

// Event is the JSON payload of every notification.
type Event struct {
	ExecutionID   uuid.UUID            `json:"execution_id"`
	Action        model.Action         `json:"action"`
	State         model.ExecutionState `json:"state"`
	Stage         model.StageID        `json:"stage,omitempty"`
	Layer         string               `json:"layer,omitempty"`
	Warnings      []string             `json:"warnings,omitempty"`
	Error         string               `json:"error,omitempty"`
	RollbackError string               `json:"rollback_error,omitempty"`
	At            time.Time            `json:"at"`
}

// Conn is the part of a NATS connection the notifier needs.
type Conn interface {
	Publish(subject string, data []byte) error
}

// Notifier publishes one message per state transition on
// <prefix>.execution.<state>. A ROLLBACK_FAILED execution is also
// published on <prefix>.alert, since its side effects need manual cleanup.
type Notifier struct {
	conn   Conn
	prefix string
	log    zerolog.Logger
}

// NewNotifier wraps an existing connection.
func NewNotifier(conn Conn, prefix string, log zerolog.Logger) *Notifier {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Notifier{conn: conn, prefix: prefix, log: log}
}

// Dial connects to url and returns a notifier plus the connection, which
// the caller drains on shutdown.
func Dial(url, prefix string, log zerolog.Logger) (*Notifier, *nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("ncload"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("disconnected from nats")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("reconnected to nats")
		}),
	)
	if err != nil {
		return nil, nil, errors.WithHintf(errors.Wrap(err, "connect to nats"), "check events.nats_url (%s)", url)
	}
	return NewNotifier(nc, prefix, log), nc, nil
}

// Subject returns the subject a state is published on.
func (n *Notifier) Subject(state model.ExecutionState) string {
	return n.prefix + ".execution." + strings.ToLower(string(state))
}

// AlertSubject is where executions needing manual cleanup are published.
func (n *Notifier) AlertSubject() string {
	return n.prefix + ".alert"
}

// Notify never fails the pipeline: publish errors are logged.
func (n *Notifier) Notify(_ context.Context, exec *model.PipelineExecution) {
	ev := Event{
		ExecutionID:   exec.ID,
		Action:        exec.Request.Action,
		State:         exec.State,
		Stage:         exec.CurrentStage(),
		Layer:         exec.Request.LayerName,
		Warnings:      exec.Warnings,
		Error:         exec.Error,
		RollbackError: exec.RollbackError,
		At:            exec.UpdatedAt,
	}
	data, err := json.Marshal(ev)
	if err != nil {
		n.log.Error().Err(err).Str("execution_id", exec.ID.String()).Msg("encode event")
		return
	}

	subjects := []string{n.Subject(exec.State)}
	if exec.State == model.StateRollbackFailed {
		subjects = append(subjects, n.AlertSubject())
	}
	for _, subj := range subjects {
		if err := n.conn.Publish(subj, data); err != nil {
			n.log.Warn().Err(err).
				Str("subject", subj).
				Str("execution_id", exec.ID.String()).
				Msg("publish event failed")
		}
	}
}

var _ ingest.Notifier = (*Notifier)(nil)
