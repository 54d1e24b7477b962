// Package messaging implements the live progress channel on core NATS.
// Progress events are fire-and-forget UI hints; the persisted job record
// remains authoritative, so plain pub/sub without a stream is enough.
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"documine/internal/application/common/slogger"
	"documine/internal/config"
	"documine/internal/port/outbound"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// progressSubjectPrefix namespaces progress subjects: one subject per
// document.
const progressSubjectPrefix = "documine.progress."

const natsConnectionTimeoutSeconds = 5

// NATSProgressNotifier implements the ProgressNotifier port over NATS.
type NATSProgressNotifier struct {
	config config.NATSConfig
	conn   *nats.Conn
}

// NewNATSProgressNotifier creates and connects a NATS progress notifier.
func NewNATSProgressNotifier(cfg config.NATSConfig) (*NATSProgressNotifier, error) {
	if cfg.URL == "" {
		return nil, errors.New("NATS URL cannot be empty")
	}
	if !strings.HasPrefix(cfg.URL, "nats://") {
		return nil, errors.New("invalid NATS URL scheme")
	}

	conn, err := nats.Connect(cfg.URL,
		nats.Timeout(natsConnectionTimeoutSeconds*time.Second),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSProgressNotifier{config: cfg, conn: conn}, nil
}

var _ outbound.ProgressNotifier = (*NATSProgressNotifier)(nil)

// Notify publishes the snapshot to the document's progress subject.
func (n *NATSProgressNotifier) Notify(_ context.Context, snapshot outbound.JobSnapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal progress snapshot: %w", err)
	}
	if err := n.conn.Publish(subjectFor(snapshot.DocumentID), payload); err != nil {
		return fmt.Errorf("failed to publish progress: %w", err)
	}
	return nil
}

// Subscribe streams snapshots for a document until the context is
// cancelled. Malformed payloads are logged and skipped.
func (n *NATSProgressNotifier) Subscribe(ctx context.Context, documentID uuid.UUID) (<-chan outbound.JobSnapshot, error) {
	out := make(chan outbound.JobSnapshot, 16)

	subscription, err := n.conn.Subscribe(subjectFor(documentID), func(msg *nats.Msg) {
		var snapshot outbound.JobSnapshot
		if err := json.Unmarshal(msg.Data, &snapshot); err != nil {
			slogger.WarnNoCtx("Dropping malformed progress event", slogger.Fields{
				"document_id": documentID.String(),
				"error":       err.Error(),
			})
			return
		}
		select {
		case out <- snapshot:
		default:
			// Slow subscriber; it reconciles from the persisted snapshot.
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to progress: %w", err)
	}

	go func() {
		<-ctx.Done()
		_ = subscription.Unsubscribe()
		close(out)
	}()

	return out, nil
}

// Ping reports connection health for the health endpoint.
func (n *NATSProgressNotifier) Ping(_ context.Context) error {
	if n.conn == nil || !n.conn.IsConnected() {
		return errors.New("NATS connection is down")
	}
	return nil
}

// Close drains the connection.
func (n *NATSProgressNotifier) Close() {
	if n.conn != nil {
		n.conn.Close()
	}
}

func subjectFor(documentID uuid.UUID) string {
	return progressSubjectPrefix + documentID.String()
}
