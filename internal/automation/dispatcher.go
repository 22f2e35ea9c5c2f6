package automation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/technosupport/fusion-pipeline/internal/event"
	"github.com/technosupport/fusion-pipeline/internal/realtime"
)

// TriggerMessage is the envelope the automation trigger service
// consumes: the event plus optional transient thumbnail context.
type TriggerMessage struct {
	Event     *event.StandardizedEvent `json:"event"`
	Thumbnail *realtime.ThumbnailData  `json:"thumbnail,omitempty"`
}

// NATSDispatcher forwards events to the automation trigger service
// over an org-scoped subject. Publish failures retry with a linear
// backoff before giving up.
type NATSDispatcher struct {
	conn          *nats.Conn
	subjectPrefix string
	maxRetries    int
}

func NewNATSDispatcher(conn *nats.Conn, subjectPrefix string, maxRetries int) *NATSDispatcher {
	if subjectPrefix == "" {
		subjectPrefix = "fusion.automations"
	}
	return &NATSDispatcher{
		conn:          conn,
		subjectPrefix: subjectPrefix,
		maxRetries:    maxRetries,
	}
}

func (d *NATSDispatcher) Dispatch(ctx context.Context, orgID string, e *event.StandardizedEvent, thumb *realtime.ThumbnailData) error {
	payload, err := json.Marshal(&TriggerMessage{Event: e, Thumbnail: thumb})
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}

	subject := fmt.Sprintf("%s.%s", d.subjectPrefix, orgID)

	for i := 0; i <= d.maxRetries; i++ {
		err = d.conn.Publish(subject, payload)
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(i*100) * time.Millisecond):
		}
	}

	return fmt.Errorf("publish failed after %d retries: %w", d.maxRetries, err)
}
