// Package outbox records integration events in the same transaction as the
// state change that produced them and relays them to a broker afterwards.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cleanflow/db"
)

const (
	TopicDisputeCreated           = "dispute.created"
	TopicDisputeHomeownerApproved = "dispute.homeowner_approved"
	TopicDisputeEscalated         = "dispute.escalated"
	TopicDisputeOwnerApproved     = "dispute.owner_approved"
	TopicDisputeOwnerDenied       = "dispute.owner_denied"
	TopicDisputeExpired           = "dispute.expired"
	TopicAppointmentPriceChanged  = "appointment.price_changed"
)

// Message is one outbox row claimed for delivery.
type Message struct {
	ID           int64
	Topic        string
	PartitionKey string
	Payload      []byte
	Attempts     int
	CreatedAt    time.Time
}

// Enqueue inserts a pending message inside the caller's transaction.
func Enqueue(ctx context.Context, q db.Querier, topic, partitionKey string, payload map[string]any) error {
	if topic == "" {
		return fmt.Errorf("outbox: empty topic")
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("outbox: marshal payload: %w", err)
	}

	const insertSQL = `
INSERT INTO outbox (topic, partition_key, payload)
VALUES ($1, $2, $3);
`
	if _, err := q.Exec(ctx, insertSQL, topic, partitionKey, payloadBytes); err != nil {
		return fmt.Errorf("outbox: insert message: %w", err)
	}
	return nil
}
