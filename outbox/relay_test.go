package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRelayOnce_PublishesAndMarks(t *testing.T) {
	q := &fakeQueue{pending: []Message{
		{ID: 1, Topic: TopicDisputeCreated, PartitionKey: "d-1"},
		{ID: 2, Topic: TopicDisputeEscalated, PartitionKey: "d-2"},
	}}
	pub := &fakePublisher{}
	relay := NewRelay(quietLogger(), q, pub, time.Second, 10)

	n, err := relay.RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []int64{1, 2}, q.processed)
	assert.Len(t, pub.sent, 2)
	assert.Empty(t, q.failed)
}

func TestRelayOnce_FailedPublishIsRetriedThenDead(t *testing.T) {
	q := &fakeQueue{pending: []Message{{ID: 7, Topic: TopicDisputeExpired}}}
	pub := &fakePublisher{err: errors.New("broker unavailable")}
	relay := NewRelay(quietLogger(), q, pub, time.Second, 10).WithMaxAttempts(3)

	n, err := relay.RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	require.Len(t, q.failed, 1)
	assert.Equal(t, failure{id: 7, reason: "broker unavailable", maxAttempts: 3}, q.failed[0])
	assert.Empty(t, q.processed)
}

func TestRelayOnce_ClaimError(t *testing.T) {
	boom := errors.New("pool closed")
	relay := NewRelay(quietLogger(), &fakeQueue{claimErr: boom}, &fakePublisher{}, time.Second, 10)
	_, err := relay.RelayOnce(context.Background())
	require.ErrorIs(t, err, boom)
}

func TestRelayRun_StopsOnCancel(t *testing.T) {
	q := &fakeQueue{}
	relay := NewRelay(quietLogger(), q, &fakePublisher{}, 5*time.Millisecond, 10)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := relay.Run(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.GreaterOrEqual(t, q.claims(), 2)
}

func TestEnqueue(t *testing.T) {
	q := &recordingQuerier{}
	err := Enqueue(context.Background(), q, TopicAppointmentPriceChanged, "appt-1", map[string]any{"price_cents": 16500})
	require.NoError(t, err)
	require.Len(t, q.args, 3)
	assert.Equal(t, TopicAppointmentPriceChanged, q.args[0])
	assert.Equal(t, "appt-1", q.args[1])

	var payload map[string]any
	require.NoError(t, json.Unmarshal(q.args[2].([]byte), &payload))
	assert.EqualValues(t, 16500, payload["price_cents"])

	require.Error(t, Enqueue(context.Background(), q, "", "k", nil))
}

func TestLogPublisher(t *testing.T) {
	require.NoError(t, NewLogPublisher(quietLogger()).Publish(context.Background(), Message{ID: 1, Topic: TopicDisputeCreated}))
}

type failure struct {
	id          int64
	reason      string
	maxAttempts int
}

type fakeQueue struct {
	mu        sync.Mutex
	pending   []Message
	claimErr  error
	claimN    int
	processed []int64
	failed    []failure
}

func (f *fakeQueue) Claim(_ context.Context, limit int, _ time.Duration) ([]Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.claimN++
	if f.claimErr != nil {
		return nil, f.claimErr
	}
	if limit > len(f.pending) {
		limit = len(f.pending)
	}
	out := f.pending[:limit]
	f.pending = f.pending[limit:]
	return out, nil
}

func (f *fakeQueue) MarkProcessed(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processed = append(f.processed, id)
	return nil
}

func (f *fakeQueue) MarkFailed(_ context.Context, id int64, reason string, maxAttempts int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed = append(f.failed, failure{id: id, reason: reason, maxAttempts: maxAttempts})
	return nil
}

func (f *fakeQueue) claims() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.claimN
}

type fakePublisher struct {
	err  error
	sent []Message
}

func (f *fakePublisher) Publish(_ context.Context, m Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, m)
	return nil
}

type recordingQuerier struct {
	args []any
}

func (r *recordingQuerier) Exec(_ context.Context, _ string, args ...any) (pgconn.CommandTag, error) {
	r.args = args
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (r *recordingQuerier) Query(context.Context, string, ...any) (pgx.Rows, error) {
	panic("not implemented")
}

func (r *recordingQuerier) QueryRow(context.Context, string, ...any) pgx.Row {
	panic("not implemented")
}
