package actors

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"cleanflow/auth"
	"cleanflow/dispute"
	"cleanflow/evidence"
	"cleanflow/outbox"
	"cleanflow/sweep"
)

var photo = "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("\x89PNG\r\n\x1a\n"))

// Photos builds exactly one upload per reported room.
func Photos(beds, baths int) []evidence.Upload {
	out := make([]evidence.Upload, 0, beds+baths)
	for i := 1; i <= beds; i++ {
		out = append(out, evidence.Upload{RoomType: evidence.Bedroom, RoomNumber: i, Image: photo})
	}
	for i := 1; i <= baths; i++ {
		out = append(out, evidence.Upload{RoomType: evidence.Bathroom, RoomNumber: i, Image: photo})
	}
	return out
}

// expected reports errors that are normal outcomes of contention.
func expected(err error) bool {
	return err == nil ||
		errors.Is(err, dispute.ErrOpenDispute) ||
		errors.Is(err, dispute.ErrStaleState) ||
		errors.Is(err, dispute.ErrForbidden) ||
		errors.Is(err, dispute.ErrNotFound) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func pause(minMs, spreadMs int) {
	time.Sleep(time.Duration(minMs+rand.Intn(spreadMs)) * time.Millisecond)
}

func stopped(ctx context.Context, stop <-chan struct{}) bool {
	select {
	case <-ctx.Done():
		return true
	case <-stop:
		return true
	default:
		return false
	}
}

// Creator files claims against a shared set of appointments. Competing
// creators collide on the one-open-dispute rule.
func Creator(ctx context.Context, svc *dispute.Service, cleaner auth.Principal, appointmentIDs []string, stop <-chan struct{}) error {
	for !stopped(ctx, stop) {
		beds, baths := 3+rand.Intn(3), 1+rand.Intn(3)
		_, err := svc.Create(ctx, cleaner, dispute.CreateParams{
			AppointmentID: appointmentIDs[rand.Intn(len(appointmentIDs))],
			ReportedBeds:  beds,
			ReportedBaths: baths,
			Photos:        Photos(beds, baths),
		})
		if !expected(err) {
			return fmt.Errorf("creator: %w", err)
		}
		pause(10, 20)
	}
	return nil
}

// Responder answers whatever is pending for the homeowner, racing the
// sweeper and other responders.
func Responder(ctx context.Context, svc *dispute.Service, homeowner auth.Principal, stop <-chan struct{}) error {
	for !stopped(ctx, stop) {
		pending, err := svc.ListPending(ctx, homeowner)
		if !expected(err) {
			return fmt.Errorf("responder list: %w", err)
		}
		for _, v := range pending {
			text := "the listing is right"
			_, err := svc.HomeownerRespond(ctx, homeowner, v.DisputeID(), dispute.RespondParams{
				Approve:      rand.Intn(2) == 0,
				ResponseText: &text,
			})
			if !expected(err) {
				return fmt.Errorf("responder: %w", err)
			}
		}
		pause(15, 30)
	}
	return nil
}

// Resolver settles escalated disputes. Several resolvers may pick the same
// dispute; only one may win.
func Resolver(ctx context.Context, svc *dispute.Service, arbiter auth.Principal, stop <-chan struct{}) error {
	decisions := []dispute.Decision{dispute.DecisionApprove, dispute.DecisionDeny}
	for !stopped(ctx, stop) {
		pending, err := svc.ListPending(ctx, arbiter)
		if !expected(err) {
			return fmt.Errorf("resolver list: %w", err)
		}
		for _, v := range pending {
			_, err := svc.OwnerResolve(ctx, arbiter, v.DisputeID(), dispute.ResolveParams{
				Decision: decisions[rand.Intn(len(decisions))],
			})
			if !expected(err) {
				return fmt.Errorf("resolver: %w", err)
			}
		}
		pause(20, 40)
	}
	return nil
}

// Sweeper runs expiry passes concurrently with responders.
func Sweeper(ctx context.Context, sw *sweep.Sweeper, stop <-chan struct{}) error {
	for !stopped(ctx, stop) {
		if _, err := sw.SweepOnce(ctx); !expected(err) {
			return fmt.Errorf("sweeper: %w", err)
		}
		pause(30, 50)
	}
	return nil
}

// FlakyPublisher fails roughly one delivery in failEvery.
type FlakyPublisher struct {
	FailEvery int
}

func (p FlakyPublisher) Publish(context.Context, outbox.Message) error {
	if p.FailEvery > 0 && rand.Intn(p.FailEvery) == 0 {
		return errors.New("simulated broker outage")
	}
	return nil
}

// Relayer drains the outbox with SKIP LOCKED claims alongside other relayers.
func Relayer(ctx context.Context, relay *outbox.Relay, stop <-chan struct{}) error {
	for !stopped(ctx, stop) {
		if _, err := relay.RelayOnce(ctx); !expected(err) {
			return fmt.Errorf("relayer: %w", err)
		}
		pause(50, 50)
	}
	return nil
}
