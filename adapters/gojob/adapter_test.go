package gojob

import (
	"context"
	"errors"
	"testing"
	"time"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"

	"github.com/bloxhub/storefront/core"
)

type stubQueueEnqueuer struct {
	last *job.ExecutionMessage
}

func (s *stubQueueEnqueuer) Enqueue(_ context.Context, msg *job.ExecutionMessage) error {
	s.last = msg
	return nil
}

type stubQueueDequeuer struct {
	delivery queue.Delivery
}

func (s *stubQueueDequeuer) Dequeue(context.Context) (queue.Delivery, error) {
	return s.delivery, nil
}

type stubQueueDelivery struct {
	msg      *job.ExecutionMessage
	acked    bool
	nacked   bool
	nackOpts queue.NackOptions
}

func (s *stubQueueDelivery) Message() *job.ExecutionMessage {
	return s.msg
}

func (s *stubQueueDelivery) Ack(context.Context) error {
	s.acked = true
	return nil
}

func (s *stubQueueDelivery) Nack(_ context.Context, opts queue.NackOptions) error {
	s.nacked = true
	s.nackOpts = opts
	return nil
}

type recordingNotifier struct {
	granted []core.GrantNotification
	failed  []core.GrantNotification
	err     error
}

func (n *recordingNotifier) NotifyGranted(_ context.Context, notification core.GrantNotification) error {
	if n.err != nil {
		return n.err
	}
	n.granted = append(n.granted, notification)
	return nil
}

func (n *recordingNotifier) NotifyFailed(_ context.Context, notification core.GrantNotification) error {
	if n.err != nil {
		return n.err
	}
	n.failed = append(n.failed, notification)
	return nil
}

func sampleNotification() core.GrantNotification {
	return core.GrantNotification{
		IntentID:     "intent-1",
		MemberID:     "member-1",
		RobloxUserID: 156,
		Entitlement: core.EntitlementDefinition{
			ID:        "ent-1",
			Name:      "vip",
			AssetID:   42,
			InviteURL: "https://example.com/vip",
		},
		Completed: true,
	}
}

func TestNotificationMappingRoundTrip(t *testing.T) {
	original := sampleNotification()

	msg := ToExecutionMessage(original)
	if msg.JobID != JobIDGrantNotify {
		t.Fatalf("unexpected job id %q", msg.JobID)
	}
	if msg.IdempotencyKey != "storefront.grant.notify::intent-1::granted" {
		t.Fatalf("unexpected idempotency key %q", msg.IdempotencyKey)
	}

	roundTrip, err := FromExecutionMessage(msg)
	if err != nil {
		t.Fatalf("from execution message: %v", err)
	}
	if roundTrip.IntentID != original.IntentID {
		t.Fatalf("expected intent id %q, got %q", original.IntentID, roundTrip.IntentID)
	}
	if roundTrip.RobloxUserID != original.RobloxUserID {
		t.Fatalf("expected roblox user id %d, got %d", original.RobloxUserID, roundTrip.RobloxUserID)
	}
	if roundTrip.Entitlement.AssetID != original.Entitlement.AssetID {
		t.Fatalf("expected asset id %d, got %d", original.Entitlement.AssetID, roundTrip.Entitlement.AssetID)
	}
	if !roundTrip.Completed {
		t.Fatalf("expected completed notification")
	}
}

func TestQueueGrantNotifier_EnqueuesGrantedAndFailed(t *testing.T) {
	enqueuer := &stubQueueEnqueuer{}
	notifier, err := NewQueueGrantNotifier(enqueuer)
	if err != nil {
		t.Fatalf("new queue grant notifier: %v", err)
	}

	if err := notifier.NotifyGranted(context.Background(), sampleNotification()); err != nil {
		t.Fatalf("notify granted: %v", err)
	}
	if enqueuer.last == nil || enqueuer.last.Parameters["event"] != "granted" {
		t.Fatalf("expected granted event, got %#v", enqueuer.last)
	}

	failed := sampleNotification()
	failed.FailureReason = "entitlement removed from catalog"
	if err := notifier.NotifyFailed(context.Background(), failed); err != nil {
		t.Fatalf("notify failed: %v", err)
	}
	if enqueuer.last.Parameters["event"] != "failed" {
		t.Fatalf("expected failed event, got %#v", enqueuer.last.Parameters)
	}
	if enqueuer.last.Parameters["failure_reason"] != "entitlement removed from catalog" {
		t.Fatalf("expected failure reason to survive, got %#v", enqueuer.last.Parameters)
	}

	if err := notifier.NotifyGranted(context.Background(), core.GrantNotification{}); err == nil {
		t.Fatalf("expected missing intent id to be rejected")
	}
}

func TestNotifierConsumer_AcksOnDelivery(t *testing.T) {
	delivery := &stubQueueDelivery{msg: ToExecutionMessage(sampleNotification())}
	destination := &recordingNotifier{}
	consumer, err := NewNotifierConsumer(&stubQueueDequeuer{delivery: delivery}, destination, RetryPolicy{})
	if err != nil {
		t.Fatalf("new notifier consumer: %v", err)
	}

	if err := consumer.ConsumeOne(context.Background(), 0); err != nil {
		t.Fatalf("consume: %v", err)
	}
	if len(destination.granted) != 1 {
		t.Fatalf("expected one granted delivery, got %d", len(destination.granted))
	}
	if !delivery.acked {
		t.Fatalf("expected delivery to be acked")
	}
}

func TestNotifierConsumer_NacksWithBoundedRetry(t *testing.T) {
	delivery := &stubQueueDelivery{msg: ToExecutionMessage(sampleNotification())}
	destination := &recordingNotifier{err: errors.New("messenger down")}
	consumer, err := NewNotifierConsumer(&stubQueueDequeuer{delivery: delivery}, destination, RetryPolicy{
		MaxAttempts:     3,
		MaxDelay:        10 * time.Second,
		DeadLetterOnMax: true,
	})
	if err != nil {
		t.Fatalf("new notifier consumer: %v", err)
	}

	if err := consumer.ConsumeOne(context.Background(), 1); err != nil {
		t.Fatalf("consume attempt 1: %v", err)
	}
	if !delivery.nacked || !delivery.nackOpts.Requeue {
		t.Fatalf("expected requeue before max attempts, got %#v", delivery.nackOpts)
	}

	delivery.nacked = false
	if err := consumer.ConsumeOne(context.Background(), 3); err != nil {
		t.Fatalf("consume max attempt: %v", err)
	}
	if delivery.nackOpts.Requeue {
		t.Fatalf("expected no requeue at max attempts")
	}
	if !delivery.nackOpts.DeadLetter {
		t.Fatalf("expected dead letter at max attempts")
	}
}

func TestNotifierConsumer_DeadLettersUndecodablePayloads(t *testing.T) {
	delivery := &stubQueueDelivery{msg: &job.ExecutionMessage{JobID: "someone.else"}}
	destination := &recordingNotifier{}
	consumer, err := NewNotifierConsumer(&stubQueueDequeuer{delivery: delivery}, destination, RetryPolicy{})
	if err != nil {
		t.Fatalf("new notifier consumer: %v", err)
	}

	if err := consumer.ConsumeOne(context.Background(), 0); err != nil {
		t.Fatalf("consume: %v", err)
	}
	if !delivery.nackOpts.DeadLetter {
		t.Fatalf("expected undecodable payload to dead letter, got %#v", delivery.nackOpts)
	}
	if len(destination.granted)+len(destination.failed) != 0 {
		t.Fatalf("expected destination to stay untouched")
	}
}
