// Package gojob bridges grant notifications onto a go-job queue so the
// reconcile loop never blocks on a slow downstream messenger. The loop
// enqueues, a worker drains, and the intent ID doubles as the
// idempotency key so queue retries cannot double-announce a grant.
package gojob

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/bloxhub/storefront/core"
)

const (
	JobIDGrantNotify = "storefront.grant.notify"

	eventGranted = "granted"
	eventFailed  = "failed"
)

// RetryPolicy bounds queue redelivery so a poison notification cannot
// loop forever.
type RetryPolicy struct {
	MaxAttempts     int
	MaxDelay        time.Duration
	DeadLetterOnMax bool
}

func (p RetryPolicy) normalize(opts queue.NackOptions, attempt int) queue.NackOptions {
	out := opts
	out.Reason = strings.TrimSpace(out.Reason)
	if out.Delay < 0 {
		out.Delay = 0
	}
	if p.MaxDelay > 0 && out.Delay > p.MaxDelay {
		out.Delay = p.MaxDelay
	}
	if out.DeadLetter {
		out.Requeue = false
	}
	if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
		out.Requeue = false
		if p.DeadLetterOnMax || out.DeadLetter {
			out.DeadLetter = true
		}
	}
	if !out.Requeue && !out.DeadLetter {
		out.Requeue = true
	}
	return out
}

// ToExecutionMessage maps a grant notification onto the go-job wire
// shape. The idempotency key is derived from the intent ID and outcome,
// so re-enqueueing the same resolution dedupes at the queue.
func ToExecutionMessage(notification core.GrantNotification) *job.ExecutionMessage {
	event := eventFailed
	if notification.Completed {
		event = eventGranted
	}
	return &job.ExecutionMessage{
		JobID:          JobIDGrantNotify,
		IdempotencyKey: strings.Join([]string{JobIDGrantNotify, notification.IntentID, event}, "::"),
		DedupPolicy:    job.DeduplicationPolicy("drop"),
		Parameters: map[string]any{
			"event":            event,
			"intent_id":        notification.IntentID,
			"member_id":        notification.MemberID,
			"roblox_user_id":   strconv.FormatInt(notification.RobloxUserID, 10),
			"entitlement_id":   notification.Entitlement.ID,
			"entitlement_name": notification.Entitlement.Name,
			"asset_id":         strconv.FormatInt(notification.Entitlement.AssetID, 10),
			"invite_url":       notification.Entitlement.InviteURL,
			"failure_reason":   notification.FailureReason,
		},
	}
}

// FromExecutionMessage rebuilds the notification on the worker side.
func FromExecutionMessage(msg *job.ExecutionMessage) (core.GrantNotification, error) {
	if msg == nil {
		return core.GrantNotification{}, fmt.Errorf("gojob: execution message is required")
	}
	if msg.JobID != JobIDGrantNotify {
		return core.GrantNotification{}, fmt.Errorf("gojob: unexpected job id %q", msg.JobID)
	}
	params := msg.Parameters
	notification := core.GrantNotification{
		IntentID:      stringParam(params, "intent_id"),
		MemberID:      stringParam(params, "member_id"),
		FailureReason: stringParam(params, "failure_reason"),
		Completed:     stringParam(params, "event") == eventGranted,
		Entitlement: core.EntitlementDefinition{
			ID:        stringParam(params, "entitlement_id"),
			Name:      stringParam(params, "entitlement_name"),
			InviteURL: stringParam(params, "invite_url"),
		},
	}
	if notification.IntentID == "" {
		return core.GrantNotification{}, fmt.Errorf("gojob: intent id parameter is required")
	}
	if raw := stringParam(params, "roblox_user_id"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return core.GrantNotification{}, fmt.Errorf("gojob: invalid roblox user id %q: %w", raw, err)
		}
		notification.RobloxUserID = parsed
	}
	if raw := stringParam(params, "asset_id"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return core.GrantNotification{}, fmt.Errorf("gojob: invalid asset id %q: %w", raw, err)
		}
		notification.Entitlement.AssetID = parsed
	}
	return notification, nil
}

func stringParam(params map[string]any, key string) string {
	if params == nil {
		return ""
	}
	value, ok := params[key].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(value)
}

// QueueGrantNotifier is a core.GrantNotifier that hands notifications to
// a go-job enqueuer instead of delivering them inline.
type QueueGrantNotifier struct {
	enqueuer queue.Enqueuer
}

func NewQueueGrantNotifier(enqueuer queue.Enqueuer) (*QueueGrantNotifier, error) {
	if enqueuer == nil {
		return nil, fmt.Errorf("gojob: enqueuer is required")
	}
	return &QueueGrantNotifier{enqueuer: enqueuer}, nil
}

func (n *QueueGrantNotifier) NotifyGranted(ctx context.Context, notification core.GrantNotification) error {
	notification.Completed = true
	return n.enqueue(ctx, notification)
}

func (n *QueueGrantNotifier) NotifyFailed(ctx context.Context, notification core.GrantNotification) error {
	notification.Completed = false
	return n.enqueue(ctx, notification)
}

func (n *QueueGrantNotifier) enqueue(ctx context.Context, notification core.GrantNotification) error {
	if n == nil || n.enqueuer == nil {
		return fmt.Errorf("gojob: queue grant notifier is not configured")
	}
	if strings.TrimSpace(notification.IntentID) == "" {
		return fmt.Errorf("gojob: intent id is required")
	}
	return n.enqueuer.Enqueue(ctx, ToExecutionMessage(notification))
}

// NotifierConsumer drains queued notifications and replays them against
// the destination notifier. Failed deliveries are nacked under the
// retry policy.
type NotifierConsumer struct {
	dequeuer    queue.Dequeuer
	destination core.GrantNotifier
	policy      RetryPolicy
}

func NewNotifierConsumer(dequeuer queue.Dequeuer, destination core.GrantNotifier, policy RetryPolicy) (*NotifierConsumer, error) {
	if dequeuer == nil {
		return nil, fmt.Errorf("gojob: dequeuer is required")
	}
	if destination == nil {
		return nil, fmt.Errorf("gojob: destination notifier is required")
	}
	return &NotifierConsumer{dequeuer: dequeuer, destination: destination, policy: policy}, nil
}

// ConsumeOne pulls a single delivery, replays it, and acks or nacks.
// attempt is the zero-based redelivery count reported by the queue.
func (c *NotifierConsumer) ConsumeOne(ctx context.Context, attempt int) error {
	if c == nil || c.dequeuer == nil || c.destination == nil {
		return fmt.Errorf("gojob: notifier consumer is not configured")
	}
	delivery, err := c.dequeuer.Dequeue(ctx)
	if err != nil {
		return err
	}
	notification, err := FromExecutionMessage(delivery.Message())
	if err != nil {
		// Undecodable payloads never repair themselves.
		return delivery.Nack(ctx, c.policy.normalize(queue.NackOptions{
			DeadLetter: true,
			Reason:     err.Error(),
		}, attempt))
	}

	if notification.Completed {
		err = c.destination.NotifyGranted(ctx, notification)
	} else {
		err = c.destination.NotifyFailed(ctx, notification)
	}
	if err != nil {
		return delivery.Nack(ctx, c.policy.normalize(queue.NackOptions{
			Delay:   time.Second,
			Requeue: true,
			Reason:  err.Error(),
		}, attempt))
	}
	return delivery.Ack(ctx)
}

// LoggingHook reports worker lifecycle events through the service
// logger.
type LoggingHook struct {
	logger glog.Logger
}

func NewLoggingHook(logger glog.Logger) *LoggingHook {
	return &LoggingHook{logger: logger}
}

func (h *LoggingHook) OnStart(_ context.Context, event worker.Event) {
	h.log("job started", event, nil)
}

func (h *LoggingHook) OnSuccess(_ context.Context, event worker.Event) {
	h.log("job succeeded", event, nil)
}

func (h *LoggingHook) OnFailure(_ context.Context, event worker.Event) {
	h.log("job failed", event, event.Err)
}

func (h *LoggingHook) OnRetry(_ context.Context, event worker.Event) {
	h.log("job retrying", event, event.Err)
}

func (h *LoggingHook) log(message string, event worker.Event, err error) {
	if h == nil || h.logger == nil {
		return
	}
	jobID := ""
	if event.Message != nil {
		jobID = event.Message.JobID
	}
	args := []any{"job_id", jobID, "attempt", event.Attempt}
	if err != nil {
		args = append(args, "error", err.Error())
		h.logger.Error(message, args...)
		return
	}
	h.logger.Info(message, args...)
}

var (
	_ core.GrantNotifier = (*QueueGrantNotifier)(nil)
	_ worker.Hook        = (*LoggingHook)(nil)
)
