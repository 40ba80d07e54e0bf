package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// TickReport summarizes one pass over the pending purchase intents.
type TickReport struct {
	StartedAt  time.Time
	Duration   time.Duration
	Scanned    int
	Completed  int
	Failed     int
	Unresolved int
	Errors     int
	Skipped    bool
}

// ReconcileTick scans every pending intent once, probing the ownership
// oracle through a bounded worker pool. Intents the oracle cannot
// answer for stay pending; they are never forced into a terminal state.
func (s *Service) ReconcileTick(ctx context.Context) (report TickReport, err error) {
	startedAt := time.Now().UTC()
	report.StartedAt = startedAt
	defer func() {
		report.Duration = time.Since(startedAt)
		s.observeTick(ctx, report, err)
	}()

	if s == nil {
		return TickReport{}, fmt.Errorf("core: service is nil")
	}
	if s.intentStore == nil {
		err = s.mapError(fmt.Errorf("core: intent store is not configured"))
		return report, err
	}

	pending, listErr := s.intentStore.ListPending(ctx)
	if listErr != nil {
		err = s.mapError(listErr)
		return report, err
	}
	report.Scanned = len(pending)
	if len(pending) == 0 {
		return report, nil
	}

	workerCount := s.config.Reconciler.WorkerCount
	if workerCount <= 0 {
		workerCount = DefaultConfig().Reconciler.WorkerCount
	}
	if workerCount > len(pending) {
		workerCount = len(pending)
	}

	var (
		mu    sync.Mutex
		queue = make(chan PurchaseIntent)
		wg    sync.WaitGroup
	)
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for intent := range queue {
				outcome, workErr := s.reconcileIntent(ctx, intent)
				mu.Lock()
				switch {
				case workErr != nil:
					report.Errors++
				case outcome == IntentStateCompleted:
					report.Completed++
				case outcome == IntentStateFailed:
					report.Failed++
				default:
					report.Unresolved++
				}
				mu.Unlock()
			}
		}()
	}

feed:
	for _, intent := range pending {
		select {
		case <-ctx.Done():
			break feed
		case queue <- intent:
		}
	}
	close(queue)
	wg.Wait()

	if ctxErr := ctx.Err(); ctxErr != nil {
		err = s.mapError(ctxErr)
		return report, err
	}
	return report, nil
}

// reconcileIntent resolves one pending intent. The returned state is
// pending when the probe was inconclusive or the gamepass is simply not
// owned yet.
func (s *Service) reconcileIntent(ctx context.Context, intent PurchaseIntent) (IntentState, error) {
	if s.entitlementStore == nil {
		return intent.State, fmt.Errorf("core: entitlement store is not configured")
	}

	definition, defErr := s.entitlementStore.Get(ctx, intent.EntitlementID)
	if defErr != nil {
		if errors.Is(defErr, ErrEntitlementNotFound) {
			if failErr := s.failIntent(ctx, &intent, EntitlementDefinition{ID: intent.EntitlementID}, "entitlement removed from catalog"); failErr != nil {
				return intent.State, failErr
			}
			return IntentStateFailed, nil
		}
		return intent.State, defErr
	}

	if s.linkedAccountStore != nil {
		account, accountErr := s.linkedAccountStore.GetByMember(ctx, intent.MemberID)
		if accountErr != nil {
			if errors.Is(accountErr, ErrAccountNotFound) {
				if failErr := s.failIntent(ctx, &intent, definition, "member unlinked their account"); failErr != nil {
					return intent.State, failErr
				}
				return IntentStateFailed, nil
			}
			return intent.State, accountErr
		}
		if !account.IsLinked() {
			return IntentStatePending, nil
		}
	}

	if markErr := s.intentStore.MarkChecked(ctx, intent.ID, s.now()); markErr != nil {
		return intent.State, markErr
	}

	status, probeErr := s.probeOwnership(ctx, intent.RobloxUserID, intent.AssetID)
	if probeErr != nil {
		if IsRetriable(probeErr) {
			s.logError(ctx, "ownership probe failed, will retry", map[string]any{
				"intent_id": intent.ID,
				"asset_id":  intent.AssetID,
				"error":     probeErr.Error(),
			})
			return IntentStatePending, nil
		}
		return intent.State, probeErr
	}

	switch status {
	case OwnershipOwned:
		if completeErr := s.completeIntent(ctx, &intent, definition); completeErr != nil {
			return intent.State, completeErr
		}
		return intent.State, nil
	case OwnershipNotOwned:
		return IntentStatePending, nil
	default:
		return IntentStatePending, nil
	}
}

// ReconcileRunner drives ReconcileTick on a fixed interval. Ticks are
// single-flight: when a pass outlives the interval the next firing is
// skipped instead of stacking a second scan on top of it.
type ReconcileRunner struct {
	service  *Service
	logger   Logger
	interval time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	ticking atomic.Bool
}

func NewReconcileRunner(service *Service) (*ReconcileRunner, error) {
	if service == nil {
		return nil, fmt.Errorf("core: service is required")
	}
	interval := service.Config().Reconciler.Interval
	if interval <= 0 {
		interval = DefaultConfig().Reconciler.Interval
	}
	return &ReconcileRunner{
		service:  service,
		logger:   service.logger,
		interval: interval,
	}, nil
}

func (r *ReconcileRunner) Start(ctx context.Context) error {
	if r == nil || r.service == nil {
		return fmt.Errorf("core: reconcile runner is not configured")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return fmt.Errorf("core: reconcile runner already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	go r.loop(runCtx, r.done)
	return nil
}

func (r *ReconcileRunner) Stop(ctx context.Context) error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	cancel := r.cancel
	done := r.done
	r.cancel = nil
	r.done = nil
	r.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *ReconcileRunner) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	// First pass runs immediately so a restart does not leave resolved
	// purchases waiting a full interval.
	r.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.runOnce(ctx)
		}
	}
}

// RunOnce executes a single reconcile pass, honoring the single-flight
// guard shared with the interval loop.
func (r *ReconcileRunner) RunOnce(ctx context.Context) (TickReport, error) {
	if r == nil || r.service == nil {
		return TickReport{}, fmt.Errorf("core: reconcile runner is not configured")
	}
	if !r.ticking.CompareAndSwap(false, true) {
		return TickReport{Skipped: true}, nil
	}
	defer r.ticking.Store(false)
	return r.service.ReconcileTick(ctx)
}

func (r *ReconcileRunner) runOnce(ctx context.Context) {
	report, err := r.RunOnce(ctx)
	if err != nil {
		if r.logger != nil {
			r.logger.Error("reconcile pass failed", "error", err)
		}
		return
	}
	if report.Skipped && r.logger != nil {
		r.logger.Info("reconcile pass skipped, previous pass still running")
	}
}
