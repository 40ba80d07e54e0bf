package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotOwnedYet         = errors.New("core: gamepass is not owned yet")
	ErrNoPendingIntent     = errors.New("core: no pending purchase intent")
	ErrDuplicateIntent     = errors.New("core: purchase intent already open")
	ErrEntitlementMismatch = errors.New("core: entitlement and gamepass claim mismatch")
	ErrOracleInconclusive  = errors.New("core: ownership oracle is unavailable")
)

type RequestPurchaseRequest struct {
	MemberID        string
	EntitlementName string
}

// PurchaseTicket reports what RequestPurchase did with the intent. When
// the oracle already sees the gamepass in the buyer's inventory the
// intent completes on the spot and Granted is true.
type PurchaseTicket struct {
	Intent      PurchaseIntent
	Entitlement EntitlementDefinition
	Granted     bool
	// PurchaseURL points the buyer at the storefront page while the
	// intent is pending; empty once granted.
	PurchaseURL string
}

func (s *Service) RequestPurchase(ctx context.Context, req RequestPurchaseRequest) (ticket PurchaseTicket, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"member_id":        req.MemberID,
		"entitlement_name": req.EntitlementName,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "request_purchase", err, fields)
	}()

	memberID := strings.TrimSpace(req.MemberID)
	if memberID == "" {
		err = s.mapError(fmt.Errorf("core: member id is required"))
		return PurchaseTicket{}, err
	}
	if s.intentStore == nil {
		err = s.mapError(fmt.Errorf("core: intent store is not configured"))
		return PurchaseTicket{}, err
	}

	account, accountErr := s.requireLinkedAccount(ctx, memberID)
	if accountErr != nil {
		err = s.mapError(accountErr)
		return PurchaseTicket{}, err
	}
	definition, defErr := s.GetEntitlement(ctx, req.EntitlementName)
	if defErr != nil {
		err = defErr
		return PurchaseTicket{}, err
	}
	fields["asset_id"] = definition.AssetID

	// Repeated requests for the same pair reuse the open intent: a
	// completed one short-circuits, a pending one is re-probed below.
	existing, found, lookupErr := s.findOpenIntent(ctx, memberID, definition.ID)
	if lookupErr != nil {
		err = s.mapError(lookupErr)
		return PurchaseTicket{}, err
	}
	if found && existing.State == IntentStateCompleted {
		return PurchaseTicket{Intent: existing, Entitlement: definition, Granted: true}, nil
	}

	intent := existing
	if !found {
		created, createErr := s.intentStore.Create(ctx, CreatePurchaseIntentInput{
			MemberID:      memberID,
			RobloxUserID:  account.RobloxUserID,
			EntitlementID: definition.ID,
			AssetID:       definition.AssetID,
		})
		if createErr != nil {
			if !errors.Is(createErr, ErrDuplicateIntent) {
				err = s.mapError(createErr)
				return PurchaseTicket{}, err
			}
			// Lost a race with a concurrent request; adopt the winner.
			raced, racedFound, racedErr := s.findOpenIntent(ctx, memberID, definition.ID)
			if racedErr != nil || !racedFound {
				err = s.mapError(fmt.Errorf("%w: member %s entitlement %s", ErrDuplicateIntent, memberID, definition.ID))
				return PurchaseTicket{}, err
			}
			created = raced
		}
		intent = created
		if intent.State == IntentStateCompleted {
			return PurchaseTicket{Intent: intent, Entitlement: definition, Granted: true}, nil
		}
	}

	// Fast path: buyers who already own the gamepass should not wait a
	// full reconcile interval. An inconclusive probe leaves the intent
	// pending for the loop to pick up.
	status, probeErr := s.probeOwnership(ctx, account.RobloxUserID, definition.AssetID)
	if probeErr == nil && status == OwnershipOwned {
		if completeErr := s.completeIntent(ctx, &intent, definition); completeErr != nil {
			err = s.mapError(completeErr)
			return PurchaseTicket{}, err
		}
		return PurchaseTicket{Intent: intent, Entitlement: definition, Granted: true}, nil
	}

	return PurchaseTicket{
		Intent:      intent,
		Entitlement: definition,
		PurchaseURL: s.purchaseURL(definition.AssetID),
	}, nil
}

type RedeemRequest struct {
	MemberID        string
	EntitlementName string
	// AssetID is the buyer's gamepass claim. Either it or the
	// entitlement name must be set; when both are set they must agree.
	AssetID int64
}

// Redeem is the buyer-initiated "I bought it, check now" path. An
// owned gamepass completes the open intent, or records the grant
// directly when the buyer purchased out-of-band before any intent
// existed.
func (s *Service) Redeem(ctx context.Context, req RedeemRequest) (ticket PurchaseTicket, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"member_id":        req.MemberID,
		"entitlement_name": req.EntitlementName,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "redeem", err, fields)
	}()

	memberID := strings.TrimSpace(req.MemberID)
	if memberID == "" {
		err = s.mapError(fmt.Errorf("core: member id is required"))
		return PurchaseTicket{}, err
	}
	if s.intentStore == nil {
		err = s.mapError(fmt.Errorf("core: intent store is not configured"))
		return PurchaseTicket{}, err
	}

	account, accountErr := s.requireLinkedAccount(ctx, memberID)
	if accountErr != nil {
		err = s.mapError(accountErr)
		return PurchaseTicket{}, err
	}
	definition, defErr := s.resolveRedeemTarget(ctx, req)
	if defErr != nil {
		err = defErr
		return PurchaseTicket{}, err
	}
	fields["asset_id"] = definition.AssetID

	existing, found, findErr := s.findOpenIntent(ctx, memberID, definition.ID)
	if findErr != nil {
		err = s.mapError(findErr)
		return PurchaseTicket{}, err
	}
	if found && existing.State == IntentStateCompleted {
		return PurchaseTicket{Intent: existing, Entitlement: definition, Granted: true}, nil
	}

	status, probeErr := s.probeOwnership(ctx, account.RobloxUserID, definition.AssetID)
	if probeErr != nil {
		err = s.mapError(Retriable(fmt.Errorf("%w: %v", ErrOracleInconclusive, probeErr)))
		return PurchaseTicket{}, err
	}
	switch status {
	case OwnershipOwned:
		intent := existing
		if !found {
			// Purchased out-of-band with no intent on record; the
			// redeem creates one and resolves it in the same call.
			created, createErr := s.intentStore.Create(ctx, CreatePurchaseIntentInput{
				MemberID:      memberID,
				RobloxUserID:  account.RobloxUserID,
				EntitlementID: definition.ID,
				AssetID:       definition.AssetID,
			})
			if createErr != nil && !errors.Is(createErr, ErrDuplicateIntent) {
				err = s.mapError(createErr)
				return PurchaseTicket{}, err
			}
			if createErr == nil {
				intent = created
			} else {
				raced, racedFound, racedErr := s.findOpenIntent(ctx, memberID, definition.ID)
				if racedErr != nil || !racedFound {
					err = s.mapError(fmt.Errorf("%w: member %s entitlement %s", ErrDuplicateIntent, memberID, definition.ID))
					return PurchaseTicket{}, err
				}
				intent = raced
			}
		}
		if intent.State != IntentStateCompleted {
			if completeErr := s.completeIntent(ctx, &intent, definition); completeErr != nil {
				err = s.mapError(completeErr)
				return PurchaseTicket{}, err
			}
		}
		return PurchaseTicket{Intent: intent, Entitlement: definition, Granted: true}, nil
	case OwnershipNotOwned:
		// Any pending intent stays pending; the loop keeps watching
		// for the purchase to land.
		err = s.mapError(fmt.Errorf("%w: asset %d", ErrNotOwnedYet, definition.AssetID))
		return PurchaseTicket{}, err
	default:
		err = s.mapError(Retriable(ErrOracleInconclusive))
		return PurchaseTicket{}, err
	}
}

// resolveRedeemTarget finds the entitlement a redeem refers to, by
// explicit name, by gamepass claim, or both when they agree.
func (s *Service) resolveRedeemTarget(ctx context.Context, req RedeemRequest) (EntitlementDefinition, error) {
	name := strings.TrimSpace(req.EntitlementName)
	if name == "" && req.AssetID == 0 {
		return EntitlementDefinition{}, s.mapError(fmt.Errorf("core: entitlement name or gamepass claim is required"))
	}
	if name != "" {
		definition, err := s.GetEntitlement(ctx, name)
		if err != nil {
			return EntitlementDefinition{}, err
		}
		if req.AssetID != 0 && definition.AssetID != req.AssetID {
			return EntitlementDefinition{}, s.mapError(fmt.Errorf(
				"%w: entitlement %s is backed by gamepass %d, claim was %d",
				ErrEntitlementMismatch, definition.Name, definition.AssetID, req.AssetID,
			))
		}
		return definition, nil
	}
	if s.entitlementStore == nil {
		return EntitlementDefinition{}, s.mapError(fmt.Errorf("core: entitlement store is not configured"))
	}
	definition, err := s.entitlementStore.GetByAssetID(ctx, req.AssetID)
	if err != nil {
		return EntitlementDefinition{}, s.mapError(err)
	}
	return definition, nil
}

func (s *Service) ListPurchases(ctx context.Context, memberID string) ([]PurchaseIntent, error) {
	if s == nil || s.intentStore == nil {
		return nil, fmt.Errorf("core: intent store is not configured")
	}
	memberID = strings.TrimSpace(memberID)
	if memberID == "" {
		return nil, s.mapError(fmt.Errorf("core: member id is required"))
	}
	intents, err := s.intentStore.ListByMember(ctx, memberID)
	if err != nil {
		return nil, s.mapError(err)
	}
	return intents, nil
}

// CancelPurchase abandons a pending intent so the loop stops polling
// for it. Terminal intents are left untouched.
func (s *Service) CancelPurchase(ctx context.Context, memberID string, entitlementName string) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"member_id":        memberID,
		"entitlement_name": entitlementName,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "cancel_purchase", err, fields)
	}()

	memberID = strings.TrimSpace(memberID)
	if memberID == "" {
		err = s.mapError(fmt.Errorf("core: member id is required"))
		return err
	}
	if s.intentStore == nil {
		err = s.mapError(fmt.Errorf("core: intent store is not configured"))
		return err
	}
	definition, defErr := s.GetEntitlement(ctx, entitlementName)
	if defErr != nil {
		err = defErr
		return err
	}
	intent, findErr := s.findPendingIntent(ctx, memberID, definition.ID)
	if findErr != nil {
		err = s.mapError(findErr)
		return err
	}
	if failErr := s.failIntent(ctx, &intent, definition, "cancelled by member"); failErr != nil {
		err = s.mapError(failErr)
		return err
	}
	return nil
}

func (s *Service) requireLinkedAccount(ctx context.Context, memberID string) (LinkedAccount, error) {
	if s.linkedAccountStore == nil {
		return LinkedAccount{}, fmt.Errorf("core: linked account store is not configured")
	}
	account, err := s.linkedAccountStore.GetByMember(ctx, memberID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return LinkedAccount{}, fmt.Errorf("%w: member %s", ErrNotLinked, memberID)
		}
		return LinkedAccount{}, err
	}
	if !account.IsLinked() {
		return LinkedAccount{}, fmt.Errorf("%w: member %s", ErrNotLinked, memberID)
	}
	return account, nil
}

func (s *Service) purchaseURL(assetID int64) string {
	template := s.config.Purchase.URLTemplate
	if !strings.Contains(template, "%d") {
		template = DefaultConfig().Purchase.URLTemplate
	}
	return fmt.Sprintf(template, assetID)
}

// findOpenIntent returns the member's non-failed intent for the
// entitlement. The store enforces at most one such row per pair.
func (s *Service) findOpenIntent(ctx context.Context, memberID string, entitlementID string) (PurchaseIntent, bool, error) {
	intents, err := s.intentStore.ListByMember(ctx, memberID)
	if err != nil {
		return PurchaseIntent{}, false, err
	}
	for _, intent := range intents {
		if intent.EntitlementID == entitlementID && intent.State != IntentStateFailed {
			return intent, true, nil
		}
	}
	return PurchaseIntent{}, false, nil
}

func (s *Service) findPendingIntent(ctx context.Context, memberID string, entitlementID string) (PurchaseIntent, error) {
	intents, err := s.intentStore.ListByMember(ctx, memberID)
	if err != nil {
		return PurchaseIntent{}, err
	}
	for _, intent := range intents {
		if intent.EntitlementID == entitlementID && intent.State == IntentStatePending {
			return intent, nil
		}
	}
	return PurchaseIntent{}, fmt.Errorf("%w: member %s entitlement %s", ErrNoPendingIntent, memberID, entitlementID)
}

// probeOwnership wraps a single oracle call in the configured per-call
// timeout. Errors and timeouts collapse to OwnershipUnknown so callers
// never mistake an outage for a definite answer.
func (s *Service) probeOwnership(ctx context.Context, robloxUserID int64, assetID int64) (OwnershipStatus, error) {
	if s == nil || s.ownershipOracle == nil {
		return OwnershipUnknown, fmt.Errorf("core: ownership oracle is not configured")
	}
	timeout := s.config.Reconciler.OracleTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().Reconciler.OracleTimeout
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	status, err := s.ownershipOracle.CheckOwnership(probeCtx, robloxUserID, assetID)
	if err != nil {
		return OwnershipUnknown, Retriable(err)
	}
	switch status {
	case OwnershipOwned, OwnershipNotOwned:
		return status, nil
	default:
		return OwnershipUnknown, nil
	}
}

// completeIntent flips a pending intent to completed and fires the
// grant notification at most once. The compare-and-set guards against a
// concurrent resolver; the audit insert guards against a repeated
// notification when the notifier itself retries.
func (s *Service) completeIntent(ctx context.Context, intent *PurchaseIntent, definition EntitlementDefinition) error {
	now := s.now()
	applied, err := s.intentStore.Transition(ctx, intent.ID, IntentStatePending, IntentStateCompleted, "", now)
	if err != nil {
		return err
	}
	if !applied {
		refreshed, getErr := s.intentStore.Get(ctx, intent.ID)
		if getErr == nil {
			*intent = refreshed
		}
		return nil
	}
	if transitionErr := intent.TransitionTo(IntentStateCompleted, now); transitionErr != nil {
		return transitionErr
	}

	if s.grantAuditStore == nil {
		return nil
	}
	created, auditErr := s.grantAuditStore.Append(ctx, GrantAudit{
		IntentID:      intent.ID,
		MemberID:      intent.MemberID,
		EntitlementID: intent.EntitlementID,
		GrantedAt:     now,
	})
	if auditErr != nil {
		return auditErr
	}
	if !created || s.grantNotifier == nil {
		return nil
	}
	notifyErr := s.grantNotifier.NotifyGranted(ctx, GrantNotification{
		IntentID:     intent.ID,
		MemberID:     intent.MemberID,
		RobloxUserID: intent.RobloxUserID,
		Entitlement:  definition,
		Completed:    true,
	})
	if notifyErr != nil {
		// The grant is durable; a lost notification is logged rather
		// than re-sent on a later tick.
		s.logError(ctx, "grant notification failed", map[string]any{
			"intent_id": intent.ID,
			"member_id": intent.MemberID,
			"error":     notifyErr.Error(),
		})
	}
	return nil
}

func (s *Service) failIntent(ctx context.Context, intent *PurchaseIntent, definition EntitlementDefinition, reason string) error {
	now := s.now()
	applied, err := s.intentStore.Transition(ctx, intent.ID, IntentStatePending, IntentStateFailed, reason, now)
	if err != nil {
		return err
	}
	if !applied {
		refreshed, getErr := s.intentStore.Get(ctx, intent.ID)
		if getErr == nil {
			*intent = refreshed
		}
		return nil
	}
	if transitionErr := intent.TransitionTo(IntentStateFailed, now); transitionErr != nil {
		return transitionErr
	}
	intent.FailureReason = reason

	if s.grantNotifier == nil {
		return nil
	}
	notifyErr := s.grantNotifier.NotifyFailed(ctx, GrantNotification{
		IntentID:      intent.ID,
		MemberID:      intent.MemberID,
		RobloxUserID:  intent.RobloxUserID,
		Entitlement:   definition,
		FailureReason: reason,
	})
	if notifyErr != nil {
		s.logError(ctx, "failure notification failed", map[string]any{
			"intent_id": intent.ID,
			"member_id": intent.MemberID,
			"error":     notifyErr.Error(),
		})
	}
	return nil
}
