package core

import (
	"errors"
	"fmt"
	"time"
)

type LinkState string

const (
	LinkStateUnlinked            LinkState = "unlinked"
	LinkStatePendingConfirmation LinkState = "pending_confirmation"
	LinkStateLinked              LinkState = "linked"
)

func (s LinkState) Valid() bool {
	switch s {
	case LinkStateUnlinked, LinkStatePendingConfirmation, LinkStateLinked:
		return true
	}
	return false
}

var allowedLinkTransitions = map[LinkState]map[LinkState]struct{}{
	LinkStateUnlinked: {
		LinkStatePendingConfirmation: {},
	},
	LinkStatePendingConfirmation: {
		LinkStatePendingConfirmation: {},
		LinkStateLinked:              {},
		LinkStateUnlinked:            {},
	},
	LinkStateLinked: {
		LinkStatePendingConfirmation: {},
		LinkStateUnlinked:            {},
	},
}

var ErrInvalidLinkTransition = errors.New("core: invalid link state transition")

// LinkedAccount binds a platform member to an external Roblox account.
// While the binding is pending, VerificationCode holds the token the
// member must place in their Roblox profile description.
// RobloxUserID and RobloxUsername are populated exactly while the
// state is linked; a pending challenge carries no confirmed identity.
type LinkedAccount struct {
	ID               string
	MemberID         string
	RobloxUserID     int64
	RobloxUsername   string
	State            LinkState
	VerificationCode string
	LinkedAt         *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (a *LinkedAccount) TransitionTo(next LinkState, now time.Time) error {
	if a == nil {
		return fmt.Errorf("core: linked account is nil")
	}
	if !next.Valid() {
		return fmt.Errorf("%w: unknown state %q", ErrInvalidLinkTransition, next)
	}
	allowed, ok := allowedLinkTransitions[a.State]
	if !ok {
		return fmt.Errorf("%w: unknown current state %q", ErrInvalidLinkTransition, a.State)
	}
	if _, ok := allowed[next]; !ok {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidLinkTransition, a.State, next)
	}
	a.State = next
	a.UpdatedAt = now.UTC()
	switch next {
	case LinkStateLinked:
		linkedAt := now.UTC()
		a.LinkedAt = &linkedAt
		a.VerificationCode = ""
	case LinkStatePendingConfirmation:
		// External identity is only held while linked; entering
		// confirmation drops whatever was confirmed before.
		a.RobloxUserID = 0
		a.RobloxUsername = ""
		a.LinkedAt = nil
	case LinkStateUnlinked:
		a.RobloxUserID = 0
		a.RobloxUsername = ""
		a.LinkedAt = nil
		a.VerificationCode = ""
	}
	return nil
}

func (a LinkedAccount) IsLinked() bool {
	return a.State == LinkStateLinked
}

// EntitlementDefinition describes a purchasable product backed by a
// Roblox gamepass. Name is unique case-insensitively; AssetID is unique
// across the catalog.
type EntitlementDefinition struct {
	ID          string
	Name        string
	AssetID     int64
	Description string
	InviteURL   string
	PriceRobux  int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type IntentState string

const (
	IntentStatePending   IntentState = "pending"
	IntentStateCompleted IntentState = "completed"
	IntentStateFailed    IntentState = "failed"
)

func (s IntentState) Valid() bool {
	switch s {
	case IntentStatePending, IntentStateCompleted, IntentStateFailed:
		return true
	}
	return false
}

func (s IntentState) Terminal() bool {
	return s == IntentStateCompleted || s == IntentStateFailed
}

var allowedIntentTransitions = map[IntentState]map[IntentState]struct{}{
	IntentStatePending: {
		IntentStateCompleted: {},
		IntentStateFailed:    {},
	},
	IntentStateCompleted: {},
	IntentStateFailed:    {},
}

var ErrInvalidIntentTransition = errors.New("core: invalid purchase intent transition")

// PurchaseIntent records that a linked member declared intent to buy an
// entitlement. It stays pending until the ownership oracle confirms or
// denies possession of the backing asset.
type PurchaseIntent struct {
	ID            string
	MemberID      string
	RobloxUserID  int64
	EntitlementID string
	AssetID       int64
	State         IntentState
	FailureReason string
	CheckCount    int
	LastCheckedAt *time.Time
	ResolvedAt    *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (p *PurchaseIntent) TransitionTo(next IntentState, now time.Time) error {
	if p == nil {
		return fmt.Errorf("core: purchase intent is nil")
	}
	if !next.Valid() {
		return fmt.Errorf("%w: unknown state %q", ErrInvalidIntentTransition, next)
	}
	allowed, ok := allowedIntentTransitions[p.State]
	if !ok {
		return fmt.Errorf("%w: unknown current state %q", ErrInvalidIntentTransition, p.State)
	}
	if _, ok := allowed[next]; !ok {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidIntentTransition, p.State, next)
	}
	p.State = next
	p.UpdatedAt = now.UTC()
	if next.Terminal() {
		resolvedAt := now.UTC()
		p.ResolvedAt = &resolvedAt
	}
	return nil
}

// GrantAudit is the durable record that a grant notification went out
// for a completed intent. At most one audit row exists per intent.
type GrantAudit struct {
	ID            string
	IntentID      string
	MemberID      string
	EntitlementID string
	GrantedAt     time.Time
}

// OwnershipStatus is the three-valued outcome of an oracle probe.
// Unknown never resolves an intent; it only means "ask again later".
type OwnershipStatus string

const (
	OwnershipOwned    OwnershipStatus = "owned"
	OwnershipNotOwned OwnershipStatus = "not_owned"
	OwnershipUnknown  OwnershipStatus = "unknown"
)
