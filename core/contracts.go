package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type CreateLinkedAccountInput struct {
	MemberID         string
	RobloxUserID     int64
	RobloxUsername   string
	State            LinkState
	VerificationCode string
}

type LinkedAccountStore interface {
	Create(ctx context.Context, in CreateLinkedAccountInput) (LinkedAccount, error)
	Get(ctx context.Context, id string) (LinkedAccount, error)
	GetByMember(ctx context.Context, memberID string) (LinkedAccount, error)
	Save(ctx context.Context, account LinkedAccount) (LinkedAccount, error)
	Delete(ctx context.Context, id string) error
}

type DefineEntitlementInput struct {
	Name        string
	AssetID     int64
	Description string
	InviteURL   string
	PriceRobux  int64
}

type EntitlementStore interface {
	Create(ctx context.Context, in DefineEntitlementInput) (EntitlementDefinition, error)
	Get(ctx context.Context, id string) (EntitlementDefinition, error)
	GetByName(ctx context.Context, name string) (EntitlementDefinition, error)
	GetByAssetID(ctx context.Context, assetID int64) (EntitlementDefinition, error)
	List(ctx context.Context) ([]EntitlementDefinition, error)
	Delete(ctx context.Context, id string) error
}

type CreatePurchaseIntentInput struct {
	MemberID      string
	RobloxUserID  int64
	EntitlementID string
	AssetID       int64
}

// IntentStore persists purchase intents. Transition is a compare-and-set:
// it applies the update only while the stored state still equals from,
// and reports whether the write landed.
type IntentStore interface {
	Create(ctx context.Context, in CreatePurchaseIntentInput) (PurchaseIntent, error)
	Get(ctx context.Context, id string) (PurchaseIntent, error)
	ListPending(ctx context.Context) ([]PurchaseIntent, error)
	ListByMember(ctx context.Context, memberID string) ([]PurchaseIntent, error)
	MarkChecked(ctx context.Context, id string, checkedAt time.Time) error
	Transition(ctx context.Context, id string, from IntentState, to IntentState, reason string, now time.Time) (bool, error)
}

// GrantAuditStore backs the exactly-once notifier gate. Append inserts
// at most one audit row per intent and reports whether this call created
// it; callers notify only when created is true.
type GrantAuditStore interface {
	Append(ctx context.Context, audit GrantAudit) (created bool, err error)
	GetByIntent(ctx context.Context, intentID string) (GrantAudit, error)
}

// ProfileScanner reads the public profile description of an external
// account so link confirmation can look for the verification code.
type ProfileScanner interface {
	ProfileDescription(ctx context.Context, robloxUserID int64) (string, error)
}

type ExternalAccount struct {
	RobloxUserID   int64
	RobloxUsername string
	DisplayName    string
}

type AccountResolver interface {
	ResolveUsername(ctx context.Context, username string) (ExternalAccount, error)
}

type AssetInfo struct {
	AssetID    int64
	Name       string
	PriceRobux int64
	SellerName string
}

type AssetCatalog interface {
	AssetInfo(ctx context.Context, assetID int64) (AssetInfo, error)
}

// OwnershipOracle answers whether an external account owns an asset,
// and whether that account's inventory can be inspected at all.
// CheckOwnership must map transport failures to OwnershipUnknown with
// a retriable error rather than guessing either definite outcome.
type OwnershipOracle interface {
	CheckOwnership(ctx context.Context, robloxUserID int64, assetID int64) (OwnershipStatus, error)
	InventoryInspectable(ctx context.Context, robloxUserID int64) (bool, error)
}

type GrantNotification struct {
	IntentID      string
	MemberID      string
	RobloxUserID  int64
	Entitlement   EntitlementDefinition
	FailureReason string
	Completed     bool
}

type GrantNotifier interface {
	NotifyGranted(ctx context.Context, notification GrantNotification) error
	NotifyFailed(ctx context.Context, notification GrantNotification) error
}

type TokenGenerator interface {
	VerificationCode() (string, error)
}

type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time {
	return f()
}

type StoreProvider interface {
	LinkedAccountStore() LinkedAccountStore
	EntitlementStore() EntitlementStore
	IntentStore() IntentStore
	GrantAuditStore() GrantAuditStore
}

type RepositoryStoreFactory interface {
	BuildStores(persistenceClient any) (StoreProvider, error)
}

type CommandDispatcher interface {
	Dispatch(ctx context.Context, msg any) error
}
