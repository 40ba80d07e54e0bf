package storefront

import "github.com/bloxhub/storefront/core"

type Config = core.Config

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies
type LinkedAccountStore = core.LinkedAccountStore
type EntitlementStore = core.EntitlementStore
type IntentStore = core.IntentStore
type GrantAuditStore = core.GrantAuditStore
type ProfileScanner = core.ProfileScanner
type AccountResolver = core.AccountResolver
type AssetCatalog = core.AssetCatalog
type OwnershipOracle = core.OwnershipOracle
type GrantNotifier = core.GrantNotifier

type ConfirmLinkRequest = core.ConfirmLinkRequest
type RequestPurchaseRequest = core.RequestPurchaseRequest
type RedeemRequest = core.RedeemRequest
type DefineEntitlementRequest = core.DefineEntitlementRequest

type LinkChallenge = core.LinkChallenge
type LinkedAccount = core.LinkedAccount
type EntitlementDefinition = core.EntitlementDefinition
type PurchaseTicket = core.PurchaseTicket
type TickReport = core.TickReport
type CommandResult = core.CommandResult

var (
	WithLogger            = core.WithLogger
	WithLoggerProvider    = core.WithLoggerProvider
	WithMetricsRecorder   = core.WithMetricsRecorder
	WithErrorFactory      = core.WithErrorFactory
	WithErrorMapper       = core.WithErrorMapper
	WithPersistenceClient = core.WithPersistenceClient
	WithRepositoryFactory = core.WithRepositoryFactory
	WithConfigProvider    = core.WithConfigProvider
	WithOptionsResolver   = core.WithOptionsResolver
	WithLinkedAccountStore = core.WithLinkedAccountStore
	WithEntitlementStore   = core.WithEntitlementStore
	WithIntentStore        = core.WithIntentStore
	WithGrantAuditStore    = core.WithGrantAuditStore
	WithProfileScanner     = core.WithProfileScanner
	WithAccountResolver    = core.WithAccountResolver
	WithAssetCatalog       = core.WithAssetCatalog
	WithOwnershipOracle    = core.WithOwnershipOracle
	WithGrantNotifier      = core.WithGrantNotifier
	WithTokenGenerator     = core.WithTokenGenerator
	WithClock              = core.WithClock
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return core.Setup(cfg, opts...)
}
