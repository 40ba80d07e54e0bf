package sqlstore

import "github.com/bloxhub/storefront/core"

var (
	_ core.LinkedAccountStore     = (*LinkedAccountStore)(nil)
	_ core.IntentStore            = (*PurchaseIntentStore)(nil)
	_ core.GrantAuditStore        = (*GrantAuditStore)(nil)
	_ core.EntitlementStore       = (*EntitlementStore)(nil)
	_ core.StoreProvider          = (*RepositoryFactory)(nil)
	_ core.RepositoryStoreFactory = (*RepositoryFactory)(nil)
)
