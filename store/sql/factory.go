package sqlstore

import (
	"fmt"

	persistence "github.com/goliatone/go-persistence-bun"
	repository "github.com/goliatone/go-repository-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/uptrace/bun"

	"github.com/bloxhub/storefront/core"
)

type RepositoryFactory struct {
	db           *bun.DB
	cacheService repositorycache.CacheService

	linkedAccountStore *LinkedAccountStore
	entitlementStore   core.EntitlementStore
	intentStore        *PurchaseIntentStore
	grantAuditStore    *GrantAuditStore
}

func NewRepositoryFactory() *RepositoryFactory {
	return &RepositoryFactory{}
}

// WithCacheService makes the factory wrap the entitlement store in a
// read-through cache. Must be called before BuildStores.
func (f *RepositoryFactory) WithCacheService(cacheService repositorycache.CacheService) *RepositoryFactory {
	if f == nil {
		return nil
	}
	f.cacheService = cacheService
	return f
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if _, err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if _, err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

func (f *RepositoryFactory) BuildStores(persistenceClient any) (core.StoreProvider, error) {
	if f == nil {
		return nil, fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return nil, err
		}
		f.db = db
	}
	if f.linkedAccountStore != nil && f.entitlementStore != nil {
		return f, nil
	}
	if err := f.initStores(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *RepositoryFactory) LinkedAccountStore() core.LinkedAccountStore {
	if f == nil {
		return nil
	}
	return f.linkedAccountStore
}

func (f *RepositoryFactory) EntitlementStore() core.EntitlementStore {
	if f == nil {
		return nil
	}
	return f.entitlementStore
}

func (f *RepositoryFactory) IntentStore() core.IntentStore {
	if f == nil {
		return nil
	}
	return f.intentStore
}

func (f *RepositoryFactory) GrantAuditStore() core.GrantAuditStore {
	if f == nil {
		return nil
	}
	return f.grantAuditStore
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) initStores() error {
	accountRepo := repository.NewRepository[*linkedAccountRecord](f.db, linkedAccountHandlers())
	if validator, ok := accountRepo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("sqlstore: invalid linked account repository wiring: %w", err)
		}
	}

	entitlementRepo := repository.NewRepository[*entitlementRecord](f.db, entitlementHandlers())
	if validator, ok := entitlementRepo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("sqlstore: invalid entitlement repository wiring: %w", err)
		}
	}

	intentRepo := repository.NewRepository[*purchaseIntentRecord](f.db, purchaseIntentHandlers())
	if validator, ok := intentRepo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("sqlstore: invalid purchase intent repository wiring: %w", err)
		}
	}

	f.linkedAccountStore = &LinkedAccountStore{
		db:   f.db,
		repo: accountRepo,
	}
	entitlementStore := &EntitlementStore{
		db:   f.db,
		repo: entitlementRepo,
	}
	if f.cacheService != nil {
		cached, err := NewCachedEntitlementStore(entitlementStore, f.cacheService)
		if err != nil {
			return err
		}
		f.entitlementStore = cached
	} else {
		f.entitlementStore = entitlementStore
	}
	f.intentStore = &PurchaseIntentStore{
		db:   f.db,
		repo: intentRepo,
	}
	grantAuditStore, err := NewGrantAuditStore(f.db)
	if err != nil {
		return err
	}
	f.grantAuditStore = grantAuditStore

	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
