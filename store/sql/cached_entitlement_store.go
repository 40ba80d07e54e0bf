package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"

	"github.com/bloxhub/storefront/core"
)

const entitlementCacheKeyPrefix = "storefront::entitlement::v1"

// CachedEntitlementStore keeps catalog reads out of the database. The
// reconcile loop resolves the entitlement for every pending intent on
// every tick, so definitions are the hottest read in the system while
// changing only when an operator edits the catalog.
type CachedEntitlementStore struct {
	base  core.EntitlementStore
	cache repositorycache.CacheService
}

func NewCachedEntitlementStore(
	base core.EntitlementStore,
	cacheService repositorycache.CacheService,
) (*CachedEntitlementStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base entitlement store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: entitlement cache service is required")
	}
	return &CachedEntitlementStore{base: base, cache: cacheService}, nil
}

// EntitlementCacheKey returns the deterministic cache key for an
// entitlement read: storefront::entitlement::v1::<field>::<value> with
// each segment URL-path escaped.
func EntitlementCacheKey(field string, value string) string {
	segments := []string{field, value}
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.Join(append([]string{entitlementCacheKeyPrefix}, segments...), "::")
}

func (s *CachedEntitlementStore) Create(ctx context.Context, in core.DefineEntitlementInput) (core.EntitlementDefinition, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.EntitlementDefinition{}, fmt.Errorf("sqlstore: cached entitlement store is not configured")
	}
	created, err := s.base.Create(ctx, in)
	if err != nil {
		return core.EntitlementDefinition{}, err
	}
	if err := s.invalidate(ctx, created); err != nil {
		return core.EntitlementDefinition{}, err
	}
	return created, nil
}

func (s *CachedEntitlementStore) Get(ctx context.Context, id string) (core.EntitlementDefinition, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.EntitlementDefinition{}, fmt.Errorf("sqlstore: cached entitlement store is not configured")
	}
	id = strings.TrimSpace(id)
	return repositorycache.GetOrFetch(ctx, s.cache, EntitlementCacheKey("id", id), func(ctx context.Context) (core.EntitlementDefinition, error) {
		return s.base.Get(ctx, id)
	})
}

func (s *CachedEntitlementStore) GetByName(ctx context.Context, name string) (core.EntitlementDefinition, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.EntitlementDefinition{}, fmt.Errorf("sqlstore: cached entitlement store is not configured")
	}
	name = strings.ToLower(strings.TrimSpace(name))
	return repositorycache.GetOrFetch(ctx, s.cache, EntitlementCacheKey("name", name), func(ctx context.Context) (core.EntitlementDefinition, error) {
		return s.base.GetByName(ctx, name)
	})
}

func (s *CachedEntitlementStore) GetByAssetID(ctx context.Context, assetID int64) (core.EntitlementDefinition, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.EntitlementDefinition{}, fmt.Errorf("sqlstore: cached entitlement store is not configured")
	}
	return repositorycache.GetOrFetch(ctx, s.cache, EntitlementCacheKey("asset", fmt.Sprintf("%d", assetID)), func(ctx context.Context) (core.EntitlementDefinition, error) {
		return s.base.GetByAssetID(ctx, assetID)
	})
}

// List always reads through: the catalog is small and listings are rare
// relative to per-intent lookups.
func (s *CachedEntitlementStore) List(ctx context.Context) ([]core.EntitlementDefinition, error) {
	if s == nil || s.base == nil {
		return nil, fmt.Errorf("sqlstore: cached entitlement store is not configured")
	}
	return s.base.List(ctx)
}

func (s *CachedEntitlementStore) Delete(ctx context.Context, id string) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached entitlement store is not configured")
	}
	id = strings.TrimSpace(id)
	definition, err := s.base.Get(ctx, id)
	if err == nil {
		if invalidateErr := s.invalidate(ctx, definition); invalidateErr != nil {
			return invalidateErr
		}
	}
	if err := s.base.Delete(ctx, id); err != nil {
		return err
	}
	return s.cache.Delete(ctx, EntitlementCacheKey("id", id))
}

func (s *CachedEntitlementStore) invalidate(ctx context.Context, definition core.EntitlementDefinition) error {
	keys := []string{
		EntitlementCacheKey("id", definition.ID),
		EntitlementCacheKey("name", strings.ToLower(strings.TrimSpace(definition.Name))),
		EntitlementCacheKey("asset", fmt.Sprintf("%d", definition.AssetID)),
	}
	for _, key := range keys {
		if err := s.cache.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

var _ core.EntitlementStore = (*CachedEntitlementStore)(nil)
