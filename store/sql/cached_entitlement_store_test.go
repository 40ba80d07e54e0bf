package sqlstore

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	repositorycache "github.com/goliatone/go-repository-cache/cache"

	"github.com/bloxhub/storefront/core"
)

type stubEntitlementStore struct {
	mu          sync.Mutex
	definitions map[string]core.EntitlementDefinition
	getCalls    int
	createCalls int
}

func newStubEntitlementStore() *stubEntitlementStore {
	return &stubEntitlementStore{definitions: map[string]core.EntitlementDefinition{}}
}

func (s *stubEntitlementStore) Create(_ context.Context, in core.DefineEntitlementInput) (core.EntitlementDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createCalls++
	definition := core.EntitlementDefinition{
		ID:         fmt.Sprintf("ent-%d", len(s.definitions)+1),
		Name:       in.Name,
		AssetID:    in.AssetID,
		PriceRobux: in.PriceRobux,
	}
	s.definitions[definition.ID] = definition
	return definition, nil
}

func (s *stubEntitlementStore) Get(_ context.Context, id string) (core.EntitlementDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls++
	definition, ok := s.definitions[id]
	if !ok {
		return core.EntitlementDefinition{}, fmt.Errorf("%w: id %s", core.ErrEntitlementNotFound, id)
	}
	return definition, nil
}

func (s *stubEntitlementStore) GetByName(_ context.Context, name string) (core.EntitlementDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls++
	for _, definition := range s.definitions {
		if definition.Name == name {
			return definition, nil
		}
	}
	return core.EntitlementDefinition{}, fmt.Errorf("%w: name %s", core.ErrEntitlementNotFound, name)
}

func (s *stubEntitlementStore) GetByAssetID(_ context.Context, assetID int64) (core.EntitlementDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls++
	for _, definition := range s.definitions {
		if definition.AssetID == assetID {
			return definition, nil
		}
	}
	return core.EntitlementDefinition{}, fmt.Errorf("%w: asset %d", core.ErrEntitlementNotFound, assetID)
}

func (s *stubEntitlementStore) List(_ context.Context) ([]core.EntitlementDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.EntitlementDefinition, 0, len(s.definitions))
	for _, definition := range s.definitions {
		out = append(out, definition)
	}
	return out, nil
}

func (s *stubEntitlementStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.definitions, id)
	return nil
}

func newTestEntitlementCacheService(t *testing.T) repositorycache.CacheService {
	t.Helper()
	config := repositorycache.DefaultConfig()
	config.TTL = time.Minute
	service, err := repositorycache.NewCacheService(config)
	if err != nil {
		t.Fatalf("new cache service: %v", err)
	}
	return service
}

func TestCachedEntitlementStore_GetByName_MissFetchThenHit(t *testing.T) {
	base := newStubEntitlementStore()
	if _, err := base.Create(context.Background(), core.DefineEntitlementInput{Name: "vip", AssetID: 42, PriceRobux: 250}); err != nil {
		t.Fatalf("seed entitlement: %v", err)
	}
	base.getCalls = 0

	store, err := NewCachedEntitlementStore(base, newTestEntitlementCacheService(t))
	if err != nil {
		t.Fatalf("new cached entitlement store: %v", err)
	}

	if _, err := store.GetByName(context.Background(), "vip"); err != nil {
		t.Fatalf("first get: %v", err)
	}
	if base.getCalls != 1 {
		t.Fatalf("expected first get to fetch base store once, got %d", base.getCalls)
	}

	if _, err := store.GetByName(context.Background(), "vip"); err != nil {
		t.Fatalf("second get: %v", err)
	}
	if base.getCalls != 1 {
		t.Fatalf("expected second get to be cache hit, base get calls=%d", base.getCalls)
	}

	// Lookup is case-insensitive, so a differently cased name shares the key.
	if _, err := store.GetByName(context.Background(), "VIP"); err != nil {
		t.Fatalf("cased get: %v", err)
	}
	if base.getCalls != 1 {
		t.Fatalf("expected cased name to hit cache, base get calls=%d", base.getCalls)
	}
}

func TestCachedEntitlementStore_CreateInvalidatesNameKey(t *testing.T) {
	base := newStubEntitlementStore()
	store, err := NewCachedEntitlementStore(base, newTestEntitlementCacheService(t))
	if err != nil {
		t.Fatalf("new cached entitlement store: %v", err)
	}

	if _, err := base.Create(context.Background(), core.DefineEntitlementInput{Name: "vip", AssetID: 42, PriceRobux: 100}); err != nil {
		t.Fatalf("seed entitlement: %v", err)
	}
	first, err := store.GetByName(context.Background(), "vip")
	if err != nil {
		t.Fatalf("prime cache: %v", err)
	}
	if first.PriceRobux != 100 {
		t.Fatalf("expected seeded price, got %d", first.PriceRobux)
	}

	// Recreate through the cached store with a new price; the stale
	// cached read must be dropped.
	base.definitions = map[string]core.EntitlementDefinition{}
	if _, err := store.Create(context.Background(), core.DefineEntitlementInput{Name: "vip", AssetID: 42, PriceRobux: 300}); err != nil {
		t.Fatalf("create through cache: %v", err)
	}
	refreshed, err := store.GetByName(context.Background(), "vip")
	if err != nil {
		t.Fatalf("get after create: %v", err)
	}
	if refreshed.PriceRobux != 300 {
		t.Fatalf("expected invalidated cache to refetch, got price %d", refreshed.PriceRobux)
	}
}

func TestEntitlementCacheKeyEscapesSegments(t *testing.T) {
	key := EntitlementCacheKey("name", "vip pass/deluxe")
	want := "storefront::entitlement::v1::name::vip%20pass%2Fdeluxe"
	if key != want {
		t.Fatalf("unexpected cache key: %q", key)
	}
}
