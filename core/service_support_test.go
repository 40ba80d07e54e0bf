package core

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

type memoryLinkedAccountStore struct {
	mu       sync.Mutex
	nextID   int
	accounts map[string]LinkedAccount
}

func newMemoryLinkedAccountStore() *memoryLinkedAccountStore {
	return &memoryLinkedAccountStore{accounts: map[string]LinkedAccount{}}
}

func (s *memoryLinkedAccountStore) Create(_ context.Context, in CreateLinkedAccountInput) (LinkedAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	now := time.Now().UTC()
	account := LinkedAccount{
		ID:               fmt.Sprintf("acct-%d", s.nextID),
		MemberID:         in.MemberID,
		RobloxUserID:     in.RobloxUserID,
		RobloxUsername:   in.RobloxUsername,
		State:            in.State,
		VerificationCode: in.VerificationCode,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	s.accounts[account.ID] = account
	return account, nil
}

func (s *memoryLinkedAccountStore) Get(_ context.Context, id string) (LinkedAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[id]
	if !ok {
		return LinkedAccount{}, ErrAccountNotFound
	}
	return account, nil
}

func (s *memoryLinkedAccountStore) GetByMember(_ context.Context, memberID string) (LinkedAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, account := range s.accounts {
		if account.MemberID == memberID {
			return account, nil
		}
	}
	return LinkedAccount{}, ErrAccountNotFound
}

func (s *memoryLinkedAccountStore) Save(_ context.Context, account LinkedAccount) (LinkedAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[account.ID]; !ok {
		return LinkedAccount{}, ErrAccountNotFound
	}
	s.accounts[account.ID] = account
	return account, nil
}

func (s *memoryLinkedAccountStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[id]; !ok {
		return ErrAccountNotFound
	}
	delete(s.accounts, id)
	return nil
}

type memoryEntitlementStore struct {
	mu          sync.Mutex
	nextID      int
	definitions map[string]EntitlementDefinition
}

func newMemoryEntitlementStore() *memoryEntitlementStore {
	return &memoryEntitlementStore{definitions: map[string]EntitlementDefinition{}}
}

func (s *memoryEntitlementStore) Create(_ context.Context, in DefineEntitlementInput) (EntitlementDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	now := time.Now().UTC()
	definition := EntitlementDefinition{
		ID:          fmt.Sprintf("ent-%d", s.nextID),
		Name:        in.Name,
		AssetID:     in.AssetID,
		Description: in.Description,
		InviteURL:   in.InviteURL,
		PriceRobux:  in.PriceRobux,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.definitions[definition.ID] = definition
	return definition, nil
}

func (s *memoryEntitlementStore) Get(_ context.Context, id string) (EntitlementDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	definition, ok := s.definitions[id]
	if !ok {
		return EntitlementDefinition{}, ErrEntitlementNotFound
	}
	return definition, nil
}

func (s *memoryEntitlementStore) GetByName(_ context.Context, name string) (EntitlementDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, definition := range s.definitions {
		if definition.Name == name {
			return definition, nil
		}
	}
	return EntitlementDefinition{}, ErrEntitlementNotFound
}

func (s *memoryEntitlementStore) GetByAssetID(_ context.Context, assetID int64) (EntitlementDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, definition := range s.definitions {
		if definition.AssetID == assetID {
			return definition, nil
		}
	}
	return EntitlementDefinition{}, ErrEntitlementNotFound
}

func (s *memoryEntitlementStore) List(_ context.Context) ([]EntitlementDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]EntitlementDefinition, 0, len(s.definitions))
	for _, definition := range s.definitions {
		out = append(out, definition)
	}
	return out, nil
}

func (s *memoryEntitlementStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.definitions[id]; !ok {
		return ErrEntitlementNotFound
	}
	delete(s.definitions, id)
	return nil
}

type memoryIntentStore struct {
	mu      sync.Mutex
	nextID  int
	intents map[string]PurchaseIntent
}

func newMemoryIntentStore() *memoryIntentStore {
	return &memoryIntentStore{intents: map[string]PurchaseIntent{}}
}

func (s *memoryIntentStore) Create(_ context.Context, in CreatePurchaseIntentInput) (PurchaseIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.intents {
		if existing.MemberID == in.MemberID && existing.EntitlementID == in.EntitlementID && existing.State != IntentStateFailed {
			return PurchaseIntent{}, fmt.Errorf("%w: member %s entitlement %s", ErrDuplicateIntent, in.MemberID, in.EntitlementID)
		}
	}
	s.nextID++
	now := time.Now().UTC()
	intent := PurchaseIntent{
		ID:            fmt.Sprintf("intent-%d", s.nextID),
		MemberID:      in.MemberID,
		RobloxUserID:  in.RobloxUserID,
		EntitlementID: in.EntitlementID,
		AssetID:       in.AssetID,
		State:         IntentStatePending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.intents[intent.ID] = intent
	return intent, nil
}

func (s *memoryIntentStore) Get(_ context.Context, id string) (PurchaseIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	intent, ok := s.intents[id]
	if !ok {
		return PurchaseIntent{}, ErrIntentNotFound
	}
	return intent, nil
}

func (s *memoryIntentStore) ListPending(_ context.Context) ([]PurchaseIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []PurchaseIntent{}
	for _, intent := range s.intents {
		if intent.State == IntentStatePending {
			out = append(out, intent)
		}
	}
	return out, nil
}

func (s *memoryIntentStore) ListByMember(_ context.Context, memberID string) ([]PurchaseIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []PurchaseIntent{}
	for _, intent := range s.intents {
		if intent.MemberID == memberID {
			out = append(out, intent)
		}
	}
	return out, nil
}

func (s *memoryIntentStore) MarkChecked(_ context.Context, id string, checkedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	intent, ok := s.intents[id]
	if !ok {
		return ErrIntentNotFound
	}
	intent.CheckCount++
	at := checkedAt.UTC()
	intent.LastCheckedAt = &at
	s.intents[id] = intent
	return nil
}

func (s *memoryIntentStore) Transition(_ context.Context, id string, from IntentState, to IntentState, reason string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	intent, ok := s.intents[id]
	if !ok {
		return false, ErrIntentNotFound
	}
	if intent.State != from {
		return false, nil
	}
	intent.State = to
	intent.FailureReason = reason
	intent.UpdatedAt = now.UTC()
	if to.Terminal() {
		resolvedAt := now.UTC()
		intent.ResolvedAt = &resolvedAt
	}
	s.intents[id] = intent
	return true, nil
}

type memoryGrantAuditStore struct {
	mu     sync.Mutex
	nextID int
	audits map[string]GrantAudit
}

func newMemoryGrantAuditStore() *memoryGrantAuditStore {
	return &memoryGrantAuditStore{audits: map[string]GrantAudit{}}
}

func (s *memoryGrantAuditStore) Append(_ context.Context, audit GrantAudit) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.audits[audit.IntentID]; ok {
		return false, nil
	}
	s.nextID++
	audit.ID = fmt.Sprintf("audit-%d", s.nextID)
	s.audits[audit.IntentID] = audit
	return true, nil
}

func (s *memoryGrantAuditStore) GetByIntent(_ context.Context, intentID string) (GrantAudit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	audit, ok := s.audits[intentID]
	if !ok {
		return GrantAudit{}, ErrAuditNotFound
	}
	return audit, nil
}

type fakeAccountResolver struct {
	accounts map[string]ExternalAccount
	err      error
}

func (r *fakeAccountResolver) ResolveUsername(_ context.Context, username string) (ExternalAccount, error) {
	if r.err != nil {
		return ExternalAccount{}, r.err
	}
	account, ok := r.accounts[username]
	if !ok {
		return ExternalAccount{}, fmt.Errorf("roblox user %q not found", username)
	}
	return account, nil
}

type fakeProfileScanner struct {
	mu           sync.Mutex
	descriptions map[int64]string
	err          error
}

func (s *fakeProfileScanner) ProfileDescription(_ context.Context, robloxUserID int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	return s.descriptions[robloxUserID], nil
}

func (s *fakeProfileScanner) setDescription(robloxUserID int64, description string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.descriptions == nil {
		s.descriptions = map[int64]string{}
	}
	s.descriptions[robloxUserID] = description
}

type fakeAssetCatalog struct {
	assets map[int64]AssetInfo
	err    error
}

func (c *fakeAssetCatalog) AssetInfo(_ context.Context, assetID int64) (AssetInfo, error) {
	if c.err != nil {
		return AssetInfo{}, c.err
	}
	info, ok := c.assets[assetID]
	if !ok {
		return AssetInfo{}, fmt.Errorf("gamepass %d not found", assetID)
	}
	return info, nil
}

type ownershipKey struct {
	userID  int64
	assetID int64
}

type fakeOwnershipOracle struct {
	mu         sync.Mutex
	statuses   map[ownershipKey]OwnershipStatus
	hidden     map[int64]bool
	err        error
	inspectErr error
	calls      int
	inflight   int
	peak       int
	delay      time.Duration
}

func (o *fakeOwnershipOracle) CheckOwnership(ctx context.Context, robloxUserID int64, assetID int64) (OwnershipStatus, error) {
	o.mu.Lock()
	o.calls++
	o.inflight++
	if o.inflight > o.peak {
		o.peak = o.inflight
	}
	delay := o.delay
	err := o.err
	status, ok := o.statuses[ownershipKey{robloxUserID, assetID}]
	o.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(delay):
		}
	}

	o.mu.Lock()
	o.inflight--
	o.mu.Unlock()

	if err != nil {
		return OwnershipUnknown, err
	}
	if ctx.Err() != nil {
		return OwnershipUnknown, ctx.Err()
	}
	if !ok {
		return OwnershipNotOwned, nil
	}
	return status, nil
}

func (o *fakeOwnershipOracle) InventoryInspectable(_ context.Context, robloxUserID int64) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.inspectErr != nil {
		return false, o.inspectErr
	}
	return !o.hidden[robloxUserID], nil
}

func (o *fakeOwnershipOracle) hideInventory(robloxUserID int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.hidden == nil {
		o.hidden = map[int64]bool{}
	}
	o.hidden[robloxUserID] = true
}

func (o *fakeOwnershipOracle) showInventory(robloxUserID int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.hidden, robloxUserID)
}

func (o *fakeOwnershipOracle) setStatus(robloxUserID int64, assetID int64, status OwnershipStatus) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.statuses == nil {
		o.statuses = map[ownershipKey]OwnershipStatus{}
	}
	o.statuses[ownershipKey{robloxUserID, assetID}] = status
}

type recordedNotification struct {
	granted      bool
	notification GrantNotification
}

type fakeGrantNotifier struct {
	mu       sync.Mutex
	sent     []recordedNotification
	grantErr error
}

func (n *fakeGrantNotifier) NotifyGranted(_ context.Context, notification GrantNotification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.grantErr != nil {
		return n.grantErr
	}
	n.sent = append(n.sent, recordedNotification{granted: true, notification: notification})
	return nil
}

func (n *fakeGrantNotifier) NotifyFailed(_ context.Context, notification GrantNotification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, recordedNotification{granted: false, notification: notification})
	return nil
}

func (n *fakeGrantNotifier) grantedCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	count := 0
	for _, entry := range n.sent {
		if entry.granted {
			count++
		}
	}
	return count
}

func (n *fakeGrantNotifier) failedCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	count := 0
	for _, entry := range n.sent {
		if !entry.granted {
			count++
		}
	}
	return count
}

type capturingMetricsRecorder struct {
	mu         sync.Mutex
	counters   map[string]int64
	histograms map[string]int
}

func newCapturingMetricsRecorder() *capturingMetricsRecorder {
	return &capturingMetricsRecorder{
		counters:   map[string]int64{},
		histograms: map[string]int{},
	}
}

func (r *capturingMetricsRecorder) IncCounter(_ context.Context, name string, value int64, _ map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[name] += value
}

func (r *capturingMetricsRecorder) ObserveHistogram(_ context.Context, name string, _ float64, _ map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.histograms[name]++
}

func (r *capturingMetricsRecorder) counter(name string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counters[name]
}

func (r *capturingMetricsRecorder) histogramSamples(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.histograms[name]
}

type staticTokenGenerator struct {
	code string
	err  error
}

func (g staticTokenGenerator) VerificationCode() (string, error) {
	if g.err != nil {
		return "", g.err
	}
	return g.code, nil
}

type serviceFixture struct {
	service      *Service
	accounts     *memoryLinkedAccountStore
	entitlements *memoryEntitlementStore
	intents      *memoryIntentStore
	audits       *memoryGrantAuditStore
	resolver     *fakeAccountResolver
	scanner      *fakeProfileScanner
	catalog      *fakeAssetCatalog
	oracle       *fakeOwnershipOracle
	notifier     *fakeGrantNotifier
}

func newServiceFixture(tb testing.TB, options ...Option) *serviceFixture {
	fixture := &serviceFixture{
		accounts:     newMemoryLinkedAccountStore(),
		entitlements: newMemoryEntitlementStore(),
		intents:      newMemoryIntentStore(),
		audits:       newMemoryGrantAuditStore(),
		resolver: &fakeAccountResolver{accounts: map[string]ExternalAccount{
			"builderman": {RobloxUserID: 156, RobloxUsername: "builderman", DisplayName: "builderman"},
		}},
		scanner: &fakeProfileScanner{},
		catalog: &fakeAssetCatalog{assets: map[int64]AssetInfo{
			42: {AssetID: 42, Name: "VIP Pass", PriceRobux: 250, SellerName: "BloxHub"},
		}},
		oracle:   &fakeOwnershipOracle{},
		notifier: &fakeGrantNotifier{},
	}

	base := []Option{
		WithLinkedAccountStore(fixture.accounts),
		WithEntitlementStore(fixture.entitlements),
		WithIntentStore(fixture.intents),
		WithGrantAuditStore(fixture.audits),
		WithAccountResolver(fixture.resolver),
		WithProfileScanner(fixture.scanner),
		WithAssetCatalog(fixture.catalog),
		WithOwnershipOracle(fixture.oracle),
		WithGrantNotifier(fixture.notifier),
	}
	base = append(base, options...)

	service, err := NewService(Config{}, base...)
	if err != nil {
		tb.Fatalf("new service: %v", err)
	}
	fixture.service = service
	return fixture
}

func (f *serviceFixture) linkMember(tb testing.TB, memberID string, robloxUserID int64) LinkedAccount {
	tb.Helper()
	account, err := f.accounts.Create(context.Background(), CreateLinkedAccountInput{
		MemberID:       memberID,
		RobloxUserID:   robloxUserID,
		RobloxUsername: "builderman",
		State:          LinkStateLinked,
	})
	if err != nil {
		tb.Fatalf("seed linked account: %v", err)
	}
	return account
}

func (f *serviceFixture) defineEntitlement(tb testing.TB, name string, assetID int64) EntitlementDefinition {
	tb.Helper()
	definition, err := f.entitlements.Create(context.Background(), DefineEntitlementInput{
		Name:       name,
		AssetID:    assetID,
		PriceRobux: 250,
	})
	if err != nil {
		tb.Fatalf("seed entitlement: %v", err)
	}
	return definition
}
