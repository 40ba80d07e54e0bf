package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"
)

type ErrorFactory func(message string, category ...goerrors.Category) *goerrors.Error

type ErrorMapper func(err error) *goerrors.Error

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type serviceBuilder struct {
	runtimeConfig      Config
	logger             Logger
	loggerProvider     LoggerProvider
	metricsRecorder    MetricsRecorder
	errorFactory       ErrorFactory
	errorMapper        ErrorMapper
	persistenceClient  any
	repositoryFactory  any
	configProvider     ConfigProvider
	optionsResolver    OptionsResolver
	linkedAccountStore LinkedAccountStore
	entitlementStore   EntitlementStore
	intentStore        IntentStore
	grantAuditStore    GrantAuditStore
	profileScanner     ProfileScanner
	accountResolver    AccountResolver
	assetCatalog       AssetCatalog
	ownershipOracle    OwnershipOracle
	grantNotifier      GrantNotifier
	tokenGenerator     TokenGenerator
	clock              Clock
}

type Option func(*serviceBuilder)

func WithLogger(logger Logger) Option {
	return func(b *serviceBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *serviceBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *serviceBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorFactory(factory ErrorFactory) Option {
	return func(b *serviceBuilder) {
		b.errorFactory = factory
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *serviceBuilder) {
		b.errorMapper = mapper
	}
}

func WithPersistenceClient(client any) Option {
	return func(b *serviceBuilder) {
		b.persistenceClient = client
	}
}

func WithRepositoryFactory(factory any) Option {
	return func(b *serviceBuilder) {
		b.repositoryFactory = factory
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *serviceBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *serviceBuilder) {
		b.optionsResolver = resolver
	}
}

func WithLinkedAccountStore(store LinkedAccountStore) Option {
	return func(b *serviceBuilder) {
		b.linkedAccountStore = store
	}
}

func WithEntitlementStore(store EntitlementStore) Option {
	return func(b *serviceBuilder) {
		b.entitlementStore = store
	}
}

func WithIntentStore(store IntentStore) Option {
	return func(b *serviceBuilder) {
		b.intentStore = store
	}
}

func WithGrantAuditStore(store GrantAuditStore) Option {
	return func(b *serviceBuilder) {
		b.grantAuditStore = store
	}
}

func WithProfileScanner(scanner ProfileScanner) Option {
	return func(b *serviceBuilder) {
		b.profileScanner = scanner
	}
}

func WithAccountResolver(resolver AccountResolver) Option {
	return func(b *serviceBuilder) {
		b.accountResolver = resolver
	}
}

func WithAssetCatalog(catalog AssetCatalog) Option {
	return func(b *serviceBuilder) {
		b.assetCatalog = catalog
	}
}

func WithOwnershipOracle(oracle OwnershipOracle) Option {
	return func(b *serviceBuilder) {
		b.ownershipOracle = oracle
	}
}

func WithGrantNotifier(notifier GrantNotifier) Option {
	return func(b *serviceBuilder) {
		b.grantNotifier = notifier
	}
}

func WithTokenGenerator(generator TokenGenerator) Option {
	return func(b *serviceBuilder) {
		b.tokenGenerator = generator
	}
}

func WithClock(clock Clock) Option {
	return func(b *serviceBuilder) {
		b.clock = clock
	}
}

func defaultServiceBuilder(runtime Config) serviceBuilder {
	loggerProvider, logger := glog.Resolve("storefront", nil, nil)
	return serviceBuilder{
		runtimeConfig:   runtime,
		loggerProvider:  loggerProvider,
		logger:          logger,
		metricsRecorder: NopMetricsRecorder{},
		errorFactory:    goerrors.New,
		errorMapper:     defaultErrorMapper,
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
		clock:           ClockFunc(time.Now),
	}
}

func defaultErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	return storefrontErrorMapper(err)
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, true)
	loadedLayer := configToLayerMap(loaded, false)
	runtimeLayer := configToLayerMap(runtime, false)

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.ServiceName) != "" {
		layer["service_name"] = cfg.ServiceName
	}

	linking := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.Linking.CodePrefix) != "" {
		linking["code_prefix"] = cfg.Linking.CodePrefix
	}
	if includeZero || cfg.Linking.CodeLength > 0 {
		linking["code_length"] = cfg.Linking.CodeLength
	}
	if len(linking) > 0 {
		layer["linking"] = linking
	}

	reconciler := map[string]any{}
	if includeZero || cfg.Reconciler.Interval > 0 {
		reconciler["interval"] = cfg.Reconciler.Interval
	}
	if includeZero || cfg.Reconciler.OracleTimeout > 0 {
		reconciler["oracle_timeout"] = cfg.Reconciler.OracleTimeout
	}
	if includeZero || cfg.Reconciler.WorkerCount > 0 {
		reconciler["worker_count"] = cfg.Reconciler.WorkerCount
	}
	if len(reconciler) > 0 {
		layer["reconciler"] = reconciler
	}
	return layer
}
