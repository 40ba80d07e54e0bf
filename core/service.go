package core

import (
	"context"
	"errors"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

func timeNowUTC() time.Time {
	return time.Now().UTC()
}

var (
	ErrNotLinked           = errors.New("core: member is not linked")
	ErrLinkNotStarted      = errors.New("core: no pending link for member")
	ErrAlreadyLinked       = errors.New("core: member is already linked")
	ErrEntitlementNotFound = errors.New("core: entitlement not found")
	ErrAccountNotFound     = errors.New("core: linked account not found")
	ErrIntentNotFound      = errors.New("core: purchase intent not found")
	ErrAuditNotFound       = errors.New("core: grant audit not found")
)

// Service implements account linking, the entitlement catalog, and
// purchase intent handling. The background reconciliation loop lives in
// ReconcileRunner and drives Service.ReconcileTick.
type Service struct {
	config             Config
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

type ServiceDependencies struct {
	Logger             Logger
	LoggerProvider     LoggerProvider
	MetricsRecorder    MetricsRecorder
	ErrorFactory       ErrorFactory
	ErrorMapper        ErrorMapper
	PersistenceClient  any
	RepositoryFactory  any
	ConfigProvider     ConfigProvider
	OptionsResolver    OptionsResolver
	LinkedAccountStore LinkedAccountStore
	EntitlementStore   EntitlementStore
	IntentStore        IntentStore
	GrantAuditStore    GrantAuditStore
	ProfileScanner     ProfileScanner
	AccountResolver    AccountResolver
	AssetCatalog       AssetCatalog
	OwnershipOracle    OwnershipOracle
	GrantNotifier      GrantNotifier
	TokenGenerator     TokenGenerator
	Clock              Clock
}

func NewService(cfg Config, options ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("storefront", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("storefront"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.clock == nil {
		builder.clock = ClockFunc(timeNowUTC)
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if builder.tokenGenerator == nil {
		builder.tokenGenerator = NewVerificationCodeGenerator(
			finalConfig.Linking.CodePrefix,
			finalConfig.Linking.CodeLength,
		)
	}

	if needsStores(&builder) && builder.repositoryFactory != nil {
		if storeFactory, ok := builder.repositoryFactory.(RepositoryStoreFactory); ok {
			provider, buildErr := storeFactory.BuildStores(builder.persistenceClient)
			if buildErr != nil {
				return nil, mapBuildError(builder.errorMapper, buildErr)
			}
			if provider != nil {
				adoptStores(&builder, provider)
			}
		} else if provider, ok := builder.repositoryFactory.(StoreProvider); ok {
			adoptStores(&builder, provider)
		}
	}

	return &Service{
		config:             finalConfig,
		logger:             logger,
		loggerProvider:     provider,
		metricsRecorder:    builder.metricsRecorder,
		errorFactory:       builder.errorFactory,
		errorMapper:        builder.errorMapper,
		persistenceClient:  builder.persistenceClient,
		repositoryFactory:  builder.repositoryFactory,
		configProvider:     builder.configProvider,
		optionsResolver:    builder.optionsResolver,
		linkedAccountStore: builder.linkedAccountStore,
		entitlementStore:   builder.entitlementStore,
		intentStore:        builder.intentStore,
		grantAuditStore:    builder.grantAuditStore,
		profileScanner:     builder.profileScanner,
		accountResolver:    builder.accountResolver,
		assetCatalog:       builder.assetCatalog,
		ownershipOracle:    builder.ownershipOracle,
		grantNotifier:      builder.grantNotifier,
		tokenGenerator:     builder.tokenGenerator,
		clock:              builder.clock,
	}, nil
}

func Setup(cfg Config, options ...Option) (*Service, error) {
	return NewService(cfg, options...)
}

func needsStores(builder *serviceBuilder) bool {
	return builder.linkedAccountStore == nil ||
		builder.entitlementStore == nil ||
		builder.intentStore == nil ||
		builder.grantAuditStore == nil
}

func adoptStores(builder *serviceBuilder, provider StoreProvider) {
	if builder.linkedAccountStore == nil {
		builder.linkedAccountStore = provider.LinkedAccountStore()
	}
	if builder.entitlementStore == nil {
		builder.entitlementStore = provider.EntitlementStore()
	}
	if builder.intentStore == nil {
		builder.intentStore = provider.IntentStore()
	}
	if builder.grantAuditStore == nil {
		builder.grantAuditStore = provider.GrantAuditStore()
	}
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:             s.logger,
		LoggerProvider:     s.loggerProvider,
		MetricsRecorder:    s.metricsRecorder,
		ErrorFactory:       s.errorFactory,
		ErrorMapper:        s.errorMapper,
		PersistenceClient:  s.persistenceClient,
		RepositoryFactory:  s.repositoryFactory,
		ConfigProvider:     s.configProvider,
		OptionsResolver:    s.optionsResolver,
		LinkedAccountStore: s.linkedAccountStore,
		EntitlementStore:   s.entitlementStore,
		IntentStore:        s.intentStore,
		GrantAuditStore:    s.grantAuditStore,
		ProfileScanner:     s.profileScanner,
		AccountResolver:    s.accountResolver,
		AssetCatalog:       s.assetCatalog,
		OwnershipOracle:    s.ownershipOracle,
		GrantNotifier:      s.grantNotifier,
		TokenGenerator:     s.tokenGenerator,
		Clock:              s.clock,
	}
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) now() time.Time {
	if s == nil || s.clock == nil {
		return timeNowUTC()
	}
	return s.clock.Now().UTC()
}
