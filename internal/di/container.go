package di

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	"github.com/roasworks/attribution/internal/adplatform"
	"github.com/roasworks/attribution/internal/handlers"
	"github.com/roasworks/attribution/internal/payments"
	"github.com/roasworks/attribution/internal/platform/config"
	fsplatform "github.com/roasworks/attribution/internal/platform/firestore"
	"github.com/roasworks/attribution/internal/platform/jobs"
	"github.com/roasworks/attribution/internal/platform/observability"
	"github.com/roasworks/attribution/internal/repositories"
	fsrepos "github.com/roasworks/attribution/internal/repositories/firestore"
	"github.com/roasworks/attribution/internal/services"
)

const (
	stripeProcessor       = "stripe"
	clickfunnelsProcessor = "clickfunnels"
)

// Services bundles the service-layer contracts that handlers rely upon.
type Services struct {
	Identity    services.IdentityService
	AdMetadata  services.AdMetadataService
	SpendStats  services.SpendStatsService
	Attribution services.AttributionService
	Reports     services.ReportService
	System      services.SystemService
}

// Container wires repositories, services, and the HTTP surface for runtime use.
type Container struct {
	Config       config.Config
	Logger       *zap.Logger
	Repositories repositories.Registry
	Services     Services
	Handler      http.Handler

	closers []func(context.Context) error
}

type containerOptions struct {
	registry  repositories.Registry
	adClient  services.AdPlatformClient
	ledger    services.PaymentLedger
	publisher services.ReportPublisher
}

// ContainerOption overrides pieces of the default wiring, primarily for tests.
type ContainerOption func(*containerOptions)

// WithRegistry injects a pre-built repository registry.
func WithRegistry(reg repositories.Registry) ContainerOption {
	return func(o *containerOptions) {
		o.registry = reg
	}
}

// WithAdPlatformClient injects a pre-built ad platform client.
func WithAdPlatformClient(client services.AdPlatformClient) ContainerOption {
	return func(o *containerOptions) {
		o.adClient = client
	}
}

// WithPaymentLedger injects a pre-built payment ledger.
func WithPaymentLedger(ledger services.PaymentLedger) ContainerOption {
	return func(o *containerOptions) {
		o.ledger = ledger
	}
}

// WithReportPublisher injects a pre-built report event publisher.
func WithReportPublisher(publisher services.ReportPublisher) ContainerOption {
	return func(o *containerOptions) {
		o.publisher = publisher
	}
}

// NewContainer constructs the runtime dependency graph from configuration.
func NewContainer(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...ContainerOption) (*Container, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var options containerOptions
	for _, opt := range opts {
		opt(&options)
	}

	c := &Container{
		Config: cfg,
		Logger: logger,
	}

	reg := options.registry
	if reg == nil {
		provider := fsplatform.NewProvider(cfg.Firestore)
		built, err := fsrepos.NewRegistry(provider)
		if err != nil {
			return nil, fmt.Errorf("build repository registry: %w", err)
		}
		reg = built
	}
	c.Repositories = reg
	c.closers = append(c.closers, func(context.Context) error { return reg.Close() })

	adClient := options.adClient
	if adClient == nil {
		adClient = adplatform.NewClient(cfg.AdPlatform)
	}

	ledger := options.ledger
	if ledger == nil {
		built, err := buildPaymentLedger(cfg, reg, logger)
		if err != nil {
			return nil, err
		}
		ledger = built
	}

	publisher := options.publisher
	if publisher == nil && cfg.PubSub.ProjectID != "" && cfg.PubSub.ReportTopic != "" {
		built, closer, err := buildReportPublisher(ctx, cfg.PubSub)
		if err != nil {
			return nil, err
		}
		publisher = built
		c.closers = append(c.closers, closer)
	}

	svc, err := buildServices(cfg, reg, adClient, ledger, publisher)
	if err != nil {
		return nil, err
	}
	c.Services = svc

	c.Handler = handlers.NewRouter(
		handlers.WithMiddlewares(observability.RequestLogger(logger)),
		handlers.WithHealthHandlers(handlers.NewHealthHandlers(svc.System)),
		handlers.WithReportRoutes(handlers.NewReportHandlers(svc.Reports).Routes),
	)

	return c, nil
}

// Close releases repository clients and background infrastructure.
func (c *Container) Close(ctx context.Context) error {
	if c == nil {
		return nil
	}
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func buildPaymentLedger(cfg config.Config, reg repositories.Registry, logger *zap.Logger) (services.PaymentLedger, error) {
	statsRepo := reg.PaymentStats()
	if statsRepo == nil {
		return nil, errors.New("payment stats repository is required")
	}

	sources := make(map[string]payments.StatsSource)

	if cfg.Payments.StripeAPIKey != "" {
		stripeSource, err := payments.NewStripeSource(payments.StripeSourceConfig{
			APIKey: cfg.Payments.StripeAPIKey,
			Logger: func(ctx context.Context, event string, fields map[string]any) {
				logger.Info(event, zap.Any("fields", fields))
			},
		})
		if err != nil {
			return nil, fmt.Errorf("build stripe source: %w", err)
		}
		sources[stripeProcessor] = stripeSource
	} else {
		stored, err := payments.NewFirestoreSource(stripeProcessor, statsRepo)
		if err != nil {
			return nil, fmt.Errorf("build stored stripe source: %w", err)
		}
		sources[stripeProcessor] = stored
	}

	clickfunnels, err := payments.NewFirestoreSource(clickfunnelsProcessor, statsRepo)
	if err != nil {
		return nil, fmt.Errorf("build clickfunnels source: %w", err)
	}
	sources[clickfunnelsProcessor] = clickfunnels

	manager, err := payments.NewManager(sources)
	if err != nil {
		return nil, fmt.Errorf("build payment manager: %w", err)
	}
	return manager, nil
}

func buildReportPublisher(ctx context.Context, cfg config.PubSubConfig) (services.ReportPublisher, func(context.Context) error, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, nil, fmt.Errorf("build pubsub client: %w", err)
	}

	topic := client.Topic(cfg.ReportTopic)
	inner, err := jobs.NewPubSubReportPublisher(topic)
	if err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("build report publisher: %w", err)
	}

	closer := func(context.Context) error {
		topic.Stop()
		return client.Close()
	}
	return &reportEventPublisher{inner: inner, clock: time.Now}, closer, nil
}

// reportEventPublisher adapts the Pub/Sub publisher to the service contract.
type reportEventPublisher struct {
	inner *jobs.PubSubReportPublisher
	clock func() time.Time
}

func (p *reportEventPublisher) PublishReportCompleted(ctx context.Context, runID, reportID string, cmd services.PersistedRunInfo) (string, error) {
	return p.inner.PublishReportCompleted(ctx, jobs.ReportEventMessage{
		RunID:         runID,
		UserID:        cmd.UserID,
		AdAccountID:   cmd.AdAccountID,
		ReportDate:    cmd.ReportDate,
		ReportID:      reportID,
		CampaignCount: cmd.CampaignCount,
		AdsetCount:    cmd.AdsetCount,
		AdCount:       cmd.AdCount,
		CustomerCount: cmd.CustomerCount,
		CompletedAt:   p.clock().UTC(),
	})
}

func buildServices(cfg config.Config, reg repositories.Registry, adClient services.AdPlatformClient, ledger services.PaymentLedger, publisher services.ReportPublisher) (Services, error) {
	var svc Services

	cartSource, err := services.NewRepositoryCartSource(reg.Carts(), reg.Users())
	if err != nil {
		return Services{}, fmt.Errorf("build cart source: %w", err)
	}
	cartProviders, err := services.NewCartProviderRegistry(map[string]services.CartSource{
		cfg.Attribution.DefaultCartProvider: cartSource,
	}, cfg.Attribution.DefaultCartProvider)
	if err != nil {
		return Services{}, fmt.Errorf("build cart provider registry: %w", err)
	}

	identity, err := services.NewIdentityService(services.IdentityServiceDeps{
		Users:         reg.Users(),
		CartProviders: cartProviders,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build identity service: %w", err)
	}
	svc.Identity = identity

	adMetadata, err := services.NewAdMetadataService(services.AdMetadataServiceDeps{
		Cache:    reg.AdCache(),
		Platform: adClient,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build ad metadata service: %w", err)
	}
	svc.AdMetadata = adMetadata

	spendStats, err := services.NewSpendStatsService(services.SpendStatsServiceDeps{
		Insights: reg.Insights(),
		Platform: adClient,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build spend stats service: %w", err)
	}
	svc.SpendStats = spendStats

	attribution, err := services.NewAttributionService(services.AttributionServiceDeps{
		Identity:            identity,
		Normalizer:          services.NewEventNormalizer(),
		AdMetadata:          adMetadata,
		SpendStats:          spendStats,
		Users:               reg.Users(),
		Ledger:              ledger,
		DefaultWindowDays:   cfg.Attribution.WindowDays,
		DefaultCartProvider: cfg.Attribution.DefaultCartProvider,
		DefaultProcessor:    stripeProcessor,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build attribution service: %w", err)
	}
	svc.Attribution = attribution

	reports, err := services.NewReportService(services.ReportServiceDeps{
		Reports:     reg.Reports(),
		Insights:    reg.Insights(),
		Attribution: attribution,
		SpendStats:  spendStats,
		Publisher:   publisher,
		Clock:       time.Now,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build report service: %w", err)
	}
	svc.Reports = reports

	system, err := services.NewSystemService(services.SystemServiceDeps{
		HealthRepository: reg.Health(),
		Clock:            time.Now,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build system service: %w", err)
	}
	svc.System = system

	return svc, nil
}
