// Package main provides the stepflow API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/dukex/stepflow/pkg/cmd"
	"github.com/dukex/stepflow/pkg/config"
	"github.com/dukex/stepflow/pkg/eventbus"
	"github.com/dukex/stepflow/pkg/events"
	"github.com/dukex/stepflow/pkg/metrics"
	"github.com/dukex/stepflow/pkg/migrations"
	"github.com/dukex/stepflow/pkg/operations"
	"github.com/dukex/stepflow/pkg/otelhelper"
	"github.com/dukex/stepflow/pkg/persistence"
	"github.com/dukex/stepflow/pkg/registry"
	"github.com/dukex/stepflow/pkg/services"
	"github.com/dukex/stepflow/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"go.opentelemetry.io/otel/trace"
)

var auditedEvents = []events.EventType{
	events.FlowVersionCreatedEvent,
	events.FlowVersionUpdatedEvent,
	events.FlowVersionLockedEvent,
	events.FlowVersionDeletedEvent,
	events.RunStepRecordedEvent,
}

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	journals    persistence.JournalRepository
	eventBus    eventbus.EventBus
	registry    *registry.Registry
	metrics     *metrics.Metrics
	tracer      trace.Tracer
	validate    *validator.Validate

	closers []func(context.Context) error
}

// NewAPI opens every store and client named by cfg. Call Close to release them.
func NewAPI(ctx context.Context, logger *slog.Logger, cfg *config.Config) (*API, error) {
	a := &API{
		logger:   logger,
		metrics:  metrics.New(),
		tracer:   otelhelper.NoopTracer(),
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}

	if err := a.open(ctx, cfg); err != nil {
		if closeErr := a.Close(ctx); closeErr != nil {
			logger.ErrorContext(ctx, "Failed to release API resources", "error", closeErr)
		}

		return nil, err
	}

	return a, nil
}

func (a *API) open(ctx context.Context, cfg *config.Config) error {
	reg, err := cmd.NewRegistry(a.logger)
	if err != nil {
		return fmt.Errorf("failed to create registry: %w", err)
	}

	a.registry = reg

	store, err := cmd.NewPersistence(ctx, a.logger, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to open persistence: %w", err)
	}

	a.persistence = store
	a.closers = append(a.closers, store.Close)

	journals, closeJournals, err := cmd.NewJournalRepository(
		cfg.Journal.URL,
		time.Duration(cfg.Journal.TTLSeconds)*time.Second,
		store.JournalRepository(),
	)
	if err != nil {
		return fmt.Errorf("failed to open journal store: %w", err)
	}

	a.journals = journals
	a.closers = append(a.closers, closeJournals)

	bus, err := cmd.NewEventBus(cfg.EventBus.Provider, cfg.EventBus.Brokers, cfg.EventBus.Topic, a.logger)
	if err != nil {
		return fmt.Errorf("failed to create event bus: %w", err)
	}

	a.eventBus = bus
	a.closers = append(a.closers, func(context.Context) error { return bus.Close() })

	if err := a.subscribeAudit(ctx); err != nil {
		return err
	}

	if cfg.Tracing.Enabled {
		tracer, shutdown, err := otelhelper.NewTracer(ctx, cfg.Tracing.ServiceName)
		if err != nil {
			return fmt.Errorf("failed to initialize tracer: %w", err)
		}

		a.tracer = tracer
		a.closers = append(a.closers, shutdown)
	}

	return nil
}

// subscribeAudit logs every lifecycle event seen on the bus.
func (a *API) subscribeAudit(ctx context.Context) error {
	audit := componentLogger(a.logger, "audit")

	for _, eventType := range auditedEvents {
		err := a.eventBus.Handle(eventType, func(ctx context.Context, event any) error {
			audit.InfoContext(ctx, "Event received", "event_type", eventType, "event", event)

			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to register %s handler: %w", eventType, err)
		}
	}

	if err := a.eventBus.Subscribe(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to events: %w", err)
	}

	return nil
}

func componentLogger(logger *slog.Logger, module string) *slog.Logger {
	return logger.With("component", module)
}

func (a *API) App() *fiber.App {
	pipeline := migrations.New(componentLogger(a.logger, "migrations"))
	engine := operations.NewEngine(componentLogger(a.logger, "operations"), a.registry, operations.WithMigrator(pipeline))

	opts := []services.Option{
		services.WithPublisher(a.eventBus),
		services.WithTracer(a.tracer),
		services.WithMetrics(a.metrics),
	}

	flowVersions := services.NewFlowVersions(componentLogger(a.logger, "flow_versions"), a.persistence.FlowVersionRepository(), engine, pipeline, opts...)
	runs := services.NewRuns(componentLogger(a.logger, "runs"), a.journals, opts...)

	handlers := web.NewAPIHandlers(flowVersions, runs, a.registry, a.persistence, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("stepflow API")
	})

	web.Register(app, handlers, a.metrics.Handler())

	return app
}

func (a *API) Start(port int) error {
	return a.App().Listen(":" + strconv.Itoa(port))
}

// Close releases resources in reverse opening order.
func (a *API) Close(ctx context.Context) error {
	var errs []error

	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}

	a.closers = nil

	return errors.Join(errs...)
}
