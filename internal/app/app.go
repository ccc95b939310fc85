// Package app wires configuration, storage and services into the pieces the
// api, worker and bookingctl binaries run.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/jwalitptl/booking-api/config"
	"github.com/jwalitptl/booking-api/internal/repository"
	"github.com/jwalitptl/booking-api/internal/repository/postgres"
	"github.com/jwalitptl/booking-api/internal/service/availability"
	"github.com/jwalitptl/booking-api/internal/service/booking"
	"github.com/jwalitptl/booking-api/internal/service/event"
	"github.com/jwalitptl/booking-api/internal/service/hold"
	"github.com/jwalitptl/booking-api/internal/service/schedule"
	"github.com/jwalitptl/booking-api/internal/service/tenant"
	"github.com/jwalitptl/booking-api/pkg/clock"
	"github.com/jwalitptl/booking-api/pkg/logger"
	"github.com/jwalitptl/booking-api/pkg/messaging"
	"github.com/jwalitptl/booking-api/pkg/messaging/kafka"
	"github.com/jwalitptl/booking-api/pkg/messaging/rabbitmq"
	"github.com/jwalitptl/booking-api/pkg/messaging/redis"
	"github.com/jwalitptl/booking-api/pkg/metrics"
)

type App struct {
	Config   *config.Config
	DB       *sqlx.DB
	Logger   *logger.Logger
	Clock    clock.Clock
	Metrics  *metrics.Metrics
	Registry *prometheus.Registry

	Tx     repository.TxManager
	Outbox repository.OutboxRepository

	Tenants      *tenant.Service
	Availability *availability.Service
	Holds        *hold.Service
	Bookings     *booking.Service
}

// New builds repositories and services on db. Metrics are registered on a
// fresh registry together with the Go and process collectors.
func New(cfg *config.Config, db *sqlx.DB, log *logger.Logger) (*App, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(cfg.Metrics.Namespace)
	if err := m.Register(registry); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	clk := clock.Real{}
	base := postgres.NewBaseRepository(db)
	tx := postgres.NewTxManager(db)
	catalog := postgres.NewCatalogRepository(base)
	holds := postgres.NewHoldRepository(base)
	bookings := postgres.NewBookingRepository(base)
	outbox := postgres.NewOutboxRepository(base)

	opts := []availability.Option{availability.WithMetrics(m)}
	if cfg.Availability.StepMinutes > 0 {
		opts = append(opts, availability.WithStep(time.Duration(cfg.Availability.StepMinutes)*time.Minute))
	}

	return &App{
		Config:   cfg,
		DB:       db,
		Logger:   log,
		Clock:    clk,
		Metrics:  m,
		Registry: registry,
		Tx:       tx,
		Outbox:   outbox,
		Tenants:  tenant.NewService(postgres.NewBusinessRepository(base), cfg.Availability.TenantCacheTTL, log),
		Availability: availability.NewService(
			catalog,
			bookings,
			holds,
			schedule.NewService(postgres.NewScheduleRepository(base)),
			clk,
			opts...,
		),
		Holds: hold.NewService(tx, catalog, holds, clk, cfg.Holds.TTL, log, m),
		Bookings: booking.NewService(tx, booking.Repositories{
			Catalog:   catalog,
			Holds:     holds,
			Bookings:  bookings,
			Customers: postgres.NewCustomerRepository(base),
			Actions:   postgres.NewBookingActionRepository(base),
		}, event.NewEventService(outbox, clk, cfg.Outbox.MaxAttempts), clk, log, m),
	}, nil
}

// NewPublisher connects to the configured broker and guards it with a
// circuit breaker.
func NewPublisher(ctx context.Context, cfg config.BrokerConfig, log *logger.Logger) (messaging.Publisher, error) {
	brokerConfig := cfg.ToBrokerConfig()

	var (
		next messaging.Publisher
		err  error
	)
	switch brokerConfig.Driver {
	case messaging.DriverRedis:
		next, err = redis.NewPublisher(ctx, brokerConfig)
	case messaging.DriverRabbitMQ:
		next, err = rabbitmq.NewPublisher(brokerConfig)
	case messaging.DriverKafka:
		next = kafka.NewPublisher(brokerConfig)
	default:
		return nil, fmt.Errorf("unknown broker driver %q", brokerConfig.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s broker: %w", brokerConfig.Driver, err)
	}

	return messaging.NewBreakerPublisher(next, messaging.BreakerSettings{
		Name: "outbox-" + brokerConfig.Driver,
	}, log), nil
}
