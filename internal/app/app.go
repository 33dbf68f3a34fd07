package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/atvirokodosprendimai/gmpledger/internal/adapters/events"
	"github.com/atvirokodosprendimai/gmpledger/internal/adapters/httpapi"
	"github.com/atvirokodosprendimai/gmpledger/internal/adapters/storage"
	"github.com/atvirokodosprendimai/gmpledger/internal/adapters/storage/gormdb"
	"github.com/atvirokodosprendimai/gmpledger/internal/config"
	"github.com/atvirokodosprendimai/gmpledger/internal/core/domain"
	"github.com/atvirokodosprendimai/gmpledger/internal/core/ports"
	"github.com/atvirokodosprendimai/gmpledger/internal/core/usecase"
	"github.com/atvirokodosprendimai/gmpledger/internal/metrics"
	"github.com/atvirokodosprendimai/gmpledger/internal/reasons"
	"github.com/atvirokodosprendimai/gmpledger/internal/slowlog"
	"github.com/atvirokodosprendimai/gmpledger/migrations"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// App owns the database and every service built on it.
type App struct {
	cfg config.Config
	log *zap.Logger
	db  *gormdb.DB

	Gateway    *usecase.MutationGateway
	Signatures *usecase.SignatureService
	History    *usecase.HistoryService
	Rollback   *usecase.RollbackCoordinator
	Audit      *usecase.AuditService
	Schemas    *usecase.SchemaService
	Auth       *usecase.AuthService
	Users      *usecase.UserService
	Integrity  *usecase.IntegrityChecker

	dispatcher *usecase.OutboxDispatcher
	slow       *slowlog.Recorder
	registry   *prometheus.Registry
	closers    []io.Closer
}

// OpenDatabase opens the configured database without migrating it.
func OpenDatabase(cfg config.DatabaseConfig) (*gormdb.DB, error) {
	switch cfg.Driver {
	case gormdb.DialectPostgres:
		return gormdb.OpenPostgres(cfg.DSN)
	case gormdb.DialectSQLite, "":
		return gormdb.Open(cfg.Path)
	}
	return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
}

func Migrate(ctx context.Context, db *gormdb.DB) error {
	sqlDB, err := db.WriteSQLDB()
	if err != nil {
		return fmt.Errorf("resolve writer sql db: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return migrations.Up(ctx, sqlDB, db.Dialect())
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	loc, err := time.LoadLocation(cfg.Server.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("load time zone: %w", err)
	}
	catalog, err := reasons.New(cfg.Reasons.Version, cfg.Reasons.CustomCode, reasonCodes(cfg.Reasons))
	if err != nil {
		return nil, fmt.Errorf("reason catalog: %w", err)
	}

	db, err := OpenDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	publisher, err := newPublisher(cfg.Publisher, log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)
	slow := slowlog.New(cfg.SlowLog.Threshold, cfg.SlowLog.Capacity)
	opts := []usecase.Option{usecase.WithLogger(log), usecase.WithMetrics(m), usecase.WithSlowLog(slow)}

	entities := storage.NewEntityStore(db)
	auditRepo := storage.NewAuditLogRepository(db)
	ledger := storage.NewSignatureLedger(db)
	users := storage.NewUserRepository(db)
	codec := usecase.NewSnapshotCodec(usecase.BareFieldsUpcaster{})

	a := &App{
		cfg:      cfg,
		log:      log,
		db:       db,
		slow:     slow,
		registry: registry,
	}
	a.Gateway = usecase.NewMutationGateway(entities, opts...)
	a.Signatures = usecase.NewSignatureService(ledger, users, catalog, loc, opts...)
	a.History = usecase.NewHistoryService(auditRepo, codec)
	a.Rollback = usecase.NewRollbackCoordinator(a.Gateway, a.History)
	a.Audit = usecase.NewAuditService(auditRepo)
	a.Schemas = usecase.NewSchemaService(storage.NewSchemaRepository(db))
	a.Auth = usecase.NewAuthService(users, users)
	a.Users = usecase.NewUserService(users)
	a.Integrity = usecase.NewIntegrityChecker(entities, a.Audit, ledger, codec, log)
	a.dispatcher = usecase.NewOutboxDispatcher(storage.NewOutboxRepository(db), publisher, usecase.DispatcherConfig{
		Interval:  cfg.Outbox.Interval,
		BatchSize: cfg.Outbox.BatchSize,
		MaxRetry:  cfg.Outbox.MaxRetry,
		Logger:    log.Named("outbox"),
		Metrics:   m,
	})

	// dispatcher first so it stops before its publisher and the database
	a.closers = append(a.closers, a.dispatcher)
	if c, ok := publisher.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}
	a.closers = append(a.closers, db)

	created, err := a.Users.EnsureBootstrap(ctx, cfg.Bootstrap.Username, cfg.Bootstrap.FullName, cfg.Bootstrap.APIKey)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	if created {
		log.Info("bootstrap user created", zap.String("username", cfg.Bootstrap.Username))
	}
	return a, nil
}

func reasonCodes(cfg config.ReasonsConfig) []domain.Reason {
	if len(cfg.Codes) == 0 {
		return reasons.Defaults
	}
	return cfg.Codes
}

func newPublisher(cfg config.PublisherConfig, log *zap.Logger) (ports.EventPublisher, error) {
	switch cfg.Kind {
	case "webhook":
		return events.NewWebhookPublisher(cfg.Webhook.URL, cfg.Webhook.Secret, cfg.Webhook.Timeout), nil
	case "kafka":
		p, err := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return nil, fmt.Errorf("kafka publisher: %w", err)
		}
		return p, nil
	case "log", "":
		return events.NewLogPublisher(log.Named("events")), nil
	}
	return nil, fmt.Errorf("unsupported publisher %q", cfg.Kind)
}

func (a *App) Handler() http.Handler {
	return httpapi.NewHandler(httpapi.Services{
		Gateway:    a.Gateway,
		Signatures: a.Signatures,
		Rollback:   a.Rollback,
		History:    a.History,
		Audit:      a.Audit,
		Schemas:    a.Schemas,
		Auth:       a.Auth,
		SlowLog:    a.slow,
		Metrics:    promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{Registry: a.registry}),
		Logger:     a.log.Named("http"),
	}).Router()
}

// Serve runs the HTTP server and the outbox dispatcher until ctx ends or
// either of them fails.
func (a *App) Serve(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.log.Info("listening", zap.String("addr", addr), zap.String("db", a.db.Dialect()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		a.dispatcher.Start(ctx)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (a *App) Close() error {
	var firstErr error
	for _, c := range a.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
