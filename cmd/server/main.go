package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"collab-control-plane/backend/internal/config"
	"collab-control-plane/backend/internal/db"
	"collab-control-plane/backend/internal/db/migrate"
	healthhandler "collab-control-plane/backend/internal/health/handler"
	"collab-control-plane/backend/internal/notify"
	organizationservice "collab-control-plane/backend/internal/organization/service"
	"collab-control-plane/backend/internal/platform/logging"
	"collab-control-plane/backend/internal/platform/rbac"
	projectservice "collab-control-plane/backend/internal/project/service"
	"collab-control-plane/backend/internal/security"
	"collab-control-plane/backend/internal/server"
	"collab-control-plane/backend/internal/server/interceptors"
	"collab-control-plane/backend/internal/store"
	"collab-control-plane/backend/internal/store/memory"
	"collab-control-plane/backend/internal/store/postgres"
	teamservice "collab-control-plane/backend/internal/team/service"
	telemetryotel "collab-control-plane/backend/internal/telemetry/otel"
	"collab-control-plane/backend/internal/txn"
	userservice "collab-control-plane/backend/internal/user/service"
)

const (
	shutdownTimeout = 15 * time.Second
	healthInterval  = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log, err := logging.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := telemetryotel.NewProviders(ctx, cfg.OTLPEndpoint, cfg.OTelServiceName, cfg.OTLPInsecure, log)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	providers.SetGlobal()

	st, err := openStore(ctx, cfg, log)
	if err != nil {
		return multierr.Append(err, providers.Shutdown(context.Background()))
	}

	tokens, err := tokenProvider(cfg)
	if err != nil {
		return multierr.Combine(err, st.Close(), providers.Shutdown(context.Background()))
	}

	coordinator, err := txn.New(st, log.Named("txn"), txn.Options{
		Timeout:    cfg.TransactionTimeout(),
		MaxRetries: uint(cfg.TxMaxRetries),
	})
	if err != nil {
		return multierr.Combine(err, st.Close(), providers.Shutdown(context.Background()))
	}
	gate, err := rbac.NewGate(ctx, rbac.StoreResolver{Reader: st}, nil)
	if err != nil {
		return multierr.Combine(fmt.Errorf("rbac: %w", err), st.Close(), providers.Shutdown(context.Background()))
	}

	sender, closeSender, err := notificationSender(cfg, providers, log)
	if err != nil {
		return multierr.Combine(err, st.Close(), providers.Shutdown(context.Background()))
	}
	dispatcher := notify.NewDispatcher(sender, log.Named("notify"), cfg.NotificationTimeout(), cfg.NotifyConcurrency)

	health := healthhandler.NewServer(st, gate, log.Named("health"), server.ServiceNames...)
	deps := server.Deps{
		Projects: projectservice.NewLoggingService(log.Named("project"),
			projectservice.NewService(gate, coordinator, dispatcher, st)),
		Organizations: organizationservice.NewLoggingService(log.Named("organization"),
			organizationservice.NewService(gate, coordinator, st)),
		Teams: teamservice.NewLoggingService(log.Named("team"),
			teamservice.NewService(gate, coordinator, st)),
		Users: userservice.NewLoggingService(log.Named("user"),
			userservice.NewService(coordinator, st, security.NewHasher(cfg.BcryptCost), tokens)),
		Health:     health,
		Reflection: !cfg.Production(),
	}

	s := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			interceptors.RecoverUnary(log),
			interceptors.LoggingUnary(log.Named("grpc"), map[string]bool{server.HealthCheckMethod: true}),
			interceptors.AuthUnary(tokens, server.PublicMethods()),
		),
	)
	server.RegisterServices(s, deps)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return multierr.Combine(fmt.Errorf("listen: %w", err), closeSender(), st.Close(), providers.Shutdown(context.Background()))
	}

	healthCtx, stopHealth := context.WithCancel(ctx)
	go health.Run(healthCtx, healthInterval)

	serveErr := make(chan error, 1)
	go func() {
		log.Info("gRPC server listening", zap.String("addr", cfg.GRPCAddr), zap.String("store", cfg.StoreDriver))
		serveErr <- s.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down gRPC server")
	case err = <-serveErr:
		if errors.Is(err, grpc.ErrServerStopped) {
			err = nil
		}
	}

	stopHealth()
	health.Shutdown()
	s.GracefulStop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err = multierr.Combine(
		err,
		dispatcher.Drain(shutdownCtx),
		closeSender(),
		st.Close(),
		providers.Shutdown(shutdownCtx),
	)
	log.Info("gRPC server stopped")
	return err
}

func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (store.Store, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		log.Warn("using in-memory store; data is lost on exit")
		return memory.New(), nil
	}
	if cfg.MigrateOnStart {
		if err := migrate.Run(cfg.DatabaseURL, "up"); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		if v, dirty, ok, err := migrate.Version(cfg.DatabaseURL); err == nil && ok {
			log.Info("schema migrated", zap.Uint("version", v), zap.Bool("dirty", dirty))
		}
	}
	conn, err := db.Open(ctx, cfg.DatabaseURL, db.Pool{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime(),
	})
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}
	return postgres.New(conn), nil
}

func tokenProvider(cfg *config.Config) (*security.TokenProvider, error) {
	if cfg.JWTPrivateKey == "" || cfg.JWTPublicKey == "" {
		return nil, errors.New("JWT_PRIVATE_KEY and JWT_PUBLIC_KEY must be set")
	}
	priv, pub, err := security.LoadKeyPair(cfg.JWTPrivateKey, cfg.JWTPublicKey)
	if err != nil {
		return nil, fmt.Errorf("jwt keys: %w", err)
	}
	return security.NewTokenProvider(priv, pub, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL()), nil
}

// notificationSender picks Kafka when brokers are configured and the OTel log pipeline otherwise.
func notificationSender(cfg *config.Config, providers *telemetryotel.Providers, log *zap.Logger) (notify.Sender, func() error, error) {
	if brokers := cfg.NotifyKafkaBrokersList(); len(brokers) > 0 {
		k, err := notify.NewKafkaSender(brokers, cfg.NotifyKafkaTopic)
		if err != nil {
			return nil, nil, err
		}
		log.Info("notifications via kafka", zap.Strings("brokers", brokers), zap.String("topic", cfg.NotifyKafkaTopic))
		return k, k.Close, nil
	}
	log.Info("notifications via otel logs", zap.Bool("exporting", providers.Exporting))
	return notify.NewLogSender(providers.LoggerProvider), func() error { return nil }, nil
}
