package main

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/JasonAseoche/hrmcapstone-sub001/internal/config"
	"github.com/JasonAseoche/hrmcapstone-sub001/internal/db"
	"github.com/JasonAseoche/hrmcapstone-sub001/internal/enrollment/service"
	"github.com/JasonAseoche/hrmcapstone-sub001/internal/enrollment/store"
	"github.com/JasonAseoche/hrmcapstone-sub001/internal/enrollment/store/memory"
	"github.com/JasonAseoche/hrmcapstone-sub001/internal/enrollment/store/sqlite"
	"github.com/JasonAseoche/hrmcapstone-sub001/internal/grpcapi"
	"github.com/JasonAseoche/hrmcapstone-sub001/internal/httpapi"
	"github.com/JasonAseoche/hrmcapstone-sub001/internal/logger"
	"github.com/JasonAseoche/hrmcapstone-sub001/internal/telemetry"
)

const serviceName = "hrm-server"

type stores struct {
	attempts  store.AttemptStore
	directory store.DirectoryStore
	scans     store.ScanEventStore
	health    func(ctx context.Context) error
	close     func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New(logger.Config{Service: serviceName})
		bootLog.Fatal().Err(err).Msg("config")
	}

	log := logger.New(logger.Config{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Service: serviceName,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, serviceName, cfg.OTelEndpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("telemetry")
	}

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("open stores")
	}

	registry := service.NewRegistry(st.attempts, service.RegistryConfig{Expiry: cfg.EnrollmentExpiry})
	directory := service.NewDirectorySynchronizer(st.directory, log)

	pruner := service.NewAttemptPruner(registry, st.scans, service.PrunerConfig{
		Retention: cfg.Retention,
		Interval:  cfg.PruneInterval,
	}, log)
	pruner.Start(ctx)

	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:       log,
		Addr:         cfg.HTTPAddr,
		Registration: service.NewRegistrationManager(registry, directory, log),
		Matcher:      service.NewEventMatcher(registry, directory, st.scans, log),
		Poller:       service.NewStatusPoller(registry, log),
		Directory:    directory,
		Health:       st.health,
	})

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Str("store", cfg.Store).Msg("http listening")
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server")
			stop()
		}
	}()

	var grpcSrv *grpcapi.Server
	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			log.Fatal().Err(err).Str("addr", cfg.GRPCAddr).Msg("grpc listen")
		}
		grpcSrv = grpcapi.NewServer(grpcapi.Config{Check: st.health}, log)
		go func() {
			if err := grpcSrv.Serve(lis); err != nil {
				log.Error().Err(err).Msg("grpc server")
				stop()
			}
		}()
	}

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if grpcSrv != nil {
		grpcSrv.Stop()
	}
	_ = srv.Shutdown(shutdownCtx)
	pruner.Stop()
	st.close()
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("tracing shutdown")
	}
}

func openStores(ctx context.Context, cfg config.Config, log zerolog.Logger) (stores, error) {
	if cfg.Store == "memory" {
		dir := memory.NewDirectoryStore()
		if cfg.SeedDev {
			seedMemoryDirectory(dir)
			log.Info().Msg("seeded in-memory directory")
		}
		return stores{
			attempts:  memory.NewAttemptStore(),
			directory: dir,
			scans:     memory.NewScanEventStore(),
			close:     func() {},
		}, nil
	}

	conn, err := db.Open(ctx, db.Config{Path: cfg.DBPath, Env: cfg.Env})
	if err != nil {
		return stores{}, err
	}
	if cfg.SeedDev {
		if err := db.SeedDev(ctx, conn); err != nil {
			_ = conn.Close()
			return stores{}, err
		}
		log.Info().Str("path", cfg.DBPath).Msg("seeded dev directory")
	}

	writer := db.NewWorker(conn)
	return stores{
		attempts:  sqlite.NewAttemptStore(conn, writer),
		directory: sqlite.NewDirectoryStore(conn, writer),
		scans:     sqlite.NewScanEventStore(conn, writer),
		health:    pinger(conn),
		close: func() {
			writer.Close()
			_ = conn.Close()
		},
	}, nil
}

func pinger(conn *sql.DB) func(ctx context.Context) error {
	return func(ctx context.Context) error { return conn.PingContext(ctx) }
}

func seedMemoryDirectory(dir *memory.DirectoryStore) {
	people := []store.AccountRecord{
		{UserID: "1001", FirstName: "Ana", LastName: "Reyes", Email: "ana.reyes@example.test"},
		{UserID: "1002", FirstName: "Ben", LastName: "Cruz", Email: "ben.cruz@example.test"},
		{UserID: "1003", FirstName: "Carla", LastName: "Santos"},
	}
	for _, p := range people {
		dir.AddAccount(p)
		dir.AddEmployee(store.EmploymentRecord{FirstName: p.FirstName, LastName: p.LastName, Email: p.Email})
	}
}
