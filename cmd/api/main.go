package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"
	"gorm.io/gorm"

	"hostelhub.org/internal/audit"
	"hostelhub.org/internal/auth"
	"hostelhub.org/internal/authz"
	"hostelhub.org/internal/cache"
	"hostelhub.org/internal/config"
	"hostelhub.org/internal/httpapi"
	"hostelhub.org/internal/obs"
	"hostelhub.org/internal/repo"
	"hostelhub.org/internal/store/pg"
	"hostelhub.org/internal/tenancy"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

// backends groups the stores selected by configuration.
type backends struct {
	principals auth.PrincipalStore
	refresh    auth.RefreshTokenStore
	tenancy    tenancy.Store
	approvals  authz.Store
	audit      audit.Store
	domain     *gorm.DB
	sqlDB      *sql.DB
	redis      *redis.Client
}

func (b *backends) close() {
	if b.redis != nil {
		_ = b.redis.Close()
	}
	if b.domain != nil {
		if db, err := b.domain.DB(); err == nil {
			_ = db.Close()
		}
	}
	if b.sqlDB != nil {
		_ = b.sqlDB.Close()
	}
}

func openBackends(ctx context.Context, cfg config.Config) (*backends, error) {
	log := obs.Logger()
	b := &backends{}
	if cfg.PGDSN != "" {
		store, err := pg.Open(cfg.PGDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		b.sqlDB = store.DB()
		b.principals = store.Principals()
		b.refresh = store.RefreshTokens()
		b.tenancy = store.Tenancy()
		b.approvals = store.Approvals()
		b.audit = store.Audit()
		if b.domain, err = repo.OpenPostgres(cfg.PGDSN); err != nil {
			b.close()
			return nil, err
		}
		log.Info().Msg("using postgres stores")
	} else {
		b.principals = auth.NewMemoryPrincipalStore()
		b.refresh = auth.NewMemoryRefreshTokenStore()
		b.tenancy = tenancy.NewMemoryStore()
		b.approvals = authz.NewMemoryStore()
		b.audit = audit.NewMemoryStore()
		domain, err := repo.OpenSQLite("")
		if err != nil {
			return nil, err
		}
		b.domain = domain
		log.Warn().Msg("HOSTEL_PG_DSN not set, using in-memory stores")
	}

	if cfg.RedisAddr != "" {
		client, err := cache.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			b.close()
			return nil, err
		}
		b.redis = client
		b.tenancy = cache.NewSessionCache(b.tenancy, client, cache.WithLogger(log))
		log.Info().Str("addr", cfg.RedisAddr).Msg("session cache enabled")
	}
	return b, nil
}

func main() {
	fmt.Println(figure.NewFigure("HostelHub", "", true).String())

	cfg, err := config.Load()
	if err != nil {
		obs.Logger().Fatal().Err(err).Msg("invalid configuration")
	}
	obs.SetLogger(obs.NewLogger(os.Stdout, cfg.LogLevel))
	log := obs.Logger()

	obs.Init()
	obs.InitBuildInfo(version, commit)

	startCtx, cancelStart := context.WithTimeout(context.Background(), 10*time.Second)
	b, err := openBackends(startCtx, cfg)
	cancelStart()
	if err != nil {
		log.Fatal().Err(err).Msg("open stores")
	}
	defer b.close()

	if b.sqlDB == nil {
		if cfg.BootstrapAdminEmail == "" {
			log.Warn().Msg("in-memory stores without HOSTEL_BOOTSTRAP_ADMIN_EMAIL: nobody can log in")
		} else {
			generated, err := seedBootstrap(context.Background(), b.principals, b.tenancy, bootstrapSettings{
				AdminEmail:    cfg.BootstrapAdminEmail,
				AdminPassword: cfg.BootstrapAdminPassword,
				TenantName:    cfg.BootstrapTenantName,
			})
			if err != nil {
				log.Fatal().Err(err).Msg("bootstrap")
			}
			if generated != "" {
				log.Warn().Str("email", cfg.BootstrapAdminEmail).Str("password", generated).
					Msg("generated bootstrap admin password; it is not shown again")
			}
		}
	}

	tokens, err := auth.NewTokenService(b.principals, b.refresh, cfg.TokenSecret,
		auth.WithIssuer(cfg.TokenIssuer),
		auth.WithAccessTTL(cfg.AccessTokenTTL),
		auth.WithRefreshTTL(cfg.RefreshTokenTTL),
		auth.WithRememberMultiplier(cfg.RememberMultiplier),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("token service")
	}

	ready := httpapi.ReadyCheck{DB: b.sqlDB, Redis: b.redis}
	api, err := httpapi.New(httpapi.Deps{
		Tokens:       tokens,
		Principals:   b.principals,
		Resolver:     tenancy.NewResolver(b.tenancy, tenancy.WithFailClosed(cfg.FailClosed)),
		Approvals:    authz.NewEngine(b.approvals, cfg.ApprovalThresholds),
		Audit:        audit.NewWriter(b.audit, audit.WithLogger(log)),
		Policy:       audit.Policy{IncludeReads: cfg.AuditIncludeReads},
		Domain:       b.domain,
		Ready:        ready,
		Version:      version,
		StoreTimeout: cfg.StoreTimeout,
		RateBurst:    cfg.RateBurst,
		RatePerSec:   cfg.RatePerSec,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("http api")
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	var grpcSrv *grpc.Server
	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			log.Fatal().Err(err).Str("addr", cfg.GRPCAddr).Msg("grpc listen")
		}
		grpcSrv = grpc.NewServer()
		httpapi.NewGRPCServer(ready, version).Register(grpcSrv)
		go func() {
			log.Info().Str("addr", cfg.GRPCAddr).Msg("grpc health listening")
			if err := grpcSrv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				log.Error().Err(err).Msg("grpc serve")
			}
		}()
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("starting hostelhub-api")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if grpcSrv != nil {
		grpcSrv.GracefulStop()
	}
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	log.Info().Msg("stopped")
}
