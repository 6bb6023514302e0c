package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/OpenDDS/DDSPermissionsManager-sub002/internal/authz"
	"github.com/OpenDDS/DDSPermissionsManager-sub002/internal/bindtoken"
	"github.com/OpenDDS/DDSPermissionsManager-sub002/internal/certs"
	"github.com/OpenDDS/DDSPermissionsManager-sub002/internal/config"
	"github.com/OpenDDS/DDSPermissionsManager-sub002/internal/dds"
	"github.com/OpenDDS/DDSPermissionsManager-sub002/internal/httpapi"
	"github.com/OpenDDS/DDSPermissionsManager-sub002/internal/obs"
	"github.com/OpenDDS/DDSPermissionsManager-sub002/internal/secrets"
	"github.com/OpenDDS/DDSPermissionsManager-sub002/internal/store/memory"
	"github.com/OpenDDS/DDSPermissionsManager-sub002/internal/store/pg"
)

var version = "1.2.0"

func main() {
	cfg := config.Load()
	obs.Init()
	logger := obs.Logger()

	// Postgres when a DSN is configured, in-memory otherwise (local runs).
	var (
		store   dds.Store
		probe   httpapi.ReadyProbe
		pgStore *pg.Store
	)
	if cfg.PostgresDSN != "" {
		var err error
		pgStore, err = pg.Open(cfg.PostgresDSN)
		if err != nil {
			logger.WithError(err).Fatal("open database")
		}
		store = pgStore
		probe = httpapi.ReadyProbe{DB: pgStore.DB()}
	} else {
		logger.Warn("no database configured, using in-memory store")
		store = memory.New()
	}

	gate, err := authz.NewGate(dds.NewMembership(store.Members()))
	if err != nil {
		logger.WithError(err).Fatal("build authorization gate")
	}

	grants, err := dds.NewGrantService(store, gate)
	if err != nil {
		logger.WithError(err).Fatal("build grant service")
	}
	actions, err := dds.NewActionService(store, gate)
	if err != nil {
		logger.WithError(err).Fatal("build action service")
	}
	applications, err := dds.NewApplicationService(store, gate)
	if err != nil {
		logger.WithError(err).Fatal("build application service")
	}
	permissions, err := dds.NewPermissionService(store, gate)
	if err != nil {
		logger.WithError(err).Fatal("build permission service")
	}

	if cfg.TokenSecret == "" {
		logger.Fatal("DDSPM_TOKEN_SECRET is required")
	}
	tokens, err := bindtoken.NewService(cfg.TokenSecret, bindtoken.WithTTL(cfg.GrantTokenTTL))
	if err != nil {
		logger.WithError(err).Fatal("build bind-token service")
	}
	userTokens, err := httpapi.NewTokenAuthority(cfg.TokenSecret)
	if err != nil {
		logger.WithError(err).Fatal("build user-token authority")
	}

	secretStore, err := secrets.NewFileStore(cfg.SecretsDir)
	if err != nil {
		logger.WithError(err).Fatal("open secrets dir")
	}
	defer func() { _ = secretStore.Close() }()

	signer, err := certs.NewSigner(secretStore, certs.WithExpiry(cfg.CertificateExpiry))
	if err != nil {
		logger.WithError(err).Fatal("build signer")
	}

	api := httpapi.New(httpapi.Deps{
		Store:        store,
		Gate:         gate,
		Grants:       grants,
		Actions:      actions,
		Applications: applications,
		Permissions:  permissions,
		Tokens:       tokens,
		Signer:       signer,
		Secrets:      secretStore,
		UserTokens:   userTokens,
		ReadyProbe:   probe,
		Version:      version,
	})

	handler := httpapi.RateLimit(api.Handler(), cfg.RateBurst, cfg.RatePerSec)
	handler = httpapi.MaxBodyBytes(handler, 1<<20)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.WithField("addr", srv.Addr).Infof("starting dds-permissions-manager %s", version)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("listen")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if pgStore != nil {
		_ = pgStore.Close()
	}
	logger.Info("stopped")
}
