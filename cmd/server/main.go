// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in the internal services.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"vitalia/internal/chain"
	"vitalia/internal/chain/registrytest"
	"vitalia/internal/chain/rpc"
	"vitalia/internal/listings"
	"vitalia/internal/oplog"
	"vitalia/internal/platform/config"
	"vitalia/internal/platform/httpserver"
	"vitalia/internal/platform/logger"
	platformredis "vitalia/internal/platform/redis"
	"vitalia/internal/profiles"
	"vitalia/internal/query"
	"vitalia/internal/query/store"
	httptransport "vitalia/internal/transport/http"
	"vitalia/internal/txtrack"
)

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		logger.New("error").Error("invalid configuration", "error", err)
		return err
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Transport: the registry gateway, or the in-process development
	// registry when no gateway is configured.
	var transport chain.Transport
	if cfg.RPCURL != "" {
		transport, err = rpc.New(cfg.RPCURL)
		if err != nil {
			log.Error("rpc client init failed", "error", err)
			return err
		}
		log.Info("using registry gateway", "url", cfg.RPCURL, "network", cfg.Network)
	} else {
		transport = registrytest.New("0x00000000000000000000000000000000000000a1")
		log.Warn("no VITALIA_RPC_URL set, using in-process development registry")
	}

	adapter, err := chain.NewClient(transport, cfg.Contracts, chain.WithLogger(log))
	if err != nil {
		log.Error("chain client init failed", "error", err)
		return err
	}

	// Cache backend: Redis when configured, process memory otherwise.
	var cacheStore store.Store = store.NewMemoryStore()
	redisClient, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		log.Error("redis init failed", "error", err)
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		cacheStore = store.NewRedisStore(redisClient.Client, cfg.Redis.Retention)
		log.Info("using redis cache backend")
	}

	queries, err := query.NewClient(adapter, cacheStore,
		query.WithLogger(log),
		query.WithStalenessWindow(cfg.CacheTTL),
	)
	if err != nil {
		log.Error("query client init failed", "error", err)
		return err
	}

	// Operation journal: writes flow through a background worker, reads hit
	// the store directly.
	journalStore := oplog.NewMemoryStore()
	journalInbox := make(chan oplog.Event, 256)
	journalWorker := oplog.NewWorker(journalStore, journalInbox)
	go func() {
		if err := journalWorker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("journal worker stopped", "error", err)
		}
	}()

	tracker, err := txtrack.New(adapter,
		txtrack.WithLogger(log),
		txtrack.WithJournal(oplog.NewChannelPublisher(journalInbox)),
	)
	if err != nil {
		log.Error("tracker init failed", "error", err)
		return err
	}

	listingSvc, err := listings.NewService(adapter, queries, tracker, listings.WithLogger(log))
	if err != nil {
		log.Error("listing service init failed", "error", err)
		return err
	}
	profileSvc, err := profiles.NewService(adapter, queries, tracker, profiles.WithLogger(log))
	if err != nil {
		log.Error("profile service init failed", "error", err)
		return err
	}

	handler := httptransport.NewHandler(listingSvc, profileSvc, oplog.NewPublisher(journalStore),
		httptransport.WithLogger(log),
		httptransport.WithHealthCheck(func(r *http.Request) error {
			if redisClient != nil {
				return redisClient.Health(r.Context())
			}
			return nil
		}),
	)

	srv := httpserver.New(cfg.Addr, httptransport.NewRouter(handler))
	log.Info("starting vitalia data layer", "addr", cfg.Addr, "network", cfg.Network)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		log.Error("server error", "error", err)
		return err
	case <-ctx.Done():
	}

	if err := httpserver.Shutdown(srv); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		return err
	}
	tracker.Drain()
	queries.Drain()
	return nil
}
