// Command rpcparamd serves the invoice command set over stdio or HTTP.
//
// Settings come from RPCPARAM_* environment variables and an optional YAML
// or TOML file named by RPCPARAM_CONFIG, which is watched for changes to
// log_level and developer.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ggoodman/rpcparam/config"
	"github.com/ggoodman/rpcparam/httprpc"
	"github.com/ggoodman/rpcparam/invoices"
	"github.com/ggoodman/rpcparam/rpcserver"
	"github.com/ggoodman/rpcparam/stdio"
	"github.com/ggoodman/rpcparam/storage"
	"github.com/ggoodman/rpcparam/storage/memory"
	"github.com/ggoodman/rpcparam/storage/redis"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "rpcparamd: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	level := new(slog.LevelVar)
	lvl, _ := cfg.Level()
	level.Set(lvl)
	// Stdout carries the protocol on the stdio transport; logs go to stderr,
	// and records logged while serving a stdio peer are also sent to it.
	logger := slog.New(stdio.LogHandler(
		slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}),
		level,
	))

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	srv := rpcserver.NewServer(
		rpcserver.WithLogger(logger),
		rpcserver.WithDeveloperChecks(cfg.Developer),
	)
	svc := invoices.New(store, invoices.WithLogger(logger))
	if err := srv.Register(svc.Commands()...); err != nil {
		return err
	}
	if err := srv.SelfCheck(ctx); err != nil {
		return fmt.Errorf("self-check: %w", err)
	}

	if cfg.File != "" {
		go func() {
			err := config.Watch(ctx, cfg, logger, func(next config.Config) {
				if l, err := next.Level(); err == nil {
					level.Set(l)
				}
				srv.SetDeveloperChecks(next.Developer)
			})
			if err != nil {
				logger.WarnContext(ctx, "rpcparamd.watch.fail", slog.String("err", err.Error()))
			}
		}()
	}

	logger.InfoContext(ctx, "rpcparamd.start",
		slog.String("transport", cfg.Transport),
		slog.String("store", cfg.Store),
		slog.Bool("developer", cfg.Developer),
	)

	switch cfg.Transport {
	case config.TransportHTTP:
		return serveHTTP(ctx, cfg, srv, logger)
	default:
		h := stdio.NewHandler(srv, stdio.WithLogger(logger), stdio.WithMaxMessageSize(int(cfg.MaxBodyBytes)))
		err := h.Serve(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
}

func openStore(ctx context.Context, cfg config.Config) (storage.Storage, error) {
	if cfg.Store == config.StoreRedis {
		s, err := redis.New(ctx, redis.Config{Addr: cfg.RedisAddr})
		if err != nil {
			return nil, fmt.Errorf("open redis store: %w", err)
		}
		return s, nil
	}
	s, err := memory.New(cfg.MemoryMaxItems)
	if err != nil {
		return nil, fmt.Errorf("open memory store: %w", err)
	}
	return s, nil
}

func serveHTTP(ctx context.Context, cfg config.Config, srv *rpcserver.Server, logger *slog.Logger) error {
	hs := &http.Server{
		Addr:              cfg.Listen,
		Handler:           httprpc.New(srv, httprpc.WithLogger(logger), httprpc.WithMaxBodyBytes(cfg.MaxBodyBytes)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- hs.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := hs.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
