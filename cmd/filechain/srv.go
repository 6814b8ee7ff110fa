package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"filechain/internal/blobstore"
	"filechain/internal/cache"
	"filechain/internal/config"
	"filechain/internal/server"
	"filechain/internal/store"
)

func newSrvCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "srv",
		Short: "Run the filechain API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg == nil {
				return fmt.Errorf("config not initialized")
			}
			if cfg.DBPath == "" {
				return fmt.Errorf("db path is required")
			}
			if cfg.DataDir == "" {
				return fmt.Errorf("data dir is required")
			}

			logger := slog.Default().With("component", "server")

			addr, err := server.ListenAddr(cfg.APIURL)
			if err != nil {
				return err
			}

			logger.Info("opening database", "path", cfg.DBPath)
			st, err := store.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer st.Close()

			logger.Info("opening content store", "path", cfg.DataDir)
			bs, err := blobstore.NewLocalCAS(cfg.DataDir)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			listings, err := openListingCache(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer listings.Close()

			srv, err := server.New(addr, st, bs, listings, server.Options{
				AdminToken:         cfg.AdminToken,
				MaxUploadBytes:     cfg.Uploads.MaxUploadBytes,
				MultipartMaxMemory: cfg.Uploads.MultipartMaxMemory,
				BcryptCost:         cfg.Credentials.BcryptCost,
				GCBatchSize:        cfg.GC.BatchSize,
				Version:            version,
			}, logger)
			if err != nil {
				return err
			}
			return srv.ListenAndServe(ctx)
		},
	}
}

func openListingCache(ctx context.Context, cfg *config.Config, logger *slog.Logger) (cache.ListingCache, error) {
	if cfg.Cache.RedisAddr == "" {
		return cache.Nop{}, nil
	}
	ttl := time.Duration(cfg.Cache.TTLSeconds) * time.Second
	logger.Info("connecting listing cache", "addr", cfg.Cache.RedisAddr, "ttl", ttl)
	listings, err := cache.NewRedis(ctx, cfg.Cache.RedisAddr, ttl)
	if err != nil {
		return nil, fmt.Errorf("connect redis listing cache: %w", err)
	}
	return listings, nil
}
