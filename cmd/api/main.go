// Command api runs the thin read API described in spec.md §6, a
// non-core HTTP surface over internal/store. Grounded on
// cmd/xchainserver/main.go's single-responsibility mux server pattern.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/synnergy-labs/shardindexer/internal/api"
	"github.com/synnergy-labs/shardindexer/internal/config"
	"github.com/synnergy-labs/shardindexer/internal/store"
	"github.com/synnergy-labs/shardindexer/pkg/utils"
)

const shutdownTimeout = 10 * time.Second

func main() {
	log := logrus.StandardLogger()

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("load configuration")
	}

	ctx := context.Background()
	s, err := store.Connect(ctx, cfg.DatabaseURL, int32(cfg.DBPoolMaxConns), log)
	if err != nil {
		log.WithError(err).Fatal("connect to database")
	}
	defer s.Close()

	addr := utils.EnvOrDefault("API_ADDR", ":8080")
	srv := api.NewServer(addr, s, log)

	go func() {
		log.WithField("addr", addr).Info("read api listening")
		if err := srv.Start(); err != nil {
			log.WithError(err).Error("api server stopped")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("api server shutdown")
	}
}
