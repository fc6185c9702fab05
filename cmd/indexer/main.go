// Command indexer is the ingestion entrypoint: one cobra root with `run`,
// `migrate`, and `status` subcommands, following the teacher's rootCmd +
// AddCommand layout (cmd/synnergy/main.go) and the original's
// Worker::new(pool, client, sync_opts) construction order.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/synnergy-labs/shardindexer/internal/chainlinker"
	"github.com/synnergy-labs/shardindexer/internal/config"
	"github.com/synnergy-labs/shardindexer/internal/metrics"
	"github.com/synnergy-labs/shardindexer/internal/migrate"
	"github.com/synnergy-labs/shardindexer/internal/nodeclient"
	"github.com/synnergy-labs/shardindexer/internal/processor"
	"github.com/synnergy-labs/shardindexer/internal/store"
	"github.com/synnergy-labs/shardindexer/internal/worker"
	"github.com/synnergy-labs/shardindexer/pkg/utils"
)

func main() {
	rootCmd := &cobra.Command{Use: "indexer"}
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(statusCmd())
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			return migrate.Run(cfg.DatabaseURL, logrus.StandardLogger())
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "print the configured processor's checkpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logrus.StandardLogger()
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			ctx := context.Background()
			s, err := store.Connect(ctx, cfg.DatabaseURL, int32(cfg.DBPoolMaxConns), log)
			if err != nil {
				return fmt.Errorf("connect to database: %w", err)
			}
			defer s.Close()

			ts, err := s.GetLastTimestamp(ctx, cfg.Processor.Name())
			if err != nil {
				return fmt.Errorf("read checkpoint: %w", err)
			}
			fmt.Printf("%s: last_timestamp=%d\n", cfg.Processor.Name(), ts)
			return nil
		},
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "run the configured processor's ingestion loop until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndexer()
		},
	}
}

// runIndexer mirrors Worker::new's construction order from
// original_source/src/worker.rs: database pool first, then node client,
// then sync options, then the Worker itself.
func runIndexer() error {
	log := logrus.StandardLogger()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := migrate.Run(cfg.DatabaseURL, log); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	s, err := store.Connect(ctx, cfg.DatabaseURL, int32(cfg.DBPoolMaxConns), log)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer s.Close()

	var limiter *rate.Limiter
	if cfg.PollRateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.PollRateLimit), 1)
	}
	client := nodeclient.NewForNetwork(cfg.Network, cfg.CustomNodeURL, nil, limiter)

	proc := buildProcessor(cfg.Processor, s, log)
	linker := chainlinker.New(s, client, cfg.GroupNum, log)

	m := metrics.New()
	metricsAddr := utils.EnvOrDefault("METRICS_ADDR", ":9090")
	metricsSrv := m.StartServer(metricsAddr, log)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = m.Shutdown(shutdownCtx, metricsSrv)
	}()

	w := worker.New(s, client, proc, linker, cfg.Sync, cfg.ReorgWindow, m, log)

	log.WithFields(logrus.Fields{
		"processor": proc.Name(),
		"network":   cfg.Environment,
	}).Info("starting indexer")

	err = w.Run(ctx)
	if err != nil && ctx.Err() != nil {
		log.Info("indexer shutting down")
		return nil
	}
	return err
}

func buildProcessor(pc config.ProcessorConfig, s *store.Store, log *logrus.Logger) processor.Processor {
	switch pc.Kind {
	case config.BlockProcessor:
		return processor.NewBlockProcessor(s, log)
	case config.EventProcessor:
		return processor.NewEventProcessor(s, log)
	case config.TransactionProcessor:
		return processor.NewTransactionProcessor(s, log)
	case config.BlockEventProcessor:
		return processor.NewBlockEventProcessor(s, log)
	case config.LendingContractProcessor:
		return processor.NewLendingContractProcessor(s, log, pc.ContractAddress)
	default:
		return processor.NewDefaultProcessor(s, log)
	}
}
