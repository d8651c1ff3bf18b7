package main

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/example/myxl-gateway/internal/ledger"
)

func ledgerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ledger",
		Short: "Konsumsi event pembelian dari Kafka dan catat ke Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			if len(cfg.Kafka.Brokers) == 0 {
				return errors.New("kafka.brokers wajib diisi untuk ledger")
			}
			if cfg.Ledger.DSN == "" {
				return errors.New("ledger.dsn wajib diisi")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			store, pool, err := ledger.Open(ctx, cfg.Ledger.DSN)
			if err != nil {
				return err
			}
			defer pool.Close()

			log = log.WithField("service", "purchase-ledger")
			w := ledger.NewWorker(ledger.NewReader(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID), store, log)
			defer w.Close()
			return w.Run(ctx)
		},
	}
}
