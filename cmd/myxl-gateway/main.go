// cmd/myxl-gateway/main.go
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/example/myxl-gateway/internal/config"
)

var Version = "dev"

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:          "myxl-gateway",
		Short:        "Web gateway untuk login OTP, cek kuota dan beli paket MyXL",
		Version:      Version,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "myxl-gateway.yaml", "path file konfigurasi YAML (opsional)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(ledgerCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the config and configures the standard logrus logger.
func loadConfig() (*config.Config, *logrus.Entry, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if err := setupLogger(logrus.StandardLogger(), cfg.Log); err != nil {
		return nil, nil, err
	}
	return cfg, logrus.WithField("service", "myxl-gateway"), nil
}

func setupLogger(l *logrus.Logger, c config.Log) error {
	lvl, err := logrus.ParseLevel(c.Level)
	if err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	l.SetLevel(lvl)
	switch strings.ToLower(c.Format) {
	case "", "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	case "text":
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("log.format %q: want json or text", c.Format)
	}
	return nil
}
