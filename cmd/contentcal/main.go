package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"contentcal/internal/config"
	appLog "contentcal/internal/log"
)

var version = "0.1.0-dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "contentcal",
	Short: "Content calendar backend",
	Long: `contentcal serves month, week, day and agenda views over the content
operations API, with drag rescheduling, calendar notes and iCalendar
feed overlays.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "./config.yaml", "Path to config file")
	rootCmd.AddCommand(serveCmd, agendaCmd)
}

// loadConfig reads the config file and initializes logging from it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", configPath, err)
	}
	if err := appLog.Init(appLog.Options{
		Level:     appLog.ParseLevel(cfg.Log.Level),
		SentryDSN: cfg.Log.SentryDSN,
		Env:       cfg.Log.Env,
		Release:   "contentcal@" + version,
	}); err != nil {
		appLog.Warn("sentry init failed, continuing without it", "err", err)
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
