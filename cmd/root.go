package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/brokerflux/app"
	"github.com/kilianp07/brokerflux/config"
	"github.com/kilianp07/brokerflux/infra/logger"
)

var (
	cfgPath  string
	homePath string
)

var rootCmd = &cobra.Command{
	Use:   "brokerflux",
	Short: "Forward MQTT broker metrics to InfluxDB",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Mirror broker $SYS metrics and report them to InfluxDB",
	RunE:  run,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&homePath, "home", "H", "", "extension home folder (overrides the runtime configuration)")
	runCmd.Flags().StringVarP(&cfgPath, "config", "c", "config.yaml", "runtime configuration file")
	rootCmd.AddCommand(runCmd)
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

func run(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if homePath != "" {
		cfg.Home = homePath
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
	}()
	return svc.Run(ctx)
}

func home() string {
	if homePath == "" {
		return "."
	}
	return homePath
}
