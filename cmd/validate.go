package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/brokerflux/config"
	"github.com/kilianp07/brokerflux/infra/influx"
	"github.com/kilianp07/brokerflux/infra/logger"
)

// ErrInvalidConfig is returned when the extension configuration is rejected.
var ErrInvalidConfig = errors.New("invalid configuration")

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the extension configuration and print the effective settings",
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

type validateOutput struct {
	Sender string `json:"sender"`
	config.Settings
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg := config.NewConfig(home(), logger.New("configuration"))
	if err := cfg.Load(); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	out, err := json.MarshalIndent(validateOutput{Sender: influx.SenderType(cfg), Settings: cfg.Settings()}, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return err
}
