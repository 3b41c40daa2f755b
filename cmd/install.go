package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/brokerflux/extension"
)

var (
	installSrc  string
	installDest string
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Copy an extension folder into a broker extensions directory",
	RunE:  runInstall,
}

func init() {
	installCmd.Flags().StringVar(&installSrc, "src", ".", "extension folder to install")
	installCmd.Flags().StringVar(&installDest, "dest", "extensions", "broker extensions directory")
	rootCmd.AddCommand(installCmd)
}

func runInstall(cmd *cobra.Command, args []string) error {
	dest, err := extension.Install(installSrc, installDest)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "installed to %s\n", dest)
	return err
}
