package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/brokerflux/extension"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Print the extension descriptor",
	RunE:  runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	d, err := extension.ReadDescriptor(home())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "id:             %s\n", d.ID)
	fmt.Fprintf(out, "name:           %s\n", d.Name)
	fmt.Fprintf(out, "version:        %s\n", d.Version)
	fmt.Fprintf(out, "author:         %s\n", d.Author)
	fmt.Fprintf(out, "priority:       %d\n", d.Priority)
	fmt.Fprintf(out, "start-priority: %d\n", d.StartPriority)
	return nil
}
