package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/errandplan/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration file",
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "configuration OK: %d errands, %d places, horizon %d days\n",
		len(cfg.Errands), len(cfg.Places), cfg.Planning.HorizonDays)
	return nil
}
