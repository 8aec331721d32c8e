package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/errandplan/app"
	"github.com/kilianp07/errandplan/config"
	"github.com/kilianp07/errandplan/core/agenda"
	"github.com/kilianp07/errandplan/pkg/export"
)

var planFormat string

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Run one planning pass and print the agenda",
	RunE:  runPlan,
}

func init() {
	planCmd.Flags().StringVarP(&planFormat, "format", "f", "json", "output format: json, csv or ics")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	// One-shot run: nothing to announce, nothing to scrape, and the usage
	// KPIs must not double-count days a running service already recorded.
	cfg.Trigger.MQTTEnabled = false
	cfg.Metrics.Sinks = nil
	cfg.KPI = config.KPIConfig{Backend: "memory"}

	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	res, err := svc.PlanOnce(ctx)
	if err != nil {
		return err
	}

	entries := svc.Agenda.List(agenda.Filter{})
	out := cmd.OutOrStdout()
	switch planFormat {
	case "json":
		err = export.WriteJSON(out, entries)
	case "csv":
		err = export.WriteCSV(out, entries)
	case "ics":
		err = export.WriteICS(out, entries)
	default:
		return fmt.Errorf("unknown format %q", planFormat)
	}
	if err != nil {
		return err
	}

	for _, u := range res.Unschedulable {
		fmt.Fprintf(cmd.ErrOrStderr(), "unschedulable: %s on %s: %s\n",
			u.Instance.DefinitionID, u.Instance.Date.Format("2006-01-02"), u.Reason)
	}
	return nil
}
