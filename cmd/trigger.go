package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var triggerAt string

var triggerCmd = &cobra.Command{
	Use:   "trigger",
	Short: "Run one trigger cycle and print its report",
	RunE:  runTrigger,
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Reset the completion state of every batch",
	RunE:  runSweep,
}

func init() {
	triggerCmd.Flags().StringVar(&triggerAt, "at", "", "cycle instant as RFC3339 (default now)")
	rootCmd.AddCommand(triggerCmd, sweepCmd)
}

func parseAt(s string, now time.Time) (time.Time, error) {
	if s == "" {
		return now, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("--at: %w", err)
	}
	return t, nil
}

func runTrigger(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	at, err := parseAt(triggerAt, time.Now())
	if err != nil {
		return err
	}
	svc, err := newService()
	if err != nil {
		return err
	}
	defer closeService(svc)
	rep, err := svc.Trigger.RunCycle(ctx, at)
	if perr := printJSON(cmd.OutOrStdout(), rep); perr != nil {
		return perr
	}
	return err
}

func runSweep(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := newService()
	if err != nil {
		return err
	}
	defer closeService(svc)
	n, err := svc.Sweeper.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d batches reset\n", n)
	return nil
}
