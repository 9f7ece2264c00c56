package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Basbat-net/Study-Enforcer/internal/model"
)

func newDumpLogsCmd() *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "logs USERNAME",
		Short: "Dump a user's interval log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var entries []model.LogEntry
			resp, err := rest().R().SetResult(&entries).Get("/api/logs/" + args[0])
			if err := check(resp, err); err != nil {
				return err
			}
			if raw {
				data, err := json.MarshalIndent(entries, "", "  ")
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(os.Stdout, string(data))
				return nil
			}
			var activeMs, inactiveMs int64
			for _, e := range entries {
				switch e.Type {
				case model.LogTypeActive:
					activeMs += e.Duration
				case model.LogTypeInactive:
					inactiveMs += e.Duration
				}
				_, _ = fmt.Fprintf(os.Stdout, "%-8s  %13d  %13d  %10dms\n", e.Type, e.Timestamp, e.EndTimestamp, e.Duration)
			}
			_, _ = fmt.Fprintf(os.Stdout, "%d entries, active %dms, inactive %dms\n", len(entries), activeMs, inactiveMs)
			return nil
		},
	}
	cmd.Flags().BoolVar(&raw, "json", false, "Print entries as JSON")
	return cmd
}

func newClearLogsCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear-logs USERNAME",
		Short: "Delete a user's interval log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("clearing is irreversible; re-run with --yes to confirm")
			}
			resp, err := rest().R().Delete("/api/logs/" + args[0])
			if err := check(resp, err); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, resp.String())
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm destructive clear")
	return cmd
}
