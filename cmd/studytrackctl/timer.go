package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Basbat-net/Study-Enforcer/internal/model"
)

func newShowTimerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "timer USERNAME",
		Short: "Show a user's persisted timer state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var state model.TimerState
			resp, err := rest().R().SetResult(&state).Get("/api/timer-state/" + args[0])
			if err := check(resp, err); err != nil {
				return err
			}
			data, err := json.MarshalIndent(state, "", "  ")
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
}

func newClearTimerCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear-timer USERNAME",
		Short: "Delete a user's persisted timer state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("clearing is irreversible; re-run with --yes to confirm")
			}
			resp, err := rest().R().Delete("/api/timer-state/" + args[0])
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
