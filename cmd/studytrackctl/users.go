package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newPingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check service health",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := rest().R().Get("/api/ping")
			if err := check(resp, err); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, resp.String())
			return nil
		},
	}
}

func newListUsersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List known users",
		RunE: func(cmd *cobra.Command, args []string) error {
			var users []string
			resp, err := rest().R().SetResult(&users).Get("/api/users")
			if err := check(resp, err); err != nil {
				return err
			}
			for _, u := range users {
				_, _ = fmt.Fprintln(os.Stdout, u)
			}
			return nil
		},
	}
}

func newInitUserCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-user USERNAME",
		Short: "Create a user's data directory and empty stores",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := rest().R().Post("/api/init-user/" + args[0])
			if err := check(resp, err); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, resp.String())
			return nil
		},
	}
}

func newRemoveUserCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "remove-user USERNAME",
		Short: "Delete a user and all of their data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("removal is irreversible; re-run with --yes to confirm")
			}
			resp, err := rest().R().Delete("/api/user/" + args[0])
			if err := check(resp, err); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, resp.String())
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm destructive removal")
	return cmd
}
