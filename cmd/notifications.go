package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/stormsignal/strike-alert/internal/model"
)

var notificationsCmd = &cobra.Command{
	Use:   "notifications",
	Short: "Inspect the notification ledger",
}

var notificationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List notifications for a user, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetString("user")
		if userID == "" {
			return eris.Wrap(model.ErrValidation, "notifications: --user is required")
		}

		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		notifs, err := env.Ledger.ListForUser(cmd.Context(), userID)
		if err != nil {
			return err
		}

		return printJSON(notifs)
	},
}

var notificationsPendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List notifications awaiting delivery, oldest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		notifs, err := env.Ledger.ListPending(cmd.Context())
		if err != nil {
			return err
		}

		return printJSON(notifs)
	},
}

func init() {
	notificationsListCmd.Flags().String("user", "", "user id")
	notificationsCmd.AddCommand(notificationsListCmd)
	notificationsCmd.AddCommand(notificationsPendingCmd)
	rootCmd.AddCommand(notificationsCmd)
}
