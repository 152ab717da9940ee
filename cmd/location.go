package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/stormsignal/strike-alert/internal/model"
)

var locationCmd = &cobra.Command{
	Use:   "location",
	Short: "Manage user alert locations",
}

var locationGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Show a user's active location",
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetString("user")
		if userID == "" {
			return eris.Wrap(model.ErrValidation, "location: --user is required")
		}

		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		loc, err := env.Store.GetActiveLocation(cmd.Context(), userID)
		if err != nil {
			return err
		}
		if loc == nil {
			return eris.Wrapf(model.ErrNotFound, "location: no active location for user %s", userID)
		}

		return printJSON(loc)
	},
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	locationGetCmd.Flags().String("user", "", "user id")
	locationCmd.AddCommand(locationGetCmd)
	rootCmd.AddCommand(locationCmd)
}
