package main

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/stormsignal/strike-alert/internal/model"
)

var strikesNearbyCmd = &cobra.Command{
	Use:   "nearby",
	Short: "List recent strikes near a user's active location",
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetString("user")
		if userID == "" {
			return eris.Wrap(model.ErrValidation, "strikes: --user is required")
		}

		radius := cfg.Alert.RadiusMiles
		if cmd.Flags().Changed("radius") {
			radius, _ = cmd.Flags().GetFloat64("radius")
		}

		lookback := lookbackDuration()
		if cmd.Flags().Changed("lookback-hours") {
			hours, _ := cmd.Flags().GetInt("lookback-hours")
			lookback = time.Duration(hours) * time.Hour
		}

		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		strikes, err := env.Matcher.NearbyStrikes(cmd.Context(), userID, radius, lookback)
		if err != nil {
			return err
		}

		return printJSON(strikes)
	},
}

func init() {
	strikesNearbyCmd.Flags().String("user", "", "user id")
	strikesNearbyCmd.Flags().Float64("radius", 0, "radius in miles (default from config)")
	strikesNearbyCmd.Flags().Int("lookback-hours", 0, "lookback window in hours (default from config)")
	strikesCmd.AddCommand(strikesNearbyCmd)
}
