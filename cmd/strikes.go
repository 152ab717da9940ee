package main

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stormsignal/strike-alert/internal/model"
)

var strikesCmd = &cobra.Command{
	Use:   "strikes",
	Short: "Ingest and query lightning strikes",
}

var strikesCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Record one lightning strike and notify nearby users",
	RunE: func(cmd *cobra.Command, args []string) error {
		lat, _ := cmd.Flags().GetFloat64("lat")
		lon, _ := cmd.Flags().GetFloat64("lon")
		intensity, _ := cmd.Flags().GetFloat64("intensity")
		when, _ := cmd.Flags().GetString("time")

		ts := time.Now().UTC()
		if when != "" {
			parsed, err := time.Parse(time.RFC3339, when)
			if err != nil {
				return eris.Wrap(err, "strikes: parse --time")
			}
			ts = parsed.UTC()
		}

		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		ctx := cmd.Context()
		strike, err := env.Store.CreateStrike(ctx, model.Strike{
			Latitude:  lat,
			Longitude: lon,
			Timestamp: ts,
			Intensity: intensity,
		})
		if err != nil {
			return err
		}

		notifs, err := env.Ledger.RecordMatches(ctx, *strike, cfg.Alert.RadiusMiles)
		if err != nil {
			return err
		}

		zap.L().Info("strike recorded",
			zap.String("strike_id", strike.ID),
			zap.Int("notified", len(notifs)),
		)
		return printJSON(strike)
	},
}

func init() {
	strikesCreateCmd.Flags().Float64("lat", 0, "strike latitude")
	strikesCreateCmd.Flags().Float64("lon", 0, "strike longitude")
	strikesCreateCmd.Flags().Float64("intensity", 0, "strike intensity (kA)")
	strikesCreateCmd.Flags().String("time", "", "strike time, RFC 3339 (default now)")
	strikesCmd.AddCommand(strikesCreateCmd)
	rootCmd.AddCommand(strikesCmd)
}
