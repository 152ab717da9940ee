package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stormsignal/strike-alert/internal/model"
)

var locationUpdateCmd = &cobra.Command{
	Use:   "update <location-id>",
	Short: "Partially update an existing location",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		locationID := args[0]

		var patch model.LocationPatch
		flags := cmd.Flags()
		if flags.Changed("zip") {
			v, _ := flags.GetString("zip")
			patch.ZipCode = &v
		}
		if flags.Changed("lat") {
			v, _ := flags.GetFloat64("lat")
			patch.Latitude = &v
		}
		if flags.Changed("lon") {
			v, _ := flags.GetFloat64("lon")
			patch.Longitude = &v
		}
		if flags.Changed("city") {
			v, _ := flags.GetString("city")
			patch.City = &v
		}
		if flags.Changed("state") {
			v, _ := flags.GetString("state")
			patch.State = &v
		}
		if flags.Changed("active") {
			v, _ := flags.GetBool("active")
			patch.IsActive = &v
		}

		if patch.Empty() {
			return eris.Wrap(model.ErrValidation, "location: no fields to update")
		}

		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		loc, err := env.Store.UpdateLocation(cmd.Context(), locationID, patch)
		if err != nil {
			return err
		}

		zap.L().Info("location updated", zap.String("location_id", locationID))
		return printJSON(loc)
	},
}

func init() {
	locationUpdateCmd.Flags().String("zip", "", "ZIP code")
	locationUpdateCmd.Flags().Float64("lat", 0, "latitude")
	locationUpdateCmd.Flags().Float64("lon", 0, "longitude")
	locationUpdateCmd.Flags().String("city", "", "city")
	locationUpdateCmd.Flags().String("state", "", "state")
	locationUpdateCmd.Flags().Bool("active", false, "active flag")
	locationCmd.AddCommand(locationUpdateCmd)
}
