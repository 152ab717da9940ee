package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stormsignal/strike-alert/internal/model"
)

var locationSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Set a user's active location from a ZIP code",
	Long:  "Resolves the ZIP code to coordinates and makes it the user's single active alert location, replacing any previous one.",
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetString("user")
		zip, _ := cmd.Flags().GetString("zip")
		if userID == "" || zip == "" {
			return eris.Wrap(model.ErrValidation, "location: --user and --zip are required")
		}

		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		ctx := cmd.Context()
		res, err := env.Zip.Lookup(ctx, zip)
		if err != nil {
			return eris.Wrapf(err, "location: resolve zip %s", zip)
		}

		loc, err := env.Store.SetActiveLocation(ctx, model.Location{
			UserID:    userID,
			ZipCode:   res.ZipCode,
			Latitude:  res.Latitude,
			Longitude: res.Longitude,
			City:      res.City,
			State:     res.State,
		})
		if err != nil {
			return err
		}

		zap.L().Info("active location set",
			zap.String("user_id", userID),
			zap.String("zip", res.ZipCode),
			zap.String("city", res.City),
			zap.String("state", res.State),
		)
		return printJSON(loc)
	},
}

func init() {
	locationSetCmd.Flags().String("user", "", "user id")
	locationSetCmd.Flags().String("zip", "", "US ZIP code (ZIP+4 accepted)")
	locationCmd.AddCommand(locationSetCmd)
}
