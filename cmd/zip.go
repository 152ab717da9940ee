package main

import (
	"github.com/spf13/cobra"
)

var zipCmd = &cobra.Command{
	Use:   "zip <zip-code>",
	Short: "Resolve a ZIP code to city, state, and coordinates",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Zip.Lookup(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		return printJSON(res)
	},
}

func init() {
	rootCmd.AddCommand(zipCmd)
}
