package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var deliverCmd = &cobra.Command{
	Use:   "deliver",
	Short: "Run the notification delivery worker",
	Long:  "Attempts every pending notification once. With --loop, keeps running passes on the configured interval until interrupted.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		loop, _ := cmd.Flags().GetBool("loop")
		if loop {
			interval := time.Duration(cfg.Delivery.IntervalSecs) * time.Second
			zap.L().Info("delivery worker running", zap.Duration("interval", interval))
			return env.Worker.RunLoop(ctx, interval)
		}

		res, err := env.Worker.RunPass(ctx)
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

func init() {
	deliverCmd.Flags().Bool("loop", false, "run continuously")
	rootCmd.AddCommand(deliverCmd)
}
