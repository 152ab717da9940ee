package main

import (
	"os"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/stormsignal/strike-alert/internal/model"
)

// strikeFeed is the YAML shape accepted by strikes ingest.
type strikeFeed struct {
	Strikes []struct {
		Latitude  float64   `yaml:"latitude"`
		Longitude float64   `yaml:"longitude"`
		Timestamp time.Time `yaml:"timestamp"`
		Intensity float64   `yaml:"intensity"`
	} `yaml:"strikes"`
}

var strikesIngestCmd = &cobra.Command{
	Use:   "ingest <feed.yaml>",
	Short: "Ingest a batch of strikes from a YAML feed",
	Long:  "Records every strike in the feed and fans out notifications. A strike that fails validation is logged and skipped; it does not stop the batch.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrap(err, "strikes: read feed")
		}

		var feed strikeFeed
		if err := yaml.Unmarshal(data, &feed); err != nil {
			return eris.Wrap(err, "strikes: parse feed")
		}
		if len(feed.Strikes) == 0 {
			zap.L().Info("feed is empty, nothing to do")
			return nil
		}

		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		concurrency, _ := cmd.Flags().GetInt("concurrency")

		var ingested, skipped, notified atomic.Int64

		g, ctx := errgroup.WithContext(cmd.Context())
		g.SetLimit(concurrency)

		for _, raw := range feed.Strikes {
			raw := raw
			g.Go(func() error {
				ts := raw.Timestamp
				if ts.IsZero() {
					ts = time.Now().UTC()
				}

				strike, err := env.Store.CreateStrike(ctx, model.Strike{
					Latitude:  raw.Latitude,
					Longitude: raw.Longitude,
					Timestamp: ts.UTC(),
					Intensity: raw.Intensity,
				})
				if err != nil {
					skipped.Add(1)
					zap.L().Warn("skipping strike",
						zap.Float64("latitude", raw.Latitude),
						zap.Float64("longitude", raw.Longitude),
						zap.Error(err),
					)
					return nil
				}
				ingested.Add(1)

				notifs, err := env.Ledger.RecordMatches(ctx, *strike, cfg.Alert.RadiusMiles)
				if err != nil {
					zap.L().Error("matching failed for strike",
						zap.String("strike_id", strike.ID),
						zap.Error(err),
					)
					return nil
				}
				notified.Add(int64(len(notifs)))
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return eris.Wrap(err, "strikes: ingest")
		}

		zap.L().Info("feed ingested",
			zap.Int64("ingested", ingested.Load()),
			zap.Int64("skipped", skipped.Load()),
			zap.Int64("notifications", notified.Load()),
		)
		return nil
	},
}

func init() {
	strikesIngestCmd.Flags().Int("concurrency", 4, "parallel strike workers")
	strikesCmd.AddCommand(strikesIngestCmd)
}
