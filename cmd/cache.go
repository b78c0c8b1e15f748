package main

import (
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/airtable-api/internal/store"
)

var cacheOlderThan time.Duration

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Maintain the persistent geocode cache",
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete geocode cache entries older than the TTL",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		age := cacheOlderThan
		if age == 0 {
			age = cfg.Cache.GeocodeTTL()
		}

		st, err := store.Open(ctx, cfg.Store, cfg.Cache.GeocodeTTL())
		if err != nil {
			return eris.Wrap(err, "cache prune")
		}
		if st == nil {
			zap.L().Info("no persistent geocode cache configured, nothing to prune")
			return nil
		}
		defer st.Close() //nolint:errcheck

		n, err := st.Prune(ctx, time.Now().Add(-age))
		if err != nil {
			return eris.Wrap(err, "cache prune")
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "pruned %d entries older than %s\n", n, age)
		return nil
	},
}

func init() {
	cachePruneCmd.Flags().DurationVar(&cacheOlderThan, "older-than", 0, "maximum entry age (default geocode TTL)")
	cacheCmd.AddCommand(cachePruneCmd)
	rootCmd.AddCommand(cacheCmd)
}
