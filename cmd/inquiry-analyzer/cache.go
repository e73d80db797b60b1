package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BOSEON-SEO/CSAI/internal/cache"
	"github.com/BOSEON-SEO/CSAI/internal/embedding"
)

var errCacheDisabled = errors.New("cache driver is none")

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the embedding cache",
	}
	cmd.AddCommand(newCachePurgeCmd())
	return cmd
}

func newCachePurgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Remove all cached embeddings",
		Long: `Purge deletes every memoized embedding from the configured cache.
Run it after switching embedding models to reclaim space held by vectors
the new model will never read.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			c, err := a.cacheClient(ctx)
			if err != nil {
				return err
			}
			n, err := purgeEmbeddings(ctx, c)
			if err != nil {
				return err
			}

			logger.Info().Int("removed", n).Str("driver", cfg.Cache.Driver).Msg("Embedding cache purged")
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Removed %d cached embeddings\n", n)
			return nil
		},
	}
}

func purgeEmbeddings(ctx context.Context, c cache.Client) (int, error) {
	if c == nil {
		return 0, errCacheDisabled
	}
	n, err := c.Purge(ctx, embedding.CacheNamespace+":")
	if err != nil {
		return n, fmt.Errorf("purge embedding cache: %w", err)
	}
	return n, nil
}
