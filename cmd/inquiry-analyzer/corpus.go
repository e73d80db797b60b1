package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/BOSEON-SEO/CSAI/internal/embedding"
	"github.com/BOSEON-SEO/CSAI/internal/retrieval"
)

// newCorpusCmd creates the corpus subcommand group.
func newCorpusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "corpus",
		Short: "Manage the corpus of answered inquiries",
	}
	cmd.AddCommand(newCorpusMigrateCmd())
	cmd.AddCommand(newCorpusIndexCmd())
	return cmd
}

func newCorpusMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the corpus schema",
		Long: `Migrate creates the pgvector extension, table and indexes for the
pgvector adapter, or the snapshot table for the memory adapter.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			target, err := migrateCorpus(ctx, a)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "✓ Corpus schema ready on %s\n", target)
			return nil
		},
	}
}

func migrateCorpus(ctx context.Context, a *app) (string, error) {
	if a.cfg.Corpus.Adapter == "pgvector" {
		pg, err := a.pgvector(ctx)
		if err != nil {
			return "", err
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			return "", err
		}
		return pg.String(), nil
	}

	if a.cfg.Corpus.SnapshotPath == "" {
		return "", fmt.Errorf("corpus snapshot_path is required for the memory adapter")
	}
	db, err := retrieval.CreateSnapshot(ctx, a.cfg.Corpus.SnapshotPath)
	if err != nil {
		return "", err
	}
	return a.cfg.Corpus.SnapshotPath, db.Close()
}

func newCorpusIndexCmd() *cobra.Command {
	var (
		input     string
		batchSize int
	)

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Embed answered inquiries and store them in the corpus",
		Long: `Index reads a JSON array of corpus entries (inquiry_id, brand_channel,
category, title, content, answer_content, product_name, created_at), embeds
each entry and upserts it into the configured corpus: the pgvector table, or
the SQLite snapshot loaded by the memory adapter.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			rc, err := openInput(input, cmd.InOrStdin())
			if err != nil {
				return err
			}
			defer rc.Close()

			var entries []retrieval.CorpusEntry
			if err := decodeOneOrMany(rc, &entries); err != nil {
				return fmt.Errorf("decode corpus entries: %w", err)
			}

			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			embedder, err := a.embedder(ctx)
			if err != nil {
				return err
			}

			start := time.Now()
			if err := embedEntries(ctx, embedder, entries, batchSize); err != nil {
				return err
			}

			if err := storeEntries(ctx, a, entries); err != nil {
				return err
			}

			logger.Info().
				Int("entries", len(entries)).
				Str("model", embedder.Model()).
				Dur("duration", time.Since(start)).
				Msg("Corpus indexed")

			if outputJSON {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
					"indexed": len(entries),
					"adapter": a.cfg.Corpus.Adapter,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Indexed %d entries into the %s corpus\n", len(entries), a.cfg.Corpus.Adapter)
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "-", "JSON file of corpus entries, - for stdin")
	cmd.Flags().IntVar(&batchSize, "batch-size", 32, "entries per embedding request")

	return cmd
}

// entryText is the text embedded for a corpus entry.
func entryText(e retrieval.CorpusEntry) string {
	return strings.TrimSpace(e.Title + "\n" + e.Content)
}

// embedEntries fills Vector for every entry, batchSize texts per request.
func embedEntries(ctx context.Context, e embedding.Embedder, entries []retrieval.CorpusEntry, batchSize int) error {
	if batchSize <= 0 {
		batchSize = 32
	}
	for start := 0; start < len(entries); start += batchSize {
		end := min(start+batchSize, len(entries))

		texts := make([]string, 0, end-start)
		for _, entry := range entries[start:end] {
			texts = append(texts, entryText(entry))
		}

		vectors, err := e.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed entries %d-%d: %w", start, end-1, err)
		}
		for i, v := range vectors {
			entries[start+i].Vector = v
			entries[start+i].EmbeddingModel = e.Model()
		}
	}
	return nil
}

func storeEntries(ctx context.Context, a *app, entries []retrieval.CorpusEntry) error {
	now := time.Now().UTC()
	for i := range entries {
		if entries[i].CreatedAt.IsZero() {
			entries[i].CreatedAt = now
		}
	}

	if a.cfg.Corpus.Adapter == "pgvector" {
		pg, err := a.pgvector(ctx)
		if err != nil {
			return err
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			return err
		}
		return pg.Upsert(ctx, entries)
	}

	if a.cfg.Corpus.SnapshotPath == "" {
		return fmt.Errorf("corpus snapshot_path is required for the memory adapter")
	}
	db, err := retrieval.CreateSnapshot(ctx, a.cfg.Corpus.SnapshotPath)
	if err != nil {
		return err
	}
	defer db.Close()

	// Reject entries the memory adapter would refuse when loading the snapshot.
	mem := retrieval.NewMemoryCorpus(a.cfg.Embedding.Dimension, a.cfg.Corpus.Search)
	if err := mem.Insert(ctx, entries); err != nil {
		return err
	}
	return retrieval.SaveSnapshot(ctx, db, entries)
}
