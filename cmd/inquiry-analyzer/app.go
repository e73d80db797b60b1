package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/BOSEON-SEO/CSAI/internal/analysis"
	"github.com/BOSEON-SEO/CSAI/internal/cache"
	"github.com/BOSEON-SEO/CSAI/internal/confidence"
	"github.com/BOSEON-SEO/CSAI/internal/config"
	"github.com/BOSEON-SEO/CSAI/internal/embedding"
	"github.com/BOSEON-SEO/CSAI/internal/features"
	"github.com/BOSEON-SEO/CSAI/internal/monitoring"
	"github.com/BOSEON-SEO/CSAI/internal/observability"
	"github.com/BOSEON-SEO/CSAI/internal/retrieval"
)

// app owns the process-wide collaborators built from config. Everything it
// opens is closed by Close in reverse order.
type app struct {
	cfg      *config.Config
	logger   *observability.Logger
	registry *prometheus.Registry
	metrics  *observability.Metrics
	closers  []func() error
}

func newApp(ctx context.Context, cfg *config.Config, logger *observability.Logger) (*app, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	metrics, err := observability.NewMetrics(reg)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, registry: reg, metrics: metrics}

	if addr := cfg.Observability.MetricsAddr; addr != "" {
		a.serveMetrics(addr)
	}

	return a, nil
}

// serveMetrics exposes the registry on addr until Close.
func (a *app) serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		a.logger.Info().Str("addr", addr).Msg("Serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error().Err(err).Msg("Metrics listener failed")
		}
	}()

	a.closers = append(a.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	})
}

// Close releases everything the app opened.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn().Err(err).Msg("Close failed")
		}
	}
	a.closers = nil
}

func (a *app) tagger() (features.Tagger, error) {
	switch a.cfg.Tagger.Driver {
	case "http":
		return features.NewHTTPTagger(features.HTTPTaggerConfig{
			BaseURL: a.cfg.Tagger.BaseURL,
			Model:   a.cfg.Tagger.Model,
			Timeout: a.cfg.Tagger.Timeout,
		})
	default:
		return features.NewRuleTagger(), nil
	}
}

func (a *app) extractor() (*features.Extractor, error) {
	tagger, err := a.tagger()
	if err != nil {
		return nil, fmt.Errorf("create tagger: %w", err)
	}
	return features.NewExtractor(
		features.WithTagger(tagger),
		features.WithComplexity(a.cfg.Features),
		features.WithLogger(a.logger),
	), nil
}

// cacheClient returns nil when caching is disabled.
func (a *app) cacheClient(ctx context.Context) (cache.Client, error) {
	var (
		c   cache.Client
		err error
	)
	switch a.cfg.Cache.Driver {
	case "redis":
		c, err = cache.NewRedisClient(ctx, cache.RedisConfig{
			Addr:     a.cfg.Cache.Redis.Addr,
			Username: a.cfg.Cache.Redis.Username,
			Password: a.cfg.Cache.Redis.Password,
			DB:       a.cfg.Cache.Redis.DB,
			PoolSize: a.cfg.Cache.Redis.PoolSize,
			Prefix:   a.cfg.Cache.Redis.Prefix,
			TLS:      a.cfg.Cache.Redis.TLS,
		})
	case "memory":
		c, err = cache.NewMemoryClient(a.cfg.Cache.MaxEntries)
	default:
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("create %s cache: %w", a.cfg.Cache.Driver, err)
	}
	a.closers = append(a.closers, c.Close)
	return c, nil
}

func (a *app) embedder(ctx context.Context) (embedding.Embedder, error) {
	var base embedding.Embedder
	switch a.cfg.Embedding.Driver {
	case "hash":
		base = embedding.NewHashEmbedder(a.cfg.Embedding.Dimension)
	default:
		client, err := embedding.NewClient(embedding.Config{
			APIKey:    a.cfg.Embedding.APIKey,
			Model:     a.cfg.Embedding.Model,
			BaseURL:   a.cfg.Embedding.BaseURL,
			Dimension: a.cfg.Embedding.Dimension,
			Timeout:   a.cfg.Embedding.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("create embedding client: %w", err)
		}
		base = client
	}

	c, err := a.cacheClient(ctx)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return base, nil
	}
	return embedding.NewCachedEmbedder(base, c, a.cfg.Cache.TTL, a.logger), nil
}

func (a *app) corpus(ctx context.Context) (retrieval.Corpus, error) {
	switch a.cfg.Corpus.Adapter {
	case "pgvector":
		pg, err := a.pgvector(ctx)
		if err != nil {
			return nil, err
		}
		return pg, nil
	default:
		mem := retrieval.NewMemoryCorpus(a.cfg.Embedding.Dimension, a.cfg.Corpus.Search)
		if a.cfg.Corpus.SnapshotPath == "" {
			a.logger.Warn().Msg("No corpus snapshot configured, every inquiry will escalate")
			return mem, nil
		}

		db, err := retrieval.OpenSnapshot(a.cfg.Corpus.SnapshotPath)
		if err != nil {
			return nil, err
		}
		defer db.Close()

		n, err := retrieval.LoadSnapshot(ctx, db, mem)
		if err != nil {
			return nil, fmt.Errorf("load corpus snapshot: %w", err)
		}
		a.logger.Info().
			Str("path", a.cfg.Corpus.SnapshotPath).
			Int("entries", n).
			Msg("Loaded corpus snapshot")
		return mem, nil
	}
}

func (a *app) pgvector(ctx context.Context) (*retrieval.PGVectorCorpus, error) {
	pg, err := retrieval.NewPGVectorCorpus(ctx, retrieval.PGVectorConfig{
		DSN:          a.cfg.Corpus.Postgres.DSN,
		Table:        a.cfg.Corpus.Postgres.Table,
		Dimension:    a.cfg.Embedding.Dimension,
		QueryTimeout: a.cfg.Corpus.Postgres.QueryTimeout,
		Search:       a.cfg.Corpus.Search,
	})
	if err != nil {
		return nil, fmt.Errorf("connect corpus: %w", err)
	}
	a.closers = append(a.closers, pg.Close)
	return pg, nil
}

// analyzer wires the full pipeline. It verifies the embedding model and
// refuses a corpus indexed with a different one.
func (a *app) analyzer(ctx context.Context) (*analysis.Analyzer, error) {
	extractor, err := a.extractor()
	if err != nil {
		return nil, err
	}

	embedder, err := a.embedder(ctx)
	if err != nil {
		return nil, err
	}

	if err := analysis.CheckModel(ctx, embedder); err != nil {
		return nil, err
	}

	corpus, err := a.corpus(ctx)
	if err != nil {
		return nil, err
	}

	if inv, ok := corpus.(retrieval.ModelInventory); ok {
		guard := monitoring.NewEmbeddingGuard(a.logger, embedder.Model())
		if err := guard.PreventMixedModelQueries(ctx, inv); err != nil {
			return nil, &analysis.Error{Kind: analysis.KindModelLoadFailure, Stage: analysis.StageStartup, Err: err}
		}
	}

	return analysis.NewAnalyzer(
		extractor,
		embedder,
		corpus,
		confidence.NewEvaluator(a.cfg.Confidence),
		analysis.WithLogger(a.logger),
		analysis.WithMetrics(a.metrics),
		analysis.WithConfig(a.cfg.Analysis),
	), nil
}
