package retrieval

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/BOSEON-SEO/CSAI/internal/inquiry"
)

// PGVectorConfig holds PostgreSQL corpus configuration.
type PGVectorConfig struct {
	DSN          string
	Table        string        // Default: corpus_entries
	Dimension    int           // Default: 768
	QueryTimeout time.Duration // Default: 5s
	Search       SearchConfig
}

// PGVectorCorpus searches a PostgreSQL table with the pgvector extension.
// Scoring matches MemoryCorpus: dense similarity is 1 - cosine distance and
// the lexical score is the fraction of query terms found in the entry text.
type PGVectorCorpus struct {
	db        *sql.DB
	table     string
	dimension int
	timeout   time.Duration
	search    SearchConfig
}

var tableNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// NewPGVectorCorpus opens the database and verifies connectivity.
func NewPGVectorCorpus(ctx context.Context, cfg PGVectorConfig) (*PGVectorCorpus, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres DSN is required")
	}
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	c, err := NewPGVectorCorpusFromDB(db, cfg)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, unavailable(ctx, "ping", err)
	}
	return c, nil
}

// NewPGVectorCorpusFromDB wraps an existing connection pool.
func NewPGVectorCorpusFromDB(db *sql.DB, cfg PGVectorConfig) (*PGVectorCorpus, error) {
	table := cfg.Table
	if table == "" {
		table = "corpus_entries"
	}
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid corpus table name %q", table)
	}
	dim := cfg.Dimension
	if dim <= 0 {
		dim = 768
	}
	timeout := cfg.QueryTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &PGVectorCorpus{
		db:        db,
		table:     table,
		dimension: dim,
		timeout:   timeout,
		search:    cfg.Search,
	}, nil
}

// EnsureSchema creates the extension, table and indexes when missing.
func (c *PGVectorCorpus) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id              UUID PRIMARY KEY,
			inquiry_id      TEXT NOT NULL UNIQUE,
			brand_channel   TEXT NOT NULL,
			category        TEXT NOT NULL DEFAULT '',
			title           TEXT NOT NULL DEFAULT '',
			content         TEXT NOT NULL DEFAULT '',
			answer_content  TEXT,
			product_name    TEXT,
			embedding_model TEXT NOT NULL DEFAULT '',
			embedding       vector(%d) NOT NULL,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, c.table, c.dimension),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_brand_category_idx ON %s (brand_channel, category)`, c.table, c.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_embedding_idx ON %s USING hnsw (embedding vector_cosine_ops)`, c.table, c.table),
	}
	for _, stmt := range stmts {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure corpus schema: %w", err)
		}
	}
	return nil
}

// Upsert inserts entries, replacing any existing entry with the same inquiry ID.
func (c *PGVectorCorpus) Upsert(ctx context.Context, entries []CorpusEntry) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, inquiry_id, brand_channel, category, title, content, answer_content, product_name, embedding_model, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (inquiry_id) DO UPDATE SET
			brand_channel = EXCLUDED.brand_channel,
			category = EXCLUDED.category,
			title = EXCLUDED.title,
			content = EXCLUDED.content,
			answer_content = EXCLUDED.answer_content,
			product_name = EXCLUDED.product_name,
			embedding_model = EXCLUDED.embedding_model,
			embedding = EXCLUDED.embedding,
			created_at = EXCLUDED.created_at`, c.table)

	for _, e := range entries {
		if len(e.Vector) != c.dimension {
			return fmt.Errorf("%w: expected %d, got %d for inquiry %s",
				ErrVectorDimensionMismatch, c.dimension, len(e.Vector), e.InquiryID)
		}
		if e.ID == uuid.Nil {
			e.ID = uuid.New()
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = time.Now()
		}
		if _, err := c.db.ExecContext(ctx, query,
			e.ID, e.InquiryID, string(e.BrandChannel), e.Category, e.Title, e.Content,
			nullString(e.AnswerContent), nullString(e.ProductName), e.EmbeddingModel,
			pgvector.NewVector(normalizeVector(e.Vector)), e.CreatedAt,
		); err != nil {
			return unavailable(ctx, "upsert", err)
		}
	}
	return nil
}

const entryColumns = `id, inquiry_id, brand_channel, category, title, content, answer_content, product_name, created_at`

// DenseSearch ranks entries by cosine similarity in SQL.
func (c *PGVectorCorpus) DenseSearch(ctx context.Context, vector []float32, filters Filters, limit int) ([]Match, error) {
	if err := filters.Validate(); err != nil {
		return nil, err
	}
	if len(vector) != c.dimension {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrVectorDimensionMismatch, c.dimension, len(vector))
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	query := fmt.Sprintf(`
		WITH scored AS (
			SELECT %s,
				GREATEST(0, LEAST(1, 1 - (embedding <=> $1)))::float8 AS dense
			FROM %s
			WHERE brand_channel = $2 AND ($3::text = '' OR category = $3::text)
		)
		SELECT %s, dense, 0::float8 AS lexical, dense AS score
		FROM scored
		WHERE dense >= $4
		ORDER BY score DESC, created_at DESC, id::text ASC
		LIMIT $5`, entryColumns, c.table, entryColumns)

	return c.query(ctx, "dense search", query,
		pgvector.NewVector(vector), string(filters.BrandChannel), filters.Category,
		c.search.MinDenseScore, limit)
}

// HybridSearch ranks entries by alpha*dense + (1-alpha)*lexical in SQL.
func (c *PGVectorCorpus) HybridSearch(ctx context.Context, q HybridQuery) ([]Match, error) {
	if err := q.Filters.Validate(); err != nil {
		return nil, err
	}
	if len(q.Vector) != c.dimension {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrVectorDimensionMismatch, c.dimension, len(q.Vector))
	}
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	query := fmt.Sprintf(`
		WITH scored AS (
			SELECT %s,
				GREATEST(0, LEAST(1, 1 - (embedding <=> $1)))::float8 AS dense,
				(
					SELECT count(*) FROM unnest($3::text[]) AS t(term)
					WHERE strpos(lower(title || ' ' || content || ' ' || coalesce(answer_content, '') || ' ' || coalesce(product_name, '')), t.term) > 0
				)::float8 / GREATEST(cardinality($3::text[]), 1) AS lexical
			FROM %s
			WHERE brand_channel = $4 AND ($5::text = '' OR category = $5::text)
		), blended AS (
			SELECT *, ($2::float8 * dense + (1 - $2::float8) * lexical) AS score FROM scored
		)
		SELECT %s, dense, lexical, score
		FROM blended
		WHERE score >= $6
		ORDER BY score DESC, created_at DESC, id::text ASC
		LIMIT $7`, entryColumns, c.table, entryColumns)

	return c.query(ctx, "hybrid search", query,
		pgvector.NewVector(q.Vector), clamp01(q.Alpha), pq.Array(QueryTerms(q.Keywords, q.Text)),
		string(q.Filters.BrandChannel), q.Filters.Category,
		c.search.MinHybridScore, limit)
}

func (c *PGVectorCorpus) query(ctx context.Context, op, query string, args ...any) ([]Match, error) {
	qctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	rows, err := c.db.QueryContext(qctx, query, args...)
	if err != nil {
		return nil, unavailable(ctx, op, err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var (
			m       Match
			brand   string
			answer  sql.NullString
			product sql.NullString
		)
		if err := rows.Scan(&m.Entry.ID, &m.Entry.InquiryID, &brand, &m.Entry.Category,
			&m.Entry.Title, &m.Entry.Content, &answer, &product, &m.Entry.CreatedAt,
			&m.Dense, &m.Lexical, &m.Score); err != nil {
			return nil, unavailable(ctx, op, err)
		}
		m.Entry.BrandChannel = inquiry.BrandChannel(brand)
		m.Entry.AnswerContent = answer.String
		m.Entry.ProductName = product.String
		m.Score = clamp01(m.Score)
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(ctx, op, err)
	}
	return matches, nil
}

// EmbeddingModels counts entries per embedding model.
func (c *PGVectorCorpus) EmbeddingModels(ctx context.Context) (map[string]int, error) {
	qctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	rows, err := c.db.QueryContext(qctx,
		fmt.Sprintf(`SELECT embedding_model, count(*) FROM %s GROUP BY embedding_model`, c.table))
	if err != nil {
		return nil, unavailable(ctx, "embedding models", err)
	}
	defer rows.Close()

	models := make(map[string]int)
	for rows.Next() {
		var (
			model string
			n     int
		)
		if err := rows.Scan(&model, &n); err != nil {
			return nil, unavailable(ctx, "embedding models", err)
		}
		models[model] = n
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(ctx, "embedding models", err)
	}
	return models, nil
}

// Close closes the connection pool.
func (c *PGVectorCorpus) Close() error {
	return c.db.Close()
}

// String describes the backend for logs.
func (c *PGVectorCorpus) String() string {
	return "pgvector:" + c.table
}

var (
	_ Corpus         = (*PGVectorCorpus)(nil)
	_ ModelInventory = (*PGVectorCorpus)(nil)
)
