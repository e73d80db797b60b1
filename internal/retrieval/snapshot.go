package retrieval

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/BOSEON-SEO/CSAI/internal/inquiry"
)

// snapshotSchema is the SQLite layout of an exported corpus snapshot.
const snapshotSchema = `
CREATE TABLE IF NOT EXISTS corpus_entries (
	id              TEXT PRIMARY KEY,
	inquiry_id      TEXT NOT NULL UNIQUE,
	brand_channel   TEXT NOT NULL,
	category        TEXT NOT NULL DEFAULT '',
	title           TEXT NOT NULL DEFAULT '',
	content         TEXT NOT NULL DEFAULT '',
	answer_content  TEXT,
	product_name    TEXT,
	embedding_model TEXT NOT NULL DEFAULT '',
	embedding       TEXT NOT NULL,
	created_at      TIMESTAMP NOT NULL
)`

// OpenSnapshot opens a SQLite corpus snapshot read-only.
func OpenSnapshot(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	return db, nil
}

// CreateSnapshot opens a SQLite corpus snapshot for writing and creates the
// schema when missing.
func CreateSnapshot(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	if err := EnsureSnapshotSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// EnsureSnapshotSchema creates the snapshot table when missing.
func EnsureSnapshotSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, snapshotSchema); err != nil {
		return fmt.Errorf("create snapshot schema: %w", err)
	}
	return nil
}

// SaveSnapshot writes entries into a snapshot database in one transaction.
func SaveSnapshot(ctx context.Context, db *sql.DB, entries []CorpusEntry) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO corpus_entries
			(id, inquiry_id, brand_channel, category, title, content, answer_content, product_name, embedding_model, embedding, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare snapshot insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if e.ID == uuid.Nil {
			e.ID = uuid.New()
		}
		vec, err := json.Marshal(e.Vector)
		if err != nil {
			return fmt.Errorf("marshal vector for %s: %w", e.InquiryID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			e.ID.String(), e.InquiryID, string(e.BrandChannel), e.Category, e.Title, e.Content,
			nullString(e.AnswerContent), nullString(e.ProductName), e.EmbeddingModel, string(vec), e.CreatedAt.UTC(),
		); err != nil {
			return fmt.Errorf("insert snapshot entry %s: %w", e.InquiryID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot reads every snapshot entry into dst and returns how many were loaded.
func LoadSnapshot(ctx context.Context, db *sql.DB, dst *MemoryCorpus) (int, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, inquiry_id, brand_channel, category, title, content,
		       answer_content, product_name, embedding_model, embedding, created_at
		FROM corpus_entries
		ORDER BY created_at`)
	if err != nil {
		return 0, fmt.Errorf("query snapshot: %w", err)
	}
	defer rows.Close()

	var entries []CorpusEntry
	for rows.Next() {
		var (
			e         CorpusEntry
			id, brand string
			answer    sql.NullString
			product   sql.NullString
			vec       string
			createdAt time.Time
		)
		if err := rows.Scan(&id, &e.InquiryID, &brand, &e.Category, &e.Title, &e.Content,
			&answer, &product, &e.EmbeddingModel, &vec, &createdAt); err != nil {
			return 0, fmt.Errorf("scan snapshot row: %w", err)
		}
		if e.ID, err = uuid.Parse(id); err != nil {
			return 0, fmt.Errorf("snapshot entry %s: invalid id: %w", e.InquiryID, err)
		}
		if err := json.Unmarshal([]byte(vec), &e.Vector); err != nil {
			return 0, fmt.Errorf("snapshot entry %s: invalid embedding: %w", e.InquiryID, err)
		}
		e.BrandChannel = inquiry.BrandChannel(brand)
		e.AnswerContent = answer.String
		e.ProductName = product.String
		e.CreatedAt = createdAt
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterate snapshot: %w", err)
	}

	if err := dst.Insert(ctx, entries); err != nil {
		return 0, err
	}
	return len(entries), nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
