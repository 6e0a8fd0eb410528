package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

// SQLiteLexicalIndex implements LexicalIndex using an in-memory SQLite FTS5
// table. Text is run through Prepare before it reaches FTS5, so documents and
// queries share one stop list and stemmer.
type SQLiteLexicalIndex struct {
	mu        sync.RWMutex
	db        *sql.DB
	config    LexicalConfig
	closed    bool
	stopWords map[string]struct{}
}

var _ LexicalIndex = (*SQLiteLexicalIndex)(nil)

// NewSQLiteLexicalIndex creates an empty in-memory FTS5 index.
func NewSQLiteLexicalIndex(config LexicalConfig) (*SQLiteLexicalIndex, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every :memory: connection is its own database, so pin the pool to one.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA synchronous = OFF",
		"PRAGMA cache_size = -16384",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	idx := &SQLiteLexicalIndex{
		db:        db,
		config:    config,
		stopWords: BuildStopWordMap(config.StopWords),
	}

	if err := idx.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return idx, nil
}

func (s *SQLiteLexicalIndex) initSchema() error {
	schema := `
	-- doc_id is stored but not searchable; title and body are weighted
	-- separately through bm25() column weights.
	CREATE VIRTUAL TABLE IF NOT EXISTS fts_docs USING fts5(
		doc_id UNINDEXED,
		title,
		body,
		tokenize='unicode61'
	);

	CREATE TABLE IF NOT EXISTS doc_ids (
		doc_id TEXT PRIMARY KEY
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Index adds documents to the index. An existing ID is replaced.
func (s *SQLiteLexicalIndex) Index(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// FTS5 virtual tables don't support REPLACE, so delete first.
	deleteStmt, err := tx.PrepareContext(ctx, `DELETE FROM fts_docs WHERE doc_id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare delete statement: %w", err)
	}
	defer deleteStmt.Close()

	insertStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO fts_docs(doc_id, title, body) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare FTS statement: %w", err)
	}
	defer insertStmt.Close()

	idStmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO doc_ids(doc_id) VALUES (?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare ID statement: %w", err)
	}
	defer idStmt.Close()

	for _, doc := range docs {
		title := strings.Join(PrepareWith(doc.Title, s.stopWords), " ")
		body := strings.Join(PrepareWith(doc.Text, s.stopWords), " ")

		if _, err := deleteStmt.ExecContext(ctx, doc.ID); err != nil {
			return fmt.Errorf("failed to delete existing document %s: %w", doc.ID, err)
		}
		if _, err := insertStmt.ExecContext(ctx, doc.ID, title, body); err != nil {
			return fmt.Errorf("failed to index document %s: %w", doc.ID, err)
		}
		if _, err := idStmt.ExecContext(ctx, doc.ID); err != nil {
			return fmt.Errorf("failed to track document ID %s: %w", doc.ID, err)
		}
	}

	return tx.Commit()
}

// Search returns documents matching any query term, best BM25 first.
func (s *SQLiteLexicalIndex) Search(ctx context.Context, queryStr string, limit int) ([]Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}
	if limit <= 0 {
		return []Hit{}, nil
	}

	terms := PrepareWith(queryStr, s.stopWords)
	if len(terms) == 0 {
		return []Hit{}, nil
	}

	// bm25() takes one weight per column: doc_id, title, body.
	// It returns negative values where lower is better.
	query := fmt.Sprintf(`
		SELECT doc_id, bm25(fts_docs, 0.0, %f, 1.0) AS score
		FROM fts_docs
		WHERE fts_docs MATCH ?
		ORDER BY score, rowid
		LIMIT ?
	`, s.titleBoost())

	rows, err := s.db.QueryContext(ctx, query, matchExpression(terms), limit)
	if err != nil {
		// FTS5 rejects some match expressions outright; treat as no results.
		if strings.Contains(err.Error(), "fts5:") || strings.Contains(err.Error(), "syntax error") {
			return []Hit{}, nil
		}
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer rows.Close()

	results := make([]Hit, 0, limit)
	for rows.Next() {
		var docID string
		var score float64
		if err := rows.Scan(&docID, &score); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		results = append(results, Hit{DocID: docID, Score: -score})
	}

	return results, rows.Err()
}

// Count returns the number of indexed documents.
func (s *SQLiteLexicalIndex) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0
	}

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM doc_ids`).Scan(&count); err != nil {
		return 0
	}
	return count
}

// Close releases the database. Closing twice is a no-op.
func (s *SQLiteLexicalIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *SQLiteLexicalIndex) titleBoost() float64 {
	if s.config.TitleBoost <= 0 {
		return 1.0
	}
	return s.config.TitleBoost
}

// matchExpression ORs the quoted terms so a document matching any of them
// is a candidate, as BM25 expects.
func matchExpression(terms []string) string {
	seen := make(map[string]struct{}, len(terms))
	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		quoted = append(quoted, `"`+strings.ReplaceAll(t, `"`, `""`)+`"`)
	}
	return strings.Join(quoted, " OR ")
}
