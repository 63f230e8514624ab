package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/opptrack/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/opptrack/internal/core/domain"
	"github.com/custodia-labs/opptrack/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.Store = (*Store)(nil)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const metaEmbeddingDimensions = "embedding_dimensions"

// Store is the SQLite persistence gateway. Every multi-row write runs
// in one transaction.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (and migrates) the database in dataDir.
// If dataDir is empty, defaults to ~/.opptrack/data.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".opptrack", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "opptrack.db")

	// WAL lets readers proceed while a stage commit is in flight.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// SchedulerStore returns a SchedulerStore backed by this database.
func (s *Store) SchedulerStore() driven.SchedulerStore {
	return &schedulerStore{db: s.db}
}

// migrate runs all pending up migrations in version order.
func (s *Store) migrate(fsys fs.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if name := entry.Name(); strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}

	return nil
}

// withTx runs fn in a transaction, committing if it returns nil.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// ==================== Documents ====================

const documentColumns = `id, name, source_ref, content_hash, industry, outcome, status, checkpoint,
	version, page_count, failure, created_at, updated_at`

// CreateDocument stores a new document.
func (s *Store) CreateDocument(ctx context.Context, doc *domain.Document) error {
	failure, err := encodeFailure(doc.Failure)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (`+documentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, doc.ID, doc.Name, doc.SourceRef, doc.ContentHash, doc.Industry, string(doc.Outcome),
		string(doc.Status), string(doc.Checkpoint), doc.Version, doc.PageCount, failure,
		formatTime(doc.CreatedAt), formatTime(doc.UpdatedAt))
	if err != nil {
		return fmt.Errorf("creating document: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("document %s exists: %w", doc.ID, domain.ErrInvalidInput)
	}
	return nil
}

// GetDocument retrieves a document by ID.
func (s *Store) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	return scanDocument(row)
}

// FindDocumentByHash returns the document with hash in industry.
func (s *Store) FindDocumentByHash(ctx context.Context, hash, industry string) (*domain.Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+documentColumns+` FROM documents
		WHERE content_hash = ? AND industry = ?
		ORDER BY created_at LIMIT 1
	`, hash, industry)
	return scanDocument(row)
}

// CountDocumentsByHash counts documents sharing hash.
func (s *Store) CountDocumentsByHash(ctx context.Context, hash string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents WHERE content_hash = ?", hash).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return n, nil
}

// ListDocuments returns documents, newest first.
func (s *Store) ListDocuments(ctx context.Context, opts driven.ListOptions) ([]domain.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE 1 = 1`
	var args []any
	if opts.Status != "" {
		query += " AND status = ?"
		args = append(args, string(opts.Status))
	}
	if opts.Industry != "" {
		query += " AND industry = ?"
		args = append(args, opts.Industry)
	}
	query += " ORDER BY created_at DESC, id"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}
	return s.queryDocuments(ctx, query, args...)
}

// ListResumable returns unfinished documents, oldest first.
func (s *Store) ListResumable(ctx context.Context, includeFailed bool) ([]domain.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE status NOT IN (?, ?) ORDER BY created_at, id`
	args := []any{string(domain.StatusDone), string(domain.StatusFailed)}
	if includeFailed {
		args[1] = string(domain.StatusDone)
	}
	return s.queryDocuments(ctx, query, args...)
}

func (s *Store) queryDocuments(ctx context.Context, query string, args ...any) ([]domain.Document, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document //nolint:prealloc // size unknown from query
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return docs, nil
}

// UpdateDocument stores a state change.
func (s *Store) UpdateDocument(ctx context.Context, doc *domain.Document) error {
	return updateDocument(ctx, s.db, doc)
}

// execer is the subset of *sql.DB and *sql.Tx used by shared writers.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func updateDocument(ctx context.Context, db execer, doc *domain.Document) error {
	failure, err := encodeFailure(doc.Failure)
	if err != nil {
		return err
	}

	res, err := db.ExecContext(ctx, `
		UPDATE documents SET
			name = ?, industry = ?, outcome = ?, status = ?, checkpoint = ?,
			version = ?, page_count = ?, failure = ?, updated_at = ?
		WHERE id = ?
	`, doc.Name, doc.Industry, string(doc.Outcome), string(doc.Status), string(doc.Checkpoint),
		doc.Version, doc.PageCount, failure, formatTime(doc.UpdatedAt), doc.ID)
	if err != nil {
		return fmt.Errorf("updating document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating document: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// CommitStage stores a stage output together with the document state.
// Replacing chunks discards the document's embeddings.
func (s *Store) CommitStage(ctx context.Context, c domain.StageCommit) error {
	if c.Document == nil {
		return fmt.Errorf("commit without document: %w", domain.ErrInvalidInput)
	}
	id := c.Document.ID

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := updateDocument(ctx, tx, c.Document); err != nil {
			return err
		}

		if c.Pages != nil {
			if err := replacePages(ctx, tx, id, c.Pages); err != nil {
				return err
			}
		}
		if c.Chunks != nil {
			if err := replaceChunks(ctx, tx, id, c.Chunks); err != nil {
				return err
			}
		}
		if c.Embeddings != nil {
			if err := replaceEmbeddings(ctx, tx, id, c.Embeddings); err != nil {
				return err
			}
		}
		return nil
	})
}

func replacePages(ctx context.Context, tx *sql.Tx, documentID string, pages []domain.Page) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM pages WHERE document_id = ?", documentID); err != nil {
		return fmt.Errorf("clearing pages: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO pages (document_id, page_index, text, method, confidence, char_count,
			glyph_ratio, area, low_yield, empty)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, p := range pages {
		if _, err := stmt.ExecContext(ctx, documentID, p.Index, p.Text, string(p.Method), p.Confidence,
			p.CharCount, p.GlyphRatio, p.Area, boolToInt(p.LowYield), boolToInt(p.Empty)); err != nil {
			return fmt.Errorf("saving page %d: %w", p.Index, err)
		}
	}
	return nil
}

func replaceChunks(ctx context.Context, tx *sql.Tx, documentID string, chunks []domain.Chunk) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM embeddings WHERE document_id = ?", documentID); err != nil {
		return fmt.Errorf("clearing embeddings: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", documentID); err != nil {
		return fmt.Errorf("clearing chunks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, document_id, page_index, position, content, start_offset, end_offset, overlap)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		if _, err := stmt.ExecContext(ctx, c.ID, documentID, c.PageIndex, c.Position, c.Content,
			c.StartOffset, c.EndOffset, c.Overlap); err != nil {
			return fmt.Errorf("saving chunk %d: %w", c.Position, err)
		}
	}
	return nil
}

func replaceEmbeddings(ctx context.Context, tx *sql.Tx, documentID string, embeddings []domain.Embedding) error {
	dims, err := embeddingDimensions(ctx, tx)
	if err != nil {
		return err
	}
	for _, e := range embeddings {
		if dims == 0 {
			dims = len(e.Vector)
		}
		if len(e.Vector) != dims {
			return fmt.Errorf("got %d, want %d: %w", len(e.Vector), dims, domain.ErrDimensionMismatch)
		}
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM embeddings WHERE document_id = ?", documentID); err != nil {
		return fmt.Errorf("clearing embeddings: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO embeddings (chunk_id, document_id, position, vector, dimensions, model, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for i, e := range embeddings {
		if _, err := stmt.ExecContext(ctx, e.ChunkID, documentID, i, float32SliceToBytes(e.Vector),
			len(e.Vector), e.Model, formatTime(e.CreatedAt)); err != nil {
			return fmt.Errorf("saving embedding for %s: %w", e.ChunkID, err)
		}
	}

	if len(embeddings) > 0 {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO store_meta (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO NOTHING
		`, metaEmbeddingDimensions, strconv.Itoa(dims)); err != nil {
			return fmt.Errorf("recording dimensions: %w", err)
		}
	}
	return nil
}

// DeleteDocument removes a document, its outputs and its contribution.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents WHERE id = ?", id).Scan(&exists); err != nil {
			return fmt.Errorf("checking document: %w", err)
		}
		if exists == 0 {
			return domain.ErrNotFound
		}

		c, err := scanContribution(tx.QueryRowContext(ctx, `SELECT `+contributionColumns+`
			FROM contributions WHERE document_id = ?`, id))
		switch {
		case errors.Is(err, domain.ErrNotFound):
		case err != nil:
			return err
		default:
			ins, err := scanInsight(tx.QueryRowContext(ctx, `SELECT `+insightColumns+`
				FROM insights WHERE industry = ?`, c.Industry))
			if err != nil && !errors.Is(err, domain.ErrNotFound) {
				return err
			}
			if ins != nil {
				ins.Aggregate.Sub(c.Aggregate)
				ins.Revision++
				if err := upsertInsight(ctx, tx, ins); err != nil {
					return err
				}
			}
		}

		// Pages, chunks, embeddings and the contribution cascade.
		if _, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id); err != nil {
			return fmt.Errorf("deleting document: %w", err)
		}
		return nil
	})
}

// GetPages returns a document's pages by index.
func (s *Store) GetPages(ctx context.Context, documentID string) ([]domain.Page, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT document_id, page_index, text, method, confidence, char_count, glyph_ratio, area, low_yield, empty
		FROM pages WHERE document_id = ?
		ORDER BY page_index
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying pages: %w", err)
	}
	defer rows.Close()

	var pages []domain.Page //nolint:prealloc // size unknown from query
	for rows.Next() {
		var p domain.Page
		var method string
		var lowYield, empty int
		if err := rows.Scan(&p.DocumentID, &p.Index, &p.Text, &method, &p.Confidence, &p.CharCount,
			&p.GlyphRatio, &p.Area, &lowYield, &empty); err != nil {
			return nil, fmt.Errorf("scanning page: %w", err)
		}
		p.Method = domain.ExtractionMethod(method)
		p.LowYield = lowYield == 1
		p.Empty = empty == 1
		pages = append(pages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating pages: %w", err)
	}
	return pages, nil
}

// GetChunks returns a document's chunks by position.
func (s *Store) GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, page_index, position, content, start_offset, end_offset, overlap
		FROM chunks WHERE document_id = ?
		ORDER BY position
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		var c domain.Chunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.PageIndex, &c.Position, &c.Content,
			&c.StartOffset, &c.EndOffset, &c.Overlap); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return chunks, nil
}

// GetEmbeddings returns a document's embeddings in chunk order.
func (s *Store) GetEmbeddings(ctx context.Context, documentID string) ([]domain.Embedding, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT chunk_id, vector, model, created_at
		FROM embeddings WHERE document_id = ?
		ORDER BY position
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying embeddings: %w", err)
	}
	defer rows.Close()

	var out []domain.Embedding //nolint:prealloc // size unknown from query
	for rows.Next() {
		var e domain.Embedding
		var blob []byte
		var createdAt string
		if err := rows.Scan(&e.ChunkID, &blob, &e.Model, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning embedding: %w", err)
		}
		e.Vector = bytesToFloat32Slice(blob)
		e.CreatedAt = parseTime(createdAt)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating embeddings: %w", err)
	}
	return out, nil
}

// EmbeddingDimensions returns the vector size fixed by the first write.
func (s *Store) EmbeddingDimensions(ctx context.Context) (int, error) {
	return embeddingDimensions(ctx, s.db)
}

func embeddingDimensions(ctx context.Context, db execer) (int, error) {
	var value string
	err := db.QueryRowContext(ctx, "SELECT value FROM store_meta WHERE key = ?", metaEmbeddingDimensions).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading dimensions: %w", err)
	}
	dims, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("parsing dimensions %q: %w", value, err)
	}
	return dims, nil
}

// ==================== Insights ====================

const insightColumns = `industry, aggregate, revision, updated_at`

const contributionColumns = `document_id, industry, version, aggregate, centroid, outcome, excerpt, applied_at`

// GetInsight retrieves an industry insight.
func (s *Store) GetInsight(ctx context.Context, industry string) (*domain.Insight, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+insightColumns+` FROM insights WHERE industry = ?`, industry)
	return scanInsight(row)
}

// ListInsights returns non-empty insights by document count.
func (s *Store) ListInsights(ctx context.Context, limit int) ([]domain.Insight, error) {
	query := `SELECT ` + insightColumns + ` FROM insights WHERE documents > 0 ORDER BY documents DESC, industry`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying insights: %w", err)
	}
	defer rows.Close()

	var out []domain.Insight //nolint:prealloc // size unknown from query
	for rows.Next() {
		ins, err := scanInsight(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ins)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating insights: %w", err)
	}
	return out, nil
}

// GetContribution returns a document's applied contribution.
func (s *Store) GetContribution(ctx context.Context, documentID string) (*domain.Contribution, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+contributionColumns+` FROM contributions WHERE document_id = ?`, documentID)
	return scanContribution(row)
}

// ListContributions returns an industry's contributions by document ID.
func (s *Store) ListContributions(ctx context.Context, industry string) ([]domain.Contribution, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+contributionColumns+` FROM contributions
		WHERE industry = ?
		ORDER BY document_id
	`, industry)
	if err != nil {
		return nil, fmt.Errorf("querying contributions: %w", err)
	}
	defer rows.Close()

	var out []domain.Contribution //nolint:prealloc // size unknown from query
	for rows.Next() {
		c, err := scanContribution(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating contributions: %w", err)
	}
	return out, nil
}

// CommitAggregation applies an aggregation if no revision has moved.
func (s *Store) CommitAggregation(ctx context.Context, c domain.AggregationCommit) error {
	if c.Document == nil || c.Insight == nil || c.Contribution == nil {
		return fmt.Errorf("incomplete aggregation commit: %w", domain.ErrInvalidInput)
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := checkRevision(ctx, tx, c.Insight.Industry, c.ExpectedRevision); err != nil {
			return err
		}
		if c.Retracted != nil {
			if err := checkRevision(ctx, tx, c.Retracted.Industry, c.RetractedExpectedRevision); err != nil {
				return err
			}
		}

		if err := updateDocument(ctx, tx, c.Document); err != nil {
			return err
		}
		if err := upsertInsight(ctx, tx, c.Insight); err != nil {
			return err
		}
		if c.Retracted != nil {
			if err := upsertInsight(ctx, tx, c.Retracted); err != nil {
				return err
			}
		}
		return upsertContribution(ctx, tx, c.Contribution)
	})
}

// ReplaceInsight overwrites an insight.
func (s *Store) ReplaceInsight(ctx context.Context, insight *domain.Insight) error {
	return upsertInsight(ctx, s.db, insight)
}

func checkRevision(ctx context.Context, tx *sql.Tx, industry string, expected int64) error {
	var revision int64
	err := tx.QueryRowContext(ctx, "SELECT revision FROM insights WHERE industry = ?", industry).Scan(&revision)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("reading revision: %w", err)
	}
	if revision != expected {
		return fmt.Errorf("%q at revision %d, expected %d: %w", industry, revision, expected, domain.ErrAggregationConflict)
	}
	return nil
}

func upsertInsight(ctx context.Context, db execer, ins *domain.Insight) error {
	agg, err := json.Marshal(ins.Aggregate)
	if err != nil {
		return fmt.Errorf("marshalling aggregate: %w", err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO insights (industry, documents, aggregate, revision, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(industry) DO UPDATE SET
			documents = excluded.documents,
			aggregate = excluded.aggregate,
			revision = excluded.revision,
			updated_at = excluded.updated_at
	`, ins.Industry, ins.Aggregate.Documents, string(agg), ins.Revision, formatTime(ins.UpdatedAt))
	if err != nil {
		return fmt.Errorf("saving insight: %w", err)
	}
	return nil
}

func upsertContribution(ctx context.Context, tx *sql.Tx, c *domain.Contribution) error {
	agg, err := json.Marshal(c.Aggregate)
	if err != nil {
		return fmt.Errorf("marshalling aggregate: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO contributions (`+contributionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(document_id) DO UPDATE SET
			industry = excluded.industry,
			version = excluded.version,
			aggregate = excluded.aggregate,
			centroid = excluded.centroid,
			outcome = excluded.outcome,
			excerpt = excluded.excerpt,
			applied_at = excluded.applied_at
	`, c.DocumentID, c.Industry, c.Version, string(agg), float32SliceToBytes(c.Centroid),
		string(c.Outcome), c.Excerpt, formatTime(c.AppliedAt))
	if err != nil {
		return fmt.Errorf("saving contribution: %w", err)
	}
	return nil
}

// ==================== Helper Functions ====================

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var outcome, status, checkpoint, createdAt, updatedAt string
	var failure sql.NullString

	if err := row.Scan(&doc.ID, &doc.Name, &doc.SourceRef, &doc.ContentHash, &doc.Industry,
		&outcome, &status, &checkpoint, &doc.Version, &doc.PageCount, &failure,
		&createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}

	doc.Outcome = domain.Outcome(outcome)
	doc.Status = domain.Status(status)
	doc.Checkpoint = domain.Status(checkpoint)
	doc.CreatedAt = parseTime(createdAt)
	doc.UpdatedAt = parseTime(updatedAt)

	if failure.Valid && failure.String != "" {
		var f domain.Failure
		if err := json.Unmarshal([]byte(failure.String), &f); err != nil {
			return nil, fmt.Errorf("unmarshaling failure: %w", err)
		}
		doc.Failure = &f
	}
	return &doc, nil
}

func scanInsight(row rowScanner) (*domain.Insight, error) {
	var ins domain.Insight
	var agg, updatedAt string

	if err := row.Scan(&ins.Industry, &agg, &ins.Revision, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning insight: %w", err)
	}
	if err := json.Unmarshal([]byte(agg), &ins.Aggregate); err != nil {
		return nil, fmt.Errorf("unmarshaling aggregate: %w", err)
	}
	ins.UpdatedAt = parseTime(updatedAt)
	return &ins, nil
}

func scanContribution(row rowScanner) (*domain.Contribution, error) {
	var c domain.Contribution
	var agg, outcome, appliedAt string
	var centroid []byte

	if err := row.Scan(&c.DocumentID, &c.Industry, &c.Version, &agg, &centroid,
		&outcome, &c.Excerpt, &appliedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning contribution: %w", err)
	}
	if err := json.Unmarshal([]byte(agg), &c.Aggregate); err != nil {
		return nil, fmt.Errorf("unmarshaling aggregate: %w", err)
	}
	c.Centroid = bytesToFloat32Slice(centroid)
	c.Outcome = domain.Outcome(outcome)
	c.AppliedAt = parseTime(appliedAt)
	return &c, nil
}

func encodeFailure(f *domain.Failure) (any, error) {
	if f == nil {
		return nil, nil
	}
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("marshalling failure: %w", err)
	}
	return string(data), nil
}

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
