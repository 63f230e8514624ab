package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/custodia-labs/opptrack/internal/adapters/driven/storage/postgres/migrations"
	"github.com/custodia-labs/opptrack/internal/core/domain"
	"github.com/custodia-labs/opptrack/internal/core/ports/driven"
	"github.com/custodia-labs/opptrack/internal/logger"
)

// Ensure Store implements the interface.
var _ driven.Store = (*Store)(nil)

const metaEmbeddingDimensions = "embedding_dimensions"

// psql builds statements with $n placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Config holds pool settings.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	DialTimeout     time.Duration
}

// DefaultConfig returns pool settings for dsn.
func DefaultConfig(dsn string) Config {
	return Config{
		DSN:             dsn,
		MaxConns:        10,
		MinConns:        1,
		MaxConnLifetime: 30 * time.Minute,
		MaxConnIdleTime: 5 * time.Minute,
		DialTimeout:     5 * time.Second,
	}
}

// Store is the Postgres persistence gateway.
type Store struct {
	pool *pgxpool.Pool
}

// querier is satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NewStore connects to Postgres and applies pending migrations.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pc.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	pc.ConnConfig.RuntimeParams["application_name"] = "opptrack"

	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.migrate(ctx, migrations.FS); err != nil {
		pool.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	logger.Debug("postgres: connected to %s", pc.ConnConfig.Host)
	return s, nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// SchedulerStore returns a SchedulerStore backed by this database.
func (s *Store) SchedulerStore() driven.SchedulerStore {
	return &schedulerStore{pool: s.pool}
}

// migrate runs pending up migrations, each in its own transaction.
func (s *Store) migrate(ctx context.Context, fsys fs.FS) error {
	if _, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`); err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var current int
	if err := s.pool.QueryRow(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
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
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil || version <= current {
			continue
		}
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
			_, err := tx.Exec(ctx, string(content))
			return err
		}); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}
	return nil
}

// ==================== Documents ====================

var documentColumns = []string{
	"id", "name", "source_ref", "content_hash", "industry", "outcome", "status", "checkpoint",
	"version", "page_count", "failure", "created_at", "updated_at",
}

// CreateDocument stores a new document.
func (s *Store) CreateDocument(ctx context.Context, doc *domain.Document) error {
	failure, err := encodeFailure(doc.Failure)
	if err != nil {
		return err
	}
	query, args, err := psql.Insert("documents").
		Columns(documentColumns...).
		Values(doc.ID, doc.Name, doc.SourceRef, doc.ContentHash, doc.Industry, string(doc.Outcome),
			string(doc.Status), string(doc.Checkpoint), doc.Version, doc.PageCount, failure,
			doc.CreatedAt, doc.UpdatedAt).
		Suffix("ON CONFLICT (id) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert: %w", err)
	}

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("creating document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("document %s exists: %w", doc.ID, domain.ErrInvalidInput)
	}
	return nil
}

// GetDocument retrieves a document by ID.
func (s *Store) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	return s.getDocument(ctx, psql.Select(documentColumns...).From("documents").Where(sq.Eq{"id": id}))
}

// FindDocumentByHash returns the document with hash in industry.
func (s *Store) FindDocumentByHash(ctx context.Context, hash, industry string) (*domain.Document, error) {
	return s.getDocument(ctx, psql.Select(documentColumns...).From("documents").
		Where(sq.Eq{"content_hash": hash, "industry": industry}).
		OrderBy("created_at").
		Limit(1))
}

func (s *Store) getDocument(ctx context.Context, b sq.SelectBuilder) (*domain.Document, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select: %w", err)
	}
	return scanDocument(s.pool.QueryRow(ctx, query, args...))
}

// CountDocumentsByHash counts documents sharing hash.
func (s *Store) CountDocumentsByHash(ctx context.Context, hash string) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM documents WHERE content_hash = $1", hash).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return n, nil
}

// ListDocuments returns documents, newest first.
func (s *Store) ListDocuments(ctx context.Context, opts driven.ListOptions) ([]domain.Document, error) {
	b := psql.Select(documentColumns...).From("documents").OrderBy("created_at DESC", "id")
	if opts.Status != "" {
		b = b.Where(sq.Eq{"status": string(opts.Status)})
	}
	if opts.Industry != "" {
		b = b.Where(sq.Eq{"industry": opts.Industry})
	}
	if opts.Limit > 0 {
		b = b.Limit(uint64(opts.Limit))
	}
	return s.queryDocuments(ctx, b)
}

// ListResumable returns unfinished documents, oldest first.
func (s *Store) ListResumable(ctx context.Context, includeFailed bool) ([]domain.Document, error) {
	excluded := []string{string(domain.StatusDone)}
	if !includeFailed {
		excluded = append(excluded, string(domain.StatusFailed))
	}
	return s.queryDocuments(ctx, psql.Select(documentColumns...).From("documents").
		Where(sq.NotEq{"status": excluded}).
		OrderBy("created_at", "id"))
}

func (s *Store) queryDocuments(ctx context.Context, b sq.SelectBuilder) ([]domain.Document, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select: %w", err)
	}
	rows, err := s.pool.Query(ctx, query, args...)
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
	return updateDocument(ctx, s.pool, doc)
}

func updateDocument(ctx context.Context, q querier, doc *domain.Document) error {
	failure, err := encodeFailure(doc.Failure)
	if err != nil {
		return err
	}
	query, args, err := psql.Update("documents").SetMap(map[string]any{
		"name":       doc.Name,
		"industry":   doc.Industry,
		"outcome":    string(doc.Outcome),
		"status":     string(doc.Status),
		"checkpoint": string(doc.Checkpoint),
		"version":    doc.Version,
		"page_count": doc.PageCount,
		"failure":    failure,
		"updated_at": doc.UpdatedAt,
	}).Where(sq.Eq{"id": doc.ID}).ToSql()
	if err != nil {
		return fmt.Errorf("building update: %w", err)
	}

	tag, err := q.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating document: %w", err)
	}
	if tag.RowsAffected() == 0 {
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

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
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

func replacePages(ctx context.Context, tx pgx.Tx, documentID string, pages []domain.Page) error {
	if _, err := tx.Exec(ctx, "DELETE FROM pages WHERE document_id = $1", documentID); err != nil {
		return fmt.Errorf("clearing pages: %w", err)
	}
	_, err := tx.CopyFrom(ctx, pgx.Identifier{"pages"},
		[]string{"document_id", "page_index", "text", "method", "confidence", "char_count",
			"glyph_ratio", "area", "low_yield", "empty"},
		pgx.CopyFromSlice(len(pages), func(i int) ([]any, error) {
			p := pages[i]
			return []any{documentID, p.Index, p.Text, string(p.Method), p.Confidence, p.CharCount,
				p.GlyphRatio, p.Area, p.LowYield, p.Empty}, nil
		}))
	if err != nil {
		return fmt.Errorf("saving pages: %w", err)
	}
	return nil
}

func replaceChunks(ctx context.Context, tx pgx.Tx, documentID string, chunks []domain.Chunk) error {
	if _, err := tx.Exec(ctx, "DELETE FROM embeddings WHERE document_id = $1", documentID); err != nil {
		return fmt.Errorf("clearing embeddings: %w", err)
	}
	if _, err := tx.Exec(ctx, "DELETE FROM chunks WHERE document_id = $1", documentID); err != nil {
		return fmt.Errorf("clearing chunks: %w", err)
	}
	_, err := tx.CopyFrom(ctx, pgx.Identifier{"chunks"},
		[]string{"id", "document_id", "page_index", "position", "content", "start_offset", "end_offset", "overlap"},
		pgx.CopyFromSlice(len(chunks), func(i int) ([]any, error) {
			c := chunks[i]
			return []any{c.ID, documentID, c.PageIndex, c.Position, c.Content,
				c.StartOffset, c.EndOffset, c.Overlap}, nil
		}))
	if err != nil {
		return fmt.Errorf("saving chunks: %w", err)
	}
	return nil
}

func replaceEmbeddings(ctx context.Context, tx pgx.Tx, documentID string, embeddings []domain.Embedding) error {
	if len(embeddings) > 0 {
		// The first writer fixes the dimension; the row lock serialises
		// concurrent first writes.
		if _, err := tx.Exec(ctx, `
			INSERT INTO store_meta (key, value) VALUES ($1, $2)
			ON CONFLICT (key) DO NOTHING
		`, metaEmbeddingDimensions, strconv.Itoa(len(embeddings[0].Vector))); err != nil {
			return fmt.Errorf("recording dimensions: %w", err)
		}
		dims, err := embeddingDimensions(ctx, tx)
		if err != nil {
			return err
		}
		for _, e := range embeddings {
			if len(e.Vector) != dims {
				return fmt.Errorf("got %d, want %d: %w", len(e.Vector), dims, domain.ErrDimensionMismatch)
			}
		}
	}

	if _, err := tx.Exec(ctx, "DELETE FROM embeddings WHERE document_id = $1", documentID); err != nil {
		return fmt.Errorf("clearing embeddings: %w", err)
	}
	_, err := tx.CopyFrom(ctx, pgx.Identifier{"embeddings"},
		[]string{"chunk_id", "document_id", "position", "vector", "model", "created_at"},
		pgx.CopyFromSlice(len(embeddings), func(i int) ([]any, error) {
			e := embeddings[i]
			return []any{e.ChunkID, documentID, i, e.Vector, e.Model, e.CreatedAt}, nil
		}))
	if err != nil {
		return fmt.Errorf("saving embeddings: %w", err)
	}
	return nil
}

// DeleteDocument removes a document, its outputs and its contribution.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		c, err := scanContribution(tx.QueryRow(ctx,
			"SELECT "+contributionColumns+" FROM contributions WHERE document_id = $1", id))
		switch {
		case errors.Is(err, domain.ErrNotFound):
		case err != nil:
			return err
		default:
			ins, err := scanInsight(tx.QueryRow(ctx,
				"SELECT "+insightColumns+" FROM insights WHERE industry = $1 FOR UPDATE", c.Industry))
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
		tag, err := tx.Exec(ctx, "DELETE FROM documents WHERE id = $1", id)
		if err != nil {
			return fmt.Errorf("deleting document: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}

// GetPages returns a document's pages by index.
func (s *Store) GetPages(ctx context.Context, documentID string) ([]domain.Page, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT document_id, page_index, text, method, confidence, char_count, glyph_ratio, area, low_yield, empty
		FROM pages WHERE document_id = $1
		ORDER BY page_index
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying pages: %w", err)
	}
	pages, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Page, error) {
		var p domain.Page
		var method string
		err := row.Scan(&p.DocumentID, &p.Index, &p.Text, &method, &p.Confidence, &p.CharCount,
			&p.GlyphRatio, &p.Area, &p.LowYield, &p.Empty)
		p.Method = domain.ExtractionMethod(method)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning pages: %w", err)
	}
	return nilIfEmpty(pages), nil
}

// GetChunks returns a document's chunks by position.
func (s *Store) GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, document_id, page_index, position, content, start_offset, end_offset, overlap
		FROM chunks WHERE document_id = $1
		ORDER BY position
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	chunks, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Chunk, error) {
		var c domain.Chunk
		err := row.Scan(&c.ID, &c.DocumentID, &c.PageIndex, &c.Position, &c.Content,
			&c.StartOffset, &c.EndOffset, &c.Overlap)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning chunks: %w", err)
	}
	return nilIfEmpty(chunks), nil
}

// GetEmbeddings returns a document's embeddings in chunk order.
func (s *Store) GetEmbeddings(ctx context.Context, documentID string) ([]domain.Embedding, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT chunk_id, vector, model, created_at
		FROM embeddings WHERE document_id = $1
		ORDER BY position
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying embeddings: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Embedding, error) {
		var e domain.Embedding
		err := row.Scan(&e.ChunkID, &e.Vector, &e.Model, &e.CreatedAt)
		e.CreatedAt = e.CreatedAt.UTC()
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning embeddings: %w", err)
	}
	return nilIfEmpty(out), nil
}

// EmbeddingDimensions returns the vector size fixed by the first write.
func (s *Store) EmbeddingDimensions(ctx context.Context) (int, error) {
	return embeddingDimensions(ctx, s.pool)
}

func embeddingDimensions(ctx context.Context, q querier) (int, error) {
	var value string
	err := q.QueryRow(ctx, "SELECT value FROM store_meta WHERE key = $1", metaEmbeddingDimensions).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
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
	return scanInsight(s.pool.QueryRow(ctx, "SELECT "+insightColumns+" FROM insights WHERE industry = $1", industry))
}

// ListInsights returns non-empty insights by document count.
func (s *Store) ListInsights(ctx context.Context, limit int) ([]domain.Insight, error) {
	b := psql.Select(insightColumns).From("insights").
		Where(sq.Gt{"documents": 0}).
		OrderBy("documents DESC", "industry")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select: %w", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying insights: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Insight, error) {
		ins, err := scanInsight(row)
		if err != nil {
			return domain.Insight{}, err
		}
		return *ins, nil
	})
	if err != nil {
		return nil, err
	}
	return nilIfEmpty(out), nil
}

// GetContribution returns a document's applied contribution.
func (s *Store) GetContribution(ctx context.Context, documentID string) (*domain.Contribution, error) {
	return scanContribution(s.pool.QueryRow(ctx,
		"SELECT "+contributionColumns+" FROM contributions WHERE document_id = $1", documentID))
}

// ListContributions returns an industry's contributions by document ID.
func (s *Store) ListContributions(ctx context.Context, industry string) ([]domain.Contribution, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT "+contributionColumns+" FROM contributions WHERE industry = $1 ORDER BY document_id", industry)
	if err != nil {
		return nil, fmt.Errorf("querying contributions: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Contribution, error) {
		c, err := scanContribution(row)
		if err != nil {
			return domain.Contribution{}, err
		}
		return *c, nil
	})
	if err != nil {
		return nil, err
	}
	return nilIfEmpty(out), nil
}

// CommitAggregation applies an aggregation if no revision has moved.
// Each insight write is conditional on the expected revision, so a
// concurrent writer makes it affect no rows.
func (s *Store) CommitAggregation(ctx context.Context, c domain.AggregationCommit) error {
	if c.Document == nil || c.Insight == nil || c.Contribution == nil {
		return fmt.Errorf("incomplete aggregation commit: %w", domain.ErrInvalidInput)
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := updateDocument(ctx, tx, c.Document); err != nil {
			return err
		}
		if err := casInsight(ctx, tx, c.Insight, c.ExpectedRevision); err != nil {
			return err
		}
		if c.Retracted != nil {
			if err := casInsight(ctx, tx, c.Retracted, c.RetractedExpectedRevision); err != nil {
				return err
			}
		}
		return upsertContribution(ctx, tx, c.Contribution)
	})
}

// ReplaceInsight overwrites an insight.
func (s *Store) ReplaceInsight(ctx context.Context, insight *domain.Insight) error {
	return upsertInsight(ctx, s.pool, insight)
}

// casInsight writes ins only if the stored revision equals expected. A
// missing row counts as revision 0.
func casInsight(ctx context.Context, tx pgx.Tx, ins *domain.Insight, expected int64) error {
	agg, err := json.Marshal(ins.Aggregate)
	if err != nil {
		return fmt.Errorf("marshalling aggregate: %w", err)
	}

	var tag pgconn.CommandTag
	if expected == 0 {
		tag, err = tx.Exec(ctx, `
			INSERT INTO insights (industry, documents, aggregate, revision, updated_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (industry) DO UPDATE SET
				documents = excluded.documents,
				aggregate = excluded.aggregate,
				revision = excluded.revision,
				updated_at = excluded.updated_at
			WHERE insights.revision = 0
		`, ins.Industry, ins.Aggregate.Documents, agg, ins.Revision, ins.UpdatedAt)
	} else {
		tag, err = tx.Exec(ctx, `
			UPDATE insights SET documents = $2, aggregate = $3, revision = $4, updated_at = $5
			WHERE industry = $1 AND revision = $6
		`, ins.Industry, ins.Aggregate.Documents, agg, ins.Revision, ins.UpdatedAt, expected)
	}
	if err != nil {
		return fmt.Errorf("saving insight: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%q moved past revision %d: %w", ins.Industry, expected, domain.ErrAggregationConflict)
	}
	return nil
}

func upsertInsight(ctx context.Context, q querier, ins *domain.Insight) error {
	agg, err := json.Marshal(ins.Aggregate)
	if err != nil {
		return fmt.Errorf("marshalling aggregate: %w", err)
	}
	_, err = q.Exec(ctx, `
		INSERT INTO insights (industry, documents, aggregate, revision, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (industry) DO UPDATE SET
			documents = excluded.documents,
			aggregate = excluded.aggregate,
			revision = excluded.revision,
			updated_at = excluded.updated_at
	`, ins.Industry, ins.Aggregate.Documents, agg, ins.Revision, ins.UpdatedAt)
	if err != nil {
		return fmt.Errorf("saving insight: %w", err)
	}
	return nil
}

func upsertContribution(ctx context.Context, tx pgx.Tx, c *domain.Contribution) error {
	agg, err := json.Marshal(c.Aggregate)
	if err != nil {
		return fmt.Errorf("marshalling aggregate: %w", err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO contributions (`+contributionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (document_id) DO UPDATE SET
			industry = excluded.industry,
			version = excluded.version,
			aggregate = excluded.aggregate,
			centroid = excluded.centroid,
			outcome = excluded.outcome,
			excerpt = excluded.excerpt,
			applied_at = excluded.applied_at
	`, c.DocumentID, c.Industry, c.Version, agg, c.Centroid, string(c.Outcome), c.Excerpt, c.AppliedAt)
	if err != nil {
		return fmt.Errorf("saving contribution: %w", err)
	}
	return nil
}

// ==================== Helper Functions ====================

func scanDocument(row pgx.Row) (*domain.Document, error) {
	var doc domain.Document
	var outcome, status, checkpoint string
	var failure []byte

	if err := row.Scan(&doc.ID, &doc.Name, &doc.SourceRef, &doc.ContentHash, &doc.Industry,
		&outcome, &status, &checkpoint, &doc.Version, &doc.PageCount, &failure,
		&doc.CreatedAt, &doc.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}

	doc.Outcome = domain.Outcome(outcome)
	doc.Status = domain.Status(status)
	doc.Checkpoint = domain.Status(checkpoint)
	doc.CreatedAt = doc.CreatedAt.UTC()
	doc.UpdatedAt = doc.UpdatedAt.UTC()

	if len(failure) > 0 {
		var f domain.Failure
		if err := json.Unmarshal(failure, &f); err != nil {
			return nil, fmt.Errorf("unmarshaling failure: %w", err)
		}
		doc.Failure = &f
	}
	return &doc, nil
}

func scanInsight(row pgx.Row) (*domain.Insight, error) {
	var ins domain.Insight
	var agg []byte

	if err := row.Scan(&ins.Industry, &agg, &ins.Revision, &ins.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning insight: %w", err)
	}
	if err := json.Unmarshal(agg, &ins.Aggregate); err != nil {
		return nil, fmt.Errorf("unmarshaling aggregate: %w", err)
	}
	ins.UpdatedAt = ins.UpdatedAt.UTC()
	return &ins, nil
}

func scanContribution(row pgx.Row) (*domain.Contribution, error) {
	var c domain.Contribution
	var agg []byte
	var outcome string

	if err := row.Scan(&c.DocumentID, &c.Industry, &c.Version, &agg, &c.Centroid,
		&outcome, &c.Excerpt, &c.AppliedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning contribution: %w", err)
	}
	if err := json.Unmarshal(agg, &c.Aggregate); err != nil {
		return nil, fmt.Errorf("unmarshaling aggregate: %w", err)
	}
	c.Outcome = domain.Outcome(outcome)
	c.AppliedAt = c.AppliedAt.UTC()
	return &c, nil
}

func encodeFailure(f *domain.Failure) ([]byte, error) {
	if f == nil {
		return nil, nil
	}
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("marshalling failure: %w", err)
	}
	return data, nil
}

// nilIfEmpty keeps "no rows" results nil, matching the other stores.
func nilIfEmpty[T any](s []T) []T {
	if len(s) == 0 {
		return nil
	}
	return s
}
