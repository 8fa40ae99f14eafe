package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aluiziolira/go-catalog-harvester/models"
)

const createItemsTable = `CREATE TABLE IF NOT EXISTS catalog_items (
	id           TEXT PRIMARY KEY,
	category     TEXT NOT NULL,
	name         TEXT,
	brand        TEXT,
	price        DOUBLE PRECISION,
	list_price   DOUBLE PRECISION,
	rating       DOUBLE PRECISION,
	rating_count INTEGER,
	product_url  TEXT,
	session_id   TEXT,
	page_offset  INTEGER,
	fetched_at   TIMESTAMPTZ,
	raw          JSONB
)`

const insertItem = `INSERT INTO catalog_items
	(id, category, name, brand, price, list_price, rating, rating_count, product_url, session_id, page_offset, fetched_at, raw)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	ON CONFLICT (id) DO NOTHING`

// BatchSender is the subset of a pgx pool used by PostgresWriter.
type BatchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Close()
}

// PostgresWriter inserts items into the catalog_items table. Rows already
// present are left untouched.
type PostgresWriter struct {
	db BatchSender

	mu      sync.Mutex
	written int
}

// NewPostgresWriter opens a pool and creates the table when missing.
func NewPostgresWriter(ctx context.Context, connString string) (*PostgresWriter, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, createItemsTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create catalog_items table: %w", err)
	}
	return newPostgresWriter(pool), nil
}

func newPostgresWriter(db BatchSender) *PostgresWriter {
	return &PostgresWriter{db: db}
}

// Write inserts the batch in a single round trip.
func (pw *PostgresWriter) Write(items []*models.Item) error {
	if len(items) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, item := range items {
		args, err := itemArgs(item)
		if err != nil {
			return err
		}
		batch.Queue(insertItem, args...)
	}

	pw.mu.Lock()
	defer pw.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := pw.db.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert %d items: %w", len(items), err)
	}
	pw.written += len(items)
	return nil
}

// Close releases the pool.
func (pw *PostgresWriter) Close() error {
	pw.db.Close()
	return nil
}

// Validate ensures at least one batch was written.
func (pw *PostgresWriter) Validate() error {
	pw.mu.Lock()
	defer pw.mu.Unlock()
	if pw.written == 0 {
		return fmt.Errorf("no items written to postgres")
	}
	return nil
}

func itemArgs(item *models.Item) ([]any, error) {
	raw, err := json.Marshal(item.Provenance.Raw)
	if err != nil {
		return nil, fmt.Errorf("encode raw record %s: %w", item.ID, err)
	}
	return []any{
		item.ID,
		item.Category,
		item.Name,
		item.Brand,
		item.Price,
		item.ListPrice,
		item.Rating,
		item.RatingCount,
		item.ProductURL,
		item.Provenance.SessionID,
		item.Provenance.Offset,
		item.Provenance.FetchedAt,
		raw,
	}, nil
}
