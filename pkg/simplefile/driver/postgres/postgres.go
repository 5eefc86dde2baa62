package postgres

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-file/pkg/simplefile"
	"github.com/tendant/simple-file/pkg/simplefile/blob"
)

// Name is the registry name of the PostgreSQL driver
const Name = "postgres"

// Schema creates the file table
const Schema = `
CREATE TABLE IF NOT EXISTS file (
	uid          UUID PRIMARY KEY,
	kind         TEXT NOT NULL,
	name         TEXT NOT NULL,
	description  TEXT NOT NULL DEFAULT '',
	mime         TEXT NOT NULL,
	length       BIGINT NOT NULL,
	path         TEXT NOT NULL,
	storage_path TEXT NOT NULL,
	width        INTEGER NOT NULL DEFAULT 0,
	height       INTEGER NOT NULL DEFAULT 0,
	exif         JSONB,
	created_at   TIMESTAMPTZ NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL
)`

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Driver stores file metadata in PostgreSQL and file bytes in a blob store
type Driver struct {
	db    DBTX
	blobs *blob.Store

	// pool is set when the driver created the pool and must close it
	pool *pgxpool.Pool
}

// New creates a new PostgreSQL driver
func New(db DBTX, blobs *blob.Store) *Driver {
	return &Driver{db: db, blobs: blobs}
}

// NewWithPool creates a new PostgreSQL driver with connection pool. The
// caller keeps ownership of pool.
func NewWithPool(pool *pgxpool.Pool, blobs *blob.Store) *Driver {
	return &Driver{db: pool, blobs: blobs}
}

// Open connects to databaseURL and returns a driver that owns the pool
func Open(ctx context.Context, databaseURL, schema string, blobs *blob.Store) (*Driver, error) {
	pool, err := NewPool(ctx, databaseURL, schema)
	if err != nil {
		return nil, err
	}
	if err := PingPool(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &Driver{db: pool, blobs: blobs, pool: pool}, nil
}

// Close closes the pool if the driver opened it
func (d *Driver) Close() error {
	if d.pool != nil {
		d.pool.Close()
	}
	return nil
}

// Migrate creates the file table if it does not exist
func (d *Driver) Migrate(ctx context.Context) error {
	if _, err := d.db.Exec(ctx, Schema); err != nil {
		return handlePostgresError("migrate", err)
	}
	return nil
}

// Error handling helper
func handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("file already exists")
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}
	return fmt.Errorf("database error in %s: %w", operation, err)
}

// Create stores the bytes in the blob store and inserts the metadata row
func (d *Driver) Create(ctx context.Context, localPath string, mime string, params simplefile.CreateParams) (simplefile.Handle, error) {
	var opts struct{}
	if err := simplefile.DecodeOptions(params.Options, &opts); err != nil {
		return nil, err
	}

	uid := uuid.NewString()
	meta, err := simplefile.NewMeta(uid, localPath, mime, params)
	if err != nil {
		return nil, err
	}
	meta.Path = params.LogicalPath(uid, mime, meta.CreatedAt)

	storagePath, err := d.blobs.Put(uid, localPath, meta.Path)
	if err != nil {
		return nil, err
	}
	meta.StoragePath = storagePath

	query := `
		INSERT INTO file (
			uid, kind, name, description, mime, length, path, storage_path,
			width, height, exif, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)`

	_, err = d.db.Exec(ctx, query,
		meta.UID, string(meta.Kind()), meta.Name, meta.Description, meta.Mime, meta.Length,
		meta.Path, meta.StoragePath, meta.Width, meta.Height, meta.Exif, meta.CreatedAt)
	if err != nil {
		d.blobs.Remove(storagePath)
		return nil, handlePostgresError("create file", err)
	}

	return &handle{Meta: meta, driver: d}, nil
}

// Get loads the metadata row of uid
func (d *Driver) Get(ctx context.Context, uid string) (simplefile.Handle, error) {
	if _, err := uuid.Parse(uid); err != nil {
		return nil, &simplefile.UIDError{UID: uid, Op: "get", Err: simplefile.ErrInvalidFileUIDFormat}
	}

	query := `
		SELECT uid::text, kind, name, description, mime, length, path, storage_path,
		       width, height, exif, created_at
		FROM file WHERE uid = $1`

	var meta simplefile.Meta
	var kind string
	err := d.db.QueryRow(ctx, query, uid).Scan(
		&meta.UID, &kind, &meta.Name, &meta.Description, &meta.Mime, &meta.Length,
		&meta.Path, &meta.StoragePath, &meta.Width, &meta.Height, &meta.Exif, &meta.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &simplefile.UIDError{UID: uid, Op: "get", Err: simplefile.ErrFileNotFound}
		}
		return nil, handlePostgresError("get file", err)
	}
	meta.Type = simplefile.Kind(kind)
	meta.CreatedAt = meta.CreatedAt.UTC()

	return &handle{Meta: meta, driver: d}, nil
}

type handle struct {
	simplefile.Meta
	driver *Driver
}

func (h *handle) Save(ctx context.Context) error {
	query := `
		UPDATE file SET
			name = $2, description = $3, mime = $4, length = $5, path = $6,
			storage_path = $7, width = $8, height = $9, exif = $10, updated_at = $11
		WHERE uid = $1`

	tag, err := h.driver.db.Exec(ctx, query,
		h.UID, h.Name, h.Description, h.Mime, h.Length, h.Path,
		h.StoragePath, h.Width, h.Height, h.Exif, time.Now().UTC())
	if err != nil {
		return handlePostgresError("save file", err)
	}
	if tag.RowsAffected() == 0 {
		return &simplefile.UIDError{UID: h.UID, Op: "save", Err: simplefile.ErrFileNotFound}
	}
	return nil
}

func (h *handle) Delete(ctx context.Context) error {
	tag, err := h.driver.db.Exec(ctx, `DELETE FROM file WHERE uid = $1`, h.UID)
	if err != nil {
		return handlePostgresError("delete file", err)
	}
	if tag.RowsAffected() == 0 {
		return &simplefile.UIDError{UID: h.UID, Op: "delete", Err: simplefile.ErrFileNotFound}
	}
	if err := h.driver.blobs.Remove(h.StoragePath); err != nil && !errors.Is(err, blob.ErrNotFound) {
		return fmt.Errorf("file %s deleted but its bytes remain: %w", h.UID, err)
	}
	return nil
}

func (h *handle) Open(ctx context.Context) (io.ReadCloser, error) {
	rc, err := h.driver.blobs.Open(h.StoragePath)
	if errors.Is(err, blob.ErrNotFound) {
		return nil, &simplefile.UIDError{UID: h.UID, Op: "open", Err: simplefile.ErrFileNotFound}
	}
	return rc, err
}

// PingPool verifies connectivity to Postgres
func PingPool(ctx context.Context, pool *pgxpool.Pool) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// quoteSchema is used when setting search_path for a pool
func quoteSchema(schema string) string {
	return `"` + strings.ReplaceAll(schema, `"`, `""`) + `"`
}

// NewPool creates a pool whose sessions use schema as search_path
func NewPool(ctx context.Context, databaseURL, schema string) (*pgxpool.Pool, error) {
	if databaseURL == "" {
		return nil, errors.New("database_url is required")
	}
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}
	if schema != "" {
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			_, err := conn.Exec(ctx, "SET search_path TO "+quoteSchema(schema))
			return err
		}
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	return pool, nil
}
