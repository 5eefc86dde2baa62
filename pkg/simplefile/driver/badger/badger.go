package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/tendant/simple-file/pkg/simplefile"
	"github.com/tendant/simple-file/pkg/simplefile/blob"
)

// Name is the registry name of the Badger driver
const Name = "badger"

const (
	keyPrefix    = "file/"
	expiryPrefix = "expiry/"
)

func key(uid string) []byte {
	return []byte(keyPrefix + uid)
}

// expiryKey indexes the blob of an entry written with a TTL. The index entry
// itself never expires, so Sweep can find blobs whose metadata is gone.
func expiryKey(uid string) []byte {
	return []byte(expiryPrefix + uid)
}

// Options are the per-file backend options accepted by Create
type Options struct {
	// TTL expires the metadata entry; zero keeps it forever. The bytes of
	// expired entries are removed by Sweep.
	TTL time.Duration `mapstructure:"ttl"`
}

// Driver keeps file metadata in an embedded BadgerDB and file bytes in a
// blob store. It is suitable for single-process deployments that need
// persistence without an external database.
type Driver struct {
	db    *badger.DB
	blobs *blob.Store
	owned bool
}

// New creates a driver over an open database. The caller keeps ownership of db.
func New(db *badger.DB, blobs *blob.Store) *Driver {
	return &Driver{db: db, blobs: blobs}
}

// Open opens (or creates) a database in dir and returns a driver that owns it.
// An empty dir opens an in-memory database.
func Open(dir string, blobs *blob.Store) (*Driver, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}
	return &Driver{db: db, blobs: blobs, owned: true}, nil
}

// Close closes the database if the driver opened it
func (d *Driver) Close() error {
	if !d.owned {
		return nil
	}
	return d.db.Close()
}

// Create stores the bytes in the blob store and the metadata under the uid
func (d *Driver) Create(ctx context.Context, localPath string, mime string, params simplefile.CreateParams) (simplefile.Handle, error) {
	var opts Options
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

	if err := d.put(meta, false, opts.TTL); err != nil {
		d.blobs.Remove(storagePath)
		return nil, err
	}

	return &handle{Meta: meta, driver: d}, nil
}

// Get decodes the metadata stored under uid
func (d *Driver) Get(ctx context.Context, uid string) (simplefile.Handle, error) {
	if _, err := uuid.Parse(uid); err != nil {
		return nil, &simplefile.UIDError{UID: uid, Op: "get", Err: simplefile.ErrInvalidFileUIDFormat}
	}

	var meta simplefile.Meta
	err := d.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(uid))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &meta)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, &simplefile.UIDError{UID: uid, Op: "get", Err: simplefile.ErrFileNotFound}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", uid, err)
	}

	return &handle{Meta: meta, driver: d}, nil
}

// put writes meta; with mustExist it fails for uids that are not stored and
// keeps the expiry of the stored entry
func (d *Driver) put(meta simplefile.Meta, mustExist bool, ttl time.Duration) error {
	val, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode file %s: %w", meta.UID, err)
	}

	return d.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(key(meta.UID), val)
		if mustExist {
			item, err := txn.Get(key(meta.UID))
			if err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					return &simplefile.UIDError{UID: meta.UID, Op: "save", Err: simplefile.ErrFileNotFound}
				}
				return err
			}
			e.ExpiresAt = item.ExpiresAt()
		}
		if ttl > 0 {
			e = e.WithTTL(ttl)
			if err := txn.Set(expiryKey(meta.UID), []byte(meta.StoragePath)); err != nil {
				return err
			}
		}
		return txn.SetEntry(e)
	})
}

// Sweep removes the bytes of entries whose TTL has run out and returns how
// many blobs were removed
func (d *Driver) Sweep(ctx context.Context) (int, error) {
	type orphan struct {
		uid         string
		storagePath string
	}

	var orphans []orphan
	err := d.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(expiryPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			uid := string(item.Key()[len(prefix):])
			if _, err := txn.Get(key(uid)); err == nil {
				continue
			} else if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			orphans = append(orphans, orphan{uid: uid, storagePath: string(val)})
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to scan expired files: %w", err)
	}

	removed := 0
	for _, o := range orphans {
		if err := d.blobs.Remove(o.storagePath); err != nil && !errors.Is(err, blob.ErrNotFound) {
			return removed, fmt.Errorf("failed to remove bytes of expired file %s: %w", o.uid, err)
		}
		if err := d.db.Update(func(txn *badger.Txn) error {
			return txn.Delete(expiryKey(o.uid))
		}); err != nil {
			return removed, fmt.Errorf("failed to unindex expired file %s: %w", o.uid, err)
		}
		removed++
	}
	return removed, nil
}

// RunSweeper calls Sweep every interval until ctx is done
func (d *Driver) RunSweeper(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := d.Sweep(ctx)
			if err != nil {
				logger.Error("Failed to sweep expired files", "err", err)
				continue
			}
			if n > 0 {
				logger.Info("Swept expired files", "count", n)
			}
		}
	}
}

type handle struct {
	simplefile.Meta
	driver *Driver
}

func (h *handle) Save(ctx context.Context) error {
	return h.driver.put(h.Meta, true, 0)
}

func (h *handle) Delete(ctx context.Context) error {
	err := h.driver.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key(h.UID)); err != nil {
			return err
		}
		if err := txn.Delete(expiryKey(h.UID)); err != nil {
			return err
		}
		return txn.Delete(key(h.UID))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return &simplefile.UIDError{UID: h.UID, Op: "delete", Err: simplefile.ErrFileNotFound}
	}
	if err != nil {
		return fmt.Errorf("failed to delete file %s: %w", h.UID, err)
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
