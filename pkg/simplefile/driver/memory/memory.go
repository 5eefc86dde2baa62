package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/tendant/simple-file/pkg/simplefile"
)

// Name is the registry name of the in-memory driver
const Name = "memory"

type entry struct {
	meta simplefile.Meta
	data []byte
}

// Driver is an in-memory implementation of simplefile.Driver
type Driver struct {
	mu      sync.RWMutex
	records map[string]*entry
}

// New creates a new in-memory driver
func New() *Driver {
	return &Driver{
		records: make(map[string]*entry),
	}
}

// Create reads localPath into memory
func (d *Driver) Create(ctx context.Context, localPath string, mime string, params simplefile.CreateParams) (simplefile.Handle, error) {
	var opts struct{}
	if err := simplefile.DecodeOptions(params.Options, &opts); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(localPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", localPath, err)
	}

	uid := uuid.NewString()
	meta, err := simplefile.NewMeta(uid, localPath, mime, params)
	if err != nil {
		return nil, err
	}
	meta.Path = params.LogicalPath(uid, mime, meta.CreatedAt)
	meta.StoragePath = "memory://" + uid

	d.mu.Lock()
	d.records[uid] = &entry{meta: copyMeta(meta), data: data}
	d.mu.Unlock()

	return &handle{Meta: meta, driver: d}, nil
}

// Get returns a handle holding a snapshot of the stored metadata
func (d *Driver) Get(ctx context.Context, uid string) (simplefile.Handle, error) {
	if _, err := uuid.Parse(uid); err != nil {
		return nil, &simplefile.UIDError{UID: uid, Op: "get", Err: simplefile.ErrInvalidFileUIDFormat}
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	e, ok := d.records[uid]
	if !ok {
		return nil, &simplefile.UIDError{UID: uid, Op: "get", Err: simplefile.ErrFileNotFound}
	}
	return &handle{Meta: copyMeta(e.meta), driver: d}, nil
}

// Count returns the number of stored records
func (d *Driver) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.records)
}

type handle struct {
	simplefile.Meta
	driver *Driver
}

func (h *handle) Save(ctx context.Context) error {
	h.driver.mu.Lock()
	defer h.driver.mu.Unlock()

	e, ok := h.driver.records[h.UID]
	if !ok {
		return &simplefile.UIDError{UID: h.UID, Op: "save", Err: simplefile.ErrFileNotFound}
	}
	e.meta = copyMeta(h.Meta)
	return nil
}

func (h *handle) Delete(ctx context.Context) error {
	h.driver.mu.Lock()
	defer h.driver.mu.Unlock()

	if _, ok := h.driver.records[h.UID]; !ok {
		return &simplefile.UIDError{UID: h.UID, Op: "delete", Err: simplefile.ErrFileNotFound}
	}
	delete(h.driver.records, h.UID)
	return nil
}

func (h *handle) Open(ctx context.Context) (io.ReadCloser, error) {
	h.driver.mu.RLock()
	defer h.driver.mu.RUnlock()

	e, ok := h.driver.records[h.UID]
	if !ok {
		return nil, &simplefile.UIDError{UID: h.UID, Op: "open", Err: simplefile.ErrFileNotFound}
	}
	return io.NopCloser(bytes.NewReader(e.data)), nil
}

func copyMeta(m simplefile.Meta) simplefile.Meta {
	if m.Exif != nil {
		m.Exif = maps.Clone(m.Exif)
	}
	return m
}
