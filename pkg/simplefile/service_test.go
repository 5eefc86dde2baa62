package simplefile_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-file/pkg/simplefile"
	"github.com/tendant/simple-file/pkg/simplefile/driver/memory"
)

// countingDriver wraps the memory driver and counts Create calls
type countingDriver struct {
	*memory.Driver
	creates  atomic.Int32
	lastMime string
}

func (d *countingDriver) Create(ctx context.Context, localPath, mime string, params simplefile.CreateParams) (simplefile.Handle, error) {
	d.creates.Add(1)
	d.lastMime = mime
	return d.Driver.Create(ctx, localPath, mime, params)
}

func newService(t *testing.T, opts ...simplefile.Option) (simplefile.Service, *countingDriver, string) {
	t.Helper()
	d := &countingDriver{Driver: memory.New()}
	tempDir := t.TempDir()
	opts = append([]simplefile.Option{
		simplefile.WithDriver(memory.Name, d),
		simplefile.WithTempDir(tempDir),
	}, opts...)
	svc, err := simplefile.New(opts...)
	require.NoError(t, err)
	return svc, d, tempDir
}

func writeFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, content, 0644))
	return p
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestNewRequiresDriver(t *testing.T) {
	_, err := simplefile.New()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "driver is required")

	_, err = simplefile.New(simplefile.WithDriver("memory", memory.New()), simplefile.WithUploadMaxSizeMB(0))
	assert.Error(t, err)
}

func TestCreateLocalFile(t *testing.T) {
	svc, d, tempDir := newService(t)
	ctx := context.Background()
	content := []byte("%PDF-1.4\n%âãÏÓ\n1 0 obj\n<<>>\nendobj\ntrailer\n<<>>\n%%EOF\n")
	src := writeFile(t, "report.pdf", content)

	record, err := svc.Create(ctx, simplefile.CreateRequest{Source: src})
	require.NoError(t, err)

	f := record.Base()
	assert.Equal(t, simplefile.KindFile, record.Kind())
	assert.Equal(t, "report.pdf", f.Name())
	assert.Equal(t, "Created from local file "+src, f.Description())
	assert.Equal(t, "application/pdf", f.Mime())
	assert.Equal(t, "application/pdf", d.lastMime)
	assert.Equal(t, int64(len(content)), f.Length())
	assert.NotEmpty(t, f.UID())

	rc, err := f.Open(ctx)
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, content, got)

	assertEmptyDir(t, tempDir)
}

func TestCreateKeepsSuppliedNameAndDescription(t *testing.T) {
	svc, _, _ := newService(t)
	src := writeFile(t, "x.txt", []byte("hello"))

	record, err := svc.Create(context.Background(), simplefile.CreateRequest{
		Source:       src,
		Name:         "greeting.txt",
		Description:  "a greeting",
		ProposedPath: "docs/greeting.txt",
	})
	require.NoError(t, err)
	assert.Equal(t, "greeting.txt", record.Base().Name())
	assert.Equal(t, "a greeting", record.Base().Description())
	assert.Equal(t, "docs/greeting.txt", record.Base().Path())
}

func TestCreateNameNormalization(t *testing.T) {
	src := writeFile(t, "notes", []byte("just some text"))

	t.Run("Enabled", func(t *testing.T) {
		svc, _, _ := newService(t)
		record, err := svc.Create(context.Background(), simplefile.CreateRequest{Source: src})
		require.NoError(t, err)
		assert.Equal(t, "notes.txt", record.Base().Name())
	})

	t.Run("Disabled", func(t *testing.T) {
		svc, _, _ := newService(t, simplefile.WithNameNormalization(false))
		record, err := svc.Create(context.Background(), simplefile.CreateRequest{Source: src})
		require.NoError(t, err)
		assert.Equal(t, "notes", record.Base().Name())
	})
}

func TestCreateSizeLimit(t *testing.T) {
	svc, d, tempDir := newService(t, simplefile.WithUploadMaxSizeMB(0.001))
	src := writeFile(t, "big.bin", make([]byte, 2048))

	_, err := svc.Create(context.Background(), simplefile.CreateRequest{Source: src})
	var sizeErr *simplefile.SizeLimitError
	require.True(t, errors.As(err, &sizeErr))
	assert.Equal(t, int64(1048), sizeErr.Limit)
	assert.Equal(t, int64(1049), sizeErr.Size, "reading stops one byte past the limit")
	assert.Contains(t, err.Error(), "at least")
	assert.False(t, simplefile.IsFileError(err))
	assert.Equal(t, int32(0), d.creates.Load())

	assertEmptyDir(t, tempDir)
}

func TestCreateAtSizeLimit(t *testing.T) {
	svc, _, _ := newService(t, simplefile.WithUploadMaxSizeMB(0.001))
	src := writeFile(t, "edge.bin", make([]byte, svc.MaxUploadSize()))

	record, err := svc.Create(context.Background(), simplefile.CreateRequest{Source: src})
	require.NoError(t, err)
	assert.Equal(t, svc.MaxUploadSize(), record.Base().Length())
}

func TestCreateInvalidSource(t *testing.T) {
	svc, d, tempDir := newService(t)

	_, err := svc.Create(context.Background(), simplefile.CreateRequest{Source: "  "})
	assert.True(t, errors.Is(err, simplefile.ErrInvalidSource))

	_, err = svc.Create(context.Background(), simplefile.CreateRequest{Source: filepath.Join(t.TempDir(), "missing")})
	assert.Error(t, err)
	assert.Equal(t, int32(0), d.creates.Load())
	assertEmptyDir(t, tempDir)
}

func TestCreateRemote(t *testing.T) {
	var userAgent atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent.Store(r.Header.Get("User-Agent"))
		switch r.URL.Path {
		case "/files/data.json":
			w.Write([]byte(`{"a": 1}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	svc, d, tempDir := newService(t)
	ctx := context.Background()

	record, err := svc.Create(ctx, simplefile.CreateRequest{Source: server.URL + "/files/data.json"})
	require.NoError(t, err)
	assert.Equal(t, "data.json", record.Base().Name())
	assert.Equal(t, "Downloaded from "+server.URL+"/files/data.json", record.Base().Description())
	assert.Equal(t, "application/json", record.Base().Mime())
	assert.Equal(t, simplefile.DefaultUserAgent, userAgent.Load())

	_, err = svc.Create(ctx, simplefile.CreateRequest{Source: server.URL + "/missing.txt"})
	var fetchErr *simplefile.FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, http.StatusNotFound, fetchErr.StatusCode)

	assert.Equal(t, int32(1), d.creates.Load())
	assertEmptyDir(t, tempDir)
}

func TestCreateImage(t *testing.T) {
	svc, _, _ := newService(t)
	// 1x1 transparent GIF
	gif := []byte{
		0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00, 0x00, 0x00, 0x00, 0x00,
		0xff, 0xff, 0xff, 0x21, 0xf9, 0x04, 0x01, 0x00, 0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00,
		0x01, 0x00, 0x01, 0x00, 0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
	}
	src := writeFile(t, "pixel", gif)

	record, err := svc.Create(context.Background(), simplefile.CreateRequest{Source: src})
	require.NoError(t, err)
	assert.Equal(t, simplefile.KindImage, record.Kind())
	assert.Equal(t, "pixel.gif", record.Base().Name())

	img, ok := simplefile.AsImage(record)
	require.True(t, ok)
	assert.Equal(t, 1, img.Width())
	assert.Equal(t, 1, img.Height())
}

func TestGet(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	src := writeFile(t, "a.txt", []byte("round trip"))

	created, err := svc.Create(ctx, simplefile.CreateRequest{Source: src})
	require.NoError(t, err)

	got, err := svc.Get(ctx, created.Base().UID(), false)
	require.NoError(t, err)
	want, _ := created.AsJSONable()
	have, _ := got.AsJSONable()
	assert.Equal(t, want, have)

	t.Run("NotFound", func(t *testing.T) {
		_, err := svc.Get(ctx, "0f8fad5b-d9cb-469f-a165-70867728950e", false)
		assert.True(t, errors.Is(err, simplefile.ErrFileNotFound))

		r, err := svc.Get(ctx, "0f8fad5b-d9cb-469f-a165-70867728950e", true)
		assert.NoError(t, err)
		assert.Nil(t, r)
	})

	t.Run("InvalidUID", func(t *testing.T) {
		_, err := svc.Get(ctx, "nope", false)
		assert.True(t, errors.Is(err, simplefile.ErrInvalidFileUIDFormat))

		r, err := svc.Get(ctx, "nope", true)
		assert.NoError(t, err)
		assert.Nil(t, r)
	})
}

func TestGetMultiple(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	var uids []string
	for _, name := range []string{"one.txt", "two.txt", "three.txt"} {
		r, err := svc.Create(ctx, simplefile.CreateRequest{Source: writeFile(t, name, []byte(name))})
		require.NoError(t, err)
		uids = append(uids, r.Base().UID())
	}

	records, err := svc.GetMultiple(ctx, []string{uids[2], "bad", uids[0], "0f8fad5b-d9cb-469f-a165-70867728950e", uids[1]}, true)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, uids[2], records[0].Base().UID())
	assert.Equal(t, uids[0], records[1].Base().UID())
	assert.Equal(t, uids[1], records[2].Base().UID())

	_, err = svc.GetMultiple(ctx, []string{uids[0], "bad"}, false)
	assert.True(t, errors.Is(err, simplefile.ErrInvalidFileUIDFormat))

	records, err = svc.GetMultiple(ctx, nil, false)
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestGetMultipleEmptySkipsDriver(t *testing.T) {
	r := simplefile.NewRegistry()
	var built atomic.Int32
	r.Register("memory", func() (simplefile.Driver, error) {
		built.Add(1)
		return memory.New(), nil
	})
	svc, err := simplefile.New(simplefile.WithProvider(simplefile.NewProvider(r, "memory")))
	require.NoError(t, err)

	records, err := svc.GetMultiple(context.Background(), []string{}, false)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, int32(0), built.Load())
}

func TestSaveAndDelete(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	record, err := svc.Create(ctx, simplefile.CreateRequest{Source: writeFile(t, "a.txt", []byte("a"))})
	require.NoError(t, err)
	f := record.Base()

	require.NoError(t, f.SetDescription("updated"))
	got, err := svc.Get(ctx, f.UID(), false)
	require.NoError(t, err)
	assert.NotEqual(t, "updated", got.Base().Description())

	require.NoError(t, f.Save(ctx))
	got, err = svc.Get(ctx, f.UID(), false)
	require.NoError(t, err)
	assert.Equal(t, "updated", got.Base().Description())

	require.NoError(t, f.Delete(ctx))
	_, err = svc.Get(ctx, f.UID(), false)
	assert.True(t, errors.Is(err, simplefile.ErrFileNotFound))
}

type recordingSink struct {
	simplefile.NoopEventSink
	created, rejected atomic.Int32
}

func (s *recordingSink) FileCreated(ctx context.Context, r simplefile.Record) error {
	s.created.Add(1)
	return nil
}

func (s *recordingSink) FileRejected(ctx context.Context, source string, err error) error {
	s.rejected.Add(1)
	return errors.New("sink failures are logged, not returned")
}

func TestEventSink(t *testing.T) {
	sink := &recordingSink{}
	svc, _, _ := newService(t, simplefile.WithEventSink(sink), simplefile.WithUploadMaxSizeMB(0.001))
	ctx := context.Background()

	_, err := svc.Create(ctx, simplefile.CreateRequest{Source: writeFile(t, "ok.txt", []byte("ok"))})
	require.NoError(t, err)

	_, err = svc.Create(ctx, simplefile.CreateRequest{Source: writeFile(t, "big.txt", make([]byte, 4096))})
	var sizeErr *simplefile.SizeLimitError
	assert.True(t, errors.As(err, &sizeErr))

	assert.Equal(t, int32(1), sink.created.Load())
	assert.Equal(t, int32(1), sink.rejected.Load())
}

var errBackendDown = errors.New("backend down")

// failingDriver fails every operation with a plain, non-taxonomy error
type failingDriver struct {
	stagedPath string
}

func (d *failingDriver) Create(ctx context.Context, localPath, mime string, params simplefile.CreateParams) (simplefile.Handle, error) {
	d.stagedPath = localPath
	return nil, errBackendDown
}

func (d *failingDriver) Get(ctx context.Context, uid string) (simplefile.Handle, error) {
	return nil, errBackendDown
}

func TestCreateDriverFailureRemovesTempFile(t *testing.T) {
	d := &failingDriver{}
	tempDir := t.TempDir()
	svc, err := simplefile.New(simplefile.WithDriver("failing", d), simplefile.WithTempDir(tempDir))
	require.NoError(t, err)

	src := writeFile(t, "notes.txt", []byte("hello"))
	_, err = svc.Create(context.Background(), simplefile.CreateRequest{Source: src})
	require.ErrorIs(t, err, errBackendDown)

	require.NotEmpty(t, d.stagedPath)
	assert.Equal(t, tempDir, filepath.Dir(d.stagedPath))
	_, statErr := os.Stat(d.stagedPath)
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
	assertEmptyDir(t, tempDir)

	_, err = os.Stat(src)
	assert.NoError(t, err, "the source is left alone")
}

func TestGetPropagatesDriverErrorsWhenSuppressed(t *testing.T) {
	svc, err := simplefile.New(simplefile.WithDriver("failing", &failingDriver{}))
	require.NoError(t, err)
	ctx := context.Background()
	uid := "6f1c1b7e-1d7a-4f0a-9a57-0d2f7b0c9e11"

	record, err := svc.Get(ctx, uid, true)
	assert.Nil(t, record)
	assert.ErrorIs(t, err, errBackendDown)
	assert.False(t, simplefile.IsFileError(err))

	records, err := svc.GetMultiple(ctx, []string{uid}, true)
	assert.Nil(t, records)
	assert.ErrorIs(t, err, errBackendDown)
}
