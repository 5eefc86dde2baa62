// Package drivertest checks that a simplefile.Driver honours the storage contract.
package drivertest

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-file/pkg/simplefile"
)

// gif1x1 is a 1x1 transparent GIF
var gif1x1 = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00, 0x00, 0x00, 0x00, 0x00,
	0xff, 0xff, 0xff, 0x21, 0xf9, 0x04, 0x01, 0x00, 0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00,
	0x01, 0x00, 0x01, 0x00, 0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
}

func write(t *testing.T, name string, content []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, content, 0644))
	return p
}

func field(t *testing.T, h simplefile.Handle, f simplefile.Field) any {
	t.Helper()
	v, err := h.GetField(f)
	require.NoError(t, err, f)
	return v
}

func read(t *testing.T, h simplefile.Handle) []byte {
	t.Helper()
	rc, err := h.Open(context.Background())
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return data
}

// Run exercises create, get, save, delete and open on d
func Run(t *testing.T, d simplefile.Driver) {
	ctx := context.Background()

	t.Run("CreateAndGet", func(t *testing.T) {
		content := []byte("some text content")
		src := write(t, "src", content)

		h, err := d.Create(ctx, src, "text/plain", simplefile.CreateParams{Name: "notes.txt", Description: "notes"})
		require.NoError(t, err)
		assert.Equal(t, simplefile.KindFile, h.Kind())

		uid := field(t, h, simplefile.FieldUID).(string)
		_, err = uuid.Parse(uid)
		require.NoError(t, err)
		assert.Equal(t, "notes.txt", field(t, h, simplefile.FieldName))
		assert.Equal(t, int64(len(content)), field(t, h, simplefile.FieldLength))
		assert.NotEmpty(t, field(t, h, simplefile.FieldPath))
		assert.NotEmpty(t, field(t, h, simplefile.FieldStoragePath))

		// the source may be removed once Create returns
		require.NoError(t, os.Remove(src))

		got, err := d.Get(ctx, uid)
		require.NoError(t, err)
		for _, f := range []simplefile.Field{
			simplefile.FieldUID, simplefile.FieldName, simplefile.FieldDescription, simplefile.FieldMime,
			simplefile.FieldLength, simplefile.FieldPath, simplefile.FieldStoragePath,
		} {
			assert.Equal(t, field(t, h, f), field(t, got, f), f)
		}
		assert.Equal(t, content, read(t, got))
	})

	t.Run("ProposedPath", func(t *testing.T) {
		h, err := d.Create(ctx, write(t, "src", []byte("x")), "text/plain",
			simplefile.CreateParams{Name: "x.txt", ProposedPath: "docs/" + uuid.NewString() + "/x.txt"})
		require.NoError(t, err)
		assert.Contains(t, field(t, h, simplefile.FieldPath), "/x.txt")
	})

	t.Run("Image", func(t *testing.T) {
		h, err := d.Create(ctx, write(t, "src", gif1x1), "image/gif", simplefile.CreateParams{Name: "pixel.gif"})
		require.NoError(t, err)
		assert.Equal(t, simplefile.KindImage, h.Kind())

		got, err := d.Get(ctx, field(t, h, simplefile.FieldUID).(string))
		require.NoError(t, err)
		assert.Equal(t, simplefile.KindImage, got.Kind())
		assert.EqualValues(t, 1, field(t, got, simplefile.FieldWidth))
		assert.EqualValues(t, 1, field(t, got, simplefile.FieldHeight))
	})

	t.Run("SaveAndDelete", func(t *testing.T) {
		h, err := d.Create(ctx, write(t, "src", []byte("abc")), "text/plain", simplefile.CreateParams{Name: "a.txt"})
		require.NoError(t, err)
		uid := field(t, h, simplefile.FieldUID).(string)

		require.NoError(t, h.SetField(simplefile.FieldDescription, "changed"))
		require.NoError(t, h.Save(ctx))

		got, err := d.Get(ctx, uid)
		require.NoError(t, err)
		assert.Equal(t, "changed", field(t, got, simplefile.FieldDescription))

		require.NoError(t, got.Delete(ctx))
		_, err = d.Get(ctx, uid)
		assert.True(t, errors.Is(err, simplefile.ErrFileNotFound), "got %v", err)
	})

	t.Run("Errors", func(t *testing.T) {
		_, err := d.Get(ctx, "not-a-uid")
		assert.True(t, errors.Is(err, simplefile.ErrInvalidFileUIDFormat), "got %v", err)

		_, err = d.Get(ctx, uuid.NewString())
		assert.True(t, errors.Is(err, simplefile.ErrFileNotFound), "got %v", err)
		assert.True(t, simplefile.IsFileError(err))
	})

	t.Run("UnknownOption", func(t *testing.T) {
		_, err := d.Create(ctx, write(t, "src", []byte("x")), "text/plain",
			simplefile.CreateParams{Name: "x.txt", Options: map[string]any{"no_such_option": true}})
		assert.Error(t, err)
	})
}
