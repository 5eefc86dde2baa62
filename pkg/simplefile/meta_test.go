package simplefile

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-file/pkg/simplefile/objectkey"
)

func TestLogicalPath(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		fileName string
		mime     string
		proposed string
		want     string
	}{
		{"derived", "Photo.JPG", "image/jpeg", "", "image/2024/05/abc.jpg"},
		{"no extension", "README", "text/plain", "", "text/2024/05/abc"},
		{"empty mime", "blob.bin", "", "", "application/2024/05/abc.bin"},
		{"blank proposed", "a.txt", "text/plain", "   ", "text/2024/05/abc.txt"},
		{"proposed", "a.txt", "text/plain", "docs/a.txt", "docs/a.txt"},
		{"proposed cleaned", "a.txt", "text/plain", "docs/../x//y.txt", "x/y.txt"},
		{"proposed escapes root", "a.txt", "text/plain", "../../etc/passwd", "etc/passwd"},
		{"backslashes", "a.txt", "text/plain", `docs\a.txt`, "docs/a.txt"},
		{"proposed root", "a.txt", "text/plain", "/", "text/2024/05/abc.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := CreateParams{Name: tt.fileName, ProposedPath: tt.proposed}
			assert.Equal(t, tt.want, params.LogicalPath("abc", tt.mime, now))
		})
	}

	t.Run("key generator", func(t *testing.T) {
		params := CreateParams{Name: "My Report.pdf", KeyGenerator: objectkey.NewLegacyGenerator()}
		assert.Equal(t, "F/abc/My_Report.pdf", params.LogicalPath("abc", "application/pdf", now))

		params.ProposedPath = "docs/report.pdf"
		assert.Equal(t, "docs/report.pdf", params.LogicalPath("abc", "application/pdf", now))
	})
}

func TestDecodeOptions(t *testing.T) {
	type options struct {
		TTL   time.Duration `mapstructure:"ttl"`
		Class string        `mapstructure:"class"`
		Count int           `mapstructure:"count"`
	}

	t.Run("Empty", func(t *testing.T) {
		opts := options{Class: "default"}
		require.NoError(t, DecodeOptions(nil, &opts))
		assert.Equal(t, "default", opts.Class)
	})

	t.Run("WeakTypes", func(t *testing.T) {
		var opts options
		require.NoError(t, DecodeOptions(map[string]any{"ttl": "5m", "class": "cold", "count": "3"}, &opts))
		assert.Equal(t, 5*time.Minute, opts.TTL)
		assert.Equal(t, "cold", opts.Class)
		assert.Equal(t, 3, opts.Count)
	})

	t.Run("UnknownKey", func(t *testing.T) {
		var opts options
		err := DecodeOptions(map[string]any{"colour": "red"}, &opts)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid driver options")
	})
}

func TestNewMeta(t *testing.T) {
	dir := t.TempDir()

	t.Run("File", func(t *testing.T) {
		p := filepath.Join(dir, "a.txt")
		require.NoError(t, os.WriteFile(p, []byte("hello"), 0644))

		m, err := NewMeta("abc", p, "text/plain", CreateParams{Name: "a.txt", Description: "greeting"})
		require.NoError(t, err)
		assert.Equal(t, "abc", m.UID)
		assert.Equal(t, KindFile, m.Kind())
		assert.Equal(t, "a.txt", m.Name)
		assert.Equal(t, "greeting", m.Description)
		assert.Equal(t, int64(5), m.Length)
		assert.Empty(t, m.Path)
		assert.Empty(t, m.StoragePath)
		assert.False(t, m.CreatedAt.IsZero())
	})

	t.Run("Image", func(t *testing.T) {
		gif := []byte{
			0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00, 0x00, 0x00, 0x00, 0x00,
			0xff, 0xff, 0xff, 0x21, 0xf9, 0x04, 0x01, 0x00, 0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00,
			0x01, 0x00, 0x01, 0x00, 0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
		}
		p := filepath.Join(dir, "pixel.gif")
		require.NoError(t, os.WriteFile(p, gif, 0644))

		m, err := NewMeta("def", p, "image/gif", CreateParams{Name: "pixel.gif"})
		require.NoError(t, err)
		assert.Equal(t, KindImage, m.Kind())
		assert.Equal(t, 1, m.Width)
		assert.Equal(t, 1, m.Height)
	})

	t.Run("Missing", func(t *testing.T) {
		_, err := NewMeta("abc", filepath.Join(dir, "nope"), "text/plain", CreateParams{})
		assert.Error(t, err)
	})
}
