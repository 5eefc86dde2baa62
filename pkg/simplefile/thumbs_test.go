package simplefile

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestThumbName(t *testing.T) {
	tests := []struct {
		ext  string
		want string
	}{
		{".pdf", "pdf"},
		{"PDF", "pdf"},
		{".jpg", "jpg"},
		{".JPEG", "jpg"},
		{".jfif", "jpg"},
		{".htm", "html"},
		{".docx", "doc"},
		{".ods", "xls"},
		{".unknown", DefaultThumb},
		{"", DefaultThumb},
	}

	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			assert.Equal(t, tt.want, ThumbName(tt.ext))
		})
	}
}

func TestThumbNames(t *testing.T) {
	names := ThumbNames()
	assert.Len(t, names, 27)
	assert.Contains(t, names, DefaultThumb)
	for _, alias := range thumbAliases {
		assert.Contains(t, names, alias)
	}
	assert.Equal(t, "file/thumbs/zip.svg", ThumbAssetPath("zip"))
}
