package s3

import (
	"context"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-file/pkg/simplefile"
	"github.com/tendant/simple-file/pkg/simplefile/drivertest"
)

func TestConfiguration(t *testing.T) {
	t.Run("EmptyBucket", func(t *testing.T) {
		_, err := New(Config{Region: "us-east-1"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bucket name is required")
	})

	t.Run("StaticCredentials", func(t *testing.T) {
		d, err := New(Config{
			Bucket:          "test-bucket",
			Prefix:          "/uploads/",
			AccessKeyID:     "test-key",
			SecretAccessKey: "test-secret",
			Endpoint:        "http://localhost:9000",
			UsePathStyle:    true,
		})
		require.NoError(t, err)
		assert.Equal(t, "uploads/", d.prefix)
		assert.Equal(t, "uploads/abc/text/x.txt", d.objectKey("abc", "text/x.txt"))
		assert.Equal(t, "s3://test-bucket/uploads/abc/text/x.txt", d.storagePath(d.objectKey("abc", "text/x.txt")))
		assert.Equal(t, "uploads/abc/text/x.txt", d.keyFromStoragePath("s3://test-bucket/uploads/abc/text/x.txt"))
	})
}

func TestMetadataRoundTrip(t *testing.T) {
	created := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	m := simplefile.Meta{
		UID:         "abc",
		Type:        simplefile.KindImage,
		Name:        "café photo.jpg",
		Description: "naïve & ünïcode",
		Path:        "image/2024/05/abc.jpg",
		Width:       640,
		Height:      480,
		CreatedAt:   created,
	}

	md := encodeMetadata(m)
	for k, v := range md {
		for _, r := range v {
			assert.Less(t, r, rune(128), "metadata %s must be ASCII", k)
		}
	}

	got := decodeMetadata(md)
	assert.Equal(t, simplefile.KindImage, got.Type)
	assert.Equal(t, m.Name, got.Name)
	assert.Equal(t, m.Description, got.Description)
	assert.Equal(t, m.Path, got.Path)
	assert.Equal(t, 640, got.Width)
	assert.Equal(t, 480, got.Height)
	assert.True(t, created.Equal(got.CreatedAt))

	file := encodeMetadata(simplefile.Meta{UID: "f", Name: "a.txt"})
	assert.NotContains(t, file, metaWidth)
	assert.Equal(t, string(simplefile.KindFile), file[metaKind])
}

func TestSSE(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		want   types.ServerSideEncryption
		keyID  string
	}{
		{"disabled", Config{SSEAlgorithm: "AES256"}, "", ""},
		{"aes", Config{EnableSSE: true, SSEAlgorithm: "AES256"}, types.ServerSideEncryptionAes256, ""},
		{"kms default key", Config{EnableSSE: true, SSEAlgorithm: "aws:kms"}, types.ServerSideEncryptionAwsKms, ""},
		{"kms key", Config{EnableSSE: true, SSEAlgorithm: "aws:kms", SSEKMSKeyID: "key-1"}, types.ServerSideEncryptionAwsKms, "key-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &Driver{config: tt.config}
			sse, keyID := d.sse()
			assert.Equal(t, tt.want, sse)
			assert.Equal(t, tt.keyID, aws.ToString(keyID))
		})
	}
}

func TestSaveKeepsObjectSettings(t *testing.T) {
	d := &Driver{
		bucket: "test-bucket",
		prefix: "uploads/",
		config: Config{EnableSSE: true, SSEAlgorithm: "aws:kms", SSEKMSKeyID: "key-1"},
	}
	key := d.objectKey("abc", "text/a.txt")
	h := &handle{
		Meta: simplefile.Meta{
			UID:         "abc",
			Name:        "a.txt",
			Description: "changed",
			Mime:        "text/plain",
			StoragePath: d.storagePath(key),
		},
		driver:       d,
		storageClass: types.StorageClassStandardIa,
		cacheControl: "max-age=60",
	}

	input := h.copyInput()
	assert.Equal(t, "test-bucket", aws.ToString(input.Bucket))
	assert.Equal(t, key, aws.ToString(input.Key))
	assert.Equal(t, types.MetadataDirectiveReplace, input.MetadataDirective)
	assert.Equal(t, "text/plain", aws.ToString(input.ContentType))
	assert.Equal(t, "changed", input.Metadata[metaDescription])
	assert.Equal(t, types.StorageClassStandardIa, input.StorageClass)
	assert.Equal(t, "max-age=60", aws.ToString(input.CacheControl))
	assert.Equal(t, types.ServerSideEncryptionAwsKms, input.ServerSideEncryption)
	assert.Equal(t, "key-1", aws.ToString(input.SSEKMSKeyId))

	h.cacheControl = ""
	h.storageClass = ""
	d.config.EnableSSE = false
	input = h.copyInput()
	assert.Nil(t, input.CacheControl)
	assert.Empty(t, input.StorageClass)
	assert.Empty(t, input.ServerSideEncryption)
	assert.Nil(t, input.SSEKMSKeyId)
}

func TestPresignDownload(t *testing.T) {
	d, err := New(Config{
		Bucket:          "test-bucket",
		Prefix:          "uploads",
		AccessKeyID:     "test-key",
		SecretAccessKey: "test-secret",
		Endpoint:        "http://localhost:9000",
		UsePathStyle:    true,
		PresignDuration: 600,
	})
	require.NoError(t, err)

	ctx := context.Background()
	raw, err := d.PresignDownload(ctx, "s3://test-bucket/uploads/abc/application/2024/05/abc.pdf", "Q3 report.pdf")
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "localhost:9000", u.Host)
	assert.Equal(t, "/test-bucket/uploads/abc/application/2024/05/abc.pdf", u.Path)
	assert.Equal(t, "600", u.Query().Get("X-Amz-Expires"))
	assert.Equal(t, `attachment; filename="Q3 report.pdf"`, u.Query().Get("response-content-disposition"))

	raw, err = d.PresignDownload(ctx, "s3://test-bucket/uploads/abc/text/x.txt", "")
	require.NoError(t, err)
	assert.NotContains(t, raw, "response-content-disposition")

	_, err = d.PresignDownload(ctx, "s3://other-bucket/uploads/abc/text/x.txt", "")
	assert.Error(t, err)

	t.Run("DefaultDuration", func(t *testing.T) {
		d := NewWithClient(d.client, Config{Bucket: "test-bucket"})
		assert.Equal(t, time.Hour, d.presignDuration)
	})
}

func TestContract(t *testing.T) {
	endpoint := os.Getenv("TEST_S3_ENDPOINT")
	if endpoint == "" {
		t.Skip("TEST_S3_ENDPOINT not set")
	}

	d, err := New(Config{
		Bucket:                 getEnv("TEST_S3_BUCKET", "simplefile-test"),
		Prefix:                 "test-" + time.Now().Format("20060102150405"),
		AccessKeyID:            getEnv("TEST_S3_ACCESS_KEY_ID", "minioadmin"),
		SecretAccessKey:        getEnv("TEST_S3_SECRET_ACCESS_KEY", "minioadmin"),
		Endpoint:               endpoint,
		UsePathStyle:           true,
		CreateBucketIfNotExist: true,
	})
	require.NoError(t, err)

	drivertest.Run(t, d)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
