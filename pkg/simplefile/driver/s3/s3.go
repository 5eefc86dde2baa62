package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"
	"github.com/tendant/simple-file/pkg/simplefile"
)

// Name is the registry name of the S3 driver
const Name = "s3"

// Object user-metadata keys
const (
	metaUID         = "uid"
	metaKind        = "kind"
	metaName        = "name"
	metaDescription = "description"
	metaPath        = "path"
	metaWidth       = "width"
	metaHeight      = "height"
	metaCreatedAt   = "created-at"
)

// Config options for the S3 driver
type Config struct {
	Region          string // AWS region
	Bucket          string // S3 bucket name
	Prefix          string // Optional key prefix
	AccessKeyID     string // AWS access key ID
	SecretAccessKey string // AWS secret access key
	Endpoint        string // Optional custom endpoint for S3-compatible services
	UsePathStyle    bool   // Use path-style addressing (default: false)
	PresignDuration int    // Duration in seconds for presigned URLs (default: 3600)

	// Server-side encryption options
	EnableSSE    bool   // Enable server-side encryption
	SSEAlgorithm string // SSE algorithm (AES256 or aws:kms)
	SSEKMSKeyID  string // Optional KMS key ID for aws:kms algorithm

	// MinIO/S3-compatible service options
	CreateBucketIfNotExist bool // Create bucket if it doesn't exist
}

// Options are the per-file backend options accepted by Create
type Options struct {
	StorageClass string `mapstructure:"storage_class"`
	CacheControl string `mapstructure:"cache_control"`
}

// Driver stores each file as one object whose user metadata carries the
// record fields. EXIF data is not persisted.
type Driver struct {
	client          *s3.Client
	bucket          string
	prefix          string
	presignClient   *s3.PresignClient
	presignDuration time.Duration
	config          Config
}

// New creates a new S3 driver
func New(config Config) (*Driver, error) {
	if config.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}

	if config.Region == "" {
		config.Region = "us-east-1"
	}

	var awsCfg aws.Config
	var err error

	if config.AccessKeyID != "" && config.SecretAccessKey != "" {
		awsCfg, err = awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithRegion(config.Region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				config.AccessKeyID,
				config.SecretAccessKey,
				"",
			)),
		)
	} else {
		// Use default credential chain
		awsCfg, err = awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithRegion(config.Region),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Options []func(*s3.Options)
	if config.Endpoint != "" {
		s3Options = append(s3Options, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(config.Endpoint)
			o.UsePathStyle = config.UsePathStyle
		})
	}

	d := NewWithClient(s3.NewFromConfig(awsCfg, s3Options...), config)

	if config.CreateBucketIfNotExist {
		if err := d.createBucketIfNotExists(context.Background()); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return d, nil
}

// NewWithClient creates a driver over an existing client
func NewWithClient(client *s3.Client, config Config) *Driver {
	prefix := strings.Trim(config.Prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	if config.PresignDuration <= 0 {
		config.PresignDuration = 3600
	}
	return &Driver{
		client:          client,
		bucket:          config.Bucket,
		prefix:          prefix,
		presignClient:   s3.NewPresignClient(client),
		presignDuration: time.Duration(config.PresignDuration) * time.Second,
		config:          config,
	}
}

// createBucketIfNotExists creates the bucket if it doesn't exist
func (d *Driver) createBucketIfNotExists(ctx context.Context) error {
	_, err := d.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(d.bucket),
	})
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) &&
		!strings.Contains(err.Error(), "BadRequest") &&
		!strings.Contains(err.Error(), "NoSuchBucket") {
		return fmt.Errorf("failed to check bucket: %w", err)
	}

	createInput := &s3.CreateBucketInput{
		Bucket: aws.String(d.bucket),
	}
	if d.config.Region != "us-east-1" {
		createInput.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(d.config.Region),
		}
	}

	_, err = d.client.CreateBucket(ctx, createInput)
	if err != nil {
		if strings.Contains(err.Error(), "BucketAlreadyExists") ||
			strings.Contains(err.Error(), "BucketAlreadyOwnedByYou") {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// objectKey places every object under its uid so Get can find it by prefix
func (d *Driver) objectKey(uid, logicalPath string) string {
	return d.prefix + uid + "/" + logicalPath
}

func (d *Driver) storagePath(key string) string {
	return "s3://" + d.bucket + "/" + key
}

func (d *Driver) keyFromStoragePath(storagePath string) string {
	return strings.TrimPrefix(storagePath, "s3://"+d.bucket+"/")
}

// PresignDownload returns a time-limited GET URL for an object of this
// bucket. filename, when set, becomes the attachment name.
func (d *Driver) PresignDownload(ctx context.Context, storagePath string, filename string) (string, error) {
	prefix := "s3://" + d.bucket + "/"
	if !strings.HasPrefix(storagePath, prefix) {
		return "", fmt.Errorf("storage path %q is not in bucket %s", storagePath, d.bucket)
	}

	input := &s3.GetObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(d.keyFromStoragePath(storagePath)),
	}
	if filename != "" {
		input.ResponseContentDisposition = aws.String(mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	}

	result, err := d.presignClient.PresignGetObject(ctx, input, func(opts *s3.PresignOptions) {
		opts.Expires = d.presignDuration
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate download URL: %w", err)
	}
	return result.URL, nil
}

// sse returns the configured server-side encryption and KMS key, if any
func (d *Driver) sse() (types.ServerSideEncryption, *string) {
	if !d.config.EnableSSE {
		return "", nil
	}
	switch d.config.SSEAlgorithm {
	case "AES256":
		return types.ServerSideEncryptionAes256, nil
	case "aws:kms":
		if d.config.SSEKMSKeyID != "" {
			return types.ServerSideEncryptionAwsKms, aws.String(d.config.SSEKMSKeyID)
		}
		return types.ServerSideEncryptionAwsKms, nil
	}
	return "", nil
}

// Create uploads the file with its metadata
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
	meta.Exif = nil
	meta.Path = params.LogicalPath(uid, mime, meta.CreatedAt)
	key := d.objectKey(uid, meta.Path)
	meta.StoragePath = d.storagePath(key)

	f, err := os.Open(localPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer f.Close()

	input := &s3.PutObjectInput{
		Bucket:      aws.String(d.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(mime),
		Metadata:    encodeMetadata(meta),
	}
	if opts.StorageClass != "" {
		input.StorageClass = types.StorageClass(opts.StorageClass)
	}
	if opts.CacheControl != "" {
		input.CacheControl = aws.String(opts.CacheControl)
	}
	input.ServerSideEncryption, input.SSEKMSKeyId = d.sse()

	if _, err := manager.NewUploader(d.client).Upload(ctx, input); err != nil {
		return nil, fmt.Errorf("failed to upload to S3: %w", err)
	}

	return &handle{
		Meta:         meta,
		driver:       d,
		storageClass: input.StorageClass,
		cacheControl: opts.CacheControl,
	}, nil
}

// Get finds the object stored under uid and decodes its metadata
func (d *Driver) Get(ctx context.Context, uid string) (simplefile.Handle, error) {
	if _, err := uuid.Parse(uid); err != nil {
		return nil, &simplefile.UIDError{UID: uid, Op: "get", Err: simplefile.ErrInvalidFileUIDFormat}
	}

	list, err := d.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(d.bucket),
		Prefix:  aws.String(d.prefix + uid + "/"),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list objects: %w", err)
	}
	if len(list.Contents) == 0 {
		return nil, &simplefile.UIDError{UID: uid, Op: "get", Err: simplefile.ErrFileNotFound}
	}
	key := aws.ToString(list.Contents[0].Key)

	head, err := d.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, &simplefile.UIDError{UID: uid, Op: "get", Err: simplefile.ErrFileNotFound}
		}
		return nil, fmt.Errorf("failed to get object metadata: %w", err)
	}

	meta := decodeMetadata(head.Metadata)
	meta.UID = uid
	meta.Mime = aws.ToString(head.ContentType)
	meta.Length = aws.ToInt64(head.ContentLength)
	meta.StoragePath = d.storagePath(key)

	return &handle{
		Meta:         meta,
		driver:       d,
		storageClass: head.StorageClass,
		cacheControl: aws.ToString(head.CacheControl),
	}, nil
}

func isNotFound(err error) bool {
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && (apiErr.ErrorCode() == "NotFound" || apiErr.ErrorCode() == "NoSuchKey")
}

// encodeMetadata escapes values since S3 user metadata must be US-ASCII
func encodeMetadata(m simplefile.Meta) map[string]string {
	md := map[string]string{
		metaUID:         m.UID,
		metaKind:        string(m.Kind()),
		metaName:        url.QueryEscape(m.Name),
		metaDescription: url.QueryEscape(m.Description),
		metaPath:        url.QueryEscape(m.Path),
		metaCreatedAt:   m.CreatedAt.Format(time.RFC3339Nano),
	}
	if m.Kind() == simplefile.KindImage {
		md[metaWidth] = strconv.Itoa(m.Width)
		md[metaHeight] = strconv.Itoa(m.Height)
	}
	return md
}

func decodeMetadata(md map[string]string) simplefile.Meta {
	unescape := func(k string) string {
		v, err := url.QueryUnescape(md[k])
		if err != nil {
			return md[k]
		}
		return v
	}

	m := simplefile.Meta{
		Type:        simplefile.Kind(md[metaKind]),
		Name:        unescape(metaName),
		Description: unescape(metaDescription),
		Path:        unescape(metaPath),
	}
	m.Width, _ = strconv.Atoi(md[metaWidth])
	m.Height, _ = strconv.Atoi(md[metaHeight])
	m.CreatedAt, _ = time.Parse(time.RFC3339Nano, md[metaCreatedAt])
	return m
}

type handle struct {
	simplefile.Meta
	driver *Driver

	// object settings a metadata rewrite must carry over
	storageClass types.StorageClass
	cacheControl string
}

// copyInput replaces the object's metadata in place, keeping its storage
// class, cache control and encryption
func (h *handle) copyInput() *s3.CopyObjectInput {
	d := h.driver
	key := d.keyFromStoragePath(h.StoragePath)

	input := &s3.CopyObjectInput{
		Bucket:            aws.String(d.bucket),
		Key:               aws.String(key),
		CopySource:        aws.String(url.PathEscape(d.bucket + "/" + key)),
		ContentType:       aws.String(h.Mime),
		Metadata:          encodeMetadata(h.Meta),
		MetadataDirective: types.MetadataDirectiveReplace,
		StorageClass:      h.storageClass,
	}
	if h.cacheControl != "" {
		input.CacheControl = aws.String(h.cacheControl)
	}
	input.ServerSideEncryption, input.SSEKMSKeyId = d.sse()
	return input
}

// Save rewrites the object's metadata with a server-side copy
func (h *handle) Save(ctx context.Context) error {
	_, err := h.driver.client.CopyObject(ctx, h.copyInput())
	if err != nil {
		if isNotFound(err) {
			return &simplefile.UIDError{UID: h.UID, Op: "save", Err: simplefile.ErrFileNotFound}
		}
		return fmt.Errorf("failed to update object metadata: %w", err)
	}
	return nil
}

func (h *handle) Delete(ctx context.Context) error {
	d := h.driver
	_, err := d.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(d.keyFromStoragePath(h.StoragePath)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete from S3: %w", err)
	}
	return nil
}

func (h *handle) Open(ctx context.Context) (io.ReadCloser, error) {
	d := h.driver
	result, err := d.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(d.keyFromStoragePath(h.StoragePath)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, &simplefile.UIDError{UID: h.UID, Op: "open", Err: simplefile.ErrFileNotFound}
		}
		return nil, fmt.Errorf("failed to download from S3: %w", err)
	}
	return result.Body, nil
}
