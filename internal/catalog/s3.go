package catalog

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/darren8c/biblica-paratext-translator-plugin/core/checks"
	"github.com/darren8c/biblica-paratext-translator-plugin/core/errors"
)

// S3Config locates an S3-compatible bucket.
type S3Config struct {
	Endpoint  string `json:"endpoint"`
	Region    string `json:"region,omitempty"`
	AccessKey string `json:"access_key"`
	SecretKey string `json:"secret_key"`
	Bucket    string `json:"bucket"`
	Prefix    string `json:"prefix,omitempty"`
	UseSSL    bool   `json:"use_ssl"`
}

// S3Repository keeps item XML documents as objects in a bucket, at
// <prefix>/<id>/<version>.xml. The bucket is created on first use.
type S3Repository struct {
	client *minio.Client
	bucket string
	region string
	prefix string

	initOnce sync.Once
	initErr  error
}

// NewS3Repository builds a client. It does not contact the server.
func NewS3Repository(cfg S3Config) (*S3Repository, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, errors.NewValidation("endpoint", "s3 endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, errors.NewValidation("access_key", "s3 access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, errors.NewValidation("bucket", "s3 bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}
	prefix := strings.Trim(strings.TrimSpace(cfg.Prefix), "/")
	if prefix == "" {
		prefix = "checks"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	return &S3Repository{client: client, bucket: bucket, region: region, prefix: prefix}, nil
}

func (r *S3Repository) ensureBucket(ctx context.Context) error {
	r.initOnce.Do(func() {
		exists, err := r.client.BucketExists(ctx, r.bucket)
		if err != nil {
			r.initErr = err
			return
		}
		if exists {
			return
		}
		r.initErr = r.client.MakeBucket(ctx, r.bucket, minio.MakeBucketOptions{Region: r.region})
	})
	if r.initErr != nil {
		return fmt.Errorf("ensure bucket: %w", r.initErr)
	}
	return nil
}

func (r *S3Repository) key(id uuid.UUID, version string) string {
	return r.prefix + "/" + objectName(id, version)
}

// List fetches every item object under the prefix.
func (r *S3Repository) List(ctx context.Context) ([]checks.Item, error) {
	if err := r.ensureBucket(ctx); err != nil {
		return nil, err
	}
	var items []checks.Item
	for obj := range r.client.ListObjects(ctx, r.bucket, minio.ListObjectsOptions{
		Prefix:    r.prefix + "/",
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		if !strings.HasSuffix(obj.Key, ".xml") {
			continue
		}
		it, err := r.read(ctx, obj.Key)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	sortItems(items)
	return items, nil
}

// Get fetches one item version.
func (r *S3Repository) Get(ctx context.Context, id uuid.UUID, version string) (checks.Item, error) {
	if err := r.ensureBucket(ctx); err != nil {
		return checks.Item{}, err
	}
	it, err := r.read(ctx, r.key(id, version))
	if isNoSuchKey(err) {
		return checks.Item{}, errors.NewNotFound("check", ref(id, version))
	}
	return it, err
}

func (r *S3Repository) read(ctx context.Context, key string) (checks.Item, error) {
	obj, err := r.client.GetObject(ctx, r.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return checks.Item{}, err
	}
	defer obj.Close()

	it, err := checks.DecodeXML(obj)
	if err != nil {
		var pe *errors.ParseError
		if errors.As(err, &pe) {
			// A missing object surfaces on the first read, inside the decoder.
			if isNoSuchKey(pe.Err) {
				return checks.Item{}, pe.Err
			}
			pe.Path = key
		}
		return checks.Item{}, err
	}
	return it, nil
}

// Put uploads an item version, replacing any object already there.
func (r *S3Repository) Put(ctx context.Context, it checks.Item) error {
	if err := r.ensureBucket(ctx); err != nil {
		return err
	}
	data, err := checks.MarshalXML(it)
	if err != nil {
		return err
	}
	_, err = r.client.PutObject(ctx, r.bucket, r.key(it.ID, it.Version), bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/xml"})
	return err
}

// Delete removes an item version.
func (r *S3Repository) Delete(ctx context.Context, id uuid.UUID, version string) error {
	if err := r.ensureBucket(ctx); err != nil {
		return err
	}
	key := r.key(id, version)
	if _, err := r.client.StatObject(ctx, r.bucket, key, minio.StatObjectOptions{}); err != nil {
		if isNoSuchKey(err) {
			return errors.NewNotFound("check", ref(id, version))
		}
		return err
	}
	return r.client.RemoveObject(ctx, r.bucket, key, minio.RemoveObjectOptions{})
}

func isNoSuchKey(err error) bool {
	if err == nil {
		return false
	}
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NoSuchBucket"
}
