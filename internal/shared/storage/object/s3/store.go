package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"mirror-backend/internal/shared/storage/object"
	"mirror-backend/internal/shared/util"
)

// API is the slice of the S3 client the photo store calls.
type API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// Store keeps customer photos in one bucket. Keys are
// <prefix>/<hash(session)>/<random>_<name>; the session id itself never
// appears in the bucket.
type Store struct {
	api    API
	bucket string
	prefix string
	sse    func(*s3.PutObjectInput)
}

// New loads the default AWS credential chain and returns a Store for bucket.
func New(ctx context.Context, region, bucket, prefix, kmsKeyID string) (*Store, error) {
	if strings.TrimSpace(bucket) == "" {
		return nil, errors.New("s3 bucket is required")
	}
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewWithClient(s3.NewFromConfig(cfg), bucket, prefix, kmsKeyID), nil
}

// NewWithClient builds a Store on an existing client. Objects are encrypted
// with kmsKeyID when set, otherwise with S3-managed AES256.
func NewWithClient(api API, bucket, prefix, kmsKeyID string) *Store {
	s := &Store{
		api:    api,
		bucket: bucket,
		prefix: strings.Trim(strings.TrimSpace(prefix), "/"),
		sse: func(in *s3.PutObjectInput) {
			in.ServerSideEncryption = s3types.ServerSideEncryptionAes256
		},
	}
	if key := strings.TrimSpace(kmsKeyID); key != "" {
		s.sse = func(in *s3.PutObjectInput) {
			in.ServerSideEncryption = s3types.ServerSideEncryptionAwsKms
			in.SSEKMSKeyId = aws.String(key)
		}
	}
	return s
}

// Save buffers the photo and uploads it with its sniffed content type.
// Photos are capped well below S3's single-put limit upstream.
func (s *Store) Save(ctx context.Context, namespace, fileName string, r io.Reader) (object.Stored, error) {
	name, err := util.SanitizeFileName(fileName)
	if err != nil {
		return object.Stored{}, fmt.Errorf("sanitize file name: %w", err)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return object.Stored{}, fmt.Errorf("read upload: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return object.Stored{}, err
	}
	mimeType, _, _ := object.Sniff(bytes.NewReader(data))

	key := path.Join(util.ShortHash(namespace, 32), object.RandomID()+"_"+name)
	in := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.objectKey(key)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(mimeType),
		CacheControl:  aws.String("private, no-store"),
	}
	s.sse(in)

	if _, err := s.api.PutObject(ctx, in); err != nil {
		return object.Stored{}, s.wrap("put", key, err)
	}
	return object.Stored{Key: key, Size: int64(len(data)), MimeType: mimeType}, nil
}

// Open streams a stored photo. Missing keys map to object.ErrNotFound.
func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		var missing *s3types.NoSuchKey
		if errors.As(err, &missing) {
			return nil, object.ErrNotFound
		}
		return nil, s.wrap("get", key, err)
	}
	return out.Body, nil
}

// Delete removes a stored photo. S3 deletes are idempotent.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		return s.wrap("delete", key, err)
	}
	return nil
}

// Check reports whether the bucket is reachable with the current
// credentials. It backs the readiness probe.
func (s *Store) Check(ctx context.Context) error {
	if _, err := s.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return fmt.Errorf("s3 head bucket %s: %w", s.bucket, err)
	}
	return nil
}

func (s *Store) objectKey(key string) string {
	return applyPrefix(s.prefix, key)
}

func (s *Store) wrap(op, key string, err error) error {
	return fmt.Errorf("s3 %s bucket=%s key=%s: %w", op, s.bucket, s.objectKey(key), err)
}

func applyPrefix(prefix, key string) string {
	prefix = strings.Trim(prefix, "/")
	key = strings.TrimLeft(key, "/")
	switch {
	case prefix == "":
		return key
	case key == "":
		return prefix
	}
	return prefix + "/" + key
}

var _ object.ObjectStore = (*Store)(nil)
