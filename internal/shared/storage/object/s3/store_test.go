package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"mirror-backend/internal/shared/storage/object"
)

type fakeS3 struct {
	objects map[string][]byte
	lastPut *s3.PutObjectInput
	headErr error
}

func (f *fakeS3) HeadBucket(_ context.Context, _ *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	return &s3.HeadBucketOutput{}, f.headErr
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = body
	f.lastPut = in
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(body))}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestApplyPrefix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		prefix string
		key    string
		want   string
	}{
		{name: "no prefix", prefix: "", key: "ns/front.jpg", want: "ns/front.jpg"},
		{name: "simple prefix", prefix: "photos", key: "ns/front.jpg", want: "photos/ns/front.jpg"},
		{name: "prefix trailing slash", prefix: "photos/", key: "ns/front.jpg", want: "photos/ns/front.jpg"},
		{name: "prefix and key slashes", prefix: "/photos/", key: "/ns/front.jpg", want: "photos/ns/front.jpg"},
		{name: "empty key", prefix: "photos", key: "", want: "photos"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := applyPrefix(tt.prefix, tt.key); got != tt.want {
				t.Fatalf("applyPrefix(%q, %q) = %q, want %q", tt.prefix, tt.key, got, tt.want)
			}
		})
	}
}

func TestStoreRoundTrip(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}}
	store := NewWithClient(fake, "bucket", "photos/", "")
	ctx := context.Background()

	jpeg := []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F'}
	stored, err := store.Save(ctx, "session-1", "front.jpg", bytes.NewReader(jpeg))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if stored.MimeType != "image/jpeg" || stored.Size != int64(len(jpeg)) {
		t.Fatalf("unexpected stored metadata %+v", stored)
	}
	if !strings.HasPrefix(aws.ToString(fake.lastPut.Key), "photos/") {
		t.Fatalf("expected prefixed key, got %s", aws.ToString(fake.lastPut.Key))
	}
	if fake.lastPut.ServerSideEncryption != s3types.ServerSideEncryptionAes256 {
		t.Fatalf("expected AES256 encryption without kms key")
	}
	if aws.ToInt64(fake.lastPut.ContentLength) != int64(len(jpeg)) {
		t.Fatalf("expected content length %d, got %d", len(jpeg), aws.ToInt64(fake.lastPut.ContentLength))
	}
	if strings.Contains(aws.ToString(fake.lastPut.Key), "session-1") {
		t.Fatalf("session id leaked into key %s", aws.ToString(fake.lastPut.Key))
	}

	rc, err := store.Open(ctx, stored.Key)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	got, _ := io.ReadAll(rc)
	if !bytes.Equal(got, jpeg) {
		t.Fatalf("round trip mismatch")
	}

	if err := store.Delete(ctx, stored.Key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Open(ctx, stored.Key); !errors.Is(err, object.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreUsesKMSKeyWhenConfigured(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}}
	store := NewWithClient(fake, "bucket", "", " alias/photos ")

	if _, err := store.Save(context.Background(), "s", "side.png", strings.NewReader("\x89PNG\r\n\x1a\n")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if fake.lastPut.ServerSideEncryption != s3types.ServerSideEncryptionAwsKms {
		t.Fatalf("expected aws:kms, got %q", fake.lastPut.ServerSideEncryption)
	}
	if aws.ToString(fake.lastPut.SSEKMSKeyId) != "alias/photos" {
		t.Fatalf("unexpected kms key %q", aws.ToString(fake.lastPut.SSEKMSKeyId))
	}
	if aws.ToString(fake.lastPut.ContentType) != "image/png" {
		t.Fatalf("expected image/png, got %q", aws.ToString(fake.lastPut.ContentType))
	}
}

func TestStoreCheckWrapsHeadBucketError(t *testing.T) {
	boom := errors.New("access denied")
	store := NewWithClient(&fakeS3{headErr: boom}, "bucket", "", "")

	if err := store.Check(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped head error, got %v", err)
	}
	if err := NewWithClient(&fakeS3{}, "bucket", "", "").Check(context.Background()); err != nil {
		t.Fatalf("expected healthy bucket, got %v", err)
	}
}

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), "us-east-1", " ", "", ""); err == nil {
		t.Fatalf("expected error for empty bucket")
	}
}
