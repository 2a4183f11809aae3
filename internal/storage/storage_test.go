package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
)

type fakePutter struct {
	bucket, key, contentType string
	body                     string
	err                      error
}

func (f *fakePutter) PutObject(_ context.Context, bucket, key string, r io.Reader, _ int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if f.err != nil {
		return minio.UploadInfo{}, f.err
	}
	b, _ := io.ReadAll(r)
	f.bucket, f.key, f.contentType, f.body = bucket, key, opts.ContentType, string(b)
	return minio.UploadInfo{Bucket: bucket, Key: key, Size: int64(len(b))}, nil
}

func TestMinioStore_Put(t *testing.T) {
	fp := &fakePutter{}
	s := newMinioStore(fp, Config{Endpoint: "minio:9000", Bucket: "images"})
	s.now = func() time.Time { return time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC) }

	url, err := s.Put(context.Background(), "Photo.JPG", "image/jpeg", strings.NewReader("data"), 4)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if fp.bucket != "images" || fp.contentType != "image/jpeg" || fp.body != "data" {
		t.Fatalf("unexpected upload: %+v", fp)
	}
	if !strings.HasPrefix(fp.key, "uploads/2025/03/") || !strings.HasSuffix(fp.key, ".jpg") {
		t.Fatalf("key = %q", fp.key)
	}
	if url != "http://minio:9000/images/"+fp.key {
		t.Fatalf("url = %q", url)
	}
}

func TestMinioStore_PublicBaseURL(t *testing.T) {
	fp := &fakePutter{}
	s := newMinioStore(fp, Config{Endpoint: "minio:9000", Bucket: "b", UseSSL: true, PublicBaseURL: "https://cdn.example.com/"})
	url, err := s.Put(context.Background(), `C:\tmp\x.png`, "image/png", strings.NewReader("p"), 1)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if !strings.HasPrefix(url, "https://cdn.example.com/b/uploads/") || !strings.HasSuffix(url, ".png") {
		t.Fatalf("url = %q", url)
	}

	s2 := newMinioStore(fp, Config{Endpoint: "s3.local", Bucket: "b", UseSSL: true})
	if s2.baseURL != "https://s3.local/b" {
		t.Fatalf("base = %q", s2.baseURL)
	}
}

func TestMinioStore_PutError(t *testing.T) {
	boom := errors.New("boom")
	s := newMinioStore(&fakePutter{err: boom}, Config{Endpoint: "m", Bucket: "b"})
	if _, err := s.Put(context.Background(), "a.gif", "image/gif", strings.NewReader(""), 0); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
}

func TestDisabled(t *testing.T) {
	_, err := Disabled{}.Put(context.Background(), "a.png", "image/png", strings.NewReader(""), 0)
	if !errors.Is(err, ErrDisabled) {
		t.Fatalf("err = %v", err)
	}
}
