package blobstore

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/dmitrijs2005/weavekeeper/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 serves path-style object requests for a single bucket.
type fakeS3 struct {
	mu      sync.Mutex
	bucket  string
	objects map[string][]byte
	failGet bool
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	prefix := "/" + f.bucket + "/"
	if !strings.HasPrefix(r.URL.Path, prefix) {
		http.Error(w, "no such bucket", http.StatusNotFound)
		return
	}
	key := strings.TrimPrefix(r.URL.Path, prefix)

	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[key] = body
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		if f.failGet {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusForbidden)
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>AccessDenied</Code><Message>Access Denied</Message></Error>`)
			return
		}
		body, ok := f.objects[key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	case http.MethodDelete:
		delete(f.objects, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeS3) object(key string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.objects[key]
	return b, ok
}

func newS3(t *testing.T) (*S3Store, *fakeS3) {
	t.Helper()
	fake := &fakeS3{bucket: "weavekeeper", objects: map[string][]byte{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	s, err := NewS3Store(context.Background(), S3Options{
		Region:       "us-east-1",
		AccessKey:    "admin",
		SecretKey:    "secretpassword",
		Bucket:       "weavekeeper",
		BaseEndpoint: srv.URL,
	})
	require.NoError(t, err)
	return s, fake
}

func TestS3Store_PutGetDelete(t *testing.T) {
	s, fake := newS3(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "upload-1", []byte("payload")))
	stored, _ := fake.object("upload-1")
	assert.Equal(t, []byte("payload"), stored)

	got, err := s.Get(ctx, "upload-1")
	require.NoError(t, err)
	assert.Equal(t, "payload", string(got))

	require.NoError(t, s.Delete(ctx, "upload-1"))
	_, ok := fake.object("upload-1")
	assert.False(t, ok)
}

func TestS3Store_MissingKey(t *testing.T) {
	s, _ := newS3(t)

	_, err := s.Get(context.Background(), "absent")
	assert.True(t, errors.Is(err, common.ErrContentUnavailable), "got %v", err)
}

func TestS3Store_ServerError(t *testing.T) {
	s, fake := newS3(t)
	fake.mu.Lock()
	fake.failGet = true
	fake.mu.Unlock()

	_, err := s.Get(context.Background(), "k")
	require.Error(t, err)
	assert.False(t, errors.Is(err, common.ErrContentUnavailable))
}

func TestNewS3Store_RequiresBucket(t *testing.T) {
	_, err := NewS3Store(context.Background(), S3Options{Region: "us-east-1"})
	assert.True(t, errors.Is(err, common.ErrConfig), "got %v", err)
}
