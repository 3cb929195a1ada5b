package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 answers the handful of calls Store makes.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]string
	types   map[string]string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch r.Method {
	case http.MethodHead:
		w.WriteHeader(http.StatusOK)
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[r.URL.Path] = string(body)
		f.types[r.URL.Path] = r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestStorePut(t *testing.T) {
	s3 := &fakeS3{objects: map[string]string{}, types: map[string]string{}}
	srv := httptest.NewServer(s3)
	defer srv.Close()

	endpoint := strings.TrimPrefix(srv.URL, "http://")
	store, err := New(context.Background(), Options{
		Endpoint:  endpoint,
		Region:    "us-east-1",
		Bucket:    "posture",
		AccessKey: "key",
		SecretKey: "secret",
	})
	require.NoError(t, err)
	require.NoError(t, store.Check(context.Background()))

	url, err := store.Put(context.Background(), "acme/example.com/scans/s1.json", []byte(`{"id":"s1"}`), "application/json")
	require.NoError(t, err)
	assert.Equal(t, "http://"+endpoint+"/posture/acme/example.com/scans/s1.json", url)

	s3.mu.Lock()
	defer s3.mu.Unlock()
	assert.Equal(t, `{"id":"s1"}`, s3.objects["/posture/acme/example.com/scans/s1.json"])
	assert.Equal(t, "application/json", s3.types["/posture/acme/example.com/scans/s1.json"])
}
