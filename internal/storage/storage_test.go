package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projectsentinel/apiserver/config"
)

type memoryBackend struct {
	objects map[string]string
	types   map[string]string
}

func (m *memoryBackend) EnsureBucket(ctx context.Context) error { return nil }

func (m *memoryBackend) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.objects[key] = string(data)
	m.types[key] = contentType
	return nil
}

func (m *memoryBackend) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return io.NopCloser(strings.NewReader(data)), nil
}

func (m *memoryBackend) Bucket() string { return "reports" }

func TestOpenDisabled(t *testing.T) {
	for _, backend := range []string{"", config.BackendNone} {
		s, err := Open(context.Background(), config.StorageConfig{Backend: backend})
		require.NoError(t, err)
		assert.Nil(t, s)
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), config.StorageConfig{Backend: "s3"})
	assert.ErrorContains(t, err, `unknown storage backend "s3"`)
}

func TestStorageRoundTrip(t *testing.T) {
	backend := &memoryBackend{objects: map[string]string{}, types: map[string]string{}}
	s := NewStorage(backend)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "reports/a.json", strings.NewReader(`{}`), 2, "application/json"))
	assert.Equal(t, "application/json", backend.types["reports/a.json"])

	reader, err := s.Get(ctx, "reports/a.json")
	require.NoError(t, err)
	defer reader.Close()
	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(data))

	_, err = s.Get(ctx, "reports/missing.json")
	assert.ErrorIs(t, err, ErrObjectNotFound)
	assert.Equal(t, "reports", s.Bucket())
}
