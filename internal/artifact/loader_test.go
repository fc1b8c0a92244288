package artifact

import (
	"context"
	"errors"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore keeps objects in memory, keyed by bucket/key.
type fakeStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	listErr   error
	downloads int
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string][]byte)}
}

func (s *fakeStore) List(_ context.Context, bucket, prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var keys []string
	for k := range s.objects {
		b, key, _ := strings.Cut(k, "/")
		if b == bucket && strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *fakeStore) Download(_ context.Context, bucket, key, dst string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[bucket+"/"+key]
	if !ok {
		return errors.New("no such key")
	}
	s.downloads++
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}

func (s *fakeStore) Upload(_ context.Context, src, bucket, key string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[bucket+"/"+key] = data
	return nil
}

func TestLoader_PrefersNewestValidLocal(t *testing.T) {
	base := t.TempDir()
	b := trainedBundle(t)

	older := filepath.Join(base, "gbt_model_20240101T000000")
	newest := filepath.Join(base, "gbt_model_20240301T000000")
	require.NoError(t, Save(older, b))
	require.NoError(t, Save(newest, b))
	// incomplete directory sorts last but is skipped
	require.NoError(t, os.MkdirAll(filepath.Join(base, "gbt_model_20240401T000000"), 0o755))

	store := newFakeStore()
	l := NewLoader(LoaderOptions{BasePath: base, Bucket: "models", Store: store})

	dir, err := l.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, newest, dir)
	assert.Zero(t, store.downloads)
}

func TestLoader_DownloadsNewestRemote(t *testing.T) {
	ctx := context.Background()
	staging := t.TempDir()
	store := newFakeStore()
	b := trainedBundle(t)

	for _, name := range []string{"gbt_model_20240101T000000", "gbt_model_20240501T000000"} {
		dir := filepath.Join(staging, name)
		require.NoError(t, Save(dir, b))
		require.NoError(t, UploadBundle(ctx, store, "models", dir))
	}
	// stray objects outside a bundle directory are ignored
	store.objects["models/gbt_model_readme.txt"] = []byte("x")

	base := t.TempDir()
	l := NewLoader(LoaderOptions{BasePath: base, Bucket: "models", Store: store})

	got, dir, err := l.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "gbt_model_20240501T000000"), dir)
	assert.Equal(t, b.FeatureColumns, got.FeatureColumns)
	assert.Equal(t, len(RequiredFiles), store.downloads)

	// second resolve finds the downloaded copy locally
	again, err := l.Resolve(ctx)
	require.NoError(t, err)
	assert.Equal(t, dir, again)
	assert.Equal(t, len(RequiredFiles), store.downloads)
}

func TestLoader_NoModel(t *testing.T) {
	ctx := context.Background()

	l := NewLoader(LoaderOptions{BasePath: t.TempDir()})
	_, err := l.Resolve(ctx)
	assert.ErrorIs(t, err, ErrNoModel)

	store := newFakeStore()
	l = NewLoader(LoaderOptions{BasePath: t.TempDir(), Bucket: "models", Store: store})
	_, err = l.Resolve(ctx)
	assert.ErrorIs(t, err, ErrNoModel)

	store.listErr = errors.New("access denied")
	_, err = l.Resolve(ctx)
	assert.ErrorIs(t, err, ErrNoModel)
}

func TestLoader_IncompleteRemoteBundle(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.objects["models/"+path.Join("gbt_model_20240101T000000", ModelFile)] = []byte("{}")

	l := NewLoader(LoaderOptions{BasePath: t.TempDir(), Bucket: "models", Store: store})
	_, err := l.Resolve(ctx)
	assert.ErrorIs(t, err, ErrNoModel)
}

func TestUploadBundle_RequiresStore(t *testing.T) {
	err := UploadBundle(context.Background(), nil, "", t.TempDir())
	assert.Error(t, err)
}
