package blobstore

import (
	"context"
	"errors"
	"testing"

	"github.com/dmitrijs2005/weavekeeper/internal/common"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFSStore_PutGetDelete(t *testing.T) {
	mem := afero.NewMemMapFs()
	s, err := NewFSStore(mem, "/var/blobs")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "8d3c6f0e-upload", []byte("hello")))

	got, err := s.Get(ctx, "8d3c6f0e-upload")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)

	exists, _ := afero.Exists(mem, "/var/blobs/8d3c6f0e-upload")
	assert.True(t, exists)
	tmpExists, _ := afero.Exists(mem, "/var/blobs/8d3c6f0e-upload.part")
	assert.False(t, tmpExists)

	require.NoError(t, s.Delete(ctx, "8d3c6f0e-upload"))
	_, err = s.Get(ctx, "8d3c6f0e-upload")
	assert.True(t, errors.Is(err, common.ErrContentUnavailable), "got %v", err)

	// second delete is a no-op
	require.NoError(t, s.Delete(ctx, "8d3c6f0e-upload"))
}

func TestFSStore_Overwrite(t *testing.T) {
	s, err := NewFSStore(afero.NewMemMapFs(), "/b")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "k", []byte("first")))
	require.NoError(t, s.Put(ctx, "k", []byte("second")))

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))
}

func TestFSStore_MissingKey(t *testing.T) {
	s, err := NewFSStore(afero.NewMemMapFs(), "/b")
	require.NoError(t, err)

	_, err = s.Get(context.Background(), "nope")
	assert.True(t, errors.Is(err, common.ErrContentUnavailable), "got %v", err)
}

func TestCheckKey(t *testing.T) {
	for _, key := range []string{"", "../etc/passwd", "a/b", `a\b`, ".."} {
		assert.True(t, errors.Is(checkKey(key), common.ErrValidation), "key %q", key)
	}
	assert.NoError(t, checkKey("0b7a1e52-3f54-4c55-a5e4-0b1e7d2c9f10"))
}

func TestFSStore_RejectsBadKeys(t *testing.T) {
	s, err := NewFSStore(afero.NewMemMapFs(), "/b")
	require.NoError(t, err)
	ctx := context.Background()

	assert.Error(t, s.Put(ctx, "../x", []byte("x")))
	_, err = s.Get(ctx, "../x")
	assert.Error(t, err)
	assert.Error(t, s.Delete(ctx, "../x"))
}
