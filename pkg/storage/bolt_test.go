package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoltStoreGetPutDelete(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	v, err := store.Get(BucketPreferences, "clusterSelection")
	require.NoError(t, err)
	assert.Nil(t, v)

	require.NoError(t, store.Put(BucketPreferences, "clusterSelection", []byte(`{"_id":"c1"}`)))

	v, err = store.Get(BucketPreferences, "clusterSelection")
	require.NoError(t, err)
	assert.Equal(t, `{"_id":"c1"}`, string(v))

	require.NoError(t, store.Delete(BucketPreferences, "clusterSelection"))
	require.NoError(t, store.Delete(BucketPreferences, "clusterSelection"))

	v, err = store.Get(BucketPreferences, "clusterSelection")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestBoltStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, store.Put(BucketSession, "token", []byte("abc")))
	require.NoError(t, store.Close())

	store, err = Open(dir)
	require.NoError(t, err)
	defer store.Close()

	v, err := store.Get(BucketSession, "token")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(v))
}

func TestBoltStoreUnknownBucket(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	v, err := store.Get("missing", "k")
	require.NoError(t, err)
	assert.Nil(t, v)

	require.NoError(t, store.Put("extra", "k", []byte("v")))
	v, err = store.Get("extra", "k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(v))
}
