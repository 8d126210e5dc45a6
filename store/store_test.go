package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpen_SharedMemoryByURI(t *testing.T) {
	ctx := context.Background()

	a, err := Open(ctx, "hive://shared-test", nil)
	require.NoError(t, err)
	b, err := Open(ctx, "hive://shared-test", nil)
	require.NoError(t, err)

	require.NoError(t, a.KVStore().SetRaw(ctx, MetaCF, []byte("k"), []byte("v")))
	v, err := b.KVStore().GetRaw(ctx, MetaCF, []byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v"), v)

	other, err := Open(ctx, "hive://shared-test-other", nil)
	require.NoError(t, err)
	_, err = other.KVStore().GetRaw(ctx, MetaCF, []byte("k"))
	require.Error(t, err)
}

func TestOpen_CreatesColumnFamilies(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, "mem://cf-test", nil)
	require.NoError(t, err)
	require.True(t, s.KVStore().CheckColumns(MetaCF))
	require.True(t, s.KVStore().CheckColumns(DirectoryCF))
}
