package directory

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hivedb/hive/assigner"
	"github.com/hivedb/hive/errors"
	"github.com/hivedb/hive/proto"
	"github.com/hivedb/hive/store"
)

type fakeHive struct {
	status proto.Status
}

func (f *fakeHive) Status() proto.Status { return f.status }

func newTestFacade(t *testing.T) (*Facade, *fakeHive) {
	s, err := store.Open(context.Background(), fmt.Sprintf("mem://facade-%s", t.Name()), nil)
	require.NoError(t, err)
	h := &fakeHive{status: proto.StatusWritable}
	dir := New(testDimension(), s, nil)
	return NewFacade(dir, h, assigner.NewHashAssigner()), h
}

func TestFacade_InsertPrimaryIndexKey(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFacade(t)
	key := proto.Uint64Key(42)

	require.NoError(t, f.InsertPrimaryIndexKey(ctx, key))

	ids, err := f.NodeIDsOfPrimaryIndexKey(ctx, key)
	require.NoError(t, err)
	require.Len(t, ids, 1)

	// the assigner landed it on a node of the dimension
	_, ok := f.dimension().Node(ids[0])
	require.True(t, ok)
}

func TestFacade_ReadOnlyHiveBlocksWrites(t *testing.T) {
	ctx := context.Background()
	f, h := newTestFacade(t)

	require.NoError(t, f.InsertPrimaryIndexKey(ctx, proto.Uint64Key(42)))

	h.status = proto.StatusReadOnly
	err := f.InsertPrimaryIndexKey(ctx, proto.Uint64Key(43))
	require.ErrorIs(t, err, errors.ErrReadOnly)

	err = f.DeletePrimaryIndexKey(ctx, proto.Uint64Key(42))
	require.ErrorIs(t, err, errors.ErrReadOnly)

	// reads still pass
	sems, err := f.KeySemaphoresOfPrimaryIndexKey(ctx, proto.Uint64Key(42))
	require.NoError(t, err)
	require.Len(t, sems, 1)
}

func TestFacade_ReadOnlyNodeBlocksInsert(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFacade(t)

	for _, n := range f.dimension().Nodes {
		n.Status = proto.StatusReadOnly
	}
	err := f.InsertPrimaryIndexKey(ctx, proto.Uint64Key(42))
	require.ErrorIs(t, err, errors.ErrNoWritableNode)
}

func TestFacade_ReadOnlyKeyBlocksDependentWrites(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFacade(t)
	key := proto.Uint64Key(42)

	require.NoError(t, f.InsertPrimaryIndexKey(ctx, key))
	require.NoError(t, f.UpdatePrimaryIndexKeyReadOnly(ctx, key, true))

	err := f.InsertResourceID(ctx, "weather", proto.Uint64Key(7), key)
	require.ErrorIs(t, err, errors.ErrReadOnly)

	ro, err := f.ReadOnlyOfPrimaryIndexKey(ctx, key)
	require.NoError(t, err)
	require.True(t, ro)

	// unlocking a read-only key is allowed
	require.NoError(t, f.UpdatePrimaryIndexKeyReadOnly(ctx, key, false))
	require.NoError(t, f.InsertResourceID(ctx, "weather", proto.Uint64Key(7), key))
}

func TestFacade_PartitioningResource(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFacade(t)
	key := proto.Uint64Key(99)

	// inserting a resource id of a partitioning resource inserts the
	// primary key
	require.NoError(t, f.InsertResourceID(ctx, "account", key, key))

	exists, err := f.DoesPrimaryIndexKeyExist(ctx, key)
	require.NoError(t, err)
	require.True(t, exists)

	pk, err := f.PrimaryIndexKeyOfResourceID(ctx, "account", key)
	require.NoError(t, err)
	require.True(t, key.Equal(pk))

	err = f.DeleteResourceID(ctx, "account", key)
	require.Error(t, err)

	err = f.UpdatePrimaryIndexKeyOfResourceID(ctx, "account", key, proto.Uint64Key(1))
	require.Error(t, err)
}

func TestFacade_UnknownNamesResolveNotFound(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFacade(t)

	err := f.InsertResourceID(ctx, "nope", proto.Uint64Key(1), proto.Uint64Key(1))
	require.ErrorIs(t, err, errors.ErrNotFound)

	err = f.InsertSecondaryIndexKey(ctx, "weather", "nope", proto.StringKey("NY"), proto.Uint64Key(1))
	require.ErrorIs(t, err, errors.ErrNotFound)

	_, err = f.NodeIDsOfSecondaryIndexKey(ctx, "nope", "city", proto.StringKey("NY"))
	require.ErrorIs(t, err, errors.ErrNotFound)
}

func TestFacade_DeleteUnknownPrimaryKey(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFacade(t)

	err := f.DeletePrimaryIndexKey(ctx, proto.Uint64Key(4711))
	require.ErrorIs(t, err, errors.ErrNotFound)
}

func TestFacade_SecondaryIndexFlow(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFacade(t)
	key := proto.Uint64Key(42)
	id := proto.Uint64Key(7)
	ny := proto.StringKey("NY")

	require.NoError(t, f.InsertPrimaryIndexKey(ctx, key))
	require.NoError(t, f.InsertResourceID(ctx, "weather", id, key))
	require.NoError(t, f.InsertSecondaryIndexKey(ctx, "weather", "city", ny, id))

	primaryIDs, err := f.NodeIDsOfPrimaryIndexKey(ctx, key)
	require.NoError(t, err)
	secondaryIDs, err := f.NodeIDsOfSecondaryIndexKey(ctx, "weather", "city", ny)
	require.NoError(t, err)
	require.Equal(t, primaryIDs, secondaryIDs)

	require.NoError(t, f.DeleteSecondaryIndexKey(ctx, "weather", "city", ny, id))
	exists, err := f.DoesSecondaryIndexKeyExist(ctx, "weather", "city", ny, id)
	require.NoError(t, err)
	require.False(t, exists)
}
