package gateway

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hivedb/hive/errors"
	"github.com/hivedb/hive/proto"
	"github.com/hivedb/hive/store"
)

func newTestGateways(t *testing.T) *Gateways {
	s, err := store.Open(context.Background(), fmt.Sprintf("mem://gateway-%s", t.Name()), nil)
	require.NoError(t, err)
	return New(s)
}

func TestDimensionGateway_CRUD(t *testing.T) {
	ctx := context.Background()
	gws := newTestGateways(t)

	dim := &proto.PartitionDimension{Name: "user", KeyType: proto.KeyTypeInteger, IndexURI: "mem://idx"}
	require.NoError(t, gws.Dimensions.Create(ctx, dim))
	require.NotEqual(t, uint32(proto.NewObjectID), dim.ID)

	// duplicate name refused
	err := gws.Dimensions.Create(ctx, &proto.PartitionDimension{Name: "user"})
	require.ErrorIs(t, err, errors.ErrDuplicateName)

	dim.KeyType = proto.KeyTypeString
	require.NoError(t, gws.Dimensions.Update(ctx, dim))

	all, err := gws.Dimensions.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, proto.KeyTypeString, all[0].KeyType)

	require.NoError(t, gws.Dimensions.Delete(ctx, dim.ID))
	err = gws.Dimensions.Delete(ctx, dim.ID)
	require.ErrorIs(t, err, errors.ErrNotFound)
}

func TestDimensionGateway_TransientID(t *testing.T) {
	ctx := context.Background()
	gws := newTestGateways(t)

	err := gws.Dimensions.Update(ctx, &proto.PartitionDimension{Name: "user"})
	require.ErrorIs(t, err, errors.ErrPersistence)

	err = gws.Dimensions.Create(ctx, &proto.PartitionDimension{ID: 5, Name: "user"})
	require.ErrorIs(t, err, errors.ErrPersistence)
}

func TestResourceGateway_ScopedByDimension(t *testing.T) {
	ctx := context.Background()
	gws := newTestGateways(t)

	r1 := &proto.Resource{DimensionID: 1, Name: "weather"}
	require.NoError(t, gws.Resources.Create(ctx, r1))

	// same name under a different dimension is fine
	r2 := &proto.Resource{DimensionID: 2, Name: "weather"}
	require.NoError(t, gws.Resources.Create(ctx, r2))

	// but not under the same one
	err := gws.Resources.Create(ctx, &proto.Resource{DimensionID: 1, Name: "weather"})
	require.ErrorIs(t, err, errors.ErrDuplicateName)

	all, err := gws.Resources.LoadAll(ctx, 1)
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestNodeGateway_CRUD(t *testing.T) {
	ctx := context.Background()
	gws := newTestGateways(t)

	n := &proto.Node{DimensionID: 1, Name: "n1", URI: "db://a", Status: proto.StatusWritable}
	require.NoError(t, gws.Nodes.Create(ctx, n))

	n.Status = proto.StatusReadOnly
	require.NoError(t, gws.Nodes.Update(ctx, n))

	all, err := gws.Nodes.LoadAll(ctx, 1)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, proto.StatusReadOnly, all[0].Status)

	require.NoError(t, gws.Nodes.Delete(ctx, 1, n.ID))
	err = gws.Nodes.Update(ctx, n)
	require.ErrorIs(t, err, errors.ErrNotFound)
}

func TestSecondaryIndexGateway_CRUD(t *testing.T) {
	ctx := context.Background()
	gws := newTestGateways(t)

	idx := &proto.SecondaryIndex{ResourceID: 3, Name: "city", ColumnType: proto.KeyTypeString}
	require.NoError(t, gws.SecondaryIndexes.Create(ctx, idx))

	err := gws.SecondaryIndexes.Create(ctx, &proto.SecondaryIndex{ResourceID: 3, Name: "city"})
	require.ErrorIs(t, err, errors.ErrDuplicateName)

	all, err := gws.SecondaryIndexes.LoadAll(ctx, 3)
	require.NoError(t, err)
	require.Len(t, all, 1)

	require.NoError(t, gws.SecondaryIndexes.Delete(ctx, 3, idx.ID))
	err = gws.SecondaryIndexes.Delete(ctx, 3, idx.ID)
	require.ErrorIs(t, err, errors.ErrNotFound)
}

func TestSemaphoreGateway(t *testing.T) {
	ctx := context.Background()
	gws := newTestGateways(t)

	_, err := gws.Semaphore.Load(ctx)
	require.ErrorIs(t, err, errors.ErrMetadataMissing)

	require.NoError(t, gws.Semaphore.Create(ctx, &proto.HiveSemaphore{Revision: 0, Status: proto.StatusWritable}))

	// creating again must not reset the row
	require.NoError(t, gws.Semaphore.Create(ctx, &proto.HiveSemaphore{Revision: 99}))
	sem, err := gws.Semaphore.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, proto.Revision(0), sem.Revision)

	for i := 1; i <= 3; i++ {
		sem, err = gws.Semaphore.IncrementAndPersist(ctx)
		require.NoError(t, err)
		require.Equal(t, proto.Revision(i), sem.Revision)
	}

	sem.Status = proto.StatusReadOnly
	require.NoError(t, gws.Semaphore.Update(ctx, sem))
	sem, err = gws.Semaphore.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, proto.StatusReadOnly, sem.Status)
	require.Equal(t, proto.Revision(3), sem.Revision)
}

func TestIDGenerator_Monotonic(t *testing.T) {
	ctx := context.Background()
	gws := newTestGateways(t)

	var last uint32
	for i := 0; i < 5; i++ {
		d := &proto.PartitionDimension{Name: fmt.Sprintf("dim-%d", i)}
		require.NoError(t, gws.Dimensions.Create(ctx, d))
		require.Greater(t, d.ID, last)
		last = d.ID
	}
}
