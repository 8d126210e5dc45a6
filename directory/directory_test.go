package directory

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hivedb/hive/errors"
	"github.com/hivedb/hive/proto"
	"github.com/hivedb/hive/store"
)

func testDimension() *proto.PartitionDimension {
	return &proto.PartitionDimension{
		ID:      1,
		Name:    "user",
		KeyType: proto.KeyTypeInteger,
		Nodes: []*proto.Node{
			{ID: 1, DimensionID: 1, Name: "n1", URI: "db://a", Status: proto.StatusWritable},
			{ID: 2, DimensionID: 1, Name: "n2", URI: "db://b", Status: proto.StatusWritable},
		},
		Resources: []*proto.Resource{
			{
				ID: 1, DimensionID: 1, Name: "weather", KeyType: proto.KeyTypeInteger,
				SecondaryIndexes: []*proto.SecondaryIndex{
					{ID: 1, ResourceID: 1, Name: "city", ColumnType: proto.KeyTypeString},
				},
			},
			{ID: 2, DimensionID: 1, Name: "account", KeyType: proto.KeyTypeInteger, Partitioning: true},
		},
	}
}

func newTestDirectory(t *testing.T) *Directory {
	s, err := store.Open(context.Background(), fmt.Sprintf("mem://directory-%s", t.Name()), nil)
	require.NoError(t, err)
	return New(testDimension(), s, nil)
}

func node(d *Directory, id proto.NodeID) *proto.Node {
	n, _ := d.Dimension().Node(id)
	return n
}

func resource(d *Directory, name string) *proto.Resource {
	r, _ := d.Dimension().Resource(name)
	return r
}

func index(d *Directory, res, name string) *proto.SecondaryIndex {
	r, _ := d.Dimension().Resource(res)
	idx, _ := r.SecondaryIndex(name)
	return idx
}

func TestDirectory_InsertPrimaryIndexKey(t *testing.T) {
	ctx := context.Background()
	d := newTestDirectory(t)
	key := proto.Uint64Key(42)

	require.NoError(t, d.InsertPrimaryIndexKey(ctx, node(d, 1), key))

	sems, err := d.KeySemaphoresOfPrimaryIndexKey(ctx, key)
	require.NoError(t, err)
	require.Equal(t, []proto.KeySemaphore{{NodeID: 1, Status: proto.StatusWritable}}, sems)

	err = d.InsertPrimaryIndexKey(ctx, node(d, 2), key)
	require.ErrorIs(t, err, errors.ErrDuplicateKey)

	// unknown key yields an empty set
	sems, err = d.KeySemaphoresOfPrimaryIndexKey(ctx, proto.Uint64Key(7))
	require.NoError(t, err)
	require.Empty(t, sems)
}

func TestDirectory_ResourceIDs(t *testing.T) {
	ctx := context.Background()
	d := newTestDirectory(t)
	weather := resource(d, "weather")
	key := proto.Uint64Key(42)

	// missing parent refused
	err := d.InsertResourceID(ctx, weather, proto.Uint64Key(7), key)
	require.ErrorIs(t, err, errors.ErrMissingParent)

	require.NoError(t, d.InsertPrimaryIndexKey(ctx, node(d, 1), key))
	require.NoError(t, d.InsertResourceID(ctx, weather, proto.Uint64Key(7), key))

	err = d.InsertResourceID(ctx, weather, proto.Uint64Key(7), key)
	require.ErrorIs(t, err, errors.ErrDuplicateKey)

	pk, ok, err := d.PrimaryIndexKeyOfResourceID(ctx, weather, proto.Uint64Key(7))
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, key.Equal(pk))

	ids, err := d.ResourceIDsOfPrimaryIndexKey(ctx, weather, key)
	require.NoError(t, err)
	require.Len(t, ids, 1)
	require.True(t, proto.Uint64Key(7).Equal(ids[0]))

	sems, err := d.KeySemaphoresOfResourceID(ctx, weather, proto.Uint64Key(7))
	require.NoError(t, err)
	require.Equal(t, []proto.KeySemaphore{{NodeID: 1, Status: proto.StatusWritable}}, sems)
}

func TestDirectory_PartitioningResourceIdentity(t *testing.T) {
	ctx := context.Background()
	d := newTestDirectory(t)
	account := resource(d, "account")
	key := proto.Uint64Key(99)

	// inserting a resource id of a partitioning resource is a no-op at
	// this layer; the id is the partition key
	require.NoError(t, d.InsertResourceID(ctx, account, key, key))
	require.NoError(t, d.InsertPrimaryIndexKey(ctx, node(d, 1), key))

	pk, ok, err := d.PrimaryIndexKeyOfResourceID(ctx, account, key)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, key.Equal(pk))

	sems, err := d.KeySemaphoresOfResourceID(ctx, account, key)
	require.NoError(t, err)
	require.Len(t, sems, 1)
}

func TestDirectory_SecondaryIndexKeys(t *testing.T) {
	ctx := context.Background()
	d := newTestDirectory(t)
	weather := resource(d, "weather")
	city := index(d, "weather", "city")
	key := proto.Uint64Key(42)
	id := proto.Uint64Key(7)
	ny := proto.StringKey("NY")

	err := d.InsertSecondaryIndexKey(ctx, weather, city, ny, id)
	require.ErrorIs(t, err, errors.ErrMissingParent)

	require.NoError(t, d.InsertPrimaryIndexKey(ctx, node(d, 1), key))
	require.NoError(t, d.InsertResourceID(ctx, weather, id, key))
	require.NoError(t, d.InsertSecondaryIndexKey(ctx, weather, city, ny, id))

	err = d.InsertSecondaryIndexKey(ctx, weather, city, ny, id)
	require.ErrorIs(t, err, errors.ErrDuplicateKey)

	sems, err := d.KeySemaphoresOfSecondaryIndexKey(ctx, weather, city, ny)
	require.NoError(t, err)
	require.Equal(t, []proto.KeySemaphore{{NodeID: 1, Status: proto.StatusWritable}}, sems)

	ids, err := d.ResourceIDsOfSecondaryIndexKey(ctx, city, ny)
	require.NoError(t, err)
	require.Len(t, ids, 1)

	keys, err := d.SecondaryIndexKeysOfResourceID(ctx, city, id)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	require.True(t, ny.Equal(keys[0]))

	keys, err = d.SecondaryIndexKeysOfPrimaryIndexKey(ctx, weather, city, key)
	require.NoError(t, err)
	require.Len(t, keys, 1)

	exists, err := d.DoesSecondaryIndexKeyExist(ctx, city, ny, id)
	require.NoError(t, err)
	require.True(t, exists)
}

func TestDirectory_SecondaryKeyPointingAtMultipleResources(t *testing.T) {
	ctx := context.Background()
	d := newTestDirectory(t)
	weather := resource(d, "weather")
	city := index(d, "weather", "city")
	ny := proto.StringKey("NY")

	require.NoError(t, d.InsertPrimaryIndexKey(ctx, node(d, 1), proto.Uint64Key(1)))
	require.NoError(t, d.InsertPrimaryIndexKey(ctx, node(d, 2), proto.Uint64Key(2)))
	require.NoError(t, d.InsertResourceID(ctx, weather, proto.Uint64Key(10), proto.Uint64Key(1)))
	require.NoError(t, d.InsertResourceID(ctx, weather, proto.Uint64Key(20), proto.Uint64Key(2)))
	require.NoError(t, d.InsertSecondaryIndexKey(ctx, weather, city, ny, proto.Uint64Key(10)))
	require.NoError(t, d.InsertSecondaryIndexKey(ctx, weather, city, ny, proto.Uint64Key(20)))

	sems, err := d.KeySemaphoresOfSecondaryIndexKey(ctx, weather, city, ny)
	require.NoError(t, err)
	require.Len(t, sems, 2)
}

func TestDirectory_UpdatePrimaryIndexKeyReadOnly(t *testing.T) {
	ctx := context.Background()
	d := newTestDirectory(t)
	key := proto.Uint64Key(42)

	err := d.UpdatePrimaryIndexKeyReadOnly(ctx, key, true)
	require.ErrorIs(t, err, errors.ErrNotFound)

	require.NoError(t, d.InsertPrimaryIndexKey(ctx, node(d, 1), key))
	require.NoError(t, d.UpdatePrimaryIndexKeyReadOnly(ctx, key, true))

	sems, err := d.KeySemaphoresOfPrimaryIndexKey(ctx, key)
	require.NoError(t, err)
	require.Equal(t, proto.StatusReadOnly, sems[0].Status)

	require.NoError(t, d.UpdatePrimaryIndexKeyReadOnly(ctx, key, false))
	sems, err = d.KeySemaphoresOfPrimaryIndexKey(ctx, key)
	require.NoError(t, err)
	require.Equal(t, proto.StatusWritable, sems[0].Status)
}

func TestDirectory_UpdatePrimaryIndexNode(t *testing.T) {
	ctx := context.Background()
	d := newTestDirectory(t)
	key := proto.Uint64Key(42)

	err := d.UpdatePrimaryIndexNode(ctx, node(d, 2), key)
	require.ErrorIs(t, err, errors.ErrNotFound)

	require.NoError(t, d.InsertPrimaryIndexKey(ctx, node(d, 1), key))
	require.NoError(t, d.UpdatePrimaryIndexNode(ctx, node(d, 2), key))

	sems, err := d.KeySemaphoresOfPrimaryIndexKey(ctx, key)
	require.NoError(t, err)
	require.Equal(t, []proto.KeySemaphore{{NodeID: 2, Status: proto.StatusWritable}}, sems)
}

func TestDirectory_UpdatePrimaryIndexKeyOfResourceID(t *testing.T) {
	ctx := context.Background()
	d := newTestDirectory(t)
	weather := resource(d, "weather")
	id := proto.Uint64Key(7)

	require.NoError(t, d.InsertPrimaryIndexKey(ctx, node(d, 1), proto.Uint64Key(1)))
	require.NoError(t, d.InsertResourceID(ctx, weather, id, proto.Uint64Key(1)))

	err := d.UpdatePrimaryIndexKeyOfResourceID(ctx, weather, id, proto.Uint64Key(2))
	require.ErrorIs(t, err, errors.ErrMissingParent)

	require.NoError(t, d.InsertPrimaryIndexKey(ctx, node(d, 2), proto.Uint64Key(2)))
	require.NoError(t, d.UpdatePrimaryIndexKeyOfResourceID(ctx, weather, id, proto.Uint64Key(2)))

	pk, ok, err := d.PrimaryIndexKeyOfResourceID(ctx, weather, id)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, proto.Uint64Key(2).Equal(pk))

	// reverse rows moved with the forward row
	ids, err := d.ResourceIDsOfPrimaryIndexKey(ctx, weather, proto.Uint64Key(1))
	require.NoError(t, err)
	require.Empty(t, ids)
	ids, err = d.ResourceIDsOfPrimaryIndexKey(ctx, weather, proto.Uint64Key(2))
	require.NoError(t, err)
	require.Len(t, ids, 1)
}

func TestDirectory_CascadeDeletePrimaryIndexKey(t *testing.T) {
	ctx := context.Background()
	d := newTestDirectory(t)
	weather := resource(d, "weather")
	city := index(d, "weather", "city")
	key := proto.Uint64Key(42)
	id := proto.Uint64Key(7)
	ny := proto.StringKey("NY")

	err := d.DeletePrimaryIndexKey(ctx, key)
	require.ErrorIs(t, err, errors.ErrNotFound)

	require.NoError(t, d.InsertPrimaryIndexKey(ctx, node(d, 1), key))
	require.NoError(t, d.InsertResourceID(ctx, weather, id, key))
	require.NoError(t, d.InsertSecondaryIndexKey(ctx, weather, city, ny, id))

	require.NoError(t, d.DeletePrimaryIndexKey(ctx, key))

	exists, err := d.DoesPrimaryIndexKeyExist(ctx, key)
	require.NoError(t, err)
	require.False(t, exists)

	exists, err = d.DoesResourceIDExist(ctx, weather, id)
	require.NoError(t, err)
	require.False(t, exists)

	exists, err = d.DoesSecondaryIndexKeyExist(ctx, city, ny, id)
	require.NoError(t, err)
	require.False(t, exists)
}

func TestDirectory_DeleteResourceID(t *testing.T) {
	ctx := context.Background()
	d := newTestDirectory(t)
	weather := resource(d, "weather")
	city := index(d, "weather", "city")
	key := proto.Uint64Key(42)
	id := proto.Uint64Key(7)

	err := d.DeleteResourceID(ctx, weather, id)
	require.ErrorIs(t, err, errors.ErrNotFound)

	require.NoError(t, d.InsertPrimaryIndexKey(ctx, node(d, 1), key))
	require.NoError(t, d.InsertResourceID(ctx, weather, id, key))
	require.NoError(t, d.InsertSecondaryIndexKey(ctx, weather, city, proto.StringKey("NY"), id))

	require.NoError(t, d.DeleteResourceID(ctx, weather, id))

	exists, err := d.DoesResourceIDExist(ctx, weather, id)
	require.NoError(t, err)
	require.False(t, exists)

	keys, err := d.SecondaryIndexKeysOfResourceID(ctx, city, id)
	require.NoError(t, err)
	require.Empty(t, keys)

	// primary key untouched
	exists, err = d.DoesPrimaryIndexKeyExist(ctx, key)
	require.NoError(t, err)
	require.True(t, exists)
}

func TestDirectory_DeleteSecondaryIndexKey(t *testing.T) {
	ctx := context.Background()
	d := newTestDirectory(t)
	weather := resource(d, "weather")
	city := index(d, "weather", "city")
	key := proto.Uint64Key(42)
	id := proto.Uint64Key(7)
	ny := proto.StringKey("NY")

	err := d.DeleteSecondaryIndexKey(ctx, city, ny, id)
	require.ErrorIs(t, err, errors.ErrNotFound)

	require.NoError(t, d.InsertPrimaryIndexKey(ctx, node(d, 1), key))
	require.NoError(t, d.InsertResourceID(ctx, weather, id, key))
	require.NoError(t, d.InsertSecondaryIndexKey(ctx, weather, city, ny, id))

	require.NoError(t, d.DeleteSecondaryIndexKey(ctx, city, ny, id))

	exists, err := d.DoesSecondaryIndexKeyExist(ctx, city, ny, id)
	require.NoError(t, err)
	require.False(t, exists)
}
