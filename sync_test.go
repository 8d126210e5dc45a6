package hive

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hivedb/hive/proto"
)

func TestSync_StatusFollowsSemaphore(t *testing.T) {
	ctx := context.Background()
	uri := testURI(t)

	a := loadTestHive(t, uri)
	b, err := Load(ctx, &Config{HiveURI: uri, SyncIntervalMS: 20})
	require.NoError(t, err)
	t.Cleanup(b.Close)

	require.NoError(t, a.UpdateHiveStatus(ctx, proto.StatusReadOnly))
	require.Equal(t, proto.StatusReadOnly, a.Status())

	// the peer picks the flag up even though the revision did not move
	require.NoError(t, b.Sync(ctx))
	require.Equal(t, proto.StatusReadOnly, b.Status())

	require.NoError(t, a.UpdateHiveStatus(ctx, proto.StatusWritable))
	require.Eventually(t, func() bool {
		return b.Status() == proto.StatusWritable
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSync_GraphMatchesGateways(t *testing.T) {
	ctx := context.Background()
	h := loadTestHive(t, testURI(t))
	installUserDimension(t, h)

	_, err := h.AddResource(ctx, "user", &proto.Resource{
		Name:    "weather",
		KeyType: proto.KeyTypeInteger,
		SecondaryIndexes: []*proto.SecondaryIndex{
			{Name: "city", ColumnType: proto.KeyTypeString},
		},
	})
	require.NoError(t, err)

	fresh, err := h.loadGraph(ctx)
	require.NoError(t, err)
	require.True(t, h.graphSnapshot().equal(fresh))

	dim, err := h.PartitionDimension("user")
	require.NoError(t, err)
	res, ok := dim.Resource("weather")
	require.True(t, ok)
	_, ok = res.SecondaryIndex("city")
	require.True(t, ok)
}
