package connector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hivedb/hive/proto"
	"github.com/hivedb/hive/util/limiter"
)

func TestGRPCSource_Open(t *testing.T) {
	ctx := context.Background()
	src := NewGRPCSource(nil)
	node := &proto.Node{ID: 1, Name: "n1", URI: "db://a:9000"}

	conn, err := src.Open(ctx, node, true)
	require.NoError(t, err)
	require.True(t, conn.ReadOnly())
	require.Equal(t, proto.NodeID(1), conn.NodeID())
	require.Equal(t, "a:9000", conn.Target())
	require.NotEmpty(t, conn.ID())
	require.NotNil(t, conn.ClientConn())
	require.NoError(t, conn.Close())

	conn, err = src.Open(ctx, node, false)
	require.NoError(t, err)
	require.False(t, conn.ReadOnly())
	require.NoError(t, conn.Close())
}

func TestGRPCSource_ConcurrencyLimit(t *testing.T) {
	ctx := context.Background()
	src := NewGRPCSource(&Config{Limit: limiter.LimitConfig{ReadConcurrency: 1}})
	node := &proto.Node{ID: 1, Name: "n1", URI: "db://a"}

	first, err := src.Open(ctx, node, true)
	require.NoError(t, err)

	_, err = src.Open(ctx, node, true)
	require.Equal(t, limiter.ErrLimitExceeded, err)

	// writes unaffected by the read cap
	w, err := src.Open(ctx, node, false)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	require.NoError(t, first.Close())
	second, err := src.Open(ctx, node, true)
	require.NoError(t, err)
	require.NoError(t, second.Close())
}

func TestDialTarget(t *testing.T) {
	for _, tc := range []struct {
		uri    string
		target string
	}{
		{"db://a", "a"},
		{"db://host:1234", "host:1234"},
		{"host:1234", "host:1234"},
	} {
		got, err := dialTarget(tc.uri)
		require.NoError(t, err)
		require.Equal(t, tc.target, got)
	}
}
