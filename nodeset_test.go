package hive

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hivedb/hive/proto"
)

func TestNodeSet_Put(t *testing.T) {
	s := nodeSet{}
	for _, i := range []uint32{1, 3, 2, 4} {
		s.put(&proto.Node{ID: i})
	}

	idx, ok := search(s.nodes, 3)
	require.Equal(t, 2, idx)
	require.True(t, ok)

	idx, ok = search(s.nodes, 5)
	require.Equal(t, 4, idx)
	require.False(t, ok)
}

func TestNodeSet_PutReplaces(t *testing.T) {
	s := nodeSet{}
	s.put(&proto.Node{ID: 7, Status: proto.StatusWritable})
	s.put(&proto.Node{ID: 7, Status: proto.StatusReadOnly})
	require.Equal(t, 1, s.len())

	n, ok := s.get(7)
	require.True(t, ok)
	require.Equal(t, proto.StatusReadOnly, n.Status)
}

func TestNodeSet_Delete(t *testing.T) {
	s := nodeSet{}
	for _, i := range []uint32{1, 3, 2, 4} {
		s.put(&proto.Node{ID: i})
	}
	s.delete(2)

	idx, ok := search(s.nodes, 2)
	require.Equal(t, 1, idx)
	require.False(t, ok)

	idx, ok = search(s.nodes, 3)
	require.Equal(t, 1, idx)
	require.True(t, ok)
}
