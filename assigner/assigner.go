// Package assigner holds the node-selection policy invoked when a new
// primary index key enters a partition dimension.
package assigner

import (
	"hash/fnv"
	"sort"

	"github.com/hivedb/hive/errors"
	"github.com/hivedb/hive/proto"
)

// Assigner chooses the node a new primary index key lands on. Choose must
// be deterministic for the same (sorted node ids, key) input and must never
// return a node that is not writable.
type Assigner interface {
	Choose(nodes []*proto.Node, key proto.Key) (*proto.Node, error)
}

// NewHashAssigner returns the default policy: hash the key and pick by
// modulo over the writable nodes sorted by id.
func NewHashAssigner() Assigner {
	return &hashAssigner{}
}

type hashAssigner struct{}

func (a *hashAssigner) Choose(nodes []*proto.Node, key proto.Key) (*proto.Node, error) {
	writable := make([]*proto.Node, 0, len(nodes))
	for _, n := range nodes {
		if n.Status.IsWritable() {
			writable = append(writable, n)
		}
	}
	if len(writable) == 0 {
		return nil, errors.ErrNoWritableNode
	}

	sort.Slice(writable, func(i, j int) bool {
		return writable[i].ID < writable[j].ID
	})

	h := fnv.New64a()
	h.Write(key)
	return writable[h.Sum64()%uint64(len(writable))], nil
}
