package hive

import (
	"context"
	"fmt"

	"github.com/hivedb/hive/connector"
	"github.com/hivedb/hive/errors"
	"github.com/hivedb/hive/lockable"
	"github.com/hivedb/hive/proto"
)

// GetConnection resolves the partition key to its semaphore and opens a
// connection to the owning node. ReadWrite intent requires the hive, the
// node, and the key writable; Read intent marks the connection read-only.
// The returned connection is owned by the caller.
func (h *Hive) GetConnection(ctx context.Context, dimension string, key proto.Key, access proto.AccessType) (*connector.Conn, error) {
	f, err := h.Directory(dimension)
	if err != nil {
		return nil, err
	}
	sems, err := f.KeySemaphoresOfPrimaryIndexKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if len(sems) == 0 {
		return nil, fmt.Errorf("primary index key %s in dimension %q: %w", key, dimension, errors.ErrNotFound)
	}
	return h.openConnection(ctx, dimension, sems[0], fmt.Sprintf("primary index key %s", key), access)
}

// GetConnectionOfSecondaryIndexKey opens a connection to the node owning
// the record a secondary index key points at.
func (h *Hive) GetConnectionOfSecondaryIndexKey(ctx context.Context, dimension, resource, index string, secondaryKey proto.Key, access proto.AccessType) (*connector.Conn, error) {
	f, err := h.Directory(dimension)
	if err != nil {
		return nil, err
	}
	sems, err := f.KeySemaphoresOfSecondaryIndexKey(ctx, resource, index, secondaryKey)
	if err != nil {
		return nil, err
	}
	if len(sems) == 0 {
		return nil, fmt.Errorf("secondary index key %s on %s.%s: %w", secondaryKey, resource, index, errors.ErrNotFound)
	}
	return h.openConnection(ctx, dimension, sems[0], fmt.Sprintf("secondary index key %s", secondaryKey), access)
}

func (h *Hive) openConnection(ctx context.Context, dimension string, sem proto.KeySemaphore, keyLabel string, access proto.AccessType) (*connector.Conn, error) {
	node, ok := h.Node(sem.NodeID)
	if !ok {
		h.sink.IncConnectionFailures()
		return nil, fmt.Errorf("node %d of dimension %q: %w", sem.NodeID, dimension, errors.ErrNotFound)
	}

	if access == proto.AccessReadWrite {
		err := lockable.RequireWritable(
			lockable.HiveItem(h.Status()),
			lockable.NodeItem(node),
			lockable.KeyItem(keyLabel, sem.Status),
		)
		if err != nil {
			h.sink.IncConnectionFailures()
			return nil, err
		}
	}

	conn, err := h.source.Open(ctx, node, access == proto.AccessRead)
	if err != nil {
		h.sink.IncConnectionFailures()
		return nil, err
	}

	if access == proto.AccessRead {
		h.sink.IncNewReadConnections()
	} else {
		h.sink.IncNewWriteConnections()
	}
	return conn, nil
}
