package hive

import (
	"context"

	"github.com/hivedb/hive/proto"
)

// Key-level convenience operations. Each resolves the dimension's directory
// facade, which runs the lock engine before touching the tables.

func (h *Hive) InsertPrimaryIndexKey(ctx context.Context, dimension string, key proto.Key) error {
	f, err := h.Directory(dimension)
	if err != nil {
		return err
	}
	return f.InsertPrimaryIndexKey(ctx, key)
}

func (h *Hive) InsertResourceID(ctx context.Context, dimension, resource string, id, primaryKey proto.Key) error {
	f, err := h.Directory(dimension)
	if err != nil {
		return err
	}
	return f.InsertResourceID(ctx, resource, id, primaryKey)
}

func (h *Hive) InsertSecondaryIndexKey(ctx context.Context, dimension, resource, index string, secondaryKey, resourceID proto.Key) error {
	f, err := h.Directory(dimension)
	if err != nil {
		return err
	}
	return f.InsertSecondaryIndexKey(ctx, resource, index, secondaryKey, resourceID)
}

func (h *Hive) NodeIDsOfPrimaryIndexKey(ctx context.Context, dimension string, key proto.Key) ([]proto.NodeID, error) {
	f, err := h.Directory(dimension)
	if err != nil {
		return nil, err
	}
	return f.NodeIDsOfPrimaryIndexKey(ctx, key)
}

func (h *Hive) NodeIDsOfSecondaryIndexKey(ctx context.Context, dimension, resource, index string, secondaryKey proto.Key) ([]proto.NodeID, error) {
	f, err := h.Directory(dimension)
	if err != nil {
		return nil, err
	}
	return f.NodeIDsOfSecondaryIndexKey(ctx, resource, index, secondaryKey)
}

func (h *Hive) PrimaryIndexKeyOfResourceID(ctx context.Context, dimension, resource string, id proto.Key) (proto.Key, error) {
	f, err := h.Directory(dimension)
	if err != nil {
		return nil, err
	}
	return f.PrimaryIndexKeyOfResourceID(ctx, resource, id)
}

func (h *Hive) SecondaryIndexKeysOfPrimaryIndexKey(ctx context.Context, dimension, resource, index string, primaryKey proto.Key) ([]proto.Key, error) {
	f, err := h.Directory(dimension)
	if err != nil {
		return nil, err
	}
	return f.SecondaryIndexKeysOfPrimaryIndexKey(ctx, resource, index, primaryKey)
}

func (h *Hive) DoesPrimaryIndexKeyExist(ctx context.Context, dimension string, key proto.Key) (bool, error) {
	f, err := h.Directory(dimension)
	if err != nil {
		return false, err
	}
	return f.DoesPrimaryIndexKeyExist(ctx, key)
}

func (h *Hive) ReadOnlyOfPrimaryIndexKey(ctx context.Context, dimension string, key proto.Key) (bool, error) {
	f, err := h.Directory(dimension)
	if err != nil {
		return false, err
	}
	return f.ReadOnlyOfPrimaryIndexKey(ctx, key)
}

func (h *Hive) UpdatePrimaryIndexKeyReadOnly(ctx context.Context, dimension string, key proto.Key, readOnly bool) error {
	f, err := h.Directory(dimension)
	if err != nil {
		return err
	}
	return f.UpdatePrimaryIndexKeyReadOnly(ctx, key, readOnly)
}

func (h *Hive) UpdatePrimaryIndexNode(ctx context.Context, dimension string, key proto.Key, node string) error {
	f, err := h.Directory(dimension)
	if err != nil {
		return err
	}
	return f.UpdatePrimaryIndexNode(ctx, key, node)
}

func (h *Hive) UpdatePrimaryIndexKeyOfResourceID(ctx context.Context, dimension, resource string, id, newPrimaryKey proto.Key) error {
	f, err := h.Directory(dimension)
	if err != nil {
		return err
	}
	return f.UpdatePrimaryIndexKeyOfResourceID(ctx, resource, id, newPrimaryKey)
}

func (h *Hive) DeletePrimaryIndexKey(ctx context.Context, dimension string, key proto.Key) error {
	f, err := h.Directory(dimension)
	if err != nil {
		return err
	}
	return f.DeletePrimaryIndexKey(ctx, key)
}

func (h *Hive) DeleteResourceID(ctx context.Context, dimension, resource string, id proto.Key) error {
	f, err := h.Directory(dimension)
	if err != nil {
		return err
	}
	return f.DeleteResourceID(ctx, resource, id)
}

func (h *Hive) DeleteSecondaryIndexKey(ctx context.Context, dimension, resource, index string, secondaryKey, resourceID proto.Key) error {
	f, err := h.Directory(dimension)
	if err != nil {
		return err
	}
	return f.DeleteSecondaryIndexKey(ctx, resource, index, secondaryKey, resourceID)
}
