package gateway

import (
	"context"
	"fmt"

	"github.com/hivedb/hive/common/kvstore"
	"github.com/hivedb/hive/errors"
	"github.com/hivedb/hive/proto"
	"github.com/hivedb/hive/store"
)

const indexSeq = "secondary_index"

// SecondaryIndexGateway owns the secondary_index table, scoped by resource
// id.
type SecondaryIndexGateway struct {
	kvStore kvstore.Store
	ids     *idGenerator
}

func (g *SecondaryIndexGateway) Create(ctx context.Context, info *proto.SecondaryIndex) error {
	if info.ID != proto.NewObjectID {
		return errors.Persistence(fmt.Errorf("create secondary index %q: id %d is already assigned", info.Name, info.ID))
	}

	existing, err := g.LoadAll(ctx, info.ResourceID)
	if err != nil {
		return err
	}
	for _, idx := range existing {
		if idx.Name == info.Name {
			return fmt.Errorf("secondary index %q: %w", info.Name, errors.ErrDuplicateName)
		}
	}

	id, err := g.ids.Alloc(ctx, indexSeq)
	if err != nil {
		return err
	}
	info.ID = id
	return g.persist(ctx, info)
}

func (g *SecondaryIndexGateway) Update(ctx context.Context, info *proto.SecondaryIndex) error {
	if err := g.requirePersisted(ctx, info.ResourceID, info.ID, info.Name); err != nil {
		return err
	}
	return g.persist(ctx, info)
}

func (g *SecondaryIndexGateway) Delete(ctx context.Context, resourceID proto.ResourceID, id proto.IndexID) error {
	if err := g.requirePersisted(ctx, resourceID, id, ""); err != nil {
		return err
	}
	if err := g.kvStore.Delete(ctx, store.MetaCF, encodeScopedID(indexKeyPrefix, resourceID, id)); err != nil {
		return errors.Persistence(err)
	}
	return nil
}

func (g *SecondaryIndexGateway) LoadAll(ctx context.Context, resourceID proto.ResourceID) ([]*proto.SecondaryIndex, error) {
	var ret []*proto.SecondaryIndex
	lr := g.kvStore.List(ctx, store.MetaCF, encodeScopedPrefix(indexKeyPrefix, resourceID), nil)
	err := listRows(lr, func(value []byte) error {
		info := &proto.SecondaryIndex{}
		if err := info.Unmarshal(value); err != nil {
			return err
		}
		ret = append(ret, info)
		return nil
	})
	if err != nil {
		return nil, errors.Persistence(err)
	}
	return ret, nil
}

func (g *SecondaryIndexGateway) persist(ctx context.Context, info *proto.SecondaryIndex) error {
	data, err := info.Marshal()
	if err != nil {
		return errors.Persistence(err)
	}
	key := encodeScopedID(indexKeyPrefix, info.ResourceID, info.ID)
	if err = g.kvStore.SetRaw(ctx, store.MetaCF, key, data); err != nil {
		return errors.Persistence(err)
	}
	return nil
}

func (g *SecondaryIndexGateway) requirePersisted(ctx context.Context, resourceID proto.ResourceID, id proto.IndexID, name string) error {
	if id == proto.NewObjectID {
		return errors.Persistence(fmt.Errorf("secondary index %q: %v", name, errors.ErrTransientObject))
	}
	_, err := g.kvStore.GetRaw(ctx, store.MetaCF, encodeScopedID(indexKeyPrefix, resourceID, id))
	switch err {
	case nil:
		return nil
	case kvstore.ErrNotFound:
		return fmt.Errorf("secondary index id %d: %w", id, errors.ErrNotFound)
	default:
		return errors.Persistence(err)
	}
}
