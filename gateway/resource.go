package gateway

import (
	"context"
	"fmt"

	"github.com/hivedb/hive/common/kvstore"
	"github.com/hivedb/hive/errors"
	"github.com/hivedb/hive/proto"
	"github.com/hivedb/hive/store"
)

const resourceSeq = "resource"

// ResourceGateway owns the resource table, scoped by dimension id.
type ResourceGateway struct {
	kvStore kvstore.Store
	ids     *idGenerator
}

func (g *ResourceGateway) Create(ctx context.Context, info *proto.Resource) error {
	if info.ID != proto.NewObjectID {
		return errors.Persistence(fmt.Errorf("create resource %q: id %d is already assigned", info.Name, info.ID))
	}

	existing, err := g.LoadAll(ctx, info.DimensionID)
	if err != nil {
		return err
	}
	for _, r := range existing {
		if r.Name == info.Name {
			return fmt.Errorf("resource %q: %w", info.Name, errors.ErrDuplicateName)
		}
	}

	id, err := g.ids.Alloc(ctx, resourceSeq)
	if err != nil {
		return err
	}
	info.ID = id
	return g.persist(ctx, info)
}

func (g *ResourceGateway) Update(ctx context.Context, info *proto.Resource) error {
	if err := g.requirePersisted(ctx, info.DimensionID, info.ID, info.Name); err != nil {
		return err
	}
	return g.persist(ctx, info)
}

func (g *ResourceGateway) Delete(ctx context.Context, dimensionID proto.DimensionID, id proto.ResourceID) error {
	if err := g.requirePersisted(ctx, dimensionID, id, ""); err != nil {
		return err
	}
	if err := g.kvStore.Delete(ctx, store.MetaCF, encodeScopedID(resourceKeyPrefix, dimensionID, id)); err != nil {
		return errors.Persistence(err)
	}
	return nil
}

func (g *ResourceGateway) LoadAll(ctx context.Context, dimensionID proto.DimensionID) ([]*proto.Resource, error) {
	var ret []*proto.Resource
	lr := g.kvStore.List(ctx, store.MetaCF, encodeScopedPrefix(resourceKeyPrefix, dimensionID), nil)
	err := listRows(lr, func(value []byte) error {
		info := &proto.Resource{}
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

func (g *ResourceGateway) persist(ctx context.Context, info *proto.Resource) error {
	data, err := info.Marshal()
	if err != nil {
		return errors.Persistence(err)
	}
	key := encodeScopedID(resourceKeyPrefix, info.DimensionID, info.ID)
	if err = g.kvStore.SetRaw(ctx, store.MetaCF, key, data); err != nil {
		return errors.Persistence(err)
	}
	return nil
}

func (g *ResourceGateway) requirePersisted(ctx context.Context, dimensionID proto.DimensionID, id proto.ResourceID, name string) error {
	if id == proto.NewObjectID {
		return errors.Persistence(fmt.Errorf("resource %q: %v", name, errors.ErrTransientObject))
	}
	_, err := g.kvStore.GetRaw(ctx, store.MetaCF, encodeScopedID(resourceKeyPrefix, dimensionID, id))
	switch err {
	case nil:
		return nil
	case kvstore.ErrNotFound:
		return fmt.Errorf("resource id %d: %w", id, errors.ErrNotFound)
	default:
		return errors.Persistence(err)
	}
}
