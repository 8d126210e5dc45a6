package gateway

import (
	"context"
	"fmt"

	"github.com/hivedb/hive/common/kvstore"
	"github.com/hivedb/hive/errors"
	"github.com/hivedb/hive/proto"
	"github.com/hivedb/hive/store"
)

const dimensionSeq = "partition_dimension"

// DimensionGateway owns the partition_dimension table. Rows hold only the
// dimension's own columns; resources and nodes live in their own tables.
type DimensionGateway struct {
	kvStore kvstore.Store
	ids     *idGenerator
}

func (g *DimensionGateway) Create(ctx context.Context, info *proto.PartitionDimension) error {
	if info.ID != proto.NewObjectID {
		return errors.Persistence(fmt.Errorf("create partition dimension %q: id %d is already assigned", info.Name, info.ID))
	}

	existing, err := g.LoadAll(ctx)
	if err != nil {
		return err
	}
	for _, d := range existing {
		if d.Name == info.Name {
			return fmt.Errorf("partition dimension %q: %w", info.Name, errors.ErrDuplicateName)
		}
	}

	id, err := g.ids.Alloc(ctx, dimensionSeq)
	if err != nil {
		return err
	}
	info.ID = id
	return g.persist(ctx, info)
}

func (g *DimensionGateway) Update(ctx context.Context, info *proto.PartitionDimension) error {
	if err := g.requirePersisted(ctx, info.ID, info.Name); err != nil {
		return err
	}
	return g.persist(ctx, info)
}

func (g *DimensionGateway) Delete(ctx context.Context, id proto.DimensionID) error {
	if err := g.requirePersisted(ctx, id, ""); err != nil {
		return err
	}
	if err := g.kvStore.Delete(ctx, store.MetaCF, encodeID(dimensionKeyPrefix, id)); err != nil {
		return errors.Persistence(err)
	}
	return nil
}

func (g *DimensionGateway) LoadAll(ctx context.Context) ([]*proto.PartitionDimension, error) {
	var ret []*proto.PartitionDimension
	lr := g.kvStore.List(ctx, store.MetaCF, encodePrefix(dimensionKeyPrefix), nil)
	err := listRows(lr, func(value []byte) error {
		info := &proto.PartitionDimension{}
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

func (g *DimensionGateway) persist(ctx context.Context, info *proto.PartitionDimension) error {
	data, err := info.Marshal()
	if err != nil {
		return errors.Persistence(err)
	}
	if err = g.kvStore.SetRaw(ctx, store.MetaCF, encodeID(dimensionKeyPrefix, info.ID), data); err != nil {
		return errors.Persistence(err)
	}
	return nil
}

func (g *DimensionGateway) requirePersisted(ctx context.Context, id proto.DimensionID, name string) error {
	if id == proto.NewObjectID {
		return errors.Persistence(fmt.Errorf("partition dimension %q: %v", name, errors.ErrTransientObject))
	}
	_, err := g.kvStore.GetRaw(ctx, store.MetaCF, encodeID(dimensionKeyPrefix, id))
	switch err {
	case nil:
		return nil
	case kvstore.ErrNotFound:
		return fmt.Errorf("partition dimension id %d: %w", id, errors.ErrNotFound)
	default:
		return errors.Persistence(err)
	}
}
