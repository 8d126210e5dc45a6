package gateway

import (
	"context"
	"fmt"

	"github.com/hivedb/hive/common/kvstore"
	"github.com/hivedb/hive/errors"
	"github.com/hivedb/hive/proto"
	"github.com/hivedb/hive/store"
)

const nodeSeq = "node"

// NodeGateway owns the node table, scoped by dimension id.
type NodeGateway struct {
	kvStore kvstore.Store
	ids     *idGenerator
}

func (g *NodeGateway) Create(ctx context.Context, info *proto.Node) error {
	if info.ID != proto.NewObjectID {
		return errors.Persistence(fmt.Errorf("create node %q: id %d is already assigned", info.Name, info.ID))
	}

	existing, err := g.LoadAll(ctx, info.DimensionID)
	if err != nil {
		return err
	}
	for _, n := range existing {
		if n.Name == info.Name {
			return fmt.Errorf("node %q: %w", info.Name, errors.ErrDuplicateName)
		}
	}

	id, err := g.ids.Alloc(ctx, nodeSeq)
	if err != nil {
		return err
	}
	info.ID = id
	return g.persist(ctx, info)
}

func (g *NodeGateway) Update(ctx context.Context, info *proto.Node) error {
	if err := g.requirePersisted(ctx, info.DimensionID, info.ID, info.Name); err != nil {
		return err
	}
	return g.persist(ctx, info)
}

func (g *NodeGateway) Delete(ctx context.Context, dimensionID proto.DimensionID, id proto.NodeID) error {
	if err := g.requirePersisted(ctx, dimensionID, id, ""); err != nil {
		return err
	}
	if err := g.kvStore.Delete(ctx, store.MetaCF, encodeScopedID(nodeKeyPrefix, dimensionID, id)); err != nil {
		return errors.Persistence(err)
	}
	return nil
}

func (g *NodeGateway) LoadAll(ctx context.Context, dimensionID proto.DimensionID) ([]*proto.Node, error) {
	var ret []*proto.Node
	lr := g.kvStore.List(ctx, store.MetaCF, encodeScopedPrefix(nodeKeyPrefix, dimensionID), nil)
	err := listRows(lr, func(value []byte) error {
		info := &proto.Node{}
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

func (g *NodeGateway) persist(ctx context.Context, info *proto.Node) error {
	data, err := info.Marshal()
	if err != nil {
		return errors.Persistence(err)
	}
	key := encodeScopedID(nodeKeyPrefix, info.DimensionID, info.ID)
	if err = g.kvStore.SetRaw(ctx, store.MetaCF, key, data); err != nil {
		return errors.Persistence(err)
	}
	return nil
}

func (g *NodeGateway) requirePersisted(ctx context.Context, dimensionID proto.DimensionID, id proto.NodeID, name string) error {
	if id == proto.NewObjectID {
		return errors.Persistence(fmt.Errorf("node %q: %v", name, errors.ErrTransientObject))
	}
	_, err := g.kvStore.GetRaw(ctx, store.MetaCF, encodeScopedID(nodeKeyPrefix, dimensionID, id))
	switch err {
	case nil:
		return nil
	case kvstore.ErrNotFound:
		return fmt.Errorf("node id %d: %w", id, errors.ErrNotFound)
	default:
		return errors.Persistence(err)
	}
}
