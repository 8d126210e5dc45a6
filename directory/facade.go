package directory

import (
	"context"
	"fmt"

	"github.com/hivedb/hive/assigner"
	"github.com/hivedb/hive/errors"
	"github.com/hivedb/hive/lockable"
	"github.com/hivedb/hive/proto"
)

// HiveStatus reports the current hive-wide lock state.
type HiveStatus interface {
	Status() proto.Status
}

// Facade wraps a Directory with name resolution and the lock engine: every
// mutating call composes hive, node, and key writability before touching
// the tables.
type Facade struct {
	dir      *Directory
	hive     HiveStatus
	assigner assigner.Assigner
}

func NewFacade(dir *Directory, hive HiveStatus, a assigner.Assigner) *Facade {
	return &Facade{dir: dir, hive: hive, assigner: a}
}

func (f *Facade) Directory() *Directory {
	return f.dir
}

func (f *Facade) dimension() *proto.PartitionDimension {
	return f.dir.Dimension()
}

func (f *Facade) resource(name string) (*proto.Resource, error) {
	r, ok := f.dimension().Resource(name)
	if !ok {
		return nil, fmt.Errorf("resource %q in dimension %q: %w", name, f.dimension().Name, errors.ErrNotFound)
	}
	return r, nil
}

func (f *Facade) secondaryIndex(resource, name string) (*proto.Resource, *proto.SecondaryIndex, error) {
	r, err := f.resource(resource)
	if err != nil {
		return nil, nil, err
	}
	idx, ok := r.SecondaryIndex(name)
	if !ok {
		return nil, nil, fmt.Errorf("secondary index %q on resource %q: %w", name, resource, errors.ErrNotFound)
	}
	return r, idx, nil
}

func (f *Facade) resolveNode(id proto.NodeID) (*proto.Node, bool) {
	return f.dimension().Node(id)
}

// InsertPrimaryIndexKey routes the new key through the assigner over the
// dimension's writable nodes.
func (f *Facade) InsertPrimaryIndexKey(ctx context.Context, key proto.Key) error {
	writable := make([]*proto.Node, 0, len(f.dimension().Nodes))
	for _, n := range f.dimension().Nodes {
		if n.Status.IsWritable() {
			writable = append(writable, n)
		}
	}
	node, err := f.assigner.Choose(writable, key)
	if err != nil {
		return err
	}
	if err = lockable.RequireWritable(lockable.HiveItem(f.hive.Status()), lockable.NodeItem(node)); err != nil {
		return err
	}
	return f.dir.InsertPrimaryIndexKey(ctx, node, key)
}

// InsertResourceID records id -> primaryKey. For a partitioning resource
// this is the same operation as inserting the primary key itself.
func (f *Facade) InsertResourceID(ctx context.Context, resource string, id, primaryKey proto.Key) error {
	r, err := f.resource(resource)
	if err != nil {
		return err
	}
	if r.Partitioning {
		return f.InsertPrimaryIndexKey(ctx, primaryKey)
	}

	sems, err := f.dir.KeySemaphoresOfPrimaryIndexKey(ctx, primaryKey)
	if err != nil {
		return err
	}
	items := append([]lockable.Item{lockable.HiveItem(f.hive.Status())},
		lockable.SemaphoreItems(f.resolveNode, sems, keyLabel("primary index key", primaryKey))...)
	if err = lockable.RequireWritable(items...); err != nil {
		return err
	}
	return f.dir.InsertResourceID(ctx, r, id, primaryKey)
}

func (f *Facade) InsertSecondaryIndexKey(ctx context.Context, resource, index string, secondaryKey, resourceID proto.Key) error {
	r, idx, err := f.secondaryIndex(resource, index)
	if err != nil {
		return err
	}

	sems, err := f.dir.KeySemaphoresOfResourceID(ctx, r, resourceID)
	if err != nil {
		return err
	}
	items := append([]lockable.Item{lockable.HiveItem(f.hive.Status())},
		lockable.SemaphoreItems(f.resolveNode, sems, keyLabel("resource id", resourceID))...)
	if err = lockable.RequireWritable(items...); err != nil {
		return err
	}
	return f.dir.InsertSecondaryIndexKey(ctx, r, idx, secondaryKey, resourceID)
}

func (f *Facade) KeySemaphoresOfPrimaryIndexKey(ctx context.Context, key proto.Key) ([]proto.KeySemaphore, error) {
	return f.dir.KeySemaphoresOfPrimaryIndexKey(ctx, key)
}

func (f *Facade) KeySemaphoresOfResourceID(ctx context.Context, resource string, id proto.Key) ([]proto.KeySemaphore, error) {
	r, err := f.resource(resource)
	if err != nil {
		return nil, err
	}
	return f.dir.KeySemaphoresOfResourceID(ctx, r, id)
}

func (f *Facade) KeySemaphoresOfSecondaryIndexKey(ctx context.Context, resource, index string, secondaryKey proto.Key) ([]proto.KeySemaphore, error) {
	r, idx, err := f.secondaryIndex(resource, index)
	if err != nil {
		return nil, err
	}
	return f.dir.KeySemaphoresOfSecondaryIndexKey(ctx, r, idx, secondaryKey)
}

// NodeIDsOfPrimaryIndexKey projects the key's semaphores onto node ids.
func (f *Facade) NodeIDsOfPrimaryIndexKey(ctx context.Context, key proto.Key) ([]proto.NodeID, error) {
	sems, err := f.dir.KeySemaphoresOfPrimaryIndexKey(ctx, key)
	if err != nil {
		return nil, err
	}
	return semaphoresToNodeIDs(sems), nil
}

func (f *Facade) NodeIDsOfResourceID(ctx context.Context, resource string, id proto.Key) ([]proto.NodeID, error) {
	sems, err := f.KeySemaphoresOfResourceID(ctx, resource, id)
	if err != nil {
		return nil, err
	}
	return semaphoresToNodeIDs(sems), nil
}

func (f *Facade) NodeIDsOfSecondaryIndexKey(ctx context.Context, resource, index string, secondaryKey proto.Key) ([]proto.NodeID, error) {
	sems, err := f.KeySemaphoresOfSecondaryIndexKey(ctx, resource, index, secondaryKey)
	if err != nil {
		return nil, err
	}
	return semaphoresToNodeIDs(sems), nil
}

// ReadOnlyOfPrimaryIndexKey reports the effective key lock: read-only iff
// any semaphore or its node refuses writes.
func (f *Facade) ReadOnlyOfPrimaryIndexKey(ctx context.Context, key proto.Key) (bool, error) {
	sems, err := f.dir.KeySemaphoresOfPrimaryIndexKey(ctx, key)
	if err != nil {
		return false, err
	}
	if len(sems) == 0 {
		return false, fmt.Errorf("primary index key %s: %w", key, errors.ErrNotFound)
	}
	return f.anyReadOnly(sems), nil
}

func (f *Facade) ReadOnlyOfResourceID(ctx context.Context, resource string, id proto.Key) (bool, error) {
	sems, err := f.KeySemaphoresOfResourceID(ctx, resource, id)
	if err != nil {
		return false, err
	}
	if len(sems) == 0 {
		return false, fmt.Errorf("resource %q id %s: %w", resource, id, errors.ErrNotFound)
	}
	return f.anyReadOnly(sems), nil
}

func (f *Facade) PrimaryIndexKeyOfResourceID(ctx context.Context, resource string, id proto.Key) (proto.Key, error) {
	r, err := f.resource(resource)
	if err != nil {
		return nil, err
	}
	key, ok, err := f.dir.PrimaryIndexKeyOfResourceID(ctx, r, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("resource %q id %s: %w", resource, id, errors.ErrNotFound)
	}
	return key, nil
}

func (f *Facade) ResourceIDsOfSecondaryIndexKey(ctx context.Context, resource, index string, secondaryKey proto.Key) ([]proto.Key, error) {
	_, idx, err := f.secondaryIndex(resource, index)
	if err != nil {
		return nil, err
	}
	return f.dir.ResourceIDsOfSecondaryIndexKey(ctx, idx, secondaryKey)
}

func (f *Facade) SecondaryIndexKeysOfResourceID(ctx context.Context, resource, index string, id proto.Key) ([]proto.Key, error) {
	_, idx, err := f.secondaryIndex(resource, index)
	if err != nil {
		return nil, err
	}
	return f.dir.SecondaryIndexKeysOfResourceID(ctx, idx, id)
}

func (f *Facade) SecondaryIndexKeysOfPrimaryIndexKey(ctx context.Context, resource, index string, primaryKey proto.Key) ([]proto.Key, error) {
	r, idx, err := f.secondaryIndex(resource, index)
	if err != nil {
		return nil, err
	}
	return f.dir.SecondaryIndexKeysOfPrimaryIndexKey(ctx, r, idx, primaryKey)
}

func (f *Facade) DoesPrimaryIndexKeyExist(ctx context.Context, key proto.Key) (bool, error) {
	return f.dir.DoesPrimaryIndexKeyExist(ctx, key)
}

func (f *Facade) DoesResourceIDExist(ctx context.Context, resource string, id proto.Key) (bool, error) {
	r, err := f.resource(resource)
	if err != nil {
		return false, err
	}
	return f.dir.DoesResourceIDExist(ctx, r, id)
}

func (f *Facade) DoesSecondaryIndexKeyExist(ctx context.Context, resource, index string, secondaryKey, resourceID proto.Key) (bool, error) {
	_, idx, err := f.secondaryIndex(resource, index)
	if err != nil {
		return false, err
	}
	return f.dir.DoesSecondaryIndexKeyExist(ctx, idx, secondaryKey, resourceID)
}

// UpdatePrimaryIndexKeyReadOnly requires the hive and the key's nodes
// writable, but not the key itself: a read-only key must stay unlockable.
func (f *Facade) UpdatePrimaryIndexKeyReadOnly(ctx context.Context, key proto.Key, readOnly bool) error {
	sems, err := f.dir.KeySemaphoresOfPrimaryIndexKey(ctx, key)
	if err != nil {
		return err
	}
	if len(sems) == 0 {
		return fmt.Errorf("primary index key %s: %w", key, errors.ErrNotFound)
	}
	items := append([]lockable.Item{lockable.HiveItem(f.hive.Status())},
		lockable.NodeItems(f.resolveNode, sems)...)
	if err = lockable.RequireWritable(items...); err != nil {
		return err
	}
	return f.dir.UpdatePrimaryIndexKeyReadOnly(ctx, key, readOnly)
}

// UpdatePrimaryIndexNode moves a key to the named node.
func (f *Facade) UpdatePrimaryIndexNode(ctx context.Context, key proto.Key, nodeName string) error {
	node, ok := f.dimension().NodeByName(nodeName)
	if !ok {
		return fmt.Errorf("node %q in dimension %q: %w", nodeName, f.dimension().Name, errors.ErrNotFound)
	}
	if err := lockable.RequireWritable(lockable.HiveItem(f.hive.Status()), lockable.NodeItem(node)); err != nil {
		return err
	}
	return f.dir.UpdatePrimaryIndexNode(ctx, node, key)
}

func (f *Facade) UpdatePrimaryIndexKeyOfResourceID(ctx context.Context, resource string, id, newPrimaryKey proto.Key) error {
	r, err := f.resource(resource)
	if err != nil {
		return err
	}
	if r.Partitioning {
		return fmt.Errorf("resource %q is a partitioning resource: its id is the partition key and cannot be repointed", resource)
	}

	sems, err := f.dir.KeySemaphoresOfPrimaryIndexKey(ctx, newPrimaryKey)
	if err != nil {
		return err
	}
	items := append([]lockable.Item{lockable.HiveItem(f.hive.Status())},
		lockable.SemaphoreItems(f.resolveNode, sems, keyLabel("primary index key", newPrimaryKey))...)
	if err = lockable.RequireWritable(items...); err != nil {
		return err
	}
	return f.dir.UpdatePrimaryIndexKeyOfResourceID(ctx, r, id, newPrimaryKey)
}

// DeletePrimaryIndexKey checks existence and writability, then cascades the
// delete across the key's resource and secondary rows.
func (f *Facade) DeletePrimaryIndexKey(ctx context.Context, key proto.Key) error {
	sems, err := f.dir.KeySemaphoresOfPrimaryIndexKey(ctx, key)
	if err != nil {
		return err
	}
	if len(sems) == 0 {
		return fmt.Errorf("primary index key %s: %w", key, errors.ErrNotFound)
	}
	items := append([]lockable.Item{lockable.HiveItem(f.hive.Status())},
		lockable.SemaphoreItems(f.resolveNode, sems, keyLabel("primary index key", key))...)
	if err = lockable.RequireWritable(items...); err != nil {
		return err
	}
	return f.dir.DeletePrimaryIndexKey(ctx, key)
}

func (f *Facade) DeleteResourceID(ctx context.Context, resource string, id proto.Key) error {
	r, err := f.resource(resource)
	if err != nil {
		return err
	}
	if r.Partitioning {
		return fmt.Errorf("resource %q is a partitioning resource: delete its id as a primary index key", resource)
	}

	sems, err := f.dir.KeySemaphoresOfResourceID(ctx, r, id)
	if err != nil {
		return err
	}
	items := append([]lockable.Item{lockable.HiveItem(f.hive.Status())},
		lockable.SemaphoreItems(f.resolveNode, sems, keyLabel("resource id", id))...)
	if err = lockable.RequireWritable(items...); err != nil {
		return err
	}
	return f.dir.DeleteResourceID(ctx, r, id)
}

func (f *Facade) DeleteSecondaryIndexKey(ctx context.Context, resource, index string, secondaryKey, resourceID proto.Key) error {
	r, idx, err := f.secondaryIndex(resource, index)
	if err != nil {
		return err
	}

	sems, err := f.dir.KeySemaphoresOfResourceID(ctx, r, resourceID)
	if err != nil {
		return err
	}
	items := append([]lockable.Item{lockable.HiveItem(f.hive.Status())},
		lockable.SemaphoreItems(f.resolveNode, sems, keyLabel("resource id", resourceID))...)
	if err = lockable.RequireWritable(items...); err != nil {
		return err
	}
	return f.dir.DeleteSecondaryIndexKey(ctx, idx, secondaryKey, resourceID)
}

func (f *Facade) anyReadOnly(sems []proto.KeySemaphore) bool {
	if !f.hive.Status().IsWritable() {
		return true
	}
	for _, s := range sems {
		if !s.Status.IsWritable() {
			return true
		}
		if n, ok := f.resolveNode(s.NodeID); !ok || !n.Status.IsWritable() {
			return true
		}
	}
	return false
}

func semaphoresToNodeIDs(sems []proto.KeySemaphore) []proto.NodeID {
	seen := make(map[proto.NodeID]struct{}, len(sems))
	ret := make([]proto.NodeID, 0, len(sems))
	for _, s := range sems {
		if _, ok := seen[s.NodeID]; ok {
			continue
		}
		seen[s.NodeID] = struct{}{}
		ret = append(ret, s.NodeID)
	}
	return ret
}

func keyLabel(kind string, key proto.Key) string {
	return fmt.Sprintf("%s %s", kind, key)
}
