// Package directory owns the persisted key-routing tables of one partition
// dimension: partition key to node, resource id to partition key, and
// secondary key to resource id. Directory operations are mechanical; lock
// enforcement lives in the Facade.
package directory

import (
	"context"
	"fmt"
	"time"

	"github.com/hivedb/hive/common/kvstore"
	"github.com/hivedb/hive/errors"
	"github.com/hivedb/hive/metrics"
	"github.com/hivedb/hive/proto"
	"github.com/hivedb/hive/store"
)

type Directory struct {
	dimension *proto.PartitionDimension
	kvStore   kvstore.Store
	keys      *keysGenerator
	sink      metrics.Sink
}

func New(dimension *proto.PartitionDimension, s *store.Store, sink metrics.Sink) *Directory {
	if sink == nil {
		sink = metrics.NewNopSink()
	}
	return &Directory{
		dimension: dimension,
		kvStore:   s.KVStore(),
		keys:      &keysGenerator{dimensionID: dimension.ID},
		sink:      sink,
	}
}

func (d *Directory) Dimension() *proto.PartitionDimension {
	return d.dimension
}

// InsertPrimaryIndexKey adds the row (key, node, writable).
func (d *Directory) InsertPrimaryIndexKey(ctx context.Context, node *proto.Node, key proto.Key) error {
	exists, err := d.DoesPrimaryIndexKeyExist(ctx, key)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("primary index key %s: %w", key, errors.ErrDuplicateKey)
	}

	row, err := marshalRow(primaryRow{ReadOnly: false, LastUpdated: time.Now().Unix()})
	if err != nil {
		return errors.Persistence(err)
	}
	d.sink.IncDirectoryWriteCount()
	if err = d.kvStore.SetRaw(ctx, store.DirectoryCF, d.keys.encodePrimaryKey(key, node.ID), row); err != nil {
		return errors.Persistence(err)
	}
	return nil
}

// InsertResourceID records id -> primaryKey for the resource. Inserting an
// id of a partitioning resource is a no-op here: its id is the partition
// key itself and lives in the primary index.
func (d *Directory) InsertResourceID(ctx context.Context, resource *proto.Resource, id, primaryKey proto.Key) error {
	if resource.Partitioning {
		return nil
	}

	parentExists, err := d.DoesPrimaryIndexKeyExist(ctx, primaryKey)
	if err != nil {
		return err
	}
	if !parentExists {
		return fmt.Errorf("primary index key %s: %w", primaryKey, errors.ErrMissingParent)
	}

	exists, err := d.DoesResourceIDExist(ctx, resource, id)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("resource %s id %s: %w", resource.Name, id, errors.ErrDuplicateKey)
	}

	row, err := marshalRow(resourceRow{PartitionKey: primaryKey, LastUpdated: time.Now().Unix()})
	if err != nil {
		return errors.Persistence(err)
	}

	batch := d.kvStore.NewWriteBatch()
	defer batch.Close()
	batch.Put(store.DirectoryCF, d.keys.encodeResourceFwdKey(resource.ID, id), row)
	batch.Put(store.DirectoryCF, d.keys.encodeResourceRevKey(resource.ID, primaryKey, id), nil)
	d.sink.IncDirectoryWriteCount()
	if err = d.kvStore.Write(ctx, batch); err != nil {
		return errors.Persistence(err)
	}
	return nil
}

// InsertSecondaryIndexKey records secondaryKey -> resourceID for the index.
func (d *Directory) InsertSecondaryIndexKey(ctx context.Context, resource *proto.Resource, index *proto.SecondaryIndex, secondaryKey, resourceID proto.Key) error {
	parentExists, err := d.DoesResourceIDExist(ctx, resource, resourceID)
	if err != nil {
		return err
	}
	if !parentExists {
		return fmt.Errorf("resource %s id %s: %w", resource.Name, resourceID, errors.ErrMissingParent)
	}

	fwdKey := d.keys.encodeSecondaryFwdKey(index.ID, secondaryKey, resourceID)
	if _, err = d.kvStore.GetRaw(ctx, store.DirectoryCF, fwdKey); err == nil {
		return fmt.Errorf("secondary index %s key %s: %w", index.Name, secondaryKey, errors.ErrDuplicateKey)
	} else if err != kvstore.ErrNotFound {
		return errors.Persistence(err)
	}

	row, err := marshalRow(secondaryRow{LastUpdated: time.Now().Unix()})
	if err != nil {
		return errors.Persistence(err)
	}

	batch := d.kvStore.NewWriteBatch()
	defer batch.Close()
	batch.Put(store.DirectoryCF, fwdKey, row)
	batch.Put(store.DirectoryCF, d.keys.encodeSecondaryRevKey(index.ID, resourceID, secondaryKey), nil)
	d.sink.IncDirectoryWriteCount()
	if err = d.kvStore.Write(ctx, batch); err != nil {
		return errors.Persistence(err)
	}
	return nil
}

// KeySemaphoresOfPrimaryIndexKey returns one semaphore per node the key
// lives on. An empty set signals an unknown key.
func (d *Directory) KeySemaphoresOfPrimaryIndexKey(ctx context.Context, key proto.Key) ([]proto.KeySemaphore, error) {
	d.sink.IncDirectoryReadCount()

	var ret []proto.KeySemaphore
	lr := d.kvStore.List(ctx, store.DirectoryCF, d.keys.encodePrimaryKeyPrefix(key), nil)
	defer lr.Close()
	for {
		k, v, err := lr.ReadNextCopy()
		if err != nil {
			return nil, errors.Persistence(err)
		}
		if k == nil {
			return ret, nil
		}
		row := primaryRow{}
		if err = unmarshalRow(v, &row); err != nil {
			return nil, errors.Persistence(err)
		}
		ret = append(ret, proto.KeySemaphore{
			NodeID: decodePrimaryNodeID(k),
			Status: proto.StatusOf(row.ReadOnly),
		})
	}
}

// KeySemaphoresOfResourceID resolves the resource id to its partition key
// and returns that key's semaphores. For a partitioning resource the id is
// the partition key.
func (d *Directory) KeySemaphoresOfResourceID(ctx context.Context, resource *proto.Resource, id proto.Key) ([]proto.KeySemaphore, error) {
	primaryKey, ok, err := d.PrimaryIndexKeyOfResourceID(ctx, resource, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return d.KeySemaphoresOfPrimaryIndexKey(ctx, primaryKey)
}

// KeySemaphoresOfSecondaryIndexKey joins secondary -> resource -> primary ->
// semaphores. A secondary key pointing at several resources yields the
// union.
func (d *Directory) KeySemaphoresOfSecondaryIndexKey(ctx context.Context, resource *proto.Resource, index *proto.SecondaryIndex, secondaryKey proto.Key) ([]proto.KeySemaphore, error) {
	ids, err := d.ResourceIDsOfSecondaryIndexKey(ctx, index, secondaryKey)
	if err != nil {
		return nil, err
	}

	var ret []proto.KeySemaphore
	for _, id := range ids {
		sems, err := d.KeySemaphoresOfResourceID(ctx, resource, id)
		if err != nil {
			return nil, err
		}
		ret = append(ret, sems...)
	}
	return ret, nil
}

// PrimaryIndexKeyOfResourceID returns the partition key a resource id maps
// to. For a partitioning resource the mapping is the identity.
func (d *Directory) PrimaryIndexKeyOfResourceID(ctx context.Context, resource *proto.Resource, id proto.Key) (proto.Key, bool, error) {
	if resource.Partitioning {
		return id, true, nil
	}

	d.sink.IncDirectoryReadCount()
	data, err := d.kvStore.GetRaw(ctx, store.DirectoryCF, d.keys.encodeResourceFwdKey(resource.ID, id))
	switch err {
	case nil:
	case kvstore.ErrNotFound:
		return nil, false, nil
	default:
		return nil, false, errors.Persistence(err)
	}

	row := resourceRow{}
	if err = unmarshalRow(data, &row); err != nil {
		return nil, false, errors.Persistence(err)
	}
	return row.PartitionKey, true, nil
}

// ResourceIDsOfPrimaryIndexKey lists the resource ids attached to a
// partition key.
func (d *Directory) ResourceIDsOfPrimaryIndexKey(ctx context.Context, resource *proto.Resource, primaryKey proto.Key) ([]proto.Key, error) {
	if resource.Partitioning {
		exists, err := d.DoesPrimaryIndexKeyExist(ctx, primaryKey)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, nil
		}
		return []proto.Key{primaryKey}, nil
	}

	d.sink.IncDirectoryReadCount()
	prefix := d.keys.encodeResourceRevPrefix(resource.ID, primaryKey)
	return d.listTrailingFramed(ctx, prefix)
}

// ResourceIDsOfSecondaryIndexKey lists the resource ids a secondary key
// points at.
func (d *Directory) ResourceIDsOfSecondaryIndexKey(ctx context.Context, index *proto.SecondaryIndex, secondaryKey proto.Key) ([]proto.Key, error) {
	d.sink.IncDirectoryReadCount()
	prefix := d.keys.encodeSecondaryFwdPrefix(index.ID, secondaryKey)
	return d.listTrailingFramed(ctx, prefix)
}

// SecondaryIndexKeysOfResourceID lists the secondary keys recorded for a
// resource id in one index.
func (d *Directory) SecondaryIndexKeysOfResourceID(ctx context.Context, index *proto.SecondaryIndex, id proto.Key) ([]proto.Key, error) {
	d.sink.IncDirectoryReadCount()
	prefix := d.keys.encodeSecondaryRevPrefix(index.ID, id)
	return d.listTrailingFramed(ctx, prefix)
}

// SecondaryIndexKeysOfPrimaryIndexKey lists the secondary keys of every
// resource id attached to a partition key.
func (d *Directory) SecondaryIndexKeysOfPrimaryIndexKey(ctx context.Context, resource *proto.Resource, index *proto.SecondaryIndex, primaryKey proto.Key) ([]proto.Key, error) {
	ids, err := d.ResourceIDsOfPrimaryIndexKey(ctx, resource, primaryKey)
	if err != nil {
		return nil, err
	}

	var ret []proto.Key
	for _, id := range ids {
		keys, err := d.SecondaryIndexKeysOfResourceID(ctx, index, id)
		if err != nil {
			return nil, err
		}
		ret = append(ret, keys...)
	}
	return ret, nil
}

func (d *Directory) DoesPrimaryIndexKeyExist(ctx context.Context, key proto.Key) (bool, error) {
	sems, err := d.KeySemaphoresOfPrimaryIndexKey(ctx, key)
	if err != nil {
		return false, err
	}
	return len(sems) > 0, nil
}

func (d *Directory) DoesResourceIDExist(ctx context.Context, resource *proto.Resource, id proto.Key) (bool, error) {
	if resource.Partitioning {
		return d.DoesPrimaryIndexKeyExist(ctx, id)
	}
	_, ok, err := d.PrimaryIndexKeyOfResourceID(ctx, resource, id)
	return ok, err
}

func (d *Directory) DoesSecondaryIndexKeyExist(ctx context.Context, index *proto.SecondaryIndex, secondaryKey, resourceID proto.Key) (bool, error) {
	d.sink.IncDirectoryReadCount()
	_, err := d.kvStore.GetRaw(ctx, store.DirectoryCF, d.keys.encodeSecondaryFwdKey(index.ID, secondaryKey, resourceID))
	switch err {
	case nil:
		return true, nil
	case kvstore.ErrNotFound:
		return false, nil
	default:
		return false, errors.Persistence(err)
	}
}

// UpdatePrimaryIndexKeyReadOnly flips the read-only flag on every semaphore
// row of the key.
func (d *Directory) UpdatePrimaryIndexKeyReadOnly(ctx context.Context, key proto.Key, readOnly bool) error {
	rowKeys, err := d.primaryRowKeys(ctx, key)
	if err != nil {
		return err
	}
	if len(rowKeys) == 0 {
		return fmt.Errorf("primary index key %s: %w", key, errors.ErrNotFound)
	}

	row, err := marshalRow(primaryRow{ReadOnly: readOnly, LastUpdated: time.Now().Unix()})
	if err != nil {
		return errors.Persistence(err)
	}

	batch := d.kvStore.NewWriteBatch()
	defer batch.Close()
	for _, rk := range rowKeys {
		batch.Put(store.DirectoryCF, rk, row)
	}
	d.sink.IncDirectoryWriteCount()
	if err = d.kvStore.Write(ctx, batch); err != nil {
		return errors.Persistence(err)
	}
	return nil
}

// UpdatePrimaryIndexNode moves the key to the given node, preserving its
// read-only flag.
func (d *Directory) UpdatePrimaryIndexNode(ctx context.Context, node *proto.Node, key proto.Key) error {
	sems, err := d.KeySemaphoresOfPrimaryIndexKey(ctx, key)
	if err != nil {
		return err
	}
	if len(sems) == 0 {
		return fmt.Errorf("primary index key %s: %w", key, errors.ErrNotFound)
	}

	readOnly := false
	for _, s := range sems {
		if !s.Status.IsWritable() {
			readOnly = true
		}
	}
	row, err := marshalRow(primaryRow{ReadOnly: readOnly, LastUpdated: time.Now().Unix()})
	if err != nil {
		return errors.Persistence(err)
	}

	prefix := d.keys.encodePrimaryKeyPrefix(key)
	batch := d.kvStore.NewWriteBatch()
	defer batch.Close()
	batch.DeleteRange(store.DirectoryCF, prefix, prefixEnd(prefix))
	batch.Put(store.DirectoryCF, d.keys.encodePrimaryKey(key, node.ID), row)
	d.sink.IncDirectoryWriteCount()
	if err = d.kvStore.Write(ctx, batch); err != nil {
		return errors.Persistence(err)
	}
	return nil
}

// UpdatePrimaryIndexKeyOfResourceID repoints a resource id at a new
// partition key.
func (d *Directory) UpdatePrimaryIndexKeyOfResourceID(ctx context.Context, resource *proto.Resource, id, newPrimaryKey proto.Key) error {
	oldPrimaryKey, ok, err := d.PrimaryIndexKeyOfResourceID(ctx, resource, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("resource %s id %s: %w", resource.Name, id, errors.ErrNotFound)
	}

	parentExists, err := d.DoesPrimaryIndexKeyExist(ctx, newPrimaryKey)
	if err != nil {
		return err
	}
	if !parentExists {
		return fmt.Errorf("primary index key %s: %w", newPrimaryKey, errors.ErrMissingParent)
	}

	row, err := marshalRow(resourceRow{PartitionKey: newPrimaryKey, LastUpdated: time.Now().Unix()})
	if err != nil {
		return errors.Persistence(err)
	}

	batch := d.kvStore.NewWriteBatch()
	defer batch.Close()
	batch.Put(store.DirectoryCF, d.keys.encodeResourceFwdKey(resource.ID, id), row)
	batch.Delete(store.DirectoryCF, d.keys.encodeResourceRevKey(resource.ID, oldPrimaryKey, id))
	batch.Put(store.DirectoryCF, d.keys.encodeResourceRevKey(resource.ID, newPrimaryKey, id), nil)
	d.sink.IncDirectoryWriteCount()
	if err = d.kvStore.Write(ctx, batch); err != nil {
		return errors.Persistence(err)
	}
	return nil
}

// DeletePrimaryIndexKey removes the key's semaphore rows and cascades over
// every resource of the dimension: resource ids mapped to the key and all
// their secondary rows go in the same batch.
func (d *Directory) DeletePrimaryIndexKey(ctx context.Context, key proto.Key) error {
	rowKeys, err := d.primaryRowKeys(ctx, key)
	if err != nil {
		return err
	}
	if len(rowKeys) == 0 {
		return fmt.Errorf("primary index key %s: %w", key, errors.ErrNotFound)
	}

	batch := d.kvStore.NewWriteBatch()
	defer batch.Close()

	for _, resource := range d.dimension.Resources {
		ids, err := d.ResourceIDsOfPrimaryIndexKey(ctx, resource, key)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if err = d.appendSecondaryRowsOfResourceID(ctx, batch, resource, id); err != nil {
				return err
			}
			if !resource.Partitioning {
				batch.Delete(store.DirectoryCF, d.keys.encodeResourceFwdKey(resource.ID, id))
				batch.Delete(store.DirectoryCF, d.keys.encodeResourceRevKey(resource.ID, key, id))
			}
		}
	}

	for _, rk := range rowKeys {
		batch.Delete(store.DirectoryCF, rk)
	}
	d.sink.IncDirectoryWriteCount()
	if err = d.kvStore.Write(ctx, batch); err != nil {
		return errors.Persistence(err)
	}
	return nil
}

// DeleteResourceID removes the resource row and the secondary rows hanging
// off it.
func (d *Directory) DeleteResourceID(ctx context.Context, resource *proto.Resource, id proto.Key) error {
	primaryKey, ok, err := d.PrimaryIndexKeyOfResourceID(ctx, resource, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("resource %s id %s: %w", resource.Name, id, errors.ErrNotFound)
	}

	batch := d.kvStore.NewWriteBatch()
	defer batch.Close()
	if err = d.appendSecondaryRowsOfResourceID(ctx, batch, resource, id); err != nil {
		return err
	}
	batch.Delete(store.DirectoryCF, d.keys.encodeResourceFwdKey(resource.ID, id))
	batch.Delete(store.DirectoryCF, d.keys.encodeResourceRevKey(resource.ID, primaryKey, id))
	d.sink.IncDirectoryWriteCount()
	if err = d.kvStore.Write(ctx, batch); err != nil {
		return errors.Persistence(err)
	}
	return nil
}

// DeleteSecondaryIndexKey removes one (secondary key, resource id) pair.
func (d *Directory) DeleteSecondaryIndexKey(ctx context.Context, index *proto.SecondaryIndex, secondaryKey, resourceID proto.Key) error {
	exists, err := d.DoesSecondaryIndexKeyExist(ctx, index, secondaryKey, resourceID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("secondary index %s key %s: %w", index.Name, secondaryKey, errors.ErrNotFound)
	}

	batch := d.kvStore.NewWriteBatch()
	defer batch.Close()
	batch.Delete(store.DirectoryCF, d.keys.encodeSecondaryFwdKey(index.ID, secondaryKey, resourceID))
	batch.Delete(store.DirectoryCF, d.keys.encodeSecondaryRevKey(index.ID, resourceID, secondaryKey))
	d.sink.IncDirectoryWriteCount()
	if err = d.kvStore.Write(ctx, batch); err != nil {
		return errors.Persistence(err)
	}
	return nil
}

// DeleteAllSecondaryIndexKeysOfResourceID drops every secondary row of the
// resource id across all indexes of the resource.
func (d *Directory) DeleteAllSecondaryIndexKeysOfResourceID(ctx context.Context, resource *proto.Resource, id proto.Key) error {
	batch := d.kvStore.NewWriteBatch()
	defer batch.Close()
	if err := d.appendSecondaryRowsOfResourceID(ctx, batch, resource, id); err != nil {
		return err
	}
	if batch.Len() == 0 {
		return nil
	}
	d.sink.IncDirectoryWriteCount()
	if err := d.kvStore.Write(ctx, batch); err != nil {
		return errors.Persistence(err)
	}
	return nil
}

func (d *Directory) appendSecondaryRowsOfResourceID(ctx context.Context, batch kvstore.WriteBatch, resource *proto.Resource, id proto.Key) error {
	for _, index := range resource.SecondaryIndexes {
		keys, err := d.SecondaryIndexKeysOfResourceID(ctx, index, id)
		if err != nil {
			return err
		}
		for _, sk := range keys {
			batch.Delete(store.DirectoryCF, d.keys.encodeSecondaryFwdKey(index.ID, sk, id))
			batch.Delete(store.DirectoryCF, d.keys.encodeSecondaryRevKey(index.ID, id, sk))
		}
	}
	return nil
}

func (d *Directory) primaryRowKeys(ctx context.Context, key proto.Key) ([][]byte, error) {
	var ret [][]byte
	lr := d.kvStore.List(ctx, store.DirectoryCF, d.keys.encodePrimaryKeyPrefix(key), nil)
	defer lr.Close()
	for {
		k, _, err := lr.ReadNextCopy()
		if err != nil {
			return nil, errors.Persistence(err)
		}
		if k == nil {
			return ret, nil
		}
		ret = append(ret, k)
	}
}

func (d *Directory) listTrailingFramed(ctx context.Context, prefix []byte) ([]proto.Key, error) {
	var ret []proto.Key
	lr := d.kvStore.List(ctx, store.DirectoryCF, prefix, nil)
	defer lr.Close()
	for {
		k, _, err := lr.ReadNextCopy()
		if err != nil {
			return nil, errors.Persistence(err)
		}
		if k == nil {
			return ret, nil
		}
		if v, ok := decodeTrailingFramed(k, prefix); ok {
			ret = append(ret, v)
		}
	}
}

// prefixEnd returns the smallest key greater than every key with the given
// prefix.
func prefixEnd(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
