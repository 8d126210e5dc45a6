package gateway

import (
	"context"
	"sync"

	"github.com/hivedb/hive/common/kvstore"
	"github.com/hivedb/hive/errors"
	"github.com/hivedb/hive/proto"
	"github.com/hivedb/hive/store"
)

// SemaphoreGateway owns the hive_semaphore singleton row. It is the single
// writer path for the revision: every metadata mutation goes through
// IncrementAndPersist, status flips go through Update.
type SemaphoreGateway struct {
	kvStore kvstore.Store
	lock    sync.Mutex
}

// Load reads the semaphore row. A missing row means the hive schema has
// never been installed at this URI.
func (g *SemaphoreGateway) Load(ctx context.Context) (*proto.HiveSemaphore, error) {
	data, err := g.kvStore.GetRaw(ctx, store.MetaCF, semaphoreKey)
	switch err {
	case nil:
	case kvstore.ErrNotFound:
		return nil, errors.ErrMetadataMissing
	default:
		return nil, errors.Persistence(err)
	}

	sem := &proto.HiveSemaphore{}
	if err = sem.Unmarshal(data); err != nil {
		return nil, errors.Persistence(err)
	}
	return sem, nil
}

// Create seeds the singleton row, leaving an existing row untouched.
func (g *SemaphoreGateway) Create(ctx context.Context, sem *proto.HiveSemaphore) error {
	g.lock.Lock()
	defer g.lock.Unlock()
	if _, err := g.kvStore.GetRaw(ctx, store.MetaCF, semaphoreKey); err == nil {
		return nil
	} else if err != kvstore.ErrNotFound {
		return errors.Persistence(err)
	}
	return g.persist(ctx, sem)
}

func (g *SemaphoreGateway) Update(ctx context.Context, sem *proto.HiveSemaphore) error {
	g.lock.Lock()
	defer g.lock.Unlock()
	return g.persist(ctx, sem)
}

// IncrementAndPersist bumps the revision by one, keeping the persisted
// status, and returns the new row.
func (g *SemaphoreGateway) IncrementAndPersist(ctx context.Context) (*proto.HiveSemaphore, error) {
	g.lock.Lock()
	defer g.lock.Unlock()

	sem, err := g.Load(ctx)
	if err != nil {
		return nil, err
	}
	sem.Revision++
	if err = g.persist(ctx, sem); err != nil {
		return nil, err
	}
	return sem, nil
}

func (g *SemaphoreGateway) persist(ctx context.Context, sem *proto.HiveSemaphore) error {
	data, err := sem.Marshal()
	if err != nil {
		return errors.Persistence(err)
	}
	if err = g.kvStore.SetRaw(ctx, store.MetaCF, semaphoreKey, data); err != nil {
		return errors.Persistence(err)
	}
	return nil
}
