package gateway

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/hivedb/hive/common/kvstore"
	"github.com/hivedb/hive/errors"
	"github.com/hivedb/hive/store"
)

// idGenerator hands out entity ids, persisting the high-water mark so ids
// stay unique across restarts. Ids start at 1; 0 is the new-object
// sentinel.
type idGenerator struct {
	kvStore kvstore.Store

	current map[string]uint32
	lock    sync.Mutex
}

func newIDGenerator(kv kvstore.Store) *idGenerator {
	return &idGenerator{
		kvStore: kv,
		current: make(map[string]uint32),
	}
}

func (g *idGenerator) Alloc(ctx context.Context, name string) (uint32, error) {
	g.lock.Lock()
	defer g.lock.Unlock()

	cur, ok := g.current[name]
	if !ok {
		data, err := g.kvStore.GetRaw(ctx, store.MetaCF, g.encodeKey(name))
		switch err {
		case nil:
			cur = binary.BigEndian.Uint32(data)
		case kvstore.ErrNotFound:
			cur = 0
		default:
			return 0, errors.Persistence(err)
		}
	}

	next := cur + 1
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], next)
	if err := g.kvStore.SetRaw(ctx, store.MetaCF, g.encodeKey(name), buf[:]); err != nil {
		return 0, errors.Persistence(err)
	}
	g.current[name] = next
	return next, nil
}

func (g *idGenerator) encodeKey(name string) []byte {
	ret := make([]byte, 0, len(sequenceKeyPrefix)+len(keyInfix)+len(name))
	ret = append(ret, sequenceKeyPrefix...)
	ret = append(ret, keyInfix...)
	return append(ret, name...)
}
