package store

import (
	"context"
	"net/url"
	"sync"

	"github.com/hivedb/hive/common/kvstore"
	"github.com/hivedb/hive/errors"
)

const (
	// MetaCF holds the hive metadata tables: partition dimensions,
	// resources, secondary indexes, nodes, the hive semaphore, and the
	// id sequences.
	MetaCF = kvstore.CF("hive_metadata")
	// DirectoryCF holds the per-dimension key-routing tables.
	DirectoryCF = kvstore.CF("directory")
)

type Config struct {
	KVOption kvstore.Option `json:"kv_option"`
}

// Store wraps the kvstore backing one hive database URI. The scheme picks
// the engine: rocksdb://<path> opens an on-disk store, every other scheme
// (mem://, hive://) resolves to a process-shared in-memory store so that
// several Hive instances in one process can cooperate on the same URI.
type Store struct {
	kvStore kvstore.Store
	uri     string
	shared  bool
}

var (
	sharedStores = make(map[string]kvstore.Store)
	sharedLock   sync.Mutex
)

func Open(ctx context.Context, uri string, cfg *Config) (*Store, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	opt := cfg.KVOption
	opt.CreateIfMissing = true
	opt.ColumnFamily = append([]kvstore.CF(nil), opt.ColumnFamily...)
	for _, cf := range []kvstore.CF{MetaCF, DirectoryCF} {
		if !containsCF(opt.ColumnFamily, cf) {
			opt.ColumnFamily = append(opt.ColumnFamily, cf)
		}
	}

	u, err := url.Parse(uri)
	if err != nil {
		return nil, errors.Persistence(err)
	}

	if u.Scheme == "rocksdb" {
		path := u.Host + u.Path
		if u.Opaque != "" {
			path = u.Opaque
		}
		kv, err := kvstore.NewKVStore(ctx, path, kvstore.RocksdbKVType, &opt)
		if err != nil {
			return nil, errors.Persistence(err)
		}
		return &Store{kvStore: kv, uri: uri}, nil
	}

	sharedLock.Lock()
	defer sharedLock.Unlock()
	kv, ok := sharedStores[uri]
	if !ok {
		kv, err = kvstore.NewKVStore(ctx, "", kvstore.MemoryKVType, &opt)
		if err != nil {
			return nil, errors.Persistence(err)
		}
		sharedStores[uri] = kv
	}
	return &Store{kvStore: kv, uri: uri, shared: true}, nil
}

func (s *Store) KVStore() kvstore.Store {
	return s.kvStore
}

func (s *Store) URI() string {
	return s.uri
}

// Close releases the underlying engine. Shared in-memory stores stay alive
// for the rest of the process so other instances on the same URI keep their
// view.
func (s *Store) Close() {
	if s.shared {
		return
	}
	s.kvStore.Close()
}

func containsCF(cfs []kvstore.CF, cf kvstore.CF) bool {
	for _, c := range cfs {
		if c == cf {
			return true
		}
	}
	return false
}
