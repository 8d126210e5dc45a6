// Copyright 2026 The HiveDB Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

package kvstore

import (
	"context"
	"os"
	"sync"

	rdb "github.com/tecbot/gorocksdb"
)

const defaultCF = "default"

type rocksdb struct {
	db   *rdb.DB
	opt  *rdb.Options
	ro   *rdb.ReadOptions
	wo   *rdb.WriteOptions
	path string

	cfHandles map[CF]*rdb.ColumnFamilyHandle
	lock      sync.RWMutex
}

func newRocksdb(ctx context.Context, path string, option *Option) (Store, error) {
	if option == nil {
		option = &Option{CreateIfMissing: true}
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, err
	}

	opt := rdb.NewDefaultOptions()
	opt.SetCreateIfMissing(option.CreateIfMissing)
	opt.SetCreateIfMissingColumnFamilies(true)

	cfNames := []string{defaultCF}
	for _, cf := range option.ColumnFamily {
		if cf.String() != defaultCF {
			cfNames = append(cfNames, cf.String())
		}
	}
	cfOpts := make([]*rdb.Options, len(cfNames))
	for i := range cfOpts {
		cfOpts[i] = opt
	}

	db, handles, err := rdb.OpenDbColumnFamilies(opt, path, cfNames, cfOpts)
	if err != nil {
		return nil, err
	}

	s := &rocksdb{
		db:        db,
		opt:       opt,
		ro:        rdb.NewDefaultReadOptions(),
		wo:        rdb.NewDefaultWriteOptions(),
		path:      path,
		cfHandles: make(map[CF]*rdb.ColumnFamilyHandle, len(cfNames)),
	}
	s.wo.SetSync(option.Sync)
	for i, name := range cfNames {
		s.cfHandles[CF(name)] = handles[i]
	}
	return s, nil
}

func (s *rocksdb) CreateColumn(col CF) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if _, ok := s.cfHandles[col]; ok {
		return nil
	}
	h, err := s.db.CreateColumnFamily(s.opt, col.String())
	if err != nil {
		return err
	}
	s.cfHandles[col] = h
	return nil
}

func (s *rocksdb) CheckColumns(col CF) bool {
	s.lock.RLock()
	defer s.lock.RUnlock()
	_, ok := s.cfHandles[col]
	return ok
}

func (s *rocksdb) handle(col CF) (*rdb.ColumnFamilyHandle, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	h, ok := s.cfHandles[col]
	return h, ok
}

func (s *rocksdb) GetRaw(ctx context.Context, col CF, key []byte) ([]byte, error) {
	h, ok := s.handle(col)
	if !ok {
		return nil, ErrNotFound
	}
	slice, err := s.db.GetCF(s.ro, h, key)
	if err != nil {
		return nil, err
	}
	defer slice.Free()
	if !slice.Exists() {
		return nil, ErrNotFound
	}
	return append([]byte(nil), slice.Data()...), nil
}

func (s *rocksdb) SetRaw(ctx context.Context, col CF, key []byte, value []byte) error {
	h, ok := s.handle(col)
	if !ok {
		return ErrNotFound
	}
	return s.db.PutCF(s.wo, h, key, value)
}

func (s *rocksdb) Delete(ctx context.Context, col CF, key []byte) error {
	h, ok := s.handle(col)
	if !ok {
		return ErrNotFound
	}
	return s.db.DeleteCF(s.wo, h, key)
}

func (s *rocksdb) List(ctx context.Context, col CF, prefix []byte, marker []byte) ListReader {
	h, ok := s.handle(col)
	if !ok {
		return &memListReader{}
	}
	it := s.db.NewIteratorCF(s.ro, h)
	start := prefix
	if len(marker) > 0 {
		start = marker
	}
	if len(start) > 0 {
		it.Seek(start)
	} else {
		it.SeekToFirst()
	}
	return &rocksdbListReader{it: it, prefix: prefix}
}

func (s *rocksdb) NewWriteBatch() WriteBatch {
	return &rocksdbWriteBatch{batch: rdb.NewWriteBatch(), store: s}
}

func (s *rocksdb) Write(ctx context.Context, batch WriteBatch) error {
	wb := batch.(*rocksdbWriteBatch)
	if wb.err != nil {
		return wb.err
	}
	return s.db.Write(s.wo, wb.batch)
}

func (s *rocksdb) FlushCF(ctx context.Context, col CF) error {
	fo := rdb.NewDefaultFlushOptions()
	defer fo.Destroy()
	return s.db.Flush(fo)
}

func (s *rocksdb) Close() {
	s.lock.Lock()
	defer s.lock.Unlock()
	for _, h := range s.cfHandles {
		h.Destroy()
	}
	s.ro.Destroy()
	s.wo.Destroy()
	s.db.Close()
}

type rocksdbListReader struct {
	it     *rdb.Iterator
	prefix []byte
}

func (r *rocksdbListReader) ReadNextCopy() ([]byte, []byte, error) {
	if err := r.it.Err(); err != nil {
		return nil, nil, err
	}
	valid := r.it.Valid()
	if valid && len(r.prefix) > 0 {
		valid = r.it.ValidForPrefix(r.prefix)
	}
	if !valid {
		return nil, nil, nil
	}
	key := r.it.Key()
	value := r.it.Value()
	k := append([]byte(nil), key.Data()...)
	v := append([]byte(nil), value.Data()...)
	key.Free()
	value.Free()
	r.it.Next()
	return k, v, nil
}

func (r *rocksdbListReader) Close() {
	r.it.Close()
}

type rocksdbWriteBatch struct {
	batch *rdb.WriteBatch
	store *rocksdb
	size  int
	err   error
}

func (b *rocksdbWriteBatch) Put(col CF, key, value []byte) {
	h, ok := b.store.handle(col)
	if !ok {
		b.err = ErrNotFound
		return
	}
	b.batch.PutCF(h, key, value)
	b.size++
}

func (b *rocksdbWriteBatch) Delete(col CF, key []byte) {
	h, ok := b.store.handle(col)
	if !ok {
		b.err = ErrNotFound
		return
	}
	b.batch.DeleteCF(h, key)
	b.size++
}

func (b *rocksdbWriteBatch) DeleteRange(col CF, startKey, endKey []byte) {
	h, ok := b.store.handle(col)
	if !ok {
		b.err = ErrNotFound
		return
	}
	b.batch.DeleteRangeCF(h, startKey, endKey)
	b.size++
}

func (b *rocksdbWriteBatch) Len() int { return b.size }

func (b *rocksdbWriteBatch) Close() {
	b.batch.Destroy()
}
