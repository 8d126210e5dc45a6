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
	"errors"
)

var (
	ErrNotFound     = errors.New("key not found")
	ErrTypeNotFound = errors.New("kv type not found")
)

type (
	CF     string
	KVType string

	// Store is the narrow key-value surface the hive needs: column
	// families play the role of tables.
	Store interface {
		CreateColumn(col CF) error
		CheckColumns(col CF) bool
		GetRaw(ctx context.Context, col CF, key []byte) ([]byte, error)
		SetRaw(ctx context.Context, col CF, key []byte, value []byte) error
		Delete(ctx context.Context, col CF, key []byte) error
		List(ctx context.Context, col CF, prefix []byte, marker []byte) ListReader
		NewWriteBatch() WriteBatch
		Write(ctx context.Context, batch WriteBatch) error
		FlushCF(ctx context.Context, col CF) error
		Close()
	}

	ListReader interface {
		// ReadNextCopy returns copies of the next key and value, or
		// (nil, nil, nil) when the range is exhausted.
		ReadNextCopy() (key []byte, value []byte, err error)
		Close()
	}

	WriteBatch interface {
		Put(col CF, key, value []byte)
		Delete(col CF, key []byte)
		DeleteRange(col CF, startKey, endKey []byte)
		Len() int
		Close()
	}

	Option struct {
		ColumnFamily    []CF `json:"column_family"`
		CreateIfMissing bool `json:"create_if_missing"`
		Sync            bool `json:"sync"`
	}
)

const (
	RocksdbKVType = KVType("rocksdb")
	MemoryKVType  = KVType("memory")
)

func NewKVStore(ctx context.Context, path string, kvType KVType, option *Option) (Store, error) {
	switch kvType {
	case RocksdbKVType:
		return newRocksdb(ctx, path, option)
	case MemoryKVType:
		return NewMemStore(option), nil
	default:
		return nil, ErrTypeNotFound
	}
}

func (cf CF) String() string {
	return string(cf)
}
