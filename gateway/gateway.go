// Package gateway provides narrow CRUD per metadata entity against the hive
// metadata store. Each gateway owns exactly one table; validation beyond
// per-table uniqueness lives in the hive facade.
package gateway

import (
	"encoding/binary"

	"github.com/hivedb/hive/common/kvstore"
	"github.com/hivedb/hive/store"
)

var (
	dimensionKeyPrefix = []byte("d")
	resourceKeyPrefix  = []byte("r")
	indexKeyPrefix     = []byte("i")
	nodeKeyPrefix      = []byte("n")
	sequenceKeyPrefix  = []byte("seq")
	keyInfix           = []byte("/")

	semaphoreKey = []byte("hive_semaphore")
)

type Gateways struct {
	Dimensions       *DimensionGateway
	Resources        *ResourceGateway
	SecondaryIndexes *SecondaryIndexGateway
	Nodes            *NodeGateway
	Semaphore        *SemaphoreGateway
}

func New(s *store.Store) *Gateways {
	kv := s.KVStore()
	ids := newIDGenerator(kv)
	return &Gateways{
		Dimensions:       &DimensionGateway{kvStore: kv, ids: ids},
		Resources:        &ResourceGateway{kvStore: kv, ids: ids},
		SecondaryIndexes: &SecondaryIndexGateway{kvStore: kv, ids: ids},
		Nodes:            &NodeGateway{kvStore: kv, ids: ids},
		Semaphore:        &SemaphoreGateway{kvStore: kv},
	}
}

func encodeID(prefix []byte, id uint32) []byte {
	ret := make([]byte, 0, len(prefix)+len(keyInfix)+4)
	ret = append(ret, prefix...)
	ret = append(ret, keyInfix...)
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], id)
	return append(ret, buf[:]...)
}

func encodeScopedID(prefix []byte, parent, id uint32) []byte {
	ret := make([]byte, 0, len(prefix)+2*len(keyInfix)+8)
	ret = append(ret, prefix...)
	ret = append(ret, keyInfix...)
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], parent)
	ret = append(ret, buf[:]...)
	ret = append(ret, keyInfix...)
	binary.BigEndian.PutUint32(buf[:], id)
	return append(ret, buf[:]...)
}

func encodePrefix(prefix []byte) []byte {
	ret := make([]byte, 0, len(prefix)+len(keyInfix))
	ret = append(ret, prefix...)
	return append(ret, keyInfix...)
}

func encodeScopedPrefix(prefix []byte, parent uint32) []byte {
	ret := make([]byte, 0, len(prefix)+2*len(keyInfix)+4)
	ret = append(ret, prefix...)
	ret = append(ret, keyInfix...)
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], parent)
	ret = append(ret, buf[:]...)
	return append(ret, keyInfix...)
}

func listRows(lr kvstore.ListReader, f func(value []byte) error) error {
	defer lr.Close()
	for {
		k, v, err := lr.ReadNextCopy()
		if err != nil {
			return err
		}
		if k == nil {
			return nil
		}
		if err = f(v); err != nil {
			return err
		}
	}
}
