package directory

import (
	"encoding/binary"
	"encoding/json"

	"github.com/hivedb/hive/proto"
)

// The directory tables live in one column family, scoped by dimension id so
// dimensions sharing an index store never collide:
//
//	p/<dim>/<key>/<node>        primary_index row
//	rf/<dim>/<res>/<id>         resource_index forward row (id -> partition key)
//	rp/<dim>/<res>/<key>/<id>   resource_index reverse row (partition key -> id)
//	sf/<dim>/<idx>/<sec>/<id>   secondary_index forward row (secondary key -> id)
//	sr/<dim>/<idx>/<id>/<sec>   secondary_index reverse row (id -> secondary key)
//
// Variable-length key values are length-framed so that composite prefixes
// stay unambiguous.
var (
	primaryKeyPrefix     = []byte("p")
	resourceFwdKeyPrefix = []byte("rf")
	resourceRevKeyPrefix = []byte("rp")
	secondaryFwdPrefix   = []byte("sf")
	secondaryRevPrefix   = []byte("sr")
	keyInfix             = []byte("/")
)

type primaryRow struct {
	ReadOnly    bool  `json:"read_only"`
	LastUpdated int64 `json:"last_updated"`
}

type resourceRow struct {
	PartitionKey []byte `json:"partition_key"`
	LastUpdated  int64  `json:"last_updated"`
}

type secondaryRow struct {
	LastUpdated int64 `json:"last_updated"`
}

func marshalRow(v interface{}) ([]byte, error) { return json.Marshal(v) }

func unmarshalRow(data []byte, v interface{}) error { return json.Unmarshal(data, v) }

type keysGenerator struct {
	dimensionID proto.DimensionID
}

func (k *keysGenerator) base(prefix []byte, n int) []byte {
	ret := make([]byte, 0, len(prefix)+2*len(keyInfix)+4+n)
	ret = append(ret, prefix...)
	ret = append(ret, keyInfix...)
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], k.dimensionID)
	ret = append(ret, buf[:]...)
	return append(ret, keyInfix...)
}

func appendUint32(b []byte, v uint32) []byte {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	return append(b, buf[:]...)
}

// appendFramed writes <uvarint len><bytes>.
func appendFramed(b []byte, v []byte) []byte {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], uint64(len(v)))
	b = append(b, buf[:n]...)
	return append(b, v...)
}

// readFramed decodes one framed component and returns it with the remaining
// bytes.
func readFramed(b []byte) (v []byte, rest []byte, ok bool) {
	l, n := binary.Uvarint(b)
	if n <= 0 || uint64(len(b)-n) < l {
		return nil, nil, false
	}
	return b[n : n+int(l)], b[n+int(l):], true
}

func (k *keysGenerator) encodePrimaryKey(key proto.Key, nodeID proto.NodeID) []byte {
	ret := k.base(primaryKeyPrefix, len(key)+6)
	ret = appendFramed(ret, key)
	return appendUint32(ret, nodeID)
}

func (k *keysGenerator) encodePrimaryKeyPrefix(key proto.Key) []byte {
	ret := k.base(primaryKeyPrefix, len(key)+2)
	return appendFramed(ret, key)
}

// decodePrimaryNodeID reads the node id stored in the last four bytes of a
// primary row key.
func decodePrimaryNodeID(rowKey []byte) proto.NodeID {
	return binary.BigEndian.Uint32(rowKey[len(rowKey)-4:])
}

func (k *keysGenerator) encodeResourceFwdKey(resourceID proto.ResourceID, id proto.Key) []byte {
	ret := k.base(resourceFwdKeyPrefix, len(id)+6)
	ret = appendUint32(ret, resourceID)
	ret = append(ret, keyInfix...)
	return appendFramed(ret, id)
}

func (k *keysGenerator) encodeResourceRevKey(resourceID proto.ResourceID, primaryKey, id proto.Key) []byte {
	ret := k.base(resourceRevKeyPrefix, len(primaryKey)+len(id)+10)
	ret = appendUint32(ret, resourceID)
	ret = append(ret, keyInfix...)
	ret = appendFramed(ret, primaryKey)
	return appendFramed(ret, id)
}

func (k *keysGenerator) encodeResourceRevPrefix(resourceID proto.ResourceID, primaryKey proto.Key) []byte {
	ret := k.base(resourceRevKeyPrefix, len(primaryKey)+6)
	ret = appendUint32(ret, resourceID)
	ret = append(ret, keyInfix...)
	return appendFramed(ret, primaryKey)
}

func (k *keysGenerator) encodeSecondaryFwdKey(indexID proto.IndexID, secondaryKey, id proto.Key) []byte {
	ret := k.base(secondaryFwdPrefix, len(secondaryKey)+len(id)+10)
	ret = appendUint32(ret, indexID)
	ret = append(ret, keyInfix...)
	ret = appendFramed(ret, secondaryKey)
	return appendFramed(ret, id)
}

func (k *keysGenerator) encodeSecondaryFwdPrefix(indexID proto.IndexID, secondaryKey proto.Key) []byte {
	ret := k.base(secondaryFwdPrefix, len(secondaryKey)+6)
	ret = appendUint32(ret, indexID)
	ret = append(ret, keyInfix...)
	return appendFramed(ret, secondaryKey)
}

func (k *keysGenerator) encodeSecondaryRevKey(indexID proto.IndexID, id, secondaryKey proto.Key) []byte {
	ret := k.base(secondaryRevPrefix, len(secondaryKey)+len(id)+10)
	ret = appendUint32(ret, indexID)
	ret = append(ret, keyInfix...)
	ret = appendFramed(ret, id)
	return appendFramed(ret, secondaryKey)
}

func (k *keysGenerator) encodeSecondaryRevPrefix(indexID proto.IndexID, id proto.Key) []byte {
	ret := k.base(secondaryRevPrefix, len(id)+6)
	ret = appendUint32(ret, indexID)
	ret = append(ret, keyInfix...)
	return appendFramed(ret, id)
}

// decodeTrailingFramed reads the single framed component that follows the
// given prefix in rowKey.
func decodeTrailingFramed(rowKey, prefix []byte) (proto.Key, bool) {
	v, _, ok := readFramed(rowKey[len(prefix):])
	if !ok {
		return nil, false
	}
	return append(proto.Key(nil), v...), true
}
