package proto

import (
	"encoding/binary"
	"encoding/hex"
)

// Status is the two-state lock of the hive, a node, or a partition key.
type Status uint8

const (
	StatusWritable Status = iota + 1
	StatusReadOnly
)

func (s Status) IsWritable() bool {
	return s == StatusWritable
}

func (s Status) String() string {
	switch s {
	case StatusWritable:
		return "writable"
	case StatusReadOnly:
		return "readOnly"
	default:
		return "unknown"
	}
}

// StatusOf converts the persisted read-only flag back to a Status.
func StatusOf(readOnly bool) Status {
	if readOnly {
		return StatusReadOnly
	}
	return StatusWritable
}

// AccessType declares the caller's intent when acquiring a connection.
type AccessType uint8

const (
	AccessRead AccessType = iota + 1
	AccessReadWrite
)

func (a AccessType) String() string {
	switch a {
	case AccessRead:
		return "read"
	case AccessReadWrite:
		return "readWrite"
	default:
		return "unknown"
	}
}

// KeyType is the declared column type of a partition key or secondary index
// column.
type KeyType uint8

const (
	KeyTypeUnknown KeyType = iota
	KeyTypeInteger
	KeyTypeString
	KeyTypeFloat
	KeyTypeDate
)

func (t KeyType) String() string {
	switch t {
	case KeyTypeInteger:
		return "integer"
	case KeyTypeString:
		return "string"
	case KeyTypeFloat:
		return "float"
	case KeyTypeDate:
		return "date"
	default:
		return "unknown"
	}
}

// Key is an encoded partition key, resource id, or secondary index key
// value. Keys compare byte-wise.
type Key []byte

func Uint64Key(v uint64) Key {
	k := make(Key, 8)
	binary.BigEndian.PutUint64(k, v)
	return k
}

func StringKey(s string) Key {
	return Key(s)
}

func (k Key) Uint64() uint64 {
	if len(k) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(k)
}

func (k Key) Equal(other Key) bool {
	if len(k) != len(other) {
		return false
	}
	for i := range k {
		if k[i] != other[i] {
			return false
		}
	}
	return true
}

func (k Key) String() string {
	return hex.EncodeToString(k)
}
