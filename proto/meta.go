package proto

import (
	"encoding/json"
)

// PartitionDimension is a named partitioning axis. It owns its resources and
// nodes; children reference it only by id, back-lookups go through the hive's
// name-indexed maps.
type PartitionDimension struct {
	ID       DimensionID `json:"id"`
	Name     string      `json:"name"`
	KeyType  KeyType     `json:"key_type"`
	IndexURI string      `json:"index_uri"`

	Resources []*Resource `json:"-"`
	Nodes     []*Node     `json:"-"`
}

func (d *PartitionDimension) Marshal() ([]byte, error) { return json.Marshal(d) }

func (d *PartitionDimension) Unmarshal(data []byte) error { return json.Unmarshal(data, d) }

func (d *PartitionDimension) Resource(name string) (*Resource, bool) {
	for _, r := range d.Resources {
		if r.Name == name {
			return r, true
		}
	}
	return nil, false
}

func (d *PartitionDimension) Node(id NodeID) (*Node, bool) {
	for _, n := range d.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return nil, false
}

func (d *PartitionDimension) NodeByName(name string) (*Node, bool) {
	for _, n := range d.Nodes {
		if n.Name == name {
			return n, true
		}
	}
	return nil, false
}

func (d *PartitionDimension) Equal(other *PartitionDimension) bool {
	if d == nil || other == nil {
		return d == other
	}
	if d.ID != other.ID || d.Name != other.Name || d.KeyType != other.KeyType || d.IndexURI != other.IndexURI {
		return false
	}
	if len(d.Resources) != len(other.Resources) || len(d.Nodes) != len(other.Nodes) {
		return false
	}
	for i := range d.Resources {
		if !d.Resources[i].Equal(other.Resources[i]) {
			return false
		}
	}
	for i := range d.Nodes {
		if !d.Nodes[i].Equal(other.Nodes[i]) {
			return false
		}
	}
	return true
}

func (d *PartitionDimension) Clone() *PartitionDimension {
	if d == nil {
		return nil
	}
	c := *d
	c.Resources = make([]*Resource, 0, len(d.Resources))
	for _, r := range d.Resources {
		c.Resources = append(c.Resources, r.Clone())
	}
	c.Nodes = make([]*Node, 0, len(d.Nodes))
	for _, n := range d.Nodes {
		c.Nodes = append(c.Nodes, n.Clone())
	}
	return &c
}

// Resource is a named entity class partitioned along a dimension. If
// Partitioning is true the resource id is the partition key itself.
type Resource struct {
	ID           ResourceID  `json:"id"`
	DimensionID  DimensionID `json:"dimension_id"`
	Name         string      `json:"name"`
	KeyType      KeyType     `json:"key_type"`
	Partitioning bool        `json:"is_partitioning"`

	SecondaryIndexes []*SecondaryIndex `json:"-"`
}

func (r *Resource) Marshal() ([]byte, error) { return json.Marshal(r) }

func (r *Resource) Unmarshal(data []byte) error { return json.Unmarshal(data, r) }

func (r *Resource) SecondaryIndex(name string) (*SecondaryIndex, bool) {
	for _, idx := range r.SecondaryIndexes {
		if idx.Name == name {
			return idx, true
		}
	}
	return nil, false
}

func (r *Resource) Equal(other *Resource) bool {
	if r == nil || other == nil {
		return r == other
	}
	if r.ID != other.ID || r.DimensionID != other.DimensionID || r.Name != other.Name ||
		r.KeyType != other.KeyType || r.Partitioning != other.Partitioning {
		return false
	}
	if len(r.SecondaryIndexes) != len(other.SecondaryIndexes) {
		return false
	}
	for i := range r.SecondaryIndexes {
		if !r.SecondaryIndexes[i].Equal(other.SecondaryIndexes[i]) {
			return false
		}
	}
	return true
}

func (r *Resource) Clone() *Resource {
	if r == nil {
		return nil
	}
	c := *r
	c.SecondaryIndexes = make([]*SecondaryIndex, 0, len(r.SecondaryIndexes))
	for _, idx := range r.SecondaryIndexes {
		c.SecondaryIndexes = append(c.SecondaryIndexes, idx.Clone())
	}
	return &c
}

// SecondaryIndex is a named attribute index on a resource.
type SecondaryIndex struct {
	ID         IndexID    `json:"id"`
	ResourceID ResourceID `json:"resource_id"`
	Name       string     `json:"name"`
	ColumnType KeyType    `json:"column_type"`
}

func (i *SecondaryIndex) Marshal() ([]byte, error) { return json.Marshal(i) }

func (i *SecondaryIndex) Unmarshal(data []byte) error { return json.Unmarshal(data, i) }

func (i *SecondaryIndex) Equal(other *SecondaryIndex) bool {
	if i == nil || other == nil {
		return i == other
	}
	return *i == *other
}

func (i *SecondaryIndex) Clone() *SecondaryIndex {
	if i == nil {
		return nil
	}
	c := *i
	return &c
}

// Node is a physical shard of a dimension.
type Node struct {
	ID          NodeID      `json:"id"`
	DimensionID DimensionID `json:"dimension_id"`
	Name        string      `json:"name"`
	URI         string      `json:"uri"`
	Status      Status      `json:"read_only"`
}

func (n *Node) Marshal() ([]byte, error) { return json.Marshal(n) }

func (n *Node) Unmarshal(data []byte) error { return json.Unmarshal(data, n) }

func (n *Node) Equal(other *Node) bool {
	if n == nil || other == nil {
		return n == other
	}
	return *n == *other
}

func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := *n
	return &c
}

// KeySemaphore is the status record binding one partition key to one node.
// A key that exists on several nodes has one semaphore per node.
type KeySemaphore struct {
	NodeID NodeID `json:"node_id"`
	Status Status `json:"read_only"`
}

// HiveSemaphore is the global coordination record: a monotonically
// non-decreasing revision plus the hive-wide read-only flag. It is a single
// row in the hive metadata store.
type HiveSemaphore struct {
	Revision Revision `json:"revision"`
	Status   Status   `json:"read_only"`
}

func (s *HiveSemaphore) Marshal() ([]byte, error) { return json.Marshal(s) }

func (s *HiveSemaphore) Unmarshal(data []byte) error { return json.Unmarshal(data, s) }
