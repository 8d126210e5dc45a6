package proto

const (
	// NewObjectID marks an entity that has not been persisted yet. The
	// gateways assign the real id on create.
	NewObjectID = 0
)

type (
	DimensionID = uint32
	ResourceID  = uint32
	IndexID     = uint32
	NodeID      = uint32
	Revision    = uint64
)
