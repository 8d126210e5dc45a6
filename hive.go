package hive

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cubefs/cubefs/blobstore/common/trace"

	"github.com/hivedb/hive/assigner"
	"github.com/hivedb/hive/connector"
	"github.com/hivedb/hive/directory"
	"github.com/hivedb/hive/errors"
	"github.com/hivedb/hive/gateway"
	"github.com/hivedb/hive/metrics"
	"github.com/hivedb/hive/proto"
	"github.com/hivedb/hive/store"
)

type Config struct {
	HiveURI               string `json:"hive_uri"`
	PerformanceMonitoring bool   `json:"performance_monitoring"`
	SyncIntervalMS        int    `json:"sync_interval_ms"`

	StoreConfig     store.Config     `json:"store_config"`
	ConnectorConfig connector.Config `json:"connector_config"`

	// Assigner overrides the default hash policy; Source overrides the
	// gRPC connection source.
	Assigner assigner.Assigner `json:"-"`
	Source   connector.Source  `json:"-"`
}

// Hive is the entry point for all directory interaction. One instance is
// shared across the threads of a process; processes sharing the same hive
// URI converge through the semaphore revision.
type Hive struct {
	cfg *Config
	uri string

	metaStore *store.Store
	gateways  *gateway.Gateways
	assigner  assigner.Assigner
	source    connector.Source
	sink      metrics.Sink

	graph    atomic.Value // *graph
	revision uint64
	status   uint32

	stores sync.Map // index uri -> *store.Store
	daemon *syncDaemon

	// mu serialises metadata mutations; readers work on graph snapshots.
	mu sync.Mutex
}

// Load opens the hive at cfg.HiveURI. It fails with ErrMetadataMissing when
// the metadata schema has never been installed there, and starts the
// background sync daemon otherwise.
func Load(ctx context.Context, cfg *Config) (*Hive, error) {
	span := trace.SpanFromContextSafe(ctx)
	span.Infof("loading hive from %s", cfg.HiveURI)

	metaStore, err := store.Open(ctx, cfg.HiveURI, &cfg.StoreConfig)
	if err != nil {
		return nil, err
	}

	h := &Hive{
		cfg:       cfg,
		uri:       cfg.HiveURI,
		metaStore: metaStore,
		gateways:  gateway.New(metaStore),
		assigner:  cfg.Assigner,
		source:    cfg.Source,
		sink:      metrics.NewNopSink(),
	}
	if h.assigner == nil {
		h.assigner = assigner.NewHashAssigner()
	}
	if h.source == nil {
		h.source = connector.NewGRPCSource(&cfg.ConnectorConfig)
	}
	if cfg.PerformanceMonitoring {
		h.sink = metrics.NewSink()
	}
	h.stores.Store(cfg.HiveURI, metaStore)

	h.daemon = newSyncDaemon(h, cfg.SyncIntervalMS)
	if err = h.daemon.ForceSynchronize(ctx); err != nil {
		metaStore.Close()
		return nil, err
	}
	h.daemon.loop()

	span.Infof("hive %s loaded at revision %d", h.uri, h.Revision())
	return h, nil
}

// Install seeds the hive metadata schema at the given URI: the column
// families plus the semaphore singleton. Installing an already installed
// hive leaves it untouched.
func Install(ctx context.Context, uri string, cfg *store.Config) error {
	s, err := store.Open(ctx, uri, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	gws := gateway.New(s)
	return gws.Semaphore.Create(ctx, &proto.HiveSemaphore{Revision: 0, Status: proto.StatusWritable})
}

func (h *Hive) Close() {
	h.daemon.Close()
	h.stores.Range(func(_, value interface{}) bool {
		value.(*store.Store).Close()
		return true
	})
}

func (h *Hive) URI() string {
	return h.uri
}

// Status reports the hive-wide lock state.
func (h *Hive) Status() proto.Status {
	return proto.Status(atomic.LoadUint32(&h.status))
}

func (h *Hive) Revision() proto.Revision {
	return atomic.LoadUint64(&h.revision)
}

// Sync reconciles the in-memory graph with the persisted metadata without
// waiting for the next daemon tick.
func (h *Hive) Sync(ctx context.Context) error {
	return h.daemon.ForceSynchronize(ctx)
}

func (h *Hive) graphSnapshot() *graph {
	g, _ := h.graph.Load().(*graph)
	return g
}

// PartitionDimension resolves a dimension by name from the current graph
// snapshot.
func (h *Hive) PartitionDimension(name string) (*proto.PartitionDimension, error) {
	g := h.graphSnapshot()
	if g == nil {
		return nil, errors.ErrMetadataMissing
	}
	d, ok := g.dimension(name)
	if !ok {
		return nil, fmt.Errorf("partition dimension %q: %w", name, errors.ErrNotFound)
	}
	return d, nil
}

func (h *Hive) PartitionDimensions() []*proto.PartitionDimension {
	g := h.graphSnapshot()
	if g == nil {
		return nil
	}
	ret := make([]*proto.PartitionDimension, 0, len(g.dimensions))
	for _, d := range g.dimensions {
		ret = append(ret, d)
	}
	return ret
}

func (h *Hive) ContainsPartitionDimension(name string) bool {
	g := h.graphSnapshot()
	if g == nil {
		return false
	}
	_, ok := g.dimension(name)
	return ok
}

// Node resolves a node by id across all dimensions of the snapshot.
func (h *Hive) Node(id proto.NodeID) (*proto.Node, bool) {
	g := h.graphSnapshot()
	if g == nil {
		return nil, false
	}
	return g.node(id)
}

// Directory returns the lock-enforcing directory facade of a dimension.
func (h *Hive) Directory(dimension string) (*directory.Facade, error) {
	g := h.graphSnapshot()
	if g == nil {
		return nil, errors.ErrMetadataMissing
	}
	f, ok := g.facades[dimension]
	if !ok {
		return nil, fmt.Errorf("partition dimension %q: %w", dimension, errors.ErrNotFound)
	}
	return f, nil
}

// AddPartitionDimension persists a new dimension along with any nodes,
// resources, and secondary indexes it carries. A missing index URI defaults
// to the hive URI.
func (h *Hive) AddPartitionDimension(ctx context.Context, dim *proto.PartitionDimension) (*proto.PartitionDimension, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.requireHiveWritable(); err != nil {
		return nil, fmt.Errorf("adding partition dimension %q: %w", dim.Name, err)
	}
	if dim.IndexURI == "" {
		dim.IndexURI = h.uri
	}

	if err := h.gateways.Dimensions.Create(ctx, dim); err != nil {
		return nil, fmt.Errorf("adding partition dimension %q: %w", dim.Name, err)
	}
	for _, n := range dim.Nodes {
		n.DimensionID = dim.ID
		if err := h.gateways.Nodes.Create(ctx, n); err != nil {
			return nil, fmt.Errorf("adding partition dimension %q: %w", dim.Name, err)
		}
	}
	for _, r := range dim.Resources {
		r.DimensionID = dim.ID
		if err := h.gateways.Resources.Create(ctx, r); err != nil {
			return nil, fmt.Errorf("adding partition dimension %q: %w", dim.Name, err)
		}
		for _, idx := range r.SecondaryIndexes {
			idx.ResourceID = r.ID
			if err := h.gateways.SecondaryIndexes.Create(ctx, idx); err != nil {
				return nil, fmt.Errorf("adding partition dimension %q: %w", dim.Name, err)
			}
		}
	}

	if err := h.incrementAndSync(ctx); err != nil {
		return nil, err
	}
	return h.PartitionDimension(dim.Name)
}

func (h *Hive) UpdatePartitionDimension(ctx context.Context, dim *proto.PartitionDimension) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.requireHiveWritable(); err != nil {
		return fmt.Errorf("updating partition dimension %q: %w", dim.Name, err)
	}
	if err := h.requireUniqueDimensionName(dim.Name, dim.ID); err != nil {
		return err
	}
	if err := h.gateways.Dimensions.Update(ctx, dim); err != nil {
		return fmt.Errorf("updating partition dimension %q: %w", dim.Name, err)
	}
	return h.incrementAndSync(ctx)
}

// DeletePartitionDimension removes the dimension and all its child rows.
func (h *Hive) DeletePartitionDimension(ctx context.Context, name string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.requireHiveWritable(); err != nil {
		return fmt.Errorf("deleting partition dimension %q: %w", name, err)
	}
	dim, err := h.PartitionDimension(name)
	if err != nil {
		return err
	}

	for _, r := range dim.Resources {
		for _, idx := range r.SecondaryIndexes {
			if err = h.gateways.SecondaryIndexes.Delete(ctx, r.ID, idx.ID); err != nil {
				return fmt.Errorf("deleting partition dimension %q: %w", name, err)
			}
		}
		if err = h.gateways.Resources.Delete(ctx, dim.ID, r.ID); err != nil {
			return fmt.Errorf("deleting partition dimension %q: %w", name, err)
		}
	}
	for _, n := range dim.Nodes {
		if err = h.gateways.Nodes.Delete(ctx, dim.ID, n.ID); err != nil {
			return fmt.Errorf("deleting partition dimension %q: %w", name, err)
		}
	}
	if err = h.gateways.Dimensions.Delete(ctx, dim.ID); err != nil {
		return fmt.Errorf("deleting partition dimension %q: %w", name, err)
	}
	return h.incrementAndSync(ctx)
}

// AddNode persists a new node of a dimension.
func (h *Hive) AddNode(ctx context.Context, dimension string, node *proto.Node) (*proto.Node, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.requireHiveWritable(); err != nil {
		return nil, fmt.Errorf("adding node %q: %w", node.Name, err)
	}
	dim, err := h.PartitionDimension(dimension)
	if err != nil {
		return nil, err
	}
	node.DimensionID = dim.ID
	if node.Status == 0 {
		node.Status = proto.StatusWritable
	}

	if err = h.gateways.Nodes.Create(ctx, node); err != nil {
		return nil, fmt.Errorf("adding node %q: %w", node.Name, err)
	}
	if err = h.incrementAndSync(ctx); err != nil {
		return nil, err
	}

	dim, err = h.PartitionDimension(dimension)
	if err != nil {
		return nil, err
	}
	n, _ := dim.NodeByName(node.Name)
	return n, nil
}

func (h *Hive) UpdateNode(ctx context.Context, node *proto.Node) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.requireHiveWritable(); err != nil {
		return fmt.Errorf("updating node %q: %w", node.Name, err)
	}
	if g := h.graphSnapshot(); g != nil {
		for _, d := range g.dimensions {
			if d.ID != node.DimensionID {
				continue
			}
			if n, ok := d.NodeByName(node.Name); ok && n.ID != node.ID {
				return fmt.Errorf("node %q: %w", node.Name, errors.ErrDuplicateName)
			}
		}
	}
	if err := h.gateways.Nodes.Update(ctx, node); err != nil {
		return fmt.Errorf("updating node %q: %w", node.Name, err)
	}
	return h.incrementAndSync(ctx)
}

func (h *Hive) DeleteNode(ctx context.Context, dimension, name string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.requireHiveWritable(); err != nil {
		return fmt.Errorf("deleting node %q: %w", name, err)
	}
	dim, err := h.PartitionDimension(dimension)
	if err != nil {
		return err
	}
	node, ok := dim.NodeByName(name)
	if !ok {
		return fmt.Errorf("node %q in dimension %q: %w", name, dimension, errors.ErrNotFound)
	}
	if err = h.gateways.Nodes.Delete(ctx, dim.ID, node.ID); err != nil {
		return fmt.Errorf("deleting node %q: %w", name, err)
	}
	return h.incrementAndSync(ctx)
}

// AddResource persists a new resource of a dimension along with any
// secondary indexes it carries.
func (h *Hive) AddResource(ctx context.Context, dimension string, res *proto.Resource) (*proto.Resource, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.requireHiveWritable(); err != nil {
		return nil, fmt.Errorf("adding resource %q: %w", res.Name, err)
	}
	dim, err := h.PartitionDimension(dimension)
	if err != nil {
		return nil, err
	}
	res.DimensionID = dim.ID

	if err = h.gateways.Resources.Create(ctx, res); err != nil {
		return nil, fmt.Errorf("adding resource %q: %w", res.Name, err)
	}
	for _, idx := range res.SecondaryIndexes {
		idx.ResourceID = res.ID
		if err = h.gateways.SecondaryIndexes.Create(ctx, idx); err != nil {
			return nil, fmt.Errorf("adding resource %q: %w", res.Name, err)
		}
	}
	if err = h.incrementAndSync(ctx); err != nil {
		return nil, err
	}

	dim, err = h.PartitionDimension(dimension)
	if err != nil {
		return nil, err
	}
	r, _ := dim.Resource(res.Name)
	return r, nil
}

func (h *Hive) UpdateResource(ctx context.Context, res *proto.Resource) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.requireHiveWritable(); err != nil {
		return fmt.Errorf("updating resource %q: %w", res.Name, err)
	}
	if g := h.graphSnapshot(); g != nil {
		for _, d := range g.dimensions {
			if d.ID != res.DimensionID {
				continue
			}
			if r, ok := d.Resource(res.Name); ok && r.ID != res.ID {
				return fmt.Errorf("resource %q: %w", res.Name, errors.ErrDuplicateName)
			}
		}
	}
	if err := h.gateways.Resources.Update(ctx, res); err != nil {
		return fmt.Errorf("updating resource %q: %w", res.Name, err)
	}
	return h.incrementAndSync(ctx)
}

func (h *Hive) DeleteResource(ctx context.Context, dimension, name string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.requireHiveWritable(); err != nil {
		return fmt.Errorf("deleting resource %q: %w", name, err)
	}
	dim, err := h.PartitionDimension(dimension)
	if err != nil {
		return err
	}
	res, ok := dim.Resource(name)
	if !ok {
		return fmt.Errorf("resource %q in dimension %q: %w", name, dimension, errors.ErrNotFound)
	}

	for _, idx := range res.SecondaryIndexes {
		if err = h.gateways.SecondaryIndexes.Delete(ctx, res.ID, idx.ID); err != nil {
			return fmt.Errorf("deleting resource %q: %w", name, err)
		}
	}
	if err = h.gateways.Resources.Delete(ctx, dim.ID, res.ID); err != nil {
		return fmt.Errorf("deleting resource %q: %w", name, err)
	}
	return h.incrementAndSync(ctx)
}

// AddSecondaryIndex persists a new secondary index on a resource.
func (h *Hive) AddSecondaryIndex(ctx context.Context, dimension, resource string, idx *proto.SecondaryIndex) (*proto.SecondaryIndex, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.requireHiveWritable(); err != nil {
		return nil, fmt.Errorf("adding secondary index %q: %w", idx.Name, err)
	}
	dim, err := h.PartitionDimension(dimension)
	if err != nil {
		return nil, err
	}
	res, ok := dim.Resource(resource)
	if !ok {
		return nil, fmt.Errorf("resource %q in dimension %q: %w", resource, dimension, errors.ErrNotFound)
	}
	idx.ResourceID = res.ID

	if err = h.gateways.SecondaryIndexes.Create(ctx, idx); err != nil {
		return nil, fmt.Errorf("adding secondary index %q: %w", idx.Name, err)
	}
	if err = h.incrementAndSync(ctx); err != nil {
		return nil, err
	}

	dim, err = h.PartitionDimension(dimension)
	if err != nil {
		return nil, err
	}
	res, _ = dim.Resource(resource)
	ret, _ := res.SecondaryIndex(idx.Name)
	return ret, nil
}

func (h *Hive) UpdateSecondaryIndex(ctx context.Context, idx *proto.SecondaryIndex) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.requireHiveWritable(); err != nil {
		return fmt.Errorf("updating secondary index %q: %w", idx.Name, err)
	}
	if err := h.gateways.SecondaryIndexes.Update(ctx, idx); err != nil {
		return fmt.Errorf("updating secondary index %q: %w", idx.Name, err)
	}
	return h.incrementAndSync(ctx)
}

func (h *Hive) DeleteSecondaryIndex(ctx context.Context, dimension, resource, name string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.requireHiveWritable(); err != nil {
		return fmt.Errorf("deleting secondary index %q: %w", name, err)
	}
	dim, err := h.PartitionDimension(dimension)
	if err != nil {
		return err
	}
	res, ok := dim.Resource(resource)
	if !ok {
		return fmt.Errorf("resource %q in dimension %q: %w", resource, dimension, errors.ErrNotFound)
	}
	idx, ok := res.SecondaryIndex(name)
	if !ok {
		return fmt.Errorf("secondary index %q on resource %q: %w", name, resource, errors.ErrNotFound)
	}
	if err = h.gateways.SecondaryIndexes.Delete(ctx, res.ID, idx.ID); err != nil {
		return fmt.Errorf("deleting secondary index %q: %w", name, err)
	}
	return h.incrementAndSync(ctx)
}

// UpdateHiveStatus persists the hive-wide lock flag. The revision is left
// alone: status flips are visible to peers on their next semaphore load.
func (h *Hive) UpdateHiveStatus(ctx context.Context, status proto.Status) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	sem, err := h.gateways.Semaphore.Load(ctx)
	if err != nil {
		return err
	}
	sem.Status = status
	if err = h.gateways.Semaphore.Update(ctx, sem); err != nil {
		return err
	}
	atomic.StoreUint32(&h.status, uint32(status))
	return nil
}

// UpdateNodeStatus flips a node's lock flag through the regular node update
// path.
func (h *Hive) UpdateNodeStatus(ctx context.Context, dimension, name string, status proto.Status) error {
	dim, err := h.PartitionDimension(dimension)
	if err != nil {
		return err
	}
	node, ok := dim.NodeByName(name)
	if !ok {
		return fmt.Errorf("node %q in dimension %q: %w", name, dimension, errors.ErrNotFound)
	}
	updated := node.Clone()
	updated.Status = status
	return h.UpdateNode(ctx, updated)
}

// incrementAndSync bumps the semaphore revision and reconciles the local
// graph. Called with h.mu held, once per committed metadata mutation.
func (h *Hive) incrementAndSync(ctx context.Context) error {
	if _, err := h.gateways.Semaphore.IncrementAndPersist(ctx); err != nil {
		return err
	}
	return h.daemon.ForceSynchronize(ctx)
}

func (h *Hive) requireHiveWritable() error {
	if !h.Status().IsWritable() {
		return errors.NewReadOnly(errors.ScopeHive, "hive %s refuses writes", h.uri)
	}
	return nil
}

func (h *Hive) requireUniqueDimensionName(name string, self proto.DimensionID) error {
	g := h.graphSnapshot()
	if g == nil {
		return nil
	}
	if d, ok := g.dimension(name); ok && d.ID != self {
		return fmt.Errorf("partition dimension %q: %w", name, errors.ErrDuplicateName)
	}
	return nil
}

func (h *Hive) storeFor(ctx context.Context, uri string) (*store.Store, error) {
	if value, ok := h.stores.Load(uri); ok {
		return value.(*store.Store), nil
	}
	s, err := store.Open(ctx, uri, &h.cfg.StoreConfig)
	if err != nil {
		return nil, err
	}
	actual, _ := h.stores.LoadOrStore(uri, s)
	return actual.(*store.Store), nil
}
