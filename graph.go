package hive

import (
	"context"

	"github.com/hivedb/hive/directory"
	"github.com/hivedb/hive/proto"
)

// graph is one immutable snapshot of the metadata model plus the directory
// facades built over it. sync() replaces the whole graph atomically, so
// readers see either the old or the new complete graph, never a partial
// one.
type graph struct {
	dimensions map[string]*proto.PartitionDimension
	facades    map[string]*directory.Facade
	nodes      nodeSet
}

func newGraph(dimensions []*proto.PartitionDimension) *graph {
	g := &graph{
		dimensions: make(map[string]*proto.PartitionDimension, len(dimensions)),
		facades:    make(map[string]*directory.Facade, len(dimensions)),
	}
	for _, d := range dimensions {
		g.dimensions[d.Name] = d
		for _, n := range d.Nodes {
			g.nodes.put(n)
		}
	}
	return g
}

func (g *graph) dimension(name string) (*proto.PartitionDimension, bool) {
	d, ok := g.dimensions[name]
	return d, ok
}

func (g *graph) node(id proto.NodeID) (*proto.Node, bool) {
	return g.nodes.get(id)
}

func (g *graph) equal(other *graph) bool {
	if len(g.dimensions) != len(other.dimensions) {
		return false
	}
	for name, d := range g.dimensions {
		od, ok := other.dimensions[name]
		if !ok || !d.Equal(od) {
			return false
		}
	}
	return true
}

// loadGraph reconstructs the metadata model from the gateways.
func (h *Hive) loadGraph(ctx context.Context) (*graph, error) {
	dimensions, err := h.gateways.Dimensions.LoadAll(ctx)
	if err != nil {
		return nil, err
	}

	for _, d := range dimensions {
		resources, err := h.gateways.Resources.LoadAll(ctx, d.ID)
		if err != nil {
			return nil, err
		}
		for _, r := range resources {
			indexes, err := h.gateways.SecondaryIndexes.LoadAll(ctx, r.ID)
			if err != nil {
				return nil, err
			}
			r.SecondaryIndexes = indexes
		}
		d.Resources = resources

		nodes, err := h.gateways.Nodes.LoadAll(ctx, d.ID)
		if err != nil {
			return nil, err
		}
		d.Nodes = nodes
	}

	g := newGraph(dimensions)
	for _, d := range dimensions {
		st, err := h.storeFor(ctx, d.IndexURI)
		if err != nil {
			return nil, err
		}
		dir := directory.New(d, st, h.sink)
		g.facades[d.Name] = directory.NewFacade(dir, h, h.assigner)
	}
	return g, nil
}
