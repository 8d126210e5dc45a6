package hive

import (
	"sort"

	"github.com/hivedb/hive/proto"
)

// nodeSet keeps nodes sorted by id for binary-search lookup across all
// dimensions of a graph snapshot.
type nodeSet struct {
	nodes []*proto.Node
}

func (s *nodeSet) put(n *proto.Node) {
	idx, ok := search(s.nodes, n.ID)
	if ok {
		s.nodes[idx] = n
		return
	}
	s.nodes = append(s.nodes, nil)
	copy(s.nodes[idx+1:], s.nodes[idx:len(s.nodes)-1])
	s.nodes[idx] = n
}

func (s *nodeSet) get(id proto.NodeID) (*proto.Node, bool) {
	i, ok := search(s.nodes, id)
	if !ok {
		return nil, false
	}
	return s.nodes[i], true
}

func (s *nodeSet) delete(id proto.NodeID) {
	i, ok := search(s.nodes, id)
	if ok {
		copy(s.nodes[i:], s.nodes[i+1:])
		s.nodes = s.nodes[:len(s.nodes)-1]
	}
}

func (s *nodeSet) len() int {
	return len(s.nodes)
}

func search(nodes []*proto.Node, id proto.NodeID) (int, bool) {
	idx := sort.Search(len(nodes), func(i int) bool {
		return nodes[i].ID >= id
	})
	if idx == len(nodes) || nodes[idx].ID != id {
		return idx, false
	}
	return idx, true
}
