// Package lockable evaluates the effective writability of hive operations
// by composing the hive status, node statuses, and per-key semaphore
// statuses. The engine is advisory: it derives everything from persisted
// rows and never takes locks of its own.
package lockable

import (
	"fmt"

	"github.com/hivedb/hive/errors"
	"github.com/hivedb/hive/proto"
)

// Item is one lockable participant of an operation.
type Item struct {
	Scope  errors.Scope
	Label  string
	Status proto.Status
}

func HiveItem(status proto.Status) Item {
	return Item{Scope: errors.ScopeHive, Label: "hive", Status: status}
}

func NodeItem(n *proto.Node) Item {
	return Item{Scope: errors.ScopeNode, Label: fmt.Sprintf("node %s(%d)", n.Name, n.ID), Status: n.Status}
}

func KeyItem(label string, status proto.Status) Item {
	return Item{Scope: errors.ScopeKey, Label: label, Status: status}
}

// NodeResolver looks a node up by id, usually against the current metadata
// graph.
type NodeResolver func(proto.NodeID) (*proto.Node, bool)

// SemaphoreItems expands a key's semaphores into lockable items: one per
// semaphore plus one per referenced node. A semaphore whose node is gone
// from the graph resolves to a read-only node item so the operation fails
// closed.
func SemaphoreItems(resolve NodeResolver, semaphores []proto.KeySemaphore, keyLabel string) []Item {
	items := make([]Item, 0, 2*len(semaphores))
	for _, s := range semaphores {
		if n, ok := resolve(s.NodeID); ok {
			items = append(items, NodeItem(n))
		} else {
			items = append(items, Item{
				Scope:  errors.ScopeNode,
				Label:  fmt.Sprintf("node %d (unknown)", s.NodeID),
				Status: proto.StatusReadOnly,
			})
		}
		items = append(items, KeyItem(keyLabel, s.Status))
	}
	return items
}

// NodeItems expands a key's semaphores into node items only, leaving the
// key's own status out. Used when flipping a key's read-only flag, which
// must work on a key that is itself read-only.
func NodeItems(resolve NodeResolver, semaphores []proto.KeySemaphore) []Item {
	items := make([]Item, 0, len(semaphores))
	for _, s := range semaphores {
		if n, ok := resolve(s.NodeID); ok {
			items = append(items, NodeItem(n))
		} else {
			items = append(items, Item{
				Scope:  errors.ScopeNode,
				Label:  fmt.Sprintf("node %d (unknown)", s.NodeID),
				Status: proto.StatusReadOnly,
			})
		}
	}
	return items
}

// RequireWritable fails with a ReadOnlyError on the first non-writable
// item. An empty item list passes.
func RequireWritable(items ...Item) error {
	for _, item := range items {
		if !item.Status.IsWritable() {
			return errors.NewReadOnly(item.Scope, "%s refuses writes", item.Label)
		}
	}
	return nil
}
