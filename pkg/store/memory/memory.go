package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/separk-1/incident-regulation-mapping/pkg/store"
)

type node struct {
	ref   store.NodeRef
	props map[string]any
}

// GraphDBStorage is an in-memory store.GraphStorage. It backs the test
// suite and local pipeline runs that do not need a Neo4j server. All
// operations are safe for concurrent use.
type GraphDBStorage struct {
	mu          sync.RWMutex
	nodes       map[string]*node
	edgeUpserts map[string]store.Edge
	edgeAppends []store.Edge
}

// NewGraphDBStorage creates an empty in-memory graph store.
func NewGraphDBStorage() *GraphDBStorage {
	return &GraphDBStorage{
		nodes:       make(map[string]*node),
		edgeUpserts: make(map[string]store.Edge),
	}
}

// Apply validates the whole batch before mutating, so a rejected batch
// leaves the graph untouched.
func (s *GraphDBStorage) Apply(_ context.Context, batch *store.MutationBatch) error {
	if batch == nil || batch.Empty() {
		return nil
	}

	if err := validateBatch(batch); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, nu := range batch.NodeUpserts {
		s.upsertNode(nu.Ref, nu.Set)
	}
	for _, eu := range batch.EdgeUpserts {
		s.upsertNode(eu.From, nil)
		s.upsertNode(eu.To, nil)
		key := edgeKey(eu.From, eu.To, eu.Type)
		s.edgeUpserts[key] = store.Edge{From: eu.From, To: eu.To, Type: eu.Type, Props: cloneProps(eu.Props)}
	}
	for _, ea := range batch.EdgeAppends {
		s.upsertNode(ea.From, nil)
		s.upsertNode(ea.To, nil)
		s.edgeAppends = append(s.edgeAppends, store.Edge{From: ea.From, To: ea.To, Type: ea.Type, Props: cloneProps(ea.Props)})
	}

	return nil
}

// GetNode returns the merged properties of the node matching ref.
func (s *GraphDBStorage) GetNode(_ context.Context, ref store.NodeRef) (map[string]any, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.nodes[store.KeyString(ref)]
	if !ok {
		return nil, false, nil
	}
	return cloneProps(n.props), true, nil
}

// OutgoingEdges returns all edges of the given type leaving the node,
// upserted and appended alike. Appended edges keep insertion order.
func (s *GraphDBStorage) OutgoingEdges(_ context.Context, from store.NodeRef, edgeType string) ([]store.Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fromKey := store.KeyString(from)

	var edges []store.Edge
	for _, e := range s.edgeUpserts {
		if e.Type == edgeType && store.KeyString(e.From) == fromKey {
			edges = append(edges, s.resolveTarget(e))
		}
	}
	for _, e := range s.edgeAppends {
		if e.Type == edgeType && store.KeyString(e.From) == fromKey {
			edges = append(edges, s.resolveTarget(e))
		}
	}
	return edges, nil
}

// CountNodes returns the number of nodes with the given label.
func (s *GraphDBStorage) CountNodes(_ context.Context, label string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, n := range s.nodes {
		if n.ref.Label == label {
			count++
		}
	}
	return count, nil
}

// EdgeCount returns the total number of edges in the store. Test helper.
func (s *GraphDBStorage) EdgeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.edgeUpserts) + len(s.edgeAppends)
}

// Reset removes all nodes and relationships.
func (s *GraphDBStorage) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nodes = make(map[string]*node)
	s.edgeUpserts = make(map[string]store.Edge)
	s.edgeAppends = nil
	return nil
}

// Close is a no-op for the in-memory store.
func (s *GraphDBStorage) Close(context.Context) error {
	return nil
}

func (s *GraphDBStorage) upsertNode(ref store.NodeRef, set map[string]any) {
	key := store.KeyString(ref)
	n, ok := s.nodes[key]
	if !ok {
		props := make(map[string]any, len(ref.Key)+len(set))
		for k, v := range ref.Key {
			props[k] = v
		}
		n = &node{ref: ref, props: props}
		s.nodes[key] = n
	}
	for k, v := range set {
		n.props[k] = v
	}
}

// resolveTarget fills the edge's target key with the node's full property
// map, mirroring what the Neo4j implementation returns.
func (s *GraphDBStorage) resolveTarget(e store.Edge) store.Edge {
	out := store.Edge{From: e.From, Type: e.Type, Props: cloneProps(e.Props)}
	out.To = store.NodeRef{Label: e.To.Label, Key: e.To.Key}
	if n, ok := s.nodes[store.KeyString(e.To)]; ok {
		out.To.Key = cloneProps(n.props)
	}
	return out
}

func validateBatch(batch *store.MutationBatch) error {
	for _, nu := range batch.NodeUpserts {
		if err := validateRef(nu.Ref); err != nil {
			return err
		}
	}
	for _, eu := range batch.EdgeUpserts {
		if eu.Type == "" {
			return fmt.Errorf("edge upsert has empty type")
		}
		if err := validateRef(eu.From); err != nil {
			return err
		}
		if err := validateRef(eu.To); err != nil {
			return err
		}
	}
	for _, ea := range batch.EdgeAppends {
		if ea.Type == "" {
			return fmt.Errorf("edge append has empty type")
		}
		if err := validateRef(ea.From); err != nil {
			return err
		}
		if err := validateRef(ea.To); err != nil {
			return err
		}
	}
	return nil
}

func validateRef(ref store.NodeRef) error {
	if ref.Label == "" {
		return fmt.Errorf("node ref has empty label")
	}
	if len(ref.Key) == 0 {
		return fmt.Errorf("node ref %s has no key properties", ref.Label)
	}
	return nil
}

func edgeKey(from, to store.NodeRef, edgeType string) string {
	return store.KeyString(from) + "->" + edgeType + "->" + store.KeyString(to)
}

func cloneProps(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
