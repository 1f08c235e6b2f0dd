package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// NodeRef identifies a node by its label and key properties. Key properties
// are the identity of the node: upserting the same ref twice yields one node.
type NodeRef struct {
	Label string
	Key   map[string]any
}

// Edge is one materialized relationship read back from the store.
type Edge struct {
	From  NodeRef
	To    NodeRef
	Type  string
	Props map[string]any
}

// NodeUpsert merges a node by its key properties and overwrites the given
// set properties on match or create.
type NodeUpsert struct {
	Ref NodeRef
	Set map[string]any
}

// EdgeUpsert merges an edge by endpoints and type. Repeating the identical
// upsert never creates a second edge.
type EdgeUpsert struct {
	From  NodeRef
	To    NodeRef
	Type  string
	Props map[string]any
}

// EdgeAppend always creates a new edge between the endpoints. Used for
// similarity links, where one edge per triggering attribute pair is the
// intended shape.
type EdgeAppend struct {
	From  NodeRef
	To    NodeRef
	Type  string
	Props map[string]any
}

// MutationBatch collects the graph mutations for one logical unit of work
// (typically one incident record). A batch is applied atomically: either
// every mutation is visible afterwards or none is.
type MutationBatch struct {
	NodeUpserts []NodeUpsert
	EdgeUpserts []EdgeUpsert
	EdgeAppends []EdgeAppend
}

// UpsertNode queues a node merge into the batch.
func (b *MutationBatch) UpsertNode(ref NodeRef, set map[string]any) {
	b.NodeUpserts = append(b.NodeUpserts, NodeUpsert{Ref: ref, Set: set})
}

// UpsertEdge queues an idempotent edge merge into the batch.
func (b *MutationBatch) UpsertEdge(from, to NodeRef, edgeType string, props map[string]any) {
	b.EdgeUpserts = append(b.EdgeUpserts, EdgeUpsert{From: from, To: to, Type: edgeType, Props: props})
}

// AppendEdge queues an append-only edge creation into the batch.
func (b *MutationBatch) AppendEdge(from, to NodeRef, edgeType string, props map[string]any) {
	b.EdgeAppends = append(b.EdgeAppends, EdgeAppend{From: from, To: to, Type: edgeType, Props: props})
}

// Empty reports whether the batch holds no mutations.
func (b *MutationBatch) Empty() bool {
	return len(b.NodeUpserts) == 0 && len(b.EdgeUpserts) == 0 && len(b.EdgeAppends) == 0
}

// GraphStorage defines the interface for persisting and reading the
// incident graph. Implementations must make Apply atomic per batch and
// node/edge upserts idempotent under repeated identical calls.
type GraphStorage interface {
	Apply(ctx context.Context, batch *MutationBatch) error

	GetNode(ctx context.Context, ref NodeRef) (map[string]any, bool, error)
	OutgoingEdges(ctx context.Context, from NodeRef, edgeType string) ([]Edge, error)
	CountNodes(ctx context.Context, label string) (int, error)

	// Reset removes all nodes and relationships. Only wired to the
	// pipeline's explicit --reset flag.
	Reset(ctx context.Context) error

	Close(ctx context.Context) error
}

// KeyString renders a node ref's identity as a deterministic string,
// usable as a map key. Key properties are ordered by name.
func KeyString(ref NodeRef) string {
	names := make([]string, 0, len(ref.Key))
	for name := range ref.Key {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(ref.Label)
	for _, name := range names {
		fmt.Fprintf(&b, "|%s=%v", name, ref.Key[name])
	}
	return b.String()
}
