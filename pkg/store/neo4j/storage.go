package neo4j

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	neo4jdrv "github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/separk-1/incident-regulation-mapping/pkg/store"
)

// GraphDBStorage implements store.GraphStorage on a Neo4j database.
// Batches are applied inside a single managed write transaction, so a
// failed record leaves no partial nodes or edges behind.
type GraphDBStorage struct {
	client *Client
}

// NewGraphDBStorage wraps a connected client and installs the uniqueness
// constraints backing upsert-by-key.
func NewGraphDBStorage(ctx context.Context, client *Client) *GraphDBStorage {
	session := client.Driver.NewSession(ctx, neo4jdrv.SessionConfig{
		AccessMode:   neo4jdrv.AccessModeWrite,
		DatabaseName: client.Database,
	})
	defer session.Close(ctx)

	client.initSchema(ctx, session)

	return &GraphDBStorage{client: client}
}

// validIdent guards every label and relationship type interpolated into
// query text. Identifiers come from the static category dispatch table,
// never from record input.
var validIdent = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Apply runs the batch inside one write transaction.
func (s *GraphDBStorage) Apply(ctx context.Context, batch *store.MutationBatch) error {
	if batch == nil || batch.Empty() {
		return nil
	}

	session := s.writeSession(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4jdrv.ManagedTransaction) (any, error) {
		for _, nu := range batch.NodeUpserts {
			if err := runNodeUpsert(ctx, tx, nu); err != nil {
				return nil, err
			}
		}
		for _, eu := range batch.EdgeUpserts {
			if err := runEdgeWrite(ctx, tx, eu.From, eu.To, eu.Type, eu.Props, "MERGE"); err != nil {
				return nil, err
			}
		}
		for _, ea := range batch.EdgeAppends {
			if err := runEdgeWrite(ctx, tx, ea.From, ea.To, ea.Type, ea.Props, "CREATE"); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("failed to apply mutation batch: %w", err)
	}
	return nil
}

// GetNode returns the properties of the node matching ref, if present.
func (s *GraphDBStorage) GetNode(ctx context.Context, ref store.NodeRef) (map[string]any, bool, error) {
	pattern, params, err := nodePattern("n", ref, "key")
	if err != nil {
		return nil, false, err
	}

	session := s.readSession(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4jdrv.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, fmt.Sprintf("MATCH %s RETURN properties(n) AS props LIMIT 1", pattern), params)
		if err != nil {
			return nil, err
		}
		rec, err := res.Single(ctx)
		if err != nil {
			// No row is not an error for lookups.
			return nil, nil
		}
		props, _ := rec.Get("props")
		return props, nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to get node: %w", err)
	}
	if result == nil {
		return nil, false, nil
	}
	props, ok := result.(map[string]any)
	if !ok {
		return nil, false, fmt.Errorf("unexpected node properties type %T", result)
	}
	return props, true, nil
}

// OutgoingEdges returns all edges of the given type leaving the node.
func (s *GraphDBStorage) OutgoingEdges(ctx context.Context, from store.NodeRef, edgeType string) ([]store.Edge, error) {
	if !validIdent.MatchString(edgeType) {
		return nil, fmt.Errorf("invalid relationship type %q", edgeType)
	}
	pattern, params, err := nodePattern("a", from, "key")
	if err != nil {
		return nil, err
	}

	session := s.readSession(ctx)
	defer session.Close(ctx)

	query := fmt.Sprintf(
		"MATCH %s-[r:%s]->(b) RETURN properties(r) AS props, labels(b) AS labels, properties(b) AS target",
		pattern, edgeType,
	)

	result, err := session.ExecuteRead(ctx, func(tx neo4jdrv.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}

		var edges []store.Edge
		for res.Next(ctx) {
			rec := res.Record()
			props, _ := rec.Get("props")
			labels, _ := rec.Get("labels")
			target, _ := rec.Get("target")

			edge := store.Edge{
				From: from,
				Type: edgeType,
			}
			if m, ok := props.(map[string]any); ok {
				edge.Props = m
			}
			if m, ok := target.(map[string]any); ok {
				edge.To.Key = m
			}
			if ls, ok := labels.([]any); ok && len(ls) > 0 {
				if l, ok := ls[0].(string); ok {
					edge.To.Label = l
				}
			}
			edges = append(edges, edge)
		}
		return edges, res.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read outgoing edges: %w", err)
	}
	edges, _ := result.([]store.Edge)
	return edges, nil
}

// CountNodes returns the number of nodes with the given label.
func (s *GraphDBStorage) CountNodes(ctx context.Context, label string) (int, error) {
	if !validIdent.MatchString(label) {
		return 0, fmt.Errorf("invalid label %q", label)
	}

	session := s.readSession(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4jdrv.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, fmt.Sprintf("MATCH (n:%s) RETURN count(n) AS c", label), nil)
		if err != nil {
			return nil, err
		}
		rec, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		c, _ := rec.Get("c")
		return c, nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count %s nodes: %w", label, err)
	}
	count, _ := result.(int64)
	return int(count), nil
}

// Reset removes every node and relationship in the database.
func (s *GraphDBStorage) Reset(ctx context.Context) error {
	session := s.writeSession(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4jdrv.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, "MATCH (n) DETACH DELETE n", nil)
		if err != nil {
			return nil, err
		}
		_, err = res.Consume(ctx)
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("failed to reset graph: %w", err)
	}
	return nil
}

// Close releases the underlying driver.
func (s *GraphDBStorage) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

func (s *GraphDBStorage) writeSession(ctx context.Context) neo4jdrv.SessionWithContext {
	return s.client.Driver.NewSession(ctx, neo4jdrv.SessionConfig{
		AccessMode:   neo4jdrv.AccessModeWrite,
		DatabaseName: s.client.Database,
	})
}

func (s *GraphDBStorage) readSession(ctx context.Context) neo4jdrv.SessionWithContext {
	return s.client.Driver.NewSession(ctx, neo4jdrv.SessionConfig{
		AccessMode:   neo4jdrv.AccessModeRead,
		DatabaseName: s.client.Database,
	})
}

func runNodeUpsert(ctx context.Context, tx neo4jdrv.ManagedTransaction, nu store.NodeUpsert) error {
	pattern, params, err := nodePattern("n", nu.Ref, "key")
	if err != nil {
		return err
	}
	params["set"] = emptyIfNil(nu.Set)

	res, err := tx.Run(ctx, fmt.Sprintf("MERGE %s SET n += $set", pattern), params)
	if err != nil {
		return err
	}
	_, err = res.Consume(ctx)
	return err
}

func runEdgeWrite(
	ctx context.Context,
	tx neo4jdrv.ManagedTransaction,
	from, to store.NodeRef,
	edgeType string,
	props map[string]any,
	verb string,
) error {
	if !validIdent.MatchString(edgeType) {
		return fmt.Errorf("invalid relationship type %q", edgeType)
	}

	fromPattern, params, err := nodePattern("a", from, "fromKey")
	if err != nil {
		return err
	}
	toPattern, toParams, err := nodePattern("b", to, "toKey")
	if err != nil {
		return err
	}
	for k, v := range toParams {
		params[k] = v
	}
	params["props"] = emptyIfNil(props)

	query := fmt.Sprintf(
		"MERGE %s MERGE %s %s (a)-[r:%s]->(b) SET r += $props",
		fromPattern, toPattern, verb, edgeType,
	)

	res, err := tx.Run(ctx, query, params)
	if err != nil {
		return err
	}
	_, err = res.Consume(ctx)
	return err
}

// nodePattern renders "(v:Label {prop: $param.prop, ...})" with the key
// properties bound under the given parameter name. Key property names pass
// through the same identifier check as labels.
func nodePattern(v string, ref store.NodeRef, paramName string) (string, map[string]any, error) {
	if !validIdent.MatchString(ref.Label) {
		return "", nil, fmt.Errorf("invalid label %q", ref.Label)
	}
	if len(ref.Key) == 0 {
		return "", nil, fmt.Errorf("node ref %s has no key properties", ref.Label)
	}

	names := make([]string, 0, len(ref.Key))
	for name := range ref.Key {
		if !validIdent.MatchString(name) {
			return "", nil, fmt.Errorf("invalid key property name %q", name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: $%s.%s", name, paramName, name))
	}

	pattern := fmt.Sprintf("(%s:%s {%s})", v, ref.Label, strings.Join(parts, ", "))
	return pattern, map[string]any{paramName: ref.Key}, nil
}

func emptyIfNil(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
