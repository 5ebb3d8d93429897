package norm

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/rlch/norm/query"
)

// nodeModel constrains a type parameter to a node model addressed by
// pointer, so collection operations can allocate instances.
type nodeModel[M any] interface {
	*M
	INode
}

func typeOf[M any]() reflect.Type {
	return reflect.PointerTo(reflect.TypeFor[M]())
}

// FindOne returns the first node matching the filter, or nil when
// nothing matches. A nil filter matches any node with the model's
// labels. Options may order the candidates or project the result;
// skip and limit are ignored since exactly one node is returned.
func FindOne[M any, P nodeModel[M]](ctx context.Context, c *Client, filter query.Filter, opts *query.Options) (*M, error) {
	s, err := c.registry.schemaFor(typeOf[M]())
	if err != nil {
		return nil, err
	}

	if opts != nil {
		opts = &query.Options{Sort: opts.Sort, Project: opts.Project}
	}

	b := query.NewBuilder("n")

	where, err := b.Where(filter)
	if err != nil {
		return nil, err
	}

	cypher := fmt.Sprintf(
		"MATCH %s%s WITH DISTINCT n%s RETURN %s LIMIT 1",
		s.nodePattern("n"), whereClause(where),
		leadingSpace(opts.Clause(b, "n")), returnExpr("n", opts),
	)

	if err := runHooks(ctx, s.pre(OpFindOne), s.name); err != nil {
		return nil, err
	}

	records, err := c.Cypher(ctx, cypher, b.Params())
	if err != nil {
		return nil, err
	}

	out, err := inflateMany[M, P](s, records)
	if err != nil {
		return nil, err
	}

	if len(out) == 0 {
		return nil, nil
	}

	if err := runHooks(ctx, s.post(OpFindOne), out[0]); err != nil {
		return nil, err
	}

	return out[0], nil
}

// FindMany returns every node matching the filter, shaped by the
// options. With a projection the returned instances carry only the
// projected properties and are not hydrated.
func FindMany[M any, P nodeModel[M]](ctx context.Context, c *Client, filter query.Filter, opts *query.Options) ([]*M, error) {
	s, err := c.registry.schemaFor(typeOf[M]())
	if err != nil {
		return nil, err
	}

	b := query.NewBuilder("n")

	where, err := b.Where(filter)
	if err != nil {
		return nil, err
	}

	cypher := fmt.Sprintf(
		"MATCH %s%s WITH DISTINCT n%s RETURN %s",
		s.nodePattern("n"), whereClause(where),
		leadingSpace(opts.Clause(b, "n")), returnExpr("n", opts),
	)

	if err := runHooks(ctx, s.pre(OpFindMany), s.name); err != nil {
		return nil, err
	}

	records, err := c.Cypher(ctx, cypher, b.Params())
	if err != nil {
		return nil, err
	}

	out, err := inflateMany[M, P](s, records)
	if err != nil {
		return nil, err
	}

	if err := runHooks(ctx, s.post(OpFindMany), out); err != nil {
		return nil, err
	}

	return out, nil
}

// UpdateOne applies the update map to the first node matching the
// filter. It returns the node's pre-update state, or its post-update
// state when returnNew is set, and nil when nothing matched.
func UpdateOne[M any, P nodeModel[M]](
	ctx context.Context,
	c *Client,
	update map[string]any,
	filter query.Filter,
	returnNew bool,
) (*M, error) {
	s, err := c.registry.schemaFor(typeOf[M]())
	if err != nil {
		return nil, err
	}

	if err := checkUpdateProps(s, update); err != nil {
		return nil, err
	}

	if err := runHooks(ctx, s.pre(OpUpdateOne), update); err != nil {
		return nil, err
	}

	b := query.NewBuilder("n")

	where, err := b.Where(filter)
	if err != nil {
		return nil, err
	}

	cypher := fmt.Sprintf(
		"MATCH %s%s WITH n LIMIT 1 WITH n, n {.*} AS before%s RETURN n, before",
		s.nodePattern("n"), whereClause(where), updateSetClause(b, "n", update),
	)

	records, err := c.Cypher(ctx, cypher, b.Params())
	if err != nil {
		return nil, err
	}

	if len(records) == 0 {
		return nil, nil
	}

	node, err := firstNode(records)
	if err != nil {
		return nil, err
	}

	instance := P(new(M))

	if returnNew {
		if err := s.hydrateNode(instance, node); err != nil {
			return nil, err
		}
	} else {
		if len(records[0].Values) < 2 {
			return nil, ErrNoResults
		}

		before, ok := records[0].Values[1].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("norm: expected a property map result, got %T", records[0].Values[1])
		}

		node.Props = before
		if err := s.hydrateNode(instance, node); err != nil {
			return nil, err
		}
	}

	if err := runHooks(ctx, s.post(OpUpdateOne), instance); err != nil {
		return nil, err
	}

	return instance, nil
}

// UpdateMany applies the update map to every node matching the filter
// and returns the affected instances, pre-update by default or
// post-update when returnNew is set.
func UpdateMany[M any, P nodeModel[M]](
	ctx context.Context,
	c *Client,
	update map[string]any,
	filter query.Filter,
	returnNew bool,
) ([]*M, error) {
	s, err := c.registry.schemaFor(typeOf[M]())
	if err != nil {
		return nil, err
	}

	if err := checkUpdateProps(s, update); err != nil {
		return nil, err
	}

	if err := runHooks(ctx, s.pre(OpUpdateMany), update); err != nil {
		return nil, err
	}

	b := query.NewBuilder("n")

	where, err := b.Where(filter)
	if err != nil {
		return nil, err
	}

	cypher := fmt.Sprintf(
		"MATCH %s%s WITH n, n {.*} AS before%s RETURN n, before",
		s.nodePattern("n"), whereClause(where), updateSetClause(b, "n", update),
	)

	records, err := c.Cypher(ctx, cypher, b.Params())
	if err != nil {
		return nil, err
	}

	out := make([]*M, 0, len(records))

	for _, record := range records {
		if len(record.Values) < 2 {
			return nil, ErrNoResults
		}

		node, ok := record.Values[0].(dbtype.Node)
		if !ok {
			return nil, fmt.Errorf("norm: expected a node result, got %T", record.Values[0])
		}

		if !returnNew {
			before, ok := record.Values[1].(map[string]any)
			if !ok {
				return nil, fmt.Errorf("norm: expected a property map result, got %T", record.Values[1])
			}

			node.Props = before
		}

		instance := P(new(M))
		if err := s.hydrateNode(instance, node); err != nil {
			return nil, err
		}

		out = append(out, instance)
	}

	if err := runHooks(ctx, s.post(OpUpdateMany), out); err != nil {
		return nil, err
	}

	return out, nil
}

// DeleteOne deletes the first node matching the filter and returns the
// number of deleted nodes, 0 or 1.
func DeleteOne[M any, P nodeModel[M]](ctx context.Context, c *Client, filter query.Filter) (int, error) {
	return deleteNodes[M, P](ctx, c, filter, true)
}

// DeleteMany deletes every node matching the filter and returns the
// deleted count.
func DeleteMany[M any, P nodeModel[M]](ctx context.Context, c *Client, filter query.Filter) (int, error) {
	return deleteNodes[M, P](ctx, c, filter, false)
}

func deleteNodes[M any, P nodeModel[M]](ctx context.Context, c *Client, filter query.Filter, single bool) (int, error) {
	s, err := c.registry.schemaFor(typeOf[M]())
	if err != nil {
		return 0, err
	}

	op := OpDeleteMany
	if single {
		op = OpDeleteOne
	}

	if err := runHooks(ctx, s.pre(op), s.name); err != nil {
		return 0, err
	}

	b := query.NewBuilder("n")

	where, err := b.Where(filter)
	if err != nil {
		return 0, err
	}

	limit := ""
	if single {
		limit = " WITH n LIMIT 1"
	}

	cypher := fmt.Sprintf(
		"MATCH %s%s%s DETACH DELETE n RETURN count(n)",
		s.nodePattern("n"), whereClause(where), limit,
	)

	records, err := c.Cypher(ctx, cypher, b.Params())
	if err != nil {
		return 0, err
	}

	count := recordCount(records)

	if err := runHooks(ctx, s.post(op), count); err != nil {
		return 0, err
	}

	return count, nil
}

// Count returns the number of nodes matching the filter.
func Count[M any, P nodeModel[M]](ctx context.Context, c *Client, filter query.Filter) (int, error) {
	s, err := c.registry.schemaFor(typeOf[M]())
	if err != nil {
		return 0, err
	}

	if err := runHooks(ctx, s.pre(OpCount), s.name); err != nil {
		return 0, err
	}

	b := query.NewBuilder("n")

	where, err := b.Where(filter)
	if err != nil {
		return 0, err
	}

	cypher := fmt.Sprintf(
		"MATCH %s%s RETURN count(DISTINCT n)", s.nodePattern("n"), whereClause(where),
	)

	records, err := c.Cypher(ctx, cypher, b.Params())
	if err != nil {
		return 0, err
	}

	count := recordCount(records)

	if err := runHooks(ctx, s.post(OpCount), count); err != nil {
		return 0, err
	}

	return count, nil
}

// inflateMany turns find results into model instances. Node values
// hydrate fully; map values from projections inflate partially without
// marking the instance alive.
func inflateMany[M any, P nodeModel[M]](s *schema, records []*neo4j.Record) ([]*M, error) {
	out := make([]*M, 0, len(records))

	for _, record := range records {
		if len(record.Values) == 0 {
			continue
		}

		instance := P(new(M))

		switch v := record.Values[0].(type) {
		case dbtype.Node:
			if err := s.hydrateNode(instance, v); err != nil {
				return nil, err
			}

		case map[string]any:
			if err := s.inflateInto(instance, v); err != nil {
				return nil, err
			}

		default:
			return nil, fmt.Errorf("norm: expected a node or projection result, got %T", v)
		}

		out = append(out, instance)
	}

	return out, nil
}

// checkUpdateProps rejects update maps touching reserved or unknown
// properties.
func checkUpdateProps(s *schema, update map[string]any) error {
	for name := range update {
		if _, reserved := reservedPropertyNames[name]; reserved {
			return fmt.Errorf("%w: %q", ErrReservedProperty, name)
		}

		if _, ok := s.propertyByName(name); !ok {
			return &ValidationError{Reason: fmt.Sprintf("model %s has no property %q", s.name, name)}
		}
	}

	return nil
}

// updateSetClause renders " SET n.a = $p, …" binding values through
// the builder so names never collide with filter parameters.
func updateSetClause(b *query.Builder, ref string, update map[string]any) string {
	if len(update) == 0 {
		return ""
	}

	assignments := make([]string, 0, len(update))
	for _, name := range sortedPropNames(update) {
		assignments = append(assignments, fmt.Sprintf(
			"%s.%s = %s", ref, query.Ident(name), b.Param(update[name]),
		))
	}

	return " SET " + strings.Join(assignments, ", ")
}

func whereClause(where string) string {
	if where == "" {
		return ""
	}

	return " WHERE " + where
}

func recordCount(records []*neo4j.Record) int {
	if len(records) == 0 || len(records[0].Values) == 0 {
		return 0
	}

	switch v := records[0].Values[0].(type) {
	case int64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
