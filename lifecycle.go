package norm

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/google/go-cmp/cmp"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
	"go.uber.org/zap"

	"github.com/rlch/norm/query"
)

// ensureAlive rejects lifecycle calls on instances that are not backed
// by a live entity.
func ensureAlive(m IModel) error {
	st := m.state()

	if st.destroyed {
		return ErrInstanceDestroyed
	}

	if st.elementID == "" {
		return ErrInstanceNotHydrated
	}

	return nil
}

// Create persists a new instance. The instance must not already be
// alive; re-creating a destroyed instance is allowed and yields a new
// identity. On success the instance transitions to alive and its
// modified set is cleared.
func (c *Client) Create(ctx context.Context, m INode) error {
	s, err := c.registry.schemaFor(reflect.TypeOf(m))
	if err != nil {
		return err
	}

	if m.state().Alive() {
		return ErrInstanceAlreadyCreated
	}

	if err := c.validateModel(s, m); err != nil {
		return err
	}

	if err := runHooks(ctx, s.pre(OpCreate), m); err != nil {
		return err
	}

	props, err := s.deflate(m)
	if err != nil {
		return err
	}

	cypher := fmt.Sprintf("CREATE %s%s RETURN n", s.nodePattern("n"), setClause("n", sortedPropNames(props)))

	records, err := c.Cypher(ctx, cypher, props)
	if err != nil {
		return err
	}

	node, err := firstNode(records)
	if err != nil {
		return err
	}

	if err := s.hydrateNode(m, node); err != nil {
		return err
	}

	c.log.Debug("created node", zap.String("model", s.name), zap.String("elementId", m.ElementID()))

	return runHooks(ctx, s.post(OpCreate), m)
}

// Update writes the instance's modified properties to the database.
// Properties unchanged since the last sync are not written; with no
// modified properties the update is a no-op write of zero fields.
func (c *Client) Update(ctx context.Context, m IModel) error {
	s, err := c.registry.schemaFor(reflect.TypeOf(m))
	if err != nil {
		return err
	}

	if err := ensureAlive(m); err != nil {
		return err
	}

	if err := c.validateModel(s, m); err != nil {
		return err
	}

	if err := runHooks(ctx, s.pre(OpUpdate), m); err != nil {
		return err
	}

	props, err := s.deflate(m)
	if err != nil {
		return err
	}

	modified := modifiedProperties(props, m.state().snapshot)

	params := map[string]any{"element_id": m.ElementID()}
	for _, name := range modified {
		params[name] = props[name]
	}

	cypher := fmt.Sprintf(
		"MATCH %s WHERE elementId(n) = $element_id%s RETURN n",
		s.matchPattern("n"), setClause("n", modified),
	)

	records, err := c.Cypher(ctx, cypher, params)
	if err != nil {
		return err
	}

	if len(records) == 0 {
		return ErrNoResults
	}

	m.state().snapshot = props

	return runHooks(ctx, s.post(OpUpdate), m)
}

// Delete removes the backing entity and marks the instance destroyed.
// Only re-create is allowed afterwards.
func (c *Client) Delete(ctx context.Context, m IModel) error {
	s, err := c.registry.schemaFor(reflect.TypeOf(m))
	if err != nil {
		return err
	}

	if err := ensureAlive(m); err != nil {
		return err
	}

	if err := runHooks(ctx, s.pre(OpDelete), m); err != nil {
		return err
	}

	action := "DELETE n"
	if s.kind == kindNode {
		action = "DETACH DELETE n"
	}

	cypher := fmt.Sprintf(
		"MATCH %s WHERE elementId(n) = $element_id %s RETURN count(n)",
		s.matchPattern("n"), action,
	)

	if _, err := c.Cypher(ctx, cypher, map[string]any{"element_id": m.ElementID()}); err != nil {
		return err
	}

	m.state().destroyed = true

	return runHooks(ctx, s.post(OpDelete), m)
}

// Refresh re-reads the backing entity and overwrites all local
// property values, discarding unsaved changes.
func (c *Client) Refresh(ctx context.Context, m IModel) error {
	s, err := c.registry.schemaFor(reflect.TypeOf(m))
	if err != nil {
		return err
	}

	if err := ensureAlive(m); err != nil {
		return err
	}

	if err := runHooks(ctx, s.pre(OpRefresh), m); err != nil {
		return err
	}

	cypher := fmt.Sprintf(
		"MATCH %s WHERE elementId(n) = $element_id RETURN n", s.matchPattern("n"),
	)

	records, err := c.Cypher(ctx, cypher, map[string]any{"element_id": m.ElementID()})
	if err != nil {
		return err
	}

	if len(records) == 0 {
		return ErrNoResults
	}

	if s.kind == kindNode {
		node, err := firstNode(records)
		if err != nil {
			return err
		}

		if err := s.hydrateNode(m, node); err != nil {
			return err
		}
	} else {
		rel, err := firstRelationship(records)
		if err != nil {
			return err
		}

		r, ok := m.(IRelationship)
		if !ok {
			return fmt.Errorf("norm: model %s is not a relationship model", s.name)
		}

		if err := s.hydrateRelationship(r, rel); err != nil {
			return err
		}
	}

	return runHooks(ctx, s.post(OpRefresh), m)
}

// FindConnectedNodes traverses outward from an alive instance along a
// multi-hop path constraint and returns the matching target nodes as
// instances of M.
func FindConnectedNodes[M any, P nodeModel[M]](
	ctx context.Context,
	c *Client,
	from INode,
	hop *query.MultiHop,
	opts *query.Options,
) ([]*M, error) {
	fromSchema, err := c.registry.schemaFor(reflect.TypeOf(from))
	if err != nil {
		return nil, err
	}

	targetSchema, err := c.registry.schemaFor(typeOf[M]())
	if err != nil {
		return nil, err
	}

	if err := ensureAlive(from); err != nil {
		return nil, err
	}

	b := query.NewBuilder("n")

	pattern, where, err := b.MultiHopPattern(hop, "path", "m", targetSchema.labels)
	if err != nil {
		return nil, err
	}

	if err := runHooks(ctx, fromSchema.pre(OpFindConnected), from); err != nil {
		return nil, err
	}

	clauses := []string{"elementId(n) = $element_id"}
	if where != "" {
		clauses = append(clauses, where)
	}

	cypher := fmt.Sprintf(
		"MATCH %s WHERE %s WITH DISTINCT m%s RETURN %s",
		pattern, strings.Join(clauses, " AND "),
		leadingSpace(opts.Clause(b, "m")), returnExpr("m", opts),
	)

	params := b.Params()
	params["element_id"] = from.ElementID()

	records, err := c.Cypher(ctx, cypher, params)
	if err != nil {
		return nil, err
	}

	out, err := inflateMany[M, P](targetSchema, records)
	if err != nil {
		return nil, err
	}

	if err := runHooks(ctx, fromSchema.post(OpFindConnected), out); err != nil {
		return nil, err
	}

	return out, nil
}

// modifiedProperties returns the names of properties whose deflated
// value differs from the snapshot, in deterministic order.
func modifiedProperties(current, snapshot map[string]any) []string {
	var out []string

	for _, name := range sortedPropNames(current) {
		prev, ok := snapshot[name]
		if !ok || !cmp.Equal(prev, current[name]) {
			out = append(out, name)
		}
	}

	return out
}

// setClause renders " SET n.a = $a, n.b = $b" or the empty string.
func setClause(ref string, names []string) string {
	if len(names) == 0 {
		return ""
	}

	assignments := make([]string, 0, len(names))
	for _, name := range names {
		assignments = append(assignments, fmt.Sprintf("%s.%s = $%s", ref, query.Ident(name), name))
	}

	return " SET " + strings.Join(assignments, ", ")
}

func leadingSpace(s string) string {
	if s == "" {
		return ""
	}

	return " " + s
}

func returnExpr(ref string, opts *query.Options) string {
	if opts != nil && len(opts.Project) > 0 {
		return opts.Projection(ref)
	}

	return ref
}

func firstNode(records []*neo4j.Record) (dbtype.Node, error) {
	if len(records) == 0 || len(records[0].Values) == 0 {
		return dbtype.Node{}, ErrNoResults
	}

	node, ok := records[0].Values[0].(dbtype.Node)
	if !ok {
		return dbtype.Node{}, fmt.Errorf("norm: expected a node result, got %T", records[0].Values[0])
	}

	return node, nil
}

func firstRelationship(records []*neo4j.Record) (dbtype.Relationship, error) {
	if len(records) == 0 || len(records[0].Values) == 0 {
		return dbtype.Relationship{}, ErrNoResults
	}

	rel, ok := records[0].Values[0].(dbtype.Relationship)
	if !ok {
		return dbtype.Relationship{}, fmt.Errorf("norm: expected a relationship result, got %T", records[0].Values[0])
	}

	return rel, nil
}
