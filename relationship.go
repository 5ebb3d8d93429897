package norm

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/rlch/norm/query"

	"go.uber.org/zap"
)

// relationshipProperty resolves a declared relationship property on an
// instance's schema, together with its target and relationship
// schemas. All three models must be registered.
func (c *Client) relationshipProperty(from INode, name string) (spec RelationshipPropertySpec, target, rel *schema, err error) {
	s, err := c.registry.schemaFor(reflect.TypeOf(from))
	if err != nil {
		return spec, nil, nil, err
	}

	if !s.registered {
		return spec, nil, nil, fmt.Errorf("%w: %s", ErrUnregisteredModel, s.name)
	}

	spec, ok := s.relProps[name]
	if !ok {
		return spec, nil, nil, fmt.Errorf("norm: model %s has no relationship property %q", s.name, name)
	}

	target, err = c.registry.registered(spec.Target)
	if err != nil {
		return spec, nil, nil, err
	}

	rel, err = c.registry.registered(spec.Relationship)
	if err != nil {
		return spec, nil, nil, err
	}

	return spec, target, rel, nil
}

// Relate connects from to to through the named relationship property.
// When the property forbids multiple relationships the edge is merged
// rather than created. relInstance optionally carries edge properties;
// on success it is hydrated from the stored relationship.
func (c *Client) Relate(ctx context.Context, from INode, property string, to INode, relInstance IRelationship) error {
	spec, targetSchema, relSchema, err := c.relationshipProperty(from, property)
	if err != nil {
		return err
	}

	if err := ensureAlive(from); err != nil {
		return err
	}

	if err := ensureAlive(to); err != nil {
		return err
	}

	toSchema, err := c.registry.schemaFor(reflect.TypeOf(to))
	if err != nil {
		return err
	}

	if toSchema.name != targetSchema.name {
		return fmt.Errorf("%w: expected %s, got %s", ErrInvalidTargetNode, targetSchema.name, toSchema.name)
	}

	props := map[string]any{}

	if relInstance != nil {
		if err := c.validateModel(relSchema, relInstance); err != nil {
			return err
		}

		if props, err = relSchema.deflate(relInstance); err != nil {
			return err
		}
	}

	if err := runHooks(ctx, relSchema.pre(OpRelate), relInstance); err != nil {
		return err
	}

	verb := "CREATE"
	if !spec.AllowMultiple {
		verb = "MERGE"
	}

	params := map[string]any{
		"from_element_id": from.ElementID(),
		"to_element_id":   to.ElementID(),
	}
	for name, value := range props {
		params["rel_"+name] = value
	}

	cypher := fmt.Sprintf(
		"MATCH (a), (b) WHERE elementId(a) = $from_element_id AND elementId(b) = $to_element_id %s %s%s RETURN r",
		verb, relatePattern(spec.Direction, relSchema.relType), relateSetClause("r", props),
	)

	records, err := c.Cypher(ctx, cypher, params)
	if err != nil {
		return err
	}

	dbRel, err := firstRelationship(records)
	if err != nil {
		return err
	}

	if relInstance != nil {
		if err := relSchema.hydrateRelationship(relInstance, dbRel); err != nil {
			return err
		}
	}

	c.log.Debug("related nodes",
		zap.String("property", property),
		zap.String("type", relSchema.relType),
	)

	return runHooks(ctx, relSchema.post(OpRelate), relInstance)
}

// Unrelate removes every relationship between from and to declared by
// the named property and returns the number of deleted relationships.
func (c *Client) Unrelate(ctx context.Context, from INode, property string, to INode) (int, error) {
	spec, targetSchema, relSchema, err := c.relationshipProperty(from, property)
	if err != nil {
		return 0, err
	}

	if err := ensureAlive(from); err != nil {
		return 0, err
	}

	if err := ensureAlive(to); err != nil {
		return 0, err
	}

	toSchema, err := c.registry.schemaFor(reflect.TypeOf(to))
	if err != nil {
		return 0, err
	}

	if toSchema.name != targetSchema.name {
		return 0, fmt.Errorf("%w: expected %s, got %s", ErrInvalidTargetNode, targetSchema.name, toSchema.name)
	}

	if err := runHooks(ctx, relSchema.pre(OpUnrelate), from); err != nil {
		return 0, err
	}

	pattern := query.RelationshipPattern("(a)", "r", relSchema.relType, "(b)", spec.Direction)

	cypher := fmt.Sprintf(
		"MATCH %s WHERE elementId(a) = $from_element_id AND elementId(b) = $to_element_id DELETE r RETURN count(r)",
		pattern,
	)

	records, err := c.Cypher(ctx, cypher, map[string]any{
		"from_element_id": from.ElementID(),
		"to_element_id":   to.ElementID(),
	})
	if err != nil {
		return 0, err
	}

	count := recordCount(records)

	if err := runHooks(ctx, relSchema.post(OpUnrelate), count); err != nil {
		return 0, err
	}

	return count, nil
}

// RelatedNodes returns the nodes of model M reachable from an alive
// instance across the named relationship property, optionally filtered
// on the target node and shaped by the options.
func RelatedNodes[M any, P nodeModel[M]](
	ctx context.Context,
	c *Client,
	from INode,
	property string,
	filter query.Filter,
	opts *query.Options,
) ([]*M, error) {
	spec, targetSchema, relSchema, err := c.relationshipProperty(from, property)
	if err != nil {
		return nil, err
	}

	if err := ensureAlive(from); err != nil {
		return nil, err
	}

	if targetSchema.typ != reflect.TypeFor[M]() {
		return nil, fmt.Errorf("%w: property %q targets %s", ErrInvalidTargetNode, property, targetSchema.name)
	}

	b := query.NewBuilder("n")

	where, err := b.WhereRef("m", filter)
	if err != nil {
		return nil, err
	}

	clauses := []string{"elementId(n) = $element_id"}
	if where != "" {
		clauses = append(clauses, where)
	}

	pattern := query.RelationshipPattern(
		"(n)", "r", relSchema.relType, query.NodePattern("m", targetSchema.labels), spec.Direction,
	)

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

	return inflateMany[M, P](targetSchema, records)
}

// relatePattern renders the write pattern for Relate. Cypher cannot
// create undirected relationships, so Both writes an outgoing edge and
// reads in either direction.
func relatePattern(direction query.Direction, relType string) string {
	if direction == Incoming {
		return query.RelationshipPattern("(a)", "r", relType, "(b)", Incoming)
	}

	return query.RelationshipPattern("(a)", "r", relType, "(b)", Outgoing)
}

// relateSetClause renders edge property assignments with the rel_
// parameter prefix used by Relate.
func relateSetClause(ref string, props map[string]any) string {
	if len(props) == 0 {
		return ""
	}

	assignments := make([]string, 0, len(props))
	for _, name := range sortedPropNames(props) {
		assignments = append(assignments, fmt.Sprintf("%s.%s = $rel_%s", ref, query.Ident(name), name))
	}

	return " SET " + strings.Join(assignments, ", ")
}
