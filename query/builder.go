package query

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Builder renders filter ASTs and query options into Cypher fragments.
// A Builder accumulates the parameter map across every fragment it
// renders, so one Builder must be used per statement. The ref is the
// Cypher variable the fragments constrain (conventionally "n").
type Builder struct {
	ref     string
	elemVar string
	count   int
	params  map[string]any
}

// NewBuilder returns a Builder rendering against the given variable.
func NewBuilder(ref string) *Builder {
	return &Builder{ref: ref, params: map[string]any{}}
}

// Params returns the parameters bound so far. The map is live; callers
// merge it into the statement parameters after rendering.
func (b *Builder) Params() map[string]any { return b.params }

// Where renders a filter to a WHERE fragment. A nil filter renders to
// the empty string and matches all entities.
func (b *Builder) Where(f Filter) (string, error) {
	if f == nil {
		return "", nil
	}

	return f.render(b)
}

// WhereRef renders a filter against a different variable, restoring
// the builder's ref afterwards. Parameters still accumulate on b.
func (b *Builder) WhereRef(ref string, f Filter) (string, error) {
	prev := b.ref
	b.ref = ref

	defer func() { b.ref = prev }()

	return b.Where(f)
}

// param binds a value and returns its `$name` placeholder.
func (b *Builder) param(v any) string {
	name := fmt.Sprintf("%s_%d", b.ref, b.count)
	b.count++
	b.params[name] = v

	return "$" + name
}

// Param binds a value and returns its `$name` placeholder, for
// callers composing clauses around the rendered filter.
func (b *Builder) Param(v any) string { return b.param(v) }

// variable resolves the property access for the current context.
func (b *Builder) variable(prop string) string {
	if prop == "" {
		return b.elemVar
	}

	return b.ref + "." + escapeIdent(prop)
}

// Ident backtick-quotes an identifier when it is not a plain name.
func Ident(s string) string { return escapeIdent(s) }

var plainIdent = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// escapeIdent backtick-quotes identifiers that are not plain names.
func escapeIdent(s string) string {
	if plainIdent.MatchString(s) {
		return s
	}

	return "`" + strings.ReplaceAll(s, "`", "``") + "`"
}

func (c *comparison) render(b *Builder) (string, error) {
	if c.prop == "" && b.elemVar == "" {
		return "", &ValidationError{Reason: "element comparison used outside $all"}
	}

	variable := b.variable(c.prop)
	placeholder := b.param(c.value)

	var clause string

	switch {
	case c.insensitive:
		clause = fmt.Sprintf("toLower(%s) %s toLower(%s)", variable, c.op, placeholder)
	default:
		clause = fmt.Sprintf("%s %s %s", variable, c.op, placeholder)
	}

	if c.negated {
		clause = fmt.Sprintf("NOT (%s)", clause)
	}

	return clause, nil
}

func (l *logical) render(b *Builder) (string, error) {
	if len(l.operands) == 0 {
		return "", nil
	}

	parts := make([]string, 0, len(l.operands))

	for _, operand := range l.operands {
		part, err := operand.render(b)
		if err != nil {
			return "", err
		}

		if part != "" {
			parts = append(parts, part)
		}
	}

	switch len(parts) {
	case 0:
		return "", nil
	case 1:
		return parts[0], nil
	default:
		return "(" + strings.Join(parts, " "+l.op+" ") + ")", nil
	}
}

func (n *not) render(b *Builder) (string, error) {
	inner, err := n.inner.render(b)
	if err != nil {
		return "", err
	}

	if inner == "" {
		return "", nil
	}

	return "NOT(" + inner + ")", nil
}

func (e *exists) render(b *Builder) (string, error) {
	if e.exists {
		return b.variable(e.prop) + " IS NOT NULL", nil
	}

	return b.variable(e.prop) + " IS NULL", nil
}

func (s *size) render(b *Builder) (string, error) {
	switch s.op {
	case opEq, opNeq, opGt, opGte, opLt, opLte:
	default:
		return "", &UnsupportedFilterError{Operator: s.op}
	}

	return fmt.Sprintf("SIZE(%s) %s %s", b.variable(s.prop), s.op, b.param(s.value)), nil
}

func (a *allElems) render(b *Builder) (string, error) {
	if len(a.conds) == 0 {
		return "", &ValidationError{Reason: "$all requires at least one condition"}
	}

	variable := b.variable(a.prop)

	prev := b.elemVar
	b.elemVar = "i"

	defer func() { b.elemVar = prev }()

	parts := make([]string, 0, len(a.conds))

	for _, cond := range a.conds {
		part, err := cond.render(b)
		if err != nil {
			return "", err
		}

		if part != "" {
			parts = append(parts, part)
		}
	}

	return fmt.Sprintf("ALL(i IN %s WHERE %s)", variable, strings.Join(parts, " AND ")), nil
}

func (e *elementID) render(b *Builder) (string, error) {
	return fmt.Sprintf("elementId(%s) = %s", b.ref, b.param(e.id)), nil
}

func (n *nodeID) render(b *Builder) (string, error) {
	return fmt.Sprintf("ID(%s) = %s", b.ref, b.param(n.id)), nil
}

func (h *hasLabels) render(b *Builder) (string, error) {
	return fmt.Sprintf("ALL(l IN %s WHERE l IN labels(%s))", b.param(h.labels), b.ref), nil
}

// NodePattern renders a node match pattern like `(n:Label1:Label2)`.
func NodePattern(ref string, labels []string) string {
	var sb strings.Builder

	sb.WriteByte('(')
	sb.WriteString(ref)

	for _, label := range labels {
		sb.WriteByte(':')
		sb.WriteString(escapeIdent(label))
	}

	sb.WriteByte(')')

	return sb.String()
}

// RelationshipPattern renders a relationship match pattern between two
// node patterns, e.g. `(n)-[r:WORKS_AT]->(m:Company)`.
func RelationshipPattern(startPattern, relRef, relType string, endPattern string, direction Direction) string {
	rel := "[" + relRef
	if relType != "" {
		rel += ":" + escapeIdent(relType)
	}

	rel += "]"

	switch direction {
	case Incoming:
		return startPattern + "<-" + rel + "-" + endPattern
	case Both:
		return startPattern + "-" + rel + "-" + endPattern
	default:
		return startPattern + "-" + rel + "->" + endPattern
	}
}

// hopRange renders the variable-length specifier for a hop range.
func hopRange(minHops, maxHops int) string {
	if maxHops < 0 {
		return "*" + strconv.Itoa(minHops) + ".."
	}

	return "*" + strconv.Itoa(minHops) + ".." + strconv.Itoa(maxHops)
}
