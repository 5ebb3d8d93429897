package query

import (
	"fmt"
	"strings"
)

// Direction describes which way a relationship points relative to the
// node declaring it.
type Direction string

// Relationship directions.
const (
	Outgoing Direction = "outgoing"
	Incoming Direction = "incoming"
	Both     Direction = "both"
)

// MultiHop expresses a path constraint spanning a bounded range of
// relationship traversals from a start node to matching target nodes.
type MultiHop struct {
	// MinHops is the minimum number of relationships in the path.
	MinHops int

	// MaxHops is the maximum number of relationships in the path.
	// A value of -1 leaves the upper bound open.
	MaxHops int

	// Node filters the target node at the end of the path.
	Node Filter

	// Relationships constrains the relationships traversed along the
	// path. When non-empty, every relationship on the path must be of
	// one of the listed types, and relationships of a listed type must
	// satisfy that type's property filter.
	Relationships []RelConstraint

	// Direction of traversal from the start node. Defaults to Outgoing.
	Direction Direction
}

// RelConstraint constrains relationships of one type along a path.
type RelConstraint struct {
	// Type is the relationship type, e.g. "WORKS_AT".
	Type string

	// Filter applies to the relationship's properties. May be nil.
	Filter Filter
}

// Validate checks the hop bounds. It is called by the renderer, so a
// malformed range fails before any query text is produced.
func (m *MultiHop) Validate() error {
	if m.MinHops < 0 {
		return &ValidationError{Reason: fmt.Sprintf("minHops must not be negative, got %d", m.MinHops)}
	}

	if m.MaxHops < -1 {
		return &ValidationError{Reason: fmt.Sprintf("maxHops must be -1 or a positive hop count, got %d", m.MaxHops)}
	}

	if m.MaxHops != -1 && m.MinHops > m.MaxHops {
		return &ValidationError{
			Reason: fmt.Sprintf("minHops (%d) must not exceed maxHops (%d)", m.MinHops, m.MaxHops),
		}
	}

	return nil
}

// MultiHopPattern renders the variable-length match pattern and WHERE
// fragment for a multi-hop traversal. The path is bound to pathRef so
// relationship constraints can quantify over relationships(pathRef).
// endLabels restricts the target node; pass nil to match any node.
// A nil hop is an unconstrained traversal of one or more relationships.
func (b *Builder) MultiHopPattern(m *MultiHop, pathRef, endRef string, endLabels []string) (pattern, where string, err error) {
	if m == nil {
		m = &MultiHop{MinHops: 1, MaxHops: -1}
	}

	if err := m.Validate(); err != nil {
		return "", "", err
	}

	rel := "[" + hopRange(m.MinHops, m.MaxHops) + "]"

	var arrow string

	switch m.Direction {
	case Incoming:
		arrow = "<-" + rel + "-"
	case Both:
		arrow = "-" + rel + "-"
	default:
		arrow = "-" + rel + "->"
	}

	pattern = fmt.Sprintf("%s = (%s)%s%s", pathRef, b.ref, arrow, NodePattern(endRef, endLabels))

	var parts []string

	if m.Node != nil {
		clause, err := b.WhereRef(endRef, m.Node)
		if err != nil {
			return "", "", err
		}

		if clause != "" {
			parts = append(parts, clause)
		}
	}

	if len(m.Relationships) > 0 {
		types := make([]string, 0, len(m.Relationships))
		for _, rc := range m.Relationships {
			types = append(types, rc.Type)
		}

		parts = append(parts, fmt.Sprintf(
			"ALL(r IN relationships(%s) WHERE type(r) IN %s)", pathRef, b.param(types),
		))

		for _, rc := range m.Relationships {
			if rc.Filter == nil {
				continue
			}

			clause, err := b.WhereRef("r", rc.Filter)
			if err != nil {
				return "", "", err
			}

			if clause == "" {
				continue
			}

			parts = append(parts, fmt.Sprintf(
				"ALL(r IN relationships(%s) WHERE type(r) <> %s OR (%s))",
				pathRef, b.param(rc.Type), clause,
			))
		}
	}

	return pattern, strings.Join(parts, " AND "), nil
}
