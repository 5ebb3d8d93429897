package query_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/rlch/norm/query"
)

func TestWhere(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		filter   query.Filter
		expected string
		params   map[string]any
	}{
		{
			name:     "nil filter matches everything",
			filter:   nil,
			expected: "",
			params:   map[string]any{},
		},
		{
			name:     "equality",
			filter:   query.Eq("age", 30),
			expected: "n.age = $n_0",
			params:   map[string]any{"n_0": 30},
		},
		{
			name:     "inequality",
			filter:   query.Ne("name", "bob"),
			expected: "n.name <> $n_0",
			params:   map[string]any{"n_0": "bob"},
		},
		{
			name:     "ordered comparison",
			filter:   query.Gte("score", 4.5),
			expected: "n.score >= $n_0",
			params:   map[string]any{"n_0": 4.5},
		},
		{
			name:     "membership",
			filter:   query.In("status", "active", "pending"),
			expected: "n.status IN $n_0",
			params:   map[string]any{"n_0": []any{"active", "pending"}},
		},
		{
			name:     "negated membership",
			filter:   query.NotIn("status", "banned"),
			expected: "NOT (n.status IN $n_0)",
			params:   map[string]any{"n_0": []any{"banned"}},
		},
		{
			name:     "case insensitive contains",
			filter:   query.IContains("name", "Bob"),
			expected: "toLower(n.name) CONTAINS toLower($n_0)",
			params:   map[string]any{"n_0": "Bob"},
		},
		{
			name:     "starts with",
			filter:   query.StartsWith("email", "admin@"),
			expected: "n.email STARTS WITH $n_0",
			params:   map[string]any{"n_0": "admin@"},
		},
		{
			name:     "regex",
			filter:   query.Regex("name", "(?i)b.b"),
			expected: "n.name =~ $n_0",
			params:   map[string]any{"n_0": "(?i)b.b"},
		},
		{
			name:     "exists",
			filter:   query.Exists("email", true),
			expected: "n.email IS NOT NULL",
			params:   map[string]any{},
		},
		{
			name:     "does not exist",
			filter:   query.Exists("deletedAt", false),
			expected: "n.deletedAt IS NULL",
			params:   map[string]any{},
		},
		{
			name:     "list size",
			filter:   query.SizeEq("tags", 3),
			expected: "SIZE(n.tags) = $n_0",
			params:   map[string]any{"n_0": 3},
		},
		{
			name:     "all elements",
			filter:   query.All("scores", query.ElemGt(5), query.ElemLt(10)),
			expected: "ALL(i IN n.scores WHERE i > $n_0 AND i < $n_1)",
			params:   map[string]any{"n_0": 5, "n_1": 10},
		},
		{
			name:     "conjunction",
			filter:   query.And(query.Eq("age", 30), query.Gt("score", 4)),
			expected: "(n.age = $n_0 AND n.score > $n_1)",
			params:   map[string]any{"n_0": 30, "n_1": 4},
		},
		{
			name: "nested logic",
			filter: query.Or(
				query.Eq("role", "admin"),
				query.And(query.Eq("role", "editor"), query.Exists("approvedAt", true)),
			),
			expected: "(n.role = $n_0 OR (n.role = $n_1 AND n.approvedAt IS NOT NULL))",
			params:   map[string]any{"n_0": "admin", "n_1": "editor"},
		},
		{
			name:     "negation",
			filter:   query.Not(query.Eq("age", 30)),
			expected: "NOT(n.age = $n_0)",
			params:   map[string]any{"n_0": 30},
		},
		{
			name:     "element id",
			filter:   query.ElementID("4:abc:17"),
			expected: "elementId(n) = $n_0",
			params:   map[string]any{"n_0": "4:abc:17"},
		},
		{
			name:     "legacy id",
			filter:   query.ID(17),
			expected: "ID(n) = $n_0",
			params:   map[string]any{"n_0": int64(17)},
		},
		{
			name:     "labels",
			filter:   query.Labels("User", "Admin"),
			expected: "ALL(l IN $n_0 WHERE l IN labels(n))",
			params:   map[string]any{"n_0": []string{"User", "Admin"}},
		},
		{
			name:     "identifier escaping",
			filter:   query.Eq("first name", "bob"),
			expected: "n.`first name` = $n_0",
			params:   map[string]any{"n_0": "bob"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b := query.NewBuilder("n")

			got, err := b.Where(tt.filter)
			if err != nil {
				t.Fatalf("Where() error: %v", err)
			}

			if got != tt.expected {
				t.Errorf("Where() = %q, want %q", got, tt.expected)
			}

			if diff := cmp.Diff(tt.params, b.Params()); diff != "" {
				t.Errorf("Params() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestWhereElementComparisonOutsideAll(t *testing.T) {
	t.Parallel()

	b := query.NewBuilder("n")

	_, err := b.Where(query.ElemGt(5))

	var verr *query.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
}

func TestWhereRefKeepsAccumulating(t *testing.T) {
	t.Parallel()

	b := query.NewBuilder("n")

	first, err := b.Where(query.Eq("age", 30))
	if err != nil {
		t.Fatal(err)
	}

	second, err := b.WhereRef("m", query.Eq("name", "bob"))
	if err != nil {
		t.Fatal(err)
	}

	if first != "n.age = $n_0" || second != "m.name = $m_1" {
		t.Errorf("got %q and %q", first, second)
	}

	expected := map[string]any{"n_0": 30, "m_1": "bob"}
	if diff := cmp.Diff(expected, b.Params()); diff != "" {
		t.Errorf("Params() mismatch (-want +got):\n%s", diff)
	}
}

func TestNodePattern(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		ref      string
		labels   []string
		expected string
	}{
		{name: "no labels", ref: "n", expected: "(n)"},
		{name: "single label", ref: "n", labels: []string{"User"}, expected: "(n:User)"},
		{name: "multiple labels", ref: "m", labels: []string{"User", "Admin"}, expected: "(m:User:Admin)"},
		{name: "escaped label", ref: "n", labels: []string{"Staff Member"}, expected: "(n:`Staff Member`)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := query.NodePattern(tt.ref, tt.labels); got != tt.expected {
				t.Errorf("NodePattern() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestRelationshipPattern(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		direction query.Direction
		expected  string
	}{
		{name: "outgoing", direction: query.Outgoing, expected: "(n)-[r:WORKS_AT]->(m:Company)"},
		{name: "incoming", direction: query.Incoming, expected: "(n)<-[r:WORKS_AT]-(m:Company)"},
		{name: "both", direction: query.Both, expected: "(n)-[r:WORKS_AT]-(m:Company)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := query.RelationshipPattern("(n)", "r", "WORKS_AT", "(m:Company)", tt.direction)
			if got != tt.expected {
				t.Errorf("RelationshipPattern() = %q, want %q", got, tt.expected)
			}
		})
	}
}
