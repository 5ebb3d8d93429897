package query

import (
	"fmt"
	"sort"
	"strings"
)

// Options shape the result set of a find operation.
type Options struct {
	// Limit caps the number of returned entities. Zero means no limit.
	Limit int

	// Skip drops the first Skip entities. Zero means none.
	Skip int

	// Sort orders the result set; keys apply in declaration order.
	Sort []Sort

	// Project maps result keys to property names. When set, queries
	// return map projections of just these properties instead of whole
	// entities.
	Project map[string]string
}

// Sort is one ordering key.
type Sort struct {
	// Property is the property to order by.
	Property string

	// Desc orders descending when true.
	Desc bool
}

// Clause renders the ORDER BY / SKIP / LIMIT fragment against the
// given variable. Skip and limit values are bound as parameters on the
// builder.
func (o *Options) Clause(b *Builder, ref string) string {
	if o == nil {
		return ""
	}

	var parts []string

	if len(o.Sort) > 0 {
		keys := make([]string, 0, len(o.Sort))

		for _, s := range o.Sort {
			key := ref + "." + escapeIdent(s.Property)
			if s.Desc {
				key += " DESC"
			}

			keys = append(keys, key)
		}

		parts = append(parts, "ORDER BY "+strings.Join(keys, ", "))
	}

	if o.Skip > 0 {
		parts = append(parts, "SKIP "+b.param(o.Skip))
	}

	if o.Limit > 0 {
		parts = append(parts, "LIMIT "+b.param(o.Limit))
	}

	return strings.Join(parts, " ")
}

// Projection renders the RETURN expression for the configured
// projection, or "DISTINCT <ref>" when no projection is set.
func (o *Options) Projection(ref string) string {
	if o == nil || len(o.Project) == 0 {
		return "DISTINCT " + ref
	}

	entries := make([]string, 0, len(o.Project))

	for _, key := range sortedProjectionKeys(o.Project) {
		entries = append(entries, fmt.Sprintf("%s: %s.%s", escapeIdent(key), ref, escapeIdent(o.Project[key])))
	}

	return fmt.Sprintf("DISTINCT %s {%s}", ref, strings.Join(entries, ", "))
}

func sortedProjectionKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	// Deterministic output keeps generated statements stable.
	sort.Strings(keys)

	return keys
}
