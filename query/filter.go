// Package query translates declarative filters and query options into
// Cypher clause fragments with bound parameters. No literal value is
// ever inlined into generated text; everything user-supplied travels
// through the parameter map.
package query

// Filter is a node in the filter AST. Filters are built either with the
// constructor functions in this package or by parsing a filter document
// with [ParseFilter]. Invalid shapes are rejected at construction or
// render time, before any query executes.
type Filter interface {
	render(b *Builder) (string, error)
}

// Comparison operators understood by the renderer.
const (
	opEq         = "="
	opNeq        = "<>"
	opGt         = ">"
	opGte        = ">="
	opLt         = "<"
	opLte        = "<="
	opIn         = "IN"
	opContains   = "CONTAINS"
	opStartsWith = "STARTS WITH"
	opEndsWith   = "ENDS WITH"
	opRegex      = "=~"
)

type comparison struct {
	// prop is the property name; empty means the current element
	// variable inside an ALL() predicate.
	prop        string
	op          string
	value       any
	insensitive bool
	negated     bool
}

type logical struct {
	op       string // AND, OR, XOR
	operands []Filter
}

type not struct {
	inner Filter
}

type exists struct {
	prop   string
	exists bool
}

type size struct {
	prop  string
	op    string
	value any
}

type allElems struct {
	prop  string
	conds []Filter
}

type elementID struct {
	id string
}

type nodeID struct {
	id int64
}

type hasLabels struct {
	labels []string
}

// Eq matches entities whose property equals value.
func Eq(prop string, value any) Filter {
	return &comparison{prop: prop, op: opEq, value: value}
}

// Ne matches entities whose property does not equal value.
func Ne(prop string, value any) Filter {
	return &comparison{prop: prop, op: opNeq, value: value}
}

// Gt matches entities whose property is greater than value.
func Gt(prop string, value any) Filter {
	return &comparison{prop: prop, op: opGt, value: value}
}

// Gte matches entities whose property is greater than or equal to value.
func Gte(prop string, value any) Filter {
	return &comparison{prop: prop, op: opGte, value: value}
}

// Lt matches entities whose property is less than value.
func Lt(prop string, value any) Filter {
	return &comparison{prop: prop, op: opLt, value: value}
}

// Lte matches entities whose property is less than or equal to value.
func Lte(prop string, value any) Filter {
	return &comparison{prop: prop, op: opLte, value: value}
}

// In matches entities whose property is one of values.
func In(prop string, values ...any) Filter {
	return &comparison{prop: prop, op: opIn, value: values}
}

// NotIn matches entities whose property is none of values.
func NotIn(prop string, values ...any) Filter {
	return &comparison{prop: prop, op: opIn, value: values, negated: true}
}

// Contains matches string properties containing substr.
func Contains(prop, substr string) Filter {
	return &comparison{prop: prop, op: opContains, value: substr}
}

// IContains is the case-insensitive variant of [Contains].
func IContains(prop, substr string) Filter {
	return &comparison{prop: prop, op: opContains, value: substr, insensitive: true}
}

// StartsWith matches string properties starting with prefix.
func StartsWith(prop, prefix string) Filter {
	return &comparison{prop: prop, op: opStartsWith, value: prefix}
}

// IStartsWith is the case-insensitive variant of [StartsWith].
func IStartsWith(prop, prefix string) Filter {
	return &comparison{prop: prop, op: opStartsWith, value: prefix, insensitive: true}
}

// EndsWith matches string properties ending with suffix.
func EndsWith(prop, suffix string) Filter {
	return &comparison{prop: prop, op: opEndsWith, value: suffix}
}

// IEndsWith is the case-insensitive variant of [EndsWith].
func IEndsWith(prop, suffix string) Filter {
	return &comparison{prop: prop, op: opEndsWith, value: suffix, insensitive: true}
}

// Regex matches string properties against a Cypher regular expression.
func Regex(prop, pattern string) Filter {
	return &comparison{prop: prop, op: opRegex, value: pattern}
}

// Exists matches entities where the property is, or is not, present.
func Exists(prop string, shouldExist bool) Filter {
	return &exists{prop: prop, exists: shouldExist}
}

// SizeEq matches list properties with exactly n elements. For other
// size comparisons, combine [Size] with one of the comparison operator
// names used by filter documents.
func SizeEq(prop string, n int) Filter {
	return &size{prop: prop, op: opEq, value: n}
}

// Size matches the SIZE() of a list property against value using the
// given comparison operator constructor semantics ("=", ">", ">=",
// "<", "<=", "<>").
func Size(prop, operator string, value any) Filter {
	return &size{prop: prop, op: operator, value: value}
}

// All matches list properties where every element satisfies all conds.
// Conditions are built with the element constructors, e.g.
// query.All("scores", query.ElemGt(5)).
func All(prop string, conds ...Filter) Filter {
	return &allElems{prop: prop, conds: conds}
}

// ElemEq matches the current list element inside an [All] predicate.
func ElemEq(value any) Filter { return &comparison{op: opEq, value: value} }

// ElemGt matches list elements greater than value inside an [All] predicate.
func ElemGt(value any) Filter { return &comparison{op: opGt, value: value} }

// ElemGte matches list elements greater than or equal to value.
func ElemGte(value any) Filter { return &comparison{op: opGte, value: value} }

// ElemLt matches list elements less than value.
func ElemLt(value any) Filter { return &comparison{op: opLt, value: value} }

// ElemLte matches list elements less than or equal to value.
func ElemLte(value any) Filter { return &comparison{op: opLte, value: value} }

// And matches entities satisfying every operand.
func And(operands ...Filter) Filter { return &logical{op: "AND", operands: operands} }

// Or matches entities satisfying at least one operand.
func Or(operands ...Filter) Filter { return &logical{op: "OR", operands: operands} }

// Xor matches entities satisfying an odd number of operands.
func Xor(operands ...Filter) Filter { return &logical{op: "XOR", operands: operands} }

// Not inverts a filter.
func Not(inner Filter) Filter { return &not{inner: inner} }

// ElementID matches the entity with the given database element id.
func ElementID(id string) Filter { return &elementID{id: id} }

// ID matches the entity with the given legacy numeric id.
func ID(id int64) Filter { return &nodeID{id: id} }

// Labels matches nodes carrying every one of the given labels.
func Labels(labels ...string) Filter { return &hasLabels{labels: labels} }
