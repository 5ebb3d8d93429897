package query

import (
	"fmt"
	"sort"
	"strings"
)

// ParseFilter converts a filter document into a filter AST. Documents
// use the operator vocabulary of the original wire format: property
// names map to values (implicit equality) or operator objects like
// {"$gt": 30}, logical operators take lists of documents, and the
// entity-level operators $elementId, $id and $labels address the
// entity itself. Shape errors surface as *ValidationError and unknown
// operators as *UnsupportedFilterError, both before any query runs.
func ParseFilter(doc map[string]any) (Filter, error) {
	if len(doc) == 0 {
		return nil, nil
	}

	filters := make([]Filter, 0, len(doc))

	for _, key := range sortedKeys(doc) {
		value := doc[key]

		if !strings.HasPrefix(key, "$") {
			f, err := parseProperty(key, value)
			if err != nil {
				return nil, err
			}

			filters = append(filters, f)

			continue
		}

		f, err := parseEntityOperator(key, value)
		if err != nil {
			return nil, err
		}

		filters = append(filters, f)
	}

	if len(filters) == 1 {
		return filters[0], nil
	}

	return And(filters...), nil
}

func parseEntityOperator(op string, value any) (Filter, error) {
	switch op {
	case "$elementId":
		id, ok := value.(string)
		if !ok {
			return nil, &ValidationError{Reason: fmt.Sprintf("$elementId requires a string, got %T", value)}
		}

		return ElementID(id), nil

	case "$id":
		id, ok := toInt64(value)
		if !ok {
			return nil, &ValidationError{Reason: fmt.Sprintf("$id requires an integer, got %T", value)}
		}

		return ID(id), nil

	case "$labels":
		labels, err := toStrings(value)
		if err != nil {
			return nil, &ValidationError{Reason: "$labels requires a string or list of strings", Err: err}
		}

		return Labels(labels...), nil

	case "$and", "$or", "$xor":
		operands, err := parseDocumentList(op, value)
		if err != nil {
			return nil, err
		}

		switch op {
		case "$and":
			return And(operands...), nil
		case "$or":
			return Or(operands...), nil
		default:
			return Xor(operands...), nil
		}

	case "$not":
		inner, ok := value.(map[string]any)
		if !ok {
			return nil, &ValidationError{Reason: fmt.Sprintf("$not requires a document, got %T", value)}
		}

		f, err := ParseFilter(inner)
		if err != nil {
			return nil, err
		}

		return Not(f), nil

	default:
		return nil, &UnsupportedFilterError{Operator: op}
	}
}

// parseProperty parses the value attached to a property name: either a
// direct value (implicit $eq) or an operator object.
func parseProperty(prop string, value any) (Filter, error) {
	ops, ok := value.(map[string]any)
	if !ok {
		return Eq(prop, value), nil
	}

	return parseOperatorObject(prop, ops)
}

func parseOperatorObject(prop string, ops map[string]any) (Filter, error) {
	if len(ops) == 0 {
		return nil, &ValidationError{Reason: fmt.Sprintf("empty operator object for property %q", prop)}
	}

	filters := make([]Filter, 0, len(ops))

	for _, op := range sortedKeys(ops) {
		value := ops[op]

		f, err := parsePropertyOperator(prop, op, value)
		if err != nil {
			return nil, err
		}

		filters = append(filters, f)
	}

	if len(filters) == 1 {
		return filters[0], nil
	}

	return And(filters...), nil
}

//nolint:cyclop // one case per operator
func parsePropertyOperator(prop, op string, value any) (Filter, error) {
	switch op {
	case "$eq":
		return Eq(prop, value), nil
	case "$neq", "$ne":
		return Ne(prop, value), nil
	case "$gt":
		return Gt(prop, value), nil
	case "$gte":
		return Gte(prop, value), nil
	case "$lt":
		return Lt(prop, value), nil
	case "$lte":
		return Lte(prop, value), nil
	case "$in":
		return In(prop, toList(value)...), nil
	case "$nin":
		return NotIn(prop, toList(value)...), nil
	case "$contains":
		return stringOperator(prop, op, value, Contains)
	case "$icontains":
		return stringOperator(prop, op, value, IContains)
	case "$startsWith":
		return stringOperator(prop, op, value, StartsWith)
	case "$istartsWith":
		return stringOperator(prop, op, value, IStartsWith)
	case "$endsWith":
		return stringOperator(prop, op, value, EndsWith)
	case "$iendsWith":
		return stringOperator(prop, op, value, IEndsWith)
	case "$regex":
		return stringOperator(prop, op, value, Regex)
	case "$exists":
		shouldExist, ok := value.(bool)
		if !ok {
			return nil, &ValidationError{Reason: fmt.Sprintf("$exists requires a bool, got %T", value)}
		}

		return Exists(prop, shouldExist), nil
	case "$size":
		return parseSize(prop, value)
	case "$all":
		return parseAll(prop, value)
	case "$not":
		inner, ok := value.(map[string]any)
		if !ok {
			// A direct value inside $not means inequality.
			return Not(Eq(prop, value)), nil
		}

		f, err := parseOperatorObject(prop, inner)
		if err != nil {
			return nil, err
		}

		return Not(f), nil
	case "$and", "$or", "$xor":
		list, ok := value.([]any)
		if !ok {
			return nil, &ValidationError{Reason: fmt.Sprintf("%s requires a list, got %T", op, value)}
		}

		operands := make([]Filter, 0, len(list))

		for _, item := range list {
			doc, ok := item.(map[string]any)
			if !ok {
				return nil, &ValidationError{Reason: fmt.Sprintf("%s operands must be documents, got %T", op, item)}
			}

			f, err := parseOperatorObject(prop, doc)
			if err != nil {
				return nil, err
			}

			operands = append(operands, f)
		}

		switch op {
		case "$and":
			return And(operands...), nil
		case "$or":
			return Or(operands...), nil
		default:
			return Xor(operands...), nil
		}
	default:
		if strings.HasPrefix(op, "$") {
			return nil, &UnsupportedFilterError{Operator: op}
		}

		return nil, &ValidationError{
			Reason: fmt.Sprintf("nested property %q is not allowed inside an operator object", op),
		}
	}
}

func parseSize(prop string, value any) (Filter, error) {
	if n, ok := toInt64(value); ok {
		return Size(prop, opEq, n), nil
	}

	ops, ok := value.(map[string]any)
	if !ok || len(ops) != 1 {
		return nil, &ValidationError{Reason: "$size requires a number or a single comparison object"}
	}

	for op, v := range ops {
		cypherOp, ok := comparisonOp(op)
		if !ok {
			return nil, &UnsupportedFilterError{Operator: op}
		}

		return Size(prop, cypherOp, v), nil
	}

	return nil, &ValidationError{Reason: "$size requires a comparison object"}
}

func parseAll(prop string, value any) (Filter, error) {
	list, ok := value.([]any)
	if !ok {
		return nil, &ValidationError{Reason: fmt.Sprintf("$all requires a list, got %T", value)}
	}

	conds := make([]Filter, 0, len(list))

	for _, item := range list {
		ops, ok := item.(map[string]any)
		if !ok {
			conds = append(conds, ElemEq(item))

			continue
		}

		for _, op := range sortedKeys(ops) {
			cypherOp, ok := comparisonOp(op)
			if !ok {
				return nil, &UnsupportedFilterError{Operator: op}
			}

			conds = append(conds, &comparison{op: cypherOp, value: ops[op]})
		}
	}

	return All(prop, conds...), nil
}

func parseDocumentList(op string, value any) ([]Filter, error) {
	list, ok := value.([]any)
	if !ok {
		return nil, &ValidationError{Reason: fmt.Sprintf("%s requires a list of documents, got %T", op, value)}
	}

	operands := make([]Filter, 0, len(list))

	for _, item := range list {
		doc, ok := item.(map[string]any)
		if !ok {
			return nil, &ValidationError{Reason: fmt.Sprintf("%s operands must be documents, got %T", op, item)}
		}

		f, err := ParseFilter(doc)
		if err != nil {
			return nil, err
		}

		operands = append(operands, f)
	}

	return operands, nil
}

func stringOperator(prop, op string, value any, build func(string, string) Filter) (Filter, error) {
	s, ok := value.(string)
	if !ok {
		return nil, &ValidationError{Reason: fmt.Sprintf("%s requires a string, got %T", op, value)}
	}

	return build(prop, s), nil
}

func comparisonOp(op string) (string, bool) {
	switch op {
	case "$eq":
		return opEq, true
	case "$neq", "$ne":
		return opNeq, true
	case "$gt":
		return opGt, true
	case "$gte":
		return opGte, true
	case "$lt":
		return opLt, true
	case "$lte":
		return opLte, true
	default:
		return "", false
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

func toList(value any) []any {
	if list, ok := value.([]any); ok {
		return list
	}

	return []any{value}
}

func toInt64(value any) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		if v == float64(int64(v)) {
			return int64(v), true
		}
	}

	return 0, false
}

func toStrings(value any) ([]string, error) {
	switch v := value.(type) {
	case string:
		return []string{v}, nil
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))

		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected string, got %T", item)
			}

			out = append(out, s)
		}

		return out, nil
	default:
		return nil, fmt.Errorf("expected string or list, got %T", value)
	}
}
