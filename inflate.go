package norm

import (
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

// deflate converts a model instance into a property map storable in
// the graph. Nested structs and maps are flattened to JSON strings;
// list elements of those kinds likewise. Round-trip fidelity for the
// flattened values is whatever encoding/json preserves.
func (s *schema) deflate(m IModel) (map[string]any, error) {
	v := reflect.ValueOf(m)
	for v.Kind() == reflect.Pointer {
		v = v.Elem()
	}

	props := make(map[string]any, len(s.properties))

	for _, p := range s.properties {
		value, err := deflateValue(v.Field(p.index))
		if err != nil {
			return nil, fmt.Errorf("norm: deflating %s.%s: %w", s.name, p.name, err)
		}

		props[p.name] = value
	}

	return props, nil
}

var timeType = reflect.TypeOf(time.Time{})

func deflateValue(v reflect.Value) (any, error) {
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil, nil
		}

		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Struct:
		if v.Type() == timeType {
			return v.Interface(), nil
		}

		return marshalFlattened(v.Interface())

	case reflect.Map:
		if v.IsNil() {
			return nil, nil
		}

		return marshalFlattened(v.Interface())

	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.IsNil() {
			return nil, nil
		}

		out := make([]any, v.Len())

		for i := range v.Len() {
			item, err := deflateValue(v.Index(i))
			if err != nil {
				return nil, err
			}

			out[i] = item
		}

		return out, nil

	default:
		return v.Interface(), nil
	}
}

func marshalFlattened(value any) (string, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return "", err
	}

	return string(raw), nil
}

// inflateInto overwrites a model instance's persisted fields from a
// property map. Properties absent from the map reset to zero values so
// refresh discards local changes.
func (s *schema) inflateInto(m IModel, props map[string]any) error {
	v := reflect.ValueOf(m)
	for v.Kind() == reflect.Pointer {
		v = v.Elem()
	}

	for _, p := range s.properties {
		field := v.Field(p.index)

		value, ok := props[p.name]
		if !ok || value == nil {
			field.SetZero()

			continue
		}

		if err := assignProperty(field, value); err != nil {
			return fmt.Errorf("norm: inflating %s.%s: %w", s.name, p.name, err)
		}
	}

	return nil
}

// assignProperty sets a struct field from a driver-returned value,
// re-parsing JSON-flattened strings for composite targets.
func assignProperty(field reflect.Value, value any) error {
	v := reflect.ValueOf(value)

	if v.Type().AssignableTo(field.Type()) {
		field.Set(v)

		return nil
	}

	if isNumericKind(v.Kind()) && isNumericKind(field.Kind()) {
		field.Set(v.Convert(field.Type()))

		return nil
	}

	if field.Kind() == reflect.Pointer {
		elem := reflect.New(field.Type().Elem())
		if err := assignProperty(elem.Elem(), value); err != nil {
			return err
		}

		field.Set(elem)

		return nil
	}

	if field.Kind() == reflect.Slice {
		list, ok := value.([]any)
		if !ok {
			return fmt.Errorf("cannot assign %T to %s", value, field.Type())
		}

		out := reflect.MakeSlice(field.Type(), len(list), len(list))

		for i, item := range list {
			if err := assignProperty(out.Index(i), item); err != nil {
				return err
			}
		}

		field.Set(out)

		return nil
	}

	// Composite targets come back as JSON strings from deflation.
	if s, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.Struct, reflect.Map, reflect.Interface:
			return json.Unmarshal([]byte(s), field.Addr().Interface())
		}
	}

	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

func isNumericKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

// hydrateNode fills a node instance from a returned graph node and
// marks it alive.
func (s *schema) hydrateNode(m IModel, node dbtype.Node) error {
	if err := s.inflateInto(m, node.Props); err != nil {
		return err
	}

	snapshot, err := s.deflate(m)
	if err != nil {
		return err
	}

	m.state().hydrate(node.ElementId, snapshot)

	return nil
}

// hydrateRelationship fills a relationship instance from a returned
// graph relationship and marks it alive.
func (s *schema) hydrateRelationship(m IRelationship, rel dbtype.Relationship) error {
	if err := s.inflateInto(m, rel.Props); err != nil {
		return err
	}

	snapshot, err := s.deflate(m)
	if err != nil {
		return err
	}

	m.state().hydrate(rel.ElementId, snapshot)

	base := m.relBase()
	base.startElementID = rel.StartElementId
	base.endElementID = rel.EndElementId

	return nil
}

// Export returns a model's property map minus the properties excluded
// by its settings. Intended for handing model data to callers outside
// the persistence layer.
func Export(c *Client, m IModel) (map[string]any, error) {
	s, err := c.registry.schemaFor(reflect.TypeOf(m))
	if err != nil {
		return nil, err
	}

	props, err := s.deflate(m)
	if err != nil {
		return nil, err
	}

	for name := range s.excludeExport {
		delete(props, name)
	}

	return props, nil
}
