package norm

import (
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Property names reserved for internal use. Models declaring them are
// rejected at definition time.
var reservedPropertyNames = map[string]struct{}{
	"element_id":          {},
	"modified_properties": {},
}

type modelKind int

const (
	kindNode modelKind = iota
	kindRelationship
)

// property describes one persisted field of a model.
type property struct {
	// name is the database property name.
	name string

	// index is the struct field index.
	index int

	unique     bool
	rangeIndex bool
	textIndex  bool
	pointIndex bool
}

type compiledCheck struct {
	src     string
	program *vm.Program
}

// schema is the derived description of a model: its identity in the
// graph, its persisted properties, and its resolved settings.
type schema struct {
	name    string
	kind    modelKind
	typ     reflect.Type
	labels  []string // nodes
	relType string   // relationships

	properties []property

	excludeExport map[string]struct{}
	preHooks      map[Operation][]Hook
	postHooks     map[Operation][]Hook
	checks        []compiledCheck
	relProps      map[string]RelationshipPropertySpec

	// registered is set once the model went through RegisterModels.
	// Unregistered schemas support ad-hoc lifecycle queries but cannot
	// be resolved as relationship-property targets.
	registered bool
}

var (
	nodeBaseType = reflect.TypeOf(Node{})
	relBaseType  = reflect.TypeOf(Relationship{})
)

// deriveSchema builds a schema from a model's struct type.
func deriveSchema(t reflect.Type) (*schema, error) {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("norm: model must be a struct, got %s", t.Kind())
	}

	s := &schema{
		name:          t.Name(),
		typ:           t,
		excludeExport: map[string]struct{}{},
	}

	base := -1

	for i := range t.NumField() {
		field := t.Field(i)

		if field.Anonymous && field.Type == nodeBaseType {
			s.kind = kindNode
			base = i
			s.labels = parseLabelTag(field.Tag.Get("neo4j"), t.Name())

			break
		}

		if field.Anonymous && field.Type == relBaseType {
			s.kind = kindRelationship
			base = i

			s.relType = field.Tag.Get("neo4j")
			if s.relType == "" {
				s.relType = upperSnake(t.Name())
			}

			break
		}
	}

	if base == -1 {
		return nil, fmt.Errorf("norm: model %s must embed norm.Node or norm.Relationship", t.Name())
	}

	for i := range t.NumField() {
		field := t.Field(i)
		if i == base || field.Anonymous || !field.IsExported() {
			continue
		}

		name, opts, ok := propertyName(field)
		if !ok {
			continue
		}

		if _, reserved := reservedPropertyNames[name]; reserved {
			return nil, fmt.Errorf("%w: %q on model %s", ErrReservedProperty, name, t.Name())
		}

		if !validPropertyName(name) {
			return nil, fmt.Errorf("norm: invalid property name %q on %s.%s", name, t.Name(), field.Name)
		}

		p := property{name: name, index: i}

		for _, opt := range opts {
			switch opt {
			case "unique":
				p.unique = true
			case "index":
				p.rangeIndex = true
			case "text_index":
				p.textIndex = true
			case "point_index":
				p.pointIndex = true
			case "":
			default:
				return nil, fmt.Errorf("norm: unknown norm tag option %q on %s.%s", opt, t.Name(), field.Name)
			}
		}

		s.properties = append(s.properties, p)
	}

	if err := s.applySettings(); err != nil {
		return nil, err
	}

	return s, nil
}

// applySettings merges the model's Settings declaration, if any, and
// compiles its check expressions.
func (s *schema) applySettings() error {
	instance := reflect.New(s.typ).Interface()

	var checks []string

	switch m := instance.(type) {
	case HasNodeSettings:
		settings := m.NodeSettings()

		if len(settings.Labels) > 0 {
			s.labels = settings.Labels
		}

		for _, name := range settings.ExcludeFromExport {
			s.excludeExport[name] = struct{}{}
		}

		s.preHooks = settings.PreHooks
		s.postHooks = settings.PostHooks
		s.relProps = settings.RelationshipProperties
		checks = settings.Checks

	case HasRelationshipSettings:
		settings := m.RelationshipSettings()

		if settings.Type != "" {
			s.relType = settings.Type
		}

		for _, name := range settings.ExcludeFromExport {
			s.excludeExport[name] = struct{}{}
		}

		s.preHooks = settings.PreHooks
		s.postHooks = settings.PostHooks
		checks = settings.Checks
	}

	for _, src := range checks {
		program, err := expr.Compile(src, expr.AllowUndefinedVariables(), expr.AsBool())
		if err != nil {
			return fmt.Errorf("norm: invalid check expression %q on model %s: %w", src, s.name, err)
		}

		s.checks = append(s.checks, compiledCheck{src: src, program: program})
	}

	return nil
}

func (s *schema) pre(op Operation) []Hook  { return s.preHooks[op] }
func (s *schema) post(op Operation) []Hook { return s.postHooks[op] }

// propertyByName returns the property with the given database name.
func (s *schema) propertyByName(name string) (property, bool) {
	for _, p := range s.properties {
		if p.name == name {
			return p, true
		}
	}

	return property{}, false
}

// propertyName resolves the database property name and norm tag
// options for a struct field. The neo4j tag wins over the json tag;
// a "-" in either skips persistence.
func propertyName(field reflect.StructField) (string, []string, bool) {
	normTag := field.Tag.Get("norm")
	if normTag == "-" {
		return "", nil, false
	}

	opts := strings.Split(normTag, ",")

	if tag := field.Tag.Get("neo4j"); tag != "" {
		if tag == "-" {
			return "", nil, false
		}

		return tag, opts, true
	}

	if tag := field.Tag.Get("json"); tag != "" {
		name, _, _ := strings.Cut(tag, ",")
		if name == "-" {
			return "", nil, false
		}

		if name != "" {
			return name, opts, true
		}
	}

	return lowerCamel(field.Name), opts, true
}

// validPropertyName reports whether a name can double as a Cypher
// parameter token. Property names are reused verbatim as $name
// placeholders in generated statements.
func validPropertyName(name string) bool {
	if name == "" {
		return false
	}

	for i, r := range name {
		if r == '_' || unicode.IsLetter(r) {
			continue
		}

		if i > 0 && unicode.IsDigit(r) {
			continue
		}

		return false
	}

	return true
}

// parseLabelTag splits a comma-separated label tag, falling back to
// the PascalCase segments of the model name.
func parseLabelTag(tag, modelName string) []string {
	if tag != "" {
		parts := strings.Split(tag, ",")
		labels := make([]string, 0, len(parts))

		for _, part := range parts {
			if part = strings.TrimSpace(part); part != "" {
				labels = append(labels, part)
			}
		}

		if len(labels) > 0 {
			return labels
		}
	}

	return splitPascal(modelName)
}

// splitPascal breaks a PascalCase name into its segments, so
// AdultDeveloper becomes the label set [Adult, Developer].
func splitPascal(name string) []string {
	var (
		segments []string
		current  strings.Builder
	)

	for _, r := range name {
		if unicode.IsUpper(r) && current.Len() > 0 {
			segments = append(segments, current.String())
			current.Reset()
		}

		current.WriteRune(r)
	}

	if current.Len() > 0 {
		segments = append(segments, current.String())
	}

	if len(segments) == 0 {
		return []string{name}
	}

	return segments
}

// upperSnake converts a PascalCase name to an UPPER_SNAKE relationship
// type, so WorksAt becomes WORKS_AT.
func upperSnake(name string) string {
	segments := splitPascal(name)
	for i, segment := range segments {
		segments[i] = strings.ToUpper(segment)
	}

	return strings.Join(segments, "_")
}

func lowerCamel(name string) string {
	if name == "" {
		return name
	}

	runes := []rune(name)
	runes[0] = unicode.ToLower(runes[0])

	return string(runes)
}
