// Package norm maps Go struct models onto Neo4j nodes and
// relationships. It wraps the official Neo4j Go driver with schema
// derivation from struct tags, property validation, declarative
// filters translated to parameterized Cypher, and lifecycle methods
// for model instances. It adds no query engine, pooling, or retry
// logic of its own; those concerns stay with the driver.
package norm

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/go-playground/validator/v10"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
	"go.uber.org/zap"

	"github.com/rlch/norm/query"
)

// cypherRunner executes one Cypher statement and collects its records.
// The production implementation wraps the client's session; tests
// substitute a fake.
type cypherRunner interface {
	Run(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error)
}

type sessionRunner struct {
	session neo4j.SessionWithContext
}

func (r sessionRunner) Run(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error) {
	result, err := r.session.Run(ctx, cypher, params)
	if err != nil {
		return nil, fmt.Errorf("norm: query execution failed: %w", err)
	}

	records, err := result.Collect(ctx)
	if err != nil {
		return nil, fmt.Errorf("norm: failed to collect results: %w", err)
	}

	return records, nil
}

// Client owns one driver connection and session, the model registry,
// and the validator. All operations issue single queries through the
// session; concurrency control is the driver's business.
type Client struct {
	driver   neo4j.DriverWithContext
	session  neo4j.SessionWithContext
	runner   cypherRunner
	registry *Registry
	validate *validator.Validate
	log      *zap.Logger
	database string
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client's logger. The default is a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithDatabase selects a database other than the server default.
func WithDatabase(name string) Option {
	return func(c *Client) { c.database = name }
}

// Connect creates a client and opens a connection to the given
// endpoint.
func Connect(ctx context.Context, uri string, auth neo4j.AuthToken, opts ...Option) (*Client, error) {
	c := &Client{
		registry: NewRegistry(),
		validate: validator.New(),
		log:      zap.NewNop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if err := c.Connect(ctx, uri, auth); err != nil {
		return nil, err
	}

	return c, nil
}

// Connect opens a connection, replacing any prior one. Calling it on
// an already-connected client closes the previous session and driver
// first.
func (c *Client) Connect(ctx context.Context, uri string, auth neo4j.AuthToken) error {
	driver, err := neo4j.NewDriverWithContext(uri, auth)
	if err != nil {
		return fmt.Errorf("norm: failed to create driver: %w", err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)

		return fmt.Errorf("norm: failed to connect: %w", err)
	}

	if c.session != nil {
		_ = c.session.Close(ctx)
	}

	if c.driver != nil {
		_ = c.driver.Close(ctx)
	}

	sessionCfg := neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite}
	if c.database != "" {
		sessionCfg.DatabaseName = c.database
	}

	c.driver = driver
	c.session = driver.NewSession(ctx, sessionCfg)
	c.runner = sessionRunner{session: c.session}

	c.log.Debug("connected", zap.String("uri", uri))

	return nil
}

// Close releases the session and driver.
func (c *Client) Close(ctx context.Context) error {
	if c.session != nil {
		if err := c.session.Close(ctx); err != nil {
			return fmt.Errorf("norm: failed to close session: %w", err)
		}

		c.session = nil
	}

	if c.driver != nil {
		if err := c.driver.Close(ctx); err != nil {
			return fmt.Errorf("norm: failed to close driver: %w", err)
		}

		c.driver = nil
	}

	c.runner = nil

	return nil
}

// Registry returns the client-owned model registry.
func (c *Client) Registry() *Registry { return c.registry }

// Cypher executes a statement and returns the raw result records.
func (c *Client) Cypher(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error) {
	if c.runner == nil {
		return nil, ErrNotConnected
	}

	c.log.Debug("running cypher", zap.String("query", cypher), zap.Int("params", len(params)))

	return c.runner.Run(ctx, cypher, params)
}

// Query executes a statement and flattens the records so node and
// relationship properties are accessible as "alias.property" keys
// (e.g. "n.name" for RETURN n).
func (c *Client) Query(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	records, err := c.Cypher(ctx, cypher, params)
	if err != nil {
		return nil, err
	}

	rows := make([]map[string]any, len(records))
	for i, record := range records {
		rows[i] = flattenRecord(record.Keys, record.Values)
	}

	return rows, nil
}

// RegisterModels derives schemas for the given models, issues the
// index and constraint statements their property options declare, and
// adds them to the registry. Models must embed norm.Node or
// norm.Relationship. Unregistered models may still be used for ad-hoc
// queries but cannot participate in relationship-property resolution.
func (c *Client) RegisterModels(ctx context.Context, models ...IModel) error {
	if c.runner == nil {
		return ErrNotConnected
	}

	for _, m := range models {
		s, err := c.registry.schemaFor(reflect.TypeOf(m))
		if err != nil {
			return err
		}

		for _, stmt := range s.schemaStatements() {
			if _, err := c.Cypher(ctx, stmt, nil); err != nil {
				return fmt.Errorf("norm: applying schema for model %s: %w", s.name, err)
			}
		}

		c.registry.register(s)
		c.log.Debug("registered model", zap.String("model", s.name))
	}

	return nil
}

// schemaStatements derives the CREATE CONSTRAINT / CREATE INDEX
// statements for a schema's property options.
func (s *schema) schemaStatements() []string {
	var stmts []string

	addNode := func(label string, p property) {
		ident := schemaName(label, p.name)

		if p.unique {
			stmts = append(stmts, fmt.Sprintf(
				"CREATE CONSTRAINT %s_unique IF NOT EXISTS FOR (n:%s) REQUIRE n.%s IS UNIQUE",
				ident, label, p.name,
			))
		}

		if p.rangeIndex {
			stmts = append(stmts, fmt.Sprintf(
				"CREATE INDEX %s_range IF NOT EXISTS FOR (n:%s) ON (n.%s)", ident, label, p.name,
			))
		}

		if p.textIndex {
			stmts = append(stmts, fmt.Sprintf(
				"CREATE TEXT INDEX %s_text IF NOT EXISTS FOR (n:%s) ON (n.%s)", ident, label, p.name,
			))
		}

		if p.pointIndex {
			stmts = append(stmts, fmt.Sprintf(
				"CREATE POINT INDEX %s_point IF NOT EXISTS FOR (n:%s) ON (n.%s)", ident, label, p.name,
			))
		}
	}

	addRel := func(relType string, p property) {
		ident := schemaName(relType, p.name)

		if p.unique {
			stmts = append(stmts, fmt.Sprintf(
				"CREATE CONSTRAINT %s_unique IF NOT EXISTS FOR ()-[r:%s]-() REQUIRE r.%s IS UNIQUE",
				ident, relType, p.name,
			))
		}

		if p.rangeIndex {
			stmts = append(stmts, fmt.Sprintf(
				"CREATE INDEX %s_range IF NOT EXISTS FOR ()-[r:%s]-() ON (r.%s)", ident, relType, p.name,
			))
		}

		if p.textIndex {
			stmts = append(stmts, fmt.Sprintf(
				"CREATE TEXT INDEX %s_text IF NOT EXISTS FOR ()-[r:%s]-() ON (r.%s)", ident, relType, p.name,
			))
		}

		if p.pointIndex {
			stmts = append(stmts, fmt.Sprintf(
				"CREATE POINT INDEX %s_point IF NOT EXISTS FOR ()-[r:%s]-() ON (r.%s)", ident, relType, p.name,
			))
		}
	}

	for _, p := range s.properties {
		if s.kind == kindNode {
			for _, label := range s.labels {
				addNode(label, p)
			}
		} else {
			addRel(s.relType, p)
		}
	}

	return stmts
}

// schemaName builds a constraint/index name from a label and property,
// keeping only characters valid in schema identifiers.
func schemaName(label, prop string) string {
	sanitize := func(s string) string {
		var sb strings.Builder

		for _, r := range s {
			switch {
			case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
				sb.WriteRune(r)
			default:
				sb.WriteByte('_')
			}
		}

		return sb.String()
	}

	return "norm_" + sanitize(label) + "_" + sanitize(prop)
}

// DropConstraints drops every constraint in the database. Intended for
// test environments.
func (c *Client) DropConstraints(ctx context.Context) error {
	rows, err := c.Query(ctx, "SHOW CONSTRAINTS YIELD name", nil)
	if err != nil {
		return err
	}

	for _, row := range rows {
		name, ok := row["name"].(string)
		if !ok {
			continue
		}

		if _, err := c.Cypher(ctx, fmt.Sprintf("DROP CONSTRAINT %s IF EXISTS", name), nil); err != nil {
			return err
		}
	}

	return nil
}

// DropIndexes drops every index in the database. Intended for test
// environments.
func (c *Client) DropIndexes(ctx context.Context) error {
	rows, err := c.Query(ctx, "SHOW INDEXES YIELD name, type WHERE type <> 'LOOKUP' RETURN name", nil)
	if err != nil {
		return err
	}

	for _, row := range rows {
		name, ok := row["name"].(string)
		if !ok {
			continue
		}

		if _, err := c.Cypher(ctx, fmt.Sprintf("DROP INDEX %s IF EXISTS", name), nil); err != nil {
			return err
		}
	}

	return nil
}

// DropNodes deletes every node and relationship. Intended for test
// environments.
func (c *Client) DropNodes(ctx context.Context) error {
	_, err := c.Cypher(ctx, "MATCH (n) DETACH DELETE n", nil)

	return err
}

// validateModel runs struct validation and the schema's check
// expressions. Failures surface as *ValidationError.
func (c *Client) validateModel(s *schema, m IModel) error {
	if err := c.validate.Struct(m); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return &ValidationError{Reason: "model " + s.name + " failed validation", Err: err}
		}

		return err
	}

	if len(s.checks) == 0 {
		return nil
	}

	props, err := s.deflate(m)
	if err != nil {
		return err
	}

	env := map[string]any(props)

	for _, check := range s.checks {
		ok, err := expr.Run(check.program, env)
		if err != nil {
			return &ValidationError{Reason: "check " + check.src + " failed to evaluate", Err: err}
		}

		if pass, _ := ok.(bool); !pass {
			return &ValidationError{Reason: "model " + s.name + " failed check: " + check.src}
		}
	}

	return nil
}

// runHooks executes hooks in registration order, aborting on the first
// error.
func runHooks(ctx context.Context, hooks []Hook, subject any) error {
	for _, hook := range hooks {
		if err := hook(ctx, subject); err != nil {
			return err
		}
	}

	return nil
}

// sortedPropNames returns property names in deterministic order for
// SET clause generation.
func sortedPropNames(props map[string]any) []string {
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// flattenRecord converts one result record into a flat map. Nodes and
// relationships are expanded so their properties are accessible as
// "alias.property".
func flattenRecord(keys []string, values []any) map[string]any {
	result := make(map[string]any)

	for i, key := range keys {
		flattenValue(result, key, values[i])
	}

	return result
}

func flattenValue(result map[string]any, key string, value any) {
	switch v := value.(type) {
	case dbtype.Node:
		for prop, propVal := range v.Props {
			result[key+"."+prop] = propVal
		}

		result[key+".labels"] = v.Labels
		result[key+".elementId"] = v.ElementId

	case dbtype.Relationship:
		for prop, propVal := range v.Props {
			result[key+"."+prop] = propVal
		}

		result[key+".type"] = v.Type
		result[key+".elementId"] = v.ElementId

	case dbtype.Path:
		result[key+".nodes"] = v.Nodes
		result[key+".relationships"] = v.Relationships

	case map[string]any:
		for k, val := range v {
			result[key+"."+k] = val
		}

	default:
		result[key] = v
	}
}

// nodePattern renders the match pattern for a schema, e.g. "(n:User)".
func (s *schema) nodePattern(ref string) string {
	return query.NodePattern(ref, s.labels)
}

// matchPattern renders the pattern used to address an existing entity
// of this schema by element id.
func (s *schema) matchPattern(ref string) string {
	if s.kind == kindNode {
		return s.nodePattern(ref)
	}

	return "()-[" + ref + ":" + s.relType + "]->()"
}
