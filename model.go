package norm

import (
	"context"

	"github.com/rlch/norm/query"
)

// Direction describes which way a relationship property points
// relative to the node model declaring it.
type Direction = query.Direction

// Relationship directions.
const (
	Outgoing = query.Outgoing
	Incoming = query.Incoming
	Both     = query.Both
)

// Operation identifies a lifecycle or collection operation for hook
// registration.
type Operation string

// Operations hooks can attach to.
const (
	OpCreate     Operation = "create"
	OpUpdate     Operation = "update"
	OpDelete     Operation = "delete"
	OpRefresh    Operation = "refresh"
	OpFindOne    Operation = "find_one"
	OpFindMany   Operation = "find_many"
	OpUpdateOne  Operation = "update_one"
	OpUpdateMany Operation = "update_many"
	OpDeleteOne  Operation = "delete_one"
	OpDeleteMany Operation = "delete_many"
	OpCount      Operation = "count"
	OpRelate     Operation = "relate"
	OpUnrelate   Operation = "unrelate"

	OpFindConnected Operation = "find_connected_nodes"
)

// Hook is a callback invoked synchronously around a lifecycle
// operation. For instance-level operations the subject is the model
// instance. For collection-level pre hooks it is the update map on
// update operations and the model name otherwise; collection-level
// post hooks receive the operation's result. A hook error aborts the
// operation and propagates to the caller.
type Hook func(ctx context.Context, subject any) error

// NodeSettings is the per-model configuration of a node model.
type NodeSettings struct {
	// Labels overrides the labels derived from the struct tag or name.
	Labels []string

	// ExcludeFromExport lists property names omitted by [Export].
	ExcludeFromExport []string

	// PreHooks and PostHooks run in registration order around each
	// operation.
	PreHooks  map[Operation][]Hook
	PostHooks map[Operation][]Hook

	// Checks are expr-lang boolean expressions evaluated against the
	// deflated property map before create and update.
	Checks []string

	// RelationshipProperties declares named links to other node models.
	RelationshipProperties map[string]RelationshipPropertySpec
}

// RelationshipSettings is the per-model configuration of a
// relationship model.
type RelationshipSettings struct {
	// Type overrides the relationship type derived from the struct tag
	// or name.
	Type string

	// ExcludeFromExport lists property names omitted by [Export].
	ExcludeFromExport []string

	PreHooks  map[Operation][]Hook
	PostHooks map[Operation][]Hook

	Checks []string
}

// RelationshipPropertySpec describes one relationship property: a
// named link from the declaring node model to a target node model
// through a relationship model.
type RelationshipPropertySpec struct {
	// Target is the target node model's name.
	Target string

	// Relationship is the relationship model's name.
	Relationship string

	// Direction of the relationship from the declaring model.
	Direction Direction

	// AllowMultiple permits more than one relationship of this type
	// between the same two nodes. When false, relating twice merges
	// onto the existing relationship.
	AllowMultiple bool
}

// HasNodeSettings is implemented by node models that carry settings.
type HasNodeSettings interface {
	NodeSettings() NodeSettings
}

// HasRelationshipSettings is implemented by relationship models that
// carry settings.
type HasRelationshipSettings interface {
	RelationshipSettings() RelationshipSettings
}

// modelState is the lifecycle state shared by nodes and relationships.
// An instance is new until it has an element id, alive once hydrated,
// and destroyed after its backing entity is deleted.
type modelState struct {
	elementID string
	destroyed bool
	snapshot  map[string]any
}

func (s *modelState) state() *modelState { return s }

// ElementID returns the database-assigned element id, or the empty
// string for instances that have not been created.
func (s *modelState) ElementID() string { return s.elementID }

// Alive reports whether the instance is backed by a live entity.
func (s *modelState) Alive() bool { return s.elementID != "" && !s.destroyed }

// Destroyed reports whether the backing entity has been deleted.
func (s *modelState) Destroyed() bool { return s.destroyed }

// hydrate marks the instance alive with the given identity and
// property snapshot, clearing the modified set.
func (s *modelState) hydrate(elementID string, snapshot map[string]any) {
	s.elementID = elementID
	s.destroyed = false
	s.snapshot = snapshot
}

// IModel is the interface shared by node and relationship instances.
// It is satisfied by embedding [Node] or [Relationship].
type IModel interface {
	ElementID() string
	Alive() bool
	Destroyed() bool

	state() *modelState
}

// INode is satisfied by structs embedding [Node].
type INode interface {
	IModel

	isNode()
}

// IRelationship is satisfied by structs embedding [Relationship].
type IRelationship interface {
	IModel

	relBase() *Relationship

	// StartElementID returns the element id of the relationship's
	// start node, once hydrated.
	StartElementID() string

	// EndElementID returns the element id of the relationship's end
	// node, once hydrated.
	EndElementID() string
}

// Node is the base type for node models. Embed it and declare labels
// in its struct tag:
//
//	type Developer struct {
//		norm.Node `neo4j:"Developer"`
//
//		Name string `json:"name" validate:"required"`
//		Age  int    `json:"age" validate:"gte=0"`
//	}
//
// Without a tag, the labels are derived from the struct name.
type Node struct {
	modelState
}

func (Node) isNode() {}

// Relationship is the base type for relationship models. Embed it and
// declare the relationship type in its struct tag:
//
//	type WorksAt struct {
//		norm.Relationship `neo4j:"WORKS_AT"`
//
//		Since int `json:"since"`
//	}
type Relationship struct {
	modelState

	startElementID string
	endElementID   string
}

func (r *Relationship) relBase() *Relationship { return r }

// StartElementID returns the element id of the start node.
func (r *Relationship) StartElementID() string { return r.startElementID }

// EndElementID returns the element id of the end node.
func (r *Relationship) EndElementID() string { return r.endElementID }
