package norm

import (
	"errors"

	"github.com/rlch/norm/query"
)

// Sentinel errors.
var (
	// ErrNotConnected is returned when an operation requires a live
	// database connection and the client has none.
	ErrNotConnected = errors.New("norm: client is not connected to a database")

	// ErrConfigNotFound is returned when no .norm.yaml is found.
	ErrConfigNotFound = errors.New("norm: no .norm.yaml found")

	// ErrInstanceNotHydrated is returned when a lifecycle method other
	// than create is called on an instance that was never persisted.
	ErrInstanceNotHydrated = errors.New("norm: instance has not been hydrated")

	// ErrInstanceDestroyed is returned when a lifecycle method other
	// than create is called on an instance whose entity was deleted.
	ErrInstanceDestroyed = errors.New("norm: instance has been destroyed")

	// ErrInstanceAlreadyCreated is returned when create is called on an
	// instance that is already backed by a live entity.
	ErrInstanceAlreadyCreated = errors.New("norm: instance was already created")

	// ErrUnregisteredModel is returned when relationship-property
	// resolution references a model that was not registered.
	ErrUnregisteredModel = errors.New("norm: model is not registered with the client")

	// ErrInvalidTargetNode is returned when a relationship property
	// receives a target node of the wrong model type.
	ErrInvalidTargetNode = errors.New("norm: target node is not of the declared model type")

	// ErrReservedProperty is returned at registration time when a model
	// declares a property name reserved for internal use.
	ErrReservedProperty = errors.New("norm: property name is reserved for internal use")

	// ErrNoResults is returned when a write was expected to return the
	// affected entity but did not.
	ErrNoResults = errors.New("norm: query was expected to return a result but did not")
)

// Error types shared with the query package, aliased so the whole
// taxonomy is importable from the root package.
type (
	// ValidationError reports a field constraint or filter-shape violation.
	ValidationError = query.ValidationError

	// UnsupportedFilterError reports an unknown filter operator.
	UnsupportedFilterError = query.UnsupportedFilterError
)
