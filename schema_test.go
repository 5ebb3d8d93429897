package norm

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type AdultDeveloper struct {
	Node

	Name string
}

type WorksAt struct {
	Relationship

	Since int `json:"since"`
}

type taggedModel struct {
	Node `neo4j:"Person,Employee"`

	FullName string `neo4j:"full_name" norm:"unique"`
	Email    string `json:"email" norm:"index,text_index"`
	Secret   string `norm:"-"`
	Location string `norm:"point_index"`
}

type reservedModel struct {
	Node

	ID string `json:"element_id"`
}

func TestDeriveSchemaLabels(t *testing.T) {
	t.Parallel()

	t.Run("from tag", func(t *testing.T) {
		t.Parallel()

		s, err := deriveSchema(reflect.TypeOf(&taggedModel{}))
		require.NoError(t, err)
		assert.Equal(t, []string{"Person", "Employee"}, s.labels)
	})

	t.Run("pascal case fallback", func(t *testing.T) {
		t.Parallel()

		s, err := deriveSchema(reflect.TypeOf(&AdultDeveloper{}))
		require.NoError(t, err)
		assert.Equal(t, []string{"Adult", "Developer"}, s.labels)
	})

	t.Run("settings override", func(t *testing.T) {
		t.Parallel()

		s, err := deriveSchema(reflect.TypeOf(&Developer{}))
		require.NoError(t, err)
		assert.Equal(t, []string{"Developer"}, s.labels)
		assert.Contains(t, s.relProps, "coffee")
	})
}

func TestDeriveSchemaRelationshipType(t *testing.T) {
	t.Parallel()

	t.Run("upper snake fallback", func(t *testing.T) {
		t.Parallel()

		s, err := deriveSchema(reflect.TypeOf(&WorksAt{}))
		require.NoError(t, err)
		assert.Equal(t, kindRelationship, s.kind)
		assert.Equal(t, "WORKS_AT", s.relType)
	})

	t.Run("from tag", func(t *testing.T) {
		t.Parallel()

		s, err := deriveSchema(reflect.TypeOf(&Drinks{}))
		require.NoError(t, err)
		assert.Equal(t, "DRINKS", s.relType)
	})
}

func TestDeriveSchemaProperties(t *testing.T) {
	t.Parallel()

	s, err := deriveSchema(reflect.TypeOf(&taggedModel{}))
	require.NoError(t, err)

	names := make([]string, 0, len(s.properties))
	for _, p := range s.properties {
		names = append(names, p.name)
	}

	assert.Equal(t, []string{"full_name", "email", "location"}, names)

	fullName, ok := s.propertyByName("full_name")
	require.True(t, ok)
	assert.True(t, fullName.unique)

	email, ok := s.propertyByName("email")
	require.True(t, ok)
	assert.True(t, email.rangeIndex)
	assert.True(t, email.textIndex)

	location, ok := s.propertyByName("location")
	require.True(t, ok)
	assert.True(t, location.pointIndex)
}

func TestDeriveSchemaErrors(t *testing.T) {
	t.Parallel()

	t.Run("missing base embed", func(t *testing.T) {
		t.Parallel()

		type plain struct{ Name string }

		_, err := deriveSchema(reflect.TypeOf(&plain{}))
		require.Error(t, err)
	})

	t.Run("reserved property name", func(t *testing.T) {
		t.Parallel()

		_, err := deriveSchema(reflect.TypeOf(&reservedModel{}))
		require.ErrorIs(t, err, ErrReservedProperty)
	})

	t.Run("unknown tag option", func(t *testing.T) {
		t.Parallel()

		type badTag struct {
			Node

			Name string `norm:"uniq"`
		}

		_, err := deriveSchema(reflect.TypeOf(&badTag{}))
		require.Error(t, err)
	})

	t.Run("property name unusable as a parameter", func(t *testing.T) {
		t.Parallel()

		type hyphenated struct {
			Node

			FirstName string `json:"first-name"`
		}

		_, err := deriveSchema(reflect.TypeOf(&hyphenated{}))
		require.ErrorContains(t, err, "first-name")

		type digitLead struct {
			Node

			Rank string `neo4j:"1rank"`
		}

		_, err = deriveSchema(reflect.TypeOf(&digitLead{}))
		require.ErrorContains(t, err, "1rank")
	})
}

func TestSchemaStatements(t *testing.T) {
	t.Parallel()

	s, err := deriveSchema(reflect.TypeOf(&taggedModel{}))
	require.NoError(t, err)

	stmts := s.schemaStatements()

	assert.Contains(t, stmts,
		"CREATE CONSTRAINT norm_Person_full_name_unique IF NOT EXISTS FOR (n:Person) REQUIRE n.full_name IS UNIQUE")
	assert.Contains(t, stmts,
		"CREATE TEXT INDEX norm_Employee_email_text IF NOT EXISTS FOR (n:Employee) ON (n.email)")
	assert.Contains(t, stmts,
		"CREATE POINT INDEX norm_Person_location_point IF NOT EXISTS FOR (n:Person) ON (n.location)")
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	r := NewRegistry()

	s, err := r.schemaFor(reflect.TypeOf(&Developer{}))
	require.NoError(t, err)
	assert.False(t, s.registered)

	_, err = r.registered("Developer")
	require.ErrorIs(t, err, ErrUnregisteredModel)

	r.register(s)

	got, err := r.registered("Developer")
	require.NoError(t, err)
	assert.Same(t, s, got)

	again, err := r.schemaFor(reflect.TypeOf(&Developer{}))
	require.NoError(t, err)
	assert.Same(t, s, again)
}
