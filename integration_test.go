package norm_test

import (
	"context"
	"os"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rlch/norm"
	"github.com/rlch/norm/query"
)

type Engineer struct {
	norm.Node `neo4j:"Engineer"`

	Name string `json:"name" validate:"required" norm:"unique"`
	Age  int    `json:"age" validate:"gte=0"`
}

type Beverage struct {
	norm.Node `neo4j:"Beverage"`

	Flavor string `json:"flavor"`
}

type Consumes struct {
	norm.Relationship `neo4j:"CONSUMES"`

	Likes bool `json:"likes"`
}

func (Engineer) NodeSettings() norm.NodeSettings {
	return norm.NodeSettings{
		RelationshipProperties: map[string]norm.RelationshipPropertySpec{
			"beverages": {
				Target:        "Beverage",
				Relationship:  "Consumes",
				Direction:     norm.Outgoing,
				AllowMultiple: true,
			},
		},
	}
}

// newIntegrationClient connects to the database named by NORM_TEST_URI
// and wipes it. Tests are skipped when the variable is unset.
func newIntegrationClient(t *testing.T) *norm.Client {
	t.Helper()

	uri := os.Getenv("NORM_TEST_URI")
	if uri == "" {
		t.Skip("NORM_TEST_URI not set")
	}

	ctx := context.Background()

	auth := neo4j.NoAuth()
	if user := os.Getenv("NORM_TEST_USER"); user != "" {
		auth = neo4j.BasicAuth(user, os.Getenv("NORM_TEST_PASS"), "")
	}

	c, err := norm.Connect(ctx, uri, auth)
	require.NoError(t, err)

	t.Cleanup(func() { _ = c.Close(ctx) })

	require.NoError(t, c.DropNodes(ctx))
	require.NoError(t, c.RegisterModels(ctx, &Engineer{}, &Beverage{}, &Consumes{}))

	return c
}

func TestIntegrationLifecycle(t *testing.T) {
	c := newIntegrationClient(t)
	ctx := context.Background()

	dev := &Engineer{Name: "Alice", Age: 30}
	require.NoError(t, c.Create(ctx, dev))
	assert.True(t, dev.Alive())

	dev.Age = 31
	require.NoError(t, c.Update(ctx, dev))

	require.NoError(t, c.Refresh(ctx, dev))
	assert.Equal(t, 31, dev.Age)

	found, err := norm.FindOne[Engineer](ctx, c, query.Eq("name", "Alice"), nil)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, dev.ElementID(), found.ElementID())

	require.NoError(t, c.Delete(ctx, dev))
	assert.True(t, dev.Destroyed())

	gone, err := norm.FindOne[Engineer](ctx, c, query.Eq("name", "Alice"), nil)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestIntegrationRelationships(t *testing.T) {
	c := newIntegrationClient(t)
	ctx := context.Background()

	dev := &Engineer{Name: "Alice", Age: 30}
	require.NoError(t, c.Create(ctx, dev))

	espresso := &Beverage{Flavor: "espresso"}
	latte := &Beverage{Flavor: "latte"}
	require.NoError(t, c.Create(ctx, espresso))
	require.NoError(t, c.Create(ctx, latte))

	rel := &Consumes{Likes: true}
	require.NoError(t, c.Relate(ctx, dev, "beverages", espresso, rel))
	assert.Equal(t, dev.ElementID(), rel.StartElementID())

	require.NoError(t, c.Relate(ctx, dev, "beverages", latte, nil))

	drinks, err := norm.RelatedNodes[Beverage](ctx, c, dev, "beverages", nil,
		&query.Options{Sort: []query.Sort{{Property: "flavor"}}})
	require.NoError(t, err)
	require.Len(t, drinks, 2)
	assert.Equal(t, "espresso", drinks[0].Flavor)

	count, err := c.Unrelate(ctx, dev, "beverages", espresso)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	remaining, err := norm.RelatedNodes[Beverage](ctx, c, dev, "beverages", nil, nil)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "latte", remaining[0].Flavor)
}

func TestIntegrationCollections(t *testing.T) {
	c := newIntegrationClient(t)
	ctx := context.Background()

	for _, e := range []*Engineer{
		{Name: "Alice", Age: 30},
		{Name: "Bob", Age: 25},
		{Name: "Carol", Age: 41},
	} {
		require.NoError(t, c.Create(ctx, e))
	}

	adults, err := norm.FindMany[Engineer](ctx, c, query.Gte("age", 30),
		&query.Options{Sort: []query.Sort{{Property: "age"}}})
	require.NoError(t, err)
	require.Len(t, adults, 2)
	assert.Equal(t, "Alice", adults[0].Name)

	updated, err := norm.UpdateOne[Engineer](ctx, c,
		map[string]any{"age": 26}, query.Eq("name", "Bob"), true)
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, 26, updated.Age)

	total, err := norm.Count[Engineer](ctx, c, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	deleted, err := norm.DeleteMany[Engineer](ctx, c, query.Lt("age", 30))
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
}

func TestIntegrationFindConnectedNodes(t *testing.T) {
	c := newIntegrationClient(t)
	ctx := context.Background()

	alice := &Engineer{Name: "Alice", Age: 30}
	require.NoError(t, c.Create(ctx, alice))

	espresso := &Beverage{Flavor: "espresso"}
	require.NoError(t, c.Create(ctx, espresso))
	require.NoError(t, c.Relate(ctx, alice, "beverages", espresso, nil))

	hop := &query.MultiHop{
		MinHops:       1,
		MaxHops:       2,
		Relationships: []query.RelConstraint{{Type: "CONSUMES"}},
	}

	reached, err := norm.FindConnectedNodes[Beverage](ctx, c, alice, hop, nil)
	require.NoError(t, err)
	require.Len(t, reached, 1)
	assert.Equal(t, "espresso", reached[0].Flavor)
}
