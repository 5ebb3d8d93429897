package norm

import (
	"context"
	"fmt"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
	"go.uber.org/zap"
)

// Developer is the standard node fixture.
type Developer struct {
	Node `neo4j:"Developer"`

	Name string `json:"name" validate:"required"`
	Age  int    `json:"age" validate:"gte=0"`
}

// Coffee is the standard relationship target fixture.
type Coffee struct {
	Node `neo4j:"Coffee"`

	Flavor string `json:"flavor"`
}

// Drinks is the standard relationship fixture.
type Drinks struct {
	Relationship `neo4j:"DRINKS"`

	Likes bool `json:"likes"`
}

func (Developer) NodeSettings() NodeSettings {
	return NodeSettings{
		RelationshipProperties: map[string]RelationshipPropertySpec{
			"coffee": {
				Target:        "Coffee",
				Relationship:  "Drinks",
				Direction:     Outgoing,
				AllowMultiple: true,
			},
			"favorite": {
				Target:       "Coffee",
				Relationship: "Drinks",
				Direction:    Outgoing,
			},
		},
	}
}

// capturedQuery records one statement the fake runner received.
type capturedQuery struct {
	cypher string
	params map[string]any
}

// fakeRunner returns canned record sets in order and captures every
// statement for assertion.
type fakeRunner struct {
	queries []capturedQuery
	results [][]*neo4j.Record
	err     error
}

func (f *fakeRunner) Run(_ context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error) {
	f.queries = append(f.queries, capturedQuery{cypher: cypher, params: params})

	if f.err != nil {
		return nil, f.err
	}

	if len(f.results) == 0 {
		return nil, nil
	}

	records := f.results[0]
	f.results = f.results[1:]

	return records, nil
}

func (f *fakeRunner) last(t *testing.T) capturedQuery {
	t.Helper()

	if len(f.queries) == 0 {
		t.Fatal("no queries were run")
	}

	return f.queries[len(f.queries)-1]
}

// newTestClient builds a client backed by the fake runner, bypassing
// the driver entirely.
func newTestClient(runner cypherRunner) *Client {
	return &Client{
		runner:   runner,
		registry: NewRegistry(),
		validate: validator.New(),
		log:      zap.NewNop(),
	}
}

// record wraps keyed values into a driver record.
func record(keys []string, values ...any) *neo4j.Record {
	return &neo4j.Record{Keys: keys, Values: values}
}

// devNode builds the driver-side representation of a Developer.
func devNode(elementID, name string, age int) dbtype.Node {
	return dbtype.Node{
		ElementId: elementID,
		Labels:    []string{"Developer"},
		Props:     map[string]any{"name": name, "age": int64(age)},
	}
}

// createDeveloper runs a fixture through Create against the fake
// runner so lifecycle tests start from an alive instance.
func createDeveloper(t *testing.T, c *Client, f *fakeRunner, name string, age int) *Developer {
	t.Helper()

	dev := &Developer{Name: name, Age: age}
	elementID := fmt.Sprintf("4:test:%d", len(f.queries))

	f.results = append(f.results, []*neo4j.Record{
		record([]string{"n"}, devNode(elementID, name, age)),
	})

	if err := c.Create(context.Background(), dev); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	return dev
}
