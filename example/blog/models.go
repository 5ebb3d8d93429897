// Package blog holds the models for the example application.
package blog

import "github.com/rlch/norm"

type User struct {
	norm.Node `neo4j:"User"`

	ID    string `json:"id" norm:"unique"`
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email" norm:"index"`
}

type Post struct {
	norm.Node `neo4j:"Post"`

	ID      string `json:"id" norm:"unique"`
	Title   string `json:"title" validate:"required"`
	Content string `json:"content"`
}

type Authored struct {
	norm.Relationship `neo4j:"AUTHORED"`

	At int64 `json:"at"`
}

func (User) NodeSettings() norm.NodeSettings {
	return norm.NodeSettings{
		RelationshipProperties: map[string]norm.RelationshipPropertySpec{
			"posts": {
				Target:        "Post",
				Relationship:  "Authored",
				Direction:     norm.Outgoing,
				AllowMultiple: true,
			},
		},
	}
}
