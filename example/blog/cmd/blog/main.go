// Command blog seeds a small authored-posts graph and queries it back,
// as a walkthrough of the norm API.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/rlch/norm"
	"github.com/rlch/norm/example/blog"
	"github.com/rlch/norm/query"
)

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	uri := os.Getenv("NORM_URI")
	if uri == "" {
		uri = "bolt://localhost:7687"
	}

	auth := neo4j.NoAuth()
	if user := os.Getenv("NORM_USER"); user != "" {
		auth = neo4j.BasicAuth(user, os.Getenv("NORM_PASS"), "")
	}

	log, err := zap.NewDevelopment()
	if err != nil {
		return err
	}

	client, err := norm.Connect(ctx, uri, auth, norm.WithLogger(log))
	if err != nil {
		return err
	}
	defer client.Close(ctx)

	if err := client.RegisterModels(ctx, &blog.User{}, &blog.Post{}, &blog.Authored{}); err != nil {
		return err
	}

	alice := &blog.User{ID: uuid.NewString(), Name: "Alice", Email: "alice@example.com"}
	if err := client.Create(ctx, alice); err != nil {
		return err
	}

	post := &blog.Post{ID: uuid.NewString(), Title: "Modeling graphs in Go", Content: "..."}
	if err := client.Create(ctx, post); err != nil {
		return err
	}

	authored := &blog.Authored{At: time.Now().Unix()}
	if err := client.Relate(ctx, alice, "posts", post, authored); err != nil {
		return err
	}

	posts, err := norm.RelatedNodes[blog.Post](ctx, client, alice, "posts",
		query.Contains("title", "graphs"), nil)
	if err != nil {
		return err
	}

	for _, p := range posts {
		fmt.Printf("%s wrote %q\n", alice.Name, p.Title)
	}

	total, err := norm.Count[blog.Post](ctx, client, nil)
	if err != nil {
		return err
	}

	fmt.Printf("%d posts in total\n", total)

	return nil
}
