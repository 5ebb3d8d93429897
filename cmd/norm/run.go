package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/rlch/norm"
)

// Run command errors.
var (
	ErrNoConnectionURI = errors.New("no connection URI specified (use --uri or .norm.yaml)")
	ErrNoQuery         = errors.New("no query given")
)

func pingCommand() *cli.Command {
	return &cli.Command{
		Name:   "ping",
		Usage:  "Verify database connectivity",
		Flags:  connectionFlags(),
		Action: runPing,
	}
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Run a Cypher statement and print rows as JSON",
		ArgsUsage: "<cypher>",
		Flags: append(connectionFlags(),
			&cli.StringFlag{
				Name:  "params",
				Usage: "query parameters as a JSON object",
			},
		),
		Action: runQuery,
	}
}

func runPing(ctx context.Context, cmd *cli.Command) error {
	client, err := connect(ctx, cmd)
	if err != nil {
		return err
	}
	defer client.Close(ctx)

	fmt.Println("ok")

	return nil
}

func runQuery(ctx context.Context, cmd *cli.Command) error {
	cypher := cmd.Args().First()
	if cypher == "" {
		return ErrNoQuery
	}

	var params map[string]any
	if raw := cmd.String("params"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &params); err != nil {
			return fmt.Errorf("invalid --params: %w", err)
		}
	}

	client, err := connect(ctx, cmd)
	if err != nil {
		return err
	}
	defer client.Close(ctx)

	rows, err := client.Query(ctx, cypher, params)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	return enc.Encode(rows)
}

// connect resolves connection settings from flags, then the nearest
// .norm.yaml, and opens a client.
func connect(ctx context.Context, cmd *cli.Command) (*norm.Client, error) {
	cfg := &norm.Config{
		URI:      cmd.String("uri"),
		Username: cmd.String("username"),
		Password: cmd.String("password"),
		Database: cmd.String("database"),
	}

	if cfg.URI == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}

		loaded, err := norm.LoadConfig(wd)
		if err != nil {
			if errors.Is(err, norm.ErrConfigNotFound) {
				return nil, ErrNoConnectionURI
			}

			return nil, err
		}

		if cfg.Username == "" {
			cfg.Username = loaded.Username
		}

		if cfg.Password == "" {
			cfg.Password = loaded.Password
		}

		if cfg.Database == "" {
			cfg.Database = loaded.Database
		}

		cfg.URI = loaded.URI
	}

	var opts []norm.Option
	if cfg.Database != "" {
		opts = append(opts, norm.WithDatabase(cfg.Database))
	}

	return norm.Connect(ctx, cfg.URI, cfg.AuthToken(), opts...)
}
