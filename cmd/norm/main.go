// Command norm is a small console for norm-managed databases: it
// verifies connectivity and runs ad-hoc Cypher with flattened JSON
// output. Connection settings come from flags, environment variables,
// or the nearest .norm.yaml.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:  "norm",
		Usage: "Neo4j model console",
		Commands: []*cli.Command{
			pingCommand(),
			runCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func connectionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "uri",
			Usage:   "database connection URI",
			Sources: cli.EnvVars("NORM_URI"),
		},
		&cli.StringFlag{
			Name:    "username",
			Aliases: []string{"u"},
			Usage:   "database username",
			Sources: cli.EnvVars("NORM_USER"),
		},
		&cli.StringFlag{
			Name:    "password",
			Aliases: []string{"p"},
			Usage:   "database password",
			Sources: cli.EnvVars("NORM_PASS"),
		},
		&cli.StringFlag{
			Name:    "database",
			Aliases: []string{"d"},
			Usage:   "database name (overrides config)",
			Sources: cli.EnvVars("NORM_DATABASE"),
		},
	}
}
