// Command judgectl judges submissions from the command line, either with a
// local sandbox or against a running arena-judge gRPC endpoint.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/codearena/judge/cmd/arena-judge/version"
	"github.com/fatih/color"
	"github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:    "judgectl",
		Usage:   "judge JavaScript and Java submissions against test cases",
		Version: version.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "runtime",
				Usage: "sandbox runtime, local or docker",
				Value: "local",
			},
			&cli.StringFlag{
				Name:  "dir",
				Usage: "root directory of the workspaces",
			},
			&cli.StringFlag{
				Name:  "languages",
				Usage: "language profile overrides (yaml)",
			},
			&cli.DurationFlag{
				Name:  "compile-timeout",
				Usage: "default compile step timeout",
				Value: 10 * time.Second,
			},
			&cli.DurationFlag{
				Name:  "run-timeout",
				Usage: "default run step timeout",
				Value: 5 * time.Second,
			},
			&cli.StringFlag{
				Name:    "server",
				Usage:   "gRPC address of an arena-judge server, judge remotely when set",
				Sources: cli.EnvVars("AJ_SERVER"),
			},
			&cli.StringFlag{
				Name:    "token",
				Usage:   "bearer token of the server",
				Sources: cli.EnvVars("AJ_AUTH_TOKEN"),
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "print debug logs",
			},
		},
		Commands: []*cli.Command{
			runCommand(),
			behaveCommand(),
			languagesCommand(),
		},
	}
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error:"), err)
		os.Exit(1)
	}
}
