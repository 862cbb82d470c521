package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/codearena/judge/behave"
	"github.com/urfave/cli/v3"
)

func behaveCommand() *cli.Command {
	return &cli.Command{
		Name:      "behave",
		Usage:     "run judging scenarios from a TOML file",
		ArgsUsage: "<scenarios.toml>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return cli.Exit("expected exactly one scenario file", 2)
			}
			cases, err := behave.Load(cmd.Args().First())
			if err != nil {
				return err
			}
			exec, err := newExecutor(cmd)
			if err != nil {
				return err
			}
			defer exec.Close()

			outcomes := behave.Run(ctx, exec, cases, func(o behave.Outcome) {
				printOutcome(os.Stdout, o)
			})
			failed := summarize(os.Stdout, outcomes)
			if failed > 0 || len(outcomes) < len(cases) {
				return cli.Exit("", 1)
			}
			return nil
		},
	}
}

func printOutcome(w io.Writer, o behave.Outcome) {
	if o.OK() {
		fmt.Fprintf(w, "%s %s %s\n", passLabel("PASS"), o.Case.Name, faint(o.Duration.Round(time.Millisecond)))
		return
	}
	fmt.Fprintf(w, "%s %s %s\n", failLabel("FAIL"), o.Case.Name, faint(o.Duration.Round(time.Millisecond)))
	for _, m := range o.Mismatches {
		fmt.Fprintf(w, "    %s\n", m)
	}
}

func summarize(w io.Writer, outcomes []behave.Outcome) int {
	failed := 0
	for _, o := range outcomes {
		if !o.OK() {
			failed++
		}
	}
	label := passLabel("OK")
	if failed > 0 {
		label = failLabel("FAILED")
	}
	fmt.Fprintf(w, "%s %d scenarios, %d failed\n", label, len(outcomes), failed)
	return failed
}
