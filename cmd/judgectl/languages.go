package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v3"
)

func languagesCommand() *cli.Command {
	return &cli.Command{
		Name:  "languages",
		Usage: "list the supported languages",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			exec, err := newExecutor(cmd)
			if err != nil {
				return err
			}
			defer exec.Close()

			profiles, err := exec.Languages(ctx)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tVERSION")
			for _, p := range profiles {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", p.ID, p.Name, p.Version)
			}
			return tw.Flush()
		},
	}
}
