package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/codearena/judge/types"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/urfave/cli/v3"
)

var (
	passLabel = color.New(color.FgGreen, color.Bold).SprintFunc()
	failLabel = color.New(color.FgRed, color.Bold).SprintFunc()
	errLabel  = color.New(color.FgYellow, color.Bold).SprintFunc()
	faint     = color.New(color.Faint).SprintFunc()
)

func runCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "judge a source file against test cases",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "lang",
				Aliases: []string{"l"},
				Usage:   "language of the file, inferred from the extension when empty",
			},
			&cli.StringSliceFlag{
				Name:    "case",
				Aliases: []string{"c"},
				Usage:   "test case as input=output, e.g. '[1,2]=3'",
			},
			&cli.StringFlag{
				Name:  "cases",
				Usage: "json file holding an array of {input, output} test cases",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "print the verdict as json",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return cli.Exit("expected exactly one source file", 2)
			}
			file := cmd.Args().First()
			req, err := buildRequest(file, cmd.String("lang"), cmd.StringSlice("case"), cmd.String("cases"))
			if err != nil {
				return err
			}
			exec, err := newExecutor(cmd)
			if err != nil {
				return err
			}
			defer exec.Close()

			v := exec.Execute(ctx, req)
			if cmd.Bool("json") {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(v); err != nil {
					return err
				}
			} else {
				printVerdict(os.Stdout, v)
			}
			if v.Status != types.StatusPassed {
				return cli.Exit("", 1)
			}
			return nil
		},
	}
}

func buildRequest(file, lang string, cases []string, casesFile string) (*types.ExecutionRequest, error) {
	src, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	if lang == "" {
		lang = inferLanguage(file)
	}
	if lang == "" {
		return nil, fmt.Errorf("cannot infer language of %s, use --lang", file)
	}
	tests := make([]types.TestCase, 0, len(cases))
	if casesFile != "" {
		b, err := os.ReadFile(casesFile)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(b, &tests); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", casesFile, err)
		}
	}
	for _, c := range cases {
		tc, err := parseCase(c)
		if err != nil {
			return nil, err
		}
		tests = append(tests, tc)
	}
	return &types.ExecutionRequest{
		RequestID:  uuid.NewString(),
		SourceCode: string(src),
		Language:   types.ParseLanguage(lang),
		TestCases:  tests,
	}, nil
}

func inferLanguage(file string) string {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".js", ".mjs", ".cjs":
		return string(types.LanguageJavaScript)
	case ".java":
		return string(types.LanguageJava)
	}
	return ""
}

// parseCase splits input=output at the last '='
func parseCase(s string) (types.TestCase, error) {
	i := strings.LastIndexByte(s, '=')
	if i <= 0 || i == len(s)-1 {
		return types.TestCase{}, fmt.Errorf("invalid test case %q, expected input=output", s)
	}
	return types.TestCase{
		Input:  strings.TrimSpace(s[:i]),
		Output: strings.TrimSpace(s[i+1:]),
	}, nil
}

func printVerdict(w io.Writer, v types.Verdict) {
	for i, r := range v.Results {
		label := passLabel("PASS")
		if !r.Passed {
			label = failLabel("FAIL")
		}
		fmt.Fprintf(w, "%s #%d %s\n", label, i+1, r.Input)
		if !r.Passed {
			fmt.Fprintf(w, "    expected %s\n    actual   %s\n", r.Expected, r.Actual)
		}
	}
	switch v.Status {
	case types.StatusError:
		fmt.Fprintf(w, "%s [%s] %s\n", errLabel("ERROR"), v.Kind, v.Message)
		if v.RawOutput != "" {
			fmt.Fprintln(w, faint(v.RawOutput))
		}
	case types.StatusPassed:
		fmt.Fprintf(w, "%s %d/%d passed\n", passLabel("PASSED"), v.PassedCount(), len(v.Results))
	default:
		fmt.Fprintf(w, "%s %d/%d passed\n", failLabel("FAILED"), v.PassedCount(), len(v.Results))
	}
}
