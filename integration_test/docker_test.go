//go:build integration

package integration_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/codearena/judge/behave"
	"github.com/codearena/judge/harness"
	"github.com/codearena/judge/judge"
	"github.com/codearena/judge/language"
	"github.com/codearena/judge/sandbox"
	"github.com/codearena/judge/workspace"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"go.uber.org/zap/zaptest"
)

func newDocker(t *testing.T) (*client.Client, *sandbox.DockerRuntime) {
	cli, err := sandbox.NewDockerClient()
	if err != nil {
		t.Skipf("docker client: %v", err)
	}
	rt := sandbox.NewDockerRuntime(cli, sandbox.DockerConfig{Logger: zaptest.NewLogger(t)})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rt.Ping(ctx); err != nil {
		t.Skipf("docker daemon unavailable: %v", err)
	}
	return cli, rt
}

// TestDockerScenarios runs the behaviour scenarios against real containers
// and checks nothing is left behind
func TestDockerScenarios(t *testing.T) {
	cli, rt := newDocker(t)
	logger := zaptest.NewLogger(t)

	root := t.TempDir()
	workspaces, err := workspace.NewManager(root, logger)
	if err != nil {
		t.Fatal(err)
	}
	runner := sandbox.NewRunner(sandbox.Config{
		Runtime: rt,
		Slots:   2,
		Logger:  logger,
	})
	c := judge.NewCoordinator(judge.Config{
		Synthesizer: harness.New(language.Default()),
		Runner:      runner,
		Workspaces:  workspaces,
		Logger:      logger,
	})

	cases, err := behave.Load("../behave/testdata/scenarios.toml")
	if err != nil {
		t.Fatal(err)
	}
	for _, o := range behave.Run(context.Background(), c, cases, nil) {
		if !o.OK() {
			t.Errorf("%s: %v (verdict %v)", o.Case.Name, o.Mismatches, o.Verdict)
		}
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("workspace root not empty: %v", entries)
	}

	list, err := cli.ContainerList(context.Background(), container.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("name", runner.Prefix())),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 0 {
		t.Errorf("%d containers left behind", len(list))
	}
}
