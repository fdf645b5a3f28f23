package internal_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/moby/moby/client"
	"github.com/stretchr/testify/require"

	"github.com/ryanmoran/testbed/config"
	"github.com/ryanmoran/testbed/fixtures"
	"github.com/ryanmoran/testbed/internal"
	"github.com/ryanmoran/testbed/internal/docker"
	"github.com/ryanmoran/testbed/lifecycle"
)

type stubDocker struct {
	running map[string]bool
}

func (s *stubDocker) ContainerCreate(ctx context.Context, options client.ContainerCreateOptions) (client.ContainerCreateResult, error) {
	if s.running[options.Name] {
		return client.ContainerCreateResult{}, errors.New("name already in use")
	}
	s.running[options.Name] = true
	return client.ContainerCreateResult{ID: options.Name}, nil
}

func (s *stubDocker) ContainerStart(ctx context.Context, containerID string, options client.ContainerStartOptions) (client.ContainerStartResult, error) {
	return client.ContainerStartResult{}, nil
}

func (s *stubDocker) ContainerStop(ctx context.Context, containerID string, options client.ContainerStopOptions) (client.ContainerStopResult, error) {
	return client.ContainerStopResult{}, nil
}

func (s *stubDocker) ContainerRemove(ctx context.Context, containerID string, options client.ContainerRemoveOptions) (client.ContainerRemoveResult, error) {
	delete(s.running, containerID)
	return client.ContainerRemoveResult{}, nil
}

func (s *stubDocker) ContainerList(ctx context.Context, options client.ContainerListOptions) (client.ContainerListResult, error) {
	return client.ContainerListResult{}, nil
}

func (s *stubDocker) Ping(ctx context.Context, options client.PingOptions) (client.PingResult, error) {
	return client.PingResult{}, nil
}

func (s *stubDocker) Close() error {
	return nil
}

type failingSetup struct {
	lifecycle.Base
}

func (failingSetup) SetupMethod(ctx context.Context) error {
	return errors.New("no database available")
}

func TestCheck(t *testing.T) {
	t.Run("runs every enabled fixture through a class", func(t *testing.T) {
		t.Setenv(internal.CheckEnvVar, "outside")

		src := config.New()
		require.NoError(t, src.Read("yaml", strings.NewReader(`
tests: 3
fixtures:
  sqlite: true
  nats: true
  run: [cache]
  containers:
    specs:
      cache:
        name: cache
        image: redis:7
`)))
		cfg, err := internal.LoadConfig(src, "")
		require.NoError(t, err)

		stub := &stubDocker{running: map[string]bool{}}
		m := lifecycle.NewManager()
		require.NoError(t, internal.Setup(m, src, cfg, "abcd1234", fixtures.WithDockerClient(func() (docker.Client, error) {
			return docker.NewClient(stub), nil
		})))

		var out, errOut bytes.Buffer
		err = internal.Check(context.Background(), m, cfg, internal.NewWriter(&out, &errOut))
		require.NoError(t, err)

		require.Contains(t, out.String(), "nats: serving on nats://127.0.0.1:")
		require.Contains(t, out.String(), "test 1: started container cache\n")
		require.Contains(t, out.String(), "test 1: ok\n")
		require.Contains(t, out.String(), "test 3: ok\n")
		require.Empty(t, errOut.String())
		require.Empty(t, stub.running)
		require.Equal(t, "outside", os.Getenv(internal.CheckEnvVar))
	})

	t.Run("reports tests whose setup failed", func(t *testing.T) {
		src := config.New()
		cfg, err := internal.LoadConfig(src, "")
		require.NoError(t, err)

		m := lifecycle.NewManager()
		require.NoError(t, internal.Setup(m, src, cfg, "abcd1234"))
		require.NoError(t, m.Register("failing", failingSetup{Base: lifecycle.Base{DisplayName: "database"}}))

		var out bytes.Buffer
		err = internal.Check(context.Background(), m, cfg, internal.NewWriter(&out, &out))
		require.Error(t, err)
		require.ErrorContains(t, err, "no database available")
		require.Contains(t, out.String(), "test 1: failed\n")
		require.Contains(t, out.String(), "test 2: failed\n")
		require.Equal(t, lifecycle.AfterClass, m.CurrentPhase())
	})
}

func TestSetup(t *testing.T) {
	t.Run("registers only the enabled fixtures", func(t *testing.T) {
		src := config.New()
		src.Set("fixtures.git", true)
		cfg, err := internal.LoadConfig(src, "")
		require.NoError(t, err)

		m := lifecycle.NewManager()
		require.NoError(t, internal.Setup(m, src, cfg, "abcd1234"))

		require.Equal(t, []string{
			fixtures.FilesKey.String(),
			fixtures.EnvironmentKey.String(),
			fixtures.GitKey.String(),
		}, m.Keys())
	})

	t.Run("fails when fixtures are already registered", func(t *testing.T) {
		src := config.New()
		cfg, err := internal.LoadConfig(src, "")
		require.NoError(t, err)

		m := lifecycle.NewManager()
		require.NoError(t, fixtures.RegisterDefaults(m))

		err = internal.Setup(m, src, cfg, "abcd1234")
		require.ErrorIs(t, err, lifecycle.ErrDuplicateResource)
	})
}
