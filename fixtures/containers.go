package fixtures

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ryanmoran/testbed/config"
	"github.com/ryanmoran/testbed/internal/docker"
	"github.com/ryanmoran/testbed/lifecycle"
	"go.uber.org/zap"
)

// ContainersConfigPath is where NewContainers reads its configuration.
const ContainersConfigPath = "fixtures.containers"

// ContainersConfig configures the Containers fixture.
type ContainersConfig struct {
	// StopTimeout applies to specs that do not set their own, in seconds.
	StopTimeout int `mapstructure:"stop_timeout"`
	// Specs are named container specs started with RunNamed.
	Specs map[string]docker.ContainerSpec `mapstructure:"specs"`
}

// ContainersOption configures a Containers fixture.
type ContainersOption func(*Containers)

// WithDockerClient replaces the function used to create the Docker client.
func WithDockerClient(newClient func() (docker.Client, error)) ContainersOption {
	return func(c *Containers) {
		c.newClient = newClient
	}
}

// Containers runs Docker containers that are stopped and removed on drain.
// Every container is labelled with the run ID so leftovers of crashed runs
// can be found again.
type Containers struct {
	config.Configurable[ContainersConfig]

	ops       *lifecycle.Operations
	logger    *zap.Logger
	runID     string
	newClient func() (docker.Client, error)

	mu      sync.Mutex
	client  *docker.Client
	created int
}

// NewContainers binds ContainersConfigPath from src over a ten second stop
// timeout. The Docker client is not created until a container is run.
func NewContainers(m *lifecycle.Manager, src *config.Source, runID string, opts ...ContainersOption) (*Containers, error) {
	cfg, err := config.BindOrDefault(src, ContainersConfigPath, ContainersConfig{StopTimeout: 10})
	if err != nil {
		return nil, err
	}

	c := &Containers{
		Configurable: config.Configurable[ContainersConfig]{
			Base:   lifecycle.Base{DisplayName: "containers"},
			Config: cfg,
		},
		ops:       m.Operations(),
		logger:    m.Logger(),
		runID:     runID,
		newClient: docker.NewDefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// RunID returns the value of docker.FixtureLabel on containers started by c.
func (c *Containers) RunID() string {
	return c.runID
}

// dockerClient creates the client on first use and pings the daemon, so a
// missing daemon fails before any container is created.
func (c *Containers) dockerClient(ctx context.Context) (docker.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		return *c.client, nil
	}

	client, err := c.newClient()
	if err != nil {
		return docker.Client{}, err
	}

	version, err := client.Ping(ctx)
	if err != nil {
		return docker.Client{}, errors.Join(err, client.Close())
	}
	c.logger.Debug("connected to docker daemon", zap.String("api_version", version))

	c.client = &client
	return client, nil
}

func (c *Containers) prepare(spec docker.ContainerSpec) docker.ContainerSpec {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.created++
	if spec.Name == "" {
		spec.Name = fmt.Sprintf("testbed-%s-%d", c.runID, c.created)
	}
	if spec.StopTimeout == 0 {
		spec.StopTimeout = c.Config.StopTimeout
	}
	return spec
}

// Run creates and starts a container from spec. Draining stops it, giving it
// StopTimeout seconds to exit, and removes it together with its anonymous
// volumes. A container that fails to stop is force-removed.
func (c *Containers) Run(ctx context.Context, spec docker.ContainerSpec) (docker.Container, error) {
	spec = c.prepare(spec)

	return execute(c.ops, fmt.Sprintf("Run container %s from %s", spec.Name, spec.Image), fmt.Sprintf("Remove container %s", spec.Name),
		func() (docker.Container, error) {
			client, err := c.dockerClient(ctx)
			if err != nil {
				return docker.Container{}, err
			}

			container, err := client.CreateContainer(ctx, c.runID, spec)
			if err != nil {
				return docker.Container{}, err
			}

			if err := container.Start(ctx); err != nil {
				return docker.Container{}, errors.Join(err, container.ForceRemove(context.WithoutCancel(ctx)))
			}
			return container, nil
		},
		func(container docker.Container) error {
			ctx := context.WithoutCancel(ctx)
			if err := container.Stop(ctx); err != nil {
				return errors.Join(err, container.ForceRemove(ctx))
			}
			return container.Remove(ctx)
		},
	)
}

// RunNamed runs the spec configured under name.
func (c *Containers) RunNamed(ctx context.Context, name string) (docker.Container, error) {
	spec, ok := c.Config.Specs[name]
	if !ok {
		return docker.Container{}, fmt.Errorf("failed to run container %q: %w", name, config.ErrNotFound)
	}
	return c.Run(ctx, spec)
}

// Leftovers returns the IDs of testbed containers on the daemon, from this
// run or any earlier one.
func (c *Containers) Leftovers(ctx context.Context) ([]string, error) {
	client, err := c.dockerClient(ctx)
	if err != nil {
		return nil, err
	}
	return client.ListFixtures(ctx, "")
}

// Dispose closes the Docker client if one was created.
func (c *Containers) Dispose(ctx context.Context) error {
	c.mu.Lock()
	client := c.client
	c.client = nil
	c.mu.Unlock()

	if client == nil {
		return nil
	}

	c.logger.Debug("closing docker client", zap.String("run", c.runID))
	return client.Close()
}
