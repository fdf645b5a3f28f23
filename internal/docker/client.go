package docker

import (
	"context"
	"fmt"
	"maps"

	"github.com/moby/moby/api/types/container"
	"github.com/moby/moby/client"
)

// FixtureLabel marks containers created by testbed. Its value is the run ID
// of the process that created them.
const FixtureLabel = "dev.testbed.run"

// ContainerSpec describes a container to create.
type ContainerSpec struct {
	Name        string            `mapstructure:"name"`
	Image       string            `mapstructure:"image"`
	Cmd         []string          `mapstructure:"cmd"`
	Env         []string          `mapstructure:"env"`
	Labels      map[string]string `mapstructure:"labels"`
	StopTimeout int               `mapstructure:"stop_timeout"`
}

// Client creates and lists fixture containers on a Docker daemon.
type Client struct {
	client DockerClient
}

// NewClient creates a Client that wraps the provided Docker client interface.
func NewClient(dockerClient DockerClient) Client {
	return Client{
		client: dockerClient,
	}
}

// NewDefaultClient creates a Client with a real Docker client from the environment.
func NewDefaultClient() (Client, error) {
	cli, err := client.New(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return Client{}, fmt.Errorf("failed to create docker client: %w\nEnsure Docker is running and DOCKER_HOST is set correctly", err)
	}

	return NewClient(cli), nil
}

// Close closes the underlying Docker client connection.
func (c Client) Close() error {
	return c.client.Close()
}

// Ping pings the Docker daemon and returns the API version if successful.
func (c Client) Ping(ctx context.Context) (string, error) {
	ping, err := c.client.Ping(ctx, client.PingOptions{})
	if err != nil {
		return "", fmt.Errorf("failed to ping docker daemon: %w\nMake sure Docker is installed and running (try 'docker ps')", err)
	}
	return ping.APIVersion, nil
}

// CreateContainer creates a container from spec. The image must already be
// present on the daemon. The spec's labels are applied together with
// FixtureLabel set to runID.
func (c Client) CreateContainer(ctx context.Context, runID string, spec ContainerSpec) (Container, error) {
	labels := map[string]string{FixtureLabel: runID}
	maps.Copy(labels, spec.Labels)

	response, err := c.client.ContainerCreate(ctx, client.ContainerCreateOptions{
		Config: &container.Config{
			Image:  spec.Image,
			Cmd:    spec.Cmd,
			Env:    spec.Env,
			Labels: labels,
		},
		HostConfig: &container.HostConfig{
			ExtraHosts: []string{
				"host.docker.internal:host-gateway",
			},
		},
		Name: spec.Name,
	})
	if err != nil {
		return Container{}, fmt.Errorf("failed to create container %q from image %q: %w\nEnsure the image exists locally and the container config is valid", spec.Name, spec.Image, err)
	}

	return Container{
		ID:          response.ID,
		Name:        spec.Name,
		StopTimeout: spec.StopTimeout,
		client:      c.client,
	}, nil
}

// ListFixtures returns the IDs of containers labelled with runID, or of all
// testbed containers when runID is empty.
func (c Client) ListFixtures(ctx context.Context, runID string) ([]string, error) {
	result, err := c.client.ContainerList(ctx, client.ContainerListOptions{All: true})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}

	var ids []string
	for _, item := range result.Items {
		value, ok := item.Labels[FixtureLabel]
		if !ok || (runID != "" && value != runID) {
			continue
		}
		ids = append(ids, item.ID)
	}
	return ids, nil
}
