// Package docker provides the Docker container handling behind the
// container fixtures.
//
// It creates, starts, stops and removes containers through the DockerClient
// interface so the fixtures can be tested against a mock. The Client type
// is the main entry point.
package docker
