package fixtures

import (
	"fmt"
	"os"
	"os/user"

	"github.com/ryanmoran/testbed/lifecycle"
)

// Environment exposes the process environment. Changes made through it are
// undone when the scope they were made in is drained.
type Environment struct {
	lifecycle.Base
	ops *lifecycle.Operations
}

// NewEnvironment returns an Environment fixture recording on m's operations.
func NewEnvironment(m *lifecycle.Manager) *Environment {
	return &Environment{
		Base: lifecycle.Base{DisplayName: "environment"},
		ops:  m.Operations(),
	}
}

// OSUser returns the name of the user running the tests.
func (e *Environment) OSUser() string {
	u, err := user.Current()
	if err != nil {
		return os.Getenv("USER")
	}
	return u.Username
}

type envValue struct {
	key   string
	value string
	set   bool
}

func (v envValue) restore() error {
	if !v.set {
		return os.Unsetenv(v.key)
	}
	return os.Setenv(v.key, v.value)
}

func lookupEnv(key string) envValue {
	value, ok := os.LookupEnv(key)
	return envValue{key: key, value: value, set: ok}
}

// Setenv sets key to value. Draining restores the previous value, or
// unsets key if it was not set before.
func (e *Environment) Setenv(key, value string) error {
	_, err := execute(e.ops, fmt.Sprintf("Set environment variable %s", key), fmt.Sprintf("Restore environment variable %s", key),
		func() (envValue, error) {
			previous := lookupEnv(key)
			if err := os.Setenv(key, value); err != nil {
				return envValue{}, err
			}
			return previous, nil
		},
		envValue.restore,
	)
	return err
}

// Unsetenv removes key from the environment. Draining restores it.
func (e *Environment) Unsetenv(key string) error {
	_, err := execute(e.ops, fmt.Sprintf("Unset environment variable %s", key), fmt.Sprintf("Restore environment variable %s", key),
		func() (envValue, error) {
			previous := lookupEnv(key)
			if err := os.Unsetenv(key); err != nil {
				return envValue{}, err
			}
			return previous, nil
		},
		envValue.restore,
	)
	return err
}
