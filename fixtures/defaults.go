package fixtures

import (
	"github.com/ryanmoran/testbed/lifecycle"
)

var (
	FilesKey       = lifecycle.NewKey[*Files]("")
	EnvironmentKey = lifecycle.NewKey[*Environment]("")
	GitKey         = lifecycle.NewKey[*Git]("")
	SQLiteKey      = lifecycle.NewKey[*SQLite]("")
	NATSKey        = lifecycle.NewKey[*NATS]("")
	ContainersKey  = lifecycle.NewKey[*Containers]("")
)

// RegisterDefaults registers the Files and Environment fixtures, on the OS
// filesystem, under FilesKey and EnvironmentKey.
func RegisterDefaults(m *lifecycle.Manager) error {
	if err := lifecycle.RegisterKey(m, FilesKey, NewFiles(m, nil)); err != nil {
		return err
	}
	return lifecycle.RegisterKey(m, EnvironmentKey, NewEnvironment(m))
}

// FilesOf returns the Files fixture registered under FilesKey.
func FilesOf(m *lifecycle.Manager) *Files {
	return lifecycle.Get(m, FilesKey)
}

// EnvironmentOf returns the Environment fixture registered under
// EnvironmentKey.
func EnvironmentOf(m *lifecycle.Manager) *Environment {
	return lifecycle.Get(m, EnvironmentKey)
}
