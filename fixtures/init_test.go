package fixtures_test

import (
	"testing"

	"github.com/ryanmoran/testbed/lifecycle"
)

func newManager(t *testing.T, phase lifecycle.Phase) *lifecycle.Manager {
	t.Helper()
	m := lifecycle.NewManager()
	m.TransitionTo(phase)
	return m
}
