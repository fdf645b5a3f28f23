// Package host drives a lifecycle.Manager from Go's testing package.
//
// A test class is a group of tests sharing class-scoped resources. Run
// calls the manager's entry points around t.Run subtests, so operations
// executed in a test body are reversed when that subtest ends and
// operations executed before the first test are reversed after the last:
//
//	func TestRepository(t *testing.T) {
//		m := host.NewManager(t)
//		require.NoError(t, fixtures.RegisterDefaults(m))
//
//		host.Run(t, m, host.Class{
//			Tests: []host.Test{
//				{Name: "clones", Fn: func(t *testing.T, m *lifecycle.Manager) {
//					dir, err := fixtures.FilesOf(m).CreateTempDir()
//					...
//				}},
//			},
//		})
//	}
package host

import (
	"context"
	"testing"

	"github.com/ryanmoran/testbed/lifecycle"
	"go.uber.org/zap/zaptest"
)

// Test is one test of a class.
type Test struct {
	Name string
	Fn   func(t *testing.T, m *lifecycle.Manager)
}

// Class describes the tests run by Run.
type Class struct {
	// BeforeAll runs after the resources are initialised and before the
	// first test. Operations executed here are class-scoped.
	BeforeAll func(t *testing.T, m *lifecycle.Manager)
	// Instance returns the per-test token handed to resource hooks through
	// the context. It defaults to the subtest's *testing.T.
	Instance func(t *testing.T) any
	Tests    []Test
}

// NewManager returns a manager logging through t.
func NewManager(t testing.TB, opts ...lifecycle.Option) *lifecycle.Manager {
	return lifecycle.NewManager(append([]lifecycle.Option{lifecycle.WithLogger(zaptest.NewLogger(t))}, opts...)...)
}

// Run runs class against m. Failures reported by the manager fail the
// test they occurred in, or t itself for class-level hooks. A test body is
// skipped when its setup failed, but teardown always runs.
func Run(t *testing.T, m *lifecycle.Manager, class Class) {
	t.Helper()

	defer func() {
		if err := m.OnAfterAll(context.WithoutCancel(t.Context())); err != nil {
			t.Error(err)
		}
	}()

	if err := m.OnBeforeAll(); err != nil {
		t.Error(err)
		return
	}

	if class.BeforeAll != nil {
		class.BeforeAll(t, m)
		if t.Failed() {
			return
		}
	}

	for _, test := range class.Tests {
		t.Run(test.Name, func(t *testing.T) {
			runTest(t, m, class, test)
		})
	}
}

func runTest(t *testing.T, m *lifecycle.Manager, class Class, test Test) {
	t.Helper()

	var instance any = t
	if class.Instance != nil {
		instance = class.Instance(t)
	}
	ctx := lifecycle.WithInstance(context.WithoutCancel(t.Context()), instance)

	ok := report(t, m.OnPostProcessInstance(ctx))
	ok = report(t, m.OnBeforeEach(ctx)) && ok
	defer func() {
		report(t, m.OnAfterEach(ctx))
	}()

	ok = report(t, m.OnBeforeTestExecution(ctx)) && ok
	defer func() {
		report(t, m.OnAfterTestExecution(ctx))
	}()

	if !ok {
		return
	}
	test.Fn(t, m)
}

func report(t *testing.T, err error) bool {
	t.Helper()
	if err != nil {
		t.Error(err)
		return false
	}
	return true
}
