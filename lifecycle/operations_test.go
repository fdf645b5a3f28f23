package lifecycle_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/ryanmoran/testbed/lifecycle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"
)

func newOperations(phase lifecycle.Phase) (*lifecycle.PhaseMachine, *lifecycle.Operations) {
	phases := lifecycle.NewPhaseMachine(nil)
	phases.TransitionTo(phase)
	return phases, lifecycle.NewOperations(phases, nil)
}

func TestOperations_Drain_LIFO_Order(t *testing.T) {
	_, ops := newOperations(lifecycle.InTest)
	var order []string

	for _, name := range []string{"first", "second", "third"} {
		err := ops.Execute(name, nil, func() error {
			order = append(order, name)
			return nil
		})
		require.NoError(t, err)
	}

	require.NoError(t, ops.DrainTestScope())
	assert.Equal(t, []string{"third", "second", "first"}, order)
}

func TestOperations_Drain_Empty(t *testing.T) {
	_, ops := newOperations(lifecycle.InTest)

	assert.NoError(t, ops.DrainTestScope())
	assert.NoError(t, ops.DrainClassScope())
}

func TestOperations_Drain_ContinuesOnError(t *testing.T) {
	_, ops := newOperations(lifecycle.InTest)
	var executed []string
	errSecond := errors.New("second failed")
	errFourth := errors.New("fourth failed")

	add := func(name string, err error) {
		require.NoError(t, ops.Execute(name, nil, func() error {
			executed = append(executed, name)
			return err
		}))
	}
	add("first", nil)
	add("second", errSecond)
	add("third", nil)
	add("fourth", errFourth)

	err := ops.DrainTestScope()
	require.Error(t, err)

	assert.Equal(t, []string{"fourth", "third", "second", "first"}, executed)

	var multi *lifecycle.MultipleFailuresError
	require.ErrorAs(t, err, &multi)
	require.Len(t, multi.Failures, 2)
	assert.Equal(t, errFourth, multi.Failures[0].Err)
	assert.Equal(t, errSecond, multi.Failures[1].Err)
	assert.Equal(t, `operation "fourth"`, multi.Failures[0].Source)
	assert.ErrorIs(t, err, errSecond)
	assert.ErrorIs(t, err, errFourth)

	assert.Equal(t, 0, ops.Pending(lifecycle.TestScope))
}

func TestOperations_Drain_PanicStillReversesEarlierOperations(t *testing.T) {
	_, ops := newOperations(lifecycle.InTest)
	var executed []string

	add := func(name string, reverse func() error) {
		require.NoError(t, ops.Execute(name, nil, func() error {
			executed = append(executed, name)
			return reverse()
		}))
	}
	add("first", func() error { return nil })
	add("second", func() error { return errors.New("second failed") })
	add("third", func() error { panic("connection already closed") })
	add("fourth", func() error { return nil })

	assert.Panics(t, func() {
		_ = ops.DrainTestScope()
	})

	assert.Equal(t, []string{"fourth", "third", "second", "first"}, executed)
	assert.Equal(t, 0, ops.Pending(lifecycle.TestScope))
	assert.NoError(t, ops.DrainTestScope())
}

func TestOperations_Drain_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 16).Draw(t, "n")
		failing := rapid.SliceOfN(rapid.Bool(), n, n).Draw(t, "failing")
		_, ops := newOperations(lifecycle.BeforeClass)

		var reversed []int
		for i := range n {
			err := ops.Execute(fmt.Sprintf("op-%d", i), nil, func() error {
				reversed = append(reversed, i)
				if failing[i] {
					return fmt.Errorf("op-%d failed", i)
				}
				return nil
			})
			if err != nil {
				t.Fatalf("unexpected forward error: %v", err)
			}
		}

		err := ops.DrainClassScope()

		if len(reversed) != n {
			t.Fatalf("expected %d reversals, got %d", n, len(reversed))
		}
		for i, got := range reversed {
			if want := n - 1 - i; got != want {
				t.Fatalf("reversal %d: expected op-%d, got op-%d", i, want, got)
			}
		}

		var want []string
		for i := n - 1; i >= 0; i-- {
			if failing[i] {
				want = append(want, fmt.Sprintf("op-%d failed", i))
			}
		}

		if len(want) == 0 {
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
		} else {
			var multi *lifecycle.MultipleFailuresError
			if !errors.As(err, &multi) {
				t.Fatalf("expected MultipleFailuresError, got %v", err)
			}
			if len(multi.Failures) != len(want) {
				t.Fatalf("expected %d failures, got %d", len(want), len(multi.Failures))
			}
			for i, f := range multi.Failures {
				if f.Err.Error() != want[i] {
					t.Fatalf("failure %d: expected %q, got %q", i, want[i], f.Err.Error())
				}
			}
		}

		if ops.Pending(lifecycle.ClassScope) != 0 {
			t.Fatalf("expected empty class scope after drain")
		}
	})
}

func TestExecuteReversible(t *testing.T) {
	t.Run("returns the forward result", func(t *testing.T) {
		_, ops := newOperations(lifecycle.InTest)

		result, err := lifecycle.ExecuteReversible(ops, "returns test",
			func() (string, error) { return "test", nil },
			func(string) error { return nil },
		)
		require.NoError(t, err)
		assert.Equal(t, "test", result)
	})

	t.Run("supplies the forward result to reverse", func(t *testing.T) {
		_, ops := newOperations(lifecycle.InTest)
		var reverseParam string

		_, err := lifecycle.ExecuteReversible(ops, "supplies test",
			func() (string, error) { return "test", nil },
			func(s string) error {
				reverseParam = s
				return nil
			},
		)
		require.NoError(t, err)
		require.NoError(t, ops.DrainTestScope())

		assert.Equal(t, "test", reverseParam)
	})

	t.Run("supplies the same pointer to reverse", func(t *testing.T) {
		_, ops := newOperations(lifecycle.InTest)
		type handle struct{ closed bool }
		var reversed *handle

		created, err := lifecycle.ExecuteReversible(ops, "open handle",
			func() (*handle, error) { return &handle{}, nil },
			func(h *handle) error {
				h.closed = true
				reversed = h
				return nil
			},
		)
		require.NoError(t, err)
		require.NoError(t, ops.DrainTestScope())

		assert.Same(t, created, reversed)
		assert.True(t, created.closed)
	})

	t.Run("registers nothing when forward fails", func(t *testing.T) {
		_, ops := newOperations(lifecycle.InTest)
		errForward := errors.New("disk full")
		reverseCalled := false

		result, err := lifecycle.ExecuteReversible(ops, "fails",
			func() (int, error) { return 7, errForward },
			func(int) error {
				reverseCalled = true
				return nil
			},
		)
		require.ErrorIs(t, err, errForward)
		assert.Contains(t, err.Error(), `failed to execute operation "fails"`)
		assert.Zero(t, result)
		assert.Equal(t, 0, ops.Pending(lifecycle.TestScope))
		assert.Equal(t, 0, ops.Pending(lifecycle.ClassScope))

		require.NoError(t, ops.DrainTestScope())
		assert.False(t, reverseCalled)
	})
}

func TestOperations_ScopeAssignment(t *testing.T) {
	t.Run("BeforeClass registers class-scoped only", func(t *testing.T) {
		_, ops := newOperations(lifecycle.BeforeClass)
		require.NoError(t, ops.Execute("class op", nil, nil))

		assert.Equal(t, 1, ops.Pending(lifecycle.ClassScope))
		assert.Equal(t, 0, ops.Pending(lifecycle.TestScope))
	})

	t.Run("InTest registers test-scoped only", func(t *testing.T) {
		_, ops := newOperations(lifecycle.InTest)
		require.NoError(t, ops.Execute("test op", nil, nil))

		assert.Equal(t, 0, ops.Pending(lifecycle.ClassScope))
		assert.Equal(t, 1, ops.Pending(lifecycle.TestScope))
	})

	t.Run("drains never cross scopes", func(t *testing.T) {
		phases, ops := newOperations(lifecycle.BeforeClass)
		var reversed []string

		require.NoError(t, ops.Execute("class op", nil, func() error {
			reversed = append(reversed, "class")
			return nil
		}))
		phases.TransitionTo(lifecycle.InTest)
		require.NoError(t, ops.Execute("test op", nil, func() error {
			reversed = append(reversed, "test")
			return nil
		}))

		require.NoError(t, ops.DrainClassScope())
		assert.Equal(t, []string{"class"}, reversed)
		assert.Equal(t, 1, ops.Pending(lifecycle.TestScope))

		require.NoError(t, ops.DrainTestScope())
		assert.Equal(t, []string{"class", "test"}, reversed)
	})

	t.Run("AfterClass registers class-scoped", func(t *testing.T) {
		_, ops := newOperations(lifecycle.AfterClass)
		require.NoError(t, ops.Execute("late op", nil, nil))

		assert.Equal(t, 1, ops.Pending(lifecycle.ClassScope))
	})
}

func TestOperations_Register(t *testing.T) {
	_, ops := newOperations(lifecycle.InTest)
	deleted := false

	require.NoError(t, ops.Register("delete path", func() error {
		deleted = true
		return nil
	}))
	assert.False(t, deleted)

	require.NoError(t, ops.DrainTestScope())
	assert.True(t, deleted)
}

func TestOperations_ExecuteForResource(t *testing.T) {
	_, ops := newOperations(lifecycle.InTest)
	resource := &lifecycle.Base{DisplayName: "printer"}
	var seen []lifecycle.Resource

	err := ops.ExecuteForResource(resource, "touch",
		func(r lifecycle.Resource) error {
			seen = append(seen, r)
			return nil
		},
		func(r lifecycle.Resource) error {
			seen = append(seen, r)
			return errors.New("untouch failed")
		},
	)
	require.NoError(t, err)

	err = ops.DrainTestScope()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "touch (resource: printer)")
	require.Len(t, seen, 2)
	assert.Same(t, resource, seen[0])
	assert.Same(t, resource, seen[1])
}

func TestOperations_Logging(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	phases := lifecycle.NewPhaseMachine(nil)
	phases.TransitionTo(lifecycle.InTest)
	ops := lifecycle.NewOperations(phases, zap.New(core))

	op := lifecycle.NewAction("Create temporary directory", nil, func() error {
		return errors.New("busy")
	}).WithReverseDescription("Delete temporary directory")
	require.NoError(t, ops.ExecuteOperation(op))
	require.Error(t, ops.DrainTestScope())

	assert.Equal(t, 1, logs.FilterMessage("executing operation").FilterField(zap.String("operation", "Create temporary directory")).Len())
	assert.Equal(t, 1, logs.FilterMessage("reversing operation").FilterField(zap.String("operation", "Delete temporary directory")).Len())
	assert.Equal(t, 1, logs.FilterMessage("reverse operation failed").Len())
}

func TestStateful_ReverseBeforeForward(t *testing.T) {
	op := lifecycle.NewStateful("never ran",
		func() (string, error) { return "", errors.New("boom") },
		func(string) error { return nil },
	)
	require.Error(t, op.Forward())

	_, ok := op.Result()
	assert.False(t, ok)

	defer func() {
		r := recover()
		require.NotNil(t, r)
		err, ok := r.(error)
		require.True(t, ok)
		assert.ErrorIs(t, err, lifecycle.ErrNoResult)
	}()
	_ = op.Reverse()
	t.Fatal("expected Reverse to panic")
}
