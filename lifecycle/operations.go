package lifecycle

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Operations records reversible operations in a test-scoped and a
// class-scoped bucket and reverses them in LIFO order on drain.
//
// The bucket an operation lands in is chosen by the phase current at the
// moment its forward step has succeeded.
type Operations struct {
	mu          sync.Mutex
	phases      *PhaseMachine
	logger      *zap.Logger
	testScoped  []Operation
	classScoped []Operation
}

// NewOperations creates an empty registry reading phases from the given
// machine.
func NewOperations(phases *PhaseMachine, logger *zap.Logger) *Operations {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Operations{phases: phases, logger: logger}
}

// ExecuteOperation runs op's forward step now. If it fails the error is
// returned and nothing is recorded, so the reverse step will never run.
func (o *Operations) ExecuteOperation(op Operation) error {
	o.logger.Info("executing operation", zap.String("operation", op.String()))

	if err := op.Forward(); err != nil {
		return fmt.Errorf("failed to execute operation %q: %w", op.String(), err)
	}

	o.mu.Lock()
	scope := ScopeOf(o.phases.Current())
	if scope == TestScope {
		o.testScoped = append(o.testScoped, op)
	} else {
		o.classScoped = append(o.classScoped, op)
	}
	o.mu.Unlock()

	o.logger.Debug("recorded operation", zap.String("operation", op.String()), zap.Stringer("scope", scope))
	return nil
}

// Execute runs a stateless forward action and records reverse for later.
func (o *Operations) Execute(desc string, forward, reverse func() error) error {
	return o.ExecuteOperation(NewAction(desc, forward, reverse))
}

// ExecuteForResource runs a forward action bound to resource and records
// reverse for later. The resource is only used for diagnostics.
func (o *Operations) ExecuteForResource(resource Resource, desc string, forward, reverse func(Resource) error) error {
	return o.ExecuteOperation(NewResourceAction(resource, desc, forward, reverse))
}

// Register records a reverse action that has no forward counterpart, such
// as deleting a path created elsewhere.
func (o *Operations) Register(desc string, reverse func() error) error {
	return o.ExecuteOperation(NewAction(desc, nil, reverse))
}

// ExecuteReversible runs forward now and, on success, records reverse to be
// called with forward's result when the current scope is drained.
func ExecuteReversible[R any](o *Operations, desc string, forward func() (R, error), reverse func(R) error) (R, error) {
	op := NewStateful(desc, forward, reverse)
	if err := o.ExecuteOperation(op); err != nil {
		var zero R
		return zero, err
	}

	result, _ := op.Result()
	return result, nil
}

// DrainTestScope reverses all test-scoped operations.
func (o *Operations) DrainTestScope() error {
	return o.drain(TestScope)
}

// DrainClassScope reverses all class-scoped operations.
func (o *Operations) DrainClassScope() error {
	return o.drain(ClassScope)
}

// Pending returns the number of operations waiting in the given scope.
func (o *Operations) Pending(scope Scope) int {
	o.mu.Lock()
	defer o.mu.Unlock()

	if scope == TestScope {
		return len(o.testScoped)
	}
	return len(o.classScoped)
}

// drain reverses every operation of scope, most recently recorded first.
// A failing reverse step never prevents the remaining ones from running;
// all failures are returned together once the drain completes. The bucket
// is empty afterwards regardless of failures.
func (o *Operations) drain(scope Scope) error {
	o.mu.Lock()
	var ops []Operation
	if scope == TestScope {
		ops, o.testScoped = o.testScoped, nil
	} else {
		ops, o.classScoped = o.classScoped, nil
	}
	o.mu.Unlock()

	f := failures{heading: fmt.Sprintf("failed to reverse %s-scoped operations", scope)}
	o.reverseAll(ops, &f)
	return f.err()
}

func (o *Operations) reverseAll(ops []Operation, f *failures) {
	for i := len(ops) - 1; i >= 0; i-- {
		o.reverse(ops[i], ops[:i], f)
	}
}

// reverse runs op's reverse step. If it panics, the operations in rest are
// still reversed before the panic continues.
func (o *Operations) reverse(op Operation, rest []Operation, f *failures) {
	o.logger.Info("reversing operation", zap.String("operation", reverseString(op)))

	panicking := true
	defer func() {
		if panicking {
			o.logger.Error("reverse operation panicked", zap.String("operation", reverseString(op)), zap.Int("remaining", len(rest)))
			o.reverseAll(rest, f)
		}
	}()

	err := op.Reverse()
	panicking = false

	if err != nil {
		o.logger.Warn("reverse operation failed", zap.String("operation", reverseString(op)), zap.Error(err))
		f.add(fmt.Sprintf("operation %q", op.String()), err)
	}
}

func reverseString(op Operation) string {
	if d, ok := op.(reverseDescriber); ok {
		return d.ReverseString()
	}
	return op.String()
}
