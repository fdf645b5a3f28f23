package lifecycle

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Phase is the stage of a single test-class run.
type Phase int

const (
	BeforeClass Phase = iota
	BeforeTest
	InTest
	AfterTest
	AfterClass
)

func (p Phase) String() string {
	switch p {
	case BeforeClass:
		return "BEFORE_CLASS"
	case BeforeTest:
		return "BEFORE_TEST"
	case InTest:
		return "IN_TEST"
	case AfterTest:
		return "AFTER_TEST"
	case AfterClass:
		return "AFTER_CLASS"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Scope is the lifetime bucket a reversible operation is recorded in.
type Scope int

const (
	ClassScope Scope = iota
	TestScope
)

func (s Scope) String() string {
	if s == TestScope {
		return "test"
	}
	return "class"
}

// ScopeOf maps a phase to the scope that operations registered during it
// belong to. Every phase maps to exactly one scope.
func ScopeOf(p Phase) Scope {
	switch p {
	case BeforeTest, InTest, AfterTest:
		return TestScope
	default:
		return ClassScope
	}
}

// PhaseMachine holds the current lifecycle phase. Transitions are never
// validated: callers are responsible for driving a sane sequence.
type PhaseMachine struct {
	mu      sync.RWMutex
	current Phase
	logger  *zap.Logger
}

// NewPhaseMachine returns a machine in BeforeClass.
func NewPhaseMachine(logger *zap.Logger) *PhaseMachine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PhaseMachine{current: BeforeClass, logger: logger}
}

// TransitionTo unconditionally sets the current phase.
func (m *PhaseMachine) TransitionTo(p Phase) {
	m.mu.Lock()
	from := m.current
	m.current = p
	m.mu.Unlock()

	m.logger.Debug("transitioning phase", zap.Stringer("from", from), zap.Stringer("to", p))
}

// Current returns the current phase.
func (m *PhaseMachine) Current() Phase {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Reset transitions back to BeforeClass.
func (m *PhaseMachine) Reset() {
	m.TransitionTo(BeforeClass)
}
