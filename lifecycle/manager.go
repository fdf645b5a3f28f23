package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger used by the manager, its phase machine and its
// operation registry.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// Manager owns the registered resources, the current phase and the
// operation registry, and drives resource hooks from the host's lifecycle
// callbacks. There is no package-level manager: the host constructs one and
// passes it to whatever needs it.
type Manager struct {
	mu          sync.Mutex
	logger      *zap.Logger
	phases      *PhaseMachine
	ops         *Operations
	order       []string
	resources   map[string]Resource
	initialized map[string]bool
	started     bool
}

// NewManager returns a manager in phase BeforeClass with no resources.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		logger:      zap.NewNop(),
		resources:   make(map[string]Resource),
		initialized: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.phases = NewPhaseMachine(m.logger)
	m.ops = NewOperations(m.phases, m.logger)
	return m
}

// Logger returns the manager's logger, for resources that want to log in
// the same stream.
func (m *Manager) Logger() *zap.Logger {
	return m.logger
}

// CurrentPhase returns the current lifecycle phase.
func (m *Manager) CurrentPhase() Phase {
	return m.phases.Current()
}

// TransitionTo sets the current phase. Host bindings normally never call
// this directly; the On* entry points drive the phase.
func (m *Manager) TransitionTo(p Phase) {
	m.phases.TransitionTo(p)
}

// Reset transitions back to BeforeClass.
func (m *Manager) Reset() {
	m.phases.Reset()
}

// Operations returns the reversible operation registry.
func (m *Manager) Operations() *Operations {
	return m.ops
}

// Register adds r under key. It fails with ErrDuplicateResource if the key
// is taken. Once OnBeforeAll has run, r is initialised immediately and is
// only registered if Init succeeds.
func (m *Manager) Register(key string, r Resource) error {
	return m.store(key, r, false)
}

// Replace registers r under key, replacing any resource already there. The
// replaced resource is not disposed.
func (m *Manager) Replace(key string, r Resource) error {
	return m.store(key, r, true)
}

func (m *Manager) store(key string, r Resource, replace bool) error {
	m.mu.Lock()
	_, exists := m.resources[key]
	started := m.started
	m.mu.Unlock()

	if exists && !replace {
		return fmt.Errorf("failed to register %s for key %q: %w", r.Name(), key, ErrDuplicateResource)
	}

	if started {
		if err := r.Init(); err != nil {
			return fmt.Errorf("failed to initialize %s for key %q: %w", r.Name(), key, err)
		}
	}

	m.mu.Lock()
	if _, ok := m.resources[key]; !ok {
		m.order = append(m.order, key)
	}
	m.resources[key] = r
	m.initialized[key] = started
	m.mu.Unlock()

	m.logger.Info("registered resource", zap.String("resource", r.Name()), zap.String("key", key), zap.Bool("replaced", exists))
	return nil
}

// Lookup returns the resource registered under key. Asking for a key that
// was never registered is a programming error and panics.
func (m *Manager) Lookup(key string) Resource {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.resources[key]
	if !ok {
		panic(fmt.Errorf("%w: %q", ErrResourceNotFound, key))
	}
	return r
}

// Has reports whether a resource is registered under key.
func (m *Manager) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.resources[key]
	return ok
}

// Keys returns the registered keys in registration order.
func (m *Manager) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]string(nil), m.order...)
}

// Describe returns a human-readable dump of the registered resources, one
// "key -> name" line each. It is meant for logs, not for parsing.
func (m *Manager) Describe() string {
	var b strings.Builder
	for i, e := range m.snapshot() {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s -> %s", e.key, e.resource.Name())
	}
	return b.String()
}

func (m *Manager) String() string {
	return fmt.Sprintf("Manager (phase %s):\n%s", m.CurrentPhase(), m.Describe())
}

// OnBeforeAll initialises every registered resource in registration order.
// Resources registered by another resource's Init are initialised as they
// are registered. The phase is BeforeClass throughout, so operations
// executed here are class-scoped.
func (m *Manager) OnBeforeAll() error {
	m.phases.Reset()

	m.mu.Lock()
	m.started = true
	m.mu.Unlock()

	f := failures{heading: "failed to initialize resources"}
	for i := 0; ; i++ {
		m.mu.Lock()
		if i >= len(m.order) {
			m.mu.Unlock()
			break
		}
		key := m.order[i]
		r := m.resources[key]
		done := m.initialized[key]
		m.initialized[key] = true
		m.mu.Unlock()

		if done {
			continue
		}
		if err := r.Init(); err != nil {
			m.logger.Warn("resource hook failed", zap.String("hook", "Init"), zap.String("resource", r.Name()), zap.Error(err))
			f.add(source(key, r), err)
		}
	}

	return f.err()
}

// OnPostProcessInstance runs after the host created a test instance.
func (m *Manager) OnPostProcessInstance(ctx context.Context) error {
	m.phases.TransitionTo(BeforeTest)
	return m.each("PostProcessInstance", "failed to post-process test instance", func(r Resource) error {
		return r.PostProcessInstance(ctx)
	})
}

// OnBeforeEach sets up resources for a test instance. It also reverts the
// provisional AfterClass left behind by the previous OnAfterEach.
func (m *Manager) OnBeforeEach(ctx context.Context) error {
	m.phases.TransitionTo(BeforeTest)
	return m.each("SetupInstance", "failed to set up test instance", func(r Resource) error {
		return r.SetupInstance(ctx)
	})
}

// OnBeforeTestExecution sets up resources for a test method. Resources see
// BeforeTest during their SetupMethod; the test body sees InTest.
func (m *Manager) OnBeforeTestExecution(ctx context.Context) error {
	m.phases.TransitionTo(BeforeTest)

	err := m.each("SetupMethod", "failed to set up test method", func(r Resource) error {
		return r.SetupMethod(ctx)
	})

	// must stay the last step
	m.phases.TransitionTo(InTest)
	return err
}

// OnAfterTestExecution tears down resources after a test method body.
func (m *Manager) OnAfterTestExecution(ctx context.Context) error {
	m.phases.TransitionTo(AfterTest)
	return m.each("TearDownMethod", "failed to tear down test method", func(r Resource) error {
		return r.TearDownMethod(ctx)
	})
}

// OnAfterEach reverses test-scoped operations, then tears down resources
// for the test instance.
//
// The phase is left at AfterClass because the host offers no hook between
// the last test's teardown and the class teardown. If another test follows,
// OnPostProcessInstance or OnBeforeEach moves it back to BeforeTest.
func (m *Manager) OnAfterEach(ctx context.Context) error {
	f := failures{heading: "failed to tear down test instance"}
	f.merge(m.ops.DrainTestScope())
	f.merge(m.each("TearDownInstance", "failed to tear down test instance", func(r Resource) error {
		return r.TearDownInstance(ctx)
	}))

	m.phases.TransitionTo(AfterClass)
	return f.err()
}

// OnAfterAll reverses class-scoped operations, then disposes every resource.
// Operations are reversed this late so their effects are still visible to
// the host's own class teardown.
func (m *Manager) OnAfterAll(ctx context.Context) error {
	f := failures{heading: "failed to dispose resources"}
	f.merge(m.ops.DrainClassScope())
	f.merge(m.each("Dispose", "failed to dispose resources", func(r Resource) error {
		return r.Dispose(ctx)
	}))
	return f.err()
}

type entry struct {
	key      string
	resource Resource
}

func (m *Manager) snapshot() []entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := make([]entry, 0, len(m.order))
	for _, key := range m.order {
		entries = append(entries, entry{key: key, resource: m.resources[key]})
	}
	return entries
}

// each calls fn on every resource registered when the call starts, in
// registration order, and returns all failures together.
func (m *Manager) each(hook, heading string, fn func(Resource) error) error {
	f := failures{heading: heading}
	for _, e := range m.snapshot() {
		if err := fn(e.resource); err != nil {
			m.logger.Warn("resource hook failed", zap.String("hook", hook), zap.String("resource", e.resource.Name()), zap.Error(err))
			f.add(source(e.key, e.resource), err)
		}
	}
	return f.err()
}

func source(key string, r Resource) string {
	return fmt.Sprintf("resource %s [%s]", r.Name(), key)
}
