package lifecycle

import "context"

// Resource is a long-lived object whose hooks are driven in lockstep with the
// lifecycle phases. Every hook receives a context carrying the opaque
// per-test instance token, see InstanceFrom.
type Resource interface {
	Name() string
	Init() error
	PostProcessInstance(ctx context.Context) error
	SetupInstance(ctx context.Context) error
	SetupMethod(ctx context.Context) error
	TearDownMethod(ctx context.Context) error
	TearDownInstance(ctx context.Context) error
	Dispose(ctx context.Context) error
}

// Base implements every Resource hook as a no-op. Embed it and override
// only the hooks a resource needs.
type Base struct {
	DisplayName string
}

func (b Base) Name() string {
	if b.DisplayName == "" {
		return "resource"
	}
	return b.DisplayName
}

func (Base) Init() error                                   { return nil }
func (Base) PostProcessInstance(ctx context.Context) error { return nil }
func (Base) SetupInstance(ctx context.Context) error       { return nil }
func (Base) SetupMethod(ctx context.Context) error         { return nil }
func (Base) TearDownMethod(ctx context.Context) error      { return nil }
func (Base) TearDownInstance(ctx context.Context) error    { return nil }
func (Base) Dispose(ctx context.Context) error             { return nil }

type instanceKey struct{}

// WithInstance attaches the host's per-test instance token to ctx. The
// manager never interprets it.
func WithInstance(ctx context.Context, instance any) context.Context {
	return context.WithValue(ctx, instanceKey{}, instance)
}

// InstanceFrom returns the token attached by WithInstance, or nil.
func InstanceFrom(ctx context.Context) any {
	return ctx.Value(instanceKey{})
}
