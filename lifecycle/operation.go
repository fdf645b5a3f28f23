package lifecycle

import "fmt"

// Operation is a unit of work with a forward step and a matching reverse
// step. The registry only ever sees this capability set, whatever the shape
// of the concrete operation.
type Operation interface {
	Forward() error
	Reverse() error
	String() string
}

// reverseDescriber is implemented by operations that name their reverse
// step separately.
type reverseDescriber interface {
	ReverseString() string
}

type description struct {
	text        string
	reverseText string
}

func (d description) String() string {
	return d.text
}

func (d description) ReverseString() string {
	if d.reverseText == "" {
		return d.text
	}
	return d.reverseText
}

// Action is a stateless operation: forward and reverse take nothing and
// return nothing but an error.
type Action struct {
	description
	forward func() error
	reverse func() error
}

// NewAction returns a stateless operation. A nil forward is a no-op.
func NewAction(desc string, forward, reverse func() error) *Action {
	return &Action{description: description{text: desc}, forward: forward, reverse: reverse}
}

// WithReverseDescription sets the description logged when reversing.
func (a *Action) WithReverseDescription(desc string) *Action {
	a.description.reverseText = desc
	return a
}

func (a *Action) Forward() error {
	if a.forward == nil {
		return nil
	}
	return a.forward()
}

func (a *Action) Reverse() error {
	if a.reverse == nil {
		return nil
	}
	return a.reverse()
}

// held is empty until set. Reading an empty held is a contract violation.
type held[R any] struct {
	value R
	ok    bool
}

func (h *held[R]) set(v R) {
	h.value = v
	h.ok = true
}

func (h *held[R]) mustGet(op string) R {
	if !h.ok {
		panic(fmt.Errorf("%w: reversing %q before its forward step succeeded", ErrNoResult, op))
	}
	return h.value
}

// Stateful is an operation whose forward step produces a result that is
// handed, unchanged, to its reverse step.
type Stateful[R any] struct {
	description
	forward func() (R, error)
	reverse func(R) error
	result  held[R]
}

// NewStateful returns a stateful operation.
func NewStateful[R any](desc string, forward func() (R, error), reverse func(R) error) *Stateful[R] {
	return &Stateful[R]{description: description{text: desc}, forward: forward, reverse: reverse}
}

// WithReverseDescription sets the description logged when reversing.
func (s *Stateful[R]) WithReverseDescription(desc string) *Stateful[R] {
	s.description.reverseText = desc
	return s
}

func (s *Stateful[R]) Forward() error {
	v, err := s.forward()
	if err != nil {
		return err
	}
	s.result.set(v)
	return nil
}

// Reverse panics with ErrNoResult if Forward never succeeded.
func (s *Stateful[R]) Reverse() error {
	v := s.result.mustGet(s.String())
	if s.reverse == nil {
		return nil
	}
	return s.reverse(v)
}

// Result returns the stored forward result, if any.
func (s *Stateful[R]) Result() (R, bool) {
	return s.result.value, s.result.ok
}

// ResourceAction is an operation bound to the resource that created it. The
// resource is passed to both steps and named in diagnostics; ownership is
// not affected.
type ResourceAction struct {
	description
	resource Resource
	forward  func(Resource) error
	reverse  func(Resource) error
}

// NewResourceAction returns a resource-bound operation.
func NewResourceAction(resource Resource, desc string, forward, reverse func(Resource) error) *ResourceAction {
	return &ResourceAction{
		description: description{text: desc},
		resource:    resource,
		forward:     forward,
		reverse:     reverse,
	}
}

// Resource returns the resource that created the operation.
func (a *ResourceAction) Resource() Resource {
	return a.resource
}

func (a *ResourceAction) Forward() error {
	if a.forward == nil {
		return nil
	}
	return a.forward(a.resource)
}

func (a *ResourceAction) Reverse() error {
	if a.reverse == nil {
		return nil
	}
	return a.reverse(a.resource)
}

func (a *ResourceAction) String() string {
	return fmt.Sprintf("%s (resource: %s)", a.text, a.resource.Name())
}

func (a *ResourceAction) ReverseString() string {
	return fmt.Sprintf("%s (resource: %s)", a.description.ReverseString(), a.resource.Name())
}
