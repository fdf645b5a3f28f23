package lifecycle

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDuplicateResource is returned by Register when the key is taken.
	// Use Replace to swap a registered resource deliberately.
	ErrDuplicateResource = errors.New("resource already registered")

	// ErrResourceNotFound is the panic value cause for lookups of unknown keys.
	ErrResourceNotFound = errors.New("resource not registered")

	// ErrNoResult is the panic value cause when a stateful operation is
	// reversed before its forward step ever succeeded.
	ErrNoResult = errors.New("no result of operation stored")
)

// Failure is one collected cause, attributed to the resource or operation
// that produced it.
type Failure struct {
	Source string
	Err    error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Source, f.Err)
}

func (f Failure) Unwrap() error {
	return f.Err
}

// MultipleFailuresError reports every failure collected while continuing
// past individual errors during one hook invocation or drain.
type MultipleFailuresError struct {
	Heading  string
	Failures []Failure
}

func (e *MultipleFailuresError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%d failure", e.Heading, len(e.Failures))
	if len(e.Failures) != 1 {
		b.WriteString("s")
	}
	b.WriteString(")")
	for _, f := range e.Failures {
		b.WriteString("\n\t")
		b.WriteString(f.Error())
	}
	return b.String()
}

// Unwrap exposes every cause to errors.Is and errors.As.
func (e *MultipleFailuresError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

type failures struct {
	heading string
	list    []Failure
}

func (f *failures) add(source string, err error) {
	if err == nil {
		return
	}
	f.list = append(f.list, Failure{Source: source, Err: err})
}

// merge flattens another aggregate into this one so callers see a single
// level of causes.
func (f *failures) merge(err error) {
	if err == nil {
		return
	}
	var multi *MultipleFailuresError
	if errors.As(err, &multi) {
		f.list = append(f.list, multi.Failures...)
		return
	}
	f.list = append(f.list, Failure{Source: "unknown", Err: err})
}

func (f *failures) err() error {
	if len(f.list) == 0 {
		return nil
	}
	return &MultipleFailuresError{Heading: f.heading, Failures: f.list}
}
