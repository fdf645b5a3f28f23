package lifecycle

import (
	"fmt"
	"reflect"
)

// Key identifies a resource of type T in a Manager. Two keys of the same
// type are distinct only if their names differ.
type Key[T Resource] struct {
	name string
}

// NewKey returns a Key[T] with the given, possibly empty, name.
func NewKey[T Resource](name string) Key[T] {
	return Key[T]{name: name}
}

// String is the registry key: the type of T, followed by the name in
// parentheses when one is set.
func (k Key[T]) String() string {
	typ := reflect.TypeOf((*T)(nil)).Elem().String()
	if k.name != "" {
		return fmt.Sprintf("%s(%s)", typ, k.name)
	}
	return typ
}

// RegisterKey registers r under k.
func RegisterKey[T Resource](m *Manager, k Key[T], r T) error {
	return m.Register(k.String(), r)
}

// Get returns the resource registered under k. Like Lookup it panics when
// nothing is registered, and also when the registered resource is not a T.
func Get[T Resource](m *Manager, k Key[T]) T {
	r := m.Lookup(k.String())
	t, ok := r.(T)
	if !ok {
		panic(fmt.Errorf("resource registered under %q is %T, not %s", k.String(), r, reflect.TypeOf((*T)(nil)).Elem()))
	}
	return t
}
