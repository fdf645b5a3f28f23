// Package config reads testbed configuration and binds sub-trees of it to
// typed structs for configurable resources.
//
// Values come from an optional config file and TESTBED_* environment
// variables, with the environment taking precedence. Struct fields are
// matched by their mapstructure tags; Bind registers the environment
// variable of every field of the target struct, so TESTBED_KEY_NAME
// overrides key.name even when key only exists in a file.
package config

import (
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"time"

	"github.com/ryanmoran/testbed/lifecycle"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables read by New.
const EnvPrefix = "TESTBED"

// ErrNotFound is returned by Bind when the path is not set at all.
var ErrNotFound = errors.New("config path not found")

// Source wraps a viper instance. Sources are never global; create one per
// manager or per test.
type Source struct {
	v *viper.Viper
}

// New returns a source reading TESTBED_* environment variables, where
// TESTBED_FIXTURES_FILES_PREFIX maps to fixtures.files.prefix.
func New() *Source {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return &Source{v: v}
}

// FromViper wraps an existing viper instance.
func FromViper(v *viper.Viper) *Source {
	return &Source{v: v}
}

// Viper returns the underlying viper instance.
func (s *Source) Viper() *viper.Viper {
	return s.v
}

// ReadFile merges the config file at path. The format is derived from the
// file extension.
func (s *Source) ReadFile(path string) error {
	s.v.SetConfigFile(path)
	if err := s.v.MergeInConfig(); err != nil {
		return fmt.Errorf("failed to read config file %q: %w", path, err)
	}
	return nil
}

// Read merges config in the given format ("yaml", "toml", "json") from r.
func (s *Source) Read(format string, r io.Reader) error {
	s.v.SetConfigType(format)
	if err := s.v.MergeConfig(r); err != nil {
		return fmt.Errorf("failed to read %s config: %w", format, err)
	}
	return nil
}

// SetDefault sets a default for key.
func (s *Source) SetDefault(key string, value any) {
	s.v.SetDefault(key, value)
}

// Set overrides key.
func (s *Source) Set(key string, value any) {
	s.v.Set(key, value)
}

// Bind decodes the sub-tree at path into a new C. Environment variables
// for the fields of C override the values read from files.
func Bind[C any](s *Source, path string) (C, error) {
	var c C
	sub, ok := s.lookup(path, reflect.TypeFor[C]())
	if !ok {
		return c, fmt.Errorf("failed to bind config at %q: %w", path, ErrNotFound)
	}

	if err := decode(sub, &c); err != nil {
		return c, fmt.Errorf("failed to bind config at %q: %w", path, err)
	}
	return c, nil
}

// BindOrDefault decodes the sub-tree at path over def. Fields missing from
// the config keep def's values; a missing path returns def unchanged.
func BindOrDefault[C any](s *Source, path string, def C) (C, error) {
	sub, ok := s.lookup(path, reflect.TypeFor[C]())
	if !ok {
		return def, nil
	}

	c := def
	if err := decode(sub, &c); err != nil {
		return def, fmt.Errorf("failed to bind config at %q: %w", path, err)
	}
	return c, nil
}

// lookup binds an environment variable for every field of t below path and
// returns the merged settings found there.
func (s *Source) lookup(path string, t reflect.Type) (any, bool) {
	s.bindEnv(strings.ToLower(path), t)

	var node any = s.v.AllSettings()
	for _, part := range strings.Split(strings.ToLower(path), ".") {
		m, ok := node.(map[string]any)
		if !ok {
			return nil, false
		}
		if node, ok = m[part]; !ok {
			return nil, false
		}
	}
	return node, node != nil
}

func (s *Source) bindEnv(path string, t reflect.Type) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return
	}

	for i := range t.NumField() {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		name, opts, _ := strings.Cut(field.Tag.Get("mapstructure"), ",")
		if name == "-" {
			continue
		}

		if opts == "squash" {
			s.bindEnv(path, field.Type)
			continue
		}

		if name == "" {
			name = field.Name
		}
		key := path + "." + strings.ToLower(name)

		ft := field.Type
		for ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		switch {
		case ft.Kind() == reflect.Map:
			// keys are only known from files
			continue
		case ft.Kind() == reflect.Struct && ft != reflect.TypeFor[time.Time]():
			s.bindEnv(key, ft)
			continue
		}

		// BindEnv only fails without a key.
		_ = s.v.BindEnv(key, EnvVar(key))
	}
}

// EnvVar returns the environment variable that overrides key.
func EnvVar(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// decode runs value through viper's decoder so weak typing and duration
// parsing match the rest of the config.
func decode(value any, target any) error {
	v := viper.New()
	if err := v.MergeConfigMap(map[string]any{"value": value}); err != nil {
		return err
	}
	return v.UnmarshalKey("value", target)
}

// Configurable is embedded by resources that carry their own configuration,
// bound once at construction.
type Configurable[C any] struct {
	lifecycle.Base
	Config C
}

// NewConfigurable binds the config at path and returns a Configurable
// named name.
func NewConfigurable[C any](name string, s *Source, path string) (Configurable[C], error) {
	c, err := Bind[C](s, path)
	if err != nil {
		return Configurable[C]{}, err
	}
	return Configurable[C]{Base: lifecycle.Base{DisplayName: name}, Config: c}, nil
}
