// Package serializer renders captured arguments, return values and receiver
// state as text records.
//
// Records are sequences of simple elements named after the sanitized type
// of each value. Return values and receivers are rendered in full through
// the converter registry. Parameters of non-literal types are recorded as
// empty, type-named placeholders: only their shape is kept.
//
// A value whose type has no converter fails once. The failing type is then
// registered with a no-op converter, so later values of that type are
// recorded as empty elements instead of failing again.
package serializer

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/rs/zerolog"

	"github.com/willibrandon/ChronoCapture/pkg/target"
)

// DefaultMaxDepth bounds how deep object graphs are followed.
const DefaultMaxDepth = 24

// Serializer turns values into record text.
type Serializer struct {
	registry *Registry
	maxDepth int
	logger   zerolog.Logger
}

// Option configures a Serializer.
type Option func(*Serializer)

// WithMaxDepth limits how many nested levels are rendered.
func WithMaxDepth(depth int) Option {
	return func(s *Serializer) {
		if depth > 0 {
			s.maxDepth = depth
		}
	}
}

// WithRegistry uses registry instead of a fresh one.
func WithRegistry(registry *Registry) Option {
	return func(s *Serializer) {
		s.registry = registry
	}
}

// New creates a serializer.
func New(logger zerolog.Logger, opts ...Option) *Serializer {
	s := &Serializer{
		maxDepth: DefaultMaxDepth,
		logger:   logger.With().Str("component", "serializer").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.registry == nil {
		s.registry = NewRegistry()
	}
	return s
}

// Registry returns the converter registry in use.
func (s *Serializer) Registry() *Registry {
	return s.registry
}

// Value renders v in full.
func (s *Serializer) Value(v any) (string, error) {
	w := newWriter(s.registry, s.maxDepth)
	if err := s.run(func() error { return w.Value("", addressable(v)) }); err != nil {
		return "", s.fallback(err)
	}
	return w.String(), nil
}

// Params renders a parameter list. Arguments whose declared type is a
// primitive or string are written with their values; every other argument
// is written as an empty element named after its declared type.
func (s *Serializer) Params(paramTypes []string, args []any) (string, error) {
	w := newWriter(s.registry, s.maxDepth)
	if len(paramTypes) == 0 {
		w.Empty("object-array")
		return w.String(), nil
	}

	err := s.run(func() error {
		w.Open("object-array")
		for i, typ := range paramTypes {
			if !target.IsLiteral(typ) {
				w.Empty(target.TagName(typ))
				continue
			}
			var arg any
			if i < len(args) {
				arg = args[i]
			}
			if err := w.Value("", addressable(arg)); err != nil {
				return err
			}
		}
		w.Close("object-array")
		return nil
	})
	if err != nil {
		return "", s.fallback(err)
	}
	return w.String(), nil
}

// run calls fn, turning panics from user types (Error methods and the
// like) into errors.
func (s *Serializer) run(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("serializer panic: %v", r)
		}
	}()
	return fn()
}

// fallback registers a no-op converter for a type that could not be
// serialized so the next value of that type succeeds.
func (s *Serializer) fallback(err error) error {
	var nc *NoConverterError
	if errors.As(err, &nc) {
		s.logger.Warn().Err(err).Str("type", typeName(nc.Type)).Msg("Serialization failed")
		if s.registry.RegisterIfAbsent(nc.Type, Noop) {
			s.logger.Info().Str("type", typeName(nc.Type)).Msg("Automatically registered a converter")
		}
		return err
	}
	s.logger.Warn().Err(err).Msg("Serialization failed")
	return err
}

// addressable copies v into addressable storage so values reached through
// unexported fields can still be handed to converters.
func addressable(v any) reflect.Value {
	if v == nil {
		return reflect.Value{}
	}
	rv := reflect.ValueOf(v)
	cp := reflect.New(rv.Type()).Elem()
	cp.Set(rv)
	return cp
}
