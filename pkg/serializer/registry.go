package serializer

import (
	"fmt"
	"reflect"
	"sync"
)

// Converter renders one value as record elements.
type Converter interface {
	Marshal(w *Writer, tag string, v reflect.Value) error
}

// ConverterFunc adapts a function to the Converter interface.
type ConverterFunc func(w *Writer, tag string, v reflect.Value) error

// Marshal calls f.
func (f ConverterFunc) Marshal(w *Writer, tag string, v reflect.Value) error {
	return f(w, tag, v)
}

// NoConverterError reports a type that has neither a registered converter
// nor a kind strategy.
type NoConverterError struct {
	Type reflect.Type
}

func (e *NoConverterError) Error() string {
	return fmt.Sprintf("no converter available for type: %s", typeName(e.Type))
}

type interfaceConverter struct {
	iface reflect.Type
	conv  Converter
}

// Registry maps type identities to converters. It is safe for concurrent
// use and may grow while values are being serialized.
type Registry struct {
	mu         sync.RWMutex
	byType     map[reflect.Type]Converter
	interfaces []interfaceConverter
}

// NewRegistry returns a registry seeded with the built-in converters.
func NewRegistry() *Registry {
	r := &Registry{byType: make(map[reflect.Type]Converter)}
	registerBuiltins(r)
	return r
}

// Register installs c for values whose dynamic type is exactly t.
func (r *Registry) Register(t reflect.Type, c Converter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byType[t] = c
}

// RegisterIfAbsent installs c unless t already has a converter. It reports
// whether c was installed.
func (r *Registry) RegisterIfAbsent(t reflect.Type, c Converter) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byType[t]; ok {
		return false
	}
	r.byType[t] = c
	return true
}

// RegisterInterface installs c for every type implementing iface.
// Exact type registrations take precedence.
func (r *Registry) RegisterInterface(iface reflect.Type, c Converter) {
	if iface.Kind() != reflect.Interface {
		panic(fmt.Sprintf("serializer: %s is not an interface type", iface))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.interfaces = append(r.interfaces, interfaceConverter{iface: iface, conv: c})
}

// Lookup returns the converter registered for t, if any.
func (r *Registry) Lookup(t reflect.Type) (Converter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.byType[t]; ok {
		return c, true
	}
	for _, ic := range r.interfaces {
		if t.Implements(ic.iface) {
			return ic.conv, true
		}
	}
	return nil, false
}

// Noop renders an empty element named after the value's type. It is the
// fallback installed for types that failed to serialize.
var Noop Converter = ConverterFunc(func(w *Writer, tag string, v reflect.Value) error {
	w.Empty(w.tagFor(tag, v.Type()))
	return nil
})
