// Package target describes the methods selected for trace capture.
package target

import (
	"fmt"
	"strings"
)

// Mode selects how a nested call-site is correlated with its parent.
type Mode int

const (
	// TopLevel targets start their own invocation context.
	TopLevel Mode = iota
	// Direct nested call-sites find the parent frame on the call chain.
	Direct
	// Library nested call-sites are reached through opaque library code and
	// rely on the call label set by the interception framework.
	Library
)

// String returns the string representation of the Mode
func (m Mode) String() string {
	switch m {
	case TopLevel:
		return "top-level"
	case Direct:
		return "direct"
	case Library:
		return "library"
	default:
		return "unknown"
	}
}

// Descriptor identifies an instrumented method. Descriptors are built once
// with New or NewNested and must not be modified afterwards. The one
// exception is a parent's Nested list, which NewNested extends; all
// call-sites of a parent must be built before the parent is first traced.
type Descriptor struct {
	Visibility string
	Type       string // fully qualified declaring type
	Method     string
	Params     []string
	Return     string

	// Parent is set for nested call-sites only.
	Parent *Descriptor
	Mode   Mode

	// Nested lists the call-sites inside this method that are captured
	// together with it.
	Nested []*Descriptor

	signature string
	key       string
}

// New creates a top-level descriptor.
func New(visibility, typ, method string, params []string, ret string) *Descriptor {
	d := &Descriptor{
		Visibility: visibility,
		Type:       typ,
		Method:     method,
		Params:     append([]string(nil), params...),
		Return:     ret,
		Mode:       TopLevel,
	}
	d.signature = d.computeSignature()
	d.key = d.FQN()
	return d
}

// NewNested creates a descriptor for a call-site nested inside parent and
// registers it in parent's Nested list. It is not safe to call once parent
// is being traced; Plan.Descriptors builds every call-site up front.
func NewNested(parent *Descriptor, mode Mode, typ, method string, params []string, ret string) (*Descriptor, error) {
	if parent == nil {
		return nil, fmt.Errorf("nested call-site %s.%s has no parent", typ, method)
	}
	if mode == TopLevel {
		return nil, fmt.Errorf("nested call-site %s.%s needs direct or library mode", typ, method)
	}
	d := New("", typ, method, params, ret)
	d.Parent = parent
	d.Mode = mode
	d.key = "nested-" + parent.FQN() + "/" + d.FQN()
	parent.Nested = append(parent.Nested, d)
	return d, nil
}

// Signature is the stable identity of the method, distinguishing overloads.
func (d *Descriptor) Signature() string {
	if d.signature == "" {
		return d.computeSignature()
	}
	return d.signature
}

func (d *Descriptor) computeSignature() string {
	return fmt.Sprintf("%s.%s(%s)", d.Type, d.Method, strings.Join(d.Params, ","))
}

// FQN returns the declaring type and method name, suffixed with the
// parameter list when the method takes parameters.
func (d *Descriptor) FQN() string {
	fqn := d.Type + "." + d.Method
	if len(d.Params) > 0 {
		fqn += "_" + strings.Join(d.Params, ",")
	}
	return fqn
}

// Key is the path used to resolve the storage code for this target. Nested
// call-sites are keyed under their parent so the same callee captured inside
// two parents keeps separate logs and budgets.
func (d *Descriptor) Key() string {
	if d.key == "" {
		if d.Parent != nil {
			return "nested-" + d.Parent.FQN() + "/" + d.FQN()
		}
		return d.FQN()
	}
	return d.key
}

// ParamSignature renders the parameter and return types as "(p1,p2)ret".
func (d *Descriptor) ParamSignature() string {
	ret := d.Return
	if ret == "" {
		ret = "void"
	}
	return "(" + strings.Join(d.Params, ",") + ")" + ret
}

// IsNested reports whether d is a call-site inside another target.
func (d *Descriptor) IsNested() bool {
	return d.Parent != nil && d.Mode != TopLevel
}

// Matches reports whether a call frame belongs to this method.
func (d *Descriptor) Matches(typ, method string) bool {
	return d.Type == typ && d.Method == method
}

// Package returns the import path part of the declaring type.
func (d *Descriptor) Package() string {
	return PackageOf(d.Type)
}

// PackageOf extracts the package path from a fully qualified type name such
// as "github.com/acme/shop/cart.Cart".
func PackageOf(typ string) string {
	lastSlash := strings.LastIndexByte(typ, '/')
	rest := typ[lastSlash+1:]
	dot := strings.IndexByte(rest, '.')
	if dot < 0 {
		if lastSlash < 0 {
			return ""
		}
		return typ
	}
	return typ[:lastSlash+1+dot]
}

func (d *Descriptor) String() string {
	return d.Signature()
}
