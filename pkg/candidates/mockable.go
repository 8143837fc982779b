// Package candidates loads the list of methods selected for capture and
// decides which of their nested call-sites may be replaced by mocks.
package candidates

import (
	"strings"

	"github.com/willibrandon/ChronoCapture/pkg/target"
)

// CallSite is a call made from inside a target method.
type CallSite struct {
	// Declaring is the fully qualified type that declares the invoked method.
	Declaring string
	Method    string
	Params    []string
	Return    string

	// Field names the field of the enclosing type the call is made through.
	// Calls on locals, parameters or results of other calls leave it empty.
	Field string
}

// ViaField reports whether the call is made through a field reference.
func (c CallSite) ViaField() bool {
	return c.Field != ""
}

func (c CallSite) String() string {
	return c.Declaring + "." + c.Method + "(" + strings.Join(c.Params, ",") + ")"
}

// Identity and representation methods in both Go and JVM naming.
var identityMethods = map[string]bool{
	"Equal":    true,
	"Equals":   true,
	"Hash":     true,
	"String":   true,
	"GoString": true,
	"equals":   true,
	"hashCode": true,
	"toString": true,
}

var builtinTypes = map[string]bool{
	"string":                  true,
	"strings.Builder":         true,
	"strings.Reader":          true,
	"bytes.Buffer":            true,
	"bytes.Reader":            true,
	"sync.Map":                true,
	"container/list.List":     true,
	"container/list.Element":  true,
	"container/ring.Ring":     true,
	"java.lang.String":        true,
	"java.lang.StringBuilder": true,
	"java.lang.StringBuffer":  true,
	"java.lang.CharSequence":  true,
	"java.lang.Object":        true,
	"java.util.Collection":    true,
	"java.util.List":          true,
	"java.util.ArrayList":     true,
	"java.util.LinkedList":    true,
	"java.util.Map":           true,
	"java.util.HashMap":       true,
	"java.util.Set":           true,
	"java.util.HashSet":       true,
	"java.util.Iterator":      true,
	"java.util.Optional":      true,
	"java.util.stream.Stream": true,
	"java.util.Arrays":        true,
	"java.util.Collections":   true,
}

// IsBuiltinContainer reports whether typ is one of the standard container or
// text types whose methods are never mocked.
func IsBuiltinContainer(typ string) bool {
	typ = strings.TrimLeft(typ, "*")
	if strings.HasPrefix(typ, "[]") || strings.HasPrefix(typ, "map[") || strings.HasPrefix(typ, "chan ") {
		return true
	}
	if i := strings.IndexByte(typ, '['); i > 0 {
		typ = typ[:i]
	}
	return builtinTypes[typ]
}

// IsMockableCallSite reports whether a nested call can be captured as a
// mockable dependency. The call must go through a field, return nothing, a
// primitive or a string, and must not be an identity or representation
// method or a method of a built-in container or text type.
func IsMockableCallSite(c CallSite) bool {
	if !c.ViaField() {
		return false
	}
	if !target.IsVoid(c.Return) && !target.IsLiteral(c.Return) {
		return false
	}
	if identityMethods[c.Method] {
		return false
	}
	return !IsBuiltinContainer(c.Declaring)
}
