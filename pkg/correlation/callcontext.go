// Package correlation links nested invocations to the invocation that
// encloses them on the same goroutine.
package correlation

import (
	"runtime"
	"strings"
)

// Frame is one entry of a logical call chain.
type Frame struct {
	Type   string
	Method string
}

func (f Frame) String() string {
	return f.Type + "." + f.Method
}

// CallContext is the logical call chain of one goroutine as seen by the
// interception framework. It is threaded through hooks explicitly and is
// not safe for concurrent use.
type CallContext struct {
	// Label names the logical executor of the call. Frameworks set it to
	// the parent's FQN when the call passes through opaque library code.
	Label  string
	frames []Frame
}

// NewCallContext creates a call chain, outermost frame first.
func NewCallContext(frames ...Frame) *CallContext {
	return &CallContext{frames: append([]Frame(nil), frames...)}
}

// Push enters a frame.
func (c *CallContext) Push(f Frame) {
	c.frames = append(c.frames, f)
}

// Pop leaves the innermost frame.
func (c *CallContext) Pop() {
	if len(c.frames) > 0 {
		c.frames = c.frames[:len(c.frames)-1]
	}
}

// Frames returns the chain, outermost first.
func (c *CallContext) Frames() []Frame {
	if c == nil {
		return nil
	}
	return c.frames
}

// WithLabel returns a copy of the chain carrying label.
func (c *CallContext) WithLabel(label string) *CallContext {
	cp := NewCallContext(c.Frames()...)
	cp.Label = label
	return cp
}

// Contains reports whether any frame is (typ, method).
func (c *CallContext) Contains(typ, method string) bool {
	for _, f := range c.Frames() {
		if f.Type == typ && f.Method == method {
			return true
		}
	}
	return false
}

// FromRuntime builds a call chain from the calling goroutine's stack,
// skipping skip frames above the caller of FromRuntime.
func FromRuntime(skip int) *CallContext {
	pcs := make([]uintptr, 64)
	n := runtime.Callers(skip+2, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	var chain []Frame
	for {
		fr, more := frames.Next()
		if fr.Function != "" {
			chain = append(chain, ParseFunction(fr.Function))
		}
		if !more {
			break
		}
	}
	// runtime reports innermost first
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return &CallContext{frames: chain}
}

// ParseFunction splits a runtime function name such as
// "github.com/acme/cart.(*Cart).Total.func1" into its declaring type
// ("github.com/acme/cart.Cart") and method ("Total"). Package-level
// functions use the package path as their type.
func ParseFunction(name string) Frame {
	lastSlash := strings.LastIndexByte(name, '/')
	pkgEnd := lastSlash + 1
	dot := strings.IndexByte(name[pkgEnd:], '.')
	if dot < 0 {
		return Frame{Method: name}
	}
	// the linker escapes dots in the last path element
	pkg := strings.ReplaceAll(name[:pkgEnd+dot], "%2e", ".")
	rest := name[pkgEnd+dot+1:]

	parts := strings.Split(stripTypeArgs(rest), ".")
	if len(parts) >= 2 && isTypeSegment(parts[0]) && !isClosure(parts[1]) {
		recv := strings.TrimSuffix(strings.TrimPrefix(strings.TrimPrefix(parts[0], "("), "*"), ")")
		return Frame{Type: pkg + "." + recv, Method: strings.TrimSuffix(parts[1], "-fm")}
	}
	return Frame{Type: pkg, Method: parts[0]}
}

func isTypeSegment(s string) bool {
	if strings.HasPrefix(s, "(") {
		return true
	}
	// closures and init blocks are not types
	if isClosure(s) || s == "init" || s == "glob" {
		return false
	}
	return s != ""
}

func isClosure(s string) bool {
	for _, prefix := range []string{"func", "gowrap"} {
		if rest, ok := strings.CutPrefix(s, prefix); ok && rest != "" && strings.Trim(rest, "0123456789") == "" {
			return true
		}
	}
	return false
}

func stripTypeArgs(s string) string {
	var b strings.Builder
	depth := 0
	for _, r := range s {
		switch {
		case r == '[':
			depth++
		case r == ']':
			depth--
		case depth == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}
