package instrumentation

import (
	"sync/atomic"

	"github.com/willibrandon/ChronoCapture/pkg/correlation"
	"github.com/willibrandon/ChronoCapture/pkg/target"
)

var globalTracer atomic.Pointer[Tracer]

// InitInstrumentation installs the tracer used by the package-level hooks.
// Passing nil turns the hooks off.
func InitInstrumentation(t *Tracer) {
	globalTracer.Store(t)
}

// Global returns the installed tracer, or nil.
func Global() *Tracer {
	return globalTracer.Load()
}

// FuncEntry captures the start of desc with the installed tracer. The
// call chain is read from the calling goroutine's stack, so direct-mode
// call-sites correlate with a parent that is a plain Go caller.
//
//	inv := instrumentation.FuncEntry(totalTarget, c, qty)
//	defer func() { inv.Exit(result) }()
func FuncEntry(desc *target.Descriptor, receiver any, args ...any) *Invocation {
	t := globalTracer.Load()
	if t == nil {
		return nil
	}
	return t.Enter(correlation.FromRuntime(1), desc, receiver, args...)
}

// LibraryEntry captures the start of a library-mode call-site. label is
// the executor label the framework attached to the call, normally the
// parent's FQN.
func LibraryEntry(label string, desc *target.Descriptor, receiver any, args ...any) *Invocation {
	t := globalTracer.Load()
	if t == nil {
		return nil
	}
	cc := correlation.FromRuntime(1).WithLabel(label)
	return t.Enter(cc, desc, receiver, args...)
}

// FuncExit completes inv with the method's result.
func FuncExit(inv *Invocation, ret any) {
	inv.Exit(ret)
}

// FuncFail completes inv after the method failed.
func FuncFail(inv *Invocation, err any) {
	inv.Fail(err)
}
