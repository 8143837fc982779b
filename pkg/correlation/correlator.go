package correlation

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/willibrandon/ChronoCapture/pkg/target"
)

// InvocationContext identifies one active invocation of a target.
type InvocationContext struct {
	ID        uuid.UUID
	Timestamp int64 // epoch milliseconds
}

// NewInvocationContext starts a context with a fresh identifier.
func NewInvocationContext() *InvocationContext {
	return &InvocationContext{
		ID:        uuid.New(),
		Timestamp: time.Now().UnixMilli(),
	}
}

// Inherit creates a context for a nested invocation that shares parent's
// identifier but carries its own timestamp.
func Inherit(parent *InvocationContext) *InvocationContext {
	return &InvocationContext{
		ID:        parent.ID,
		Timestamp: time.Now().UnixMilli(),
	}
}

// Uncorrelated creates a context with no identifier.
func Uncorrelated() *InvocationContext {
	return &InvocationContext{Timestamp: time.Now().UnixMilli()}
}

// Correlated reports whether the context carries an identifier.
func (c *InvocationContext) Correlated() bool {
	return c != nil && c.ID != uuid.Nil
}

// Slot holds the active invocation context of one target. It is shared by
// every goroutine invoking that target.
type Slot struct {
	active atomic.Pointer[InvocationContext]
}

// Activate publishes ctx as the target's active invocation.
func (s *Slot) Activate(ctx *InvocationContext) {
	s.active.Store(ctx)
}

// Release clears the slot if ctx is still the active invocation. A newer
// invocation that replaced ctx is left in place.
func (s *Slot) Release(ctx *InvocationContext) bool {
	return s.active.CompareAndSwap(ctx, nil)
}

// Active returns the active invocation, or nil.
func (s *Slot) Active() *InvocationContext {
	return s.active.Load()
}

// Correlator decides whether an invocation of a nested call-site happens
// inside an active invocation of its parent.
type Correlator struct {
	logger zerolog.Logger
}

// NewCorrelator creates a correlator.
func NewCorrelator(logger zerolog.Logger) *Correlator {
	return &Correlator{logger: logger.With().Str("component", "correlator").Logger()}
}

// Resolve returns the parent's active context when site is nested inside
// it. In direct mode the parent's frame must be on the call chain; in
// library mode the chain's label must equal the parent's FQN.
func (c *Correlator) Resolve(cc *CallContext, site *target.Descriptor, parentSlot *Slot) (*InvocationContext, bool) {
	if site == nil || !site.IsNested() || parentSlot == nil {
		return nil, false
	}
	parent := site.Parent

	switch site.Mode {
	case target.Direct:
		if !cc.Contains(parent.Type, parent.Method) {
			return nil, false
		}
		c.logger.Debug().Str("target", site.Signature()).Msg("Nested invocation")
	case target.Library:
		if cc == nil || cc.Label != parent.FQN() {
			return nil, false
		}
		c.logger.Debug().Str("target", site.Signature()).Msg("Nested invocation on a library method")
	default:
		return nil, false
	}

	active := parentSlot.Active()
	if !active.Correlated() {
		return nil, false
	}
	return active, true
}
