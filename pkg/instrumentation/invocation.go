package instrumentation

import (
	"runtime/trace"

	"github.com/willibrandon/ChronoCapture/pkg/correlation"
	"github.com/willibrandon/ChronoCapture/pkg/recorder"
	"github.com/willibrandon/ChronoCapture/pkg/target"
)

// Invocation is one captured call of a target. A nil Invocation stands
// for a call that is not captured; its methods do nothing.
type Invocation struct {
	tracer     *Tracer
	state      *state
	ctx        *correlation.InvocationContext
	receiver   any
	sizeBefore int64
	region     *trace.Region
	done       bool
}

// CorrelationID returns the identifier written as parent-uuid, or "" for
// an uncorrelated nested call.
func (inv *Invocation) CorrelationID() string {
	if inv == nil || !inv.ctx.Correlated() {
		return ""
	}
	return inv.ctx.ID.String()
}

// Target returns the captured method.
func (inv *Invocation) Target() *target.Descriptor {
	if inv == nil {
		return nil
	}
	return inv.state.desc
}

func (inv *Invocation) stamp() recorder.Stamp {
	return recorder.Stamp{CorrelationID: inv.CorrelationID(), Timestamp: inv.ctx.Timestamp}
}

// Exit is called when the method returns. ret is its result, ignored for
// methods without one.
func (inv *Invocation) Exit(ret any) {
	if inv == nil {
		return
	}
	t := inv.tracer
	st := inv.state
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error().Interface("panic", r).Str("target", st.desc.Signature()).Msg("Recovered in exit hook")
		}
	}()

	st.mu.Lock()
	defer st.mu.Unlock()
	if inv.done {
		return
	}
	inv.done = true
	defer endRegion(inv.region)

	// an earlier exit may have tripped the size guard while this call ran
	if st.budget.WithinLimits() {
		stamp := inv.stamp()
		if !target.IsVoid(st.desc.Return) {
			t.writeValue(st, recorder.Returned, ret, stamp)
		}
		if inv.receiver != nil {
			t.writeValue(st, recorder.ReceivingPost, inv.receiver, stamp)
		}
	}
	t.finish(inv)
}

// Fail is called instead of Exit when the method ends with an error or a
// panic. Nothing is recorded for the result; the invocation still counts.
func (inv *Invocation) Fail(err any) {
	if inv == nil {
		return
	}
	t := inv.tracer
	st := inv.state
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error().Interface("panic", r).Str("target", st.desc.Signature()).Msg("Recovered in error hook")
		}
	}()

	st.mu.Lock()
	defer st.mu.Unlock()
	if inv.done {
		return
	}
	inv.done = true
	defer endRegion(inv.region)

	t.logger.Debug().Interface("error", err).Str("target", st.desc.Signature()).Msg("Invocation failed")
	t.finish(inv)
}
