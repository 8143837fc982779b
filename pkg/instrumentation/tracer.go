// Package instrumentation is the hook boundary of the capture engine. The
// interception framework calls Enter when a selected method starts and
// Exit or Fail on the returned Invocation when it finishes. Hooks never
// return errors and never panic into the application.
package instrumentation

import (
	"encoding/xml"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/willibrandon/ChronoCapture/pkg/budget"
	"github.com/willibrandon/ChronoCapture/pkg/correlation"
	"github.com/willibrandon/ChronoCapture/pkg/pathcode"
	"github.com/willibrandon/ChronoCapture/pkg/recorder"
	"github.com/willibrandon/ChronoCapture/pkg/serializer"
	"github.com/willibrandon/ChronoCapture/pkg/target"
)

// Tracer captures invocations of selected methods. It is safe for
// concurrent use; each target is guarded by its own lock.
type Tracer struct {
	options    Options
	logger     zerolog.Logger
	registry   *pathcode.Registry
	serializer *serializer.Serializer
	summary    *recorder.Summary
	correlator *correlation.Correlator
	redactor   *recorder.Redactor

	states   sync.Map // target key -> *state
	filtered sync.Map // target key -> struct{}, logged once
	disabled atomic.Bool
}

// state is everything the tracer keeps for one target.
type state struct {
	once     sync.Once
	setupErr error
	ready    atomic.Bool

	mu         sync.Mutex
	desc       *target.Descriptor
	budget     *budget.Budget
	rec        recorder.Recorder
	slot       correlation.Slot
	summarized bool
	tripped    bool
	exhausted  bool
}

// NewTracer prepares the storage directory, the path-code registry and the
// invoked-methods summary. Any failure is returned wrapped in
// ErrSetupFailure.
func NewTracer(options Options, logger zerolog.Logger) (*Tracer, error) {
	logger = logger.With().Str("component", "tracer").Logger()

	if options.StorageDir == "" {
		options.StorageDir = DefaultStorageDir
	}
	if err := os.MkdirAll(options.StorageDir, 0755); err != nil {
		return nil, fmt.Errorf("%w: create storage directory: %w", ErrSetupFailure, err)
	}
	registry, err := pathcode.Open(options.RegistryPath(), logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSetupFailure, err)
	}
	summary := recorder.NewSummary(recorder.InvokedMethodsPath(options.StorageDir))
	if err := summary.Ensure(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSetupFailure, err)
	}
	redactor, err := options.Redactor()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSetupFailure, err)
	}

	t := &Tracer{
		options:    options,
		logger:     logger,
		registry:   registry,
		serializer: serializer.New(logger, serializer.WithMaxDepth(options.MaxDepth)),
		summary:    summary,
		correlator: correlation.NewCorrelator(logger),
		redactor:   redactor,
	}
	logger.Info().
		Str("storage_dir", options.StorageDir).
		Int("max_invocations", options.Limits().MaxInvocations).
		Msg("Tracer ready")
	return t, nil
}

// Options returns the tracer configuration.
func (t *Tracer) Options() Options {
	return t.options
}

// Serializer returns the serializer, so callers can register converters
// for their own types.
func (t *Tracer) Serializer() *serializer.Serializer {
	return t.serializer
}

// Summary returns the invoked-methods summary.
func (t *Tracer) Summary() *recorder.Summary {
	return t.summary
}

// Disabled reports whether capture stopped after a setup failure.
func (t *Tracer) Disabled() bool {
	return t.disabled.Load()
}

// Layout resolves the file layout of a target.
func (t *Tracer) Layout(desc *target.Descriptor) (recorder.Layout, error) {
	code, err := t.registry.Resolve(desc.Key())
	if err != nil {
		return recorder.Layout{}, err
	}
	return recorder.Layout{Dir: t.options.StorageDir, Code: code}, nil
}

// Count returns how many invocations of desc this process captured.
func (t *Tracer) Count(desc *target.Descriptor) int {
	st := t.lookup(desc)
	if st == nil {
		return 0
	}
	return st.budget.Count()
}

func (t *Tracer) disable(err error) {
	if t.disabled.CompareAndSwap(false, true) {
		t.logger.Error().Err(err).Msg("Capture disabled for this process")
	}
}

// stateFor returns the state of desc, creating it on first use.
func (t *Tracer) stateFor(desc *target.Descriptor) (*state, error) {
	v, _ := t.states.LoadOrStore(desc.Key(), &state{desc: desc})
	st := v.(*state)
	st.once.Do(func() {
		st.setupErr = t.setup(st)
	})
	return st, st.setupErr
}

// lookup returns the state of desc if it has been set up.
func (t *Tracer) lookup(desc *target.Descriptor) *state {
	if desc == nil {
		return nil
	}
	v, ok := t.states.Load(desc.Key())
	if !ok {
		return nil
	}
	st := v.(*state)
	if !st.ready.Load() {
		return nil
	}
	return st
}

func (t *Tracer) setup(st *state) error {
	layout, err := t.Layout(st.desc)
	if err != nil {
		return fmt.Errorf("%w: resolve path code for %s: %w", ErrSetupFailure, st.desc, err)
	}
	rec, err := recorder.NewFileRecorder(layout, st.desc.FQN(), recorder.FileRecorderOptions{Redactor: t.redactor})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSetupFailure, err)
	}
	st.rec = rec
	st.budget = budget.New(t.options.Limits(), rec.ObjectLogs())
	st.ready.Store(true)
	t.logger.Debug().
		Str("target", st.desc.Signature()).
		Str("code", layout.Code).
		Msg("Target ready")
	return nil
}

// eligible reports whether an invocation of st may be captured and, for
// nested call-sites, returns the parent's context. Must hold st.mu.
func (t *Tracer) eligible(st *state, cc *correlation.CallContext) (*correlation.InvocationContext, bool) {
	if !st.budget.Admit() {
		t.noteLimits(st)
		return nil, false
	}
	if !st.desc.IsNested() {
		return correlation.NewInvocationContext(), true
	}

	var parentSlot *correlation.Slot
	if parent := t.lookup(st.desc.Parent); parent != nil {
		parentSlot = &parent.slot
	}
	if active, ok := t.correlator.Resolve(cc, st.desc, parentSlot); ok {
		return correlation.Inherit(active), true
	}
	return correlation.Uncorrelated(), true
}

// noteLimits logs the first time a target stops being captured. Must hold
// st.mu.
func (t *Tracer) noteLimits(st *state) {
	if !st.budget.WithinLimits() && !st.tripped {
		st.tripped = true
		t.logger.Info().Err(ErrSizeLimitExceeded).Str("target", st.desc.Signature()).Msg("Capture stopped")
	}
	if st.budget.Exhausted() && !st.exhausted {
		st.exhausted = true
		t.logger.Debug().Err(ErrBudgetExhausted).Str("target", st.desc.Signature()).Msg("Capture stopped")
	}
}

// Enter is called when a target method starts. receiver is the value the
// method is invoked on, or nil for functions. It returns nil when the
// invocation is not captured; the nil Invocation is safe to finish.
func (t *Tracer) Enter(cc *correlation.CallContext, desc *target.Descriptor, receiver any, args ...any) (inv *Invocation) {
	if t == nil || desc == nil || t.disabled.Load() {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error().Interface("panic", r).Str("target", desc.Signature()).Msg("Recovered in entry hook")
			inv = nil
		}
	}()

	if !t.options.ShouldInstrument(desc.Package()) {
		t.noteFiltered(desc)
		return nil
	}
	st, err := t.stateFor(desc)
	if err != nil {
		t.disable(err)
		return nil
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	ctx, ok := t.eligible(st, cc)
	if !ok {
		return nil
	}

	inv = &Invocation{
		tracer:     t,
		state:      st,
		ctx:        ctx,
		receiver:   receiver,
		sizeBefore: st.budget.ObjectProfileSize(),
	}
	stamp := inv.stamp()

	if fragment, err := t.serializer.Params(desc.Params, args); err != nil {
		t.report(ErrSerialization, err, desc, recorder.Params)
	} else {
		t.write(st, recorder.Params, fragment, stamp)
	}
	if receiver != nil {
		t.writeValue(st, recorder.ReceivingPre, receiver, stamp)
	}
	if desc.Mode == target.Library {
		t.write(st, recorder.LibraryInvocations, libraryMarker(desc), stamp)
	}

	n := st.budget.Consume()
	st.slot.Activate(ctx)
	inv.region = startRegion(inv)

	t.logger.Debug().
		Str("target", desc.Signature()).
		Int("invocation", n).
		Str("parent_uuid", inv.CorrelationID()).
		Msg("Capturing invocation")
	return inv
}

// noteFiltered logs the first call of a target the package filter skips.
// Module paths without a dot are taken for the standard library.
func (t *Tracer) noteFiltered(desc *target.Descriptor) {
	if _, seen := t.filtered.LoadOrStore(desc.Key(), struct{}{}); seen {
		return
	}
	pkg := desc.Package()
	t.logger.Debug().
		Str("target", desc.Signature()).
		Str("package", pkg).
		Bool("stdlib", !strings.Contains(pkg, ".")).
		Msg("Target not instrumented")
}

func (t *Tracer) writeValue(st *state, kind recorder.FileKind, v any, stamp recorder.Stamp) {
	fragment, err := t.serializer.Value(v)
	if err != nil {
		t.report(ErrSerialization, err, st.desc, kind)
		return
	}
	t.write(st, kind, fragment, stamp)
}

func (t *Tracer) write(st *state, kind recorder.FileKind, fragment string, stamp recorder.Stamp) {
	if err := st.rec.Record(kind, fragment, stamp); err != nil {
		t.report(ErrIOWrite, err, st.desc, kind)
	}
}

func (t *Tracer) report(kind, err error, desc *target.Descriptor, file recorder.FileKind) {
	t.logger.Warn().
		Err(fmt.Errorf("%w: %w", kind, err)).
		Str("target", desc.Signature()).
		Str("file", file.String()).
		Msg("Record dropped")
}

// finish completes an invocation. Must hold st.mu.
func (t *Tracer) finish(inv *Invocation) {
	st := inv.state
	defer st.slot.Release(inv.ctx)

	delta := st.budget.ObjectProfileSize() - inv.sizeBefore
	if err := st.rec.RecordSize(delta); err != nil {
		t.report(ErrIOWrite, err, st.desc, recorder.ObjectProfileSize)
	}
	if !st.budget.Recheck() {
		t.noteLimits(st)
	}
	if _, err := st.rec.IncrementCount(); err != nil {
		t.report(ErrIOWrite, err, st.desc, recorder.InvocationCount)
	}
	if st.budget.Exhausted() {
		t.noteLimits(st)
	}
	if !st.summarized && !st.desc.IsNested() {
		if _, err := t.summary.Add(summaryRow(st.desc)); err != nil {
			t.logger.Warn().Err(fmt.Errorf("%w: %w", ErrIOWrite, err)).Msg("Failed to update invoked methods summary")
		} else {
			st.summarized = true
		}
	}
}

func summaryRow(d *target.Descriptor) recorder.SummaryRow {
	nested := make([]string, 0, len(d.Nested))
	for _, n := range d.Nested {
		nested = append(nested, n.Signature())
	}
	ret := d.Return
	if target.IsVoid(ret) {
		ret = "void"
	}
	return recorder.SummaryRow{
		Visibility:        d.Visibility,
		Type:              d.Type,
		Method:            d.Method,
		ParamList:         strings.Join(d.Params, ","),
		ReturnType:        ret,
		ParamSignature:    d.ParamSignature(),
		HasMockable:       len(d.Nested) > 0,
		NestedInvocations: strings.Join(nested, ";"),
	}
}

// libraryMarker names a nested call-site reached through library code and
// the parent it was correlated with.
func libraryMarker(d *target.Descriptor) string {
	var parent strings.Builder
	xml.EscapeText(&parent, []byte(d.Parent.FQN()))
	return "<" + target.TagName(d.FQN()) + ` parent="` + parent.String() + `"/>` + "\n"
}
