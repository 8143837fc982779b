package instrumentation

import (
	"context"
	"fmt"
	"os"
	"runtime/trace"
	"sync"
)

// TraceCategory is the runtime/trace log category of capture annotations.
const TraceCategory = "chronocap"

// runtimeTrace holds the execution trace started by StartRuntimeTracing.
type runtimeTrace struct {
	mu   sync.Mutex
	file *os.File
}

var activeTrace runtimeTrace

// StartRuntimeTracing starts a runtime execution trace written to path.
// While it runs, every captured invocation shows up as a region named
// after its target, annotated with its correlation identifier.
func StartRuntimeTracing(path string) error {
	activeTrace.mu.Lock()
	defer activeTrace.mu.Unlock()

	if activeTrace.file != nil {
		return fmt.Errorf("runtime tracing already started")
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create trace output file: %v", err)
	}
	if err := trace.Start(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to start runtime tracing: %v", err)
	}
	activeTrace.file = f
	return nil
}

// StopRuntimeTracing stops the trace started by StartRuntimeTracing.
func StopRuntimeTracing() error {
	activeTrace.mu.Lock()
	defer activeTrace.mu.Unlock()

	if activeTrace.file == nil {
		return nil
	}
	trace.Stop()
	err := activeTrace.file.Close()
	activeTrace.file = nil
	return err
}

// startRegion opens a region for a captured invocation. Regions are only
// created while an execution trace is being collected.
func startRegion(inv *Invocation) *trace.Region {
	if !trace.IsEnabled() {
		return nil
	}
	ctx := context.Background()
	desc := inv.state.desc
	if id := inv.CorrelationID(); id != "" {
		trace.Log(ctx, TraceCategory, desc.Signature()+" parent-uuid="+id)
	}
	return trace.StartRegion(ctx, desc.Signature())
}

func endRegion(r *trace.Region) {
	if r != nil {
		r.End()
	}
}
