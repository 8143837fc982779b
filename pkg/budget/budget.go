// Package budget bounds how much tracing a single target may do: a cap on
// captured invocations and a cap on the size of its object logs.
package budget

import (
	"os"
	"sync"
)

const (
	// DefaultMaxInvocations is the default number of invocations captured per target.
	DefaultMaxInvocations = 10

	// DefaultMaxFileBytes is the default size at which an object log stops growing.
	DefaultMaxFileBytes int64 = 200 * 1024 * 1024
)

// Limits configures a Budget. Zero values fall back to the defaults.
type Limits struct {
	MaxInvocations int
	MaxFileBytes   int64
}

// DefaultLimits returns the default capture limits.
func DefaultLimits() Limits {
	return Limits{
		MaxInvocations: DefaultMaxInvocations,
		MaxFileBytes:   DefaultMaxFileBytes,
	}
}

// Budget tracks captured invocations and object log sizes for one target.
// Both counters only grow; once the size guard trips it stays tripped for
// the lifetime of the process.
type Budget struct {
	mu           sync.Mutex
	limits       Limits
	files        []string
	count        int
	withinLimits bool
}

// New creates a budget guarding the given object log files and evaluates
// the size guard once against their current lengths.
func New(limits Limits, files []string) *Budget {
	if limits.MaxInvocations <= 0 {
		limits.MaxInvocations = DefaultMaxInvocations
	}
	if limits.MaxFileBytes <= 0 {
		limits.MaxFileBytes = DefaultMaxFileBytes
	}
	b := &Budget{
		limits:       limits,
		files:        append([]string(nil), files...),
		withinLimits: true,
	}
	b.Recheck()
	return b
}

// Admit reports whether another invocation may be captured.
func (b *Budget) Admit() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.withinLimits && b.count < b.limits.MaxInvocations
}

// Exhausted reports whether the invocation cap has been reached.
func (b *Budget) Exhausted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count >= b.limits.MaxInvocations
}

// WithinLimits reports whether the size guard has not tripped.
func (b *Budget) WithinLimits() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.withinLimits
}

// Consume records one captured invocation and returns the new count.
func (b *Budget) Consume() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.count++
	return b.count
}

// Count returns the number of captured invocations.
func (b *Budget) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Recheck re-evaluates the size guard. It trips as soon as any guarded file
// has reached the size cap.
func (b *Budget) Recheck() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.withinLimits {
		return false
	}
	for _, f := range b.files {
		info, err := os.Stat(f)
		if err != nil {
			continue
		}
		if info.Size() >= b.limits.MaxFileBytes {
			b.withinLimits = false
			break
		}
	}
	return b.withinLimits
}

// ObjectProfileSize returns the combined length of the guarded files.
func (b *Budget) ObjectProfileSize() int64 {
	var total int64
	for _, f := range b.files {
		if info, err := os.Stat(f); err == nil {
			total += info.Size()
		}
	}
	return total
}

// Limits returns the configured limits.
func (b *Budget) Limits() Limits {
	return b.limits
}
