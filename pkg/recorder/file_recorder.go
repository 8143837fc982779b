package recorder

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Stamp carries the invocation identity written into every fragment.
type Stamp struct {
	CorrelationID string // empty for uncorrelated records
	Timestamp     int64  // epoch milliseconds
}

// StampFirstTag adds parent-uuid and timestamp attributes to the first tag
// of fragment, so readers can group records without a separate index.
func StampFirstTag(fragment string, stamp Stamp) string {
	end := strings.IndexByte(fragment, '>')
	if end < 0 {
		return fragment
	}
	at := end
	for at > 0 && fragment[at-1] == '/' {
		at--
	}

	var attrs strings.Builder
	if stamp.CorrelationID != "" {
		attrs.WriteString(` parent-uuid="` + stamp.CorrelationID + `"`)
	}
	attrs.WriteString(` timestamp="` + strconv.FormatInt(stamp.Timestamp, 10) + `"`)
	return fragment[:at] + attrs.String() + fragment[at:]
}

// AppendFragment stamps fragment and appends it line by line to path. The
// file is opened in append mode and closed before returning.
func AppendFragment(path, fragment string, stamp Stamp) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	w := bufio.NewWriter(f)
	scanner := bufio.NewScanner(strings.NewReader(StampFirstTag(fragment, stamp)))
	scanner.Buffer(make([]byte, 0, 64*1024), len(fragment)+1024)
	for scanner.Scan() {
		if _, err := w.WriteString(scanner.Text()); err != nil {
			return err
		}
		if err := w.WriteByte('\n'); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return w.Flush()
}

// FileRecorder writes the files of one target. Callers serialize access;
// the tracer holds the target's lock around every call.
type FileRecorder struct {
	layout   Layout
	counter  *Counter
	redactor *Redactor
}

// FileRecorderOptions contains options for creating a file recorder
type FileRecorderOptions struct {
	// Redactor masks sensitive element values before they are written.
	Redactor *Redactor
}

// NewFileRecorder creates the storage directory if needed and returns a
// recorder for the target identified by identity.
func NewFileRecorder(layout Layout, identity string, options FileRecorderOptions) (*FileRecorder, error) {
	if err := os.MkdirAll(layout.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return &FileRecorder{
		layout:   layout,
		counter:  NewCounter(layout.Path(InvocationCount), identity),
		redactor: options.Redactor,
	}, nil
}

// Layout returns the file layout of the target.
func (fr *FileRecorder) Layout() Layout {
	return fr.layout
}

// Record appends a serialized fragment to the log of kind.
func (fr *FileRecorder) Record(kind FileKind, fragment string, stamp Stamp) error {
	if fr.redactor != nil {
		fragment = fr.redactor.Redact(fragment)
	}
	if err := AppendFragment(fr.layout.Path(kind), fragment, stamp); err != nil {
		return fmt.Errorf("append %s record: %w", kind, err)
	}
	return nil
}

// RecordSize appends the number of bytes one invocation added to the
// object logs.
func (fr *FileRecorder) RecordSize(delta int64) (err error) {
	f, err := os.OpenFile(fr.layout.Path(ObjectProfileSize), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("append object profile size: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	_, err = f.WriteString(strconv.FormatInt(delta, 10) + "\n")
	return err
}

// IncrementCount bumps the durable invocation count.
func (fr *FileRecorder) IncrementCount() (int, error) {
	return fr.counter.Increment()
}

// ObjectLogs returns the files guarded by the size budget.
func (fr *FileRecorder) ObjectLogs() []string {
	return fr.layout.ObjectLogs()
}
