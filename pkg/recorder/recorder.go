package recorder

// Recorder persists the records of one target.
type Recorder interface {
	Record(kind FileKind, fragment string, stamp Stamp) error
	RecordSize(delta int64) error
	IncrementCount() (int, error)
	ObjectLogs() []string
}

var _ Recorder = (*FileRecorder)(nil)
