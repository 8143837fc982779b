// Package replay reads captured trace logs back and steps through their
// records.
package replay

import "fmt"

// Replayer steps through a sequence of records
type Replayer interface {
	// Load replaces the records to step through
	Load([]Record)

	// Next advances to the next record
	Next() (Record, bool)

	// ReplayForward calls visit for every record after the current position
	ReplayForward(visit func(Record))

	// ReplayUntil advances until stop reports true for a record
	ReplayUntil(stop func(Record) bool) (Record, bool)

	// ReplayToIndex moves to the specified index
	ReplayToIndex(idx int) error

	// StepBackward steps backward from the current index
	// returns the new index after stepping back
	StepBackward() (int, error)

	// CurrentIndex returns the current record index
	CurrentIndex() int

	// Records returns all loaded records
	Records() []Record
}

// BasicReplayer implements the Replayer interface
type BasicReplayer struct {
	records    []Record
	currentIdx int
}

// NewBasicReplayer creates a new BasicReplayer
func NewBasicReplayer(records []Record) *BasicReplayer {
	return &BasicReplayer{
		records:    records,
		currentIdx: -1,
	}
}

// Load replaces the records and rewinds to the start
func (r *BasicReplayer) Load(records []Record) {
	r.records = records
	r.currentIdx = -1
}

// Next advances one record
func (r *BasicReplayer) Next() (Record, bool) {
	if r.currentIdx+1 >= len(r.records) {
		return Record{}, false
	}
	r.currentIdx++
	return r.records[r.currentIdx], true
}

// ReplayForward visits every remaining record
func (r *BasicReplayer) ReplayForward(visit func(Record)) {
	for {
		rec, ok := r.Next()
		if !ok {
			return
		}
		visit(rec)
	}
}

// ReplayUntil advances until stop matches a record and returns it. The
// position is left on the matching record, or at the end.
func (r *BasicReplayer) ReplayUntil(stop func(Record) bool) (Record, bool) {
	for {
		rec, ok := r.Next()
		if !ok {
			return Record{}, false
		}
		if stop(rec) {
			return rec, true
		}
	}
}

// ReplayToIndex moves to the specified index
func (r *BasicReplayer) ReplayToIndex(idx int) error {
	if idx < 0 || idx >= len(r.records) {
		return fmt.Errorf("index %d out of range [0, %d)", idx, len(r.records))
	}
	r.currentIdx = idx
	return nil
}

// StepBackward moves one step backward in the record log
func (r *BasicReplayer) StepBackward() (int, error) {
	if r.currentIdx <= 0 {
		return 0, fmt.Errorf("already at the beginning")
	}
	r.currentIdx--
	return r.currentIdx, nil
}

// CurrentIndex returns the current record index
func (r *BasicReplayer) CurrentIndex() int {
	return r.currentIdx
}

// Records returns all loaded records
func (r *BasicReplayer) Records() []Record {
	return r.records
}
