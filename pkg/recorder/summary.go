package recorder

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
)

// SummaryHeader is the column header of the invoked-methods summary.
var SummaryHeader = []string{
	"visibility", "parent-FQN", "method-name", "param-list", "return-type",
	"param-signature", "has-mockable-invocations", "nested-invocations",
}

// SummaryRow describes one captured method.
type SummaryRow struct {
	Visibility        string
	Type              string
	Method            string
	ParamList         string
	ReturnType        string
	ParamSignature    string
	HasMockable       bool
	NestedInvocations string
}

func (r SummaryRow) record() []string {
	return []string{
		r.Visibility, r.Type, r.Method, r.ParamList, r.ReturnType,
		r.ParamSignature, strconv.FormatBool(r.HasMockable), r.NestedInvocations,
	}
}

func (r SummaryRow) key() string {
	return r.Type + "\x00" + r.Method + "\x00" + r.ParamSignature
}

// Summary is the invoked-methods file shared by every target in a storage
// directory.
type Summary struct {
	mu   sync.Mutex
	path string
	seen map[string]bool
}

// NewSummary returns the summary stored at path.
func NewSummary(path string) *Summary {
	return &Summary{path: path}
}

// Path returns the summary file location.
func (s *Summary) Path() string {
	return s.path
}

// Ensure creates the summary with its header if it does not exist.
func (s *Summary) Ensure() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensure()
}

func (s *Summary) ensure() error {
	if _, err := os.Stat(s.path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if errors.Is(err, os.ErrExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("create invoked methods summary: %w", err)
	}
	w := csv.NewWriter(f)
	w.Write(SummaryHeader)
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("write invoked methods header: %w", err)
	}
	return f.Close()
}

// Add appends row unless a row for the same method is already present.
// It reports whether a row was written.
func (s *Summary) Add(row SummaryRow) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensure(); err != nil {
		return false, err
	}
	if s.seen == nil {
		rows, err := s.read()
		if err != nil {
			return false, err
		}
		s.seen = make(map[string]bool, len(rows))
		for _, r := range rows {
			s.seen[r.key()] = true
		}
	}
	if s.seen[row.key()] {
		return false, nil
	}

	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return false, fmt.Errorf("open invoked methods summary: %w", err)
	}
	w := csv.NewWriter(f)
	w.Write(row.record())
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return false, fmt.Errorf("append invoked method: %w", err)
	}
	if err := f.Close(); err != nil {
		return false, err
	}
	s.seen[row.key()] = true
	return true, nil
}

// Rows returns every row of the summary.
func (s *Summary) Rows() ([]SummaryRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *Summary) read() ([]SummaryRow, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	var rows []SummaryRow
	for first := true; ; first = false {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read invoked methods summary: %w", err)
		}
		if first || len(rec) < len(SummaryHeader) {
			continue
		}
		hasMockable, _ := strconv.ParseBool(rec[6])
		rows = append(rows, SummaryRow{
			Visibility:        rec[0],
			Type:              rec[1],
			Method:            rec[2],
			ParamList:         rec[3],
			ReturnType:        rec[4],
			ParamSignature:    rec[5],
			HasMockable:       hasMockable,
			NestedInvocations: rec[7],
		})
	}
	return rows, nil
}
