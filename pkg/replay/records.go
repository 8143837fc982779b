package replay

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/willibrandon/ChronoCapture/pkg/recorder"
)

// Record is one fragment read back from a trace log.
type Record struct {
	Kind          recorder.FileKind
	Tag           string
	CorrelationID string // empty for uncorrelated records
	Timestamp     int64  // epoch milliseconds
	Attrs         map[string]string
	Body          string // inner markup of the fragment
}

type fragment struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Inner   string     `xml:",innerxml"`
}

// ReadRecords parses a trace log. Logs are bare sequences of fragments, so
// the content is wrapped in a root element before decoding.
func ReadRecords(r io.Reader, kind recorder.FileKind) ([]Record, error) {
	doc := io.MultiReader(strings.NewReader("<records>"), r, strings.NewReader("</records>"))
	d := xml.NewDecoder(doc)

	var records []Record
	depth := 0
	for {
		tok, err := d.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return records, fmt.Errorf("parse %s log: %w", kind, err)
		}
		switch el := tok.(type) {
		case xml.StartElement:
			if depth == 0 {
				depth++
				continue
			}
			var f fragment
			if err := d.DecodeElement(&f, &el); err != nil {
				return records, fmt.Errorf("parse %s record: %w", kind, err)
			}
			records = append(records, newRecord(kind, f))
		case xml.EndElement:
			depth--
		}
	}
	return records, nil
}

func newRecord(kind recorder.FileKind, f fragment) Record {
	rec := Record{
		Kind:  kind,
		Tag:   f.XMLName.Local,
		Attrs: make(map[string]string, len(f.Attrs)),
		Body:  strings.TrimSpace(f.Inner),
	}
	for _, a := range f.Attrs {
		switch a.Name.Local {
		case "parent-uuid":
			rec.CorrelationID = a.Value
		case "timestamp":
			rec.Timestamp, _ = strconv.ParseInt(a.Value, 10, 64)
		default:
			rec.Attrs[a.Name.Local] = a.Value
		}
	}
	return rec
}

// ReadFile parses the log at path. Archived logs ending in .zst are
// decompressed on the fly.
func ReadFile(path string, kind recorder.FileKind) ([]Record, error) {
	rc, err := recorder.OpenLog(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return ReadRecords(rc, kind)
}

// LoadTarget reads every object log of a target, preferring the plain log
// and falling back to its archived copy. Missing logs are skipped. Records
// are ordered by timestamp; records with equal timestamps keep log order.
func LoadTarget(layout recorder.Layout) ([]Record, error) {
	var all []Record
	for _, kind := range recorder.ObjectLogKinds {
		path := layout.Path(kind)
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			path += recorder.ArchiveSuffix
			if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
				continue
			}
		}
		records, err := ReadFile(path, kind)
		if err != nil {
			return nil, err
		}
		all = append(all, records...)
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Timestamp < all[j].Timestamp })
	return all, nil
}

// Invocation gathers the records that share a correlation identifier: a
// captured invocation and the nested calls made inside it.
type Invocation struct {
	CorrelationID string
	Records       []Record
}

// Group collects records by correlation identifier in order of first
// appearance. Uncorrelated records each form their own group.
func Group(records []Record) []Invocation {
	var groups []Invocation
	index := make(map[string]int)
	for _, r := range records {
		if r.CorrelationID == "" {
			groups = append(groups, Invocation{Records: []Record{r}})
			continue
		}
		i, ok := index[r.CorrelationID]
		if !ok {
			i = len(groups)
			index[r.CorrelationID] = i
			groups = append(groups, Invocation{CorrelationID: r.CorrelationID})
		}
		groups[i].Records = append(groups[i].Records, r)
	}
	return groups
}
