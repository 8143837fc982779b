package replay

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/willibrandon/ChronoCapture/pkg/recorder"
)

const sampleReturned = `<int parent-uuid="p-1" timestamp="100">5</int>
<example.com.shop.Cart parent-uuid="p-2" timestamp="200">
  <Items>3</Items>
</example.com.shop.Cart>
<null timestamp="300"/>
`

func TestReadRecords(t *testing.T) {
	records, err := ReadRecords(strings.NewReader(sampleReturned), recorder.Returned)
	if err != nil {
		t.Fatalf("ReadRecords failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(records))
	}

	first := records[0]
	if first.Tag != "int" || first.CorrelationID != "p-1" || first.Timestamp != 100 || first.Body != "5" {
		t.Errorf("Unexpected first record %+v", first)
	}
	if first.Kind != recorder.Returned {
		t.Errorf("Expected kind Returned, got %v", first.Kind)
	}
	if records[1].Body != "<Items>3</Items>" {
		t.Errorf("Unexpected body %q", records[1].Body)
	}
	if records[2].CorrelationID != "" || records[2].Tag != "null" {
		t.Errorf("Expected an uncorrelated null record, got %+v", records[2])
	}
}

func TestReadRecordsKeepsExtraAttributes(t *testing.T) {
	in := `<example.com.notify.Mailer.Send parent="example.com/shop/cart.Cart.Checkout" parent-uuid="p" timestamp="1"/>`
	records, err := ReadRecords(strings.NewReader(in), recorder.LibraryInvocations)
	if err != nil {
		t.Fatalf("ReadRecords failed: %v", err)
	}
	if len(records) != 1 || records[0].Attrs["parent"] != "example.com/shop/cart.Cart.Checkout" {
		t.Errorf("Unexpected records %+v", records)
	}
}

func TestReadRecordsMalformed(t *testing.T) {
	if _, err := ReadRecords(strings.NewReader("<int>5</long>"), recorder.Returned); err == nil {
		t.Error("Expected an error for mismatched tags")
	}
}

func TestLoadTargetReadsArchives(t *testing.T) {
	dir := t.TempDir()
	layout := recorder.Layout{Dir: dir, Code: "CODE"}

	params := `<object-array parent-uuid="p-1" timestamp="100">
  <int>5</int>
</object-array>
`
	if err := os.WriteFile(layout.Path(recorder.Params), []byte(params), 0644); err != nil {
		t.Fatal(err)
	}

	plain := filepath.Join(dir, "returned.tmp")
	if err := os.WriteFile(plain, []byte(sampleReturned), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := recorder.ArchiveFile(plain, layout.Path(recorder.Returned)+recorder.ArchiveSuffix); err != nil {
		t.Fatalf("ArchiveFile failed: %v", err)
	}

	records, err := LoadTarget(layout)
	if err != nil {
		t.Fatalf("LoadTarget failed: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("Expected 4 records, got %d", len(records))
	}
	// params and the first result share a timestamp; log order is kept
	if records[0].Kind != recorder.Params || records[1].Kind != recorder.Returned {
		t.Errorf("Unexpected order: %v, %v", records[0].Kind, records[1].Kind)
	}

	groups := Group(records)
	if len(groups) != 3 {
		t.Fatalf("Expected 3 groups, got %d", len(groups))
	}
	if groups[0].CorrelationID != "p-1" || len(groups[0].Records) != 2 {
		t.Errorf("Unexpected first group %+v", groups[0])
	}
	if groups[2].CorrelationID != "" || len(groups[2].Records) != 1 {
		t.Errorf("Expected uncorrelated record alone, got %+v", groups[2])
	}
}

func TestBasicReplayer(t *testing.T) {
	records, err := ReadRecords(strings.NewReader(sampleReturned), recorder.Returned)
	if err != nil {
		t.Fatal(err)
	}
	replayer := NewBasicReplayer(records)

	if replayer.CurrentIndex() != -1 {
		t.Errorf("Expected current index to be -1, got %d", replayer.CurrentIndex())
	}

	rec, ok := replayer.ReplayUntil(func(r Record) bool { return r.CorrelationID == "p-2" })
	if !ok || rec.Timestamp != 200 {
		t.Fatalf("Expected to stop at p-2, got %+v, %v", rec, ok)
	}
	if replayer.CurrentIndex() != 1 {
		t.Errorf("Expected current index to be 1, got %d", replayer.CurrentIndex())
	}

	idx, err := replayer.StepBackward()
	if err != nil || idx != 0 {
		t.Errorf("StepBackward() = %d, %v", idx, err)
	}
	if _, err := replayer.StepBackward(); err == nil {
		t.Error("Expected an error stepping back from the beginning")
	}

	var seen []string
	replayer.ReplayForward(func(r Record) { seen = append(seen, r.Tag) })
	if len(seen) != 2 {
		t.Errorf("Expected 2 remaining records, got %v", seen)
	}
	if _, ok := replayer.Next(); ok {
		t.Error("Expected no record past the end")
	}

	if err := replayer.ReplayToIndex(5); err == nil {
		t.Error("Expected an error for an out of range index")
	}
	if err := replayer.ReplayToIndex(0); err != nil {
		t.Errorf("ReplayToIndex(0) failed: %v", err)
	}

	replayer.Load(nil)
	if replayer.CurrentIndex() != -1 || len(replayer.Records()) != 0 {
		t.Error("Expected Load to reset the replayer")
	}
}
