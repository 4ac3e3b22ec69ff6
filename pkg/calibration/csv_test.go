package calibration

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleCSV = `Item,m_T,h,v,c
WASH,12,0.02,3,10
 Shelter , 12 , 0.03 , 2.5 , 40

Food,12,n/a,4,2
`

func TestReadCSV(t *testing.T) {
	records, err := ReadCSV(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("ReadCSV() error = %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}

	if records[1].Label != "Shelter" || records[1].Index != 1 {
		t.Errorf("unexpected second record %+v", records[1])
	}
	if c, _ := records[1].Get("c"); c != 40 {
		t.Errorf("Shelter c = %v, expected 40", c)
	}
	if records[2].Index != 2 {
		t.Errorf("blank line should not consume an index, got %d", records[2].Index)
	}

	h, ok := records[2].Lookup("h")
	if !ok || !math.IsNaN(h) {
		t.Errorf("unparseable cell should load as NaN, got %v (present=%v)", h, ok)
	}
	if _, err := records[2].Get("h"); err == nil {
		t.Error("Get() on an unparseable cell should fail")
	}
}

func TestReadCSVErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"Empty input", ""},
		{"Header only", "Item,c\n"},
		{"Label column only", "Item\nWASH\n"},
		{"Duplicate column", "Item,c,c\nWASH,1,2\n"},
		{"Empty column name", "Item,,c\nWASH,1,2\n"},
		{"Short row", "Item,c,h\nWASH,1\n"},
		{"Repeated label", "Item,c\nWASH,1\nFood,2\n WASH ,3\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ReadCSV(strings.NewReader(tt.input)); err == nil {
				t.Errorf("ReadCSV(%q) expected error", tt.input)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calibration.csv")
	if err := os.WriteFile(path, []byte(sampleCSV), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	records, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if len(records) != 3 {
		t.Errorf("expected 3 records, got %d", len(records))
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Error("LoadFile() on a missing file should fail")
	}
}
