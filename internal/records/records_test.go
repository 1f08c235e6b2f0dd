package records

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/separk-1/incident-regulation-mapping/pkg/common"
)

func TestDecode(t *testing.T) {
	data := []byte(`{
		"filename": "ler-2023-001.json",
		"attributes": {
			"Task": ["welding", "inspection"],
			"Cause": ["fatigue"]
		},
		"metadata": {
			"facility": {"name": "Peach Bottom", "unit": "2"},
			"event_date": "2023-05-14",
			"title": "Fire during maintenance welding",
			"clause": "10 CFR 50.72"
		}
	}`)

	record, err := Decode(data, "ignored.json")
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if record.Filename != "ler-2023-001.json" {
		t.Errorf("Filename = %q", record.Filename)
	}
	if len(record.Attributes[common.CategoryTask]) != 2 {
		t.Errorf("Task attributes = %v", record.Attributes[common.CategoryTask])
	}
	if record.Metadata.Facility.Unit != "2" {
		t.Errorf("Facility unit = %q", record.Metadata.Facility.Unit)
	}
}

func TestDecodeFallsBackToName(t *testing.T) {
	record, err := Decode([]byte(`{"attributes": {}}`), "records/ler-2023-002.json")
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if record.Filename != "ler-2023-002.json" {
		t.Errorf("Filename = %q, want base of source name", record.Filename)
	}
}

func TestDecodeRejectsInvalidJSON(t *testing.T) {
	if _, err := Decode([]byte(`{`), "bad.json"); err == nil {
		t.Fatal("Decode() error = nil, want parse failure")
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()

	writeFile := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	writeFile("a.json", `{"filename": "a.json", "attributes": {"Task": ["welding"]}}`)
	writeFile("b.json", `{"attributes": {}}`)
	writeFile("broken.json", `{`)
	writeFile("notes.txt", `not a record`)

	records, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("LoadDir() returned %d records, want 2", len(records))
	}
}

func TestLoadDirMissing(t *testing.T) {
	if _, err := LoadDir(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("LoadDir() error = nil, want missing-directory failure")
	}
}
