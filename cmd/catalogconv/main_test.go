package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/signalsfoundry/antenna-tracker/catalog"
	"github.com/signalsfoundry/antenna-tracker/internal/logging"
)

const rawExport = `"NOAA 19
1 33591U 09005A   24054.51807870  .00000232  00000+0  15162-3 0  9993
2 33591  99.0536 108.6539 0014062 107.0710 253.1985 14.12804010772106";"137.100
137.9125"
"ISS (ZARYA)
1 25544U 98067A   21275.59097222  .00000204  00000-0  10270-4 0  9990
2 25544  51.6459 115.9059 0001817  61.3028  35.9198 15.49370953257760";"FrequencyPlaceholder"
`

func writeExport(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "satdata.csv")
	if err := os.WriteFile(path, []byte(rawExport), 0o600); err != nil {
		t.Fatalf("write export: %v", err)
	}
	return path
}

func TestConvertWritesYAMLToStdout(t *testing.T) {
	src := writeExport(t)
	var out bytes.Buffer
	if err := convert(context.Background(), src, options{}, &out, logging.Noop()); err != nil {
		t.Fatalf("convert: %v", err)
	}

	records, err := catalog.ReadYAML(&out)
	if err != nil {
		t.Fatalf("ReadYAML: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].Name != "NOAA 19" || records[0].Frequencies != "137.100;137.9125" {
		t.Fatalf("unexpected first record %+v", records[0])
	}
	if records[1].Name != "ISS (ZARYA)" || records[1].PrimaryFrequency() != "FrequencyPlaceholder" {
		t.Fatalf("unexpected second record %+v", records[1])
	}
}

func TestConvertWritesFiles(t *testing.T) {
	src := writeExport(t)
	dir := t.TempDir()
	opts := options{
		yamlPath: filepath.Join(dir, "satdata.yaml"),
		tlePath:  filepath.Join(dir, "satdata.tle"),
	}
	var stdout bytes.Buffer
	if err := convert(context.Background(), src, opts, &stdout, logging.Noop()); err != nil {
		t.Fatalf("convert: %v", err)
	}
	if stdout.Len() != 0 {
		t.Fatalf("stdout should be empty when --yaml is set, got %q", stdout.String())
	}

	cat, err := catalog.Load(opts.yamlPath)
	if err != nil {
		t.Fatalf("Load converted catalog: %v", err)
	}
	if cat.Len() != 2 {
		t.Fatalf("converted catalog has %d records, want 2", cat.Len())
	}

	tle, err := os.ReadFile(opts.tlePath)
	if err != nil {
		t.Fatalf("read tle: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(tle), "\n"), "\n")
	if len(lines) != 6 || lines[0] != "NOAA 19" || lines[3] != "ISS (ZARYA)" {
		t.Fatalf("unexpected element file:\n%s", tle)
	}
}

func TestRootCommandRequiresSource(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetArgs(nil)
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected an argument error")
	}
}

func TestConvertRejectsInvalidRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	if err := os.WriteFile(path, []byte("\"BROKEN\n1 short\n2 short\";\"137.1\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := convert(context.Background(), path, options{}, new(bytes.Buffer), logging.Noop()); err == nil {
		t.Fatal("expected validation error")
	}
}
