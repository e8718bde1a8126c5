package catalog

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/antenna-tracker/model"
)

// CSVSeparator delimits the two columns of a raw catalog export.
const CSVSeparator = ';'

// ReadCSV decodes the raw export format: one row per satellite, the first
// column holding the name and both TLE lines separated by newlines, the
// second holding downlink frequencies one per line. Both columns are
// normally quoted since they span lines.
func ReadCSV(r io.Reader) ([]model.SatelliteRecord, error) {
	cr := csv.NewReader(r)
	cr.Comma = CSVSeparator
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var records []model.SatelliteRecord
	for row := 1; ; row++ {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		if len(fields) == 0 || (len(fields) == 1 && strings.TrimSpace(fields[0]) == "") {
			continue
		}
		if len(fields) < 2 {
			return nil, fmt.Errorf("row %d: want 2 columns, got %d", row, len(fields))
		}

		lines := splitLines(fields[0])
		if len(lines) < 3 {
			return nil, fmt.Errorf("row %d: want name and two TLE lines, got %d lines", row, len(lines))
		}
		records = append(records, model.SatelliteRecord{
			Name:        strings.TrimSpace(lines[0]),
			TLE1:        lines[1],
			TLE2:        lines[2],
			Frequencies: strings.Join(splitLines(fields[1]), ";"),
		})
	}
}

func splitLines(s string) []string {
	var out []string
	for _, l := range strings.Split(s, "\n") {
		l = strings.TrimRight(l, "\r")
		if strings.TrimSpace(l) == "" {
			continue
		}
		out = append(out, l)
	}
	return out
}

type yamlCatalog struct {
	Satellites []model.SatelliteRecord `yaml:"satellites"`
}

// ReadYAML decodes a converted catalog.
func ReadYAML(r io.Reader) ([]model.SatelliteRecord, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc yamlCatalog
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}
	return doc.Satellites, nil
}

// WriteYAML encodes records in the format ReadYAML accepts.
func WriteYAML(w io.Writer, records []model.SatelliteRecord) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(yamlCatalog{Satellites: records}); err != nil {
		return err
	}
	return enc.Close()
}

// WriteTLE writes records as a three-line element file (name, line 1,
// line 2) as consumed by Gpredict and most other trackers.
func WriteTLE(w io.Writer, records []model.SatelliteRecord) error {
	bw := bufio.NewWriter(w)
	for _, rec := range records {
		if _, err := fmt.Fprintf(bw, "%s\n%s\n%s\n", rec.Name, rec.TLE1, rec.TLE2); err != nil {
			return err
		}
	}
	return bw.Flush()
}
