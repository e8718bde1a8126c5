// Package catalog holds the static satellite table the tracker selects
// from. A Catalog is built once at startup and is read-only afterwards, so
// it can be shared between the selection listener and the coordinator
// without locking.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/signalsfoundry/antenna-tracker/core"
	"github.com/signalsfoundry/antenna-tracker/model"
)

// Catalog is an immutable, ordered set of satellite records.
type Catalog struct {
	records []model.SatelliteRecord
}

// New validates records and returns a Catalog preserving their order.
// Duplicate names are allowed; lookups resolve to the first one.
func New(records []model.SatelliteRecord) (*Catalog, error) {
	var errs []error
	out := make([]model.SatelliteRecord, 0, len(records))
	for i, rec := range records {
		rec.Name = strings.TrimSpace(rec.Name)
		rec.TLE1 = strings.TrimRight(rec.TLE1, " \r\n")
		rec.TLE2 = strings.TrimRight(rec.TLE2, " \r\n")
		if rec.Name == "" {
			errs = append(errs, fmt.Errorf("record %d: empty name", i))
			continue
		}
		if err := core.ValidateTLE(rec.TLE1, rec.TLE2); err != nil {
			errs = append(errs, fmt.Errorf("record %d (%s): %w", i, rec.Name, err))
			continue
		}
		out = append(out, rec)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return &Catalog{records: out}, nil
}

// Lookup resolves a selection to a record. The selection is trimmed and
// matched as a case-sensitive substring of each record's name; the first
// match in catalog order wins. An empty selection never matches.
func (c *Catalog) Lookup(selection string) (model.SatelliteRecord, bool) {
	selection = strings.TrimSpace(selection)
	if c == nil || selection == "" {
		return model.SatelliteRecord{}, false
	}
	for _, rec := range c.records {
		if strings.Contains(rec.Name, selection) {
			return rec, true
		}
	}
	return model.SatelliteRecord{}, false
}

// Len returns the number of records.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.records)
}

// Records returns a copy of the records in catalog order.
func (c *Catalog) Records() []model.SatelliteRecord {
	if c == nil {
		return nil
	}
	out := make([]model.SatelliteRecord, len(c.records))
	copy(out, c.records)
	return out
}

// Load reads a catalog file, choosing the decoder from its extension:
// .csv for the raw export format, .yaml or .yml for converted catalogs.
func Load(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog %q: %w", path, err)
	}
	defer f.Close()

	var records []model.SatelliteRecord
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		records, err = ReadCSV(f)
	case ".yaml", ".yml":
		records, err = ReadYAML(f)
	default:
		return nil, fmt.Errorf("catalog %q: unsupported extension %q", path, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("load catalog %q: %w", path, err)
	}
	return New(records)
}
