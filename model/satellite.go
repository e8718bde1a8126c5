package model

import "strings"

// FrequencyPlaceholder marks a catalog entry whose downlink is not under
// radio control; the tracker falls back to its default frequency.
const FrequencyPlaceholder = "FrequencyPlaceholder"

// SatelliteRecord is a single catalog entry. Records are created once when
// the catalog is loaded and never mutated afterwards.
type SatelliteRecord struct {
	Name string `yaml:"name"`
	TLE1 string `yaml:"tle1"`
	TLE2 string `yaml:"tle2"`

	// Frequencies is a semicolon separated list of downlink frequencies in
	// MHz, e.g. "137.100;137.9125". Tokens may carry a trailing mode
	// ("437.500 FM") or be FrequencyPlaceholder.
	Frequencies string `yaml:"freqs"`
}

// PrimaryFrequency returns the first semicolon separated token of
// Frequencies with surrounding whitespace removed.
func (r SatelliteRecord) PrimaryFrequency() string {
	first, _, _ := strings.Cut(strings.TrimSpace(r.Frequencies), ";")
	return strings.TrimSpace(first)
}

// GroundStation is the fixed observer location. Latitude and longitude are
// geodetic degrees; altitude is metres above the ellipsoid.
type GroundStation struct {
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
	Altitude  float64 `yaml:"altitude"`
}

// Position is an antenna pointing in degrees.
type Position struct {
	Azimuth   float64
	Elevation float64
}

// Home is the rotor's parking position.
var Home = Position{}
