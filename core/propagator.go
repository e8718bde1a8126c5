package core

import (
	"fmt"
	"math"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/signalsfoundry/antenna-tracker/model"
)

// SpeedOfLight in metres per second.
const SpeedOfLight = 299_792_458.0

// Observation is a satellite's apparent position from a ground station at a
// single instant.
type Observation struct {
	Azimuth   float64 // degrees, [0, 360)
	Elevation float64 // degrees above the local horizon
	RangeKm   float64
	// RangeRate is positive while the satellite recedes, km/s.
	RangeRate float64
}

// Doppler returns the shift in Hz that a carrier transmitted at freqHz
// experiences at the ground station.
func (o Observation) Doppler(freqHz float64) float64 {
	return -freqHz * o.RangeRate * 1000.0 / SpeedOfLight
}

// Position returns the observation's pointing.
func (o Observation) Position() model.Position {
	return model.Position{Azimuth: o.Azimuth, Elevation: o.Elevation}
}

// Propagator computes where a satellite appears from a ground station.
type Propagator interface {
	Observe(rec model.SatelliteRecord, station model.GroundStation, t time.Time) (Observation, error)
}

// DefaultElementCacheSize bounds the number of parsed element sets kept by
// an SGP4Propagator.
const DefaultElementCacheSize = 64

// rangeRateStep is the interval over which range rate is differenced.
// go-satellite propagates at whole-second resolution.
const rangeRateStep = time.Second

// SGP4Propagator implements Propagator on top of go-satellite. Parsed
// element sets are cached per TLE pair so that the tracking loop does not
// re-initialise SGP4 on every step.
type SGP4Propagator struct {
	gravity satellite.Gravity
	cache   *lru.Cache[string, satellite.Satellite]
}

// NewSGP4Propagator constructs a propagator using WGS72 constants, the
// gravity model TLEs are generated against.
func NewSGP4Propagator(cacheSize int) (*SGP4Propagator, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultElementCacheSize
	}
	cache, err := lru.New[string, satellite.Satellite](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create element cache: %w", err)
	}
	return &SGP4Propagator{gravity: satellite.GravityWGS72, cache: cache}, nil
}

// Observe propagates rec to t and returns look angles and range rate from
// station.
func (p *SGP4Propagator) Observe(rec model.SatelliteRecord, station model.GroundStation, t time.Time) (Observation, error) {
	sat, err := p.elements(rec)
	if err != nil {
		return Observation{}, err
	}

	now, ok := lookAngles(sat, station, t)
	if !ok {
		return Observation{}, fmt.Errorf("propagate %q at %s: no solution", rec.Name, t.UTC().Format(time.RFC3339))
	}
	next, ok := lookAngles(sat, station, t.Add(rangeRateStep))
	if !ok {
		return Observation{}, fmt.Errorf("propagate %q at %s: no solution", rec.Name, t.Add(rangeRateStep).UTC().Format(time.RFC3339))
	}

	return Observation{
		Azimuth:   NormalizeAzimuth(now.Az * radToDeg),
		Elevation: now.El * radToDeg,
		RangeKm:   now.Rg,
		RangeRate: (next.Rg - now.Rg) / rangeRateStep.Seconds(),
	}, nil
}

// CachedElements reports how many element sets are currently cached.
func (p *SGP4Propagator) CachedElements() int {
	return p.cache.Len()
}

func (p *SGP4Propagator) elements(rec model.SatelliteRecord) (satellite.Satellite, error) {
	key := rec.TLE1 + "\n" + rec.TLE2
	if sat, ok := p.cache.Get(key); ok {
		return sat, nil
	}
	if err := ValidateTLE(rec.TLE1, rec.TLE2); err != nil {
		return satellite.Satellite{}, fmt.Errorf("satellite %q: %w", rec.Name, err)
	}
	sat := satellite.TLEToSat(rec.TLE1, rec.TLE2, p.gravity)
	p.cache.Add(key, sat)
	return sat, nil
}

// lookAngles propagates sat to t. go-satellite works in kilometres and
// radians; the boolean is false when SGP4 produced no usable state.
func lookAngles(sat satellite.Satellite, station model.GroundStation, t time.Time) (satellite.LookAngles, bool) {
	t = t.UTC()
	year, month, day := t.Date()
	hour, min, sec := t.Clock()

	posECI, _ := satellite.Propagate(sat, year, int(month), day, hour, min, sec)
	if math.IsNaN(posECI.X) || math.IsNaN(posECI.Y) || math.IsNaN(posECI.Z) {
		return satellite.LookAngles{}, false
	}
	jd := satellite.JDay(year, int(month), day, hour, min, sec)

	const mToKm = 1.0 / 1000.0
	obs := satellite.LatLong{
		Latitude:  station.Latitude * degToRad,
		Longitude: station.Longitude * degToRad,
	}
	look := satellite.ECIToLookAngles(posECI, obs, station.Altitude*mToKm, jd)
	if math.IsNaN(look.El) || math.IsNaN(look.Az) || math.IsNaN(look.Rg) {
		return satellite.LookAngles{}, false
	}
	return look, true
}

// TLELineLength is the fixed width of a two-line element set line.
const TLELineLength = 69

// ValidateTLE performs the structural checks go-satellite relies on before
// slicing the lines by column.
func ValidateTLE(line1, line2 string) error {
	line1 = strings.TrimRight(line1, " \r\n")
	line2 = strings.TrimRight(line2, " \r\n")
	if len(line1) < TLELineLength || !strings.HasPrefix(line1, "1 ") {
		return fmt.Errorf("invalid TLE line 1 %q", line1)
	}
	if len(line2) < TLELineLength || !strings.HasPrefix(line2, "2 ") {
		return fmt.Errorf("invalid TLE line 2 %q", line2)
	}
	return nil
}
