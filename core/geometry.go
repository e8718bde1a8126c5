package core

import (
	"math"

	"github.com/signalsfoundry/antenna-tracker/model"
)

// QuantumDeg is the pointing resolution the tracker commands the rotor at.
const QuantumDeg = 0.5

const (
	degToRad = math.Pi / 180.0
	radToDeg = 180.0 / math.Pi
)

// Quantize rounds v to the nearest multiple of QuantumDeg, with halves
// rounded away from zero. Quantize(Quantize(v)) == Quantize(v).
func Quantize(v float64) float64 {
	return math.Round(v/QuantumDeg) * QuantumDeg
}

// QuantizePosition quantizes both axes of p.
func QuantizePosition(p model.Position) model.Position {
	return model.Position{
		Azimuth:   Quantize(p.Azimuth),
		Elevation: Quantize(p.Elevation),
	}
}

// NormalizeAzimuth maps az into [0, 360).
func NormalizeAzimuth(az float64) float64 {
	az = math.Mod(az, 360)
	if az < 0 {
		az += 360
	}
	// math.Mod(-1e-18, 360) + 360 rounds to 360.
	if az >= 360 {
		az = 0
	}
	return az
}

// AzimuthDelta returns the smallest angular distance between two azimuths,
// in [0, 180].
func AzimuthDelta(a, b float64) float64 {
	d := math.Abs(NormalizeAzimuth(a) - NormalizeAzimuth(b))
	if d > 180 {
		d = 360 - d
	}
	return d
}

// SamePosition reports whether got lies within tol degrees of want on both
// axes. Azimuth is compared modulo 360.
func SamePosition(got, want model.Position, tol float64) bool {
	if AzimuthDelta(got.Azimuth, want.Azimuth) > tol {
		return false
	}
	return math.Abs(got.Elevation-want.Elevation) <= tol
}
