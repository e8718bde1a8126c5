package core

import (
	"math"
	"strconv"
	"strings"

	"github.com/signalsfoundry/antenna-tracker/model"
)

const hzPerMHz = 1_000_000

// BaseFrequencyHz resolves the nominal downlink frequency for rec in Hz.
//
// The first catalog frequency token is used; only its first whitespace
// separated field is parsed, so "437.500 FM" resolves to 437.5 MHz. A
// placeholder token, an empty token or one that does not parse yields
// fallbackHz. The boolean reports whether the catalog value was used.
func BaseFrequencyHz(rec model.SatelliteRecord, fallbackHz float64) (float64, bool) {
	token := rec.PrimaryFrequency()
	if token == "" || token == model.FrequencyPlaceholder {
		return fallbackHz, false
	}
	fields := strings.Fields(token)
	mhz, err := strconv.ParseFloat(fields[0], 64)
	if err != nil || !(mhz > 0) || math.IsInf(mhz, 0) {
		return fallbackHz, false
	}
	return mhz * hzPerMHz, true
}
