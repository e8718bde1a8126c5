package core

import (
	"math"
	"testing"

	"github.com/signalsfoundry/antenna-tracker/model"
)

func TestQuantize(t *testing.T) {
	cases := []struct {
		in, want float64
	}{
		{0, 0},
		{0.24, 0},
		{0.25, 0.5},
		{0.74, 0.5},
		{0.75, 1},
		{123.26, 123.5},
		{359.8, 360},
		{-0.25, -0.5},
		{-10.1, -10},
	}
	for _, tc := range cases {
		if got := Quantize(tc.in); got != tc.want {
			t.Errorf("Quantize(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestQuantizeIsIdempotent(t *testing.T) {
	for v := -90.0; v <= 360; v += 0.137 {
		q := Quantize(v)
		if Quantize(q) != q {
			t.Fatalf("Quantize not idempotent at %v: %v then %v", v, q, Quantize(q))
		}
		if math.Abs(q-v) > QuantumDeg/2+1e-9 {
			t.Fatalf("Quantize(%v) = %v moved more than half a step", v, q)
		}
	}
}

func TestQuantizePosition(t *testing.T) {
	got := QuantizePosition(model.Position{Azimuth: 120.4, Elevation: 45.1})
	if got != (model.Position{Azimuth: 120.5, Elevation: 45}) {
		t.Fatalf("QuantizePosition = %+v", got)
	}
}

func TestNormalizeAzimuth(t *testing.T) {
	cases := []struct {
		in, want float64
	}{
		{0, 0},
		{359.5, 359.5},
		{360, 0},
		{370, 10},
		{-10, 350},
		{-360, 0},
		{725, 5},
	}
	for _, tc := range cases {
		if got := NormalizeAzimuth(tc.in); got != tc.want {
			t.Errorf("NormalizeAzimuth(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
	if got := NormalizeAzimuth(-1e-18); got < 0 || got >= 360 {
		t.Errorf("NormalizeAzimuth(-1e-18) = %v, outside [0, 360)", got)
	}
}

func TestAzimuthDelta(t *testing.T) {
	cases := []struct {
		a, b, want float64
	}{
		{10, 20, 10},
		{359, 1, 2},
		{-10, 350, 0},
		{0, 180, 180},
	}
	for _, tc := range cases {
		if got := AzimuthDelta(tc.a, tc.b); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("AzimuthDelta(%v, %v) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestSamePosition(t *testing.T) {
	want := model.Position{Azimuth: 120.5, Elevation: 45}
	cases := []struct {
		name string
		got  model.Position
		ok   bool
	}{
		{"exact", want, true},
		{"within tolerance", model.Position{Azimuth: 120.7, Elevation: 44.8}, true},
		{"azimuth off", model.Position{Azimuth: 121, Elevation: 45}, false},
		{"elevation off", model.Position{Azimuth: 120.5, Elevation: 45.5}, false},
		{"wrapped", model.Position{Azimuth: 480.5, Elevation: 45}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SamePosition(tc.got, want, 0.25); got != tc.ok {
				t.Fatalf("SamePosition(%+v) = %v, want %v", tc.got, got, tc.ok)
			}
		})
	}

	if !SamePosition(model.Position{Azimuth: 359.9}, model.Home, 0.25) {
		t.Fatal("359.9 should count as home")
	}
}
