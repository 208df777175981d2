package stages

import (
	"math"
	"testing"
)

func TestArrhenius(t *testing.T) {
	if got := arrhenius(2.5, 60000, 65, 65); got != 2.5 {
		t.Errorf("rate at reference temperature = %v, want 2.5", got)
	}
	if got := arrhenius(2.5, 0, 10, 65); got != 2.5 {
		t.Errorf("zero activation energy should be temperature independent, got %v", got)
	}
	lo, hi := arrhenius(1, 60000, 55, 65), arrhenius(1, 60000, 75, 65)
	if !(lo < 1 && hi > 1) {
		t.Errorf("expected k(55) < 1 < k(75), got %v, %v", lo, hi)
	}
}

func TestMonod(t *testing.T) {
	tests := []struct {
		s, ks, want float64
	}{
		{0, 2, 0},
		{-5, 2, 0},
		{2, 2, 0.5},
		{1e9, 2, 1},
	}
	for _, tt := range tests {
		if got := monod(tt.s, tt.ks); math.Abs(got-tt.want) > 1e-6 {
			t.Errorf("monod(%v, %v) = %v, want %v", tt.s, tt.ks, got, tt.want)
		}
	}
}

func TestCO2Saturation(t *testing.T) {
	if got := CO2Saturation(25, 1); math.Abs(got-henryCO2) > 1e-12 {
		t.Errorf("saturation at 25 degC, 1 atm = %v, want %v", got, henryCO2)
	}
	if CO2Saturation(2, 1) <= CO2Saturation(20, 1) {
		t.Error("cold beer should hold more CO2")
	}
	if got, want := CO2Saturation(4, 2), 2*CO2Saturation(4, 1); math.Abs(got-want) > 1e-12 {
		t.Errorf("saturation should be linear in pressure: %v vs %v", got, want)
	}
}

func TestExtractionEfficiency(t *testing.T) {
	if got := ExtractionEfficiency(0, 0.9, 5); got != 0 {
		t.Errorf("no wash should extract nothing, got %v", got)
	}
	if got := ExtractionEfficiency(10, 0.9, 0); got != 1 {
		t.Errorf("no retained liquor should mean full recovery, got %v", got)
	}
	a := ExtractionEfficiency(10, 0.85, 5)
	b := ExtractionEfficiency(20, 0.85, 5)
	if !(a < b && b < 1) {
		t.Errorf("extraction should grow with wash volume and stay below 1: %v, %v", a, b)
	}
}
