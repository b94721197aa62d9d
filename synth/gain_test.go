package synth

import (
	"math"
	"testing"
)

func TestScheduledGainSetValue(t *testing.T) {
	g := NewScheduledGain(0.5)
	if got := g.ValueAt(1); got != 0.5 {
		t.Errorf("initial value: got %v, expected 0.5", got)
	}
	g.SetValueAt(0.8, 2)
	if got := g.ValueAt(1.999); got != 0.5 {
		t.Errorf("value before set: got %v, expected 0.5", got)
	}
	if got := g.ValueAt(2); got != 0.8 {
		t.Errorf("value at set: got %v, expected 0.8", got)
	}
}

func TestScheduledGainLinearRamp(t *testing.T) {
	g := NewScheduledGain(0)
	g.SetValueAt(0, 1)
	g.RampTo(1, 2, RampLinear)
	for _, test := range []struct{ time, expected float64 }{
		{1, 0}, {1.5, 0.5}, {2, 1}, {3, 1},
	} {
		if got := g.ValueAt(test.time); math.Abs(got-test.expected) > 1e-9 {
			t.Errorf("ValueAt(%v): got %v, expected %v", test.time, got, test.expected)
		}
	}
}

func TestScheduledGainExponentialRamp(t *testing.T) {
	g := NewScheduledGain(1)
	g.SetValueAt(1, 0)
	g.RampTo(0.01, 1, RampExponential)
	if got := g.ValueAt(0.5); math.Abs(got-0.1) > 1e-9 {
		t.Errorf("exponential midpoint: got %v, expected 0.1", got)
	}
	// ramping towards zero holds above the epsilon floor instead of sticking
	g2 := NewScheduledGain(1)
	g2.RampTo(0, 1, RampExponential)
	if got := g2.ValueAt(0.5); got <= 0 || got >= 1 {
		t.Errorf("ramp towards zero: got %v, expected within (0, 1)", got)
	}
}

func TestScheduledGainCancel(t *testing.T) {
	g := NewScheduledGain(0)
	g.SetValueAt(0, 0)
	g.RampTo(1, 10, RampLinear)
	g.CancelAt(5)
	if got := g.ValueAt(5); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("held value after cancel: got %v, expected 0.5", got)
	}
	if got := g.ValueAt(100); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("value stays held after cancel: got %v, expected 0.5", got)
	}
	g.SetValueAt(0, 5)
	if got := g.ValueAt(6); got != 0 {
		t.Errorf("zeroing after cancel: got %v, expected 0", got)
	}
}
