package pipeline

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestPresetSchedules(t *testing.T) {
	cases := []struct {
		shift float32
		want  []float32
	}{
		{1, []float32{1.0, 0.875, 0.75, 0.625, 0.5, 0.375, 0.25, 0.125}},
		{2, []float32{1.0, 0.95, 0.85, 0.75, 0.65, 0.55, 0.4, 0.25}},
		{3, []float32{1.0, 0.95, 0.9, 0.85, 0.75, 0.65, 0.5, 0.3}},
		// Fractional shifts snap to the nearest preset.
		{2.4, []float32{1.0, 0.95, 0.85, 0.75, 0.65, 0.55, 0.4, 0.25}},
		{5, []float32{1.0, 0.95, 0.9, 0.85, 0.75, 0.65, 0.5, 0.3}},
	}
	for _, tc := range cases {
		got := Schedule(tc.shift, 0, nil)
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Errorf("Schedule(shift=%g) mismatch (-want +got):\n%s", tc.shift, diff)
		}
		if !ValidateSchedule(got) {
			t.Errorf("Schedule(shift=%g) = %v is not a valid schedule", tc.shift, got)
		}
	}
}

func TestPresetSchedulesAreAdmissible(t *testing.T) {
	admissible := make(map[float32]bool, len(ValidTimesteps))
	for _, v := range ValidTimesteps {
		admissible[v] = true
	}
	for _, table := range [][]float32{scheduleShift1, scheduleShift2, scheduleShift3} {
		for _, v := range table {
			if !admissible[v] {
				t.Errorf("preset value %g not in the admissible table", v)
			}
		}
	}
}

func TestScheduleSnapIdempotent(t *testing.T) {
	// Re-submitting a preset schedule as explicit timesteps must return it
	// unchanged.
	for shift := float32(1); shift <= 3; shift++ {
		preset := Schedule(shift, 0, nil)
		got := Schedule(shift, 0, preset)
		if diff := cmp.Diff(preset, got); diff != "" {
			t.Errorf("shift %g not idempotent (-want +got):\n%s", shift, diff)
		}
	}
}

func TestUniformShifted(t *testing.T) {
	got := Schedule(1, 4, nil)
	want := []float32{1, 0.75, 0.5, 0.25}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Schedule(1, 4) mismatch (-want +got):\n%s", diff)
	}

	// Shift concentrates steps near t=1.
	shifted := Schedule(3, 4, nil)
	if shifted[0] != 1 {
		t.Errorf("shifted schedule starts at %g, want 1", shifted[0])
	}
	for i := range shifted {
		if shifted[i] < got[i] {
			t.Errorf("shift 3 step %d = %g below uniform %g", i, shifted[i], got[i])
		}
	}
	if !ValidateSchedule(shifted) {
		t.Errorf("shifted schedule %v invalid", shifted)
	}
}

func TestExplicitTimesteps(t *testing.T) {
	// Trailing zeros drop, values snap, collisions collapse.
	got := Schedule(3, 8, []float32{0.99, 0.51, 0.49, 0.124, 0, 0})
	want := []float32{1.0, 0.5, 0.125}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("explicit schedule mismatch (-want +got):\n%s", diff)
	}
}

func TestExplicitTimestepsCapped(t *testing.T) {
	long := make([]float32, 30)
	for i := range long {
		long[i] = 1 - float32(i)*0.03
	}
	got := Schedule(1, 0, long)
	if len(got) > MaxScheduleSteps {
		t.Errorf("explicit schedule has %d steps, cap is %d", len(got), MaxScheduleSteps)
	}
}

func TestSnapTimestep(t *testing.T) {
	cases := []struct{ in, want float32 }{
		{1.0, 1.0},
		{0.9, 0.9},
		{0.87, 0.875},
		{1.5, 1.0},
		{0.01, 0.125},
		{0.63, 0.625},
	}
	for _, tc := range cases {
		if got := SnapTimestep(tc.in); got != tc.want {
			t.Errorf("SnapTimestep(%g) = %g, want %g", tc.in, got, tc.want)
		}
	}
}

func TestShiftTimestep(t *testing.T) {
	if got := ShiftTimestep(1, 3); got != 1 {
		t.Errorf("ShiftTimestep(1, 3) = %g, want 1", got)
	}
	if got := ShiftTimestep(0.5, 1); got != 0.5 {
		t.Errorf("ShiftTimestep(0.5, 1) = %g, want 0.5", got)
	}
	if got := ShiftTimestep(0.5, 3); got != 0.75 {
		t.Errorf("ShiftTimestep(0.5, 3) = %g, want 0.75", got)
	}
}

func TestValidateSchedule(t *testing.T) {
	cases := []struct {
		name string
		ts   []float32
		want bool
	}{
		{"empty", nil, false},
		{"single", []float32{0.5}, true},
		{"decreasing", []float32{1, 0.5, 0.25}, true},
		{"zero entry", []float32{1, 0.5, 0}, false},
		{"above one", []float32{1.5, 0.5}, false},
		{"not decreasing", []float32{0.5, 0.5}, false},
		{"increasing", []float32{0.25, 0.5}, false},
	}
	for _, tc := range cases {
		if got := ValidateSchedule(tc.ts); got != tc.want {
			t.Errorf("%s: ValidateSchedule(%v) = %v, want %v", tc.name, tc.ts, got, tc.want)
		}
	}
}
