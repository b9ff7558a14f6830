package pipeline

import "math"

// MaxScheduleSteps caps the number of denoising steps per run.
const MaxScheduleSteps = 20

// ValidTimesteps is the descending set of admissible timestep values. Every
// schedule the engine produces is drawn from this table; arbitrary values are
// snapped to their nearest entry.
var ValidTimesteps = []float32{
	1.0, 0.95, 0.9, 0.875, 0.85, 0.8, 0.75, 0.7, 0.65, 0.625,
	0.6, 0.55, 0.5, 0.45, 0.4, 0.375, 0.35, 0.3, 0.25, 0.125,
}

// Precomputed 8-step schedules for the integer shift values, each the image
// of the uniform 8-step grid under the shift remap, snapped to the admissible
// table.
var (
	scheduleShift1 = []float32{1.0, 0.875, 0.75, 0.625, 0.5, 0.375, 0.25, 0.125}
	scheduleShift2 = []float32{1.0, 0.95, 0.85, 0.75, 0.65, 0.55, 0.4, 0.25}
	scheduleShift3 = []float32{1.0, 0.95, 0.9, 0.85, 0.75, 0.65, 0.5, 0.3}
)

// ShiftTimestep remaps a uniform timestep t in (0, 1] by the shift factor:
// larger shifts concentrate steps near t=1 where the velocity field changes
// fastest.
func ShiftTimestep(t, shift float32) float32 {
	return shift * t / (1 + (shift-1)*t)
}

// SnapTimestep returns the admissible value nearest to t. Ties resolve to the
// larger value because the table is scanned in descending order.
func SnapTimestep(t float32) float32 {
	best := ValidTimesteps[0]
	bestDist := float32(math.Abs(float64(t - best)))
	for _, v := range ValidTimesteps[1:] {
		if d := float32(math.Abs(float64(t - v))); d < bestDist {
			best = v
			bestDist = d
		}
	}
	return best
}

// Schedule produces the descending timestep sequence for one generation run.
//
// Explicit timesteps take priority: trailing zeros are dropped, the list is
// capped at MaxScheduleSteps, and every entry is snapped to the admissible
// table. Otherwise a positive inferenceSteps builds a uniform grid
// t_i = 1 - i/N remapped by shift, without snapping. With neither given,
// shift itself is snapped to the nearest integer in {1, 2, 3} and the
// matching precomputed 8-step schedule is returned.
//
// The result is strictly decreasing with every value in (0, 1].
func Schedule(shift float32, inferenceSteps int, timesteps []float32) []float32 {
	if len(timesteps) > 0 {
		return snapExplicit(timesteps)
	}
	if inferenceSteps > 0 {
		return uniformShifted(shift, inferenceSteps)
	}
	switch snapShift(shift) {
	case 1:
		return append([]float32(nil), scheduleShift1...)
	case 2:
		return append([]float32(nil), scheduleShift2...)
	default:
		return append([]float32(nil), scheduleShift3...)
	}
}

func snapExplicit(timesteps []float32) []float32 {
	ts := append([]float32(nil), timesteps...)
	for len(ts) > 0 && ts[len(ts)-1] == 0 {
		ts = ts[:len(ts)-1]
	}
	if len(ts) > MaxScheduleSteps {
		ts = ts[:MaxScheduleSteps]
	}
	out := make([]float32, 0, len(ts))
	for _, t := range ts {
		s := SnapTimestep(t)
		// Snapping can collapse neighbors onto the same table entry;
		// keep only the first occurrence so the result stays strictly
		// decreasing.
		if len(out) > 0 && s >= out[len(out)-1] {
			continue
		}
		out = append(out, s)
	}
	return out
}

func uniformShifted(shift float32, steps int) []float32 {
	if steps > MaxScheduleSteps {
		steps = MaxScheduleSteps
	}
	if shift <= 0 {
		shift = 1
	}
	out := make([]float32, steps)
	for i := 0; i < steps; i++ {
		t := 1 - float32(i)/float32(steps)
		out[i] = ShiftTimestep(t, shift)
	}
	return out
}

func snapShift(shift float32) int {
	candidates := []float32{1, 2, 3}
	best, bestDist := 3, float32(math.Inf(1))
	for _, c := range candidates {
		if d := float32(math.Abs(float64(shift - c))); d < bestDist {
			best = int(c)
			bestDist = d
		}
	}
	return best
}

// ValidateSchedule reports whether ts is non-empty, strictly decreasing, and
// confined to (0, 1].
func ValidateSchedule(ts []float32) bool {
	if len(ts) == 0 || len(ts) > MaxScheduleSteps {
		return false
	}
	for i, t := range ts {
		if t <= 0 || t > 1 {
			return false
		}
		if i > 0 && t >= ts[i-1] {
			return false
		}
	}
	return true
}
