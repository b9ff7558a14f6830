//go:build mlx

package pipeline

import (
	"math"
	"testing"

	"github.com/erichchampion/ace-step-1.5/mlx"
)

func TestAPGIdentityAtScaleOne(t *testing.T) {
	apg := NewAPGState()
	cond := mlx.RandN([]int32{1, 8, 4})
	uncond := mlx.RandN([]int32{1, 8, 4})

	out := apg.Apply(cond, uncond, 1)
	if out != cond {
		t.Error("scale 1 must return the conditional prediction unchanged")
	}
}

func TestAPGEqualPredictions(t *testing.T) {
	// With p_c == p_u the difference is zero, so guidance adds nothing at
	// any scale.
	apg := NewAPGState()
	cond := mlx.RandN([]int32{1, 8, 4})

	out := apg.Apply(cond, cond, 4)
	mlx.Eval(out)

	a := cond.Data()
	b := out.Data()
	for i := range a {
		if diff := math.Abs(float64(a[i] - b[i])); diff > 1e-5 {
			t.Fatalf("value %d drifted by %g", i, diff)
		}
	}
}

func TestAPGDeltaOrthogonal(t *testing.T) {
	// The guidance delta is projected orthogonal to the conditional
	// prediction along the frame axis.
	apg := NewAPGState()
	cond := mlx.RandN([]int32{1, 8, 4})
	uncond := mlx.RandN([]int32{1, 8, 4})

	out := apg.Apply(cond, uncond, 3)
	mlx.Eval(out, cond)

	const L, C = 8, 4
	pc := cond.Data()
	oc := out.Data()
	for c := 0; c < C; c++ {
		var dot, npc, nd float64
		for l := 0; l < L; l++ {
			p := float64(pc[l*C+c])
			d := float64(oc[l*C+c]) - p
			dot += p * d
			npc += p * p
			nd += d * d
		}
		if scale := math.Sqrt(npc * nd); math.Abs(dot) > 1e-3*scale+1e-6 {
			t.Errorf("channel %d delta not orthogonal: dot %g against scale %g", c, dot, scale)
		}
	}
}

func TestAPGMomentumAccumulates(t *testing.T) {
	apg := NewAPGState()
	cond := mlx.Full(1, 1, 4, 2)
	uncond := mlx.Full(0, 1, 4, 2)

	first := apg.Apply(cond, uncond, 2)
	mlx.Eval(first)
	if apg.running == nil {
		t.Fatal("momentum buffer not initialized")
	}

	second := apg.Apply(cond, uncond, 2)
	mlx.Eval(second)

	// The difference is 1 everywhere, so after two steps the buffer holds
	// 1 + momentum*1.
	mlx.Eval(apg.running)
	want := float64(1 + apg.Momentum)
	for i, v := range apg.running.Data() {
		if diff := math.Abs(float64(v) - want); diff > 1e-6 {
			t.Fatalf("running %d = %g after two steps, want %g", i, v, want)
		}
	}

	apg.Reset()
	if apg.running != nil {
		t.Error("Reset must drop the momentum buffer")
	}
}
