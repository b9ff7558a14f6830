//go:build mlx

package acestep

import (
	"math"
	"testing"

	"github.com/erichchampion/ace-step-1.5/mlx"
	"github.com/erichchampion/ace-step-1.5/nn"
)

func TestRoPEPositionZeroIdentity(t *testing.T) {
	rope := ComputeRoPE(4, 8, 1e6)
	x := mlx.RandN([]int32{1, 1, 4, 8})

	out := ApplyRoPE(x, rope)
	mlx.Eval(out, x)

	a := x.Data()
	b := out.Data()
	for i := 0; i < 8; i++ {
		if diff := math.Abs(float64(a[i] - b[i])); diff > 1e-5 {
			t.Fatalf("position 0 dim %d rotated by %g, want identity", i, diff)
		}
	}
}

func TestRoPEPreservesNorm(t *testing.T) {
	const L, D = 6, 8
	rope := ComputeRoPE(L, D, 1e6)
	x := mlx.RandN([]int32{1, 1, L, D})

	out := ApplyRoPE(x, rope)
	mlx.Eval(out, x)

	a := x.Data()
	b := out.Data()
	for pos := 0; pos < L; pos++ {
		var na, nb float64
		for d := 0; d < D; d++ {
			na += float64(a[pos*D+d]) * float64(a[pos*D+d])
			nb += float64(b[pos*D+d]) * float64(b[pos*D+d])
		}
		if diff := math.Abs(na - nb); diff > 1e-4*(na+1) {
			t.Errorf("position %d norm changed: %g vs %g", pos, na, nb)
		}
	}
}

func TestRoPECommutesWithRepeatKV(t *testing.T) {
	rope := ComputeRoPE(5, 8, 1e6)
	k := mlx.RandN([]int32{1, 2, 5, 8})

	a := nn.RepeatKV(ApplyRoPE(k, rope), 3)
	b := ApplyRoPE(nn.RepeatKV(k, 3), rope)
	mlx.Eval(a, b)

	da := a.Data()
	db := b.Data()
	if len(da) != len(db) {
		t.Fatalf("size mismatch: %d vs %d", len(da), len(db))
	}
	for i := range da {
		if diff := math.Abs(float64(da[i] - db[i])); diff > 1e-5 {
			t.Fatalf("value %d differs by %g between rotate-then-repeat and repeat-then-rotate", i, diff)
		}
	}
}
