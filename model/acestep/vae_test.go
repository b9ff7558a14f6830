//go:build mlx

package acestep

import (
	"math"
	"testing"

	"github.com/erichchampion/ace-step-1.5/mlx"
)

func TestSnakeValue(t *testing.T) {
	// With alpha = beta = 1 and no logscale, snake(x) = x + sin(x)^2.
	s := &Snake1d{
		Alpha: mlx.Full(1, 3),
		Beta:  mlx.Full(1, 3),
	}
	x := mlx.Full(float32(math.Pi/2), 1, 2, 3)

	out := s.Forward(x)
	mlx.Eval(out)

	want := math.Pi/2 + 1
	for i, v := range out.Data() {
		if diff := math.Abs(float64(v) - want); diff > 1e-4 {
			t.Fatalf("value %d = %g, want %g", i, v, want)
		}
	}
}

func TestSnakeShiftIsEven(t *testing.T) {
	// snake(x) - x depends on x only through sin(alpha*x)^2, so the shift is
	// identical for x and -x.
	s := &Snake1d{
		Alpha: mlx.Full(0.7, 4),
		Beta:  mlx.Full(1.3, 4),
	}
	x := mlx.RandN([]int32{1, 5, 4})

	pos := mlx.Sub(s.Forward(x), x)
	neg := mlx.Sub(s.Forward(mlx.Neg(x)), mlx.Neg(x))
	mlx.Eval(pos, neg)

	a := pos.Data()
	b := neg.Data()
	for i := range a {
		if diff := math.Abs(float64(a[i] - b[i])); diff > 1e-5 {
			t.Fatalf("shift %d differs by %g under negation", i, diff)
		}
	}
}

func TestSnakeLogscale(t *testing.T) {
	// Logscale parameters of zero exponentiate to one, matching the plain
	// alpha = beta = 1 activation.
	plain := &Snake1d{Alpha: mlx.Full(1, 2), Beta: mlx.Full(1, 2)}
	logscale := &Snake1d{Alpha: mlx.Full(0, 2), Beta: mlx.Full(0, 2), Logscale: true}
	x := mlx.RandN([]int32{1, 3, 2})

	a := plain.Forward(x)
	b := logscale.Forward(x)
	mlx.Eval(a, b)

	da := a.Data()
	db := b.Data()
	for i := range da {
		if diff := math.Abs(float64(da[i] - db[i])); diff > 1e-5 {
			t.Fatalf("value %d differs by %g between plain and logscale", i, diff)
		}
	}
}
