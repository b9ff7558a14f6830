//go:build mlx

package pipeline

import "github.com/erichchampion/ace-step-1.5/mlx"

const apgEps = 1e-8

// APGState implements adaptive projected guidance: the guidance difference is
// smoothed by a momentum buffer, norm-clamped, and projected orthogonal to
// the conditional prediction before mixing. At scale 1 the output is the
// conditional prediction unchanged.
type APGState struct {
	Momentum      float32
	NormThreshold float32

	running *mlx.Array
}

// NewAPGState returns guidance state with the model defaults.
func NewAPGState() *APGState {
	return &APGState{Momentum: -0.75, NormThreshold: 2.5}
}

// Reset drops the momentum buffer between runs.
func (a *APGState) Reset() {
	if a.running != nil {
		a.running.Free()
		a.running = nil
	}
}

// Apply combines conditional and unconditional predictions under scale.
// All math runs in float32 regardless of the model dtype.
func (a *APGState) Apply(condPred, uncondPred *mlx.Array, scale float32) *mlx.Array {
	if scale == 1 {
		return condPred
	}

	origDtype := condPred.Dtype()
	pc := mlx.AsType(condPred, mlx.DtypeFloat32)
	pu := mlx.AsType(uncondPred, mlx.DtypeFloat32)

	d := mlx.Sub(pc, pu)
	if a.running == nil {
		a.running = d
	} else {
		prev := a.running
		a.running = mlx.Add(d, mlx.MulScalar(prev, a.Momentum))
		prev.Free()
	}
	mlx.Keep(a.running)
	d = a.running

	if a.NormThreshold > 0 {
		norm := mlx.Sqrt(mlx.Sum(mlx.Square(d), 1, true))
		ratio := mlx.Div(mlx.Full(a.NormThreshold, 1), mlx.AddScalar(norm, apgEps))
		ratio = mlx.ClipScalar(ratio, 0, 1, false, true)
		d = mlx.Mul(d, ratio)
	}

	// Remove the component of d parallel to the conditional prediction.
	pcNorm := mlx.Sqrt(mlx.Sum(mlx.Square(pc), 1, true))
	v1 := mlx.Div(pc, mlx.AddScalar(pcNorm, apgEps))
	parallel := mlx.Mul(mlx.Sum(mlx.Mul(d, v1), 1, true), v1)
	orth := mlx.Sub(d, parallel)

	out := mlx.Add(pc, mlx.MulScalar(orth, scale-1))
	if origDtype != mlx.DtypeFloat32 {
		out = mlx.AsType(out, origDtype)
	}
	return out
}
