package stats

// Transform maps one sample value to another, e.g. a unit conversion.
type Transform func(float64) float64

// Offset adds d.
func Offset(d float64) Transform {
	return func(x float64) float64 { return x + d }
}

// Scale multiplies by f.
func Scale(f float64) Transform {
	return func(x float64) float64 { return x * f }
}

// Divide divides by d.
func Divide(d float64) Transform {
	return func(x float64) float64 { return x / d }
}

// Chain applies the transforms left to right.
func Chain(ts ...Transform) Transform {
	return func(x float64) float64 {
		for _, t := range ts {
			x = t(x)
		}
		return x
	}
}

// Apply returns a new slice holding t(x) for every x.
func Apply(xs []float64, t Transform) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = t(x)
	}
	return out
}

// Unit presets.
var (
	NanosToMicros  = Divide(1000)
	MicrosToMillis = Divide(1000)
)

// WarmupOffset subtracts a warm-up period expressed in the samples' own unit.
func WarmupOffset(warmup float64) Transform {
	return Offset(-warmup)
}
