package iface

// Plane is a single-channel float32 image, Rows x Cols, row-major.
// A 1-D frame is a plane with one row.
type Plane struct {
	Data []float32
	Rows int
	Cols int
}

// Smoother is a smoothing capability. Every method reads src and writes a
// result of the same shape into dst; dst must not alias src. A method either
// fully writes dst and returns nil or returns an error, in which case the
// contents of dst are unspecified.
type Smoother interface {
	Name() string
	// NormalizedBox averages over a kw x kh window anchored at its center.
	NormalizedBox(src Plane, dst []float32, kw, kh int) error
	// Gaussian weights a kw x kh window; sigmas are derived from the sizes.
	Gaussian(src Plane, dst []float32, kw, kh int) error
	// Median takes the median over a ksize x ksize window.
	Median(src Plane, dst []float32, ksize int) error
	// Bilateral is edge preserving, diameter being the neighborhood size.
	Bilateral(src Plane, dst []float32, diameter int, sigmaColor, sigmaSpace float64) error
	Destroy()
}

// RequestCounter counts handled calls per transport ("http", "grpc").
type RequestCounter interface {
	Request(transport string)
}
