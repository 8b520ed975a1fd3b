// Package native is a pure-Go smoothing capability for float32 planes. It
// follows OpenCV's conventions (reflect-101 borders, automatic Gaussian
// sigma, replicated border for median) so results are interchangeable with
// the OpenCV backend within float rounding.
package native

import (
	"math"
	"slices"

	iface "BlurServer/interface"

	"github.com/cockroachdb/errors"
)

const Name = "native"

type Smoother struct{}

func New() *Smoother { return &Smoother{} }

func (s *Smoother) Name() string { return Name }

func (s *Smoother) Destroy() {}

func (s *Smoother) NormalizedBox(src iface.Plane, dst []float32, kw, kh int) error {
	if err := checkPlane(src, dst); err != nil {
		return err
	}
	if kw <= 0 || kh <= 0 {
		return errors.Newf("blur: kernel size %dx%d must be positive", kw, kh)
	}
	kx := make([]float64, kw)
	for i := range kx {
		kx[i] = 1 / float64(kw)
	}
	ky := make([]float64, kh)
	for i := range ky {
		ky[i] = 1 / float64(kh)
	}
	separable(src, dst, kx, ky)
	return nil
}

func (s *Smoother) Gaussian(src iface.Plane, dst []float32, kw, kh int) error {
	if err := checkPlane(src, dst); err != nil {
		return err
	}
	if kw <= 0 || kh <= 0 || kw%2 == 0 || kh%2 == 0 {
		return errors.Newf("GaussianBlur: kernel size %dx%d must be positive and odd", kw, kh)
	}
	separable(src, dst, GaussianKernel(kw), GaussianKernel(kh))
	return nil
}

func (s *Smoother) Median(src iface.Plane, dst []float32, ksize int) error {
	if err := checkPlane(src, dst); err != nil {
		return err
	}
	if ksize <= 0 || ksize%2 == 0 {
		return errors.Newf("medianBlur: aperture %d must be positive and odd", ksize)
	}
	r := ksize / 2
	window := make([]float32, 0, ksize*ksize)
	for y := 0; y < src.Rows; y++ {
		for x := 0; x < src.Cols; x++ {
			window = window[:0]
			for dy := -r; dy <= r; dy++ {
				row := replicate(y+dy, src.Rows) * src.Cols
				for dx := -r; dx <= r; dx++ {
					window = append(window, src.Data[row+replicate(x+dx, src.Cols)])
				}
			}
			slices.Sort(window)
			dst[y*src.Cols+x] = window[len(window)/2]
		}
	}
	return nil
}

func (s *Smoother) Bilateral(src iface.Plane, dst []float32, diameter int, sigmaColor, sigmaSpace float64) error {
	if err := checkPlane(src, dst); err != nil {
		return err
	}
	if sigmaColor <= 0 {
		sigmaColor = 1
	}
	if sigmaSpace <= 0 {
		sigmaSpace = 1
	}
	r := diameter / 2
	if diameter <= 0 {
		r = int(math.Round(sigmaSpace * 1.5))
	}
	type tap struct {
		dx, dy int
		w      float64
	}
	var taps []tap
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			d2 := float64(dx*dx + dy*dy)
			if d2 > float64(r*r) {
				continue
			}
			taps = append(taps, tap{dx, dy, math.Exp(-d2 / (2 * sigmaSpace * sigmaSpace))})
		}
	}
	colorCoeff := -1 / (2 * sigmaColor * sigmaColor)
	for y := 0; y < src.Rows; y++ {
		for x := 0; x < src.Cols; x++ {
			center := float64(src.Data[y*src.Cols+x])
			var sum, wsum float64
			for _, t := range taps {
				v := float64(src.Data[reflect101(y+t.dy, src.Rows)*src.Cols+reflect101(x+t.dx, src.Cols)])
				diff := v - center
				w := t.w * math.Exp(diff*diff*colorCoeff)
				sum += v * w
				wsum += w
			}
			dst[y*src.Cols+x] = float32(sum / wsum)
		}
	}
	return nil
}

// GaussianKernel returns the normalized 1-D kernel OpenCV uses when sigma is
// left at zero: fixed tables up to size 7, sigma = 0.3*((n-1)*0.5-1)+0.8 above.
func GaussianKernel(n int) []float64 {
	switch n {
	case 1:
		return []float64{1}
	case 3:
		return []float64{0.25, 0.5, 0.25}
	case 5:
		return []float64{0.0625, 0.25, 0.375, 0.25, 0.0625}
	case 7:
		return []float64{0.03125, 0.109375, 0.21875, 0.28125, 0.21875, 0.109375, 0.03125}
	}
	sigma := 0.3*(float64(n-1)*0.5-1) + 0.8
	k := make([]float64, n)
	var sum float64
	for i := range k {
		x := float64(i - n/2)
		k[i] = math.Exp(-x * x / (2 * sigma * sigma))
		sum += k[i]
	}
	for i := range k {
		k[i] /= sum
	}
	return k
}

// separable convolves rows with kx then columns with ky, reflect-101 borders.
func separable(src iface.Plane, dst []float32, kx, ky []float64) {
	rows, cols := src.Rows, src.Cols
	tmp := make([]float64, rows*cols)
	rx, ry := len(kx)/2, len(ky)/2
	for y := 0; y < rows; y++ {
		line := src.Data[y*cols : (y+1)*cols]
		for x := 0; x < cols; x++ {
			var acc float64
			for i, w := range kx {
				acc += w * float64(line[reflect101(x+i-rx, cols)])
			}
			tmp[y*cols+x] = acc
		}
	}
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			var acc float64
			for i, w := range ky {
				acc += w * tmp[reflect101(y+i-ry, rows)*cols+x]
			}
			dst[y*cols+x] = float32(acc)
		}
	}
}

func checkPlane(src iface.Plane, dst []float32) error {
	if src.Rows <= 0 || src.Cols <= 0 {
		return errors.Newf("empty plane %dx%d", src.Rows, src.Cols)
	}
	if len(src.Data) != src.Rows*src.Cols {
		return errors.Newf("plane %dx%d has %d samples", src.Rows, src.Cols, len(src.Data))
	}
	if len(dst) != len(src.Data) {
		return errors.Newf("destination has %d samples, want %d", len(dst), len(src.Data))
	}
	return nil
}

// reflect101 maps i into [0,n) mirroring without repeating the edge: gfedcb|abcdefgh|gfedcba.
func reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		} else {
			i = 2*n - 2 - i
		}
	}
	return i
}

func replicate(i, n int) int {
	return min(max(i, 0), n-1)
}
