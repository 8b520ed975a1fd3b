package backend

import (
	"image"
	"unsafe"

	iface "BlurServer/interface"

	"github.com/cockroachdb/errors"
	"gocv.io/x/gocv"
)

// OpenCVSmoother runs the smoothing calls through gocv on CV_32F Mats.
type OpenCVSmoother struct{}

func NewOpenCV() *OpenCVSmoother { return &OpenCVSmoother{} }

func (o *OpenCVSmoother) Name() string { return OpenCV }

func (o *OpenCVSmoother) Destroy() {}

func (o *OpenCVSmoother) NormalizedBox(src iface.Plane, dst []float32, kw, kh int) error {
	return o.run(src, dst, func(in gocv.Mat, out *gocv.Mat) error {
		return gocv.Blur(in, out, image.Pt(kw, kh))
	})
}

func (o *OpenCVSmoother) Gaussian(src iface.Plane, dst []float32, kw, kh int) error {
	return o.run(src, dst, func(in gocv.Mat, out *gocv.Mat) error {
		return gocv.GaussianBlur(in, out, image.Pt(kw, kh), 0, 0, gocv.BorderDefault)
	})
}

// Median only supports apertures 3 and 5 for CV_32F input; OpenCV reports an
// error for larger ones.
func (o *OpenCVSmoother) Median(src iface.Plane, dst []float32, ksize int) error {
	return o.run(src, dst, func(in gocv.Mat, out *gocv.Mat) error {
		return gocv.MedianBlur(in, out, ksize)
	})
}

func (o *OpenCVSmoother) Bilateral(src iface.Plane, dst []float32, diameter int, sigmaColor, sigmaSpace float64) error {
	return o.run(src, dst, func(in gocv.Mat, out *gocv.Mat) error {
		return gocv.BilateralFilter(in, out, diameter, sigmaColor, sigmaSpace)
	})
}

func (o *OpenCVSmoother) run(src iface.Plane, dst []float32, op func(in gocv.Mat, out *gocv.Mat) error) error {
	if src.Rows <= 0 || src.Cols <= 0 || len(src.Data) != src.Rows*src.Cols {
		return errors.Newf("plane %dx%d has %d samples", src.Rows, src.Cols, len(src.Data))
	}
	if len(dst) != len(src.Data) {
		return errors.Newf("destination has %d samples, want %d", len(dst), len(src.Data))
	}
	raw := unsafe.Slice((*byte)(unsafe.Pointer(&src.Data[0])), len(src.Data)*4)
	in, err := gocv.NewMatFromBytes(src.Rows, src.Cols, gocv.MatTypeCV32F, raw)
	if err != nil {
		return errors.Wrap(err, "wrap input plane")
	}
	defer in.Close()
	out := gocv.NewMat()
	defer out.Close()

	if err := op(in, &out); err != nil {
		return err
	}
	if out.Rows() != src.Rows || out.Cols() != src.Cols || out.Type() != gocv.MatTypeCV32F {
		return errors.Newf("unexpected result %dx%d type %v", out.Rows(), out.Cols(), out.Type())
	}
	res, err := out.DataPtrFloat32()
	if err != nil {
		return err
	}
	copy(dst, res)
	return nil
}
