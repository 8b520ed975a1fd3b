// Package backend selects the smoothing capability the engine dispatches to.
package backend

import (
	"strings"

	"BlurServer/backend/native"
	iface "BlurServer/interface"
	"BlurServer/logger"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

var ErrUnsupportedBackend = errors.New("unsupported backend")

const (
	OpenCV = "opencv"
	Native = native.Name
)

// LoadBackend returns the capability registered under name.
func LoadBackend(name string) (iface.Smoother, error) {
	var s iface.Smoother
	switch strings.ToLower(strings.TrimSpace(name)) {
	case OpenCV, "":
		s = NewOpenCV()
	case Native:
		s = native.New()
	default:
		return nil, errors.Wrapf(ErrUnsupportedBackend, "%q", name)
	}
	logger.Log().Info("Smoothing backend loaded", zap.String(logger.FieldBackend, s.Name()))
	return s, nil
}
