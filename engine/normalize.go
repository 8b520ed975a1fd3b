package engine

import (
	"github.com/cockroachdb/errors"
)

// NormalizeKernel makes both kernel sizes odd by incrementing even values.
// It rejects the pair when either size is non-positive, or only when both are
// if legacy is set.
func NormalizeKernel(w, h int, legacy bool) (int, int, error) {
	bad := w <= 0 || h <= 0
	if legacy {
		bad = w <= 0 && h <= 0
	}
	if bad {
		return w, h, errors.Wrapf(ErrValidation, "kernel %dx%d", w, h)
	}
	if w%2 == 0 {
		w++
	}
	if h%2 == 0 {
		h++
	}
	return w, h, nil
}

// Normalize validates the stored kernel, writes corrected sizes back and
// returns the resulting snapshot. The read and write-back happen under one lock.
func (p *Params) Normalize() (ParamValues, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	w, h, err := NormalizeKernel(p.v.KernelWidth, p.v.KernelHeight, p.v.LegacyKernelCheck)
	if err != nil {
		return p.v, err
	}
	p.v.KernelWidth, p.v.KernelHeight = w, h
	return p.v, nil
}
