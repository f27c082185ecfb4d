package keypoints

import (
	"errors"
	"fmt"
	"io"

	"github.com/sbinet/npyio/npy"
)

// npyDescr is the only dtype this tool writes or accepts.
const npyDescr = "<f4"

// ErrNPYFormat reports an NPY file this package cannot read.
var ErrNPYFormat = errors.New("unsupported npy format")

// WriteNPY writes data as a little-endian float32 C-order array of the given
// shape.
func WriteNPY(w io.Writer, shape []int, data []float32) error {
	want := 1
	for _, dim := range shape {
		want *= dim
	}
	if want != len(data) {
		return fmt.Errorf("npy: shape %v needs %d values, got %d", shape, want, len(data))
	}
	enc, err := npy.NewWriter(w)
	if err != nil {
		return fmt.Errorf("npy: %w", err)
	}
	enc.Header.Descr.Shape = append([]int(nil), shape...)
	if err := enc.Write(data); err != nil {
		return fmt.Errorf("npy: %w", err)
	}
	return nil
}

// ReadNPY reads an array written by WriteNPY. Only little-endian float32 in
// C order is supported.
func ReadNPY(r io.Reader) ([]int, []float32, error) {
	dec, err := npy.NewReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrNPYFormat, err)
	}
	descr := dec.Header.Descr
	if descr.Type != npyDescr {
		return nil, nil, fmt.Errorf("%w: dtype %q, want %s", ErrNPYFormat, descr.Type, npyDescr)
	}
	if descr.Fortran {
		return nil, nil, fmt.Errorf("%w: fortran order", ErrNPYFormat)
	}
	var data []float32
	if err := dec.Read(&data); err != nil {
		return nil, nil, fmt.Errorf("npy: read data: %w", err)
	}
	return append([]int(nil), descr.Shape...), data, nil
}
