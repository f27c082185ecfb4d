package keypoints

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestWriteNPYHeader(t *testing.T) {
	data := make([]float32, 10*33*4)
	var buf bytes.Buffer
	if err := WriteNPY(&buf, []int{10, 33, 4}, data); err != nil {
		t.Fatalf("WriteNPY returned error: %v", err)
	}
	raw := buf.Bytes()
	if !bytes.HasPrefix(raw, []byte("\x93NUMPY")) {
		t.Fatalf("unexpected magic %q", raw[:6])
	}
	headerEnd := len(raw) - len(data)*4
	if headerEnd <= 10 || raw[headerEnd-1] != '\n' {
		t.Fatalf("header must end with a newline right before the data")
	}
	header := string(raw[:headerEnd])
	for _, want := range []string{"'descr': '<f4'", "'fortran_order': False", "'shape': (10, 33, 4)"} {
		if !strings.Contains(header, want) {
			t.Fatalf("header %q lacks %s", header, want)
		}
	}
}

func TestNPYRoundTrip(t *testing.T) {
	data := []float32{0, 1.5, -2.25, 3.0e-7, 42, 0.125}
	var buf bytes.Buffer
	if err := WriteNPY(&buf, []int{2, 3}, data); err != nil {
		t.Fatalf("WriteNPY returned error: %v", err)
	}
	shape, got, err := ReadNPY(&buf)
	if err != nil {
		t.Fatalf("ReadNPY returned error: %v", err)
	}
	if len(shape) != 2 || shape[0] != 2 || shape[1] != 3 {
		t.Fatalf("unexpected shape %v", shape)
	}
	if len(got) != len(data) {
		t.Fatalf("got %d values, want %d", len(got), len(data))
	}
	for i := range data {
		if got[i] != data[i] {
			t.Fatalf("value %d: got %v want %v", i, got[i], data[i])
		}
	}
}

func TestWriteNPYRejectsShapeMismatch(t *testing.T) {
	if err := WriteNPY(&bytes.Buffer{}, []int{2, 2}, []float32{1}); err == nil {
		t.Fatal("expected shape mismatch error")
	}
}

func TestReadNPYRejectsOtherDtypes(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteNPY(&buf, []int{2}, []float32{1, 2}); err != nil {
		t.Fatal(err)
	}
	raw := bytes.Replace(buf.Bytes(), []byte("'<f4'"), []byte("'<i4'"), 1)
	if _, _, err := ReadNPY(bytes.NewReader(raw)); !errors.Is(err, ErrNPYFormat) {
		t.Fatalf("expected format error, got %v", err)
	}
	if _, _, err := ReadNPY(strings.NewReader("not an npy file")); !errors.Is(err, ErrNPYFormat) {
		t.Fatalf("expected format error for bad magic, got %v", err)
	}
}
