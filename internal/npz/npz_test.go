package npz

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// rawNPY builds a version 1.0 .npy stream with an arbitrary header dict.
func rawNPY(dict string, data []byte) []byte {
	var buf bytes.Buffer
	buf.Write(npyMagic)
	buf.Write([]byte{1, 0})
	_ = binary.Write(&buf, binary.LittleEndian, uint16(len(dict)))
	buf.WriteString(dict)
	buf.Write(data)
	return buf.Bytes()
}

func archive(t *testing.T, name string, payload []byte) *bytes.Reader {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create(name)
	if err != nil {
		t.Fatalf("create entry: %v", err)
	}
	if _, err := f.Write(payload); err != nil {
		t.Fatalf("write entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return bytes.NewReader(buf.Bytes())
}

func TestWriteReadRoundTrip(t *testing.T) {
	rows := [][]float64{
		{0.51, 1.2, 5, -0.135, -1.889, 0.0605, 5.135e-4},
		{0.49, 3.4, 7, -0.120, -1.900, 0.0610, 5.000e-4},
	}
	var buf bytes.Buffer
	if err := Write(&buf, SamplesKey, rows); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := Read(bytes.NewReader(buf.Bytes()), int64(buf.Len()), SamplesKey)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if diff := cmp.Diff(rows, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteNPY_HeaderAligned(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteNPY(&buf, [][]float64{{1, 2}}, 2); err != nil {
		t.Fatalf("WriteNPY: %v", err)
	}
	hlen := int(binary.LittleEndian.Uint16(buf.Bytes()[8:10]))
	if (10+hlen)%64 != 0 {
		t.Fatalf("header end %d not 64-byte aligned", 10+hlen)
	}
	if buf.Bytes()[10+hlen-1] != '\n' {
		t.Fatal("header must end with a newline")
	}
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "emcee_samples_final.npz")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := Write(f, SamplesKey, [][]float64{{1, 2, 3}}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	f.Close()

	got, err := ReadFile(path, SamplesKey)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(got) != 1 || got[0][2] != 3 {
		t.Fatalf("unexpected rows %v", got)
	}
}

func TestRead_FortranOrder(t *testing.T) {
	// 2x3 array [[1 2 3] [4 5 6]] stored column-major
	var data bytes.Buffer
	for _, v := range []float64{1, 4, 2, 5, 3, 6} {
		_ = binary.Write(&data, binary.LittleEndian, v)
	}
	payload := rawNPY("{'descr': '<f8', 'fortran_order': True, 'shape': (2, 3), }\n", data.Bytes())
	r := archive(t, "samples.npy", payload)

	got, err := Read(r, r.Size(), SamplesKey)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	want := [][]float64{{1, 2, 3}, {4, 5, 6}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("fortran decode (-want +got):\n%s", diff)
	}
}

func TestRead_BigEndianFloat32Vector(t *testing.T) {
	var data bytes.Buffer
	for _, v := range []float32{1.5, -2.25} {
		_ = binary.Write(&data, binary.BigEndian, math.Float32bits(v))
	}
	payload := rawNPY("{'descr': '>f4', 'fortran_order': False, 'shape': (2,), }\n", data.Bytes())
	r := archive(t, "samples.npy", payload)

	got, err := Read(r, r.Size(), SamplesKey)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	want := [][]float64{{1.5}, {-2.25}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("vector decode (-want +got):\n%s", diff)
	}
}

func TestRead_MissingKey(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, "other", [][]float64{{1}}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	_, err := Read(bytes.NewReader(buf.Bytes()), int64(buf.Len()), SamplesKey)
	if err == nil {
		t.Fatal("expected ErrNotFound")
	}
}

func TestRead_Unsupported(t *testing.T) {
	cases := map[string][]byte{
		"int dtype":  rawNPY("{'descr': '<i8', 'fortran_order': False, 'shape': (1,), }\n", make([]byte, 8)),
		"3d":         rawNPY("{'descr': '<f8', 'fortran_order': False, 'shape': (1, 1, 1), }\n", make([]byte, 8)),
		"bad magic":  []byte("NOTNUMPY...."),
		"short data": rawNPY("{'descr': '<f8', 'fortran_order': False, 'shape': (4, 2), }\n", make([]byte, 8)),
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			r := archive(t, "samples.npy", payload)
			if _, err := Read(r, r.Size(), SamplesKey); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestWrite_RaggedRows(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, SamplesKey, [][]float64{{1, 2}, {3}}); err == nil {
		t.Fatal("expected error for ragged rows")
	}
}
