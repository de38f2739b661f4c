// Package npz reads and writes the NumPy .npz archives exchanged with the
// inference driver: a zip of .npy arrays, of which only two-dimensional
// float arrays are supported.
package npz

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// SamplesKey is the array name the inference driver stores posterior draws under.
const SamplesKey = "samples"

var (
	// ErrNotFound is returned when the archive has no array of the requested name.
	ErrNotFound = errors.New("npz: array not found")
	// ErrFormat is returned for malformed or unsupported .npy data.
	ErrFormat = errors.New("npz: unsupported array format")
)

var npyMagic = []byte("\x93NUMPY")

// #region read

// ReadFile returns the named array from the archive at path as rows.
func ReadFile(path, key string) ([][]float64, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open npz: %w", err)
	}
	defer zr.Close()
	return read(&zr.Reader, key)
}

// Read returns the named array from an archive held in r.
func Read(r io.ReaderAt, size int64, key string) ([][]float64, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("open npz: %w", err)
	}
	return read(zr, key)
}

func read(zr *zip.Reader, key string) ([][]float64, error) {
	for _, f := range zr.File {
		if strings.TrimSuffix(f.Name, ".npy") != key {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", f.Name, err)
		}
		defer rc.Close()
		return ReadNPY(rc)
	}
	return nil, fmt.Errorf("%q: %w", key, ErrNotFound)
}

// header is the parsed .npy header dictionary.
type header struct {
	order   binary.ByteOrder
	size    int // bytes per element
	fortran bool
	shape   []int
}

var (
	descrRe   = regexp.MustCompile(`'descr':\s*'([<>|=])f([48])'`)
	fortranRe = regexp.MustCompile(`'fortran_order':\s*(True|False)`)
	shapeRe   = regexp.MustCompile(`'shape':\s*\(([^)]*)\)`)
)

// ReadNPY decodes a single .npy stream holding a 1-D or 2-D float array.
// A 1-D array is returned as a single column.
func ReadNPY(r io.Reader) ([][]float64, error) {
	h, err := readHeader(r)
	if err != nil {
		return nil, err
	}

	var rows, cols int
	switch len(h.shape) {
	case 1:
		rows, cols = h.shape[0], 1
	case 2:
		rows, cols = h.shape[0], h.shape[1]
	default:
		return nil, fmt.Errorf("shape %v: %w", h.shape, ErrFormat)
	}

	raw := make([]byte, rows*cols*h.size)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, fmt.Errorf("read array data: %w", err)
	}

	out := make([][]float64, rows)
	for i := range out {
		out[i] = make([]float64, cols)
	}
	for k := 0; k < rows*cols; k++ {
		var v float64
		b := raw[k*h.size : (k+1)*h.size]
		if h.size == 8 {
			v = math.Float64frombits(h.order.Uint64(b))
		} else {
			v = float64(math.Float32frombits(h.order.Uint32(b)))
		}
		i, j := k/cols, k%cols
		if h.fortran {
			i, j = k%rows, k/rows
		}
		out[i][j] = v
	}
	return out, nil
}

func readHeader(r io.Reader) (header, error) {
	pre := make([]byte, 8)
	if _, err := io.ReadFull(r, pre); err != nil {
		return header{}, fmt.Errorf("read npy preamble: %w", err)
	}
	if !bytes.Equal(pre[:6], npyMagic) {
		return header{}, fmt.Errorf("bad magic: %w", ErrFormat)
	}

	var hlen int
	switch pre[6] {
	case 1:
		b := make([]byte, 2)
		if _, err := io.ReadFull(r, b); err != nil {
			return header{}, fmt.Errorf("read npy header length: %w", err)
		}
		hlen = int(binary.LittleEndian.Uint16(b))
	case 2, 3:
		b := make([]byte, 4)
		if _, err := io.ReadFull(r, b); err != nil {
			return header{}, fmt.Errorf("read npy header length: %w", err)
		}
		hlen = int(binary.LittleEndian.Uint32(b))
	default:
		return header{}, fmt.Errorf("version %d.%d: %w", pre[6], pre[7], ErrFormat)
	}

	text := make([]byte, hlen)
	if _, err := io.ReadFull(r, text); err != nil {
		return header{}, fmt.Errorf("read npy header: %w", err)
	}
	return parseHeader(string(text))
}

func parseHeader(s string) (header, error) {
	var h header
	m := descrRe.FindStringSubmatch(s)
	if m == nil {
		return h, fmt.Errorf("descr in %q: %w", s, ErrFormat)
	}
	h.order = binary.ByteOrder(binary.LittleEndian)
	if m[1] == ">" {
		h.order = binary.BigEndian
	}
	h.size, _ = strconv.Atoi(m[2])

	if m := fortranRe.FindStringSubmatch(s); m != nil {
		h.fortran = m[1] == "True"
	}

	m = shapeRe.FindStringSubmatch(s)
	if m == nil {
		return h, fmt.Errorf("shape in %q: %w", s, ErrFormat)
	}
	for _, part := range strings.Split(m[1], ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return h, fmt.Errorf("shape %q: %w", m[1], ErrFormat)
		}
		h.shape = append(h.shape, n)
	}
	return h, nil
}

// #endregion read

// #region write

// Write stores rows as a little-endian float64 array named key in a new
// archive written to w. All rows must have the same length.
func Write(w io.Writer, key string, rows [][]float64) error {
	cols := 0
	if len(rows) > 0 {
		cols = len(rows[0])
	}
	for i, r := range rows {
		if len(r) != cols {
			return fmt.Errorf("row %d has %d values, want %d", i, len(r), cols)
		}
	}

	zw := zip.NewWriter(w)
	f, err := zw.Create(key + ".npy")
	if err != nil {
		return fmt.Errorf("create %s.npy: %w", key, err)
	}
	if err := WriteNPY(f, rows, cols); err != nil {
		return err
	}
	return zw.Close()
}

// WriteNPY writes a version 1.0 .npy stream for a rows x cols float64 array.
func WriteNPY(w io.Writer, rows [][]float64, cols int) error {
	dict := fmt.Sprintf("{'descr': '<f8', 'fortran_order': False, 'shape': (%d, %d), }", len(rows), cols)
	// preamble + length + dict + newline, padded to 64 bytes
	total := len(npyMagic) + 2 + 2 + len(dict) + 1
	pad := (64 - total%64) % 64
	dict += strings.Repeat(" ", pad) + "\n"

	var buf bytes.Buffer
	buf.Write(npyMagic)
	buf.Write([]byte{1, 0})
	_ = binary.Write(&buf, binary.LittleEndian, uint16(len(dict)))
	buf.WriteString(dict)
	for _, r := range rows {
		for _, v := range r {
			_ = binary.Write(&buf, binary.LittleEndian, v)
		}
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write npy: %w", err)
	}
	return nil
}

// #endregion write
