package vplanet

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// #region infile

// Infile is an editable vplanet input file: one "option value..." pair per
// line, with '#' starting a comment.
type Infile struct {
	Name  string // base file name, e.g. "star.in"
	Lines []string
}

// ReadInfile loads path into an Infile.
func ReadInfile(path string) (*Infile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open infile: %w", err)
	}
	defer f.Close()

	in := &Infile{Name: filepath.Base(path)}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		in.Lines = append(in.Lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read infile %s: %w", path, err)
	}
	return in, nil
}

// Get returns the value fields of option, or false if it is not set.
func (in *Infile) Get(option string) ([]string, bool) {
	for _, line := range in.Lines {
		fields := optionFields(line)
		if len(fields) > 0 && fields[0] == option {
			return fields[1:], true
		}
	}
	return nil, false
}

// Set replaces the first occurrence of option or appends it.
func (in *Infile) Set(option string, values ...string) {
	line := option + " " + strings.Join(values, " ")
	for i, l := range in.Lines {
		fields := optionFields(l)
		if len(fields) > 0 && fields[0] == option {
			in.Lines[i] = line
			return
		}
	}
	in.Lines = append(in.Lines, line)
}

// SetFloat writes a numeric option with full precision.
func (in *Infile) SetFloat(option string, v float64) {
	in.Set(option, strconv.FormatFloat(v, 'g', -1, 64))
}

// Write stores the file under dir.
func (in *Infile) Write(dir string) error {
	data := strings.Join(in.Lines, "\n") + "\n"
	if err := os.WriteFile(filepath.Join(dir, in.Name), []byte(data), 0o644); err != nil {
		return fmt.Errorf("write infile %s: %w", in.Name, err)
	}
	return nil
}

func optionFields(line string) []string {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		line = line[:i]
	}
	return strings.Fields(line)
}

// #endregion infile
