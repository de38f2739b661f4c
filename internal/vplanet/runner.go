package vplanet

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/xuvcal/internal/units"
)

const primaryFile = "vpl.in"

// #region config

// Config describes how to run vplanet for one model.
type Config struct {
	Binary    string         // vplanet executable
	InPath    string         // directory holding vpl.in and the body infiles
	OutPath   string         // root under which each run gets its own directory
	TimeInit  units.Quantity // initial stellar age written to each body's dAge
	Timestep  units.Quantity // output cadence written to dOutputTime
	TimeUnit  units.Unit     // system time unit (sUnitTime), yr by default
	InParams  []InParam
	OutParams []OutParam
}

// #endregion config

// #region runner

// Runner executes vplanet as a subprocess.
type Runner struct {
	cfg    Config
	logger *zap.Logger
}

// NewRunner validates cfg and returns a Runner. A nil logger is replaced by a no-op logger.
func NewRunner(cfg Config, logger *zap.Logger) (*Runner, error) {
	if cfg.Binary == "" {
		cfg.Binary = "vplanet"
	}
	if cfg.TimeUnit.IsZero() {
		cfg.TimeUnit = units.Year
	}
	if len(cfg.InParams) == 0 || len(cfg.OutParams) == 0 {
		return nil, fmt.Errorf("vplanet config: input and output parameters are required")
	}
	for _, p := range cfg.InParams {
		if _, _, err := splitName(p.Name); err != nil {
			return nil, err
		}
		if _, err := p.Unit.Factor(p.FileUnit); err != nil {
			return nil, fmt.Errorf("input %s: %w", p.Name, err)
		}
	}
	for _, p := range cfg.OutParams {
		if _, _, err := splitName(p.Name); err != nil {
			return nil, err
		}
	}
	if _, err := os.Stat(filepath.Join(cfg.InPath, primaryFile)); err != nil {
		return nil, fmt.Errorf("vplanet config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{cfg: cfg, logger: logger}, nil
}

// RunModel writes a fresh run directory, runs vplanet and parses the
// forward files. Each call uses its own directory, so concurrent calls do
// not collide. When remove is set the directory is deleted afterwards.
func (r *Runner) RunModel(ctx context.Context, values []float64, remove bool) (Output, error) {
	if len(values) != len(r.cfg.InParams) {
		return nil, fmt.Errorf("got %d values for %d inputs: %w", len(values), len(r.cfg.InParams), ErrParamCount)
	}

	ctx, span := otel.Tracer("xuvcal/vplanet").Start(ctx, "vplanet.RunModel")
	defer span.End()

	dir := filepath.Join(r.cfg.OutPath, uuid.NewString())
	span.SetAttributes(attribute.String("vplanet.dir", dir))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create run dir: %w", err)
	}
	if remove {
		defer os.RemoveAll(dir)
	}

	files, err := r.prepare(values)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "prepare")
		return nil, err
	}
	for _, in := range files {
		if err := in.Write(dir); err != nil {
			return nil, err
		}
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.cfg.Binary, primaryFile)
	cmd.Dir = dir
	cmd.Stderr = &stderr
	r.logger.Debug("vplanet run", zap.String("dir", dir), zap.Float64s("values", values))
	if err := cmd.Run(); err != nil {
		runErr := &RunError{Dir: dir, Stderr: stderr.String(), Err: err}
		span.RecordError(runErr)
		span.SetStatus(codes.Error, "run")
		return nil, runErr
	}

	out, err := r.collect(dir, files)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "collect")
		return nil, err
	}
	span.SetAttributes(attribute.Int("vplanet.rows", out.Rows()))
	return out, nil
}

// #endregion runner

// #region prepare

// prepare loads the template infiles and applies the run's values.
func (r *Runner) prepare(values []float64) (map[string]*Infile, error) {
	paths, err := filepath.Glob(filepath.Join(r.cfg.InPath, "*.in"))
	if err != nil {
		return nil, fmt.Errorf("list infiles: %w", err)
	}
	files := make(map[string]*Infile, len(paths))
	for _, p := range paths {
		in, err := ReadInfile(p)
		if err != nil {
			return nil, err
		}
		files[strings.TrimSuffix(in.Name, ".in")] = in
	}
	vpl, ok := files["vpl"]
	if !ok {
		return nil, fmt.Errorf("template %s missing", primaryFile)
	}

	if !r.cfg.Timestep.Unit.IsZero() {
		step, err := r.cfg.Timestep.To(r.cfg.TimeUnit)
		if err != nil {
			return nil, fmt.Errorf("timestep: %w", err)
		}
		vpl.SetFloat("dOutputTime", step.Value)
	}
	vpl.Set("bDoForward", "1")

	for i, p := range r.cfg.InParams {
		body, option, _ := splitName(p.Name)
		in, ok := files[body]
		if !ok {
			return nil, fmt.Errorf("input %s: infile %s.in missing", p.Name, body)
		}
		q, err := units.Q(values[i], p.Unit).To(p.FileUnit)
		if err != nil {
			return nil, fmt.Errorf("input %s: %w", p.Name, err)
		}
		v := q.Value
		if p.Negate {
			v = -v
		}
		in.SetFloat(option, v)
	}

	order := r.outputOrder()
	for body, cols := range order {
		in, ok := files[body]
		if !ok {
			return nil, fmt.Errorf("output body %s: infile %s.in missing", body, body)
		}
		if !r.cfg.TimeInit.Unit.IsZero() {
			age, err := r.cfg.TimeInit.To(r.cfg.TimeUnit)
			if err != nil {
				return nil, fmt.Errorf("time init: %w", err)
			}
			in.SetFloat("dAge", age.Value)
		}
		in.Set("saOutputOrder", append([]string{TimeColumn}, cols...)...)
	}
	return files, nil
}

// outputOrder groups output columns by body, preserving configuration order.
func (r *Runner) outputOrder() map[string][]string {
	order := make(map[string][]string)
	for _, p := range r.cfg.OutParams {
		body, _, _ := splitName(p.Name)
		order[body] = append(order[body], p.Column)
	}
	return order
}

// #endregion prepare

// #region collect

// collect parses each body's forward file into unit-tagged series.
func (r *Runner) collect(dir string, files map[string]*Infile) (Output, error) {
	system := "system"
	if v, ok := files["vpl"].Get("sSystemName"); ok && len(v) > 0 {
		system = v[0]
	}

	out := make(Output)
	order := r.outputOrder()
	for body := range order {
		name := body
		if v, ok := files[body].Get("sName"); ok && len(v) > 0 {
			name = v[0]
		}
		path := filepath.Join(dir, system+"."+name+".forward")
		rows, err := readForward(path)
		if err != nil {
			return nil, err
		}

		col := 1
		for _, p := range r.cfg.OutParams {
			b, _, _ := splitName(p.Name)
			if b != body {
				continue
			}
			out[p.Name] = units.Series{Values: column(rows, col), Unit: p.FileUnit}
			col++
		}
		if _, ok := out[TimeColumn]; !ok {
			out[TimeColumn] = units.Series{Values: column(rows, 0), Unit: r.cfg.TimeUnit}
		}
	}
	return out, nil
}

// readForward parses a whitespace-separated numeric forward file.
func readForward(path string) ([][]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), ErrNoForwardFile)
		}
		return nil, fmt.Errorf("open forward file: %w", err)
	}
	defer f.Close()

	var rows [][]float64
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		row := make([]float64, len(fields))
		for i, s := range fields {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("%s line %d: %w", filepath.Base(path), line, err)
			}
			row[i] = v
		}
		rows = append(rows, row)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read forward file: %w", err)
	}
	return rows, nil
}

func column(rows [][]float64, i int) []float64 {
	out := make([]float64, len(rows))
	for r, row := range rows {
		if i < len(row) {
			out[r] = row[i]
		} else {
			out[r] = math.NaN()
		}
	}
	return out
}

// #endregion collect
