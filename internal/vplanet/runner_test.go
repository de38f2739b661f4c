package vplanet

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	"github.com/danielpatrickdp/xuvcal/internal/units"
)

// #region helpers

const fakeForward = `5e6 0.05 0.6 1.2 0.02
1e7 0.03 0.4 1.0 0.03
5e7 0.01 0.25 2.5 0.08
`

func writeTemplates(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	vpl := "sSystemName trap\niVerbose 0\nsaBodyFiles star.in\nsUnitTime YEARS\ndStopTime 1e9 # overwritten\n"
	star := "sName star\nsaModules stellar\ndMass 0.1\ndRotPeriod -1\nsaOutputOrder Time\n"
	if err := os.WriteFile(filepath.Join(dir, "vpl.in"), []byte(vpl), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "star.in"), []byte(star), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func writeFakeBinary(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake vplanet uses a shell script")
	}
	path := filepath.Join(t.TempDir(), "vplanet")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func stellarConfig(t *testing.T, binary string) Config {
	return Config{
		Binary:   binary,
		InPath:   writeTemplates(t),
		OutPath:  t.TempDir(),
		TimeInit: units.Q(5e6, units.Year),
		Timestep: units.Q(1e6, units.Year),
		InParams: []InParam{
			{Name: "star.dMass", Unit: units.Msun, FileUnit: units.Msun},
			{Name: "star.dRotPeriod", Unit: units.Day, FileUnit: units.Day, Negate: true},
			{Name: "vpl.dStopTime", Unit: units.Gyr, FileUnit: units.Year},
		},
		OutParams: []OutParam{
			{Name: "final.star.Luminosity", Column: "-Luminosity", FileUnit: units.Lsun},
			{Name: "final.star.Radius", Column: "-Radius", FileUnit: units.Rsun},
			{Name: "final.star.RotPer", Column: "-RotPer", FileUnit: units.Day},
			{Name: "final.star.RossbyNumber", Column: "RossbyNumber", FileUnit: units.One},
		},
	}
}

// #endregion helpers

// #region infile-tests

func TestInfileSetReplacesAndAppends(t *testing.T) {
	in := &Infile{Name: "star.in", Lines: []string{"# header", "dMass 0.1 # solar", "sName star"}}
	in.SetFloat("dMass", 0.09)
	in.Set("saOutputOrder", "Time", "-Luminosity")

	if v, ok := in.Get("dMass"); !ok || v[0] != "0.09" {
		t.Errorf("expected dMass 0.09, got %v", v)
	}
	if in.Lines[0] != "# header" {
		t.Error("comment line should be untouched")
	}
	if v, ok := in.Get("saOutputOrder"); !ok || len(v) != 2 {
		t.Errorf("expected appended output order, got %v", v)
	}
}

func TestInfileGetIgnoresComments(t *testing.T) {
	in := &Infile{Lines: []string{"#dMass 0.5", "dAge 5e6"}}
	if _, ok := in.Get("dMass"); ok {
		t.Error("commented option should not be found")
	}
}

// #endregion infile-tests

// #region runner-tests

func TestRunModel_WritesInputsAndParsesForward(t *testing.T) {
	bin := writeFakeBinary(t, "printf '"+strings.ReplaceAll(fakeForward, "\n", "\\n")+"' > trap.star.forward\n")
	cfg := stellarConfig(t, bin)
	r, err := NewRunner(cfg, nil)
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}

	out, err := r.RunModel(context.Background(), []float64{0.09, 0.5, 2}, false)
	if err != nil {
		t.Fatalf("run model: %v", err)
	}
	if out.Rows() != 3 {
		t.Fatalf("expected 3 rows, got %d", out.Rows())
	}
	lum, err := out.Column("final.star.Luminosity")
	if err != nil {
		t.Fatal(err)
	}
	if lum.Unit != units.Lsun || lum.Last() != 0.01 {
		t.Errorf("unexpected luminosity column %+v", lum)
	}
	ro, _ := out.Column("final.star.RossbyNumber")
	if ro.Last() != 0.08 {
		t.Errorf("expected final Rossby 0.08, got %g", ro.Last())
	}

	entries, err := os.ReadDir(cfg.OutPath)
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected one run dir, got %v (%v)", entries, err)
	}
	star, err := ReadInfile(filepath.Join(cfg.OutPath, entries[0].Name(), "star.in"))
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := star.Get("dRotPeriod"); v[0] != "-0.5" {
		t.Errorf("expected negated rotation period, got %v", v)
	}
	if v, _ := star.Get("saOutputOrder"); strings.Join(v, " ") != "Time -Luminosity -Radius -RotPer RossbyNumber" {
		t.Errorf("unexpected output order %v", v)
	}
	vpl, _ := ReadInfile(filepath.Join(cfg.OutPath, entries[0].Name(), "vpl.in"))
	if v, _ := vpl.Get("dStopTime"); v[0] != "2e+09" {
		t.Errorf("expected stop time 2e+09 yr, got %v", v)
	}
}

func TestRunModel_RemoveDeletesRunDir(t *testing.T) {
	bin := writeFakeBinary(t, "printf '1 1 1 1 1\\n' > trap.star.forward\n")
	cfg := stellarConfig(t, bin)
	r, err := NewRunner(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.RunModel(context.Background(), []float64{0.1, 1, 1}, true); err != nil {
		t.Fatal(err)
	}
	entries, _ := os.ReadDir(cfg.OutPath)
	if len(entries) != 0 {
		t.Errorf("expected run dir removed, found %d entries", len(entries))
	}
}

func TestRunModel_ConcurrentRunsUseDistinctDirs(t *testing.T) {
	bin := writeFakeBinary(t, "printf '1 1 1 1 1\\n' > trap.star.forward\n")
	cfg := stellarConfig(t, bin)
	r, err := NewRunner(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.RunModel(context.Background(), []float64{0.1, 1, 1}, false)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent run: %v", err)
		}
	}
	entries, _ := os.ReadDir(cfg.OutPath)
	if len(entries) != 4 {
		t.Errorf("expected 4 run dirs, got %d", len(entries))
	}
}

func TestRunModel_FailureReturnsRunError(t *testing.T) {
	bin := writeFakeBinary(t, "echo 'ERROR: dMass out of range' >&2\nexit 3\n")
	r, err := NewRunner(stellarConfig(t, bin), nil)
	if err != nil {
		t.Fatal(err)
	}
	_, err = r.RunModel(context.Background(), []float64{5, 1, 1}, true)
	var runErr *RunError
	if !errors.As(err, &runErr) {
		t.Fatalf("expected RunError, got %v", err)
	}
	if !strings.Contains(runErr.Stderr, "dMass out of range") {
		t.Errorf("expected stderr captured, got %q", runErr.Stderr)
	}
}

func TestRunModel_MissingForward(t *testing.T) {
	bin := writeFakeBinary(t, "exit 0\n")
	r, err := NewRunner(stellarConfig(t, bin), nil)
	if err != nil {
		t.Fatal(err)
	}
	_, err = r.RunModel(context.Background(), []float64{0.1, 1, 1}, true)
	if !errors.Is(err, ErrNoForwardFile) {
		t.Fatalf("expected ErrNoForwardFile, got %v", err)
	}
}

func TestRunModel_ParamCount(t *testing.T) {
	bin := writeFakeBinary(t, "exit 0\n")
	r, err := NewRunner(stellarConfig(t, bin), nil)
	if err != nil {
		t.Fatal(err)
	}
	_, err = r.RunModel(context.Background(), []float64{0.1}, true)
	if !errors.Is(err, ErrParamCount) {
		t.Fatalf("expected ErrParamCount, got %v", err)
	}
}

func TestNewRunner_RejectsBadNames(t *testing.T) {
	cfg := stellarConfig(t, "vplanet")
	cfg.InParams[0].Name = "dMass"
	if _, err := NewRunner(cfg, nil); err == nil {
		t.Fatal("expected error for name without body")
	}
}

// #endregion runner-tests

// #region recorded-tests

func TestRecorded_ReturnsFixedAndRecordsCalls(t *testing.T) {
	fixed := Output{TimeColumn: {Values: []float64{1, 2}, Unit: units.Year}}
	rec := &Recorded{Fixed: fixed}

	out, err := rec.RunModel(context.Background(), []float64{1, 2, 3}, true)
	if err != nil {
		t.Fatal(err)
	}
	if out.Rows() != 2 {
		t.Errorf("expected 2 rows, got %d", out.Rows())
	}
	if calls := rec.Calls(); len(calls) != 1 || calls[0][2] != 3 {
		t.Errorf("unexpected calls %v", calls)
	}
}

// #endregion recorded-tests
