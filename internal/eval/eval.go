package eval

import (
	"fmt"
	"math"

	"github.com/danielpatrickdp/xuvcal/internal/activity"
	"github.com/danielpatrickdp/xuvcal/internal/evolution"
)

// #region eval-harness
// EvalHarness runs sanity checks on a derived evolution track.
type EvalHarness struct {
	config EvalConfig
}

// NewEvalHarness creates an eval harness with the given configuration.
func NewEvalHarness(config EvalConfig) *EvalHarness {
	return &EvalHarness{config: config}
}

// Run checks the track and the activity parameters that produced it.
// The Rossby check is informational and never fails the track.
func (h *EvalHarness) Run(track evolution.Track, params activity.Params) EvalResult {
	var metrics []EvalMetric
	var failReasons []string
	fail := func(format string, args ...any) {
		failReasons = append(failReasons, fmt.Sprintf(format, args...))
	}

	// 1. Track length
	rows := track.Len()
	rowsPass := rows >= h.config.MinRows
	metrics = append(metrics, EvalMetric{Name: "rows", Value: float64(rows), Pass: rowsPass})
	if !rowsPass {
		fail("track has %d rows, need %d", rows, h.config.MinRows)
	}

	// 2. Saturation threshold must be positive for the power law to be real
	roSatPass := params.Validate() == nil
	metrics = append(metrics, EvalMetric{Name: "ro_sat", Value: params.RoSat, Pass: roSatPass})
	if !roSatPass {
		fail("RoSat %g is not positive", params.RoSat)
	}

	// 3. Derived luminosities finite
	if h.config.RequireFinite {
		for _, c := range []evolution.NamedSeries{
			{Name: "lbol", Series: track.Luminosity},
			{Name: "lxray", Series: track.LXRay},
			{Name: "leuv", Series: track.LEUV},
			{Name: "lxuv", Series: track.LXUV},
		} {
			bad := countNonFinite(c.Series.Values)
			pass := bad == 0
			metrics = append(metrics, EvalMetric{Name: "nonfinite_" + c.Name, Value: float64(bad), Pass: pass})
			if !pass {
				fail("%d non-finite %s values", bad, c.Name)
			}
		}
	}

	// 4. X-ray flux positive, the domain of the EUV relation
	if h.config.RequirePositiveXRay {
		minLx := minValue(track.LXRay.Values)
		pass := minLx > 0
		metrics = append(metrics, EvalMetric{Name: "min_lxray", Value: minLx, Pass: pass})
		if !pass {
			fail("X-ray luminosity %g is not positive", minLx)
		}
	}

	// 5. Final Rossby number: informational only
	finalRo := track.Rossby.Last()
	metrics = append(metrics, EvalMetric{
		Name:  "final_rossby",
		Value: finalRo,
		Pass:  h.config.MaxRossby <= 0 || finalRo <= h.config.MaxRossby,
	})

	reason := "all checks passed"
	passed := len(failReasons) == 0
	if !passed {
		reason = fmt.Sprintf("eval failed: %s", failReasons[0])
		if len(failReasons) > 1 {
			reason = fmt.Sprintf("eval failed: %d checks: %s", len(failReasons), failReasons[0])
		}
	}

	return EvalResult{
		Passed:  passed,
		Metrics: metrics,
		Reason:  reason,
	}
}

// #endregion eval-harness

// #region helpers
func countNonFinite(v []float64) int {
	n := 0
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			n++
		}
	}
	return n
}

// minValue returns +Inf for an empty slice and NaN if any value is NaN.
func minValue(v []float64) float64 {
	m := math.Inf(1)
	for _, x := range v {
		if math.IsNaN(x) {
			return math.NaN()
		}
		if x < m {
			m = x
		}
	}
	return m
}

// #endregion helpers
