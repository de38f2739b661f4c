package eval

// #region eval-config
// EvalConfig holds thresholds for post-evaluation track checks.
type EvalConfig struct {
	MinRows             int     // reject tracks shorter than this
	MaxRossby           float64 // informational: flag final Rossby numbers above this
	RequireFinite       bool    // fail on NaN/Inf in derived luminosities
	RequirePositiveXRay bool    // fail when any X-ray luminosity is non-positive
}

// DefaultEvalConfig returns the checks applied by the calibration commands.
func DefaultEvalConfig() EvalConfig {
	return EvalConfig{
		MinRows:             1,
		MaxRossby:           10,
		RequireFinite:       true,
		RequirePositiveXRay: true,
	}
}

// #endregion eval-config

// #region eval-metric
// EvalMetric captures a single validation check result.
type EvalMetric struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Pass  bool    `json:"pass"`
}

// #endregion eval-metric

// #region eval-result
// EvalResult is the output of post-evaluation validation.
type EvalResult struct {
	Passed  bool         `json:"passed"`
	Metrics []EvalMetric `json:"metrics"`
	Reason  string       `json:"reason"`
}

// #endregion eval-result
