package store

import (
	"time"

	"github.com/danielpatrickdp/xuvcal/internal/fit"
	"github.com/danielpatrickdp/xuvcal/internal/observation"
)

// #region run-record
// Run is one calibration configuration: a star with a chosen combination of
// constraints. ConfigJSON holds the resolved star configuration.
type Run struct {
	RunID       string
	Star        string
	Combination string
	ConfigJSON  string
	CreatedAt   time.Time
}
// #endregion run-record

// #region evaluation-record
// Evaluation is one likelihood evaluation. LnLike is -Inf for evaluations
// that failed or were rejected.
type Evaluation struct {
	EvalID    string
	RunID     string
	Theta     []float64
	Terms     []fit.Term
	LnLike    float64
	Finals    map[observation.Kind]float64
	Passed    bool
	Reason    string
	Error     string
	Source    string // "evaluate" | "sweep" | "serve" | "posterior"
	Elapsed   time.Duration
	CreatedAt time.Time
}
// #endregion evaluation-record

// #region sample-set
// SampleSet is a block of posterior samples produced by one sampler.
type SampleSet struct {
	RunID   string
	Sampler string // "emcee" | "dynesty" | free-form
	Rows    [][]float64
}
// #endregion sample-set
