package store

import (
	"math"
	"time"

	"github.com/danielpatrickdp/xuvcal/internal/model"
	"github.com/danielpatrickdp/xuvcal/internal/observation"
)

// #region from-result
// FromResult builds the record for one model evaluation. evalErr is the
// error LnLike returned, if any; final values are only kept for successful
// evaluations.
func FromResult(runID, source string, obs observation.Set, res model.Result, evalErr error, elapsed time.Duration) Evaluation {
	ev := Evaluation{
		RunID:   runID,
		Theta:   res.Theta.Slice(),
		Terms:   res.Terms,
		LnLike:  res.LnLike,
		Passed:  res.Check.Passed,
		Reason:  res.Check.Reason,
		Source:  source,
		Elapsed: elapsed,
	}
	if evalErr != nil {
		ev.Error = evalErr.Error()
		ev.Passed = false
		ev.LnLike = math.Inf(-1)
		return ev
	}
	finals, err := res.Track.Finals(obs)
	if err != nil {
		ev.Error = err.Error()
		return ev
	}
	ev.Finals = make(map[observation.Kind]float64, len(finals))
	for k, v := range finals {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			ev.Finals[k] = v
		}
	}
	return ev
}
// #endregion from-result
