package activity

import "math"

// #region flux

// LuminosityToFlux returns L / (4 pi R^2). Units are whatever the caller passes.
func LuminosityToFlux(luminosity, radius float64) float64 {
	return luminosity / (4 * math.Pi * radius * radius)
}

// FluxToLuminosity returns F 4 pi R^2.
func FluxToLuminosity(flux, radius float64) float64 {
	return flux * 4 * math.Pi * radius * radius
}

// #endregion flux

// #region euv

// EUV flux-flux fit coefficients, both in log10 of erg/s/cm^2.
const (
	euv1Intercept = 2.04
	euv1Slope     = 0.681
	euv2Intercept = -0.341
	euv2Slope     = 0.920
)

// EUVFlux converts a surface X-ray flux to the summed two-band EUV surface
// flux. fx must be positive; otherwise the result is NaN.
func EUVFlux(fx float64) float64 {
	logF1 := euv1Intercept + euv1Slope*math.Log10(fx)
	logF2 := euv2Intercept + euv2Slope*logF1
	return math.Pow(10, logF1) + math.Pow(10, logF2)
}

// EUVLuminosity derives EUV luminosity from X-ray luminosity. Both
// luminosities are in erg/s and the radius in cm.
func EUVLuminosity(lxray, radius float64) float64 {
	fx := LuminosityToFlux(lxray, radius)
	return FluxToLuminosity(EUVFlux(fx), radius)
}

// EUVLuminositySeries applies EUVLuminosity row by row.
func EUVLuminositySeries(lxray, radius []float64) []float64 {
	out := make([]float64, len(lxray))
	for i := range lxray {
		out[i] = EUVLuminosity(lxray[i], radius[i])
	}
	return out
}

// #endregion euv
