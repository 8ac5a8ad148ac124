package formulas

import (
	"gonum.org/v1/gonum/stat/distuv"
)

// stdNormal is the standard normal distribution used for z-scores and densities.
var stdNormal = distuv.Normal{Mu: 0, Sigma: 1}

// ZScore returns the one-sided z-score for a confidence level.
// Common confidence levels use the conventional rounded constants so that
// results match published risk figures; anything else goes through the
// inverse normal CDF.
func ZScore(confidence float64) float64 {
	switch confidence {
	case 0.90:
		return 1.282
	case 0.95:
		return 1.645
	case 0.99:
		return 2.326
	}
	if confidence <= 0 || confidence >= 1 {
		return 0
	}
	return stdNormal.Quantile(confidence)
}

// NormPDF returns the standard normal density at x.
func NormPDF(x float64) float64 {
	return stdNormal.Prob(x)
}

// NormCDF returns the standard normal cumulative distribution at x.
func NormCDF(x float64) float64 {
	return stdNormal.CDF(x)
}
