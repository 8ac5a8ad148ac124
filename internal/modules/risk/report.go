package risk

import "sort"

// InstrumentReportRow is one flat row per instrument × underlying, intended
// for tabular display by reporting layers.
type InstrumentReportRow struct {
	InstrumentID string  `json:"instrument_id"`
	Underlying   string  `json:"underlying"`
	Quantity     float64 `json:"quantity"`
	Multiplier   float64 `json:"multiplier"`
	Delta        float64 `json:"delta"`
	Gamma        float64 `json:"gamma"`
	Theta        float64 `json:"theta"`
	Vega         float64 `json:"vega"`
	Rho          float64 `json:"rho"`
}

// FactorReportRow is one flat row per underlying × Greek.
type FactorReportRow struct {
	Underlying string  `json:"underlying"`
	Greek      string  `json:"greek"`
	Value      float64 `json:"value"`
}

// InstrumentTable flattens the matrix into one row per instrument and
// underlying, sorted by instrument id then underlying.
func InstrumentTable(m *RiskFactorMatrix) []InstrumentReportRow {
	var rows []InstrumentReportRow
	for _, row := range m.Rows() {
		underlyings := make([]string, 0, len(row.Sensitivities))
		for u := range row.Sensitivities {
			underlyings = append(underlyings, u)
		}
		sort.Strings(underlyings)
		for _, u := range underlyings {
			s := row.Sensitivities[u]
			rows = append(rows, InstrumentReportRow{
				InstrumentID: row.InstrumentID,
				Underlying:   u,
				Quantity:     row.Quantity,
				Multiplier:   row.Multiplier,
				Delta:        s.Delta,
				Gamma:        s.Gamma,
				Theta:        s.Theta,
				Vega:         s.Vega,
				Rho:          s.Rho,
			})
		}
	}
	return rows
}

// FactorTable flattens the per-underlying aggregation into one row per
// underlying × Greek, sorted by underlying then Greek name. Theta appears
// once under the pseudo-underlying "PORTFOLIO" since it is not attributed
// to any single underlying.
func FactorTable(m *RiskFactorMatrix) []FactorReportRow {
	factors := m.AggregatedRiskFactors()
	underlyings := make([]string, 0, len(factors))
	for u := range factors {
		underlyings = append(underlyings, u)
	}
	sort.Strings(underlyings)

	var rows []FactorReportRow
	for _, u := range underlyings {
		f := factors[u]
		rows = append(rows,
			FactorReportRow{Underlying: u, Greek: "delta", Value: f.TotalDelta},
			FactorReportRow{Underlying: u, Greek: "gamma", Value: f.TotalGamma},
			FactorReportRow{Underlying: u, Greek: "rho", Value: f.TotalRho},
			FactorReportRow{Underlying: u, Greek: "vega", Value: f.TotalVega},
		)
	}
	rows = append(rows, FactorReportRow{Underlying: "PORTFOLIO", Greek: "theta", Value: m.TotalTheta()})
	return rows
}
