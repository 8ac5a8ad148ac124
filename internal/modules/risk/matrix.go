package risk

import (
	"math"
	"sort"

	"github.com/aristath/riskengine/internal/modules/portfolio"
)

// FactorSensitivity holds one instrument's sensitivities to one underlying,
// already scaled by quantity × multiplier.
type FactorSensitivity struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"`
	Vega  float64 `json:"vega"`
	Rho   float64 `json:"rho"`
}

// InstrumentRiskRow is one matrix row, keyed by instrument id. A single
// instrument may carry sensitivity to several underlyings (a pairs spread,
// for example), so sensitivities are a map keyed by underlying.
type InstrumentRiskRow struct {
	InstrumentID  string                       `json:"instrument_id"`
	Quantity      float64                      `json:"quantity"`
	Multiplier    float64                      `json:"multiplier"`
	Sensitivities map[string]FactorSensitivity `json:"sensitivities"`
}

// TotalTheta sums theta across every underlying of the row.
func (r *InstrumentRiskRow) TotalTheta() float64 {
	total := 0.0
	for _, s := range r.Sensitivities {
		total += s.Theta
	}
	return total
}

// AggregatedRiskFactor is the per-underlying aggregation across all rows.
// Theta is deliberately absent: time decay is universal, not tied to one
// underlying's price, and is reported once at the matrix level.
type AggregatedRiskFactor struct {
	Underlying      string   `json:"underlying"`
	TotalDelta      float64  `json:"total_delta"`
	TotalGamma      float64  `json:"total_gamma"`
	TotalVega       float64  `json:"total_vega"`
	TotalRho        float64  `json:"total_rho"`
	InstrumentCount int      `json:"instrument_count"`
	Instruments     []string `json:"instruments"`
}

// PortfolioGreeks is the whole-portfolio roll-up of the matrix.
type PortfolioGreeks struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"`
	Vega  float64 `json:"vega"`
	Rho   float64 `json:"rho"`
}

// HedgeThresholds are absolute-value limits above which a factor is
// considered in need of a hedge.
type HedgeThresholds struct {
	Delta float64
	Gamma float64
	Vega  float64
}

// RiskFactorMatrix is a sparse instrument × (underlying, Greek) matrix.
// Rows hold sensitivities scaled at add time; aggregation is recomputed on
// demand so the column-sum invariant holds exactly.
type RiskFactorMatrix struct {
	rows map[string]*InstrumentRiskRow
}

// NewRiskFactorMatrix creates an empty matrix.
func NewRiskFactorMatrix() *RiskFactorMatrix {
	return &RiskFactorMatrix{rows: make(map[string]*InstrumentRiskRow)}
}

// AddInstrument upserts one instrument's sensitivities to one underlying.
// Greeks are per contract; scaling by quantity × multiplier happens here,
// at add time. Calling it again for the same instrument and underlying
// overwrites that underlying's sensitivities. A row with all-zero
// sensitivities still counts toward the underlying's instrument count.
func (m *RiskFactorMatrix) AddInstrument(
	instrumentID, underlying string,
	delta, gamma, theta, vega, rho float64,
	quantity, multiplier float64,
) {
	row, ok := m.rows[instrumentID]
	if !ok {
		row = &InstrumentRiskRow{
			InstrumentID:  instrumentID,
			Quantity:      quantity,
			Multiplier:    multiplier,
			Sensitivities: make(map[string]FactorSensitivity),
		}
		m.rows[instrumentID] = row
	}

	scale := quantity * multiplier
	row.Quantity = quantity
	row.Multiplier = multiplier
	row.Sensitivities[underlying] = FactorSensitivity{
		Delta: delta * scale,
		Gamma: gamma * scale,
		Theta: theta * scale,
		Vega:  vega * scale,
		Rho:   rho * scale,
	}
}

// AddPosition maps a position snapshot into the matrix. Equities are a
// delta-one instrument on their own underlying; options use their
// per-contract Greeks.
func (m *RiskFactorMatrix) AddPosition(pos *portfolio.Position) {
	if pos.Symbol == "" {
		return
	}
	if pos.IsOption() {
		m.AddInstrument(
			pos.InstrumentID(), pos.Symbol,
			pos.Greeks.Delta, pos.Greeks.Gamma, pos.Greeks.Theta, pos.Greeks.Vega, pos.Greeks.Rho,
			pos.Quantity, pos.EffectiveMultiplier(),
		)
		return
	}
	m.AddInstrument(
		pos.InstrumentID(), pos.Symbol,
		1, 0, 0, 0, 0,
		pos.Quantity, 1,
	)
}

// Rows returns the instrument rows sorted by instrument id.
func (m *RiskFactorMatrix) Rows() []*InstrumentRiskRow {
	rows := make([]*InstrumentRiskRow, 0, len(m.rows))
	for _, row := range m.rows {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].InstrumentID < rows[j].InstrumentID })
	return rows
}

// AggregatedRiskFactors returns one aggregate per underlying ever added.
// The sum of any underlying's column across all rows equals that
// underlying's totals exactly; no floating reordering is introduced beyond
// plain summation.
func (m *RiskFactorMatrix) AggregatedRiskFactors() map[string]*AggregatedRiskFactor {
	factors := make(map[string]*AggregatedRiskFactor)
	for _, row := range m.Rows() {
		for underlying, s := range row.Sensitivities {
			f, ok := factors[underlying]
			if !ok {
				f = &AggregatedRiskFactor{Underlying: underlying}
				factors[underlying] = f
			}
			f.TotalDelta += s.Delta
			f.TotalGamma += s.Gamma
			f.TotalVega += s.Vega
			f.TotalRho += s.Rho
			f.InstrumentCount++
			f.Instruments = append(f.Instruments, row.InstrumentID)
		}
	}
	return factors
}

// TotalTheta sums theta across every row regardless of underlying.
func (m *RiskFactorMatrix) TotalTheta() float64 {
	total := 0.0
	for _, row := range m.rows {
		total += row.TotalTheta()
	}
	return total
}

// PortfolioTotals rolls every underlying's aggregate into a single
// portfolio-level Greek set, theta included.
func (m *RiskFactorMatrix) PortfolioTotals() PortfolioGreeks {
	totals := PortfolioGreeks{Theta: m.TotalTheta()}
	for _, f := range m.AggregatedRiskFactors() {
		totals.Delta += f.TotalDelta
		totals.Gamma += f.TotalGamma
		totals.Vega += f.TotalVega
		totals.Rho += f.TotalRho
	}
	return totals
}

// FactorsNeedingHedge returns aggregates whose delta, gamma or vega exceeds
// the corresponding threshold in absolute value, sorted by underlying.
func (m *RiskFactorMatrix) FactorsNeedingHedge(thresholds HedgeThresholds) []*AggregatedRiskFactor {
	var out []*AggregatedRiskFactor
	for _, f := range m.AggregatedRiskFactors() {
		if math.Abs(f.TotalDelta) > thresholds.Delta ||
			math.Abs(f.TotalGamma) > thresholds.Gamma ||
			math.Abs(f.TotalVega) > thresholds.Vega {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Underlying < out[j].Underlying })
	return out
}
