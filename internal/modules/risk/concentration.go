package risk

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/riskengine/internal/modules/portfolio"
)

// ConcentrationType identifies one way of bucketing the portfolio.
type ConcentrationType string

const (
	ConcentrationByUnderlying ConcentrationType = "underlying"
	ConcentrationByStrategy   ConcentrationType = "strategy"
	ConcentrationByDirection  ConcentrationType = "direction"
	ConcentrationByExpiration ConcentrationType = "expiration"
)

// directionDeltaBand is the per-position delta band treated as neutral.
const directionDeltaBand = 5.0

// ConcentrationLimit caps one bucket type's share of portfolio value.
type ConcentrationLimit struct {
	Type           ConcentrationType `json:"type"`
	MaxPercent     float64           `json:"max_percent"`
	WarningPercent float64           `json:"warning_percent"`
}

// DefaultConcentrationLimits returns the standard limit set.
func DefaultConcentrationLimits() []ConcentrationLimit {
	return []ConcentrationLimit{
		{Type: ConcentrationByUnderlying, MaxPercent: 25, WarningPercent: 20},
		{Type: ConcentrationByStrategy, MaxPercent: 40, WarningPercent: 30},
		{Type: ConcentrationByDirection, MaxPercent: 80, WarningPercent: 70},
		{Type: ConcentrationByExpiration, MaxPercent: 35, WarningPercent: 25},
	}
}

// ConcentrationViolation is one bucket exceeding its warning or hard limit.
type ConcentrationViolation struct {
	Type     ConcentrationType `json:"type"`
	Bucket   string            `json:"bucket"`
	Percent  float64           `json:"percent"`
	Limit    float64           `json:"limit"`
	IsBreach bool              `json:"is_breach"` // false means warning
	Message  string            `json:"message"`
}

// WorstOffender is the largest bucket of one concentration type.
type WorstOffender struct {
	Type    ConcentrationType `json:"type"`
	Bucket  string            `json:"bucket"`
	Percent float64           `json:"percent"`
}

// ConcentrationResult is the full concentration report for one snapshot.
type ConcentrationResult struct {
	ByUnderlying         map[string]float64       `json:"by_underlying"`
	ByStrategy           map[string]float64       `json:"by_strategy"`
	ByDirection          map[string]float64       `json:"by_direction"`
	ByExpiration         map[string]float64       `json:"by_expiration"`
	WorstOffenders       []WorstOffender          `json:"worst_offenders"`
	Violations           []ConcentrationViolation `json:"violations"`
	DiversificationScore float64                  `json:"diversification_score"`
	CheckedAt            time.Time                `json:"checked_at"`
}

// ConcentrationChecker scores portfolio concentration and flags limit
// breaches per bucket type.
type ConcentrationChecker struct {
	limits []ConcentrationLimit
	log    zerolog.Logger
}

// NewConcentrationChecker creates a checker with the given limits; nil means
// the default limit set.
func NewConcentrationChecker(limits []ConcentrationLimit, log zerolog.Logger) *ConcentrationChecker {
	if limits == nil {
		limits = DefaultConcentrationLimits()
	}
	return &ConcentrationChecker{
		limits: limits,
		log:    log.With().Str("component", "concentration_checker").Logger(),
	}
}

// Check computes the percent-of-portfolio breakdowns, flags violations and
// scores diversification. Percentages are of total portfolio value; with a
// non-positive portfolio value everything is zero.
func (c *ConcentrationChecker) Check(positions []portfolio.Position, portfolioValue float64) ConcentrationResult {
	result := ConcentrationResult{
		ByUnderlying: make(map[string]float64),
		ByStrategy:   make(map[string]float64),
		ByDirection:  make(map[string]float64),
		ByExpiration: make(map[string]float64),
		CheckedAt:    time.Now(),
	}
	if portfolioValue <= 0 {
		return result
	}

	for i := range positions {
		pos := &positions[i]
		if pos.Symbol == "" {
			continue
		}
		pct := pos.GrossValue() / portfolioValue * 100

		result.ByUnderlying[pos.Symbol] += pct
		result.ByStrategy[strategyBucket(pos)] += pct
		result.ByDirection[directionBucket(pos)] += pct
		if pos.IsOption() && !pos.Expiration.IsZero() {
			result.ByExpiration[expirationWeek(pos.Expiration)] += pct
		}
	}

	breakdowns := map[ConcentrationType]map[string]float64{
		ConcentrationByUnderlying: result.ByUnderlying,
		ConcentrationByStrategy:   result.ByStrategy,
		ConcentrationByDirection:  result.ByDirection,
		ConcentrationByExpiration: result.ByExpiration,
	}

	for _, limit := range c.limits {
		buckets := breakdowns[limit.Type]
		for bucket, pct := range buckets {
			if pct > limit.MaxPercent {
				result.Violations = append(result.Violations, ConcentrationViolation{
					Type:     limit.Type,
					Bucket:   bucket,
					Percent:  pct,
					Limit:    limit.MaxPercent,
					IsBreach: true,
					Message:  fmt.Sprintf("%s %q is %.1f%% of portfolio, above the %.1f%% limit", limit.Type, bucket, pct, limit.MaxPercent),
				})
			} else if pct > limit.WarningPercent {
				result.Violations = append(result.Violations, ConcentrationViolation{
					Type:     limit.Type,
					Bucket:   bucket,
					Percent:  pct,
					Limit:    limit.WarningPercent,
					IsBreach: false,
					Message:  fmt.Sprintf("%s %q is %.1f%% of portfolio, above the %.1f%% warning level", limit.Type, bucket, pct, limit.WarningPercent),
				})
			}
		}
	}
	sort.Slice(result.Violations, func(i, j int) bool {
		return result.Violations[i].Percent > result.Violations[j].Percent
	})

	for _, typ := range []ConcentrationType{
		ConcentrationByUnderlying,
		ConcentrationByStrategy,
		ConcentrationByDirection,
		ConcentrationByExpiration,
	} {
		if bucket, pct, ok := worstBucket(breakdowns[typ]); ok {
			result.WorstOffenders = append(result.WorstOffenders, WorstOffender{Type: typ, Bucket: bucket, Percent: pct})
		}
	}

	result.DiversificationScore = c.diversificationScore(result.ByUnderlying, result.Violations)

	return result
}

// diversificationScore is Herfindahl-based: 1 − Σ(share²) over underlying
// buckets, minus 0.1 per hard breach, floored at 0.
func (c *ConcentrationChecker) diversificationScore(byUnderlying map[string]float64, violations []ConcentrationViolation) float64 {
	hhi := 0.0
	for _, pct := range byUnderlying {
		share := pct / 100
		hhi += share * share
	}
	score := 1.0 - hhi
	for _, v := range violations {
		if v.IsBreach {
			score -= 0.1
		}
	}
	if score < 0 {
		score = 0
	}
	return score
}

// directionBucket classifies a position as long, short or neutral by its own
// delta, not the portfolio's.
func directionBucket(pos *portfolio.Position) string {
	delta := pos.Quantity
	if pos.IsOption() {
		delta = pos.Greeks.Delta * pos.Quantity * pos.EffectiveMultiplier()
	}
	switch {
	case delta > directionDeltaBand:
		return "long"
	case delta < -directionDeltaBand:
		return "short"
	default:
		return "neutral"
	}
}

func strategyBucket(pos *portfolio.Position) string {
	if pos.Strategy != "" {
		return pos.Strategy
	}
	return pos.Kind.String()
}

// expirationWeek buckets an expiration date into its ISO year-week.
func expirationWeek(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

func worstBucket(buckets map[string]float64) (string, float64, bool) {
	worst := ""
	worstPct := math.Inf(-1)
	for bucket, pct := range buckets {
		if pct > worstPct || (pct == worstPct && bucket < worst) {
			worst = bucket
			worstPct = pct
		}
	}
	if worst == "" {
		return "", 0, false
	}
	return worst, worstPct, true
}
