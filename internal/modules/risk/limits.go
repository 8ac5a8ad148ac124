package risk

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// LimitAction is what should happen when a limit is breached.
type LimitAction int

const (
	ActionAlert LimitAction = iota
	ActionBlockNew
	ActionReduce
	ActionLiquidate
)

// String returns the snake_case name of the action.
func (a LimitAction) String() string {
	switch a {
	case ActionAlert:
		return "alert"
	case ActionBlockNew:
		return "block_new"
	case ActionReduce:
		return "reduce"
	case ActionLiquidate:
		return "liquidate"
	}
	return "unknown"
}

// DefaultWarningThreshold is the utilization fraction at which a limit
// starts warning.
const DefaultWarningThreshold = 0.8

// RiskLimit is a named threshold any metric can be checked against.
type RiskLimit struct {
	Name             string      `json:"name"`
	Value            float64     `json:"value"`
	WarningThreshold float64     `json:"warning_threshold"` // fraction of Value, default 0.8
	Action           LimitAction `json:"action"`
}

// LimitBreach reports one limit at or past its warning or breach level.
type LimitBreach struct {
	ID          string      `json:"id"`
	LimitName   string      `json:"limit_name"`
	Current     float64     `json:"current"`
	Limit       float64     `json:"limit"`
	Utilization float64     `json:"utilization"`
	IsBreach    bool        `json:"is_breach"` // false means warning
	Action      LimitAction `json:"action"`
	Message     string      `json:"message"`
}

// LimitCheckResult is the outcome of checking every registered limit.
type LimitCheckResult struct {
	Breaches  []LimitBreach `json:"breaches"`
	Warnings  []LimitBreach `json:"warnings"`
	CheckedAt time.Time     `json:"checked_at"`
}

// OK reports whether no limit breached (warnings allowed).
func (r *LimitCheckResult) OK() bool {
	return len(r.Breaches) == 0
}

// LimitChecker holds registered limits and evaluates metrics against them.
type LimitChecker struct {
	limits map[string]RiskLimit
	log    zerolog.Logger
}

// NewLimitChecker creates an empty limit checker.
func NewLimitChecker(log zerolog.Logger) *LimitChecker {
	return &LimitChecker{
		limits: make(map[string]RiskLimit),
		log:    log.With().Str("component", "limit_checker").Logger(),
	}
}

// Register adds or replaces a limit. A zero warning threshold gets the
// default of 0.8.
func (c *LimitChecker) Register(limit RiskLimit) {
	if limit.WarningThreshold <= 0 {
		limit.WarningThreshold = DefaultWarningThreshold
	}
	c.limits[limit.Name] = limit
}

// Limits returns the registered limits sorted by name.
func (c *LimitChecker) Limits() []RiskLimit {
	out := make([]RiskLimit, 0, len(c.limits))
	for _, l := range c.limits {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// CheckAll evaluates every registered limit against the supplied metrics.
// Metric values are compared by absolute value: utilization ≥ 1.0 is a
// breach, utilization within the warning band is a warning, anything lower
// is silent. Metrics without a matching limit, and limits without a metric,
// are skipped.
func (c *LimitChecker) CheckAll(metrics map[string]float64) LimitCheckResult {
	result := LimitCheckResult{CheckedAt: time.Now()}

	for name, limit := range c.limits {
		current, ok := metrics[name]
		if !ok || limit.Value <= 0 {
			continue
		}

		utilization := math.Abs(current) / limit.Value
		if utilization < limit.WarningThreshold {
			continue
		}

		breach := LimitBreach{
			ID:          uuid.New().String(),
			LimitName:   name,
			Current:     current,
			Limit:       limit.Value,
			Utilization: utilization,
			Action:      limit.Action,
			IsBreach:    utilization >= 1.0,
		}
		if breach.IsBreach {
			breach.Message = fmt.Sprintf("%s at %.2f exceeds limit %.2f (%.0f%% utilization), action: %s",
				name, current, limit.Value, utilization*100, limit.Action)
			result.Breaches = append(result.Breaches, breach)
			c.log.Warn().
				Str("limit", name).
				Float64("current", current).
				Float64("value", limit.Value).
				Str("action", limit.Action.String()).
				Msg("Risk limit breached")
		} else {
			breach.Message = fmt.Sprintf("%s at %.2f is approaching limit %.2f (%.0f%% utilization)",
				name, current, limit.Value, utilization*100)
			result.Warnings = append(result.Warnings, breach)
		}
	}

	sort.Slice(result.Breaches, func(i, j int) bool {
		return result.Breaches[i].Utilization > result.Breaches[j].Utilization
	})
	sort.Slice(result.Warnings, func(i, j int) bool {
		return result.Warnings[i].Utilization > result.Warnings[j].Utilization
	})

	return result
}

// Standard limit metric names. Callers use the same keys in the metrics map
// passed to CheckAll.
const (
	LimitVaR95   = "var_95"
	LimitTheta   = "daily_theta"
	LimitVega    = "total_vega"
	LimitMaxLoss = "max_loss"
	LimitDelta   = "total_delta"
)

// RegisterDefaults installs the standard limit set: VaR, theta, vega and
// max-loss limits scale as fractions of portfolio value; the delta cap is a
// fixed dollar amount.
func (c *LimitChecker) RegisterDefaults(portfolioValue float64) {
	c.Register(RiskLimit{Name: LimitVaR95, Value: 0.05 * portfolioValue, Action: ActionAlert})
	c.Register(RiskLimit{Name: LimitTheta, Value: 0.005 * portfolioValue, Action: ActionAlert})
	c.Register(RiskLimit{Name: LimitVega, Value: 0.02 * portfolioValue, Action: ActionReduce})
	c.Register(RiskLimit{Name: LimitMaxLoss, Value: 0.10 * portfolioValue, Action: ActionBlockNew})
	c.Register(RiskLimit{Name: LimitDelta, Value: 50000, Action: ActionReduce})
}
