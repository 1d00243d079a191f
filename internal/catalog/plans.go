// Package catalog holds the static plan and capability tables and the
// entitlement check that combines them.
package catalog

import (
	"sort"
	"time"

	"licensegate/internal/types"
)

// Unlimited marks an unbounded limit on a PlanTier dimension.
const Unlimited = -1

// RateLimit is a tier's fixed-window request budget.
type RateLimit struct {
	Requests int
	Window   time.Duration
}

// PlanTier describes one subscription tier. Values are immutable once the
// catalog is built.
type PlanTier struct {
	Code              types.PlanCode
	MaxUsers          int
	MaxAPICallsPerDay int
	MaxStorageGB      int
	Capabilities      []string
	RateLimit         RateLimit
}

// DailyCallsBounded reports whether MaxAPICallsPerDay is a real cap.
func (t PlanTier) DailyCallsBounded() bool { return t.MaxAPICallsPerDay != Unlimited }

// UsersBounded reports whether MaxUsers is a real cap.
func (t PlanTier) UsersBounded() bool { return t.MaxUsers != Unlimited }

// Catalog is the read-only plan table consulted on every admission check.
type Catalog interface {
	// Lookup returns a copy of the tier for code. Unknown codes return false; callers
	// treat that as a data-integrity fault, never as a silent downgrade.
	Lookup(code types.PlanCode) (PlanTier, bool)

	// Next returns the immediate successor of code on the upgrade ladder.
	// The top tier returns itself.
	Next(code types.PlanCode) types.PlanCode

	// Tiers returns every tier ordered lowest first.
	Tiers() []PlanTier
}

// staticCatalog is the built-in four-tier catalog.
type staticCatalog struct {
	tiers map[types.PlanCode]PlanTier
}

var planDefaults = map[types.PlanCode]PlanTier{
	types.PlanFree: {
		Code:              types.PlanFree,
		MaxUsers:          3,
		MaxAPICallsPerDay: 1000,
		MaxStorageGB:      1,
		Capabilities:      []string{"dashboard.basic", "reports.basic"},
		RateLimit:         RateLimit{Requests: 100, Window: time.Hour},
	},
	types.PlanStarter: {
		Code:              types.PlanStarter,
		MaxUsers:          10,
		MaxAPICallsPerDay: 10000,
		MaxStorageGB:      10,
		Capabilities: []string{
			"dashboard.basic", "dashboard.business",
			"reports.basic", "reports.advanced",
			"crm.basic", "finance.basic",
		},
		RateLimit: RateLimit{Requests: 500, Window: time.Hour},
	},
	types.PlanProfessional: {
		Code:              types.PlanProfessional,
		MaxUsers:          50,
		MaxAPICallsPerDay: 100000,
		MaxStorageGB:      100,
		Capabilities: []string{
			"dashboard.basic", "dashboard.business", "dashboard.executive",
			"reports.basic", "reports.advanced", "reports.custom",
			"crm.basic", "crm.advanced", "crm.automation",
			"finance.basic", "finance.advanced",
			"analytics.basic", "analytics.advanced",
			"workflows.basic",
			"grc.basic",
			"hr.payroll",
		},
		RateLimit: RateLimit{Requests: 2000, Window: time.Hour},
	},
	types.PlanEnterprise: {
		Code:              types.PlanEnterprise,
		MaxUsers:          Unlimited,
		MaxAPICallsPerDay: Unlimited,
		MaxStorageGB:      Unlimited,
		Capabilities:      []string{"*"},
		RateLimit:         RateLimit{Requests: 10000, Window: time.Hour},
	},
}

// NewStaticCatalog returns the built-in plan table.
func NewStaticCatalog() Catalog {
	return NewCatalog(planDefaults)
}

// NewCatalog builds a Catalog from tiers. The map and every capability slice
// are copied so later mutation by the caller has no effect.
func NewCatalog(tiers map[types.PlanCode]PlanTier) Catalog {
	m := make(map[types.PlanCode]PlanTier, len(tiers))
	for k, v := range tiers {
		caps := make([]string, len(v.Capabilities))
		copy(caps, v.Capabilities)
		v.Capabilities = caps
		m[k] = v
	}
	return &staticCatalog{tiers: m}
}

// Lookup returns a copy of the tier for code.
func (c *staticCatalog) Lookup(code types.PlanCode) (PlanTier, bool) {
	t, ok := c.tiers[code]
	if !ok {
		return PlanTier{}, false
	}
	caps := make([]string, len(t.Capabilities))
	copy(caps, t.Capabilities)
	t.Capabilities = caps
	return t, true
}

// Next returns the tier above code. The top tier and unknown codes map to
// themselves.
func (c *staticCatalog) Next(code types.PlanCode) types.PlanCode {
	order := types.PlanOrder()
	for i, p := range order {
		if p == code && i+1 < len(order) {
			return order[i+1]
		}
	}
	return code
}

// Tiers returns a copy of the catalog in ascending order.
func (c *staticCatalog) Tiers() []PlanTier {
	out := make([]PlanTier, 0, len(c.tiers))
	for code := range c.tiers {
		t, _ := c.Lookup(code)
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code.Rank() < out[j].Code.Rank() })
	return out
}
