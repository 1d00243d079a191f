package catalog

import (
	"strings"

	"licensegate/internal/types"
)

const universalWildcard = "*"

// Entitlement is the outcome of Evaluate.
type Entitlement struct {
	Granted bool
}

// Evaluator answers "does this plan include this capability".
type Evaluator struct {
	catalog Catalog
}

// NewEvaluator creates an Evaluator that resolves tiers through c.
func NewEvaluator(c Catalog) *Evaluator {
	return &Evaluator{catalog: c}
}

// Evaluate reports whether plan grants capability. Unknown plans grant
// nothing.
func (e *Evaluator) Evaluate(plan types.PlanCode, capability string) Entitlement {
	tier, ok := e.catalog.Lookup(plan)
	if !ok {
		return Entitlement{}
	}
	return Entitlement{Granted: Grants(tier.Capabilities, capability)}
}

// Grants reports whether the pattern set admits capability. A pattern admits
// it when it is "*", equals it exactly, or has the form "X.*" and capability
// starts with "X.". Matching is case-sensitive and scans the whole set.
func Grants(patterns []string, capability string) bool {
	for _, p := range patterns {
		switch {
		case p == universalWildcard:
			return true
		case p == capability:
			return true
		case strings.HasSuffix(p, ".*"):
			if strings.HasPrefix(capability, strings.TrimSuffix(p, "*")) {
				return true
			}
		}
	}
	return false
}
