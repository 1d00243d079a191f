package catalog

import "licensegate/internal/types"

// CapabilityRequirement gates one operation behind a capability. MinimumTier
// is the lowest tier that includes it and is what a denial recommends.
type CapabilityRequirement struct {
	Operation   string
	Capability  string
	MinimumTier types.PlanCode
}

// CapabilityMap resolves operation identifiers to their requirement.
// Operations absent from the map are ungated.
type CapabilityMap struct {
	reqs map[string]CapabilityRequirement
}

var defaultRequirements = []CapabilityRequirement{
	{"/api/analytics/kpis/business", "dashboard.business", types.PlanStarter},
	{"/api/analytics/forecast/sales", "analytics.advanced", types.PlanProfessional},
	{"/api/analytics/churn-prediction", "analytics.advanced", types.PlanProfessional},
	{"/api/analytics/lead-scoring", "analytics.advanced", types.PlanProfessional},
	{"/api/analytics/ai-insights", "analytics.advanced", types.PlanProfessional},

	{"/api/reports/templates", "reports.basic", types.PlanFree},
	{"/api/reports/preview", "reports.advanced", types.PlanStarter},
	{"/api/reports/[reportId]/execute", "reports.advanced", types.PlanStarter},
	{"/api/reports/export/[format]", "reports.custom", types.PlanProfessional},

	{"/api/crm/pipeline", "crm.basic", types.PlanStarter},
	{"/api/crm/deals/[dealId]/stage", "crm.automation", types.PlanProfessional},

	{"/api/finance/invoices", "finance.basic", types.PlanStarter},
	{"/api/finance/budgets", "finance.advanced", types.PlanProfessional},
	{"/api/finance/journal-entries", "finance.advanced", types.PlanProfessional},

	{"/api/workflows", "workflows.basic", types.PlanProfessional},
	{"/api/workflows/[id]/execute", "workflows.basic", types.PlanProfessional},

	{"/api/grc/controls", "grc.basic", types.PlanProfessional},
	{"/api/grc/tests/[id]/execute", "grc.advanced", types.PlanEnterprise},

	{"/api/hr/payroll", "hr.payroll", types.PlanProfessional},

	{"/api/ai-agents", "ai.agents", types.PlanEnterprise},
	{"/api/agents/self-healing", "ai.self-healing", types.PlanEnterprise},
}

// DefaultCapabilityMap returns the built-in operation table.
func DefaultCapabilityMap() *CapabilityMap {
	return NewCapabilityMap(defaultRequirements)
}

// NewCapabilityMap indexes reqs by operation. A later duplicate replaces an
// earlier one.
func NewCapabilityMap(reqs []CapabilityRequirement) *CapabilityMap {
	m := make(map[string]CapabilityRequirement, len(reqs))
	for _, r := range reqs {
		m[r.Operation] = r
	}
	return &CapabilityMap{reqs: m}
}

// Requirement returns the requirement for operation, if any.
func (m *CapabilityMap) Requirement(operation string) (CapabilityRequirement, bool) {
	r, ok := m.reqs[operation]
	return r, ok
}

