package extract

import (
	"github.com/flowpulse/flowpulse/agent/internal/resolve"
	"github.com/flowpulse/flowpulse/agent/internal/status"
	"github.com/flowpulse/flowpulse/pkg/types"
)

// MakeProfile reads the Make scenario list and organization dashboard.
// Operations are Make's usage unit; a scenario switched off is "paused".
func MakeProfile() Profile {
	return Profile{
		Platform: types.PlatformMake,

		UsageRatio: resolve.Chain{
			resolve.CSS("testid-operations-usage", `[data-testid="operations-usage"]`),
			resolve.CSS("testid-org-operations", `[data-testid="organization-operations"]`),
			resolve.CSS("aria-operations", `[aria-label*="perations"]`).WithAttr("aria-label"),
			resolve.CSS("class-operations-usage", `.operations-usage, .usage-operations, .imt-usage`),
			resolve.XPath("xpath-usage-block", `//*[contains(@class,"usage")][contains(normalize-space(.)," of ") or contains(.,"/")]`),
			resolve.Text("text-operations-ratio", `(?i)(\d[\d.,' ]*[kKM]?\s*(?:of|/)\s*\d[\d.,' ]*[kKM]?)\s*operations`),
			resolve.Near("near-operations", "Operations"),
		},
		UsageCount: resolve.Chain{
			resolve.CSS("testid-operations-used", `[data-testid="operations-used"]`),
			resolve.Near("near-operations-used", "Operations used"),
		},
		UsageLimit: resolve.Chain{
			resolve.CSS("testid-operations-limit", `[data-testid="operations-limit"]`),
			resolve.Near("near-operations-limit", "Operations limit"),
		},

		Rows: resolve.Chain{
			resolve.CSS("testid-scenario-item", `[data-testid="scenario-list-item"], [data-testid="scenario-row"]`),
			resolve.CSS("aria-scenario-row", `[role="row"][data-scenario-id], [role="listitem"][data-scenario-id]`),
			resolve.CSS("class-scenario-item", `.scenario-list-item, .scenario-item, .scenario-row`),
			resolve.XPath("xpath-scenario-link-row", `//tr[.//a[contains(@href,"/scenarios/")]]`),
		},
		Total: resolve.Chain{
			resolve.CSS("testid-scenario-count", `[data-testid="scenarios-count"]`),
			resolve.Text("text-scenario-count", `(?i)(\d[\d,]*)\s+scenarios?\b`),
		},
		Empty: resolve.Chain{
			resolve.CSS("testid-empty-state", `[data-testid="scenarios-empty-state"]`),
			resolve.Text("text-empty-state", `(?i)you (?:don't|do not) have any scenarios`),
		},

		Errors: status.Category{
			Name:     "error",
			Synonyms: []string{"error", "errors", "failed", "failure", "invalid", "warning"},
		},
		Paused: status.Category{
			Name:     "paused",
			Synonyms: []string{"paused", "inactive", "stopped", "disabled"},
			Binary:   true,
			Checked:  false,
		},
		Active: status.Category{
			Name:     "active",
			Synonyms: []string{"active", "running", "enabled"},
			Binary:   true,
			Checked:  true,
		},

		Team: resolve.Chain{
			resolve.CSS("testid-team-name", `[data-testid="team-name"], [data-testid="organization-name"]`),
			resolve.CSS("class-team-switcher", `.team-switcher .name, .organization-switcher .name`),
			resolve.Text("text-team", `Team:\s*([\p{L}\d][\p{L}\d&'. -]{0,40})`),
		},
		Plan: resolve.Chain{
			resolve.CSS("testid-plan-name", `[data-testid="plan-name"]`),
			resolve.CSS("class-plan-badge", `.plan-badge, .plan-name`),
			resolve.Text("text-plan", `(?i)\b(Free|Core|Pro|Teams|Enterprise)\s+plan\b`),
		},
	}
}
