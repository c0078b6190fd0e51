package extract

import (
	"github.com/flowpulse/flowpulse/agent/internal/resolve"
	"github.com/flowpulse/flowpulse/agent/internal/status"
	"github.com/flowpulse/flowpulse/pkg/types"
)

// N8NProfile reads the n8n workflow list and the cloud usage banner.
// n8n marks its test hooks with data-test-id rather than data-testid.
func N8NProfile() Profile {
	return Profile{
		Platform: types.PlatformN8N,

		UsageRatio: resolve.Chain{
			resolve.CSS("testid-executions-usage", `[data-test-id="usage-executions"], [data-test-id="execution-usage"]`),
			resolve.CSS("aria-executions", `[aria-label*="xecutions"]`).WithAttr("aria-label"),
			resolve.CSS("class-usage-banner", `.usage-banner, .executions-usage`),
			resolve.XPath("xpath-usage-block", `//*[contains(@class,"usage")][contains(normalize-space(.)," of ") or contains(.,"/")]`),
			resolve.Text("text-executions-ratio", `(?i)(\d[\d.,' ]*[kKM]?\s*(?:of|/)\s*\d[\d.,' ]*[kKM]?)\s*(?:production\s+)?executions`),
			resolve.Near("near-executions", "Executions"),
		},
		UsageCount: resolve.Chain{
			resolve.CSS("testid-executions-used", `[data-test-id="executions-used"]`),
			resolve.Near("near-executions-used", "Executions used"),
		},
		UsageLimit: resolve.Chain{
			resolve.CSS("testid-executions-limit", `[data-test-id="executions-limit"]`),
			resolve.Near("near-executions-limit", "Executions limit"),
		},

		Rows: resolve.Chain{
			resolve.CSS("testid-resource-item", `[data-test-id="resources-list-item"], [data-test-id="workflow-card"]`),
			resolve.CSS("attr-workflow-id", `[data-workflow-id]`),
			resolve.CSS("class-workflow-card", `.workflow-card, .workflow-list-item`),
			resolve.XPath("xpath-workflow-link-card", `//*[contains(@class,"card")][.//a[contains(@href,"/workflow/")]]`),
		},
		Total: resolve.Chain{
			resolve.CSS("testid-resources-count", `[data-test-id="resources-list-count"]`),
			resolve.Text("text-workflow-count", `(?i)(\d[\d,]*)\s+workflows?\b`),
		},
		Empty: resolve.Chain{
			resolve.CSS("testid-empty-list", `[data-test-id="empty-resources-list"], [data-test-id="list-empty-state"]`),
			resolve.Text("text-empty-state", `(?i)create your first workflow`),
		},

		Errors: status.Category{
			Name:     "error",
			Synonyms: []string{"error", "errored", "failed", "crashed"},
		},
		Paused: status.Category{
			Name:     "inactive",
			Synonyms: []string{"inactive", "deactivated", "disabled"},
			Binary:   true,
			Checked:  false,
		},
		Active: status.Category{
			Name:     "active",
			Synonyms: []string{"active", "activated"},
			Binary:   true,
			Checked:  true,
		},

		Team: resolve.Chain{
			resolve.CSS("testid-project-name", `[data-test-id="project-name"], [data-test-id="main-sidebar-project"]`),
			resolve.CSS("class-project-name", `.project-name`),
		},
		Plan: resolve.Chain{
			resolve.CSS("testid-plan-name", `[data-test-id="plan-name"]`),
			resolve.Text("text-plan", `(?i)\b(Starter|Pro|Power|Business|Enterprise|Community)\s+(?:plan|edition)\b`),
		},
	}
}
