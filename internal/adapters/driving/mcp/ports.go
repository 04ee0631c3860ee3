package mcp

import (
	"github.com/gkabbz/github-delivery-visibility/internal/core/domain"
	"github.com/gkabbz/github-delivery-visibility/internal/core/ports/driving"
)

// Ports aggregates the driving ports and settings the MCP server needs.
type Ports struct {
	// Ask answers questions. Required.
	Ask driving.AskService

	// Plan shows the plan for a question. The plan tool is only
	// registered when it is set.
	Plan driving.PlanService

	// Reports backs the digest and trends tools. Optional.
	Reports driving.ReportService

	// ReviewQueue backs the review_queue tool. Optional, since it needs
	// a GitHub token.
	ReviewQueue driving.ReviewQueueService

	// Pricing is published as a resource.
	Pricing domain.PricingTable

	// Repository is the default owner/repo scope for tools called
	// without one.
	Repository string

	// Reviewer is the default GitHub login for review_queue.
	Reviewer string
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Ask == nil {
		return ErrMissingAskService
	}
	return nil
}
