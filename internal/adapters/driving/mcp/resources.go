package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// uriScheme is the URI scheme of resources published by this server.
const uriScheme = "delivery://"

// PricingURI is the resource holding the model pricing table.
const PricingURI = uriScheme + "usage/pricing"

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         PricingURI,
		Name:        "pricing",
		Description: "USD price per million input and output tokens of each priced model",
		MIMEType:    "application/json",
	}, s.handlePricingResource)
}

// pricingEntry is one row of the pricing resource.
type pricingEntry struct {
	Model         string  `json:"model"`
	InputPerMTok  float64 `json:"input_per_mtok"`
	OutputPerMTok float64 `json:"output_per_mtok"`
}

// handlePricingResource returns the pricing table sorted by model.
func (s *Server) handlePricingResource(
	_ context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	models := s.ports.Pricing.Models()
	entries := make([]pricingEntry, len(models))
	for i, m := range models {
		p := s.ports.Pricing[m]
		entries[i] = pricingEntry{Model: m, InputPerMTok: p.InputPerMTok, OutputPerMTok: p.OutputPerMTok}
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling pricing: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}
