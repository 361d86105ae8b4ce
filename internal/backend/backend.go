// Package backend defines the lowering backend contracts and the adapters
// over the external collaborators that implement them.
package backend

import (
	"context"

	"git.home.luguber.info/inful/graphbridge/internal/graph"
)

// Backend produces a compiled artifact for a request, or an error. The
// transformation passes behind it are opaque to this module.
type Backend interface {
	Name() string
	Compile(ctx context.Context, req *graph.CompilationRequest) (*graph.Artifact, error)
}

// ConstructIssue records one graph construct a survey flagged as unsupported.
type ConstructIssue struct {
	Construct string `json:"construct"`
	Category  string `json:"category"`
	Detail    string `json:"detail,omitempty"`
}

// SurveyReport is the outcome of an analysis-only pass over a request.
// Flagged constructs are information, not failure: a report with entries is
// still a completed survey.
type SurveyReport struct {
	Flagged []ConstructIssue `json:"flagged,omitempty"`
}

// Legalizer extends Backend with the analysis-only survey used for decision
// bookkeeping. Survey never attempts a lowering, so it must not move the
// per-construct attempt counters.
type Legalizer interface {
	Backend
	Survey(ctx context.Context, req *graph.CompilationRequest) (*SurveyReport, error)
}
