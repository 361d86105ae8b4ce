package backend

import (
	"context"

	berrors "git.home.luguber.info/inful/graphbridge/internal/errors"
	"git.home.luguber.info/inful/graphbridge/internal/graph"
	"git.home.luguber.info/inful/graphbridge/internal/metrics"
)

// LegalizationBackendName identifies the graph-legalization backend.
const LegalizationBackendName = "legalization"

// SurveyFunc is the external collaborator for the analysis-only pass.
type SurveyFunc func(ctx context.Context, req *graph.CompilationRequest) (*SurveyReport, error)

// LowerFunc is the external collaborator for a full legalization lowering.
type LowerFunc func(ctx context.Context, req *graph.CompilationRequest) (*graph.Artifact, error)

// LegalizationBackend adapts the external legalization collaborators to the
// Legalizer contract. When it executes a lowering and fails on a construct,
// it records the per-construct attempt failure; the survey path never does.
type LegalizationBackend struct {
	survey SurveyFunc
	lower  LowerFunc
	reg    metrics.Registry
}

// NewLegalizationBackend wires the collaborators. reg may be nil.
func NewLegalizationBackend(survey SurveyFunc, lower LowerFunc, reg metrics.Registry) *LegalizationBackend {
	if reg == nil {
		reg = metrics.NoopRegistry{}
	}
	return &LegalizationBackend{survey: survey, lower: lower, reg: reg}
}

// Name implements Backend.
func (b *LegalizationBackend) Name() string { return LegalizationBackendName }

// Survey runs the analysis-only pass. No lowering is attempted here.
func (b *LegalizationBackend) Survey(ctx context.Context, req *graph.CompilationRequest) (*SurveyReport, error) {
	return b.survey(ctx, req)
}

// Compile runs a full lowering. A per-construct failure is counted against
// the attempt metric before the error is returned verbatim.
func (b *LegalizationBackend) Compile(ctx context.Context, req *graph.CompilationRequest) (*graph.Artifact, error) {
	artifact, err := b.lower(ctx, req)
	if err != nil {
		if construct := berrors.ConstructOf(err); construct != "" {
			b.reg.Inc(metrics.MetricLegalizeFailures, construct)
		}
		return nil, err
	}
	return artifact, nil
}
