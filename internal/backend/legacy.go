package backend

import (
	"context"

	"git.home.luguber.info/inful/graphbridge/internal/graph"
)

// LegacyBackendName identifies the fallback execution path.
const LegacyBackendName = "legacy"

// CompileFunc is the external collaborator for the legacy compiler.
type CompileFunc func(ctx context.Context, req *graph.CompilationRequest) (*graph.Artifact, error)

// LegacyBackend adapts the legacy compiler collaborator. It has no survey
// capability and no per-construct instrumentation of its own.
type LegacyBackend struct {
	compile CompileFunc
}

// NewLegacyBackend wires the collaborator.
func NewLegacyBackend(compile CompileFunc) *LegacyBackend {
	return &LegacyBackend{compile: compile}
}

// Name implements Backend.
func (b *LegacyBackend) Name() string { return LegacyBackendName }

// Compile implements Backend. The collaborator's result is returned verbatim.
func (b *LegacyBackend) Compile(ctx context.Context, req *graph.CompilationRequest) (*graph.Artifact, error) {
	return b.compile(ctx, req)
}
