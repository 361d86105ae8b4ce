// Package analyzer decides whether routing analysis is available for a
// request and which backend should execute it.
package analyzer

import (
	"sync/atomic"

	berrors "git.home.luguber.info/inful/graphbridge/internal/errors"
	"git.home.luguber.info/inful/graphbridge/internal/graph"
)

// Mode designates which backend executes an eligible request. It is an open
// enumeration: future rollout modes may route execution to the legalization
// backend without changing the dispatcher's phase accounting.
type Mode string

const (
	// ModeLegacyExecute routes execution to the legacy backend. This is the
	// only mode the current rollout configuration produces.
	ModeLegacyExecute Mode = "legacy_execute"

	// ModeLegalizeExecute routes execution to the legalization backend.
	// Reserved for future rollout stages.
	ModeLegalizeExecute Mode = "legalize_execute"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeLegacyExecute || m == ModeLegalizeExecute
}

// Analyzer reports eligibility for a request. When the graph-analysis
// subsystem is unavailable it returns the ErrGraphAnalysisUnavailable
// sentinel; callers must treat that as a no-op condition, not a failure to
// account for.
type Analyzer interface {
	Analyze(req *graph.CompilationRequest) (Mode, error)
}

// RolloutAnalyzer is the production Analyzer. It consults a platform
// capability (is graph analysis available) and a rollout-configuration value.
// Both are swappable at runtime so a config reload takes effect without
// restarting in-flight dispatchers.
type RolloutAnalyzer struct {
	available atomic.Bool
	mode      atomic.Value // Mode
}

// NewRolloutAnalyzer creates an analyzer with the given initial state.
func NewRolloutAnalyzer(available bool, mode Mode) *RolloutAnalyzer {
	a := &RolloutAnalyzer{}
	a.available.Store(available)
	if !mode.Valid() {
		mode = ModeLegacyExecute
	}
	a.mode.Store(mode)
	return a
}

// Analyze returns the rollout mode for the request. The current rollout
// always designates the legacy backend independent of graph content;
// routing-by-content is an extension point, not exercised here.
func (a *RolloutAnalyzer) Analyze(_ *graph.CompilationRequest) (Mode, error) {
	if !a.available.Load() {
		return "", berrors.ErrGraphAnalysisUnavailable
	}
	return a.mode.Load().(Mode), nil
}

// SetAvailable flips the platform capability, e.g. from a config reload.
func (a *RolloutAnalyzer) SetAvailable(available bool) {
	a.available.Store(available)
}

// SetMode updates the rollout mode. Invalid modes are ignored.
func (a *RolloutAnalyzer) SetMode(mode Mode) {
	if mode.Valid() {
		a.mode.Store(mode)
	}
}

// Available reports the current capability state.
func (a *RolloutAnalyzer) Available() bool { return a.available.Load() }

// Mode reports the current rollout mode.
func (a *RolloutAnalyzer) Mode() Mode { return a.mode.Load().(Mode) }
