package backend

import (
	"context"
	"fmt"
	"regexp"

	"github.com/google/uuid"

	berrors "git.home.luguber.info/inful/graphbridge/internal/errors"
	"git.home.luguber.info/inful/graphbridge/internal/graph"
)

// constructPattern matches quoted construct invocations such as
// "tf.Acos"(%arg0) in the opaque graph source.
var constructPattern = regexp.MustCompile(`"([A-Za-z_][A-Za-z0-9_]*\.[A-Za-z0-9_]+)"\s*\(`)

// RuleSet is a table-driven stand-in for the external lowering collaborators:
// it scans the graph source for construct tokens and accepts only those in
// its supported table. The host builds one from configuration and derives
// both backends' collaborator funcs from it.
type RuleSet struct {
	name      string
	supported map[string]struct{}
}

// NewRuleSet creates a rule set for the named backend.
func NewRuleSet(name string, constructs []string) *RuleSet {
	supported := make(map[string]struct{}, len(constructs))
	for _, c := range constructs {
		supported[c] = struct{}{}
	}
	return &RuleSet{name: name, supported: supported}
}

// Constructs returns the ordered, de-duplicated construct tokens in source.
func (rs *RuleSet) Constructs(source string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, m := range constructPattern.FindAllStringSubmatch(source, -1) {
		c := m[1]
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// Supports reports whether the table contains the construct.
func (rs *RuleSet) Supports(construct string) bool {
	_, ok := rs.supported[construct]
	return ok
}

// Survey is the analysis-only collaborator: it flags unsupported constructs
// without attempting any lowering. A source with no recognizable constructs
// cannot even be analyzed and is an internal error.
func (rs *RuleSet) Survey(_ context.Context, req *graph.CompilationRequest) (*SurveyReport, error) {
	constructs := rs.Constructs(req.Source())
	if len(constructs) == 0 {
		return nil, berrors.Internal("no constructs recognized in graph source", nil)
	}

	report := &SurveyReport{}
	for _, c := range constructs {
		if !rs.Supports(c) {
			report.Flagged = append(report.Flagged, ConstructIssue{
				Construct: c,
				Category:  berrors.CategoryUnknown,
				Detail:    fmt.Sprintf("no %s lowering registered", rs.name),
			})
		}
	}
	return report, nil
}

// Compile is the execution collaborator: it fails on the first unsupported
// construct and otherwise produces an opaque artifact.
func (rs *RuleSet) Compile(_ context.Context, req *graph.CompilationRequest) (*graph.Artifact, error) {
	constructs := rs.Constructs(req.Source())
	if len(constructs) == 0 {
		return nil, berrors.Internal("no constructs recognized in graph source", nil)
	}
	for _, c := range constructs {
		if !rs.Supports(c) {
			return nil, berrors.Unsupported(c, berrors.CategoryUnknown,
				fmt.Sprintf("%s backend cannot lower construct", rs.name))
		}
	}
	return &graph.Artifact{
		ID:        uuid.NewString(),
		Backend:   rs.name,
		RequestID: req.ID(),
	}, nil
}
