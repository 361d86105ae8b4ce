package backend

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	berrors "git.home.luguber.info/inful/graphbridge/internal/errors"
)

const twoOpSource = `
  module {
  func.func @main(%arg0 : tensor<1xf32>) -> tensor<1xf32> {
    %0 = "tf.Acos"(%arg0) : (tensor<1xf32>) -> tensor<1xf32>
    %1 = "tf.DoesntExist"(%0) : (tensor<1xf32>) -> tensor<1xf32>
    %2 = "tf.Acos"(%1) : (tensor<1xf32>) -> tensor<1xf32>
   func.return %2 : tensor<1xf32>
  }
}`

func TestConstructsScansOrderedUnique(t *testing.T) {
	rs := NewRuleSet(LegacyBackendName, nil)
	require.Equal(t, []string{"tf.Acos", "tf.DoesntExist"}, rs.Constructs(twoOpSource))
	require.Empty(t, rs.Constructs("not a module at all"))
}

func TestSurveyFlagsOnlyUnsupported(t *testing.T) {
	rs := NewRuleSet(LegalizationBackendName, []string{"tf.Acos"})

	report, err := rs.Survey(context.Background(), newRequest(t, twoOpSource))
	require.NoError(t, err)
	require.Len(t, report.Flagged, 1)
	require.Equal(t, "tf.DoesntExist", report.Flagged[0].Construct)
	require.Equal(t, berrors.CategoryUnknown, report.Flagged[0].Category)
}

func TestSurveyInternalErrorOnUnreadableSource(t *testing.T) {
	rs := NewRuleSet(LegalizationBackendName, []string{"tf.Acos"})

	_, err := rs.Survey(context.Background(), newRequest(t, "completely opaque garbage"))
	require.Error(t, err)
	require.Equal(t, berrors.KindInternal, berrors.KindOf(err))
}

func TestRuleSetCompile(t *testing.T) {
	supported := NewRuleSet(LegacyBackendName, []string{"tf.Acos", "tf.DoesntExist"})
	artifact, err := supported.Compile(context.Background(), newRequest(t, twoOpSource))
	require.NoError(t, err)
	require.Equal(t, LegacyBackendName, artifact.Backend)
	require.NotEmpty(t, artifact.ID)

	partial := NewRuleSet(LegacyBackendName, []string{"tf.Acos"})
	_, err = partial.Compile(context.Background(), newRequest(t, twoOpSource))
	require.True(t, berrors.IsUnsupported(err))
	require.Equal(t, "tf.DoesntExist", berrors.ConstructOf(err))
}
