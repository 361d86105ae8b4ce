package graph

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const testModuleSource = `
  module attributes {tf.versions = {producer = 268 : i32}} {
  func.func @main(%arg0 : tensor<1xf32>) -> tensor<1xf32> {
    %0 = "tf.Acos"(%arg0) : (tensor<1xf32>) -> tensor<1xf32>
   func.return %0 : tensor<1xf32>
  }
}`

func testMetadata() Metadata {
	return Metadata{
		Args: []ArgumentRecord{
			{DataType: "DT_FLOAT", Role: RoleParameter},
			{DataType: "DT_FLOAT", Role: RoleRetval},
		},
		UseTupleArgs: true,
		DeviceType:   "XLA_TPU_JIT",
	}
}

func TestNewCompilationRequest(t *testing.T) {
	req, err := NewCompilationRequest(testModuleSource, []ArgumentShape{{1}}, testMetadata())
	require.NoError(t, err)
	require.NotEmpty(t, req.ID())
	require.Equal(t, testModuleSource, req.Source())
	require.Equal(t, []ArgumentShape{{1}}, req.ArgShapes())
	require.Equal(t, "XLA_TPU_JIT", req.Metadata().DeviceType)
	require.True(t, req.Metadata().UseTupleArgs)
}

func TestNewCompilationRequestValidation(t *testing.T) {
	cases := []struct {
		name   string
		source string
		md     Metadata
	}{
		{"empty source", "   ", testMetadata()},
		{"missing device type", testModuleSource, Metadata{Args: testMetadata().Args}},
		{"bad role", testModuleSource, Metadata{
			Args:       []ArgumentRecord{{DataType: "DT_FLOAT", Role: "OUTPUT"}},
			DeviceType: "XLA_TPU_JIT",
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewCompilationRequest(tc.source, nil, tc.md)
			require.Error(t, err)
		})
	}
}

func TestRequestIsolation(t *testing.T) {
	shapes := []ArgumentShape{{2, 3}}
	md := testMetadata()
	req, err := NewCompilationRequest(testModuleSource, shapes, md)
	require.NoError(t, err)

	// Mutating the inputs or the returned copies must not leak into the request.
	shapes[0][0] = 99
	md.Args[0].DataType = "DT_INT32"
	got := req.ArgShapes()
	got[0][1] = 77

	require.Equal(t, []ArgumentShape{{2, 3}}, req.ArgShapes())
	require.Equal(t, "DT_FLOAT", req.Metadata().Args[0].DataType)
}

func TestRequestIDsAreUnique(t *testing.T) {
	a, err := NewCompilationRequest(testModuleSource, nil, testMetadata())
	require.NoError(t, err)
	b, err := NewCompilationRequest(testModuleSource, nil, testMetadata())
	require.NoError(t, err)
	require.NotEqual(t, a.ID(), b.ID())
}
