// Package graph defines the compilation request and artifact types exchanged
// between the dispatcher and the lowering backends.
package graph

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Role designates how an argument record participates in the computation.
type Role string

const (
	RoleParameter Role = "PARAMETER"
	RoleRetval    Role = "RETVAL"
)

// ArgumentShape is an ordered list of dimension sizes for one argument.
type ArgumentShape []int64

// ArgumentRecord describes one argument in the compilation metadata.
type ArgumentRecord struct {
	DataType string `json:"data_type"`
	Role     Role   `json:"role"`
}

// Metadata carries the per-request compilation descriptor.
type Metadata struct {
	Args         []ArgumentRecord `json:"args"`
	UseTupleArgs bool             `json:"use_tuple_args"`
	DeviceType   string           `json:"device_type"`
}

// CompilationRequest is an immutable request for lowering one computation
// graph. It is owned solely by the call that created it; nothing in this
// module mutates a request after construction.
type CompilationRequest struct {
	id        string
	source    string
	argShapes []ArgumentShape
	metadata  Metadata
}

// NewCompilationRequest validates and constructs a request. The graph source
// is treated as an opaque token stream; only the metadata is validated here.
func NewCompilationRequest(source string, argShapes []ArgumentShape, md Metadata) (*CompilationRequest, error) {
	if strings.TrimSpace(source) == "" {
		return nil, fmt.Errorf("graph source is empty")
	}
	if strings.TrimSpace(md.DeviceType) == "" {
		return nil, fmt.Errorf("device type is required")
	}
	for i, arg := range md.Args {
		switch arg.Role {
		case RoleParameter, RoleRetval:
		default:
			return nil, fmt.Errorf("argument %d: unknown role %q", i, arg.Role)
		}
	}

	shapes := make([]ArgumentShape, len(argShapes))
	for i, s := range argShapes {
		shapes[i] = append(ArgumentShape(nil), s...)
	}
	args := append([]ArgumentRecord(nil), md.Args...)

	return &CompilationRequest{
		id:        uuid.NewString(),
		source:    source,
		argShapes: shapes,
		metadata: Metadata{
			Args:         args,
			UseTupleArgs: md.UseTupleArgs,
			DeviceType:   md.DeviceType,
		},
	}, nil
}

// ID returns the generated request identifier.
func (r *CompilationRequest) ID() string { return r.id }

// Source returns the opaque graph source text.
func (r *CompilationRequest) Source() string { return r.source }

// ArgShapes returns a copy of the ordered argument shape descriptors.
func (r *CompilationRequest) ArgShapes() []ArgumentShape {
	shapes := make([]ArgumentShape, len(r.argShapes))
	for i, s := range r.argShapes {
		shapes[i] = append(ArgumentShape(nil), s...)
	}
	return shapes
}

// Metadata returns a copy of the compilation metadata.
func (r *CompilationRequest) Metadata() Metadata {
	return Metadata{
		Args:         append([]ArgumentRecord(nil), r.metadata.Args...),
		UseTupleArgs: r.metadata.UseTupleArgs,
		DeviceType:   r.metadata.DeviceType,
	}
}

// Artifact is the opaque handle to a compiled program produced by a backend.
type Artifact struct {
	ID        string `json:"id"`
	Backend   string `json:"backend"`
	RequestID string `json:"request_id"`
	Payload   []byte `json:"payload,omitempty"`
}
