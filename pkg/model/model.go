// Package model defines the inference collaborator consumed by the harness.
// The harness never interprets tensor contents; it only needs the input
// buffers to fill and a single entry point to invoke.
package model

import "fmt"

// ElemType tags the element type of a tensor for reporting purposes.
type ElemType int

const (
	TypeOther ElemType = iota
	TypeInt8
	TypeUInt8
	TypeInt16
	TypeFloat32
)

func (t ElemType) String() string {
	switch t {
	case TypeInt8:
		return "int8"
	case TypeUInt8:
		return "uint8"
	case TypeInt16:
		return "int16"
	case TypeFloat32:
		return "float32"
	}
	return fmt.Sprintf("other (%d)", int(t))
}

// Tensor is one model input buffer.
// Data is borrowed from the model and written in place by the ingestion
// channel; it is never retained.
type Tensor struct {
	Data []byte
	Type ElemType
}

// Model is the inference capability.
type Model interface {
	// NumInputs returns the number of input tensors.
	NumInputs() int

	// Input returns the input tensor at the given index, or nil when the
	// tensor handle is unavailable.
	Input(i int) *Tensor

	// Invoke runs one inference synchronously and reports success.
	Invoke() bool
}
