package model

import "math/rand"

// Synthetic is a stand-in model whose inputs are pre-filled with
// deterministic pseudo-random bytes. It is the default collaborator when no
// real inference engine is wired in: the timing signals and the ingestion
// protocol behave exactly as they would around a real model.
type Synthetic struct {
	inputs []*Tensor
}

// NewSynthetic creates a synthetic model with one uint8 input tensor per
// given byte size. The same sizes always produce the same input bytes.
func NewSynthetic(sizes ...int) *Synthetic {
	rnd := rand.New(rand.NewSource(1))

	m := &Synthetic{inputs: make([]*Tensor, len(sizes))}
	for i, size := range sizes {
		data := make([]byte, size)
		rnd.Read(data)
		m.inputs[i] = &Tensor{Data: data, Type: TypeUInt8}
	}
	return m
}

func (m *Synthetic) NumInputs() int {
	return len(m.inputs)
}

func (m *Synthetic) Input(i int) *Tensor {
	if i < 0 || i >= len(m.inputs) {
		return nil
	}
	return m.inputs[i]
}

// Invoke always succeeds; there is no computation behind it.
func (m *Synthetic) Invoke() bool {
	return true
}
