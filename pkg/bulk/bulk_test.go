package bulk

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"inftrace/pkg/model"
	"inftrace/pkg/uart"
)

// scriptTransport serves a deterministic byte pattern and can fail a
// selected bulk request with a classified error.
type scriptTransport struct {
	requests []int

	// failAt is the 1-based request index to fail, 0 never fails.
	failAt  int
	failErr *uart.TransportError
	// partial is the number of bytes delivered by the failing request.
	partial int

	next byte
}

func (s *scriptTransport) ReadChar() (byte, error) {
	return 0, nil
}

func (s *scriptTransport) ReadBulk(p []byte) (int, error) {
	s.requests = append(s.requests, len(p))

	if s.failAt > 0 && len(s.requests) == s.failAt {
		for i := 0; i < s.partial && i < len(p); i++ {
			p[i] = s.next
			s.next++
		}
		return s.partial, s.failErr
	}

	for i := range p {
		p[i] = s.next
		s.next++
	}
	return len(p), nil
}

func (s *scriptTransport) Close() error {
	return nil
}

// fakeModel exposes a fixed set of input tensors.
type fakeModel struct {
	inputs []*model.Tensor
	result bool
}

func (m *fakeModel) NumInputs() int { return len(m.inputs) }

func (m *fakeModel) Input(i int) *model.Tensor {
	if i < 0 || i >= len(m.inputs) {
		return nil
	}
	return m.inputs[i]
}

func (m *fakeModel) Invoke() bool { return m.result }

func TestFillChunking(t *testing.T) {
	tr := &scriptTransport{}
	var progress []Progress
	c := New(tr, 4096, func(p Progress) { progress = append(progress, p) })

	dst := make([]byte, 10000)
	require.NoError(t, c.Fill(dst))

	require.Equal(t, []int{4096, 4096, 1808}, tr.requests)
	require.Equal(t, []Progress{
		{Transferred: 4096, Total: 10000},
		{Transferred: 8192, Total: 10000},
		{Transferred: 10000, Total: 10000},
	}, progress)
	require.Equal(t, float64(100), progress[len(progress)-1].Percent())

	// the transport pattern must land in the destination unchanged
	require.Equal(t, byte(0), dst[0])
	require.Equal(t, byte(10000%256), dst[9999]+1)
}

func TestFillExactMultiple(t *testing.T) {
	tr := &scriptTransport{}
	c := New(tr, 4096, nil)

	require.NoError(t, c.Fill(make([]byte, 8192)))
	require.Equal(t, []int{4096, 4096}, tr.requests)
}

func TestFillAbortsOnTransportError(t *testing.T) {
	tr := &scriptTransport{
		failAt:  2,
		failErr: &uart.TransportError{Kind: uart.Timeout},
		partial: 100,
	}
	c := New(tr, 4096, nil)

	dst := make([]byte, 8192)
	for i := range dst {
		dst[i] = 0xee
	}

	err := c.Fill(dst)
	require.Error(t, err)

	var fe *FillError
	require.True(t, errors.As(err, &fe))
	require.Equal(t, 4096, fe.Transferred)
	require.Equal(t, 8192, fe.Total)

	var te *uart.TransportError
	require.True(t, errors.As(err, &te))
	require.Equal(t, uart.Timeout, te.Kind)

	// no further chunks after the failure
	require.Equal(t, []int{4096, 4096}, tr.requests)

	// the tail beyond the partial failing chunk keeps its old contents
	require.Equal(t, bytes.Repeat([]byte{0xee}, 8192-4096-100), dst[4096+100:])
}

func TestDefaultChunkSize(t *testing.T) {
	tr := &scriptTransport{}
	c := New(tr, 0, nil)

	require.NoError(t, c.Fill(make([]byte, DefaultChunkSize+1)))
	require.Equal(t, []int{DefaultChunkSize, 1}, tr.requests)
}

func TestLoadInputsSkipsInvalidTensors(t *testing.T) {
	tr := &scriptTransport{}
	c := New(tr, 4096, nil)

	m := &fakeModel{inputs: []*model.Tensor{
		nil,
		{Data: []byte{}, Type: model.TypeUInt8},
		{Data: make([]byte, 100), Type: model.TypeInt8},
	}}

	loaded, err := c.LoadInputs(m)
	require.NoError(t, err)
	require.Equal(t, 100, loaded)
	require.Equal(t, []int{100}, tr.requests)
}

func TestLoadInputsStopsOnFirstError(t *testing.T) {
	tr := &scriptTransport{
		failAt:  2,
		failErr: &uart.TransportError{Kind: uart.Framing},
	}
	c := New(tr, 4096, nil)

	m := &fakeModel{inputs: []*model.Tensor{
		{Data: make([]byte, 4096), Type: model.TypeUInt8},
		{Data: make([]byte, 4096), Type: model.TypeUInt8},
		{Data: make([]byte, 4096), Type: model.TypeUInt8},
	}}

	loaded, err := c.LoadInputs(m)
	require.Error(t, err)

	var te *uart.TransportError
	require.True(t, errors.As(err, &te))
	require.Equal(t, uart.Framing, te.Kind)

	// first tensor completed, second aborted, third never requested
	require.Equal(t, 4096, loaded)
	require.Equal(t, []int{4096, 4096}, tr.requests)
}

func TestConsoleProgress(t *testing.T) {
	var buf bytes.Buffer
	p := ConsoleProgress(&buf)

	p(Progress{Transferred: 4096, Total: 8192})
	require.Contains(t, buf.String(), "4096 / 8192 bytes (50.0%)\r")

	buf.Reset()
	p(Progress{Transferred: 8192, Total: 8192})
	require.Contains(t, buf.String(), "8192 / 8192 bytes (100.0%)\n")
}
