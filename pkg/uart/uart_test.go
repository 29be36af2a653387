package uart

import (
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type timeoutErr struct{}

func (timeoutErr) Error() string { return "i/o timeout" }
func (timeoutErr) Timeout() bool { return true }

func TestErrorKindString(t *testing.T) {
	require.Equal(t, "overflow", Overflow.String())
	require.Equal(t, "timeout", Timeout.String())
	require.Equal(t, "break", Break.String())
	require.Equal(t, "framing", Framing.String())
	require.Equal(t, "parity", Parity.String())
	require.Equal(t, "unknown", Unknown.String())
}

func TestTransportErrorMessage(t *testing.T) {
	e := &TransportError{Kind: Parity, Err: errors.New("bit flip")}
	require.Equal(t, "rx parity error: bit flip", e.Error())
	require.Equal(t, "rx overflow error", (&TransportError{Kind: Overflow}).Error())
}

func TestClassify(t *testing.T) {
	require.Nil(t, Classify(nil))

	require.Equal(t, Break, Classify(io.EOF).Kind)
	require.Equal(t, Break, Classify(io.ErrUnexpectedEOF).Kind)
	require.Equal(t, Timeout, Classify(timeoutErr{}).Kind)
	require.Equal(t, Unknown, Classify(errors.New("boom")).Kind)
}

func TestClassifyPassesThroughClassified(t *testing.T) {
	te := &TransportError{Kind: Framing, Err: errors.New("stop bit")}
	require.True(t, Classify(te) == te)
}

// scriptedDevice replays the read results a serial device would produce.
// A nil step byte slice with a nil error models an expired read deadline
// surfacing as (0, io.EOF), the way termios VMIN=0/VTIME reads come back
// through os.File.
type scriptedDevice struct {
	steps []deviceStep
}

type deviceStep struct {
	data []byte
	err  error
}

func (d *scriptedDevice) Read(p []byte) (int, error) {
	if len(d.steps) == 0 {
		return 0, io.EOF
	}
	s := d.steps[0]
	d.steps = d.steps[1:]
	if s.data == nil && s.err == nil {
		return 0, io.EOF
	}
	return copy(p, s.data), s.err
}

func (d *scriptedDevice) Write(p []byte) (int, error) { return len(p), nil }
func (d *scriptedDevice) Close() error                { return nil }

func newTestPort(d *scriptedDevice) *Port {
	return &Port{s: d, readTimeout: time.Millisecond, idleLimit: 5}
}

func TestReadCharOutwaitsDeadlineExpiry(t *testing.T) {
	// three expired deadlines before the operator types
	d := &scriptedDevice{steps: []deviceStep{
		{}, {}, {},
		{data: []byte{'y'}},
	}}

	c, err := newTestPort(d).ReadChar()
	require.NoError(t, err)
	require.Equal(t, byte('y'), c)
	require.Empty(t, d.steps)
}

func TestReadCharGenuineError(t *testing.T) {
	d := &scriptedDevice{steps: []deviceStep{
		{}, {err: errors.New("input/output error")},
	}}

	_, err := newTestPort(d).ReadChar()
	require.Error(t, err)

	te, ok := err.(*TransportError)
	require.True(t, ok)
	require.Equal(t, Unknown, te.Kind)
}

func TestReadBulkTimesOutAfterIdleBudget(t *testing.T) {
	// one partial delivery, then nothing but expired deadlines
	d := &scriptedDevice{steps: []deviceStep{
		{data: []byte{1, 2, 3, 4, 5}},
	}}

	buf := make([]byte, 16)
	n, err := newTestPort(d).ReadBulk(buf)
	require.Equal(t, 5, n)
	require.Error(t, err)

	te, ok := err.(*TransportError)
	require.True(t, ok)
	require.Equal(t, Timeout, te.Kind)
	require.Equal(t, []byte{1, 2, 3, 4, 5}, buf[:5])
}

func TestReadBulkDeadlineExpiryResetsOnData(t *testing.T) {
	// data trickling in between expired deadlines must never time out
	d := &scriptedDevice{steps: []deviceStep{
		{}, {}, {}, {},
		{data: []byte{1, 2}},
		{}, {}, {}, {},
		{data: []byte{3, 4}},
	}}

	buf := make([]byte, 4)
	n, err := newTestPort(d).ReadBulk(buf)
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.Equal(t, []byte{1, 2, 3, 4}, buf)
}

func TestReadBulkGenuineErrorAborts(t *testing.T) {
	d := &scriptedDevice{steps: []deviceStep{
		{data: []byte{1, 2}},
		{err: timeoutErr{}},
	}}

	buf := make([]byte, 8)
	n, err := newTestPort(d).ReadBulk(buf)
	require.Equal(t, 2, n)

	te, ok := err.(*TransportError)
	require.True(t, ok)
	require.Equal(t, Timeout, te.Kind)
}

func TestTransportErrorUnwrap(t *testing.T) {
	inner := fmt.Errorf("device gone")
	te := &TransportError{Kind: Break, Err: inner}
	require.True(t, errors.Is(te, inner))
}
