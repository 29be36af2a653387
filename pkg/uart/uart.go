// Package uart is the serial transport used for operator input and bulk
// tensor ingestion.
package uart

import (
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"
)

// ErrorKind classifies a transport failure.
type ErrorKind int

const (
	// Unknown is an unclassified transport failure.
	Unknown ErrorKind = iota
	// Overflow indicates the receive buffer overflowed.
	Overflow
	// Timeout indicates no data arrived within the receive timeout.
	Timeout
	// Break indicates a break condition on the line.
	Break
	// Framing indicates a framing error.
	Framing
	// Parity indicates a parity error.
	Parity
)

func (k ErrorKind) String() string {
	switch k {
	case Overflow:
		return "overflow"
	case Timeout:
		return "timeout"
	case Break:
		return "break"
	case Framing:
		return "framing"
	case Parity:
		return "parity"
	}
	return "unknown"
}

// TransportError reports a classified failure of the serial transport.
type TransportError struct {
	Kind ErrorKind
	Err  error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("rx %s error", e.Kind)
	}
	return fmt.Sprintf("rx %s error: %v", e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Transport is the character transport consumed by the harness.
type Transport interface {
	// ReadChar blocks until a single character is available.
	ReadChar() (byte, error)

	// ReadBulk blocks until p is completely filled or the transport fails.
	// It returns the number of bytes written to p; a short count is always
	// accompanied by a *TransportError.
	ReadBulk(p []byte) (int, error)

	// Close releases the transport.
	Close() error
}

// Port is a Transport backed by a serial device.
type Port struct {
	s io.ReadWriteCloser

	// readTimeout is the per-Read deadline of the underlying device.
	// An expired deadline counts towards the bulk timeout budget;
	// ReadChar retries forever.
	readTimeout time.Duration

	// idleLimit is the number of consecutive expired deadlines ReadBulk
	// tolerates before failing with a timeout.
	idleLimit int
}

// default bulk idle budget: 50 empty reads
const defaultIdleLimit = 50

// Open opens the serial device.
func Open(device string, baud int, readTimeout time.Duration) (*Port, error) {
	if readTimeout <= 0 {
		readTimeout = 100 * time.Millisecond
	}

	s, err := serial.OpenPort(&serial.Config{
		Name:        device,
		Baud:        baud,
		ReadTimeout: readTimeout,
	})
	if err != nil {
		return nil, err
	}

	return &Port{s: s, readTimeout: readTimeout, idleLimit: defaultIdleLimit}, nil
}

// ReadChar blocks until one character arrives.
// An expired device read deadline is retried indefinitely; the operator may
// take any amount of time to answer a prompt.
func (p *Port) ReadChar() (byte, error) {
	b := make([]byte, 1)
	for {
		n, err := p.s.Read(b)
		if n == 1 {
			return b[0], nil
		}
		if err != nil && err != io.EOF {
			return 0, Classify(err)
		}
		// the serial driver surfaces an expired read deadline as a
		// zero-byte read or io.EOF (VMIN=0/VTIME through os.File turns
		// the empty read into EOF); neither means the line is gone
	}
}

// ReadBulk fills p completely or fails with a classified error.
// Expired read deadlines count against the idle budget and end in a Timeout
// once it is spent; data trickling in resets the budget.
func (p *Port) ReadBulk(b []byte) (int, error) {
	read := 0
	idle := 0

	for read < len(b) {
		n, err := p.s.Read(b[read:])
		if n > 0 {
			idle = 0
			read += n
		}

		if err != nil && err != io.EOF {
			return read, Classify(err)
		}

		if n > 0 {
			continue
		}

		// expired read deadline, see ReadChar
		idle++
		if idle >= p.idleLimit {
			return read, &TransportError{Kind: Timeout, Err: fmt.Errorf("no data for %v", time.Duration(idle)*p.readTimeout)}
		}
	}

	return read, nil
}

func (p *Port) Close() error {
	return p.s.Close()
}

// Classify maps a driver error to a *TransportError.
// Errors that already carry a classification pass through unchanged.
func Classify(err error) *TransportError {
	if err == nil {
		return nil
	}

	if te, ok := err.(*TransportError); ok {
		return te
	}

	switch {
	case err == io.EOF || err == io.ErrUnexpectedEOF:
		// a stream ending mid-transfer means the line is gone; the
		// serial backend filters deadline-EOFs before classifying
		return &TransportError{Kind: Break, Err: err}
	case isTimeout(err):
		return &TransportError{Kind: Timeout, Err: err}
	}
	return &TransportError{Kind: Unknown, Err: err}
}

func isTimeout(err error) bool {
	type timeouter interface {
		Timeout() bool
	}
	t, ok := err.(timeouter)
	return ok && t.Timeout()
}
