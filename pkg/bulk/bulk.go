// Package bulk implements the chunked ingestion of length-known payloads
// over the serial transport.
//
// A fill reads the destination buffer in bounded chunks so progress can be
// reported and the transport's receive buffering is never outrun. The chunk
// size is a tuning constant, not a protocol requirement: any positive bound
// within the transport's buffer space is valid.
package bulk

import (
	"errors"
	"fmt"
	"io"

	"github.com/womat/debug"

	"inftrace/pkg/model"
	"inftrace/pkg/uart"
)

// DefaultChunkSize bounds a single transport request.
const DefaultChunkSize = 4096

// ErrInvalidTensor marks an absent or empty input tensor.
// Such tensors are skipped; they do not abort a multi-tensor load.
var ErrInvalidTensor = errors.New("invalid input tensor")

// Progress reports the state of a running fill after each completed chunk.
type Progress struct {
	Transferred int
	Total       int
}

// Percent returns the completed share of the fill in percent.
func (p Progress) Percent() float64 {
	if p.Total == 0 {
		return 100
	}
	return 100 * float64(p.Transferred) / float64(p.Total)
}

// ProgressFunc receives a Progress after every completed chunk.
type ProgressFunc func(Progress)

// FillError reports an aborted fill with the byte count that completed
// before the transport failed.
type FillError struct {
	// Transferred counts the bytes of fully completed chunks.
	Transferred int
	// Total is the requested length of the fill.
	Total int
	// Err is the classified transport error.
	Err error
}

func (e *FillError) Error() string {
	return fmt.Sprintf("received %d / %d bytes: %v", e.Transferred, e.Total, e.Err)
}

func (e *FillError) Unwrap() error {
	return e.Err
}

// Channel reads bulk payloads from a serial transport in bounded chunks.
type Channel struct {
	transport uart.Transport
	chunkSize int
	progress  ProgressFunc
}

// New creates a Channel.
// chunkSize values below one select DefaultChunkSize; progress may be nil.
func New(t uart.Transport, chunkSize int, progress ProgressFunc) *Channel {
	if chunkSize < 1 {
		chunkSize = DefaultChunkSize
	}

	return &Channel{
		transport: t,
		chunkSize: chunkSize,
		progress:  progress,
	}
}

// Fill reads exactly len(dst) bytes into dst, one chunk at a time.
//
// On a transport error the fill aborts immediately and returns a *FillError
// whose byte count covers only the fully completed chunks; the unwritten
// tail of dst keeps its previous contents. A short fill is always an error,
// there is no partial success.
func (c *Channel) Fill(dst []byte) error {
	total := len(dst)
	transferred := 0

	for transferred < total {
		n := c.chunkSize
		if remaining := total - transferred; remaining < n {
			n = remaining
		}

		if _, err := c.transport.ReadBulk(dst[transferred : transferred+n]); err != nil {
			return &FillError{Transferred: transferred, Total: total, Err: err}
		}

		transferred += n
		if c.progress != nil {
			c.progress(Progress{Transferred: transferred, Total: total})
		}
	}

	return nil
}

// LoadInputs fills every input tensor of the model in index order and
// returns the total number of bytes loaded.
//
// Absent or empty tensors are logged and skipped. A transport error aborts
// the remaining tensors and is returned; the count then covers the bytes
// that were loaded before the abort.
func (c *Channel) LoadInputs(m model.Model) (int, error) {
	numInputs := m.NumInputs()
	loaded := 0

	debug.InfoLog.Printf("loading %d input tensors from serial", numInputs)

	for i := 0; i < numInputs; i++ {
		t := m.Input(i)
		if t == nil || len(t.Data) == 0 {
			debug.ErrorLog.Printf("input tensor %d: %v", i, ErrInvalidTensor)
			continue
		}

		debug.InfoLog.Printf("input tensor %d: %d bytes (%.2f KB), type %s",
			i, len(t.Data), float64(len(t.Data))/1024, t.Type)
		debug.InfoLog.Printf("ready to receive %d bytes", len(t.Data))

		if err := c.Fill(t.Data); err != nil {
			var fe *FillError
			if errors.As(err, &fe) {
				loaded += fe.Transferred
			}
			debug.ErrorLog.Printf("input tensor %d: %v", i, err)
			return loaded, err
		}

		loaded += len(t.Data)
		debug.InfoLog.Printf("input tensor %d loaded", i)
	}

	return loaded, nil
}

// ConsoleProgress returns a ProgressFunc that rewrites a single console
// line per chunk and terminates it with a line break once the fill reaches
// 100 percent.
func ConsoleProgress(w io.Writer) ProgressFunc {
	return func(p Progress) {
		end := "\r"
		if p.Transferred == p.Total {
			end = "\n"
		}
		fmt.Fprintf(w, "  progress: %d / %d bytes (%.1f%%)%s", p.Transferred, p.Total, p.Percent(), end)
	}
}
