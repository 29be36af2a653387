// Package runner sequences ingestion, timing signals and the inference call.
//
// One iteration walks a fixed state cycle: wait for the operator's choice,
// optionally ingest input data over serial, pulse the pre-inference line,
// invoke the model, pulse the post-inference line, report. Everything is
// blocking and strictly sequential; there is exactly one thread of control.
package runner

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/womat/debug"

	"inftrace/pkg/bulk"
	"inftrace/pkg/model"
	"inftrace/pkg/port"
	"inftrace/pkg/timing"
	"inftrace/pkg/uart"
)

// DefaultSettle is the settling delay around the inference call, long
// enough for an external instrument to register the signal transition.
const DefaultSettle = 50 * time.Millisecond

// State is the position of the control loop within one iteration.
type State int

const (
	AwaitingChoice State = iota
	Ingesting
	PreSignal
	RunningInference
	PostSignal
	Reporting
)

func (s State) String() string {
	switch s {
	case AwaitingChoice:
		return "awaiting choice"
	case Ingesting:
		return "ingesting"
	case PreSignal:
		return "pre signal"
	case RunningInference:
		return "running inference"
	case PostSignal:
		return "post signal"
	case Reporting:
		return "reporting"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Mode selects what the loop does after an iteration completes.
type Mode int

const (
	// Single runs one iteration, then parks until Stop is called.
	Single Mode = iota
	// Continuous returns to the choice prompt after every iteration.
	Continuous
)

// ParseMode maps the configuration strings to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "single":
		return Single, nil
	case "continuous":
		return Continuous, nil
	}
	return Single, fmt.Errorf("unknown loop mode %q", s)
}

// Report describes one completed iteration.
type Report struct {
	Iteration       int
	InputFromSerial bool
	BytesLoaded     int
	Success         bool
	Duration        time.Duration
	TimeStamp       time.Time
}

// ReportFunc receives the Report of every iteration.
type ReportFunc func(Report)

// Options wires a Runner.
type Options struct {
	Timing    *timing.Controller
	Channel   *bulk.Channel
	Transport uart.Transport
	Model     model.Model

	// Wait defaults to port.Sleep, Settle to DefaultSettle.
	Wait   port.WaitFunc
	Settle time.Duration

	Mode Mode

	// Report may be nil; Console defaults to os.Stdout.
	Report  ReportFunc
	Console io.Writer
}

// Runner is the interactive control loop.
type Runner struct {
	timing    *timing.Controller
	channel   *bulk.Channel
	transport uart.Transport
	mdl       model.Model

	wait   port.WaitFunc
	settle time.Duration
	mode   Mode

	report  ReportFunc
	console io.Writer

	// state is read by the web health handler while the loop goroutine
	// advances it; accessed atomically only.
	state int32
	quit  chan struct{}
}

// New creates a Runner.
func New(o Options) *Runner {
	if o.Wait == nil {
		o.Wait = port.Sleep
	}
	if o.Settle <= 0 {
		o.Settle = DefaultSettle
	}
	if o.Console == nil {
		o.Console = os.Stdout
	}

	return &Runner{
		timing:    o.Timing,
		channel:   o.Channel,
		transport: o.Transport,
		mdl:       o.Model,
		wait:      o.Wait,
		settle:    o.Settle,
		mode:      o.Mode,
		report:    o.Report,
		console:   o.Console,
		quit:      make(chan struct{}),
	}
}

// State returns the loop position of the current iteration.
func (r *Runner) State() State {
	return State(atomic.LoadInt32(&r.state))
}

func (r *Runner) setState(s State) {
	atomic.StoreInt32(&r.state, int32(s))
}

// WaitForChoice blocks until the operator answers the input-data prompt.
// Characters other than y/Y/n/N are discarded; the accepted answer is
// echoed. There is no timeout.
func (r *Runner) WaitForChoice() (bool, error) {
	fmt.Fprint(r.console, "load input tensor data from serial? (y/n): ")

	for {
		c, err := r.transport.ReadChar()
		if err != nil {
			fmt.Fprintln(r.console)
			return false, err
		}

		switch c {
		case 'y', 'Y':
			fmt.Fprintln(r.console, "Y")
			return true, nil
		case 'n', 'N':
			fmt.Fprintln(r.console, "N")
			return false, nil
		}
	}
}

// RunOnce performs a single iteration and returns its Report.
func (r *Runner) RunOnce(iteration int) Report {
	r.setState(AwaitingChoice)
	fromSerial, err := r.WaitForChoice()
	if err != nil {
		debug.ErrorLog.Printf("choice prompt: %v", err)
	}

	bytesLoaded := 0
	if fromSerial {
		r.setState(Ingesting)
		if bytesLoaded, err = r.channel.LoadInputs(r.mdl); err != nil {
			debug.ErrorLog.Printf("input load aborted: %v", err)
		}
	} else {
		debug.InfoLog.Print("using default synthetic input data")
	}

	debug.InfoLog.Print("starting inference")

	r.setState(PreSignal)
	r.timing.AssertPre()
	r.wait(r.settle)
	r.timing.DeassertPre()

	r.setState(RunningInference)
	start := time.Now()
	success := r.mdl.Invoke()
	duration := time.Since(start)

	// the post signal fires regardless of the inference result
	r.setState(PostSignal)
	r.timing.AssertPost()
	r.wait(r.settle)
	r.timing.DeassertPost()

	r.setState(Reporting)
	if success {
		debug.InfoLog.Printf("inference completed in %v", duration)
	} else {
		debug.ErrorLog.Print("inference failed")
	}

	rep := Report{
		Iteration:       iteration,
		InputFromSerial: fromSerial,
		BytesLoaded:     bytesLoaded,
		Success:         success,
		Duration:        duration,
		TimeStamp:       time.Now(),
	}
	if r.report != nil {
		r.report(rep)
	}

	return rep
}

// Run drives the loop until Stop is called.
// In Single mode one iteration runs and the loop parks; in Continuous mode
// it returns to the choice prompt after every iteration.
func (r *Runner) Run() {
	for iteration := 1; ; iteration++ {
		fmt.Fprintf(r.console, "\n=== inference runner - iteration %d ===\n", iteration)
		r.RunOnce(iteration)

		if r.mode == Single {
			debug.InfoLog.Print("single iteration done, loop parked")
			<-r.quit
			return
		}

		select {
		case <-r.quit:
			return
		default:
		}
	}
}

// Stop releases a running loop.
// A loop blocked on operator input finishes that wait first; there is no
// mid-operation cancellation.
func (r *Runner) Stop() {
	close(r.quit)
}
