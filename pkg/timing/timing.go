// Package timing drives the gpio lines that bracket an inference call so an
// external instrument (oscilloscope, logic analyzer) can measure inference
// latency.
//
// The controller owns a pre-inference and a post-inference line plus an
// optional set of diagnostic lines. A failed initialization leaves the
// controller unarmed: assert and deassert calls then degrade to no-ops, the
// timing signals are a diagnostic aid and must never take the inference
// workload down with them.
package timing

import (
	"errors"
	"fmt"
	"time"

	"github.com/womat/debug"

	"inftrace/pkg/port"
)

// diagHold is how long each diagnostic line stays high during a cycle.
const diagHold = time.Second

var (
	// ErrNotInitialized is returned by CycleDiagnostics when the
	// diagnostic lines were never initialized.
	ErrNotInitialized = errors.New("diagnostic lines not initialized")
)

// Controller owns the timing signal lines.
type Controller struct {
	pre  port.Output
	post port.Output
	diag []port.Output

	wait port.WaitFunc

	initialized     bool
	diagInitialized bool
}

// New creates a controller for the given pre- and post-inference lines.
// wait may be nil, in which case port.Sleep is used.
func New(pre, post port.Output, wait port.WaitFunc) *Controller {
	if wait == nil {
		wait = port.Sleep
	}

	return &Controller{
		pre:  pre,
		post: post,
		wait: wait,
	}
}

// Init configures both timing lines as outputs driven low and arms the
// controller. If any step fails the controller stays unarmed and the error
// is returned; a half-configured line is never asserted later.
func (c *Controller) Init() error {
	if err := c.pre.Configure(); err != nil {
		return fmt.Errorf("pre-inference line: %w", err)
	}
	if err := c.post.Configure(); err != nil {
		return fmt.Errorf("post-inference line: %w", err)
	}

	if err := c.pre.SetLevel(port.Low); err != nil {
		return fmt.Errorf("pre-inference line: %w", err)
	}
	if err := c.post.SetLevel(port.Low); err != nil {
		return fmt.Errorf("post-inference line: %w", err)
	}

	c.initialized = true
	return nil
}

// Initialized reports whether Init completed successfully.
func (c *Controller) Initialized() bool {
	return c.initialized
}

// AssertPre drives the pre-inference line high.
func (c *Controller) AssertPre() {
	c.set(c.pre, port.High)
}

// DeassertPre drives the pre-inference line low.
func (c *Controller) DeassertPre() {
	c.set(c.pre, port.Low)
}

// AssertPost drives the post-inference line high.
func (c *Controller) AssertPost() {
	c.set(c.post, port.High)
}

// DeassertPost drives the post-inference line low.
func (c *Controller) DeassertPost() {
	c.set(c.post, port.Low)
}

// set changes a line level, silently skipping when the controller is unarmed.
func (c *Controller) set(o port.Output, l port.Level) {
	if !c.initialized {
		return
	}

	if err := o.SetLevel(l); err != nil {
		debug.ErrorLog.Printf("timing signal: %v", err)
	}
}

// InitDiagnostics configures the diagnostic lines as outputs driven low.
// It must be called before CycleDiagnostics; the diagnostic lines are armed
// independently of the pre/post pair.
func (c *Controller) InitDiagnostics(lines ...port.Output) error {
	for i, l := range lines {
		if err := l.Configure(); err != nil {
			return fmt.Errorf("diagnostic line %d: %w", i, err)
		}
		if err := l.SetLevel(port.Low); err != nil {
			return fmt.Errorf("diagnostic line %d: %w", i, err)
		}
	}

	c.diag = lines
	c.diagInitialized = true
	return nil
}

// CycleDiagnostics asserts each diagnostic line for one second in order,
// then deasserts all of them once more. The final sweep guards against a
// line left high by a failed set in the middle of the cycle.
func (c *Controller) CycleDiagnostics() error {
	if !c.diagInitialized {
		return ErrNotInitialized
	}

	for i, l := range c.diag {
		if err := l.SetLevel(port.High); err != nil {
			debug.ErrorLog.Printf("diagnostic line %d: %v", i, err)
		}
		c.wait(diagHold)
		if err := l.SetLevel(port.Low); err != nil {
			debug.ErrorLog.Printf("diagnostic line %d: %v", i, err)
		}
	}

	for _, l := range c.diag {
		_ = l.SetLevel(port.Low)
	}

	return nil
}
