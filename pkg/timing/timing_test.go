package timing

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"inftrace/pkg/port"
)

// fakeOutput records every operation on a line.
type fakeOutput struct {
	configured bool
	level      port.Level

	configureErr error
	setLevelErr  error

	ops *[]string
	tag string
}

func (f *fakeOutput) Configure() error {
	if f.configureErr != nil {
		return &port.HardwareConfigError{Pin: 0, Stage: port.StageRequest, Err: f.configureErr}
	}
	f.configured = true
	if f.ops != nil {
		*f.ops = append(*f.ops, f.tag+":configure")
	}
	return nil
}

func (f *fakeOutput) SetLevel(l port.Level) error {
	if f.setLevelErr != nil {
		return &port.HardwareConfigError{Pin: 0, Stage: port.StageSetLevel, Err: f.setLevelErr}
	}
	f.level = l
	if f.ops != nil {
		*f.ops = append(*f.ops, f.tag+":"+l.String())
	}
	return nil
}

func newFakeWait() (port.WaitFunc, *[]time.Duration) {
	waits := &[]time.Duration{}
	return func(d time.Duration) {
		*waits = append(*waits, d)
	}, waits
}

func TestInitAndSignals(t *testing.T) {
	pre := &fakeOutput{}
	post := &fakeOutput{}
	c := New(pre, post, nil)

	require.NoError(t, c.Init())
	require.True(t, c.Initialized())
	require.Equal(t, port.Low, pre.level)
	require.Equal(t, port.Low, post.level)

	c.AssertPre()
	require.Equal(t, port.High, pre.level)
	c.DeassertPre()
	require.Equal(t, port.Low, pre.level)

	c.AssertPost()
	require.Equal(t, port.High, post.level)
	c.DeassertPost()
	require.Equal(t, port.Low, post.level)
}

func TestAssertDeassertRoundTrip(t *testing.T) {
	pre := &fakeOutput{}
	c := New(pre, &fakeOutput{}, nil)
	require.NoError(t, c.Init())

	before := pre.level
	c.AssertPre()
	c.DeassertPre()
	require.Equal(t, before, pre.level)
}

func TestDeassertIdempotent(t *testing.T) {
	pre := &fakeOutput{}
	c := New(pre, &fakeOutput{}, nil)
	require.NoError(t, c.Init())

	c.AssertPre()
	c.DeassertPre()
	once := pre.level
	c.DeassertPre()
	require.Equal(t, once, pre.level)
}

func TestInitFailureDisablesSignals(t *testing.T) {
	cases := map[string]struct {
		pre, post *fakeOutput
	}{
		"pre request fails":   {&fakeOutput{configureErr: errors.New("busy")}, &fakeOutput{}},
		"post request fails":  {&fakeOutput{}, &fakeOutput{configureErr: errors.New("busy")}},
		"pre setlevel fails":  {&fakeOutput{setLevelErr: errors.New("io")}, &fakeOutput{}},
		"post setlevel fails": {&fakeOutput{}, &fakeOutput{setLevelErr: errors.New("io")}},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			c := New(tc.pre, tc.post, nil)

			err := c.Init()
			require.Error(t, err)
			require.False(t, c.Initialized())

			var hce *port.HardwareConfigError
			require.True(t, errors.As(err, &hce))

			// an unarmed controller must never touch a line again
			preLevel, postLevel := tc.pre.level, tc.post.level
			c.AssertPre()
			c.AssertPost()
			require.Equal(t, preLevel, tc.pre.level)
			require.Equal(t, postLevel, tc.post.level)
		})
	}
}

func TestCycleDiagnosticsNotInitialized(t *testing.T) {
	wait, waits := newFakeWait()
	c := New(&fakeOutput{}, &fakeOutput{}, wait)
	require.NoError(t, c.Init())

	err := c.CycleDiagnostics()
	require.Equal(t, ErrNotInitialized, err)
	require.Empty(t, *waits)
}

func TestCycleDiagnostics(t *testing.T) {
	ops := []string{}
	lines := make([]port.Output, 4)
	tags := []string{"d0", "d1", "d2", "d4"}
	for i, tag := range tags {
		lines[i] = &fakeOutput{ops: &ops, tag: tag}
	}

	wait, waits := newFakeWait()
	c := New(&fakeOutput{}, &fakeOutput{}, wait)
	require.NoError(t, c.Init())
	require.NoError(t, c.InitDiagnostics(lines...))

	ops = ops[:0]
	require.NoError(t, c.CycleDiagnostics())

	require.Equal(t, []string{
		"d0:high", "d0:low",
		"d1:high", "d1:low",
		"d2:high", "d2:low",
		"d4:high", "d4:low",
		// safety sweep
		"d0:low", "d1:low", "d2:low", "d4:low",
	}, ops)

	require.Len(t, *waits, 4)
	for _, d := range *waits {
		require.Equal(t, time.Second, d)
	}
}

func TestInitDiagnosticsFailure(t *testing.T) {
	wait, waits := newFakeWait()
	c := New(&fakeOutput{}, &fakeOutput{}, wait)
	require.NoError(t, c.Init())

	err := c.InitDiagnostics(&fakeOutput{}, &fakeOutput{configureErr: errors.New("busy")})
	require.Error(t, err)

	require.Equal(t, ErrNotInitialized, c.CycleDiagnostics())
	require.Empty(t, *waits)
}
