// File: internal/tasks/fakes_test.go
package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/xkilldash9x/eid-agent/api/schemas"
	"github.com/xkilldash9x/eid-agent/internal/browser"
	"github.com/xkilldash9x/eid-agent/internal/config"
	"go.uber.org/zap/zaptest"

	"testing"
)

// fakeDriver is a scripted PageDriver. Every call is appended to calls so
// tests can assert ordering; behavior is driven by the maps.
type fakeDriver struct {
	mu    sync.Mutex
	calls []string

	// texts maps a selector to the text Text returns for it.
	texts map[string]string
	// winners maps "selA|selB" to the selector WaitEither reports.
	winners map[string]string
	// failures maps a selector to an error returned by any action on it.
	failures map[string]error

	captureBody string
	captureErr  error

	closed bool
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		texts:    make(map[string]string),
		winners:  make(map[string]string),
		failures: make(map[string]error),
	}
}

func (d *fakeDriver) record(format string, args ...any) {
	d.mu.Lock()
	d.calls = append(d.calls, fmt.Sprintf(format, args...))
	d.mu.Unlock()
}

func (d *fakeDriver) callLog() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

func (d *fakeDriver) fail(sel string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.failures[sel]
}

func (d *fakeDriver) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	d.record("navigate %s timeout=%s", url, timeout)
	return d.fail(url)
}

func (d *fakeDriver) WaitVisible(ctx context.Context, sel string, _ time.Duration) error {
	d.record("wait %s", sel)
	return d.fail(sel)
}

func (d *fakeDriver) Click(ctx context.Context, sel string, _ time.Duration) error {
	d.record("click %s", sel)
	return d.fail(sel)
}

func (d *fakeDriver) Type(ctx context.Context, sel, value string, _ time.Duration) error {
	d.record("type %s=%s", sel, value)
	return d.fail(sel)
}

func (d *fakeDriver) Clear(ctx context.Context, sel string, _ time.Duration) error {
	d.record("clear %s", sel)
	return d.fail(sel)
}

func (d *fakeDriver) SetValue(ctx context.Context, sel, value string, _ time.Duration) error {
	d.record("set %s=%s", sel, value)
	return d.fail(sel)
}

func (d *fakeDriver) SelectOption(ctx context.Context, sel, value string, _ time.Duration) error {
	d.record("select %s=%s", sel, value)
	return d.fail(sel)
}

func (d *fakeDriver) Hover(ctx context.Context, sel string, _ time.Duration) error {
	d.record("hover %s", sel)
	return d.fail(sel)
}

func (d *fakeDriver) Text(ctx context.Context, sel string, _ time.Duration) (string, error) {
	d.record("text %s", sel)
	if err := d.fail(sel); err != nil {
		return "", err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.texts[sel], nil
}

func (d *fakeDriver) ElementScreenshot(ctx context.Context, sel string, _ time.Duration) ([]byte, error) {
	d.record("screenshot %s", sel)
	if err := d.fail(sel); err != nil {
		return nil, err
	}
	return []byte("fake-png"), nil
}

func (d *fakeDriver) WaitEither(ctx context.Context, selA, selB string, _ time.Duration) (string, error) {
	d.record("either %s|%s", selA, selB)
	d.mu.Lock()
	defer d.mu.Unlock()
	if winner, ok := d.winners[selA+"|"+selB]; ok {
		return winner, nil
	}
	return "", fmt.Errorf("neither %q nor %q became visible", selA, selB)
}

func (d *fakeDriver) WatchResponses(urlPrefix string) schemas.ResponseCapture {
	d.record("watch %s", urlPrefix)
	return &fakeCapture{body: d.captureBody, err: d.captureErr}
}

func (d *fakeDriver) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
}

type fakeCapture struct {
	body string
	err  error
}

func (c *fakeCapture) Wait(ctx context.Context, settle time.Duration) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	if c.body == "" {
		return "", browser.ErrNoResponse
	}
	return c.body, nil
}

func (c *fakeCapture) Stop() {}

// fakeSolver returns a fixed answer, or an error, and counts invocations.
type fakeSolver struct {
	mu    sync.Mutex
	code  string
	err   error
	calls int
}

func (s *fakeSolver) Solve(ctx context.Context, image []byte) (string, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	return s.code, nil
}

func (s *fakeSolver) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// recordingPublisher captures everything a task narrates.
type recordingPublisher struct {
	mu       sync.Mutex
	messages []any
}

func (p *recordingPublisher) Publish(message any) error {
	p.mu.Lock()
	p.messages = append(p.messages, message)
	p.mu.Unlock()
	return nil
}

func (p *recordingPublisher) logLines() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var lines []string
	for _, m := range p.messages {
		if log, ok := m.(schemas.AgentLog); ok {
			lines = append(lines, log.Message)
		}
	}
	return lines
}

func testPortalConfig() config.PortalConfig {
	return config.PortalConfig{
		URL:                "https://portal.example/#",
		StepTimeout:        time.Second,
		NavigationTimeout:  3 * time.Second,
		DownloadSettleWait: 50 * time.Millisecond,
	}
}

func testEnv(t *testing.T, d *fakeDriver, s *fakeSolver) (*env, *recordingPublisher) {
	pub := &recordingPublisher{}
	return &env{
		driver:    d,
		solver:    s,
		publisher: pub,
		logger:    zaptest.NewLogger(t),
		cfg:       testPortalConfig(),
	}, pub
}
