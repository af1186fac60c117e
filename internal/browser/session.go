// File: internal/browser/session.go
package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/eid-agent/api/schemas"
)

// Session is one browser tab with its own CDP connection. It implements
// schemas.PageDriver and is owned by exactly one automation task.
type Session struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger

	onClose func()

	closeOnce sync.Once
}

var _ schemas.PageDriver = (*Session)(nil)

// newSession connects a fresh tab under the shared allocator.
func newSession(allocCtx context.Context, logger *zap.Logger) (*Session, error) {
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	// Establish the CDP connection and enable network events up front so
	// response watches never miss early traffic.
	if err := chromedp.Run(tabCtx, network.Enable()); err != nil {
		tabCancel()
		return nil, fmt.Errorf("failed to connect browser tab: %w", err)
	}

	id := uuid.New().String()
	s := &Session{
		id:     id,
		ctx:    tabCtx,
		cancel: tabCancel,
		logger: logger.Named("session").With(zap.String("session_id", id)),
	}
	return s, nil
}

// watch tears the tab down when the caller's context dies. Called once by
// the manager after onClose is wired.
func (s *Session) watch(ctx context.Context) {
	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.ctx.Done():
		}
	}()
}

// ID returns the unique identifier for the session.
func (s *Session) ID() string {
	return s.id
}

// run executes chromedp actions bounded by both the session lifetime and
// the per-step timeout.
func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := CombineContext(s.ctx, ctx)
	defer cancel()

	if timeout > 0 {
		var tcancel context.CancelFunc
		runCtx, tcancel = context.WithTimeout(runCtx, timeout)
		defer tcancel()
	}
	return chromedp.Run(runCtx, actions...)
}

// Navigate loads url and waits for the document body to be ready. The load
// is bounded by timeout; a stalling page returns an error instead of holding
// the session.
func (s *Session) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	s.logger.Debug("Navigating.", zap.String("url", url))
	return s.run(ctx, timeout,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

// WaitVisible blocks until sel is visible.
func (s *Session) WaitVisible(ctx context.Context, sel string, timeout time.Duration) error {
	return s.run(ctx, timeout, chromedp.WaitVisible(sel, chromedp.ByQuery))
}

// Click waits for sel to be visible, scrolls it into view, and clicks it.
func (s *Session) Click(ctx context.Context, sel string, timeout time.Duration) error {
	return s.run(ctx, timeout,
		chromedp.WaitVisible(sel, chromedp.ByQuery),
		chromedp.ScrollIntoView(sel, chromedp.ByQuery),
		chromedp.Click(sel, chromedp.ByQuery),
	)
}

// Type focuses sel and sends value as keystrokes.
func (s *Session) Type(ctx context.Context, sel string, value string, timeout time.Duration) error {
	return s.run(ctx, timeout,
		chromedp.WaitVisible(sel, chromedp.ByQuery),
		chromedp.SendKeys(sel, value, chromedp.ByQuery),
	)
}

// Clear empties the input matching sel.
func (s *Session) Clear(ctx context.Context, sel string, timeout time.Duration) error {
	return s.run(ctx, timeout,
		chromedp.WaitVisible(sel, chromedp.ByQuery),
		chromedp.Clear(sel, chromedp.ByQuery),
	)
}

// SetValue assigns value directly on the element and fires input and change
// events. Date inputs reject synthetic keystrokes, so this is the reliable
// path for them.
func (s *Session) SetValue(ctx context.Context, sel string, value string, timeout time.Duration) error {
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		if (!el) return false;
		el.value = %q;
		el.dispatchEvent(new Event('input', { bubbles: true }));
		el.dispatchEvent(new Event('change', { bubbles: true }));
		return true;
	})()`, sel, value)

	var ok bool
	if err := s.run(ctx, timeout,
		chromedp.WaitVisible(sel, chromedp.ByQuery),
		chromedp.Evaluate(script, &ok),
	); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("element not found for value assignment: %s", sel)
	}
	return nil
}

// SelectOption picks the option with the given value on a <select> element.
func (s *Session) SelectOption(ctx context.Context, sel string, value string, timeout time.Duration) error {
	return s.SetValue(ctx, sel, value, timeout)
}

// Hover dispatches a mouseover on sel. Hover-driven menus (CSS :hover or JS
// listeners) open on this without moving the real cursor.
func (s *Session) Hover(ctx context.Context, sel string, timeout time.Duration) error {
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		if (!el) return false;
		el.dispatchEvent(new MouseEvent('mouseover', { bubbles: true }));
		el.dispatchEvent(new MouseEvent('mouseenter', { bubbles: true }));
		return true;
	})()`, sel)

	var ok bool
	if err := s.run(ctx, timeout,
		chromedp.WaitVisible(sel, chromedp.ByQuery),
		chromedp.Evaluate(script, &ok),
	); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("element not found for hover: %s", sel)
	}
	return nil
}

// Text returns the trimmed text content of sel.
func (s *Session) Text(ctx context.Context, sel string, timeout time.Duration) (string, error) {
	var out string
	err := s.run(ctx, timeout,
		chromedp.WaitVisible(sel, chromedp.ByQuery),
		chromedp.Text(sel, &out, chromedp.ByQuery),
	)
	return strings.TrimSpace(out), err
}

// ElementScreenshot captures a PNG of the region occupied by sel.
func (s *Session) ElementScreenshot(ctx context.Context, sel string, timeout time.Duration) ([]byte, error) {
	var buf []byte
	err := s.run(ctx, timeout,
		chromedp.WaitVisible(sel, chromedp.ByQuery),
		chromedp.Screenshot(sel, &buf, chromedp.ByQuery),
	)
	return buf, err
}

// WaitEither polls until one of the two selectors becomes visible and
// returns the winner. Visibility matches the portal's convention of
// toggling a display:none class.
func (s *Session) WaitEither(ctx context.Context, selA, selB string, timeout time.Duration) (string, error) {
	expr := fmt.Sprintf(`(() => {
		const vis = (sel) => {
			const el = document.querySelector(sel);
			return !!el && el.offsetParent !== null;
		};
		if (vis(%q)) return %q;
		if (vis(%q)) return %q;
		return false;
	})()`, selA, selA, selB, selB)

	var winner string
	err := s.run(ctx, timeout,
		chromedp.Poll(expr, &winner, chromedp.WithPollingInterval(150*time.Millisecond)),
	)
	if err != nil {
		return "", fmt.Errorf("neither %q nor %q became visible: %w", selA, selB, err)
	}
	return winner, nil
}

// WatchResponses arms a network watch for responses whose URL starts with
// urlPrefix. Must be called before the action that triggers the response.
func (s *Session) WatchResponses(urlPrefix string) schemas.ResponseCapture {
	return newResponseCapture(s.ctx, urlPrefix, s.logger)
}

// Close tears down the tab. Idempotent; safe from any goroutine.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.logger.Debug("Closing browser session.")
		s.cancel()
		if s.onClose != nil {
			s.onClose()
		}
	})
}
