// File: internal/browser/capture.go
package browser

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/eid-agent/api/schemas"
)

// ErrNoResponse is returned by Wait when the settle window elapses without
// a matching response. The caller decides what absence means.
var ErrNoResponse = errors.New("no matching network response within the settle window")

// responseCapture listens for network responses matching a URL prefix. It
// must be armed before the triggering action fires, otherwise the response
// can slip past between trigger and subscription.
type responseCapture struct {
	logger *zap.Logger

	cancel context.CancelFunc
	bodies chan string

	stopOnce sync.Once
}

var _ schemas.ResponseCapture = (*responseCapture)(nil)

// newResponseCapture attaches a target listener to the session context. The
// listener detaches when Stop is called or the session dies.
func newResponseCapture(sessionCtx context.Context, urlPrefix string, logger *zap.Logger) *responseCapture {
	watchCtx, cancel := context.WithCancel(sessionCtx)

	rc := &responseCapture{
		logger: logger.Named("capture"),
		cancel: cancel,
		bodies: make(chan string, 4),
	}

	chromedp.ListenTarget(watchCtx, func(ev interface{}) {
		resp, ok := ev.(*network.EventResponseReceived)
		if !ok || !strings.HasPrefix(resp.Response.URL, urlPrefix) {
			return
		}
		requestID := resp.RequestID
		respURL := resp.Response.URL

		// Body retrieval is a CDP round trip; never block the event
		// dispatch goroutine.
		go func() {
			body := rc.fetchBody(watchCtx, sessionCtx, requestID, respURL)
			if body == "" {
				return
			}
			select {
			case rc.bodies <- body:
			default:
			}
		}()
	})

	return rc
}

// fetchBody pulls the response body over CDP, falling back to decoding the
// data URI itself when the protocol refuses to serve it.
func (rc *responseCapture) fetchBody(watchCtx, sessionCtx context.Context, id network.RequestID, respURL string) string {
	c := chromedp.FromContext(sessionCtx)
	if c != nil && c.Target != nil {
		execCtx := cdp.WithExecutor(watchCtx, c.Target)
		if body, err := network.GetResponseBody(id).Do(execCtx); err == nil && len(body) > 0 {
			return string(body)
		} else if err != nil {
			rc.logger.Debug("GetResponseBody failed, falling back to URL decode.", zap.Error(err))
		}
	}

	if decoded := decodeDataURI(respURL); decoded != "" {
		return decoded
	}
	return ""
}

// decodeDataURI extracts the payload of a data: URL, handling the
// URL-encoded plain-text form the portal emits for downloads.
func decodeDataURI(raw string) string {
	if !strings.HasPrefix(raw, "data:") {
		return ""
	}
	comma := strings.IndexByte(raw, ',')
	if comma < 0 {
		return ""
	}
	payload := raw[comma+1:]
	if unescaped, err := url.QueryUnescape(payload); err == nil {
		return unescaped
	}
	return payload
}

// Wait blocks until a captured body arrives or the settle window elapses.
func (rc *responseCapture) Wait(ctx context.Context, settle time.Duration) (string, error) {
	timer := time.NewTimer(settle)
	defer timer.Stop()

	select {
	case body := <-rc.bodies:
		return body, nil
	case <-timer.C:
		return "", ErrNoResponse
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Stop detaches the listener. Safe to call more than once.
func (rc *responseCapture) Stop() {
	rc.stopOnce.Do(rc.cancel)
}
