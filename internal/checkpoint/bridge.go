// File: internal/checkpoint/bridge.go
package checkpoint

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"sync"

	"github.com/xkilldash9x/eid-agent/api/schemas"
	"go.uber.org/zap"
)

// DefaultTimeout bounds how long a task may stay suspended waiting for a
// human answer. Long enough to read and solve a visual challenge, short
// enough to bound browser hold time.
const DefaultTimeout = 120 * time.Second

var (
	// ErrTimeout is returned by Solve when no answer arrives inside the
	// deadline. The pending slot is cleared first, so a late answer is a
	// harmless no-op.
	ErrTimeout = errors.New("checkpoint timed out waiting for a human answer")

	// ErrBusy is returned when Solve is called while another checkpoint is
	// already pending on the same bridge. With at most one in-flight task
	// per session this is a programming error, not an operational state.
	ErrBusy = errors.New("a checkpoint is already pending on this session")
)

// Bridge is the per-session suspend/resume primitive. A task calls Solve
// with a rendered challenge; the inbound-message handler calls Deliver when
// the user answers. The two sides never touch the pending slot without the
// mutex, so an answer racing checkpoint registration resolves to "nothing
// pending" rather than a misdelivery.
type Bridge struct {
	publisher schemas.Publisher
	timeout   time.Duration
	logger    *zap.Logger

	mu      sync.Mutex
	pending chan string
}

// NewBridge builds a bridge bound to one session's publisher. A
// non-positive timeout falls back to DefaultTimeout.
func NewBridge(publisher schemas.Publisher, timeout time.Duration, logger *zap.Logger) *Bridge {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Bridge{
		publisher: publisher,
		timeout:   timeout,
		logger:    logger.Named("checkpoint"),
	}
}

// Solve pushes the challenge image to the session's channel and suspends
// the calling task until the answer arrives, the deadline passes, or ctx is
// cancelled. The deadline is fixed at the moment of suspension and never
// extended.
func (b *Bridge) Solve(ctx context.Context, image []byte) (string, error) {
	answer := make(chan string, 1)

	b.mu.Lock()
	if b.pending != nil {
		b.mu.Unlock()
		return "", ErrBusy
	}
	b.pending = answer
	b.mu.Unlock()
	defer b.clear(answer)

	dataURI := "data:image/png;base64," + base64.StdEncoding.EncodeToString(image)
	if err := b.publisher.Publish(schemas.NewCaptchaRequired(dataURI)); err != nil {
		return "", fmt.Errorf("failed to publish checkpoint challenge: %w", err)
	}
	b.logger.Info("Checkpoint pending, waiting for user answer.",
		zap.Duration("deadline", b.timeout))

	timer := time.NewTimer(b.timeout)
	defer timer.Stop()

	select {
	case code := <-answer:
		b.logger.Info("Checkpoint answer received.")
		return code, nil
	case <-timer.C:
		b.logger.Warn("Checkpoint deadline elapsed without an answer.")
		return "", ErrTimeout
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Deliver resolves the pending checkpoint with the user's answer. When no
// checkpoint is pending the answer is dropped silently; stale or duplicate
// solutions must not disturb a later, legitimate checkpoint.
func (b *Bridge) Deliver(code string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pending == nil {
		b.logger.Debug("Dropping captcha solution with no pending checkpoint.")
		return false
	}
	b.pending <- code
	b.pending = nil
	return true
}

// clear releases the pending slot, but only if it still belongs to this
// Solve call. Deliver may already have swapped it out.
func (b *Bridge) clear(answer chan string) {
	b.mu.Lock()
	if b.pending == answer {
		b.pending = nil
	}
	b.mu.Unlock()
}
