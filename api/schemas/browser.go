package schemas

import (
	"context"
	"time"
)

// PageDriver is the thin capability an automation task holds over one
// browser page. Implementations own exactly one page; a driver is never
// shared across tasks or sessions. Every method honors ctx cancellation and
// the supplied per-step timeout; an element failing to appear inside its
// timeout is returned as an error for the caller to classify.
type PageDriver interface {
	// Navigate loads url and waits for the document to be ready. A portal
	// that accepts the connection but never finishes loading is cut off by
	// the timeout like any other step.
	Navigate(ctx context.Context, url string, timeout time.Duration) error

	// WaitVisible blocks until the element matching sel is visible.
	WaitVisible(ctx context.Context, sel string, timeout time.Duration) error

	// Click clicks the first visible element matching sel.
	Click(ctx context.Context, sel string, timeout time.Duration) error

	// Type focuses sel and sends value as keystrokes.
	Type(ctx context.Context, sel string, value string, timeout time.Duration) error

	// Clear empties the current value of the input matching sel.
	Clear(ctx context.Context, sel string, timeout time.Duration) error

	// SetValue assigns value directly via the DOM and fires input/change
	// events. Needed for date inputs that reject synthetic keystrokes.
	SetValue(ctx context.Context, sel string, value string, timeout time.Duration) error

	// SelectOption picks the option with the given value on a <select>.
	SelectOption(ctx context.Context, sel string, value string, timeout time.Duration) error

	// Hover dispatches a mouseover on sel, opening hover-driven menus.
	Hover(ctx context.Context, sel string, timeout time.Duration) error

	// Text returns the trimmed text content of sel.
	Text(ctx context.Context, sel string, timeout time.Duration) (string, error)

	// ElementScreenshot captures a PNG of the region occupied by sel.
	ElementScreenshot(ctx context.Context, sel string, timeout time.Duration) ([]byte, error)

	// WaitEither blocks until one of the two selectors becomes visible and
	// reports which one won. Used for paired success/failure indicators.
	WaitEither(ctx context.Context, selA, selB string, timeout time.Duration) (string, error)

	// WatchResponses begins capturing network responses whose URL matches
	// urlPrefix. The watch must be armed before the triggering action.
	WatchResponses(urlPrefix string) ResponseCapture

	// Close releases the page and its browser context. Idempotent.
	Close()
}

// ResponseCapture collects response bodies from an armed network watch.
type ResponseCapture interface {
	// Wait blocks until a matching response body is available or the settle
	// window elapses. A settle-window expiry returns an error; the caller
	// decides what absence means.
	Wait(ctx context.Context, settle time.Duration) (string, error)

	// Stop detaches the watch. Safe to call more than once.
	Stop()
}

// Publisher pushes one wire message onto the owning session's channel.
// Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(message any) error
}

// CheckpointSolver suspends the calling task until a human supplies the
// answer to a rendered verification challenge, or the checkpoint deadline
// passes.
type CheckpointSolver interface {
	Solve(ctx context.Context, image []byte) (string, error)
}
