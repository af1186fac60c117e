// File: internal/tasks/download.go
package tasks

import (
	"context"
	"fmt"

	"github.com/xkilldash9x/eid-agent/api/schemas"
)

// Download drives the portal's search-and-download workflow. The document
// itself arrives as an intercepted data:text/plain response, so the task
// arms a network watch before triggering the download and waits a bounded
// settle period after the captcha answer.
type Download struct {
	env *env
	eid string

	capture schemas.ResponseCapture
	result  schemas.Outcome
}

// NewDownload validates the identifier contract and builds the task.
func NewDownload(e *env, eid string) (*Download, error) {
	if !schemas.IsValidEID(eid) {
		return nil, fmt.Errorf("download requires a valid 12-digit E-ID, got %q", eid)
	}
	return &Download{env: e, eid: eid}, nil
}

// Run executes the workflow and always returns a terminal Outcome.
func (t *Download) Run(ctx context.Context) schemas.Outcome {
	defer func() {
		if t.capture != nil {
			t.capture.Stop()
		}
	}()
	if err := t.env.execute(ctx, t.steps()); err != nil {
		return outcomeFromError(err)
	}
	return t.result
}

func (t *Download) steps() []step {
	e := t.env
	return []step{
		{
			name: "Opening the E-ID portal search form...",
			run: func(ctx context.Context) error {
				return e.openSection(ctx, selMenuSearch, selSearchView)
			},
		},
		{
			name: "Searching for your record...",
			run:  t.search,
		},
		{
			name: "Record found. Triggering the download...",
			run:  t.triggerDownload,
		},
		{
			name: "The portal is asking for a captcha. Sending it to you now...",
			run:  e.solveCaptcha,
		},
		{
			name: "Waiting for the document...",
			run:  t.captureDocument,
		},
	}
}

// search submits the identifier and short-circuits on a not-found verdict
// before any checkpoint is ever created.
func (t *Download) search(ctx context.Context) error {
	e := t.env
	if err := e.driver.Type(ctx, selSearchInput, t.eid, e.cfg.StepTimeout); err != nil {
		return &NavigationError{Step: "search", Selector: selSearchInput, Err: err}
	}
	if err := e.driver.Click(ctx, selSearchButton, e.cfg.StepTimeout); err != nil {
		return &NavigationError{Step: "search", Selector: selSearchButton, Err: err}
	}

	winner, err := e.driver.WaitEither(ctx, selResultsCard, selSearchError, e.cfg.StepTimeout)
	if err != nil {
		return &NavigationError{Step: "search verdict", Selector: selResultsCard, Err: err}
	}
	if winner == selSearchError {
		msg, terr := e.driver.Text(ctx, selSearchErrMsg, e.cfg.StepTimeout)
		if terr != nil || msg == "" {
			msg = "No record was found for that E-ID."
		}
		return &BusinessRejection{Message: msg}
	}
	return nil
}

// triggerDownload arms the response watch first, then clicks. Subscribing
// after the click would race the portal's response emission.
func (t *Download) triggerDownload(ctx context.Context) error {
	e := t.env
	t.capture = e.driver.WatchResponses(downloadURLPrefix)

	if err := e.driver.Click(ctx, selDownloadButton, e.cfg.StepTimeout); err != nil {
		return &NavigationError{Step: "trigger download", Selector: selDownloadButton, Err: err}
	}
	return nil
}

// captureDocument waits out the settle window for the side-channel
// response. Absence after a solved captcha almost always means the answer
// was wrong.
func (t *Download) captureDocument(ctx context.Context) error {
	body, err := t.capture.Wait(ctx, t.env.cfg.DownloadSettleWait)
	if err != nil {
		return &VerificationError{
			Reason: "The document never arrived. The captcha answer was most likely incorrect.",
			Err:    err,
		}
	}
	t.result = schemas.Outcome{
		Success:  true,
		Document: body,
		Message:  "Your E-ID document is ready.",
	}
	return nil
}
