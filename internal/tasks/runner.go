// File: internal/tasks/runner.go
package tasks

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/xkilldash9x/eid-agent/api/schemas"
	"github.com/xkilldash9x/eid-agent/internal/checkpoint"
	"github.com/xkilldash9x/eid-agent/internal/config"
)

// step is one node of a linear workflow. Steps execute strictly in order;
// there are no backward edges and no retries within a run.
type step struct {
	// name is the progress line narrated to the user before the step runs.
	name string
	run  func(ctx context.Context) error
}

// env bundles the collaborators every task variant needs: the owned page
// driver, the human-in-the-loop solver, the session's publisher, and the
// portal timing knobs.
type env struct {
	driver    schemas.PageDriver
	solver    schemas.CheckpointSolver
	publisher schemas.Publisher
	logger    *zap.Logger
	cfg       config.PortalConfig
}

// execute walks the step list, emitting one ordered progress line per step.
// The first error is terminal for the run.
func (e *env) execute(ctx context.Context, steps []step) error {
	for _, st := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if st.name != "" {
			e.narrate(st.name)
		}
		e.logger.Debug("Executing workflow step.", zap.String("step", st.name))
		if err := st.run(ctx); err != nil {
			e.logger.Warn("Workflow step failed.", zap.String("step", st.name), zap.Error(err))
			return err
		}
	}
	return nil
}

// narrate pushes an audit-trail line to the session channel. Narration is
// best effort; a full send buffer must not fail the workflow.
func (e *env) narrate(line string) {
	if err := e.publisher.Publish(schemas.NewAgentLog(line)); err != nil {
		e.logger.Debug("Dropped progress line.", zap.Error(err))
	}
}

// solveCaptcha is the shared checkpoint sequence: wait for the challenge
// widget, screenshot it, suspend on the bridge, then submit the answer.
func (e *env) solveCaptcha(ctx context.Context) error {
	if err := e.driver.WaitVisible(ctx, selCaptchaView, e.cfg.StepTimeout); err != nil {
		return &VerificationError{Reason: "the captcha challenge never appeared", Err: err}
	}
	image, err := e.driver.ElementScreenshot(ctx, selCaptchaView, e.cfg.StepTimeout)
	if err != nil {
		return &VerificationError{Reason: "could not capture the captcha challenge", Err: err}
	}

	code, err := e.solver.Solve(ctx, image)
	if err != nil {
		return err
	}

	if err := e.driver.Type(ctx, selCaptchaInput, code, e.cfg.StepTimeout); err != nil {
		return &VerificationError{Reason: "could not enter the captcha answer", Err: err}
	}
	if err := e.driver.Click(ctx, selCaptchaVerify, e.cfg.StepTimeout); err != nil {
		return &VerificationError{Reason: "could not submit the captcha answer", Err: err}
	}
	return nil
}

// openSection navigates to the portal and opens one of the hover-menu
// entries, waiting for that section's view to render.
func (e *env) openSection(ctx context.Context, menuItem, view string) error {
	if err := e.driver.Navigate(ctx, e.cfg.URL, e.cfg.NavigationTimeout); err != nil {
		return &NavigationError{Step: "navigate", Selector: e.cfg.URL, Err: err}
	}
	if err := e.driver.WaitVisible(ctx, selNavBar, e.cfg.NavigationTimeout); err != nil {
		return &NavigationError{Step: "navigate", Selector: selNavBar, Err: err}
	}
	if err := e.driver.Hover(ctx, selNavMenu, e.cfg.StepTimeout); err != nil {
		return &NavigationError{Step: "open menu", Selector: selNavMenu, Err: err}
	}
	if err := e.driver.Click(ctx, menuItem, e.cfg.StepTimeout); err != nil {
		return &NavigationError{Step: "open menu", Selector: menuItem, Err: err}
	}
	if err := e.driver.WaitVisible(ctx, view, e.cfg.StepTimeout); err != nil {
		return &NavigationError{Step: "open section", Selector: view, Err: err}
	}
	return nil
}

// outcomeFromError converts a terminal step error into the user-facing
// failure Outcome. Portal rejections surface verbatim; everything else gets
// its taxonomy message.
func outcomeFromError(err error) schemas.Outcome {
	var rejection *BusinessRejection
	if errors.As(err, &rejection) {
		return schemas.Failure(rejection.Message)
	}
	if errors.Is(err, checkpoint.ErrTimeout) {
		return schemas.Failure("Timed out waiting for the captcha answer. Please try again.")
	}
	if errors.Is(err, context.Canceled) {
		return schemas.Failure("The task was cancelled.")
	}
	return schemas.Failure(err.Error())
}
