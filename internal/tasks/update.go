// File: internal/tasks/update.go
package tasks

import (
	"context"
	"fmt"

	"github.com/xkilldash9x/eid-agent/api/schemas"
)

// UpdateInput names the record and the fields to change. Absent fields are
// left untouched on the portal.
type UpdateInput struct {
	EID     string
	Name    string
	Phone   string
	Address string
}

// changeFields returns the present change fields in the fixed application
// order: name, then phone, then address. The order is insignificant to the
// portal but deterministic for reproducibility.
func (in UpdateInput) changeFields() []struct{ field, value string } {
	var out []struct{ field, value string }
	if in.Name != "" {
		out = append(out, struct{ field, value string }{"name", in.Name})
	}
	if in.Phone != "" {
		out = append(out, struct{ field, value string }{"phone", in.Phone})
	}
	if in.Address != "" {
		out = append(out, struct{ field, value string }{"address", in.Address})
	}
	return out
}

// Update drives the portal's lookup-edit-save workflow.
type Update struct {
	env   *env
	input UpdateInput

	result schemas.Outcome
}

// NewUpdate validates the contract: a well-formed identifier and at least
// one change field. Invoking an update with nothing to change is a
// programming error, not a runtime Outcome.
func NewUpdate(e *env, in UpdateInput) (*Update, error) {
	if !schemas.IsValidEID(in.EID) {
		return nil, fmt.Errorf("update requires a valid 12-digit E-ID, got %q", in.EID)
	}
	if len(in.changeFields()) == 0 {
		return nil, fmt.Errorf("update requires at least one field to change")
	}
	return &Update{env: e, input: in}, nil
}

// Run executes the workflow and always returns a terminal Outcome.
func (t *Update) Run(ctx context.Context) schemas.Outcome {
	if err := t.env.execute(ctx, t.steps()); err != nil {
		return outcomeFromError(err)
	}
	return t.result
}

func (t *Update) steps() []step {
	e := t.env
	return []step{
		{
			name: "Opening the E-ID portal update form...",
			run: func(ctx context.Context) error {
				return e.openSection(ctx, selMenuUpdate, selUpdateView)
			},
		},
		{
			name: "Looking up your record...",
			run:  t.lookup,
		},
		{
			name: "Applying your changes...",
			run:  t.applyChanges,
		},
		{
			name: "Saving the changes...",
			run: func(ctx context.Context) error {
				if err := e.driver.Click(ctx, selUpdateSaveButton, e.cfg.StepTimeout); err != nil {
					return &NavigationError{Step: "save changes", Selector: selUpdateSaveButton, Err: err}
				}
				return nil
			},
		},
		{
			name: "The portal is asking for a captcha. Sending it to you now...",
			run:  e.solveCaptcha,
		},
		{
			name: "Waiting for the portal's verdict...",
			run:  t.readVerdict,
		},
	}
}

// lookup submits the identifier; an unknown record is terminal before any
// checkpoint is reached.
func (t *Update) lookup(ctx context.Context) error {
	e := t.env
	if err := e.driver.Type(ctx, selUpdateEIDInput, t.input.EID, e.cfg.StepTimeout); err != nil {
		return &NavigationError{Step: "lookup", Selector: selUpdateEIDInput, Err: err}
	}
	if err := e.driver.Click(ctx, selFindUserButton, e.cfg.StepTimeout); err != nil {
		return &NavigationError{Step: "lookup", Selector: selFindUserButton, Err: err}
	}

	winner, err := e.driver.WaitEither(ctx, selUpdateStep2, selUpdateFindError, e.cfg.StepTimeout)
	if err != nil {
		return &NavigationError{Step: "lookup verdict", Selector: selUpdateStep2, Err: err}
	}
	if winner == selUpdateFindError {
		msg, terr := e.driver.Text(ctx, selUpdateFindErrMsg, e.cfg.StepTimeout)
		if terr != nil || msg == "" {
			msg = "No record was found for that E-ID."
		}
		return &BusinessRejection{Message: msg}
	}
	return nil
}

// applyChanges edits each present field independently: unlock it, clear the
// existing value, enter the new one.
func (t *Update) applyChanges(ctx context.Context) error {
	e := t.env
	for _, change := range t.input.changeFields() {
		unlock, input := updateFieldSelector(change.field)
		if err := e.driver.Click(ctx, unlock, e.cfg.StepTimeout); err != nil {
			return &NavigationError{Step: "unlock " + change.field, Selector: unlock, Err: err}
		}
		if err := e.driver.Clear(ctx, input, e.cfg.StepTimeout); err != nil {
			return &NavigationError{Step: "clear " + change.field, Selector: input, Err: err}
		}
		if err := e.driver.Type(ctx, input, change.value, e.cfg.StepTimeout); err != nil {
			return &NavigationError{Step: "edit " + change.field, Selector: input, Err: err}
		}
	}
	return nil
}

// readVerdict waits for the form to fall back to its first step, then
// inspects the paired success/error boxes.
func (t *Update) readVerdict(ctx context.Context) error {
	e := t.env
	if err := e.driver.WaitVisible(ctx, selUpdateStep1, e.cfg.StepTimeout); err != nil {
		return &VerificationError{Reason: "the portal gave no verdict after the captcha", Err: err}
	}

	winner, err := e.driver.WaitEither(ctx, selUpdateSuccess, selUpdateError, e.cfg.StepTimeout)
	if err != nil {
		return &VerificationError{Reason: "the portal gave no verdict after the captcha", Err: err}
	}
	if winner == selUpdateError {
		msg, terr := e.driver.Text(ctx, selUpdateErrMsg, e.cfg.StepTimeout)
		if terr != nil || msg == "" {
			msg = "The portal rejected the update."
		}
		return &BusinessRejection{Message: msg}
	}

	t.result = schemas.Outcome{
		Success: true,
		Message: "Your details were updated successfully.",
	}
	return nil
}
