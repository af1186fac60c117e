// File: internal/tasks/registration.go
package tasks

import (
	"context"
	"fmt"

	"github.com/xkilldash9x/eid-agent/api/schemas"
)

// RegistrationInput holds the pre-validated fields for a new registration.
// Missing-field negotiation is the oracle's job; by the time a task is
// constructed every field must be present.
type RegistrationInput struct {
	Name    string
	DOB     string // canonical YYYY-MM-DD
	Gender  string // Male, Female, or Other
	Phone   string
	Address string
}

// Registration drives the portal's registration workflow end to end:
// navigate, fill the form, submit, solve the captcha checkpoint, and read
// the assigned E-ID or the portal's rejection.
type Registration struct {
	env   *env
	input RegistrationInput

	result schemas.Outcome
}

// NewRegistration validates the input contract and builds the task.
func NewRegistration(e *env, in RegistrationInput) (*Registration, error) {
	missing := ""
	switch {
	case in.Name == "":
		missing = "name"
	case in.DOB == "":
		missing = "date of birth"
	case in.Gender == "":
		missing = "gender"
	case in.Phone == "":
		missing = "phone"
	case in.Address == "":
		missing = "address"
	}
	if missing != "" {
		return nil, fmt.Errorf("registration requires a %s", missing)
	}
	return &Registration{env: e, input: in}, nil
}

// Run executes the workflow and always returns a terminal Outcome.
func (t *Registration) Run(ctx context.Context) schemas.Outcome {
	if err := t.env.execute(ctx, t.steps()); err != nil {
		return outcomeFromError(err)
	}
	return t.result
}

func (t *Registration) steps() []step {
	e := t.env
	return []step{
		{
			name: "Opening the E-ID portal registration form...",
			run: func(ctx context.Context) error {
				return e.openSection(ctx, selMenuRegister, selRegisterView)
			},
		},
		{
			name: "Filling in your details...",
			run:  t.fillForm,
		},
		{
			name: "Submitting the registration...",
			run: func(ctx context.Context) error {
				if err := e.driver.Click(ctx, selRegisterButton, e.cfg.StepTimeout); err != nil {
					return &NavigationError{Step: "submit registration", Selector: selRegisterButton, Err: err}
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

// fillForm enters every field. The date input rejects keystrokes, so its
// value is assigned directly.
func (t *Registration) fillForm(ctx context.Context) error {
	fields := []struct {
		sel   string
		value string
		set   func(context.Context, string, string) error
	}{
		{selRegName, t.input.Name, t.typeField},
		{selRegDOB, t.input.DOB, t.setField},
		{selRegGender, t.input.Gender, t.selectField},
		{selRegPhone, t.input.Phone, t.typeField},
		{selRegAddress, t.input.Address, t.typeField},
	}
	for _, f := range fields {
		if err := f.set(ctx, f.sel, f.value); err != nil {
			return &NavigationError{Step: "fill registration form", Selector: f.sel, Err: err}
		}
	}
	return nil
}

func (t *Registration) typeField(ctx context.Context, sel, value string) error {
	return t.env.driver.Type(ctx, sel, value, t.env.cfg.StepTimeout)
}

func (t *Registration) setField(ctx context.Context, sel, value string) error {
	return t.env.driver.SetValue(ctx, sel, value, t.env.cfg.StepTimeout)
}

func (t *Registration) selectField(ctx context.Context, sel, value string) error {
	return t.env.driver.SelectOption(ctx, sel, value, t.env.cfg.StepTimeout)
}

// readVerdict inspects whichever indicator box became visible and extracts
// the assigned identifier or the portal's own rejection message.
func (t *Registration) readVerdict(ctx context.Context) error {
	e := t.env
	winner, err := e.driver.WaitEither(ctx, selRegisterSuccess, selRegisterError, e.cfg.StepTimeout)
	if err != nil {
		return &VerificationError{Reason: "the portal gave no verdict after the captcha", Err: err}
	}

	if winner == selRegisterError {
		msg, terr := e.driver.Text(ctx, selRegisterErrMsg, e.cfg.StepTimeout)
		if terr != nil || msg == "" {
			msg = "The portal rejected the registration."
		}
		return &BusinessRejection{Message: msg}
	}

	eid, err := e.driver.Text(ctx, selNewEIDNumber, e.cfg.StepTimeout)
	if err != nil {
		return &VerificationError{Reason: "registration succeeded but the new E-ID could not be read", Err: err}
	}
	t.result = schemas.Outcome{
		Success: true,
		EID:     eid,
		Message: fmt.Sprintf("Registration complete. Your new E-ID is %s.", eid),
	}
	return nil
}
