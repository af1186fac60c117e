// File: internal/tasks/registration_test.go
package tasks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRegistrationInput() RegistrationInput {
	return RegistrationInput{
		Name:    "John Doe",
		DOB:     "1998-05-10",
		Gender:  "Male",
		Phone:   "5551234",
		Address: "1 Main St",
	}
}

func TestRegistrationSuccess(t *testing.T) {
	driver := newFakeDriver()
	driver.winners[selRegisterSuccess+"|"+selRegisterError] = selRegisterSuccess
	driver.texts[selNewEIDNumber] = "123456789012"
	solver := &fakeSolver{code: "AB12"}

	e, pub := testEnv(t, driver, solver)
	task, err := NewRegistration(e, validRegistrationInput())
	require.NoError(t, err)

	outcome := task.Run(context.Background())

	require.True(t, outcome.Success)
	assert.Equal(t, "123456789012", outcome.EID)
	assert.Equal(t, 1, solver.callCount())

	// The captcha answer was typed and submitted back to the portal.
	assert.Contains(t, driver.callLog(), "type #captchaInput=AB12")
	assert.Contains(t, driver.callLog(), "click #verifyCaptchaButton")

	// Progress lines arrive in declared step order.
	lines := pub.logLines()
	require.Len(t, lines, 5)
	assert.Contains(t, lines[0], "registration form")
	assert.Contains(t, lines[1], "details")
	assert.Contains(t, lines[2], "Submitting")
	assert.Contains(t, lines[3], "captcha")
	assert.Contains(t, lines[4], "verdict")
}

func TestRegistrationFillsFieldsInFixedOrder(t *testing.T) {
	driver := newFakeDriver()
	driver.winners[selRegisterSuccess+"|"+selRegisterError] = selRegisterSuccess
	driver.texts[selNewEIDNumber] = "123456789012"
	solver := &fakeSolver{code: "ZZ99"}

	e, _ := testEnv(t, driver, solver)
	task, err := NewRegistration(e, validRegistrationInput())
	require.NoError(t, err)
	task.Run(context.Background())

	calls := driver.callLog()
	var fieldCalls []string
	for _, c := range calls {
		switch c {
		case "type #reg-name=John Doe",
			"set #reg-dob=1998-05-10",
			"select #reg-gender=Male",
			"type #reg-phone=5551234",
			"type #reg-address=1 Main St":
			fieldCalls = append(fieldCalls, c)
		}
	}
	assert.Equal(t, []string{
		"type #reg-name=John Doe",
		"set #reg-dob=1998-05-10",
		"select #reg-gender=Male",
		"type #reg-phone=5551234",
		"type #reg-address=1 Main St",
	}, fieldCalls)
}

func TestRegistrationDuplicateRejectionSurfacesPortalMessage(t *testing.T) {
	driver := newFakeDriver()
	driver.winners[selRegisterSuccess+"|"+selRegisterError] = selRegisterError
	driver.texts[selRegisterErrMsg] = "This phone number is already registered."
	solver := &fakeSolver{code: "AB12"}

	e, _ := testEnv(t, driver, solver)
	task, err := NewRegistration(e, validRegistrationInput())
	require.NoError(t, err)

	outcome := task.Run(context.Background())

	require.False(t, outcome.Success)
	assert.Equal(t, "This phone number is already registered.", outcome.Error)
	// The rejection is terminal: the checkpoint was not re-attempted.
	assert.Equal(t, 1, solver.callCount())
}

func TestRegistrationRequiresEveryField(t *testing.T) {
	e, _ := testEnv(t, newFakeDriver(), &fakeSolver{})

	in := validRegistrationInput()
	in.Phone = ""
	_, err := NewRegistration(e, in)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "phone")
}

func TestRegistrationNavigationFailureIsTerminal(t *testing.T) {
	driver := newFakeDriver()
	driver.failures[selRegisterView] = assert.AnError
	solver := &fakeSolver{code: "AB12"}

	e, _ := testEnv(t, driver, solver)
	task, err := NewRegistration(e, validRegistrationInput())
	require.NoError(t, err)

	outcome := task.Run(context.Background())

	require.False(t, outcome.Success)
	assert.NotEmpty(t, outcome.Error)
	// Never reached the checkpoint.
	assert.Equal(t, 0, solver.callCount())
}
