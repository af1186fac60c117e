// File: internal/tasks/portal.go
package tasks

// Fixed page contract with the target portal. The workflows are written
// against this exact, versioned structure; any drift shows up as a
// NavigationError, not a heuristic recovery.
const (
	selNavBar  = "nav.bg-blue-800"
	selNavMenu = "nav .dropdown:first-child"

	selMenuRegister = "#navRegister"
	selMenuSearch   = "#navSearch"
	selMenuUpdate   = "#navUpdate"

	selRegisterView    = "#registerView"
	selRegName         = "#reg-name"
	selRegDOB          = "#reg-dob"
	selRegGender       = "#reg-gender"
	selRegPhone        = "#reg-phone"
	selRegAddress      = "#reg-address"
	selRegisterButton  = "#registerButton"
	selRegisterSuccess = "#registerSuccessBox"
	selRegisterError   = "#registerErrorBox"
	selNewEIDNumber    = "#newEIdNumber"
	selRegisterErrMsg  = "#registerErrorMessage"

	selCaptchaView   = "#captchaView"
	selCaptchaInput  = "#captchaInput"
	selCaptchaVerify = "#verifyCaptchaButton"

	selSearchView     = "#searchView"
	selSearchInput    = "#eid-number-search"
	selSearchButton   = "#searchButton"
	selResultsCard    = "#resultsCard"
	selSearchError    = "#searchErrorBox"
	selSearchErrMsg   = "#searchErrorMessage"
	selDownloadButton = "#downloadButton"

	selUpdateView       = "#updateView"
	selUpdateEIDInput   = "#eid-number-update"
	selFindUserButton   = "#findUserButton"
	selUpdateStep1      = "#updateStep1"
	selUpdateStep2      = "#updateStep2"
	selUpdateFindError  = "#updateFindErrorBox"
	selUpdateFindErrMsg = "#updateFindErrorMessage"
	selUpdateSaveButton = "#updateSaveChangesButton"
	selUpdateSuccess    = "#updateSuccessBox"
	selUpdateError      = "#updateErrorBox"
	selUpdateErrMsg     = "#updateErrorMessage"
)

// downloadURLPrefix identifies the portal's download side channel: the
// document arrives as a data:text/plain response, not as a step return.
const downloadURLPrefix = "data:text/plain"

// updateFieldSelector returns the unlock button and input for one editable
// field on the update form.
func updateFieldSelector(field string) (unlock string, input string) {
	return `button[data-field="update-` + field + `"]`, "#update-" + field
}
