package schemas

import "strings"

// Intent identifies which automation workflow a user's text maps to.
type Intent string

const (
	IntentRegister Intent = "register_eid"
	IntentDownload Intent = "download_eid"
	IntentUpdate   Intent = "update_eid"
	IntentUnknown  Intent = "unknown"
)

// IntentFields holds the slots the oracle extracted from free text.
// DOB is canonical YYYY-MM-DD; Gender is one of Male/Female/Other.
// MissingInfo, when set, is a user-facing prompt asking for whatever the
// oracle could not extract.
type IntentFields struct {
	Name        string `json:"name,omitempty"`
	DOB         string `json:"dob,omitempty"`
	Gender      string `json:"gender,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Address     string `json:"address,omitempty"`
	EID         string `json:"eId,omitempty"`
	MissingInfo string `json:"missingInfo,omitempty"`
}

// IntentResult is the oracle's verdict for one inbound text message.
// Immutable once produced; never persisted.
type IntentResult struct {
	Intent Intent       `json:"intent"`
	Data   IntentFields `json:"data"`
}

// Actionable reports whether the result names a runnable workflow with no
// outstanding clarification.
func (r IntentResult) Actionable() bool {
	return r.Intent != IntentUnknown && r.Intent != "" && r.Data.MissingInfo == ""
}

// IsValidEID reports whether s is a well-formed E-ID (exactly 12 digits).
func IsValidEID(s string) bool {
	if len(s) != 12 {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// NormalizeIntent maps a raw oracle string onto a known Intent, defaulting
// to IntentUnknown for anything unrecognized.
func NormalizeIntent(raw string) Intent {
	switch Intent(strings.TrimSpace(strings.ToLower(raw))) {
	case IntentRegister:
		return IntentRegister
	case IntentDownload:
		return IntentDownload
	case IntentUpdate:
		return IntentUpdate
	default:
		return IntentUnknown
	}
}
