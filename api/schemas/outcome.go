package schemas

// Outcome is the terminal result of one automation task run. Emitted exactly
// once per task; immutable.
//
// On success exactly one of the payload fields is populated depending on the
// variant: EID for registration, Document for download, Message for update.
// On failure Error carries a human-readable reason (the portal's own message
// for business rejections).
type Outcome struct {
	Success  bool   `json:"success"`
	EID      string `json:"eId,omitempty"`
	Document string `json:"document,omitempty"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Failure builds a failed Outcome from an error message.
func Failure(reason string) Outcome {
	return Outcome{Success: false, Error: reason}
}
