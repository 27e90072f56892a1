package compose

import "errors"

// Reason tags a user-facing validation rejection.
type Reason string

const (
	ReasonEmptyMessage         Reason = "empty_message"
	ReasonMessageTooLong       Reason = "message_too_long"
	ReasonInvalidSchedule      Reason = "invalid_schedule"
	ReasonNoDeviceSelected     Reason = "no_device_selected"
	ReasonUnknownDevice        Reason = "unknown_device"
	ReasonNoResponseConfigured Reason = "no_response_configured"
)

// ValidationError is a synchronous, non-fatal rejection of a compose
// attempt. No state changes when one is returned.
type ValidationError struct {
	Reason Reason
	Msg    string
}

func (e *ValidationError) Error() string { return e.Msg }

func reject(reason Reason, msg string) *ValidationError {
	return &ValidationError{Reason: reason, Msg: msg}
}

// AsValidation unwraps err into a *ValidationError if it is one.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
