package dto

import (
	apperrors "github.com/bravo68web/qadeck/pkg/errors"
)

// Result is the envelope of every API response
type Result struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`

	// Reauthorize tells the dashboard to send the user through the Basecamp connect flow again
	Reauthorize bool                   `json:"reauthorize,omitempty"`
	Details     map[string]interface{} `json:"details,omitempty"`
}

// OK wraps data in a successful Result
func OK(data interface{}) Result {
	return Result{Success: true, Data: data}
}

// Fail converts err into a failed Result. The message is never empty.
func Fail(err error) Result {
	msg := "an internal error occurred"
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	r := Result{Success: false, Error: msg, Reauthorize: apperrors.NeedsReauthorization(err)}

	if status := apperrors.StatusOf(err); status != 0 {
		r.Details = map[string]interface{}{"remote_status": status}
	}
	return r
}
