// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package params

import (
	"encoding/json"
)

// ErrorInfo is the structured error payload of a failed call.
type ErrorInfo struct {
	Message string `json:"message"`
	Name    string `json:"name,omitempty"`
	Stack   string `json:"stack,omitempty"`
}

// Error implements error.
func (e *ErrorInfo) Error() string {
	return e.Message
}

// UnmarshalJSON accepts both the flat payload and the driver's
// nested form, {"error": {"message": ..., "name": ..., "stack": ...}}.
func (e *ErrorInfo) UnmarshalJSON(data []byte) error {
	type flat ErrorInfo
	var wrapper struct {
		flat
		Error *flat `json:"error"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return err
	}
	if wrapper.Error != nil {
		*e = ErrorInfo(*wrapper.Error)
		return nil
	}
	*e = ErrorInfo(wrapper.flat)
	return nil
}
