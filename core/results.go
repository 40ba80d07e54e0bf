package core

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// CommandResult is the uniform envelope returned by every storefront
// operation surfaced through the command layer.
type CommandResult struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

func OKResult(message string, data map[string]any) CommandResult {
	return CommandResult{Success: true, Message: message, Data: data}
}

func FailResult(message string) CommandResult {
	return CommandResult{Success: false, Message: message}
}

// FailResultFromError shapes a mapped service error into the failure
// envelope, surfacing the stable text code alongside the message.
func FailResultFromError(err error) CommandResult {
	if err == nil {
		return FailResult("unknown failure")
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return FailResult(err.Error())
	}
	message := strings.TrimSpace(richErr.Message)
	if message == "" {
		message = err.Error()
	}
	result := FailResult(message)
	data := map[string]any{}
	if code := strings.TrimSpace(richErr.TextCode); code != "" {
		data["error_code"] = code
	}
	if richErr.Code != 0 {
		data["status"] = richErr.Code
	}
	if len(data) > 0 {
		result.Data = data
	}
	return result
}
