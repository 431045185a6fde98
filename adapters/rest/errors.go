package rest

import (
	"encoding/json"
	"strings"

	"github.com/lborres/shopfront/core"
)

// DecodeError turns a failed response into a *core.APIError. Recognised
// bodies are an array of {description}, an object with a message, or a bare
// JSON string. Any other body yields no messages so callers fall back to
// their generic text.
func DecodeError(status int, body []byte) *core.APIError {
	apiErr := &core.APIError{StatusCode: status}

	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return apiErr
	}

	switch trimmed[0] {
	case '[':
		var items []struct {
			Description string `json:"description"`
		}
		if json.Unmarshal(body, &items) == nil {
			for _, it := range items {
				if it.Description != "" {
					apiErr.Messages = append(apiErr.Messages, it.Description)
				}
			}
		}
	case '{':
		var obj struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(body, &obj) == nil && obj.Message != "" {
			apiErr.Messages = []string{obj.Message}
		}
	case '"':
		var s string
		if json.Unmarshal(body, &s) == nil && s != "" {
			apiErr.Messages = []string{s}
		}
	}

	return apiErr
}
