package authmodel

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ErrorResponse is the FastAPI error body. Detail is either a string or a list of
// validation errors.
type ErrorResponse struct {
	Detail json.RawMessage `json:"detail"`
}

type validationError struct {
	Loc []any  `json:"loc"`
	Msg string `json:"msg"`
}

// ErrorDetail extracts a human readable message from an error body, or "" when the
// body is not a FastAPI error.
func ErrorDetail(body []byte) string {
	var resp ErrorResponse
	if err := json.Unmarshal(body, &resp); err != nil || len(resp.Detail) == 0 {
		return ""
	}

	var msg string
	if err := json.Unmarshal(resp.Detail, &msg); err == nil {
		return msg
	}

	var list []validationError
	if err := json.Unmarshal(resp.Detail, &list); err == nil {
		parts := make([]string, 0, len(list))
		for _, v := range list {
			if len(v.Loc) > 0 {
				parts = append(parts, fmt.Sprintf("%v: %s", v.Loc[len(v.Loc)-1], v.Msg))
				continue
			}
			parts = append(parts, v.Msg)
		}
		return strings.Join(parts, "; ")
	}
	return ""
}
