package biztrack

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrAuthFailed indicates the remote service rejected the credential itself
// (expired, invalid or absent token). It is the only failure that tears down
// the session; every other failure stays local to the calling screen.
var ErrAuthFailed = errors.New("session credential rejected")

// ErrForbidden indicates the caller is authenticated but lacks the role
// required for the route (e.g. staff management). Distinct from ErrAuthFailed:
// the session stays intact.
var ErrForbidden = errors.New("insufficient privileges")

// APIError is any remote failure that is neither an authentication nor an
// authorization rejection: validation errors, business-rule rejections and
// server faults. The message is already normalized for display.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (status %d): %s", e.StatusCode, e.Message)
}

// errorBody matches the remote error envelope. The detail field arrives as a
// string, a list of field errors, or an arbitrary object depending on which
// layer of the service rejected the request.
type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}

type fieldError struct {
	Loc []any  `json:"loc"`
	Msg string `json:"msg"`
}

// normalizeDetail collapses every error shape the service produces into one
// displayable string so callers never inspect raw payloads.
func normalizeDetail(body []byte, statusCode int) string {
	fallback := http.StatusText(statusCode)
	if fallback == "" {
		fallback = "request failed"
	}

	var envelope errorBody
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Detail) == 0 {
		return fallback
	}

	var s string
	if err := json.Unmarshal(envelope.Detail, &s); err == nil && s != "" {
		return s
	}

	var fields []fieldError
	if err := json.Unmarshal(envelope.Detail, &fields); err == nil && len(fields) > 0 {
		msgs := make([]string, 0, len(fields))
		for _, f := range fields {
			if f.Msg == "" {
				continue
			}
			if name := fieldName(f.Loc); name != "" {
				msgs = append(msgs, name+": "+f.Msg)
			} else {
				msgs = append(msgs, f.Msg)
			}
		}
		if len(msgs) > 0 {
			return strings.Join(msgs, "; ")
		}
	}

	// Unknown object shape: render it verbatim rather than crash the view.
	var obj map[string]any
	if err := json.Unmarshal(envelope.Detail, &obj); err == nil && len(obj) > 0 {
		return string(envelope.Detail)
	}

	return fallback
}

func fieldName(loc []any) string {
	if len(loc) == 0 {
		return ""
	}
	if name, ok := loc[len(loc)-1].(string); ok {
		return name
	}
	return ""
}
