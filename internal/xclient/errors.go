package xclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// X API error codes the bot cares about.
const (
	CodeRateLimited = 88
	CodeDuplicate   = 187
)

// APIError is a non-2xx response from the X API.
type APIError struct {
	Status  int
	Code    int
	Message string
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("x api status %d: code %d: %s", e.Status, e.Code, e.Message)
	}
	if e.Message != "" {
		return fmt.Sprintf("x api status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("x api status %d", e.Status)
}

// IsDuplicate reports whether the post was rejected as a duplicate status.
func (e *APIError) IsDuplicate() bool { return e.Code == CodeDuplicate }

// IsRateLimited reports whether the request hit a rate limit.
func (e *APIError) IsRateLimited() bool {
	return e.Status == http.StatusTooManyRequests || e.Code == CodeRateLimited
}

// decodeAPIError builds an APIError from a failed response. It understands
// the v1.1 {"errors":[{"code","message"}]} shape and the v2 problem shape
// ({"title","detail"}); anything else keeps only the status.
func decodeAPIError(resp *http.Response) error {
	out := &APIError{Status: resp.StatusCode}
	b, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil || len(b) == 0 {
		return out
	}
	var raw struct {
		Errors []struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"errors"`
		Title  string `json:"title"`
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return out
	}
	if len(raw.Errors) > 0 {
		out.Code = raw.Errors[0].Code
		out.Message = raw.Errors[0].Message
		return out
	}
	out.Message = strings.Trim(raw.Title+": "+raw.Detail, ": ")
	return out
}
