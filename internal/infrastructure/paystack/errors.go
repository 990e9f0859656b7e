package paystack

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/DanielPopoola/powervend/internal/application"
)

type errorResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func newAPIError(statusCode int, body []byte) *application.GatewayError {
	var resp errorResponse
	if err := json.Unmarshal(body, &resp); err != nil || resp.Message == "" {
		return &application.GatewayError{
			Code:       codeForStatus(statusCode),
			Message:    strings.TrimSpace(string(body)),
			StatusCode: statusCode,
		}
	}

	code := resp.Code
	if code == "" {
		code = codeForStatus(statusCode)
	}
	return &application.GatewayError{
		Code:       code,
		Message:    resp.Message,
		StatusCode: statusCode,
	}
}

func codeForStatus(statusCode int) string {
	switch {
	case statusCode == http.StatusUnauthorized:
		return "unauthorized"
	case statusCode == http.StatusNotFound:
		return "not_found"
	case statusCode == http.StatusTooManyRequests:
		return "rate_limited"
	case statusCode >= 500:
		return "upstream_error"
	default:
		return "bad_request"
	}
}
