package rest

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/DanielPopoola/powervend/internal/application"
)

type ErrorResponse struct {
	Success bool        `json:"success"`
	Error   ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

type DataResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data,omitempty"`
}

// BuildErrorResponse maps an error to its status code and envelope. Internal
// failures never leak their cause to the client.
func BuildErrorResponse(err error) (int, ErrorResponse) {
	statusCode := application.ToHTTPStatus(err)

	message := err.Error()
	if svcErr, ok := application.IsServiceError(err); ok {
		message = svcErr.Message
	} else if statusCode >= http.StatusInternalServerError {
		message = http.StatusText(statusCode)
	}

	detail := ErrorDetail{
		Code:    application.ToErrorCode(err),
		Message: message,
	}
	if svcErr, ok := application.IsServiceError(err); ok && svcErr.Code == application.ErrCodeInvalidInput && svcErr.Err != nil {
		detail.Details = map[string]string{"reason": svcErr.Err.Error()}
	}

	return statusCode, ErrorResponse{Success: false, Error: detail}
}

// WriteError writes the error envelope. Server-side failures are logged with
// their category.
func WriteError(w http.ResponseWriter, r *http.Request, err error, logger *slog.Logger) {
	statusCode, response := BuildErrorResponse(err)

	if statusCode >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", statusCode,
			"category", application.CategorizeError(err),
			"error", err,
		)
	}

	WriteJSON(w, statusCode, response)
}

func WriteData(w http.ResponseWriter, statusCode int, data any) {
	WriteJSON(w, statusCode, DataResponse{Success: true, Data: data})
}

func WriteJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}
