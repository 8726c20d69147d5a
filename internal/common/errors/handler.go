// internal/common/errors/handler.go
package errors

// Logger is the subset of logger.Logger the handler needs.
type Logger interface {
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// ErrorHandler normalizes and logs turn failures.
type ErrorHandler struct {
	logger Logger
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle normalizes err to a StandardError and logs it with the given context fields.
// Retryable failures are logged at Warn, the rest at Error.
func (h *ErrorHandler) Handle(err error, fields map[string]interface{}) *StandardError {
	stdErr := Normalize(err)

	entry := map[string]interface{}{
		"errorCode":     string(stdErr.Code),
		"message":       stdErr.Message,
		"details":       stdErr.Details,
		"retryable":     IsRetryable(stdErr.Code),
		"errorCategory": GetErrorCategory(stdErr.Code),
	}
	for k, v := range stdErr.Metadata {
		entry[k] = v
	}
	for k, v := range fields {
		entry[k] = v
	}

	if IsRetryable(stdErr.Code) {
		h.logger.Warn("turn failed", entry)
	} else {
		h.logger.Error("turn failed", entry)
	}
	return stdErr
}
