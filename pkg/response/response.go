// Package response defines the JSON envelope every API endpoint returns.
package response

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Response is the wire format for all endpoints: data on success, a
// message on error, never both.
type Response struct {
	Status     string      `json:"status"`
	StatusCode int         `json:"status_code"`
	Data       interface{} `json:"data,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// Success wraps data in a success envelope.
func Success(statusCode int, data interface{}) Response {
	return Response{
		Status:     statusSuccess,
		StatusCode: statusCode,
		Data:       data,
	}
}

// Error wraps a message in an error envelope.
func Error(statusCode int, message string) Response {
	return Response{
		Status:     statusError,
		StatusCode: statusCode,
		Error:      message,
	}
}
