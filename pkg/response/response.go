package response

// Response represents a standard API response format
type Response struct {
	Status     string                 `json:"status"`      // "success" or "error"
	StatusCode int                    `json:"status_code"` // HTTP status code
	Data       interface{}            `json:"data,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
}

// Success returns a standard success response wrapping the data
func Success(statusCode int, data interface{}) Response {
	return Response{
		Status:     "success",
		StatusCode: statusCode,
		Data:       data,
	}
}

// Error returns a standard error response wrapping the error message
func Error(statusCode int, err string) Response {
	return Response{
		Status:     "error",
		StatusCode: statusCode,
		Error:      err,
	}
}

// ErrorWithDetails is Error plus the structured payload of the failure,
// e.g. the identity of a conflicting invoice.
func ErrorWithDetails(statusCode int, err string, details map[string]interface{}) Response {
	res := Error(statusCode, err)
	res.Details = details
	return res
}

// Page wraps a paginated listing.
type Page struct {
	Items interface{} `json:"items"`
	Total int64       `json:"total"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
}
