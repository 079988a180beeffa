package types

// Error codes of the status API.
const (
	CodeNotFound         = "STATUS_404"
	CodeMethodNotAllowed = "STATUS_405"
	CodeInternal         = "STATUS_500"
)

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// NewErrorResponse builds the error payload shared by all endpoints.
func NewErrorResponse(code, message string, details any) ErrorResponse {
	return ErrorResponse{
		Error: ErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}
