// Package dto provides Data Transfer Objects for API requests and responses.
package dto

// ErrorResponse is the wire envelope for every failure. Code mirrors
// the HTTP status; the optional fields carry the bearer-token failure
// detail clients use to distinguish a missing credential from a
// rejected one.
type ErrorResponse struct {
	Code             int    `json:"code"`
	Message          string `json:"message"`
	StatusCode       int    `json:"status_code,omitempty"`
	Error            string `json:"error,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// Auth failure sub-codes carried in ErrorResponse.StatusCode.
const (
	SubCodeInvalidToken = 1
	SubCodeTokenMissing = 3
)

// InvalidTokenError builds the envelope for a rejected credential.
func InvalidTokenError() ErrorResponse {
	return ErrorResponse{
		Code:             401,
		Message:          "Unauthorized",
		StatusCode:       SubCodeInvalidToken,
		Error:            "invalid_token",
		ErrorDescription: "Token was expired or invalid.",
	}
}

// TokenMissingError builds the envelope for an absent credential.
func TokenMissingError() ErrorResponse {
	return ErrorResponse{
		Code:       401,
		Message:    "Token missing.",
		StatusCode: SubCodeTokenMissing,
	}
}
