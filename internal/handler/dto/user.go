package dto

// RegisterRequest is the body for POST /register.
type RegisterRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Birthday string `json:"birthday"`
}

// TokenRequest is the body for POST /oauth/token (password grant).
type TokenRequest struct {
	GrantType string `json:"grant_type"`
	Username  string `json:"username"`
	Password  string `json:"password"`
}

// TokenResponse is the issued session credential.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// ForgetRequest is the body for POST /forget.
type ForgetRequest struct {
	Email string `json:"email"`
}

// ResetRequest is the body for PUT /reset.
type ResetRequest struct {
	Password string `json:"password"`
}

// UpdateUserRequest is the body for PUT /user.
type UpdateUserRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Birthday string `json:"birthday"`
}

// UserResponse represents a user in API responses.
type UserResponse struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	Name      string `json:"name"`
	Birthday  string `json:"birthday"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// AvatarResponse is the body for PUT /user/avatar.
type AvatarResponse struct {
	AvatarURL string `json:"avatar_url"`
}

// MessageResponse is a minimal acknowledgement body.
type MessageResponse struct {
	Message string `json:"message"`
}
