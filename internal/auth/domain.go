package auth

import "github.com/shiftdesk/shiftdesk/internal/users"

// LoginRequest carries credentials.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// LoginResponse is returned after a successful login. The CSRF token is
// rotated with the session and must accompany later mutating requests.
type LoginResponse struct {
	User      users.User `json:"user"`
	CSRFToken string     `json:"csrfToken"`
}
