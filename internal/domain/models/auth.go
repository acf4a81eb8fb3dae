package models

// LoginRequest carries the credentials for an existing account.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest opens a new business together with its owner account.
type RegisterRequest struct {
	BusinessName string `json:"business_name"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Password     string `json:"password"`
}

// TokenResponse is returned by both login and registration.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
}
