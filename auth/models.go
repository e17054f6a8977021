package auth

import "time"

type Role string

const (
	// RoleClient is held by UI hosts and the CLI calling the request API.
	RoleClient Role = "client"
	// RoleProvider is held by the e-sign provider posting status webhooks.
	RoleProvider Role = "provider"
)

// ServiceAccount is a machine identity allowed to call the API.
type ServiceAccount struct {
	ID         string
	ClientID   string
	Name       string
	SecretHash string
	Role       Role
	CreatedAt  time.Time
}

// RegisterRequest describes a new service account.
type RegisterRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	Name         string `json:"name"`
	Role         Role   `json:"role"`
}

// TokenRequest is a client-credentials exchange.
type TokenRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

// Principal is the identity recovered from a verified token.
type Principal struct {
	AccountID string
	ClientID  string
	Role      Role
}
