package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials signals an unknown client id or wrong secret.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrWeakSecret signals a client secret shorter than 16 characters.
	ErrWeakSecret = errors.New("auth: client secret must be at least 16 characters")
	// ErrInvalidToken signals a token that failed verification.
	ErrInvalidToken = errors.New("auth: invalid token")
)

const minSecretLength = 16

// Service issues and verifies bearer tokens for service accounts.
type Service struct {
	repo      Repository
	jwtSecret []byte
	tokenTTL  time.Duration
	now       func() time.Time
}

// TokenResult is returned from a successful credentials exchange.
type TokenResult struct {
	Token     string
	ExpiresAt time.Time
	Account   ServiceAccount
}

func NewService(repo Repository, jwtSecret string, tokenTTL time.Duration) *Service {
	if tokenTTL <= 0 {
		tokenTTL = time.Hour
	}
	return &Service{
		repo:      repo,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
		now:       time.Now,
	}
}

// WithClock overrides the time source, primarily for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// RegisterClient creates a service account with a hashed secret.
func (s *Service) RegisterClient(ctx context.Context, req RegisterRequest) (ServiceAccount, error) {
	clientID := strings.TrimSpace(req.ClientID)
	if clientID == "" {
		return ServiceAccount{}, fmt.Errorf("auth: client_id is required")
	}
	if len(req.ClientSecret) < minSecretLength {
		return ServiceAccount{}, ErrWeakSecret
	}

	role := Role(strings.TrimSpace(string(req.Role)))
	if role == "" {
		role = RoleClient
	}
	if !isValidRole(role) {
		return ServiceAccount{}, fmt.Errorf("auth: invalid role %q", role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.ClientSecret), bcrypt.DefaultCost)
	if err != nil {
		return ServiceAccount{}, fmt.Errorf("auth: hash secret: %w", err)
	}

	return s.repo.CreateAccount(ctx, CreateAccountParams{
		ID:         uuid.NewString(),
		ClientID:   clientID,
		Name:       strings.TrimSpace(req.Name),
		SecretHash: string(hash),
		Role:       role,
	})
}

// Login exchanges client credentials for a signed bearer token.
func (s *Service) Login(ctx context.Context, req TokenRequest) (TokenResult, error) {
	acc, err := s.repo.GetAccountByClientID(ctx, req.ClientID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return TokenResult{}, ErrInvalidCredentials
		}
		return TokenResult{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(acc.SecretHash), []byte(req.ClientSecret)); err != nil {
		return TokenResult{}, ErrInvalidCredentials
	}

	expiresAt := s.now().Add(s.tokenTTL)
	token, err := s.generateToken(acc, expiresAt)
	if err != nil {
		return TokenResult{}, fmt.Errorf("auth: generate token: %w", err)
	}

	return TokenResult{Token: token, ExpiresAt: expiresAt, Account: acc}, nil
}

// VerifyToken validates a bearer token and returns its principal.
func (s *Service) VerifyToken(tokenString string) (Principal, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Principal{}, ErrInvalidToken
	}
	sub, _ := claims["sub"].(string)
	clientID, _ := claims["client_id"].(string)
	roleStr, _ := claims["role"].(string)
	role := Role(roleStr)
	if sub == "" || clientID == "" || !isValidRole(role) {
		return Principal{}, fmt.Errorf("%w: missing or invalid claims", ErrInvalidToken)
	}
	return Principal{AccountID: sub, ClientID: clientID, Role: role}, nil
}

func (s *Service) generateToken(acc ServiceAccount, expiresAt time.Time) (string, error) {
	claims := jwt.MapClaims{
		"sub":       acc.ID,
		"client_id": acc.ClientID,
		"role":      acc.Role,
		"exp":       expiresAt.Unix(),
		"iat":       s.now().Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
}

func isValidRole(role Role) bool {
	switch role {
	case RoleClient, RoleProvider:
		return true
	default:
		return false
	}
}
