package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"docsign/test/infra"
)

func TestServiceAccounts_Integration(t *testing.T) {
	h := infra.Start(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	svc := NewService(NewRepository(h.Pool()), "integration-signing-key-0123456789", time.Hour)

	acc, err := svc.RegisterClient(ctx, RegisterRequest{ClientID: "esign-provider", ClientSecret: testSecret, Role: RoleProvider})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.RegisterClient(ctx, RegisterRequest{ClientID: "esign-provider", ClientSecret: testSecret}); !errors.Is(err, ErrDuplicateClient) {
		t.Fatalf("expected ErrDuplicateClient, got %v", err)
	}

	res, err := svc.Login(ctx, TokenRequest{ClientID: "esign-provider", ClientSecret: testSecret})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	p, err := svc.VerifyToken(res.Token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if p.AccountID != acc.ID || p.Role != RoleProvider {
		t.Fatalf("unexpected principal: %+v", p)
	}
}
