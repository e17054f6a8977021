package account

import (
	"context"
	"errors"
	"testing"
)

type stubReader struct {
	account Account
	err     error
}

func (s *stubReader) GetByID(_ context.Context, _ string) (Account, error) {
	return s.account, s.err
}

func TestFullName(t *testing.T) {
	cases := []struct {
		acc  Account
		want string
	}{
		{Account{FirstName: "Mette", LastName: "Hansen"}, "Mette Hansen"},
		{Account{LastName: "Hansen"}, "Hansen"},
		{Account{FirstName: "Mette"}, "Mette"},
		{Account{}, ""},
	}
	for _, tc := range cases {
		if got := tc.acc.FullName(); got != tc.want {
			t.Errorf("expected %q, got %q", tc.want, got)
		}
	}
}

func TestService_Get(t *testing.T) {
	svc := NewService(&stubReader{account: Account{ID: "acc-1", PersonEmail: "m@example.com"}})
	got, err := svc.Get(context.Background(), "acc-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.PersonEmail != "m@example.com" {
		t.Fatalf("unexpected account %+v", got)
	}

	if _, err := svc.Get(context.Background(), ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for empty id, got %v", err)
	}
}
