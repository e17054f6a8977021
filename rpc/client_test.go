package rpc

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docsign/account"
	"docsign/signature"
)

func newTestClient(t *testing.T, f *fixture, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(f.handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, Credentials{ClientID: "modal", ClientSecret: "secret"}, opts...)
}

func TestClient_ExchangesCredentialsOnce(t *testing.T) {
	f := newFixture()
	f.signatures.records = []signature.Record{{ID: "sr-1", Status: signature.StatusSent}}
	c := newTestClient(t, f)
	ctx := context.Background()

	records, err := c.GetSignatureRequestsForDocument(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, signature.StatusSent, records[0].Status)

	_, err = c.GetSignatureRequestsForDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, 1, f.auth.loginCount())
}

func TestClient_RoundTrips(t *testing.T) {
	f := newFixture()
	f.signatures.record = signature.Record{ID: "sr-1", Status: signature.StatusOpened, SigningLink: "https://sign.example.com/sign/sr-1"}
	f.signatures.createResult = signature.CreateResult{Success: true, SignatureRequestID: "sr-2"}
	f.signatures.cancelResult = signature.CancelResult{Success: true}
	c := newTestClient(t, f)
	ctx := context.Background()

	rec, err := c.GetSignatureRequest(ctx, "sr-1")
	require.NoError(t, err)
	assert.Equal(t, f.signatures.record, rec)

	res, err := c.CreateSignatureRequest(ctx, signature.Input{SharedDocumentID: "doc-1", SignerName: "Jane", SignerEmail: "jane@example.com", Language: "da", ExpirationDays: 14})
	require.NoError(t, err)
	assert.Equal(t, "sr-2", res.SignatureRequestID)

	cres, err := c.CancelSignatureRequest(ctx, "sr-1")
	require.NoError(t, err)
	assert.True(t, cres.Success)

	acc, err := c.GetAccount(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", acc.FullName())
}

func TestClient_ErrorsCarryUserMessage(t *testing.T) {
	f := newFixture()
	f.handler = NewServer(f.journals, f.signatures, stubAccounts{err: account.ErrNotFound}, f.auth, nil).Routes()
	c := newTestClient(t, f)

	_, err := c.GetAccount(context.Background(), "missing")
	var rpcErr *Error
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, http.StatusNotFound, rpcErr.StatusCode)
	assert.Equal(t, "NOT_FOUND", rpcErr.Code)
	assert.Equal(t, account.ErrNotFound.Error(), rpcErr.UserMessage())
	assert.NotEmpty(t, rpcErr.RequestID)

	rpcErr = &Error{StatusCode: http.StatusInternalServerError, Message: "internal error"}
	assert.Empty(t, rpcErr.UserMessage())
}

func TestClient_BadCredentials(t *testing.T) {
	f := newFixture()
	srv := httptest.NewServer(f.handler)
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL, Credentials{ClientID: "modal", ClientSecret: "wrong"})

	_, err := c.GetJournalOptions(context.Background(), "001", "Account")
	var rpcErr *Error
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, http.StatusUnauthorized, rpcErr.StatusCode)
}

func TestClient_StaticToken(t *testing.T) {
	f := newFixture()
	c := newTestClient(t, f, WithToken(clientToken), WithTimeout(time.Second))

	opts, err := c.GetJournalOptions(context.Background(), "001", "Account")
	require.NoError(t, err)
	assert.Empty(t, opts)
	assert.Zero(t, f.auth.loginCount())
}

func TestClient_NoCredentials(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", Credentials{})
	_, err := c.GetSignatureRequest(context.Background(), "sr-1")
	assert.Error(t, err)
}

func TestClient_TimeoutLeavesSharedHTTPClientUntouched(t *testing.T) {
	shared := &http.Client{}
	c := NewClient("http://127.0.0.1:1", Credentials{}, WithHTTPClient(shared), WithTimeout(3*time.Second))

	assert.Zero(t, shared.Timeout)
	assert.Equal(t, 3*time.Second, c.httpClient.Timeout)
	assert.NotSame(t, shared, c.httpClient)
}
