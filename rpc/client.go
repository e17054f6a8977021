package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"docsign/account"
	"docsign/journal"
	"docsign/signature"
	"docsign/signaturemodal"
)

var (
	_ journal.OptionSource          = (*Client)(nil)
	_ signaturemodal.RequestService = (*Client)(nil)
	_ signaturemodal.AccountReader  = (*Client)(nil)
)

// Error is a non-2xx response from the server.
type Error struct {
	StatusCode int
	Code       string
	Message    string
	RequestID  string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("rpc: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
}

// UserMessage is the server-provided text suitable for a toast.
func (e *Error) UserMessage() string {
	if e == nil || e.StatusCode >= http.StatusInternalServerError {
		return ""
	}
	return e.Message
}

// Credentials are exchanged for a bearer token on first use.
type Credentials struct {
	ClientID     string
	ClientSecret string
}

// Client calls the docsign api. It satisfies the view-model collaborator
// interfaces of the journal and signaturemodal packages.
type Client struct {
	baseURL    string
	httpClient *http.Client
	creds      Credentials
	now        func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithTimeout sets the timeout on a copy of the current HTTP client, so a
// shared client such as http.DefaultClient is left untouched.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			hc := *c.httpClient
			hc.Timeout = d
			c.httpClient = &hc
		}
	}
}

// WithToken uses a pre-issued bearer token instead of a credentials exchange.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
		c.expiresAt = time.Time{}
	}
}

func NewClient(baseURL string, creds Credentials, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		creds:      creds,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) GetJournalOptions(ctx context.Context, recordID, objectAPIName string) ([]journal.Option, error) {
	v := url.Values{}
	v.Set("recordId", recordID)
	v.Set("objectApiName", objectAPIName)
	var out []journal.Option
	if err := c.call(ctx, http.MethodGet, "/api/journal-options?"+v.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetSignatureRequestsForDocument(ctx context.Context, sharedDocumentID string) ([]signature.Record, error) {
	var out []signature.Record
	path := "/api/documents/" + url.PathEscape(sharedDocumentID) + "/signature-requests"
	if err := c.call(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetSignatureRequest(ctx context.Context, signatureRequestID string) (signature.Record, error) {
	var out signature.Record
	err := c.call(ctx, http.MethodGet, "/api/signature-requests/"+url.PathEscape(signatureRequestID), nil, &out)
	return out, err
}

func (c *Client) CreateSignatureRequest(ctx context.Context, in signature.Input) (signature.CreateResult, error) {
	var out signature.CreateResult
	err := c.call(ctx, http.MethodPost, "/api/signature-requests", in, &out)
	return out, err
}

func (c *Client) CancelSignatureRequest(ctx context.Context, signatureRequestID string) (signature.CancelResult, error) {
	var out signature.CancelResult
	err := c.call(ctx, http.MethodPost, "/api/signature-requests/"+url.PathEscape(signatureRequestID)+"/cancel", nil, &out)
	return out, err
}

func (c *Client) GetAccount(ctx context.Context, accountID string) (account.Account, error) {
	var out account.Account
	err := c.call(ctx, http.MethodGet, "/api/accounts/"+url.PathEscape(accountID), nil, &out)
	return out, err
}

func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	token, err := c.bearer(ctx)
	if err != nil {
		return err
	}
	return c.do(ctx, method, path, token, body, out)
}

// bearer returns a cached token, exchanging credentials when it is missing
// or within a minute of expiry.
func (c *Client) bearer(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && (c.expiresAt.IsZero() || c.now().Add(time.Minute).Before(c.expiresAt)) {
		return c.token, nil
	}
	if c.creds.ClientID == "" {
		return "", errors.New("rpc: no token or client credentials configured")
	}

	var res tokenResponse
	req := map[string]string{"client_id": c.creds.ClientID, "client_secret": c.creds.ClientSecret}
	if err := c.do(ctx, http.MethodPost, "/auth/token", "", req, &res); err != nil {
		return "", err
	}
	expiresAt, err := time.Parse(time.RFC3339, res.ExpiresAt)
	if err != nil {
		return "", fmt.Errorf("rpc: token expiry: %w", err)
	}
	c.token = res.AccessToken
	c.expiresAt = expiresAt
	return c.token, nil
}

func (c *Client) do(ctx context.Context, method, path, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("rpc: encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("rpc: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("rpc: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("rpc: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseError(resp, respBody)
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("rpc: decode response: %w", err)
	}
	return nil
}

func parseError(resp *http.Response, body []byte) error {
	e := &Error{StatusCode: resp.StatusCode, RequestID: resp.Header.Get(requestIDHeader)}
	var parsed errorBody
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Code != "" {
		e.Code = parsed.Error.Code
		e.Message = parsed.Error.Message
		if parsed.RequestID != "" {
			e.RequestID = parsed.RequestID
		}
		return e
	}
	e.Code = "HTTP_" + strconv.Itoa(resp.StatusCode)
	e.Message = strings.TrimSpace(string(body))
	return e
}
